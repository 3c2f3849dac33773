package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/metrics"
	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/proxy"
)

type WaitConfig struct {
	Confirmations uint64
	// Timeout bounds each confirmation wait. Zero waits as long as the context allows.
	Timeout time.Duration
}

// Sender sends state-mutating transactions one at a time and waits for each to confirm.
// Transactions are never retried: every failure is returned as a *proxy.TxError.
type Sender struct {
	client Client
	cfg    WaitConfig
	m      metrics.TxMetricer
	lgr    log.Logger
}

func NewSender(client Client, cfg WaitConfig, m metrics.TxMetricer, lgr log.Logger) *Sender {
	if cfg.Confirmations == 0 {
		cfg.Confirmations = 1
	}
	return &Sender{client: client, cfg: cfg, m: m, lgr: lgr}
}

func (s *Sender) Client() Client {
	return s.client
}

// Send broadcasts the transaction and returns its receipt once it has the configured
// number of confirmations and succeeded.
func (s *Sender) Send(ctx context.Context, op string, to *common.Address, data []byte) (*types.Receipt, error) {
	lgr := s.lgr.New("op", op)
	hash, err := s.client.SubmitTransaction(ctx, to, data, nil)
	if err != nil {
		s.m.RecordTxFailed(op)
		return nil, &proxy.TxError{Op: op, Err: classifySubmitError(ctx, err)}
	}
	s.m.RecordTxSubmitted(op)
	lgr.Info("Submitted transaction", "tx", hash)

	start := time.Now()
	waitCtx, cancel := ctx, context.CancelFunc(func() {})
	if s.cfg.Timeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
	}
	defer cancel()
	receipt, err := s.client.WaitForReceipt(waitCtx, hash, s.cfg.Confirmations)
	if err != nil {
		s.m.RecordTxFailed(op)
		if errors.Is(err, context.DeadlineExceeded) {
			lgr.Warn("Transaction not confirmed in time, it may still be included later", "tx", hash)
			return nil, &proxy.TxError{Op: op, TxHash: hash, Err: fmt.Errorf("%w: %w", proxy.ErrConfirmationTimeout, err)}
		}
		return nil, &proxy.TxError{Op: op, TxHash: hash, Err: err}
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		s.m.RecordTxFailed(op)
		return receipt, &proxy.TxError{Op: op, TxHash: hash, Err: fmt.Errorf("%w: receipt status %d", proxy.ErrChainRejected, receipt.Status)}
	}
	s.m.RecordTxConfirmed(op, time.Since(start))
	lgr.Info("Transaction confirmed", "tx", hash, "block", receipt.BlockNumber, "gasUsed", receipt.GasUsed)
	return receipt, nil
}

func classifySubmitError(ctx context.Context, err error) error {
	switch {
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return err
	case errors.Is(err, proxy.ErrChainRejected), errors.Is(err, proxy.ErrUnauthorized), errors.Is(err, proxy.ErrAlreadyInitialized):
		return err
	default:
		return fmt.Errorf("%w: %w", proxy.ErrChainRejected, err)
	}
}

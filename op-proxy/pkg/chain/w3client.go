package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/lmittmann/w3"
	"github.com/lmittmann/w3/module/eth"
	"github.com/lmittmann/w3/w3types"

	"github.com/mantlenetworkio/proxy-ops/op-service/txinclude"
)

type Config struct {
	RPCURL string
	// ChainID is checked against the endpoint when set.
	ChainID    uint64
	PrivateKey *ecdsa.PrivateKey
	// GasFeeCap caps the fee per gas of every transaction when set.
	GasFeeCap    *big.Int
	PollInterval time.Duration
}

// W3Client is the production Client, talking JSON-RPC through w3.
// Nonces are handed out by a shared NonceManager so concurrent operations of one
// signer never race for the same nonce.
type W3Client struct {
	rpc       *w3.Client
	signer    txinclude.Signer
	nonces    *txinclude.NonceManager
	monitor   *txinclude.Monitor
	chainID   *big.Int
	gasFeeCap *big.Int
	lgr       log.Logger
}

var _ Client = (*W3Client)(nil)

func Dial(ctx context.Context, cfg Config, lgr log.Logger) (*W3Client, error) {
	if cfg.PrivateKey == nil {
		return nil, errors.New("private key is required")
	}
	client, err := w3.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	var chainID uint64
	if err := client.CallCtx(ctx, eth.ChainID().Returns(&chainID)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}
	if cfg.ChainID != 0 && cfg.ChainID != chainID {
		_ = client.Close()
		return nil, fmt.Errorf("endpoint serves chain %d, expected %d", chainID, cfg.ChainID)
	}
	poll := cfg.PollInterval
	if poll == 0 {
		poll = 2 * time.Second
	}
	c := &W3Client{
		rpc:       client,
		signer:    txinclude.NewPkSigner(cfg.PrivateKey, new(big.Int).SetUint64(chainID)),
		chainID:   new(big.Int).SetUint64(chainID),
		gasFeeCap: cfg.GasFeeCap,
		lgr:       lgr,
	}
	c.nonces = txinclude.NewNonceManager(c.fetchNonce)
	c.monitor = txinclude.NewMonitor(&w3Source{rpc: client}, poll)
	lgr.Info("Connected to chain", "chainID", chainID, "signer", c.signer.Address())
	return c, nil
}

func (c *W3Client) Close() error {
	return c.rpc.Close()
}

func (c *W3Client) From() common.Address {
	return c.signer.Address()
}

func (c *W3Client) fetchNonce(ctx context.Context) (uint64, error) {
	var nonce uint64
	if err := c.rpc.CallCtx(ctx, eth.Nonce(c.From(), nil).Returns(&nonce)); err != nil {
		return 0, fmt.Errorf("get nonce: %w", err)
	}
	return nonce, nil
}

func (c *W3Client) SubmitTransaction(ctx context.Context, to *common.Address, data []byte, value *big.Int) (common.Hash, error) {
	if value == nil {
		value = new(big.Int)
	}
	msg := &w3types.Message{From: c.From(), To: to, Input: data, Value: value}
	var (
		gas      uint64
		tipCap   *big.Int
		gasPrice *big.Int
	)
	if err := c.rpc.CallCtx(ctx,
		eth.EstimateGas(msg, nil).Returns(&gas),
		eth.GasTipCap().Returns(&tipCap),
		eth.GasPrice().Returns(&gasPrice),
	); err != nil {
		if revert := asRevert(err); revert != nil {
			return common.Hash{}, revert
		}
		return common.Hash{}, fmt.Errorf("failed to prepare transaction: %w", err)
	}
	// twice the suggested price, bounded by the cap
	feeCap := new(big.Int).Mul(gasPrice, big.NewInt(2))
	if c.gasFeeCap != nil && feeCap.Cmp(c.gasFeeCap) > 0 {
		feeCap = new(big.Int).Set(c.gasFeeCap)
	}
	if tipCap.Cmp(feeCap) > 0 {
		tipCap = new(big.Int).Set(feeCap)
	}

	nonce, err := c.nonces.Next(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gas * 6 / 5,
		To:        to,
		Value:     value,
		Data:      data,
	})
	signed, err := c.signer.Sign(ctx, tx)
	if err != nil {
		c.nonces.InsertGap(nonce)
		return common.Hash{}, fmt.Errorf("sign tx: %w", err)
	}
	var hash common.Hash
	if err := c.rpc.CallCtx(ctx, eth.SendTx(signed).Returns(&hash)); err != nil {
		c.nonces.InsertGap(nonce)
		return common.Hash{}, fmt.Errorf("send tx: %w", err)
	}
	c.lgr.Debug("Broadcast transaction", "tx", hash, "nonce", nonce, "gas", tx.Gas(), "feeCap", feeCap)
	return hash, nil
}

func (c *W3Client) WaitForReceipt(ctx context.Context, txHash common.Hash, confirmations uint64) (*types.Receipt, error) {
	return c.monitor.WaitConfirmed(ctx, txHash, confirmations)
}

func (c *W3Client) CallRead(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	var out []byte
	msg := &w3types.Message{From: c.From(), To: &to, Input: data}
	if err := c.rpc.CallCtx(ctx, eth.Call(msg, nil, nil).Returns(&out)); err != nil {
		if revert := asRevert(err); revert != nil {
			return nil, revert
		}
		return nil, err
	}
	return out, nil
}

func (c *W3Client) CodeAt(ctx context.Context, addr common.Address) ([]byte, error) {
	var code []byte
	if err := c.rpc.CallCtx(ctx, eth.Code(addr, nil).Returns(&code)); err != nil {
		return nil, err
	}
	return code, nil
}

func (c *W3Client) StorageAt(ctx context.Context, addr common.Address, slot common.Hash) (common.Hash, error) {
	var word common.Hash
	if err := c.rpc.CallCtx(ctx, eth.StorageAt(addr, slot, nil).Returns(&word)); err != nil {
		return common.Hash{}, err
	}
	return word, nil
}

// asRevert extracts an execution revert from an RPC error, or returns nil.
func asRevert(err error) *RevertError {
	var callErrs w3.CallErrors
	if errors.As(err, &callErrs) {
		for _, e := range callErrs {
			if e == nil {
				continue
			}
			if revert := asRevert(e); revert != nil {
				return revert
			}
		}
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if s, ok := dataErr.ErrorData().(string); ok {
			if data, decErr := hexutil.Decode(s); decErr == nil {
				return &RevertError{Data: data, Reason: revertReason(dataErr.Error())}
			}
		}
	}
	if strings.Contains(err.Error(), "execution reverted") {
		return &RevertError{Reason: revertReason(err.Error())}
	}
	return nil
}

func revertReason(msg string) string {
	_, reason, ok := strings.Cut(msg, "execution reverted:")
	if !ok {
		return ""
	}
	return strings.TrimSpace(reason)
}

// w3Source adapts the RPC client to what the confirmation monitor needs.
type w3Source struct {
	rpc *w3.Client
}

func (s *w3Source) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt
	if err := s.rpc.CallCtx(ctx, eth.TxReceipt(hash).Returns(&receipt)); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "not found") {
			return nil, ethereum.NotFound
		}
		return nil, err
	}
	if receipt == nil {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func (s *w3Source) BlockNumber(ctx context.Context) (uint64, error) {
	var num *big.Int
	if err := s.rpc.CallCtx(ctx, eth.BlockNumber().Returns(&num)); err != nil {
		return 0, err
	}
	return num.Uint64(), nil
}

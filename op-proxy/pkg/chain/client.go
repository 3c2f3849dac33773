package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/proxy"
)

// Client is the chain-facing boundary of the deployer and the upgrade orchestrator.
type Client interface {
	// SubmitTransaction signs and broadcasts a transaction from From(). A nil to creates a contract.
	// A transaction that would revert is refused before broadcast with a *RevertError.
	SubmitTransaction(ctx context.Context, to *common.Address, data []byte, value *big.Int) (common.Hash, error)
	// WaitForReceipt blocks until the transaction is included and buried under confirmations-1 blocks.
	WaitForReceipt(ctx context.Context, txHash common.Hash, confirmations uint64) (*types.Receipt, error)
	CallRead(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	CodeAt(ctx context.Context, addr common.Address) ([]byte, error)
	StorageAt(ctx context.Context, addr common.Address, slot common.Hash) (common.Hash, error)
	From() common.Address
}

var ErrNoCode = errors.New("no code at address")

// RevertError is an execution revert, either during gas estimation or a read call.
type RevertError struct {
	Data   []byte
	Reason string
}

func (e *RevertError) Error() string {
	if e.Reason != "" {
		return "execution reverted: " + e.Reason
	}
	return fmt.Sprintf("execution reverted: 0x%x", e.Data)
}

// Unwrap maps the revert data onto the error taxonomy.
func (e *RevertError) Unwrap() error {
	return proxy.ClassifyRevert(e.Data)
}

// ReadImplementation reads the EIP-1967 implementation slot of a proxy.
func ReadImplementation(ctx context.Context, c Client, proxyAddr common.Address) (common.Address, error) {
	word, err := c.StorageAt(ctx, proxyAddr, proxy.ImplementationSlot)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to read implementation slot of %s: %w", proxyAddr, err)
	}
	return proxy.AddressFromSlot(word), nil
}

// CodeHashAt returns the keccak256 of the code at addr, or ErrNoCode.
func CodeHashAt(ctx context.Context, c Client, addr common.Address) (common.Hash, error) {
	code, err := c.CodeAt(ctx, addr)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to read code at %s: %w", addr, err)
	}
	if len(code) == 0 {
		return common.Hash{}, fmt.Errorf("%w: %s", ErrNoCode, addr)
	}
	return crypto.Keccak256Hash(code), nil
}

// AdminOf asks the factory which account may upgrade proxyAddr.
func AdminOf(ctx context.Context, c Client, factory common.Address, proxyAddr common.Address) (common.Address, error) {
	input, err := proxy.FuncAdminOf.EncodeArgs(proxyAddr)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to encode adminOf: %w", err)
	}
	out, err := c.CallRead(ctx, factory, input)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to call adminOf: %w", err)
	}
	var admin common.Address
	if err := proxy.FuncAdminOf.DecodeReturns(out, &admin); err != nil {
		return common.Address{}, fmt.Errorf("failed to decode adminOf: %w", err)
	}
	return admin, nil
}

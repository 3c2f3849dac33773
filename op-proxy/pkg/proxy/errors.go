package proxy

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrArtifactNotFound             = errors.New("artifact not found")
	ErrAmbiguousArtifact            = errors.New("ambiguous artifact")
	ErrInitializerSignatureMismatch = errors.New("initializer signature mismatch")
	ErrVersionNotAdvancing          = errors.New("version not advancing")
	ErrStorageLayoutIncompatible    = errors.New("storage layout incompatible")
	ErrUnauthorized                 = errors.New("unauthorized")
	ErrConfirmationTimeout          = errors.New("confirmation timeout")
	ErrVerificationFailed           = errors.New("verification failed")
	ErrChainRejected                = errors.New("chain rejected transaction")

	ErrAlreadyDeployed    = errors.New("proxy already deployed")
	ErrAlreadyInitialized = errors.New("proxy already initialized")
	ErrNotInitialized     = errors.New("proxy not initialized")
	ErrRecordOutOfSync    = errors.New("record out of sync with chain")
	ErrRecordNotFound     = errors.New("record not found")
)

// TxError is a failure of a state-mutating transaction. TxHash is zero when the
// transaction was rejected before it was broadcast.
type TxError struct {
	Op     string
	TxHash common.Hash
	Err    error
}

func (e *TxError) Error() string {
	if e.TxHash == (common.Hash{}) {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s (tx %s): %v", e.Op, e.TxHash, e.Err)
}

func (e *TxError) Unwrap() error {
	return e.Err
}

// TxHashOf returns the transaction hash carried by err, if any.
func TxHashOf(err error) (common.Hash, bool) {
	var txErr *TxError
	if errors.As(err, &txErr) && txErr.TxHash != (common.Hash{}) {
		return txErr.TxHash, true
	}
	return common.Hash{}, false
}

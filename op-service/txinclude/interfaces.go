package txinclude

import (
	"context"
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// ConfirmationSource is everything a Monitor needs to wait for confirmations.
type ConfirmationSource interface {
	TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error)
	BlockNumber(context.Context) (uint64, error)
}

// Signer signs transactions on behalf of a single sender account.
type Signer interface {
	Address() common.Address
	Sign(context.Context, *types.Transaction) (*types.Transaction, error)
}

type keySigner struct {
	key    *ecdsa.PrivateKey
	from   common.Address
	signer types.Signer
}

// NewPkSigner signs with a local private key for the given chain.
func NewPkSigner(pk *ecdsa.PrivateKey, chainID *big.Int) Signer {
	return &keySigner{
		key:    pk,
		from:   crypto.PubkeyToAddress(pk.PublicKey),
		signer: types.LatestSignerForChainID(chainID),
	}
}

func (s *keySigner) Address() common.Address {
	return s.from
}

func (s *keySigner) Sign(ctx context.Context, tx *types.Transaction) (*types.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return types.SignTx(tx, s.signer, s.key)
}

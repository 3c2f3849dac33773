package proxy

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lmittmann/w3"
)

var (
	// DefaultFactory is the canonical ERC1967Factory deployment.
	DefaultFactory = common.HexToAddress("0x0000000000006396FF2a80c067f99B3d2Ab4Df24")

	// ImplementationSlot is the EIP-1967 implementation slot,
	// bytes32(uint256(keccak256("eip1967.proxy.implementation")) - 1).
	ImplementationSlot = common.HexToHash("0x360894a13ba1a3210667c828492db98dca3e2076cc3735a920a3ca505d382bbc")
)

var (
	FuncDeployAndCall = w3.MustNewFunc("deployAndCall(address implementation, address admin, bytes data)", "address proxy")
	FuncUpgrade       = w3.MustNewFunc("upgrade(address proxy, address implementation)", "")
	FuncAdminOf       = w3.MustNewFunc("adminOf(address proxy)", "address admin")

	EventDeployed = w3.MustNewEvent("Deployed(address indexed proxy, address indexed implementation, address indexed admin)")
	EventUpgraded = w3.MustNewEvent("Upgraded(address indexed proxy, address indexed implementation)")
)

var (
	// SelectorUnauthorized is the ERC1967Factory Unauthorized() error.
	SelectorUnauthorized = []byte{0x82, 0xb4, 0x29, 0x00}
	// SelectorInvalidInitialization is the Initializable InvalidInitialization() error.
	SelectorInvalidInitialization = []byte{0xf9, 0x2e, 0xe8, 0xa9}
)

// ClassifyRevert maps revert data to the error kind it signals.
func ClassifyRevert(data []byte) error {
	switch {
	case bytes.HasPrefix(data, SelectorUnauthorized):
		return ErrUnauthorized
	case bytes.HasPrefix(data, SelectorInvalidInitialization):
		return ErrAlreadyInitialized
	default:
		return ErrChainRejected
	}
}

// AddressFromSlot decodes an address stored right-aligned in a storage word.
func AddressFromSlot(word common.Hash) common.Address {
	return common.BytesToAddress(word[12:])
}

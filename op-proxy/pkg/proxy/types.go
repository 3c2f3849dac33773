package proxy

import (
	"slices"

	"github.com/Masterminds/semver/v3"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/mantlenetworkio/proxy-ops/op-chain-ops/solc"
)

// ContractArtifact is one compiled release of a contract.
type ContractArtifact struct {
	Name             string
	Version          *semver.Version
	Bytecode         []byte
	DeployedBytecode []byte
	ABI              abi.ABI
	StorageLayout    *solc.StorageLayout
	// Source is the forge artifact path, e.g. "Box.sol/Box".
	Source string
}

// CodeHash is the keccak256 of the runtime bytecode.
func (a *ContractArtifact) CodeHash() common.Hash {
	return crypto.Keccak256Hash(a.DeployedBytecode)
}

// ProxyRecord is the persisted knowledge about one deployed proxy.
type ProxyRecord struct {
	Network               string              `json:"network"`
	Name                  string              `json:"name"`
	ProxyAddress          common.Address      `json:"proxyAddress"`
	Admin                 common.Address      `json:"admin"`
	CurrentImplementation common.Address      `json:"currentImplementation"`
	CurrentVersion        *semver.Version     `json:"currentVersion"`
	Initialized           bool                `json:"initialized"`
	Verified              bool                `json:"verified"`
	ArtifactName          string              `json:"artifactName"`
	CodeHash              common.Hash         `json:"codeHash"`
	StorageLayout         *solc.StorageLayout `json:"storageLayout,omitempty"`
	DeployTx              common.Hash         `json:"deployTx"`
	History               []HistoryEntry      `json:"history"`
}

// Clone returns a copy that can be modified without affecting r.
// The storage layout is shared, layouts are never mutated in place.
func (r *ProxyRecord) Clone() *ProxyRecord {
	out := *r
	out.History = slices.Clone(r.History)
	return &out
}

// HistoryEntry records one implementation the proxy pointed to.
type HistoryEntry struct {
	Version        *semver.Version `json:"version"`
	Implementation common.Address  `json:"implementation"`
	// TxHash pointed the proxy at Implementation. Zero when a resumed upgrade never saw it.
	TxHash common.Hash `json:"txHash"`
	Forced bool        `json:"forced,omitempty"`
}

// PendingUpgrade journals an implementation that was deployed for an upgrade whose
// repoint has not been confirmed yet.
type PendingUpgrade struct {
	Version        *semver.Version `json:"version"`
	Implementation common.Address  `json:"implementation"`
	// CodeHash is the hash of the implementation's on-chain code.
	CodeHash         common.Hash         `json:"codeHash"`
	ArtifactName     string              `json:"artifactName"`
	ArtifactCodeHash common.Hash         `json:"artifactCodeHash"`
	StorageLayout    *solc.StorageLayout `json:"storageLayout,omitempty"`
	Forced           bool                `json:"forced,omitempty"`
	DeployTx         common.Hash         `json:"deployTx"`
	// RepointTx is set once a repoint was broadcast but not seen confirmed.
	RepointTx common.Hash `json:"repointTx,omitempty"`
}

// UpgradeTransition describes the step from the current to the new implementation.
type UpgradeTransition struct {
	FromVersion *semver.Version
	ToVersion   *semver.Version
	FromLayout  *solc.StorageLayout
	ToLayout    *solc.StorageLayout
}

// Key identifies a record.
type Key struct {
	Network string
	Name    string
}

func (k Key) String() string {
	return k.Network + "/" + k.Name
}

func (r *ProxyRecord) Key() Key {
	return Key{Network: r.Network, Name: r.Name}
}

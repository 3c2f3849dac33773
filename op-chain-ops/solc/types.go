package solc

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// AbiType keeps the raw ABI next to the parsed form so it can be written back unchanged.
type AbiType struct {
	Parsed abi.ABI
	Raw    json.RawMessage
}

func (a *AbiType) UnmarshalJSON(data []byte) error {
	a.Raw = append(a.Raw[:0], data...)
	return json.Unmarshal(data, &a.Parsed)
}

func (a AbiType) MarshalJSON() ([]byte, error) {
	if len(a.Raw) == 0 {
		return []byte("[]"), nil
	}
	return a.Raw, nil
}

// StorageLayout is the storageLayout section of compiler output.
type StorageLayout struct {
	Storage []StorageLayoutEntry         `json:"storage"`
	Types   map[string]StorageLayoutType `json:"types"`
}

// Lookup finds the variable with the given label.
func (s *StorageLayout) Lookup(label string) (StorageLayoutEntry, error) {
	for _, entry := range s.Storage {
		if entry.Label == label {
			return entry, nil
		}
	}
	return StorageLayoutEntry{}, fmt.Errorf("storage variable %q not found", label)
}

// TypeOf resolves a type id such as "t_uint256".
func (s *StorageLayout) TypeOf(id string) (StorageLayoutType, error) {
	if ty, ok := s.Types[id]; ok {
		return ty, nil
	}
	return StorageLayoutType{}, fmt.Errorf("storage type %q not found", id)
}

// SlotsUsed returns the number of slots the entry occupies, rounding partial slots up.
// Entries whose type is not in the types table count as one slot.
func (s *StorageLayout) SlotsUsed(entry StorageLayoutEntry) uint {
	ty, ok := s.Types[entry.Type]
	if !ok || ty.NumberOfBytes == 0 {
		return 1
	}
	return (entry.Offset + ty.NumberOfBytes + 31) / 32
}

type StorageLayoutEntry struct {
	AstId    uint   `json:"astId"`
	Contract string `json:"contract"`
	Label    string `json:"label"`
	Offset   uint   `json:"offset"`
	Slot     uint   `json:"slot,string"`
	Type     string `json:"type"`
}

type StorageLayoutType struct {
	Encoding      string               `json:"encoding"`
	Label         string               `json:"label"`
	NumberOfBytes uint                 `json:"numberOfBytes,string"`
	Key           string               `json:"key,omitempty"`
	Value         string               `json:"value,omitempty"`
	Base          string               `json:"base,omitempty"`
	Members       []StorageLayoutEntry `json:"members,omitempty"`
}

// CompilerOutputBytecode holds a bytecode object as emitted. Object stays a string since
// unlinked bytecode contains placeholders that are not valid hex.
type CompilerOutputBytecode struct {
	Object              string                    `json:"object"`
	LinkReferences      map[string]map[string]any `json:"linkReferences,omitempty"`
	ImmutableReferences map[string][]CodeRange    `json:"immutableReferences,omitempty"`
}

// CodeRange is a byte range inside deployed code.
type CodeRange struct {
	Start  uint `json:"start"`
	Length uint `json:"length"`
}

// ForgeArtifact is the subset of a forge build artifact this module reads.
type ForgeArtifact struct {
	Abi              AbiType                `json:"abi"`
	Bytecode         CompilerOutputBytecode `json:"bytecode"`
	DeployedBytecode CompilerOutputBytecode `json:"deployedBytecode"`
	Metadata         struct {
		Compiler struct {
			Version string `json:"version"`
		} `json:"compiler"`
		Settings struct {
			CompilationTarget map[string]string `json:"compilationTarget"`
			EVMVersion        string            `json:"evmVersion"`
		} `json:"settings"`
	} `json:"metadata"`
	StorageLayout *StorageLayout `json:"storageLayout,omitempty"`
}

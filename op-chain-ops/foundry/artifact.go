package foundry

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/mantlenetworkio/proxy-ops/op-chain-ops/solc"
)

var ErrLinkingUnsupported = errors.New("cannot load bytecode with unlinked library references")

// Artifact represents a foundry compilation artifact.
// JSON marshaling logic is implemented to maintain the ability
// to roundtrip serialize an artifact.
type Artifact struct {
	ABI              abi.ABI
	abi              json.RawMessage
	// StorageLayout is nil when the build did not emit one.
	StorageLayout    *solc.StorageLayout
	DeployedBytecode DeployedBytecode
	Bytecode         Bytecode
	Metadata         Metadata
}

type Metadata struct {
	Compiler struct {
		Version string `json:"version"`
	} `json:"compiler"`
	Settings struct {
		CompilationTarget map[string]string `json:"compilationTarget"`
		EVMVersion        string            `json:"evmVersion"`
	} `json:"settings"`
}

type DeployedBytecode struct {
	Object hexutil.Bytes `json:"object"`
}

type Bytecode struct {
	Object hexutil.Bytes `json:"object"`
}

func (a *Artifact) UnmarshalJSON(data []byte) error {
	var in solc.ForgeArtifact
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if len(in.Bytecode.LinkReferences) > 0 || len(in.DeployedBytecode.LinkReferences) > 0 {
		return ErrLinkingUnsupported
	}
	creation, err := decodeObject(in.Bytecode.Object)
	if err != nil {
		return fmt.Errorf("invalid bytecode: %w", err)
	}
	deployed, err := decodeObject(in.DeployedBytecode.Object)
	if err != nil {
		return fmt.Errorf("invalid deployed bytecode: %w", err)
	}
	a.ABI = in.Abi.Parsed
	a.abi = in.Abi.Raw
	a.StorageLayout = in.StorageLayout
	a.Bytecode = Bytecode{Object: creation}
	a.DeployedBytecode = DeployedBytecode{Object: deployed}
	a.Metadata.Compiler.Version = in.Metadata.Compiler.Version
	a.Metadata.Settings.CompilationTarget = in.Metadata.Settings.CompilationTarget
	a.Metadata.Settings.EVMVersion = in.Metadata.Settings.EVMVersion
	return nil
}

func (a Artifact) MarshalJSON() ([]byte, error) {
	abiRaw := a.abi
	if abiRaw == nil {
		abiRaw = json.RawMessage("[]")
	}
	return json.Marshal(struct {
		ABI              json.RawMessage    `json:"abi"`
		StorageLayout    *solc.StorageLayout `json:"storageLayout,omitempty"`
		DeployedBytecode DeployedBytecode   `json:"deployedBytecode"`
		Bytecode         Bytecode           `json:"bytecode"`
		Metadata         Metadata           `json:"metadata"`
	}{abiRaw, a.StorageLayout, a.DeployedBytecode, a.Bytecode, a.Metadata})
}

func decodeObject(obj string) ([]byte, error) {
	if obj == "" || obj == "0x" {
		return nil, nil
	}
	if !strings.HasPrefix(obj, "0x") {
		obj = "0x" + obj
	}
	return hexutil.Decode(obj)
}

package chaintest

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/mantlenetworkio/proxy-ops/op-chain-ops/foundry"
	"github.com/mantlenetworkio/proxy-ops/op-chain-ops/solc"
	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/proxy"
)

// Field is a state variable of a test contract. Type is a solidity type:
// "address", "bool", "uint256" or a fixed uint256 array such as "uint256[48]".
type Field struct {
	Label string
	Type  string
}

// Release describes a test contract release. Every release has an
// initialize(address owner) initializer and a version() accessor.
type Release struct {
	Name        string
	Version     string
	Fields      []Field
	UintVersion bool
	InitReverts bool
}

// Build produces the artifact a registry would resolve and the program the chain runs for it.
func (r Release) Build() (*proxy.ContractArtifact, *Program) {
	parsed, err := abi.JSON(strings.NewReader(r.abiJSON()))
	if err != nil {
		panic(fmt.Errorf("invalid test ABI: %w", err))
	}
	id := r.Name + "@" + r.Version
	for _, f := range r.Fields {
		id += ";" + f.Label + ":" + f.Type
	}
	creation := append([]byte{0x60, 0x80, 0x60, 0x40}, crypto.Keccak256([]byte("creation:"+id))...)
	runtime := append([]byte{0x60, 0x80, 0x60, 0x40, 0x52}, crypto.Keccak256([]byte("runtime:"+id))...)
	art := &proxy.ContractArtifact{
		Name:             r.Name,
		Version:          semver.MustParse(r.Version),
		Bytecode:         creation,
		DeployedBytecode: runtime,
		ABI:              parsed,
		StorageLayout:    r.Layout(),
		Source:           r.Name + ".sol/" + r.Name,
	}
	return art, &Program{
		CreationCode: creation,
		RuntimeCode:  runtime,
		ABI:          parsed,
		Version:      r.Version,
		Initializer:  "initialize",
		InitReverts:  r.InitReverts,
	}
}

// ForgeArtifact is the forge output file that resolves to the artifact of Build.
func (r Release) ForgeArtifact() []byte {
	art, _ := r.Build()
	data, err := json.Marshal(struct {
		ABI              json.RawMessage          `json:"abi"`
		StorageLayout    *solc.StorageLayout      `json:"storageLayout"`
		Bytecode         foundry.Bytecode         `json:"bytecode"`
		DeployedBytecode foundry.DeployedBytecode `json:"deployedBytecode"`
	}{
		ABI:              json.RawMessage(r.abiJSON()),
		StorageLayout:    art.StorageLayout,
		Bytecode:         foundry.Bytecode{Object: art.Bytecode},
		DeployedBytecode: foundry.DeployedBytecode{Object: art.DeployedBytecode},
	})
	if err != nil {
		panic(fmt.Errorf("invalid test artifact: %w", err))
	}
	return data
}

// Layout is the solc storage layout of the fields, one slot per value type.
func (r Release) Layout() *solc.StorageLayout {
	layout := &solc.StorageLayout{Types: make(map[string]solc.StorageLayoutType)}
	var slot uint
	for i, f := range r.Fields {
		typeID, ty, slots := solcType(f.Type)
		layout.Types[typeID] = ty
		if ty.Base != "" {
			_, base, _ := solcType("uint256")
			layout.Types[ty.Base] = base
		}
		layout.Storage = append(layout.Storage, solc.StorageLayoutEntry{
			AstId:    uint(i + 1),
			Contract: "src/" + r.Name + ".sol:" + r.Name,
			Label:    f.Label,
			Slot:     slot,
			Type:     typeID,
		})
		slot += slots
	}
	return layout
}

func solcType(t string) (string, solc.StorageLayoutType, uint) {
	switch t {
	case "address":
		return "t_address", solc.StorageLayoutType{Encoding: "inplace", Label: "address", NumberOfBytes: 20}, 1
	case "bool":
		return "t_bool", solc.StorageLayoutType{Encoding: "inplace", Label: "bool", NumberOfBytes: 1}, 1
	case "uint256":
		return "t_uint256", solc.StorageLayoutType{Encoding: "inplace", Label: "uint256", NumberOfBytes: 32}, 1
	}
	if n, ok := strings.CutPrefix(t, "uint256["); ok {
		size, err := strconv.Atoi(strings.TrimSuffix(n, "]"))
		if err != nil {
			panic(fmt.Errorf("invalid test type %q", t))
		}
		id := fmt.Sprintf("t_array(t_uint256)%d_storage", size)
		return id, solc.StorageLayoutType{
			Encoding:      "inplace",
			Label:         t,
			NumberOfBytes: uint(size) * 32,
			Base:          "t_uint256",
		}, uint(size)
	}
	panic(fmt.Errorf("unsupported test type %q", t))
}

type abiParam struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type abiEntry struct {
	Type            string     `json:"type"`
	Name            string     `json:"name"`
	Inputs          []abiParam `json:"inputs"`
	Outputs         []abiParam `json:"outputs"`
	StateMutability string     `json:"stateMutability"`
}

func (r Release) abiJSON() string {
	versionType := "string"
	if r.UintVersion {
		versionType = "uint256"
	}
	entries := []abiEntry{
		{Type: "function", Name: "initialize", Inputs: []abiParam{{"owner", "address"}}, Outputs: []abiParam{}, StateMutability: "nonpayable"},
		{Type: "function", Name: "version", Inputs: []abiParam{}, Outputs: []abiParam{{"", versionType}}, StateMutability: "view"},
	}
	for _, f := range r.Fields {
		if strings.Contains(f.Type, "[") {
			continue
		}
		entries = append(entries, abiEntry{
			Type: "function", Name: f.Label, Inputs: []abiParam{}, Outputs: []abiParam{{"", f.Type}}, StateMutability: "view",
		})
		if f.Label == "owner" {
			continue
		}
		entries = append(entries, abiEntry{
			Type: "function", Name: "set" + strings.ToUpper(f.Label[:1]) + f.Label[1:],
			Inputs: []abiParam{{f.Label, f.Type}}, Outputs: []abiParam{}, StateMutability: "nonpayable",
		})
	}
	out, err := json.Marshal(entries)
	if err != nil {
		panic(err)
	}
	return string(out)
}

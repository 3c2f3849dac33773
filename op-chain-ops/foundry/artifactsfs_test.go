package foundry

import (
	"encoding/json"
	"errors"
	"io/fs"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/ethereum/go-ethereum/log"

	"github.com/mantlenetworkio/proxy-ops/op-service/testlog"
)

func writeArtifact(t *testing.T, fsys afero.Fs, p string, compiler string, bytecode string) {
	t.Helper()
	art := map[string]any{
		"abi": []any{map[string]any{
			"type": "function", "name": "version", "inputs": []any{},
			"outputs":         []any{map[string]any{"name": "", "type": "string"}},
			"stateMutability": "view",
		}},
		"bytecode":         map[string]any{"object": bytecode},
		"deployedBytecode": map[string]any{"object": "0x6001"},
		"storageLayout": map[string]any{
			"storage": []any{map[string]any{"astId": 1, "contract": "Box", "label": "owner", "offset": 0, "slot": "0", "type": "t_address"}},
			"types":   map[string]any{"t_address": map[string]any{"encoding": "inplace", "label": "address", "numberOfBytes": "20"}},
		},
		"metadata": map[string]any{"compiler": map[string]any{"version": compiler}},
	}
	data, err := json.Marshal(art)
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fsys, p, data, 0o644))
}

func testArtifactsFS(t *testing.T) *ArtifactsFS {
	mem := afero.NewMemMapFs()
	writeArtifact(t, mem, "/out/Box.sol/Box.json", "0.8.25+commit.b61c2a91", "0x60016002")
	writeArtifact(t, mem, "/out/Box.sol/BoxLib.json", "0.8.25+commit.b61c2a91", "0x6003")
	writeArtifact(t, mem, "/out/Owned.sol/Owned.0.8.15.json", "0.8.15+commit.e14f2714", "0x6004")
	writeArtifact(t, mem, "/out/Owned.sol/Owned.0.8.25.json", "0.8.25+commit.b61c2a91", "0x6005")
	writeArtifact(t, mem, "/out/Solo.sol/Solo.0.8.25.json", "0.8.25+commit.b61c2a91", "0x6006")
	require.NoError(t, afero.WriteFile(mem, "/out/build-info.txt", []byte("ignored"), 0o644))
	return &ArtifactsFS{FS: afero.NewBasePathFs(mem, "/out")}
}

func TestArtifacts(t *testing.T) {
	logger := testlog.Logger(t, log.LevelWarn) // lower this log level to get verbose test dump of all artifacts
	af := testArtifactsFS(t)
	artifacts, err := af.ListArtifacts()
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"Box.sol", "Owned.sol", "Solo.sol"}, artifacts)
	for _, name := range artifacts {
		contracts, err := af.ListContracts(name)
		require.NoError(t, err, "failed to list %s", name)
		require.NotEmpty(t, contracts)
		for _, contract := range contracts {
			artifact, err := af.ReadArtifact(name, contract)
			if err != nil {
				if errors.Is(err, ErrMultipleOutputs) {
					logger.Info("multiple outputs", "name", name, "contract", contract, "err", err)
					continue
				}
				require.NoError(t, err, "failed to read artifact %s / %s", name, contract)
			}
			logger.Info("artifact",
				"name", name,
				"contract", contract,
				"compiler", artifact.Metadata.Compiler.Version,
			)
		}
	}
}

func TestReadArtifact(t *testing.T) {
	af := testArtifactsFS(t)

	t.Run("plain output", func(t *testing.T) {
		art, err := af.ReadArtifact("Box.sol", "Box")
		require.NoError(t, err)
		require.Equal(t, []byte{0x60, 0x01, 0x60, 0x02}, []byte(art.Bytecode.Object))
		require.Equal(t, []byte{0x60, 0x01}, []byte(art.DeployedBytecode.Object))
		require.Contains(t, art.ABI.Methods, "version")
		require.Len(t, art.StorageLayout.Storage, 1)
	})

	t.Run("contracts listed once", func(t *testing.T) {
		contracts, err := af.ListContracts("Owned.sol")
		require.NoError(t, err)
		require.Equal(t, []string{"Owned"}, contracts)
	})

	t.Run("several compiler outputs", func(t *testing.T) {
		_, err := af.ReadArtifact("Owned.sol", "Owned")
		require.ErrorIs(t, err, ErrMultipleOutputs)
	})

	t.Run("compiler qualified", func(t *testing.T) {
		art, err := af.ReadArtifact("Owned.sol", "Owned.0.8.15")
		require.NoError(t, err)
		require.Equal(t, "0.8.15+commit.e14f2714", art.Metadata.Compiler.Version)
	})

	t.Run("single versioned output", func(t *testing.T) {
		art, err := af.ReadArtifact("Solo.sol", "Solo")
		require.NoError(t, err)
		require.Equal(t, []byte{0x60, 0x06}, []byte(art.Bytecode.Object))
	})

	t.Run("missing", func(t *testing.T) {
		_, err := af.ReadArtifact("Box.sol", "Nope")
		require.ErrorIs(t, err, fs.ErrNotExist)
		_, err = af.ReadArtifact("Nope.sol", "Nope")
		require.ErrorIs(t, err, fs.ErrNotExist)
	})
}

func TestArtifactLinkingUnsupported(t *testing.T) {
	raw := `{"abi":[],"bytecode":{"object":"0x6001","linkReferences":{"src/Lib.sol":{"Lib":[{"start":1,"length":20}]}}},"deployedBytecode":{"object":"0x"},"metadata":{}}`
	var art Artifact
	require.ErrorIs(t, json.Unmarshal([]byte(raw), &art), ErrLinkingUnsupported)
}

func TestArtifactRoundTrip(t *testing.T) {
	af := testArtifactsFS(t)
	art, err := af.ReadArtifact("Box.sol", "Box")
	require.NoError(t, err)
	data, err := json.Marshal(art)
	require.NoError(t, err)
	var again Artifact
	require.NoError(t, json.Unmarshal(data, &again))
	require.Equal(t, art.Bytecode, again.Bytecode)
	require.Equal(t, art.StorageLayout, again.StorageLayout)
	require.Equal(t, art.Metadata, again.Metadata)
}

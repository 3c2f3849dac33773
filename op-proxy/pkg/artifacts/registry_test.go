package artifacts

import (
	"encoding/json"
	"strconv"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/mantlenetworkio/proxy-ops/op-chain-ops/foundry"
	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/proxy"
)

const testManifest = `
[[release]]
name = "Box"
version = "1"
artifact = "Box.sol/Box"

[[release]]
name = "Box"
version = "2.0.0"
artifact = "BoxV2.sol/BoxV2"

[[release]]
name = "Owned"
version = "1"
artifact = "Owned.sol/Owned"

[[release]]
name = "Owned"
version = "2"
artifact = "Owned.sol/Owned.0.8.25"

[[release]]
name = "Ghost"
version = "1"
artifact = "Ghost.sol/Ghost"

[[release]]
name = "Iface"
version = "1"
artifact = "IBox.sol/IBox"
`

func writeArtifact(t *testing.T, fsys afero.Fs, p string, bytecode string, labels ...string) {
	t.Helper()
	var storage []any
	for i, l := range labels {
		storage = append(storage, map[string]any{
			"astId": i + 1, "contract": "Box", "label": l, "offset": 0, "slot": strconv.Itoa(i), "type": "t_uint256",
		})
	}
	art := map[string]any{
		"abi": []any{map[string]any{
			"type": "function", "name": "version", "inputs": []any{},
			"outputs":         []any{map[string]any{"name": "", "type": "string"}},
			"stateMutability": "view",
		}},
		"bytecode":         map[string]any{"object": bytecode},
		"deployedBytecode": map[string]any{"object": "0x6001"},
		"storageLayout": map[string]any{
			"storage": storage,
			"types":   map[string]any{"t_uint256": map[string]any{"encoding": "inplace", "label": "uint256", "numberOfBytes": "32"}},
		},
		"metadata": map[string]any{"compiler": map[string]any{"version": "0.8.25"}},
	}
	data, err := json.Marshal(art)
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fsys, p, data, 0o644))
}

func testRegistry(t *testing.T) *Registry {
	mem := afero.NewMemMapFs()
	writeArtifact(t, mem, "/out/Box.sol/Box.json", "0x6080", "value")
	writeArtifact(t, mem, "/out/BoxV2.sol/BoxV2.json", "0x6081", "value", "extra")
	writeArtifact(t, mem, "/out/Owned.sol/Owned.0.8.15.json", "0x6082")
	writeArtifact(t, mem, "/out/Owned.sol/Owned.0.8.25.json", "0x6083")
	writeArtifact(t, mem, "/out/IBox.sol/IBox.json", "0x")
	m, err := ParseManifest(testManifest)
	require.NoError(t, err)
	reg, err := NewRegistry(&foundry.ArtifactsFS{FS: afero.NewBasePathFs(mem, "/out")}, m)
	require.NoError(t, err)
	return reg
}

func TestResolve(t *testing.T) {
	reg := testRegistry(t)

	art, err := reg.Resolve("Box", semver.MustParse("2"))
	require.NoError(t, err)
	require.Equal(t, "Box", art.Name)
	require.Equal(t, "2.0.0", art.Version.String())
	require.Equal(t, []byte{0x60, 0x81}, art.Bytecode)
	require.Equal(t, []byte{0x60, 0x01}, art.DeployedBytecode)
	require.Equal(t, "BoxV2.sol/BoxV2", art.Source)
	require.Len(t, art.StorageLayout.Storage, 2)
	require.Contains(t, art.ABI.Methods, "version")

	art, err = reg.Resolve("Owned", semver.MustParse("2"))
	require.NoError(t, err)
	require.Equal(t, []byte{0x60, 0x83}, art.Bytecode)
}

func TestResolveErrors(t *testing.T) {
	reg := testRegistry(t)
	tests := []struct {
		name    string
		version string
		err     error
	}{
		{"Box", "", proxy.ErrAmbiguousArtifact},
		{"Box", "3", proxy.ErrArtifactNotFound},
		{"Nope", "", proxy.ErrArtifactNotFound},
		{"Ghost", "1", proxy.ErrArtifactNotFound},
		{"Iface", "1", proxy.ErrArtifactNotFound},
		{"Owned", "1", proxy.ErrAmbiguousArtifact},
	}
	for _, tt := range tests {
		t.Run(tt.name+"@"+tt.version, func(t *testing.T) {
			var v *semver.Version
			if tt.version != "" {
				v = semver.MustParse(tt.version)
			}
			_, err := reg.Resolve(tt.name, v)
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func TestResolveUnversionedSingleRelease(t *testing.T) {
	reg := testRegistry(t)
	art, err := reg.Resolve("Iface", nil)
	require.ErrorIs(t, err, proxy.ErrArtifactNotFound)
	require.Nil(t, art)

	require.Len(t, reg.Releases("Box"), 2)
}

func TestResolveReusesParsedArtifact(t *testing.T) {
	mem := afero.NewMemMapFs()
	writeArtifact(t, mem, "/out/Box.sol/Box.json", "0x6080", "value")
	m, err := ParseManifest(testManifest)
	require.NoError(t, err)
	reg, err := NewRegistry(&foundry.ArtifactsFS{FS: afero.NewBasePathFs(mem, "/out")}, m)
	require.NoError(t, err)

	first, err := reg.Resolve("Box", semver.MustParse("1"))
	require.NoError(t, err)
	require.NoError(t, mem.Remove("/out/Box.sol/Box.json"))

	second, err := reg.Resolve("Box", semver.MustParse("1"))
	require.NoError(t, err)
	require.Equal(t, first.CodeHash(), second.CodeHash())

	_, err = reg.Resolve("Box", semver.MustParse("2"))
	require.ErrorIs(t, err, proxy.ErrArtifactNotFound)
}

func TestResolveRequiresStorageLayout(t *testing.T) {
	mem := afero.NewMemMapFs()
	bare := `{
  "abi": [],
  "bytecode": {"object": "0x6080"},
  "deployedBytecode": {"object": "0x6001"},
  "metadata": {"compiler": {"version": "0.8.25"}}
}`
	require.NoError(t, afero.WriteFile(mem, "/out/Box.sol/Box.json", []byte(bare), 0o644))
	writeArtifact(t, mem, "/out/BoxV2.sol/BoxV2.json", "0x6081")
	m, err := ParseManifest(testManifest)
	require.NoError(t, err)
	reg, err := NewRegistry(&foundry.ArtifactsFS{FS: afero.NewBasePathFs(mem, "/out")}, m)
	require.NoError(t, err)

	_, err = reg.Resolve("Box", semver.MustParse("1"))
	require.ErrorIs(t, err, proxy.ErrArtifactNotFound)
	require.ErrorContains(t, err, "storageLayout")

	// a contract without state variables still carries an empty layout
	art, err := reg.Resolve("Box", semver.MustParse("2"))
	require.NoError(t, err)
	require.NotNil(t, art.StorageLayout)
	require.Empty(t, art.StorageLayout.Storage)
}

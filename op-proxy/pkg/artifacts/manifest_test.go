package artifacts

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestLoadManifest(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/releases.toml", []byte(`
artifacts = "https://example.com/artifacts.tgz#sha256=abcd"

[[release]]
name = "Box"
version = "v1.2"
artifact = "Box.sol/Box"
`), 0o644))
	m, err := LoadManifest(fsys, "/releases.toml")
	require.NoError(t, err)
	require.Len(t, m.Releases, 1)
	require.Equal(t, "1.2.0", m.Releases[0].SemVer().String())
	require.True(t, m.Artifacts.IsRemote())
	require.Equal(t, "abcd", m.Artifacts.Checksum())

	_, err = LoadManifest(fsys, "/missing.toml")
	require.Error(t, err)
}

func TestParseManifestInvalid(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"missing name", "[[release]]\nversion = \"1\"\nartifact = \"Box.sol/Box\"\n"},
		{"bad version", "[[release]]\nname = \"Box\"\nversion = \"one\"\nartifact = \"Box.sol/Box\"\n"},
		{"bad artifact", "[[release]]\nname = \"Box\"\nversion = \"1\"\nartifact = \"Box\"\n"},
		{"duplicate", "[[release]]\nname = \"Box\"\nversion = \"1\"\nartifact = \"Box.sol/Box\"\n" +
			"[[release]]\nname = \"Box\"\nversion = \"1.0.0\"\nartifact = \"Box.sol/Box\"\n"},
		{"unknown key", "[[release]]\nname = \"Box\"\nversion = \"1\"\nartifact = \"Box.sol/Box\"\nsalt = 1\n"},
		{"bad locator", "artifacts = \"ftp://example.com\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest(tt.in)
			require.Error(t, err)
		})
	}
}

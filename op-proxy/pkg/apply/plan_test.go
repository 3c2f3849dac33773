package apply

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestLoadPlan(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/plan.toml", []byte(`
[[upgrade]]
name = "Box"
version = "v2"
force = true

[[upgrade]]
name = "Vault"
`), 0o644))
	plan, err := LoadPlan(fsys, "/plan.toml")
	require.NoError(t, err)
	require.Len(t, plan.Upgrades, 2)
	require.Equal(t, "2.0.0", plan.Upgrades[0].SemVer().String())
	require.True(t, plan.Upgrades[0].Force)
	require.Nil(t, plan.Upgrades[1].SemVer())
	require.Zero(t, plan.Concurrency)
}

func TestParsePlanInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
		err  string
	}{
		{"empty", ``, "no upgrades"},
		{"unknown key", "[[upgrade]]\nname = \"Box\"\nforced = true\n", "unknown plan keys"},
		{"missing name", "[[upgrade]]\nversion = \"1\"\n", "name must be set"},
		{"duplicate", "[[upgrade]]\nname = \"Box\"\n[[upgrade]]\nname = \"Box\"\n", "more than once"},
		{"bad version", "[[upgrade]]\nname = \"Box\"\nversion = \"one\"\n", "invalid version"},
		{"negative concurrency", "concurrency = -1\n[[upgrade]]\nname = \"Box\"\n", "negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePlan(tt.data)
			require.ErrorContains(t, err, tt.err)
		})
	}
}

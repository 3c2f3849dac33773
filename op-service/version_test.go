package op_service

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatVersion(t *testing.T) {
	require.Equal(t, "v1.0.0", FormatVersion("v1.0.0", "", "", ""))
	require.Equal(t, "v1.0.0-0123abcd-1700000000-dev",
		FormatVersion("v1.0.0", "0123abcdef0123", "1700000000", "dev"))
	require.Equal(t, "v1.0.0-abc-rc1", FormatVersion("v1.0.0", "abc", "", "rc1"))
}

func TestCurrentBuild(t *testing.T) {
	require.Equal(t, Version+"-"+Meta, CurrentBuild().String())
}

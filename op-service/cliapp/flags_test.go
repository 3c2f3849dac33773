package cliapp

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func TestProtectFlags(t *testing.T) {
	orig := &cli.StringFlag{Name: "network", Value: "sepolia"}
	flags := ProtectFlags([]cli.Flag{orig, &cli.BoolFlag{Name: "force"}})
	require.Len(t, flags, 2)
	cpy := flags[0].(*cli.StringFlag)
	require.NotSame(t, orig, cpy)
	require.Equal(t, "sepolia", cpy.Value)

	cpy.Value = "mainnet"
	require.Equal(t, "sepolia", orig.Value)
}

func TestProtectFlagsUnsupported(t *testing.T) {
	require.Panics(t, func() {
		ProtectFlags([]cli.Flag{&cli.Float64Flag{Name: "ratio"}})
	})
}

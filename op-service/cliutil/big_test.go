package cliutil

import (
	"flag"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/ethereum/go-ethereum/params"
)

func TestParseBigInt(t *testing.T) {
	huge, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	valid := map[string]*big.Int{
		"123456789012345678901234567890": huge,
		"0x1234":                         big.NewInt(0x1234),
		"30gwei":                         big.NewInt(30 * params.GWei),
		" 1.5 ":                          nil,
		"2 ether":                        new(big.Int).Mul(big.NewInt(2), big.NewInt(params.Ether)),
		"0":                              new(big.Int),
	}
	for in, want := range valid {
		t.Run(in, func(t *testing.T) {
			got, err := ParseBigInt(in)
			if want == nil {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Zerof(t, want.Cmp(got), "want %s, got %s", want, got)
		})
	}

	for _, in := range []string{"0xgibberish", "-5", "0x", "not-a-number", "gwei"} {
		t.Run("reject "+in, func(t *testing.T) {
			got, err := ParseBigInt(in)
			require.Error(t, err)
			require.Nil(t, got)
		})
	}

	_, err := ParseBigInt("  ")
	require.ErrorIs(t, err, ErrFlagBlank)
}

func TestBigIntFlag(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.String("gas-fee-cap", "100gwei", "")
	val, err := BigIntFlag(cli.NewContext(nil, fs, nil), "gas-fee-cap")
	require.NoError(t, err)
	require.Equal(t, big.NewInt(100*params.GWei), val)
}

package cliutil

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/params"
	"github.com/urfave/cli/v2"
)

var ErrFlagBlank = errors.New("cannot parse blank big int flag")

// BigIntFlag reads a big integer flag. Decimal, 0x-prefixed hex and
// values with a "gwei" or "ether" suffix are accepted, the result is in wei.
func BigIntFlag(cliCtx *cli.Context, flagName string) (*big.Int, error) {
	return ParseBigInt(cliCtx.String(flagName))
}

func ParseBigInt(intStr string) (*big.Int, error) {
	intStr = strings.TrimSpace(intStr)
	if intStr == "" {
		return nil, ErrFlagBlank
	}
	unit := big.NewInt(1)
	lower := strings.ToLower(intStr)
	switch {
	case strings.HasSuffix(lower, "gwei"):
		unit = big.NewInt(params.GWei)
		intStr = strings.TrimSpace(intStr[:len(intStr)-len("gwei")])
	case strings.HasSuffix(lower, "ether"):
		unit = big.NewInt(params.Ether)
		intStr = strings.TrimSpace(intStr[:len(intStr)-len("ether")])
	}
	base := 10
	if strings.HasPrefix(intStr, "0x") {
		base = 16
		intStr = intStr[2:]
	}
	out, ok := new(big.Int).SetString(intStr, base)
	if !ok {
		return nil, fmt.Errorf("error parsing bigint flag '%s'", intStr)
	}
	if out.Sign() < 0 {
		return nil, fmt.Errorf("bigint flag must not be negative: %s", intStr)
	}
	return out.Mul(out, unit), nil
}

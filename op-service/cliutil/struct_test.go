package cliutil

import (
	"math/big"
	"testing"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/ethereum/go-ethereum/common"
)

type endpointConfig struct {
	RPCURL       string          `cli:"rpc-url"`
	DryRun       bool            `cli:"dry-run"`
	Retries      int             `cli:"retries"`
	ChainID      uint64          `cli:"chain-id"`
	PollInterval time.Duration   `cli:"poll-interval"`
	Factory      common.Address  `cli:"factory"`
	GasFeeCap    *big.Int        `cli:"gas-fee-cap"`
	MinVersion   *semver.Version `cli:"min-version"`
	Comment      string
}

func runPopulate(t *testing.T, start endpointConfig, args ...string) (endpointConfig, error) {
	app := &cli.App{
		Name: "test",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "rpc-url"},
			&cli.BoolFlag{Name: "dry-run"},
			&cli.IntFlag{Name: "retries"},
			&cli.Uint64Flag{Name: "chain-id"},
			&cli.DurationFlag{Name: "poll-interval"},
			&cli.StringFlag{Name: "factory"},
			&cli.StringFlag{Name: "gas-fee-cap"},
			&cli.StringFlag{Name: "min-version"},
		},
	}
	cfg := start
	var popErr error
	app.Action = func(cliCtx *cli.Context) error {
		popErr = PopulateStruct(&cfg, cliCtx)
		return nil
	}
	require.NoError(t, app.Run(append([]string{"op-proxy"}, args...)))
	return cfg, popErr
}

func TestPopulateStruct(t *testing.T) {
	factory := common.HexToAddress("0x0000000000006396ff2a80c067f99b3d2ab4df24")
	cfg, err := runPopulate(t, endpointConfig{},
		"--rpc-url=http://localhost:8545",
		"--dry-run",
		"--retries=3",
		"--chain-id=5000",
		"--poll-interval=2s",
		"--factory="+factory.Hex(),
		"--gas-fee-cap=2gwei",
		"--min-version=1.2.0",
	)
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8545", cfg.RPCURL)
	require.True(t, cfg.DryRun)
	require.Equal(t, 3, cfg.Retries)
	require.Equal(t, uint64(5000), cfg.ChainID)
	require.Equal(t, 2*time.Second, cfg.PollInterval)
	require.Equal(t, factory, cfg.Factory)
	require.Equal(t, big.NewInt(2_000_000_000), cfg.GasFeeCap)
	require.Equal(t, "1.2.0", cfg.MinVersion.String())
}

func TestPopulateStructKeepsUnsetFields(t *testing.T) {
	start := endpointConfig{RPCURL: "http://from-file", ChainID: 1, PollInterval: time.Second, Comment: "kept"}
	cfg, err := runPopulate(t, start, "--chain-id=7")
	require.NoError(t, err)
	require.Equal(t, endpointConfig{RPCURL: "http://from-file", ChainID: 7, PollInterval: time.Second, Comment: "kept"}, cfg)

	cfg, err = runPopulate(t, endpointConfig{})
	require.NoError(t, err)
	require.Equal(t, endpointConfig{}, cfg)
}

func TestPopulateStructErrors(t *testing.T) {
	_, err := runPopulate(t, endpointConfig{}, "--factory=not-an-address")
	require.ErrorContains(t, err, "invalid address")

	_, err = runPopulate(t, endpointConfig{}, "--gas-fee-cap=lots")
	require.ErrorContains(t, err, "error parsing bigint flag")

	_, err = runPopulate(t, endpointConfig{}, "--min-version=banana")
	require.ErrorContains(t, err, "MinVersion")

	require.Error(t, PopulateStruct(endpointConfig{}, nil))
}

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"

	"github.com/mantlenetworkio/proxy-ops/op-service/closer"
	"github.com/mantlenetworkio/proxy-ops/op-service/ioutil"
	oplog "github.com/mantlenetworkio/proxy-ops/op-service/log"
	opmetrics "github.com/mantlenetworkio/proxy-ops/op-service/metrics"

	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/artifacts"
	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/chain"
	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/metrics"
	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/state"
	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/verify"
)

// Dialer connects to the chain of a network. The returned CloseFn releases the connection.
type Dialer func(ctx context.Context, cfg NetworkConfig, lgr log.Logger) (chain.Client, closer.CloseFn, error)

// DialW3 dials the JSON-RPC endpoint of the network.
func DialW3(ctx context.Context, cfg NetworkConfig, lgr log.Logger) (chain.Client, closer.CloseFn, error) {
	key, err := cfg.Key()
	if err != nil {
		return nil, nil, err
	}
	gasFeeCap, err := cfg.GasFeeCapWei()
	if err != nil {
		return nil, nil, err
	}
	client, err := chain.Dial(ctx, chain.Config{
		RPCURL:       cfg.RPCURL,
		ChainID:      cfg.ChainID,
		PrivateKey:   key,
		GasFeeCap:    gasFeeCap,
		PollInterval: cfg.PollInterval,
	}, lgr)
	if err != nil {
		return nil, nil, err
	}
	return client, client.Close, nil
}

// env is what a command needs to talk to a network.
type env struct {
	cfg     NetworkConfig
	lgr     log.Logger
	metrics *metrics.Metrics
	client  chain.Client
	sender  *chain.Sender
	store   state.Store
	close   closer.CloseFn
}

func setupLogger(cliCtx *cli.Context) log.Logger {
	lgr := oplog.NewLogger(oplog.AppOut(cliCtx), oplog.ReadCLIConfig(cliCtx))
	oplog.SetGlobalLogHandler(lgr.Handler())
	return lgr
}

func openStore(cliCtx *cli.Context, fsys afero.Fs) (state.Store, error) {
	backend, err := state.ParseBackend(cliCtx.String(StateBackendFlagName))
	if err != nil {
		return nil, err
	}
	return state.Open(backend, fsys, cliCtx.String(StateDirFlagName))
}

// setupEnv opens the store, starts the metrics server if enabled and dials the network.
// Everything opened is released by env.close, or right away if a later step fails.
func (a *app) setupEnv(ctx context.Context, cliCtx *cli.Context) (*env, error) {
	lgr := setupLogger(cliCtx)
	cfg, err := ReadNetworkConfig(cliCtx, a.fs)
	if err != nil {
		return nil, err
	}
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	lgr = lgr.New("network", cfg.Name)

	metricsCfg := opmetrics.ReadCLIConfig(cliCtx)
	if err := metricsCfg.Check(); err != nil {
		return nil, err
	}

	closeAll := closer.CloseFn(closer.Nop)
	cancelClose, maybeClose := closer.CloseFn(func() error { return closeAll() }).Maybe()
	defer func() { _ = maybeClose() }()

	m := metrics.NewMetrics("")
	m.RecordInfo(a.version)
	if metricsCfg.Enabled {
		srv, err := opmetrics.StartServer(m.Registry(), metricsCfg.ListenAddr, metricsCfg.ListenPort)
		if err != nil {
			return nil, fmt.Errorf("failed to start metrics server: %w", err)
		}
		lgr.Info("Started metrics server", "endpoint", srv.HTTPEndpoint())
		closeAll.Stack(srv.Close)
	}

	store, err := openStore(cliCtx, a.fs)
	if err != nil {
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}
	closeAll.Stack(store.Close)

	client, closeClient, err := a.dial(ctx, cfg, lgr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Name, err)
	}
	closeAll.Stack(closeClient)

	sender := chain.NewSender(client, chain.WaitConfig{
		Confirmations: cfg.Confirmations,
		Timeout:       cfg.ConfirmationTimeout,
	}, m, lgr)
	m.RecordUp()
	cancelClose()
	return &env{
		cfg:     cfg,
		lgr:     lgr,
		metrics: m,
		client:  client,
		sender:  sender,
		store:   store,
		close:   closeAll,
	}, nil
}

// loadRegistry opens the release manifest and the forge output it refers to.
func (a *app) loadRegistry(ctx context.Context, cliCtx *cli.Context, lgr log.Logger) (*artifacts.Registry, error) {
	manifestPath := cliCtx.String(ManifestFlagName)
	if manifestPath == "" {
		return nil, fmt.Errorf("release manifest must be specified")
	}
	manifest, err := artifacts.LoadManifest(a.fs, manifestPath)
	if err != nil {
		return nil, err
	}
	loc := manifest.Artifacts
	if s := cliCtx.String(ArtifactsLocatorFlagName); s != "" {
		loc = new(artifacts.Locator)
		if err := loc.UnmarshalText([]byte(s)); err != nil {
			return nil, fmt.Errorf("failed to parse artifacts locator: %w", err)
		}
	}
	if loc == nil {
		return nil, fmt.Errorf("artifacts locator must be specified in the manifest or with --%s", ArtifactsLocatorFlagName)
	}
	opener := artifacts.NewOpener(a.fs, cliCtx.String(CacheDirFlagName), downloadProgressor(cliCtx, lgr))
	af, err := opener.Open(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifacts %s: %w", loc, err)
	}
	return artifacts.NewRegistry(af, manifest)
}

// downloadProgressor logs the progress when logs are machine readable, and draws a bar otherwise.
func downloadProgressor(cliCtx *cli.Context, lgr log.Logger) ioutil.Progressor {
	switch oplog.ReadCLIConfig(cliCtx).Format {
	case oplog.FormatJSON, oplog.FormatLogFmt:
		return ioutil.LogProgressor(lgr, "Downloading artifacts", 5*time.Second)
	default:
		return ioutil.BarProgressor(oplog.AppOut(cliCtx), "downloading artifacts")
	}
}

func (e *env) verifier(cliCtx *cli.Context) (*verify.Verifier, error) {
	return verify.New(e.client, verify.Config{
		Accessor:   cliCtx.String(VersionAccessorFlagName),
		MaxRetries: cliCtx.Uint64(VerifyRetriesFlagName),
		Interval:   cliCtx.Duration(VerifyIntervalFlagName),
	}, e.metrics, e.lgr)
}

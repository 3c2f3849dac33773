// Package deployer creates proxies and runs their initializer exactly once.
package deployer

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"

	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/chain"
	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/metrics"
	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/proxy"
	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/state"
)

const DefaultInitializer = "initialize"

type Config struct {
	Network string
	Factory common.Address
	// Admin may upgrade the proxy. Defaults to the signer.
	Admin common.Address
}

func (c *Config) Check() error {
	if c.Network == "" {
		return fmt.Errorf("network must be specified")
	}
	if c.Factory == (common.Address{}) {
		return fmt.Errorf("factory address must be specified")
	}
	return nil
}

type Deployer struct {
	cfg    Config
	sender *chain.Sender
	store  state.Store
	m      metrics.Metricer
	lgr    log.Logger
}

func New(cfg Config, sender *chain.Sender, store state.Store, m metrics.Metricer, lgr log.Logger) (*Deployer, error) {
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	if cfg.Admin == (common.Address{}) {
		cfg.Admin = sender.Client().From()
	}
	return &Deployer{cfg: cfg, sender: sender, store: store, m: m, lgr: lgr}, nil
}

// DeployProxy deploys art behind a new proxy. The proxy is created and initialized in a
// single factory transaction, so no uninitialized proxy is ever observable. Nothing is
// persisted unless every step confirmed.
func (d *Deployer) DeployProxy(ctx context.Context, art *proxy.ContractArtifact, initArgs []any, initializer string) (rec *proxy.ProxyRecord, err error) {
	opID := uuid.NewString()
	lgr := d.lgr.New("opID", opID, "network", d.cfg.Network, "contract", art.Name, "version", art.Version)
	defer func() {
		d.m.RecordOperation("deploy", metrics.Outcome(err))
	}()

	if initializer == "" {
		initializer = DefaultInitializer
	}
	initData, err := EncodeCall(art.ABI, initializer, initArgs)
	if err != nil {
		return nil, err
	}
	// later upgrades are checked against the recorded layout
	if art.StorageLayout == nil {
		return nil, fmt.Errorf("%w: %s has no storage layout", proxy.ErrArtifactNotFound, art.Source)
	}
	key := proxy.Key{Network: d.cfg.Network, Name: art.Name}
	existing, err := d.store.Get(key)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: %s at %s", proxy.ErrAlreadyDeployed, key, existing.ProxyAddress)
	case !errors.Is(err, proxy.ErrRecordNotFound):
		return nil, err
	}

	lgr.Info("Deploying implementation")
	impl, _, err := DeployImplementation(ctx, d.sender, art, lgr)
	if err != nil {
		return nil, err
	}

	lgr.Info("Deploying proxy", "implementation", impl, "admin", d.cfg.Admin, "initializer", initializer)
	input, err := proxy.FuncDeployAndCall.EncodeArgs(impl, d.cfg.Admin, initData)
	if err != nil {
		return nil, fmt.Errorf("failed to encode deployAndCall: %w", err)
	}
	receipt, err := d.sender.Send(ctx, "deploy-proxy", &d.cfg.Factory, input)
	if err != nil {
		return nil, err
	}
	ev, err := proxy.ParseDeployed(receipt, d.cfg.Factory)
	if err != nil {
		return nil, &proxy.TxError{Op: "deploy-proxy", TxHash: receipt.TxHash, Err: err}
	}
	if ev.Implementation != impl || ev.Admin != d.cfg.Admin {
		return nil, &proxy.TxError{Op: "deploy-proxy", TxHash: receipt.TxHash,
			Err: fmt.Errorf("factory deployed %s with implementation %s and admin %s", ev.Proxy, ev.Implementation, ev.Admin)}
	}

	// the slot is the proxy's own account of what it runs
	onChain, err := chain.ReadImplementation(ctx, d.sender.Client(), ev.Proxy)
	if err != nil {
		return nil, err
	}
	if onChain != impl {
		return nil, fmt.Errorf("%w: proxy %s points at %s, expected %s", proxy.ErrRecordOutOfSync, ev.Proxy, onChain, impl)
	}
	codeHash, err := chain.CodeHashAt(ctx, d.sender.Client(), impl)
	if err != nil {
		return nil, err
	}

	rec = &proxy.ProxyRecord{
		Network:               d.cfg.Network,
		Name:                  art.Name,
		ProxyAddress:          ev.Proxy,
		Admin:                 ev.Admin,
		CurrentImplementation: impl,
		CurrentVersion:        art.Version,
		Initialized:           true,
		ArtifactName:          art.Source,
		CodeHash:              codeHash,
		StorageLayout:         art.StorageLayout,
		DeployTx:              receipt.TxHash,
		History: []proxy.HistoryEntry{{
			Version:        art.Version,
			Implementation: impl,
			TxHash:         receipt.TxHash,
		}},
	}
	if err := d.store.Put(rec); err != nil {
		return nil, fmt.Errorf("proxy %s deployed but not recorded: %w", ev.Proxy, err)
	}
	lgr.Info("Deployed proxy", "proxy", ev.Proxy, "implementation", impl, "tx", receipt.TxHash)
	return rec, nil
}

// CallInitializer runs the initializer through the proxy of a record that was never
// initialized. Records created by DeployProxy are always initialized, so for those this
// fails with proxy.ErrAlreadyInitialized without sending anything.
func (d *Deployer) CallInitializer(ctx context.Context, rec *proxy.ProxyRecord, art *proxy.ContractArtifact, initializer string, args []any) (*proxy.ProxyRecord, error) {
	if rec.Initialized {
		return nil, fmt.Errorf("%w: %s at %s", proxy.ErrAlreadyInitialized, rec.Key(), rec.ProxyAddress)
	}
	if initializer == "" {
		initializer = DefaultInitializer
	}
	data, err := EncodeCall(art.ABI, initializer, args)
	if err != nil {
		return nil, err
	}
	if _, err := d.sender.Send(ctx, "initialize", &rec.ProxyAddress, data); err != nil {
		return nil, err
	}
	next := rec.Clone()
	next.Initialized = true
	if err := d.store.Put(next); err != nil {
		return nil, err
	}
	return next, nil
}

// DeployImplementation creates art's contract and returns its address and creation tx.
func DeployImplementation(ctx context.Context, sender *chain.Sender, art *proxy.ContractArtifact, lgr log.Logger) (common.Address, common.Hash, error) {
	receipt, err := sender.Send(ctx, "deploy-implementation", nil, art.Bytecode)
	if err != nil {
		return common.Address{}, common.Hash{}, err
	}
	addr := receipt.ContractAddress
	if addr == (common.Address{}) {
		return common.Address{}, common.Hash{}, &proxy.TxError{Op: "deploy-implementation", TxHash: receipt.TxHash,
			Err: fmt.Errorf("%w: no contract created", proxy.ErrChainRejected)}
	}
	codeHash, err := chain.CodeHashAt(ctx, sender.Client(), addr)
	if err != nil {
		return common.Address{}, common.Hash{}, err
	}
	if codeHash != art.CodeHash() {
		lgr.Warn("Deployed code differs from the artifact runtime code",
			"implementation", addr, "codeHash", codeHash, "artifactCodeHash", art.CodeHash())
	}
	lgr.Info("Deployed implementation", "implementation", addr, "tx", receipt.TxHash)
	return addr, receipt.TxHash, nil
}

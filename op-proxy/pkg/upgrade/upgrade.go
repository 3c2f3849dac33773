// Package upgrade repoints existing proxies to new implementations.
package upgrade

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"

	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/chain"
	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/deployer"
	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/layout"
	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/metrics"
	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/proxy"
	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/state"
)

type Config struct {
	Network string
	Factory common.Address
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

// Orchestrator upgrades proxies one step at a time: every check that needs no
// transaction runs first, then the implementation is deployed, journaled, and the
// proxy repointed. An interrupted upgrade resumes from the journal.
type Orchestrator struct {
	cfg    Config
	sender *chain.Sender
	store  state.Store
	m      metrics.Metricer
	lgr    log.Logger
}

func New(cfg Config, sender *chain.Sender, store state.Store, m metrics.Metricer, lgr log.Logger) (*Orchestrator, error) {
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	return &Orchestrator{cfg: cfg, sender: sender, store: store, m: m, lgr: lgr}, nil
}

// Upgrade points the proxy of rec at an implementation of art and returns the updated
// record. When the proxy already runs art it returns rec unchanged without sending
// anything. A version that does not advance is refused unless force is set.
func (o *Orchestrator) Upgrade(ctx context.Context, rec *proxy.ProxyRecord, art *proxy.ContractArtifact, force bool) (out *proxy.ProxyRecord, err error) {
	opID := uuid.NewString()
	lgr := o.lgr.New("opID", opID, "network", rec.Network, "contract", rec.Name, "proxy", rec.ProxyAddress,
		"from", rec.CurrentVersion, "to", art.Version)
	outcome := metrics.OutcomeSuccess
	defer func() {
		if err != nil {
			outcome = metrics.OutcomeError
		}
		o.m.RecordOperation("upgrade", outcome)
	}()

	if rec.Network != o.cfg.Network {
		return nil, fmt.Errorf("record %s belongs to network %s, not %s", rec.Key(), rec.Network, o.cfg.Network)
	}
	if art.Name != rec.Name {
		return nil, fmt.Errorf("artifact %s cannot upgrade %s", art.Name, rec.Key())
	}
	if rec.CurrentVersion == nil || art.Version == nil {
		return nil, fmt.Errorf("upgrade of %s needs both versions, have %v and %v", rec.Key(), rec.CurrentVersion, art.Version)
	}
	if !rec.Initialized {
		return nil, fmt.Errorf("%w: %s", proxy.ErrNotInitialized, rec.Key())
	}

	client := o.sender.Client()
	pending, err := o.store.GetPending(rec.Key())
	if err != nil {
		return nil, err
	}
	rec, pending, err = o.reconcile(ctx, rec, pending, lgr)
	if err != nil {
		return nil, err
	}

	if proxy.SameVersion(art.Version, rec.CurrentVersion) {
		current, err := chain.CodeHashAt(ctx, client, rec.CurrentImplementation)
		if err != nil {
			return nil, err
		}
		if current == art.CodeHash() {
			lgr.Info("Proxy already runs this release, nothing to do", "implementation", rec.CurrentImplementation)
			outcome = metrics.OutcomeNoop
			return rec, nil
		}
	}

	if !art.Version.GreaterThan(rec.CurrentVersion) {
		if !force {
			return nil, fmt.Errorf("%w: %s is at %s, refusing %s", proxy.ErrVersionNotAdvancing, rec.Key(), rec.CurrentVersion, art.Version)
		}
		lgr.Warn("FORCED upgrade to a version that does not advance")
	}

	if err := layout.Check(proxy.UpgradeTransition{
		FromVersion: rec.CurrentVersion,
		ToVersion:   art.Version,
		FromLayout:  rec.StorageLayout,
		ToLayout:    art.StorageLayout,
	}); err != nil {
		return nil, err
	}

	admin, err := chain.AdminOf(ctx, client, o.cfg.Factory, rec.ProxyAddress)
	if err != nil {
		return nil, err
	}
	if admin != client.From() {
		return nil, fmt.Errorf("%w: %s is administered by %s, not by signer %s", proxy.ErrUnauthorized, rec.ProxyAddress, admin, client.From())
	}

	pending, err = o.implementation(ctx, rec, art, pending, force, lgr)
	if err != nil {
		return nil, err
	}

	lgr.Info("Repointing proxy", "implementation", pending.Implementation)
	input, err := proxy.FuncUpgrade.EncodeArgs(rec.ProxyAddress, pending.Implementation)
	if err != nil {
		return nil, fmt.Errorf("failed to encode upgrade: %w", err)
	}
	receipt, err := o.sender.Send(ctx, "upgrade-proxy", &o.cfg.Factory, input)
	if err != nil {
		if hash, ok := proxy.TxHashOf(err); ok {
			pending.RepointTx = hash
			if jerr := o.store.PutPending(rec.Key(), pending); jerr != nil {
				lgr.Error("Failed to journal repoint transaction", "tx", hash, "err", jerr)
			}
		}
		return nil, err
	}
	ev, err := proxy.ParseUpgraded(receipt, o.cfg.Factory)
	if err != nil {
		return nil, &proxy.TxError{Op: "upgrade-proxy", TxHash: receipt.TxHash, Err: err}
	}
	if ev.Proxy != rec.ProxyAddress || ev.Implementation != pending.Implementation {
		return nil, &proxy.TxError{Op: "upgrade-proxy", TxHash: receipt.TxHash,
			Err: fmt.Errorf("%w: factory upgraded %s to %s", proxy.ErrRecordOutOfSync, ev.Proxy, ev.Implementation)}
	}
	slot, err := chain.ReadImplementation(ctx, client, rec.ProxyAddress)
	if err != nil {
		return nil, err
	}
	if slot != pending.Implementation {
		return nil, fmt.Errorf("%w: proxy %s points at %s after upgrade to %s", proxy.ErrRecordOutOfSync, rec.ProxyAddress, slot, pending.Implementation)
	}

	pending.RepointTx = receipt.TxHash
	next, err := o.commit(rec, pending)
	if err != nil {
		return nil, err
	}
	lgr.Info("Upgraded proxy", "implementation", next.CurrentImplementation, "version", next.CurrentVersion, "tx", receipt.TxHash)
	return next, nil
}

// reconcile compares the record with the proxy's implementation slot. A slot that
// matches the journal means the repoint of an interrupted run landed: the record is
// completed from the journal before anything else happens.
func (o *Orchestrator) reconcile(ctx context.Context, rec *proxy.ProxyRecord, pending *proxy.PendingUpgrade, lgr log.Logger) (*proxy.ProxyRecord, *proxy.PendingUpgrade, error) {
	client := o.sender.Client()
	code, err := client.CodeAt(ctx, rec.ProxyAddress)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read proxy code: %w", err)
	}
	if len(code) == 0 {
		return nil, nil, fmt.Errorf("%w: no code at proxy %s", proxy.ErrRecordOutOfSync, rec.ProxyAddress)
	}
	slot, err := chain.ReadImplementation(ctx, client, rec.ProxyAddress)
	if err != nil {
		return nil, nil, err
	}
	switch {
	case slot == rec.CurrentImplementation:
		return rec, pending, nil
	case pending != nil && slot == pending.Implementation:
		lgr.Info("Repoint of a previous run landed, completing it", "implementation", slot, "version", pending.Version)
		next, err := o.commit(rec, pending)
		if err != nil {
			return nil, nil, err
		}
		return next, nil, nil
	default:
		return nil, nil, fmt.Errorf("%w: proxy %s points at %s, record has %s",
			proxy.ErrRecordOutOfSync, rec.ProxyAddress, slot, rec.CurrentImplementation)
	}
}

// implementation returns the journal entry of the implementation to repoint to,
// deploying one unless the journal holds a matching deployment.
func (o *Orchestrator) implementation(ctx context.Context, rec *proxy.ProxyRecord, art *proxy.ContractArtifact, pending *proxy.PendingUpgrade, force bool, lgr log.Logger) (*proxy.PendingUpgrade, error) {
	client := o.sender.Client()
	if pending != nil {
		if proxy.SameVersion(pending.Version, art.Version) && pending.ArtifactCodeHash == art.CodeHash() {
			onChain, err := chain.CodeHashAt(ctx, client, pending.Implementation)
			switch {
			case err == nil && onChain == pending.CodeHash:
				lgr.Info("Reusing implementation deployed by a previous run", "implementation", pending.Implementation, "tx", pending.DeployTx)
				pending.Forced = pending.Forced || force
				return pending, nil
			case err != nil && !errors.Is(err, chain.ErrNoCode):
				return nil, err
			}
		}
		lgr.Info("Discarding pending implementation", "implementation", pending.Implementation, "version", pending.Version)
	}

	lgr.Info("Deploying implementation")
	impl, tx, err := deployer.DeployImplementation(ctx, o.sender, art, lgr)
	if err != nil {
		return nil, err
	}
	codeHash, err := chain.CodeHashAt(ctx, client, impl)
	if err != nil {
		return nil, err
	}
	next := &proxy.PendingUpgrade{
		Version:          art.Version,
		Implementation:   impl,
		CodeHash:         codeHash,
		ArtifactName:     art.Source,
		ArtifactCodeHash: art.CodeHash(),
		StorageLayout:    art.StorageLayout,
		Forced:           force,
		DeployTx:         tx,
	}
	if err := o.store.PutPending(rec.Key(), next); err != nil {
		return nil, fmt.Errorf("implementation %s deployed but not journaled: %w", impl, err)
	}
	return next, nil
}

// commit persists the record as pointing at the journaled implementation and clears the journal.
func (o *Orchestrator) commit(rec *proxy.ProxyRecord, p *proxy.PendingUpgrade) (*proxy.ProxyRecord, error) {
	next := rec.Clone()
	next.CurrentImplementation = p.Implementation
	next.CurrentVersion = p.Version
	next.CodeHash = p.CodeHash
	next.ArtifactName = p.ArtifactName
	next.StorageLayout = p.StorageLayout
	next.Verified = false
	next.History = append(next.History, proxy.HistoryEntry{
		Version:        p.Version,
		Implementation: p.Implementation,
		TxHash:         p.RepointTx,
		Forced:         p.Forced,
	})
	if err := o.store.Put(next); err != nil {
		return nil, fmt.Errorf("proxy %s upgraded but not recorded: %w", rec.ProxyAddress, err)
	}
	if err := o.store.ClearPending(rec.Key()); err != nil {
		return nil, err
	}
	return next, nil
}

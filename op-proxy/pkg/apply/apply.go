// Package apply runs a plan of upgrades of independent proxies concurrently.
package apply

import (
	"context"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/proxy"
	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/state"
	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/verify"
)

const DefaultConcurrency = 4

type Resolver interface {
	Resolve(name string, version *semver.Version) (*proxy.ContractArtifact, error)
}

type Upgrader interface {
	Upgrade(ctx context.Context, rec *proxy.ProxyRecord, art *proxy.ContractArtifact, force bool) (*proxy.ProxyRecord, error)
}

type Verifier interface {
	Verify(ctx context.Context, rec *proxy.ProxyRecord, expected *semver.Version) error
}

// Result is the outcome of one step.
type Result struct {
	Name  string
	Proxy common.Address
	From  *semver.Version
	To    *semver.Version
	// Upgraded is false when the proxy already ran the requested release.
	Upgraded bool
	Verified bool
	Err      error
}

type Applier struct {
	network  string
	store    state.Store
	resolver Resolver
	upgrader Upgrader
	verifier Verifier
	lgr      log.Logger
}

// NewApplier creates an Applier. verifier may be nil if no plan asks for verification.
func NewApplier(network string, store state.Store, resolver Resolver, upgrader Upgrader, verifier Verifier, lgr log.Logger) *Applier {
	return &Applier{
		network:  network,
		store:    store,
		resolver: resolver,
		upgrader: upgrader,
		verifier: verifier,
		lgr:      lgr,
	}
}

// Apply runs every step of the plan, at most plan.Concurrency at a time. A failing step does
// not stop the others. The results are in plan order; the error aggregates every failed step.
func (a *Applier) Apply(ctx context.Context, plan *Plan) ([]Result, error) {
	if err := plan.Check(); err != nil {
		return nil, err
	}
	if plan.Verify && a.verifier == nil {
		return nil, fmt.Errorf("plan requests verification but no verifier is configured")
	}
	limit := plan.Concurrency
	if limit == 0 {
		limit = DefaultConcurrency
	}

	results := make([]Result, len(plan.Upgrades))
	var g errgroup.Group
	g.SetLimit(limit)
	for i := range plan.Upgrades {
		step := plan.Upgrades[i]
		g.Go(func() error {
			results[i] = a.step(ctx, step, plan.Verify)
			return nil
		})
	}
	_ = g.Wait()

	var result *multierror.Error
	for _, r := range results {
		if r.Err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", r.Name, r.Err))
		}
	}
	return results, result.ErrorOrNil()
}

func (a *Applier) step(ctx context.Context, step Step, verifyAfter bool) Result {
	res := Result{Name: step.Name}
	lgr := a.lgr.New("contract", step.Name)

	rec, err := a.store.Get(proxy.Key{Network: a.network, Name: step.Name})
	if err != nil {
		res.Err = err
		return res
	}
	res.Proxy = rec.ProxyAddress
	res.From = rec.CurrentVersion

	art, err := a.resolver.Resolve(step.Name, step.SemVer())
	if err != nil {
		res.Err = err
		return res
	}
	next, err := a.upgrader.Upgrade(ctx, rec, art, step.Force)
	if err != nil {
		res.Err = err
		return res
	}
	res.To = next.CurrentVersion
	res.Upgraded = next.CurrentImplementation != rec.CurrentImplementation
	if !verifyAfter {
		lgr.Info("Applied upgrade step", "from", res.From, "to", res.To)
		return res
	}
	if err := a.verifier.Verify(ctx, next, next.CurrentVersion); err != nil {
		res.Err = err
		return res
	}
	if _, err := verify.MarkVerified(a.store, next); err != nil {
		res.Err = err
		return res
	}
	res.Verified = true
	lgr.Info("Applied and verified upgrade step", "from", res.From, "to", res.To)
	return res
}

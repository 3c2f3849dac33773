// Package verify confirms through a proxy that it runs the expected version.
package verify

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/log"
	"github.com/lmittmann/w3"

	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/chain"
	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/metrics"
	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/proxy"
	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/state"
)

const DefaultAccessor = "version"

type Config struct {
	// Accessor is a view method without inputs returning the version as a string or an integer.
	Accessor   string
	MaxRetries uint64
	Interval   time.Duration
}

func DefaultConfig() Config {
	return Config{
		Accessor:   DefaultAccessor,
		MaxRetries: 5,
		Interval:   time.Second,
	}
}

type Verifier struct {
	client chain.Client
	cfg    Config
	m      metrics.Metricer
	lgr    log.Logger

	asString *w3.Func
	asUint   *w3.Func
}

func New(client chain.Client, cfg Config, m metrics.Metricer, lgr log.Logger) (*Verifier, error) {
	if cfg.Accessor == "" {
		cfg.Accessor = DefaultAccessor
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	asString, err := w3.NewFunc(cfg.Accessor+"()", "string")
	if err != nil {
		return nil, fmt.Errorf("invalid version accessor %q: %w", cfg.Accessor, err)
	}
	asUint, err := w3.NewFunc(cfg.Accessor+"()", "uint256")
	if err != nil {
		return nil, fmt.Errorf("invalid version accessor %q: %w", cfg.Accessor, err)
	}
	return &Verifier{client: client, cfg: cfg, m: m, lgr: lgr, asString: asString, asUint: asUint}, nil
}

// Verify reads the version accessor through the proxy of rec and compares it with expected.
// Reads have no side effects, so failed or mismatching reads are retried with backoff.
// Any remaining failure is proxy.ErrVerificationFailed.
func (v *Verifier) Verify(ctx context.Context, rec *proxy.ProxyRecord, expected *semver.Version) (err error) {
	lgr := v.lgr.New("proxy", rec.ProxyAddress, "expected", expected)
	defer func() {
		v.m.RecordOperation("verify", metrics.Outcome(err))
	}()
	if expected == nil {
		return fmt.Errorf("%w: no expected version for %s", proxy.ErrVerificationFailed, rec.ProxyAddress)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = v.cfg.Interval
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, v.cfg.MaxRetries), ctx)

	var reported string
	op := func() error {
		got, err := v.readVersion(ctx, rec)
		v.m.RecordVerificationAttempt(err == nil && got.Equal(expected))
		if err != nil {
			return err
		}
		reported = got.Original()
		if !got.Equal(expected) {
			return fmt.Errorf("proxy reports version %s", got.Original())
		}
		return nil
	}
	notify := func(err error, next time.Duration) {
		lgr.Warn("Version check failed, retrying", "err", err, "in", next)
	}
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return fmt.Errorf("%w: %s expected %s: %w", proxy.ErrVerificationFailed, rec.ProxyAddress, expected, err)
	}
	lgr.Info("Verified proxy version", "reported", reported)
	return nil
}

func (v *Verifier) readVersion(ctx context.Context, rec *proxy.ProxyRecord) (*semver.Version, error) {
	out, err := v.client.CallRead(ctx, rec.ProxyAddress, v.asString.Selector[:])
	if err != nil {
		return nil, fmt.Errorf("failed to call %s(): %w", v.cfg.Accessor, err)
	}
	var s string
	if err := v.asString.DecodeReturns(out, &s); err == nil {
		parsed, err := proxy.ParseVersion(s)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		return parsed, nil
	}
	var n *big.Int
	if err := v.asUint.DecodeReturns(out, &n); err != nil || n == nil || !n.IsUint64() {
		return nil, backoff.Permanent(fmt.Errorf("cannot decode %s() output 0x%x", v.cfg.Accessor, out))
	}
	return semver.New(n.Uint64(), 0, 0, "", ""), nil
}

// MarkVerified persists that the proxy of rec passed verification.
func MarkVerified(store state.Store, rec *proxy.ProxyRecord) (*proxy.ProxyRecord, error) {
	next := rec.Clone()
	next.Verified = true
	if err := store.Put(next); err != nil {
		return nil, err
	}
	return next, nil
}

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/Masterminds/semver/v3"
	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"

	"github.com/mantlenetworkio/proxy-ops/op-service/ctxinterrupt"

	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/apply"
	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/deployer"
	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/inspect"
	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/proxy"
	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/state"
	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/upgrade"
	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/verify"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseAddressArg(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid proxy address %q", s)
	}
	return common.HexToAddress(s), nil
}

// verifyAndMark reads the version back through the proxy and persists the verified flag.
func (e *env) verifyAndMark(ctx context.Context, cliCtx *cli.Context, rec *proxy.ProxyRecord, expected *semver.Version) (*proxy.ProxyRecord, error) {
	v, err := e.verifier(cliCtx)
	if err != nil {
		return nil, err
	}
	if err := v.Verify(ctx, rec, expected); err != nil {
		return nil, err
	}
	// a check against another version says nothing about the recorded one
	if !proxy.SameVersion(expected, rec.CurrentVersion) {
		e.lgr.Warn("Proxy reports a version other than the recorded one, record left unverified",
			"proxy", rec.ProxyAddress, "reported", expected, "recorded", rec.CurrentVersion)
		return rec, nil
	}
	return verify.MarkVerified(e.store, rec)
}

// DeployCLI handles `deploy <contract[@version]> [initArgs...]`.
func (a *app) DeployCLI(cliCtx *cli.Context) error {
	if cliCtx.NArg() < 1 {
		return fmt.Errorf("usage: deploy <contract[@version]> [initArgs...]")
	}
	ref, err := proxy.ParseContractRef(cliCtx.Args().First())
	if err != nil {
		return err
	}
	initArgs := make([]any, 0, cliCtx.NArg()-1)
	for _, arg := range cliCtx.Args().Tail() {
		initArgs = append(initArgs, arg)
	}

	ctx := ctxinterrupt.WithCancelOnInterrupt(cliCtx.Context)
	e, err := a.setupEnv(ctx, cliCtx)
	if err != nil {
		return err
	}
	defer func() { _ = e.close() }()

	reg, err := a.loadRegistry(ctx, cliCtx, e.lgr)
	if err != nil {
		return err
	}
	art, err := reg.Resolve(ref.Name, ref.Version)
	if err != nil {
		return err
	}
	d, err := deployer.New(deployer.Config{
		Network: e.cfg.Name,
		Factory: e.cfg.Factory,
		Admin:   e.cfg.Admin,
	}, e.sender, e.store, e.metrics, e.lgr)
	if err != nil {
		return err
	}
	rec, err := d.DeployProxy(ctx, art, initArgs, cliCtx.String(InitializerFlagName))
	if err != nil {
		return fmt.Errorf("failed to deploy %s: %w", ref, err)
	}
	if !cliCtx.Bool(SkipVerifyFlagName) {
		if rec, err = e.verifyAndMark(ctx, cliCtx, rec, rec.CurrentVersion); err != nil {
			return err
		}
	}
	return writeJSON(cliCtx.App.Writer, rec)
}

// UpgradeCLI handles `upgrade <proxyAddress> <contract[@version]>`.
func (a *app) UpgradeCLI(cliCtx *cli.Context) error {
	if cliCtx.NArg() != 2 {
		return fmt.Errorf("usage: upgrade <proxyAddress> <contract[@version]>")
	}
	proxyAddr, err := parseAddressArg(cliCtx.Args().Get(0))
	if err != nil {
		return err
	}
	ref, err := proxy.ParseContractRef(cliCtx.Args().Get(1))
	if err != nil {
		return err
	}

	ctx := ctxinterrupt.WithCancelOnInterrupt(cliCtx.Context)
	e, err := a.setupEnv(ctx, cliCtx)
	if err != nil {
		return err
	}
	defer func() { _ = e.close() }()

	rec, err := state.FindByProxy(e.store, e.cfg.Name, proxyAddr)
	if err != nil {
		return err
	}
	if rec.Name != ref.Name {
		return fmt.Errorf("proxy %s runs %s, not %s", proxyAddr, rec.Name, ref.Name)
	}
	reg, err := a.loadRegistry(ctx, cliCtx, e.lgr)
	if err != nil {
		return err
	}
	art, err := reg.Resolve(ref.Name, ref.Version)
	if err != nil {
		return err
	}
	orch, err := upgrade.New(upgrade.Config{
		Network: e.cfg.Name,
		Factory: e.cfg.Factory,
	}, e.sender, e.store, e.metrics, e.lgr)
	if err != nil {
		return err
	}
	next, err := orch.Upgrade(ctx, rec, art, cliCtx.Bool(ForceFlagName))
	if err != nil {
		return fmt.Errorf("failed to upgrade %s to %s: %w", proxyAddr, ref, err)
	}
	if !cliCtx.Bool(SkipVerifyFlagName) {
		if next, err = e.verifyAndMark(ctx, cliCtx, next, next.CurrentVersion); err != nil {
			return err
		}
	}
	return writeJSON(cliCtx.App.Writer, next)
}

// VerifyCLI handles `verify <proxyAddress>`.
func (a *app) VerifyCLI(cliCtx *cli.Context) error {
	if cliCtx.NArg() != 1 {
		return fmt.Errorf("usage: verify <proxyAddress>")
	}
	proxyAddr, err := parseAddressArg(cliCtx.Args().First())
	if err != nil {
		return err
	}

	ctx := ctxinterrupt.WithCancelOnInterrupt(cliCtx.Context)
	e, err := a.setupEnv(ctx, cliCtx)
	if err != nil {
		return err
	}
	defer func() { _ = e.close() }()

	rec, err := state.FindByProxy(e.store, e.cfg.Name, proxyAddr)
	if err != nil {
		return err
	}
	expected := rec.CurrentVersion
	if s := cliCtx.String(ExpectedVersionFlagName); s != "" {
		if expected, err = proxy.ParseVersion(s); err != nil {
			return err
		}
	}
	if _, err := e.verifyAndMark(ctx, cliCtx, rec, expected); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cliCtx.App.Writer, "%s reports version %s\n", proxyAddr, expected)
	return err
}

// InspectCLI handles `inspect [proxyAddress]`. It only reads the record store.
func (a *app) InspectCLI(cliCtx *cli.Context) error {
	format, err := inspect.ParseFormat(cliCtx.String(OutputFlagName))
	if err != nil {
		return err
	}
	network := cliCtx.String(NetworkFlagName)
	if network == "" && (!cliCtx.Bool(AllFlagName) || cliCtx.NArg() > 0) {
		return fmt.Errorf("network must be specified")
	}
	if cliCtx.Bool(AllFlagName) {
		network = ""
	}
	store, err := openStore(cliCtx, a.fs)
	if err != nil {
		return fmt.Errorf("failed to open record store: %w", err)
	}
	defer store.Close()

	if cliCtx.NArg() == 0 {
		return inspect.Records(cliCtx.App.Writer, store, network, format)
	}
	proxyAddr, err := parseAddressArg(cliCtx.Args().First())
	if err != nil {
		return err
	}
	rec, err := state.FindByProxy(store, cliCtx.String(NetworkFlagName), proxyAddr)
	if err != nil {
		return err
	}
	if format == inspect.FormatJSON {
		return writeJSON(cliCtx.App.Writer, rec)
	}
	inspect.History(cliCtx.App.Writer, rec)
	return nil
}

// ApplyCLI handles `apply --plan <file>`.
func (a *app) ApplyCLI(cliCtx *cli.Context) error {
	plan, err := apply.LoadPlan(a.fs, cliCtx.String(PlanFlagName))
	if err != nil {
		return err
	}

	ctx := ctxinterrupt.WithCancelOnInterrupt(cliCtx.Context)
	e, err := a.setupEnv(ctx, cliCtx)
	if err != nil {
		return err
	}
	defer func() { _ = e.close() }()

	reg, err := a.loadRegistry(ctx, cliCtx, e.lgr)
	if err != nil {
		return err
	}
	orch, err := upgrade.New(upgrade.Config{
		Network: e.cfg.Name,
		Factory: e.cfg.Factory,
	}, e.sender, e.store, e.metrics, e.lgr)
	if err != nil {
		return err
	}
	v, err := e.verifier(cliCtx)
	if err != nil {
		return err
	}
	results, err := apply.NewApplier(e.cfg.Name, e.store, reg, orch, v, e.lgr).Apply(ctx, plan)
	apply.WriteResults(cliCtx.App.Writer, results)
	return err
}

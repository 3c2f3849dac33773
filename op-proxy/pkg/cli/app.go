package cli

import (
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"

	"github.com/mantlenetworkio/proxy-ops/op-service/cliapp"
)

type app struct {
	version string
	fs      afero.Fs
	dial    Dialer
}

// NewApp creates the op-proxy CLI application.
func NewApp(versionWithMeta string) *cli.App {
	return newApp(versionWithMeta, afero.NewOsFs(), DialW3)
}

func newApp(versionWithMeta string, fsys afero.Fs, dial Dialer) *cli.App {
	a := &app{version: versionWithMeta, fs: fsys, dial: dial}
	cliApp := cli.NewApp()
	cliApp.Version = versionWithMeta
	cliApp.Name = "op-proxy"
	cliApp.Usage = "Deploys and upgrades contracts behind ERC-1967 proxies."
	cliApp.Flags = cliapp.ProtectFlags(GlobalFlags)
	cliApp.Commands = []*cli.Command{
		{
			Name:      "deploy",
			Usage:     "deploys a contract behind a new proxy and initializes it",
			ArgsUsage: "<contract[@version]> [initArgs...]",
			Flags:     cliapp.ProtectFlags(DeployFlags),
			Action:    a.DeployCLI,
		},
		{
			Name:      "upgrade",
			Usage:     "points a proxy at a new implementation",
			ArgsUsage: "<proxyAddress> <contract[@version]>",
			Flags:     cliapp.ProtectFlags(UpgradeFlags),
			Action:    a.UpgradeCLI,
		},
		{
			Name:      "verify",
			Usage:     "checks the version a proxy reports",
			ArgsUsage: "<proxyAddress>",
			Flags:     cliapp.ProtectFlags(VerifyFlags),
			Action:    a.VerifyCLI,
		},
		{
			Name:      "inspect",
			Usage:     "lists proxy records, or the history of one proxy",
			ArgsUsage: "[proxyAddress]",
			Flags:     cliapp.ProtectFlags(InspectFlags),
			Action:    a.InspectCLI,
		},
		{
			Name:   "apply",
			Usage:  "applies a plan of upgrades concurrently",
			Flags:  cliapp.ProtectFlags(ApplyFlags),
			Action: a.ApplyCLI,
		},
	}
	return cliApp
}

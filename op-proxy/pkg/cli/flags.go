package cli

import (
	"time"

	"github.com/urfave/cli/v2"

	oplog "github.com/mantlenetworkio/proxy-ops/op-service/log"
	opmetrics "github.com/mantlenetworkio/proxy-ops/op-service/metrics"

	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/deployer"
	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/inspect"
	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/state"
	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/verify"
)

const EnvVarPrefix = "OP_PROXY"

const (
	NetworkFlagName             = "network"
	NetworksFileFlagName        = "networks-file"
	RPCURLFlagName              = "rpc-url"
	ChainIDFlagName             = "chain-id"
	PrivateKeyFlagName          = "private-key"
	FactoryFlagName             = "factory"
	AdminFlagName               = "admin"
	ConfirmationsFlagName       = "confirmations"
	ConfirmationTimeoutFlagName = "confirmation-timeout"
	GasFeeCapFlagName           = "gas-fee-cap"
	PollIntervalFlagName        = "poll-interval"
	ManifestFlagName            = "manifest"
	ArtifactsLocatorFlagName    = "artifacts-locator"
	CacheDirFlagName            = "cache-dir"
	StateDirFlagName            = "state-dir"
	StateBackendFlagName        = "state-backend"

	InitializerFlagName     = "initializer"
	ForceFlagName           = "force"
	SkipVerifyFlagName      = "skip-verify"
	VersionAccessorFlagName = "verify.accessor"
	VerifyRetriesFlagName   = "verify.retries"
	VerifyIntervalFlagName  = "verify.interval"
	ExpectedVersionFlagName = "expected-version"
	OutputFlagName          = "output"
	AllFlagName             = "all"
	PlanFlagName            = "plan"
)

func prefixEnvVars(name string) []string {
	return []string{EnvVarPrefix + "_" + name}
}

var (
	NetworkFlag = &cli.StringFlag{
		Name:    NetworkFlagName,
		Usage:   "Network the records and transactions belong to",
		EnvVars: prefixEnvVars("NETWORK"),
	}
	NetworksFileFlag = &cli.StringFlag{
		Name:    NetworksFileFlagName,
		Usage:   "TOML or YAML file with per-network settings. Flags override file values",
		EnvVars: prefixEnvVars("NETWORKS_FILE"),
	}
	RPCURLFlag = &cli.StringFlag{
		Name:    RPCURLFlagName,
		Usage:   "RPC URL of the network",
		EnvVars: prefixEnvVars("RPC_URL"),
	}
	ChainIDFlag = &cli.Uint64Flag{
		Name:    ChainIDFlagName,
		Usage:   "Expected chain ID of the RPC endpoint, checked when set",
		EnvVars: prefixEnvVars("CHAIN_ID"),
	}
	PrivateKeyFlag = &cli.StringFlag{
		Name:    PrivateKeyFlagName,
		Usage:   "Hex private key of the signer",
		EnvVars: prefixEnvVars("PRIVATE_KEY"),
	}
	FactoryFlag = &cli.StringFlag{
		Name:    FactoryFlagName,
		Usage:   "Address of the ERC1967Factory",
		EnvVars: prefixEnvVars("FACTORY"),
	}
	AdminFlag = &cli.StringFlag{
		Name:    AdminFlagName,
		Usage:   "Admin of newly deployed proxies. Defaults to the signer",
		EnvVars: prefixEnvVars("ADMIN"),
	}
	ConfirmationsFlag = &cli.Uint64Flag{
		Name:    ConfirmationsFlagName,
		Usage:   "Number of confirmations to wait for after each transaction",
		Value:   DefaultConfirmations,
		EnvVars: prefixEnvVars("CONFIRMATIONS"),
	}
	ConfirmationTimeoutFlag = &cli.DurationFlag{
		Name:    ConfirmationTimeoutFlagName,
		Usage:   "Maximum time to wait for the confirmations of a transaction",
		Value:   DefaultConfirmationTimeout,
		EnvVars: prefixEnvVars("CONFIRMATION_TIMEOUT"),
	}
	GasFeeCapFlag = &cli.StringFlag{
		Name:    GasFeeCapFlagName,
		Usage:   "Maximum fee per gas, e.g. 30gwei. Unlimited when not set",
		EnvVars: prefixEnvVars("GAS_FEE_CAP"),
	}
	PollIntervalFlag = &cli.DurationFlag{
		Name:    PollIntervalFlagName,
		Usage:   "Interval between receipt polls",
		Value:   2 * time.Second,
		EnvVars: prefixEnvVars("POLL_INTERVAL"),
	}
	ManifestFlag = &cli.StringFlag{
		Name:    ManifestFlagName,
		Usage:   "Release manifest mapping contract versions to forge artifacts",
		EnvVars: prefixEnvVars("MANIFEST"),
	}
	ArtifactsLocatorFlag = &cli.StringFlag{
		Name:    ArtifactsLocatorFlagName,
		Usage:   "Locator of the forge output (file:// or http(s):// tarball). Overrides the manifest",
		EnvVars: prefixEnvVars("ARTIFACTS_LOCATOR"),
	}
	CacheDirFlag = &cli.StringFlag{
		Name:    CacheDirFlagName,
		Usage:   "Directory downloaded artifacts are cached in",
		Value:   DefaultCacheDir(),
		EnvVars: prefixEnvVars("CACHE_DIR"),
	}
	StateDirFlag = &cli.StringFlag{
		Name:    StateDirFlagName,
		Usage:   "Directory proxy records are persisted in",
		Value:   "state",
		EnvVars: prefixEnvVars("STATE_DIR"),
	}
	StateBackendFlag = &cli.StringFlag{
		Name:    StateBackendFlagName,
		Usage:   "Record store backend: 'json' or 'pebble'",
		Value:   state.BackendJSON.String(),
		EnvVars: prefixEnvVars("STATE_BACKEND"),
	}

	InitializerFlag = &cli.StringFlag{
		Name:  InitializerFlagName,
		Usage: "Initializer method called through the new proxy",
		Value: deployer.DefaultInitializer,
	}
	ForceFlag = &cli.BoolFlag{
		Name:  ForceFlagName,
		Usage: "Allow an upgrade to a version that does not advance",
	}
	SkipVerifyFlag = &cli.BoolFlag{
		Name:  SkipVerifyFlagName,
		Usage: "Do not read back the version through the proxy",
	}
	VersionAccessorFlag = &cli.StringFlag{
		Name:    VersionAccessorFlagName,
		Usage:   "View method returning the contract version",
		Value:   verify.DefaultAccessor,
		EnvVars: prefixEnvVars("VERIFY_ACCESSOR"),
	}
	VerifyRetriesFlag = &cli.Uint64Flag{
		Name:    VerifyRetriesFlagName,
		Usage:   "Retries of a failed version read",
		Value:   verify.DefaultConfig().MaxRetries,
		EnvVars: prefixEnvVars("VERIFY_RETRIES"),
	}
	VerifyIntervalFlag = &cli.DurationFlag{
		Name:    VerifyIntervalFlagName,
		Usage:   "Initial backoff between version reads",
		Value:   verify.DefaultConfig().Interval,
		EnvVars: prefixEnvVars("VERIFY_INTERVAL"),
	}
	ExpectedVersionFlag = &cli.StringFlag{
		Name:  ExpectedVersionFlagName,
		Usage: "Version the proxy must report. Defaults to the recorded version",
	}
	OutputFlag = &cli.StringFlag{
		Name:  OutputFlagName,
		Usage: "Output format: 'table' or 'json'",
		Value: string(inspect.FormatTable),
	}
	AllFlag = &cli.BoolFlag{
		Name:  AllFlagName,
		Usage: "List the records of every network",
	}
	PlanFlag = &cli.StringFlag{
		Name:     PlanFlagName,
		Usage:    "TOML plan of upgrades to apply",
		Required: true,
	}
)

var GlobalFlags = append([]cli.Flag{
	NetworkFlag,
	NetworksFileFlag,
	RPCURLFlag,
	ChainIDFlag,
	PrivateKeyFlag,
	FactoryFlag,
	AdminFlag,
	ConfirmationsFlag,
	ConfirmationTimeoutFlag,
	GasFeeCapFlag,
	PollIntervalFlag,
	ManifestFlag,
	ArtifactsLocatorFlag,
	CacheDirFlag,
	StateDirFlag,
	StateBackendFlag,
}, append(oplog.CLIFlags(EnvVarPrefix), opmetrics.CLIFlags(EnvVarPrefix)...)...)

var verifyFlags = []cli.Flag{
	VersionAccessorFlag,
	VerifyRetriesFlag,
	VerifyIntervalFlag,
}

var DeployFlags = append([]cli.Flag{
	InitializerFlag,
	SkipVerifyFlag,
}, verifyFlags...)

var UpgradeFlags = append([]cli.Flag{
	ForceFlag,
	SkipVerifyFlag,
}, verifyFlags...)

var VerifyFlags = append([]cli.Flag{
	ExpectedVersionFlag,
}, verifyFlags...)

var InspectFlags = []cli.Flag{
	OutputFlag,
	AllFlag,
}

var ApplyFlags = append([]cli.Flag{
	PlanFlag,
}, verifyFlags...)

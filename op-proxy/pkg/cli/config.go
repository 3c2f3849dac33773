package cli

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mantlenetworkio/proxy-ops/op-service/cliutil"
)

const (
	DefaultConfirmations       = 1
	DefaultConfirmationTimeout = 5 * time.Minute
)

func DefaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".op-proxy/cache"
	}
	return filepath.Join(home, ".op-proxy", "cache")
}

// NetworkConfig holds the settings of one network. The private key is never read from
// the networks file.
type NetworkConfig struct {
	Name                string         `toml:"-" yaml:"-"`
	RPCURL              string         `toml:"rpc-url" yaml:"rpc-url" cli:"rpc-url"`
	ChainID             uint64         `toml:"chain-id" yaml:"chain-id" cli:"chain-id"`
	Factory             common.Address `toml:"factory" yaml:"factory" cli:"factory"`
	Admin               common.Address `toml:"admin" yaml:"admin" cli:"admin"`
	Confirmations       uint64         `toml:"confirmations" yaml:"confirmations" cli:"confirmations"`
	ConfirmationTimeout time.Duration  `toml:"confirmation-timeout" yaml:"confirmation-timeout" cli:"confirmation-timeout"`
	GasFeeCap           string         `toml:"gas-fee-cap" yaml:"gas-fee-cap" cli:"gas-fee-cap"`
	PollInterval        time.Duration  `toml:"poll-interval" yaml:"poll-interval" cli:"poll-interval"`
	PrivateKey          string         `toml:"-" yaml:"-" cli:"private-key"`
}

func DefaultNetworkConfig(name string) NetworkConfig {
	return NetworkConfig{
		Name:                name,
		Confirmations:       DefaultConfirmations,
		ConfirmationTimeout: DefaultConfirmationTimeout,
		PollInterval:        2 * time.Second,
	}
}

func (c *NetworkConfig) Check() error {
	if c.Name == "" {
		return fmt.Errorf("network must be specified")
	}
	if c.RPCURL == "" {
		return fmt.Errorf("rpc url of network %s must be specified", c.Name)
	}
	if c.Factory == (common.Address{}) {
		return fmt.Errorf("factory address of network %s must be specified", c.Name)
	}
	if c.Confirmations == 0 {
		return fmt.Errorf("confirmations must be at least 1")
	}
	if c.GasFeeCap != "" {
		if _, err := cliutil.ParseBigInt(c.GasFeeCap); err != nil {
			return fmt.Errorf("invalid gas fee cap: %w", err)
		}
	}
	return nil
}

// GasFeeCapWei returns nil if no cap is configured.
func (c *NetworkConfig) GasFeeCapWei() (*big.Int, error) {
	if c.GasFeeCap == "" {
		return nil, nil
	}
	return cliutil.ParseBigInt(c.GasFeeCap)
}

func (c *NetworkConfig) Key() (*ecdsa.PrivateKey, error) {
	if c.PrivateKey == "" {
		return nil, fmt.Errorf("private key must be specified")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(c.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

// NetworksFile is the networks file:
//
//	[networks.sepolia]
//	rpc-url = "https://rpc.sepolia.org"
//	chain-id = 11155111
//	factory = "0x0000000000006396FF2a80c067f99B3d2Ab4Df24"
//	confirmations = 2
//
// or the same structure in YAML.
type NetworksFile struct {
	Networks map[string]NetworkConfig `toml:"networks" yaml:"networks"`
}

// LoadNetworks reads a networks file, the format follows the file extension.
func LoadNetworks(fsys afero.Fs, p string) (*NetworksFile, error) {
	data, err := afero.ReadFile(fsys, p)
	if err != nil {
		return nil, fmt.Errorf("failed to read networks file: %w", err)
	}
	var out NetworksFile
	switch ext := strings.ToLower(path.Ext(p)); ext {
	case ".toml":
		md, err := toml.Decode(string(data), &out)
		if err != nil {
			return nil, fmt.Errorf("failed to decode networks file: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown networks file keys: %v", undecoded)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(strings.NewReader(string(data)))
		dec.KnownFields(true)
		if err := dec.Decode(&out); err != nil {
			return nil, fmt.Errorf("failed to decode networks file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported networks file extension %q", ext)
	}
	return &out, nil
}

// ReadNetworkConfig assembles the config of the selected network: defaults, then the
// networks file entry, then every flag that was set.
func ReadNetworkConfig(cliCtx *cli.Context, fsys afero.Fs) (NetworkConfig, error) {
	name := cliCtx.String(NetworkFlagName)
	if name == "" {
		return NetworkConfig{}, fmt.Errorf("network must be specified")
	}
	cfg := DefaultNetworkConfig(name)
	if p := cliCtx.String(NetworksFileFlagName); p != "" {
		file, err := LoadNetworks(fsys, p)
		if err != nil {
			return NetworkConfig{}, err
		}
		entry, ok := file.Networks[name]
		if !ok {
			return NetworkConfig{}, fmt.Errorf("network %s not found in %s", name, p)
		}
		mergeNetwork(&cfg, entry)
	}
	if err := cliutil.PopulateStruct(&cfg, cliCtx); err != nil {
		return NetworkConfig{}, err
	}
	return cfg, nil
}

func mergeNetwork(dst *NetworkConfig, src NetworkConfig) {
	if src.RPCURL != "" {
		dst.RPCURL = src.RPCURL
	}
	if src.ChainID != 0 {
		dst.ChainID = src.ChainID
	}
	if src.Factory != (common.Address{}) {
		dst.Factory = src.Factory
	}
	if src.Admin != (common.Address{}) {
		dst.Admin = src.Admin
	}
	if src.Confirmations != 0 {
		dst.Confirmations = src.Confirmations
	}
	if src.ConfirmationTimeout != 0 {
		dst.ConfirmationTimeout = src.ConfirmationTimeout
	}
	if src.GasFeeCap != "" {
		dst.GasFeeCap = src.GasFeeCap
	}
	if src.PollInterval != 0 {
		dst.PollInterval = src.PollInterval
	}
}

package artifacts

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"
	"github.com/spf13/afero"

	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/proxy"
)

// Release maps a logical contract version to a forge artifact.
type Release struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
	// Artifact is "<Source>.sol/<Contract>", optionally with a compiler suffix
	// ("Box.sol/Box.0.8.25").
	Artifact string `toml:"artifact"`

	version *semver.Version
}

func (r *Release) SemVer() *semver.Version {
	return r.version
}

// Manifest is the release manifest:
//
//	artifacts = "file:///path/to/out"
//
//	[[release]]
//	name = "Box"
//	version = "1.0.0"
//	artifact = "Box.sol/Box"
type Manifest struct {
	Artifacts *Locator  `toml:"artifacts,omitempty"`
	Releases  []Release `toml:"release"`
}

func LoadManifest(fsys afero.Fs, p string) (*Manifest, error) {
	data, err := afero.ReadFile(fsys, p)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return ParseManifest(string(data))
}

func ParseManifest(data string) (*Manifest, error) {
	var m Manifest
	md, err := toml.Decode(data, &m)
	if err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown manifest keys: %v", undecoded)
	}
	if err := m.Check(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Check validates the releases and parses their versions.
func (m *Manifest) Check() error {
	for i := range m.Releases {
		r := &m.Releases[i]
		if r.Name == "" {
			return fmt.Errorf("release %d: name must be set", i)
		}
		if r.Artifact == "" || !strings.Contains(r.Artifact, "/") {
			return fmt.Errorf("release %s: artifact must be <Source>.sol/<Contract>, got %q", r.Name, r.Artifact)
		}
		v, err := proxy.ParseVersion(r.Version)
		if err != nil {
			return fmt.Errorf("release %s: %w", r.Name, err)
		}
		r.version = v
		for _, prev := range m.Releases[:i] {
			if prev.Name == r.Name && proxy.SameVersion(prev.version, v) {
				return fmt.Errorf("release %s@%s is listed twice", r.Name, v)
			}
		}
	}
	return nil
}

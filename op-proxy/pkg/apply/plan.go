package apply

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"
	"github.com/spf13/afero"

	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/proxy"
)

// Step upgrades one proxy, identified by its contract name.
type Step struct {
	Name string `toml:"name"`
	// Version selects the release, empty selects the only release of Name.
	Version string `toml:"version,omitempty"`
	Force   bool   `toml:"force,omitempty"`

	version *semver.Version
}

func (s *Step) SemVer() *semver.Version {
	return s.version
}

// Plan is a batch of upgrades of independent proxies:
//
//	concurrency = 4
//	verify = true
//
//	[[upgrade]]
//	name = "Box"
//	version = "2.0.0"
type Plan struct {
	Concurrency int    `toml:"concurrency,omitempty"`
	Verify      bool   `toml:"verify,omitempty"`
	Upgrades    []Step `toml:"upgrade"`
}

func LoadPlan(fsys afero.Fs, p string) (*Plan, error) {
	data, err := afero.ReadFile(fsys, p)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}
	return ParsePlan(string(data))
}

func ParsePlan(data string) (*Plan, error) {
	var plan Plan
	md, err := toml.Decode(data, &plan)
	if err != nil {
		return nil, fmt.Errorf("failed to decode plan: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown plan keys: %v", undecoded)
	}
	if err := plan.Check(); err != nil {
		return nil, err
	}
	return &plan, nil
}

// Check validates the steps and parses their versions. Every proxy may appear only once,
// steps run concurrently and two upgrades of one proxy would race.
func (p *Plan) Check() error {
	if p.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative")
	}
	if len(p.Upgrades) == 0 {
		return fmt.Errorf("plan has no upgrades")
	}
	seen := make(map[string]struct{}, len(p.Upgrades))
	for i := range p.Upgrades {
		s := &p.Upgrades[i]
		if s.Name == "" {
			return fmt.Errorf("upgrade %d: name must be set", i)
		}
		if _, ok := seen[s.Name]; ok {
			return fmt.Errorf("upgrade %d: %s appears more than once", i, s.Name)
		}
		seen[s.Name] = struct{}{}
		if s.Version == "" {
			continue
		}
		v, err := proxy.ParseVersion(s.Version)
		if err != nil {
			return fmt.Errorf("upgrade %s: %w", s.Name, err)
		}
		s.version = v
	}
	return nil
}

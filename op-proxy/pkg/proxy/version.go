package proxy

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ParseVersion parses a version leniently, "2" and "v2.0" both equal 2.0.0.
func ParseVersion(s string) (*semver.Version, error) {
	v, err := semver.NewVersion(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid version %q: %w", s, err)
	}
	return v, nil
}

// ContractRef is a contract name with an optional version, written "Box" or "Box@2.1".
type ContractRef struct {
	Name    string
	Version *semver.Version
}

func ParseContractRef(s string) (ContractRef, error) {
	name, ver, hasVersion := strings.Cut(s, "@")
	if name == "" {
		return ContractRef{}, fmt.Errorf("missing contract name in %q", s)
	}
	ref := ContractRef{Name: name}
	if hasVersion {
		v, err := ParseVersion(ver)
		if err != nil {
			return ContractRef{}, err
		}
		ref.Version = v
	}
	return ref, nil
}

func (r ContractRef) String() string {
	if r.Version == nil {
		return r.Name
	}
	return r.Name + "@" + r.Version.String()
}

// SameVersion compares versions by precedence, ignoring how they were written.
func SameVersion(a, b *semver.Version) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(b)
}

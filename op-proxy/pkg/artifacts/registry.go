// Package artifacts resolves logical contract releases to compiled artifacts.
package artifacts

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/Masterminds/semver/v3"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mantlenetworkio/proxy-ops/op-chain-ops/foundry"
	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/proxy"
)

// parsedCacheSize bounds how many decoded forge artifacts are kept in memory.
const parsedCacheSize = 64

// Registry is a read-only lookup over a forge output directory and a release manifest.
// It is safe for concurrent use.
type Registry struct {
	fs       *foundry.ArtifactsFS
	releases []Release
	parsed   *lru.Cache[string, *foundry.Artifact]
}

func NewRegistry(af *foundry.ArtifactsFS, m *Manifest) (*Registry, error) {
	if err := m.Check(); err != nil {
		return nil, err
	}
	parsed, err := lru.New[string, *foundry.Artifact](parsedCacheSize)
	if err != nil {
		return nil, err
	}
	return &Registry{fs: af, releases: m.Releases, parsed: parsed}, nil
}

// read decodes the forge output at path "Source.sol/Contract", at most once per path
// while it stays cached.
func (r *Registry) read(path string) (*foundry.Artifact, error) {
	if art, ok := r.parsed.Get(path); ok {
		return art, nil
	}
	source, contract, _ := strings.Cut(path, "/")
	art, err := r.fs.ReadArtifact(source, contract)
	if err != nil {
		return nil, err
	}
	r.parsed.Add(path, art)
	return art, nil
}

// Releases lists the manifest releases of a contract, in manifest order.
func (r *Registry) Releases(name string) []Release {
	var out []Release
	for _, rel := range r.releases {
		if rel.Name == name {
			out = append(out, rel)
		}
	}
	return out
}

// Resolve returns the artifact of name at version. A nil version matches any
// version, and fails with proxy.ErrAmbiguousArtifact if more than one release matches.
func (r *Registry) Resolve(name string, version *semver.Version) (*proxy.ContractArtifact, error) {
	var matches []Release
	for _, rel := range r.Releases(name) {
		if version == nil || proxy.SameVersion(rel.version, version) {
			matches = append(matches, rel)
		}
	}
	ref := proxy.ContractRef{Name: name, Version: version}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: no release %s", proxy.ErrArtifactNotFound, ref)
	case 1:
	default:
		versions := make([]string, 0, len(matches))
		for _, m := range matches {
			versions = append(versions, m.version.String())
		}
		return nil, fmt.Errorf("%w: %s matches versions %s", proxy.ErrAmbiguousArtifact, ref, strings.Join(versions, ", "))
	}
	rel := matches[0]

	art, err := r.read(rel.Artifact)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%w: %s has no compiled output %s", proxy.ErrArtifactNotFound, ref, rel.Artifact)
	case errors.Is(err, foundry.ErrMultipleOutputs):
		return nil, fmt.Errorf("%w: %w", proxy.ErrAmbiguousArtifact, err)
	case err != nil:
		return nil, fmt.Errorf("failed to read artifact of %s: %w", ref, err)
	}
	if len(art.Bytecode.Object) == 0 {
		return nil, fmt.Errorf("%w: %s compiles to no bytecode", proxy.ErrArtifactNotFound, rel.Artifact)
	}

	if art.StorageLayout == nil {
		return nil, fmt.Errorf("%w: %s has no storage layout, build with extra_output = [\"storageLayout\"]",
			proxy.ErrArtifactNotFound, rel.Artifact)
	}
	return &proxy.ContractArtifact{
		Name:             rel.Name,
		Version:          rel.version,
		Bytecode:         art.Bytecode.Object,
		DeployedBytecode: art.DeployedBytecode.Object,
		ABI:              art.ABI,
		StorageLayout:    art.StorageLayout,
		Source:           rel.Artifact,
	}, nil
}

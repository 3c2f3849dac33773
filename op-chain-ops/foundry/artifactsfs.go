package foundry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/spf13/afero"
)

var ErrMultipleOutputs = errors.New("multiple compiler outputs for contract")

// ArtifactsFS wraps a forge output directory (the `out` dir) to read contract artifacts.
// Artifacts are laid out as `<Source>.sol/<Contract>.json`, or
// `<Source>.sol/<Contract>.<solc version>.json` when one source was built by several compilers.
type ArtifactsFS struct {
	FS afero.Fs
}

// OpenArtifactsDir opens a forge output directory on the local disk, read-only.
func OpenArtifactsDir(dirPath string) *ArtifactsFS {
	return &ArtifactsFS{FS: afero.NewReadOnlyFs(afero.NewBasePathFs(afero.NewOsFs(), dirPath))}
}

// ListArtifacts lists the artifacts. Each artifact matches a source-file name.
// This name includes the extension, e.g. ".sol"
// (no other artifact-types are supported at this time).
func (af *ArtifactsFS) ListArtifacts() ([]string, error) {
	entries, err := afero.ReadDir(af.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	out := make([]string, 0, len(entries))
	for _, d := range entries {
		if name := d.Name(); d.IsDir() && strings.HasSuffix(name, ".sol") {
			out = append(out, name)
		}
	}
	return out, nil
}

// ListContracts lists the contracts of the given artifact.
// Each source-file may define multiple contracts.
func (af *ArtifactsFS) ListContracts(name string) ([]string, error) {
	entries, err := afero.ReadDir(af.FS, name)
	if err != nil {
		return nil, fmt.Errorf("failed to list contracts of artifact %q: %w", name, err)
	}
	var out []string
	for _, d := range entries {
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			continue
		}
		contract, _ := splitOutputName(d.Name())
		if !slices.Contains(out, contract) {
			out = append(out, contract)
		}
	}
	return out, nil
}

// ReadArtifact reads a specific JSON contract artifact from the FS.
// The contract name may be suffixed with a compiler version, e.g. "Box.0.8.25",
// to pick one output when the source was built by several compilers.
// An unqualified name that only matches versioned outputs must match exactly one of them,
// else ErrMultipleOutputs is returned.
func (af *ArtifactsFS) ReadArtifact(name string, contract string) (*Artifact, error) {
	p := path.Join(name, contract+".json")
	exists, err := afero.Exists(af.FS, p)
	if err != nil {
		return nil, fmt.Errorf("failed to stat artifact %q: %w", p, err)
	}
	if !exists {
		outputs, err := af.versionedOutputs(name, contract)
		if err != nil {
			return nil, err
		}
		switch len(outputs) {
		case 0:
			return nil, fmt.Errorf("artifact %q: %w", p, fs.ErrNotExist)
		case 1:
			p = path.Join(name, outputs[0])
		default:
			return nil, fmt.Errorf("%w: %s/%s has %s", ErrMultipleOutputs, name, contract, strings.Join(outputs, ", "))
		}
	}
	data, err := afero.ReadFile(af.FS, p)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %q: %w", p, err)
	}
	var out Artifact
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode artifact %q: %w", p, err)
	}
	return &out, nil
}

func (af *ArtifactsFS) versionedOutputs(name string, contract string) ([]string, error) {
	entries, err := afero.ReadDir(af.FS, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list contracts of artifact %q: %w", name, err)
	}
	var out []string
	for _, d := range entries {
		c, version := splitOutputName(d.Name())
		if c == contract && version != "" {
			out = append(out, d.Name())
		}
	}
	return out, nil
}

// splitOutputName splits "Box.0.8.25.json" into ("Box", "0.8.25") and "Box.json" into ("Box", "").
func splitOutputName(fileName string) (contract string, compiler string) {
	base := strings.TrimSuffix(fileName, ".json")
	contract, compiler, _ = strings.Cut(base, ".")
	return contract, compiler
}

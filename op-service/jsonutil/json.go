package jsonutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"

	"github.com/spf13/afero"
)

// ErrNotExist is returned by LoadJSON when the file does not exist.
var ErrNotExist = fs.ErrNotExist

// LoadJSON decodes the JSON file at inputPath. Unknown fields are rejected.
func LoadJSON[X any](fsys afero.Fs, inputPath string) (*X, error) {
	f, err := fsys.Open(inputPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotExist, inputPath)
		}
		return nil, fmt.Errorf("failed to open file %q: %w", inputPath, err)
	}
	defer f.Close()
	var obj X
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("failed to decode file %q: %w", inputPath, err)
	}
	return &obj, nil
}

// WriteJSON writes value as indented JSON to outputPath. The content is written to a
// temporary file next to the destination and renamed into place, so readers never
// observe a half-written file.
func WriteJSON[X any](fsys afero.Fs, value X, outputPath string) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode to JSON: %w", err)
	}
	data = append(data, '\n')
	if err := fsys.MkdirAll(path.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %q: %w", outputPath, err)
	}
	tmp := outputPath + ".tmp"
	if err := afero.WriteFile(fsys, tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %q: %w", tmp, err)
	}
	if err := fsys.Rename(tmp, outputPath); err != nil {
		_ = fsys.Remove(tmp)
		return fmt.Errorf("failed to move %q into place: %w", outputPath, err)
	}
	return nil
}

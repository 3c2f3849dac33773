package ioutil

import (
	"archive/tar"
	"bufio"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/spf13/afero"
)

// UntarArchive extracts a tar stream into outDir on fsys. Gzip compressed input is detected
// from its magic bytes.
func UntarArchive(fsys afero.Fs, outDir string, r io.Reader) error {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil {
		return fmt.Errorf("failed to read archive header: %w", err)
	}
	var src io.Reader = br
	if magic[0] == 0x1f && magic[1] == 0x8b {
		gzr, err := gzip.NewReader(br)
		if err != nil {
			return fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gzr.Close()
		src = gzr
	}
	return Untar(fsys, outDir, tar.NewReader(src))
}

func Untar(fsys afero.Fs, outDir string, tr *tar.Reader) error {
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read tar header: %w", err)
		}

		cleanedName := path.Clean(hdr.Name)
		if strings.Contains(cleanedName, "..") || path.IsAbs(cleanedName) {
			return fmt.Errorf("invalid file path: %s", hdr.Name)
		}
		dst := path.Join(outDir, cleanedName)
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := fsys.MkdirAll(dst, 0o755); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
		case tar.TypeReg:
			if err := untarFile(fsys, dst, tr); err != nil {
				return fmt.Errorf("failed to untar file: %w", err)
			}
		default:
			// links and devices never appear in artifact bundles
			continue
		}
	}
}

func untarFile(fsys afero.Fs, dst string, tr *tar.Reader) error {
	if err := fsys.MkdirAll(path.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}
	f, err := fsys.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	buf := bufio.NewWriter(f)
	if _, err := io.Copy(buf, tr); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush buffer: %w", err)
	}
	return nil
}

package artifacts

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"path"
	"sync"

	"github.com/spf13/afero"

	"github.com/mantlenetworkio/proxy-ops/op-chain-ops/foundry"
	"github.com/mantlenetworkio/proxy-ops/op-service/httputil"
	"github.com/mantlenetworkio/proxy-ops/op-service/ioutil"
)

var ErrUnsupportedArtifactsScheme = errors.New("unsupported artifacts URL scheme")

// completeMarker is written once a tarball is fully extracted.
const completeMarker = ".extracted"

// Opener opens the forge output a Locator points at. Remote tarballs are
// downloaded and extracted into CacheDir once, later opens reuse the cache.
type Opener struct {
	FS         afero.Fs
	CacheDir   string
	Progressor ioutil.Progressor
	Downloader *httputil.Downloader

	mtx sync.Mutex
}

func NewOpener(fsys afero.Fs, cacheDir string, progressor ioutil.Progressor) *Opener {
	if progressor == nil {
		progressor = ioutil.NoopProgressor()
	}
	return &Opener{
		FS:         fsys,
		CacheDir:   cacheDir,
		Progressor: progressor,
		Downloader: &httputil.Downloader{Progressor: progressor},
	}
}

func (o *Opener) Open(ctx context.Context, loc *Locator) (*foundry.ArtifactsFS, error) {
	switch loc.URL.Scheme {
	case "file":
		return &foundry.ArtifactsFS{FS: afero.NewReadOnlyFs(afero.NewBasePathFs(o.FS, loc.URL.Path))}, nil
	case "http", "https":
		dir, err := o.fetch(ctx, loc)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch artifacts from %s: %w", loc, err)
		}
		return &foundry.ArtifactsFS{FS: afero.NewReadOnlyFs(afero.NewBasePathFs(o.FS, forgeOutputDir(o.FS, dir)))}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedArtifactsScheme, loc.URL.Scheme)
	}
}

func (o *Opener) fetch(ctx context.Context, loc *Locator) (string, error) {
	o.mtx.Lock()
	defer o.mtx.Unlock()

	id := fmt.Sprintf("%x", sha256.Sum256([]byte(loc.URL.String())))
	dir := path.Join(o.CacheDir, id)
	if done, err := afero.Exists(o.FS, path.Join(dir, completeMarker)); err != nil {
		return "", err
	} else if done {
		return dir, nil
	}

	tarball := path.Join(o.CacheDir, id+".tgz")
	exists, err := afero.Exists(o.FS, tarball)
	if err != nil {
		return "", err
	}
	if !exists {
		u := *loc.URL
		u.Fragment = ""
		if _, err := o.Downloader.DownloadFile(ctx, o.FS, u.String(), tarball, loc.Checksum()); err != nil {
			return "", fmt.Errorf("failed to download: %w", err)
		}
	}

	if err := o.FS.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("failed to clear extraction dir: %w", err)
	}
	f, err := o.FS.Open(tarball)
	if err != nil {
		return "", fmt.Errorf("failed to open tarball: %w", err)
	}
	defer f.Close()
	if err := ioutil.UntarArchive(o.FS, dir, f); err != nil {
		return "", fmt.Errorf("failed to extract tarball: %w", err)
	}
	if err := afero.WriteFile(o.FS, path.Join(dir, completeMarker), nil, 0o644); err != nil {
		return "", err
	}
	return dir, nil
}

// forgeOutputDir finds the artifacts root inside an extracted tarball.
func forgeOutputDir(fsys afero.Fs, dir string) string {
	for _, sub := range []string{"forge-artifacts", "out"} {
		if ok, _ := afero.DirExists(fsys, path.Join(dir, sub)); ok {
			return path.Join(dir, sub)
		}
	}
	return dir
}

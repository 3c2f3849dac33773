package httputil

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/spf13/afero"

	"github.com/mantlenetworkio/proxy-ops/op-service/ioutil"
)

type Downloader struct {
	Client     *http.Client
	Progressor ioutil.Progressor
	MaxSize    int64
}

func (d *Downloader) Download(ctx context.Context, url string, out io.Writer) error {
	if out == nil {
		return fmt.Errorf("output writer is nil")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	if resp.Body != nil {
		defer resp.Body.Close()
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("download failed with status code %d: %s", resp.StatusCode, resp.Status)
	}
	if resp.ContentLength > 0 && d.MaxSize > 0 && resp.ContentLength > d.MaxSize {
		return fmt.Errorf("content length %d exceeds maximum allowed size %d", resp.ContentLength, d.MaxSize)
	}

	r := io.Reader(resp.Body)
	if d.MaxSize > 0 {
		r = io.LimitReader(resp.Body, d.MaxSize)
	}

	pr := &ioutil.ProgressReader{
		R:          r,
		Progressor: d.Progressor,
		Total:      resp.ContentLength,
	}
	if _, err := io.Copy(out, pr); err != nil {
		return fmt.Errorf("failed to write download: %w", err)
	}
	return nil
}

// DownloadFile downloads url into dst on fsys and returns the hex sha256 of the content.
// The file only appears at dst once the download completed, a partial download is removed.
// If wantSHA256 is set and does not match, dst is not written.
func (d *Downloader) DownloadFile(ctx context.Context, fsys afero.Fs, url string, dst string, wantSHA256 string) (string, error) {
	if err := fsys.MkdirAll(path.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("failed to create download dir: %w", err)
	}
	tmp := dst + ".partial"
	f, err := fsys.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("failed to create download file: %w", err)
	}
	h := sha256.New()
	err = d.Download(ctx, url, io.MultiWriter(f, h))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = fsys.Remove(tmp)
		return "", err
	}
	digest := hex.EncodeToString(h.Sum(nil))
	if wantSHA256 != "" && !strings.EqualFold(strings.TrimPrefix(wantSHA256, "0x"), digest) {
		_ = fsys.Remove(tmp)
		return "", fmt.Errorf("checksum mismatch: expected %s, got %s", wantSHA256, digest)
	}
	if err := fsys.Rename(tmp, dst); err != nil {
		return "", fmt.Errorf("failed to move download into place: %w", err)
	}
	return digest, nil
}

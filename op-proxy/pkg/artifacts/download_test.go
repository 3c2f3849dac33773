package artifacts

import (
	"archive/tar"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func testTarball(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gzw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gzw)
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(content)), Typeflag: tar.TypeReg}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gzw.Close())
	return buf.Bytes()
}

func TestOpenRemoteCaches(t *testing.T) {
	tarball := testTarball(t, map[string]string{
		"forge-artifacts/Box.sol/Box.json": `{"abi":[],"bytecode":{"object":"0x6080"},"deployedBytecode":{"object":"0x6001"}}`,
	})
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write(tarball)
	}))
	defer srv.Close()

	sum := sha256.Sum256(tarball)
	loc := MustNewLocatorFromURL(srv.URL + "/artifacts.tgz#sha256=" + hex.EncodeToString(sum[:]))
	opener := NewOpener(afero.NewMemMapFs(), "/cache", nil)

	for i := 0; i < 2; i++ {
		af, err := opener.Open(context.Background(), loc)
		require.NoError(t, err)
		art, err := af.ReadArtifact("Box.sol", "Box")
		require.NoError(t, err)
		require.Equal(t, []byte{0x60, 0x80}, []byte(art.Bytecode.Object))
	}
	require.EqualValues(t, 1, hits.Load())
}

func TestOpenRemoteChecksumMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(testTarball(t, map[string]string{"out/a.txt": "a"}))
	}))
	defer srv.Close()

	fsys := afero.NewMemMapFs()
	opener := NewOpener(fsys, "/cache", nil)
	_, err := opener.Open(context.Background(), MustNewLocatorFromURL(srv.URL+"/a.tgz#sha256=00"))
	require.ErrorContains(t, err, "checksum mismatch")
}

func TestOpenFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeArtifact(t, fsys, "/build/out/Box.sol/Box.json", "0x6080")
	loc, err := NewFileLocator("/build/out")
	require.NoError(t, err)
	af, err := NewOpener(fsys, "/cache", nil).Open(context.Background(), loc)
	require.NoError(t, err)
	names, err := af.ListArtifacts()
	require.NoError(t, err)
	require.Equal(t, []string{"Box.sol"}, names)
}

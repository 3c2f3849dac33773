package httputil

import (
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPServer(t *testing.T) {
	srv, err := StartHTTPServer("127.0.0.1:0", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("up"))
	}))
	require.NoError(t, err)
	endpoint := srv.HTTPEndpoint()
	require.NotEmpty(t, endpoint)

	res, err := http.Get(endpoint)
	require.NoError(t, err)
	body, err := io.ReadAll(res.Body)
	require.NoError(t, res.Body.Close())
	require.NoError(t, err)
	require.Equal(t, "up", string(body))

	require.NoError(t, srv.Close())
	require.Empty(t, srv.HTTPEndpoint())
	require.NoError(t, srv.Close())

	_, err = http.Get(endpoint)
	require.Error(t, err)
}

func TestHTTPServerBindError(t *testing.T) {
	srv, err := StartHTTPServer("127.0.0.1:0", http.NotFoundHandler())
	require.NoError(t, err)
	defer srv.Close()
	_, err = StartHTTPServer(srv.HTTPEndpoint()[len("http://"):], http.NotFoundHandler())
	require.ErrorContains(t, err, "failed to bind")
}

package metrics

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestFactoryRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := With(reg)
	c := f.NewCounterVec(prometheus.CounterOpts{
		Namespace: "test",
		Name:      "ops_total",
		Help:      "ops",
	}, []string{"kind"})
	c.WithLabelValues("upgrade").Add(2)

	snap := Gather(t, reg)
	require.Equal(t, 2.0, snap.Value("test_ops_total", map[string]string{"kind": "upgrade"}))
	require.Equal(t, []string{"test_ops_total"}, snap.Names())
}

func TestStartServer(t *testing.T) {
	reg := NewRegistry()
	With(reg).NewGauge(prometheus.GaugeOpts{Namespace: "test", Name: "up", Help: "up"}).Set(1)

	srv, err := StartServer(reg, "127.0.0.1", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	resp, err := http.Get(fmt.Sprintf("%s/metrics", srv.HTTPEndpoint()))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "test_up 1")
}

func TestCLIConfigCheck(t *testing.T) {
	require.NoError(t, CLIConfig{}.Check())
	require.NoError(t, CLIConfig{Enabled: true, ListenPort: 7300}.Check())
	require.Error(t, CLIConfig{Enabled: true, ListenPort: 70000}.Check())
}

package ioutil

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/mantlenetworkio/proxy-ops/op-service/testlog"
)

func TestLogProgressor(t *testing.T) {
	lgr, logs := testlog.CaptureLogger(t, log.LevelInfo)
	p := LogProgressor(lgr, "downloading", time.Hour)
	p(1, 100)
	p(50, 100)
	p(100, 100)

	recs := logs.FindLogs(testlog.NewMessageFilter("downloading"))
	require.Len(t, recs, 2)
	curr, ok := recs[1].AttrValue("current")
	require.True(t, ok)
	require.Equal(t, int64(100), curr.Int64())
}

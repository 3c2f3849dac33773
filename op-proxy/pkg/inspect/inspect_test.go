package inspect

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/proxy"
	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/state"
)

func testStore(t *testing.T) state.Store {
	store := state.NewFileStore(afero.NewMemMapFs(), "/state")
	recs := []*proxy.ProxyRecord{
		{
			Network:               "sepolia",
			Name:                  "Box",
			ProxyAddress:          common.HexToAddress("0x01"),
			CurrentImplementation: common.HexToAddress("0x03"),
			CurrentVersion:        semver.MustParse("2.0.0"),
			Initialized:           true,
			Verified:              true,
			History: []proxy.HistoryEntry{
				{Version: semver.MustParse("1.0.0"), Implementation: common.HexToAddress("0x02")},
				{Version: semver.MustParse("2.0.0"), Implementation: common.HexToAddress("0x03"), Forced: true},
			},
		},
		{
			Network:               "mainnet",
			Name:                  "Vault",
			ProxyAddress:          common.HexToAddress("0x11"),
			CurrentImplementation: common.HexToAddress("0x12"),
			CurrentVersion:        semver.MustParse("1.0.0"),
			Initialized:           true,
			History: []proxy.HistoryEntry{
				{Version: semver.MustParse("1.0.0"), Implementation: common.HexToAddress("0x12")},
			},
		},
	}
	for _, rec := range recs {
		require.NoError(t, store.Put(rec))
	}
	return store
}

func TestRecordsTable(t *testing.T) {
	store := testStore(t)
	buf := new(bytes.Buffer)
	require.NoError(t, Records(buf, store, "", FormatTable))
	out := buf.String()
	require.Contains(t, out, "VERSION")
	require.Contains(t, out, common.HexToAddress("0x01").Hex())
	require.Contains(t, out, common.HexToAddress("0x11").Hex())
	// mainnet sorts first
	require.Less(t, strings.Index(out, "Vault"), strings.Index(out, "Box"))

	buf.Reset()
	require.NoError(t, Records(buf, store, "sepolia", FormatTable))
	require.NotContains(t, buf.String(), "Vault")
}

func TestRecordsJSON(t *testing.T) {
	store := testStore(t)
	buf := new(bytes.Buffer)
	require.NoError(t, Records(buf, store, "sepolia", FormatJSON))
	var recs []*proxy.ProxyRecord
	require.NoError(t, json.Unmarshal(buf.Bytes(), &recs))
	require.Len(t, recs, 1)
	require.Equal(t, "Box", recs[0].Name)

	buf.Reset()
	require.NoError(t, Records(buf, store, "holesky", FormatJSON))
	require.Equal(t, "[]\n", buf.String())
}

func TestHistory(t *testing.T) {
	store := testStore(t)
	rec, err := store.Get(proxy.Key{Network: "sepolia", Name: "Box"})
	require.NoError(t, err)
	buf := new(bytes.Buffer)
	History(buf, rec)
	require.Contains(t, buf.String(), common.HexToAddress("0x02").Hex())
	require.Contains(t, buf.String(), "true")
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("json")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, f)
	_, err = ParseFormat("csv")
	require.Error(t, err)
}

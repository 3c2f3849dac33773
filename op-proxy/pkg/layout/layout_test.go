package layout

import (
	"errors"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/require"

	"github.com/mantlenetworkio/proxy-ops/op-chain-ops/solc"
	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/chain/chaintest"
	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/proxy"
)

func transition(from, to []chaintest.Field) proxy.UpgradeTransition {
	return proxy.UpgradeTransition{
		FromVersion: semver.MustParse("1"),
		ToVersion:   semver.MustParse("2"),
		FromLayout:  chaintest.Release{Name: "Box", Version: "1", Fields: from}.Layout(),
		ToLayout:    chaintest.Release{Name: "Box", Version: "2", Fields: to}.Layout(),
	}
}

func violations(t *testing.T, err error) []error {
	t.Helper()
	require.ErrorIs(t, err, proxy.ErrStorageLayoutIncompatible)
	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	return merr.Errors
}

func TestCheck(t *testing.T) {
	base := []chaintest.Field{{Label: "owner", Type: "address"}, {Label: "value", Type: "uint256"}}

	t.Run("identical", func(t *testing.T) {
		require.NoError(t, Check(transition(base, base)))
	})

	t.Run("appended", func(t *testing.T) {
		next := append(append([]chaintest.Field{}, base...), chaintest.Field{Label: "extra", Type: "bool"})
		require.NoError(t, Check(transition(base, next)))
	})

	t.Run("unknown previous layout", func(t *testing.T) {
		tr := transition(base, base)
		tr.FromLayout = nil
		require.ErrorIs(t, Check(tr), proxy.ErrStorageLayoutIncompatible)
	})

	t.Run("no previous variables", func(t *testing.T) {
		require.NoError(t, Check(transition(nil, base)))
	})

	t.Run("missing new layout", func(t *testing.T) {
		tr := transition(base, base)
		tr.ToLayout = nil
		require.ErrorIs(t, Check(tr), proxy.ErrStorageLayoutIncompatible)
	})

	t.Run("reordered", func(t *testing.T) {
		next := []chaintest.Field{{Label: "value", Type: "uint256"}, {Label: "owner", Type: "address"}}
		errs := violations(t, Check(transition(base, next)))
		require.Len(t, errs, 2)
		require.Contains(t, errs[0].Error(), "owner (slot 0, offset 0): moved to slot 1")
		require.Contains(t, errs[1].Error(), "value (slot 1, offset 0): moved to slot 0")
	})

	t.Run("inserted before existing", func(t *testing.T) {
		next := []chaintest.Field{{Label: "owner", Type: "address"}, {Label: "extra", Type: "bool"}, {Label: "value", Type: "uint256"}}
		errs := violations(t, Check(transition(base, next)))
		require.Len(t, errs, 1)
		require.Contains(t, errs[0].Error(), "value (slot 1, offset 0): moved to slot 2")
	})

	t.Run("retyped", func(t *testing.T) {
		next := []chaintest.Field{{Label: "owner", Type: "address"}, {Label: "value", Type: "bool"}}
		errs := violations(t, Check(transition(base, next)))
		require.Len(t, errs, 1)
		require.Contains(t, errs[0].Error(), "type changed from uint256/32 to bool/1")
	})

	t.Run("removed", func(t *testing.T) {
		next := []chaintest.Field{{Label: "owner", Type: "address"}}
		errs := violations(t, Check(transition(base, next)))
		require.Len(t, errs, 1)
		require.Contains(t, errs[0].Error(), "value (slot 1, offset 0): removed")
	})

	t.Run("renamed", func(t *testing.T) {
		next := []chaintest.Field{{Label: "owner", Type: "address"}, {Label: "amount", Type: "uint256"}}
		errs := violations(t, Check(transition(base, next)))
		require.Len(t, errs, 1)
		require.Contains(t, errs[0].Error(), "replaced by amount")
	})
}

func TestCheckGap(t *testing.T) {
	prev := []chaintest.Field{{Label: "owner", Type: "address"}, {Label: "__gap", Type: "uint256[49]"}}

	t.Run("shrunk to make room", func(t *testing.T) {
		next := []chaintest.Field{{Label: "owner", Type: "address"}, {Label: "extra", Type: "uint256"}, {Label: "__gap", Type: "uint256[48]"}}
		require.NoError(t, Check(transition(prev, next)))
	})

	t.Run("not shrunk", func(t *testing.T) {
		next := []chaintest.Field{{Label: "owner", Type: "address"}, {Label: "extra", Type: "uint256"}, {Label: "__gap", Type: "uint256[49]"}}
		errs := violations(t, Check(transition(prev, next)))
		require.Len(t, errs, 1)
		require.Contains(t, errs[0].Error(), "gap must end at slot 50")
	})

	t.Run("removed", func(t *testing.T) {
		next := []chaintest.Field{{Label: "owner", Type: "address"}, {Label: "extra", Type: "uint256"}}
		errs := violations(t, Check(transition(prev, next)))
		require.Len(t, errs, 1)
		require.Contains(t, errs[0].Error(), "gap removed")
	})
}

func TestCanonicalIgnoresASTIds(t *testing.T) {
	structLayout := func(id string, memberType string) *solc.StorageLayout {
		return &solc.StorageLayout{
			Storage: []solc.StorageLayoutEntry{{Label: "data", Slot: 0, Type: id}},
			Types: map[string]solc.StorageLayoutType{
				id: {Encoding: "inplace", Label: "struct Box.Data", NumberOfBytes: 64, Members: []solc.StorageLayoutEntry{
					{Label: "a", Slot: 0, Type: "t_uint256"},
					{Label: "b", Slot: 1, Type: memberType},
				}},
				"t_uint256": {Encoding: "inplace", Label: "uint256", NumberOfBytes: 32},
				"t_address": {Encoding: "inplace", Label: "address", NumberOfBytes: 20},
			},
		}
	}
	tr := proxy.UpgradeTransition{
		FromLayout: structLayout("t_struct(Data)12_storage", "t_uint256"),
		ToLayout:   structLayout("t_struct(Data)87_storage", "t_uint256"),
	}
	require.NoError(t, Check(tr))

	tr.ToLayout = structLayout("t_struct(Data)87_storage", "t_address")
	require.ErrorIs(t, Check(tr), proxy.ErrStorageLayoutIncompatible)
}

func TestCanonicalRecursiveStruct(t *testing.T) {
	l := &solc.StorageLayout{
		Storage: []solc.StorageLayoutEntry{{Label: "root", Slot: 0, Type: "t_struct(Node)3_storage"}},
		Types: map[string]solc.StorageLayoutType{
			"t_struct(Node)3_storage": {Encoding: "inplace", Label: "struct Tree.Node", NumberOfBytes: 32, Members: []solc.StorageLayoutEntry{
				{Label: "children", Slot: 0, Type: "t_mapping(t_uint256,t_struct(Node)3_storage)"},
			}},
			"t_mapping(t_uint256,t_struct(Node)3_storage)": {Encoding: "mapping", Label: "mapping(uint256 => struct Tree.Node)",
				NumberOfBytes: 32, Key: "t_uint256", Value: "t_struct(Node)3_storage"},
			"t_uint256": {Encoding: "inplace", Label: "uint256", NumberOfBytes: 32},
		},
	}
	c := newCanonicalizer(l)
	require.Equal(t, "struct{children@0+0:mapping(uint256/32 => struct Tree.Node)}", c.canonical("t_struct(Node)3_storage"))
}

package solc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

const boxLayout = `{
  "storage": [
    {"astId": 3, "contract": "src/Box.sol:Box", "label": "owner", "offset": 0, "slot": "0", "type": "t_address"},
    {"astId": 5, "contract": "src/Box.sol:Box", "label": "paused", "offset": 20, "slot": "0", "type": "t_bool"},
    {"astId": 7, "contract": "src/Box.sol:Box", "label": "values", "offset": 0, "slot": "1", "type": "t_array(t_uint256)3_storage"}
  ],
  "types": {
    "t_address": {"encoding": "inplace", "label": "address", "numberOfBytes": "20"},
    "t_bool": {"encoding": "inplace", "label": "bool", "numberOfBytes": "1"},
    "t_uint256": {"encoding": "inplace", "label": "uint256", "numberOfBytes": "32"},
    "t_array(t_uint256)3_storage": {"encoding": "inplace", "label": "uint256[3]", "numberOfBytes": "96", "base": "t_uint256"}
  }
}`

func TestStorageLayout(t *testing.T) {
	var layout StorageLayout
	require.NoError(t, json.Unmarshal([]byte(boxLayout), &layout))
	require.Len(t, layout.Storage, 3)

	owner, err := layout.Lookup("owner")
	require.NoError(t, err)
	require.Equal(t, uint(0), owner.Slot)
	require.Equal(t, uint(1), layout.SlotsUsed(owner))

	paused, err := layout.Lookup("paused")
	require.NoError(t, err)
	require.Equal(t, uint(20), paused.Offset)

	values, err := layout.Lookup("values")
	require.NoError(t, err)
	require.Equal(t, uint(3), layout.SlotsUsed(values))

	ty, err := layout.TypeOf("t_array(t_uint256)3_storage")
	require.NoError(t, err)
	require.Equal(t, "t_uint256", ty.Base)

	_, err = layout.Lookup("missing")
	require.Error(t, err)
	require.Equal(t, uint(1), layout.SlotsUsed(StorageLayoutEntry{Type: "t_unknown"}))
}

func TestAbiTypeRoundTrip(t *testing.T) {
	raw := `[{"type":"function","name":"version","inputs":[],"outputs":[{"name":"","type":"string"}],"stateMutability":"view"}]`
	var a AbiType
	require.NoError(t, json.Unmarshal([]byte(raw), &a))
	require.Contains(t, a.Parsed.Methods, "version")
	out, err := json.Marshal(a)
	require.NoError(t, err)
	require.JSONEq(t, raw, string(out))
}

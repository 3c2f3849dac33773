package deployer

import (
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"strconv"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/holiman/uint256"

	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/proxy"
)

// EncodeCall encodes a call of the named method with args coerced to its input types.
// Arguments may be Go values of the ABI types, integers of any width, or strings as
// typed on a command line: hex addresses and bytes, decimal or hex integers, booleans,
// and JSON arrays for array parameters.
func EncodeCall(contractABI abi.ABI, name string, args []any) ([]byte, error) {
	method, ok := contractABI.Methods[name]
	if !ok {
		return nil, fmt.Errorf("%w: contract has no method %q", proxy.ErrInitializerSignatureMismatch, name)
	}
	if len(args) != len(method.Inputs) {
		return nil, fmt.Errorf("%w: %s takes %d arguments, got %d",
			proxy.ErrInitializerSignatureMismatch, method.Sig, len(method.Inputs), len(args))
	}
	coerced := make([]any, len(args))
	for i, in := range method.Inputs {
		v, err := coerceArg(in.Type, args[i])
		if err != nil {
			return nil, fmt.Errorf("%w: %s argument %d (%s %s): %v",
				proxy.ErrInitializerSignatureMismatch, method.Sig, i, in.Type, in.Name, err)
		}
		coerced[i] = v
	}
	packed, err := method.Inputs.Pack(coerced...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", proxy.ErrInitializerSignatureMismatch, method.Sig, err)
	}
	return append(append([]byte{}, method.ID...), packed...), nil
}

func coerceArg(t abi.Type, v any) (any, error) {
	if s, ok := v.(string); ok && t.T != abi.StringTy {
		return parseArg(t, s)
	}
	if v == nil {
		return nil, fmt.Errorf("missing value")
	}
	if reflect.TypeOf(v).AssignableTo(t.GetType()) {
		return v, nil
	}
	switch t.T {
	case abi.IntTy, abi.UintTy:
		if n, ok := toBig(v); ok {
			return fitInt(t, n)
		}
	case abi.AddressTy:
		if a, ok := v.(*common.Address); ok && a != nil {
			return *a, nil
		}
	case abi.SliceTy, abi.ArrayTy:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			elems := make([]any, rv.Len())
			for i := range elems {
				elems[i] = rv.Index(i).Interface()
			}
			return buildArray(t, elems)
		}
	}
	return nil, fmt.Errorf("cannot use %T as %s", v, t)
}

func parseArg(t abi.Type, s string) (any, error) {
	if s == "" {
		return nil, fmt.Errorf("empty value")
	}
	switch t.T {
	case abi.AddressTy:
		if !common.IsHexAddress(s) {
			return nil, fmt.Errorf("invalid address %q", s)
		}
		return common.HexToAddress(s), nil
	case abi.IntTy, abi.UintTy:
		n, ok := math.ParseBig256(s)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", s)
		}
		return fitInt(t, n)
	case abi.BoolTy:
		return strconv.ParseBool(s)
	case abi.BytesTy:
		return hexutil.Decode(s)
	case abi.FixedBytesTy:
		b, err := hexutil.Decode(s)
		if err != nil {
			return nil, err
		}
		if len(b) != t.Size {
			return nil, fmt.Errorf("want %d bytes, got %d", t.Size, len(b))
		}
		arr := reflect.New(t.GetType()).Elem()
		reflect.Copy(arr, reflect.ValueOf(b))
		return arr.Interface(), nil
	case abi.SliceTy, abi.ArrayTy:
		var raw []json.RawMessage
		if err := json.Unmarshal([]byte(s), &raw); err != nil {
			return nil, fmt.Errorf("invalid array %q: %w", s, err)
		}
		elems := make([]any, len(raw))
		for i, r := range raw {
			var str string
			if err := json.Unmarshal(r, &str); err != nil {
				// unquoted numbers and booleans
				str = string(r)
			}
			elems[i] = str
		}
		return buildArray(t, elems)
	default:
		return nil, fmt.Errorf("unsupported parameter type %s", t)
	}
}

func buildArray(t abi.Type, elems []any) (any, error) {
	var out reflect.Value
	if t.T == abi.ArrayTy {
		if len(elems) != t.Size {
			return nil, fmt.Errorf("want %d elements, got %d", t.Size, len(elems))
		}
		out = reflect.New(t.GetType()).Elem()
	} else {
		out = reflect.MakeSlice(t.GetType(), len(elems), len(elems))
	}
	for i, e := range elems {
		v, err := coerceArg(*t.Elem, e)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out.Index(i).Set(reflect.ValueOf(v))
	}
	return out.Interface(), nil
}

func toBig(v any) (*big.Int, bool) {
	switch n := v.(type) {
	case *big.Int:
		return n, n != nil
	case *uint256.Int:
		if n == nil {
			return nil, false
		}
		return n.ToBig(), true
	case int:
		return big.NewInt(int64(n)), true
	case int64:
		return big.NewInt(n), true
	case int32:
		return big.NewInt(int64(n)), true
	case uint:
		return new(big.Int).SetUint64(uint64(n)), true
	case uint64:
		return new(big.Int).SetUint64(n), true
	case uint32:
		return new(big.Int).SetUint64(uint64(n)), true
	}
	return nil, false
}

// fitInt range-checks n against an intN/uintN type and converts it to the Go type
// the ABI packer expects for it.
func fitInt(t abi.Type, n *big.Int) (any, error) {
	if t.T == abi.UintTy {
		if n.Sign() < 0 || n.BitLen() > t.Size {
			return nil, fmt.Errorf("%s out of range for %s", n, t)
		}
	} else {
		probe := n
		if n.Sign() < 0 {
			probe = new(big.Int).Add(n, big.NewInt(1))
		}
		if probe.BitLen() >= t.Size {
			return nil, fmt.Errorf("%s out of range for %s", n, t)
		}
	}
	if t.Size > 64 {
		return new(big.Int).Set(n), nil
	}
	out := reflect.New(t.GetType()).Elem()
	if t.T == abi.UintTy {
		out.SetUint(n.Uint64())
	} else {
		out.SetInt(n.Int64())
	}
	return out.Interface(), nil
}

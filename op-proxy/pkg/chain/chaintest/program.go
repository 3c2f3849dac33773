package chaintest

import (
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/mantlenetworkio/proxy-ops/op-proxy/pkg/proxy"
)

// Program is the behaviour of a contract on the fake chain, keyed by its creation code.
//
// Calls are interpreted through the ABI against named storage:
//   - version() returns Version, as a string or an integer depending on the ABI.
//   - the Initializer stores each argument under its parameter name, once.
//   - set<Field>(x) stores x under the parameter name.
//   - any other view method without inputs returns the value stored under its name.
type Program struct {
	CreationCode []byte
	RuntimeCode  []byte
	ABI          abi.ABI
	Version      string
	Initializer  string
	// InitReverts makes every initializer call revert.
	InitReverts bool
}

const initializedKey = "__initialized"

type revert struct {
	data []byte
}

func (r *revert) Error() string {
	return fmt.Sprintf("execution reverted: 0x%x", r.data)
}

// call executes input with storage as the executing context. Writes are returned, not applied,
// so a reverting call never changes state.
func (p *Program) call(storage map[string]any, input []byte) (out []byte, writes map[string]any, err error) {
	if len(input) < 4 {
		return nil, nil, &revert{}
	}
	method, err := p.ABI.MethodById(input[:4])
	if err != nil {
		return nil, nil, &revert{}
	}
	args, err := method.Inputs.Unpack(input[4:])
	if err != nil {
		return nil, nil, &revert{}
	}
	switch {
	case method.Name == "version" && len(method.Inputs) == 0:
		out, err := p.packVersion(*method)
		return out, nil, err
	case method.Name == p.Initializer:
		if p.InitReverts {
			return nil, nil, &revert{}
		}
		if initialized, _ := storage[initializedKey].(bool); initialized {
			return nil, nil, &revert{data: proxy.SelectorInvalidInitialization}
		}
		writes = map[string]any{initializedKey: true}
		for i, in := range method.Inputs {
			writes[in.Name] = args[i]
		}
		return nil, writes, nil
	case strings.HasPrefix(method.Name, "set") && len(method.Inputs) == 1:
		return nil, map[string]any{method.Inputs[0].Name: args[0]}, nil
	case len(method.Inputs) == 0 && len(method.Outputs) == 1:
		val, ok := storage[method.Name]
		if !ok {
			val = zeroValue(method.Outputs[0].Type)
		}
		out, err := method.Outputs.Pack(val)
		if err != nil {
			return nil, nil, &revert{}
		}
		return out, nil, nil
	default:
		return nil, nil, &revert{}
	}
}

func (p *Program) packVersion(method abi.Method) ([]byte, error) {
	if len(method.Outputs) != 1 {
		return nil, &revert{}
	}
	switch method.Outputs[0].Type.T {
	case abi.StringTy:
		return method.Outputs.Pack(p.Version)
	case abi.UintTy:
		v, err := semver.NewVersion(p.Version)
		if err != nil {
			return nil, &revert{}
		}
		return method.Outputs.Pack(zeroExtend(method.Outputs[0].Type, v.Major()))
	default:
		return nil, &revert{}
	}
}

func zeroExtend(t abi.Type, n uint64) any {
	if t.Size > 64 {
		return new(big.Int).SetUint64(n)
	}
	return reflect.ValueOf(n).Convert(t.GetType()).Interface()
}

func zeroValue(t abi.Type) any {
	switch t.T {
	case abi.IntTy, abi.UintTy:
		if t.Size > 64 {
			return new(big.Int)
		}
	case abi.AddressTy:
		return common.Address{}
	}
	return reflect.Zero(t.GetType()).Interface()
}

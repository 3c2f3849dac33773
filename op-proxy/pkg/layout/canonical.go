package layout

import (
	"fmt"
	"strings"

	"github.com/mantlenetworkio/proxy-ops/op-chain-ops/solc"
)

// canonicalizer renders solc type IDs without the AST ids embedded in them,
// which change between compilations of otherwise identical types.
type canonicalizer struct {
	types    map[string]solc.StorageLayoutType
	visiting map[string]bool
	cache    map[string]string
}

func newCanonicalizer(l *solc.StorageLayout) *canonicalizer {
	return &canonicalizer{
		types:    l.Types,
		visiting: make(map[string]bool),
		cache:    make(map[string]string),
	}
}

func (c *canonicalizer) canonical(id string) string {
	if out, ok := c.cache[id]; ok {
		return out
	}
	ty, ok := c.types[id]
	if !ok {
		return id
	}
	if c.visiting[id] {
		// recursive struct, refer to it by name
		return ty.Label
	}
	c.visiting[id] = true
	defer delete(c.visiting, id)

	var out string
	switch {
	case ty.Encoding == "mapping":
		out = fmt.Sprintf("mapping(%s => %s)", c.canonical(ty.Key), c.canonical(ty.Value))
	case ty.Base != "":
		out = c.canonical(ty.Base) + arraySuffix(ty.Label)
	case len(ty.Members) > 0:
		members := make([]string, 0, len(ty.Members))
		for _, m := range ty.Members {
			members = append(members, fmt.Sprintf("%s@%d+%d:%s", m.Label, m.Slot, m.Offset, c.canonical(m.Type)))
		}
		out = "struct{" + strings.Join(members, ";") + "}"
	default:
		out = fmt.Sprintf("%s/%d", ty.Label, ty.NumberOfBytes)
	}
	c.cache[id] = out
	return out
}

// elementType is the canonical type of an array's elements, or the type itself otherwise.
func (c *canonicalizer) elementType(id string) string {
	if ty, ok := c.types[id]; ok && ty.Base != "" {
		return c.canonical(ty.Base)
	}
	return c.canonical(id)
}

// arraySuffix returns the trailing dimension of an array label, "[3]" for "uint256[3]".
func arraySuffix(label string) string {
	if i := strings.LastIndex(label, "["); i >= 0 {
		return label[i:]
	}
	return "[]"
}

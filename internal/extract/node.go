package extract

import (
	"strings"

	"github.com/JakeFAU/crunchbase-miner/internal/crunchbase"
)

// Node is one decoded JSON object of a raw record.
type Node map[string]any

// Lookup walks a dotted path such as "funding_total.value_usd". It reports
// false when any segment is missing, when an intermediate value is not an
// object, or when the final value is JSON null.
func (n Node) Lookup(path string) (any, bool) {
	var cur any = map[string]any(n)
	for _, key := range strings.Split(path, ".") {
		obj, ok := asObject(cur)
		if !ok {
			return nil, false
		}
		cur, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

// Has reports whether path resolves to a non-null value.
func (n Node) Has(path string) bool {
	_, ok := n.Lookup(path)
	return ok
}

func asObject(v any) (map[string]any, bool) {
	switch obj := v.(type) {
	case map[string]any:
		return obj, true
	case Node:
		return obj, true
	case crunchbase.RawRecord:
		return obj, true
	default:
		return nil, false
	}
}

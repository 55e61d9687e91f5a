// Package samples ships the example documents from the API documentation. They
// seed development databases and double as test fixtures.
package samples

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

var (
	//go:embed nfe.json
	nfe []byte
	//go:embed nfse.json
	nfse []byte
)

// NFe returns a copy of the sample goods invoice (two line items).
func NFe() []byte { return clone(nfe) }

// NFSe returns a copy of the sample service invoice.
func NFSe() []byte { return clone(nfse) }

// All returns every sample payload.
func All() [][]byte { return [][]byte{NFe(), NFSe()} }

// NFeWith returns the sample NFe with top-level fields overridden. A nil value
// removes the field.
func NFeWith(overrides map[string]any) []byte { return with(nfe, overrides) }

// NFSeWith is NFeWith for the service invoice.
func NFSeWith(overrides map[string]any) []byte { return with(nfse, overrides) }

func with(base []byte, overrides map[string]any) []byte {
	var m map[string]any
	if err := json.Unmarshal(base, &m); err != nil {
		panic(fmt.Sprintf("samples: decode: %v", err))
	}
	for k, v := range overrides {
		if v == nil {
			delete(m, k)
			continue
		}
		m[k] = v
	}
	out, err := json.Marshal(m)
	if err != nil {
		panic(fmt.Sprintf("samples: encode: %v", err))
	}
	return out
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Items builds n line items for NFeWith(map[string]any{"itens": ...}).
func Items(n int) []map[string]any {
	items := make([]map[string]any, 0, n)
	for i := range n {
		items = append(items, map[string]any{
			"codigo":         fmt.Sprintf("PROD%03d", i+1),
			"descricao":      fmt.Sprintf("Produto %d", i+1),
			"quantidade":     1,
			"valor_unitario": 10.5,
			"valor_total":    10.5,
		})
	}
	return items
}

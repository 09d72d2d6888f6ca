package asset

import (
	"sort"

	"github.com/motiz88/parcel/internal/diagnostics"
)

// Symbol is one entry in a symbol table: an exported (or imported) name
// bound to a local identifier.
type Symbol struct {
	// Local is the binding name inside the declaring asset
	Local string `json:"local"`
	// Loc is where the symbol was declared, when known
	Loc *diagnostics.SourceLocation `json:"loc,omitempty"`
	// IsWeak marks a dependency import that only re-exports the name
	// without referencing it in the importing asset
	IsWeak bool `json:"is_weak,omitempty"`
	// Meta carries transformer-specific annotations
	Meta map[string]interface{} `json:"meta,omitempty"`
}

// SymbolTable maps exported names to their local bindings. The distinguished
// cleared state means "exports unknown" and must be treated conservatively
// (assume all exports possibly used); an explicit empty table means
// "exports nothing".
type SymbolTable struct {
	symbols map[string]Symbol
	cleared bool
}

// NewSymbolTable creates an explicit empty table
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{symbols: make(map[string]Symbol)}
}

// ClearedSymbolTable creates a table in the "exports unknown" state
func ClearedSymbolTable() *SymbolTable {
	return &SymbolTable{symbols: make(map[string]Symbol), cleared: true}
}

// Set records a symbol under the exported name
func (t *SymbolTable) Set(exported string, sym Symbol) {
	t.symbols[exported] = sym
}

// Get looks up the symbol for an exported name
func (t *SymbolTable) Get(exported string) (Symbol, bool) {
	sym, ok := t.symbols[exported]
	return sym, ok
}

// IsCleared reports whether exports are unknown
func (t *SymbolTable) IsCleared() bool {
	return t.cleared
}

// Len returns the number of known symbols
func (t *SymbolTable) Len() int {
	return len(t.symbols)
}

// Names returns all exported names in sorted order
func (t *SymbolTable) Names() []string {
	names := make([]string, 0, len(t.symbols))
	for name := range t.symbols {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Copy returns an independent copy of the table
func (t *SymbolTable) Copy() *SymbolTable {
	out := &SymbolTable{
		symbols: make(map[string]Symbol, len(t.symbols)),
		cleared: t.cleared,
	}
	for name, sym := range t.symbols {
		out.symbols[name] = sym
	}
	return out
}

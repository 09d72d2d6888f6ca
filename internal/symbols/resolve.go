// Package symbols walks export/import symbol tables across the asset graph
// to resolve a symbol to its defining asset, detect dead re-export chains,
// and compute the used-symbol set that drives dead-code elimination.
package symbols

import (
	"github.com/motiz88/parcel/internal/asset"
	"github.com/motiz88/parcel/internal/assetgraph"
)

// Outcome is the terminal state of one (asset, symbol) resolution
type Outcome int

const (
	// Resolved means the symbol is a real declaration on a concrete asset
	Resolved Outcome = iota
	// BailOut means the export table was in the cleared/unknown state;
	// the caller must treat the asset's whole namespace as live
	BailOut
	// NotFound means no declaration exists anywhere in the re-export chain
	NotFound
	// Skipped means a resolver explicitly excluded the edge
	Skipped
)

// String returns the outcome name
func (o Outcome) String() string {
	switch o {
	case Resolved:
		return "resolved"
	case BailOut:
		return "bailout"
	case NotFound:
		return "not-found"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Resolution is the result of resolving an exported symbol. Asset is set for
// Resolved and BailOut, and for NotFound when traversal stopped at a
// boundary: the asset reached is identified even though the binding is not.
type Resolution struct {
	Outcome Outcome
	Asset   *asset.Asset
	Binding string
}

// ExportStar is the import-table name used for `export * from` re-exports
const ExportStar = "*"

// Engine resolves symbols against one asset graph
type Engine struct {
	graph *assetgraph.Graph
}

// NewEngine creates a symbol resolution engine for the graph
func NewEngine(g *assetgraph.Graph) *Engine {
	return &Engine{graph: g}
}

// Resolve finds the defining asset and local binding for an exported symbol,
// following weak (re-export) dependencies. The boundary predicate, when
// non-nil, confines traversal: reaching an asset outside the boundary stops
// with NotFound while still identifying the asset reached. Cyclic re-export
// chains terminate via a visited set keyed by (asset id, symbol).
func (e *Engine) Resolve(a *asset.Asset, symbol string, boundary func(assetID string) bool) Resolution {
	visited := make(map[[2]string]struct{})
	return e.resolve(a, symbol, boundary, visited)
}

func (e *Engine) resolve(a *asset.Asset, symbol string, boundary func(string) bool, visited map[[2]string]struct{}) Resolution {
	key := [2]string{a.ID, symbol}
	if _, seen := visited[key]; seen {
		return Resolution{Outcome: NotFound, Asset: a}
	}
	visited[key] = struct{}{}

	if a.Symbols.IsCleared() {
		return Resolution{Outcome: BailOut, Asset: a}
	}
	if sym, ok := a.Symbols.Get(symbol); ok {
		return Resolution{Outcome: Resolved, Asset: a, Binding: sym.Local}
	}

	for _, dep := range e.graph.DependenciesOf(a.ID) {
		reexported, star := reexportsAs(dep, symbol)
		if reexported == "" {
			continue
		}
		if e.graph.IsExcluded(dep.ID) {
			return Resolution{Outcome: Skipped, Asset: a}
		}
		target, ok := e.graph.TargetOf(dep.ID)
		if !ok {
			continue
		}
		if boundary != nil && !boundary(target.ID) {
			return Resolution{Outcome: NotFound, Asset: target}
		}

		next := symbol
		if !star {
			next = reexported
		}
		res := e.resolve(target, next, boundary, visited)
		if res.Outcome == Resolved || res.Outcome == BailOut || res.Outcome == Skipped {
			return res
		}
	}

	return Resolution{Outcome: NotFound, Asset: a}
}

// reexportsAs reports how dep re-exports the given name: the name on the
// target asset, and whether the match came from an export-star entry
func reexportsAs(dep *asset.Dependency, symbol string) (string, bool) {
	if sym, ok := dep.Symbols.Get(symbol); ok && sym.IsWeak {
		local := sym.Local
		if local == "" {
			local = symbol
		}
		return local, false
	}
	if sym, ok := dep.Symbols.Get(ExportStar); ok && sym.IsWeak {
		return ExportStar, true
	}
	return "", false
}

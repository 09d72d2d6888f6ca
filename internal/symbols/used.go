package symbols

import (
	"sort"

	"github.com/motiz88/parcel/internal/asset"
)

// UsedSet is the set of exported symbols demanded from one asset by its
// live importers
type UsedSet struct {
	// All marks the whole namespace as used: the asset is an entry, its
	// export table is cleared, or an importer demanded the namespace
	All   bool
	names map[string]struct{}
}

// Has reports whether the exported name survives dead-code elimination
func (u *UsedSet) Has(name string) bool {
	if u.All {
		return true
	}
	_, ok := u.names[name]
	return ok
}

// Names returns the demanded names in sorted order; meaningless when All
func (u *UsedSet) Names() []string {
	names := make([]string, 0, len(u.names))
	for name := range u.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of individually demanded names
func (u *UsedSet) Len() int {
	return len(u.names)
}

// UsedSymbols computes, per asset, the union of symbols transitively
// demanded by all live importers. Entry assets and assets with cleared
// export tables are conservatively fully used. Weak re-export entries only
// propagate demand for symbols that are themselves demanded upstream.
func (e *Engine) UsedSymbols() map[string]*UsedSet {
	used := make(map[string]*UsedSet)
	ensure := func(id string) *UsedSet {
		if s, ok := used[id]; ok {
			return s
		}
		s := &UsedSet{names: make(map[string]struct{})}
		used[id] = s
		return s
	}

	type demand struct {
		assetID string
		name    string // ExportStar demands the whole namespace
	}
	queue := make([]demand, 0)

	push := func(assetID, name string) {
		s := ensure(assetID)
		if s.All {
			return
		}
		if name == ExportStar {
			s.All = true
			queue = append(queue, demand{assetID, ExportStar})
			return
		}
		if _, ok := s.names[name]; ok {
			return
		}
		s.names[name] = struct{}{}
		queue = append(queue, demand{assetID, name})
	}

	// Seed: entry assets are fully used; cleared export tables are
	// conservatively fully used; every live importer demands its non-weak
	// imports from its dependency's target.
	for _, dep := range e.graph.EntryDependencies() {
		if target, ok := e.graph.TargetOf(dep.ID); ok {
			push(target.ID, ExportStar)
		}
	}
	e.graph.Walk(func(a *asset.Asset, _ *asset.Dependency) bool {
		if a.Symbols.IsCleared() {
			push(a.ID, ExportStar)
		}
		for _, dep := range e.graph.DependenciesOf(a.ID) {
			target, ok := e.graph.TargetOf(dep.ID)
			if !ok {
				continue
			}
			if dep.Symbols.IsCleared() {
				push(target.ID, ExportStar)
				continue
			}
			for _, name := range dep.Symbols.Names() {
				sym, _ := dep.Symbols.Get(name)
				if sym.IsWeak {
					continue
				}
				push(target.ID, name)
			}
		}
		return true
	})

	// Propagate demand through weak re-export chains to a fixpoint
	for len(queue) > 0 {
		d := queue[0]
		queue = queue[1:]

		a, ok := e.graph.GetAsset(d.assetID)
		if !ok {
			continue
		}
		for _, dep := range e.graph.DependenciesOf(a.ID) {
			target, ok := e.graph.TargetOf(dep.ID)
			if !ok {
				continue
			}
			if d.name == ExportStar {
				// The whole namespace is demanded: every re-export
				// becomes live on its target
				for _, name := range dep.Symbols.Names() {
					sym, _ := dep.Symbols.Get(name)
					if !sym.IsWeak {
						continue
					}
					if name == ExportStar {
						push(target.ID, ExportStar)
						continue
					}
					local := sym.Local
					if local == "" {
						local = name
					}
					push(target.ID, local)
				}
				continue
			}

			// A named demand only flows through a matching weak entry,
			// and only when the asset does not declare the name itself
			if _, declared := a.Symbols.Get(d.name); declared {
				continue
			}
			if sym, ok := dep.Symbols.Get(d.name); ok && sym.IsWeak {
				local := sym.Local
				if local == "" {
					local = d.name
				}
				push(target.ID, local)
			} else if star, ok := dep.Symbols.Get(ExportStar); ok && star.IsWeak {
				push(target.ID, d.name)
			}
		}
	}

	return used
}

// Package assetgraph stores the directed graph of assets connected by
// dependencies, rooted at a synthetic build root. It supports cycle-safe
// traversal, reachability pruning, and locating the subgraph affected by an
// invalidation so a rebuild touches only what changed.
package assetgraph

import (
	"path/filepath"
	"sync"

	"github.com/motiz88/parcel/internal/asset"
	"github.com/motiz88/parcel/internal/fingerprint"
)

// Graph is the dependency graph over assets. Nodes are assets and
// dependencies; edges run dependency -> resolved asset. Cycles are legal
// (mutual imports) and never cause infinite traversal.
type Graph struct {
	mu sync.RWMutex

	assets map[string]*asset.Asset
	deps   map[string]*asset.Dependency

	// outgoing holds dependency ids per asset, in declaration order, so
	// results arriving from parallel workers reassemble deterministically
	outgoing map[string][]string
	incoming map[string][]string
	target   map[string]string

	rootDeps   []string
	unresolved map[string]struct{}
	excluded   map[string]struct{}

	// createWatches holds file-create globs per unresolved dependency, so
	// creating a file that would satisfy the specifier re-runs its importer
	createWatches map[string][]string
}

// New creates an empty asset graph
func New() *Graph {
	return &Graph{
		assets:     make(map[string]*asset.Asset),
		deps:       make(map[string]*asset.Dependency),
		outgoing:   make(map[string][]string),
		incoming:   make(map[string][]string),
		target:     make(map[string]string),
		unresolved: make(map[string]struct{}),
		excluded:   make(map[string]struct{}),

		createWatches: make(map[string][]string),
	}
}

// AddEntryDependency attaches a dependency to the synthetic root
func (g *Graph) AddEntryDependency(dep *asset.Dependency) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.deps[dep.ID] = dep
	for _, id := range g.rootDeps {
		if id == dep.ID {
			return
		}
	}
	g.rootDeps = append(g.rootDeps, dep.ID)
}

// AddAsset registers an asset and its declared dependencies, replacing any
// previous version of the asset. Stale dependencies from an earlier
// transform of the same asset are discarded.
func (g *Graph) AddAsset(a *asset.Asset) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if old, ok := g.assets[a.ID]; ok {
		for _, depID := range g.outgoing[old.ID] {
			g.detachDependency(depID)
		}
	}

	g.assets[a.ID] = a
	g.outgoing[a.ID] = nil
	for _, dep := range a.Dependencies {
		g.deps[dep.ID] = dep
		g.outgoing[a.ID] = append(g.outgoing[a.ID], dep.ID)
	}
}

// detachDependency removes a dependency edge; caller holds the lock
func (g *Graph) detachDependency(depID string) {
	if targetID, ok := g.target[depID]; ok {
		in := g.incoming[targetID]
		for i, id := range in {
			if id == depID {
				g.incoming[targetID] = append(in[:i], in[i+1:]...)
				break
			}
		}
		delete(g.target, depID)
	}
	delete(g.deps, depID)
	delete(g.unresolved, depID)
	delete(g.excluded, depID)
	delete(g.createWatches, depID)
}

// Resolve connects a dependency to its target asset
func (g *Graph) Resolve(depID, assetID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if old, ok := g.target[depID]; ok {
		if old == assetID {
			// Re-resolving to the same target keeps the existing edge
			delete(g.unresolved, depID)
			delete(g.excluded, depID)
			delete(g.createWatches, depID)
			return
		}
		in := g.incoming[old]
		for i, id := range in {
			if id == depID {
				g.incoming[old] = append(in[:i], in[i+1:]...)
				break
			}
		}
	}
	g.target[depID] = assetID
	g.incoming[assetID] = append(g.incoming[assetID], depID)
	delete(g.unresolved, depID)
	delete(g.excluded, depID)
	delete(g.createWatches, depID)
}

// MarkUnresolved records that resolution failed for an optional dependency;
// the build continues without a target
func (g *Graph) MarkUnresolved(depID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.unresolved[depID] = struct{}{}
}

// WatchFileCreate records globs for a dependency that failed to resolve;
// a file-create event matching one of them flags the dependency's source
// asset as affected so resolution is retried. The watches are dropped once
// the dependency resolves.
func (g *Graph) WatchFileCreate(depID string, globs ...string) {
	if len(globs) == 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createWatches[depID] = append(g.createWatches[depID], globs...)
}

// MarkExcluded records a resolver opt-out for the dependency
func (g *Graph) MarkExcluded(depID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.excluded[depID] = struct{}{}
}

// IsExcluded reports whether a resolver opted the dependency out
func (g *Graph) IsExcluded(depID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.excluded[depID]
	return ok
}

// GetAsset returns the asset with the given id
func (g *Graph) GetAsset(id string) (*asset.Asset, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	a, ok := g.assets[id]
	return a, ok
}

// GetDependency returns the dependency with the given id
func (g *Graph) GetDependency(id string) (*asset.Dependency, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	d, ok := g.deps[id]
	return d, ok
}

// TargetOf returns the resolved target asset of a dependency
func (g *Graph) TargetOf(depID string) (*asset.Asset, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	assetID, ok := g.target[depID]
	if !ok {
		return nil, false
	}
	a, ok := g.assets[assetID]
	return a, ok
}

// DependenciesOf returns the dependencies declared by an asset, in
// declaration order
func (g *Graph) DependenciesOf(assetID string) []*asset.Dependency {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]*asset.Dependency, 0, len(g.outgoing[assetID]))
	for _, depID := range g.outgoing[assetID] {
		if dep, ok := g.deps[depID]; ok {
			out = append(out, dep)
		}
	}
	return out
}

// IncomingOf returns the resolved dependencies pointing at an asset
func (g *Graph) IncomingOf(assetID string) []*asset.Dependency {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]*asset.Dependency, 0, len(g.incoming[assetID]))
	for _, depID := range g.incoming[assetID] {
		if dep, ok := g.deps[depID]; ok {
			out = append(out, dep)
		}
	}
	return out
}

// EntryDependencies returns the root's dependencies in entry order
func (g *Graph) EntryDependencies() []*asset.Dependency {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]*asset.Dependency, 0, len(g.rootDeps))
	for _, depID := range g.rootDeps {
		if dep, ok := g.deps[depID]; ok {
			out = append(out, dep)
		}
	}
	return out
}

// AssetCount returns the number of assets in the graph
func (g *Graph) AssetCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.assets)
}

// Assets returns all assets in the graph
func (g *Graph) Assets() []*asset.Asset {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]*asset.Asset, 0, len(g.assets))
	for _, a := range g.assets {
		out = append(out, a)
	}
	return out
}

// Walk visits every asset reachable from the root in breadth-first order,
// following resolved edges. Each asset is visited once; cycles terminate.
func (g *Graph) Walk(visit func(a *asset.Asset, via *asset.Dependency) bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	type item struct {
		assetID string
		depID   string
	}

	queue := make([]item, 0, len(g.rootDeps))
	for _, depID := range g.rootDeps {
		if assetID, ok := g.target[depID]; ok {
			queue = append(queue, item{assetID, depID})
		}
	}

	visited := make(map[string]struct{})
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		if _, seen := visited[it.assetID]; seen {
			continue
		}
		visited[it.assetID] = struct{}{}

		a, ok := g.assets[it.assetID]
		if !ok {
			continue
		}
		if !visit(a, g.deps[it.depID]) {
			return
		}
		for _, depID := range g.outgoing[it.assetID] {
			if targetID, ok := g.target[depID]; ok {
				queue = append(queue, item{targetID, depID})
			}
		}
	}
}

// WalkFrom visits the downstream subgraph of a starting asset. The skip
// predicate stops descent through specific dependencies (used to keep
// lazy-loaded subgraphs out of a synchronous traversal).
func (g *Graph) WalkFrom(assetID string, skip func(*asset.Dependency) bool, visit func(a *asset.Asset) bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := make(map[string]struct{})
	queue := []string{assetID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if _, seen := visited[id]; seen {
			continue
		}
		visited[id] = struct{}{}

		a, ok := g.assets[id]
		if !ok {
			continue
		}
		if !visit(a) {
			return
		}
		for _, depID := range g.outgoing[id] {
			dep := g.deps[depID]
			if skip != nil && dep != nil && skip(dep) {
				continue
			}
			if targetID, ok := g.target[depID]; ok {
				queue = append(queue, targetID)
			}
		}
	}
}

// TransitiveDependents returns every asset that can reach the given asset
// through resolved edges, walking incoming edges backward
func (g *Graph) TransitiveDependents(assetID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := map[string]struct{}{assetID: {}}
	result := make([]string, 0)

	var visit func(id string)
	visit = func(id string) {
		for _, depID := range g.incoming[id] {
			dep, ok := g.deps[depID]
			if !ok || dep.SourceAssetID == "" {
				continue
			}
			if _, seen := visited[dep.SourceAssetID]; seen {
				continue
			}
			visited[dep.SourceAssetID] = struct{}{}
			result = append(result, dep.SourceAssetID)
			visit(dep.SourceAssetID)
		}
	}
	visit(assetID)
	return result
}

// AffectedBy returns the ids of assets whose recorded invalidation set
// intersects the given change events
func (g *Graph) AffectedBy(events []fingerprint.Event) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	affected := make([]string, 0)
	for id, a := range g.assets {
		for _, inv := range a.Invalidations {
			matched := false
			for _, ev := range events {
				if inv.Matches(ev) {
					matched = true
					break
				}
			}
			if matched {
				affected = append(affected, id)
				break
			}
		}
	}

	seen := make(map[string]struct{}, len(affected))
	for _, id := range affected {
		seen[id] = struct{}{}
	}
	for depID, globs := range g.createWatches {
		dep, ok := g.deps[depID]
		if !ok || dep.SourceAssetID == "" {
			continue
		}
		if _, dup := seen[dep.SourceAssetID]; dup {
			continue
		}
		if _, exists := g.assets[dep.SourceAssetID]; !exists {
			continue
		}
		for _, ev := range events {
			if ev.Kind != fingerprint.FileCreate {
				continue
			}
			hit := false
			for _, glob := range globs {
				if matched, err := filepath.Match(glob, ev.Key); err == nil && matched {
					hit = true
					break
				}
			}
			if hit {
				seen[dep.SourceAssetID] = struct{}{}
				affected = append(affected, dep.SourceAssetID)
				break
			}
		}
	}
	return affected
}

// Prune removes every asset not reachable from the root and returns the
// removed asset ids
func (g *Graph) Prune() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	reachable := make(map[string]struct{})
	queue := make([]string, 0, len(g.rootDeps))
	for _, depID := range g.rootDeps {
		if assetID, ok := g.target[depID]; ok {
			queue = append(queue, assetID)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if _, seen := reachable[id]; seen {
			continue
		}
		reachable[id] = struct{}{}
		for _, depID := range g.outgoing[id] {
			if targetID, ok := g.target[depID]; ok {
				queue = append(queue, targetID)
			}
		}
	}

	removed := make([]string, 0)
	for id := range g.assets {
		if _, ok := reachable[id]; ok {
			continue
		}
		removed = append(removed, id)
		for _, depID := range g.outgoing[id] {
			g.detachDependency(depID)
		}
		delete(g.assets, id)
		delete(g.outgoing, id)
		delete(g.incoming, id)
	}
	return removed
}

// Clone returns an independent structural copy of the graph. Patches build
// against a clone and swap it in atomically so readers never observe a
// partially updated graph.
func (g *Graph) Clone() *Graph {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := New()
	for id, a := range g.assets {
		out.assets[id] = a
	}
	for id, d := range g.deps {
		out.deps[id] = d
	}
	for id, depIDs := range g.outgoing {
		out.outgoing[id] = append([]string(nil), depIDs...)
	}
	for id, depIDs := range g.incoming {
		out.incoming[id] = append([]string(nil), depIDs...)
	}
	for depID, assetID := range g.target {
		out.target[depID] = assetID
	}
	out.rootDeps = append([]string(nil), g.rootDeps...)
	for id := range g.unresolved {
		out.unresolved[id] = struct{}{}
	}
	for id := range g.excluded {
		out.excluded[id] = struct{}{}
	}
	for depID, globs := range g.createWatches {
		out.createWatches[depID] = append([]string(nil), globs...)
	}
	return out
}

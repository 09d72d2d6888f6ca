package bundlegraph

import (
	"fmt"
	"sort"

	"github.com/motiz88/parcel/internal/asset"
)

// AsyncOutcome classifies what an async dependency ultimately lands on
type AsyncOutcome int

const (
	// AsyncNone means the dependency is not async or produced nothing
	AsyncNone AsyncOutcome = iota
	// AsyncGroup means the dependency loads a bundle group
	AsyncGroup
	// AsyncInternalized means both ends were co-located and the edge was
	// demoted to an in-bundle reference
	AsyncInternalized
	// AsyncSkipped means the dependency was marked dead code
	AsyncSkipped
	// AsyncExcluded means a resolver opted the dependency out
	AsyncExcluded
)

// AsyncResolution is the result of resolving an async dependency
type AsyncResolution struct {
	Outcome AsyncOutcome
	Group   *BundleGroup
	Asset   *asset.Asset
}

// ResolveAsyncDependency returns the bundle group or in-bundle asset an
// async dependency lands on. Every async dependency resolves to exactly one
// group, or is explicitly skipped, internalized, or excluded.
func (g *Graph) ResolveAsyncDependency(dep *asset.Dependency) AsyncResolution {
	if !dep.IsAsync() {
		return AsyncResolution{Outcome: AsyncNone}
	}
	if _, ok := g.skippedDeps[dep.ID]; ok {
		return AsyncResolution{Outcome: AsyncSkipped}
	}
	if g.assets.IsExcluded(dep.ID) {
		return AsyncResolution{Outcome: AsyncExcluded}
	}
	for _, deps := range g.internalized {
		if _, ok := deps[dep.ID]; ok {
			if target, ok := g.assets.TargetOf(dep.ID); ok {
				return AsyncResolution{Outcome: AsyncInternalized, Asset: target}
			}
		}
	}
	if groupID, ok := g.depToGroup[dep.ID]; ok {
		return AsyncResolution{Outcome: AsyncGroup, Group: g.groups[groupID]}
	}
	return AsyncResolution{Outcome: AsyncNone}
}

// GetBundle returns the bundle with the given id
func (g *Graph) GetBundle(id string) (*Bundle, bool) {
	b, ok := g.bundles[id]
	return b, ok
}

// Bundles returns all bundles sorted by id for deterministic iteration
func (g *Graph) Bundles() []*Bundle {
	out := make([]*Bundle, 0, len(g.bundles))
	for _, b := range g.bundles {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// BundleGroups returns all bundle groups sorted by id
func (g *Graph) BundleGroups() []*BundleGroup {
	out := make([]*BundleGroup, 0, len(g.groups))
	for _, group := range g.groups {
		out = append(out, group)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// BundlesInGroup returns a group's bundles in load order
func (g *Graph) BundlesInGroup(group *BundleGroup) []*Bundle {
	out := make([]*Bundle, 0, len(g.groupBundles[group.ID]))
	for _, id := range g.groupBundles[group.ID] {
		if b, ok := g.bundles[id]; ok {
			out = append(out, b)
		}
	}
	return out
}

// AssetsInBundle returns a bundle's assets in insertion order
func (g *Graph) AssetsInBundle(b *Bundle) []*asset.Asset {
	out := make([]*asset.Asset, 0, len(g.containOrder[b.ID]))
	for _, id := range g.containOrder[b.ID] {
		if a, ok := g.assets.GetAsset(id); ok {
			out = append(out, a)
		}
	}
	return out
}

// BundleContains reports whether the bundle's contains set has the asset
func (g *Graph) BundleContains(b *Bundle, assetID string) bool {
	_, ok := g.contains[b.ID][assetID]
	return ok
}

// BundlesContaining returns every bundle whose contains set has the asset
func (g *Graph) BundlesContaining(assetID string) []*Bundle {
	out := make([]*Bundle, 0)
	for _, b := range g.Bundles() {
		if g.BundleContains(b, assetID) {
			out = append(out, b)
		}
	}
	return out
}

// GetParentBundles returns the bundles that cause b to load: bundles
// referencing it directly, and bundles containing an async dependency whose
// group includes b
func (g *Graph) GetParentBundles(b *Bundle) []*Bundle {
	parentIDs := make(map[string]struct{})
	for _, id := range g.referrers[b.ID] {
		parentIDs[id] = struct{}{}
	}

	groupIDs := make(map[string]struct{})
	for _, id := range g.bundleGroupsOf[b.ID] {
		groupIDs[id] = struct{}{}
	}
	for depID, groupID := range g.depToGroup {
		if _, ok := groupIDs[groupID]; !ok {
			continue
		}
		dep, ok := g.assets.GetDependency(depID)
		if !ok || dep.SourceAssetID == "" {
			continue
		}
		for _, parent := range g.BundlesContaining(dep.SourceAssetID) {
			if parent.ID != b.ID {
				parentIDs[parent.ID] = struct{}{}
			}
		}
	}

	out := make([]*Bundle, 0, len(parentIDs))
	for id := range parentIDs {
		out = append(out, g.bundles[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetChildBundles returns the bundles b causes to load
func (g *Graph) GetChildBundles(b *Bundle) []*Bundle {
	childIDs := make(map[string]struct{})
	for _, id := range g.references[b.ID] {
		childIDs[id] = struct{}{}
	}

	for _, assetID := range g.containOrder[b.ID] {
		for _, dep := range g.assets.DependenciesOf(assetID) {
			groupID, ok := g.depToGroup[dep.ID]
			if !ok {
				continue
			}
			for _, childID := range g.groupBundles[groupID] {
				if childID != b.ID {
					childIDs[childID] = struct{}{}
				}
			}
		}
	}

	out := make([]*Bundle, 0, len(childIDs))
	for id := range childIDs {
		out = append(out, g.bundles[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IsAssetReachableFromBundle reports whether an environment-compatible
// ancestor bundle already contains the asset, meaning it is guaranteed to be
// loaded and need not be duplicated in b
func (g *Graph) IsAssetReachableFromBundle(a *asset.Asset, b *Bundle) bool {
	visited := map[string]struct{}{b.ID: {}}
	queue := g.GetParentBundles(b)
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		if _, seen := visited[parent.ID]; seen {
			continue
		}
		visited[parent.ID] = struct{}{}

		if g.BundleContains(parent, a.ID) && a.Env.IsCompatibleWith(parent.Env) {
			return true
		}
		queue = append(queue, g.GetParentBundles(parent)...)
	}
	return false
}

// Validate checks the placement invariant: an asset reachable only through
// sync dependencies resides in exactly one bundle along any load path. The
// same asset held by sibling entry bundles is legal; held by a bundle and
// again by a compatible ancestor of that bundle it is a redundant duplicate.
// Async duplication is allowed because it is always an explicit bundler
// decision.
func (g *Graph) Validate() error {
	syncOnly := make(map[string]bool)
	g.assets.Walk(func(a *asset.Asset, _ *asset.Dependency) bool {
		isSync := true
		for _, in := range g.assets.IncomingOf(a.ID) {
			if in.IsAsync() {
				isSync = false
				break
			}
		}
		syncOnly[a.ID] = isSync
		return true
	})

	for assetID, isSync := range syncOnly {
		if !isSync {
			continue
		}
		a, ok := g.assets.GetAsset(assetID)
		if !ok {
			continue
		}
		for _, b := range g.Bundles() {
			if !g.BundleContains(b, assetID) {
				continue
			}
			if g.IsAssetReachableFromBundle(a, b) {
				return fmt.Errorf("bundlegraph: sync-only asset %s is duplicated in bundle %s and an ancestor on its load path", a.FilePath, b.ID)
			}
		}
	}
	return nil
}

package builtin

import (
	"context"

	"github.com/motiz88/parcel/internal/asset"
	"github.com/motiz88/parcel/internal/bundlegraph"
)

// DefaultBundler implements the default bundling strategy: each entry gets
// a bundle holding its synchronous subgraph, each async dependency gets a
// bundle group with its own bundle, and the optimize phase hoists assets
// already guaranteed by a compatible ancestor bundle.
type DefaultBundler struct {
	Target bundlegraph.Target
}

// NewDefaultBundler creates the default bundler writing to target
func NewDefaultBundler(target bundlegraph.Target) *DefaultBundler {
	return &DefaultBundler{Target: target}
}

// Name implements plugin.Bundler
func (b *DefaultBundler) Name() string { return "bundler-default" }

// skipAsync stops sync-subgraph traversal at bundle boundaries
func skipAsync(dep *asset.Dependency) bool {
	return dep.IsAsync()
}

// Bundle implements plugin.Bundler
func (b *DefaultBundler) Bundle(ctx context.Context, g *bundlegraph.Graph) error {
	ag := g.AssetGraph()

	for _, entryDep := range ag.EntryDependencies() {
		entry, ok := ag.TargetOf(entryDep.ID)
		if !ok {
			continue
		}
		bundle, err := g.CreateBundle(bundlegraph.CreateBundleOptions{
			EntryAsset: entry,
			Target:     b.Target,
			IsEntry:    true,
		})
		if err != nil {
			return err
		}
		if err := g.AddAssetGraphToBundle(entry, bundle, skipAsync); err != nil {
			return err
		}
	}

	// Collect async edges across the whole reachable graph, then give each
	// one a load unit. Co-located edges are internalized instead.
	var asyncDeps []*asset.Dependency
	ag.Walk(func(a *asset.Asset, _ *asset.Dependency) bool {
		for _, dep := range ag.DependenciesOf(a.ID) {
			if dep.IsAsync() {
				asyncDeps = append(asyncDeps, dep)
			}
		}
		return true
	})

	for _, dep := range asyncDeps {
		target, ok := ag.TargetOf(dep.ID)
		if !ok {
			if ag.IsExcluded(dep.ID) {
				continue
			}
			g.MarkDependencySkipped(dep)
			continue
		}

		if home := b.coLocatedBundle(g, dep, target); home != nil {
			g.InternalizeAsyncDependency(home, dep)
			continue
		}

		group, err := g.CreateBundleGroup(dep, b.Target)
		if err != nil {
			return err
		}
		childTarget := b.Target
		childTarget.Env = target.Env
		child, err := g.CreateBundle(bundlegraph.CreateBundleOptions{
			EntryAsset: target,
			Target:     childTarget,
		})
		if err != nil {
			return err
		}
		g.AddBundleToBundleGroup(child, group)
		if err := g.AddAssetGraphToBundle(target, child, skipAsync); err != nil {
			return err
		}
	}

	return nil
}

// coLocatedBundle returns a bundle containing both ends of the async edge,
// if one exists
func (b *DefaultBundler) coLocatedBundle(g *bundlegraph.Graph, dep *asset.Dependency, target *asset.Asset) *bundlegraph.Bundle {
	if dep.SourceAssetID == "" {
		return nil
	}
	for _, bundle := range g.BundlesContaining(dep.SourceAssetID) {
		if g.BundleContains(bundle, target.ID) {
			return bundle
		}
	}
	return nil
}

// Optimize implements plugin.Bundler: drop assets from non-entry bundles
// when a compatible ancestor already guarantees them
func (b *DefaultBundler) Optimize(ctx context.Context, g *bundlegraph.Graph) error {
	stopAll := func(*asset.Dependency) bool { return true }

	for _, bundle := range g.Bundles() {
		if bundle.IsEntry {
			continue
		}
		for _, a := range g.AssetsInBundle(bundle) {
			if a.ID == bundle.MainEntryID {
				continue
			}
			if g.IsAssetReachableFromBundle(a, bundle) {
				g.RemoveAssetGraphFromBundle(a, bundle, stopAll)
			}
		}
	}
	return nil
}

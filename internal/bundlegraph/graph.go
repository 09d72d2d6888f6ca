package bundlegraph

import (
	"fmt"

	"github.com/motiz88/parcel/internal/asset"
	"github.com/motiz88/parcel/internal/assetgraph"
)

// Graph groups the assets of one asset graph into bundles and bundle groups.
// Mutations are not safe for concurrent use: the bundling phase runs to
// completion before packaging readers are given access, after which queries
// may run concurrently.
type Graph struct {
	assets *assetgraph.Graph

	bundles map[string]*Bundle
	groups  map[string]*BundleGroup

	// contains tracks Asset-in-Bundle membership with per-bundle insertion
	// order so packaging output is deterministic
	contains     map[string]map[string]struct{}
	containOrder map[string][]string

	groupBundles   map[string][]string // group id -> bundle ids, load order
	bundleGroupsOf map[string][]string // bundle id -> group ids

	depToGroup   map[string]string
	skippedDeps  map[string]struct{}
	internalized map[string]map[string]struct{} // bundle id -> dep ids

	references map[string][]string // bundle id -> referenced bundle ids
	referrers  map[string][]string

	sealed bool
}

// New creates a bundle graph over the given asset graph
func New(assets *assetgraph.Graph) *Graph {
	return &Graph{
		assets:         assets,
		bundles:        make(map[string]*Bundle),
		groups:         make(map[string]*BundleGroup),
		contains:       make(map[string]map[string]struct{}),
		containOrder:   make(map[string][]string),
		groupBundles:   make(map[string][]string),
		bundleGroupsOf: make(map[string][]string),
		depToGroup:     make(map[string]string),
		skippedDeps:    make(map[string]struct{}),
		internalized:   make(map[string]map[string]struct{}),
		references:     make(map[string][]string),
		referrers:      make(map[string][]string),
	}
}

// AssetGraph returns the underlying asset graph
func (g *Graph) AssetGraph() *assetgraph.Graph {
	return g.assets
}

// Seal ends the mutation phase; subsequent mutations panic
func (g *Graph) Seal() {
	g.sealed = true
}

func (g *Graph) mustBeMutable() {
	if g.sealed {
		panic("bundlegraph: mutation after the bundling phase completed")
	}
}

// CreateBundleOptions configures CreateBundle. Either EntryAsset is given
// and type/environment/identity derive from it, or Type, Env, and UniqueKey
// must all be provided explicitly.
type CreateBundleOptions struct {
	EntryAsset *asset.Asset
	UniqueKey  string
	Type       string
	Env        *asset.Environment
	Target     Target
	IsEntry    bool
	IsInline   bool
}

// CreateBundle creates a bundle. A call providing neither an entry asset nor
// explicit type/env/uniqueKey is a programmer error in the bundler plugin
// and fails immediately.
func (g *Graph) CreateBundle(opts CreateBundleOptions) (*Bundle, error) {
	g.mustBeMutable()

	var b *Bundle
	switch {
	case opts.EntryAsset != nil:
		a := opts.EntryAsset
		b = &Bundle{
			ID:            newBundleID(a.ID, opts.UniqueKey, a.Type, a.Env.ID(), opts.Target.Name),
			Type:          a.Type,
			Env:           a.Env,
			UniqueKey:     opts.UniqueKey,
			IsEntry:       opts.IsEntry,
			IsInline:      opts.IsInline || a.BundleBehavior == asset.BehaviorInline,
			IsSplittable:  a.IsSplittable,
			MainEntryID:   a.ID,
			EntryAssetIDs: []string{a.ID},
			Target:        opts.Target,
		}
	case opts.UniqueKey != "" && opts.Type != "" && opts.Env != nil:
		b = &Bundle{
			ID:           newBundleID("", opts.UniqueKey, opts.Type, opts.Env.ID(), opts.Target.Name),
			Type:         opts.Type,
			Env:          *opts.Env,
			UniqueKey:    opts.UniqueKey,
			IsEntry:      opts.IsEntry,
			IsInline:     opts.IsInline,
			IsSplittable: true,
			Target:       opts.Target,
		}
	default:
		return nil, fmt.Errorf("bundlegraph: CreateBundle requires an entry asset or explicit type, environment, and unique key")
	}

	b.HashRef = HashRefPrefix + b.ID
	if existing, ok := g.bundles[b.ID]; ok {
		return existing, nil
	}
	g.bundles[b.ID] = b
	g.contains[b.ID] = make(map[string]struct{})
	return b, nil
}

// AddAssetToBundle places a single asset in a bundle. The asset's
// environment must be compatible with the bundle's.
func (g *Graph) AddAssetToBundle(a *asset.Asset, b *Bundle) error {
	g.mustBeMutable()
	if !a.Env.IsCompatibleWith(b.Env) {
		return fmt.Errorf("bundlegraph: asset %s (%s) is not compatible with bundle environment %s",
			a.FilePath, a.Env.Context, b.Env.Context)
	}
	if _, ok := g.contains[b.ID][a.ID]; !ok {
		g.contains[b.ID][a.ID] = struct{}{}
		g.containOrder[b.ID] = append(g.containOrder[b.ID], a.ID)
	}
	return nil
}

// AddAssetGraphToBundle adds an asset and its downstream subgraph to the
// bundle's contains set. The skip predicate stops descent through specific
// dependencies, typically async ones that load as their own bundle.
func (g *Graph) AddAssetGraphToBundle(a *asset.Asset, b *Bundle, skip func(*asset.Dependency) bool) error {
	g.mustBeMutable()
	var addErr error
	g.assets.WalkFrom(a.ID, skip, func(node *asset.Asset) bool {
		if err := g.AddAssetToBundle(node, b); err != nil {
			addErr = err
			return false
		}
		return true
	})
	return addErr
}

// RemoveAssetGraphFromBundle removes an asset and its downstream subgraph
// from the bundle's contains set
func (g *Graph) RemoveAssetGraphFromBundle(a *asset.Asset, b *Bundle, skip func(*asset.Dependency) bool) {
	g.mustBeMutable()
	removed := make(map[string]struct{})
	g.assets.WalkFrom(a.ID, skip, func(node *asset.Asset) bool {
		if _, ok := g.contains[b.ID][node.ID]; ok {
			delete(g.contains[b.ID], node.ID)
			removed[node.ID] = struct{}{}
		}
		return true
	})
	if len(removed) > 0 {
		order := g.containOrder[b.ID][:0]
		for _, id := range g.containOrder[b.ID] {
			if _, ok := removed[id]; !ok {
				order = append(order, id)
			}
		}
		g.containOrder[b.ID] = order
	}
}

// CreateBundleGroup converts a dependency edge into
// dependency -> bundle group -> bundles, used when the dependency's priority
// requires a separate load unit
func (g *Graph) CreateBundleGroup(dep *asset.Dependency, target Target) (*BundleGroup, error) {
	g.mustBeMutable()

	entry, ok := g.assets.TargetOf(dep.ID)
	if !ok {
		return nil, fmt.Errorf("bundlegraph: dependency %q is unresolved, cannot create a bundle group", dep.Specifier)
	}

	id := newBundleID(entry.ID, "group", entry.Type, entry.Env.ID(), target.Name)
	if group, ok := g.groups[id]; ok {
		g.depToGroup[dep.ID] = id
		return group, nil
	}

	group := &BundleGroup{
		ID:           id,
		Target:       target,
		EntryAssetID: entry.ID,
	}
	g.groups[id] = group
	g.depToGroup[dep.ID] = id
	return group, nil
}

// AddBundleToBundleGroup appends a bundle to a group's ordered load set
func (g *Graph) AddBundleToBundleGroup(b *Bundle, group *BundleGroup) {
	g.mustBeMutable()
	for _, id := range g.groupBundles[group.ID] {
		if id == b.ID {
			return
		}
	}
	g.groupBundles[group.ID] = append(g.groupBundles[group.ID], b.ID)
	g.bundleGroupsOf[b.ID] = append(g.bundleGroupsOf[b.ID], group.ID)
}

// CreateBundleReference records that from loads to at runtime
// (shared-chunk loading)
func (g *Graph) CreateBundleReference(from, to *Bundle) {
	g.mustBeMutable()
	for _, id := range g.references[from.ID] {
		if id == to.ID {
			return
		}
	}
	g.references[from.ID] = append(g.references[from.ID], to.ID)
	g.referrers[to.ID] = append(g.referrers[to.ID], from.ID)
}

// InternalizeAsyncDependency demotes a cross-bundle async edge to an
// in-bundle edge when both ends are co-located, so no needless separate
// chunk is generated
func (g *Graph) InternalizeAsyncDependency(b *Bundle, dep *asset.Dependency) {
	g.mustBeMutable()
	if g.internalized[b.ID] == nil {
		g.internalized[b.ID] = make(map[string]struct{})
	}
	g.internalized[b.ID][dep.ID] = struct{}{}
	delete(g.depToGroup, dep.ID)
}

// MarkDependencySkipped records that the dependency is dead code and needs
// no bundle group
func (g *Graph) MarkDependencySkipped(dep *asset.Dependency) {
	g.mustBeMutable()
	g.skippedDeps[dep.ID] = struct{}{}
}

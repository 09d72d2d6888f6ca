package bundlegraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motiz88/parcel/internal/asset"
	"github.com/motiz88/parcel/internal/assetgraph"
)

type scenario struct {
	assets *assetgraph.Graph
	bg     *Graph
	target Target
}

func newScenario() *scenario {
	assets := assetgraph.New()
	return &scenario{
		assets: assets,
		bg:     New(assets),
		target: Target{Name: "default", DistDir: "dist", Env: asset.DefaultEnvironment()},
	}
}

func (s *scenario) asset(path string) *asset.Asset {
	return asset.New(asset.Options{FilePath: path, Type: "js", Env: asset.DefaultEnvironment()})
}

func (s *scenario) entry(a *asset.Asset) *asset.Dependency {
	dep := asset.NewDependency(asset.DependencyOptions{
		Specifier: a.FilePath,
		IsEntry:   true,
		Env:       asset.DefaultEnvironment(),
	})
	s.assets.AddEntryDependency(dep)
	s.assets.AddAsset(a)
	s.assets.Resolve(dep.ID, a.ID)
	return dep
}

func (s *scenario) link(from, to *asset.Asset, priority asset.Priority) *asset.Dependency {
	dep := from.AddDependency(asset.DependencyOptions{
		Specifier: to.FilePath,
		Priority:  priority,
		Env:       asset.DefaultEnvironment(),
	})
	s.assets.AddAsset(from)
	s.assets.AddAsset(to)
	s.assets.Resolve(dep.ID, to.ID)
	return dep
}

func TestCreateBundleFromEntryAsset(t *testing.T) {
	s := newScenario()
	main := s.asset("/p/main.js")
	s.entry(main)

	b, err := s.bg.CreateBundle(CreateBundleOptions{
		EntryAsset: main,
		Target:     s.target,
		IsEntry:    true,
	})
	require.NoError(t, err)

	assert.Equal(t, "js", b.Type)
	assert.Equal(t, main.ID, b.MainEntryID)
	assert.True(t, b.IsEntry)
	assert.Equal(t, HashRefPrefix+b.ID, b.HashRef)

	// Same inputs dedup to the same bundle
	again, err := s.bg.CreateBundle(CreateBundleOptions{EntryAsset: main, Target: s.target, IsEntry: true})
	require.NoError(t, err)
	assert.Same(t, b, again)
}

func TestCreateBundleExplicit(t *testing.T) {
	s := newScenario()
	env := asset.DefaultEnvironment()

	b, err := s.bg.CreateBundle(CreateBundleOptions{
		UniqueKey: "runtime-manifest",
		Type:      "js",
		Env:       &env,
		Target:    s.target,
	})
	require.NoError(t, err)
	assert.Empty(t, b.MainEntryID)
	assert.Equal(t, "runtime-manifest", b.UniqueKey)
}

func TestCreateBundleRequiresIdentity(t *testing.T) {
	s := newScenario()
	_, err := s.bg.CreateBundle(CreateBundleOptions{Target: s.target})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires an entry asset")
}

func TestAddAssetGraphToBundleSkipsAsync(t *testing.T) {
	s := newScenario()
	main := s.asset("/p/main.js")
	util := s.asset("/p/util.js")
	lazy := s.asset("/p/lazy.js")

	s.entry(main)
	syncDep := main.AddDependency(asset.DependencyOptions{Specifier: "./util", Env: asset.DefaultEnvironment()})
	lazyDep := main.AddDependency(asset.DependencyOptions{Specifier: "./lazy", Priority: asset.PriorityLazy, Env: asset.DefaultEnvironment()})
	s.assets.AddAsset(main)
	s.assets.AddAsset(util)
	s.assets.AddAsset(lazy)
	s.assets.Resolve(syncDep.ID, util.ID)
	s.assets.Resolve(lazyDep.ID, lazy.ID)

	b, err := s.bg.CreateBundle(CreateBundleOptions{EntryAsset: main, Target: s.target, IsEntry: true})
	require.NoError(t, err)
	require.NoError(t, s.bg.AddAssetGraphToBundle(main, b, func(d *asset.Dependency) bool { return d.IsAsync() }))

	assert.True(t, s.bg.BundleContains(b, main.ID))
	assert.True(t, s.bg.BundleContains(b, util.ID))
	assert.False(t, s.bg.BundleContains(b, lazy.ID))

	got := s.bg.AssetsInBundle(b)
	require.Len(t, got, 2)
	assert.Equal(t, main.ID, got[0].ID)
}

func TestAddAssetToBundleRejectsIncompatibleEnv(t *testing.T) {
	s := newScenario()
	workerEnv := asset.Environment{Context: asset.ContextWebWorker, OutputFormat: "esmodule", SourceType: "module"}
	worker := asset.New(asset.Options{FilePath: "/p/worker.js", Type: "js", Env: workerEnv})
	main := s.asset("/p/main.js")
	s.entry(main)

	b, err := s.bg.CreateBundle(CreateBundleOptions{EntryAsset: main, Target: s.target})
	require.NoError(t, err)

	err = s.bg.AddAssetToBundle(worker, b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not compatible")
}

func TestBundleGroupsAndAsyncResolution(t *testing.T) {
	s := newScenario()
	main := s.asset("/p/main.js")
	lazy := s.asset("/p/lazy.js")
	s.entry(main)
	lazyDep := s.link(main, lazy, asset.PriorityLazy)

	mainBundle, err := s.bg.CreateBundle(CreateBundleOptions{EntryAsset: main, Target: s.target, IsEntry: true})
	require.NoError(t, err)
	require.NoError(t, s.bg.AddAssetToBundle(main, mainBundle))

	group, err := s.bg.CreateBundleGroup(lazyDep, s.target)
	require.NoError(t, err)
	assert.Equal(t, lazy.ID, group.EntryAssetID)

	lazyBundle, err := s.bg.CreateBundle(CreateBundleOptions{EntryAsset: lazy, Target: s.target})
	require.NoError(t, err)
	require.NoError(t, s.bg.AddAssetToBundle(lazy, lazyBundle))
	s.bg.AddBundleToBundleGroup(lazyBundle, group)

	res := s.bg.ResolveAsyncDependency(lazyDep)
	assert.Equal(t, AsyncGroup, res.Outcome)
	require.NotNil(t, res.Group)
	assert.Equal(t, group.ID, res.Group.ID)

	loaded := s.bg.BundlesInGroup(group)
	require.Len(t, loaded, 1)
	assert.Equal(t, lazyBundle.ID, loaded[0].ID)

	// Parent/child navigation across the group edge
	children := s.bg.GetChildBundles(mainBundle)
	require.Len(t, children, 1)
	assert.Equal(t, lazyBundle.ID, children[0].ID)

	parents := s.bg.GetParentBundles(lazyBundle)
	require.Len(t, parents, 1)
	assert.Equal(t, mainBundle.ID, parents[0].ID)
}

func TestAsyncResolutionOutcomes(t *testing.T) {
	s := newScenario()
	main := s.asset("/p/main.js")
	lazy := s.asset("/p/lazy.js")
	s.entry(main)
	lazyDep := s.link(main, lazy, asset.PriorityLazy)

	syncDep := asset.NewDependency(asset.DependencyOptions{Specifier: "./x", Env: asset.DefaultEnvironment()})
	assert.Equal(t, AsyncNone, s.bg.ResolveAsyncDependency(syncDep).Outcome)

	// Unhandled async dependency resolves to nothing yet
	assert.Equal(t, AsyncNone, s.bg.ResolveAsyncDependency(lazyDep).Outcome)

	s.bg.MarkDependencySkipped(lazyDep)
	assert.Equal(t, AsyncSkipped, s.bg.ResolveAsyncDependency(lazyDep).Outcome)
}

func TestInternalizedAsyncResolution(t *testing.T) {
	s := newScenario()
	main := s.asset("/p/main.js")
	lazy := s.asset("/p/lazy.js")
	s.entry(main)
	lazyDep := s.link(main, lazy, asset.PriorityLazy)

	b, err := s.bg.CreateBundle(CreateBundleOptions{EntryAsset: main, Target: s.target, IsEntry: true})
	require.NoError(t, err)
	require.NoError(t, s.bg.AddAssetToBundle(main, b))
	require.NoError(t, s.bg.AddAssetToBundle(lazy, b))

	s.bg.InternalizeAsyncDependency(b, lazyDep)

	res := s.bg.ResolveAsyncDependency(lazyDep)
	assert.Equal(t, AsyncInternalized, res.Outcome)
	require.NotNil(t, res.Asset)
	assert.Equal(t, lazy.ID, res.Asset.ID)
}

func TestExcludedAsyncResolution(t *testing.T) {
	s := newScenario()
	main := s.asset("/p/main.js")
	s.entry(main)
	dep := main.AddDependency(asset.DependencyOptions{
		Specifier: "electron",
		Priority:  asset.PriorityLazy,
		Env:       asset.DefaultEnvironment(),
	})
	s.assets.AddAsset(main)
	s.assets.MarkExcluded(dep.ID)

	assert.Equal(t, AsyncExcluded, s.bg.ResolveAsyncDependency(dep).Outcome)
}

func TestValidateAllowsSharedSyncImportAcrossEntries(t *testing.T) {
	s := newScenario()
	main := s.asset("/p/main.js")
	other := s.asset("/p/other.js")
	util := s.asset("/p/util.js")
	s.entry(main)
	s.entry(other)
	s.link(main, util, asset.PrioritySync)
	s.link(other, util, asset.PrioritySync)

	// Sibling entry bundles each carry their own copy; the load paths are
	// disjoint so this is a legal layout
	b1, err := s.bg.CreateBundle(CreateBundleOptions{EntryAsset: main, Target: s.target, IsEntry: true})
	require.NoError(t, err)
	require.NoError(t, s.bg.AddAssetToBundle(main, b1))
	require.NoError(t, s.bg.AddAssetToBundle(util, b1))

	b2, err := s.bg.CreateBundle(CreateBundleOptions{EntryAsset: other, Target: s.target, IsEntry: true})
	require.NoError(t, err)
	require.NoError(t, s.bg.AddAssetToBundle(other, b2))
	require.NoError(t, s.bg.AddAssetToBundle(util, b2))

	assert.NoError(t, s.bg.Validate())
}

func TestValidateRejectsDuplicateAlongLoadPath(t *testing.T) {
	s := newScenario()
	main := s.asset("/p/main.js")
	util := s.asset("/p/util.js")
	page := s.asset("/p/page.js")
	s.entry(main)
	s.link(main, util, asset.PrioritySync)
	lazyDep := s.link(main, page, asset.PriorityLazy)

	mainBundle, err := s.bg.CreateBundle(CreateBundleOptions{EntryAsset: main, Target: s.target, IsEntry: true})
	require.NoError(t, err)
	require.NoError(t, s.bg.AddAssetToBundle(main, mainBundle))
	require.NoError(t, s.bg.AddAssetToBundle(util, mainBundle))

	group, err := s.bg.CreateBundleGroup(lazyDep, s.target)
	require.NoError(t, err)
	pageBundle, err := s.bg.CreateBundle(CreateBundleOptions{EntryAsset: page, Target: s.target})
	require.NoError(t, err)
	require.NoError(t, s.bg.AddAssetToBundle(page, pageBundle))
	s.bg.AddBundleToBundleGroup(pageBundle, group)
	require.NoError(t, s.bg.Validate())

	// The parent bundle already guarantees util on this load path, so a
	// second copy in the child is a redundant duplicate
	require.NoError(t, s.bg.AddAssetToBundle(util, pageBundle))
	err = s.bg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicated")
}

func TestSealPreventsMutation(t *testing.T) {
	s := newScenario()
	main := s.asset("/p/main.js")
	s.entry(main)

	s.bg.Seal()
	assert.Panics(t, func() {
		s.bg.CreateBundle(CreateBundleOptions{EntryAsset: main, Target: s.target})
	})
}

func TestRemoveAssetGraphFromBundle(t *testing.T) {
	s := newScenario()
	main := s.asset("/p/main.js")
	util := s.asset("/p/util.js")
	s.entry(main)
	s.link(main, util, asset.PrioritySync)

	b, err := s.bg.CreateBundle(CreateBundleOptions{EntryAsset: main, Target: s.target})
	require.NoError(t, err)
	require.NoError(t, s.bg.AddAssetGraphToBundle(main, b, nil))
	require.Len(t, s.bg.AssetsInBundle(b), 2)

	s.bg.RemoveAssetGraphFromBundle(util, b, nil)
	remaining := s.bg.AssetsInBundle(b)
	require.Len(t, remaining, 1)
	assert.Equal(t, main.ID, remaining[0].ID)
}

// Package build orchestrates the phases of a build: asset graph
// construction through resolver/transformer plugins, symbol resolution,
// bundling, naming, and packaging. It owns incremental rebuilds, re-running
// only the subgraph an invalidation touches.
package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/motiz88/parcel/internal/asset"
	"github.com/motiz88/parcel/internal/assetgraph"
	"github.com/motiz88/parcel/internal/bundlegraph"
	"github.com/motiz88/parcel/internal/diagnostics"
	"github.com/motiz88/parcel/internal/fingerprint"
	"github.com/motiz88/parcel/internal/plugin"
	"github.com/motiz88/parcel/internal/symbols"
)

// invalidationDigestKey is where an asset's recorded state digest lives in
// its meta map
const invalidationDigestKey = "invalidationDigest"

// Result is the outcome of one build or rebuild
type Result struct {
	BuildID     string
	Success     bool
	Graph       *assetgraph.Graph
	Bundles     *bundlegraph.Graph
	UsedSymbols map[string]*symbols.UsedSet
	Diagnostics *diagnostics.List
	Metrics     *Metrics
	// OutputFiles maps bundle id to the written dist path
	OutputFiles map[string]string
	Duration    time.Duration
}

// Builder runs builds and incremental rebuilds over one project
type Builder struct {
	opts   Options
	store  *asset.Store
	logger *zap.Logger

	// snapshot lives for the process; file hash memos are forgotten when a
	// change event for the exact path arrives
	snapshot *fingerprint.BuildSnapshot

	mu      sync.RWMutex
	graph   *assetgraph.Graph
	result  *Result
	prevKey map[string]*asset.Asset // transform reuse index
}

// NewBuilder creates a builder for the given options
func NewBuilder(opts Options) *Builder {
	opts.fill()
	return &Builder{
		opts:     opts,
		store:    asset.NewStore(opts.Cache),
		logger:   opts.Logger,
		snapshot: fingerprint.NewBuildSnapshot(opts.BuildOptions),
		prevKey:  make(map[string]*asset.Asset),
	}
}

// buildState is the shared scratch space of one graph-building run
type buildState struct {
	graph   *assetgraph.Graph
	group   *errgroup.Group
	ctx     context.Context
	metrics *Metrics

	mu       sync.Mutex
	inflight map[string]*inflightAsset
	diags    *diagnostics.List
	byUnique map[string]string // uniqueKey -> asset id
}

// inflightAsset tracks one file's in-progress transform so cyclic or shared
// imports merge onto it instead of re-entering
type inflightAsset struct {
	done    chan struct{}
	assetID string
	err     error
}

func (st *buildState) addDiagnostic(d diagnostics.Diagnostic) {
	st.mu.Lock()
	st.diags.Add(d)
	st.mu.Unlock()
}

// Build runs a full build from the configured entries
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	start := time.Now()
	graph := assetgraph.New()
	st := b.newState(ctx, graph)

	env := asset.DefaultEnvironment()
	if b.opts.Env != nil {
		env = *b.opts.Env
	}

	for _, entry := range b.opts.Entries {
		if !filepath.IsAbs(entry) {
			entry = filepath.Join(b.opts.ProjectRoot, entry)
		}
		dep := asset.NewDependency(asset.DependencyOptions{
			Specifier: entry,
			Kind:      asset.SpecifierESM,
			Priority:  asset.PrioritySync,
			IsEntry:   true,
			Env:       env,
		})
		graph.AddEntryDependency(dep)
		d := dep
		st.group.Go(func() error { return b.processDependency(st, d) })
	}

	err := st.group.Wait()
	return b.finish(ctx, st, start, err)
}

// Rebuild patches the graph for the given change events, re-transforming
// only assets whose recorded invalidation set intersects the change.
// Dependents outside that set are revalidated, not re-transformed: their
// symbol usage is recomputed from the new graph in the phases that follow.
func (b *Builder) Rebuild(ctx context.Context, events []fingerprint.Event) (*Result, error) {
	b.mu.RLock()
	base := b.graph
	last := b.result
	b.mu.RUnlock()
	if base == nil {
		return b.Build(ctx)
	}

	for _, ev := range events {
		if ev.Kind == fingerprint.FileChange {
			b.snapshot.Forget(ev.Key)
		}
	}

	affected := base.AffectedBy(events)
	if len(affected) == 0 {
		b.logger.Debug("no assets affected by change", zap.Int("events", len(events)))
		return last, nil
	}

	start := time.Now()
	// Mutations apply to a clone and swap in atomically; readers of the
	// current graph never observe a partially patched state.
	clone := base.Clone()
	st := b.newState(ctx, clone)

	revalidated := make(map[string]struct{})
	scheduled := make(map[string]struct{})
	for _, id := range affected {
		for _, depID := range clone.TransitiveDependents(id) {
			revalidated[depID] = struct{}{}
		}
		for _, dep := range clone.IncomingOf(id) {
			if _, ok := scheduled[dep.ID]; ok {
				continue
			}
			scheduled[dep.ID] = struct{}{}
			d := dep
			st.group.Go(func() error { return b.processDependency(st, d) })
		}
	}
	st.metrics.Revalidated = len(revalidated)

	err := st.group.Wait()
	b.logger.Info("patched asset graph",
		zap.Int("affected", len(affected)),
		zap.Int("revalidated", len(revalidated)))
	return b.finish(ctx, st, start, err)
}

func (b *Builder) newState(ctx context.Context, g *assetgraph.Graph) *buildState {
	group, gctx := errgroup.WithContext(ctx)
	return &buildState{
		graph:    g,
		group:    group,
		ctx:      gctx,
		metrics:  &Metrics{StartTime: time.Now()},
		inflight: make(map[string]*inflightAsset),
		diags:    &diagnostics.List{},
		byUnique: make(map[string]string),
	}
}

// processDependency resolves one dependency and transforms its target,
// scheduling the target's own dependencies in turn
func (b *Builder) processDependency(st *buildState, dep *asset.Dependency) error {
	resolveStart := time.Now()
	result, err := b.opts.Registry.Resolve(st.ctx, dep, resolveBase(dep))
	st.metrics.addResolve(time.Since(resolveStart))

	if err != nil {
		if dep.IsOptional {
			st.graph.MarkUnresolved(dep.ID)
			st.graph.WatchFileCreate(dep.ID, createWatchGlobs(dep)...)
			return nil
		}
		d := diagnostics.Diagnostic{
			Phase:        "resolve",
			Code:         "RESOLVE001",
			Message:      err.Error(),
			Severity:     diagnostics.Error,
			DependencyID: dep.ID,
			Specifier:    dep.Specifier,
		}
		if dep.Loc != nil {
			d.Location = *dep.Loc
		}
		st.addDiagnostic(d)
		return d
	}
	if result == nil {
		// Unique-key targets resolve directly against committed assets
		st.mu.Lock()
		targetID, ok := st.byUnique[dep.Specifier]
		st.mu.Unlock()
		if ok {
			st.graph.Resolve(dep.ID, targetID)
			return nil
		}
		if dep.IsOptional {
			st.graph.MarkUnresolved(dep.ID)
			st.graph.WatchFileCreate(dep.ID, createWatchGlobs(dep)...)
			return nil
		}
		d := diagnostics.Diagnostic{
			Phase:        "resolve",
			Code:         "RESOLVE002",
			Message:      fmt.Sprintf("no resolver found a target for %q", dep.Specifier),
			Severity:     diagnostics.Error,
			DependencyID: dep.ID,
			Specifier:    dep.Specifier,
		}
		if dep.Loc != nil {
			d.Location = *dep.Loc
		}
		st.addDiagnostic(d)
		return d
	}
	if result.IsExcluded {
		st.graph.MarkExcluded(dep.ID)
		return nil
	}
	if result.Priority != nil {
		dep.Priority = *result.Priority
	}

	key := strings.Join([]string{result.FilePath, dep.Env.ID(), result.Pipeline}, "|")

	st.mu.Lock()
	if fl, ok := st.inflight[key]; ok {
		st.mu.Unlock()
		<-fl.done
		if fl.err != nil {
			// The failure is already reported by the owning goroutine
			return nil
		}
		st.graph.Resolve(dep.ID, fl.assetID)
		return nil
	}
	fl := &inflightAsset{done: make(chan struct{})}
	st.inflight[key] = fl
	st.mu.Unlock()

	assetID, err := b.loadAndTransform(st, dep, result, key)
	fl.assetID = assetID
	fl.err = err
	close(fl.done)
	if err != nil {
		return err
	}
	st.graph.Resolve(dep.ID, assetID)
	return nil
}

// loadAndTransform reuses a previously transformed asset when its recorded
// invalidation digest still matches, otherwise runs the transformer chain
func (b *Builder) loadAndTransform(st *buildState, dep *asset.Dependency, result *plugin.ResolveResult, key string) (string, error) {
	transformStart := time.Now()

	b.mu.RLock()
	prev, hasPrev := b.prevKey[key]
	b.mu.RUnlock()
	if hasPrev {
		digest, err := fingerprint.Digest(prev.Invalidations, b.snapshot)
		if err == nil && digest != "" && digest == prev.Meta[invalidationDigestKey] {
			st.graph.AddAsset(prev)
			st.metrics.addTransform(0, true)
			b.scheduleChildren(st, prev)
			return prev.ID, nil
		}
	}

	content := result.Code
	if content == nil {
		data, err := os.ReadFile(result.FilePath)
		if err != nil {
			d := diagnostics.Diagnostic{
				Phase:        "transform",
				Code:         "IO001",
				Message:      fmt.Sprintf("failed to read file: %v", err),
				Severity:     diagnostics.Error,
				Location:     diagnostics.SourceLocation{File: result.FilePath},
				DependencyID: dep.ID,
			}
			st.addDiagnostic(d)
			return "", d
		}
		content = data
	}

	assetType := strings.TrimPrefix(filepath.Ext(result.FilePath), ".")
	a := b.store.CreateAsset(asset.Options{
		FilePath:    result.FilePath,
		Type:        assetType,
		Env:         dep.Env,
		Pipeline:    result.Pipeline,
		IsSource:    b.isSource(result.FilePath),
		SideEffects: result.SideEffects,
		Content:     content,
	})

	transformer, ok := b.opts.Registry.TransformerFor(assetType)
	if !ok {
		d := diagnostics.Diagnostic{
			Phase:    "transform",
			Code:     "TRANSFORM001",
			Message:  fmt.Sprintf("no transformer handles type %q", assetType),
			Severity: diagnostics.Error,
			Location: diagnostics.SourceLocation{File: result.FilePath},
			AssetID:  a.ID,
		}
		st.addDiagnostic(d)
		return "", d
	}

	produced, err := transformer.Transform(st.ctx, plugin.TransformInput{Asset: a})
	if err != nil {
		d := diagnostics.Diagnostic{
			Phase:    "transform",
			Code:     "TRANSFORM002",
			Message:  err.Error(),
			Severity: diagnostics.Error,
			Location: diagnostics.SourceLocation{File: result.FilePath},
			AssetID:  a.ID,
		}
		st.addDiagnostic(d)
		return "", d
	}
	if len(produced) == 0 {
		d := diagnostics.Diagnostic{
			Phase:    "transform",
			Code:     "TRANSFORM003",
			Message:  fmt.Sprintf("transformer %s produced no assets", transformer.Name()),
			Severity: diagnostics.Error,
			Location: diagnostics.SourceLocation{File: result.FilePath},
		}
		st.addDiagnostic(d)
		return "", d
	}

	for _, out := range produced {
		digest, err := fingerprint.Digest(out.Invalidations, b.snapshot)
		if err != nil {
			st.addDiagnostic(diagnostics.Diagnostic{
				Phase:    "transform",
				Code:     "INVALIDATE001",
				Message:  err.Error(),
				Severity: diagnostics.Fatal,
				AssetID:  out.ID,
			})
			return "", err
		}
		out.Meta[invalidationDigestKey] = digest
		b.store.Commit(out)
		st.graph.AddAsset(out)
		if out.UniqueKey != "" {
			st.mu.Lock()
			st.byUnique[out.UniqueKey] = out.ID
			st.mu.Unlock()
		}
		b.scheduleChildren(st, out)
	}

	st.metrics.addTransform(time.Since(transformStart), false)
	return produced[0].ID, nil
}

// scheduleChildren queues an asset's dependencies for processing
func (b *Builder) scheduleChildren(st *buildState, a *asset.Asset) {
	for _, dep := range a.Dependencies {
		d := dep
		st.group.Go(func() error { return b.processDependency(st, d) })
	}
}

// finish runs the phases after graph construction and swaps in the new
// graph and result atomically
func (b *Builder) finish(ctx context.Context, st *buildState, start time.Time, buildErr error) (*Result, error) {
	res := &Result{
		BuildID:     uuid.NewString(),
		Graph:       st.graph,
		Diagnostics: st.diags,
		Metrics:     st.metrics,
		OutputFiles: make(map[string]string),
	}

	if buildErr != nil || st.diags.HasErrors() {
		res.Duration = time.Since(start)
		b.logger.Error("build failed",
			zap.String("build_id", res.BuildID),
			zap.Int("diagnostics", st.diags.Len()))
		if buildErr == nil {
			buildErr = st.diags
		}
		return res, buildErr
	}

	removed := st.graph.Prune()
	b.store.Drop(removed)

	engine := symbols.NewEngine(st.graph)
	res.UsedSymbols = engine.UsedSymbols()

	bundleStart := time.Now()
	bg := bundlegraph.New(st.graph)
	bundler := b.opts.Registry.Bundler()
	if err := bundler.Bundle(ctx, bg); err != nil {
		return b.failPhase(res, start, "bundle", "BUNDLE001", err)
	}
	if err := bundler.Optimize(ctx, bg); err != nil {
		return b.failPhase(res, start, "bundle", "BUNDLE002", err)
	}
	if err := bg.Validate(); err != nil {
		return b.failPhase(res, start, "bundle", "BUNDLE003", err)
	}
	for _, bundle := range bg.Bundles() {
		name, err := b.opts.Registry.NameBundle(bundle, bg)
		if err != nil {
			return b.failPhase(res, start, "bundle", "NAME001", err)
		}
		bundle.Name = name
	}
	bg.Seal()
	res.Bundles = bg
	st.metrics.BundleDuration = time.Since(bundleStart)

	packageStart := time.Now()
	outputs, err := b.packageBundles(ctx, bg, res.UsedSymbols)
	if err != nil {
		return b.failPhase(res, start, "package", "PACKAGE001", err)
	}
	res.OutputFiles = outputs
	st.metrics.PackageDuration = time.Since(packageStart)

	// Refresh the reuse index from the surviving assets
	prevKey := make(map[string]*asset.Asset, st.graph.AssetCount())
	for _, a := range st.graph.Assets() {
		prevKey[strings.Join([]string{a.FilePath, a.Env.ID(), a.Pipeline}, "|")] = a
	}

	res.Success = true
	st.metrics.EndTime = time.Now()
	st.metrics.TotalDuration = st.metrics.EndTime.Sub(start)
	res.Duration = st.metrics.TotalDuration

	b.mu.Lock()
	b.graph = st.graph
	b.result = res
	b.prevKey = prevKey
	b.mu.Unlock()

	b.logger.Info("build succeeded",
		zap.String("build_id", res.BuildID),
		zap.Int("assets", st.graph.AssetCount()),
		zap.Int("bundles", len(bg.Bundles())),
		zap.Duration("duration", res.Duration))
	return res, nil
}

func (b *Builder) failPhase(res *Result, start time.Time, phase, code string, err error) (*Result, error) {
	res.Diagnostics.Add(diagnostics.Diagnostic{
		Phase:    phase,
		Code:     code,
		Message:  err.Error(),
		Severity: diagnostics.Fatal,
	})
	res.Duration = time.Since(start)
	return res, err
}

// LastResult returns the most recent successful build result
func (b *Builder) LastResult() *Result {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.result
}

// Store exposes the asset store for packaging collaborators
func (b *Builder) Store() *asset.Store {
	return b.store
}

func (b *Builder) isSource(path string) bool {
	if b.opts.ProjectRoot == "" {
		return true
	}
	rel, err := filepath.Rel(b.opts.ProjectRoot, path)
	if err != nil {
		return false
	}
	return !strings.HasPrefix(rel, "..") && !strings.Contains(rel, "node_modules")
}

func resolveBase(dep *asset.Dependency) string {
	if dep.SourcePath != "" {
		return dep.SourcePath
	}
	return dep.Specifier
}

// createWatchGlobs derives the globs whose creation could satisfy an
// unresolved path specifier. Bare specifiers get no watch.
func createWatchGlobs(dep *asset.Dependency) []string {
	spec := dep.Specifier
	var base string
	switch {
	case strings.HasPrefix(spec, "."):
		if dep.SourcePath == "" {
			return nil
		}
		base = filepath.Join(filepath.Dir(dep.SourcePath), spec)
	case filepath.IsAbs(spec):
		base = spec
	default:
		return nil
	}
	return []string{base, base + ".*"}
}

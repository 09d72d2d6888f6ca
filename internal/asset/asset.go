package asset

import (
	"github.com/motiz88/parcel/internal/fingerprint"
)

// BundleBehavior is a bundle-placement hint on an asset
type BundleBehavior int

const (
	// BehaviorNone lets the bundler place the asset normally
	BehaviorNone BundleBehavior = iota
	// BehaviorInline embeds the asset into its parent bundle's output
	BehaviorInline
	// BehaviorIsolated forces the asset into its own bundle
	BehaviorIsolated
)

// Asset is a unit of source content after (possibly partial) transformation.
// An asset is mutable only during its own transform stage; Commit freezes it
// and derives its identity and content key.
type Asset struct {
	ID        string
	FilePath  string
	Type      string // file extension derived, mutable during transform
	Env       Environment
	Pipeline  string
	Query     string
	UniqueKey string

	// IsSource distinguishes project-owned files from external packages
	IsSource       bool
	SideEffects    bool
	BundleBehavior BundleBehavior
	IsSplittable   bool

	// Content is the asset's current payload; AST is an opaque parsed form
	// owned by the transformer that produced it
	Content []byte
	AST     interface{}

	// ContentKey addresses the asset's cached artifacts (generated output,
	// source map); it changes whenever Content or AST changes
	ContentKey string

	Symbols      *SymbolTable
	Dependencies []*Dependency

	// Invalidations is the exact set of inputs this asset's transform
	// depended on, recorded at transform time
	Invalidations []fingerprint.Invalidation

	Meta map[string]interface{}

	frozen bool
}

// IDOptions are the inputs the asset identity is a pure function of.
// Two assets with identical inputs collide to the same identity so the cache
// can be shared; a manually assigned UniqueKey exempts the asset from
// path-based collision.
type IDOptions struct {
	FilePath  string
	Type      string
	EnvID     string
	UniqueKey string
	Pipeline  string
	Query     string
}

// CreateAssetIDFromOptions deterministically derives an asset identity.
// Equal inputs yield equal ids across repeated calls and process restarts.
func CreateAssetIDFromOptions(opts IDOptions) string {
	return fingerprint.Fingerprint(
		opts.FilePath,
		opts.Type,
		opts.EnvID,
		opts.UniqueKey,
		opts.Pipeline,
		opts.Query,
	)
}

// Options are the inputs for creating a new asset
type Options struct {
	FilePath       string
	Type           string
	Env            Environment
	Pipeline       string
	Query          string
	UniqueKey      string
	IsSource       bool
	SideEffects    *bool
	BundleBehavior BundleBehavior
	IsSplittable   *bool
	Content        []byte
}

// New creates a mutable asset with defaults filled in: side effects true,
// splittable true, empty dependency list, empty meta.
func New(opts Options) *Asset {
	sideEffects := true
	if opts.SideEffects != nil {
		sideEffects = *opts.SideEffects
	}
	splittable := true
	if opts.IsSplittable != nil {
		splittable = *opts.IsSplittable
	}

	a := &Asset{
		FilePath:       opts.FilePath,
		Type:           opts.Type,
		Env:            opts.Env,
		Pipeline:       opts.Pipeline,
		Query:          opts.Query,
		UniqueKey:      opts.UniqueKey,
		IsSource:       opts.IsSource,
		SideEffects:    sideEffects,
		BundleBehavior: opts.BundleBehavior,
		IsSplittable:   splittable,
		Content:        opts.Content,
		Symbols:        NewSymbolTable(),
		Meta:           make(map[string]interface{}),
	}
	a.refreshIdentity()
	return a
}

// refreshIdentity recomputes the asset's id and content key from its
// current state
func (a *Asset) refreshIdentity() {
	a.ID = CreateAssetIDFromOptions(IDOptions{
		FilePath:  a.FilePath,
		Type:      a.Type,
		EnvID:     a.Env.ID(),
		UniqueKey: a.UniqueKey,
		Pipeline:  a.Pipeline,
		Query:     a.Query,
	})
	a.ContentKey = fingerprint.FingerprintBytes(a.Content)
}

// AddDependency declares a dependency on the asset and returns it.
// Panics if the asset is frozen; dependencies may only be declared during
// the transform stage.
func (a *Asset) AddDependency(opts DependencyOptions) *Dependency {
	a.mustBeMutable()
	opts.SourceAssetID = a.ID
	if opts.SourcePath == "" {
		opts.SourcePath = a.FilePath
	}
	dep := NewDependency(opts)
	a.Dependencies = append(a.Dependencies, dep)
	return dep
}

// InvalidateOnFileChange records a file content watch
func (a *Asset) InvalidateOnFileChange(path string) {
	a.mustBeMutable()
	a.Invalidations = append(a.Invalidations, fingerprint.Invalidation{
		Kind: fingerprint.FileChange,
		Key:  path,
	})
}

// InvalidateOnFileCreate records a glob watch that fires when a matching
// file is created, even for paths that did not exist before
func (a *Asset) InvalidateOnFileCreate(glob string) {
	a.mustBeMutable()
	a.Invalidations = append(a.Invalidations, fingerprint.Invalidation{
		Kind: fingerprint.FileCreate,
		Key:  glob,
	})
}

// InvalidateOnEnvChange records an environment variable watch
func (a *Asset) InvalidateOnEnvChange(key string) {
	a.mustBeMutable()
	a.Invalidations = append(a.Invalidations, fingerprint.Invalidation{
		Kind: fingerprint.EnvChange,
		Key:  key,
	})
}

// InvalidateOnOptionChange records a build option watch
func (a *Asset) InvalidateOnOptionChange(key string) {
	a.mustBeMutable()
	a.Invalidations = append(a.Invalidations, fingerprint.Invalidation{
		Kind: fingerprint.OptionChange,
		Key:  key,
	})
}

// SetContent replaces the asset's payload during transform
func (a *Asset) SetContent(content []byte) {
	a.mustBeMutable()
	a.Content = content
	a.AST = nil
}

// SetAST replaces the asset's parsed form during transform
func (a *Asset) SetAST(ast interface{}) {
	a.mustBeMutable()
	a.AST = ast
}

// Commit freezes the asset and recomputes its identity and content key.
// Transformers may rewrite Type before committing, which changes the derived
// id, so the declared dependencies are re-pointed at the final identity here.
// A frozen asset must not be mutated; a new snapshot with a new content key
// is required before generation can be requested again.
func (a *Asset) Commit() *Asset {
	a.refreshIdentity()
	for _, dep := range a.Dependencies {
		dep.SourceAssetID = a.ID
	}
	a.frozen = true
	return a
}

// IsFrozen reports whether transformation has completed for the asset
func (a *Asset) IsFrozen() bool {
	return a.frozen
}

func (a *Asset) mustBeMutable() {
	if a.frozen {
		panic("asset: mutation after transform completed for " + a.FilePath)
	}
}

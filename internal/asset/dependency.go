package asset

import (
	"github.com/motiz88/parcel/internal/diagnostics"
	"github.com/motiz88/parcel/internal/fingerprint"
)

// Priority determines when a dependency's target must be loaded relative to
// its importer. Parallel and Lazy dependencies always denote a bundle
// boundary; Sync dependencies never do.
type Priority int

const (
	PrioritySync Priority = iota
	PriorityParallel
	PriorityLazy
)

// String returns the priority name
func (p Priority) String() string {
	switch p {
	case PrioritySync:
		return "sync"
	case PriorityParallel:
		return "parallel"
	case PriorityLazy:
		return "lazy"
	default:
		return "unknown"
	}
}

// SpecifierKind identifies how a specifier string should be interpreted
type SpecifierKind int

const (
	// SpecifierESM is a module-style specifier ("./util", "lodash")
	SpecifierESM SpecifierKind = iota
	// SpecifierURL is a URL-style specifier ("./logo.svg" in CSS/HTML)
	SpecifierURL
	// SpecifierRuntime is a runtime-host specifier (worker scripts)
	SpecifierRuntime
	// SpecifierCustom is an opaque specifier handled by a custom resolver
	SpecifierCustom
)

// String returns the specifier kind name
func (k SpecifierKind) String() string {
	switch k {
	case SpecifierESM:
		return "esm"
	case SpecifierURL:
		return "url"
	case SpecifierRuntime:
		return "runtime"
	default:
		return "custom"
	}
}

// Dependency is an edge request from an asset (or the build's virtual root)
// toward another asset, not yet resolved to a target. A dependency becomes
// stale and is discarded when its owning asset is retransformed.
type Dependency struct {
	ID              string
	Specifier       string
	Kind            SpecifierKind
	Priority        Priority
	NeedsStableName bool
	IsOptional      bool
	IsEntry         bool

	// SourceAssetID is empty for entry dependencies created from the
	// virtual root
	SourceAssetID string
	// SourcePath is the file path of the declaring asset, used as the
	// resolution base
	SourcePath string

	Loc *diagnostics.SourceLocation
	Env Environment

	// Symbols is the import table: imported name -> local alias, with the
	// weak flag marking pure re-exports
	Symbols *SymbolTable

	Meta map[string]interface{}
}

// DependencyOptions are the inputs for creating a dependency
type DependencyOptions struct {
	Specifier       string
	Kind            SpecifierKind
	Priority        Priority
	NeedsStableName bool
	IsOptional      bool
	IsEntry         bool
	SourceAssetID   string
	SourcePath      string
	Loc             *diagnostics.SourceLocation
	Env             Environment
	Symbols         *SymbolTable
}

// NewDependency creates a dependency with a deterministic identity derived
// from its source asset, specifier, and load semantics
func NewDependency(opts DependencyOptions) *Dependency {
	symbols := opts.Symbols
	if symbols == nil {
		symbols = NewSymbolTable()
	}
	return &Dependency{
		ID: fingerprint.Fingerprint(
			opts.SourceAssetID,
			opts.Specifier,
			opts.Kind.String(),
			opts.Priority.String(),
			opts.Env.ID(),
		),
		Specifier:       opts.Specifier,
		Kind:            opts.Kind,
		Priority:        opts.Priority,
		NeedsStableName: opts.NeedsStableName,
		IsOptional:      opts.IsOptional,
		IsEntry:         opts.IsEntry,
		SourceAssetID:   opts.SourceAssetID,
		SourcePath:      opts.SourcePath,
		Loc:             opts.Loc,
		Env:             opts.Env,
		Symbols:         symbols,
		Meta:            make(map[string]interface{}),
	}
}

// IsAsync reports whether the dependency denotes a bundle boundary
func (d *Dependency) IsAsync() bool {
	return d.Priority == PriorityParallel || d.Priority == PriorityLazy
}

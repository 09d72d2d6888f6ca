// Package plugin defines the collaborator contracts the graph engine
// delegates to: resolvers, transformers, bundlers, and namers. Each stage is
// an ordered list of implementations; returning a nil result defers to the
// next implementation, which is distinct from returning an error.
package plugin

import (
	"context"

	"github.com/motiz88/parcel/internal/asset"
	"github.com/motiz88/parcel/internal/bundlegraph"
	"github.com/motiz88/parcel/internal/diagnostics"
)

// ResolveResult is a resolver's answer for one dependency
type ResolveResult struct {
	// FilePath is the absolute path of the resolved file; empty when Code
	// carries inline content under a synthetic path
	FilePath string
	// Code, when non-nil, is inline content that replaces reading FilePath
	Code []byte
	// Pipeline optionally reroutes the asset through a named transform
	// pipeline
	Pipeline string
	// SideEffects, when set, overrides the target asset's side-effect flag
	SideEffects *bool
	// Priority, when set, overrides the dependency's load priority
	Priority *asset.Priority
	// IsExcluded opts the dependency out of the build entirely
	IsExcluded bool

	Diagnostics []diagnostics.Diagnostic
}

// Resolver maps a dependency specifier to a file. A nil result with a nil
// error means "try the next resolver"; an error stops resolution and all
// accumulated diagnostics are reported.
type Resolver interface {
	Name() string
	Resolve(ctx context.Context, dep *asset.Dependency, fromPath string) (*ResolveResult, error)
}

// TransformInput is what a transformer receives for one asset
type TransformInput struct {
	Asset *asset.Asset
	// Snapshot lets the transformer register invalidation entries and hash
	// config files it reads
	Config map[string]string
}

// Transformer turns file content into one or more assets. A single file may
// yield several assets (code plus companion data). Generate produces final
// code for a committed asset snapshot.
type Transformer interface {
	Name() string
	// CanTransform reports whether the transformer handles the asset type
	CanTransform(assetType string) bool
	// CanReuseAST guards double parsing when chained transformers share an
	// AST format
	CanReuseAST(ast interface{}) bool
	Transform(ctx context.Context, input TransformInput) ([]*asset.Asset, error)
	Generate(ctx context.Context, a *asset.Asset) (asset.GeneratedOutput, error)
}

// Bundler partitions the asset graph into bundles. Bundle and Optimize are
// two structurally identical phases with full mutation access.
type Bundler interface {
	Name() string
	Bundle(ctx context.Context, g *bundlegraph.Graph) error
	Optimize(ctx context.Context, g *bundlegraph.Graph) error
}

// Namer assigns an output path to a bundle. Returning "" defers to the next
// namer; the first non-empty name wins.
type Namer interface {
	Name() string
	NameBundle(b *bundlegraph.Bundle, g *bundlegraph.Graph) (string, error)
}

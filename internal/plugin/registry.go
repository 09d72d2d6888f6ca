package plugin

import (
	"context"
	"fmt"

	"github.com/motiz88/parcel/internal/asset"
	"github.com/motiz88/parcel/internal/bundlegraph"
)

// Registry holds the ordered plugin lists for each build stage
type Registry struct {
	resolvers    []Resolver
	transformers []Transformer
	bundler      Bundler
	namers       []Namer
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{}
}

// AddResolver appends a resolver; earlier resolvers take priority
func (r *Registry) AddResolver(res Resolver) *Registry {
	r.resolvers = append(r.resolvers, res)
	return r
}

// AddTransformer appends a transformer; earlier transformers take priority
func (r *Registry) AddTransformer(t Transformer) *Registry {
	r.transformers = append(r.transformers, t)
	return r
}

// SetBundler sets the bundling strategy
func (r *Registry) SetBundler(b Bundler) *Registry {
	r.bundler = b
	return r
}

// AddNamer appends a namer; the first non-empty name wins
func (r *Registry) AddNamer(n Namer) *Registry {
	r.namers = append(r.namers, n)
	return r
}

// Resolve runs resolvers in priority order until one produces a result.
// A nil result means no resolver claimed the dependency.
func (r *Registry) Resolve(ctx context.Context, dep *asset.Dependency, fromPath string) (*ResolveResult, error) {
	for _, res := range r.resolvers {
		result, err := res.Resolve(ctx, dep, fromPath)
		if err != nil {
			return nil, fmt.Errorf("resolver %s: %w", res.Name(), err)
		}
		if result != nil {
			return result, nil
		}
	}
	return nil, nil
}

// TransformerFor returns the first transformer handling the asset type
func (r *Registry) TransformerFor(assetType string) (Transformer, bool) {
	for _, t := range r.transformers {
		if t.CanTransform(assetType) {
			return t, true
		}
	}
	return nil, false
}

// Bundler returns the configured bundling strategy
func (r *Registry) Bundler() Bundler {
	return r.bundler
}

// NameBundle runs namers in priority order until one names the bundle
func (r *Registry) NameBundle(b *bundlegraph.Bundle, g *bundlegraph.Graph) (string, error) {
	for _, n := range r.namers {
		name, err := n.NameBundle(b, g)
		if err != nil {
			return "", fmt.Errorf("namer %s: %w", n.Name(), err)
		}
		if name != "" {
			return name, nil
		}
	}
	return "", fmt.Errorf("no namer produced a name for bundle %s", b.ID)
}

package build

import (
	"go.uber.org/zap"

	"github.com/motiz88/parcel/internal/asset"
	"github.com/motiz88/parcel/internal/bundlegraph"
	"github.com/motiz88/parcel/internal/cache"
	"github.com/motiz88/parcel/internal/plugin"
	"github.com/motiz88/parcel/internal/plugin/builtin"
)

// Options configure a Builder
type Options struct {
	// Entries are the entry file paths the graph is rooted at
	Entries []string
	// ProjectRoot separates project-owned sources from external packages
	ProjectRoot string
	// DistDir is where packaged bundles are written; empty disables writes
	DistDir string
	// Mode is "development" or "production"
	Mode string
	// BuildOptions are the option values invalidation entries hash against
	BuildOptions map[string]string
	// Env overrides the default target environment
	Env *asset.Environment

	// Cache is the content-addressed artifact store; defaults to memory
	Cache cache.Store
	// Registry supplies the plugin lists; defaults to the built-ins
	Registry *plugin.Registry
	// Logger defaults to a no-op logger
	Logger *zap.Logger
}

func (o *Options) fill() {
	if o.Mode == "" {
		o.Mode = "development"
	}
	if o.BuildOptions == nil {
		o.BuildOptions = make(map[string]string)
	}
	o.BuildOptions["mode"] = o.Mode
	if o.Cache == nil {
		o.Cache = cache.NewMemoryStore()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Registry == nil {
		o.Registry = DefaultRegistry(o.ProjectRoot, o.target())
	}
}

func (o *Options) target() bundlegraph.Target {
	env := asset.DefaultEnvironment()
	if o.Env != nil {
		env = *o.Env
	}
	return bundlegraph.Target{
		Name:    "default",
		DistDir: o.DistDir,
		Env:     env,
	}
}

// DefaultRegistry wires the built-in plugins in their standard order
func DefaultRegistry(projectRoot string, target bundlegraph.Target) *plugin.Registry {
	return plugin.NewRegistry().
		AddResolver(builtin.NewFSResolver(projectRoot)).
		AddTransformer(builtin.NewJSTransformer()).
		AddTransformer(builtin.NewRawTransformer()).
		SetBundler(builtin.NewDefaultBundler(target)).
		AddNamer(builtin.NewContentHashNamer())
}

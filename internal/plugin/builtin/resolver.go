// Package builtin provides the default collaborators: a filesystem
// resolver, a scanning JS transformer, a raw passthrough transformer, the
// default bundling strategy, and a content-hash namer. They are registered
// through the same ordered plugin lists external plugins use.
package builtin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/motiz88/parcel/internal/asset"
	"github.com/motiz88/parcel/internal/diagnostics"
	"github.com/motiz88/parcel/internal/plugin"
)

// resolveExtensions are tried in order when a specifier has no extension
var resolveExtensions = []string{".js", ".mjs", ".jsx", ".ts", ".tsx", ".json", ".css"}

// FSResolver resolves relative and absolute specifiers against the
// importing file's directory
type FSResolver struct {
	// ProjectRoot anchors bare "/" specifiers
	ProjectRoot string
	// Exclusions lists specifiers resolved to nothing on purpose
	// (e.g. node builtins targeted at the browser)
	Exclusions map[string]struct{}
}

// NewFSResolver creates a filesystem resolver rooted at projectRoot
func NewFSResolver(projectRoot string) *FSResolver {
	return &FSResolver{
		ProjectRoot: projectRoot,
		Exclusions:  make(map[string]struct{}),
	}
}

// Exclude marks a specifier as deliberately unresolved
func (r *FSResolver) Exclude(specifier string) {
	r.Exclusions[specifier] = struct{}{}
}

// Name implements plugin.Resolver
func (r *FSResolver) Name() string { return "resolver-fs" }

// Resolve implements plugin.Resolver. Bare specifiers (package imports) are
// deferred to the next resolver; relative and absolute paths are resolved
// against the importer.
func (r *FSResolver) Resolve(ctx context.Context, dep *asset.Dependency, fromPath string) (*plugin.ResolveResult, error) {
	if _, ok := r.Exclusions[dep.Specifier]; ok {
		return &plugin.ResolveResult{IsExcluded: true}, nil
	}

	spec := dep.Specifier
	var candidates []string
	switch {
	case strings.HasPrefix(spec, "."):
		candidates = []string{filepath.Join(filepath.Dir(fromPath), spec)}
	case filepath.IsAbs(spec):
		// An absolute specifier is tried as-is first; a miss falls back to
		// treating it as project-relative, since both spell "/..." on Unix.
		candidates = []string{spec, filepath.Join(r.ProjectRoot, spec)}
	case strings.HasPrefix(spec, "/"):
		candidates = []string{filepath.Join(r.ProjectRoot, spec)}
	default:
		// Bare specifier: defer to a package resolver
		return nil, nil
	}

	for _, base := range candidates {
		if resolved, ok := r.tryPaths(base); ok {
			return &plugin.ResolveResult{FilePath: resolved}, nil
		}
	}
	if dep.IsOptional {
		return nil, nil
	}
	return nil, fmt.Errorf("cannot resolve %q from %s", spec, fromPath)
}

// tryPaths tries the base path as-is, with known extensions, and as a
// directory with an index file
func (r *FSResolver) tryPaths(base string) (string, bool) {
	if isFile(base) {
		return base, true
	}
	for _, ext := range resolveExtensions {
		if p := base + ext; isFile(p) {
			return p, true
		}
	}
	for _, ext := range resolveExtensions {
		if p := filepath.Join(base, "index"+ext); isFile(p) {
			return p, true
		}
	}
	return "", false
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// InlineResolver serves code registered under synthetic specifiers, used
// for runtime-injected assets and in tests
type InlineResolver struct {
	entries map[string][]byte
}

// NewInlineResolver creates an empty inline resolver
func NewInlineResolver() *InlineResolver {
	return &InlineResolver{entries: make(map[string][]byte)}
}

// Register adds inline code under a specifier
func (r *InlineResolver) Register(specifier string, code []byte) {
	r.entries[specifier] = code
}

// Name implements plugin.Resolver
func (r *InlineResolver) Name() string { return "resolver-inline" }

// Resolve implements plugin.Resolver
func (r *InlineResolver) Resolve(ctx context.Context, dep *asset.Dependency, fromPath string) (*plugin.ResolveResult, error) {
	code, ok := r.entries[dep.Specifier]
	if !ok {
		return nil, nil
	}
	return &plugin.ResolveResult{
		FilePath: dep.Specifier,
		Code:     code,
	}, nil
}

// MissingDiagnostic builds the diagnostic reported when no resolver claims
// a non-optional dependency
func MissingDiagnostic(dep *asset.Dependency, fromPath string) diagnostics.Diagnostic {
	d := diagnostics.Diagnostic{
		Phase:        "resolve",
		Code:         "RESOLVE001",
		Message:      fmt.Sprintf("cannot resolve %q from %s", dep.Specifier, fromPath),
		Severity:     diagnostics.Error,
		DependencyID: dep.ID,
		Specifier:    dep.Specifier,
	}
	if dep.Loc != nil {
		d.Location = *dep.Loc
	}
	return d
}

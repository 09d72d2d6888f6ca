package builtin

import (
	"path/filepath"
	"strings"

	"github.com/motiz88/parcel/internal/bundlegraph"
)

// ContentHashNamer names bundles from their main entry asset. Entry bundles
// and bundles needing stable long-lived URLs keep plain names; everything
// else gets the bundle's hash reference, which packaging replaces with the
// final content hash so names change when content does.
type ContentHashNamer struct{}

// NewContentHashNamer creates the default namer
func NewContentHashNamer() *ContentHashNamer {
	return &ContentHashNamer{}
}

// Name implements plugin.Namer
func (n *ContentHashNamer) Name() string { return "namer-default" }

// NameBundle implements plugin.Namer
func (n *ContentHashNamer) NameBundle(b *bundlegraph.Bundle, g *bundlegraph.Graph) (string, error) {
	base := b.UniqueKey
	if b.MainEntryID != "" {
		if entry, ok := g.AssetGraph().GetAsset(b.MainEntryID); ok {
			base = strings.TrimSuffix(filepath.Base(entry.FilePath), filepath.Ext(entry.FilePath))
		}
	}
	if base == "" {
		return "", nil
	}

	stable := b.IsEntry || needsStableName(b, g)
	if stable {
		return base + "." + b.Type, nil
	}
	return base + "." + b.HashRef + "." + b.Type, nil
}

// needsStableName reports whether any dependency loading the bundle's entry
// asked for a long-lived URL
func needsStableName(b *bundlegraph.Bundle, g *bundlegraph.Graph) bool {
	if b.MainEntryID == "" {
		return false
	}
	for _, dep := range g.AssetGraph().IncomingOf(b.MainEntryID) {
		if dep.NeedsStableName {
			return true
		}
	}
	return false
}

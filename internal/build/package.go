package build

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/motiz88/parcel/internal/bundlegraph"
	"github.com/motiz88/parcel/internal/fingerprint"
	"github.com/motiz88/parcel/internal/symbols"
)

// reExportStatement matches exported declarations for tree-shaking. Unused
// exports keep their declaration but lose the export keyword, so later
// bundle-local references still work.
var reExportStatement = regexp.MustCompile(`(?m)^(\s*)export\s+(const|let|var|function|class)\s+([A-Za-z_$][\w$]*)`)

// packageBundles assembles each bundle's final content, substitutes bundle
// hash references, writes the dist files, and stores the packaged artifacts
// in the content cache
func (b *Builder) packageBundles(ctx context.Context, bg *bundlegraph.Graph, used map[string]*symbols.UsedSet) (map[string]string, error) {
	bundles := bg.Bundles()
	contents := make(map[string][]byte, len(bundles))

	for _, bundle := range bundles {
		content, err := b.assembleBundle(ctx, bg, bundle, used)
		if err != nil {
			return nil, fmt.Errorf("bundle %s: %w", bundle.Name, err)
		}
		contents[bundle.ID] = content
	}

	// Hash references point at other bundles, so final hashes are computed
	// over the pre-substitution content of every bundle first
	hashes := make(map[string]string, len(bundles))
	for id, content := range contents {
		hashes[id] = fingerprint.FingerprintBytes(content)
	}
	for id, content := range contents {
		for refID, hash := range hashes {
			ref := []byte(bundlegraph.HashRefPrefix + refID)
			if bytes.Contains(content, ref) {
				content = bytes.ReplaceAll(content, ref, []byte(hash))
			}
		}
		contents[id] = content
	}

	// Names carry hash references too: the default namer embeds a bundle's
	// own reference so its file name tracks its content
	for _, bundle := range bundles {
		if !strings.Contains(bundle.Name, bundlegraph.HashRefPrefix) {
			continue
		}
		for refID, hash := range hashes {
			bundle.Name = strings.ReplaceAll(bundle.Name, bundlegraph.HashRefPrefix+refID, hash)
		}
	}

	outputs := make(map[string]string, len(bundles))
	for _, bundle := range bundles {
		content := contents[bundle.ID]
		bundle.ContentHash = hashes[bundle.ID]

		cacheKey := "bundle:" + hashes[bundle.ID]
		if err := b.opts.Cache.Set(ctx, cacheKey, content); err != nil {
			return nil, fmt.Errorf("cache bundle %s: %w", bundle.Name, err)
		}

		if b.opts.DistDir == "" || bundle.IsInline {
			continue
		}
		outPath := filepath.Join(bundle.Target.DistDir, bundle.Name)
		if bundle.Target.DistDir == "" {
			outPath = filepath.Join(b.opts.DistDir, bundle.Name)
		}
		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(outPath, content, 0o644); err != nil {
			return nil, err
		}
		outputs[bundle.ID] = outPath
		b.logger.Debug("wrote bundle",
			zap.String("bundle", bundle.Name),
			zap.String("path", outPath),
			zap.Int("bytes", len(content)))
	}
	return outputs, nil
}

// assembleBundle concatenates the generated output of the bundle's assets in
// insertion order, stripping exports no importer uses
func (b *Builder) assembleBundle(ctx context.Context, bg *bundlegraph.Graph, bundle *bundlegraph.Bundle, used map[string]*symbols.UsedSet) ([]byte, error) {
	var buf bytes.Buffer
	for _, a := range bg.AssetsInBundle(bundle) {
		transformer, ok := b.opts.Registry.TransformerFor(a.Type)
		if !ok {
			return nil, fmt.Errorf("no transformer generates type %q for %s", a.Type, a.FilePath)
		}
		out, err := b.store.GetGeneratedOutput(ctx, a, transformer.Generate)
		if err != nil {
			return nil, fmt.Errorf("generate %s: %w", a.FilePath, err)
		}

		content := out.Content
		if a.Type == "js" {
			content = stripUnusedExports(content, used[a.ID])
		}

		fmt.Fprintf(&buf, "// %s\n", displayPath(a.FilePath))
		buf.Write(content)
		if !bytes.HasSuffix(content, []byte("\n")) {
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes(), nil
}

// stripUnusedExports demotes export declarations whose names no reachable
// importer uses. A nil set or a wildcard set keeps everything.
func stripUnusedExports(content []byte, set *symbols.UsedSet) []byte {
	if set == nil || set.All {
		return content
	}
	return reExportStatement.ReplaceAllFunc(content, func(match []byte) []byte {
		sub := reExportStatement.FindSubmatch(match)
		name := string(sub[3])
		if set.Has(name) {
			return match
		}
		return append(append([]byte{}, sub[1]...), []byte(string(sub[2])+" "+name)...)
	})
}

func displayPath(path string) string {
	if parts := strings.Split(filepath.ToSlash(path), "/"); len(parts) > 2 {
		return strings.Join(parts[len(parts)-2:], "/")
	}
	return filepath.ToSlash(path)
}

// PackagedBundle reads a packaged bundle's bytes back from the content cache
func (b *Builder) PackagedBundle(ctx context.Context, contentHash string) ([]byte, error) {
	return b.opts.Cache.Get(ctx, "bundle:"+contentHash)
}

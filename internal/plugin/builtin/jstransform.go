package builtin

import (
	"context"
	"regexp"
	"strings"

	"github.com/motiz88/parcel/internal/asset"
	"github.com/motiz88/parcel/internal/diagnostics"
	"github.com/motiz88/parcel/internal/plugin"
)

var (
	reImportFrom    = regexp.MustCompile(`^\s*import\s+(.+?)\s+from\s+['"]([^'"]+)['"]`)
	reImportBare    = regexp.MustCompile(`^\s*import\s+['"]([^'"]+)['"]`)
	reExportFrom    = regexp.MustCompile(`^\s*export\s+\{([^}]*)\}\s+from\s+['"]([^'"]+)['"]`)
	reExportStar    = regexp.MustCompile(`^\s*export\s+\*\s+from\s+['"]([^'"]+)['"]`)
	reExportDecl    = regexp.MustCompile(`^\s*export\s+(?:const|let|var|function\*?|async\s+function|class)\s+([A-Za-z_$][\w$]*)`)
	reExportDefault = regexp.MustCompile(`^\s*export\s+default\b`)
	reExportNamed   = regexp.MustCompile(`^\s*export\s+\{([^}]*)\}\s*;?\s*$`)
	reDynImport     = regexp.MustCompile(`\bimport\(\s*['"]([^'"]+)['"]\s*\)`)
	reWorker        = regexp.MustCompile(`\bnew\s+Worker\(\s*['"]([^'"]+)['"]`)
	reEnvVar        = regexp.MustCompile(`\bprocess\.env\.([A-Za-z_][A-Za-z0-9_]*)`)
	reCommonJS      = regexp.MustCompile(`\b(?:module\.exports|exports\.[A-Za-z_$])`)
)

// JSTransformer extracts dependencies and symbol tables from JS-family
// sources with a line scanner. It is deliberately not a full parser: the
// graph engine only needs specifiers, priorities, and export/import tables.
type JSTransformer struct{}

// NewJSTransformer creates the built-in JS transformer
func NewJSTransformer() *JSTransformer {
	return &JSTransformer{}
}

// Name implements plugin.Transformer
func (t *JSTransformer) Name() string { return "transformer-js" }

// CanTransform implements plugin.Transformer
func (t *JSTransformer) CanTransform(assetType string) bool {
	switch assetType {
	case "js", "mjs", "jsx", "ts", "tsx":
		return true
	}
	return false
}

// CanReuseAST implements plugin.Transformer; the scanner keeps no AST
func (t *JSTransformer) CanReuseAST(ast interface{}) bool { return false }

// Transform implements plugin.Transformer
func (t *JSTransformer) Transform(ctx context.Context, input plugin.TransformInput) ([]*asset.Asset, error) {
	a := input.Asset
	a.InvalidateOnFileChange(a.FilePath)

	commonJS := false
	lines := strings.Split(string(a.Content), "\n")
	for i, line := range lines {
		loc := &diagnostics.SourceLocation{File: a.FilePath, Line: i + 1, Column: 1}

		if m := reExportStar.FindStringSubmatch(line); m != nil {
			symbols := asset.NewSymbolTable()
			symbols.Set("*", asset.Symbol{IsWeak: true, Loc: loc})
			a.AddDependency(asset.DependencyOptions{
				Specifier: m[1],
				Kind:      asset.SpecifierESM,
				Priority:  asset.PrioritySync,
				Loc:       loc,
				Env:       a.Env,
				Symbols:   symbols,
			})
			continue
		}
		if m := reExportFrom.FindStringSubmatch(line); m != nil {
			symbols := asset.NewSymbolTable()
			for exported, local := range parseNamedClause(m[1]) {
				symbols.Set(exported, asset.Symbol{Local: local, IsWeak: true, Loc: loc})
			}
			a.AddDependency(asset.DependencyOptions{
				Specifier: m[2],
				Kind:      asset.SpecifierESM,
				Priority:  asset.PrioritySync,
				Loc:       loc,
				Env:       a.Env,
				Symbols:   symbols,
			})
			continue
		}
		if m := reImportFrom.FindStringSubmatch(line); m != nil {
			a.AddDependency(asset.DependencyOptions{
				Specifier: m[2],
				Kind:      asset.SpecifierESM,
				Priority:  asset.PrioritySync,
				Loc:       loc,
				Env:       a.Env,
				Symbols:   parseImportClause(m[1], loc),
			})
			continue
		}
		if m := reImportBare.FindStringSubmatch(line); m != nil {
			a.AddDependency(asset.DependencyOptions{
				Specifier: m[1],
				Kind:      asset.SpecifierESM,
				Priority:  asset.PrioritySync,
				Loc:       loc,
				Env:       a.Env,
			})
			continue
		}
		if m := reExportDecl.FindStringSubmatch(line); m != nil {
			a.Symbols.Set(m[1], asset.Symbol{Local: m[1], Loc: loc})
		} else if reExportDefault.MatchString(line) {
			a.Symbols.Set("default", asset.Symbol{Local: "default", Loc: loc})
		} else if m := reExportNamed.FindStringSubmatch(line); m != nil {
			for exported, local := range parseNamedClause(m[1]) {
				a.Symbols.Set(exported, asset.Symbol{Local: local, Loc: loc})
			}
		}

		for _, m := range reDynImport.FindAllStringSubmatch(line, -1) {
			a.AddDependency(asset.DependencyOptions{
				Specifier: m[1],
				Kind:      asset.SpecifierESM,
				Priority:  asset.PriorityLazy,
				Loc:       loc,
				Env:       a.Env,
			})
		}
		for _, m := range reWorker.FindAllStringSubmatch(line, -1) {
			workerEnv := a.Env
			workerEnv.Context = asset.ContextWebWorker
			a.AddDependency(asset.DependencyOptions{
				Specifier: m[1],
				Kind:      asset.SpecifierRuntime,
				Priority:  asset.PriorityLazy,
				Loc:       loc,
				Env:       workerEnv,
			})
		}
		for _, m := range reEnvVar.FindAllStringSubmatch(line, -1) {
			a.InvalidateOnEnvChange(m[1])
		}
		if reCommonJS.MatchString(line) {
			commonJS = true
		}
	}

	if commonJS {
		// CommonJS-style exports cannot be enumerated statically;
		// downstream symbol resolution must bail out
		a.Symbols = asset.ClearedSymbolTable()
	}
	a.Type = "js"
	return []*asset.Asset{a}, nil
}

// Generate implements plugin.Transformer; the scanner passes content through
func (t *JSTransformer) Generate(ctx context.Context, a *asset.Asset) (asset.GeneratedOutput, error) {
	return asset.GeneratedOutput{Content: a.Content}, nil
}

// parseImportClause parses the clause between `import` and `from`:
// `d`, `* as ns`, `{ a, b as c }`, or `d, { a }`
func parseImportClause(clause string, loc *diagnostics.SourceLocation) *asset.SymbolTable {
	symbols := asset.NewSymbolTable()
	clause = strings.TrimSpace(clause)

	if braceStart := strings.Index(clause, "{"); braceStart >= 0 {
		braceEnd := strings.Index(clause, "}")
		if braceEnd > braceStart {
			for exported, local := range parseNamedClause(clause[braceStart+1 : braceEnd]) {
				symbols.Set(exported, asset.Symbol{Local: local, Loc: loc})
			}
		}
		clause = strings.TrimSpace(strings.TrimSuffix(clause[:braceStart], ","))
	}

	if strings.HasPrefix(clause, "*") {
		symbols.Set("*", asset.Symbol{Local: namespaceAlias(clause), Loc: loc})
	} else if clause != "" {
		symbols.Set("default", asset.Symbol{Local: clause, Loc: loc})
	}
	return symbols
}

// parseNamedClause parses `a, b as c` into exported name -> source name
func parseNamedClause(clause string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(clause, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if idx := strings.Index(part, " as "); idx >= 0 {
			source := strings.TrimSpace(part[:idx])
			alias := strings.TrimSpace(part[idx+4:])
			out[alias] = source
		} else {
			out[part] = part
		}
	}
	return out
}

func namespaceAlias(clause string) string {
	if idx := strings.Index(clause, " as "); idx >= 0 {
		return strings.TrimSpace(clause[idx+4:])
	}
	return "*"
}

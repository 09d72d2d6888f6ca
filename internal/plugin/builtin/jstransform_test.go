package builtin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motiz88/parcel/internal/asset"
	"github.com/motiz88/parcel/internal/fingerprint"
	"github.com/motiz88/parcel/internal/plugin"
)

func transform(t *testing.T, source string) *asset.Asset {
	t.Helper()
	a := asset.New(asset.Options{
		FilePath: "/p/src/main.js",
		Type:     "js",
		Env:      asset.DefaultEnvironment(),
		Content:  []byte(source),
	})
	out, err := NewJSTransformer().Transform(context.Background(), plugin.TransformInput{Asset: a})
	require.NoError(t, err)
	require.Len(t, out, 1)
	return out[0]
}

func findDep(t *testing.T, a *asset.Asset, specifier string) *asset.Dependency {
	t.Helper()
	for _, d := range a.Dependencies {
		if d.Specifier == specifier {
			return d
		}
	}
	t.Fatalf("no dependency on %q", specifier)
	return nil
}

func TestTransformNamedImports(t *testing.T) {
	a := transform(t, `import { add, sub as minus } from "./math"`)

	d := findDep(t, a, "./math")
	assert.Equal(t, asset.PrioritySync, d.Priority)
	assert.Equal(t, asset.SpecifierESM, d.Kind)

	add, ok := d.Symbols.Get("add")
	require.True(t, ok)
	assert.Equal(t, "add", add.Local)

	// `sub as minus` imports the exported name sub under the local alias
	minus, ok := d.Symbols.Get("sub")
	require.True(t, ok)
	assert.Equal(t, "minus", minus.Local)
}

func TestTransformDefaultAndNamespaceImports(t *testing.T) {
	a := transform(t, "import React, { useState } from \"react\"\nimport * as utils from \"./utils\"")

	react := findDep(t, a, "react")
	def, ok := react.Symbols.Get("default")
	require.True(t, ok)
	assert.Equal(t, "React", def.Local)
	_, ok = react.Symbols.Get("useState")
	assert.True(t, ok)

	utils := findDep(t, a, "./utils")
	ns, ok := utils.Symbols.Get("*")
	require.True(t, ok)
	assert.Equal(t, "utils", ns.Local)
}

func TestTransformBareImport(t *testing.T) {
	a := transform(t, `import "./styles.css"`)
	d := findDep(t, a, "./styles.css")
	assert.Equal(t, 0, d.Symbols.Len())
}

func TestTransformExportDeclarations(t *testing.T) {
	a := transform(t, "export const version = 1\nexport function run() {}\nexport class Engine {}\nexport default run\nexport { internal as external }")

	for _, name := range []string{"version", "run", "Engine", "default"} {
		_, ok := a.Symbols.Get(name)
		assert.True(t, ok, "expected export %q", name)
	}
	ext, ok := a.Symbols.Get("external")
	require.True(t, ok)
	assert.Equal(t, "internal", ext.Local)
}

func TestTransformWeakReexports(t *testing.T) {
	a := transform(t, "export { helper, deep as shallow } from \"./helpers\"\nexport * from \"./extra\"")

	helpers := findDep(t, a, "./helpers")
	h, ok := helpers.Symbols.Get("helper")
	require.True(t, ok)
	assert.True(t, h.IsWeak)
	assert.Equal(t, "helper", h.Local)

	shallow, ok := helpers.Symbols.Get("shallow")
	require.True(t, ok)
	assert.True(t, shallow.IsWeak)
	assert.Equal(t, "deep", shallow.Local)

	extra := findDep(t, a, "./extra")
	star, ok := extra.Symbols.Get("*")
	require.True(t, ok)
	assert.True(t, star.IsWeak)
}

func TestTransformDynamicImport(t *testing.T) {
	a := transform(t, `const page = await import("./page")`)
	d := findDep(t, a, "./page")
	assert.Equal(t, asset.PriorityLazy, d.Priority)
}

func TestTransformWorker(t *testing.T) {
	a := transform(t, `const w = new Worker("./heavy.js")`)
	d := findDep(t, a, "./heavy.js")
	assert.Equal(t, asset.PriorityLazy, d.Priority)
	assert.Equal(t, asset.SpecifierRuntime, d.Kind)
	assert.Equal(t, asset.ContextWebWorker, d.Env.Context)
}

func TestTransformEnvVarInvalidation(t *testing.T) {
	a := transform(t, `const url = process.env.API_URL`)
	assert.Contains(t, a.Invalidations, fingerprint.Invalidation{Kind: fingerprint.EnvChange, Key: "API_URL"})
}

func TestTransformRecordsFileInvalidation(t *testing.T) {
	a := transform(t, `export const x = 1`)
	assert.Contains(t, a.Invalidations, fingerprint.Invalidation{Kind: fingerprint.FileChange, Key: "/p/src/main.js"})
}

func TestTransformCommonJSClearsSymbols(t *testing.T) {
	a := transform(t, "module.exports = { run }")
	assert.True(t, a.Symbols.IsCleared())
}

func TestTransformNormalizesType(t *testing.T) {
	a := asset.New(asset.Options{
		FilePath: "/p/src/main.ts",
		Type:     "ts",
		Env:      asset.DefaultEnvironment(),
		Content:  []byte("export const x: number = 1\n"),
	})
	out, err := NewJSTransformer().Transform(context.Background(), plugin.TransformInput{Asset: a})
	require.NoError(t, err)
	assert.Equal(t, "js", out[0].Type)
}

func TestCanTransform(t *testing.T) {
	jt := NewJSTransformer()
	for _, typ := range []string{"js", "mjs", "jsx", "ts", "tsx"} {
		assert.True(t, jt.CanTransform(typ), typ)
	}
	assert.False(t, jt.CanTransform("css"))
	assert.False(t, jt.CanTransform("json"))
}

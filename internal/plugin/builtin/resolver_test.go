package builtin

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motiz88/parcel/internal/asset"
)

func writeFile(t *testing.T, path string, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func dep(specifier string) *asset.Dependency {
	return asset.NewDependency(asset.DependencyOptions{
		Specifier: specifier,
		Env:       asset.DefaultEnvironment(),
	})
}

func TestFSResolverRelative(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "util.js"), "export const x = 1\n")
	r := NewFSResolver(root)

	res, err := r.Resolve(context.Background(), dep("./util.js"), filepath.Join(root, "src", "main.js"))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, filepath.Join(root, "src", "util.js"), res.FilePath)
}

func TestFSResolverExtensionSearch(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "helpers.ts"), "export const x = 1\n")
	r := NewFSResolver(root)

	res, err := r.Resolve(context.Background(), dep("./helpers"), filepath.Join(root, "src", "main.js"))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, filepath.Join(root, "src", "helpers.ts"), res.FilePath)
}

func TestFSResolverIndexFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "lib", "index.js"), "export const x = 1\n")
	r := NewFSResolver(root)

	res, err := r.Resolve(context.Background(), dep("./lib"), filepath.Join(root, "src", "main.js"))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, filepath.Join(root, "src", "lib", "index.js"), res.FilePath)
}

func TestFSResolverAbsoluteSpecifier(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	writeFile(t, filepath.Join(outside, "entry.js"), "export const x = 1\n")
	r := NewFSResolver(root)

	// Entry specifiers arrive as absolute paths, which may live outside the
	// project root entirely
	res, err := r.Resolve(context.Background(), dep(filepath.Join(outside, "entry.js")), filepath.Join(outside, "entry.js"))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, filepath.Join(outside, "entry.js"), res.FilePath)
}

func TestFSResolverProjectRelative(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "shared", "api.js"), "export const x = 1\n")
	r := NewFSResolver(root)

	res, err := r.Resolve(context.Background(), dep("/shared/api"), filepath.Join(root, "src", "deep", "main.js"))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, filepath.Join(root, "shared", "api.js"), res.FilePath)
}

func TestFSResolverDefersBareSpecifiers(t *testing.T) {
	r := NewFSResolver(t.TempDir())
	res, err := r.Resolve(context.Background(), dep("lodash"), "/p/src/main.js")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestFSResolverExclusions(t *testing.T) {
	r := NewFSResolver(t.TempDir())
	r.Exclude("fs")

	res, err := r.Resolve(context.Background(), dep("fs"), "/p/src/main.js")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.IsExcluded)
}

func TestFSResolverMissing(t *testing.T) {
	root := t.TempDir()
	r := NewFSResolver(root)

	_, err := r.Resolve(context.Background(), dep("./nope"), filepath.Join(root, "main.js"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `cannot resolve "./nope"`)
}

func TestFSResolverOptionalMissing(t *testing.T) {
	root := t.TempDir()
	r := NewFSResolver(root)
	optional := asset.NewDependency(asset.DependencyOptions{
		Specifier:  "./nope",
		IsOptional: true,
		Env:        asset.DefaultEnvironment(),
	})

	res, err := r.Resolve(context.Background(), optional, filepath.Join(root, "main.js"))
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestInlineResolver(t *testing.T) {
	r := NewInlineResolver()
	r.Register("virtual:hmr", []byte("export const hot = true\n"))

	res, err := r.Resolve(context.Background(), dep("virtual:hmr"), "/p/main.js")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "virtual:hmr", res.FilePath)
	assert.Equal(t, []byte("export const hot = true\n"), res.Code)

	res, err = r.Resolve(context.Background(), dep("virtual:other"), "/p/main.js")
	require.NoError(t, err)
	assert.Nil(t, res)
}

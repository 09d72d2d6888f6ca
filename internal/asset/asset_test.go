package asset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motiz88/parcel/internal/fingerprint"
)

func TestAssetIDDeterministic(t *testing.T) {
	env := DefaultEnvironment()
	opts := IDOptions{
		FilePath: "/proj/src/index.js",
		Type:     "js",
		EnvID:    env.ID(),
	}
	assert.Equal(t, CreateAssetIDFromOptions(opts), CreateAssetIDFromOptions(opts))
}

func TestAssetIDVariesByInput(t *testing.T) {
	env := DefaultEnvironment()
	base := IDOptions{FilePath: "/proj/src/index.js", Type: "js", EnvID: env.ID()}

	variants := []IDOptions{
		{FilePath: "/proj/src/other.js", Type: "js", EnvID: env.ID()},
		{FilePath: "/proj/src/index.js", Type: "css", EnvID: env.ID()},
		{FilePath: "/proj/src/index.js", Type: "js", EnvID: Environment{Context: ContextNode}.ID()},
		{FilePath: "/proj/src/index.js", Type: "js", EnvID: env.ID(), Pipeline: "inline"},
		{FilePath: "/proj/src/index.js", Type: "js", EnvID: env.ID(), Query: "raw"},
		{FilePath: "/proj/src/index.js", Type: "js", EnvID: env.ID(), UniqueKey: "virtual-1"},
	}

	baseID := CreateAssetIDFromOptions(base)
	for _, v := range variants {
		assert.NotEqual(t, baseID, CreateAssetIDFromOptions(v))
	}
}

func TestContentKeyTracksContent(t *testing.T) {
	a := New(Options{FilePath: "/p/a.js", Type: "js", Env: DefaultEnvironment(), Content: []byte("a")})
	first := a.ContentKey

	a.SetContent([]byte("b"))
	a.Commit()

	assert.NotEqual(t, first, a.ContentKey)
	// Identity is content independent
	assert.Equal(t, a.ID, CreateAssetIDFromOptions(IDOptions{
		FilePath: "/p/a.js", Type: "js", EnvID: DefaultEnvironment().ID(),
	}))
}

func TestCommitFreezesAsset(t *testing.T) {
	a := New(Options{FilePath: "/p/a.js", Type: "js", Env: DefaultEnvironment()})
	a.Commit()
	assert.True(t, a.IsFrozen())

	assert.Panics(t, func() { a.SetContent([]byte("late")) })
	assert.Panics(t, func() { a.InvalidateOnFileChange("/p/b.js") })
	assert.Panics(t, func() {
		a.AddDependency(DependencyOptions{Specifier: "./late", Env: DefaultEnvironment()})
	})
}

func TestInvalidationRecording(t *testing.T) {
	a := New(Options{FilePath: "/p/a.js", Type: "js", Env: DefaultEnvironment()})
	a.InvalidateOnFileChange("/p/a.js")
	a.InvalidateOnFileCreate("/p/*.json")
	a.InvalidateOnEnvChange("NODE_ENV")
	a.InvalidateOnOptionChange("mode")

	require.Len(t, a.Invalidations, 4)
	assert.Equal(t, fingerprint.Invalidation{Kind: fingerprint.FileChange, Key: "/p/a.js"}, a.Invalidations[0])
	assert.Equal(t, fingerprint.Invalidation{Kind: fingerprint.FileCreate, Key: "/p/*.json"}, a.Invalidations[1])
	assert.Equal(t, fingerprint.Invalidation{Kind: fingerprint.EnvChange, Key: "NODE_ENV"}, a.Invalidations[2])
	assert.Equal(t, fingerprint.Invalidation{Kind: fingerprint.OptionChange, Key: "mode"}, a.Invalidations[3])
}

func TestAddDependencyLinksSource(t *testing.T) {
	a := New(Options{FilePath: "/p/a.js", Type: "js", Env: DefaultEnvironment()})
	dep := a.AddDependency(DependencyOptions{
		Specifier: "./util",
		Priority:  PriorityLazy,
		Env:       DefaultEnvironment(),
	})

	assert.Equal(t, a.ID, dep.SourceAssetID)
	assert.Equal(t, "/p/a.js", dep.SourcePath)
	assert.True(t, dep.IsAsync())
	require.Len(t, a.Dependencies, 1)
}

func TestCommitRebindsDependencySource(t *testing.T) {
	a := New(Options{FilePath: "/p/main.ts", Type: "ts", Env: DefaultEnvironment()})
	dep := a.AddDependency(DependencyOptions{
		Specifier: "./util",
		Priority:  PrioritySync,
		Env:       DefaultEnvironment(),
	})
	preCommitID := a.ID

	// A transformer normalizes the type, which changes the derived id
	a.Type = "js"
	a.Commit()

	assert.NotEqual(t, preCommitID, a.ID)
	assert.Equal(t, a.ID, dep.SourceAssetID)
}

func TestDependencyIDDeterministic(t *testing.T) {
	opts := DependencyOptions{
		SourceAssetID: "abc",
		Specifier:     "./util",
		Priority:      PrioritySync,
		Env:           DefaultEnvironment(),
	}
	assert.Equal(t, NewDependency(opts).ID, NewDependency(opts).ID)

	lazy := opts
	lazy.Priority = PriorityLazy
	assert.NotEqual(t, NewDependency(opts).ID, NewDependency(lazy).ID)
}

func TestEnvironmentCompatibility(t *testing.T) {
	browser := DefaultEnvironment()
	worker := Environment{Context: ContextWebWorker, OutputFormat: "esmodule", SourceType: "module"}
	isolatedWorker := worker
	isolatedWorker.ShouldBeIsolated = true

	assert.True(t, browser.IsCompatibleWith(browser))
	assert.False(t, worker.IsCompatibleWith(browser))
	assert.True(t, isolatedWorker.IsCompatibleWith(browser))
}

func TestSymbolTableClearedState(t *testing.T) {
	table := NewSymbolTable()
	assert.False(t, table.IsCleared())
	assert.Equal(t, 0, table.Len())

	cleared := ClearedSymbolTable()
	assert.True(t, cleared.IsCleared())

	table.Set("foo", Symbol{Local: "foo"})
	table.Set("bar", Symbol{Local: "barLocal", IsWeak: true})
	assert.Equal(t, []string{"bar", "foo"}, table.Names())

	copied := table.Copy()
	copied.Set("baz", Symbol{Local: "baz"})
	assert.Equal(t, 2, table.Len())
	assert.Equal(t, 3, copied.Len())
}

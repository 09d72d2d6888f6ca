package asset

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motiz88/parcel/internal/cache"
)

func committedAsset(t *testing.T, s *Store, path, content string) *Asset {
	t.Helper()
	a := s.CreateAsset(Options{
		FilePath: path,
		Type:     "js",
		Env:      DefaultEnvironment(),
		Content:  []byte(content),
	})
	return s.Commit(a)
}

func TestStoreCommitAndGet(t *testing.T) {
	s := NewStore(nil)
	a := committedAsset(t, s, "/p/a.js", "let a = 1\n")

	got, ok := s.Get(a.ID)
	require.True(t, ok)
	assert.Same(t, a, got)
	assert.Equal(t, 1, s.Size())

	s.Drop([]string{a.ID})
	_, ok = s.Get(a.ID)
	assert.False(t, ok)
}

func TestGetGeneratedOutputCoalesces(t *testing.T) {
	s := NewStore(nil)
	a := committedAsset(t, s, "/p/a.js", "let a = 1\n")

	var calls int32
	gen := func(ctx context.Context, a *Asset) (GeneratedOutput, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(20 * time.Millisecond)
		return GeneratedOutput{Content: a.Content}, nil
	}

	const workers = 16
	var wg sync.WaitGroup
	outputs := make([]GeneratedOutput, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := s.GetGeneratedOutput(context.Background(), a, gen)
			assert.NoError(t, err)
			outputs[i] = out
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, out := range outputs {
		assert.Equal(t, []byte("let a = 1\n"), out.Content)
	}
}

func TestGetGeneratedOutputPersists(t *testing.T) {
	backing := cache.NewMemoryStore()

	s1 := NewStore(backing)
	a := committedAsset(t, s1, "/p/a.js", "let a = 1\n")

	var calls int32
	gen := func(ctx context.Context, a *Asset) (GeneratedOutput, error) {
		atomic.AddInt32(&calls, 1)
		return GeneratedOutput{Content: a.Content, SourceMap: []byte("{}")}, nil
	}

	_, err := s1.GetGeneratedOutput(context.Background(), a, gen)
	require.NoError(t, err)

	// A fresh store sharing the backing cache serves the artifact without
	// regenerating
	s2 := NewStore(backing)
	b := committedAsset(t, s2, "/p/a.js", "let a = 1\n")
	out, err := s2.GetGeneratedOutput(context.Background(), b, gen)
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, []byte("let a = 1\n"), out.Content)
	assert.Equal(t, []byte("{}"), out.SourceMap)
}

func TestGetGeneratedOutputNewSnapshotRegenerates(t *testing.T) {
	s := NewStore(nil)
	a := committedAsset(t, s, "/p/a.js", "let a = 1\n")

	var calls int32
	gen := func(ctx context.Context, a *Asset) (GeneratedOutput, error) {
		atomic.AddInt32(&calls, 1)
		return GeneratedOutput{Content: a.Content}, nil
	}

	_, err := s.GetGeneratedOutput(context.Background(), a, gen)
	require.NoError(t, err)

	// Same path, new content: new content key, so generation runs again
	b := committedAsset(t, s, "/p/a.js", "let a = 2\n")
	out, err := s.GetGeneratedOutput(context.Background(), b, gen)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, []byte("let a = 2\n"), out.Content)
}

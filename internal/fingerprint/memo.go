package fingerprint

import (
	"os"
	"sync"

	"golang.org/x/sync/singleflight"
)

// BuildSnapshot memoizes file content hashes for the duration of one build,
// so a file touched by many assets is hashed once. Concurrent hashers of the
// same path coalesce onto one computation. Env and option values are read
// from fixed maps captured when the build starts.
type BuildSnapshot struct {
	hasher  *FileHasher
	group   singleflight.Group
	mu      sync.RWMutex
	hashes  map[string]string
	env     map[string]string
	options map[string]string
}

// NewBuildSnapshot creates a snapshot scoped to one build
func NewBuildSnapshot(options map[string]string) *BuildSnapshot {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				env[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	return NewBuildSnapshotWithEnv(env, options)
}

// NewBuildSnapshotWithEnv creates a snapshot with explicit env values
func NewBuildSnapshotWithEnv(env, options map[string]string) *BuildSnapshot {
	if env == nil {
		env = make(map[string]string)
	}
	if options == nil {
		options = make(map[string]string)
	}
	return &BuildSnapshot{
		hasher:  NewFileHasher(),
		hashes:  make(map[string]string),
		env:     env,
		options: options,
	}
}

// HashFile returns the memoized content hash for path, computing it once
// even under concurrent callers
func (s *BuildSnapshot) HashFile(path string) (string, error) {
	s.mu.RLock()
	hash, ok := s.hashes[path]
	s.mu.RUnlock()
	if ok {
		return hash, nil
	}

	v, err, _ := s.group.Do(path, func() (interface{}, error) {
		hash, err := s.hasher.HashFile(path)
		if err != nil {
			return "", err
		}
		s.mu.Lock()
		s.hashes[path] = hash
		s.mu.Unlock()
		return hash, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// EnvValue returns the captured env value for key, or "" if absent
func (s *BuildSnapshot) EnvValue(key string) string {
	return s.env[key]
}

// OptionValue returns the build option value for key, or "" if absent
func (s *BuildSnapshot) OptionValue(key string) string {
	return s.options[key]
}

// Forget drops the memoized hash for path. Must be called when a file-change
// event for that exact path is observed, since content can change between
// builds.
func (s *BuildSnapshot) Forget(path string) {
	s.mu.Lock()
	delete(s.hashes, path)
	s.mu.Unlock()
	s.group.Forget(path)
}

// MemoSize returns the number of memoized file hashes
func (s *BuildSnapshot) MemoSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.hashes)
}

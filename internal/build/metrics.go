package build

import (
	"sync"
	"time"
)

// Metrics tracks performance counters for one build
type Metrics struct {
	mu sync.Mutex

	TotalAssets       int
	AssetsTransformed int
	CacheHits         int
	Revalidated       int

	ResolveDuration   time.Duration
	TransformDuration time.Duration
	BundleDuration    time.Duration
	PackageDuration   time.Duration
	TotalDuration     time.Duration

	StartTime time.Time
	EndTime   time.Time
}

// CacheHitRate returns the cache hit rate as a percentage
func (m *Metrics) CacheHitRate() float64 {
	if m.TotalAssets == 0 {
		return 0.0
	}
	return float64(m.CacheHits) / float64(m.TotalAssets) * 100.0
}

func (m *Metrics) addTransform(d time.Duration, cached bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalAssets++
	if cached {
		m.CacheHits++
	} else {
		m.AssetsTransformed++
		m.TransformDuration += d
	}
}

func (m *Metrics) addResolve(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ResolveDuration += d
}

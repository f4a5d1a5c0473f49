package statsservice

import (
	"sync"

	"github.com/Black-And-White-Club/arena-sync/internal/observability"
)

// FakeGameMetrics records game metric calls.
type FakeGameMetrics struct {
	observability.NoOpMetrics

	mu         sync.Mutex
	kills      map[string]int
	duplicates int
}

func NewFakeGameMetrics() *FakeGameMetrics {
	return &FakeGameMetrics{kills: map[string]int{}}
}

func (f *FakeGameMetrics) RecordKill(kind string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kills[kind]++
}

func (f *FakeGameMetrics) RecordDuplicateKill() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.duplicates++
}

func (f *FakeGameMetrics) Kills(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.kills[kind]
}

func (f *FakeGameMetrics) Duplicates() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.duplicates
}

var _ observability.GameMetrics = (*FakeGameMetrics)(nil)

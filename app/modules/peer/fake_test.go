package peer

import (
	"context"
	"sync"

	backenddto "github.com/Black-And-White-Club/arena-sync/app/modules/backend/dto"
)

// FakeBackend implements Backend and records submissions.
type FakeBackend struct {
	mu      sync.Mutex
	entries []backenddto.LeaderboardEntry
	traces  []backenddto.TraceRequest

	Profile backenddto.UserProfile
}

func (f *FakeBackend) LookupUser(context.Context, string) (backenddto.UserProfile, error) {
	return f.Profile, nil
}

func (f *FakeBackend) AddLeaderboardEntry(_ context.Context, e backenddto.LeaderboardEntry) (backenddto.LeaderboardEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
	return e, nil
}

func (f *FakeBackend) SubmitTrace(_ context.Context, req backenddto.TraceRequest) (backenddto.TraceReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.traces = append(f.traces, req)
	return backenddto.TraceReceipt{Digest: "digest-1", URL: "https://traces.example/digest-1"}, nil
}

func (f *FakeBackend) Entries() []backenddto.LeaderboardEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]backenddto.LeaderboardEntry(nil), f.entries...)
}

func (f *FakeBackend) Traces() []backenddto.TraceRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]backenddto.TraceRequest(nil), f.traces...)
}

var _ Backend = (*FakeBackend)(nil)

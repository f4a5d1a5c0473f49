package sessionservice

import (
	"context"
	"sync"

	backenddto "github.com/Black-And-White-Club/arena-sync/app/modules/backend/dto"
	statsservice "github.com/Black-And-White-Club/arena-sync/app/modules/stats/application"
)

// FakeBackend records end-of-game submissions.
type FakeBackend struct {
	mu      sync.Mutex
	trace   []string
	entries []backenddto.LeaderboardEntry
	traces  []backenddto.TraceRequest

	AddLeaderboardEntryFunc func(ctx context.Context, entry backenddto.LeaderboardEntry) (backenddto.LeaderboardEntry, error)
	SubmitTraceFunc         func(ctx context.Context, req backenddto.TraceRequest) (backenddto.TraceReceipt, error)
}

func (f *FakeBackend) record(step string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trace = append(f.trace, step)
}

func (f *FakeBackend) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

func (f *FakeBackend) AddLeaderboardEntry(ctx context.Context, entry backenddto.LeaderboardEntry) (backenddto.LeaderboardEntry, error) {
	f.record("AddLeaderboardEntry")
	f.mu.Lock()
	f.entries = append(f.entries, entry)
	f.mu.Unlock()
	if f.AddLeaderboardEntryFunc != nil {
		return f.AddLeaderboardEntryFunc(ctx, entry)
	}
	return entry, nil
}

func (f *FakeBackend) SubmitTrace(ctx context.Context, req backenddto.TraceRequest) (backenddto.TraceReceipt, error) {
	f.record("SubmitTrace")
	f.mu.Lock()
	f.traces = append(f.traces, req)
	f.mu.Unlock()
	if f.SubmitTraceFunc != nil {
		return f.SubmitTraceFunc(ctx, req)
	}
	return backenddto.TraceReceipt{Digest: "digest-1", URL: "https://archive.local/traces/digest-1"}, nil
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

// FakeDisconnector counts voluntary disconnects.
type FakeDisconnector struct {
	mu    sync.Mutex
	calls int
}

func (f *FakeDisconnector) Disconnect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

func (f *FakeDisconnector) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// FakeDisabler records DisableOnGameEnd calls.
type FakeDisabler struct {
	mu       sync.Mutex
	disabled int
}

func (f *FakeDisabler) DisableOnGameEnd(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disabled++
}

func (f *FakeDisabler) Disabled() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disabled
}

// disablerList adapts a slice to DisablerSource.
type disablerList []GameEndDisabler

func (d disablerList) GameEndDisablers() []GameEndDisabler { return d }

// FakeStats serves a fixed backup.
type FakeStats struct {
	mu        sync.Mutex
	entries   map[string]statsservice.Entry
	published int
}

func (f *FakeStats) Backup() map[string]statsservice.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]statsservice.Entry, len(f.entries))
	for k, v := range f.entries {
		out[k] = v
	}
	return out
}

func (f *FakeStats) PublishLocal(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published++
	return nil
}

func (f *FakeStats) Published() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.published
}

// FakeSink captures the displayed leaderboard.
type FakeSink struct {
	mu        sync.Mutex
	standings [][]Standing
}

func (f *FakeSink) ShowLeaderboard(_ context.Context, s []Standing) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.standings = append(f.standings, s)
}

func (f *FakeSink) Shown() [][]Standing {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]Standing(nil), f.standings...)
}

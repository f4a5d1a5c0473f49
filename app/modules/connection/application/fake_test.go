package connectionservice

import (
	"context"
	"sync"
)

// FakeInput counts input releases.
type FakeInput struct {
	mu       sync.Mutex
	released int
}

func (f *FakeInput) ReleaseInput(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released++
}

func (f *FakeInput) Released() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released
}

var _ InputReleaser = (*FakeInput)(nil)

// FakeStatus records status lines.
type FakeStatus struct {
	mu    sync.Mutex
	lines []string
}

func (f *FakeStatus) Status(_ context.Context, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, text)
}

func (f *FakeStatus) Lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

func (f *FakeStatus) Last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.lines) == 0 {
		return ""
	}
	return f.lines[len(f.lines)-1]
}

var _ StatusSink = (*FakeStatus)(nil)

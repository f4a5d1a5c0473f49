package botservice

import (
	"context"
	"sync"

	"github.com/Black-And-White-Club/arena-sync/internal/relay"
)

// FakeAnnouncer records feed broadcasts.
type FakeAnnouncer struct {
	mu    sync.Mutex
	lines []string
}

func (f *FakeAnnouncer) Broadcast(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, text)
	return nil
}

func (f *FakeAnnouncer) Lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

var _ Announcer = (*FakeAnnouncer)(nil)

// reportedKill is one ReportBotKill call.
type reportedKill struct {
	Killer  string
	BotID   relay.ActorID
	BotName string
}

// FakeKillReporter records reported kills.
type FakeKillReporter struct {
	mu    sync.Mutex
	kills []reportedKill
}

func (f *FakeKillReporter) ReportBotKill(_ context.Context, killer string, botID relay.ActorID, botName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kills = append(f.kills, reportedKill{Killer: killer, BotID: botID, BotName: botName})
	return nil
}

func (f *FakeKillReporter) Kills() []reportedKill {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]reportedKill(nil), f.kills...)
}

var _ KillReporter = (*FakeKillReporter)(nil)

// FakeBotDisabler records disabled bots.
type FakeBotDisabler struct {
	mu       sync.Mutex
	disabled []relay.ActorID
}

func (f *FakeBotDisabler) DisableBot(_ context.Context, id relay.ActorID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disabled = append(f.disabled, id)
}

func (f *FakeBotDisabler) Disabled() []relay.ActorID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]relay.ActorID(nil), f.disabled...)
}

var _ BotDisabler = (*FakeBotDisabler)(nil)

package statsservice

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	roomservice "github.com/Black-And-White-Club/arena-sync/app/modules/room/application"
	"github.com/Black-And-White-Club/arena-sync/internal/observability/attr"
	"github.com/Black-And-White-Club/arena-sync/internal/relay"
)

// FeedLimit is how many kill-feed lines a peer keeps.
const FeedLimit = 10

// Feed is the local kill feed. Lines produced on every peer are added with Add; lines produced on
// one peer only are fanned out with Broadcast.
type Feed struct {
	messenger relay.Messenger
	logger    *slog.Logger

	mu          sync.Mutex
	lines       []string
	subscribers []func(string)
}

// NewFeed creates an empty feed.
func NewFeed(m relay.Messenger, logger *slog.Logger) *Feed {
	return &Feed{messenger: m, logger: logger}
}

// Add appends a line, dropping the oldest beyond FeedLimit.
func (f *Feed) Add(text string) {
	f.mu.Lock()
	f.lines = append(f.lines, text)
	if len(f.lines) > FeedLimit {
		f.lines = append([]string(nil), f.lines[len(f.lines)-FeedLimit:]...)
	}
	subs := make([]func(string), len(f.subscribers))
	copy(subs, f.subscribers)
	f.mu.Unlock()

	for _, fn := range subs {
		fn(text)
	}
}

// Broadcast sends a line to every peer in the room, the sender included.
func (f *Feed) Broadcast(ctx context.Context, text string) error {
	if err := f.messenger.RPC(ctx, relay.TargetAll, 0, roomservice.MethodAddMessage, roomservice.MessageArgs{Text: text}); err != nil {
		f.logger.WarnContext(ctx, "Failed to broadcast feed message", attr.Error(err))
		return err
	}
	return nil
}

// Messages returns the retained lines, oldest first.
func (f *Feed) Messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

// Subscribe registers fn for every new line.
func (f *Feed) Subscribe(fn func(string)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribers = append(f.subscribers, fn)
}

// Clear drops retained lines.
func (f *Feed) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = nil
}

func botKillLine(killer, bot string, points int) string {
	return fmt.Sprintf("%s eliminated %s (+%d points)!", killer, bot, points)
}

func streakLine(killer, message string) string {
	return fmt.Sprintf("%s - %s!", killer, message)
}

// PlayerJoinedLine announces a human joining.
func PlayerJoinedLine(name string) string { return fmt.Sprintf("Player %s Joined Game.", name) }

// PlayerLeftLine announces a human leaving.
func PlayerLeftLine(name string) string { return fmt.Sprintf("Player %s Left Game.", name) }

package peer

import (
	"context"
	"log/slog"
	"sync"

	sessionservice "github.com/Black-And-White-Club/arena-sync/app/modules/session/application"
	"github.com/Black-And-White-Club/arena-sync/internal/observability/attr"
)

// Console is the headless stand-in for the player's screen: status lines, the kill feed and the
// final leaderboard go to the log and are kept for inspection.
type Console struct {
	logger *slog.Logger

	mu        sync.Mutex
	status    string
	feed      []string
	standings []sessionservice.Standing
}

func NewConsole(logger *slog.Logger) *Console {
	return &Console{logger: logger}
}

func (c *Console) Status(ctx context.Context, text string) {
	c.mu.Lock()
	c.status = text
	c.mu.Unlock()
	if text != "" {
		c.logger.InfoContext(ctx, "Status", attr.String("text", text))
	}
}

func (c *Console) FeedLine(text string) {
	c.mu.Lock()
	c.feed = append(c.feed, text)
	c.mu.Unlock()
	c.logger.Info("Feed", attr.String("text", text))
}

func (c *Console) ShowLeaderboard(ctx context.Context, standings []sessionservice.Standing) {
	c.mu.Lock()
	c.standings = append([]sessionservice.Standing(nil), standings...)
	c.mu.Unlock()
	for _, s := range standings {
		c.logger.InfoContext(ctx, "Leaderboard",
			attr.Int("rank", s.Rank),
			attr.String("player", s.Name),
			attr.Int("score", s.Score),
			attr.Int("kills", s.Kills),
		)
	}
}

// LastStatus returns the current status line.
func (c *Console) LastStatus() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// FeedLines returns every feed line seen so far.
func (c *Console) FeedLines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.feed...)
}

// Standings returns the last leaderboard shown.
func (c *Console) Standings() []sessionservice.Standing {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sessionservice.Standing(nil), c.standings...)
}

package peer

import (
	"context"
	"log/slog"
	"sync"

	roomservice "github.com/Black-And-White-Club/arena-sync/app/modules/room/application"
	"github.com/Black-And-White-Club/arena-sync/internal/observability/attr"
	"github.com/Black-And-White-Club/arena-sync/internal/relay"
)

// DamageReporter applies damage to a bot through the master.
type DamageReporter interface {
	ReportDamage(ctx context.Context, args roomservice.BotDamageArgs) error
}

// KillAnnouncer announces player kills and deaths to the room.
type KillAnnouncer interface {
	ReportKill(ctx context.Context, killer string) error
	ReportDeath(ctx context.Context, name string) error
}

// Avatar is the local player's character. It stops taking input when the game ends or the
// connection drops.
type Avatar struct {
	name   string
	bots   DamageReporter
	kills  KillAnnouncer
	logger *slog.Logger

	mu       sync.Mutex
	input    bool
	disabled bool
}

// NewAvatar creates an avatar with input enabled.
func NewAvatar(name string, bots DamageReporter, kills KillAnnouncer, logger *slog.Logger) *Avatar {
	return &Avatar{name: name, bots: bots, kills: kills, logger: logger, input: true}
}

// Active reports whether the avatar accepts gameplay input.
func (a *Avatar) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.input && !a.disabled
}

// DisableOnGameEnd freezes the avatar for the rest of the game.
func (a *Avatar) DisableOnGameEnd(ctx context.Context) {
	a.mu.Lock()
	a.disabled = true
	a.mu.Unlock()
	a.logger.DebugContext(ctx, "Avatar disabled for game end")
}

// ReleaseInput hands input back to the player.
func (a *Avatar) ReleaseInput(ctx context.Context) {
	a.mu.Lock()
	a.input = false
	a.mu.Unlock()
	a.logger.DebugContext(ctx, "Input released")
}

// CaptureInput takes input again after a successful rejoin.
func (a *Avatar) CaptureInput() {
	a.mu.Lock()
	a.input = true
	a.mu.Unlock()
}

// Reset re-arms the avatar for a new room.
func (a *Avatar) Reset() {
	a.mu.Lock()
	a.input = true
	a.disabled = false
	a.mu.Unlock()
}

// ShootBot damages a bot.
func (a *Avatar) ShootBot(ctx context.Context, id relay.ActorID, amount int) error {
	if !a.Active() {
		return ErrAvatarInactive
	}
	return a.bots.ReportDamage(ctx, roomservice.BotDamageArgs{BotID: id, Amount: amount, Attacker: a.name})
}

// Frag records a kill of another player.
func (a *Avatar) Frag(ctx context.Context, victim string) error {
	if !a.Active() {
		return ErrAvatarInactive
	}
	if err := a.kills.ReportKill(ctx, a.name); err != nil {
		return err
	}
	if err := a.kills.ReportDeath(ctx, victim); err != nil {
		a.logger.WarnContext(ctx, "Failed to report death", attr.String("victim", victim), attr.Error(err))
	}
	return nil
}

// brains tracks which bots still run their local behaviour.
type brains struct {
	mu       sync.Mutex
	disabled map[relay.ActorID]struct{}
}

func newBrains() *brains {
	return &brains{disabled: make(map[relay.ActorID]struct{})}
}

func (b *brains) DisableBot(_ context.Context, id relay.ActorID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disabled[id] = struct{}{}
}

func (b *brains) Disabled(id relay.ActorID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.disabled[id]
	return ok
}

func (b *brains) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disabled = make(map[relay.ActorID]struct{})
}

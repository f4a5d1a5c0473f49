package botservice

import (
	"context"
	"fmt"

	roomservice "github.com/Black-And-White-Club/arena-sync/app/modules/room/application"
	"github.com/Black-And-White-Club/arena-sync/internal/clock"
	"github.com/Black-And-White-Club/arena-sync/internal/observability/attr"
	"github.com/Black-And-White-Club/arena-sync/internal/relay"
)

// ReportDamage applies damage on the master or forwards it there.
func (c *Controller) ReportDamage(ctx context.Context, args roomservice.BotDamageArgs) error {
	if c.isMaster() {
		return c.TakeDamage(ctx, args)
	}
	return c.deps.Mailbox.Send(ctx, roomservice.MethodBotDamage, args)
}

// TakeDamage lowers a bot's health on the master. Damage to a dead bot is ignored; the lethal
// hit starts the death sequence on every peer.
func (c *Controller) TakeDamage(ctx context.Context, args roomservice.BotDamageArgs) error {
	if !c.isMaster() {
		return roomservice.ErrNotMaster
	}
	if args.Amount <= 0 {
		return nil
	}
	if a, ok := c.deps.Actors.Lookup(args.BotID); ok {
		c.Track(a)
	}

	c.mu.Lock()
	b, ok := c.bots[args.BotID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrUnknownBot, args.BotID)
	}
	if b.State != BotAlive {
		c.mu.Unlock()
		return nil
	}
	b.Health -= args.Amount
	if b.Health < 0 {
		b.Health = 0
	}
	lethal := b.Health == 0
	c.mu.Unlock()

	if !lethal {
		return nil
	}
	death := roomservice.BotDeathArgs{BotID: args.BotID, Killer: args.Attacker}
	if err := c.deps.Actors.Invoke(ctx, args.BotID, roomservice.MethodProcessBotDeath, death, relay.TargetOthers); err != nil {
		c.tel.Logger.WarnContext(ctx, "Failed to broadcast bot death", attr.Error(err))
	}
	c.die(ctx, death, true)
	return nil
}

// HandleDeath applies a death announced by the master. It reports whether this call made the
// transition; a bot dies once.
func (c *Controller) HandleDeath(ctx context.Context, args roomservice.BotDeathArgs) bool {
	return c.die(ctx, args, false)
}

func (c *Controller) die(ctx context.Context, args roomservice.BotDeathArgs, announce bool) bool {
	c.mu.Lock()
	b, ok := c.bots[args.BotID]
	if !ok {
		b = &Bot{ID: args.BotID, State: BotAlive}
		c.bots[args.BotID] = b
	}
	if b.State != BotAlive {
		c.mu.Unlock()
		return false
	}
	b.State = BotDead
	b.Health = 0
	b.Enabled = false
	name := b.Name
	room := c.room
	c.mu.Unlock()

	c.tel.Logger.InfoContext(ctx, "Bot died",
		attr.Int64("bot_id", int64(args.BotID)),
		attr.String("bot", name),
		attr.String("killer", args.Killer),
	)
	if c.deps.Disabler != nil {
		c.deps.Disabler.DisableBot(ctx, args.BotID)
	}
	if announce {
		if c.deps.Announcer != nil {
			_ = c.deps.Announcer.Broadcast(ctx, fmt.Sprintf("%s was eliminated by %s!", name, args.Killer))
		}
		if c.deps.Kills != nil && args.Killer != "" {
			if err := c.deps.Kills.ReportBotKill(ctx, args.Killer, args.BotID, name); err != nil {
				c.tel.Logger.WarnContext(ctx, "Failed to report bot kill", attr.Error(err))
			}
		}
	}

	c.sequences.Add(1)
	go func() {
		defer c.sequences.Done()
		c.deathSequence(room, args.BotID)
	}()
	return true
}

// deathSequence waits out the death delay, asks for a replacement, waits out the sink and then
// lets whichever peer is master at that point remove the actor.
func (c *Controller) deathSequence(ctx context.Context, id relay.ActorID) {
	if err := clock.Sleep(ctx, c.clk, c.cfg.DeathDelay); err != nil {
		return
	}
	c.setState(id, BotSinking, false)

	if c.isMaster() {
		if c.deps.GameActive() && !c.Ended() {
			if err := c.Reconcile(ctx); err != nil {
				c.tel.Logger.WarnContext(ctx, "Respawn reconcile failed", attr.Error(err))
			}
		}
	} else if c.deps.Mailbox != nil {
		if err := c.deps.Mailbox.Send(ctx, roomservice.MethodRequestBotRespawn, roomservice.BotArgs{BotID: id}); err != nil {
			c.tel.Logger.WarnContext(ctx, "Failed to request bot respawn", attr.Error(err))
		}
	}

	if err := clock.Sleep(ctx, c.clk, c.cfg.SinkTime); err != nil {
		return
	}
	if c.isMaster() {
		c.destroy(ctx, id)
		if err := c.WriteOccupancy(ctx); err != nil {
			c.tel.Logger.WarnContext(ctx, "Failed to write occupancy", attr.Error(err))
		}
		return
	}
	c.setState(id, BotSinking, true)
}

func (c *Controller) setState(id relay.ActorID, state BotState, removable bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.bots[id]; ok {
		b.State = state
		b.Removable = removable
	}
}

// HandleRespawnRequest is the master's side of a respawn request sent by another peer.
func (c *Controller) HandleRespawnRequest(ctx context.Context, args roomservice.BotArgs) error {
	if !c.isMaster() {
		return roomservice.ErrNotMaster
	}
	if b, ok := c.Bot(args.BotID); ok && b.State == BotAlive {
		c.tel.Logger.InfoContext(ctx, "Ignoring respawn request for a live bot", attr.Int64("bot_id", int64(args.BotID)))
		return nil
	}
	if !c.deps.GameActive() || c.Ended() {
		return nil
	}
	return c.Reconcile(ctx)
}

// Wait blocks until running death sequences finish.
func (c *Controller) Wait() {
	c.sequences.Wait()
}

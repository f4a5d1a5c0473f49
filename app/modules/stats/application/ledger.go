package statsservice

import (
	"context"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	roomservice "github.com/Black-And-White-Club/arena-sync/app/modules/room/application"
	"github.com/Black-And-White-Club/arena-sync/internal/observability"
	"github.com/Black-And-White-Club/arena-sync/internal/observability/attr"
	"github.com/Black-And-White-Club/arena-sync/internal/relay"
)

const serviceName = "stats"

// Relay is the slice of the relay the ledger reads and broadcasts through.
type Relay interface {
	relay.RoomView
	relay.Messenger
}

// PropertyCommitter commits batches to the room property bag.
type PropertyCommitter interface {
	Commit(ctx context.Context, batch *roomservice.Batch) error
	Snapshot() roomservice.Snapshot
}

// MasterRequester delivers directed requests to the master client.
type MasterRequester interface {
	Send(ctx context.Context, method string, args any) error
}

// Entry is one player's ledger line.
type Entry struct {
	Score      int `json:"score"`
	Kills      int `json:"kills"`
	KillStreak int `json:"kill_streak"`
	BotKills   int `json:"bot_kills"`
}

// KillKey identifies one bot kill. A key is scored at most once.
type KillKey struct {
	VictimID relay.ActorID
	Killer   string
}

// Ledger owns per-player scores, kills and kill streaks for the current room.
type Ledger struct {
	relay   Relay
	store   PropertyCommitter
	mailbox MasterRequester
	feed    *Feed
	tel     observability.Telemetry
	metrics observability.GameMetrics

	mu        sync.Mutex
	entries   map[string]*Entry
	processed map[KillKey]struct{}
}

// NewLedger creates an empty ledger.
func NewLedger(r Relay, store PropertyCommitter, mailbox MasterRequester, feed *Feed, tel observability.Telemetry, metrics observability.GameMetrics) *Ledger {
	if metrics == nil {
		metrics = observability.NoOpMetrics{}
	}
	return &Ledger{
		relay:     r,
		store:     store,
		mailbox:   mailbox,
		feed:      feed,
		tel:       tel.WithDefaults(),
		metrics:   metrics,
		entries:   make(map[string]*Entry),
		processed: make(map[KillKey]struct{}),
	}
}

func (l *Ledger) entryLocked(name string) *Entry {
	e, ok := l.entries[name]
	if !ok {
		e = &Entry{}
		l.entries[name] = e
	}
	return e
}

// RecordKill applies a player kill by killer.
func (l *Ledger) RecordKill(ctx context.Context, killer string) (Entry, error) {
	return observability.WithTelemetry(ctx, l.tel, serviceName, "record_kill", func(ctx context.Context) (Entry, error) {
		if killer == "" {
			return Entry{}, ErrEmptyName
		}

		l.mu.Lock()
		e := l.entryLocked(killer)
		e.KillStreak++
		e.Score += PlayerKillScore(e.KillStreak)
		e.Kills++
		out := *e
		l.mu.Unlock()

		l.metrics.RecordKill("player")
		if msg := StreakMessage(out.KillStreak); msg != "" {
			l.feed.Add(streakLine(killer, msg))
		}
		return out, l.publish(ctx, killer, out)
	}, attribute.String("killer", killer))
}

// RecordBotKill applies a bot kill unless the (bot, killer) pair was already scored.
// It reports whether the kill was applied.
func (l *Ledger) RecordBotKill(ctx context.Context, killer string, botID relay.ActorID, botName string) (Entry, bool, error) {
	if killer == "" {
		return Entry{}, false, ErrEmptyName
	}
	key := KillKey{VictimID: botID, Killer: killer}

	l.mu.Lock()
	if _, seen := l.processed[key]; seen {
		out := *l.entryLocked(killer)
		l.mu.Unlock()
		l.metrics.RecordDuplicateKill()
		l.tel.Logger.InfoContext(ctx, "Bot kill already processed",
			attr.String("killer", killer),
			attr.Int64("bot_id", int64(botID)),
		)
		return out, false, nil
	}
	l.processed[key] = struct{}{}
	e := l.entryLocked(killer)
	e.KillStreak++
	points := BotKillScore(e.KillStreak)
	e.Score += points
	e.Kills++
	e.BotKills++
	out := *e
	l.mu.Unlock()

	l.metrics.RecordKill("bot")
	l.feed.Add(botKillLine(killer, botName, points))
	if msg := StreakMessage(out.KillStreak); msg != "" {
		l.feed.Add(streakLine(killer, msg))
	}

	_, err := observability.WithTelemetry(ctx, l.tel, serviceName, "record_bot_kill", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, l.publish(ctx, killer, out)
	}, attribute.String("killer", killer), attribute.Int64("bot_id", int64(botID)))
	return out, true, err
}

// publish makes a master-side change authoritative. Non-master application stays local until the
// master's update overwrites it.
func (l *Ledger) publish(ctx context.Context, name string, e Entry) error {
	if !l.relay.InRoom() || !l.relay.IsMaster() {
		return nil
	}
	if err := l.commitAll(ctx); err != nil {
		return err
	}
	return l.relay.RPC(ctx, relay.TargetOthers, 0, roomservice.MethodUpdatePlayerStats, roomservice.StatsArgs{
		Name:  name,
		Score: e.Score,
		Kills: e.Kills,
	})
}

func (l *Ledger) commitAll(ctx context.Context) error {
	return l.store.Commit(ctx, roomservice.NewBatch().PlayerStats(l.PlayerStats()))
}

// Sync overwrites the cached totals of name. When name is the local player the master commits the
// bag; a non-master forwards the update to the master unless it came from the master.
func (l *Ledger) Sync(ctx context.Context, name string, score, kills int, origin int) error {
	if name == "" {
		return ErrEmptyName
	}
	if score < 0 || kills < 0 {
		return ErrNegativeStats
	}

	l.mu.Lock()
	e := l.entryLocked(name)
	e.Score = score
	e.Kills = kills
	l.mu.Unlock()

	if !l.relay.InRoom() || name != l.relay.LocalPlayer().Name {
		return nil
	}
	if l.relay.IsMaster() {
		return l.commitAll(ctx)
	}
	if master, ok := l.relay.Master(); ok && master.ActorNumber == origin {
		return nil
	}
	return l.mailbox.Send(ctx, roomservice.MethodRequestStatsUpdate, roomservice.StatsArgs{Name: name, Score: score, Kills: kills})
}

// ApplyRequest handles a stats update forwarded to the master by another peer.
func (l *Ledger) ApplyRequest(ctx context.Context, req roomservice.StatsArgs) error {
	return observability.Run(ctx, l.tel, serviceName, "apply_request", func(ctx context.Context) error {
		if !l.relay.IsMaster() {
			return roomservice.ErrNotMaster
		}
		if req.Name == "" {
			return ErrEmptyName
		}
		if req.Score < 0 || req.Kills < 0 {
			return ErrNegativeStats
		}
		l.mu.Lock()
		e := l.entryLocked(req.Name)
		e.Score = req.Score
		e.Kills = req.Kills
		l.mu.Unlock()
		return l.commitAll(ctx)
	}, attribute.String("player", req.Name))
}

// ResetStreak zeroes a player's kill streak.
func (l *Ledger) ResetStreak(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[name]; ok {
		e.KillStreak = 0
	}
}

// BroadcastAll commits every known entry and re-sends each one to the other peers. Master only.
func (l *Ledger) BroadcastAll(ctx context.Context) error {
	return observability.Run(ctx, l.tel, serviceName, "broadcast_all", func(ctx context.Context) error {
		if !l.relay.IsMaster() {
			return roomservice.ErrNotMaster
		}
		if err := l.commitAll(ctx); err != nil {
			return err
		}
		for _, name := range l.Names() {
			e, _ := l.Entry(name)
			if err := l.relay.RPC(ctx, relay.TargetOthers, 0, roomservice.MethodUpdatePlayerStats, roomservice.StatsArgs{
				Name:  name,
				Score: e.Score,
				Kills: e.Kills,
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadFromProperties adopts the stats stored in the room bag and makes sure the local player has an entry.
func (l *Ledger) LoadFromProperties(snap roomservice.Snapshot, local string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for name, ps := range snap.PlayerStats {
		e := l.entryLocked(name)
		e.Score = ps.Score
		e.Kills = ps.Kills
	}
	if local != "" {
		l.entryLocked(local)
	}
}

// Backup returns a copy of every entry, streaks included.
func (l *Ledger) Backup() map[string]Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]Entry, len(l.entries))
	for name, e := range l.entries {
		out[name] = *e
	}
	return out
}

// Restore merges a backup into the ledger. Players the ledger does not know are taken from the
// backup; for known players the higher totals win and the live kill streak is kept, so kills applied
// after the backup was taken survive.
func (l *Ledger) Restore(backup map[string]Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for name, e := range backup {
		cur, ok := l.entries[name]
		if !ok {
			cp := e
			l.entries[name] = &cp
			continue
		}
		cur.Score = max(cur.Score, e.Score)
		cur.Kills = max(cur.Kills, e.Kills)
		cur.BotKills = max(cur.BotKills, e.BotKills)
	}
}

// Entry returns one player's line.
func (l *Ledger) Entry(name string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[name]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Names returns the known player names sorted.
func (l *Ledger) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, 0, len(l.entries))
	for name := range l.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PlayerStats returns the property-bag form of the ledger.
func (l *Ledger) PlayerStats() map[string]roomservice.PlayerStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]roomservice.PlayerStats, len(l.entries))
	for name, e := range l.entries {
		out[name] = roomservice.PlayerStats{Score: e.Score, Kills: e.Kills}
	}
	return out
}

// Reset clears entries and processed kills, used when a new game starts or the peer leaves its room.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make(map[string]*Entry)
	l.processed = make(map[KillKey]struct{})
}

// ReportKill announces a player kill to every peer, the sender included.
func (l *Ledger) ReportKill(ctx context.Context, killer string) error {
	return l.relay.RPC(ctx, relay.TargetAll, 0, roomservice.MethodAddKill, roomservice.KillArgs{Killer: killer})
}

// ReportBotKill announces a bot kill to every peer, the sender included.
func (l *Ledger) ReportBotKill(ctx context.Context, killer string, botID relay.ActorID, botName string) error {
	return l.relay.RPC(ctx, relay.TargetAll, 0, roomservice.MethodAddBotKill, roomservice.BotKillArgs{
		Killer:  killer,
		BotID:   botID,
		BotName: botName,
	})
}

// ReportDeath announces that name died so every peer resets the streak.
func (l *Ledger) ReportDeath(ctx context.Context, name string) error {
	return l.relay.RPC(ctx, relay.TargetAll, 0, roomservice.MethodResetKillStreak, roomservice.PlayerArgs{Name: name})
}

// PublishLocal pushes the local player's totals to the master, committing directly when local is master.
func (l *Ledger) PublishLocal(ctx context.Context) error {
	name := l.relay.LocalPlayer().Name
	e, ok := l.Entry(name)
	if !ok || !l.relay.InRoom() {
		return nil
	}
	if l.relay.IsMaster() {
		return l.publish(ctx, name, e)
	}
	return l.mailbox.Send(ctx, roomservice.MethodRequestStatsUpdate, roomservice.StatsArgs{Name: name, Score: e.Score, Kills: e.Kills})
}

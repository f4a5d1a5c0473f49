package botservice

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"go.opentelemetry.io/otel/attribute"

	roomservice "github.com/Black-And-White-Club/arena-sync/app/modules/room/application"
	"github.com/Black-And-White-Club/arena-sync/internal/clock"
	"github.com/Black-And-White-Club/arena-sync/internal/observability"
	"github.com/Black-And-White-Club/arena-sync/internal/observability/attr"
	"github.com/Black-And-White-Club/arena-sync/internal/relay"
)

const serviceName = "bots"

// Relay is the slice of the relay the controller needs.
type Relay interface {
	relay.RoomView
	relay.Messenger
}

// ActorSpawner creates and removes replicated actors.
type ActorSpawner interface {
	Spawn(ctx context.Context, prefab string, pos relay.Vector3, rot relay.Quaternion, data any, roomObject bool) (relay.Actor, error)
	Destroy(ctx context.Context, id relay.ActorID) error
	Adopt(ctx context.Context, id relay.ActorID) error
	Transfer(ctx context.Context, id relay.ActorID, newOwner int) error
	Invoke(ctx context.Context, id relay.ActorID, method string, args any, target relay.Target) error
	ByPrefab(prefab string) []relay.Actor
	Orphans(prefab string) []relay.Actor
	Lookup(id relay.ActorID) (relay.Actor, bool)
	LocalActorNumber() int
}

// PropertyCommitter commits batches to the room property bag.
type PropertyCommitter interface {
	Commit(ctx context.Context, batch *roomservice.Batch) error
}

// MasterRequester delivers directed requests to the master client.
type MasterRequester interface {
	Send(ctx context.Context, method string, args any) error
}

// Announcer posts a line to every peer's kill feed.
type Announcer interface {
	Broadcast(ctx context.Context, text string) error
}

// KillReporter announces a scored bot kill.
type KillReporter interface {
	ReportBotKill(ctx context.Context, killer string, botID relay.ActorID, botName string) error
}

// BotDisabler stops a bot's local behaviour.
type BotDisabler interface {
	DisableBot(ctx context.Context, id relay.ActorID)
}

// Deps are the collaborators of a Controller. Disabler, Nav and SpawnPoints are optional.
type Deps struct {
	Relay       Relay
	Actors      ActorSpawner
	Store       PropertyCommitter
	Mailbox     MasterRequester
	Announcer   Announcer
	Kills       KillReporter
	Disabler    BotDisabler
	Nav         NavSurface
	SpawnPoints []relay.Vector3
	// GameActive reports whether the countdown is running.
	GameActive func() bool
	// Suspended reports whether maintenance must hold off, e.g. during an authority hand-off.
	Suspended func() bool
}

// BotState is the lifecycle phase of a bot.
type BotState string

const (
	BotAlive   BotState = "Alive"
	BotDead    BotState = "Dead"
	BotSinking BotState = "Sinking"
)

// Bot is the local view of one bot actor.
type Bot struct {
	ID      relay.ActorID
	Name    string
	Health  int
	State   BotState
	Enabled bool
	// Removable is set once the sink delay elapsed on a peer that was not master at the time.
	Removable bool
}

type botData struct {
	Name   string `json:"name"`
	Health int    `json:"health"`
}

// Controller keeps the bot population at TargetTotal minus the human count.
type Controller struct {
	deps    Deps
	cfg     Config
	clk     clock.Clock
	tel     observability.Telemetry
	metrics observability.GameMetrics
	faker   *gofakeit.Faker
	names   *NameGenerator

	passMu sync.Mutex

	mu    sync.Mutex
	bots  map[relay.ActorID]*Bot
	ended bool
	// room bounds death sequences; RunMaintenance rebinds it for every room.
	room context.Context

	sequences sync.WaitGroup
}

// NewController creates a controller.
func NewController(deps Deps, cfg Config, clk clock.Clock, tel observability.Telemetry, metrics observability.GameMetrics) *Controller {
	if clk == nil {
		clk = clock.Real{}
	}
	if metrics == nil {
		metrics = observability.NoOpMetrics{}
	}
	if deps.Nav == nil {
		deps.Nav = DefaultSurface
	}
	if len(deps.SpawnPoints) == 0 {
		deps.SpawnPoints = DefaultSpawnPoints
	}
	if deps.GameActive == nil {
		deps.GameActive = func() bool { return true }
	}
	if deps.Suspended == nil {
		deps.Suspended = func() bool { return false }
	}
	faker := gofakeit.New(cfg.Seed)
	return &Controller{
		deps:    deps,
		cfg:     cfg,
		clk:     clk,
		tel:     tel.WithDefaults(),
		metrics: metrics,
		faker:   faker,
		names:   NewNameGenerator(faker),
		bots:    make(map[relay.ActorID]*Bot),
		room:    context.Background(),
	}
}

// Required is the number of alive bots the room should hold.
func (c *Controller) Required() int {
	n := c.cfg.TargetTotal - len(c.deps.Relay.Players())
	if n < 0 {
		return 0
	}
	return n
}

func (c *Controller) isMaster() bool {
	return c.deps.Relay.InRoom() && c.deps.Relay.IsMaster()
}

// aliveActors returns bot actors not known to be dead, oldest first.
func (c *Controller) aliveActors() []relay.Actor {
	actors := c.deps.Actors.ByPrefab(c.cfg.Prefab)
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]relay.Actor, 0, len(actors))
	for _, a := range actors {
		if b, ok := c.bots[a.ID]; ok && b.State != BotAlive {
			continue
		}
		out = append(out, a)
	}
	return out
}

// removableActors returns dead bots whose sink delay has elapsed.
func (c *Controller) removableActors() []relay.Actor {
	actors := c.deps.Actors.ByPrefab(c.cfg.Prefab)
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []relay.Actor
	for _, a := range actors {
		if b, ok := c.bots[a.ID]; ok && b.Removable {
			out = append(out, a)
		}
	}
	return out
}

// rosterAlive counts tracked bots that are alive.
func (c *Controller) rosterAlive() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, b := range c.bots {
		if b.State == BotAlive {
			n++
		}
	}
	return n
}

// AliveCount returns the number of alive bots.
func (c *Controller) AliveCount() int { return len(c.aliveActors()) }

// Reconcile brings the alive bot count to Required. Excess bots are removed newest first; the
// deficit is spawned one at a time. Master only.
func (c *Controller) Reconcile(ctx context.Context) error {
	return observability.Run(ctx, c.tel, serviceName, "reconcile", func(ctx context.Context) error {
		if !c.isMaster() {
			return roomservice.ErrNotMaster
		}
		c.passMu.Lock()
		defer c.passMu.Unlock()

		for _, a := range c.removableActors() {
			c.destroy(ctx, a.ID)
		}

		alive := c.aliveActors()
		required := c.Required()
		if excess := len(alive) - required; excess > 0 {
			c.cull(ctx, alive, excess)
		}

		for i := 0; i < required-len(alive); i++ {
			if i > 0 {
				if err := clock.Sleep(ctx, c.clk, c.cfg.SpawnInterval); err != nil {
					return err
				}
			}
			if !c.isMaster() {
				return roomservice.ErrNotMaster
			}
			if _, err := c.Spawn(ctx); err != nil {
				c.tel.Logger.WarnContext(ctx, "Bot spawn skipped", attr.Error(err))
				break
			}
		}
		return c.WriteOccupancy(ctx)
	})
}

// cull destroys the n newest bots of alive.
func (c *Controller) cull(ctx context.Context, alive []relay.Actor, n int) {
	sorted := append([]relay.Actor(nil), alive...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Sequence > sorted[j].Sequence })
	for i := 0; i < n && i < len(sorted); i++ {
		c.tel.Logger.InfoContext(ctx, "Removing excess bot", attr.Int64("bot_id", int64(sorted[i].ID)))
		c.destroy(ctx, sorted[i].ID)
	}
}

func (c *Controller) destroy(ctx context.Context, id relay.ActorID) {
	if err := c.deps.Actors.Destroy(ctx, id); err != nil {
		c.tel.Logger.WarnContext(ctx, "Failed to destroy bot", attr.Int64("bot_id", int64(id)), attr.Error(err))
	}
	c.Forget(id)
}

// Spawn creates one bot owned by the master. It refuses when the population is already full.
func (c *Controller) Spawn(ctx context.Context) (relay.Actor, error) {
	return observability.WithTelemetry(ctx, c.tel, serviceName, "spawn_bot", func(ctx context.Context) (relay.Actor, error) {
		if !c.isMaster() {
			return relay.Actor{}, roomservice.ErrNotMaster
		}
		alive := c.aliveActors()
		if len(alive) >= c.Required() {
			return relay.Actor{}, ErrPopulationFull
		}
		pos, err := c.pickSpawnPoint(alive)
		if err != nil {
			return relay.Actor{}, err
		}

		name := c.names.Next()
		actor, err := c.deps.Actors.Spawn(ctx, c.cfg.Prefab, pos, relay.Identity, botData{Name: name, Health: c.cfg.InitialHealth}, true)
		if err != nil {
			return relay.Actor{}, err
		}

		init := roomservice.InitializeBotArgs{
			Name:              name,
			Scale:             c.cfg.Scale,
			Speed:             c.faker.Float64Range(c.cfg.SpeedMin, c.cfg.SpeedMax),
			AvoidancePriority: c.faker.IntRange(c.cfg.AvoidanceMin, c.cfg.AvoidanceMax),
			InitialHealth:     c.cfg.InitialHealth,
		}
		c.HandleInitialize(actor.ID, init)
		if err := c.deps.Actors.Invoke(ctx, actor.ID, roomservice.MethodInitializeBot, init, relay.TargetOthers); err != nil {
			c.tel.Logger.WarnContext(ctx, "Failed to broadcast bot initialization", attr.Error(err))
		}
		if c.deps.Announcer != nil {
			_ = c.deps.Announcer.Broadcast(ctx, name+" has entered the arena!")
		}
		return actor, nil
	}, attribute.String("room", c.deps.Relay.RoomName()))
}

// pickSpawnPoint draws pool points until one snaps onto the surface clear of every alive bot.
func (c *Controller) pickSpawnPoint(alive []relay.Actor) (relay.Vector3, error) {
	tries := c.cfg.MaxSpawnTries
	if tries <= 0 {
		tries = 1
	}
	for i := 0; i < tries; i++ {
		candidate := c.deps.SpawnPoints[c.faker.IntN(len(c.deps.SpawnPoints))]
		pos, ok := c.deps.Nav.Snap(candidate, c.cfg.SnapRadius)
		if !ok {
			continue
		}
		clear := true
		for _, a := range alive {
			if a.Position.Dist(pos) < c.cfg.MinSeparation {
				clear = false
				break
			}
		}
		if clear {
			return pos, nil
		}
	}
	return relay.Vector3{}, ErrNoSpawnPoint
}

// WriteOccupancy commits the human, bot and total headcounts. Master only. Bots are counted from
// the local roster, which drops a culled bot before the relay confirms its removal.
func (c *Controller) WriteOccupancy(ctx context.Context) error {
	humans := len(c.deps.Relay.Players())
	bots := c.rosterAlive()
	c.metrics.SetBotPopulation(c.deps.Relay.RoomName(), bots, c.Required())
	return c.deps.Store.Commit(ctx, roomservice.NewBatch().Occupancy(humans, bots))
}

// OnPlayerJoined makes room for a new human by removing one bot while a game is running.
func (c *Controller) OnPlayerJoined(ctx context.Context) error {
	if !c.isMaster() {
		return nil
	}
	c.passMu.Lock()
	alive := c.aliveActors()
	if c.deps.GameActive() && len(alive) > 0 && len(alive) > c.Required() {
		c.cull(ctx, alive, 1)
	}
	c.passMu.Unlock()
	return c.WriteOccupancy(ctx)
}

// OnPlayerLeft refills the population after a human leaves.
func (c *Controller) OnPlayerLeft(ctx context.Context) error {
	if !c.isMaster() {
		return nil
	}
	return c.Reconcile(ctx)
}

// AdoptOrphans takes ownership of every bot not owned by the local peer and returns how many
// were adopted. Owner-less bots are requested first; bots still held by another peer are then
// transferred to the local peer.
func (c *Controller) AdoptOrphans(ctx context.Context) (int, error) {
	if !c.isMaster() {
		return 0, roomservice.ErrNotMaster
	}
	self := c.deps.Actors.LocalActorNumber()
	adopted := 0
	seen := make(map[relay.ActorID]bool)
	for _, a := range c.deps.Actors.Orphans(c.cfg.Prefab) {
		c.Track(a)
		seen[a.ID] = true
		if err := c.deps.Actors.Adopt(ctx, a.ID); err != nil {
			c.tel.Logger.WarnContext(ctx, "Failed to adopt bot", attr.Int64("bot_id", int64(a.ID)), attr.Error(err))
			continue
		}
		adopted++
	}
	for _, a := range c.deps.Actors.ByPrefab(c.cfg.Prefab) {
		if seen[a.ID] {
			continue
		}
		c.Track(a)
		if a.Owner == self {
			continue
		}
		if err := c.deps.Actors.Transfer(ctx, a.ID, self); err != nil {
			c.tel.Logger.WarnContext(ctx, "Failed to transfer bot", attr.Int64("bot_id", int64(a.ID)), attr.Int("owner", a.Owner), attr.Error(err))
			continue
		}
		adopted++
	}
	if adopted > 0 {
		c.tel.Logger.InfoContext(ctx, "Adopted orphaned bots", attr.Int("count", adopted))
	}
	return adopted, nil
}

// HandOff adopts existing bots and then reconciles, so nothing is spawned before orphans are counted.
func (c *Controller) HandOff(ctx context.Context) error {
	if _, err := c.AdoptOrphans(ctx); err != nil {
		return err
	}
	return c.Reconcile(ctx)
}

// RunMaintenance reconciles every MaintainInterval while the local peer is master and the game
// is running, and removes excess bots every OverCapInterval.
func (c *Controller) RunMaintenance(ctx context.Context) error {
	c.bindRoom(ctx)
	if err := clock.Sleep(ctx, c.clk, c.cfg.InitialSpawnDelay); err != nil {
		return err
	}
	var sinceOverCap time.Duration
	for {
		if c.isMaster() && !c.deps.Suspended() && !c.Ended() {
			if c.deps.GameActive() {
				if err := c.Reconcile(ctx); err != nil && ctx.Err() == nil {
					c.tel.Logger.WarnContext(ctx, "Bot maintenance failed", attr.Error(err))
				}
			}
			if sinceOverCap >= c.cfg.OverCapInterval {
				sinceOverCap = 0
				c.enforceCap(ctx)
			}
		}
		if err := clock.Sleep(ctx, c.clk, c.cfg.MaintainInterval); err != nil {
			return err
		}
		sinceOverCap += c.cfg.MaintainInterval
	}
}

func (c *Controller) enforceCap(ctx context.Context) {
	c.passMu.Lock()
	defer c.passMu.Unlock()
	alive := c.aliveActors()
	if excess := len(alive) - c.Required(); excess > 0 {
		c.tel.Logger.WarnContext(ctx, "Bot population over cap", attr.Int("excess", excess))
		c.cull(ctx, alive, excess)
		if err := c.WriteOccupancy(ctx); err != nil {
			c.tel.Logger.WarnContext(ctx, "Failed to write occupancy", attr.Error(err))
		}
	}
}

// bindRoom ties later death sequences to ctx so they stop when the room closes.
func (c *Controller) bindRoom(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.room = ctx
}

// Track records an actor seen through the relay.
func (c *Controller) Track(a relay.Actor) {
	if a.Prefab != c.cfg.Prefab {
		return
	}
	var data botData
	if len(a.Data) > 0 {
		_ = json.Unmarshal(a.Data, &data)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.bots[a.ID]; ok {
		return
	}
	health := data.Health
	if health <= 0 {
		health = c.cfg.InitialHealth
	}
	c.bots[a.ID] = &Bot{ID: a.ID, Name: data.Name, Health: health, State: BotAlive, Enabled: !c.ended}
}

// HandleInitialize applies a bot's initialization on this peer.
func (c *Controller) HandleInitialize(id relay.ActorID, args roomservice.InitializeBotArgs) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.bots[id]
	if !ok {
		b = &Bot{ID: id, Health: args.InitialHealth, State: BotAlive, Enabled: !c.ended}
		c.bots[id] = b
	}
	b.Name = args.Name
}

// Forget drops local state for a destroyed actor.
func (c *Controller) Forget(id relay.ActorID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.bots, id)
}

// Bot returns the local view of a bot.
func (c *Controller) Bot(id relay.ActorID) (Bot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.bots[id]
	if !ok {
		return Bot{}, false
	}
	return *b, true
}

// Positions returns the last-known position of every alive bot.
func (c *Controller) Positions() map[relay.ActorID]relay.Vector3 {
	out := make(map[relay.ActorID]relay.Vector3)
	for _, a := range c.aliveActors() {
		out[a.ID] = a.Position
	}
	return out
}

// Ended reports whether the game-end shutdown ran.
func (c *Controller) Ended() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ended
}

// DisableOnGameEnd stops every bot and halts maintenance.
func (c *Controller) DisableOnGameEnd(ctx context.Context) {
	c.mu.Lock()
	c.ended = true
	ids := make([]relay.ActorID, 0, len(c.bots))
	for id, b := range c.bots {
		b.Enabled = false
		ids = append(ids, id)
	}
	c.mu.Unlock()

	if c.deps.Disabler != nil {
		for _, id := range ids {
			c.deps.Disabler.DisableBot(ctx, id)
		}
	}
}

// Reset clears local bot state, used when the peer leaves its room.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bots = make(map[relay.ActorID]*Bot)
	c.ended = false
}

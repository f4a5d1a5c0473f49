package botservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	roomservice "github.com/Black-And-White-Club/arena-sync/app/modules/room/application"
	"github.com/Black-And-White-Club/arena-sync/internal/clock"
	"github.com/Black-And-White-Club/arena-sync/internal/observability"
	"github.com/Black-And-White-Club/arena-sync/internal/relay"
	"github.com/Black-And-White-Club/arena-sync/internal/relay/relaytest"
)

type controllerFixture struct {
	fake      *relaytest.FakeClient
	store     *roomservice.PropertyStore
	announcer *FakeAnnouncer
	kills     *FakeKillReporter
	disabler  *FakeBotDisabler
	clk       *clock.FakeClock
	ctrl      *Controller
}

// gridPoints returns a spawn pool wide enough that random draws never run out of space.
func gridPoints() []relay.Vector3 {
	var pts []relay.Vector3
	for x := 0; x < 10; x++ {
		for z := 0; z < 10; z++ {
			pts = append(pts, relay.Vector3{X: float64(x*3 - 15), Z: float64(z*3 - 15)})
		}
	}
	return pts
}

func humans(n int) []relay.Player {
	var out []relay.Player
	for i := 2; i <= n; i++ {
		out = append(out, relay.Player{ActorNumber: i, Name: fmt.Sprintf("player-%d", i)})
	}
	return out
}

func newControllerFixture(t *testing.T, humanCount int, master int) *controllerFixture {
	t.Helper()
	tel := observability.NopTelemetry()
	fake := relaytest.NewFakeClient("player-1")
	fake.EnterRoom("arena", 1, master, humans(humanCount)...)

	f := &controllerFixture{
		fake:      fake,
		store:     roomservice.NewPropertyStore(fake, tel),
		announcer: &FakeAnnouncer{},
		kills:     &FakeKillReporter{},
		disabler:  &FakeBotDisabler{},
		clk:       clock.NewFakeClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)),
	}
	cfg := DefaultConfig()
	cfg.Seed = 7
	f.ctrl = NewController(Deps{
		Relay:       fake,
		Actors:      roomservice.NewActorRegistry(fake, tel),
		Store:       f.store,
		Mailbox:     roomservice.NewMasterMailbox(fake, tel.Logger),
		Announcer:   f.announcer,
		Kills:       f.kills,
		Disabler:    f.disabler,
		SpawnPoints: gridPoints(),
	}, cfg, f.clk, tel, nil)
	return f
}

func TestController_ReconcileMeetsTarget(t *testing.T) {
	for h := 1; h <= 7; h++ {
		t.Run(fmt.Sprintf("%d humans", h), func(t *testing.T) {
			f := newControllerFixture(t, h, 1)
			if err := f.ctrl.Reconcile(context.Background()); err != nil {
				t.Fatalf("Reconcile() error: %v", err)
			}
			want := 6 - h
			if want < 0 {
				want = 0
			}
			if got := f.ctrl.AliveCount(); got != want {
				t.Errorf("alive bots = %d, want %d", got, want)
			}
			snap := f.store.Snapshot()
			if snap.NPCCount != want || snap.RealPlayerCount != h || snap.TotalPlayers != h+want {
				t.Errorf("occupancy = %d/%d/%d", snap.RealPlayerCount, snap.NPCCount, snap.TotalPlayers)
			}
		})
	}
}

func TestController_ReconcileCullsNewestFirst(t *testing.T) {
	f := newControllerFixture(t, 2, 1)
	for i := 1; i <= 6; i++ {
		f.fake.PutActor(relay.Actor{ID: relay.ActorID(100 + i), Prefab: "NPC", Owner: 1, RoomObject: true, Sequence: int64(i)})
	}

	if err := f.ctrl.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile() error: %v", err)
	}
	if f.ctrl.AliveCount() != 4 {
		t.Fatalf("alive = %d, want 4", f.ctrl.AliveCount())
	}
	for _, gone := range []relay.ActorID{105, 106} {
		if _, ok := f.fake.Actor(gone); ok {
			t.Errorf("bot %d should have been culled", gone)
		}
	}
	if _, ok := f.fake.Actor(101); !ok {
		t.Error("oldest bot was culled")
	}
}

func TestController_SpawnSafetyChecks(t *testing.T) {
	t.Run("full population", func(t *testing.T) {
		f := newControllerFixture(t, 5, 1)
		f.fake.PutActor(relay.Actor{ID: 9, Prefab: "NPC", Owner: 1})
		if _, err := f.ctrl.Spawn(context.Background()); !errors.Is(err, ErrPopulationFull) {
			t.Errorf("Spawn() error = %v, want ErrPopulationFull", err)
		}
	})
	t.Run("every point blocked", func(t *testing.T) {
		f := newControllerFixture(t, 1, 1)
		f.ctrl.deps.SpawnPoints = []relay.Vector3{{X: 0, Z: 0}}
		f.fake.PutActor(relay.Actor{ID: 9, Prefab: "NPC", Owner: 1, Position: relay.Vector3{X: 1}})
		if _, err := f.ctrl.Spawn(context.Background()); !errors.Is(err, ErrNoSpawnPoint) {
			t.Errorf("Spawn() error = %v, want ErrNoSpawnPoint", err)
		}
	})
	t.Run("not master", func(t *testing.T) {
		f := newControllerFixture(t, 2, 2)
		if _, err := f.ctrl.Spawn(context.Background()); !errors.Is(err, roomservice.ErrNotMaster) {
			t.Errorf("Spawn() error = %v, want ErrNotMaster", err)
		}
	})
}

func TestController_SpawnInitializesBot(t *testing.T) {
	f := newControllerFixture(t, 2, 1)
	actor, err := f.ctrl.Spawn(context.Background())
	if err != nil {
		t.Fatalf("Spawn() error: %v", err)
	}
	bot, ok := f.ctrl.Bot(actor.ID)
	if !ok || bot.Health != 100 || bot.State != BotAlive {
		t.Fatalf("bot = %+v ok=%v", bot, ok)
	}
	inits := f.fake.Sent(roomservice.MethodInitializeBot)
	if len(inits) != 1 || inits[0].ActorID != actor.ID {
		t.Fatalf("InitializeBot = %+v", inits)
	}
	var args roomservice.InitializeBotArgs
	if err := inits[0].Decode(&args); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if args.Name != bot.Name || args.Scale != 1.5 || args.Speed < 3 || args.Speed > 4 || args.AvoidancePriority < 20 || args.AvoidancePriority > 80 {
		t.Errorf("init args = %+v", args)
	}
	if lines := f.announcer.Lines(); len(lines) != 1 || lines[0] != bot.Name+" has entered the arena!" {
		t.Errorf("announcements = %q", lines)
	}
}

func TestController_PlayerJoinRemovesOneBot(t *testing.T) {
	ctx := context.Background()
	f := newControllerFixture(t, 2, 1)
	if err := f.ctrl.Reconcile(ctx); err != nil {
		t.Fatalf("Reconcile() error: %v", err)
	}
	if f.ctrl.AliveCount() != 4 {
		t.Fatalf("alive = %d, want 4", f.ctrl.AliveCount())
	}

	f.fake.AddPlayer(relay.Player{ActorNumber: 3, Name: "player-3"})
	if err := f.ctrl.OnPlayerJoined(ctx); err != nil {
		t.Fatalf("OnPlayerJoined() error: %v", err)
	}
	if f.ctrl.AliveCount() != 3 {
		t.Errorf("alive = %d, want 3", f.ctrl.AliveCount())
	}
	snap := f.store.Snapshot()
	if snap.RealPlayerCount != 3 || snap.NPCCount != 3 || snap.TotalPlayers != 6 {
		t.Errorf("occupancy = %d/%d/%d, want 3/3/6", snap.RealPlayerCount, snap.NPCCount, snap.TotalPlayers)
	}

	f.fake.RemovePlayer(3)
	if err := f.ctrl.OnPlayerLeft(ctx); err != nil {
		t.Fatalf("OnPlayerLeft() error: %v", err)
	}
	if f.ctrl.AliveCount() != 4 {
		t.Errorf("alive after leave = %d, want 4", f.ctrl.AliveCount())
	}
}

func TestController_HandOffAdoptsBeforeSpawning(t *testing.T) {
	f := newControllerFixture(t, 2, 1)
	for i := 1; i <= 4; i++ {
		f.fake.PutActor(relay.Actor{ID: relay.ActorID(i), Prefab: "NPC", Owner: 0, RoomObject: true, Position: relay.Vector3{X: float64(i * 5)}})
	}

	if err := f.ctrl.HandOff(context.Background()); err != nil {
		t.Fatalf("HandOff() error: %v", err)
	}
	if f.fake.CountOf("Instantiate:NPC") != 0 {
		t.Error("spawned bots although orphans covered the requirement")
	}
	for _, a := range f.fake.Actors() {
		if a.Owner != 1 {
			t.Errorf("bot %d owner = %d, want 1", a.ID, a.Owner)
		}
	}

	trace := f.fake.Trace()
	lastAdopt, firstSpawn := -1, len(trace)
	for i, step := range trace {
		if strings.HasPrefix(step, "RequestOwnership") {
			lastAdopt = i
		}
		if strings.HasPrefix(step, "Instantiate") && i < firstSpawn {
			firstSpawn = i
		}
	}
	if lastAdopt > firstSpawn {
		t.Errorf("spawned before adopting: %v", trace)
	}
}

func TestController_HandOffTransfersHeldBots(t *testing.T) {
	f := newControllerFixture(t, 2, 1)
	f.fake.PutActor(relay.Actor{ID: 1, Prefab: "NPC", Owner: 0, RoomObject: true, Position: relay.Vector3{X: 5}})
	f.fake.PutActor(relay.Actor{ID: 2, Prefab: "NPC", Owner: 9, RoomObject: true, Position: relay.Vector3{X: 10}})
	f.fake.PutActor(relay.Actor{ID: 3, Prefab: "NPC", Owner: 1, RoomObject: true, Position: relay.Vector3{X: 15}})

	adopted, err := f.ctrl.AdoptOrphans(context.Background())
	if err != nil {
		t.Fatalf("AdoptOrphans() error: %v", err)
	}
	if adopted != 2 {
		t.Errorf("adopted = %d, want 2", adopted)
	}
	if f.fake.CountOf("RequestOwnership:1") != 1 {
		t.Errorf("owner-less bot not requested: %v", f.fake.Trace())
	}
	if f.fake.CountOf("TransferOwnership:2:1") != 1 {
		t.Errorf("held bot not transferred: %v", f.fake.Trace())
	}
	if f.fake.CountOf("RequestOwnership:3")+f.fake.CountOf("TransferOwnership:3:1") != 0 {
		t.Errorf("own bot touched: %v", f.fake.Trace())
	}
	for _, a := range f.fake.Actors() {
		if a.Owner != 1 {
			t.Errorf("bot %d owner = %d, want 1", a.ID, a.Owner)
		}
		if _, ok := f.ctrl.Bot(a.ID); !ok {
			t.Errorf("bot %d not tracked", a.ID)
		}
	}
}

func TestController_OccupancyCountsRosterAfterCull(t *testing.T) {
	ctx := context.Background()
	f := newControllerFixture(t, 3, 1)
	if err := f.ctrl.Reconcile(ctx); err != nil {
		t.Fatalf("Reconcile() error: %v", err)
	}
	if got := f.ctrl.AliveCount(); got != 3 {
		t.Fatalf("alive = %d, want 3", got)
	}

	// The relay confirms removals later; the mirror still lists the culled bot.
	f.fake.DestroyFunc = func(context.Context, relay.ActorID) error { return nil }
	f.fake.AddPlayer(relay.Player{ActorNumber: 4, Name: "player-4"})
	if err := f.ctrl.OnPlayerJoined(ctx); err != nil {
		t.Fatalf("OnPlayerJoined() error: %v", err)
	}
	if got := len(f.fake.Actors()); got != 3 {
		t.Fatalf("mirror actors = %d, want 3", got)
	}

	batches := f.fake.Batches()
	last := batches[len(batches)-1]
	var npcs, total int
	if err := json.Unmarshal(last[roomservice.KeyNPCCount], &npcs); err != nil {
		t.Fatalf("NPCCount: %v", err)
	}
	if err := json.Unmarshal(last[roomservice.KeyTotalPlayers], &total); err != nil {
		t.Fatalf("TotalPlayers: %v", err)
	}
	if npcs != 2 || total != 6 {
		t.Errorf("occupancy after cull = %d bots / %d total, want 2 / 6", npcs, total)
	}
}

func TestController_DeathSequenceStopsWithRoom(t *testing.T) {
	f := newControllerFixture(t, 5, 1)
	actor, err := f.ctrl.Spawn(context.Background())
	if err != nil {
		t.Fatalf("Spawn() error: %v", err)
	}

	roomCtx, leave := context.WithCancel(context.Background())
	f.ctrl.bindRoom(roomCtx)
	f.clk.AfterFn = func(time.Duration) <-chan time.Time { return make(chan time.Time) }

	// The caller's context outlives the room.
	if err := f.ctrl.TakeDamage(context.Background(), roomservice.BotDamageArgs{BotID: actor.ID, Amount: 100, Attacker: "alice"}); err != nil {
		t.Fatalf("TakeDamage() error: %v", err)
	}
	leave()

	done := make(chan struct{})
	go func() {
		f.ctrl.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("death sequence kept running after the room closed")
	}

	if f.fake.CountOf(fmt.Sprintf("Destroy:%d", actor.ID)) != 0 {
		t.Error("bot destroyed after the room closed")
	}
	if b, _ := f.ctrl.Bot(actor.ID); b.State != BotDead {
		t.Errorf("bot state = %s, want %s", b.State, BotDead)
	}
}

func TestController_DeathIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newControllerFixture(t, 5, 1)
	actor, err := f.ctrl.Spawn(ctx)
	if err != nil {
		t.Fatalf("Spawn() error: %v", err)
	}
	bot, _ := f.ctrl.Bot(actor.ID)

	if err := f.ctrl.TakeDamage(ctx, roomservice.BotDamageArgs{BotID: actor.ID, Amount: 60, Attacker: "alice"}); err != nil {
		t.Fatalf("TakeDamage() error: %v", err)
	}
	if b, _ := f.ctrl.Bot(actor.ID); b.Health != 40 || b.State != BotAlive {
		t.Fatalf("after first hit = %+v", b)
	}
	// Two lethal hits racing each other.
	_ = f.ctrl.TakeDamage(ctx, roomservice.BotDamageArgs{BotID: actor.ID, Amount: 60, Attacker: "alice"})
	_ = f.ctrl.TakeDamage(ctx, roomservice.BotDamageArgs{BotID: actor.ID, Amount: 60, Attacker: "bob"})
	if f.ctrl.HandleDeath(ctx, roomservice.BotDeathArgs{BotID: actor.ID, Killer: "bob"}) {
		t.Error("second death transition accepted")
	}
	f.ctrl.Wait()

	if got := len(f.fake.Sent(roomservice.MethodProcessBotDeath)); got != 1 {
		t.Errorf("death broadcasts = %d, want 1", got)
	}
	kills := f.kills.Kills()
	if len(kills) != 1 || kills[0].Killer != "alice" || kills[0].BotName != bot.Name {
		t.Errorf("reported kills = %+v", kills)
	}
	if d := f.disabler.Disabled(); len(d) != 1 || d[0] != actor.ID {
		t.Errorf("disabled = %v", d)
	}
	if _, ok := f.fake.Actor(actor.ID); ok {
		t.Error("master did not destroy the dead bot")
	}
	wantLine := bot.Name + " was eliminated by alice!"
	found := false
	for _, l := range f.announcer.Lines() {
		if l == wantLine {
			found = true
		}
	}
	if !found {
		t.Errorf("missing %q in %q", wantLine, f.announcer.Lines())
	}

	waits := f.clk.Waits()
	if len(waits) < 2 || waits[0] != 2*time.Second || waits[len(waits)-1] != 2500*time.Millisecond {
		t.Errorf("death waits = %v", waits)
	}
}

func TestController_NonMasterDeathRequestsRespawn(t *testing.T) {
	ctx := context.Background()
	f := newControllerFixture(t, 2, 2)
	f.fake.PutActor(relay.Actor{ID: 77, Prefab: "NPC", Owner: 2, Data: []byte(`{"name":"Bot-Iron07","health":100}`)})
	f.ctrl.Track(relay.Actor{ID: 77, Prefab: "NPC", Owner: 2, Data: []byte(`{"name":"Bot-Iron07","health":100}`)})

	if !f.ctrl.HandleDeath(ctx, roomservice.BotDeathArgs{BotID: 77, Killer: "player-1"}) {
		t.Fatal("death rejected")
	}
	f.ctrl.Wait()

	reqs := f.fake.Sent(roomservice.MethodRequestBotRespawn)
	if len(reqs) != 1 || reqs[0].Target != relay.TargetMasterClient {
		t.Fatalf("respawn requests = %+v", reqs)
	}
	if f.fake.CountOf("Destroy:77") != 0 {
		t.Error("non-master destroyed the bot")
	}
	if b, _ := f.ctrl.Bot(77); !b.Removable || b.State != BotSinking {
		t.Errorf("bot = %+v", b)
	}
	if len(f.kills.Kills()) != 0 {
		t.Error("non-master reported the kill")
	}
}

func TestController_DamageForwardedByNonMaster(t *testing.T) {
	f := newControllerFixture(t, 2, 2)
	err := f.ctrl.ReportDamage(context.Background(), roomservice.BotDamageArgs{BotID: 5, Amount: 10, Attacker: "player-1"})
	if err != nil {
		t.Fatalf("ReportDamage() error: %v", err)
	}
	if got := f.fake.Sent(roomservice.MethodBotDamage); len(got) != 1 {
		t.Errorf("forwarded damage = %d, want 1", len(got))
	}
}

func TestController_DisableOnGameEnd(t *testing.T) {
	ctx := context.Background()
	f := newControllerFixture(t, 4, 1)
	if err := f.ctrl.Reconcile(ctx); err != nil {
		t.Fatalf("Reconcile() error: %v", err)
	}
	f.ctrl.DisableOnGameEnd(ctx)
	if !f.ctrl.Ended() || len(f.disabler.Disabled()) != 2 {
		t.Errorf("ended=%v disabled=%v", f.ctrl.Ended(), f.disabler.Disabled())
	}
}

func TestNameGenerator(t *testing.T) {
	gen := NewNameGenerator(gofakeit.New(11))
	pattern := regexp.MustCompile(`^Bot-(Alpha|Beta|Delta|Echo|Foxtrot|Ghost|Hunter|Iron|Juliet|Kilo|Lima|Mike)(0[1-9]|[1-9][0-9])$`)
	for i := 0; i < 200; i++ {
		if name := gen.Next(); !pattern.MatchString(name) {
			t.Fatalf("Next() = %q", name)
		}
	}
}

func TestFlatSurface_Snap(t *testing.T) {
	s := FlatSurface{MinX: -10, MaxX: 10, MinZ: -10, MaxZ: 10, Y: 1}
	tests := []struct {
		name string
		in   relay.Vector3
		want relay.Vector3
		ok   bool
	}{
		{"inside", relay.Vector3{X: 2, Y: 5, Z: 3}, relay.Vector3{X: 2, Y: 1, Z: 3}, true},
		{"just outside", relay.Vector3{X: 10.5, Z: 0}, relay.Vector3{X: 10, Y: 1, Z: 0}, true},
		{"far outside", relay.Vector3{X: 15, Z: 0}, relay.Vector3{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := s.Snap(tt.in, 1.0)
			if ok != tt.ok || got != tt.want {
				t.Errorf("Snap() = %+v, %v; want %+v, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

package roomservice

import "github.com/Black-And-White-Club/arena-sync/internal/relay"

// RPC methods exchanged between peers of a room.
const (
	MethodUpdatePlayerStats  = "UpdatePlayerStats"
	MethodRequestStatsUpdate = "RequestStatsUpdate"
	MethodAddKill            = "AddKill"
	MethodAddBotKill         = "AddBotKill"
	MethodResetKillStreak    = "ResetKillStreak"
	MethodAddMessage         = "AddMessage"
	MethodSyncTimer          = "SyncTimer"
	MethodSyncGameState      = "SyncGameState"
	MethodEndGame            = "EndGame"
	MethodInitializeBot      = "InitializeBot"
	MethodRequestBotRespawn  = "RequestBotRespawn"
	MethodBotDamage          = "BotDamage"
	MethodProcessBotDeath    = "ProcessBotDeath"
)

// StatsArgs carries one player's totals.
type StatsArgs struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
	Kills int    `json:"kills"`
}

// KillArgs reports a player kill.
type KillArgs struct {
	Killer string `json:"killer"`
}

// BotKillArgs reports a bot kill.
type BotKillArgs struct {
	Killer  string        `json:"killer"`
	BotID   relay.ActorID `json:"bot_id"`
	BotName string        `json:"bot_name"`
}

// PlayerArgs names a player.
type PlayerArgs struct {
	Name string `json:"name"`
}

// MessageArgs is a kill-feed line.
type MessageArgs struct {
	Text string `json:"text"`
}

// TimerArgs carries the remaining game time in seconds. Receivers never move their clock
// forward unless Reset is set.
type TimerArgs struct {
	GameTime float64 `json:"game_time"`
	Reset    bool    `json:"reset,omitempty"`
}

// GameStateArgs carries the game-active flag.
type GameStateArgs struct {
	Active bool `json:"active"`
}

// InitializeBotArgs configures a freshly spawned bot on every peer.
type InitializeBotArgs struct {
	Name              string  `json:"name"`
	Scale             float64 `json:"scale"`
	Speed             float64 `json:"speed"`
	AvoidancePriority int     `json:"avoidance_priority"`
	InitialHealth     int     `json:"initial_health"`
}

// BotArgs addresses a bot.
type BotArgs struct {
	BotID relay.ActorID `json:"bot_id"`
}

// BotDamageArgs applies damage to a bot.
type BotDamageArgs struct {
	BotID    relay.ActorID `json:"bot_id"`
	Amount   int           `json:"amount"`
	Attacker string        `json:"attacker"`
}

// BotDeathArgs announces a bot's death.
type BotDeathArgs struct {
	BotID  relay.ActorID `json:"bot_id"`
	Killer string        `json:"killer"`
}

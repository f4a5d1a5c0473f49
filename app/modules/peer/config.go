package peer

import (
	authorityservice "github.com/Black-And-White-Club/arena-sync/app/modules/authority/application"
	botservice "github.com/Black-And-White-Club/arena-sync/app/modules/bots/application"
	connectionservice "github.com/Black-And-White-Club/arena-sync/app/modules/connection/application"
	sessionservice "github.com/Black-And-White-Club/arena-sync/app/modules/session/application"
)

// DefaultWallet identifies a peer that was started without a wallet.
const DefaultWallet = "wallet_address_test"

// Config configures one headless peer.
type Config struct {
	DisplayName string
	Wallet      string
	// Room overrides the room assigned by the backend.
	Room string
	// Topic is the watermill topic the peer's relay events are published on.
	Topic string

	Connection connectionservice.Config
	Session    sessionservice.Config
	Bots       botservice.Config
	Authority  authorityservice.Config
}

// DefaultConfig returns the production settings for a peer called name.
func DefaultConfig(name string) Config {
	return Config{
		DisplayName: name,
		Wallet:      DefaultWallet,
		Topic:       "arena.peer." + name,
		Connection:  connectionservice.DefaultConfig(),
		Session:     sessionservice.DefaultConfig(),
		Bots:        botservice.DefaultConfig(),
		Authority:   authorityservice.DefaultConfig(),
	}
}

// Package backenddto holds the request and response bodies of the arena backend API.
package backenddto

import "time"

// UserProfile is returned by GET /user/{wallet}.
type UserProfile struct {
	Username    string `json:"username"`
	IsStaked    bool   `json:"isStaked"`
	CurrentRoom string `json:"currentRoom"`
	// Duration is the game length in seconds.
	Duration int `json:"duration"`
}

// LeaderboardEntry is posted by each peer at the end of a game.
type LeaderboardEntry struct {
	ID            string    `json:"_id,omitempty"`
	WalletAddress string    `json:"walletAddress"`
	Kills         int       `json:"kills"`
	Score         int       `json:"score"`
	RoomID        string    `json:"roomId"`
	Username      string    `json:"username"`
	CreatedAt     time.Time `json:"createdAt,omitempty"`
}

// StakeRequest toggles a wallet's stake flag.
type StakeRequest struct {
	WalletAddress string `json:"walletAddress"`
	IsStaked      bool   `json:"isStaked"`
}

// TokenRequest asks for a session token.
type TokenRequest struct {
	WalletAddress string `json:"walletAddress"`
}

// TokenResponse carries a signed session token.
type TokenResponse struct {
	Token string `json:"token"`
}

// Participant is one player in a game trace.
type Participant struct {
	Name          string `json:"name"`
	WalletAddress string `json:"walletAddress,omitempty"`
	Score         int    `json:"score"`
	Kills         int    `json:"kills"`
	BotKills      int    `json:"botKills"`
}

// Schedule bounds a game in time.
type Schedule struct {
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationSeconds float64   `json:"durationSeconds"`
}

// TraceData is the archived record of one game.
type TraceData struct {
	Title        string        `json:"title"`
	Participants []Participant `json:"participants"`
	Schedule     Schedule      `json:"schedule"`
}

// TraceRequest is posted by the master at the end of a game.
type TraceRequest struct {
	RoomID string    `json:"roomId"`
	Data   TraceData `json:"data"`
}

// TraceReceipt identifies an archived trace.
type TraceReceipt struct {
	Digest string `json:"digest"`
	URL    string `json:"url"`
}

// TraceRecord is returned by GET /trace/{digest}.
type TraceRecord struct {
	Digest     string     `json:"digest"`
	RoomID     string     `json:"roomId"`
	Status     string     `json:"status"`
	Data       TraceData  `json:"data"`
	ArchivedAt *time.Time `json:"archivedAt,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

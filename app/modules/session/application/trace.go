package sessionservice

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	backenddto "github.com/Black-And-White-Club/arena-sync/app/modules/backend/dto"
	statsservice "github.com/Black-And-White-Club/arena-sync/app/modules/stats/application"
	"github.com/Black-And-White-Club/arena-sync/internal/relay"
)

// TraceFileName names the local copy of a trace captured at t.
func TraceFileName(t time.Time) string {
	return fmt.Sprintf("GameTrace_%s.json", t.Format("20060102_150405"))
}

// BuildTrace captures the archived record of a finished game.
func BuildTrace(room string, players []relay.Player, entries map[string]statsservice.Entry, start, end time.Time) backenddto.TraceRequest {
	wallets := make(map[string]string, len(players))
	for _, p := range players {
		wallets[p.Name] = p.UserID
	}

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	participants := make([]backenddto.Participant, 0, len(names))
	for _, name := range names {
		e := entries[name]
		participants = append(participants, backenddto.Participant{
			Name:          name,
			WalletAddress: wallets[name],
			Score:         e.Score,
			Kills:         e.Kills,
			BotKills:      e.BotKills,
		})
	}

	var duration float64
	if !start.IsZero() && end.After(start) {
		duration = end.Sub(start).Seconds()
	}
	return backenddto.TraceRequest{
		RoomID: room,
		Data: backenddto.TraceData{
			Title:        "Game Session " + room,
			Participants: participants,
			Schedule: backenddto.Schedule{
				Start:           start.UTC(),
				End:             end.UTC(),
				DurationSeconds: duration,
			},
		},
	}
}

// SaveTrace writes trace as indented JSON under dir and returns the file path.
func SaveTrace(dir string, trace backenddto.TraceRequest, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create trace dir: %w", err)
	}
	body, err := json.MarshalIndent(trace, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode trace: %w", err)
	}
	path := filepath.Join(dir, TraceFileName(now))
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("write trace: %w", err)
	}
	return path, nil
}

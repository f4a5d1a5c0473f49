package sessionservice

import (
	"sort"

	roomservice "github.com/Black-And-White-Club/arena-sync/app/modules/room/application"
)

// Standing is one row of the final leaderboard.
type Standing struct {
	Rank  int    `json:"rank"`
	Name  string `json:"name"`
	Score int    `json:"score"`
	Kills int    `json:"kills"`
}

// Rank orders the stats stored in snap by Score then Kills, both descending. Equal rows keep the
// order in which they appear in the stored PlayerStats document; that order is not guaranteed
// to match across peers.
func Rank(snap roomservice.Snapshot) []Standing {
	seen := make(map[string]bool, len(snap.PlayerStats))
	rows := make([]Standing, 0, len(snap.PlayerStats))
	for _, name := range snap.StatsOrder {
		ps, ok := snap.PlayerStats[name]
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		rows = append(rows, Standing{Name: name, Score: ps.Score, Kills: ps.Kills})
	}

	var rest []string
	for name := range snap.PlayerStats {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		ps := snap.PlayerStats[name]
		rows = append(rows, Standing{Name: name, Score: ps.Score, Kills: ps.Kills})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		return rows[i].Kills > rows[j].Kills
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows
}

package arena

import (
	"time"

	"github.com/patterniq/patterniq-client/internal/backend"
)

// MaxLevel caps progression; scores past 1900 all map here.
const MaxLevel = 20

// Level derives the player level from the cumulative arena score. Every
// 100 points is one level, starting at 1, capped at MaxLevel. Negative
// or missing scores derive level 1.
func Level(score int) int {
	if score < 0 {
		score = 0
	}
	level := score/100 + 1
	if level > MaxLevel {
		return MaxLevel
	}
	return level
}

// Tier names the level band. Levels outside [1, MaxLevel] clamp to the
// nearest band.
func Tier(level int) string {
	switch {
	case level <= 5:
		return "Beginner"
	case level <= 10:
		return "Intermediate"
	case level <= 15:
		return "Advanced"
	default:
		return "Expert"
	}
}

// LockedToday reports whether the daily quiz is already done for the
// local calendar day of now. The comparison is exact string equality on
// the YYYY-MM-DD form; an empty completion date never locks.
func LockedToday(lastCompleted string, now time.Time) bool {
	if lastCompleted == "" {
		return false
	}
	return lastCompleted == now.Format("2006-01-02")
}

// Standing is one leaderboard row annotated with derived progression.
type Standing struct {
	Rank        int    `json:"rank"`
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Picture     string `json:"picture"`
	ArenaScore  int    `json:"arenaScore"`
	Level       int    `json:"level"`
	Tier        string `json:"tier"`
}

// Standings annotates leaderboard entries with rank, level and tier.
// The input order is the server's ranking and is preserved as-is.
func Standings(entries []backend.LeaderboardEntry) []Standing {
	out := make([]Standing, len(entries))
	for i, e := range entries {
		level := Level(e.ArenaScore)
		out[i] = Standing{
			Rank:        i + 1,
			ID:          e.ID,
			DisplayName: e.DisplayName,
			Picture:     e.Picture,
			ArenaScore:  e.ArenaScore,
			Level:       level,
			Tier:        Tier(level),
		}
	}
	return out
}

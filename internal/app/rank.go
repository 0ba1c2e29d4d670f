package app

import (
	"sort"
	"time"

	"progress-engine/internal/domain"
)

// Rank builds the leaderboard projection from a stats snapshot: total
// points descending, ties broken by student ID ascending so the order is
// deterministic. Ranks are 1-based and positional; equal scores get
// consecutive ranks, not shared ones.
//
// Read-only: the input slice is not modified. A non-positive limit returns
// every entry.
func Rank(stats []domain.UserStats, limit int, at time.Time) domain.Leaderboard {
	ordered := make([]domain.UserStats, len(stats))
	copy(ordered, stats)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].TotalPoints != ordered[j].TotalPoints {
			return ordered[i].TotalPoints > ordered[j].TotalPoints
		}
		return ordered[i].StudentID < ordered[j].StudentID
	})

	if limit > 0 && limit < len(ordered) {
		ordered = ordered[:limit]
	}

	entries := make([]domain.LeaderboardEntry, len(ordered))
	for i, s := range ordered {
		entries[i] = domain.LeaderboardEntry{
			Rank:         i + 1,
			StudentID:    s.StudentID,
			TotalPoints:  s.TotalPoints,
			CurrentLevel: s.CurrentLevel,
		}
	}
	return domain.Leaderboard{Entries: entries, GeneratedAt: at}
}

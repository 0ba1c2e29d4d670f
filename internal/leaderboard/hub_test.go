package leaderboard

import (
	"testing"
	"time"

	"progress-engine/internal/domain"
)

func TestSubscribeReceivesBroadcast(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe()
	defer cancel()

	lb := domain.Leaderboard{
		Entries:     []domain.LeaderboardEntry{{Rank: 1, StudentID: "s1", TotalPoints: 10}},
		GeneratedAt: time.Now(),
	}
	hub.Broadcast(lb)

	got := <-ch
	if len(got.Entries) != 1 || got.Entries[0].StudentID != "s1" {
		t.Fatalf("unexpected snapshot: %+v", got.Entries)
	}
}

func TestSlowSubscriberGetsLatest(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe()
	defer cancel()

	// Overflow the buffer; older snapshots should be dropped.
	for i := 0; i < 20; i++ {
		hub.Broadcast(domain.Leaderboard{
			Entries: []domain.LeaderboardEntry{{Rank: 1, StudentID: "s1", TotalPoints: i}},
		})
	}

	var last domain.Leaderboard
	for {
		select {
		case lb := <-ch:
			last = lb
			continue
		default:
		}
		break
	}
	if last.Entries[0].TotalPoints != 19 {
		t.Fatalf("expected latest snapshot (19 points), got %d", last.Entries[0].TotalPoints)
	}
}

func TestCancelRemovesSubscriber(t *testing.T) {
	hub := NewHub()
	_, cancel := hub.Subscribe()
	if hub.SubscriberCount() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", hub.SubscriberCount())
	}
	cancel()
	cancel() // second cancel is a no-op
	if hub.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", hub.SubscriberCount())
	}
}

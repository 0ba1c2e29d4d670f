package redis

import (
	"context"
	"sync"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"progress-engine/internal/domain"
)

func newTestClient(t *testing.T) *goredis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
}

func TestApplyDeltaCreatesAndIncrements(t *testing.T) {
	ctx := context.Background()
	store := NewStatsStore(newTestClient(t))

	stats, err := store.ApplyDelta(ctx, "s1", domain.StatsDelta{Points: 12, Lessons: 1, Quizzes: 1})
	if err != nil {
		t.Fatalf("apply delta: %v", err)
	}
	if stats.TotalPoints != 12 || stats.LessonsCompleted != 1 || stats.QuizzesCompleted != 1 {
		t.Fatalf("unexpected stats after first delta: %+v", stats)
	}
	if stats.CurrentLevel != 1 || stats.LevelProgress != 12 {
		t.Fatalf("unexpected derived level: %+v", stats)
	}

	stats, err = store.ApplyDelta(ctx, "s1", domain.StatsDelta{Points: 990})
	if err != nil {
		t.Fatalf("apply delta: %v", err)
	}
	if stats.TotalPoints != 1002 || stats.CurrentLevel != 2 || stats.LevelProgress != 2 {
		t.Fatalf("expected level 2 at 1002 points, got %+v", stats)
	}
}

func TestApplyDeltaConcurrentSameLearner(t *testing.T) {
	ctx := context.Background()
	store := NewStatsStore(newTestClient(t))

	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.ApplyDelta(ctx, "s1", domain.StatsDelta{Points: 10, Lessons: 1}); err != nil {
				t.Errorf("apply delta: %v", err)
			}
		}()
	}
	wg.Wait()

	stats, ok, err := store.Get(ctx, "s1")
	if err != nil || !ok {
		t.Fatalf("get stats: ok=%v err=%v", ok, err)
	}
	if stats.TotalPoints != workers*10 || stats.LessonsCompleted != workers {
		t.Fatalf("lost updates: %+v", stats)
	}
}

func TestGetMissingLearner(t *testing.T) {
	store := NewStatsStore(newTestClient(t))
	_, ok, err := store.Get(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatal("expected no record for unknown learner")
	}
}

func TestSnapshotMirrorsLeaderboardSet(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	store := NewStatsStore(client)

	if _, err := store.ApplyDelta(ctx, "alice", domain.StatsDelta{Points: 300}); err != nil {
		t.Fatalf("apply delta: %v", err)
	}
	if _, err := store.ApplyDelta(ctx, "bob", domain.StatsDelta{Points: 700}); err != nil {
		t.Fatalf("apply delta: %v", err)
	}

	score, err := client.ZScore(ctx, leaderboardKey, "bob").Result()
	if err != nil || score != 700 {
		t.Fatalf("expected bob at 700 in zset, got %v (err %v)", score, err)
	}

	snapshot, err := store.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snapshot) != 2 {
		t.Fatalf("expected 2 learners, got %d", len(snapshot))
	}
	if snapshot[0].StudentID != "bob" || snapshot[0].TotalPoints != 700 {
		t.Fatalf("expected bob first with 700, got %+v", snapshot[0])
	}
}

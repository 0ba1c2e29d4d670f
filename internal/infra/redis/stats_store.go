package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"progress-engine/internal/domain"
)

const leaderboardKey = "leaderboard:points"

// StatsStore keeps per-learner aggregates in Redis hashes and mirrors
// total points into a sorted set for leaderboard reads.
//
// ApplyDelta rides on HINCRBY, so concurrent deltas for the same learner
// are applied server-side without read-modify-write races; the counter
// increments and the ZINCRBY share one MULTI/EXEC pipeline, so the
// leaderboard never drifts from the hash.
type StatsStore struct {
	client *redis.Client
	clock  func() time.Time
}

func NewStatsStore(client *redis.Client) *StatsStore {
	return &StatsStore{client: client, clock: time.Now}
}

func (s *StatsStore) ApplyDelta(ctx context.Context, studentID string, delta domain.StatsDelta) (domain.UserStats, error) {
	key := s.key(studentID)
	now := s.clock()

	pipe := s.client.TxPipeline()
	pointsCmd := pipe.HIncrBy(ctx, key, "total_points", int64(delta.Points))
	lessonsCmd := pipe.HIncrBy(ctx, key, "lessons_completed", int64(delta.Lessons))
	quizzesCmd := pipe.HIncrBy(ctx, key, "quizzes_completed", int64(delta.Quizzes))
	coursesCmd := pipe.HIncrBy(ctx, key, "courses_enrolled", int64(delta.Courses))
	pipe.HSet(ctx, key, "updated_at", now.Unix())
	pipe.ZIncrBy(ctx, leaderboardKey, float64(delta.Points), studentID)
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.UserStats{}, fmt.Errorf("apply stats delta: %w", err)
	}

	stats := domain.UserStats{
		StudentID:        studentID,
		TotalPoints:      int(pointsCmd.Val()),
		LessonsCompleted: int(lessonsCmd.Val()),
		QuizzesCompleted: int(quizzesCmd.Val()),
		CoursesEnrolled:  int(coursesCmd.Val()),
		UpdatedAt:        now,
	}
	stats.DeriveLevel()
	return stats, nil
}

func (s *StatsStore) Get(ctx context.Context, studentID string) (domain.UserStats, bool, error) {
	fields, err := s.client.HGetAll(ctx, s.key(studentID)).Result()
	if err != nil {
		return domain.UserStats{}, false, fmt.Errorf("get stats: %w", err)
	}
	if len(fields) == 0 {
		return domain.UserStats{}, false, nil
	}
	return statsFromHash(studentID, fields), true, nil
}

func (s *StatsStore) Snapshot(ctx context.Context) ([]domain.UserStats, error) {
	members, err := s.client.ZRevRangeWithScores(ctx, leaderboardKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("snapshot leaderboard: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(members))
	for i, member := range members {
		cmds[i] = pipe.HGetAll(ctx, s.key(member.Member.(string)))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("snapshot stats: %w", err)
	}

	out := make([]domain.UserStats, 0, len(members))
	for i, member := range members {
		studentID := member.Member.(string)
		fields, err := cmds[i].Result()
		if err != nil || len(fields) == 0 {
			continue
		}
		out = append(out, statsFromHash(studentID, fields))
	}
	return out, nil
}

func (s *StatsStore) key(studentID string) string {
	return "stats:" + studentID
}

func statsFromHash(studentID string, fields map[string]string) domain.UserStats {
	stats := domain.UserStats{
		StudentID:        studentID,
		TotalPoints:      hashInt(fields, "total_points"),
		LessonsCompleted: hashInt(fields, "lessons_completed"),
		QuizzesCompleted: hashInt(fields, "quizzes_completed"),
		CoursesEnrolled:  hashInt(fields, "courses_enrolled"),
	}
	if unix := hashInt(fields, "updated_at"); unix > 0 {
		stats.UpdatedAt = time.Unix(int64(unix), 0)
	}
	stats.DeriveLevel()
	return stats
}

func hashInt(fields map[string]string, name string) int {
	if raw, ok := fields[name]; ok {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return 0
}

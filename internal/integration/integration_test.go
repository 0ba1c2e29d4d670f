package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"progress-engine/internal/app"
	"progress-engine/internal/domain"
	pginfra "progress-engine/internal/infra/postgres"
	pgmigrations "progress-engine/internal/infra/postgres/migrations"
	redisinfra "progress-engine/internal/infra/redis"
)

func TestSubmitAttemptEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := seedCatalog(t, ctx, pgURL, sampleQuiz(), sampleLesson())
	defer db.Close()

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	directory := pginfra.NewDirectory(pool)
	engine := app.NewEngine(app.EngineParams{
		Quizzes:     redisinfra.NewQuizCache(redisClient, directory, 5*time.Minute),
		Lessons:     directory,
		Progress:    pginfra.NewProgressStore(db),
		Stats:       redisinfra.NewStatsStore(redisClient),
		Attempts:    pginfra.NewAttemptStore(db),
		Enrollments: pginfra.NewEnrollmentStore(db),
		Notifier:    redisinfra.NewNotifier(redisClient),
	})

	if _, created, err := engine.Enroll(ctx, "s1", "course-1"); err != nil || !created {
		t.Fatalf("enroll: created=%v err=%v", created, err)
	}

	answers := map[string]string{"q1": "o2", "q2": "t"}
	result, err := engine.SubmitQuizAttempt(ctx, "s1", "quiz-1", answers)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !result.Attempt.Passed || result.Attempt.PointsEarned != 2 {
		t.Fatalf("expected passing attempt worth 2 points, got %+v", result.Attempt)
	}
	if !result.WasNewlyCompleted || result.Stats == nil {
		t.Fatalf("first pass must flip the lesson and award: %+v", result)
	}
	if result.Stats.TotalPoints != 12 || result.Stats.LessonsCompleted != 1 || result.Stats.QuizzesCompleted != 1 {
		t.Fatalf("expected 12 points with counters at 1, got %+v", result.Stats)
	}

	// Resubmitting the same pass must not re-award.
	again, err := engine.SubmitQuizAttempt(ctx, "s1", "quiz-1", answers)
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if again.WasNewlyCompleted {
		t.Fatal("second pass must not flip the lesson again")
	}
	stats, err := engine.GetStats(ctx, "s1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalPoints != 12 {
		t.Fatalf("expected points unchanged at 12, got %d", stats.TotalPoints)
	}

	// Both attempts stay in the trail.
	attempts, err := engine.ListAttempts(ctx, "s1", "quiz-1")
	if err != nil {
		t.Fatalf("list attempts: %v", err)
	}
	if len(attempts) != 2 {
		t.Fatalf("expected 2 attempts in the trail, got %d", len(attempts))
	}

	lb, err := engine.GetLeaderboard(ctx, 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Entries) != 1 || lb.Entries[0].StudentID != "s1" || lb.Entries[0].TotalPoints != 12 {
		t.Fatalf("unexpected leaderboard: %+v", lb.Entries)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "progress", "POSTGRES_PASSWORD": "progresspass", "POSTGRES_DB": "progressdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://progress:progresspass@%s:%s/progressdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

// seedCatalog migrates the schema and inserts the quiz and lesson rows the
// test scores against. The returned bun.DB is reused for the engine's stores.
func seedCatalog(t *testing.T, ctx context.Context, dsn string, quiz domain.Quiz, lesson domain.Lesson) *bun.DB {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	data, err := json.Marshal(quiz)
	if err != nil {
		t.Fatalf("marshal quiz: %v", err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO quizzes (id, lesson_id, data) VALUES (?, ?, ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`,
		quiz.ID, quiz.LessonID, string(data)); err != nil {
		t.Fatalf("insert quiz: %v", err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO lessons (id, course_id, title, completion_points) VALUES (?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`,
		lesson.ID, lesson.CourseID, lesson.Title, lesson.CompletionPoints); err != nil {
		t.Fatalf("insert lesson: %v", err)
	}
	return db
}

func sampleLesson() domain.Lesson {
	return domain.Lesson{ID: "lesson-1", CourseID: "course-1", Title: "Intro", CompletionPoints: 10}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:           "quiz-1",
		LessonID:     "lesson-1",
		Title:        "Intro check",
		PassingScore: 70,
		Questions: []domain.Question{
			{
				ID:   "q1",
				Text: "What is 2 + 2?",
				Type: domain.QuestionMultipleChoice,
				Options: []domain.Option{
					{ID: "o1", Text: "3", Correct: false},
					{ID: "o2", Text: "4", Correct: true},
					{ID: "o3", Text: "5", Correct: false},
				},
			},
			{
				ID:   "q2",
				Text: "The sky is blue.",
				Type: domain.QuestionTrueFalse,
				Options: []domain.Option{
					{ID: "t", Text: "True", Correct: true},
					{ID: "f", Text: "False", Correct: false},
				},
			},
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}

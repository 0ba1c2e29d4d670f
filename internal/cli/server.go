package cli

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"progress-engine/internal/app"
	"progress-engine/internal/config"
	"progress-engine/internal/domain"
	"progress-engine/internal/infra/memory"
	pginfra "progress-engine/internal/infra/postgres"
	redisinfra "progress-engine/internal/infra/redis"
	"progress-engine/internal/leaderboard"
	transport "progress-engine/internal/transport/http"
)

// NewServeCmd builds the CLI subcommand to start the server.
func NewServeCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the progress engine server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var (
		pool  *pgxpool.Pool
		bunDB *bun.DB
	)
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		bunDB = bun.NewDB(sqldb, pgdialect.New())
		defer bunDB.Close()
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	params := app.EngineParams{
		Badges:           defaultBadges(),
		RetryAttempts:    cfg.Engine.RetryAttempts,
		LeaderboardLimit: cfg.Engine.LeaderboardLimit,
	}

	static := memory.NewStaticDirectory(sampleQuizzes(), sampleLessons())
	var loader memory.QuizLoader = static
	params.Lessons = static
	if pool != nil {
		directory := pginfra.NewDirectory(pool)
		loader = directory
		params.Lessons = directory
	}
	if redisClient != nil {
		params.Quizzes = redisinfra.NewQuizCache(redisClient, loader, quizTTL)
	} else {
		params.Quizzes = memory.NewQuizCache(loader, quizTTL)
	}

	if bunDB != nil {
		params.Progress = pginfra.NewProgressStore(bunDB)
		params.Attempts = pginfra.NewAttemptStore(bunDB)
		params.Enrollments = pginfra.NewEnrollmentStore(bunDB)
	} else {
		params.Progress = memory.NewProgressStore()
		params.Attempts = memory.NewAttemptStore()
		params.Enrollments = memory.NewEnrollmentStore()
	}

	// Prefer redis for the hot aggregate counters; postgres remains the
	// fallback so a redis-less deployment still upholds atomic deltas.
	switch {
	case redisClient != nil:
		params.Stats = redisinfra.NewStatsStore(redisClient)
	case bunDB != nil:
		params.Stats = pginfra.NewStatsStore(bunDB)
	default:
		params.Stats = memory.NewStatsStore()
	}

	if redisClient != nil {
		params.Notifier = redisinfra.NewNotifier(redisClient)
	} else {
		params.Notifier = memory.NewNotifier()
	}

	hub := leaderboard.NewHub()
	params.Feed = hub

	engine := app.NewEngine(params)
	handler := transport.NewHandler(engine)
	feed := transport.NewFeedHandler(engine, hub)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	handler.Register(mux)
	mux.HandleFunc("/ws/leaderboard", feed.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting progress engine on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// defaultBadges mirrors the seeded gamification rules; swap for a
// DB-backed catalog when badges get an authoring flow.
func defaultBadges() []domain.Badge {
	return []domain.Badge{
		{Name: "First Steps", Description: "Complete your first lesson", RequirementType: domain.RequireLessons, RequirementValue: 1},
		{Name: "Quiz Whiz", Description: "Pass ten quizzes", RequirementType: domain.RequireQuizzes, RequirementValue: 10},
		{Name: "Point Collector", Description: "Earn 1000 points", RequirementType: domain.RequirePoints, RequirementValue: 1000},
		{Name: "Course Explorer", Description: "Enroll in three courses", RequirementType: domain.RequireCourses, RequirementValue: 3},
	}
}

// sampleQuizzes and sampleLessons provide minimal demo content for
// deployments without a course directory database.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:           "quiz-1",
			LessonID:     "lesson-1",
			Title:        "Arithmetic basics",
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
					Points: 1,
				},
				{
					ID:   "q2",
					Text: "7 is a prime number.",
					Type: domain.QuestionTrueFalse,
					Options: []domain.Option{
						{ID: "t", Text: "True", Correct: true},
						{ID: "f", Text: "False", Correct: false},
					},
					Points: 1,
				},
			},
		},
	}
}

func sampleLessons() map[string]domain.Lesson {
	return map[string]domain.Lesson{
		"lesson-1": {
			ID:               "lesson-1",
			CourseID:         "course-1",
			Title:            "Numbers",
			CompletionPoints: 10,
		},
	}
}

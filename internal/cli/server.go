package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rating-service/internal/app"
	"rating-service/internal/config"
	"rating-service/internal/domain"
	infraamqp "rating-service/internal/infra/amqp"
	"rating-service/internal/infra/memory"
	inframongo "rating-service/internal/infra/mongo"
	pgloader "rating-service/internal/infra/postgres"
	"rating-service/internal/infra/recaptcha"
	rediscatalog "rating-service/internal/infra/redis"
	transport "rating-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the rating server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// ratingStore is what the engines, the read side and reviews need from rating storage.
type ratingStore interface {
	app.RatingStore
	app.RatingReader
	app.ReviewStore
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

	var loader memory.QuestionLoader = memory.NewStaticQuestionLoader(sampleQuestionnaire())
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		loader = pgloader.NewQuestionLoader(pool)
	}

	catalogTTL := config.TTLDuration(cfg.Catalog.TTL, 4*time.Hour)
	var catalog app.QuestionCatalog
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		catalog = rediscatalog.NewQuestionCatalog(redisClient, loader, catalogTTL)
	} else {
		catalog = memory.NewQuestionCatalog(loader, catalogTTL)
	}

	var (
		ratings   ratingStore
		summaries app.SummaryStore
	)
	if cfg.Mongo.URI != "" {
		client, db, err := inframongo.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return err
		}
		defer client.Disconnect(context.Background())

		ratingRepo := inframongo.NewRatingStore(db, "ratings", cfg.Ratings.SampleSize)
		if err := ratingRepo.InitializeIndexes(ctx); err != nil {
			return err
		}
		summaryRepo := inframongo.NewSummaryStore(db, "subjects")
		if err := summaryRepo.InitializeIndexes(ctx); err != nil {
			return err
		}
		ratings, summaries = ratingRepo, summaryRepo
	} else {
		log.Println("mongo uri is empty, ratings are kept in memory")
		ratings, summaries = memory.NewRatingStore(cfg.Ratings.SampleSize), memory.NewSummaryStore()
	}

	publisher, err := infraamqp.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
	if err != nil {
		return err
	}
	defer publisher.Close()

	verifier := recaptcha.NewVerifier(cfg.Recaptcha.Enabled, cfg.Recaptcha.Secret, cfg.Recaptcha.VerifyURL)

	service := app.NewAnswerService(ratings,
		[]*app.RatingEngine{
			app.NewMovieRatingEngine(catalog, ratings),
			app.NewShowRatingEngine(catalog, ratings),
		},
		app.WithChallengeVerifier(verifier),
		app.WithSummaryStore(summaries),
		app.WithReviewStore(ratings),
		app.WithEventPublisher(publisher),
	)
	wsHandler := transport.NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	transport.NewAPIHandler(service).Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting rating service on :%s", finalPort)
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

// sampleQuestionnaire is served when no Postgres url is configured.
func sampleQuestionnaire() []domain.Question {
	points := func(v float64) *float64 { return &v }
	yesNoNA := func(na string) []domain.Option {
		return []domain.Option{
			{Answer: "Yes", Points: points(0)},
			{Answer: "No", Points: points(10)},
			{Answer: na, Points: points(3)},
		}
	}
	return []domain.Question{
		{
			ID:       "lead-stereotype",
			Header:   "Leads",
			Text:     "Are the main characters of color written as stereotypes?",
			HelpText: "Consider dialogue, motivation and screen time.",
			Weight:   100,
			Options:  yesNoNA("No main characters of color"),
		},
		{
			ID:       "side-stereotype",
			Header:   "Supporting cast",
			Text:     "Are supporting characters of color reduced to stereotypes?",
			HelpText: "Sidekicks, villains and comic relief count here.",
			Weight:   100,
			Options:  yesNoNA("No supporting characters of color"),
		},
		{
			ID:     "tokenism",
			Header: "Tokenism",
			Text:   "Does a character of color exist only to diversify the cast?",
			Weight: 50,
			Options: []domain.Option{
				{Answer: "Yes", Points: points(0)},
				{Answer: "No", Points: points(10)},
				{Answer: "Not applicable"},
			},
		},
	}
}

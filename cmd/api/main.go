package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-gradebook/internal/config"
	"github.com/noah-isme/gema-gradebook/internal/database"
	"github.com/noah-isme/gema-gradebook/internal/handler"
	"github.com/noah-isme/gema-gradebook/internal/middleware"
	"github.com/noah-isme/gema-gradebook/internal/repository"
	"github.com/noah-isme/gema-gradebook/internal/router"
	"github.com/noah-isme/gema-gradebook/internal/service"
	"github.com/noah-isme/gema-gradebook/pkg/ai"
	cloud "github.com/noah-isme/gema-gradebook/pkg/cloudinary"
	"github.com/noah-isme/gema-gradebook/pkg/corpus"
	"github.com/noah-isme/gema-gradebook/pkg/docker"
	"github.com/noah-isme/gema-gradebook/pkg/rubric"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	ctx := context.Background()

	db, err := database.ConnectPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	healthChecks := map[string]handler.HealthCheckFunc{
		"postgres": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		healthChecks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	} else {
		logger.Warn().Msg("redis url not set, scan results will not be cached")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer natsConn.Drain()
		healthChecks["nats"] = func(context.Context) error {
			if !natsConn.IsConnected() {
				return fmt.Errorf("nats %s", natsConn.Status())
			}
			return nil
		}
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	sectionRepo := repository.NewSectionRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	templateRepo := repository.NewActivityTemplateRepository(db)
	submissionRepo := repository.NewStudentSubmissionRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	limits := corpus.Limits{
		MaxFileBytes:  cfg.MaxFileBytes,
		MaxFiles:      cfg.MaxFiles,
		MaxTotalBytes: cfg.MaxTotalBytes,
	}

	cloner, closeCloner, err := buildCloner(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure repository cloner")
	}
	defer closeCloner()

	scoringCfg, err := buildScoringConfig(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid scoring configuration")
	}

	deps := service.ScoringDependencies{
		Templates:   templateRepo,
		Students:    studentRepo,
		Submissions: submissionRepo,
		Uploads:     corpus.NewUploadReader(limits, logger),
		Fetcher: corpus.NewRepositoryFetcher(corpus.FetcherConfig{
			Cloner:    cloner,
			Provider:  corpus.NewDirectoryProvider(limits, logger),
			Workspace: cfg.CloneWorkspace,
			Timeout:   cfg.CloneTimeout,
			Logger:    logger,
		}),
		Validator: validate,
	}
	if redisClient != nil {
		deps.Cache = redisClient
	}
	if natsConn != nil {
		deps.Events = natsConn
	}
	if cfg.CloudinaryEnabled() {
		archiver, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create cloudinary archiver")
		}
		deps.Archiver = archiver
	}
	if cfg.OpenAIAPIKey != "" {
		writer, err := ai.NewOpenAIFeedbackWriter(ai.OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.OpenAIModel,
			Logger: logger,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create feedback writer")
		}
		deps.Feedback = writer
	}

	auditService := service.NewAuditService(auditRepo, logger)
	deps.Audit = auditService

	rubricService := service.NewRubricService(validate, logger)
	scoringService := service.NewScoringService(deps, scoringCfg, logger)
	templateService := service.NewActivityTemplateService(templateRepo, sectionRepo, validate, auditService, logger)
	submissionService := service.NewStudentSubmissionService(submissionRepo, validate, auditService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    int(cfg.MaxTotalBytes) + 1<<20,
		ReadTimeout:  cfg.CloneTimeout + 30*time.Second,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		RubricHandler:            handler.NewRubricHandler(rubricService, logger),
		ScoringHandler:           handler.NewScoringHandler(scoringService, logger),
		ActivityTemplateHandler:  handler.NewActivityTemplateHandler(templateService, logger),
		StudentSubmissionHandler: handler.NewStudentSubmissionHandler(submissionService, logger),
		AuditLogHandler:          handler.NewAuditLogHandler(auditService, logger),
		HealthChecks:             healthChecks,
		JWTMiddleware:            middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, logger)
}

// buildCloner selects the clone backend. The returned close function releases
// the docker client when one was created.
func buildCloner(cfg config.Config, logger zerolog.Logger) (corpus.Cloner, func(), error) {
	if cfg.CloneBackend != config.CloneBackendDocker {
		return corpus.ExecCloner{Depth: cfg.CloneDepth, Logger: logger}, func() {}, nil
	}

	sandbox, err := docker.NewSandbox(docker.Config{
		Host:          cfg.DockerHost,
		Timeout:       cfg.CloneTimeout,
		MemoryLimitMB: cfg.CloneMemoryMB,
		PullMissing:   true,
		Logger:        logger,
	})
	if err != nil {
		return nil, nil, err
	}

	cloner := corpus.ContainerCloner{
		Runner:   sandbox,
		Image:    cfg.GitImage,
		Depth:    cfg.CloneDepth,
		Timeout:  cfg.CloneTimeout,
		MemoryMB: cfg.CloneMemoryMB,
		Logger:   logger,
	}
	return cloner, func() { _ = sandbox.Close() }, nil
}

func buildScoringConfig(cfg config.Config) (service.ScoringConfig, error) {
	uploadPolicy, err := rubric.ParsePolicy(cfg.UploadPolicy)
	if err != nil {
		return service.ScoringConfig{}, err
	}
	repositoryPolicy, err := rubric.ParsePolicy(cfg.RepositoryPolicy)
	if err != nil {
		return service.ScoringConfig{}, err
	}
	uploadMode, err := rubric.ParseKeywordMode(cfg.UploadMode)
	if err != nil {
		return service.ScoringConfig{}, err
	}
	repositoryMode, err := rubric.ParseKeywordMode(cfg.RepositoryMode)
	if err != nil {
		return service.ScoringConfig{}, err
	}

	return service.ScoringConfig{
		UploadPolicy:     uploadPolicy,
		UploadMode:       uploadMode,
		RepositoryPolicy: repositoryPolicy,
		RepositoryMode:   repositoryMode,
		ContextLines:     cfg.ContextLines,
		Workers:          cfg.ScanWorkers,
		CacheTTL:         cfg.ScanCacheTTL,
		EventSubject:     cfg.ScoringSubject(),
	}, nil
}

func waitForShutdown(app *fiber.App, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}

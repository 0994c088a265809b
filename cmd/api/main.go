package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/therapy-api/internal/auth"
	"github.com/noah-isme/therapy-api/internal/config"
	"github.com/noah-isme/therapy-api/internal/database"
	"github.com/noah-isme/therapy-api/internal/handler"
	"github.com/noah-isme/therapy-api/internal/middleware"
	"github.com/noah-isme/therapy-api/internal/repository"
	"github.com/noah-isme/therapy-api/internal/router"
	"github.com/noah-isme/therapy-api/internal/service"
	"github.com/noah-isme/therapy-api/internal/validation"
	"github.com/noah-isme/therapy-api/pkg/ai"
	cloud "github.com/noah-isme/therapy-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	if cfg.AppEnv == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(rootCtx, cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, stats cache and relay fan-out disabled")
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.NATSURL, nats.Name(cfg.AppName))
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, relay fan-out falls back to redis")
			natsConn = nil
		} else {
			defer natsConn.Close()
		}
	}

	var media service.MediaStore
	if cfg.MediaStorageEnabled() {
		store, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		media = store
	}

	analyzer, err := ai.NewClient(ai.Config{
		BaseURL: cfg.AIServiceURL,
		Timeout: cfg.AITimeout,
		Logger:  logger,
	})
	if err != nil {
		log.Fatalf("failed to create ai client: %v", err)
	}

	validator := validation.New()
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	passwords := auth.NewPasswordHasher(cfg.BcryptCost)

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	iepRepo := repository.NewIEPRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	analysisRepo := repository.NewAnalysisRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	activityService := service.NewActivityService(activityRepo, logger)
	statsCache := service.NewStatsCache(redisClient, cfg.StatsCacheTTL, "therapy", logger)
	authService := service.NewAuthService(userRepo, tokens, passwords, validator, logger)
	studentService := service.NewStudentService(studentRepo, userRepo, service.StudentStatsSources{
		Progress: progressRepo,
		Plans:    iepRepo,
		Sessions: sessionRepo,
	}, validator, activityService, service.StudentServiceConfig{Stats: statsCache}, logger)
	sessionService := service.NewSessionService(sessionRepo, studentRepo, validator, activityService, statsCache, logger)
	iepService := service.NewIEPService(iepRepo, studentRepo, validator, activityService, statsCache, logger)
	progressService := service.NewProgressService(progressRepo, studentRepo, validator, activityService, statsCache, logger)
	analysisService := service.NewAnalysisService(analysisRepo, service.AnalysisSources{
		Students: studentRepo,
		Sessions: sessionRepo,
		Progress: progressRepo,
		Plans:    iepRepo,
	}, analyzer, validator, activityService, service.AnalysisServiceConfig{
		MediaMaxBytes: int64(cfg.AIMediaMaxMB) << 20,
		Media:         media,
	}, logger)
	relayService := service.NewRelayService(studentRepo, service.RelayFanout{
		Redis:   redisClient,
		NATS:    natsConn,
		Channel: cfg.RelayChannel,
	}, logger)
	relayService.Start(rootCtx)

	probes := []handler.HealthProbe{{
		Name: "database",
		Check: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}}
	if redisClient != nil {
		probes = append(probes, handler.HealthProbe{
			Name: "redis",
			Check: func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		})
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.AIMediaMaxMB*4/3 + 1) << 20,
	})

	middleware.Register(app, middleware.Config{
		Logger:      &logger,
		CORSOrigins: cfg.CORSOrigins,
		AccessLog:   cfg.AppEnv != "production",
	})
	router.Register(app, cfg, router.Dependencies{
		AuthHandler:     handler.NewAuthHandler(authService, logger),
		StudentHandler:  handler.NewStudentHandler(studentService, progressService, logger),
		SessionHandler:  handler.NewSessionHandler(sessionService, logger),
		IEPHandler:      handler.NewIEPHandler(iepService, logger),
		AnalysisHandler: handler.NewAnalysisHandler(analysisService, logger),
		RelayHandler:    handler.NewRelayHandler(relayService, logger),
		ActivityHandler: handler.NewActivityHandler(activityService, logger),
		HealthProbes:    probes,
		Resolver:        authService,
		AuthLimiter:     middleware.RateLimit("auth", cfg.AuthRateLimit, time.Minute),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, cancelRoot)
}

func waitForShutdown(app *fiber.App, stopBackground context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()
	stopBackground()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"videotube-backend/internal/account"
	"videotube-backend/internal/auth"
	"videotube-backend/internal/channel"
	"videotube-backend/internal/config"
	"videotube-backend/internal/db"
	"videotube-backend/internal/httpapi"
	"videotube-backend/internal/maintenance"
	"videotube-backend/internal/media"
	"videotube-backend/internal/observability"
	"videotube-backend/internal/users"
	"videotube-backend/internal/video"
)

const registerBodyLimit = 2*media.MaxImageBytes + 1<<20

type Options struct {
	LoadDotEnv bool
	// RunMigrations forces Postgres migrations regardless of
	// RUN_MIGRATIONS_ON_STARTUP.
	RunMigrations bool
}

type Runtime struct {
	Handler http.Handler
	Config  *config.Config
	Logger  *zap.Logger
	Close   func() error
}

// Deps are the backends the HTTP surface is assembled from.
type Deps struct {
	Config       *config.Config
	Logger       *zap.Logger
	Users        users.Store
	Videos       video.Repository
	Channels     channel.Queries
	Uploader     media.Uploader
	LoginCounter auth.HitCounter
}

func Build(ctx context.Context, options Options) (*Runtime, error) {
	cfg, err := config.Load(config.Options{LoadDotEnv: options.LoadDotEnv})
	if err != nil {
		return nil, err
	}

	logger, err := observability.NewLogger(cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	if err := observability.InitSentry(cfg.SentryDSN, cfg.Env); err != nil {
		logger.Error("init_sentry_failed", zap.Error(err))
	}

	var closers []func() error
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		observability.FlushSentry()
		_ = logger.Sync()
		return errors.Join(errs...)
	}
	fail := func(err error) (*Runtime, error) {
		_ = closeAll()
		return nil, err
	}

	deps := Deps{Config: cfg, Logger: logger}

	switch cfg.StoreDriver {
	case config.StorePostgres:
		database, err := db.OpenPostgres(ctx, cfg.Postgres.URL, cfg.Postgres.Pool)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, database.Close)

		if options.RunMigrations || cfg.Postgres.RunMigrations {
			if err := db.RunMigrations(ctx, database, logger); err != nil {
				return fail(fmt.Errorf("run migrations: %w", err))
			}
		}

		deps.Users = users.NewPostgresStore(database)
		deps.Videos = video.NewPostgresRepository(database)
		deps.Channels = channel.NewPostgresQueries(database)
	default:
		database, err := db.ConnectMongo(ctx, cfg.Mongo.URI, cfg.Mongo.Database, logger)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() error { return database.Client().Disconnect(context.Background()) })

		if err := db.EnsureIndexes(ctx, database); err != nil {
			return fail(err)
		}

		deps.Users = users.NewMongoStore(database)
		deps.Videos = video.NewMongoRepository(database)
		deps.Channels = channel.NewMongoQueries(database)
	}

	switch cfg.Media.Driver {
	case config.MediaS3:
		uploader, err := media.NewS3Uploader(ctx, cfg.Media.S3)
		if err != nil {
			return fail(fmt.Errorf("init s3: %w", err))
		}
		deps.Uploader = uploader
	default:
		uploader, err := media.NewCloudinary(cfg.Media.CloudinaryURL)
		if err != nil {
			return fail(fmt.Errorf("init cloudinary: %w", err))
		}
		deps.Uploader = uploader
	}

	switch cfg.LoginRateLimit.Driver {
	case config.LimiterRedis:
		rdb, err := db.ConnectRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, rdb.Close)
		deps.LoginCounter = auth.NewRedisCounter(rdb, cfg.LoginRateLimit.Max, cfg.LoginRateLimit.Window)
	default:
		deps.LoginCounter = auth.NewMemoryCounter(cfg.LoginRateLimit.Max, cfg.LoginRateLimit.Window)
	}

	return &Runtime{
		Handler: NewHandler(deps),
		Config:  cfg,
		Logger:  logger,
		Close:   closeAll,
	}, nil
}

func NewHandler(deps Deps) http.Handler {
	cfg, logger := deps.Config, deps.Logger
	dispatcher := httpapi.NewDispatcher(logger)

	issuer := auth.NewTokenIssuer(cfg.Tokens, deps.Users)
	verifier := auth.NewTokenVerifier(cfg.Tokens, deps.Users)
	gate := auth.NewGate(verifier, dispatcher)
	cookies := auth.NewCookies(cfg.Cookies, cfg.Tokens)
	loginLimiter := auth.NewLoginRateLimiter(deps.LoginCounter, dispatcher, logger)

	authHandler := auth.NewHandler(auth.NewService(deps.Users, issuer, verifier, deps.Uploader, logger), cookies)
	accountHandler := account.NewHandler(account.NewService(deps.Users, deps.Uploader, logger))
	videoHandler := video.NewHandler(video.NewService(deps.Videos, deps.Uploader, logger))
	channelHandler := channel.NewHandler(channel.NewService(deps.Channels, deps.Users, logger))
	cleanupHandler := maintenance.NewCleanupHandler(deps.Users, logger, cfg.CronSecret, cfg.CleanupBatch)

	protected := func(fn httpapi.HandlerFunc, opts ...httpapi.Option) http.Handler {
		return gate.Require(dispatcher.Handle(fn, opts...))
	}
	imageUpload := httpapi.WithBodyLimit(media.MaxImageBytes + 1<<20)

	mux := http.NewServeMux()
	mux.Handle("POST /api/v1/users/register", dispatcher.Handle(authHandler.Register, httpapi.WithBodyLimit(registerBodyLimit)))
	mux.Handle("POST /api/v1/users/login", loginLimiter.Middleware(dispatcher.Handle(authHandler.Login)))
	mux.Handle("POST /api/v1/users/logout", protected(authHandler.Logout))
	mux.Handle("POST /api/v1/users/refresh-token", dispatcher.Handle(authHandler.Refresh))

	mux.Handle("GET /api/v1/users/current-user", protected(accountHandler.CurrentUser))
	mux.Handle("POST /api/v1/users/change-password", protected(accountHandler.ChangePassword))
	mux.Handle("PATCH /api/v1/users/update-details", protected(accountHandler.UpdateDetails))
	mux.Handle("PATCH /api/v1/users/update-avatar", protected(accountHandler.UpdateAvatar, imageUpload))
	mux.Handle("PATCH /api/v1/users/update-cover-image", protected(accountHandler.UpdateCoverImage, imageUpload))

	mux.Handle("GET /api/v1/users/c/{username}", protected(channelHandler.Profile))
	mux.Handle("GET /api/v1/users/history", protected(channelHandler.WatchHistory))
	mux.Handle("POST /api/v1/subscriptions/c/{channelId}", protected(channelHandler.ToggleSubscription))

	mux.Handle("GET /api/v1/videos", dispatcher.Handle(videoHandler.List))
	mux.Handle("POST /api/v1/videos", protected(videoHandler.Publish, httpapi.WithBodyLimit(video.PublishBodyLimit)))
	mux.Handle("GET /api/v1/videos/{videoId}", protected(videoHandler.Get))

	mux.Handle("GET /internal/maintenance/cleanup", cleanupHandler)
	mux.Handle("POST /internal/maintenance/cleanup", cleanupHandler)
	mux.HandleFunc("GET /health", healthHandler(deps.Users))

	return observability.RequestIDMiddleware(
		observability.RecoverMiddleware(logger,
			observability.RequestLoggingMiddleware(logger, mux),
		),
	)
}

type pinger interface {
	Ping(ctx context.Context) error
}

func healthHandler(store pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if err := store.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]any{"status": "degraded", "time": time.Now().UTC().Format(time.RFC3339)}
		}

		httpapi.WriteJSON(w, status, body)
	}
}

package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"

	"chartlens-backend/internal/admin"
	"chartlens-backend/internal/analyses"
	googleauth "chartlens-backend/internal/auth"
	"chartlens-backend/internal/entitlements"
	"chartlens-backend/internal/history"
	"chartlens-backend/internal/payments"
	"chartlens-backend/internal/services/health"
	"chartlens-backend/internal/shared/config"
	"chartlens-backend/internal/shared/server"
	"chartlens-backend/internal/shared/server/middleware"
	"chartlens-backend/internal/shared/storage/db"
	"chartlens-backend/internal/shared/storage/localdb"
	"chartlens-backend/internal/shared/storage/object"
	localstore "chartlens-backend/internal/shared/storage/object/local"
	s3store "chartlens-backend/internal/shared/storage/object/s3"
	"chartlens-backend/internal/shared/telemetry"
	"chartlens-backend/internal/usage"
	"chartlens-backend/internal/users"
	"chartlens-backend/internal/vision"
	"chartlens-backend/internal/vision/groq"
	"chartlens-backend/internal/waitlist"
)

// App owns the wired dependency graph and its background jobs.
type App struct {
	Cfg    config.Config
	Router *gin.Engine

	scheduler *cron.Cron
	localDB   *sql.DB
	remoteDB  *sql.DB
}

// Build connects storage, wires services and handlers, and starts the
// limiter sweep job. Dev setups without DATABASE_URL run fully on the
// local database and in-memory repos.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	local, err := localdb.Open(cfg.LocalDBPath)
	if err != nil {
		telemetry.Warn("bootstrap.local_db_unavailable", map[string]any{"error": err.Error()})
		local, err = localdb.OpenMemory()
		if err != nil {
			return nil, fmt.Errorf("open local db: %w", err)
		}
	}

	remote := connectRemote(ctx, cfg)

	objects, err := buildObjectStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var visionClient vision.Client
	if groqClient := groq.New(groq.Options{
		APIKey:  cfg.VisionAPIKey,
		BaseURL: cfg.VisionBaseURL,
		Model:   cfg.VisionModel,
	}); groqClient != nil {
		visionClient = groqClient
	}

	var entitlementRepo entitlements.Repo
	var waitlistRepo waitlist.Repo
	var userRepo users.Repo
	var remoteHistory history.Repo
	var stats admin.StatsSource
	if remote != nil {
		entitlementRepo = entitlements.NewPGRepo(remote)
		waitlistRepo = waitlist.NewPGRepo(remote)
		userRepo = &users.PGRepo{DB: remote}
		remoteHistory = history.NewPGRepo(remote, cfg.HistoryLimit)
		stats = admin.NewPGStats(remote)
	} else {
		entitlementRepo = entitlements.NewMemoryRepo()
		waitlistRepo = waitlist.NewMemoryRepo()
		userRepo = users.NewMemoryRepo()
		stats = admin.NewSQLiteStats(local)
	}

	entitlementSvc := entitlements.NewService(entitlementRepo)
	usageSvc := usage.NewService(usage.NewSQLiteStore(local), entitlementSvc, cfg.FreeAnalysisLimit)
	historySvc := history.NewService(history.NewSQLiteRepo(local, cfg.HistoryLimit), remoteHistory, objects)
	analysisSvc := analyses.NewService(visionClient, usageSvc, historySvc, objects)

	checkout := payments.NewCheckoutClient(payments.CheckoutOptions{
		SecretKey:  cfg.StripeSecretKey,
		SuccessURL: cfg.CheckoutSuccessURL,
		CancelURL:  cfg.CheckoutCancelURL,
	})

	googleSvc := googleauth.NewGoogleService(
		cfg.GoogleClientID,
		cfg.GoogleClientSecret,
		cfg.GoogleRedirectURL,
		cfg.UIRedirectURL,
		users.NewService(userRepo),
		entitlementSvc,
	)

	limiter := middleware.NewWindowLimiter(cfg.RateLimitWindow, cfg.RateLimitMax, nil)
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@every 5m", func() {
		if removed := limiter.Sweep(); removed > 0 {
			telemetry.Info("rate_limit.sweep", map[string]any{
				"removed": removed,
				"tracked": limiter.Size(),
			})
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule limiter sweep: %w", err)
	}
	scheduler.Start()

	router := server.NewRouter(server.Deps{
		Cfg:      cfg,
		Limiter:  limiter,
		Health:   health.NewService(),
		Analyses: analyses.NewHandler(analysisSvc),
		Usage:    usage.NewHandler(usageSvc),
		History:  history.NewHandler(historySvc),
		Payments: payments.NewHandler(checkout, entitlementSvc, cfg.StripeWebhookSecret),
		Waitlist: waitlist.NewHandler(waitlistRepo),
		Admin:    admin.NewHandler(cfg.AdminKey, stats, waitlistRepo, entitlementSvc),
		Google:   googleSvc,
	})

	return &App{
		Cfg:       cfg,
		Router:    router,
		scheduler: scheduler,
		localDB:   local,
		remoteDB:  remote,
	}, nil
}

// Close stops background jobs and releases database handles.
func (a *App) Close() {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.localDB != nil {
		a.localDB.Close()
	}
	if a.remoteDB != nil {
		a.remoteDB.Close()
	}
}

func connectRemote(ctx context.Context, cfg config.Config) *sql.DB {
	if cfg.DatabaseURL == "" {
		return nil
	}

	remote, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err != nil {
		telemetry.Warn("bootstrap.remote_db_unavailable", map[string]any{"error": err.Error()})
		return nil
	}
	if err := db.RunMigrations(ctx, remote); err != nil {
		telemetry.Warn("bootstrap.migrations_failed", map[string]any{"error": err.Error()})
		remote.Close()
		return nil
	}
	return remote
}

func buildObjectStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	if cfg.ObjectStore == "s3" {
		store, err := s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix)
		if err != nil {
			return nil, fmt.Errorf("build s3 store: %w", err)
		}
		return store, nil
	}
	return localstore.New(cfg.LocalDataDir), nil
}

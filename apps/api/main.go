package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/orderline-app/orderline/contracts"
	accountshandler "github.com/orderline-app/orderline/domains/accounts/be/handler"
	accountsservice "github.com/orderline-app/orderline/domains/accounts/be/service"
	cataloghandler "github.com/orderline-app/orderline/domains/catalog/be/handler"
	catalogrepo "github.com/orderline-app/orderline/domains/catalog/be/repo"
	catalogservice "github.com/orderline-app/orderline/domains/catalog/be/service"
	conversationshandler "github.com/orderline-app/orderline/domains/conversations/be/handler"
	conversationsrepo "github.com/orderline-app/orderline/domains/conversations/be/repo"
	conversationsservice "github.com/orderline-app/orderline/domains/conversations/be/service"
	ecosystemhandler "github.com/orderline-app/orderline/domains/ecosystem/be/handler"
	ecosystemservice "github.com/orderline-app/orderline/domains/ecosystem/be/service"
	ordershandler "github.com/orderline-app/orderline/domains/orders/be/handler"
	ordersrepo "github.com/orderline-app/orderline/domains/orders/be/repo"
	ordersservice "github.com/orderline-app/orderline/domains/orders/be/service"
	settingshandler "github.com/orderline-app/orderline/domains/settings/be/handler"
	settingsservice "github.com/orderline-app/orderline/domains/settings/be/service"
	storeshandler "github.com/orderline-app/orderline/domains/stores/be/handler"
	storesprov "github.com/orderline-app/orderline/domains/stores/be/provisioning"
	storesrepo "github.com/orderline-app/orderline/domains/stores/be/repo"
	storesservice "github.com/orderline-app/orderline/domains/stores/be/service"
	platformauth "github.com/orderline-app/orderline/platform/go/auth"
	platformlogging "github.com/orderline-app/orderline/platform/go/logging"
	"github.com/orderline-app/orderline/platform/go/metrics"
	platformmiddleware "github.com/orderline-app/orderline/platform/go/middleware"
	"github.com/orderline-app/orderline/platform/go/persistence"
	platformstorage "github.com/orderline-app/orderline/platform/go/storage"
	"github.com/orderline-app/orderline/platform/go/tenant"
	tenantmiddleware "github.com/orderline-app/orderline/platform/go/tenant/middleware"
)

type config struct {
	Port            string        `env:"PORT" envDefault:"3000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"60s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	DatabaseURL     string        `env:"DATABASE_URL,required"`
	DBPoolMax       int32         `env:"DB_POOL_MAX" envDefault:"20"`
	DBPoolMin       int32         `env:"DB_POOL_MIN" envDefault:"2"`
	DBMaxUses       int64         `env:"DB_MAX_USES" envDefault:"7500"`
	DBMaxLifetime   time.Duration `env:"DB_MAX_LIFETIME" envDefault:"30m"`
	DBIdleTimeout   time.Duration `env:"DB_IDLE_TIMEOUT" envDefault:"10m"`
	SessionSecret   string        `env:"SESSION_SECRET,required"`
	SessionTTL      time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	StorageBackend  string        `env:"STORAGE_BACKEND" envDefault:"local"`             // gcs | local
	StorageBucket   string        `env:"STORAGE_BUCKET"`                                 // required when STORAGE_BACKEND=gcs
	StorageLocalDir string        `env:"STORAGE_LOCAL_DIR" envDefault:"./.data/storage"` // used when STORAGE_BACKEND=local
}

func main() {
	ctx := context.Background()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component: "api-server",
		Level:     cfg.LogLevel,
	})
	if err != nil {
		log.Fatalf("init zap logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	poolCfg := persistence.PoolConfig{
		ConnString:      cfg.DatabaseURL,
		MaxConns:        cfg.DBPoolMax,
		MinConns:        cfg.DBPoolMin,
		MaxConnUses:     cfg.DBMaxUses,
		MaxConnLifetime: cfg.DBMaxLifetime,
		MaxConnIdleTime: cfg.DBIdleTimeout,
	}

	masterPool, err := persistence.NewPool(ctx, poolCfg, logger)
	if err != nil {
		logger.Fatal("init master postgres pool", zap.Error(err))
	}
	defer persistence.ClosePool(masterPool)

	registry := persistence.NewPoolRegistry(poolCfg, logger)
	defer registry.CloseAll()

	masterExec := persistence.NewExecutor(masterPool, logger)
	masterDB := persistence.NewStoreDB(masterExec, persistence.MasterSchema)
	masterStore := persistence.NewMasterStore(masterDB)

	resolver := tenant.NewResolver(persistence.NewStoreRegistry(masterStore), cfg.DatabaseURL)
	connCache := tenant.NewConnCache(resolver, registry, logger)

	settingsValidator, err := persistence.NewSettingsValidator()
	if err != nil {
		logger.Fatal("init settings validator", zap.Error(err))
	}

	issuer, err := platformauth.NewTokenIssuer(cfg.SessionSecret, "orderline")
	if err != nil {
		logger.Fatal("init token issuer", zap.Error(err))
	}

	var blobs platformstorage.BlobWriter
	switch cfg.StorageBackend {
	case "gcs":
		if cfg.StorageBucket == "" {
			logger.Fatal("storage bucket required when STORAGE_BACKEND=gcs")
		}
		gcsClient, err := gcs.NewClient(ctx)
		if err != nil {
			logger.Fatal("init gcs client", zap.Error(err))
		}
		defer gcsClient.Close()
		blobs = platformstorage.NewGCSProvisioner(gcsClient)
	case "local":
		if strings.TrimSpace(cfg.StorageLocalDir) == "" {
			logger.Fatal("storage local dir required when STORAGE_BACKEND=local")
		}
		if cfg.StorageBucket == "" {
			cfg.StorageBucket = "orderline-media"
		}
		blobs = platformstorage.NewLocalProvisioner(cfg.StorageLocalDir)
	default:
		logger.Fatal("invalid STORAGE_BACKEND (use gcs or local)", zap.String("backend", cfg.StorageBackend))
	}
	dbProv := storesprov.NewDBProvisioner(masterPool)

	storesRepo := storesrepo.NewMasterRepository(masterStore)
	storesService := storesservice.New(storesRepo, dbProv, connCache, cfg.DatabaseURL, logger)
	storesHTTPHandler := storeshandler.New(storesService, logger)

	ecosystemService := ecosystemservice.New(masterPool, storesRepo, dbProv, connCache, cfg.DatabaseURL, logger)
	ecosystemHTTPHandler := ecosystemhandler.New(ecosystemService, logger)

	accountsService := accountsservice.New(masterStore, issuer, cfg.SessionTTL)
	accountsHTTPHandler := accountshandler.New(accountsService, logger)

	catalogService := catalogservice.New(catalogrepo.New())
	catalogHTTPHandler := cataloghandler.New(catalogService, blobs, cfg.StorageBucket, logger)

	ordersService := ordersservice.New(ordersrepo.New())
	ordersHTTPHandler := ordershandler.New(ordersService, logger)

	conversationsService := conversationsservice.New(conversationsrepo.New())
	conversationsHTTPHandler := conversationshandler.New(conversationsService, logger)

	settingsService := settingsservice.New()
	settingsHTTPHandler := settingshandler.New(settingsService, logger)

	metrics.StartPoolGauge(ctx, registry, logger)

	rootRouter := chi.NewRouter()

	rootRouter.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		chimw.Timeout(cfg.RequestTimeout),
		platformmiddleware.DefaultCORS(),
	)

	rootRouter.Use(platformlogging.RequestLogger(logger))

	rootRouter.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rootRouter.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := masterPool.Ping(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	rootRouter.Handle("/metrics", promhttp.Handler())

	apiRouter := chi.NewRouter()
	apiRouter.Use(platformauth.JWT(issuer.Verify))
	apiRouter.Use(platformmiddleware.RequestTrace)
	apiRouter.Use(tenantmiddleware.WithStoreContext(connCache, settingsValidator, logger))

	// Login and the WhatsApp webhook stay reachable without a session.
	accountsHTTPHandler.Routes(apiRouter)
	conversationsHTTPHandler.WebhookRoutes(apiRouter)

	apiRouter.Group(func(r chi.Router) {
		r.Use(platformauth.RequireAccess(platformauth.AccessStore))
		catalogHTTPHandler.Routes(r)
		ordersHTTPHandler.Routes(r)
		conversationsHTTPHandler.Routes(r)
		settingsHTTPHandler.Routes(r)
	})

	adminValidator, err := platformmiddleware.NewContractValidator(contracts.Admin())
	if err != nil {
		logger.Fatal("build admin contract validator", zap.Error(err))
	}
	apiRouter.Group(func(r chi.Router) {
		r.Use(platformauth.RequireAccess(platformauth.AccessGlobal))
		r.Use(adminValidator)
		storesHTTPHandler.Routes(r)
		ecosystemHTTPHandler.Routes(r)
		accountsHTTPHandler.AdminRoutes(r)
	})

	rootRouter.Mount("/api/v1", apiRouter)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      rootRouter,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		logger.Info("starting api server", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server listen failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

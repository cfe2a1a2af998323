package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/game_store/internal/dedupe"
	"github.com/Skotchmaster/game_store/internal/httpserver"
	"github.com/Skotchmaster/game_store/internal/models"
	"github.com/Skotchmaster/game_store/internal/paypalgw"
	"github.com/Skotchmaster/game_store/internal/repo"
	"github.com/Skotchmaster/game_store/internal/search"
	"github.com/Skotchmaster/game_store/internal/service"
	"github.com/Skotchmaster/game_store/pkg/config"
	pkgdb "github.com/Skotchmaster/game_store/pkg/db"
	"github.com/Skotchmaster/game_store/pkg/events"
	"github.com/Skotchmaster/game_store/pkg/logging"
	loggingmw "github.com/Skotchmaster/game_store/pkg/middleware/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: could not load .env: %v", err)
	}

	cfg := config.Load()
	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	config.MustNonEmptyBytes(cfg.JWTSecret, "JWT_SECRET")
	config.MustNonEmpty(cfg.PayPal.ClientID, "PAYPAL_CLIENT_ID")
	config.MustNonEmpty(cfg.PayPal.ClientSecret, "PAYPAL_CLIENT_SECRET")
	config.MustOneOf(cfg.ProductDeleteMode, "PRODUCT_DELETE_MODE", service.DeleteLogical, service.DeletePhysical)
	if !cfg.IsDevelopment() {
		config.MustNonEmpty(cfg.PayPal.WebhookID, "PAYPAL_WEBHOOK_ID")
	}

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := pkgdb.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	if cfg.DBAutoMigrate {
		if err := models.AutoMigrate(db); err != nil {
			log.Fatalf("auto migrate: %v", err)
		}
	}

	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaProducer(cfg.KafkaBrokers)
	} else {
		logger.Warn("kafka_disabled", "reason", "KAFKA_BROKERS is empty")
	}

	r := &repo.GormRepo{DB: db}
	catalog := &service.CatalogService{Repo: r, Events: publisher, DeleteMode: cfg.ProductDeleteMode}
	if cfg.ESURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		idx, err := openIndex(ctx, cfg)
		cancel()
		if err != nil {
			logger.Warn("search_disabled", "error", err)
		} else {
			catalog.Index = idx
		}
	}

	var seen dedupe.Store = dedupe.NewMemory()
	var redisStore *dedupe.Redis
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisStore, err = dedupe.NewRedisFromURL(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		seen = redisStore
	}

	gateway, err := paypalgw.New(cfg.PayPal)
	if err != nil {
		log.Fatalf("paypal: %v", err)
	}

	e := echo.New()
	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(echomw.CORS())

	httpserver.Register(e, &httpserver.Deps{
		AuthHandler: &httpserver.AuthHTTP{Svc: &service.AuthService{
			Repo:      r,
			Events:    publisher,
			JWTSecret: cfg.JWTSecret,
			TokenTTL:  cfg.JWTTTL,
		}},
		CatalogHandler: &httpserver.CatalogHTTP{Svc: catalog},
		OrderHandler:   &httpserver.OrderHTTP{Svc: &service.OrderService{Repo: r, Events: publisher}},
		PaymentHandler: &httpserver.PaymentHTTP{
			Svc: &service.PaymentService{
				Repo:                    r,
				Events:                  publisher,
				Gateway:                 gateway,
				Dedupe:                  seen,
				Currency:                cfg.PayPal.Currency,
				PublicBaseURL:           cfg.PublicBaseURL,
				SkipWebhookVerification: cfg.IsDevelopment() && cfg.PayPal.WebhookID == "",
			},
			FrontendURL: cfg.FrontendURL,
		},
		UserHandler: &httpserver.UserHTTP{Svc: &service.UserService{Repo: r, Events: publisher}},
		JWTSecret:   cfg.JWTSecret,
		Ready:       r.Ping,
	})

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.ServerPort),
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("http_listening", "addr", srv.Addr, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server_shutdown_failed", "error", err)
	}
	if err := publisher.Close(); err != nil {
		logger.Error("kafka_close_failed", "error", err)
	}
	if redisStore != nil {
		if err := redisStore.Close(); err != nil {
			logger.Error("redis_close_failed", "error", err)
		}
	}
	if err := pkgdb.Close(db); err != nil {
		logger.Error("db_close_failed", "error", err)
	}

	logger.Info("shutdown_complete")
}

func openIndex(ctx context.Context, cfg config.Config) (*search.Index, error) {
	es, err := search.NewClient(ctx, cfg.ESURL, cfg.ESUser, cfg.ESPassword)
	if err != nil {
		return nil, err
	}
	idx := search.NewIndex(es, cfg.ESIndex)
	if err := idx.EnsureIndex(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

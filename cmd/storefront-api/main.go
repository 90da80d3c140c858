package main

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nazeru/storefront-go/internal/catalog"
	"github.com/nazeru/storefront-go/internal/config"
	"github.com/nazeru/storefront-go/internal/httpapi"
	"github.com/nazeru/storefront-go/internal/identity"
	"github.com/nazeru/storefront-go/internal/order"
	"github.com/nazeru/storefront-go/internal/payment"
	"github.com/nazeru/storefront-go/pkg/logging"
	"github.com/nazeru/storefront-go/pkg/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config error: %v", err)
	}
	log := logging.New(cfg.Environment)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect error: %v", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("db ping error: %v", err)
	}

	if err := runMigrations(cfg); err != nil {
		log.Fatalf("migrate error: %v", err)
	}

	var cache *catalog.Cache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			// Cache is an optimization; the store stays authoritative.
			log.WithError(err).Warn("redis unreachable, serving uncached")
		} else {
			cache = catalog.NewCache(rdb, cfg.CatalogCacheTTL, logging.Component(log, "cache"))
		}
	}

	tokens := identity.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	identitySvc := identity.NewService(identity.NewPgxRepository(pool), tokens, logging.Component(log, "identity"))
	catalogSvc := catalog.NewService(catalog.NewPgxRepository(pool), cache, logging.Component(log, "catalog"))

	orderRepo := order.NewPgxRepository(pool, cfg.KafkaTopic)
	orderSvc := order.NewService(orderRepo, catalogSvc, logging.Component(log, "order"))

	gateway := payment.NewHTTPGateway(cfg.GatewayBaseURL, cfg.GatewaySecretKey, cfg.GatewayTimeout)
	paymentSvc := payment.NewService(gateway, orderRepo, cfg.GatewayWebhookSecret, logging.Component(log, "payment"))

	srv := httpapi.New(httpapi.Deps{
		Log:         log,
		Development: cfg.Development(),
		CORSOrigins: cfg.CORSOrigins,
		Metrics:     metrics.NewServerMetrics("storefront-api"),
		DB:          pool,
		Tokens:      tokens,
		Identity:    identitySvc,
		Catalog:     catalogSvc,
		Orders:      orderSvc,
		Payments:    paymentSvc,
	})

	log.WithField("port", cfg.Port).Info("storefront api listening")
	if err := srv.Run(cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runMigrations(cfg *config.Config) error {
	m, err := migrate.New("file://"+cfg.MigrationsDir, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "open migrations")
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "apply migrations")
	}
	return nil
}

package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rl1809/stock-ledger/internal/adapter/handler"
	"github.com/rl1809/stock-ledger/internal/adapter/storage"
	"github.com/rl1809/stock-ledger/internal/auth"
	"github.com/rl1809/stock-ledger/internal/config"
	"github.com/rl1809/stock-ledger/internal/core/service"
	"github.com/rl1809/stock-ledger/internal/port"
)

func main() {
	cfg := config.Load()

	logger, err := newLogger(cfg.LogMode)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Local replica is always present; in remote mode it is the fallback
	// target, in local mode it is the store.
	local := storage.NewMemoryStore()

	var store port.Store = local
	var db *sql.DB

	switch cfg.StoreMode {
	case config.StoreModeRemote:
		db, err = sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			sugar.Fatalw("failed to open mysql", "error", err)
		}
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.PingContext(ctx); err != nil {
			sugar.Fatalw("failed to ping mysql", "error", err)
		}
		sugar.Infow("connected to mysql")

		store = service.NewFallbackStore(storage.NewMySQLStore(db), local, cfg.RemoteTimeout, sugar)
	case config.StoreModeLocal:
		if err := local.SeedDemo(ctx, time.Now()); err != nil {
			sugar.Fatalw("failed to seed demo data", "error", err)
		}
		sugar.Infow("seeded demo catalog")
	default:
		sugar.Fatalw("unknown store mode", "mode", cfg.StoreMode)
	}

	var cache port.StockCache
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			PoolSize: 100,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			sugar.Warnw("redis unreachable, running without read cache", "error", err)
			rdb.Close()
			rdb = nil
		} else {
			sugar.Infow("connected to redis")
			redisCache := storage.NewRedisCache(rdb)
			cache = redisCache

			// Invalidation events are the reload hook for any consumer;
			// the server itself just records them.
			redisCache.SubscribeInvalidations(ctx, func(itemID string) {
				sugar.Debugw("stock invalidated", "item_id", itemID)
			})
		}
	}

	inventory := buildInventory(store, cache, sugar, cfg)
	reports := service.NewReportService(store, sugar)

	provider, err := auth.NewStaticProvider(cfg.DemoUsers)
	if err != nil {
		sugar.Fatalw("failed to load users", "error", err)
	}
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)

	h := handler.NewHTTPHandler(inventory, reports, provider, tokens, sugar)
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: h.Router(),
	}

	go func() {
		sugar.Infow("HTTP server listening", "addr", cfg.HTTPAddr, "mode", cfg.StoreMode)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			sugar.Errorw("HTTP server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sugar.Infow("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	sugar.Infow("HTTP server stopped")

	if rdb != nil {
		rdb.Close()
	}
	if db != nil {
		db.Close()
	}
	sugar.Infow("connections closed")
}

func buildInventory(store port.Store, cache port.StockCache, sugar *zap.SugaredLogger, cfg config.Config) *service.InventoryService {
	var opts []service.Option
	if cfg.AllowDuplicateSKU {
		opts = append(opts, service.WithAllowDuplicateSKU())
	}
	return service.NewInventoryService(store, cache, sugar, opts...)
}

func newLogger(mode string) (*zap.Logger, error) {
	if mode == "prod" || mode == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

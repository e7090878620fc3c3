package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nmanh/voucherhub/internal/adapter/handler"
	"github.com/nmanh/voucherhub/internal/adapter/storage"
	"github.com/nmanh/voucherhub/internal/cache"
	"github.com/nmanh/voucherhub/internal/config"
	"github.com/nmanh/voucherhub/internal/core/service"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Info().Msg("starting voucherhub")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open mysql")
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping mysql")
	}
	log.Info().Msg("connected to mysql")

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: cfg.RedisPoolSize,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("failed to connect redis")
	}
	log.Info().Msg("connected to redis")

	// Adapters
	mysqlAdapter := storage.NewMySQLAdapter(db)
	gate := storage.NewRedisGate(rdb, cfg.StreamName)
	queue := storage.NewRedisOrderQueue(rdb, cfg.StreamName, cfg.GroupName, cfg.ConsumerName, cfg.WorkerBlockTimeout)
	locks := storage.NewRedisLockManager(rdb)
	ids := storage.NewRedisIDGenerator(rdb)
	cacheClient := cache.NewClient(rdb, log.Logger, cfg.RebuildWorkers, cfg.NullTTL, cfg.CacheLockTTL)

	if err := queue.EnsureGroup(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to create consumer group")
	}

	// Seed the admission counters from the relational ledger. SetNX inside,
	// so a restart mid-sale leaves live counters untouched.
	vouchers, err := mysqlAdapter.ListActiveVouchers(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to list active vouchers")
	}
	for _, v := range vouchers {
		if err := gate.SeedStock(ctx, v.ID, v.Stock); err != nil {
			log.Fatal().Err(err).Int64("voucher", v.ID).Msg("failed to seed stock")
		}
	}
	log.Info().Int("vouchers", len(vouchers)).Msg("admission counters seeded")

	// Services
	shopService := service.NewShopService(cacheClient, mysqlAdapter, mysqlAdapter,
		cfg.ShopCacheTTL, cfg.VoucherCacheTTL, log.Logger)
	orderService := service.NewOrderService(gate, ids, log.Logger)
	worker := service.NewOrderWorker(queue, locks, mysqlAdapter, cfg.OrderLockTTL, log.Logger)

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Run(ctx)
	}()

	// HTTP
	httpHandler := handler.NewHTTPHandler(shopService, orderService, log.Logger)
	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpHandler.Routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	log.Info().Msg("http server stopped")

	cancel()
	<-workerDone
	log.Info().Msg("order worker stopped")

	cacheClient.Close()
	rdb.Close()
	db.Close()
	log.Info().Msg("connections closed")
}

package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"cine-pos/internal/cart"
	"cine-pos/internal/catalog"
	"cine-pos/internal/config"
	"cine-pos/internal/database/migrations"
	"cine-pos/internal/kafka"
	"cine-pos/internal/logger"
	"cine-pos/internal/pos"
	"cine-pos/internal/pos/api"
	posdb "cine-pos/internal/pos/db"
	"cine-pos/internal/seats"
	seatsredis "cine-pos/internal/seats/redis"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()
	log := logger.NewLogger()
	defer log.Close()

	// --- PostgreSQL Setup ---
	sqldb, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to open Postgres: %v", err))
	}
	defer sqldb.Close()

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	if err := sqldb.Ping(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to Postgres: %v", err))
	}
	bunDB := bun.NewDB(sqldb, pgdialect.New())

	// --- Migrations ---
	migrationOpts := migrations.DefaultOptions()
	if migrationOpts.AutoMigrate {
		runner := migrations.NewRunner(bunDB, migrationOpts)
		if err := runner.RunMigrations(); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
		}
	}

	// --- Redis Setup ---
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	log.Info("REDIS", "Connecting to Redis...")
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatal("REDIS", fmt.Sprintf("Failed to connect to Redis: %v", err))
	}

	// --- Initialize Dependencies ---
	dbLayer := &posdb.DB{Bun: bunDB}
	catalogSvc := catalog.NewService(bunDB)
	holds := seatsredis.NewHolds(redisClient, log, cfg.POS.SeatHoldTTL)
	tracker := seats.NewTracker(dbLayer, holds)
	cartStore := cart.NewStore(redisClient, cfg.POS.CartTTL)
	producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, log, cfg.Kafka.MockMode || !cfg.Kafka.Enabled)
	defer producer.Close()

	log.Info("POS", "Initializing till service...")
	service := pos.NewService(catalogSvc, tracker, cartStore, dbLayer, producer, log)
	handler := &api.Handler{
		Service:  service,
		Sessions: pos.NewSessionManager(),
		Catalog:  catalogSvc,
	}

	// --- Setup Router ---
	r := chi.NewRouter()
	handler.Routes(r)

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("POS", fmt.Sprintf("POS service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("POS", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("POS", "Shutdown signal received. Cleaning up...")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatal("POS", fmt.Sprintf("Server forced to shutdown: %v", err))
	}

	log.Info("POS", "Server exited gracefully")
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/AnujaKalahara99/camconnectit/internal/logging"
	"github.com/AnujaKalahara99/camconnectit/internal/polling"
	"github.com/AnujaKalahara99/camconnectit/internal/server"
	"github.com/AnujaKalahara99/camconnectit/internal/signaling"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logging.Init(slog.LevelInfo)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Polling messages live in Redis when an address is configured, so
	// multiple server replicas can serve the same session. Without one a
	// single-process in-memory log is used.
	var store polling.MessageLog
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := client.Ping(ctx).Err(); err != nil {
			cancel()
			slog.Error("redis unreachable", "addr", addr, "error", err)
			os.Exit(1)
		}
		cancel()
		defer client.Close()
		store = polling.NewRedisLog(client)
		slog.Info("polling store backed by redis", "addr", addr)
	} else {
		store = polling.NewMemoryLog()
		slog.Info("polling store in memory")
	}

	hub := signaling.NewHub()
	go hub.Run()

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: server.NewRouter(hub, store),
	}

	go func() {
		slog.Info("signaling server listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	slog.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown failed", "error", err)
	}
}

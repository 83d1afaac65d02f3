package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/lmittmann/tint"

	"github.com/WiggoHelgesson/stridefeed/internal/auth"
	"github.com/WiggoHelgesson/stridefeed/internal/backend"
	"github.com/WiggoHelgesson/stridefeed/internal/cache"
	"github.com/WiggoHelgesson/stridefeed/internal/config"
	"github.com/WiggoHelgesson/stridefeed/internal/engine"
	"github.com/WiggoHelgesson/stridefeed/internal/handlers"
	"github.com/WiggoHelgesson/stridefeed/internal/middleware"
	"github.com/WiggoHelgesson/stridefeed/internal/prefetch"
	"github.com/WiggoHelgesson/stridefeed/internal/presence"
	"github.com/WiggoHelgesson/stridefeed/internal/realtime"
	"github.com/WiggoHelgesson/stridefeed/internal/utils"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	})))

	metrics := utils.NewMetricsCollector()

	store, err := cache.NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.FeedTTL)
	if err != nil {
		slog.Error("Failed to connect to feed cache", "addr", cfg.Redis.Addr, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	session := auth.NewSession(cfg.Backend.AccessToken)
	api := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.APIKey, session, cfg.Backend.RequestTimeout)

	prefetcher := prefetch.NewPrefetcher(0)
	defer prefetcher.Stop()

	system := actor.NewActorSystem()
	eng := engine.NewEngine(system, api, store, prefetcher, metrics)

	presencePoller := presence.NewPoller(api, 0)
	defer presencePoller.Stop()

	var subscriber *realtime.Subscriber
	if cfg.Realtime.Endpoint != "" {
		subscriber = realtime.NewSubscriber(cfg.Realtime.Endpoint, system.Root, eng.GetFeedActor(), eng.GetThreadActor())
		defer subscriber.Stop()
	}

	server := handlers.NewServer(system, eng, metrics, presencePoller, subscriber)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", server.HandleHealth())
	mux.HandleFunc("/feed", server.HandleFeed())
	mux.HandleFunc("/feed/refresh", server.HandleFeedRefresh())
	mux.HandleFunc("/feed/more", server.HandleFeedMore())
	mux.HandleFunc("/post", server.HandlePost())
	mux.HandleFunc("/post/like", server.HandlePostLike())
	mux.HandleFunc("/comments", server.HandleComments())
	mux.HandleFunc("/comment", server.HandleComment())
	mux.HandleFunc("/comment/like", server.HandleCommentLike())
	mux.HandleFunc("/presence", server.HandlePresence())

	handler := middleware.CORSMiddleware(nil)(mux)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		slog.Info("Starting feed engine", "addr", addr, "backend", cfg.Backend.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	slog.Info("Shutting down")
	httpServer.Close()
}

package main

import (
	"context"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"chatterbox/internal/api"
	"chatterbox/internal/config"
	"chatterbox/internal/presence"
	"chatterbox/internal/registry"
	"chatterbox/internal/subscriber"
	"chatterbox/internal/ws"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	conf, err := config.New()
	if err != nil {
		return err
	}

	var loggerOpts slog.HandlerOptions
	if conf.Env == config.EnvDev {
		loggerOpts = slog.HandlerOptions{Level: slog.LevelDebug}
	}

	jsonHandler := slog.NewJSONHandler(os.Stdout, &loggerOpts)
	logger := slog.New(jsonHandler)

	reg := registry.New(conf.Rooms)
	opts := ws.Options{
		SendBufferSize: conf.SendBufferSize,
		WriteTimeout:   conf.WriteTimeout,
		PingPeriod:     conf.PingPeriod,
		MaxMessageSize: conf.MaxMessageSize,
		TypingWindow:   conf.TypingWindow,
		Clock:          time.Now,
	}

	var reporter presence.Reporter = presence.NopReporter{}
	var redisClient *redis.Client
	if conf.RedisEnabled() {
		redisClient = redis.NewClient(&redis.Options{Addr: net.JoinHostPort(conf.RedisHost, conf.RedisPort)})
		defer redisClient.Close()

		redisReporter := presence.NewRedisReporter(redisClient, presence.NewCounter(reg), conf.RedisPresenceKey, conf.RedisPresenceTTL, logger)
		reporter = redisReporter
		go func() {
			if err := redisReporter.Run(ctx); err != nil {
				logger.Error("presence reporter stopped with error", "error", err)
			}
		}()
	}

	wsManager := ws.NewManager(ctx, logger, reg, reporter, opts)
	go wsManager.Start()

	if redisClient != nil {
		sub := subscriber.NewSubscriber(logger, redisClient, conf.RedisAnnounceChannel, wsManager)
		go func() {
			if err := sub.Start(ctx); err != nil {
				logger.Error("subscriber stopped with error", "error", err)
			}
		}()
	}

	server := api.NewServer(conf, wsManager, logger)
	serveErr := server.Start(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := wsManager.Shutdown(shutdownCtx); err != nil {
		logger.Error("websocket manager failed to shutdown", "error", err)
	}

	return serveErr
}

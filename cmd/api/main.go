package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/orderbuddy/orderbuddy/internal/assistant"
	"github.com/orderbuddy/orderbuddy/internal/auth"
	"github.com/orderbuddy/orderbuddy/internal/cache"
	"github.com/orderbuddy/orderbuddy/internal/config"
	"github.com/orderbuddy/orderbuddy/internal/consumer"
	ordergrpc "github.com/orderbuddy/orderbuddy/internal/grpc"
	apihttp "github.com/orderbuddy/orderbuddy/internal/http"
	"github.com/orderbuddy/orderbuddy/internal/location"
	"github.com/orderbuddy/orderbuddy/internal/logger"
	"github.com/orderbuddy/orderbuddy/internal/publisher"
	"github.com/orderbuddy/orderbuddy/internal/repository"
	"github.com/orderbuddy/orderbuddy/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, os.Stdout)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("orderbuddy stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("orderbuddy stopped")
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	health := ordergrpc.NewHealthServer(log)

	repo, err := repository.NewRepository(&repository.Credentials{
		Driver:   cfg.DB.Driver,
		Path:     cfg.DB.Path,
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		DBName:   cfg.DB.Name,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer repo.Close()

	if err := repo.RunMigrations(cfg.DB.MigrationsPath); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database migrations completed", "driver", cfg.DB.Driver)

	var cartCache cache.CartCache = cache.NopCache{}
	var revoked auth.RevocationList = auth.NewMemoryRevocationList()
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password})
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		cartCache = cache.NewRedisCache(rdb)
		revoked = auth.NewRedisRevocationList(rdb)
		log.Info("redis cache enabled", "addr", cfg.Redis.Addr)
	}

	transcripts := assistant.TranscriptStore(assistant.NopTranscriptStore{})
	if cfg.Mongo.URI != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		db, err := assistant.ConnectMongoDB(connectCtx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			cancel()
			return err
		}
		store := assistant.NewMongoTranscriptStore(db)
		if err := store.CreateIndexes(connectCtx); err != nil {
			log.Warn("failed to create transcript indexes", "error", err)
		}
		cancel()
		defer func() {
			if err := db.Client().Disconnect(context.Background()); err != nil {
				log.Warn("failed to disconnect mongo", "error", err)
			}
		}()
		transcripts = store
	}

	locations := location.Default()
	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	cartService := service.NewCartService(repo, repo, cartCache, log)
	orderService := service.NewOrderService(repo, cartService, cfg.VisibleFrom(), log)

	router := apihttp.NewRouter(apihttp.Services{
		Auth:      service.NewAuthService(repo, tokens, revoked, locations, log),
		Catalog:   service.NewCatalogService(repo, repo, locations, log),
		Cart:      cartService,
		Orders:    orderService,
		Dashboard: service.NewDashboardService(repo, orderService),
		Assistant: assistant.NewClient(assistant.Config{
			URL:     cfg.Assistant.URL,
			APIKey:  cfg.Assistant.APIKey,
			Model:   cfg.Assistant.Model,
			Timeout: cfg.Assistant.Timeout,
		}, transcripts, log),
		Store: repo,
	}, apihttp.RouterConfig{
		RequestTimeout: cfg.HTTP.RequestTimeout,
		MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
	}, log)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.HTTP.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var sink publisher.Sink
	if len(cfg.Kafka.Brokers) > 0 {
		sink, err = newSink(cfg)
		if err != nil {
			return err
		}
		defer sink.Close()
	}

	lis, err := net.Listen("tcp", ":"+cfg.GRPC.Port)
	if err != nil {
		return fmt.Errorf("failed to listen on grpc port: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("HTTP API starting", "port", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return health.Serve(lis)
	})

	if sink != nil {
		poller := publisher.NewOutboxPoller(repo, sink, log)
		g.Go(func() error {
			poller.Run(gctx)
			return nil
		})
		log.Info("outbox publishing enabled", "client", cfg.Kafka.Client, "topic", cfg.Kafka.Topic)

		// only a shared cache can outlive the in-process invalidation
		if cfg.Redis.Addr != "" {
			invalidator := consumer.NewCartInvalidator(cartCache, log, cfg.Kafka.Topic, cfg.Kafka.ConsumerGroup, cfg.Kafka.Brokers...)
			defer invalidator.Close()
			g.Go(func() error {
				invalidator.Run(gctx)
				return nil
			})
		}
	}

	health.SetServing(true)

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		health.SetServing(false)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		health.GracefulStop()
		if err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func newSink(cfg *config.Config) (publisher.Sink, error) {
	if cfg.Kafka.Client == config.KafkaClientSarama {
		sink, err := publisher.NewSaramaSink(cfg.Kafka.Topic, cfg.Kafka.Brokers...)
		if err != nil {
			return nil, err
		}
		return sink, nil
	}
	return publisher.NewKafkaGoSink(cfg.Kafka.Topic, cfg.Kafka.Brokers...), nil
}

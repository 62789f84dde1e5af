package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/storefront/internal/config"
	"github.com/Skotchmaster/storefront/internal/engine"
	"github.com/Skotchmaster/storefront/internal/httpserver"
	"github.com/Skotchmaster/storefront/internal/logging"
	loggingmw "github.com/Skotchmaster/storefront/internal/middleware/logging"
	"github.com/Skotchmaster/storefront/internal/mykafka"
	"github.com/Skotchmaster/storefront/internal/notify"
	"github.com/Skotchmaster/storefront/internal/rewards"
	"github.com/Skotchmaster/storefront/internal/storage"
	"github.com/Skotchmaster/storefront/internal/tokens"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	cfg, err := config.LoadConfig(ctx)
	if err != nil {
		return err
	}

	log := logging.New(cfg.LogLevel)
	ctx = logging.IntoContext(ctx, log)

	backend, closeStore, err := cfg.OpenBackend(ctx)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Error("store_close_error", "error", err)
		}
	}()

	bus := notify.NewBus()

	var (
		prod *mykafka.Producer
		sink *mykafka.Sink
	)
	if cfg.KafkaEnabled() {
		prod, err = mykafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			return err
		}
		sink = mykafka.NewSink(prod, cfg.KafkaTopic)
		bus.Subscribe(sink)
		log.Info("kafka_sink_enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	var index rewards.Index
	if cfg.SearchEnabled() {
		esClient, err := rewards.NewESClient(ctx, cfg.ESURL, cfg.ESUser, cfg.ESPassword)
		if err != nil {
			log.Warn("elasticsearch_unavailable", "error", err)
		} else {
			index = &rewards.ESIndex{ES: esClient, Index: cfg.ESIndex}
		}
	}

	eng, err := engine.New(ctx, engine.Options{
		Store:  storage.New(backend),
		Signer: tokens.NewSigner([]byte(cfg.HandleSecret), cfg.HandleTTL),
		Index:  index,
		Bus:    bus,
	})
	if err != nil {
		return err
	}

	e := echo.New()
	e.HideBanner = true
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), loggingmw.RequestLogger(log))

	httpserver.Register(e, &httpserver.Deps{
		Storefront: &httpserver.StorefrontHTTP{Engine: eng},
		Ready: func() error {
			_, err := backend.Get(ctx, storage.KeyCurrentUser)
			if err != nil && !errors.Is(err, storage.ErrNotFound) {
				return err
			}
			return nil
		},
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Info("http_server_started", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http_server_error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit

	go func() {
		<-quit
		log.Warn("force_exit")
		os.Exit(1)
	}()

	log.Info("shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server_shutdown_error", "error", err)
	}

	if sink != nil {
		sink.Close()
	}
	if prod != nil {
		if err := prod.Close(); err != nil {
			log.Error("kafka_close_error", "error", err)
		}
	}

	log.Info("shutdown_complete")
	return nil
}

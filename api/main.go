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

	"github.com/joho/godotenv"

	"github.com/podsmith/backend/internal/briefing"
	"github.com/podsmith/backend/internal/broker"
	"github.com/podsmith/backend/internal/catalog"
	"github.com/podsmith/backend/internal/config"
	"github.com/podsmith/backend/internal/dedupe"
	"github.com/podsmith/backend/internal/elasticsearch"
	"github.com/podsmith/backend/internal/logger"
	"github.com/podsmith/backend/internal/newsapi"
)

func main() {
	_ = godotenv.Load()

	log := logger.New("api")
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	cat := catalog.Default()
	if cfg.CatalogPath != "" {
		cat, err = catalog.Load(cfg.CatalogPath)
		if err != nil {
			log.Error("load catalog", slog.Any("err", err))
			os.Exit(1)
		}
	}

	svc := briefing.NewService(briefing.Deps{
		Catalog:      cat,
		Fetcher:      newsapi.New(cfg.NewsAPIBaseURL, cfg.NewsAPIKey, cfg.NewsAPITimeout, cfg.NewsAPIPageSize, log),
		Deduplicator: dedupe.New(cfg.DedupeThreshold, cfg.DedupeWarnAbove, log),
		Logger:       log,
	})

	srv := &server{log: log, cfg: cfg, svc: svc}

	if cfg.ArchiveEnabled {
		esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
		if err != nil {
			log.Error("init elasticsearch", slog.Any("err", err))
			os.Exit(1)
		}
		srv.archive = esClient
	}

	if cfg.PublishEnabled {
		pub := broker.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		defer func() {
			if err := pub.Close(); err != nil {
				log.Warn("close publisher", slog.Any("err", err))
			}
		}()
		srv.publisher = pub
	}

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           newRouter(srv),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	go func() {
		log.Info("api server starting",
			slog.String("addr", cfg.BindAddr),
			slog.Int("categories", len(cat.Categories())),
			slog.Bool("archive", cfg.ArchiveEnabled),
			slog.Bool("publish", cfg.PublishEnabled),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}

// Command hyperlinkd serves the court-bundle hyperlinking API.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/anchor"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/cache"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/config"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/detect"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/index"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/linker"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/metrics"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/observability"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/ocr"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/oracle"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/pipeline"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/review"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/storage"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/textnorm"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	// Missing .env is fine; env vars may come from the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: "hyperlinkd",
	})

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Server exited")
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := storage.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	cacheClient, err := openCache(cfg)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer cacheClient.Close()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	docs := storage.NewDocumentRepository(db)
	pages := storage.NewPageRepository(db)
	links := storage.NewLinkRepository(db)

	engine := ocr.NewExecEngine(logger, ocr.ExecConfig{
		BinaryPath:        cfg.OCR.ExtractorPath,
		PageTimeout:       cfg.OCR.PageTimeout,
		MinWordConfidence: cfg.OCR.MinWordConf,
	})
	normalizer := textnorm.NewNormalizer(cfg.Detection.HeaderFooterBand)

	processor := pipeline.NewProcessor(
		logger, engine, cacheClient, cfg.Cache.TTL, normalizer, pages, m, cfg.Pipeline,
	)
	detector := detect.NewDetector(detect.Config{
		SignatureRadius: cfg.Detection.SignatureRadius,
		SnippetRadius:   cfg.Detection.SnippetRadius,
	})
	lk := linker.NewLinker(logger, linker.Config{
		MinConfidence:  cfg.Linking.MinConfidence,
		Seed:           cfg.Linking.Seed,
		FuzzyAffidavit: cfg.Linking.FuzzyAffidavit,
		Oracle:         oracle.Nop{},
	})

	casePipeline := pipeline.NewCasePipeline(
		logger, processor, index.NewParser(), indexTemplates(cfg), detector, anchor.NewBuilder(), lk,
		docs, links, nil, m, cfg.Pipeline, cfg.Detection,
	)
	reviewSvc := review.NewService(logger, links, nil)

	srv := newServer(logger, serverDeps{
		docs:     docs,
		pages:    pages,
		links:    links,
		pipeline: casePipeline,
		review:   reviewSvc,
		metrics:  m,
		registry: registry,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      srv.routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func openDatabase(cfg *config.Config) (*sql.DB, error) {
	switch cfg.Database.Driver {
	case "sqlite":
		dsn := fmt.Sprintf("%s?_journal_mode=%s", cfg.Database.SQLite.Path, cfg.Database.SQLite.JournalMode)
		db, err := sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(cfg.Database.SQLite.MaxOpenConns)
		return db, db.Ping()
	case "postgres":
		db, err := sql.Open("postgres", cfg.Database.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(cfg.Database.Postgres.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.Postgres.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Database.Postgres.ConnMaxLifetime)
		return db, db.Ping()
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

func indexTemplates(cfg *config.Config) index.TemplateProvider {
	if len(cfg.Detection.IndexTemplates) == 0 {
		return nil
	}
	return index.StaticTemplates(cfg.Detection.IndexTemplates)
}

func openCache(cfg *config.Config) (cache.Client, error) {
	if cfg.Cache.Driver == "redis" {
		return cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			PoolSize: cfg.Cache.Redis.PoolSize,
		})
	}
	return cache.NewMemoryClient(cfg.Cache.MaxEntries), nil
}

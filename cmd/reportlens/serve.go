package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/reportlens/internal/config"
	dbRedis "github.com/kailas-cloud/reportlens/internal/db/redis"
	"github.com/kailas-cloud/reportlens/internal/db/sqldb"
	"github.com/kailas-cloud/reportlens/internal/domain"
	"github.com/kailas-cloud/reportlens/internal/domain/plan"
	"github.com/kailas-cloud/reportlens/internal/metrics"
	documentrepo "github.com/kailas-cloud/reportlens/internal/repository/document"
	"github.com/kailas-cloud/reportlens/internal/repository/embcache"
	messagerepo "github.com/kailas-cloud/reportlens/internal/repository/message"
	userrepo "github.com/kailas-cloud/reportlens/internal/repository/user"
	vectorrepo "github.com/kailas-cloud/reportlens/internal/repository/vector"
	chiTransport "github.com/kailas-cloud/reportlens/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/reportlens/internal/transport/openai"
	"github.com/kailas-cloud/reportlens/internal/transport/pdf"
	chatuc "github.com/kailas-cloud/reportlens/internal/usecase/chat"
	embeddinguc "github.com/kailas-cloud/reportlens/internal/usecase/embedding"
	filesuc "github.com/kailas-cloud/reportlens/internal/usecase/files"
	healthuc "github.com/kailas-cloud/reportlens/internal/usecase/health"
	"github.com/kailas-cloud/reportlens/internal/usecase/ingestion"
	kpiuc "github.com/kailas-cloud/reportlens/internal/usecase/kpi"
	overviewuc "github.com/kailas-cloud/reportlens/internal/usecase/overview"
	"github.com/kailas-cloud/reportlens/internal/usecase/retrieval"
	usersuc "github.com/kailas-cloud/reportlens/internal/usecase/users"
	"github.com/kailas-cloud/reportlens/internal/version"
)

const fetchTimeout = time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the ingestion workers",
	RunE: func(_ *cobra.Command, _ []string) error {
		env, cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
		return serve(env, cfg, logger)
	},
}

// embedder is the decorated embedding chain: single queries and page batches.
type embedder interface {
	domain.Embedder
	domain.BatchEmbedder
}

//nolint:funlen // composition root
func serve(env string, cfg config.Config, logger *zap.Logger) error {
	logger.Info("Starting reportlens API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("redis_addrs", cfg.Redis.Addrs),
	)
	if cfg.Auth.JWTSecret == "" {
		logger.Warn("auth.jwt_secret is empty, every /api request will be rejected")
	}

	// Register metrics explicitly (no init())
	metrics.Register()

	ctx := context.Background()

	store, err := dbRedis.NewStore(dbRedis.Config{Addrs: cfg.Redis.Addrs, Password: cfg.Redis.Password})
	if err != nil {
		return fmt.Errorf("create vector store: %w", err)
	}
	defer store.Close()

	if err := store.WaitForReady(ctx, time.Duration(cfg.Redis.ReadinessTimeout)*time.Second); err != nil {
		return fmt.Errorf("vector store not ready: %w", err)
	}
	logger.Info("Connected to vector store")

	gdb, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = sqldb.Close(gdb) }()
	if err := migrate(ctx, gdb); err != nil {
		return err
	}
	logger.Info("Connected to database")

	vectors := vectorrepo.New(store, cfg.Storage.KeyPrefix, vectorrepo.IndexConfig{
		Dimensions:  cfg.Embedding.Dimensions,
		HNSWM:       cfg.Index.HNSWM,
		EFConstruct: cfg.Index.HNSWEFConstruct,
	})
	if err := vectors.EnsureIndex(ctx); err != nil {
		return fmt.Errorf("ensure page index: %w", err)
	}

	docs := documentrepo.New(gdb)
	messages := messagerepo.New(gdb)
	users := userrepo.New(gdb)

	// Embedder chain
	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})
	pageEmbedder := buildEmbedder(cfg, base, store, cfg.Embedding.DocumentInstruction, logger)
	queryEmbedder := buildEmbedder(cfg, base, store, cfg.Embedding.QueryInstruction, logger)
	logger.Info("Embedders created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Bool("cache", cfg.Embedding.CacheEnabled),
	)

	// One limiter shared by both models: they draw on the same provider quota.
	limiter := openaiTransport.NewLimiter(cfg.LLM.RequestsPerSec, cfg.LLM.Burst)
	chatModel := openaiTransport.NewChatModel(&openaiTransport.ChatConfig{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.ChatModel,
		Temperature: cfg.LLM.Temperature,
		Timeout:     time.Duration(cfg.LLM.TimeoutSec) * time.Second,
		Limiter:     limiter,
		Logger:      logger,
	})
	extractionModel := openaiTransport.NewChatModel(&openaiTransport.ChatConfig{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.ExtractionModel,
		Temperature: cfg.LLM.Temperature,
		Timeout:     time.Duration(cfg.LLM.TimeoutSec) * time.Second,
		Limiter:     limiter,
		Logger:      logger,
	})

	search := retrieval.New(vectors, queryEmbedder, retrieval.Policy{
		MaxAttempts: cfg.Retrieval.MaxAttempts,
		Backoff:     cfg.RetrievalBackoff(),
	})

	catalog, err := buildCatalog(cfg.Plans)
	if err != nil {
		return err
	}
	usersSvc := usersuc.New(users, catalog)

	maxBytes := int64(cfg.Ingestion.MaxFileMB) << 20
	ingestSvc := ingestion.New(docs, pdf.NewFetcher(fetchTimeout, maxBytes),
		pdf.NewParser(), pageEmbedder, vectors)
	dispatcher, err := ingestion.NewDispatcher(ingestSvc, ingestion.DispatcherConfig{
		Workers:    cfg.Ingestion.Workers,
		JobTimeout: time.Duration(cfg.Ingestion.JobTimeoutSec) * time.Second,
	}, logger)
	if err != nil {
		return fmt.Errorf("create ingestion dispatcher: %w", err)
	}

	mode, err := kpiuc.ParseMode(cfg.KPI.ResolutionMode)
	if err != nil {
		return fmt.Errorf("kpi resolution mode: %w", err)
	}
	kpiSvc := kpiuc.New(docs, search,
		kpiuc.NewResolver(extractionModel),
		kpiuc.NewExtractor(search, extractionModel, cfg.Retrieval.ExtractTopK, cfg.KPI.ExtractConcurrency),
		kpiuc.Options{Mode: mode, FormulaTopK: cfg.Retrieval.FormulaTopK},
	)

	chatSvc := chatuc.New(docs, messages, search, chatModel, chatuc.Options{
		HistoryWindow: cfg.Chat.HistoryWindow,
		TopK:          cfg.Retrieval.ChatTopK,
		StreamTimeout: time.Duration(cfg.Chat.StreamTimeoutSec) * time.Second,
		PageSize:      cfg.Index.DefaultPageSize,
		MaxPageSize:   cfg.Index.MaxPageSize,
	})
	overviewSvc := overviewuc.New(docs, search, chatModel, cfg.Retrieval.OverviewTopK, cfg.KPI.ExtractConcurrency)
	filesSvc := filesuc.New(docs, messages, vectors, usersSvc, dispatcher)
	healthSvc := healthuc.New(store, sqldb.NewPinger(gdb), base)

	server := chiTransport.NewServer(chiTransport.Services{
		Files:         filesSvc,
		Conversations: chatSvc,
		KPIs:          kpiSvc,
		Overviews:     overviewSvc,
		Users:         usersSvc,
		Health:        healthSvc,
	}, logger)

	r := chi.NewRouter()
	r.Use(chiTransport.JSONRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(chiTransport.WideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(chiTransport.NewTokenVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)))
	r.Use(metrics.Middleware())
	server.Mount(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-quit:
		logger.Info("Received shutdown signal")
	case err := <-serveErr:
		logger.Error("HTTP server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Warn("Ingestion jobs still running at shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
	return nil
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction.
func buildEmbedder(
	cfg config.Config, base *openaiTransport.Embedder, store *dbRedis.Store, instruction string, logger *zap.Logger,
) embedder {
	var inner domain.Embedder = base
	if cfg.Embedding.CacheEnabled {
		inner = embcache.New(base, store, cfg.Storage.KeyPrefix, cfg.Embedding.Model, metrics.EmbeddingCacheTotal, logger)
	}

	instrumented := embeddinguc.NewInstrumentedEmbedder(
		inner, cfg.Embedding.Provider, cfg.Embedding.Model, cfg.Embedding.Dimensions, logger,
	)

	// Instruction prefix outermost: the cache key includes the instruction
	if instruction != "" {
		return domain.NewInstructionEmbedder(instrumented, instruction)
	}
	return instrumented
}

func buildCatalog(plans map[string]config.PlanConfig) (*plan.Catalog, error) {
	slugs := make([]string, 0, len(plans))
	for slug := range plans {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)

	var (
		out         []plan.Plan
		defaultSlug string
	)
	for _, slug := range slugs {
		p := plans[slug]
		out = append(out, plan.Plan{
			Slug:         slug,
			Name:         p.Name,
			PDFsPerMonth: p.PDFsPerMonth,
			PagesPerPDF:  p.PagesPerPDF,
		})
		if p.Default {
			defaultSlug = slug
		}
	}

	catalog, err := plan.NewCatalog(out, defaultSlug)
	if err != nil {
		return nil, fmt.Errorf("build plan catalog: %w", err)
	}
	return catalog, nil
}

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/scmclimited/deep-rag-core/internal/cache"
	"github.com/scmclimited/deep-rag-core/internal/config"
	"github.com/scmclimited/deep-rag-core/internal/extractor"
	"github.com/scmclimited/deep-rag-core/internal/gcpclient"
	"github.com/scmclimited/deep-rag-core/internal/graph"
	"github.com/scmclimited/deep-rag-core/internal/handler"
	"github.com/scmclimited/deep-rag-core/internal/middleware"
	"github.com/scmclimited/deep-rag-core/internal/repository"
	"github.com/scmclimited/deep-rag-core/internal/router"
	"github.com/scmclimited/deep-rag-core/internal/service"
)

// Version is the running build's version string, reported by /healthz.
const Version = "0.1.0"

func getPort() string {
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	return "8080"
}

func run() error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("main: load config: %w", err)
	}

	pool, err := repository.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
	if err != nil {
		return fmt.Errorf("main: connect to database: %w", err)
	}
	defer pool.Close()

	docRepo := repository.NewDocumentRepo(pool)
	chunkRepo := repository.NewChunkRepo(pool)
	lexRepo := repository.NewLexicalRepository(pool)
	structureRepo := repository.NewStructureRepository(pool)
	auditRepo := repository.NewAuditRepo(pool)
	checkpointRepo := repository.NewCheckpointRepo(pool)

	var checkpointStore graph.CheckpointStore = checkpointRepo
	if cfg.RedisURL != "" {
		redisStore := cache.NewRedisCheckpointStore(cfg.RedisURL, "", 0, time.Hour)
		defer redisStore.Close()
		checkpointStore = redisStore
	}

	embeddingAdapter, err := gcpclient.NewEmbeddingAdapter(ctx, cfg.GCPProject, cfg.EmbeddingLocation, cfg.EmbeddingModel)
	if err != nil {
		return fmt.Errorf("main: embedding adapter: %w", err)
	}
	genaiAdapter, err := gcpclient.NewGenAIAdapter(ctx, cfg.GCPProject, cfg.VertexAILocation, cfg.VertexAIModel)
	if err != nil {
		return fmt.Errorf("main: genai adapter: %w", err)
	}

	var imageLoader service.ImageLoader = extractor.NewLocalImageLoader()
	if cfg.GCSBucketName != "" {
		storageAdapter, err := gcpclient.NewStorageAdapter(ctx, cfg.GCSBucketName)
		if err != nil {
			return fmt.Errorf("main: storage adapter: %w", err)
		}
		imageLoader = storageAdapter
	}

	var ocrClient service.OCRClient
	if cfg.DocAIProcessorID != "" {
		docaiAdapter, err := gcpclient.NewDocumentAIAdapter(ctx, cfg.GCPProject, cfg.DocAILocation, cfg.DocAIProcessorID)
		if err != nil {
			return fmt.Errorf("main: document ai adapter: %w", err)
		}
		defer docaiAdapter.Close()
		ocrClient = docaiAdapter
	}

	pdfExtractor := extractor.NewPDFAdapter()
	chunker := service.NewChunkerService(cfg.ChunkWordSize, cfg.ChunkOverlapWord)
	embedder := service.NewEmbedderService(embeddingAdapter, chunkRepo, embeddingAdapter, imageLoader)
	pipeline := service.NewPipelineService(docRepo, pdfExtractor, ocrClient, chunker, embedder, auditRepo)

	if cfg.PubSubTopic != "" {
		pubsubAdapter, err := gcpclient.NewPubSubAdapter(ctx, cfg.GCPProject, cfg.PubSubTopic)
		if err != nil {
			return fmt.Errorf("main: pubsub adapter: %w", err)
		}
		defer pubsubAdapter.Close()
		pipeline.SetPublisher(pubsubAdapter)

		workerCtx, cancelWorker := context.WithCancel(ctx)
		defer cancelWorker()
		go func() {
			if err := pubsubAdapter.Subscribe(workerCtx, cfg.PubSubTopic, pipeline.ProcessDocument); err != nil && workerCtx.Err() == nil {
				slog.Error("ingestion worker stopped", "error", err)
			}
		}()
	}

	embeddingCache := cache.NewEmbeddingCache(cache.DefaultEmbeddingTTL())
	defer embeddingCache.Stop()
	cachedEmbedder := cache.NewCachedEmbedder(embeddingAdapter, embeddingCache)

	retriever := service.NewRetrieverService(cachedEmbedder, lexRepo, chunkRepo, chunkRepo, structureRepo)

	queryCache := cache.New(10 * time.Minute)
	defer queryCache.Stop()
	cachedRetriever := cache.NewCachedRetriever(retriever, queryCache)

	planner := graph.NewPlanner(genaiAdapter)
	graphRetriever := graph.NewRetriever(retriever, cfg.KRetriever, cfg.KLex, cfg.KVec)
	compressor := graph.NewCompressor()
	critic := graph.NewCritic(genaiAdapter, cfg.MaxIterations)
	refineRetrieve := graph.NewRefineRetrieve(retriever)
	generator := service.NewGeneratorService(genaiAdapter, cfg.VertexAIModel)
	synthesizer := graph.NewSynthesizer(generator, docRepo, cfg.ConfWeights, cfg.AbstainTh, cfg.ClarifyTh,
		cfg.SynthesizerConfThresholdDefault, cfg.SynthesizerConfThresholdExplicit)
	citationPruner := graph.NewCitationPruner(docRepo)
	runner := graph.NewRunner(checkpointStore, planner, graphRetriever, compressor, critic, refineRetrieve, synthesizer, citationPruner, cfg.MaxIterations)

	metricsReg := prometheus.NewRegistry()
	metrics := middleware.NewMetrics(metricsReg)

	deps := &router.Dependencies{
		DB:          pool,
		FrontendURL: cfg.FrontendURL,
		Version:     Version,
		Metrics:     metrics,
		MetricsReg:  metricsReg,
		Documents: handler.DocumentDeps{
			Docs:      docRepo,
			Inspector: service.NewInspectorService(docRepo, chunkRepo),
			Cache:     cachedRetriever,
		},
		Ingest:   handler.IngestDeps{Pipeline: pipeline},
		Ask:      handler.AskDeps{Runner: runner},
		Retrieve: handler.RetrieveDeps{Retriever: cachedRetriever, K: cfg.KRetriever, KLex: cfg.KLex, KVec: cfg.KVec},
	}

	port := getPort()
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router.New(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("deep-rag-core v%s starting on port %s", Version, port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("received signal %s, shutting down gracefully", sig)
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	log.Println("server stopped")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

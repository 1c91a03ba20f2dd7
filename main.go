package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/KaanSezen1923/tolkien-rag/internal/adapter/embedding"
	"github.com/KaanSezen1923/tolkien-rag/internal/adapter/imagegen"
	"github.com/KaanSezen1923/tolkien-rag/internal/adapter/llm"
	"github.com/KaanSezen1923/tolkien-rag/internal/adapter/objectstore"
	"github.com/KaanSezen1923/tolkien-rag/internal/adapter/vectorindex"
	"github.com/KaanSezen1923/tolkien-rag/internal/config"
	"github.com/KaanSezen1923/tolkien-rag/internal/hub"
	"github.com/KaanSezen1923/tolkien-rag/internal/repository"
	"github.com/KaanSezen1923/tolkien-rag/internal/service"
	handler "github.com/KaanSezen1923/tolkien-rag/internal/transport/http"
	"github.com/KaanSezen1923/tolkien-rag/internal/transport/ws"
	"github.com/KaanSezen1923/tolkien-rag/policy"
)

const mockJWTSecret = "mock-secret"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.LogLevel == "debug" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	log.Printf("Starting tolkien-rag...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Database: %s", cfg.DatabaseURL)
	if cfg.IsMock() {
		log.Printf("Mode: MOCK (all backends in-process)")
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	// Initialize backends
	backends, err := newBackends(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize backends: %v", err)
	}

	// Initialize policy engine
	policyEngine, err := newPolicyEngine(ctx, cfg.PolicyFile)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Initialize stage event hub
	eventHub := hub.NewHub()
	go eventHub.Run(ctx)

	// Initialize service
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	svc := service.New(service.Deps{
		Ledger:    db,
		Encoder:   backends.encoder,
		Retriever: backends.retriever,
		LLM:       backends.llm,
		Images:    backends.images,
		Uploader:  backends.uploader,
		Admission: policyEngine,
		Notifier:  eventHub,
	}, service.WithTopK(cfg.RetrievalTopK), service.WithMetrics(registry))

	secret := cfg.JWTSecret
	if secret == "" {
		if !cfg.IsMock() {
			log.Fatalf("AUTH_JWT_SECRET is required")
		}
		secret = mockJWTSecret
		log.Printf("WARN: AUTH_JWT_SECRET not set, using %q", secret)
	}

	server := handler.NewServer(svc, handler.Options{
		JWTSecret:       []byte(secret),
		RateLimitPerSec: cfg.RateLimitPerSec,
		RateLimitBurst:  cfg.RateLimitBurst,
		Gatherer:        registry,
		Events:          ws.NewServer(ws.DefaultConfig(), eventHub),
		Artifacts:       backends.artifacts,
	})

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("API started on port %d", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down tolkien-rag...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}
	stop()

	log.Println("tolkien-rag stopped")
}

type backendSet struct {
	encoder   embedding.Encoder
	retriever service.Retriever
	llm       *llm.TextGenerator
	images    imagegen.Generator
	uploader  service.Uploader
	artifacts *objectstore.MemoryStore
}

func newBackends(ctx context.Context, cfg *config.Config) (*backendSet, error) {
	b := &backendSet{
		llm: llm.NewTextGenerator(llm.NewLLMClient(cfg.IsMock(), cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMTimeout), cfg.LLMModel),
	}

	if cfg.IsMock() {
		b.encoder = embedding.NewMockEncoder(cfg.EmbeddingMaxInputRunes)
		b.retriever = vectorindex.NewMemoryIndex(embedding.MockDimension)
		b.images = imagegen.NewMockGenerator()
		b.artifacts = objectstore.NewMemoryStore(fmt.Sprintf("http://localhost:%d/artifacts", cfg.HTTPPort))
		b.uploader = b.artifacts
		return b, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var encoder embedding.Encoder
	switch cfg.EmbeddingProvider {
	case config.EmbeddingProviderBedrock:
		encoder = embedding.NewBedrockEncoder(bedrockruntime.NewFromConfig(awsCfg), cfg.EmbeddingModel, cfg.EmbeddingMaxInputRunes, cfg.EmbeddingTimeout)
	default:
		encoder = embedding.NewOpenAIEncoder(cfg.EmbeddingBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModel, cfg.EmbeddingMaxInputRunes, cfg.EmbeddingTimeout)
	}
	if cfg.EmbeddingCacheSize > 0 {
		cached, err := embedding.NewCachedEncoder(encoder, cfg.EmbeddingCacheSize, cfg.EmbeddingMaxInputRunes)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedding cache: %w", err)
		}
		encoder = cached
	}
	b.encoder = encoder

	switch cfg.VectorIndex {
	case config.VectorIndexQdrant:
		b.retriever = vectorindex.NewQdrantIndex(vectorindex.QdrantConfig{
			URL:        cfg.QdrantURL,
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.QdrantCollection,
			Timeout:    cfg.QdrantTimeout,
		})
	default:
		// The in-memory index is sized from one sample embedding.
		sampleCtx, cancel := context.WithTimeout(ctx, cfg.EmbeddingTimeout)
		sample, err := encoder.Embed(sampleCtx, "Middle-earth")
		cancel()
		if err != nil {
			return nil, fmt.Errorf("failed to size in-memory index: %w", err)
		}
		log.Printf("WARN: using an empty in-memory vector index (dimension %d)", len(sample))
		b.retriever = vectorindex.NewMemoryIndex(len(sample))
	}

	b.images = imagegen.NewBreakerGenerator(
		imagegen.NewOpenAIGenerator(cfg.ImageBaseURL, cfg.LLMAPIKey, cfg.ImageModel, cfg.ImageTimeout),
		cfg.ImageBreakerFailures, cfg.ImageBreakerCooldown,
	)
	b.uploader = objectstore.NewS3Store(awsCfg, objectstore.S3Config{
		Region:         cfg.AWSRegion,
		Bucket:         cfg.S3Bucket,
		Endpoint:       cfg.S3Endpoint,
		ForcePathStyle: cfg.S3ForcePathStyle,
		PublicBaseURL:  cfg.S3PublicBaseURL,
		RequestTimeout: cfg.UploadTimeout,
	})
	return b, nil
}

func newPolicyEngine(ctx context.Context, path string) (*policy.Engine, error) {
	if path == "" {
		return policy.NewEngine(ctx, policy.DefaultPolicy)
	}
	engine, err := policy.LoadFile(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := policy.Watch(ctx, engine, path); err != nil {
		return nil, err
	}
	log.Printf("Watching query policy %s", path)
	return engine, nil
}

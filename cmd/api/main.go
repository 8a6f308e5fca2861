// Package main implements the campaign-notes API server: the HTTP boundary
// over the hybrid deduplication pipeline (§6).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/campaigngraph/campaigngraph/engine/dedup"
	"github.com/campaigngraph/campaigngraph/engine/extract"
	"github.com/campaigngraph/campaigngraph/engine/graph"
	"github.com/campaigngraph/campaigngraph/engine/ingest"
	"github.com/campaigngraph/campaigngraph/engine/merge"
	"github.com/campaigngraph/campaigngraph/engine/semantic"
	"github.com/campaigngraph/campaigngraph/engine/session"
	"github.com/campaigngraph/campaigngraph/pkg/campaignmeta"
	"github.com/campaigngraph/campaigngraph/pkg/llm"
	"github.com/campaigngraph/campaigngraph/pkg/metrics"
	"github.com/campaigngraph/campaigngraph/pkg/mid"
	"github.com/campaigngraph/campaigngraph/pkg/promptreg"
)

// Config holds all environment-based configuration (§6 Environment block).
type Config struct {
	Port       string
	CORSOrigin string

	Neo4jURL  string
	Neo4jUser string
	Neo4jPass string

	QdrantURL string

	LLMBackend  string // "ollama" | "genai"
	OllamaURL   string
	OllamaEmbed string
	OllamaChat  string
	GenAIAPIKey string
	GenAIEmbed  string
	GenAIChat   string
	ChatModel   string

	PromptRegistryURL string

	CampaignDBDSN string

	MetricsPort int

	CandidateLimit      int
	SimilarityThreshold float64
	AutoMergeThreshold  int
	SessionTTLSeconds   int
	MaxInflightLLMCalls int
	WorkflowTimeoutMs   int
}

func loadConfig() Config {
	return Config{
		Port:       envOr("PORT", "8080"),
		CORSOrigin: envOr("CORS_ORIGIN", "*"),

		Neo4jURL:  envOr("NEO4J_URL", "neo4j://localhost:7687"),
		Neo4jUser: envOr("NEO4J_USER", "neo4j"),
		Neo4jPass: envOr("NEO4J_PASS", "password"),

		QdrantURL: envOr("QDRANT_URL", "localhost:6334"),

		LLMBackend:  envOr("LLM_BACKEND", "ollama"),
		OllamaURL:   envOr("OLLAMA_URL", "http://localhost:11434"),
		OllamaEmbed: envOr("OLLAMA_EMBED_MODEL", "nomic-embed-text"),
		OllamaChat:  envOr("OLLAMA_CHAT_MODEL", "llama3.1"),
		GenAIAPIKey: envOr("GENAI_API_KEY", ""),
		GenAIEmbed:  envOr("GENAI_EMBED_MODEL", "gemini-embedding-001"),
		GenAIChat:   envOr("GENAI_CHAT_MODEL", "gemini-2.5-flash"),
		ChatModel:   envOr("LLM_CHAT_MODEL", "llama3.1"),

		PromptRegistryURL: envOr("PROMPT_REGISTRY_URL", "http://localhost:9100"),

		CampaignDBDSN: envOr("CAMPAIGN_DB_DSN", ""),

		MetricsPort: envOrInt("METRICS_PORT", 9090),

		CandidateLimit:      envOrInt("CANDIDATE_LIMIT", dedup.DefaultConfig.CandidateLimit),
		SimilarityThreshold: envOrFloat("SIMILARITY_THRESHOLD", float64(dedup.DefaultConfig.SimilarityThreshold)),
		AutoMergeThreshold:  envOrInt("AUTO_MERGE_THRESHOLD", dedup.DefaultConfig.AutoMergeThreshold),
		SessionTTLSeconds:   envOrInt("SESSION_TTL_SECONDS", int(session.DefaultTTL.Seconds())),
		MaxInflightLLMCalls: envOrInt("MAX_INFLIGHT_LLM_CALLS", dedup.DefaultConfig.MaxInflightLLMCalls),
		WorkflowTimeoutMs:   envOrInt("WORKFLOW_TIMEOUT_MS", int(ingest.DefaultWorkflowTimeout.Milliseconds())),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envOrFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Connect to Neo4j ---
	neo4jDriver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer neo4jDriver.Close(ctx)
	graphStore := graph.New(neo4jDriver)

	// --- Connect to Qdrant ---
	vectorStore, err := semantic.New(cfg.QdrantURL)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectorStore.Close()

	// --- LLM / embedding provider (C1, C2) ---
	resilientLLM, err := buildLLM(ctx, cfg)
	if err != nil {
		return fmt.Errorf("llm backend: %w", err)
	}

	// --- Prompt registry (C3) ---
	// extract/dedup each carry their own in-process fallback prompt bodies
	// and only call Resolve for the registry-backed path, so no built-in
	// fallback table is registered here.
	promptRegistry := promptreg.NewRegistry(cfg.PromptRegistryURL, nil)

	// --- Campaign-existence boundary ---
	campaignChecker, closeCampaignDB, err := buildCampaignChecker(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("campaign metadata store: %w", err)
	}
	defer closeCampaignDB()

	// --- Metrics ---
	registry := metrics.New()
	go registry.ServeAsync(cfg.MetricsPort)

	// --- Core pipeline wiring ---
	dedupCfg := dedup.Config{
		CandidateLimit:      cfg.CandidateLimit,
		SimilarityThreshold: float32(cfg.SimilarityThreshold),
		AutoMergeThreshold:  cfg.AutoMergeThreshold,
		MaxInflightLLMCalls: cfg.MaxInflightLLMCalls,
	}
	extractor := extract.New(resilientLLM, promptRegistry, cfg.ChatModel)
	finder := dedup.NewCandidateFinder(resilientLLM, vectorStore, graphStore, dedupCfg)
	adjudicator := dedup.NewAdjudicator(resilientLLM, promptRegistry, vectorStore, cfg.ChatModel)
	coordinator := dedup.NewCoordinator(finder, adjudicator, dedupCfg)
	merger := merge.New(graphStore, vectorStore, resilientLLM)

	sessionStore := session.New(session.DefaultSweepInterval)
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	go sessionStore.RunSweeper(sweepCtx)

	orchestrator := ingest.New(ingest.Config{
		Embed:           resilientLLM,
		Extractor:       extractor,
		Coordinator:     coordinator,
		Graph:           graphStore,
		Vector:          vectorStore,
		Merger:          merger,
		Sessions:        sessionStore,
		WorkflowTimeout: time.Duration(cfg.WorkflowTimeoutMs) * time.Millisecond,
		SessionTTL:      time.Duration(cfg.SessionTTLSeconds) * time.Second,
		Logger:          logger,
	})

	api := &server{orchestrator: orchestrator, campaigns: campaignChecker, logger: logger}

	// --- Build HTTP server ---
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("POST /api/campaigns/{campaignUuid}/notes", api.handleCreateNote)
	mux.HandleFunc("POST /api/campaigns/{campaignUuid}/notes/{noteId}/confirm-deduplication", api.handleConfirmDeduplication)
	mux.HandleFunc("GET /api/campaigns/{campaignUuid}/notes/{noteId}", api.handleGetNote)

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("campaigngraph-api"),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// buildLLM selects and wraps the configured embedding/chat backend (C1,
// C2) in the shared resilience policy (§4.1 retry/breaker contract).
func buildLLM(ctx context.Context, cfg Config) (*llm.Resilient, error) {
	switch cfg.LLMBackend {
	case "genai":
		backend, err := llm.NewGenAIBackend(ctx, cfg.GenAIAPIKey, cfg.GenAIEmbed, cfg.GenAIChat)
		if err != nil {
			return nil, err
		}
		return llm.NewResilient(backend, backend), nil
	default:
		backend := llm.NewOllamaBackend(cfg.OllamaURL, cfg.OllamaEmbed, cfg.OllamaChat)
		return llm.NewResilient(backend, backend), nil
	}
}

// buildCampaignChecker wires the relational campaign-metadata boundary
// (§9: campaign existence must be checked there before a 404). When no DSN
// is configured the service falls back to allowing every campaign, rather
// than hard-failing on an external store this core does not own.
func buildCampaignChecker(ctx context.Context, cfg Config, logger *slog.Logger) (campaignmeta.Checker, func(), error) {
	if cfg.CampaignDBDSN == "" {
		logger.Warn("CAMPAIGN_DB_DSN not set, campaign existence checks are disabled")
		return campaignmeta.AllowAllChecker{}, func() {}, nil
	}
	pool, err := campaignmeta.Connect(ctx, cfg.CampaignDBDSN)
	if err != nil {
		return nil, nil, err
	}
	return campaignmeta.NewPostgresChecker(pool), pool.Close, nil
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

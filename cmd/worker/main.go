// Command worker runs C12's orchestrator as a NATS queue consumer: it
// replaces the teacher's directory-watcher-and-scraped-JSON ingest loop
// with engine/ingest.Consumer, load-balancing note-ingest requests across
// however many worker replicas are running (§5).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/campaigngraph/campaigngraph/engine/dedup"
	"github.com/campaigngraph/campaigngraph/engine/extract"
	"github.com/campaigngraph/campaigngraph/engine/graph"
	"github.com/campaigngraph/campaigngraph/engine/ingest"
	"github.com/campaigngraph/campaigngraph/engine/merge"
	"github.com/campaigngraph/campaigngraph/engine/semantic"
	"github.com/campaigngraph/campaigngraph/engine/session"
	"github.com/campaigngraph/campaigngraph/pkg/llm"
	"github.com/campaigngraph/campaigngraph/pkg/metrics"
	"github.com/campaigngraph/campaigngraph/pkg/promptreg"
)

var met = metrics.New()

var (
	mProcessed  = met.Counter("campaigngraph_worker_notes_processed_total", "Notes successfully ingested")
	mFailed     = met.Counter("campaigngraph_worker_notes_failed_total", "Notes that returned an error from IngestNote")
	mDeadLetter = met.Counter("campaigngraph_worker_notes_dead_lettered_total", "Notes routed to the dead-letter subject after exhausting retries")
)

// Config holds the worker's environment-based configuration (§6
// Environment block, the subset relevant to a consumer process).
type Config struct {
	NATSUrl    string
	Subject    string
	QueueGroup string
	DLQSubject string
	MaxRetries int

	Neo4jURL  string
	Neo4jUser string
	Neo4jPass string

	QdrantURL string

	LLMBackend  string
	OllamaURL   string
	OllamaEmbed string
	OllamaChat  string
	GenAIAPIKey string
	GenAIEmbed  string
	GenAIChat   string
	ChatModel   string

	PromptRegistryURL string

	MetricsPort int

	CandidateLimit      int
	AutoMergeThreshold  int
	MaxInflightLLMCalls int
	SessionTTLSeconds   int
	WorkflowTimeoutMs   int
}

func loadConfig() Config {
	return Config{
		NATSUrl:    envOr("NATS_URL", nats.DefaultURL),
		Subject:    envOr("INGEST_SUBJECT", "campaigngraph.notes.ingest"),
		QueueGroup: envOr("INGEST_QUEUE_GROUP", "campaigngraph-workers"),
		DLQSubject: envOr("INGEST_DLQ_SUBJECT", "campaigngraph.notes.ingest.dead-letter"),
		MaxRetries: envOrInt("INGEST_MAX_RETRIES", ingest.DefaultMaxRetries),

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

		MetricsPort: envOrInt("METRICS_PORT", 9091),

		CandidateLimit:      envOrInt("CANDIDATE_LIMIT", dedup.DefaultConfig.CandidateLimit),
		AutoMergeThreshold:  envOrInt("AUTO_MERGE_THRESHOLD", dedup.DefaultConfig.AutoMergeThreshold),
		MaxInflightLLMCalls: envOrInt("MAX_INFLIGHT_LLM_CALLS", dedup.DefaultConfig.MaxInflightLLMCalls),
		SessionTTLSeconds:   envOrInt("SESSION_TTL_SECONDS", int(session.DefaultTTL.Seconds())),
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

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()
	if err := run(cfg, logger); err != nil {
		logger.Error("worker exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	neo4jDriver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer neo4jDriver.Close(ctx)
	graphStore := graph.New(neo4jDriver)

	vectorStore, err := semantic.New(cfg.QdrantURL)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectorStore.Close()

	resilientLLM, err := buildLLM(ctx, cfg)
	if err != nil {
		return fmt.Errorf("llm backend: %w", err)
	}

	promptRegistry := promptreg.NewRegistry(cfg.PromptRegistryURL, nil)

	go met.ServeAsync(cfg.MetricsPort)

	dedupCfg := dedup.Config{
		CandidateLimit:      cfg.CandidateLimit,
		SimilarityThreshold: dedup.DefaultConfig.SimilarityThreshold,
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

	nc, err := nats.Connect(cfg.NATSUrl)
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Close()

	consumer := ingest.NewConsumer(nc, orchestrator, cfg.Subject, cfg.QueueGroup, cfg.DLQSubject, cfg.MaxRetries, logger)
	consumer.OnProcessed = mProcessed.Inc
	consumer.OnFailed = mFailed.Inc
	consumer.OnDeadLetter = mDeadLetter.Inc

	sub, err := consumer.Start()
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer sub.Unsubscribe()

	logger.Info("worker started", "subject", cfg.Subject, "queue_group", cfg.QueueGroup)
	<-ctx.Done()
	logger.Info("shutdown signal received")
	return nil
}

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

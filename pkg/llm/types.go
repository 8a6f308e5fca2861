// Package llm adapts the Embedding Provider (C1) and LLM Provider (C2)
// boundaries to concrete backends: a plain-HTTP Ollama client and a
// google.golang.org/genai hosted-model client, both wrapped in the same
// circuit-breaker-plus-retry policy before they reach engine/extract and
// engine/dedup.
package llm

import (
	"context"
	"time"

	"github.com/campaigngraph/campaigngraph/pkg/fn"
	"github.com/campaigngraph/campaigngraph/pkg/resilience"
)

// Vector is an embedding, opaque past its dimensionality.
type Vector []float32

// Role distinguishes turns in a Chat PromptContent.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
	RoleModel  Role = "model"
)

// ChatMessage is one turn of a multi-turn prompt.
type ChatMessage struct {
	Role    Role
	Content string
}

// PromptContent is either a single block of text or a chat transcript.
// Exactly one of Text / Chat is populated; IsChat reports which.
type PromptContent struct {
	Text string
	Chat []ChatMessage
}

// TextPrompt builds a single-block PromptContent.
func TextPrompt(text string) PromptContent { return PromptContent{Text: text} }

// ChatPrompt builds a multi-turn PromptContent.
func ChatPrompt(messages ...ChatMessage) PromptContent { return PromptContent{Chat: messages} }

// IsChat reports whether this PromptContent carries a transcript rather
// than a single text block.
func (p PromptContent) IsChat() bool { return len(p.Chat) > 0 }

// LLMResponse is a completed generation.
type LLMResponse struct {
	Text       string
	TokensUsed int
}

// EmbeddingProvider is C1: turns note/artifact/relationship text into a
// Vector for semantic search.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) (Vector, int, error)
}

// LLMProvider is C2: drives the extraction and adjudication prompts.
type LLMProvider interface {
	Generate(ctx context.Context, model, system string, input PromptContent) (LLMResponse, error)
}

// Resilient wraps an EmbeddingProvider/LLMProvider pair with a shared
// circuit breaker and the spec's retry contract (>=2 attempts, exponential
// backoff, base 1s) around every call, regardless of backend.
type Resilient struct {
	embed   EmbeddingProvider
	llm     LLMProvider
	breaker *resilience.Breaker
	retry   fn.RetryOpts
}

// DefaultRetryOpts is the spec-mandated retry policy: at least two attempts,
// exponential backoff starting at one second.
var DefaultRetryOpts = fn.RetryOpts{
	MaxAttempts: 3,
	InitialWait: time.Second,
	MaxWait:     20 * time.Second,
	Jitter:      true,
}

// NewResilient wraps backend with a fresh breaker and the default retry
// policy. Pass the same EmbeddingProvider/LLMProvider backend for both
// fields when, as with the Ollama and GenAI backends here, one client type
// implements both interfaces.
func NewResilient(embed EmbeddingProvider, generate LLMProvider) *Resilient {
	return &Resilient{
		embed:   embed,
		llm:     generate,
		breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
		retry:   DefaultRetryOpts,
	}
}

func (r *Resilient) Embed(ctx context.Context, text string) (Vector, int, error) {
	type embedOut struct {
		v Vector
		n int
	}
	res := fn.Retry(ctx, r.retry, func(ctx context.Context) fn.Result[embedOut] {
		return resilience.CallResult(r.breaker, ctx, func(ctx context.Context) fn.Result[embedOut] {
			v, n, err := r.embed.Embed(ctx, text)
			if err != nil {
				return fn.Err[embedOut](err)
			}
			return fn.Ok(embedOut{v, n})
		})
	})
	out, err := res.Unwrap()
	return out.v, out.n, err
}

func (r *Resilient) Generate(ctx context.Context, model, system string, input PromptContent) (LLMResponse, error) {
	res := fn.Retry(ctx, r.retry, func(ctx context.Context) fn.Result[LLMResponse] {
		return resilience.CallResult(r.breaker, ctx, func(ctx context.Context) fn.Result[LLMResponse] {
			return fn.FromPair(r.llm.Generate(ctx, model, system, input))
		})
	})
	return res.Unwrap()
}

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// OllamaBackend implements EmbeddingProvider and LLMProvider against an
// Ollama-compatible HTTP server, generalized from the teacher's
// pkg/ollama.EmbedClient (which wrapped the same /api/embeddings call
// behind a now-unavailable generated gRPC service interface; here the
// plain HTTP call is exposed directly as our own adapter interfaces).
type OllamaBackend struct {
	baseURL      string
	embedModel   string
	chatModel    string
	client       *http.Client
}

// NewOllamaBackend builds a backend against baseURL (e.g. http://localhost:11434).
func NewOllamaBackend(baseURL, embedModel, chatModel string) *OllamaBackend {
	return &OllamaBackend{
		baseURL:    baseURL,
		embedModel: embedModel,
		chatModel:  chatModel,
		client:     &http.Client{},
	}
}

type ollamaEmbedReq struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResp struct {
	Embedding []float64 `json:"embedding"`
}

// Embed calls Ollama's /api/embeddings endpoint.
func (b *OllamaBackend) Embed(ctx context.Context, text string) (Vector, int, error) {
	body, _ := json.Marshal(ollamaEmbedReq{Model: b.embedModel, Prompt: text})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("ollama embed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("ollama embed: status %d", resp.StatusCode)
	}

	var result ollamaEmbedResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, 0, fmt.Errorf("ollama embed decode: %w", err)
	}

	out := make(Vector, len(result.Embedding))
	for i, v := range result.Embedding {
		out[i] = float32(v)
	}
	// Ollama's embeddings endpoint does not report token usage.
	return out, 0, nil
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatReq struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
}

type ollamaChatResp struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	EvalCount int `json:"eval_count"`
}

// Generate calls Ollama's /api/chat endpoint with streaming disabled.
func (b *OllamaBackend) Generate(ctx context.Context, model, system string, input PromptContent) (LLMResponse, error) {
	if model == "" {
		model = b.chatModel
	}

	messages := make([]ollamaChatMessage, 0, len(input.Chat)+2)
	if system != "" {
		messages = append(messages, ollamaChatMessage{Role: "system", Content: system})
	}
	if input.IsChat() {
		for _, m := range input.Chat {
			messages = append(messages, ollamaChatMessage{Role: string(m.Role), Content: m.Content})
		}
	} else {
		messages = append(messages, ollamaChatMessage{Role: "user", Content: input.Text})
	}

	body, _ := json.Marshal(ollamaChatReq{Model: model, Messages: messages, Stream: false})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return LLMResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return LLMResponse{}, fmt.Errorf("ollama generate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return LLMResponse{}, fmt.Errorf("ollama generate: status %d", resp.StatusCode)
	}

	var result ollamaChatResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return LLMResponse{}, fmt.Errorf("ollama generate decode: %w", err)
	}

	return LLMResponse{Text: result.Message.Content, TokensUsed: result.EvalCount}, nil
}

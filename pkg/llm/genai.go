package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GenAIBackend implements EmbeddingProvider and LLMProvider against a
// hosted Gemini model via google.golang.org/genai, grounded on the
// codenerd repo's internal/embedding.GenAIEngine (client construction,
// EmbedContent call, OutputDimensionality pin) extended with a
// Models.GenerateContent call for the LLM side.
type GenAIBackend struct {
	client          *genai.Client
	embedModel      string
	chatModel       string
	outputDimension int32
}

// NewGenAIBackend constructs a backend from an API key. embedModel defaults
// to "gemini-embedding-001" and chatModel to "gemini-2.5-flash" when empty.
func NewGenAIBackend(ctx context.Context, apiKey, embedModel, chatModel string) (*GenAIBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("genai: API key is required")
	}
	if embedModel == "" {
		embedModel = "gemini-embedding-001"
	}
	if chatModel == "" {
		chatModel = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("genai: create client: %w", err)
	}

	return &GenAIBackend{
		client:          client,
		embedModel:      embedModel,
		chatModel:       chatModel,
		outputDimension: 3072,
	}, nil
}

func int32Ptr(v int32) *int32 { return &v }

// Embed implements EmbeddingProvider. GenAI does not report token usage for
// embeddings, so the returned count is always 0.
func (b *GenAIBackend) Embed(ctx context.Context, text string) (Vector, int, error) {
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}

	result, err := b.client.Models.EmbedContent(ctx, b.embedModel, contents, &genai.EmbedContentConfig{
		OutputDimensionality: int32Ptr(b.outputDimension),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("genai embed: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, 0, fmt.Errorf("genai embed: no embeddings returned")
	}

	return Vector(result.Embeddings[0].Values), 0, nil
}

// Generate implements LLMProvider via Models.GenerateContent.
func (b *GenAIBackend) Generate(ctx context.Context, model, system string, input PromptContent) (LLMResponse, error) {
	if model == "" {
		model = b.chatModel
	}

	var contents []*genai.Content
	if input.IsChat() {
		contents = make([]*genai.Content, 0, len(input.Chat))
		for _, m := range input.Chat {
			role := genai.RoleUser
			if m.Role == RoleModel {
				role = genai.RoleModel
			}
			contents = append(contents, genai.NewContentFromText(m.Content, role))
		}
	} else {
		contents = []*genai.Content{genai.NewContentFromText(input.Text, genai.RoleUser)}
	}

	var cfg *genai.GenerateContentConfig
	if system != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		}
	}

	result, err := b.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return LLMResponse{}, fmt.Errorf("genai generate: %w", err)
	}

	text := result.Text()
	tokens := 0
	if result.UsageMetadata != nil {
		tokens = int(result.UsageMetadata.TotalTokenCount)
	}

	return LLMResponse{Text: text, TokensUsed: tokens}, nil
}

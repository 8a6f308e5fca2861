// Package extract implements the Extractor boundary (C6): two sequential
// LLM stages over a single note — Narrative Artefact Extraction (NAE) then
// Artefact Relationship Extraction (ARE) — grounded on the memory-extraction
// prompt/parse idiom of the pigo reference implementation (JSON object
// response with a bare top-level array also accepted, code-fence stripping,
// lenient fallback parsing on malformed output).
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/campaigngraph/campaigngraph/engine/domain"
	"github.com/campaigngraph/campaigngraph/pkg/llm"
	"github.com/campaigngraph/campaigngraph/pkg/promptreg"
)

// generator is the subset of llm.LLMProvider (satisfied directly by
// *llm.Resilient) that Extractor needs.
type generator interface {
	Generate(ctx context.Context, model, system string, input llm.PromptContent) (llm.LLMResponse, error)
}

// promptResolver is the subset of *promptreg.Registry Extractor needs.
type promptResolver interface {
	Resolve(ctx context.Context, name, label string) (promptreg.Template, error)
}

// Extractor runs stages NAE and ARE over a note.
type Extractor struct {
	gen     generator
	prompts promptResolver
	model   string
}

// New builds an Extractor. model is the chat model passed through to every
// C2 call.
func New(gen generator, prompts promptResolver, model string) *Extractor {
	return &Extractor{gen: gen, prompts: prompts, model: model}
}

// Result is the combined output of both extraction stages.
type Result struct {
	Artifacts     []domain.ExtractedArtifact
	Relationships []domain.ExtractedRelationship
	TokensUsed    int
}

// Extract runs NAE, then ARE if NAE produced at least one artifact
// (§4.6 — ARE "runs only if NAE produced ≥1 artifact").
func (e *Extractor) Extract(ctx context.Context, note domain.Note, categories []domain.Category) (Result, error) {
	artifacts, naeTokens, err := e.extractArtifacts(ctx, note, categories)
	if err != nil {
		return Result{}, fmt.Errorf("extract: stage NAE: %w", err)
	}

	result := Result{Artifacts: artifacts, TokensUsed: naeTokens}
	if len(artifacts) == 0 {
		return result, nil
	}

	relationships, areTokens, err := e.extractRelationships(ctx, note, artifacts)
	if err != nil {
		return Result{}, fmt.Errorf("extract: stage ARE: %w", err)
	}
	result.Relationships = relationships
	result.TokensUsed += areTokens
	return result, nil
}

func formatCategories(categories []domain.Category) string {
	if len(categories) == 0 {
		categories = domain.DefaultArtifactCategories
	}
	var b strings.Builder
	for _, c := range categories {
		fmt.Fprintf(&b, "- %s: %s\n", c.Name, c.Description)
	}
	return b.String()
}

func formatArtifactNames(artifacts []domain.ExtractedArtifact) string {
	var b strings.Builder
	for _, a := range artifacts {
		fmt.Fprintf(&b, "- %s (%s)\n", a.Name, a.Type)
	}
	return b.String()
}

// resolveSystemPrompt fetches and renders a named prompt, falling back to
// the in-process literal if C3 cannot resolve it at all (registry down and
// no registry-side fallback either — §4.3).
func (e *Extractor) resolveSystemPrompt(ctx context.Context, name, inProcessFallback string, vars map[string]string) string {
	body := inProcessFallback
	if tmpl, err := e.prompts.Resolve(ctx, name, ""); err == nil {
		body = tmpl.Body
	} else {
		slog.Warn("extract: prompt registry miss, using in-process fallback", "prompt", name, "error", err)
	}
	rendered, unresolved := promptreg.Render(body, vars)
	if len(unresolved) > 0 {
		slog.Warn("extract: unresolved prompt placeholders", "prompt", name, "vars", unresolved)
	}
	return rendered
}

func (e *Extractor) extractArtifacts(ctx context.Context, note domain.Note, categories []domain.Category) ([]domain.ExtractedArtifact, int, error) {
	system := e.resolveSystemPrompt(ctx, promptNAE, fallbackNAEPrompt, map[string]string{
		"categories": formatCategories(categories),
	})

	resp, err := e.gen.Generate(ctx, e.model, system, llm.TextPrompt(note.Text()))
	if err != nil {
		return nil, 0, err
	}

	artifacts, err := parseNAEResponse(resp.Text)
	if err != nil {
		slog.Warn("extract: stage NAE parse failure, falling back to bulleted-line parser", "error", err)
		artifacts = parseBulletedArtifacts(resp.Text)
	}

	valid := make([]domain.ExtractedArtifact, 0, len(artifacts))
	for _, a := range artifacts {
		if err := domain.ValidateArtifact(a.Name, a.Type); err != nil {
			slog.Warn("extract: stage NAE dropped invalid artifact", "name", a.Name, "type", a.Type, "error", err)
			continue
		}
		valid = append(valid, a)
	}
	return valid, resp.TokensUsed, nil
}

func (e *Extractor) extractRelationships(ctx context.Context, note domain.Note, artifacts []domain.ExtractedArtifact) ([]domain.ExtractedRelationship, int, error) {
	system := e.resolveSystemPrompt(ctx, promptARE, fallbackAREPrompt, map[string]string{
		"artifacts": formatArtifactNames(artifacts),
	})

	resp, err := e.gen.Generate(ctx, e.model, system, llm.TextPrompt(note.Text()))
	if err != nil {
		return nil, 0, err
	}

	relationships, err := parseAREResponse(resp.Text)
	if err != nil {
		slog.Warn("extract: stage ARE parse failure, dropping relationships for this note", "error", err)
		return nil, resp.TokensUsed, nil
	}

	valid := make([]domain.ExtractedRelationship, 0, len(relationships))
	names := make(map[string]bool, len(artifacts))
	for _, a := range artifacts {
		names[a.Name] = true
	}
	for _, r := range relationships {
		if !names[r.Source] || !names[r.Target] {
			slog.Warn("extract: stage ARE dropped relationship with unknown endpoint", "source", r.Source, "target", r.Target)
			continue
		}
		if err := domain.ValidateRelationship(r.Source, r.Target); err != nil {
			slog.Warn("extract: stage ARE dropped self-loop relationship", "source", r.Source, "target", r.Target)
			continue
		}
		valid = append(valid, r)
	}
	return valid, resp.TokensUsed, nil
}

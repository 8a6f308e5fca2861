package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/campaigngraph/campaigngraph/engine/domain"
	"github.com/campaigngraph/campaigngraph/engine/semantic"
	"github.com/campaigngraph/campaigngraph/pkg/llm"
	"github.com/campaigngraph/campaigngraph/pkg/promptreg"
)

const noHistoricalNotes = "No historical notes available"

// maxBackingNotes caps how many of a candidate's historical notes are
// injected into the adjudication prompt (§4.8).
const maxBackingNotes = 3

// generator is the slice of llm.LLMProvider the adjudicator calls.
type generator interface {
	Generate(ctx context.Context, model, system string, input llm.PromptContent) (llm.LLMResponse, error)
}

// promptResolver is the slice of promptreg.Registry the adjudicator calls.
type promptResolver interface {
	Resolve(ctx context.Context, name, label string) (promptreg.Template, error)
}

// notesFetcher is the slice of semantic.VectorStore used to pull a
// candidate's backing note content for adjudication context.
type notesFetcher interface {
	GetByIDs(ctx context.Context, campaignUUID string, ids []string) ([]semantic.SearchResult, error)
}

// Adjudicator is C8: asks the LLM whether a new item and an ANN candidate
// describe the same narrative entity/edge (§4.8).
type Adjudicator struct {
	gen     generator
	prompts promptResolver
	notes   notesFetcher
	model   string
}

// NewAdjudicator builds an Adjudicator over the given backends.
func NewAdjudicator(gen generator, prompts promptResolver, notes notesFetcher, model string) *Adjudicator {
	return &Adjudicator{gen: gen, prompts: prompts, notes: notes, model: model}
}

func (a *Adjudicator) resolveSystemPrompt(ctx context.Context, name, fallback string, vars map[string]string) string {
	body := fallback
	if tmpl, err := a.prompts.Resolve(ctx, name, ""); err == nil {
		body = tmpl.Body
	} else {
		slog.WarnContext(ctx, "dedup: prompt registry unreachable, using in-process fallback", "prompt", name, "error", err)
	}
	rendered, unresolved := promptreg.Render(body, vars)
	if len(unresolved) > 0 {
		slog.WarnContext(ctx, "dedup: unresolved prompt placeholders", "prompt", name, "vars", unresolved)
	}
	return rendered
}

// backingNotesText fetches up to maxBackingNotes of a candidate's most
// recent notes and renders them for prompt injection, or the literal
// placeholder when none are available (§4.8).
func (a *Adjudicator) backingNotesText(ctx context.Context, campaignUUID string, noteIDs []string) string {
	if len(noteIDs) == 0 {
		return noHistoricalNotes
	}
	results, err := a.notes.GetByIDs(ctx, campaignUUID, noteIDs)
	if err != nil || len(results) == 0 {
		return noHistoricalNotes
	}
	sort.Slice(results, func(i, j int) bool {
		return parseCreatedAt(results[i].Meta) > parseCreatedAt(results[j].Meta)
	})
	if len(results) > maxBackingNotes {
		results = results[:maxBackingNotes]
	}
	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "Title: %s\nContent: %s", r.Meta["title"], r.Meta["content"])
	}
	return sb.String()
}

// degrade builds the decision any adjudication failure falls back to —
// never aborting the pipeline (§7 item 3).
func degrade(candidateID, candidateName, reason string) domain.DeduplicationDecision {
	return domain.DeduplicationDecision{
		IsSame:        false,
		Confidence:    0,
		Reasoning:     reason,
		CandidateID:   candidateID,
		CandidateName: candidateName,
	}
}

// AdjudicateArtifact compares a new extracted artifact against one ANN
// candidate. It always returns a decision — LLM and parse failures degrade
// to a conservative "not the same" verdict rather than propagating an error.
func (a *Adjudicator) AdjudicateArtifact(ctx context.Context, campaignUUID string, note domain.Note, item domain.ExtractedArtifact, candidate domain.ArtifactCandidate) (domain.DeduplicationDecision, int) {
	vars := map[string]string{
		"new_name":             item.Name,
		"new_type":             item.Type,
		"new_description":      item.Description,
		"existing_name":        candidate.Name,
		"existing_description": candidate.Description,
		"source_note_content":  note.Text(),
		"backing_notes":        a.backingNotesText(ctx, campaignUUID, candidate.NoteIDs),
	}
	system := a.resolveSystemPrompt(ctx, promptArtifactDedup, fallbackArtifactPrompt, vars)

	resp, err := a.gen.Generate(ctx, a.model, system, llm.ChatPrompt(llm.ChatMessage{
		Role: llm.RoleUser, Content: "Respond only with the JSON object described above.",
	}))
	if err != nil {
		slog.WarnContext(ctx, "dedup: adjudication call failed", "candidate", candidate.ID, "error", err)
		return degrade(candidate.ID, candidate.Name, "LLM error"), 0
	}

	decision, err := parseDecision(resp.Text)
	if err != nil {
		slog.WarnContext(ctx, "dedup: adjudication response unparsable", "candidate", candidate.ID, "error", err)
		return degrade(candidate.ID, candidate.Name, "Failed to parse response"), resp.TokensUsed
	}
	decision.CandidateID = candidate.ID
	decision.CandidateName = candidate.Name
	return decision, resp.TokensUsed
}

// AdjudicateRelationship is the relationship analogue of AdjudicateArtifact.
func (a *Adjudicator) AdjudicateRelationship(ctx context.Context, campaignUUID string, note domain.Note, item domain.ExtractedRelationship, candidate domain.RelationshipCandidate) (domain.DeduplicationDecision, int) {
	vars := map[string]string{
		"new_source":            item.Source,
		"new_target":            item.Target,
		"new_label":             item.Label,
		"new_description":       item.Description,
		"existing_source":       candidate.SourceArtifactName,
		"existing_target":       candidate.TargetArtifactName,
		"existing_label":        candidate.Label,
		"existing_description":  candidate.Description,
		"source_note_content":   note.Text(),
		"backing_notes":         a.backingNotesText(ctx, campaignUUID, candidate.NoteIDs),
	}
	system := a.resolveSystemPrompt(ctx, promptRelationshipDedup, fallbackRelationshipPrompt, vars)

	resp, err := a.gen.Generate(ctx, a.model, system, llm.ChatPrompt(llm.ChatMessage{
		Role: llm.RoleUser, Content: "Respond only with the JSON object described above.",
	}))
	if err != nil {
		slog.WarnContext(ctx, "dedup: adjudication call failed", "candidate", candidate.ID, "error", err)
		return degrade(candidate.ID, "", "LLM error"), 0
	}

	decision, err := parseDecision(resp.Text)
	if err != nil {
		slog.WarnContext(ctx, "dedup: adjudication response unparsable", "candidate", candidate.ID, "error", err)
		return degrade(candidate.ID, "", "Failed to parse response"), resp.TokensUsed
	}
	decision.CandidateID = candidate.ID
	return decision, resp.TokensUsed
}

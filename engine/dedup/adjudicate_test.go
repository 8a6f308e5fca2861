package dedup

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/campaigngraph/campaigngraph/engine/domain"
	"github.com/campaigngraph/campaigngraph/engine/semantic"
	"github.com/campaigngraph/campaigngraph/pkg/llm"
	"github.com/campaigngraph/campaigngraph/pkg/promptreg"
)

type fakeAdjudicationGenerator struct {
	resp llm.LLMResponse
	err  error
}

func (f *fakeAdjudicationGenerator) Generate(_ context.Context, _, _ string, _ llm.PromptContent) (llm.LLMResponse, error) {
	return f.resp, f.err
}

type fakeDedupResolver struct {
	err error
}

func (f *fakeDedupResolver) Resolve(_ context.Context, name, _ string) (promptreg.Template, error) {
	if f.err != nil {
		return promptreg.Template{}, f.err
	}
	return promptreg.Template{Name: name, Body: "compare {{new_name}} vs {{existing_name}}"}, nil
}

type fakeNotesFetcher struct {
	results []semantic.SearchResult
	err     error
}

func (f *fakeNotesFetcher) GetByIDs(_ context.Context, _ string, _ []string) ([]semantic.SearchResult, error) {
	return f.results, f.err
}

func testCandidateNote() domain.Note {
	return domain.Note{ID: "n1", Title: "Ambush at the Mill", Content: "Captain Vexa led the raid."}
}

func TestAdjudicateArtifact_Success(t *testing.T) {
	gen := &fakeAdjudicationGenerator{resp: llm.LLMResponse{Text: `{"is_same": true, "confidence": 95, "reasoning": "same captain"}`, TokensUsed: 8}}
	a := NewAdjudicator(gen, &fakeDedupResolver{}, &fakeNotesFetcher{}, "test-model")

	decision, tokens := a.AdjudicateArtifact(context.Background(), "camp1", testCandidateNote(),
		domain.ExtractedArtifact{Name: "Captain Vexa"}, domain.ArtifactCandidate{ID: "a1", Name: "Captain Vexa"})
	if tokens != 8 {
		t.Fatalf("expected 8 tokens, got %d", tokens)
	}
	if !decision.IsSame || decision.Confidence != 95 {
		t.Fatalf("unexpected decision: %+v", decision)
	}
	if decision.CandidateID != "a1" {
		t.Fatalf("expected candidate id set, got %q", decision.CandidateID)
	}
}

func TestAdjudicateArtifact_GenerateErrorDegrades(t *testing.T) {
	a := NewAdjudicator(&fakeAdjudicationGenerator{err: errors.New("provider down")}, &fakeDedupResolver{}, &fakeNotesFetcher{}, "test-model")

	decision, tokens := a.AdjudicateArtifact(context.Background(), "camp1", testCandidateNote(),
		domain.ExtractedArtifact{Name: "x"}, domain.ArtifactCandidate{ID: "a1"})
	if decision.IsSame || decision.Confidence != 0 || decision.Reasoning != "LLM error" {
		t.Fatalf("expected degraded decision, got %+v", decision)
	}
	if tokens != 0 {
		t.Fatalf("expected 0 tokens on error, got %d", tokens)
	}
}

func TestAdjudicateArtifact_UnparsableResponseDegrades(t *testing.T) {
	a := NewAdjudicator(&fakeAdjudicationGenerator{resp: llm.LLMResponse{Text: "not json", TokensUsed: 2}}, &fakeDedupResolver{}, &fakeNotesFetcher{}, "test-model")

	decision, tokens := a.AdjudicateArtifact(context.Background(), "camp1", testCandidateNote(),
		domain.ExtractedArtifact{Name: "x"}, domain.ArtifactCandidate{ID: "a1"})
	if decision.IsSame || decision.Reasoning != "Failed to parse response" {
		t.Fatalf("expected parse-failure decision, got %+v", decision)
	}
	if tokens != 2 {
		t.Fatalf("expected tokens still counted, got %d", tokens)
	}
}

func TestAdjudicateArtifact_PromptRegistryUnreachableStillRuns(t *testing.T) {
	gen := &fakeAdjudicationGenerator{resp: llm.LLMResponse{Text: `{"is_same": false, "confidence": 10, "reasoning": "different"}`}}
	a := NewAdjudicator(gen, &fakeDedupResolver{err: errors.New("registry down")}, &fakeNotesFetcher{}, "test-model")

	decision, _ := a.AdjudicateArtifact(context.Background(), "camp1", testCandidateNote(),
		domain.ExtractedArtifact{Name: "x"}, domain.ArtifactCandidate{ID: "a1"})
	if decision.IsSame {
		t.Fatalf("unexpected decision: %+v", decision)
	}
}

func TestAdjudicateRelationship_Success(t *testing.T) {
	gen := &fakeAdjudicationGenerator{resp: llm.LLMResponse{Text: `{"is_same": true, "confidence": 70, "reasoning": "same edge"}`}}
	a := NewAdjudicator(gen, &fakeDedupResolver{}, &fakeNotesFetcher{}, "test-model")

	decision, _ := a.AdjudicateRelationship(context.Background(), "camp1", testCandidateNote(),
		domain.ExtractedRelationship{Source: "a", Target: "b", Label: "knows"},
		domain.RelationshipCandidate{ID: "r1", SourceArtifactName: "a", TargetArtifactName: "b", Label: "knows"})
	if !decision.IsSame || decision.Confidence != 70 {
		t.Fatalf("unexpected decision: %+v", decision)
	}
}

func TestBackingNotesText_NoNoteIDs(t *testing.T) {
	a := NewAdjudicator(&fakeAdjudicationGenerator{}, &fakeDedupResolver{}, &fakeNotesFetcher{}, "test-model")
	if got := a.backingNotesText(context.Background(), "camp1", nil); got != noHistoricalNotes {
		t.Fatalf("expected placeholder, got %q", got)
	}
}

func TestBackingNotesText_FetchErrorFallsBackToPlaceholder(t *testing.T) {
	a := NewAdjudicator(&fakeAdjudicationGenerator{}, &fakeDedupResolver{}, &fakeNotesFetcher{err: errors.New("qdrant down")}, "test-model")
	if got := a.backingNotesText(context.Background(), "camp1", []string{"n1"}); got != noHistoricalNotes {
		t.Fatalf("expected placeholder, got %q", got)
	}
}

func TestBackingNotesText_SortsMostRecentFirstAndCaps(t *testing.T) {
	notes := &fakeNotesFetcher{results: []semantic.SearchResult{
		{ID: "n1", Meta: map[string]string{"title": "Old", "content": "old stuff", "created_at": "100"}},
		{ID: "n2", Meta: map[string]string{"title": "New", "content": "new stuff", "created_at": "300"}},
		{ID: "n3", Meta: map[string]string{"title": "Mid", "content": "mid stuff", "created_at": "200"}},
		{ID: "n4", Meta: map[string]string{"title": "Oldest", "content": "oldest stuff", "created_at": "50"}},
	}}
	a := NewAdjudicator(&fakeAdjudicationGenerator{}, &fakeDedupResolver{}, notes, "test-model")
	got := a.backingNotesText(context.Background(), "camp1", []string{"n1", "n2", "n3", "n4"})
	if got == noHistoricalNotes {
		t.Fatal("expected rendered notes, not placeholder")
	}
	wantFirst := "Title: New"
	if len(got) < len(wantFirst) || got[:len(wantFirst)] != wantFirst {
		t.Fatalf("expected most-recent note first, got %q", got)
	}
	if strings.Contains(got, "Title: Oldest") {
		t.Fatalf("expected at most %d notes, oldest dropped, got %q", maxBackingNotes, got)
	}
}

func TestParseDecision_ExtractsFromSurroundingText(t *testing.T) {
	d, err := parseDecision("Sure thing:\n```json\n{\"is_same\": true, \"confidence\": 50, \"reasoning\": \"ok\"}\n```")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.IsSame || d.Confidence != 50 {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestParseDecision_ClampsConfidence(t *testing.T) {
	d, err := parseDecision(`{"is_same": true, "confidence": 500, "reasoning": "x"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Confidence != 100 {
		t.Fatalf("expected clamped confidence 100, got %d", d.Confidence)
	}
}

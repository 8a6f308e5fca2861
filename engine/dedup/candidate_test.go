package dedup

import (
	"context"
	"errors"
	"testing"

	"github.com/campaigngraph/campaigngraph/engine/domain"
	"github.com/campaigngraph/campaigngraph/engine/semantic"
	"github.com/campaigngraph/campaigngraph/pkg/llm"
)

type fakeEmbedder struct {
	vec  llm.Vector
	toks int
	err  error
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) (llm.Vector, int, error) {
	return f.vec, f.toks, f.err
}

type fakeSearcher struct {
	results []semantic.SearchResult
	err     error
	gotType semantic.PointType
}

func (f *fakeSearcher) SearchFiltered(_ context.Context, _ string, _ []float32, _ int, pointType semantic.PointType, _ float32) ([]semantic.SearchResult, error) {
	f.gotType = pointType
	return f.results, f.err
}

type fakeNoteLookup struct {
	artifactNotes     []string
	relationshipNotes []string
	err               error
}

func (f *fakeNoteLookup) LookupArtifactNotes(_ context.Context, _, _ string) ([]string, error) {
	return f.artifactNotes, f.err
}

func (f *fakeNoteLookup) LookupRelationshipNotes(_ context.Context, _, _, _, _ string) ([]string, error) {
	return f.relationshipNotes, f.err
}

func TestFindArtifactCandidates_Success(t *testing.T) {
	search := &fakeSearcher{results: []semantic.SearchResult{
		{ID: "a1", Name: "Captain Vexa", Score: 0.9, Meta: map[string]string{"category": "characters", "description": "a raider"}},
	}}
	finder := NewCandidateFinder(&fakeEmbedder{vec: llm.Vector{1, 0}, toks: 3}, search, &fakeNoteLookup{artifactNotes: []string{"n1"}}, DefaultConfig)

	cands, tokens, err := finder.FindArtifactCandidates(context.Background(), "camp1", domain.ExtractedArtifact{Name: "Captain Vexa", Type: "characters"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tokens != 3 {
		t.Fatalf("expected 3 tokens, got %d", tokens)
	}
	if len(cands) != 1 || cands[0].ID != "a1" || cands[0].NoteIDs[0] != "n1" {
		t.Fatalf("unexpected candidates: %+v", cands)
	}
	if search.gotType != semantic.TypeArtifact {
		t.Fatalf("expected artifact type filter, got %s", search.gotType)
	}
}

func TestFindArtifactCandidates_EmbedError(t *testing.T) {
	finder := NewCandidateFinder(&fakeEmbedder{err: errors.New("embed down")}, &fakeSearcher{}, &fakeNoteLookup{}, DefaultConfig)
	_, _, err := finder.FindArtifactCandidates(context.Background(), "camp1", domain.ExtractedArtifact{Name: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestFindArtifactCandidates_SearchError(t *testing.T) {
	finder := NewCandidateFinder(&fakeEmbedder{}, &fakeSearcher{err: errors.New("search down")}, &fakeNoteLookup{}, DefaultConfig)
	_, _, err := finder.FindArtifactCandidates(context.Background(), "camp1", domain.ExtractedArtifact{Name: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestFindArtifactCandidates_NoteLookupError(t *testing.T) {
	search := &fakeSearcher{results: []semantic.SearchResult{{ID: "a1"}}}
	finder := NewCandidateFinder(&fakeEmbedder{}, search, &fakeNoteLookup{err: errors.New("graph down")}, DefaultConfig)
	_, _, err := finder.FindArtifactCandidates(context.Background(), "camp1", domain.ExtractedArtifact{Name: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestFindRelationshipCandidates_Success(t *testing.T) {
	search := &fakeSearcher{results: []semantic.SearchResult{
		{ID: "r1", Score: 0.85, Meta: map[string]string{"source": "Captain Vexa", "target": "Redfern Mill", "label": "attacked", "description": "burned it"}},
	}}
	finder := NewCandidateFinder(&fakeEmbedder{}, search, &fakeNoteLookup{relationshipNotes: []string{"n2"}}, DefaultConfig)

	cands, _, err := finder.FindRelationshipCandidates(context.Background(), "camp1", domain.ExtractedRelationship{Source: "Captain Vexa", Target: "Redfern Mill", Label: "attacked"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cands) != 1 || cands[0].SourceArtifactName != "Captain Vexa" || cands[0].NoteIDs[0] != "n2" {
		t.Fatalf("unexpected candidates: %+v", cands)
	}
	if search.gotType != semantic.TypeRelation {
		t.Fatalf("expected relation type filter, got %s", search.gotType)
	}
}

func TestFindRelationshipCandidates_SearchError(t *testing.T) {
	finder := NewCandidateFinder(&fakeEmbedder{}, &fakeSearcher{err: errors.New("search down")}, &fakeNoteLookup{}, DefaultConfig)
	_, _, err := finder.FindRelationshipCandidates(context.Background(), "camp1", domain.ExtractedRelationship{Source: "a", Target: "b", Label: "c"})
	if err == nil {
		t.Fatal("expected error")
	}
}

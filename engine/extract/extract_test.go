package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/campaigngraph/campaigngraph/engine/domain"
	"github.com/campaigngraph/campaigngraph/pkg/llm"
	"github.com/campaigngraph/campaigngraph/pkg/promptreg"
)

type fakeGenerator struct {
	responses []llm.LLMResponse
	errs      []error
	call      int
	systems   []string
}

func (f *fakeGenerator) Generate(_ context.Context, _ string, system string, _ llm.PromptContent) (llm.LLMResponse, error) {
	f.systems = append(f.systems, system)
	idx := f.call
	f.call++
	var err error
	if idx < len(f.errs) {
		err = f.errs[idx]
	}
	if idx < len(f.responses) {
		return f.responses[idx], err
	}
	return llm.LLMResponse{}, err
}

type fakeResolver struct {
	err error
}

func (f *fakeResolver) Resolve(_ context.Context, name, _ string) (promptreg.Template, error) {
	if f.err != nil {
		return promptreg.Template{}, f.err
	}
	return promptreg.Template{Name: name, Body: "resolved prompt for {{categories}}{{artifacts}}"}, nil
}

func testNote() domain.Note {
	return domain.Note{
		ID:      "n1",
		Title:   "Ambush at the Mill",
		Content: "Captain Vexa led the raiders against Redfern Mill and burned it to the ground.",
	}
}

func TestExtract_NAEAndARESucceed(t *testing.T) {
	gen := &fakeGenerator{
		responses: []llm.LLMResponse{
			{Text: `{"artefacts": [{"name": "Captain Vexa", "type": "characters", "description": "a raider"}, {"name": "Redfern Mill", "type": "locations", "description": "a mill"}]}`, TokensUsed: 10},
			{Text: `{"relations": [{"source": "Captain Vexa", "target": "Redfern Mill", "label": "attacked", "description": "burned it down", "reasoning": "text says so"}]}`, TokensUsed: 5},
		},
	}
	e := New(gen, &fakeResolver{}, "test-model")

	result, err := e.Extract(context.Background(), testNote(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Artifacts) != 2 {
		t.Fatalf("expected 2 artifacts, got %d", len(result.Artifacts))
	}
	if len(result.Relationships) != 1 {
		t.Fatalf("expected 1 relationship, got %d", len(result.Relationships))
	}
	if result.TokensUsed != 15 {
		t.Fatalf("expected 15 tokens, got %d", result.TokensUsed)
	}
}

func TestExtract_NoArtifactsSkipsARE(t *testing.T) {
	gen := &fakeGenerator{
		responses: []llm.LLMResponse{{Text: `{"artefacts": []}`, TokensUsed: 3}},
	}
	e := New(gen, &fakeResolver{}, "test-model")

	result, err := e.Extract(context.Background(), testNote(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Artifacts) != 0 || result.Relationships != nil {
		t.Fatalf("expected no artifacts/relationships, got %+v", result)
	}
	if gen.call != 1 {
		t.Fatalf("expected ARE to be skipped, gen called %d times", gen.call)
	}
}

func TestExtract_MalformedNAEFallsBackToBulletedParser(t *testing.T) {
	gen := &fakeGenerator{
		responses: []llm.LLMResponse{
			{Text: "Here's what I found:\n- Captain Vexa: a raider captain\n- Redfern Mill: an old mill\nSome trailing text", TokensUsed: 2},
			{Text: `{"relations": []}`},
		},
	}
	e := New(gen, &fakeResolver{}, "test-model")

	result, err := e.Extract(context.Background(), testNote(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Artifacts) != 2 {
		t.Fatalf("expected 2 fallback-parsed artifacts, got %d: %+v", len(result.Artifacts), result.Artifacts)
	}
	for _, a := range result.Artifacts {
		if a.Type != "unknown" {
			t.Errorf("expected fallback artifact type unknown, got %q", a.Type)
		}
	}
}

func TestExtract_AREDropsMismatchedEndpoints(t *testing.T) {
	gen := &fakeGenerator{
		responses: []llm.LLMResponse{
			{Text: `{"artefacts": [{"name": "Captain Vexa", "type": "characters"}]}`},
			{Text: `{"relations": [{"source": "Captain Vexa", "target": "Someone Else", "label": "knows"}]}`},
		},
	}
	e := New(gen, &fakeResolver{}, "test-model")

	result, err := e.Extract(context.Background(), testNote(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Relationships) != 0 {
		t.Fatalf("expected relationship with unknown target to be dropped, got %+v", result.Relationships)
	}
}

func TestExtract_AREDropsSelfLoopRelationships(t *testing.T) {
	gen := &fakeGenerator{
		responses: []llm.LLMResponse{
			{Text: `{"artefacts": [{"name": "Captain Vexa", "type": "characters"}]}`},
			{Text: `{"relations": [{"source": "Captain Vexa", "target": "Captain Vexa", "label": "knows"}]}`},
		},
	}
	e := New(gen, &fakeResolver{}, "test-model")

	result, err := e.Extract(context.Background(), testNote(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Relationships) != 0 {
		t.Fatalf("expected self-loop relationship to be dropped, got %+v", result.Relationships)
	}
}

func TestExtract_NAEDropsInvalidArtifacts(t *testing.T) {
	gen := &fakeGenerator{
		responses: []llm.LLMResponse{
			{Text: `{"artefacts": [{"name": "Captain Vexa", "type": "characters"}, {"name": "", "type": "locations"}, {"name": "Nameless Type", "type": "  "}]}`},
			{Text: `{"relations": []}`},
		},
	}
	e := New(gen, &fakeResolver{}, "test-model")

	result, err := e.Extract(context.Background(), testNote(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Artifacts) != 1 || result.Artifacts[0].Name != "Captain Vexa" {
		t.Fatalf("expected only the valid artifact to survive, got %+v", result.Artifacts)
	}
}

func TestExtract_AREParseFailureDropsRelationshipsWithoutAborting(t *testing.T) {
	gen := &fakeGenerator{
		responses: []llm.LLMResponse{
			{Text: `{"artefacts": [{"name": "Captain Vexa", "type": "characters"}]}`},
			{Text: "not json at all"},
		},
	}
	e := New(gen, &fakeResolver{}, "test-model")

	result, err := e.Extract(context.Background(), testNote(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Relationships != nil {
		t.Fatalf("expected nil relationships on parse failure, got %+v", result.Relationships)
	}
}

func TestExtract_PromptRegistryUnreachableUsesInProcessFallback(t *testing.T) {
	gen := &fakeGenerator{
		responses: []llm.LLMResponse{{Text: `{"artefacts": []}`}},
	}
	e := New(gen, &fakeResolver{err: errors.New("registry down")}, "test-model")

	_, err := e.Extract(context.Background(), testNote(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(gen.systems) != 1 {
		t.Fatalf("expected one generate call")
	}
	if gen.systems[0] == "" {
		t.Fatal("expected a non-empty fallback system prompt")
	}
}

func TestExtract_NAEProviderErrorPropagates(t *testing.T) {
	gen := &fakeGenerator{errs: []error{errors.New("provider down")}}
	e := New(gen, &fakeResolver{}, "test-model")

	_, err := e.Extract(context.Background(), testNote(), nil)
	if err == nil {
		t.Fatal("expected error to propagate")
	}
}

func TestParseAREResponse_AcceptsRelationshipsKey(t *testing.T) {
	rels, err := parseAREResponse(`{"relationships": [{"source": "a", "target": "b", "label": "x"}]}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rels) != 1 {
		t.Fatalf("expected 1 relationship, got %d", len(rels))
	}
}

func TestOutermostJSON_StripsSurroundingText(t *testing.T) {
	got := outermostJSON("Sure, here you go:\n```json\n{\"a\": 1}\n```\nThanks!")
	if got != "{\"a\": 1}\n" && got != "{\"a\": 1}" {
		t.Fatalf("unexpected extraction: %q", got)
	}
}

package main

import (
	"context"

	"github.com/campaigngraph/campaigngraph/engine/domain"
	"github.com/campaigngraph/campaigngraph/engine/extract"
	"github.com/campaigngraph/campaigngraph/engine/semantic"
	"github.com/campaigngraph/campaigngraph/pkg/llm"
)

// fakeChecker is a campaignmeta.Checker stub for handler tests.
type fakeChecker struct {
	exists bool
	err    error
}

func (f fakeChecker) CampaignExists(ctx context.Context, campaignUUID string) (bool, error) {
	return f.exists, f.err
}

// fakeEmbedder satisfies both engine/ingest's embedder and
// engine/merge's embedder (identical method sets).
type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) (llm.Vector, int, error) {
	return llm.Vector{0.1, 0.2, 0.3}, 3, nil
}

// fakeExtractor satisfies engine/ingest's extractor, always reporting no
// extracted artifacts so a note commits with zero proposals.
type fakeExtractor struct{}

func (fakeExtractor) Extract(ctx context.Context, note domain.Note, categories []domain.Category) (extract.Result, error) {
	return extract.Result{}, nil
}

// fakeCoordinator satisfies engine/ingest's deduplicator.
type fakeCoordinator struct{}

func (fakeCoordinator) Deduplicate(ctx context.Context, campaignUUID string, note domain.Note, artifacts []domain.ExtractedArtifact, relationships []domain.ExtractedRelationship) (domain.DeduplicationResult, error) {
	return domain.DeduplicationResult{}, nil
}

// fakeGraph satisfies engine/ingest's graphWriter and engine/merge's
// graphMerger.
type fakeGraph struct{}

func (fakeGraph) UpsertArtifact(ctx context.Context, a domain.Artifact) error { return nil }

func (fakeGraph) UpsertRelationship(ctx context.Context, campaignUUID string, r domain.Relationship) (bool, error) {
	return true, nil
}

func (fakeGraph) MergeIntoArtifact(ctx context.Context, campaignUUID, existingName string, incoming domain.Artifact) (string, error) {
	return existingName, nil
}

func (fakeGraph) MergeIntoRelationship(ctx context.Context, campaignUUID, source, label, target string, incoming domain.Relationship) (string, error) {
	return source + ":" + label + ":" + target, nil
}

func (fakeGraph) GetArtifactByName(ctx context.Context, campaignUUID, name string) (domain.Artifact, bool, error) {
	return domain.Artifact{Name: name}, true, nil
}

// fakeVector satisfies engine/ingest's vectorStore and engine/merge's
// vectorMerger.
type fakeVector struct {
	note domain.NoteDTO
	ok   bool
}

func (fakeVector) Upsert(ctx context.Context, campaignUUID string, records []semantic.VectorRecord) error {
	return nil
}

func (f fakeVector) GetByIDs(ctx context.Context, campaignUUID string, ids []string) ([]semantic.SearchResult, error) {
	if !f.ok {
		return nil, nil
	}
	return []semantic.SearchResult{{
		ID:   f.note.NoteID,
		Type: semantic.TypeNote,
		Meta: map[string]string{
			"note_id":       f.note.NoteID,
			"title":         f.note.Title,
			"content":       f.note.Content,
			"campaign_uuid": f.note.CampaignUUID,
		},
	}}, nil
}

func (fakeVector) EnsureCollection(ctx context.Context, campaignUUID string, dims int) error {
	return nil
}

func (fakeVector) DeleteByID(ctx context.Context, campaignUUID, id string) error { return nil }

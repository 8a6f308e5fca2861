// Package merge implements the Merge Executor (C11): committing an
// auto_merge or confirmed dedup decision into both stores atomically with
// respect to the graph, and best-effort with respect to the vector index
// (§4.11).
package merge

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/campaigngraph/campaigngraph/engine/domain"
	"github.com/campaigngraph/campaigngraph/engine/semantic"
	"github.com/campaigngraph/campaigngraph/pkg/llm"
)

// graphMerger is the slice of engine/graph.GraphStore the merge executor
// calls: the transactional merge itself, plus a refetch of the survivor
// used only to re-embed its post-merge description (step 3).
type graphMerger interface {
	MergeIntoArtifact(ctx context.Context, campaignUUID, existingName string, incoming domain.Artifact) (string, error)
	MergeIntoRelationship(ctx context.Context, campaignUUID, source, label, target string, incoming domain.Relationship) (string, error)
	GetArtifactByName(ctx context.Context, campaignUUID, name string) (domain.Artifact, bool, error)
}

// vectorMerger is the slice of engine/semantic.VectorStore the merge
// executor calls for steps 2 (delete the merged-away point) and 3
// (re-upsert the survivor under its refreshed embedding).
type vectorMerger interface {
	DeleteByID(ctx context.Context, campaignUUID, id string) error
	Upsert(ctx context.Context, campaignUUID string, records []semantic.VectorRecord) error
}

// embedder is the slice of llm.EmbeddingProvider used to re-embed a
// survivor's merged description.
type embedder interface {
	Embed(ctx context.Context, text string) (llm.Vector, int, error)
}

// Executor is C11: applies a dedup decision's merge into the graph store
// transactionally (step 1), then best-effort syncs the vector index (steps
// 2-3), logging rather than failing on vector-side errors (§4.11, §7 item 4).
type Executor struct {
	graph  graphMerger
	vector vectorMerger
	embed  embedder
}

// New builds an Executor over the given backends.
func New(graph graphMerger, vector vectorMerger, embed embedder) *Executor {
	return &Executor{graph: graph, vector: vector, embed: embed}
}

// MergeArtifact commits incoming into the existing artifact named
// existingName, returning the survivor's id. mergedAwayVectorID is the
// vector point id of incoming's own (not-yet-persisted) embedding, if one
// was upserted speculatively before adjudication resolved as a merge; pass
// "" when none exists yet.
func (e *Executor) MergeArtifact(ctx context.Context, campaignUUID, existingName string, incoming domain.Artifact, mergedAwayVectorID string) (string, error) {
	survivorID, err := e.graph.MergeIntoArtifact(ctx, campaignUUID, existingName, incoming)
	if err != nil {
		return "", fmt.Errorf("merge: artifact %q: %w", existingName, err)
	}

	if mergedAwayVectorID != "" && mergedAwayVectorID != survivorID {
		if err := e.vector.DeleteByID(ctx, campaignUUID, mergedAwayVectorID); err != nil {
			slog.WarnContext(ctx, "merge: failed to delete merged-away artifact vector", "id", mergedAwayVectorID, "error", err)
		}
	}

	merged, found, err := e.graph.GetArtifactByName(ctx, campaignUUID, existingName)
	if err != nil || !found {
		slog.WarnContext(ctx, "merge: could not refetch merged artifact for re-embedding", "name", existingName, "error", err)
		return survivorID, nil
	}

	vec, _, err := e.embed.Embed(ctx, merged.Name+"\n"+merged.Description)
	if err != nil {
		slog.WarnContext(ctx, "merge: failed to re-embed merged artifact", "name", existingName, "error", err)
		return survivorID, nil
	}
	record := semantic.VectorRecord{
		ID:        survivorID,
		Embedding: vec,
		Type:      semantic.TypeArtifact,
		Name:      merged.Name,
		Payload: map[string]any{
			"category":    merged.Type,
			"description": merged.Description,
			"created_at":  strconv.FormatInt(merged.CreatedAt, 10),
		},
	}
	if err := e.vector.Upsert(ctx, campaignUUID, []semantic.VectorRecord{record}); err != nil {
		slog.WarnContext(ctx, "merge: failed to upsert re-embedded artifact", "name", existingName, "error", err)
	}
	return survivorID, nil
}

// MergeRelationship commits incoming into the existing relationship keyed
// by (source, label, target), returning the survivor's id. Unlike
// MergeArtifact there is no graph accessor for a single relationship's
// full post-merge record, so step 3 re-embeds from incoming's own text
// rather than a refetched merged description — a best-effort
// approximation, consistent with steps 2-3 being non-critical (§4.11).
func (e *Executor) MergeRelationship(ctx context.Context, campaignUUID, source, label, target string, incoming domain.Relationship, mergedAwayVectorID string) (string, error) {
	survivorID, err := e.graph.MergeIntoRelationship(ctx, campaignUUID, source, label, target, incoming)
	if err != nil {
		return "", fmt.Errorf("merge: relationship %s-%s->%s: %w", source, label, target, err)
	}

	if mergedAwayVectorID != "" && mergedAwayVectorID != survivorID {
		if err := e.vector.DeleteByID(ctx, campaignUUID, mergedAwayVectorID); err != nil {
			slog.WarnContext(ctx, "merge: failed to delete merged-away relationship vector", "id", mergedAwayVectorID, "error", err)
		}
	}

	vec, _, err := e.embed.Embed(ctx, source+" "+label+" "+target+"\n"+incoming.Description)
	if err != nil {
		slog.WarnContext(ctx, "merge: failed to re-embed merged relationship", "source", source, "label", label, "target", target, "error", err)
		return survivorID, nil
	}
	record := semantic.VectorRecord{
		ID:        survivorID,
		Embedding: vec,
		Type:      semantic.TypeRelation,
		Name:      fmt.Sprintf("%s %s %s", source, label, target),
		Payload: map[string]any{
			"source":      source,
			"target":      target,
			"label":       label,
			"description": incoming.Description,
		},
	}
	if err := e.vector.Upsert(ctx, campaignUUID, []semantic.VectorRecord{record}); err != nil {
		slog.WarnContext(ctx, "merge: failed to upsert re-embedded relationship", "source", source, "label", label, "target", target, "error", err)
	}
	return survivorID, nil
}

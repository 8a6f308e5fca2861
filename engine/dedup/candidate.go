package dedup

import (
	"context"
	"fmt"

	"github.com/campaigngraph/campaigngraph/engine/domain"
	"github.com/campaigngraph/campaigngraph/engine/semantic"
	"github.com/campaigngraph/campaigngraph/pkg/llm"
)

// embedder is the slice of llm.EmbeddingProvider the candidate finder calls.
type embedder interface {
	Embed(ctx context.Context, text string) (llm.Vector, int, error)
}

// searcher is the slice of semantic.VectorStore the candidate finder calls.
type searcher interface {
	SearchFiltered(ctx context.Context, campaignUUID string, embedding []float32, topK int, pointType semantic.PointType, minScore float32) ([]semantic.SearchResult, error)
}

// noteLookup is the slice of engine/graph.GraphStore used to enrich a
// candidate with the note ids that originally backed it.
type noteLookup interface {
	LookupArtifactNotes(ctx context.Context, campaignUUID, artifactID string) ([]string, error)
	LookupRelationshipNotes(ctx context.Context, campaignUUID, source, label, target string) ([]string, error)
}

// CandidateFinder is C7: embeds a newly extracted item and searches the
// campaign's vector collection for existing artifacts/relationships that
// might be the same thing (§4.7).
type CandidateFinder struct {
	embed  embedder
	search searcher
	graph  noteLookup
	cfg    Config
}

// NewCandidateFinder builds a CandidateFinder over the given backends.
func NewCandidateFinder(embed embedder, search searcher, graph noteLookup, cfg Config) *CandidateFinder {
	return &CandidateFinder{embed: embed, search: search, graph: graph, cfg: cfg}
}

func artifactEmbedText(a domain.ExtractedArtifact) string {
	return a.Name + "\n" + a.Description
}

func relationshipEmbedText(r domain.ExtractedRelationship) string {
	return r.Source + " " + r.Label + " " + r.Target + "\n" + r.Description
}

// FindArtifactCandidates returns the existing artifacts, above the
// similarity threshold, that a new extracted artifact might duplicate.
func (f *CandidateFinder) FindArtifactCandidates(ctx context.Context, campaignUUID string, a domain.ExtractedArtifact) ([]domain.ArtifactCandidate, int, error) {
	vec, tokens, err := f.embed.Embed(ctx, artifactEmbedText(a))
	if err != nil {
		return nil, 0, fmt.Errorf("dedup: embed artifact %q: %w", a.Name, err)
	}

	hits, err := f.search.SearchFiltered(ctx, campaignUUID, vec, f.cfg.CandidateLimit, semantic.TypeArtifact, f.cfg.SimilarityThreshold)
	if err != nil {
		return nil, tokens, fmt.Errorf("dedup: search artifact candidates for %q: %w", a.Name, err)
	}

	candidates := make([]domain.ArtifactCandidate, 0, len(hits))
	for _, h := range hits {
		noteIDs, err := f.graph.LookupArtifactNotes(ctx, campaignUUID, h.ID)
		if err != nil {
			return nil, tokens, fmt.Errorf("dedup: lookup notes for candidate %s: %w", h.ID, err)
		}
		candidates = append(candidates, domain.ArtifactCandidate{
			ID:          h.ID,
			Name:        h.Name,
			Type:        h.Meta["category"],
			Description: h.Meta["description"],
			Score:       h.Score,
			NoteIDs:     noteIDs,
		})
	}
	return candidates, tokens, nil
}

// FindRelationshipCandidates returns the existing relationships, above the
// similarity threshold, that a new extracted relationship might duplicate.
func (f *CandidateFinder) FindRelationshipCandidates(ctx context.Context, campaignUUID string, r domain.ExtractedRelationship) ([]domain.RelationshipCandidate, int, error) {
	vec, tokens, err := f.embed.Embed(ctx, relationshipEmbedText(r))
	if err != nil {
		return nil, 0, fmt.Errorf("dedup: embed relationship %s-%s-%s: %w", r.Source, r.Label, r.Target, err)
	}

	hits, err := f.search.SearchFiltered(ctx, campaignUUID, vec, f.cfg.CandidateLimit, semantic.TypeRelation, f.cfg.SimilarityThreshold)
	if err != nil {
		return nil, tokens, fmt.Errorf("dedup: search relationship candidates for %s-%s-%s: %w", r.Source, r.Label, r.Target, err)
	}

	candidates := make([]domain.RelationshipCandidate, 0, len(hits))
	for _, h := range hits {
		source, target, label := h.Meta["source"], h.Meta["target"], h.Meta["label"]
		noteIDs, err := f.graph.LookupRelationshipNotes(ctx, campaignUUID, source, label, target)
		if err != nil {
			return nil, tokens, fmt.Errorf("dedup: lookup notes for candidate %s: %w", h.ID, err)
		}
		candidates = append(candidates, domain.RelationshipCandidate{
			ID:                 h.ID,
			SourceArtifactName: source,
			TargetArtifactName: target,
			Label:              label,
			Description:        h.Meta["description"],
			Score:              h.Score,
			NoteIDs:            noteIDs,
		})
	}
	return candidates, tokens, nil
}

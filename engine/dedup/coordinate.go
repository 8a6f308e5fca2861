// Package dedup implements the hybrid deduplication pipeline's middle
// stages: candidate search (C7), LLM adjudication (C8), and the coordinator
// (C9) that drives both across a note's extracted items and classifies each
// into new / auto_merge / needs_confirmation (P5).
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/campaigngraph/campaigngraph/engine/domain"
	"github.com/campaigngraph/campaigngraph/pkg/fn"
)

// Coordinator is C9: fans extracted artifacts/relationships out to the
// candidate finder and adjudicator with bounded concurrency, then
// classifies each into a DedupOutcome against the configured thresholds.
type Coordinator struct {
	finder      *CandidateFinder
	adjudicator *Adjudicator
	cfg         Config
}

// NewCoordinator builds a Coordinator over the given finder/adjudicator.
func NewCoordinator(finder *CandidateFinder, adjudicator *Adjudicator, cfg Config) *Coordinator {
	return &Coordinator{finder: finder, adjudicator: adjudicator, cfg: cfg}
}

func (c *Coordinator) workers() int {
	if c.cfg.MaxInflightLLMCalls <= 0 {
		return 1
	}
	return c.cfg.MaxInflightLLMCalls
}

type artifactCandidates struct {
	item       domain.ExtractedArtifact
	candidates []domain.ArtifactCandidate
	tokens     int
}

type relationshipCandidates struct {
	item       domain.ExtractedRelationship
	candidates []domain.RelationshipCandidate
	tokens     int
}

type artifactOutcome struct {
	decision domain.ArtifactDecision
	tokens   int
}

type relationshipOutcome struct {
	decision domain.RelationshipDecision
	tokens   int
}

// Deduplicate runs C7 then C8 over every item extracted from note and
// returns the classified outcomes (§4.7-§4.9).
func (c *Coordinator) Deduplicate(ctx context.Context, campaignUUID string, note domain.Note, artifacts []domain.ExtractedArtifact, relationships []domain.ExtractedRelationship) (domain.DeduplicationResult, error) {
	var result domain.DeduplicationResult

	phase1Start := time.Now()
	artifactHitResults := fn.ParMapResult(artifacts, c.workers(), func(a domain.ExtractedArtifact) fn.Result[artifactCandidates] {
		cands, tokens, err := c.finder.FindArtifactCandidates(ctx, campaignUUID, a)
		if err != nil {
			return fn.Err[artifactCandidates](err)
		}
		return fn.Ok(artifactCandidates{item: a, candidates: cands, tokens: tokens})
	})
	artifactHits := make([]artifactCandidates, 0, len(artifactHitResults))
	for _, r := range artifactHitResults {
		hit, err := r.Unwrap()
		if err != nil {
			return result, fmt.Errorf("dedup: candidate search for artifacts: %w", err)
		}
		artifactHits = append(artifactHits, hit)
	}

	relHitResults := fn.ParMapResult(relationships, c.workers(), func(r domain.ExtractedRelationship) fn.Result[relationshipCandidates] {
		cands, tokens, err := c.finder.FindRelationshipCandidates(ctx, campaignUUID, r)
		if err != nil {
			return fn.Err[relationshipCandidates](err)
		}
		return fn.Ok(relationshipCandidates{item: r, candidates: cands, tokens: tokens})
	})
	relHits := make([]relationshipCandidates, 0, len(relHitResults))
	for _, r := range relHitResults {
		hit, err := r.Unwrap()
		if err != nil {
			return result, fmt.Errorf("dedup: candidate search for relationships: %w", err)
		}
		relHits = append(relHits, hit)
	}
	result.Phase1Ms = time.Since(phase1Start).Milliseconds()

	phase2Start := time.Now()
	now := time.Now().Unix()

	// Decisions are collected into per-item structs rather than mutating
	// result directly from worker goroutines, then folded in sequentially
	// below — ParMapResult's workers run concurrently.
	artifactOutcomes := fn.ParMapResult(artifactHits, c.workers(), func(hit artifactCandidates) fn.Result[artifactOutcome] {
		dec, tokens := c.classifyArtifact(ctx, campaignUUID, note, hit, now)
		return fn.Ok(artifactOutcome{decision: dec, tokens: hit.tokens + tokens})
	})
	for _, d := range artifactOutcomes {
		out, _ := d.Unwrap()
		result.TokensUsed += out.tokens
		result.ArtifactDecisions = append(result.ArtifactDecisions, out.decision)
		if out.decision.Outcome == domain.OutcomeNew {
			result.NewArtifacts = append(result.NewArtifacts, out.decision.Artifact)
		}
	}

	relationshipOutcomes := fn.ParMapResult(relHits, c.workers(), func(hit relationshipCandidates) fn.Result[relationshipOutcome] {
		dec, tokens := c.classifyRelationship(ctx, campaignUUID, note, hit, now)
		return fn.Ok(relationshipOutcome{decision: dec, tokens: hit.tokens + tokens})
	})
	for _, d := range relationshipOutcomes {
		out, _ := d.Unwrap()
		result.TokensUsed += out.tokens
		result.RelationshipDecisions = append(result.RelationshipDecisions, out.decision)
		if out.decision.Outcome == domain.OutcomeNew {
			result.NewRelationships = append(result.NewRelationships, out.decision.Relationship)
		}
	}
	result.Phase2Ms = time.Since(phase2Start).Milliseconds()
	result.TotalMs = result.Phase1Ms + result.Phase2Ms
	return result, nil
}

// classifyArtifact adjudicates hit's highest-scoring candidate (if any) and
// returns the final per-item decision plus the adjudication call's token
// count (0 when no candidate existed to adjudicate against).
func (c *Coordinator) classifyArtifact(ctx context.Context, campaignUUID string, note domain.Note, hit artifactCandidates, now int64) (domain.ArtifactDecision, int) {
	best, ok := bestArtifactCandidate(hit.candidates)
	if !ok {
		return domain.ArtifactDecision{
			Artifact: newArtifact(hit.item, campaignUUID, note.ID, now),
			Outcome:  domain.OutcomeNew,
		}, 0
	}

	decision, tokens := c.adjudicator.AdjudicateArtifact(ctx, campaignUUID, note, hit.item, best)
	if !decision.IsSame {
		return domain.ArtifactDecision{
			Artifact: newArtifact(hit.item, campaignUUID, note.ID, now),
			Outcome:  domain.OutcomeNew,
		}, tokens
	}

	outcome := domain.OutcomeNeedsConfirmation
	if decision.Confidence >= c.cfg.AutoMergeThreshold {
		outcome = domain.OutcomeAutoMerge
	}
	return domain.ArtifactDecision{
		Artifact:     newArtifact(hit.item, campaignUUID, note.ID, now),
		Outcome:      outcome,
		ExistingID:   best.ID,
		ExistingName: best.Name,
		Confidence:   decision.Confidence,
		Reasoning:    decision.Reasoning,
	}, tokens
}

// classifyRelationship is the relationship analogue of classifyArtifact.
func (c *Coordinator) classifyRelationship(ctx context.Context, campaignUUID string, note domain.Note, hit relationshipCandidates, now int64) (domain.RelationshipDecision, int) {
	best, ok := bestRelationshipCandidate(hit.candidates)
	if !ok {
		return domain.RelationshipDecision{
			Relationship: newRelationship(hit.item, campaignUUID, note.ID, now),
			Outcome:      domain.OutcomeNew,
		}, 0
	}

	decision, tokens := c.adjudicator.AdjudicateRelationship(ctx, campaignUUID, note, hit.item, best)
	if !decision.IsSame {
		return domain.RelationshipDecision{
			Relationship: newRelationship(hit.item, campaignUUID, note.ID, now),
			Outcome:      domain.OutcomeNew,
		}, tokens
	}

	outcome := domain.OutcomeNeedsConfirmation
	if decision.Confidence >= c.cfg.AutoMergeThreshold {
		outcome = domain.OutcomeAutoMerge
	}
	return domain.RelationshipDecision{
		Relationship: newRelationship(hit.item, campaignUUID, note.ID, now),
		Outcome:      outcome,
		ExistingID:   best.ID,
		Confidence:   decision.Confidence,
		Reasoning:    decision.Reasoning,
	}, tokens
}

func bestArtifactCandidate(cands []domain.ArtifactCandidate) (domain.ArtifactCandidate, bool) {
	if len(cands) == 0 {
		return domain.ArtifactCandidate{}, false
	}
	best := cands[0]
	for _, c := range cands[1:] {
		if c.Score > best.Score {
			best = c
		}
	}
	return best, true
}

func bestRelationshipCandidate(cands []domain.RelationshipCandidate) (domain.RelationshipCandidate, bool) {
	if len(cands) == 0 {
		return domain.RelationshipCandidate{}, false
	}
	best := cands[0]
	for _, c := range cands[1:] {
		if c.Score > best.Score {
			best = c
		}
	}
	return best, true
}

func newArtifact(item domain.ExtractedArtifact, campaignUUID, noteID string, now int64) domain.Artifact {
	return domain.Artifact{
		ID:           uuid.New().String(),
		Name:         item.Name,
		Type:         domain.NormalizeArtifactType(item.Type),
		CampaignUUID: campaignUUID,
		Description:  item.Description,
		NoteIDs:      []string{noteID},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func newRelationship(item domain.ExtractedRelationship, campaignUUID, noteID string, now int64) domain.Relationship {
	return domain.Relationship{
		ID:                 uuid.New().String(),
		SourceArtifactName: item.Source,
		TargetArtifactName: item.Target,
		Label:              item.Label,
		Description:        item.Description,
		Reasoning:          item.Reasoning,
		NoteIDs:            []string{noteID},
		CampaignUUID:       campaignUUID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/campaigngraph/campaigngraph/engine/domain"
	"github.com/campaigngraph/campaigngraph/engine/merge"
	"github.com/campaigngraph/campaigngraph/engine/semantic"
	"github.com/campaigngraph/campaigngraph/engine/session"
	"github.com/campaigngraph/campaigngraph/pkg/fn"
)

// DefaultWorkflowTimeout is the wall-clock budget for one ingest, start to
// finish (§5).
const DefaultWorkflowTimeout = 10 * time.Minute

// DefaultEmbeddingDims is D, the reference deployment's embedding
// dimensionality (§3 VectorPoint), used to size a campaign's collection the
// first time it is ensured.
const DefaultEmbeddingDims = 3072

// graphWriter is the slice of engine/graph.GraphStore the orchestrator needs
// to persist brand-new artifacts/relationships (§4.12 step "Committed").
type graphWriter interface {
	UpsertArtifact(ctx context.Context, a domain.Artifact) error
	UpsertRelationship(ctx context.Context, campaignUUID string, r domain.Relationship) (bool, error)
}

// vectorWriter is the slice of engine/semantic.VectorStore the orchestrator
// needs to persist brand-new artifact/relationship vectors.
type vectorWriter interface {
	Upsert(ctx context.Context, campaignUUID string, records []semantic.VectorRecord) error
}

// vectorReader is the slice of engine/semantic.VectorStore the orchestrator
// needs to read a note's own point back (§6 GET endpoint).
type vectorReader interface {
	GetByIDs(ctx context.Context, campaignUUID string, ids []string) ([]semantic.SearchResult, error)
}

// vectorEnsurer is the slice of engine/semantic.VectorStore the
// orchestrator needs to lazily stand up a campaign's collection (§9
// "campaign-scoped vector collections are created lazily... on first note
// ingest") ahead of embedding the note.
type vectorEnsurer interface {
	EnsureCollection(ctx context.Context, campaignUUID string, dims int) error
}

// vectorStore is the full slice of engine/semantic.VectorStore the
// orchestrator depends on.
type vectorStore interface {
	vectorWriter
	vectorReader
	vectorEnsurer
}

// Orchestrator is C12: the top-level state machine that drives a note from
// Received through Embedded, Extracted, Deduplicated, and on to either
// Committed or AwaitingConfirmation (§4.12).
type Orchestrator struct {
	pipeline fn.Stage[ingestState, ingestState]

	embed  embedder
	graph  graphWriter
	vector vectorStore
	merger *merge.Executor

	sessions *session.Store
	locks    *campaignLocks

	categories      []domain.Category
	workflowTimeout time.Duration
	embeddingDims   int
	sessionTTL      time.Duration
	ensured         sync.Map // campaign uuid -> struct{}, collections already confirmed to exist
}

// Config wires an Orchestrator's collaborators and tunables. Categories
// defaults to domain.DefaultArtifactCategories and WorkflowTimeout to
// DefaultWorkflowTimeout when left zero.
type Config struct {
	Embed       embedder
	Extractor   extractor
	Coordinator deduplicator
	Graph       graphWriter
	Vector      vectorStore
	Merger      *merge.Executor
	Sessions    *session.Store
	Categories  []domain.Category

	WorkflowTimeout time.Duration
	EmbeddingDims   int
	SessionTTL      time.Duration
	Logger          *slog.Logger
}

// New builds an Orchestrator from cfg.
func New(cfg Config) *Orchestrator {
	categories := cfg.Categories
	if len(categories) == 0 {
		categories = domain.DefaultArtifactCategories
	}
	timeout := cfg.WorkflowTimeout
	if timeout <= 0 {
		timeout = DefaultWorkflowTimeout
	}
	dims := cfg.EmbeddingDims
	if dims <= 0 {
		dims = DefaultEmbeddingDims
	}
	sessionTTL := cfg.SessionTTL
	if sessionTTL <= 0 {
		sessionTTL = session.DefaultTTL
	}

	pipeline := NewPipeline(Deps{
		Embed:       cfg.Embed,
		Vector:      cfg.Vector,
		Extractor:   cfg.Extractor,
		Coordinator: cfg.Coordinator,
		Logger:      cfg.Logger,
	})

	return &Orchestrator{
		pipeline:        pipeline,
		embed:           cfg.Embed,
		graph:           cfg.Graph,
		vector:          cfg.Vector,
		merger:          cfg.Merger,
		sessions:        cfg.Sessions,
		locks:           newCampaignLocks(),
		categories:      categories,
		workflowTimeout: timeout,
		embeddingDims:   dims,
		sessionTTL:      sessionTTL,
	}
}

// ensureCollection stands up campaignUUID's vector collection on first use,
// skipping the (idempotent but otherwise redundant) Qdrant round-trip on
// every subsequent ingest for a campaign already confirmed this process.
func (o *Orchestrator) ensureCollection(ctx context.Context, campaignUUID string) error {
	if _, done := o.ensured.Load(campaignUUID); done {
		return nil
	}
	if err := o.vector.EnsureCollection(ctx, campaignUUID, o.embeddingDims); err != nil {
		return fmt.Errorf("ingest: ensure vector collection for campaign %s: %w", campaignUUID, err)
	}
	o.ensured.Store(campaignUUID, struct{}{})
	return nil
}

// IngestNote runs the full pipeline for one note (§4.12 Received through
// Deduplicated), then either commits its items immediately or parks them
// behind a pending confirmation session, depending on whether any item's
// dedup decision needs human confirmation.
func (o *Orchestrator) IngestNote(ctx context.Context, campaignUUID, title, content string) (domain.NoteCreateResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, o.workflowTimeout)
	defer cancel()

	if err := o.ensureCollection(ctx, campaignUUID); err != nil {
		return domain.NoteCreateResponse{}, err
	}

	now := time.Now().Unix()
	note := domain.Note{
		ID:           domain.NewNoteID(title, content),
		CampaignUUID: campaignUUID,
		Title:        title,
		Content:      content,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	st, err := o.pipeline(ctx, ingestState{note: note, categories: o.categories}).Unwrap()
	if err != nil {
		return domain.NoteCreateResponse{}, fmt.Errorf("ingest_failed: %w", err)
	}

	return o.resolve(ctx, st.note, st.dedup)
}

// resolve implements §4.12's "Deduplicated → {Committed | AwaitingConfirmation}"
// fork: the whole note's batch of decisions parks behind a pending session
// the moment any single decision needs confirmation — including items that
// independently classified as new or auto_merge — since nothing may be
// written to the graph until the client resolves the ambiguous ones.
func (o *Orchestrator) resolve(ctx context.Context, note domain.Note, dedup domain.DeduplicationResult) (domain.NoteCreateResponse, error) {
	proposals := buildProposals(dedup)
	if len(proposals) > 0 {
		sess := domain.PendingDedupSession{
			NoteID:               note.ID,
			CampaignUUID:         note.CampaignUUID,
			PendingArtifacts:     pendingArtifacts(dedup),
			PendingRelationships: pendingRelationships(dedup),
			Proposals:            proposals,
			CreatedAt:            time.Now(),
			ExpiresAt:            time.Now().Add(o.sessionTTL),
		}
		o.sessions.Put(sess)

		return domain.NoteCreateResponse{
			NoteID:                   note.ID,
			Success:                  true,
			Message:                 "awaiting user confirmation for ambiguous matches",
			ArtifactCount:            len(sess.PendingArtifacts),
			RelationshipCount:        len(sess.PendingRelationships),
			RequiresUserConfirmation: true,
			Proposals:                proposals,
		}, nil
	}

	unlock := o.locks.lock(note.CampaignUUID)
	defer unlock()

	mergedArtifacts, err := o.commitArtifactDecisions(ctx, note.CampaignUUID, dedup.ArtifactDecisions)
	if err != nil {
		return domain.NoteCreateResponse{}, err
	}
	mergedRelationships, err := o.commitRelationshipDecisions(ctx, note.CampaignUUID, dedup.RelationshipDecisions)
	if err != nil {
		return domain.NoteCreateResponse{}, err
	}

	return domain.NoteCreateResponse{
		NoteID:                   note.ID,
		Success:                  true,
		Message:                  "note ingested",
		ArtifactCount:            len(dedup.ArtifactDecisions),
		RelationshipCount:        len(dedup.RelationshipDecisions),
		MergedArtifactCount:      mergedArtifacts,
		MergedRelationshipCount:  mergedRelationships,
		RequiresUserConfirmation: false,
	}, nil
}

// commitArtifactDecisions commits every decision into the graph (new items
// inserted fresh, auto_merge items merged via C11) and returns the number
// merged.
func (o *Orchestrator) commitArtifactDecisions(ctx context.Context, campaignUUID string, decisions []domain.ArtifactDecision) (int, error) {
	merged := 0
	for _, d := range decisions {
		if d.Outcome == domain.OutcomeAutoMerge {
			if _, err := o.merger.MergeArtifact(ctx, campaignUUID, d.ExistingName, d.Artifact, ""); err != nil {
				return merged, err
			}
			merged++
			continue
		}
		if err := o.commitNewArtifact(ctx, campaignUUID, d.Artifact); err != nil {
			return merged, err
		}
	}
	return merged, nil
}

// commitRelationshipDecisions is the relationship analogue of
// commitArtifactDecisions.
func (o *Orchestrator) commitRelationshipDecisions(ctx context.Context, campaignUUID string, decisions []domain.RelationshipDecision) (int, error) {
	merged := 0
	for _, d := range decisions {
		if d.Outcome == domain.OutcomeAutoMerge {
			if _, err := o.merger.MergeRelationship(ctx, campaignUUID, d.Relationship.SourceArtifactName, d.Relationship.Label, d.Relationship.TargetArtifactName, d.Relationship, ""); err != nil {
				return merged, err
			}
			merged++
			continue
		}
		if err := o.commitNewRelationship(ctx, campaignUUID, d.Relationship); err != nil {
			return merged, err
		}
	}
	return merged, nil
}

// commitNewArtifact persists a[not-yet-seen] artifact into the graph and
// then, best-effort, its vector (§7 item 4: a vector-side failure here is
// consistency-degraded, logged rather than propagated).
func (o *Orchestrator) commitNewArtifact(ctx context.Context, campaignUUID string, a domain.Artifact) error {
	if err := o.graph.UpsertArtifact(ctx, a); err != nil {
		return fmt.Errorf("ingest: upsert artifact %q: %w", a.Name, err)
	}

	vec, _, err := o.embed.Embed(ctx, a.Name+"\n"+a.Description)
	if err != nil {
		slog.WarnContext(ctx, "ingest: failed to embed new artifact, vector absent", "name", a.Name, "error", err)
		return nil
	}
	record := semantic.VectorRecord{
		ID:        a.ID,
		Embedding: vec,
		Type:      semantic.TypeArtifact,
		Name:      a.Name,
		Payload: map[string]any{
			"category":    a.Type,
			"description": a.Description,
			"created_at":  strconv.FormatInt(a.CreatedAt, 10),
		},
	}
	if err := o.vector.Upsert(ctx, campaignUUID, []semantic.VectorRecord{record}); err != nil {
		slog.WarnContext(ctx, "ingest: failed to upsert new artifact vector", "name", a.Name, "error", err)
	}
	return nil
}

// commitNewRelationship is the relationship analogue of commitNewArtifact.
// A false ok from UpsertRelationship means one of its endpoints does not
// exist yet in the graph (§3 "both endpoints must exist at commit"); that
// is logged and skipped rather than failing the whole note.
func (o *Orchestrator) commitNewRelationship(ctx context.Context, campaignUUID string, r domain.Relationship) error {
	ok, err := o.graph.UpsertRelationship(ctx, campaignUUID, r)
	if err != nil {
		return fmt.Errorf("ingest: upsert relationship %s-%s->%s: %w", r.SourceArtifactName, r.Label, r.TargetArtifactName, err)
	}
	if !ok {
		slog.WarnContext(ctx, "ingest: relationship endpoint missing, skipped", "source", r.SourceArtifactName, "label", r.Label, "target", r.TargetArtifactName)
		return nil
	}

	vec, _, err := o.embed.Embed(ctx, r.SourceArtifactName+" "+r.Label+" "+r.TargetArtifactName+"\n"+r.Description)
	if err != nil {
		slog.WarnContext(ctx, "ingest: failed to embed new relationship, vector absent", "error", err)
		return nil
	}
	record := semantic.VectorRecord{
		ID:        r.ID,
		Embedding: vec,
		Type:      semantic.TypeRelation,
		Name:      fmt.Sprintf("%s %s %s", r.SourceArtifactName, r.Label, r.TargetArtifactName),
		Payload: map[string]any{
			"source":      r.SourceArtifactName,
			"target":      r.TargetArtifactName,
			"label":       r.Label,
			"description": r.Description,
		},
	}
	if err := o.vector.Upsert(ctx, campaignUUID, []semantic.VectorRecord{record}); err != nil {
		slog.WarnContext(ctx, "ingest: failed to upsert new relationship vector", "source", r.SourceArtifactName, "label", r.Label, "target", r.TargetArtifactName, "error", err)
	}
	return nil
}

// buildProposals collects the needs_confirmation subset of dedup's
// decisions into user-facing MergeProposals (§3, §4.12 step
// "AwaitingConfirmation"). A relationship has no stored existing-name the
// way an artifact does — its merge key is the (source, label, target)
// triple already carried on the pending item itself — so its
// ExistingItemName is formatted from that triple for display.
func buildProposals(dedup domain.DeduplicationResult) []domain.MergeProposal {
	var proposals []domain.MergeProposal

	for _, d := range dedup.ArtifactDecisions {
		if d.Outcome != domain.OutcomeNeedsConfirmation {
			continue
		}
		proposals = append(proposals, domain.MergeProposal{
			ProposalID:       uuid.New().String(),
			ItemType:         domain.ItemArtifact,
			NewItemID:        d.Artifact.ID,
			ExistingItemID:   d.ExistingID,
			ExistingItemName: d.ExistingName,
			Confidence:       d.Confidence,
			Reasoning:        d.Reasoning,
		})
	}

	for _, d := range dedup.RelationshipDecisions {
		if d.Outcome != domain.OutcomeNeedsConfirmation {
			continue
		}
		proposals = append(proposals, domain.MergeProposal{
			ProposalID:       uuid.New().String(),
			ItemType:         domain.ItemRelationship,
			NewItemID:        d.Relationship.ID,
			ExistingItemID:   d.ExistingID,
			ExistingItemName: fmt.Sprintf("%s %s %s", d.Relationship.SourceArtifactName, d.Relationship.Label, d.Relationship.TargetArtifactName),
			Confidence:       d.Confidence,
			Reasoning:        d.Reasoning,
		})
	}

	return proposals
}

func pendingArtifacts(dedup domain.DeduplicationResult) []domain.Artifact {
	out := make([]domain.Artifact, 0, len(dedup.ArtifactDecisions))
	for _, d := range dedup.ArtifactDecisions {
		out = append(out, d.Artifact)
	}
	return out
}

func pendingRelationships(dedup domain.DeduplicationResult) []domain.Relationship {
	out := make([]domain.Relationship, 0, len(dedup.RelationshipDecisions))
	for _, d := range dedup.RelationshipDecisions {
		out = append(out, d.Relationship)
	}
	return out
}

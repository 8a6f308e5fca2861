package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/campaigngraph/campaigngraph/engine/domain"
	"github.com/campaigngraph/campaigngraph/engine/extract"
	"github.com/campaigngraph/campaigngraph/engine/semantic"
	"github.com/campaigngraph/campaigngraph/pkg/fn"
)

// noteVectorWriter is the slice of engine/semantic.VectorStore the note
// embedding stage needs.
type noteVectorWriter interface {
	Upsert(ctx context.Context, campaignUUID string, records []semantic.VectorRecord) error
}

// extractor is the slice of *engine/extract.Extractor the orchestrator
// needs (C6).
type extractor interface {
	Extract(ctx context.Context, note domain.Note, categories []domain.Category) (extract.Result, error)
}

// deduplicator is the slice of *engine/dedup.Coordinator the orchestrator
// needs (C9).
type deduplicator interface {
	Deduplicate(ctx context.Context, campaignUUID string, note domain.Note, artifacts []domain.ExtractedArtifact, relationships []domain.ExtractedRelationship) (domain.DeduplicationResult, error)
}

// Deps wires the pipeline's external collaborators.
type Deps struct {
	Embed       embedder
	Vector      noteVectorWriter
	Extractor   extractor
	Coordinator deduplicator
	Logger      *slog.Logger
}

// Validate rejects notes that fail the word-count/empty-field invariants
// (§4.12 "Received → Embedded" reject case).
var Validate fn.Stage[ingestState, ingestState] = func(_ context.Context, st ingestState) fn.Result[ingestState] {
	if err := domain.ValidateNote(st.note.Title, st.note.Content); err != nil {
		return fn.Err[ingestState](err)
	}
	return fn.Ok(st)
}

// NewEmbedNote builds the "Received → Embedded" stage: embed the note's
// text via C1 and upsert its vector point with the type-discriminated
// payload (§4.12, §6 persisted-state layout item 2).
func NewEmbedNote(embed embedder, vector noteVectorWriter) fn.Stage[ingestState, ingestState] {
	return func(ctx context.Context, st ingestState) fn.Result[ingestState] {
		vec, _, err := embed.Embed(ctx, st.note.Text())
		if err != nil {
			return fn.Err[ingestState](fmt.Errorf("ingest: embed note: %w", err))
		}
		record := semantic.VectorRecord{
			ID:        st.note.ID,
			Embedding: vec,
			Type:      semantic.TypeNote,
			Name:      st.note.Title,
			Payload: map[string]any{
				"note_id":       st.note.ID,
				"title":         st.note.Title,
				"content":       st.note.Content,
				"campaign_uuid": st.note.CampaignUUID,
				"created_at":    strconv.FormatInt(st.note.CreatedAt, 10),
			},
		}
		if err := vector.Upsert(ctx, st.note.CampaignUUID, []semantic.VectorRecord{record}); err != nil {
			return fn.Err[ingestState](fmt.Errorf("ingest: upsert note vector: %w", err))
		}
		return fn.Ok(st)
	}
}

// NewExtractStage builds the "Embedded → Extracted" stage (§4.12), running
// C6 over the note.
func NewExtractStage(ex extractor) fn.Stage[ingestState, ingestState] {
	return func(ctx context.Context, st ingestState) fn.Result[ingestState] {
		result, err := ex.Extract(ctx, st.note, st.categories)
		if err != nil {
			return fn.Err[ingestState](fmt.Errorf("ingest: extract: %w", err))
		}
		st.extracted = result
		return fn.Ok(st)
	}
}

// NewDedupStage builds the "Extracted → Deduplicated" stage (§4.12),
// running C9 over the extracted artifacts and relationships.
func NewDedupStage(coord deduplicator) fn.Stage[ingestState, ingestState] {
	return func(ctx context.Context, st ingestState) fn.Result[ingestState] {
		result, err := coord.Deduplicate(ctx, st.note.CampaignUUID, st.note, st.extracted.Artifacts, st.extracted.Relationships)
		if err != nil {
			return fn.Err[ingestState](fmt.Errorf("ingest: dedup: %w", err))
		}
		st.dedup = result
		return fn.Ok(st)
	}
}

// LoggedTap returns a stage that logs entry/exit with duration, generalized
// from the teacher's scraped-content pipeline idiom to any same-typed
// pipeline value.
func LoggedTap[T any](name string, log *slog.Logger) fn.Stage[T, T] {
	return func(ctx context.Context, t T) fn.Result[T] {
		log.Debug("ingest.stage.enter", "stage", name)
		start := time.Now()
		defer func() {
			log.Debug("ingest.stage.exit", "stage", name, "duration", time.Since(start))
		}()
		return fn.Ok(t)
	}
}

// NewPipeline composes the full ingestion pipeline (§4.12's Received →
// Deduplicated transitions): Validate → Embed-note → Extract → Dedup, with
// logging taps between stages, generalizing the teacher's
// Validate → Parse → Chunk → Embed → Store chain.
func NewPipeline(deps Deps) fn.Stage[ingestState, ingestState] {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	validated := fn.Then(LoggedTap[ingestState]("validate", log), Validate)
	embedded := fn.Then(LoggedTap[ingestState]("embed_note", log), NewEmbedNote(deps.Embed, deps.Vector))
	extracted := fn.Then(LoggedTap[ingestState]("extract", log), NewExtractStage(deps.Extractor))
	deduped := fn.Then(LoggedTap[ingestState]("dedup", log), NewDedupStage(deps.Coordinator))

	return fn.Pipeline(validated, embedded, extracted, deduped)
}

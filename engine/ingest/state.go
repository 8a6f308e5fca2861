// Package ingest implements the Note-Ingest Orchestrator (C12): the
// top-level state machine that takes a note from Received through
// Embedded, Extracted, Deduplicated, and on to either Committed or
// AwaitingConfirmation, generalizing the teacher's scraped-content
// pipeline idiom (Validate → Parse → Chunk → Embed → Store) to this
// domain's Validate → Embed-note → Extract → Dedup → Commit-or-Park
// shape (§4.12).
package ingest

import (
	"context"

	"github.com/campaigngraph/campaigngraph/engine/domain"
	"github.com/campaigngraph/campaigngraph/engine/extract"
	"github.com/campaigngraph/campaigngraph/pkg/llm"
)

// ingestState threads through the pipeline stages, accumulating the
// products of each one — the analogue of the teacher's ParsedDoc →
// ChunkedDoc → EmbeddedDoc chain, but as a single same-typed value so the
// stages compose via fn.Pipeline rather than fn.Then's type-changing form.
type ingestState struct {
	note       domain.Note
	categories []domain.Category
	extracted  extract.Result
	dedup      domain.DeduplicationResult
}

// embedder is the slice of llm.EmbeddingProvider the orchestrator needs to
// embed a note's own text (§4.12 "Received → Embedded").
type embedder interface {
	Embed(ctx context.Context, text string) (llm.Vector, int, error)
}

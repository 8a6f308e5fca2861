package ingest

import (
	"context"
	"fmt"
	"strconv"

	"github.com/campaigngraph/campaigngraph/engine/domain"
	"github.com/campaigngraph/campaigngraph/engine/semantic"
)

// GetNote returns the note as stored in the vector store's own note point
// (§6 "GET .../notes/{noteId}"): the note's title/content are never kept
// anywhere else, so this is a read straight off its vector payload rather
// than a graph lookup.
func (o *Orchestrator) GetNote(ctx context.Context, campaignUUID, noteID string) (domain.NoteDTO, bool, error) {
	results, err := o.vector.GetByIDs(ctx, campaignUUID, []string{noteID})
	if err != nil {
		return domain.NoteDTO{}, false, fmt.Errorf("ingest: get note %s: %w", noteID, err)
	}

	for _, r := range results {
		if r.Type != semantic.TypeNote {
			continue
		}
		createdAt, _ := strconv.ParseInt(r.Meta["created_at"], 10, 64)
		return domain.NoteDTO{
			NoteID:       r.Meta["note_id"],
			CampaignUUID: r.Meta["campaign_uuid"],
			Title:        r.Meta["title"],
			Content:      r.Meta["content"],
			CreatedAt:    createdAt,
		}, true, nil
	}

	return domain.NoteDTO{}, false, nil
}

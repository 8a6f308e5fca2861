package ingest

import (
	"context"
	"fmt"

	"github.com/campaigngraph/campaigngraph/engine/domain"
)

// ConfirmDeduplication drives §4.12's "AwaitingConfirmation → Confirmed"
// transition: every pending item matched by an approved proposal is merged
// via C11 using that proposal's existing item; every other pending item
// from the session — including ones that would have auto-merged or been
// treated as new had the note committed immediately — is inserted fresh,
// since only proposal-approved items ever take the merge path once a note
// has been parked (§4.12 literal transition text).
func (o *Orchestrator) ConfirmDeduplication(ctx context.Context, campaignUUID, noteID string, approved []domain.MergeProposal) (domain.NoteCreateResponse, error) {
	sess, ok := o.sessions.Get(noteID)
	if !ok {
		return domain.NoteCreateResponse{}, fmt.Errorf("ingest: confirm note %s: %w", noteID, domain.ErrSessionNotFound)
	}
	if sess.CampaignUUID != campaignUUID {
		return domain.NoteCreateResponse{}, fmt.Errorf("ingest: confirm note %s: %w", noteID, domain.ErrCampaignMismatch)
	}

	approvedByID := make(map[string]domain.MergeProposal, len(approved))
	for _, p := range approved {
		approvedByID[p.ProposalID] = p
	}

	// The session's own stored proposal is authoritative for ExistingItemName
	// etc.; the client's approved list only says WHICH proposal ids it
	// approved.
	mergedByNewID := make(map[string]domain.MergeProposal)
	for _, p := range sess.Proposals {
		if _, ok := approvedByID[p.ProposalID]; ok {
			mergedByNewID[p.NewItemID] = p
		}
	}

	unlock := o.locks.lock(campaignUUID)
	defer unlock()

	mergedArtifacts := 0
	for _, a := range sess.PendingArtifacts {
		if p, ok := mergedByNewID[a.ID]; ok && p.ItemType == domain.ItemArtifact {
			if _, err := o.merger.MergeArtifact(ctx, campaignUUID, p.ExistingItemName, a, ""); err != nil {
				return domain.NoteCreateResponse{}, err
			}
			mergedArtifacts++
			continue
		}
		if err := o.commitNewArtifact(ctx, campaignUUID, a); err != nil {
			return domain.NoteCreateResponse{}, err
		}
	}

	mergedRelationships := 0
	for _, r := range sess.PendingRelationships {
		if p, ok := mergedByNewID[r.ID]; ok && p.ItemType == domain.ItemRelationship {
			if _, err := o.merger.MergeRelationship(ctx, campaignUUID, r.SourceArtifactName, r.Label, r.TargetArtifactName, r, ""); err != nil {
				return domain.NoteCreateResponse{}, err
			}
			mergedRelationships++
			continue
		}
		if err := o.commitNewRelationship(ctx, campaignUUID, r); err != nil {
			return domain.NoteCreateResponse{}, err
		}
	}

	o.sessions.Remove(noteID)

	return domain.NoteCreateResponse{
		NoteID:                   noteID,
		Success:                  true,
		Message:                  "deduplication confirmed",
		ArtifactCount:            len(sess.PendingArtifacts),
		RelationshipCount:        len(sess.PendingRelationships),
		MergedArtifactCount:      mergedArtifacts,
		MergedRelationshipCount:  mergedRelationships,
		RequiresUserConfirmation: false,
	}, nil
}

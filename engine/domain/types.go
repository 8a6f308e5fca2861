// Package domain defines the core narrative entities — notes, artifacts,
// relationships, and the pending-confirmation types that span the two
// requests it takes to commit a dedup decision — plus the validation gate
// at pipeline entry points.
package domain

import "time"

// ArtifactType classifies a narrative artifact. Campaigns are expected to
// use this default set but the field is free-form.
type ArtifactType string

const (
	ArtifactCharacter ArtifactType = "characters"
	ArtifactLocation  ArtifactType = "locations"
	ArtifactItem      ArtifactType = "items"
	ArtifactEvent     ArtifactType = "events"
)

// DefaultArtifactCategories is the default category set offered to the
// extractor when a campaign has not configured its own.
var DefaultArtifactCategories = []Category{
	{Name: string(ArtifactCharacter), Description: "People, creatures, and other named actors in the story"},
	{Name: string(ArtifactLocation), Description: "Places: settlements, dungeons, regions, buildings"},
	{Name: string(ArtifactItem), Description: "Objects: weapons, artifacts, documents, currency"},
	{Name: string(ArtifactEvent), Description: "Notable happenings: battles, ceremonies, disasters"},
}

// Category is an artifact category known to a campaign.
type Category struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Note is an immutable narrative note belonging to a campaign. Its id is
// deterministic over title+content so re-ingesting identical text is a
// no-op (P1).
type Note struct {
	ID           string    `json:"id"`
	CampaignUUID string    `json:"campaign_uuid"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	CreatedAt    int64     `json:"created_at"`
	UpdatedAt    int64     `json:"updated_at"`
}

// Text is the canonical form notes are embedded and id-hashed from.
func (n Note) Text() string {
	return n.Title + "\n\n" + n.Content
}

// Artifact is a narrative entity (character, location, item, event)
// extracted from one or more notes.
type Artifact struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	CampaignUUID string   `json:"campaign_uuid"`
	Description  string   `json:"description"`
	NoteIDs      []string `json:"note_ids"`
	CreatedAt    int64    `json:"created_at"`
	UpdatedAt    int64    `json:"updated_at"`
}

// Relationship is a directional, typed edge between two artifacts in the
// same campaign, identified across ingests by (source, label, target).
type Relationship struct {
	ID                 string   `json:"id"`
	SourceArtifactName string   `json:"source_artifact_name"`
	TargetArtifactName string   `json:"target_artifact_name"`
	Label              string   `json:"label"`
	Description        string   `json:"description"`
	Reasoning          string   `json:"reasoning"`
	NoteIDs            []string `json:"note_ids"`
	CampaignUUID       string   `json:"campaign_uuid"`
	CreatedAt          int64    `json:"created_at"`
	UpdatedAt          int64    `json:"updated_at"`
}

// ArtifactCandidate is a transient search hit: an existing artifact plus
// its ANN similarity score and backing notes, used only during dedup.
type ArtifactCandidate struct {
	ID          string
	Name        string
	Type        string
	Description string
	Score       float32
	NoteIDs     []string
}

// RelationshipCandidate is the relationship analogue of ArtifactCandidate.
type RelationshipCandidate struct {
	ID                 string
	SourceArtifactName string
	TargetArtifactName string
	Label              string
	Description        string
	Score               float32
	NoteIDs             []string
}

// DeduplicationDecision is C8's verdict on one (new item, candidate) pair.
type DeduplicationDecision struct {
	IsSame        bool   `json:"is_same"`
	Confidence    int    `json:"confidence"` // clamped [0,100]
	Reasoning     string `json:"reasoning"`
	CandidateID   string `json:"candidate_id"`
	CandidateName string `json:"candidate_name"`
}

// ClampConfidence enforces P4: every persisted confidence lies in [0,100].
func ClampConfidence(c int) int {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}

// ItemType distinguishes artifacts from relationships in proposals/sessions.
type ItemType string

const (
	ItemArtifact     ItemType = "artifact"
	ItemRelationship ItemType = "relationship"
)

// MergeProposal is a candidate merge requiring human confirmation because
// the adjudicator's confidence fell below the auto-merge threshold.
type MergeProposal struct {
	ProposalID      string   `json:"proposal_id"`
	ItemType        ItemType `json:"item_type"`
	NewItemID       string   `json:"new_item_id"`
	ExistingItemID  string   `json:"existing_item_id"`
	ExistingItemName string  `json:"existing_item_name"`
	Confidence      int      `json:"confidence"`
	Reasoning       string   `json:"reasoning"`
	Approved        bool     `json:"approved"`
}

// PendingDedupSession is the transient state held between a note-ingest
// response that contains proposals and the client's confirmation call.
type PendingDedupSession struct {
	NoteID               string                  `json:"note_id"`
	CampaignUUID         string                  `json:"campaign_uuid"`
	PendingArtifacts     []Artifact              `json:"pending_artifacts"`
	PendingRelationships []Relationship          `json:"pending_relationships"`
	Proposals            []MergeProposal         `json:"proposals"`
	CreatedAt             time.Time               `json:"created_at"`
	ExpiresAt              time.Time               `json:"expires_at"`
}

// ExtractedArtifact is what C6 stage NAE produces before it has an id,
// campaign, or note association.
type ExtractedArtifact struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// ExtractedRelationship is what C6 stage ARE produces before it has an id
// or note association.
type ExtractedRelationship struct {
	Source      string `json:"source"`
	Target      string `json:"target"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Reasoning   string `json:"reasoning"`
}

// DedupOutcome classifies C9's verdict for a single new item (P5).
type DedupOutcome string

const (
	OutcomeNew              DedupOutcome = "new"
	OutcomeAutoMerge        DedupOutcome = "auto_merge"
	OutcomeNeedsConfirmation DedupOutcome = "needs_confirmation"
)

// ArtifactDecision is C9's verdict for one new artifact: either it's
// genuinely new, merges automatically into ExistingName, or needs a human
// confirmation. In every case Artifact is the new item as extracted from
// this note (its own NoteIDs/Description), not the candidate's.
type ArtifactDecision struct {
	Artifact     Artifact
	Outcome      DedupOutcome
	ExistingID   string
	ExistingName string
	Confidence   int
	Reasoning    string
}

// RelationshipDecision is the relationship analogue of ArtifactDecision.
type RelationshipDecision struct {
	Relationship Relationship
	Outcome      DedupOutcome
	ExistingID   string
	Confidence   int
	Reasoning    string
}

// DeduplicationResult is C9's full output for one note's extracted items.
type DeduplicationResult struct {
	NewArtifacts          []Artifact
	NewRelationships      []Relationship
	ArtifactDecisions     []ArtifactDecision
	RelationshipDecisions []RelationshipDecision
	Phase1Ms              int64
	Phase2Ms              int64
	TotalMs                int64
	TokensUsed             int
}

// NoteCreateResponse is returned by both note ingestion and dedup
// confirmation (§6): the shape is identical across the two endpoints, only
// the counts and RequiresUserConfirmation differ.
type NoteCreateResponse struct {
	NoteID                  string          `json:"note_id"`
	Success                 bool            `json:"success"`
	Message                 string          `json:"message"`
	ArtifactCount           int             `json:"artifact_count"`
	RelationshipCount       int             `json:"relationship_count"`
	MergedArtifactCount     int             `json:"merged_artifact_count"`
	MergedRelationshipCount int             `json:"merged_relationship_count"`
	RequiresUserConfirmation bool           `json:"requires_user_confirmation"`
	Proposals                []MergeProposal `json:"proposals,omitempty"`
}

// NoteDTO is a note as stored in the vector store's note point (§6 GET).
type NoteDTO struct {
	NoteID       string `json:"note_id"`
	CampaignUUID string `json:"campaign_uuid"`
	Title        string `json:"title"`
	Content      string `json:"content"`
	CreatedAt    int64  `json:"created_at"`
}

// ConfirmDeduplicationRequest is the body of the confirm-deduplication
// endpoint: the proposals the user approved (§6).
type ConfirmDeduplicationRequest struct {
	ApprovedMergeProposals []MergeProposal `json:"approved_merge_proposals"`
}

package domain

import "github.com/google/uuid"

// noteNamespace is the fixed v5 namespace notes are hashed under so that
// identical (title, content) pairs always produce the same note id (P1),
// independent of process or campaign.
var noteNamespace = uuid.MustParse("8f14e45f-ceea-4b96-8dae-9bdb9d9a0a1c")

// NewNoteID computes the deterministic note id for a title/content pair.
func NewNoteID(title, content string) string {
	return uuid.NewSHA1(noteNamespace, []byte(title+"\n\n"+content)).String()
}

package domain

import (
	"strings"
)

// MaxNoteWords is the word-count ceiling a note's content may not exceed.
const MaxNoteWords = 500

// ValidateNote checks title/content non-empty and the 500-word ceiling.
func ValidateNote(title, content string) error {
	if strings.TrimSpace(title) == "" {
		return NewValidationError("title", title, ErrNoteEmptyTitle)
	}
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return NewValidationError("content", content, ErrNoteEmptyContent)
	}
	if wordCount(trimmed) > MaxNoteWords {
		return NewValidationError("content", "", ErrNoteTooLong)
	}
	return nil
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

// NormalizeArtifactType lowercases and trims an artifact type, matching the
// invariant that a stored Artifact.Type is always lowercase and non-empty.
func NormalizeArtifactType(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

// ValidateArtifact checks the name/type invariants for a freshly extracted
// or persisted artifact.
func ValidateArtifact(name, artifactType string) error {
	if strings.TrimSpace(name) == "" {
		return NewValidationError("name", name, ErrArtifactEmptyName)
	}
	if NormalizeArtifactType(artifactType) == "" {
		return NewValidationError("type", artifactType, ErrArtifactEmptyType)
	}
	return nil
}

// ValidateRelationship checks the source != target invariant.
func ValidateRelationship(source, target string) error {
	if strings.EqualFold(strings.TrimSpace(source), strings.TrimSpace(target)) {
		return NewValidationError("target", target, ErrRelationshipSelfLoop)
	}
	return nil
}

// UnionNoteIDs merges new ids into an existing set, preserving existing
// order and appending new ids in their given order, skipping duplicates
// (P7 / §3 Ownership: note_ids is additive-only, insertion-order preserving).
func UnionNoteIDs(existing, add []string) []string {
	seen := make(map[string]bool, len(existing)+len(add))
	out := make([]string, 0, len(existing)+len(add))
	for _, id := range existing {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, id := range add {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// MergeDescriptions implements the " | "-concatenation merge rule: the
// non-empty side wins when either is empty, otherwise they're joined.
func MergeDescriptions(existing, incoming string) string {
	existing = strings.TrimSpace(existing)
	incoming = strings.TrimSpace(incoming)
	switch {
	case existing == "":
		return incoming
	case incoming == "":
		return existing
	default:
		return existing + " | " + incoming
	}
}

package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateNote_Valid(t *testing.T) {
	if err := ValidateNote("Ambush at the Mill", "Captain Vexa led the raid."); err != nil {
		t.Errorf("expected valid, got %v", err)
	}
}

func TestValidateNote_EmptyTitle(t *testing.T) {
	err := ValidateNote("", "some content")
	if !errors.Is(err, ErrNoteEmptyTitle) {
		t.Errorf("expected ErrNoteEmptyTitle, got %v", err)
	}
}

func TestValidateNote_EmptyContent(t *testing.T) {
	err := ValidateNote("Title", "   ")
	if !errors.Is(err, ErrNoteEmptyContent) {
		t.Errorf("expected ErrNoteEmptyContent, got %v", err)
	}
}

func TestValidateNote_ExactlyAtBoundary(t *testing.T) {
	content := strings.Repeat("word ", MaxNoteWords)
	content = strings.TrimSpace(content)
	if err := ValidateNote("Title", content); err != nil {
		t.Errorf("expected 500 words to be accepted, got %v", err)
	}
}

func TestValidateNote_OverBoundary(t *testing.T) {
	content := strings.TrimSpace(strings.Repeat("word ", MaxNoteWords+1))
	err := ValidateNote("Title", content)
	if !errors.Is(err, ErrNoteTooLong) {
		t.Errorf("expected ErrNoteTooLong, got %v", err)
	}
}

func TestValidateArtifact(t *testing.T) {
	cases := []struct {
		name, typ string
		wantErr   error
	}{
		{"Captain Vexa", "characters", nil},
		{"", "characters", ErrArtifactEmptyName},
		{"Captain Vexa", "", ErrArtifactEmptyType},
		{"Captain Vexa", "   ", ErrArtifactEmptyType},
	}
	for _, c := range cases {
		err := ValidateArtifact(c.name, c.typ)
		if c.wantErr == nil {
			if err != nil {
				t.Errorf("ValidateArtifact(%q,%q): expected nil, got %v", c.name, c.typ, err)
			}
			continue
		}
		if !errors.Is(err, c.wantErr) {
			t.Errorf("ValidateArtifact(%q,%q): expected %v, got %v", c.name, c.typ, c.wantErr, err)
		}
	}
}

func TestNormalizeArtifactType(t *testing.T) {
	if got := NormalizeArtifactType("  Characters "); got != "characters" {
		t.Errorf("got %q", got)
	}
}

func TestValidateRelationship_SelfLoop(t *testing.T) {
	err := ValidateRelationship("Captain Vexa", "captain vexa")
	if !errors.Is(err, ErrRelationshipSelfLoop) {
		t.Errorf("expected ErrRelationshipSelfLoop (case-insensitive), got %v", err)
	}
}

func TestValidateRelationship_OK(t *testing.T) {
	if err := ValidateRelationship("Captain Vexa", "Redfern Mill"); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestUnionNoteIDs_PreservesOrderAndDedupes(t *testing.T) {
	existing := []string{"n1", "n2"}
	add := []string{"n2", "n3"}
	got := UnionNoteIDs(existing, add)
	want := []string{"n1", "n2", "n3"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestMergeDescriptions(t *testing.T) {
	cases := []struct{ existing, incoming, want string }{
		{"", "new", "new"},
		{"old", "", "old"},
		{"old", "new", "old | new"},
		{"", "", ""},
	}
	for _, c := range cases {
		if got := MergeDescriptions(c.existing, c.incoming); got != c.want {
			t.Errorf("MergeDescriptions(%q,%q) = %q, want %q", c.existing, c.incoming, got, c.want)
		}
	}
}

func TestKindOf(t *testing.T) {
	err := NewValidationError("x", "y", ErrNoteEmptyTitle)
	if KindOf(err) != KindInputInvalid {
		t.Errorf("expected KindInputInvalid, got %v", KindOf(err))
	}
	if KindOf(errors.New("plain")) != KindFatal {
		t.Errorf("expected KindFatal for unclassified error")
	}
}

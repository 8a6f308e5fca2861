package extract

import (
	"encoding/json"
	"strings"

	"github.com/campaigngraph/campaigngraph/engine/domain"
)

// stripCodeFence removes a surrounding ```...``` or ```json...``` fence, the
// same lenient-output idiom the pigo memory extractor uses before parsing
// LLM JSON output.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		firstLine := strings.TrimSpace(s[:nl])
		if firstLine == "json" || firstLine == "" {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// outermostJSON locates the outermost {...} or [...] span in s, preferring
// whichever delimiter opens first, per the spec's "locate the outermost
// {…}; tolerate an alternative top-level array" parsing policy.
func outermostJSON(s string) string {
	braceStart := strings.IndexByte(s, '{')
	bracketStart := strings.IndexByte(s, '[')

	start := braceStart
	open, close := byte('{'), byte('}')
	if start < 0 || (bracketStart >= 0 && bracketStart < start) {
		start = bracketStart
		open, close = '[', ']'
	}
	if start < 0 {
		return s
	}

	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return s[start:]
}

// naeArtefacts is the expected NAE JSON shape; a bare top-level array is
// also tolerated by parseNAEResponse.
type naeArtefacts struct {
	Artefacts []domain.ExtractedArtifact `json:"artefacts"`
}

// parseNAEResponse parses a stage-NAE LLM response, tolerating a bare
// top-level artifact array in place of the {"artefacts": [...]} object.
func parseNAEResponse(raw string) ([]domain.ExtractedArtifact, error) {
	body := outermostJSON(stripCodeFence(raw))

	var obj naeArtefacts
	if err := json.Unmarshal([]byte(body), &obj); err == nil && obj.Artefacts != nil {
		return obj.Artefacts, nil
	}

	var arr []domain.ExtractedArtifact
	if err := json.Unmarshal([]byte(body), &arr); err == nil {
		return arr, nil
	}

	var obj2 naeArtefacts
	if err := json.Unmarshal([]byte(body), &obj2); err != nil {
		return nil, err
	}
	return obj2.Artefacts, nil
}

// parseBulletedArtifacts is the lenient fallback parser for malformed NAE
// output (§7 item 3): bulleted lines become artifacts of type "unknown".
// A line of the form "- Name: description" splits on the first colon.
func parseBulletedArtifacts(raw string) []domain.ExtractedArtifact {
	var out []domain.ExtractedArtifact
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		trimmed := strings.TrimLeft(line, "-*•")
		trimmed = strings.TrimSpace(trimmed)
		if trimmed == line || trimmed == "" {
			continue
		}
		name, desc, _ := strings.Cut(trimmed, ":")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		out = append(out, domain.ExtractedArtifact{
			Name:        name,
			Type:        "unknown",
			Description: strings.TrimSpace(desc),
		})
	}
	return out
}

// areRelations is the expected ARE JSON shape. The spec accepts either a
// "relations" or "relationships" key, so both are decoded and merged.
type areRelations struct {
	Relations     []domain.ExtractedRelationship `json:"relations"`
	Relationships []domain.ExtractedRelationship `json:"relationships"`
}

func parseAREResponse(raw string) ([]domain.ExtractedRelationship, error) {
	body := outermostJSON(stripCodeFence(raw))

	var obj areRelations
	if err := json.Unmarshal([]byte(body), &obj); err != nil {
		var arr []domain.ExtractedRelationship
		if arrErr := json.Unmarshal([]byte(body), &arr); arrErr == nil {
			return arr, nil
		}
		return nil, err
	}
	if len(obj.Relationships) > 0 {
		return append(obj.Relations, obj.Relationships...), nil
	}
	return obj.Relations, nil
}

package dedup

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/campaigngraph/campaigngraph/engine/domain"
)

// stripCodeFence removes a surrounding ```/```json fence, if present.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimPrefix(s, "\n")
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// outermostJSON locates the outermost {...} object in s, tolerating
// leading/trailing prose the model adds around the JSON it was asked for.
func outermostJSON(s string) string {
	s = stripCodeFence(s)
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return s
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return s[start:]
}

type decisionJSON struct {
	IsSame     bool   `json:"is_same"`
	Confidence int    `json:"confidence"`
	Reasoning  string `json:"reasoning"`
}

// parseDecision parses the adjudicator's JSON verdict. On failure, per
// §7 item 3, the caller must degrade to a negative decision rather than
// abort the pipeline — this function only reports the parse error.
func parseDecision(raw string) (domain.DeduplicationDecision, error) {
	var d decisionJSON
	if err := json.Unmarshal([]byte(outermostJSON(raw)), &d); err != nil {
		return domain.DeduplicationDecision{}, err
	}
	return domain.DeduplicationDecision{
		IsSame:     d.IsSame,
		Confidence: domain.ClampConfidence(d.Confidence),
		Reasoning:  d.Reasoning,
	}, nil
}

// parseCreatedAt extracts a sortable timestamp from a vector payload's
// "created_at" field, defaulting to 0 (oldest) when absent/malformed.
func parseCreatedAt(meta map[string]string) int64 {
	v, ok := meta["created_at"]
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

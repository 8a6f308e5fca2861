// Package graph adapts the Graph Store boundary (C4): per-campaign label
// prefix sanitisation, artifact/relationship upsert and merge, and
// campaign-scoped deletion, on top of Neo4j.
package graph

import (
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// labelPrefix returns the sanitised per-campaign label prefix L (§4.4):
// non-[A-Za-z0-9_] characters become "_", runs of "_" collapse, and a
// leading digit gets an "L" prefix so the result is always a legal label.
func labelPrefix(campaignUUID string) string {
	var b strings.Builder
	lastUnderscore := false
	for i := 0; i < len(campaignUUID); i++ {
		c := campaignUUID[i]
		switch {
		case (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9'):
			b.WriteByte(c)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	s := strings.Trim(b.String(), "_")
	if s == "" {
		s = "campaign"
	}
	if s[0] >= '0' && s[0] <= '9' {
		s = "L" + s
	}
	return s
}

func artifactLabel(campaignUUID string) string {
	return labelPrefix(campaignUUID) + "_Artifact"
}

// sanitizeRelType turns a relationship label into a legal, uppercase Cypher
// relationship-type identifier, matching the §4.4 edge-type sanitisation
// rule (collapsed "_", non-identifier characters stripped).
func sanitizeRelType(label string) string {
	var b strings.Builder
	lastUnderscore := false
	for i := 0; i < len(label); i++ {
		c := label[i]
		switch {
		case c >= 'a' && c <= 'z':
			b.WriteByte(c - 32)
			lastUnderscore = false
		case c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteByte(c)
			lastUnderscore = false
		case c == '_' || c == ' ' || c == '-':
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	s := strings.Trim(b.String(), "_")
	if s == "" {
		return "RELATED_TO"
	}
	return s
}

func strProp(props map[string]any, key string) string {
	if v, ok := props[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func int64Prop(props map[string]any, key string) int64 {
	switch v := props[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func stringSliceProp(props map[string]any, key string) []string {
	raw, ok := props[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func nodeProps(val any) (map[string]any, bool) {
	switch n := val.(type) {
	case dbtype.Node:
		return n.Props, true
	case map[string]any:
		return n, true
	default:
		return nil, false
	}
}

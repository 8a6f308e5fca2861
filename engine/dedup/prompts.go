package dedup

const (
	promptArtifactDedup     = "ArtifactDeduplicationReasoning"
	promptRelationshipDedup = "RelationshipDeduplicationReasoning"
)

// fallbackArtifactPrompt is used when the prompt registry is unreachable
// (§4.8, §7 item 2 — never block the adjudicator on the registry).
const fallbackArtifactPrompt = `You are deduplicating narrative artifacts for a tabletop RPG campaign log.

A new artifact was just extracted:
  Name: {{new_name}}
  Type: {{new_type}}
  Description: {{new_description}}

It is being compared against an existing artifact already stored in the campaign:
  Name: {{existing_name}}
  Description: {{existing_description}}

The note the new artifact came from:
{{source_note_content}}

The most recent notes that back the existing artifact:
{{backing_notes}}

Decide whether the new artifact refers to the same entity as the existing one.
Respond with a single JSON object: {"is_same": bool, "confidence": 0-100, "reasoning": "one or two sentences"}.`

// fallbackRelationshipPrompt is the relationship analogue.
const fallbackRelationshipPrompt = `You are deduplicating narrative relationships for a tabletop RPG campaign log.

A new relationship was just extracted:
  {{new_source}} --{{new_label}}--> {{new_target}}
  Description: {{new_description}}

It is being compared against an existing relationship already stored in the campaign:
  {{existing_source}} --{{existing_label}}--> {{existing_target}}
  Description: {{existing_description}}

The note the new relationship came from:
{{source_note_content}}

The most recent notes that back the existing relationship:
{{backing_notes}}

Decide whether the new relationship refers to the same edge as the existing one.
Respond with a single JSON object: {"is_same": bool, "confidence": 0-100, "reasoning": "one or two sentences"}.`

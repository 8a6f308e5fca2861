package extract

// Prompt names resolved through C3. NarrativeArtefactExtractorV2 is named
// directly by the spec; ArtifactRelationshipExtractorV1 follows the same
// naming convention for the second stage.
const (
	promptNAE = "NarrativeArtefactExtractorV2"
	promptARE = "ArtifactRelationshipExtractorV1"
)

// In-process fallback prompts, used when C3 cannot resolve either name
// (registry unreachable and no registry-side fallback registered either).
const fallbackNAEPrompt = `You extract narrative artifacts from tabletop RPG campaign notes.

Given the note text and the campaign's known artifact categories, identify every named person,
place, item, or event mentioned. For each, output its name, the category it belongs to (use one
of the supplied category names, or "unknown" if none fit), and a one-sentence description drawn
only from the note text.

Categories:
{{categories}}

Output a JSON object: {"artefacts": [{"name": ..., "type": ..., "description": ...}, ...]}.
If nothing qualifies, output {"artefacts": []}. Output ONLY the JSON object, no other text.`

const fallbackAREPrompt = `You extract relationships between narrative artifacts already identified in a campaign note.

Given the note text and the list of artifacts already extracted from it (name and type only),
identify every directed relationship the text supports between two of those artifacts. Do not
invent artifacts not in the supplied list; source and target must be names from that list,
copied exactly.

Known artifacts:
{{artifacts}}

Output a JSON object: {"relations": [{"source": ..., "target": ..., "label": ..., "description": ..., "reasoning": ...}, ...]}.
If no relationship is supported, output {"relations": []}. Output ONLY the JSON object, no other text.`

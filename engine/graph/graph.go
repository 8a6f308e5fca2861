package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/campaigngraph/campaigngraph/engine/domain"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// GraphStore implements C4 against a per-campaign label-prefixed Neo4j
// subgraph: artifacts live under node label L_Artifact, relationships are
// typed edges between them.
type GraphStore struct {
	opener opener
}

// New creates a GraphStore backed by a live Neo4j driver.
func New(driver neo4j.DriverWithContext) *GraphStore {
	return &GraphStore{opener: &neo4jOpener{driver: driver}}
}

// UpsertArtifact implements upsert_artifact (§4.4): matches by (label,
// name, campaign_uuid), unions note_ids, overwrites type/description,
// preserves created_at, refreshes updated_at.
func (g *GraphStore) UpsertArtifact(ctx context.Context, a domain.Artifact) error {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	label := artifactLabel(a.CampaignUUID)
	now := time.Now().Unix()

	cypher := fmt.Sprintf(`
		MERGE (n:%s {name: $name, campaign_uuid: $campaignUUID})
		ON CREATE SET n.id = $id, n.created_at = $now, n.note_ids = $noteIDs
		ON MATCH SET n.note_ids = n.note_ids + [x IN $noteIDs WHERE NOT x IN n.note_ids]
		SET n.type = $type, n.description = $description, n.updated_at = $now
		RETURN n.id AS id`, label)

	result, err := sess.Run(ctx, cypher, map[string]any{
		"name":         a.Name,
		"campaignUUID": a.CampaignUUID,
		"id":           a.ID,
		"type":         a.Type,
		"description":  a.Description,
		"noteIDs":      a.NoteIDs,
		"now":          now,
	})
	if err != nil {
		return fmt.Errorf("graph: upsert artifact %q: %w", a.Name, err)
	}
	if !result.Next(ctx) {
		return fmt.Errorf("graph: upsert artifact %q: no row returned", a.Name)
	}
	return nil
}

// GetArtifactByName looks up an artifact by its merge key (campaign_uuid, name).
func (g *GraphStore) GetArtifactByName(ctx context.Context, campaignUUID, name string) (domain.Artifact, bool, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	label := artifactLabel(campaignUUID)
	cypher := fmt.Sprintf(`MATCH (n:%s {name: $name, campaign_uuid: $campaignUUID}) RETURN n`, label)
	result, err := sess.Run(ctx, cypher, map[string]any{"name": name, "campaignUUID": campaignUUID})
	if err != nil {
		return domain.Artifact{}, false, fmt.Errorf("graph: get artifact %q: %w", name, err)
	}
	if !result.Next(ctx) {
		return domain.Artifact{}, false, nil
	}
	return artifactFromRecord(result.Record(), campaignUUID)
}

func artifactFromRecord(rec *neo4j.Record, campaignUUID string) (domain.Artifact, bool, error) {
	val, ok := rec.Get("n")
	if !ok {
		return domain.Artifact{}, false, fmt.Errorf("graph: record missing node")
	}
	props, ok := nodeProps(val)
	if !ok {
		return domain.Artifact{}, false, fmt.Errorf("graph: unexpected node value %T", val)
	}
	return domain.Artifact{
		ID:           strProp(props, "id"),
		Name:         strProp(props, "name"),
		Type:         strProp(props, "type"),
		CampaignUUID: campaignUUID,
		Description:  strProp(props, "description"),
		NoteIDs:      stringSliceProp(props, "note_ids"),
		CreatedAt:    int64Prop(props, "created_at"),
		UpdatedAt:    int64Prop(props, "updated_at"),
	}, true, nil
}

// LookupArtifactNotes returns the note_ids backing an artifact, used by C7
// to enrich candidates with prior narrative context.
func (g *GraphStore) LookupArtifactNotes(ctx context.Context, campaignUUID, artifactID string) ([]string, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	label := artifactLabel(campaignUUID)
	cypher := fmt.Sprintf(`MATCH (n:%s {id: $id, campaign_uuid: $campaignUUID}) RETURN n.note_ids AS note_ids`, label)
	result, err := sess.Run(ctx, cypher, map[string]any{"id": artifactID, "campaignUUID": campaignUUID})
	if err != nil {
		return nil, fmt.Errorf("graph: lookup artifact notes %q: %w", artifactID, err)
	}
	if !result.Next(ctx) {
		return nil, nil
	}
	ids, _ := rawStringSlice(result.Record(), "note_ids")
	return ids, nil
}

func rawStringSlice(rec *neo4j.Record, key string) ([]string, bool) {
	v, ok := rec.Get(key)
	if !ok {
		return nil, false
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out, true
}

// UpsertRelationship implements upsert_relationship (§4.4): matches both
// endpoints by (L_Artifact, name, campaign_uuid); if either is absent this
// is a no-op returning ok=false. Otherwise creates/updates the edge, typed
// by the sanitised label, and unions note_ids.
func (g *GraphStore) UpsertRelationship(ctx context.Context, campaignUUID string, r domain.Relationship) (ok bool, err error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	label := artifactLabel(campaignUUID)
	edgeType := sanitizeRelType(r.Label)
	now := time.Now().Unix()

	cypher := fmt.Sprintf(`
		MATCH (src:%s {name: $source, campaign_uuid: $campaignUUID})
		MATCH (tgt:%s {name: $target, campaign_uuid: $campaignUUID})
		MERGE (src)-[e:%s {label: $relLabel}]->(tgt)
		ON CREATE SET e.id = $id, e.created_at = $now, e.note_ids = $noteIDs, e.campaign_uuid = $campaignUUID
		ON MATCH SET e.note_ids = e.note_ids + [x IN $noteIDs WHERE NOT x IN e.note_ids]
		SET e.description = $description, e.reasoning = $reasoning, e.updated_at = $now
		RETURN e.id AS id`, label, label, edgeType)

	result, err := sess.Run(ctx, cypher, map[string]any{
		"source":       r.SourceArtifactName,
		"target":       r.TargetArtifactName,
		"campaignUUID": campaignUUID,
		"relLabel":     r.Label,
		"id":           r.ID,
		"description":  r.Description,
		"reasoning":    r.Reasoning,
		"noteIDs":      r.NoteIDs,
		"now":          now,
	})
	if err != nil {
		return false, fmt.Errorf("graph: upsert relationship %s-%s->%s: %w", r.SourceArtifactName, r.Label, r.TargetArtifactName, err)
	}
	return result.Next(ctx), nil
}

// LookupRelationshipNotes is the relationship analogue of LookupArtifactNotes,
// keyed by the (source, label, target) merge key (§3, P3).
func (g *GraphStore) LookupRelationshipNotes(ctx context.Context, campaignUUID, source, label, target string) ([]string, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	nodeLabel := artifactLabel(campaignUUID)
	edgeType := sanitizeRelType(label)
	cypher := fmt.Sprintf(`
		MATCH (src:%s {name: $source, campaign_uuid: $campaignUUID})-[e:%s {label: $relLabel}]->(tgt:%s {name: $target, campaign_uuid: $campaignUUID})
		RETURN e.note_ids AS note_ids`, nodeLabel, edgeType, nodeLabel)
	result, err := sess.Run(ctx, cypher, map[string]any{
		"source": source, "target": target, "relLabel": label, "campaignUUID": campaignUUID,
	})
	if err != nil {
		return nil, fmt.Errorf("graph: lookup relationship notes: %w", err)
	}
	if !result.Next(ctx) {
		return nil, nil
	}
	ids, _ := rawStringSlice(result.Record(), "note_ids")
	return ids, nil
}

// MergeIntoArtifact implements merge_into_artifact (§4.4, §4.11 step 1):
// unions note_ids (existing order preserved, P7), merges description per
// the " | " rule, refreshes updated_at, all within one transaction.
// Returns the survivor's id.
func (g *GraphStore) MergeIntoArtifact(ctx context.Context, campaignUUID, existingName string, incoming domain.Artifact) (string, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	label := artifactLabel(campaignUUID)
	now := time.Now().Unix()

	result, err := sess.ExecuteWrite(ctx, func(tx CypherRunner) (any, error) {
		readCypher := fmt.Sprintf(`MATCH (n:%s {name: $name, campaign_uuid: $campaignUUID}) RETURN n.id AS id, n.note_ids AS note_ids, n.description AS description`, label)
		readResult, err := tx.Run(ctx, readCypher, map[string]any{"name": existingName, "campaignUUID": campaignUUID})
		if err != nil {
			return nil, err
		}
		if !readResult.Next(ctx) {
			return nil, fmt.Errorf("merge target artifact %q not found", existingName)
		}
		rec := readResult.Record()
		existingIDVal, _ := rec.Get("id")
		existingID, _ := existingIDVal.(string)
		existingNoteIDs, _ := rawStringSlice(rec, "note_ids")
		existingDescVal, _ := rec.Get("description")
		existingDesc, _ := existingDescVal.(string)

		mergedNoteIDs := domain.UnionNoteIDs(existingNoteIDs, incoming.NoteIDs)
		mergedDesc := domain.MergeDescriptions(existingDesc, incoming.Description)

		writeCypher := fmt.Sprintf(`MATCH (n:%s {id: $id}) SET n.note_ids = $noteIDs, n.description = $description, n.updated_at = $now`, label)
		if _, err := tx.Run(ctx, writeCypher, map[string]any{
			"id": existingID, "noteIDs": mergedNoteIDs, "description": mergedDesc, "now": now,
		}); err != nil {
			return nil, err
		}
		return existingID, nil
	})
	if err != nil {
		return "", fmt.Errorf("graph: merge into artifact %q: %w", existingName, err)
	}
	return result.(string), nil
}

// MergeIntoRelationship is the relationship analogue of MergeIntoArtifact,
// keyed by (source, label, target).
func (g *GraphStore) MergeIntoRelationship(ctx context.Context, campaignUUID, source, label, target string, incoming domain.Relationship) (string, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	nodeLabel := artifactLabel(campaignUUID)
	edgeType := sanitizeRelType(label)
	now := time.Now().Unix()

	result, err := sess.ExecuteWrite(ctx, func(tx CypherRunner) (any, error) {
		readCypher := fmt.Sprintf(`
			MATCH (src:%s {name: $source, campaign_uuid: $campaignUUID})-[e:%s {label: $relLabel}]->(tgt:%s {name: $target, campaign_uuid: $campaignUUID})
			RETURN e.id AS id, e.note_ids AS note_ids, e.description AS description`, nodeLabel, edgeType, nodeLabel)
		readResult, err := tx.Run(ctx, readCypher, map[string]any{
			"source": source, "target": target, "relLabel": label, "campaignUUID": campaignUUID,
		})
		if err != nil {
			return nil, err
		}
		if !readResult.Next(ctx) {
			return nil, fmt.Errorf("merge target relationship %s-%s->%s not found", source, label, target)
		}
		rec := readResult.Record()
		existingIDVal, _ := rec.Get("id")
		existingID, _ := existingIDVal.(string)
		existingNoteIDs, _ := rawStringSlice(rec, "note_ids")
		existingDescVal, _ := rec.Get("description")
		existingDesc, _ := existingDescVal.(string)

		mergedNoteIDs := domain.UnionNoteIDs(existingNoteIDs, incoming.NoteIDs)
		mergedDesc := domain.MergeDescriptions(existingDesc, incoming.Description)

		writeCypher := fmt.Sprintf(`
			MATCH ()-[e:%s]->() WHERE e.id = $id
			SET e.note_ids = $noteIDs, e.description = $description, e.updated_at = $now`, edgeType)
		if _, err := tx.Run(ctx, writeCypher, map[string]any{
			"id": existingID, "noteIDs": mergedNoteIDs, "description": mergedDesc, "now": now,
		}); err != nil {
			return nil, err
		}
		return existingID, nil
	})
	if err != nil {
		return "", fmt.Errorf("graph: merge into relationship %s-%s->%s: %w", source, label, target, err)
	}
	return result.(string), nil
}

// DeleteCampaign implements delete_campaign (§4.4): detaches and deletes
// every node (and its edges) carrying the given campaign_uuid.
func (g *GraphStore) DeleteCampaign(ctx context.Context, campaignUUID string) error {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	label := artifactLabel(campaignUUID)
	cypher := fmt.Sprintf(`MATCH (n:%s {campaign_uuid: $campaignUUID}) DETACH DELETE n`, label)
	_, err := sess.Run(ctx, cypher, map[string]any{"campaignUUID": campaignUUID})
	if err != nil {
		return fmt.Errorf("graph: delete campaign %q: %w", campaignUUID, err)
	}
	return nil
}

// CampaignStats returns the artifact and relationship counts for a
// campaign's subgraph, generalized from the teacher's label-grouped
// NodeCounts/RelationshipCounts into a single per-campaign query.
func (g *GraphStore) CampaignStats(ctx context.Context, campaignUUID string) (artifacts, relationships int64, err error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	label := artifactLabel(campaignUUID)
	cypher := fmt.Sprintf(`
		MATCH (n:%s {campaign_uuid: $campaignUUID})
		OPTIONAL MATCH (n)-[e]->(:%s {campaign_uuid: $campaignUUID})
		RETURN count(DISTINCT n) AS artifacts, count(e) AS relationships`, label, label)
	result, rErr := sess.Run(ctx, cypher, map[string]any{"campaignUUID": campaignUUID})
	if rErr != nil {
		return 0, 0, fmt.Errorf("graph: campaign stats %q: %w", campaignUUID, rErr)
	}
	if !result.Next(ctx) {
		return 0, 0, nil
	}
	rec := result.Record()
	artifactsVal, _ := rec.Get("artifacts")
	relVal, _ := rec.Get("relationships")
	a, _ := artifactsVal.(int64)
	r, _ := relVal.(int64)
	return a, r, nil
}

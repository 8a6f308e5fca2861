// Package semantic adapts the Vector Store boundary (C5): a per-campaign
// Qdrant collection holding note, artifact, and relation embeddings,
// discriminated by a "type" payload field.
package semantic

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// pointsClient is the narrow slice of pb.PointsClient VectorStore actually
// calls, kept local so tests can mock it without implementing every RPC the
// full generated client exposes.
type pointsClient interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeletePoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
	Get(ctx context.Context, in *pb.GetPoints, opts ...grpc.CallOption) (*pb.GetResponse, error)
}

// collectionsClient is the narrow slice of pb.CollectionsClient used here.
type collectionsClient interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// VectorStore is the sole owner of all Qdrant operations, shared across
// campaigns — each campaign gets its own lazily-created collection rather
// than a shared collection partitioned by payload filter (§9 Open
// Question: collection-per-campaign).
type VectorStore struct {
	conn        *grpc.ClientConn
	points      pointsClient
	collections collectionsClient
}

// New dials Qdrant at the given gRPC address.
func New(addr string) (*VectorStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	return &VectorStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
	}, nil
}

// NewWithClients builds a VectorStore directly from Qdrant gRPC clients,
// used in tests to substitute mocks for the real network clients.
func NewWithClients(points pointsClient, collections collectionsClient) *VectorStore {
	return &VectorStore{points: points, collections: collections}
}

// Close closes the underlying gRPC connection.
func (v *VectorStore) Close() error {
	if v.conn == nil {
		return nil
	}
	return v.conn.Close()
}

// collectionName derives the per-campaign Qdrant collection name.
func collectionName(campaignUUID string) string {
	return "campaign_" + campaignUUID
}

// EnsureCollection creates the campaign's collection if it doesn't exist.
func (v *VectorStore) EnsureCollection(ctx context.Context, campaignUUID string, dims int) error {
	name := collectionName(campaignUUID)

	list, err := v.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == name {
			return nil
		}
	}

	d := uint64(dims)
	_, err = v.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: name,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     d,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", name, err)
	}
	return nil
}

// DeleteCollection drops a campaign's entire collection, used when a
// campaign is deleted outright (mirrors engine/graph.DeleteCampaign).
func (v *VectorStore) DeleteCollection(ctx context.Context, campaignUUID string) error {
	name := collectionName(campaignUUID)
	_, err := v.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: name})
	if err != nil {
		return fmt.Errorf("semantic: delete collection %s: %w", name, err)
	}
	return nil
}

// Upsert stores embedding records into a campaign's collection. Called by
// C12 (new note/artifact/relation embeddings) and C11 (merge re-embedding).
func (v *VectorStore) Upsert(ctx context.Context, campaignUUID string, records []VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(records))
	for i, r := range records {
		payload := make(map[string]*pb.Value, len(r.Payload)+2)
		payload["type"] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: string(r.Type)}}
		payload["name"] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: r.Name}}
		for k, val := range r.Payload {
			payload[k] = toQdrantValue(val)
		}

		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: r.ID},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: r.Embedding},
				},
			},
			Payload: payload,
		}
	}

	wait := true
	_, err := v.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: collectionName(campaignUUID),
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("semantic: upsert %d points: %w", len(records), err)
	}
	return nil
}

func toQdrantValue(val any) *pb.Value {
	switch tv := val.(type) {
	case string:
		return &pb.Value{Kind: &pb.Value_StringValue{StringValue: tv}}
	case int:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(tv)}}
	case int64:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: tv}}
	case float64:
		return &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: tv}}
	case bool:
		return &pb.Value{Kind: &pb.Value_BoolValue{BoolValue: tv}}
	default:
		return &pb.Value{Kind: &pb.Value_StringValue{StringValue: fmt.Sprint(tv)}}
	}
}

// GetByIDs retrieves points by id with their full payload, used by C8 to
// pull a candidate's backing notes (title/content/created_at) for
// adjudication context.
func (v *VectorStore) GetByIDs(ctx context.Context, campaignUUID string, ids []string) ([]SearchResult, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	pointIDs := make([]*pb.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}}
	}
	withPayload := true
	resp, err := v.points.Get(ctx, &pb.GetPoints{
		CollectionName: collectionName(campaignUUID),
		Ids:            pointIDs,
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: withPayload}},
	})
	if err != nil {
		return nil, fmt.Errorf("semantic: get by ids: %w", err)
	}

	results := make([]SearchResult, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		sr := SearchResult{ID: r.GetId().GetUuid(), Meta: make(map[string]string)}
		for k, val := range r.GetPayload() {
			s := val.GetStringValue()
			switch k {
			case "type":
				sr.Type = PointType(s)
			case "name":
				sr.Name = s
			default:
				sr.Meta[k] = s
			}
		}
		results[i] = sr
	}
	return results, nil
}

// DeleteByID removes a single point by id, used by the merge executor
// (§4.11 step 2) to drop the merged-away item's embedding.
func (v *VectorStore) DeleteByID(ctx context.Context, campaignUUID, id string) error {
	wait := true
	_, err := v.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: collectionName(campaignUUID),
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{Ids: []*pb.PointId{
					{PointIdOptions: &pb.PointId_Uuid{Uuid: id}},
				}},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: delete by id %s: %w", id, err)
	}
	return nil
}

// Search performs unfiltered k-NN similarity search within a campaign's
// collection.
func (v *VectorStore) Search(ctx context.Context, campaignUUID string, embedding []float32, topK int) ([]SearchResult, error) {
	return v.SearchFiltered(ctx, campaignUUID, embedding, topK, "", 0)
}

// SearchFiltered performs similarity search restricted to a point type
// (candidate finder, §4.7) and a minimum score threshold. An empty
// pointType skips the type filter.
func (v *VectorStore) SearchFiltered(ctx context.Context, campaignUUID string, embedding []float32, topK int, pointType PointType, minScore float32) ([]SearchResult, error) {
	req := &pb.SearchPoints{
		CollectionName: collectionName(campaignUUID),
		Vector:         embedding,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}
	if pointType != "" {
		req.Filter = &pb.Filter{Must: []*pb.Condition{fieldMatch("type", string(pointType))}}
	}
	if minScore > 0 {
		req.ScoreThreshold = &minScore
	}

	resp, err := v.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("semantic: search: %w", err)
	}

	results := make([]SearchResult, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		sr := SearchResult{
			ID:    r.GetId().GetUuid(),
			Score: r.GetScore(),
			Meta:  make(map[string]string),
		}
		for k, val := range r.GetPayload() {
			s := val.GetStringValue()
			switch k {
			case "type":
				sr.Type = PointType(s)
			case "name":
				sr.Name = s
			default:
				sr.Meta[k] = s
			}
		}
		results[i] = sr
	}
	return results, nil
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}

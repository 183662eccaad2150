package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/model"
	"github.com/qdrant/go-client/qdrant"
)

// metaPointID is the sentinel point that carries the embedding model
// fingerprint. It is excluded from every query and scan.
const metaPointID = "a2b9c183-61ac-5932-a88f-3cbcdd9f649e"

// Qdrant implements Index against a Qdrant collection
type Qdrant struct {
	client     *qdrant.Client
	collection string

	mu  sync.Mutex
	dim int // cached from meta, 0 until known
}

type QdrantOption func(*Qdrant)

// WithQdrantDimension fixes the vector dimension up front. Without it, a
// payload-only write cannot land on a fresh collection until the first
// embedded write has pinned the dimension.
func WithQdrantDimension(dim int) QdrantOption {
	return func(r *Qdrant) {
		r.dim = dim
	}
}

// NewQdrant connects to a Qdrant instance. The collection is created lazily
// once the embedding dimension is known.
func NewQdrant(host string, port int, collection string, opts ...QdrantOption) (*Qdrant, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create qdrant client",
			goerr.V("host", host), goerr.V("port", port))
	}

	r := &Qdrant{
		client:     client,
		collection: collection,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Qdrant) Upsert(ctx context.Context, mem *model.Memory) error {
	vector := mem.Embedding
	if len(vector) == 0 {
		// Payload-only write while the embedder is down. Qdrant still needs
		// a vector of the collection dimension; the pending_embed flag keeps
		// the point out of search results.
		dim, err := r.dimension(ctx)
		if err != nil {
			return err
		}
		if err := r.ensureCollection(ctx, dim); err != nil {
			return err
		}
		vector = make([]float32, dim)
	}

	point := &qdrant.PointStruct{
		Id:      qdrant.NewID(string(mem.ID)),
		Vectors: qdrant.NewVectors(vector...),
		Payload: qdrant.NewValueMap(memoryPayload(mem)),
	}

	if _, err := r.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: r.collection,
		Points:         []*qdrant.PointStruct{point},
		Wait:           qdrant.PtrOf(true),
	}); err != nil {
		return errIndexUnavailable(err, "upsert")
	}
	return nil
}

func (r *Qdrant) Get(ctx context.Context, id model.MemoryID) (*model.Memory, error) {
	points, err := r.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: r.collection,
		Ids:            []*qdrant.PointId{qdrant.NewID(string(id))},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, errIndexUnavailable(err, "get")
	}
	if len(points) == 0 {
		return nil, errMemoryNotFound(id)
	}
	return memoryFromPayload(string(id), points[0].Payload)
}

func (r *Qdrant) Lookup(ctx context.Context, dedupeKey string) (*model.Memory, error) {
	points, err := r.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: r.collection,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("dedupe_key", dedupeKey)},
		},
		Limit:       qdrant.PtrOf(uint32(1)),
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, errIndexUnavailable(err, "lookup")
	}
	if len(points) == 0 {
		return nil, nil
	}
	return memoryFromPayload(points[0].GetId().GetUuid(), points[0].Payload)
}

func (r *Qdrant) Query(ctx context.Context, vector []float32, limit int, filter *Filter) ([]*model.SearchResult, error) {
	conditions := []*qdrant.Condition{
		qdrant.NewMatchBool("_meta", true),
		qdrant.NewMatchBool("pending_embed", true),
	}
	queryFilter := &qdrant.Filter{MustNot: conditions}
	if filter != nil {
		if filter.Source != "" {
			queryFilter.Must = append(queryFilter.Must, qdrant.NewMatch("source", filter.Source))
		}
		for _, tag := range filter.Tags {
			queryFilter.Must = append(queryFilter.Must, qdrant.NewMatch("tags", tag))
		}
	}

	scored, err := r.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: r.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		Filter:         queryFilter,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, errIndexUnavailable(err, "query")
	}

	results := make([]*model.SearchResult, 0, len(scored))
	for _, point := range scored {
		mem, err := memoryFromPayload(point.GetId().GetUuid(), point.Payload)
		if err != nil {
			return nil, err
		}
		results = append(results, &model.SearchResult{
			Memory: mem,
			Score:  float64(point.GetScore()),
		})
	}
	return results, nil
}

func (r *Qdrant) Scan(ctx context.Context, limit int, after *ScanKey) ([]*model.Memory, error) {
	scanFilter := &qdrant.Filter{
		MustNot: []*qdrant.Condition{qdrant.NewMatchBool("_meta", true)},
	}
	if after != nil {
		// Ordered scroll cannot resume on a compound key, so fetch from the
		// boundary timestamp and drop already-returned ties client-side.
		scanFilter.Must = append(scanFilter.Must, qdrant.NewRange("created_at_unix", &qdrant.Range{
			Lte: qdrant.PtrOf(float64(after.CreatedAt.UnixNano())),
		}))
	}

	// Ties at the boundary inflate the raw page; grow the fetch until the
	// page is full or the collection is exhausted.
	fetch := limit + 16
	for {
		points, err := r.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: r.collection,
			Filter:         scanFilter,
			Limit:          qdrant.PtrOf(uint32(fetch)),
			WithPayload:    qdrant.NewWithPayload(true),
			OrderBy: &qdrant.OrderBy{
				Key:       "created_at_unix",
				Direction: qdrant.Direction_Desc.Enum(),
			},
		})
		if err != nil {
			return nil, errIndexUnavailable(err, "scan")
		}

		var page []*model.Memory
		var windowEnd time.Time
		for _, point := range points {
			mem, err := memoryFromPayload(point.GetId().GetUuid(), point.Payload)
			if err != nil {
				return nil, err
			}
			windowEnd = mem.CreatedAt
			if after != nil && !beforeScanKey(mem, after) {
				continue
			}
			page = append(page, mem)
		}
		sortScanPage(page)

		if len(points) < fetch {
			// Collection exhausted within the window
			if len(page) > limit {
				page = page[:limit]
			}
			return page, nil
		}
		if len(page) >= limit && !page[limit-1].CreatedAt.Equal(windowEnd) {
			// The window fully covers the boundary tie group, so the page
			// order is final
			return page[:limit], nil
		}
		fetch *= 2
	}
}

func (r *Qdrant) Delete(ctx context.Context, id model.MemoryID) error {
	if _, err := r.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: r.collection,
		Points:         qdrant.NewPointsSelector(qdrant.NewID(string(id))),
		Wait:           qdrant.PtrOf(true),
	}); err != nil {
		return errIndexUnavailable(err, "delete")
	}
	return nil
}

func (r *Qdrant) Meta(ctx context.Context) (*model.IndexMeta, error) {
	exists, err := r.client.CollectionExists(ctx, r.collection)
	if err != nil {
		return nil, errIndexUnavailable(err, "meta")
	}
	if !exists {
		return nil, nil
	}

	points, err := r.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: r.collection,
		Ids:            []*qdrant.PointId{qdrant.NewID(metaPointID)},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, errIndexUnavailable(err, "meta")
	}
	if len(points) == 0 {
		return nil, nil
	}

	payload := points[0].Payload
	meta := &model.IndexMeta{
		SchemaVersion: int(payload["schema_version"].GetIntegerValue()),
		Model:         payload["model"].GetStringValue(),
		Dimension:     int(payload["dim"].GetIntegerValue()),
	}

	r.mu.Lock()
	r.dim = meta.Dimension
	r.mu.Unlock()

	return meta, nil
}

func (r *Qdrant) SetMeta(ctx context.Context, meta *model.IndexMeta) error {
	r.mu.Lock()
	configured := r.dim
	r.mu.Unlock()
	if configured > 0 && configured != meta.Dimension {
		return goerr.Wrap(model.ErrModelMismatch, "configured dimension does not match the embedding model",
			goerr.V("configured_dimension", configured),
			goerr.V("model_dimension", meta.Dimension))
	}

	if err := r.ensureCollection(ctx, meta.Dimension); err != nil {
		return err
	}

	point := &qdrant.PointStruct{
		Id:      qdrant.NewID(metaPointID),
		Vectors: qdrant.NewVectors(make([]float32, meta.Dimension)...),
		Payload: qdrant.NewValueMap(map[string]any{
			"_meta":          true,
			"schema_version": int64(meta.SchemaVersion),
			"model":          meta.Model,
			"dim":            int64(meta.Dimension),
		}),
	}
	if _, err := r.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: r.collection,
		Points:         []*qdrant.PointStruct{point},
		Wait:           qdrant.PtrOf(true),
	}); err != nil {
		return errIndexUnavailable(err, "set_meta")
	}

	r.mu.Lock()
	r.dim = meta.Dimension
	r.mu.Unlock()

	return nil
}

func (r *Qdrant) createPayloadIndexes(ctx context.Context) error {
	indexes := []struct {
		field string
		kind  qdrant.FieldType
	}{
		{"dedupe_key", qdrant.FieldType_FieldTypeKeyword},
		{"tags", qdrant.FieldType_FieldTypeKeyword},
		{"source", qdrant.FieldType_FieldTypeKeyword},
		{"created_at_unix", qdrant.FieldType_FieldTypeInteger},
	}
	for _, idx := range indexes {
		if _, err := r.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: r.collection,
			FieldName:      idx.field,
			FieldType:      idx.kind.Enum(),
			Wait:           qdrant.PtrOf(true),
		}); err != nil {
			return errIndexUnavailable(err, "create_field_index")
		}
	}
	return nil
}

func (r *Qdrant) Ping(ctx context.Context) error {
	if _, err := r.client.HealthCheck(ctx); err != nil {
		return errIndexUnavailable(err, "ping")
	}
	return nil
}

func (r *Qdrant) Close() error {
	return r.client.Close()
}

// ensureCollection creates the collection and its payload indexes on first
// use
func (r *Qdrant) ensureCollection(ctx context.Context, dim int) error {
	exists, err := r.client.CollectionExists(ctx, r.collection)
	if err != nil {
		return errIndexUnavailable(err, "collection_exists")
	}
	if exists {
		return nil
	}

	if err := r.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: r.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
		}),
	}); err != nil {
		return errIndexUnavailable(err, "create_collection")
	}
	return r.createPayloadIndexes(ctx)
}

func (r *Qdrant) dimension(ctx context.Context) (int, error) {
	r.mu.Lock()
	dim := r.dim
	r.mu.Unlock()
	if dim > 0 {
		return dim, nil
	}

	meta, err := r.Meta(ctx)
	if err != nil {
		return 0, err
	}
	if meta == nil {
		// The missing piece is the embedding dimension, which arrives either
		// from configuration or with the first embedded write.
		return 0, goerr.New("embedding dimension is not known yet",
			goerr.T(model.TagUnavailable),
			goerr.V("dependency", model.DependencyEmbedder))
	}
	return meta.Dimension, nil
}

func memoryPayload(mem *model.Memory) map[string]any {
	tags := make([]any, len(mem.Tags))
	for i, tag := range mem.Tags {
		tags[i] = tag
	}
	return map[string]any{
		"schema_version":   int64(model.CurrentSchemaVersion),
		"text":             mem.Text,
		"tags":             tags,
		"source":           mem.Source,
		"dedupe_key":       mem.DedupeKey,
		"external_id":      mem.ExternalID,
		"pending_embed":    mem.PendingEmbed,
		"created_at":       mem.CreatedAt.UTC().Format(time.RFC3339Nano),
		"created_at_unix":  mem.CreatedAt.UTC().UnixNano(),
		"first_created_at": mem.FirstCreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func memoryFromPayload(id string, payload map[string]*qdrant.Value) (*model.Memory, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, payload["created_at"].GetStringValue())
	if err != nil {
		return nil, goerr.Wrap(err, "broken created_at in point payload", goerr.V("memory_id", id))
	}
	firstCreatedAt, err := time.Parse(time.RFC3339Nano, payload["first_created_at"].GetStringValue())
	if err != nil {
		return nil, goerr.Wrap(err, "broken first_created_at in point payload", goerr.V("memory_id", id))
	}

	var tags []string
	for _, v := range payload["tags"].GetListValue().GetValues() {
		tags = append(tags, v.GetStringValue())
	}

	return &model.Memory{
		ID:             model.MemoryID(id),
		Text:           payload["text"].GetStringValue(),
		Tags:           tags,
		Source:         payload["source"].GetStringValue(),
		DedupeKey:      payload["dedupe_key"].GetStringValue(),
		ExternalID:     payload["external_id"].GetStringValue(),
		PendingEmbed:   payload["pending_embed"].GetBoolValue(),
		CreatedAt:      createdAt,
		FirstCreatedAt: firstCreatedAt,
	}, nil
}

// sortScanPage restores the (CreatedAt desc, ID desc) order after client-side
// tie filtering
func sortScanPage(page []*model.Memory) {
	sort.Slice(page, func(i, j int) bool {
		if !page[i].CreatedAt.Equal(page[j].CreatedAt) {
			return page[i].CreatedAt.After(page[j].CreatedAt)
		}
		return page[i].ID > page[j].ID
	})
}

package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const distanceField = "vector_distance"

// Firestore implements Index on a Firestore collection with native vector
// search. Memories live in one collection; the model fingerprint lives in a
// single sidecar document so data scans never have to filter it out.
type Firestore struct {
	client     *firestore.Client
	collection string
}

type firestoreMemory struct {
	ID             string             `firestore:"id"`
	Text           string             `firestore:"text"`
	Tags           []string           `firestore:"tags"`
	Source         string             `firestore:"source"`
	DedupeKey      string             `firestore:"dedupe_key"`
	ExternalID     string             `firestore:"external_id"`
	PendingEmbed   bool               `firestore:"pending_embed"`
	Embedding      firestore.Vector32 `firestore:"embedding"`
	CreatedAt      time.Time          `firestore:"created_at"`
	FirstCreatedAt time.Time          `firestore:"first_created_at"`
	SchemaVersion  int                `firestore:"schema_version"`
}

type firestoreMeta struct {
	SchemaVersion int    `firestore:"schema_version"`
	Model         string `firestore:"model"`
	Dimension     int    `firestore:"dimension"`
}

// NewFirestore creates a Firestore-backed index
func NewFirestore(ctx context.Context, projectID, databaseID, collection string) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID), goerr.V("database", databaseID))
	}

	return &Firestore{
		client:     client,
		collection: collection,
	}, nil
}

func (r *Firestore) memories() *firestore.CollectionRef {
	return r.client.Collection(r.collection)
}

func (r *Firestore) metaDoc() *firestore.DocumentRef {
	return r.client.Collection(r.collection + "_meta").Doc("meta")
}

func (r *Firestore) Upsert(ctx context.Context, mem *model.Memory) error {
	record := firestoreMemory{
		ID:             string(mem.ID),
		Text:           mem.Text,
		Tags:           mem.Tags,
		Source:         mem.Source,
		DedupeKey:      mem.DedupeKey,
		ExternalID:     mem.ExternalID,
		PendingEmbed:   mem.PendingEmbed,
		Embedding:      firestore.Vector32(mem.Embedding),
		CreatedAt:      mem.CreatedAt.UTC(),
		FirstCreatedAt: mem.FirstCreatedAt.UTC(),
		SchemaVersion:  model.CurrentSchemaVersion,
	}

	if _, err := r.memories().Doc(string(mem.ID)).Set(ctx, record); err != nil {
		return errIndexUnavailable(err, "upsert")
	}
	return nil
}

func (r *Firestore) Get(ctx context.Context, id model.MemoryID) (*model.Memory, error) {
	snapshot, err := r.memories().Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errMemoryNotFound(id)
		}
		return nil, errIndexUnavailable(err, "get")
	}
	return memoryFromSnapshot(snapshot)
}

func (r *Firestore) Lookup(ctx context.Context, dedupeKey string) (*model.Memory, error) {
	iter := r.memories().Where("dedupe_key", "==", dedupeKey).Limit(1).Documents(ctx)
	defer iter.Stop()

	snapshot, err := iter.Next()
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, errIndexUnavailable(err, "lookup")
	}
	return memoryFromSnapshot(snapshot)
}

func (r *Firestore) Query(ctx context.Context, vector []float32, limit int, filter *Filter) ([]*model.SearchResult, error) {
	query := r.memories().Where("pending_embed", "==", false)
	if filter != nil {
		if filter.Source != "" {
			query = query.Where("source", "==", filter.Source)
		}
		// Firestore allows a single array-contains clause; additional tags
		// are matched client-side below.
		if len(filter.Tags) > 0 {
			query = query.Where("tags", "array-contains", filter.Tags[0])
		}
	}

	iter := query.FindNearest("embedding", firestore.Vector32(vector), limit, firestore.DistanceMeasureCosine,
		&firestore.FindNearestOptions{DistanceResultField: distanceField}).Documents(ctx)
	defer iter.Stop()

	var results []*model.SearchResult
	for {
		snapshot, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errIndexUnavailable(err, "query")
		}

		mem, err := memoryFromSnapshot(snapshot)
		if err != nil {
			return nil, err
		}
		if !matchesFilter(mem, filter) {
			continue
		}

		// Cosine distance is in [0, 2]; report similarity so all backends
		// score the same way.
		score := 1.0
		if distance, ok := snapshot.Data()[distanceField].(float64); ok {
			score = 1.0 - distance
		}
		results = append(results, &model.SearchResult{Memory: mem, Score: score})
	}
	return results, nil
}

func (r *Firestore) Scan(ctx context.Context, limit int, after *ScanKey) ([]*model.Memory, error) {
	query := r.memories().
		OrderBy("created_at", firestore.Desc).
		OrderBy("id", firestore.Desc).
		Limit(limit)
	if after != nil {
		query = query.StartAfter(after.CreatedAt.UTC(), string(after.ID))
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var page []*model.Memory
	for {
		snapshot, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errIndexUnavailable(err, "scan")
		}

		mem, err := memoryFromSnapshot(snapshot)
		if err != nil {
			return nil, err
		}
		page = append(page, mem)
	}
	return page, nil
}

func (r *Firestore) Delete(ctx context.Context, id model.MemoryID) error {
	if _, err := r.memories().Doc(string(id)).Delete(ctx); err != nil {
		return errIndexUnavailable(err, "delete")
	}
	return nil
}

func (r *Firestore) Meta(ctx context.Context) (*model.IndexMeta, error) {
	snapshot, err := r.metaDoc().Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, errIndexUnavailable(err, "meta")
	}

	var record firestoreMeta
	if err := snapshot.DataTo(&record); err != nil {
		return nil, goerr.Wrap(err, "broken index metadata document")
	}
	return &model.IndexMeta{
		SchemaVersion: record.SchemaVersion,
		Model:         record.Model,
		Dimension:     record.Dimension,
	}, nil
}

func (r *Firestore) SetMeta(ctx context.Context, meta *model.IndexMeta) error {
	record := firestoreMeta{
		SchemaVersion: meta.SchemaVersion,
		Model:         meta.Model,
		Dimension:     meta.Dimension,
	}
	if _, err := r.metaDoc().Set(ctx, record); err != nil {
		return errIndexUnavailable(err, "set_meta")
	}
	return nil
}

func (r *Firestore) Ping(ctx context.Context) error {
	_, err := r.metaDoc().Get(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return errIndexUnavailable(err, "ping")
	}
	return nil
}

func (r *Firestore) Close() error {
	return r.client.Close()
}

func memoryFromSnapshot(snapshot *firestore.DocumentSnapshot) (*model.Memory, error) {
	var record firestoreMemory
	if err := snapshot.DataTo(&record); err != nil {
		return nil, goerr.Wrap(err, "broken memory document", goerr.V("doc", snapshot.Ref.ID))
	}

	return &model.Memory{
		ID:             model.MemoryID(record.ID),
		Text:           record.Text,
		Tags:           record.Tags,
		Source:         record.Source,
		DedupeKey:      record.DedupeKey,
		ExternalID:     record.ExternalID,
		PendingEmbed:   record.PendingEmbed,
		Embedding:      []float32(record.Embedding),
		CreatedAt:      record.CreatedAt,
		FirstCreatedAt: record.FirstCreatedAt,
	}, nil
}

package memory

import (
	"bufio"
	"context"
	"encoding/json"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/model"
	"github.com/m-mizutani/recall/pkg/repository"
)

const exportPageSize = 256

// snapshotMeta is the first line of an export: the fingerprint of the model
// that produced the vectors
type snapshotMeta struct {
	SchemaVersion int    `json:"schema_version"`
	Model         string `json:"model"`
	Dimension     int    `json:"dimension"`
}

type snapshotMemory struct {
	ID             string    `json:"id"`
	Text           string    `json:"text"`
	Tags           []string  `json:"tags,omitempty"`
	Source         string    `json:"source,omitempty"`
	DedupeKey      string    `json:"dedupe_key,omitempty"`
	ExternalID     string    `json:"external_id,omitempty"`
	Embedding      []float32 `json:"embedding,omitempty"`
	PendingEmbed   bool      `json:"pending_embed,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	FirstCreatedAt time.Time `json:"first_created_at"`
}

// Export writes every memory to snapshot storage as JSON lines under key.
// Vectors are included, so importing does not re-embed anything.
func (u *UseCase) Export(ctx context.Context, key string) (int, error) {
	if u.storage == nil {
		return 0, goerr.New("snapshot storage is not configured", goerr.T(model.TagValidation))
	}

	writer, err := u.storage.Put(ctx, key)
	if err != nil {
		return 0, err
	}

	buffered := bufio.NewWriter(writer)
	encoder := json.NewEncoder(buffered)

	meta, err := u.index.Meta(ctx)
	if err != nil {
		writer.Close()
		return 0, err
	}
	if meta == nil {
		meta = &model.IndexMeta{SchemaVersion: model.CurrentSchemaVersion, Model: u.embedder.Model()}
	}
	if err := encoder.Encode(snapshotMeta{
		SchemaVersion: meta.SchemaVersion,
		Model:         meta.Model,
		Dimension:     meta.Dimension,
	}); err != nil {
		writer.Close()
		return 0, goerr.Wrap(err, "failed to write snapshot header")
	}

	count := 0
	var after *repository.ScanKey
	for {
		page, err := u.index.Scan(ctx, exportPageSize, after)
		if err != nil {
			writer.Close()
			return 0, err
		}
		if len(page) == 0 {
			break
		}

		for _, mem := range page {
			if err := encoder.Encode(snapshotFromMemory(mem)); err != nil {
				writer.Close()
				return 0, goerr.Wrap(err, "failed to write snapshot record")
			}
			count++
		}

		last := page[len(page)-1]
		after = &repository.ScanKey{CreatedAt: last.CreatedAt, ID: last.ID}
		if len(page) < exportPageSize {
			break
		}
	}

	if err := buffered.Flush(); err != nil {
		writer.Close()
		return 0, goerr.Wrap(err, "failed to flush snapshot")
	}
	if err := writer.Close(); err != nil {
		return 0, goerr.Wrap(err, "failed to finalize snapshot", goerr.V("key", key))
	}
	return count, nil
}

// Import restores memories from a snapshot, preserving IDs, timestamps and
// vectors. A snapshot from a different embedding model is rejected: its
// vectors would be meaningless in this index.
func (u *UseCase) Import(ctx context.Context, key string) (int, error) {
	if u.storage == nil {
		return 0, goerr.New("snapshot storage is not configured", goerr.T(model.TagValidation))
	}

	reader, err := u.storage.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	defer reader.Close()

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	if !scanner.Scan() {
		return 0, goerr.New("snapshot is empty", goerr.T(model.TagValidation), goerr.V("key", key))
	}
	var header snapshotMeta
	if err := json.Unmarshal(scanner.Bytes(), &header); err != nil {
		return 0, goerr.Wrap(err, "broken snapshot header", goerr.V("key", key))
	}
	if header.Model != "" && header.Model != u.embedder.Model() {
		return 0, goerr.Wrap(model.ErrModelMismatch, "snapshot was built with a different embedding model",
			goerr.V("snapshot_model", header.Model),
			goerr.V("configured_model", u.embedder.Model()))
	}

	if err := u.ensureMeta(ctx, header.Dimension); err != nil {
		return 0, err
	}

	count := 0
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var record snapshotMemory
		if err := json.Unmarshal(line, &record); err != nil {
			return count, goerr.Wrap(err, "broken snapshot record", goerr.V("line", count+2))
		}

		if err := u.upsert(ctx, memoryFromSnapshot(&record)); err != nil {
			return count, err
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		return count, goerr.Wrap(err, "failed to read snapshot", goerr.V("key", key))
	}
	return count, nil
}

func snapshotFromMemory(mem *model.Memory) *snapshotMemory {
	return &snapshotMemory{
		ID:             string(mem.ID),
		Text:           mem.Text,
		Tags:           mem.Tags,
		Source:         mem.Source,
		DedupeKey:      mem.DedupeKey,
		ExternalID:     mem.ExternalID,
		Embedding:      mem.Embedding,
		PendingEmbed:   mem.PendingEmbed,
		CreatedAt:      mem.CreatedAt.UTC(),
		FirstCreatedAt: mem.FirstCreatedAt.UTC(),
	}
}

func memoryFromSnapshot(record *snapshotMemory) *model.Memory {
	return &model.Memory{
		ID:             model.MemoryID(record.ID),
		Text:           record.Text,
		Tags:           record.Tags,
		Source:         record.Source,
		DedupeKey:      record.DedupeKey,
		ExternalID:     record.ExternalID,
		Embedding:      record.Embedding,
		PendingEmbed:   record.PendingEmbed,
		CreatedAt:      record.CreatedAt,
		FirstCreatedAt: record.FirstCreatedAt,
	}
}

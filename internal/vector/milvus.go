package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	"github.com/hyperjump/kotae/internal/apperr"
	"github.com/hyperjump/kotae/internal/models"
)

// Milvus collection field names.
const (
	fieldID        = "id"
	fieldText      = "text"
	fieldMetadata  = "metadata"
	fieldEmbedding = "embedding"
)

const (
	idMaxLength   = "255"
	textMaxLength = "65535"
)

// MilvusIndex stores chunks in a Milvus collection with an HNSW cosine index
// on the embedding field. Every call runs under the configured timeout.
type MilvusIndex struct {
	client     *milvusclient.Client
	collection string
	dimensions int
	timeout    time.Duration
}

// OpenMilvus connects to Milvus at address and ensures the named collection
// exists, is indexed and is loaded. The timeout bounds the dial and every
// subsequent call; zero means no bound. Connection failures are reported as
// index-unavailable so the caller can fall back to a snapshot store.
func OpenMilvus(ctx context.Context, address, collection string, dimensions int, timeout time.Duration) (*MilvusIndex, error) {
	m := &MilvusIndex{collection: collection, dimensions: dimensions, timeout: timeout}
	dialCtx, cancel := m.opContext(ctx)
	defer cancel()
	cli, err := milvusclient.New(dialCtx, &milvusclient.ClientConfig{Address: address})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIndexUnavailable,
			fmt.Sprintf("connect to Milvus at %s", address), err)
	}
	m.client = cli
	if err := m.ensureCollection(dialCtx); err != nil {
		_ = cli.Close(ctx)
		return nil, err
	}
	return m, nil
}

// opContext derives a deadline-bound context for one Milvus call.
func (m *MilvusIndex) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, m.timeout)
}

// Collection returns the collection name backing this index.
func (m *MilvusIndex) Collection() string {
	return m.collection
}

func (m *MilvusIndex) ensureCollection(ctx context.Context) error {
	exists, err := m.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(m.collection))
	if err != nil {
		return apperr.Wrap(apperr.KindIndexUnavailable, "check collection", err)
	}
	if !exists {
		schema := &entity.Schema{
			CollectionName: m.collection,
			Description:    "embedded document chunks",
			Fields: []*entity.Field{
				{
					Name:       fieldID,
					DataType:   entity.FieldTypeVarChar,
					PrimaryKey: true,
					AutoID:     false,
					TypeParams: map[string]string{"max_length": idMaxLength},
				},
				{
					Name:       fieldText,
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": textMaxLength},
				},
				{
					Name:     fieldMetadata,
					DataType: entity.FieldTypeJSON,
				},
				{
					Name:       fieldEmbedding,
					DataType:   entity.FieldTypeFloatVector,
					TypeParams: map[string]string{"dim": fmt.Sprintf("%d", m.dimensions)},
				},
			},
		}
		createOpt := milvusclient.NewCreateCollectionOption(m.collection, schema)
		createOpt.WithShardNum(1)
		if err := m.client.CreateCollection(ctx, createOpt); err != nil {
			return apperr.Wrap(apperr.KindIndexUnavailable, "create collection", err)
		}
		idx := index.NewHNSWIndex(entity.COSINE, 16, 200)
		if _, err := m.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(m.collection, fieldEmbedding, idx)); err != nil {
			return apperr.Wrap(apperr.KindIndexUnavailable, "create embedding index", err)
		}
	}
	if _, err := m.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(m.collection)); err != nil {
		return apperr.Wrap(apperr.KindIndexUnavailable, "load collection", err)
	}
	return nil
}

// UpsertAll replaces the collection contents with chunks. The collection is
// dropped and recreated first so chunks from files no longer in the corpus
// do not survive a recompile.
func (m *MilvusIndex) UpsertAll(ctx context.Context, chunks []models.DocumentChunk) error {
	if err := m.Clear(ctx); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}
	ids := make([]string, len(chunks))
	texts := make([]string, len(chunks))
	metas := make([][]byte, len(chunks))
	vectors := make([][]float32, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
		texts[i] = c.Text
		meta := c.Metadata
		if meta == nil {
			meta = map[string]interface{}{}
		}
		data, err := json.Marshal(meta)
		if err != nil {
			return apperr.Wrap(apperr.KindIndexUnavailable, "encode chunk metadata", err)
		}
		metas[i] = data
		vectors[i] = c.Embedding
	}

	opt := milvusclient.NewColumnBasedInsertOption(m.collection,
		column.NewColumnVarChar(fieldID, ids),
		column.NewColumnVarChar(fieldText, texts),
		column.NewColumnJSONBytes(fieldMetadata, metas),
		column.NewColumnFloatVector(fieldEmbedding, m.dimensions, vectors),
	)
	opCtx, cancel := m.opContext(ctx)
	defer cancel()
	if _, err := m.client.Insert(opCtx, opt); err != nil {
		return apperr.Wrap(apperr.KindIndexUnavailable, "insert chunks", err)
	}
	return nil
}

// TopK searches the collection by cosine similarity.
func (m *MilvusIndex) TopK(ctx context.Context, query []float32, k int) ([]models.ScoredChunk, error) {
	if k <= 0 {
		return nil, nil
	}
	opt := milvusclient.NewSearchOption(m.collection, k, []entity.Vector{entity.FloatVector(query)}).
		WithANNSField(fieldEmbedding).
		WithOutputFields(fieldID, fieldText, fieldMetadata)
	opCtx, cancel := m.opContext(ctx)
	defer cancel()
	results, err := m.client.Search(opCtx, opt)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIndexUnavailable, "search", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	rs := results[0]
	out := make([]models.ScoredChunk, 0, rs.ResultCount)
	textCol := rs.GetColumn(fieldText)
	metaCol := rs.GetColumn(fieldMetadata)
	for i := 0; i < rs.ResultCount; i++ {
		id, err := rs.IDs.GetAsString(i)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindIndexUnavailable, "read result id", err)
		}
		chunk := models.DocumentChunk{ID: id}
		if textCol != nil {
			if text, err := textCol.GetAsString(i); err == nil {
				chunk.Text = text
			}
		}
		if metaCol != nil {
			if raw, err := metaCol.GetAsString(i); err == nil && raw != "" {
				_ = json.Unmarshal([]byte(raw), &chunk.Metadata)
			}
		}
		score := float64(0)
		if i < len(rs.Scores) {
			score = float64(rs.Scores[i])
		}
		out = append(out, models.ScoredChunk{Chunk: chunk, Score: score})
	}
	return out, nil
}

// Clear drops the collection and recreates it empty.
func (m *MilvusIndex) Clear(ctx context.Context) error {
	opCtx, cancel := m.opContext(ctx)
	defer cancel()
	if err := m.client.DropCollection(opCtx, milvusclient.NewDropCollectionOption(m.collection)); err != nil {
		return apperr.Wrap(apperr.KindIndexUnavailable, "drop collection", err)
	}
	return m.ensureCollection(opCtx)
}

// Count returns the number of stored chunks using a count(*) query.
func (m *MilvusIndex) Count(ctx context.Context) (int, error) {
	opt := milvusclient.NewQueryOption(m.collection).
		WithOutputFields("count(*)").
		WithConsistencyLevel(entity.ClStrong)
	opCtx, cancel := m.opContext(ctx)
	defer cancel()
	rs, err := m.client.Query(opCtx, opt)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindIndexUnavailable, "count query", err)
	}
	col := rs.GetColumn("count(*)")
	if col == nil || col.Len() == 0 {
		return 0, nil
	}
	n, err := col.GetAsInt64(0)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindIndexUnavailable, "read count", err)
	}
	return int(n), nil
}

// Close releases the client connection.
func (m *MilvusIndex) Close() error {
	return m.client.Close(context.Background())
}

// Package bolt provides a local vector index stored in a bbolt file.
// Search is an exact cosine scan, which suits single-host corpora of up
// to a few hundred thousand chunks.
package bolt

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/custodia-labs/rag-platform/internal/core/domain"
	"github.com/custodia-labs/rag-platform/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

var (
	bucketVectors = []byte("vectors")
	// bucketByDocument maps <document id>/<big-endian chunk index> to a
	// record ID, so a document's vectors can be found by prefix.
	bucketByDocument = []byte("by_document")
)

// Index is a bbolt-backed vector index.
type Index struct {
	db         *bbolt.DB
	dimensions int
}

type storedVector struct {
	DocumentID string    `json:"document_id"`
	ChunkIndex int       `json:"chunk_index"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"embedding"`
}

// Open opens or creates the index file. dimensions > 0 makes Upsert and
// Search reject vectors of another size.
func Open(path string, dimensions int) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating vector index directory: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", domain.ErrVectorIndexUnavailable, path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketVectors); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketByDocument)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Index{db: db, dimensions: dimensions}, nil
}

// Upsert writes records in one transaction.
func (x *Index) Upsert(ctx context.Context, records []driven.VectorRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, r := range records {
		if r.ID == "" || r.DocumentID == "" {
			return fmt.Errorf("%w: vector record needs an id and document id", domain.ErrInvalidInput)
		}
		if err := x.checkDimensions(r.Embedding); err != nil {
			return fmt.Errorf("record %s: %w", r.ID, err)
		}
	}

	return x.db.Update(func(tx *bbolt.Tx) error {
		vectors := tx.Bucket(bucketVectors)
		byDoc := tx.Bucket(bucketByDocument)
		for _, r := range records {
			data, err := json.Marshal(storedVector{
				DocumentID: r.DocumentID,
				ChunkIndex: r.ChunkIndex,
				Content:    r.Content,
				Embedding:  r.Embedding,
			})
			if err != nil {
				return err
			}
			if err := vectors.Put([]byte(r.ID), data); err != nil {
				return err
			}
			if err := byDoc.Put(documentKey(r.DocumentID, r.ChunkIndex), []byte(r.ID)); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteDocument removes all of a document's vectors.
func (x *Index) DeleteDocument(ctx context.Context, documentID string) error {
	return x.Prune(ctx, documentID, 0)
}

// Prune removes a document's vectors with chunk index >= keep.
func (x *Index) Prune(ctx context.Context, documentID string, keep int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if keep < 0 {
		keep = 0
	}
	prefix := documentPrefix(documentID)

	return x.db.Update(func(tx *bbolt.Tx) error {
		vectors := tx.Bucket(bucketVectors)
		byDoc := tx.Bucket(bucketByDocument)

		// Collect first: deleting through a cursor while advancing it can
		// skip keys.
		var keys, ids [][]byte
		c := byDoc.Cursor()
		for k, v := c.Seek(documentKey(documentID, keep)); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			keys = append(keys, bytes.Clone(k))
			ids = append(ids, bytes.Clone(v))
		}

		for i := range keys {
			if err := vectors.Delete(ids[i]); err != nil {
				return err
			}
			if err := byDoc.Delete(keys[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// Search returns the k most similar vectors, best first.
func (x *Index) Search(ctx context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	if k <= 0 {
		return nil, nil
	}
	if err := x.checkDimensions(query); err != nil {
		return nil, err
	}

	var hits []driven.VectorHit
	err := x.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketVectors).ForEach(func(id, data []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var v storedVector
			if err := json.Unmarshal(data, &v); err != nil {
				return fmt.Errorf("decoding vector %s: %w", id, err)
			}
			if len(v.Embedding) != len(query) {
				return nil
			}
			hits = append(hits, driven.VectorHit{
				ID:         string(id),
				DocumentID: v.DocumentID,
				ChunkIndex: v.ChunkIndex,
				Similarity: cosine(query, v.Embedding),
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Count returns the number of stored vectors.
func (x *Index) Count() (int, error) {
	n := 0
	err := x.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketVectors).Stats().KeyN
		return nil
	})
	return n, err
}

// Close closes the index file.
func (x *Index) Close() error {
	return x.db.Close()
}

func (x *Index) checkDimensions(v []float32) error {
	if len(v) == 0 {
		return fmt.Errorf("%w: empty vector", domain.ErrInvalidInput)
	}
	if x.dimensions > 0 && len(v) != x.dimensions {
		return fmt.Errorf("%w: vector has %d dimensions, index expects %d",
			domain.ErrInvalidInput, len(v), x.dimensions)
	}
	return nil
}

func documentPrefix(documentID string) []byte {
	return []byte(documentID + "/")
}

func documentKey(documentID string, chunkIndex int) []byte {
	key := documentPrefix(documentID)
	return binary.BigEndian.AppendUint64(key, uint64(chunkIndex))
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

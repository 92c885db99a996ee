package inmemory

import (
	"context"
	"testing"

	"github.com/Anas-2357/CodeSage/similarity"
	"github.com/Anas-2357/CodeSage/vectorstore"
)

func record(id string, values []float32) vectorstore.Record {
	return vectorstore.Record{
		ID:     id,
		Values: values,
		Metadata: vectorstore.Metadata{
			FilePath:  "/src/" + id + ".go",
			Chunk:     "chunk " + id,
			StartLine: 1,
			EndLine:   10,
		},
	}
}

func TestMemoryStore_UpsertAndQuery(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	records := []vectorstore.Record{
		record("a", []float32{1, 0, 0}),
		record("b", []float32{0, 1, 0}),
		record("c", []float32{0.9, 0.1, 0}),
	}
	if err := store.Upsert(ctx, "ns1", records); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	matches, err := store.Query(ctx, "ns1", []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].ID != "a" {
		t.Errorf("best match = %q, want %q", matches[0].ID, "a")
	}
	if matches[1].ID != "c" {
		t.Errorf("second match = %q, want %q", matches[1].ID, "c")
	}
	if matches[0].Score < matches[1].Score {
		t.Error("matches are not ranked best first")
	}
	if matches[0].Metadata.FilePath != "/src/a.go" {
		t.Errorf("metadata not carried through: %+v", matches[0].Metadata)
	}
}

func TestMemoryStore_SelectableSimilarity(t *testing.T) {
	ctx := context.Background()

	// Dot product rewards magnitude, cosine ignores it; the two rankings
	// disagree on these records.
	records := []vectorstore.Record{
		record("unit", []float32{1, 0}),
		record("long", []float32{5, 1}),
	}
	query := []float32{1, 0}

	cosine := NewMemoryStore(0)
	if err := cosine.Upsert(ctx, "ns", records); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	matches, err := cosine.Query(ctx, "ns", query, 1)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if matches[0].ID != "unit" {
		t.Errorf("cosine best match = %q, want %q", matches[0].ID, "unit")
	}

	dot := NewMemoryStoreWithSimilarity(0, similarity.DotProduct)
	if err := dot.Upsert(ctx, "ns", records); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	matches, err = dot.Query(ctx, "ns", query, 1)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if matches[0].ID != "long" {
		t.Errorf("dot product best match = %q, want %q", matches[0].ID, "long")
	}
}

func TestMemoryStore_NamespaceIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	if err := store.Upsert(ctx, "ns1", []vectorstore.Record{record("a", []float32{1, 0})}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := store.Upsert(ctx, "ns2", []vectorstore.Record{record("b", []float32{1, 0})}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	matches, err := store.Query(ctx, "ns1", []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != "a" {
		t.Errorf("ns1 query returned %+v, want only record a", matches)
	}

	matches, err = store.Query(ctx, "missing", []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches in unknown namespace, got %d", len(matches))
	}
}

func TestMemoryStore_UpsertReplaces(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	if err := store.Upsert(ctx, "ns", []vectorstore.Record{record("a", []float32{1, 0})}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	updated := record("a", []float32{0, 1})
	updated.Metadata.Chunk = "updated"
	if err := store.Upsert(ctx, "ns", []vectorstore.Record{updated}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	if n := store.Len("ns"); n != 1 {
		t.Fatalf("expected 1 record after replace, got %d", n)
	}
	matches, err := store.Query(ctx, "ns", []float32{0, 1}, 1)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if matches[0].Metadata.Chunk != "updated" {
		t.Errorf("record was not replaced: %+v", matches[0].Metadata)
	}
}

func TestMemoryStore_DeleteNamespace(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	if err := store.Upsert(ctx, "ns", []vectorstore.Record{record("a", []float32{1})}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := store.DeleteNamespace(ctx, "ns"); err != nil {
		t.Fatalf("DeleteNamespace failed: %v", err)
	}
	if n := store.Len("ns"); n != 0 {
		t.Errorf("expected empty namespace after delete, got %d records", n)
	}
}

package roundfeatures

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/numerai/scoring-engine/internal/blobcache"
)

type fakeStore struct {
	archive    []byte
	fetchCount int
}

func (f *fakeStore) DownloadSubmission(ctx context.Context, key string) (io.ReadCloser, error) {
	return nil, nil
}

func (f *fakeStore) DownloadDatasetArchive(ctx context.Context, roundID string) (io.ReadCloser, error) {
	f.fetchCount++
	return io.NopCloser(bytes.NewReader(f.archive)), nil
}

func buildDatasetZip(t *testing.T) []byte {
	t.Helper()
	files := map[string]string{
		"numerai_training_data.csv": "id,feature1,feature2,target\n" +
			"t1,0.1,0.9,0\nt2,0.9,0.1,1\nt3,0.15,0.85,0\nt4,0.85,0.15,1\n",
		"numerai_tournament_data.csv": "id,era,data_type,feature1,feature2,target\n" +
			"v1,era1,validation,0.12,0.88,0\n" +
			"v2,era1,validation,0.88,0.12,1\n" +
			"e1,era2,test,0.2,0.8,\n" +
			"l1,era3,live,0.8,0.2,\n",
	}
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatalf("create zip entry: %v", err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatalf("write zip entry: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip writer: %v", err)
	}
	return buf.Bytes()
}

func newTestEngine(t *testing.T) (*Engine, *fakeStore) {
	t.Helper()
	store := &fakeStore{archive: buildDatasetZip(t)}
	cache, err := blobcache.New(t.TempDir(), store)
	if err != nil {
		t.Fatalf("blobcache.New: %v", err)
	}
	engine, err := New(cache)
	if err != nil {
		t.Fatalf("roundfeatures.New: %v", err)
	}
	return engine, store
}

func TestGet_ComputesAndMemoizesPerRound(t *testing.T) {
	engine, store := newTestEngine(t)

	f1, err := engine.Get(context.Background(), "round1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(f1.ValIDs) != 2 || len(f1.TestIDs) != 1 || len(f1.LiveIDs) != 1 {
		t.Fatalf("unexpected partition sizes: val=%d test=%d live=%d", len(f1.ValIDs), len(f1.TestIDs), len(f1.LiveIDs))
	}
	if len(f1.CVal) != 2 || len(f1.CTest) != 1 || len(f1.CLive) != 1 {
		t.Fatalf("cluster assignment vectors don't match partition sizes")
	}

	if _, err := engine.Get(context.Background(), "round1"); err != nil {
		t.Fatalf("Get (memoized): %v", err)
	}
	if store.fetchCount != 1 {
		t.Errorf("expected exactly one dataset fetch across two Gets, got %d", store.fetchCount)
	}
}

func TestGet_DistinctRoundsBothFetched(t *testing.T) {
	engine, store := newTestEngine(t)

	if _, err := engine.Get(context.Background(), "round1"); err != nil {
		t.Fatalf("Get round1: %v", err)
	}
	if _, err := engine.Get(context.Background(), "round2"); err != nil {
		t.Fatalf("Get round2: %v", err)
	}
	if store.fetchCount != 2 {
		t.Errorf("expected one fetch per distinct round, got %d", store.fetchCount)
	}
}

func TestInvalidate_ForcesRecompute(t *testing.T) {
	engine, store := newTestEngine(t)

	f1, err := engine.Get(context.Background(), "round1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	engine.Invalidate("round1")
	f2, err := engine.Get(context.Background(), "round1")
	if err != nil {
		t.Fatalf("Get after invalidate: %v", err)
	}
	if f1 == f2 {
		t.Error("expected Get after Invalidate to recompute Features, got the memoized value")
	}
	// The recompute reads the round's already-extracted dataset directory;
	// the Blob Cache downloads a round's archive only once.
	if store.fetchCount != 1 {
		t.Errorf("expected the dataset archive to be downloaded once, got %d fetches", store.fetchCount)
	}
}

func buildDatasetZipWithEmptyPartitions(t *testing.T) []byte {
	t.Helper()
	files := map[string]string{
		"numerai_training_data.csv": "id,feature1,feature2,target\n" +
			"t1,0.1,0.9,0\nt2,0.9,0.1,1\nt3,0.15,0.85,0\nt4,0.85,0.15,1\n",
		"numerai_tournament_data.csv": "id,era,data_type,feature1,feature2,target\n" +
			"v1,era1,validation,0.12,0.88,0\n" +
			"v2,era1,validation,0.88,0.12,1\n",
	}
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatalf("create zip entry: %v", err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatalf("write zip entry: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip writer: %v", err)
	}
	return buf.Bytes()
}

// A round with no test or live rows yet (early in the round's lifecycle)
// must not panic computing cluster assignments for those partitions.
func TestGet_EmptyPartitionsDoNotPanic(t *testing.T) {
	store := &fakeStore{archive: buildDatasetZipWithEmptyPartitions(t)}
	cache, err := blobcache.New(t.TempDir(), store)
	if err != nil {
		t.Fatalf("blobcache.New: %v", err)
	}
	engine, err := New(cache)
	if err != nil {
		t.Fatalf("roundfeatures.New: %v", err)
	}

	f, err := engine.Get(context.Background(), "round1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(f.TestIDs) != 0 || len(f.CTest) != 0 {
		t.Errorf("expected empty test partition, got %d ids / %d clusters", len(f.TestIDs), len(f.CTest))
	}
	if len(f.LiveIDs) != 0 || len(f.CLive) != 0 {
		t.Errorf("expected empty live partition, got %d ids / %d clusters", len(f.LiveIDs), len(f.CLive))
	}
}

func TestSizesMatch_DetectsRoundRestart(t *testing.T) {
	engine, _ := newTestEngine(t)
	f, err := engine.Get(context.Background(), "round1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if !f.SizesMatch(len(f.ValIDs), len(f.TestIDs), len(f.LiveIDs)) {
		t.Error("SizesMatch should be true when sizes match exactly")
	}
	if f.SizesMatch(len(f.ValIDs)+1, len(f.TestIDs), len(f.LiveIDs)) {
		t.Error("SizesMatch should be false when a partition grew, signalling a round restart")
	}
}

package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

type testData struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Value int    `json:"value"`
}

func TestStorage_PutAndGet(t *testing.T) {
	tmpDir := t.TempDir()
	s := New(tmpDir)
	ctx := context.Background()

	data := testData{ID: "123", Name: "test", Value: 42}

	if err := s.Put(ctx, []string{"items", "item1"}, data); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	filePath := filepath.Join(tmpDir, "items", "item1.json")
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		t.Fatal("file was not created")
	}

	var retrieved testData
	if err := s.Get(ctx, []string{"items", "item1"}, &retrieved); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if retrieved != data {
		t.Errorf("data mismatch: got %+v, want %+v", retrieved, data)
	}
}

func TestStorage_GetNotFound(t *testing.T) {
	s := New(t.TempDir())

	var data testData
	if err := s.Get(context.Background(), []string{"nonexistent", "item"}, &data); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}
}

func TestStorage_NoTempFileLeftBehind(t *testing.T) {
	tmpDir := t.TempDir()
	s := New(tmpDir)
	ctx := context.Background()

	if err := s.Put(ctx, []string{"a", "b"}, testData{ID: "1"}); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(filepath.Join(tmpDir, "a"))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestWriteFileAtomic_FailureKeepsPrevious(t *testing.T) {
	tmpDir := t.TempDir()
	target := filepath.Join(tmpDir, "data.json")

	if err := WriteFileAtomic(target, []byte(`{"v":1}`)); err != nil {
		t.Fatal(err)
	}

	// A write into a path whose parent is a file must fail without
	// touching the original target.
	bad := filepath.Join(target, "child.json")
	if err := WriteFileAtomic(bad, []byte(`{"v":2}`)); err == nil {
		t.Fatal("expected error writing under a file path")
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"v":1}` {
		t.Errorf("previous content clobbered: %s", data)
	}
}

func TestStorage_Overwrite(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	s.Put(ctx, []string{"k"}, testData{Value: 1})
	s.Put(ctx, []string{"k"}, testData{Value: 2})

	var got testData
	if err := s.Get(ctx, []string{"k"}, &got); err != nil {
		t.Fatal(err)
	}
	if got.Value != 2 {
		t.Errorf("expected overwritten value 2, got %d", got.Value)
	}
}

func TestStorage_ListAndScan(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	s.Put(ctx, []string{"msgs", "a"}, testData{ID: "a"})
	s.Put(ctx, []string{"msgs", "b"}, testData{ID: "b"})

	items, err := s.List(ctx, []string{"msgs"})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %v", items)
	}

	seen := map[string]bool{}
	err = s.Scan(ctx, []string{"msgs"}, func(key string, data json.RawMessage) error {
		var d testData
		if err := json.Unmarshal(data, &d); err != nil {
			return err
		}
		seen[d.ID] = true
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if !seen["a"] || !seen["b"] {
		t.Errorf("scan missed items: %v", seen)
	}
}

func TestStorage_ScanReadsUnderSharedLock(t *testing.T) {
	tmpDir := t.TempDir()
	s := New(tmpDir)
	ctx := context.Background()

	s.Put(ctx, []string{"msgs", "a"}, testData{ID: "a"})

	// Another reader's shared lock must not block the scan.
	f, err := os.Open(filepath.Join(tmpDir, "msgs", "a.json"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := lockShared(f); err != nil {
		t.Fatal(err)
	}
	defer unlock(f)

	seen := 0
	err = s.Scan(ctx, []string{"msgs"}, func(key string, data json.RawMessage) error {
		var d testData
		if err := json.Unmarshal(data, &d); err != nil {
			return err
		}
		seen++
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if seen != 1 {
		t.Errorf("scan saw %d items, want 1", seen)
	}
}

func TestStorage_ListEmpty(t *testing.T) {
	s := New(t.TempDir())
	items, err := s.List(context.Background(), []string{"missing"})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 {
		t.Errorf("expected empty list, got %v", items)
	}
}

func TestStorage_ConcurrentPut(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s.Put(ctx, []string{"shared"}, testData{Value: n})
		}(i)
	}
	wg.Wait()

	// Whatever writer won, the file must parse.
	var got testData
	if err := s.Get(ctx, []string{"shared"}, &got); err != nil {
		t.Fatalf("file corrupted by concurrent writes: %v", err)
	}
}

func TestStorage_Delete(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	s.Put(ctx, []string{"k"}, testData{})
	if err := s.Delete(ctx, []string{"k"}); err != nil {
		t.Fatal(err)
	}
	if s.Exists(ctx, []string{"k"}) {
		t.Error("key still exists after delete")
	}
	// Deleting again is a no-op.
	if err := s.Delete(ctx, []string{"k"}); err != nil {
		t.Errorf("second delete should be nil, got %v", err)
	}
}

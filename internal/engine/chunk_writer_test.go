package engine

import (
	"errors"
	"testing"

	"github.com/spf13/afero"

	"github.com/datallboy/godepot/internal/domain"
)

func readAll(t *testing.T, fs afero.Fs, path string) string {
	t.Helper()
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(b)
}

func TestReconcileCreatesAndWrites(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := NewChunkWriter(fs)
	blobs := map[domain.Hash][]byte{}
	f := content("bin/game.exe", blobs, "hello ", "world")
	fc := &fetchCounter{blobs: blobs}

	for _, c := range f.Chunks {
		n, err := w.Reconcile("/dl/bin/game.exe", c, fc.fetch)
		if err != nil {
			t.Fatalf("Reconcile: %v", err)
		}
		if n != int64(c.OriginalLength) {
			t.Fatalf("n = %d, want %d", n, c.OriginalLength)
		}
	}

	if got := readAll(t, fs, "/dl/bin/game.exe"); got != "hello world" {
		t.Fatalf("file = %q", got)
	}
	if fc.calls != 2 {
		t.Fatalf("fetch calls = %d, want 2", fc.calls)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := NewChunkWriter(fs)
	blobs := map[domain.Hash][]byte{}
	f := content("data.pak", blobs, "aaaa", "bbbb")
	fc := &fetchCounter{blobs: blobs}

	for pass := 0; pass < 2; pass++ {
		for _, c := range f.Chunks {
			if _, err := w.Reconcile("/dl/data.pak", c, fc.fetch); err != nil {
				t.Fatalf("pass %d: %v", pass, err)
			}
		}
	}

	if fc.calls != 2 {
		t.Fatalf("fetch calls = %d, want 2 (second pass must not fetch)", fc.calls)
	}
	if got := readAll(t, fs, "/dl/data.pak"); got != "aaaabbbb" {
		t.Fatalf("file = %q", got)
	}
}

func TestReconcileRepairsCorruptChunk(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/dl/data.pak", []byte("aaaaXXXXcccc"), 0644); err != nil {
		t.Fatal(err)
	}

	w := NewChunkWriter(fs)
	blobs := map[domain.Hash][]byte{}
	f := content("data.pak", blobs, "aaaa", "bbbb", "cccc")
	fc := &fetchCounter{blobs: blobs}

	for _, c := range f.Chunks {
		if _, err := w.Reconcile("/dl/data.pak", c, fc.fetch); err != nil {
			t.Fatalf("Reconcile: %v", err)
		}
	}

	if fc.calls != 1 {
		t.Fatalf("fetch calls = %d, want 1", fc.calls)
	}
	if got := readAll(t, fs, "/dl/data.pak"); got != "aaaabbbbcccc" {
		t.Fatalf("file = %q", got)
	}
}

func TestReconcileOffsetPastEOF(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := NewChunkWriter(fs)
	blobs := map[domain.Hash][]byte{}
	f := content("late.bin", blobs, "1234", "5678")
	fc := &fetchCounter{blobs: blobs}

	// Second chunk first: the file is empty so nothing may be read at offset 4.
	if _, err := w.Reconcile("/dl/late.bin", f.Chunks[1], fc.fetch); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if _, err := w.Reconcile("/dl/late.bin", f.Chunks[0], fc.fetch); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	if got := readAll(t, fs, "/dl/late.bin"); got != "12345678" {
		t.Fatalf("file = %q", got)
	}
}

func TestReconcileFetchErrors(t *testing.T) {
	good := []byte("payload")
	chunk := domain.Chunk{OriginalLength: uint32(len(good)), SHA: domain.HashOf(good)}

	tests := []struct {
		name  string
		fetch FetchFunc
	}{
		{"fetch fails", func(domain.Hash) ([]byte, error) { return nil, errors.New("timeout") }},
		{"short body", func(domain.Hash) ([]byte, error) { return good[:3], nil }},
		{"wrong content", func(domain.Hash) ([]byte, error) { return []byte("PAYLOAD"), nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			_, err := NewChunkWriter(fs).Reconcile("/dl/f", chunk, tt.fetch)
			if !errors.Is(err, domain.ErrDeliveryUnavailable) {
				t.Fatalf("err = %v, want delivery unavailable", err)
			}
			if got := readAll(t, fs, "/dl/f"); got != "" {
				t.Fatalf("file = %q, want untouched", got)
			}
		})
	}
}

func TestReconcileFilesystemError(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	data := []byte("x")
	chunk := domain.Chunk{OriginalLength: 1, SHA: domain.HashOf(data)}

	_, err := NewChunkWriter(fs).Reconcile("/dl/f", chunk, func(domain.Hash) ([]byte, error) {
		t.Fatal("fetch must not be called when the file cannot be created")
		return nil, nil
	})
	if !errors.Is(err, domain.ErrFilesystem) {
		t.Fatalf("err = %v, want filesystem error", err)
	}
}

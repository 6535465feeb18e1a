package engine

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/datallboy/godepot/internal/domain"
)

// FetchFunc returns the original bytes of the chunk with the given digest.
type FetchFunc func(sha domain.Hash) ([]byte, error)

// Reconciler makes one chunk of a file correct on disk.
type Reconciler interface {
	Reconcile(path string, c domain.Chunk, fetch FetchFunc) (int64, error)
}

// ChunkWriter reconciles chunks against files on an afero filesystem.
// Handles are opened and closed inside each call; none outlive it.
type ChunkWriter struct {
	fs afero.Fs
}

func NewChunkWriter(fs afero.Fs) *ChunkWriter {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &ChunkWriter{fs: fs}
}

// Reconcile leaves the chunk untouched if the bytes at its offset already hash
// to c.SHA. Otherwise it fetches the chunk and writes it in place. Either way
// the chunk's original length is reported as written.
func (w *ChunkWriter) Reconcile(path string, c domain.Chunk, fetch FetchFunc) (int64, error) {
	if err := w.ensureFile(path); err != nil {
		return 0, domain.NewTransferError(domain.FilesystemError, "create "+path, err)
	}

	ok, err := w.onDisk(path, c)
	if err != nil {
		return 0, domain.NewTransferError(domain.FilesystemError, "read "+path, err)
	}
	if ok {
		return int64(c.OriginalLength), nil
	}

	data, err := fetch(c.SHA)
	if err != nil {
		return 0, domain.NewTransferError(domain.DeliveryUnavailable, "fetch chunk "+c.SHA.String(), err)
	}
	if uint32(len(data)) != c.OriginalLength {
		return 0, domain.NewTransferError(domain.DeliveryUnavailable, "fetch chunk "+c.SHA.String(),
			fmt.Errorf("got %d bytes, want %d", len(data), c.OriginalLength))
	}
	if domain.HashOf(data) != c.SHA {
		return 0, domain.NewTransferError(domain.DeliveryUnavailable, "fetch chunk "+c.SHA.String(),
			errors.New("content hash mismatch"))
	}

	if err := w.writeAt(path, data, c.Offset); err != nil {
		return 0, domain.NewTransferError(domain.FilesystemError, "write "+path, err)
	}

	return int64(c.OriginalLength), nil
}

func (w *ChunkWriter) ensureFile(path string) error {
	_, err := w.fs.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return err
	}

	if err := w.fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := w.fs.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("could not create file: %w", err)
	}
	return f.Close()
}

// onDisk reports whether the file already holds the chunk's bytes. It never
// reads from an offset at or past the current end of file.
func (w *ChunkWriter) onDisk(path string, c domain.Chunk) (bool, error) {
	f, err := w.fs.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	if uint64(info.Size()) <= c.Offset {
		return false, nil
	}

	buf := make([]byte, c.OriginalLength)
	n, err := f.ReadAt(buf, int64(c.Offset))
	if err != nil && err != io.EOF {
		return false, err
	}

	return domain.HashOf(buf[:n]) == c.SHA, nil
}

func (w *ChunkWriter) writeAt(path string, data []byte, offset uint64) error {
	f, err := w.fs.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return err
	}

	if _, err := f.WriteAt(data, int64(offset)); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

package engine

import (
	"errors"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/datallboy/godepot/internal/domain"
	"github.com/datallboy/godepot/internal/infra/logger"
)

// Walker drives a Reconciler over a manifest's files and chunks in
// declaration order, yielding to the pump before every file and every chunk.
type Walker struct {
	log      *logger.Logger
	progress ProgressFunc
}

func NewWalker(log *logger.Logger, progress ProgressFunc) *Walker {
	if log == nil {
		log = logger.NewNop()
	}
	return &Walker{log: log, progress: progress}
}

// Walk reconciles every chunk of m under dest. A delivery failure aborts the
// manifest and is returned. A filesystem failure aborts only the current file.
// Malformed files and chunks are skipped and counted.
func (w *Walker) Walk(m *domain.Manifest, dest string, rec Reconciler, fetch FetchFunc, pump PumpFunc) (PassReport, error) {
	report := PassReport{Manifests: 1}

	counted := func(sha domain.Hash) ([]byte, error) {
		data, err := fetch(sha)
		if err == nil {
			report.ChunksFetched++
			report.BytesFetched += uint64(len(data))
		}
		return data, err
	}

	for _, file := range m.Files {
		if !pump() {
			w.log.Info("[%d] (File) Downloading was halted.", m.AppID)
			report.Halted = true
			return report, nil
		}

		name := file.CleanName()
		if name == "" {
			w.log.Warn("[%d] Depot %d: skipping file with malformed name %q", m.AppID, m.DepotID, file.Filename)
			report.Malformed++
			continue
		}

		w.log.Debug("[%d] Getting file %s", m.AppID, name)
		path := filepath.Join(dest, filepath.FromSlash(name))
		report.Files++

		var fileBytes uint64
	chunks:
		for _, chunk := range file.Chunks {
			// Pump after each chunk so commands land promptly inside large files
			if !pump() {
				w.log.Info("[%d] (Chunk) Downloading was halted.", m.AppID)
				report.Halted = true
				return report, nil
			}

			if !chunk.Valid() {
				w.log.Warn("[%d] %s: skipping malformed chunk at offset %d", m.AppID, name, chunk.Offset)
				report.Malformed++
				continue
			}

			before := report.ChunksFetched
			n, err := rec.Reconcile(path, chunk, counted)
			if err != nil {
				switch {
				case errors.Is(err, domain.ErrFilesystem):
					w.log.Error("[%d] %s: %v (skipping rest of file)", m.AppID, name, err)
					report.FileErrors++
					break chunks
				default:
					w.log.Error("[%d] Depot %d: %v (aborting manifest)", m.AppID, m.DepotID, err)
					return report, err
				}
			}

			report.Chunks++
			fileBytes += uint64(n)
			report.BytesWritten += uint64(n)
			if w.progress != nil {
				w.progress(n)
			}

			if report.ChunksFetched == before {
				w.log.Debug("[%d] Chunk `%s` has the same hash as disk, skipping. . .", m.AppID, chunk.SHA)
			} else {
				w.log.Debug("[%d] Got data for chunk `%s` from server (%s of %s)",
					m.AppID, chunk.SHA, humanize.IBytes(fileBytes), humanize.IBytes(file.Size))
			}
		}
	}

	return report, nil
}

package delivery

import "github.com/datallboy/godepot/internal/domain"

type depotListing struct {
	Depots []uint32 `json:"depots"`
}

// manifestJSON is the manifest as served. Chunk digests stay strings so a
// single bad digest marks that chunk malformed instead of failing the whole
// manifest.
type manifestJSON struct {
	Name  string     `json:"name"`
	Files []fileJSON `json:"files"`
}

type fileJSON struct {
	Filename string      `json:"filename"`
	Size     uint64      `json:"size"`
	Chunks   []chunkJSON `json:"chunks"`
}

type chunkJSON struct {
	Offset           uint64 `json:"offset"`
	CompressedLength uint32 `json:"cb_compressed"`
	OriginalLength   uint32 `json:"cb_original"`
	SHA              string `json:"sha"`
}

func (m manifestJSON) toDomain() *domain.Manifest {
	out := &domain.Manifest{Name: m.Name, Files: make([]domain.FileEntry, 0, len(m.Files))}
	for _, f := range m.Files {
		entry := domain.FileEntry{Filename: f.Filename, Size: f.Size, Chunks: make([]domain.Chunk, 0, len(f.Chunks))}
		for _, c := range f.Chunks {
			// An unparsable digest leaves SHA zero, which Chunk.Valid rejects.
			sha, _ := domain.ParseHash(c.SHA)
			entry.Chunks = append(entry.Chunks, domain.Chunk{
				Offset:           c.Offset,
				CompressedLength: c.CompressedLength,
				OriginalLength:   c.OriginalLength,
				SHA:              sha,
			})
		}
		out.Files = append(out.Files, entry)
	}
	return out
}

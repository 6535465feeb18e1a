package engine

import "fmt"

// PumpFunc services the control channel at a cooperative cancellation point.
// It returns false when the current transfer must stop.
type PumpFunc func() bool

// ProgressFunc observes bytes made correct on disk. Observability only.
type ProgressFunc func(n int64)

// PassReport summarises a walk over one manifest or a whole transfer pass.
type PassReport struct {
	Manifests      int
	Filtered       int
	Files          int
	Chunks         int
	ChunksFetched  int
	BytesWritten   uint64
	BytesFetched   uint64
	Malformed      int
	FileErrors     int
	ManifestErrors int

	// Halted is set when a pump call asked the walk to stop.
	Halted bool
}

func (r *PassReport) add(o PassReport) {
	r.Manifests += o.Manifests
	r.Filtered += o.Filtered
	r.Files += o.Files
	r.Chunks += o.Chunks
	r.ChunksFetched += o.ChunksFetched
	r.BytesWritten += o.BytesWritten
	r.BytesFetched += o.BytesFetched
	r.Malformed += o.Malformed
	r.FileErrors += o.FileErrors
	r.ManifestErrors += o.ManifestErrors
	r.Halted = r.Halted || o.Halted
}

// Complete reports whether the pass reached the end with nothing left to retry.
func (r PassReport) Complete() bool {
	return !r.Halted && r.FileErrors == 0 && r.ManifestErrors == 0
}

func (r PassReport) String() string {
	return fmt.Sprintf("manifests=%d filtered=%d files=%d chunks=%d fetched=%d malformed=%d file_errors=%d manifest_errors=%d halted=%v",
		r.Manifests, r.Filtered, r.Files, r.Chunks, r.ChunksFetched, r.Malformed, r.FileErrors, r.ManifestErrors, r.Halted)
}

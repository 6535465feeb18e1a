package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"

	"github.com/datallboy/godepot/internal/app"
	"github.com/datallboy/godepot/internal/domain"
)

// ProgressObserver is told about every manifest a pass walks. The returned
// func receives the bytes made correct on disk and may be nil.
type ProgressObserver interface {
	Begin(m *domain.Manifest) ProgressFunc
}

// Downloader runs transfer passes against the collaborators in app.Context.
// It is the PassRunner every worker uses.
type Downloader struct {
	ctx      *app.Context
	writer   Reconciler
	observer ProgressObserver
}

func NewDownloader(ctx *app.Context, writer Reconciler) *Downloader {
	return &Downloader{ctx: ctx, writer: writer}
}

// WithObserver attaches a progress observer, e.g. terminal bars for the CLI.
func (d *Downloader) WithObserver(o ProgressObserver) *Downloader {
	d.observer = o
	return d
}

// RunPass transfers every admitted manifest of task.Target once. A manifest
// that fails with a delivery error is abandoned and the pass moves on; the
// report then counts it so the caller knows to retry.
func (d *Downloader) RunPass(ctx context.Context, task *Task, pump PumpFunc) (PassReport, error) {
	log := d.ctx.Logger
	settings := d.ctx.Settings.Snapshot()
	report := PassReport{}

	res, err := d.ctx.Store.ResolveSubItems(ctx, task.Target, settings)
	if err != nil {
		return report, fmt.Errorf("resolve depots for app %d: %w", task.Target, err)
	}

	filter := SubItemFilter(res.SubItemIDs, task.Whitelist)
	dest := destination(settings.BaseDownloadDir, res.DestinationDirName, task.Target)

	manifests, err := d.ctx.Delivery.FetchManifests(ctx, task.Target, filter)
	var partial *domain.ManifestFetchError
	switch {
	case errors.As(err, &partial):
		for _, f := range partial.Failed {
			log.Error("[%d] Depot %d abandoned for this pass: %v", task.Target, f.DepotID, f.Err)
		}
		report.ManifestErrors += len(partial.Failed)
	case err != nil:
		return report, fmt.Errorf("fetch manifests for app %d: %w", task.Target, err)
	}

	for _, m := range manifests {
		if m == nil {
			report.Malformed++
			continue
		}
		if !filter(m.DepotID) {
			log.Debug("[%d] Skipping depot %d: not admitted by filters", task.Target, m.DepotID)
			report.Filtered++
			continue
		}

		log.Info("[%d] Depot %d (%s): %d files, %s", task.Target, m.DepotID, m.Name,
			len(m.Files), humanize.IBytes(m.TotalSize()))

		walker := NewWalker(log, d.progressFor(task, m))
		r, err := walker.Walk(m, dest, d.writer, d.fetchFor(ctx, m), pump)
		report.add(r)
		if r.Halted {
			return report, nil
		}
		if err != nil {
			log.Error("[%d] Depot %d abandoned for this pass: %v", task.Target, m.DepotID, err)
			report.ManifestErrors++
		}
	}

	return report, nil
}

func (d *Downloader) fetchFor(ctx context.Context, m *domain.Manifest) FetchFunc {
	return func(sha domain.Hash) ([]byte, error) {
		return d.ctx.Delivery.FetchChunk(ctx, m.AppID, m.DepotID, sha)
	}
}

func (d *Downloader) progressFor(task *Task, m *domain.Manifest) ProgressFunc {
	var bar ProgressFunc
	if d.observer != nil {
		bar = d.observer.Begin(m)
	}
	return func(n int64) {
		task.bytesWritten.Add(uint64(n))
		if bar != nil {
			bar(n)
		}
	}
}

// SubItemFilter admits a depot when the catalog resolved it for the current
// settings and, if a whitelist is set, the whitelist names it too.
func SubItemFilter(resolved []uint32, whitelist map[uint32]struct{}) domain.SubItemFilter {
	allowed := make(map[uint32]struct{}, len(resolved))
	for _, id := range resolved {
		allowed[id] = struct{}{}
	}
	return func(depotID uint32) bool {
		if _, ok := allowed[depotID]; !ok {
			return false
		}
		if whitelist == nil {
			return true
		}
		_, ok := whitelist[depotID]
		return ok
	}
}

func destination(base, dirName string, appID uint32) string {
	if dirName == "" {
		dirName = strconv.FormatUint(uint64(appID), 10)
	}
	return filepath.Join(base, dirName)
}

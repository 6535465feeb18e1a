// Package progress renders terminal progress bars for foreground transfers.
package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/datallboy/godepot/internal/domain"
	"github.com/datallboy/godepot/internal/engine"
)

// Bars draws one bar per depot manifest. It implements engine.ProgressObserver.
type Bars struct {
	p    *mpb.Progress
	mu   sync.Mutex
	bars []*mpb.Bar
}

func New(w io.Writer) *Bars {
	return &Bars{
		p: mpb.New(
			mpb.WithWidth(64),
			mpb.WithOutput(w),
			mpb.WithRefreshRate(150*time.Millisecond),
		),
	}
}

// Begin adds a bar sized to the manifest's total bytes. Chunks already on
// disk count towards it, so a resumed depot starts where it left off.
func (b *Bars) Begin(m *domain.Manifest) engine.ProgressFunc {
	name := fmt.Sprintf("Depot %d", m.DepotID)
	if m.Name != "" {
		name = fmt.Sprintf("%s (%d)", m.Name, m.DepotID)
	}

	bar := b.p.New(int64(m.TotalSize()),
		mpb.BarStyle().Lbound("╢").Filler("█").Tip("█").Padding("░").Rbound("╟"),
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: len(name) + 1, C: decor.DindentRight}),
			decor.OnComplete(
				decor.AverageETA(decor.ET_STYLE_GO, decor.WC{W: 4}), "Complete",
			),
		),
		mpb.AppendDecorators(
			decor.CountersKibiByte("% .2f / % .2f"),
			decor.Name(" "),
			decor.AverageSpeed(decor.SizeB1024(0), "% .2f"),
		),
	)

	b.mu.Lock()
	b.bars = append(b.bars, bar)
	b.mu.Unlock()

	return func(n int64) { bar.IncrInt64(n) }
}

// Wait stops any bar that did not reach its total and flushes the output.
func (b *Bars) Wait() {
	b.mu.Lock()
	for _, bar := range b.bars {
		if !bar.Completed() {
			bar.Abort(false)
		}
	}
	b.mu.Unlock()
	b.p.Wait()
}

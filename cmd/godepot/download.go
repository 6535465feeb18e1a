package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/segmentio/ksuid"
	"github.com/spf13/cobra"

	"github.com/datallboy/godepot/internal/engine"
	"github.com/datallboy/godepot/internal/progress"
	"github.com/datallboy/godepot/internal/window"
)

type downloadOptions struct {
	window     string
	depots     []uint
	noProgress bool
}

func newDownloadCmd(opts *rootOptions) *cobra.Command {
	dl := &downloadOptions{}

	cmd := &cobra.Command{
		Use:   "download APP_ID",
		Short: "Transfer one app in the foreground, waiting for its window if needed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appID, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil || appID == 0 {
				return fmt.Errorf("invalid app id %q", args[0])
			}
			w, err := parseWindow(dl.window)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := bootstrap(ctx, opts, true)
			if err != nil {
				return err
			}
			defer rt.Close()

			return runForeground(ctx, rt, uint32(appID), w, dl)
		},
	}

	cmd.Flags().StringVarP(&dl.window, "window", "w", "00:00-23:59", "daily time window HH:MM-HH:MM (may cross midnight)")
	cmd.Flags().UintSliceVar(&dl.depots, "depot", nil, "only transfer these depot ids (repeatable)")
	cmd.Flags().BoolVar(&dl.noProgress, "no-progress", false, "disable progress bars")
	return cmd
}

func parseWindow(s string) (window.TimeWindow, error) {
	start, end, ok := strings.Cut(s, "-")
	if !ok {
		return window.TimeWindow{}, fmt.Errorf("invalid window %q, want HH:MM-HH:MM", s)
	}
	return window.Parse(strings.TrimSpace(start), strings.TrimSpace(end))
}

// runForeground drives a single worker until one pass completes cleanly or
// ctx is cancelled.
func runForeground(ctx context.Context, rt *runtime, appID uint32, w window.TimeWindow, dl *downloadOptions) error {
	log := rt.app.Logger
	cfg := rt.app.Config

	var whitelist []uint32
	for _, d := range dl.depots {
		whitelist = append(whitelist, uint32(d))
	}

	runner := engine.NewDownloader(rt.app, engine.NewChunkWriter(nil))
	var bars *progress.Bars
	if !dl.noProgress {
		bars = progress.New(os.Stdout)
		runner.WithObserver(bars)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var done bool
	task := engine.NewTask(ksuid.New().String(), 0, w, whitelist)
	owner, end := engine.NewControlChannel(cfg.Engine.CommandBuffer)
	worker := engine.NewWorker(task, end, runner,
		engine.WithPollInterval(cfg.Engine.PollInterval),
		engine.WithLogger(log),
		engine.WithPassHook(func(r engine.PassReport, err error) {
			if err == nil && r.Complete() {
				done = true
				cancel()
			}
		}),
	)

	if err := owner.Download(ctx, appID); err != nil {
		return err
	}
	if !w.Inside(engine.SystemClock.Now()) {
		log.Info("[%d] Outside of window %s, waiting", appID, w)
	}

	worker.Tick(runCtx)
	worker.Run(runCtx)
	owner.Close()

	if bars != nil {
		bars.Wait()
	}

	if !done {
		return fmt.Errorf("download of app %d interrupted", appID)
	}
	log.Info("[%d] Download complete, %s written", appID, humanize.IBytes(task.BytesWritten()))
	return nil
}

package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/datallboy/godepot/internal/infra/logger"
	"github.com/datallboy/godepot/internal/window"
)

// DefaultPollInterval is how long a worker sleeps between loop ticks.
const DefaultPollInterval = 10 * time.Second

// Clock supplies wall-clock time to the window check.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the real wall clock.
var SystemClock Clock = systemClock{}

// State is the worker lifecycle state derived from its task flags.
type State int

const (
	StateIdle State = iota
	StateWaiting
	StateActive
	StateHalted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaiting:
		return "waiting"
	case StateActive:
		return "active"
	case StateHalted:
		return "halted"
	default:
		return "unknown"
	}
}

// Task is the state of one scheduled transfer. Every field except the
// progress counter is owned by the worker goroutine and changed only in
// response to control messages or window transitions.
type Task struct {
	ID     string
	Target uint32
	Window window.TimeWindow
	// Whitelist limits which depots are transferred. nil admits all.
	Whitelist map[uint32]struct{}

	downloading bool
	alive       bool
	// intent is cleared by Stop and set by Start/Download; a window-true
	// tick only activates a task that still wants to run.
	intent bool
	// pending means the current target has not had a complete pass since
	// it was last activated.
	pending bool

	bytesWritten atomic.Uint64
}

func NewTask(id string, target uint32, w window.TimeWindow, whitelist []uint32) *Task {
	t := &Task{ID: id, Target: target, Window: w, alive: true}
	// An empty whitelist is no whitelist, matching how schedules are restored.
	if len(whitelist) > 0 {
		t.Whitelist = make(map[uint32]struct{}, len(whitelist))
		for _, id := range whitelist {
			t.Whitelist[id] = struct{}{}
		}
	}
	return t
}

// BytesWritten is safe to read from any goroutine.
func (t *Task) BytesWritten() uint64 { return t.bytesWritten.Load() }

// PassRunner performs one transfer pass over the task's current target.
type PassRunner interface {
	RunPass(ctx context.Context, task *Task, pump PumpFunc) (PassReport, error)
}

// Worker runs a Task's control loop. It is confined to one goroutine; the
// owner talks to it only through the control channel.
type Worker struct {
	task     *Task
	ch       *WorkerEnd
	runner   PassRunner
	clock    Clock
	interval time.Duration
	log      *logger.Logger

	// restart aborts the pass in progress after a Download command.
	restart bool
	inPass  bool

	onPass func(PassReport, error)
}

type WorkerOption func(*Worker)

func WithClock(c Clock) WorkerOption { return func(w *Worker) { w.clock = c } }

func WithPollInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

func WithLogger(l *logger.Logger) WorkerOption {
	return func(w *Worker) {
		if l != nil {
			w.log = l
		}
	}
}

// WithPassHook is called on the worker goroutine after every transfer pass.
func WithPassHook(fn func(PassReport, error)) WorkerOption {
	return func(w *Worker) { w.onPass = fn }
}

func NewWorker(task *Task, ch *WorkerEnd, runner PassRunner, opts ...WorkerOption) *Worker {
	w := &Worker{
		task:     task,
		ch:       ch,
		runner:   runner,
		clock:    SystemClock,
		interval: DefaultPollInterval,
		log:      logger.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run sleeps for the poll interval and ticks until the task halts or ctx is
// cancelled.
func (w *Worker) Run(ctx context.Context) {
	defer w.ch.Halt()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for w.task.alive {
		select {
		case <-ctx.Done():
			w.halt("context cancelled")
			return
		case <-ticker.C:
		}
		w.Tick(ctx)
	}
}

// Tick is one loop iteration: drain pending commands, re-evaluate the window,
// and run a transfer pass if one is due.
func (w *Worker) Tick(ctx context.Context) {
	if !w.task.alive {
		return
	}

	w.drain()
	if !w.task.alive {
		return
	}
	w.evaluateWindow()

	if w.task.downloading && w.task.pending {
		w.runPass(ctx)
	}
}

// State reports the worker's lifecycle state. Only call it from the
// goroutine running the worker (or after it has exited).
func (w *Worker) State() State {
	switch {
	case !w.task.alive:
		return StateHalted
	case w.task.Target == 0:
		return StateIdle
	case w.task.downloading:
		return StateActive
	default:
		return StateWaiting
	}
}

// Downloading mirrors the flag Query reports. Same goroutine rules as State.
func (w *Worker) Downloading() bool { return w.task.downloading }

func (w *Worker) Task() *Task { return w.task }

func (w *Worker) runPass(ctx context.Context) {
	t := w.task
	w.restart = false
	w.inPass = true
	defer func() { w.inPass = false }()

	w.log.Info("[%d] Working on app, window %s", t.Target, t.Window)

	report, err := w.runner.RunPass(ctx, t, func() bool { return w.pump(ctx) })
	if w.onPass != nil {
		defer w.onPass(report, err)
	}
	switch {
	case err != nil:
		w.log.Error("[%d] Transfer pass failed, will retry next tick: %v", t.Target, err)
	case w.restart:
		w.log.Info("[%d] Transfer pass interrupted by new download request", t.Target)
	case report.Halted:
		w.log.Info("[%d] Transfer pass halted: %s", t.Target, report)
	case !report.Complete():
		w.log.Warn("[%d] Transfer pass incomplete, will retry next tick: %s", t.Target, report)
	default:
		w.log.Info("[%d] Transfer pass complete: %s", t.Target, report)
		t.pending = false
	}
}

// pump services the channel at a cooperative cancellation point inside a
// pass and reports whether the pass may continue.
func (w *Worker) pump(ctx context.Context) bool {
	if ctx.Err() != nil {
		w.halt("context cancelled")
		return false
	}
	w.drain()
	if w.task.alive {
		w.evaluateWindow()
	}
	return w.task.alive && w.task.downloading && !w.restart
}

func (w *Worker) drain() {
	for w.task.alive {
		msg, ok, err := w.ch.Poll()
		if err != nil {
			w.log.Info("[%d] Control channel closed by owner", w.task.Target)
			w.handle(Message{Kind: MsgStop})
			w.halt("owner gone")
			return
		}
		if !ok {
			return
		}
		w.handle(msg)
	}
}

func (w *Worker) handle(msg Message) {
	t := w.task
	w.log.Debug("[%d]: Received message: `%s`", t.Target, msg)

	switch msg.Kind {
	case MsgStop:
		t.downloading = false
		t.intent = false
	case MsgStart:
		t.intent = true
		w.evaluateWindow()
	case MsgDownload:
		if msg.Target == 0 {
			w.log.Warn("[%d] Ignoring download request without a target", t.Target)
			return
		}
		if w.inPass {
			w.restart = true
		}
		t.Target = msg.Target
		t.intent = true
		t.pending = true
		if t.Window.Inside(w.clock.Now()) {
			t.downloading = true
		} else {
			w.log.Warn("[%d] Process is outside of time window %s", t.Target, t.Window)
			t.downloading = false
		}
	case MsgQuery:
		if !w.ch.Reply(Reply{Seq: msg.Seq, Downloading: t.downloading}) {
			w.log.Warn("[%d] Dropped reply to %s: nobody listening", t.Target, msg)
		}
	default:
		w.log.Warn("[%d] Ignoring unknown message %s", t.Target, msg)
	}
}

func (w *Worker) evaluateWindow() {
	t := w.task
	if !t.Window.Inside(w.clock.Now()) {
		if t.downloading {
			w.log.Info("[%d] Leaving window %s, suspending", t.Target, t.Window)
			t.pending = true
		}
		t.downloading = false
		return
	}

	if !t.downloading && t.intent && t.Target != 0 {
		w.log.Info("[%d] Inside window %s, starting", t.Target, t.Window)
		t.downloading = true
		t.pending = true
	}
}

func (w *Worker) halt(reason string) {
	if !w.task.alive {
		return
	}
	w.log.Info("[%d] Worker halted: %s", w.task.Target, reason)
	w.task.downloading = false
	w.task.alive = false
	w.ch.Halt()
}

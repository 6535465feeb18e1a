package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/datallboy/godepot/internal/app"
	"github.com/datallboy/godepot/internal/domain"
	"github.com/datallboy/godepot/internal/window"
)

// ErrUnknownTask is returned for operations on a task id the manager does not run.
var ErrUnknownTask = errors.New("unknown task")

type handle struct {
	sched  *domain.Schedule
	owner  *OwnerEnd
	task   *Task
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager owns every running worker: it creates them, holds their control
// channels, persists their schedules and tears them down.
type Manager struct {
	mu      sync.RWMutex
	app     *app.Context
	runner  PassRunner
	opts    []WorkerOption
	workers map[string]*handle

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a Manager whose workers live until ctx is cancelled or
// Shutdown is called. Extra worker options are applied after the ones
// derived from the config.
func NewManager(ctx context.Context, appCtx *app.Context, runner PassRunner, opts ...WorkerOption) *Manager {
	base, cancel := context.WithCancel(ctx)

	workerOpts := []WorkerOption{
		WithPollInterval(appCtx.Config.Engine.PollInterval),
		WithLogger(appCtx.Logger),
	}
	workerOpts = append(workerOpts, opts...)

	return &Manager{
		app:     appCtx,
		runner:  runner,
		opts:    workerOpts,
		workers: make(map[string]*handle),
		base:    base,
		cancel:  cancel,
	}
}

// Schedule persists a new task for appID restricted to w and starts its
// worker. depots optionally narrows which depots are transferred.
func (m *Manager) Schedule(ctx context.Context, appID uint32, w window.TimeWindow, depots []uint32) (*domain.Schedule, error) {
	if appID == 0 {
		return nil, fmt.Errorf("schedule: app id is required")
	}
	if _, err := m.app.Store.GetApp(ctx, appID); err != nil {
		return nil, fmt.Errorf("schedule app %d: %w", appID, err)
	}

	if len(depots) == 0 {
		depots = nil
	}

	start, end := w.Start(), w.End()
	sched := &domain.Schedule{
		ID:        ksuid.New().String(),
		AppID:     appID,
		StartHour: start.Hour,
		StartMin:  start.Minute,
		EndHour:   end.Hour,
		EndMin:    end.Minute,
		Depots:    depots,
		CreatedAt: time.Now(),
	}

	if err := m.app.Store.SaveSchedule(ctx, sched); err != nil {
		return nil, fmt.Errorf("failed to save schedule to database: %w", err)
	}

	h := m.spawn(sched, w)
	if err := h.owner.Download(ctx, appID); err != nil {
		return nil, fmt.Errorf("start task %s: %w", sched.ID, err)
	}

	m.app.Logger.Info("Scheduled app %d in window %s as task %s", appID, w, sched.ID)
	return sched, nil
}

// Restore starts a worker for every persisted schedule not already running.
// Called once at startup so tasks survive restarts.
func (m *Manager) Restore(ctx context.Context) (int, error) {
	scheds, err := m.app.Store.ListSchedules(ctx)
	if err != nil {
		return 0, fmt.Errorf("list schedules: %w", err)
	}

	restored := 0
	for _, s := range scheds {
		m.mu.RLock()
		_, live := m.workers[s.ID]
		m.mu.RUnlock()
		if live {
			continue
		}

		w, err := window.New(s.StartHour, s.StartMin, s.EndHour, s.EndMin)
		if err != nil {
			m.app.Logger.Warn("Skipping schedule %s: %v", s.ID, err)
			continue
		}

		h := m.spawn(s, w)
		if err := h.owner.Download(ctx, s.AppID); err != nil {
			return restored, fmt.Errorf("restore task %s: %w", s.ID, err)
		}
		restored++
	}

	if restored > 0 {
		m.app.Logger.Info("Restored %d scheduled task(s)", restored)
	}
	return restored, nil
}

func (m *Manager) spawn(sched *domain.Schedule, w window.TimeWindow) *handle {
	owner, end := NewControlChannel(m.app.Config.Engine.CommandBuffer)
	task := NewTask(sched.ID, 0, w, sched.Depots)
	worker := NewWorker(task, end, m.runner, m.opts...)

	ctx, cancel := context.WithCancel(m.base)
	h := &handle{
		sched:  sched,
		owner:  owner,
		task:   task,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	m.mu.Lock()
	m.workers[sched.ID] = h
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer close(h.done)
		worker.Run(ctx)
	}()

	return h
}

func (m *Manager) get(id string) (*handle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.workers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	return h, nil
}

// Pause stops the task's transfer. It stays paused, even across window
// boundaries, until Resume.
func (m *Manager) Pause(ctx context.Context, id string) error {
	h, err := m.get(id)
	if err != nil {
		return err
	}
	return h.owner.Stop(ctx)
}

func (m *Manager) Resume(ctx context.Context, id string) error {
	h, err := m.get(id)
	if err != nil {
		return err
	}
	return h.owner.Start(ctx)
}

// Retarget points a running task at a different app. Any pass in progress
// is abandoned at its next checkpoint.
func (m *Manager) Retarget(ctx context.Context, id string, appID uint32) error {
	if appID == 0 {
		return fmt.Errorf("retarget: app id is required")
	}
	h, err := m.get(id)
	if err != nil {
		return err
	}
	if _, err := m.app.Store.GetApp(ctx, appID); err != nil {
		return fmt.Errorf("retarget to app %d: %w", appID, err)
	}
	if err := h.owner.Download(ctx, appID); err != nil {
		return err
	}

	m.mu.Lock()
	h.sched.AppID = appID
	saved := *h.sched
	m.mu.Unlock()

	if err := m.app.Store.SaveSchedule(ctx, &saved); err != nil {
		return fmt.Errorf("failed to save schedule to database: %w", err)
	}
	return nil
}

// Remove tears the task down: closes its channel, waits for the worker to
// halt and deletes the persisted schedule.
func (m *Manager) Remove(ctx context.Context, id string) error {
	h, err := m.get(id)
	if err != nil {
		return err
	}

	h.owner.Close()
	h.cancel()
	select {
	case <-h.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	m.mu.Lock()
	delete(m.workers, id)
	m.mu.Unlock()

	if err := m.app.Store.DeleteSchedule(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("delete schedule %s: %w", id, err)
	}

	m.app.Logger.Info("Removed task %s", id)
	return nil
}

// States queries every live worker. Each query is bounded by
// engine.query_timeout when set; a worker that does not answer in time is
// reported with Known=false.
func (m *Manager) States(ctx context.Context) []domain.TaskState {
	m.mu.RLock()
	handles := make([]*handle, 0, len(m.workers))
	for _, h := range m.workers {
		handles = append(handles, h)
	}
	m.mu.RUnlock()

	sort.Slice(handles, func(i, j int) bool {
		return handles[i].sched.ID < handles[j].sched.ID
	})

	timeout := m.app.Config.Engine.QueryTimeout
	states := make([]domain.TaskState, len(handles))

	var wg sync.WaitGroup
	for i, h := range handles {
		m.mu.RLock()
		states[i] = domain.TaskState{
			ID:           h.sched.ID,
			AppID:        h.sched.AppID,
			Window:       h.task.Window.String(),
			BytesWritten: h.task.BytesWritten(),
		}
		m.mu.RUnlock()

		wg.Add(1)
		go func(st *domain.TaskState, owner *OwnerEnd) {
			defer wg.Done()

			qctx := ctx
			if timeout > 0 {
				var cancel context.CancelFunc
				qctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			downloading, err := owner.Query(qctx)
			if err != nil {
				m.app.Logger.Debug("Query for task %s failed: %v", st.ID, err)
				return
			}
			st.Downloading = downloading
			st.Known = true
		}(&states[i], h.owner)
	}
	wg.Wait()

	return states
}

// Get returns the schedule of a live task.
func (m *Manager) Get(id string) (*domain.Schedule, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.workers[id]
	if !ok {
		return nil, false
	}
	s := *h.sched
	return &s, true
}

// Wait blocks until the task's worker has halted or ctx is done.
func (m *Manager) Wait(ctx context.Context, id string) error {
	h, err := m.get(id)
	if err != nil {
		return err
	}
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown cancels every worker and waits for them to exit. Persisted
// schedules are kept for the next Restore.
func (m *Manager) Shutdown() {
	m.mu.RLock()
	for _, h := range m.workers {
		h.owner.Close()
	}
	m.mu.RUnlock()

	m.cancel()
	m.wg.Wait()
}

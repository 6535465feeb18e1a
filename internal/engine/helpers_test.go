package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/datallboy/godepot/internal/app"
	"github.com/datallboy/godepot/internal/domain"
	"github.com/datallboy/godepot/internal/infra/config"
	"github.com/datallboy/godepot/internal/infra/logger"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func clockAt(hour, min int) *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, hour, min, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(hour, min int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	y, m, d := c.now.Date()
	c.now = time.Date(y, m, d, hour, min, 0, 0, time.UTC)
}

// content builds a file entry whose chunks are the given byte slices laid
// out back to back, and records every chunk in blobs.
func content(name string, blobs map[domain.Hash][]byte, parts ...string) domain.FileEntry {
	f := domain.FileEntry{Filename: name}
	var off uint64
	for _, p := range parts {
		data := []byte(p)
		sha := domain.HashOf(data)
		blobs[sha] = data
		f.Chunks = append(f.Chunks, domain.Chunk{
			Offset:           off,
			CompressedLength: uint32(len(data)),
			OriginalLength:   uint32(len(data)),
			SHA:              sha,
		})
		off += uint64(len(data))
	}
	f.Size = off
	return f
}

type fetchCounter struct {
	mu    sync.Mutex
	blobs map[domain.Hash][]byte
	calls int
	err   error
}

func (c *fetchCounter) fetch(sha domain.Hash) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	data, ok := c.blobs[sha]
	if !ok {
		return nil, fmt.Errorf("no chunk %s", sha)
	}
	return data, nil
}

type fakeStore struct {
	mu        sync.Mutex
	apps      map[uint32]domain.App
	depots    map[uint32][]uint32
	schedules map[string]*domain.Schedule
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		apps:      make(map[uint32]domain.App),
		depots:    make(map[uint32][]uint32),
		schedules: make(map[string]*domain.Schedule),
	}
}

func (s *fakeStore) addApp(id uint32, dir string, depots ...uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apps[id] = domain.App{AppID: id, Name: dir, DLDir: dir}
	s.depots[id] = depots
}

func (s *fakeStore) ResolveSubItems(_ context.Context, appID uint32, _ domain.Settings) (domain.Resolution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.apps[appID]
	if !ok {
		return domain.Resolution{}, domain.ErrNotFound
	}
	return domain.Resolution{SubItemIDs: s.depots[appID], DestinationDirName: a.DLDir}, nil
}

func (s *fakeStore) ListApps(context.Context) ([]domain.App, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.App
	for _, a := range s.apps {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AppID < out[j].AppID })
	return out, nil
}

func (s *fakeStore) GetApp(_ context.Context, appID uint32) (*domain.App, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.apps[appID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &a, nil
}

func (s *fakeStore) ListDepots(context.Context, uint32, domain.Settings) ([]domain.Depot, error) {
	return nil, nil
}

func (s *fakeStore) UpsertCatalog(context.Context, []domain.App, []domain.Depot) error {
	return nil
}

func (s *fakeStore) SaveSchedule(_ context.Context, sched *domain.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *sched
	s.schedules[sched.ID] = &c
	return nil
}

func (s *fakeStore) DeleteSchedule(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schedules[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.schedules, id)
	return nil
}

func (s *fakeStore) ListSchedules(context.Context) ([]*domain.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Schedule
	for _, sc := range s.schedules {
		c := *sc
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) schedule(id string) (*domain.Schedule, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.schedules[id]
	return sc, ok
}

func (s *fakeStore) Close() error { return nil }

type fakeDelivery struct {
	mu        sync.Mutex
	manifests map[uint32][]*domain.Manifest
	fetches   fetchCounter
	// failDepot makes every chunk fetch for that depot fail.
	failDepot uint32
	// failManifest makes the manifest of that depot unavailable.
	failManifest uint32
}

func newFakeDelivery() *fakeDelivery {
	return &fakeDelivery{
		manifests: make(map[uint32][]*domain.Manifest),
		fetches:   fetchCounter{blobs: make(map[domain.Hash][]byte)},
	}
}

// FetchManifests ignores the filter so the pass runner's own check is exercised.
func (d *fakeDelivery) FetchManifests(_ context.Context, appID uint32, _ domain.SubItemFilter) ([]*domain.Manifest, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failManifest == 0 {
		return d.manifests[appID], nil
	}

	var out []*domain.Manifest
	var failed []domain.DepotFailure
	for _, m := range d.manifests[appID] {
		if m != nil && m.DepotID == d.failManifest {
			failed = append(failed, domain.DepotFailure{
				DepotID: m.DepotID,
				Err:     domain.NewTransferError(domain.DeliveryUnavailable, "manifest", errors.New("503")),
			})
			continue
		}
		out = append(out, m)
	}
	if len(failed) > 0 {
		return out, &domain.ManifestFetchError{Failed: failed}
	}
	return out, nil
}

func (d *fakeDelivery) FetchChunk(_ context.Context, _, depotID uint32, sha domain.Hash) ([]byte, error) {
	if depotID != 0 && depotID == d.failDepot {
		return nil, errors.New("connection reset")
	}
	return d.fetches.fetch(sha)
}

type fakeSettings struct {
	s domain.Settings
}

func (f *fakeSettings) Snapshot() domain.Settings { return f.s.Clone() }
func (f *fakeSettings) Update(map[string]any) error { return nil }

func testContext(store *fakeStore, delivery *fakeDelivery, base string) *app.Context {
	cfg := &config.Config{
		Engine: config.EngineConfig{
			PollInterval:  5 * time.Millisecond,
			CommandBuffer: 8,
		},
	}
	ctx := app.NewContext(cfg, logger.NewNop())
	ctx.Store = store
	ctx.Delivery = delivery
	ctx.Settings = &fakeSettings{s: domain.Settings{
		OSFilters:       []string{"windows"},
		LanguageFilters: []string{"english"},
		BaseDownloadDir: base,
	}}
	return ctx
}

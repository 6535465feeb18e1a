package app

import (
	"context"

	"github.com/datallboy/godepot/internal/domain"
	"github.com/datallboy/godepot/internal/infra/config"
	"github.com/datallboy/godepot/internal/infra/logger"
)

// Catalog resolves a target app to the depots eligible for transfer under
// the given settings and to its default destination directory name.
type Catalog interface {
	ResolveSubItems(ctx context.Context, appID uint32, s domain.Settings) (domain.Resolution, error)
	ListApps(ctx context.Context) ([]domain.App, error)
	GetApp(ctx context.Context, appID uint32) (*domain.App, error)
	ListDepots(ctx context.Context, appID uint32, s domain.Settings) ([]domain.Depot, error)
	UpsertCatalog(ctx context.Context, apps []domain.App, depots []domain.Depot) error
}

// Delivery is the authenticated handle to the remote content service.
type Delivery interface {
	// FetchManifests yields the manifests of appID for every depot the filter
	// admits. Depots whose manifest failed are listed in a *domain.ManifestFetchError
	// returned with the rest.
	FetchManifests(ctx context.Context, appID uint32, filter domain.SubItemFilter) ([]*domain.Manifest, error)
	FetchChunk(ctx context.Context, appID, depotID uint32, sha domain.Hash) ([]byte, error)
}

// SettingsStore exposes the active filters and base download directory.
type SettingsStore interface {
	Snapshot() domain.Settings
	Update(values map[string]any) error
}

// ScheduleStore persists scheduled tasks so they survive restarts.
type ScheduleStore interface {
	SaveSchedule(ctx context.Context, s *domain.Schedule) error
	DeleteSchedule(ctx context.Context, id string) error
	ListSchedules(ctx context.Context) ([]*domain.Schedule, error)
}

// Store is the persistence layer: the catalog plus the schedule table.
type Store interface {
	Catalog
	ScheduleStore
	Close() error
}

// Context hold the core environment and shared resources for godepot.
// It acts as the "Single Source of Truth" for the application state.
type Context struct {
	Config *config.Config
	Logger *logger.Logger

	// High-level interfaces for services to use
	Store    Store
	Delivery Delivery
	Settings SettingsStore
}

// NewContext initializes the base environment.
func NewContext(cfg *config.Config, log *logger.Logger) *Context {
	return &Context{
		Config: cfg,
		Logger: log,
	}
}

// Package postgres is the PostgreSQL flavour of the catalog and schedule
// store, for deployments that share one database between instances.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/datallboy/godepot/internal/domain"
	"github.com/datallboy/godepot/internal/store"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn (postgres://...) and migrates the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if err := runMigrations(dsn); err != nil {
		return nil, fmt.Errorf("could not migrate database: %w", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return &Store{pool: pool}, nil
}

func runMigrations(dsn string) error {
	d, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return err
	}

	m, err := migrate.NewWithSourceInstance("iofs", d, migrateURL(dsn))
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// migrateURL rewrites a libpq URL to the scheme of migrate's pgx driver.
func migrateURL(dsn string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "pgx5://" + strings.TrimPrefix(dsn, prefix)
		}
	}
	return dsn
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) ResolveSubItems(ctx context.Context, appID uint32, st domain.Settings) (domain.Resolution, error) {
	var res domain.Resolution

	err := s.pool.QueryRow(ctx, `SELECT dl_dir FROM apps WHERE app_id = $1`, int64(appID)).Scan(&res.DestinationDirName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return res, fmt.Errorf("app %d: %w", appID, domain.ErrNotFound)
		}
		return res, fmt.Errorf("failed to fetch app %d: %w", appID, err)
	}

	clause, args := store.FilterClause(st, "ILIKE", store.DollarN, 2)
	rows, err := s.pool.Query(ctx,
		`SELECT depot_id FROM depots WHERE app_id = $1 AND `+clause+` ORDER BY depot_id`,
		append([]any{int64(appID)}, args...)...)
	if err != nil {
		return res, fmt.Errorf("failed to filter depots: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return res, err
	}
	for _, id := range ids {
		res.SubItemIDs = append(res.SubItemIDs, uint32(id))
	}
	return res, nil
}

const appColumns = `app_id, name, logo, dl_dir, oses, langs`

func scanApp(row pgx.Row) (domain.App, error) {
	var (
		a  domain.App
		id int64
	)
	err := row.Scan(&id, &a.Name, &a.Logo, &a.DLDir, &a.OSList, &a.Langs)
	a.AppID = uint32(id)
	return a, err
}

func (s *Store) ListApps(ctx context.Context) ([]domain.App, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+appColumns+`
		FROM apps
		WHERE name NOT LIKE '%Server%' AND logo <> ''
		ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list apps: %w", err)
	}
	defer rows.Close()

	var apps []domain.App
	for rows.Next() {
		a, err := scanApp(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, a)
	}
	return apps, rows.Err()
}

func (s *Store) GetApp(ctx context.Context, appID uint32) (*domain.App, error) {
	a, err := scanApp(s.pool.QueryRow(ctx, `SELECT `+appColumns+` FROM apps WHERE app_id = $1`, int64(appID)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("app %d: %w", appID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch app %d: %w", appID, err)
	}
	return &a, nil
}

func (s *Store) ListDepots(ctx context.Context, appID uint32, st domain.Settings) ([]domain.Depot, error) {
	clause, args := store.FilterClause(st, "ILIKE", store.DollarN, 2)
	rows, err := s.pool.Query(ctx, `
		SELECT depot_id, app_id, name, size, is_dlc, oses, langs
		FROM depots
		WHERE app_id = $1 AND `+clause+`
		ORDER BY depot_id`,
		append([]any{int64(appID)}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list depots: %w", err)
	}
	defer rows.Close()

	var depots []domain.Depot
	for rows.Next() {
		var (
			d            domain.Depot
			depotID, app int64
			size         int64
		)
		if err := rows.Scan(&depotID, &app, &d.Name, &size, &d.IsDLC, &d.OSList, &d.Langs); err != nil {
			return nil, err
		}
		d.DepotID, d.AppID, d.Size = uint32(depotID), uint32(app), uint64(size)
		depots = append(depots, d)
	}
	return depots, rows.Err()
}

// UpsertCatalog queues every upsert in one batch inside a transaction.
func (s *Store) UpsertCatalog(ctx context.Context, apps []domain.App, depots []domain.Depot) error {
	if len(apps) == 0 && len(depots) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, a := range apps {
		dlDir := a.DLDir
		if dlDir == "" {
			dlDir = a.Name
		}
		batch.Queue(`
			INSERT INTO apps (app_id, name, logo, dl_dir, oses, langs)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (app_id) DO UPDATE SET
				name = EXCLUDED.name,
				logo = EXCLUDED.logo,
				dl_dir = EXCLUDED.dl_dir,
				oses = EXCLUDED.oses,
				langs = EXCLUDED.langs`,
			int64(a.AppID), a.Name, a.Logo, dlDir, a.OSList, a.Langs)
	}
	for _, d := range depots {
		batch.Queue(`
			INSERT INTO depots (depot_id, app_id, name, size, is_dlc, oses, langs)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (app_id, depot_id) DO UPDATE SET
				name = EXCLUDED.name,
				size = EXCLUDED.size,
				is_dlc = EXCLUDED.is_dlc,
				oses = EXCLUDED.oses,
				langs = EXCLUDED.langs`,
			int64(d.DepotID), int64(d.AppID), d.Name, int64(d.Size), d.IsDLC, d.OSList, d.Langs)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to upsert catalog: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *Store) SaveSchedule(ctx context.Context, sched *domain.Schedule) error {
	var dbo store.ScheduleDBO
	if err := dbo.FromDomain(sched); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO schedules (id, app_id, start_hour, start_min, end_hour, end_min, depots, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			app_id = EXCLUDED.app_id,
			start_hour = EXCLUDED.start_hour,
			start_min = EXCLUDED.start_min,
			end_hour = EXCLUDED.end_hour,
			end_min = EXCLUDED.end_min,
			depots = EXCLUDED.depots`,
		dbo.ID, int64(dbo.AppID), dbo.StartHour, dbo.StartMin, dbo.EndHour, dbo.EndMin, dbo.Depots, dbo.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save schedule %s: %w", sched.ID, err)
	}
	return nil
}

func (s *Store) DeleteSchedule(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("schedule %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) ListSchedules(ctx context.Context) ([]*domain.Schedule, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, app_id, start_hour, start_min, end_hour, end_min, depots, created_at
		FROM schedules
		ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	defer rows.Close()

	var out []*domain.Schedule
	for rows.Next() {
		var (
			dbo   store.ScheduleDBO
			appID int64
		)
		err := rows.Scan(&dbo.ID, &appID, &dbo.StartHour, &dbo.StartMin,
			&dbo.EndHour, &dbo.EndMin, &dbo.Depots, &dbo.CreatedAt)
		if err != nil {
			return nil, err
		}
		dbo.AppID = uint32(appID)

		sched, err := dbo.ToDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, sched)
	}
	return out, rows.Err()
}

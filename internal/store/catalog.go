package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/datallboy/godepot/internal/domain"
)

// ResolveSubItems returns the depots of appID visible under the settings'
// OS and language filters, and the app's install directory name.
func (s *PersistentStore) ResolveSubItems(ctx context.Context, appID uint32, st domain.Settings) (domain.Resolution, error) {
	var res domain.Resolution

	err := s.db.QueryRowContext(ctx, `SELECT dl_dir FROM apps WHERE app_id = ?`, appID).Scan(&res.DestinationDirName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return res, fmt.Errorf("app %d: %w", appID, domain.ErrNotFound)
		}
		return res, fmt.Errorf("failed to fetch app %d: %w", appID, err)
	}

	clause, args := FilterClause(st, "LIKE", QuestionMark, 1)
	query := `SELECT depot_id FROM depots WHERE app_id = ? AND ` + clause + ` ORDER BY depot_id`

	rows, err := s.db.QueryContext(ctx, query, append([]any{appID}, args...)...)
	if err != nil {
		return res, fmt.Errorf("failed to filter depots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uint32
		if err := rows.Scan(&id); err != nil {
			return res, err
		}
		res.SubItemIDs = append(res.SubItemIDs, id)
	}
	return res, rows.Err()
}

// ListApps returns the browsable catalog: apps with a logo that are not
// dedicated servers, by name.
func (s *PersistentStore) ListApps(ctx context.Context) ([]domain.App, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT app_id, name, logo, dl_dir, oses, langs
		FROM apps
		WHERE name NOT LIKE '%Server%' AND logo != ''
		ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list apps: %w", err)
	}
	defer rows.Close()

	var apps []domain.App
	for rows.Next() {
		var a domain.App
		if err := rows.Scan(&a.AppID, &a.Name, &a.Logo, &a.DLDir, &a.OSList, &a.Langs); err != nil {
			return nil, err
		}
		apps = append(apps, a)
	}
	return apps, rows.Err()
}

func (s *PersistentStore) GetApp(ctx context.Context, appID uint32) (*domain.App, error) {
	a := &domain.App{}
	err := s.db.QueryRowContext(ctx,
		`SELECT app_id, name, logo, dl_dir, oses, langs FROM apps WHERE app_id = ? LIMIT 1`, appID,
	).Scan(&a.AppID, &a.Name, &a.Logo, &a.DLDir, &a.OSList, &a.Langs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("app %d: %w", appID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch app %d: %w", appID, err)
	}
	return a, nil
}

// ListDepots returns the depots of appID admitted by the settings' filters.
// Pass an empty Settings to list every depot.
func (s *PersistentStore) ListDepots(ctx context.Context, appID uint32, st domain.Settings) ([]domain.Depot, error) {
	clause, args := FilterClause(st, "LIKE", QuestionMark, 1)
	query := `
		SELECT depot_id, app_id, name, size, is_dlc, oses, langs
		FROM depots
		WHERE app_id = ? AND ` + clause + `
		ORDER BY depot_id`

	rows, err := s.db.QueryContext(ctx, query, append([]any{appID}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list depots: %w", err)
	}
	defer rows.Close()

	var depots []domain.Depot
	for rows.Next() {
		var d domain.Depot
		if err := rows.Scan(&d.DepotID, &d.AppID, &d.Name, &d.Size, &d.IsDLC, &d.OSList, &d.Langs); err != nil {
			return nil, err
		}
		depots = append(depots, d)
	}
	return depots, rows.Err()
}

// UpsertCatalog imports apps and their depots in one transaction.
func (s *PersistentStore) UpsertCatalog(ctx context.Context, apps []domain.App, depots []domain.Depot) error {
	if len(apps) == 0 && len(depots) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, a := range apps {
		dlDir := a.DLDir
		if dlDir == "" {
			dlDir = a.Name
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO apps (app_id, name, logo, dl_dir, oses, langs)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(app_id) DO UPDATE SET
				name = excluded.name,
				logo = excluded.logo,
				dl_dir = excluded.dl_dir,
				oses = excluded.oses,
				langs = excluded.langs`,
			a.AppID, a.Name, a.Logo, dlDir, a.OSList, a.Langs,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert app %d: %w", a.AppID, err)
		}
	}

	for _, d := range depots {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO depots (depot_id, app_id, name, size, is_dlc, oses, langs)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(app_id, depot_id) DO UPDATE SET
				name = excluded.name,
				size = excluded.size,
				is_dlc = excluded.is_dlc,
				oses = excluded.oses,
				langs = excluded.langs`,
			d.DepotID, d.AppID, d.Name, d.Size, d.IsDLC, d.OSList, d.Langs,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert depot %d of app %d: %w", d.DepotID, d.AppID, err)
		}
	}

	return tx.Commit()
}

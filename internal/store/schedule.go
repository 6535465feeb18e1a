package store

import (
	"context"
	"fmt"

	"github.com/datallboy/godepot/internal/domain"
)

func (s *PersistentStore) SaveSchedule(ctx context.Context, sched *domain.Schedule) error {
	var dbo ScheduleDBO
	if err := dbo.FromDomain(sched); err != nil {
		return err
	}

	query := `INSERT OR REPLACE INTO schedules (id, app_id, start_hour, start_min, end_hour, end_min, depots, created_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		dbo.ID,
		dbo.AppID,
		dbo.StartHour,
		dbo.StartMin,
		dbo.EndHour,
		dbo.EndMin,
		dbo.Depots,
		dbo.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save schedule %s: %w", sched.ID, err)
	}
	return nil
}

func (s *PersistentStore) DeleteSchedule(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("schedule %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ListSchedules returns every persisted schedule, oldest first (KSUIDs sort
// chronologically).
func (s *PersistentStore) ListSchedules(ctx context.Context) ([]*domain.Schedule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, app_id, start_hour, start_min, end_hour, end_min, depots, created_at
		FROM schedules
		ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	defer rows.Close()

	var out []*domain.Schedule
	for rows.Next() {
		var dbo ScheduleDBO
		err := rows.Scan(&dbo.ID, &dbo.AppID, &dbo.StartHour, &dbo.StartMin,
			&dbo.EndHour, &dbo.EndMin, &dbo.Depots, &dbo.CreatedAt)
		if err != nil {
			return nil, err
		}

		sched, err := dbo.ToDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, sched)
	}
	return out, rows.Err()
}

package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/datallboy/godepot/internal/domain"
)

// ScheduleDBO maps to the schedules table. Shared with the postgres driver.
type ScheduleDBO struct {
	ID        string `db:"id"`
	AppID     uint32 `db:"app_id"`
	StartHour int    `db:"start_hour"`
	StartMin  int    `db:"start_min"`
	EndHour   int    `db:"end_hour"`
	EndMin    int    `db:"end_min"`
	Depots    string `db:"depots"`
	CreatedAt int64  `db:"created_at"`
}

// Mapper: DBO to Domain Schedule
func (r *ScheduleDBO) ToDomain() (*domain.Schedule, error) {
	s := &domain.Schedule{
		ID:        r.ID,
		AppID:     r.AppID,
		StartHour: r.StartHour,
		StartMin:  r.StartMin,
		EndHour:   r.EndHour,
		EndMin:    r.EndMin,
		CreatedAt: time.Unix(r.CreatedAt, 0),
	}
	if r.Depots != "" {
		if err := json.Unmarshal([]byte(r.Depots), &s.Depots); err != nil {
			return nil, fmt.Errorf("failed to decode depots for %s: %w", r.ID, err)
		}
	}
	if len(s.Depots) == 0 {
		s.Depots = nil
	}
	return s, nil
}

// Mapper: Domain Schedule to DBO
func (r *ScheduleDBO) FromDomain(s *domain.Schedule) error {
	depots := s.Depots
	if depots == nil {
		depots = []uint32{}
	}
	b, err := json.Marshal(depots)
	if err != nil {
		return fmt.Errorf("failed to encode depots: %w", err)
	}

	r.ID = s.ID
	r.AppID = s.AppID
	r.StartHour = s.StartHour
	r.StartMin = s.StartMin
	r.EndHour = s.EndHour
	r.EndMin = s.EndMin
	r.Depots = string(b)

	if !s.CreatedAt.IsZero() {
		r.CreatedAt = s.CreatedAt.Unix()
	} else {
		r.CreatedAt = time.Now().Unix()
	}
	return nil
}

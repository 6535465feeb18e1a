package domain

import "time"

// Schedule is the persisted form of a scheduled transfer task.
type Schedule struct {
	ID        string `json:"id"`
	AppID     uint32 `json:"app_id"`
	StartHour int    `json:"start_hour"`
	StartMin  int    `json:"start_min"`
	EndHour   int    `json:"end_hour"`
	EndMin    int    `json:"end_min"`
	// Depots restricts the transfer to these depots. Empty admits all.
	Depots    []uint32  `json:"depots,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskState is the owner's view of one live worker.
type TaskState struct {
	ID          string `json:"id"`
	AppID       uint32 `json:"app_id"`
	Window      string `json:"window"`
	Downloading bool   `json:"downloading"`
	// Known is false when the worker did not answer the query in time.
	Known        bool   `json:"known"`
	BytesWritten uint64 `json:"bytes_written"`
}

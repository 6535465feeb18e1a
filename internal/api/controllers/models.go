package controllers

import "github.com/datallboy/godepot/internal/domain"

type DataResponse[T any] struct {
	Data T `json:"data"`
}

type DepotView struct {
	DepotID   uint32 `json:"depot_id"`
	Name      string `json:"name"`
	Size      uint64 `json:"size"`
	SizeHuman string `json:"size_human"`
	IsDLC     bool   `json:"is_dlc"`
}

type AppDetail struct {
	App            domain.App  `json:"app"`
	Depots         []DepotView `json:"depots"`
	TotalSize      uint64      `json:"total_size"`
	TotalSizeHuman string      `json:"total_size_human"`
	// Downloadable is false when no depot survives the current filters; the
	// depot list then shows everything the app has.
	Downloadable bool `json:"downloadable"`
}

type DownloadRequest struct {
	StartHour int      `json:"start_hour"`
	StartMin  int      `json:"start_min"`
	EndHour   int      `json:"end_hour"`
	EndMin    int      `json:"end_min"`
	Depots    []uint32 `json:"depots,omitempty"`
}

type RetargetRequest struct {
	AppID uint32 `json:"app_id"`
}

type TaskResponse struct {
	Success bool             `json:"success"`
	Task    *domain.Schedule `json:"task,omitempty"`
}

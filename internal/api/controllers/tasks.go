package controllers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/datallboy/godepot/internal/app"
	"github.com/datallboy/godepot/internal/domain"
	"github.com/datallboy/godepot/internal/window"
)

// Tasks is the owner side of the running workers (engine.Manager).
type Tasks interface {
	Schedule(ctx context.Context, appID uint32, w window.TimeWindow, depots []uint32) (*domain.Schedule, error)
	Pause(ctx context.Context, id string) error
	Resume(ctx context.Context, id string) error
	Retarget(ctx context.Context, id string, appID uint32) error
	Remove(ctx context.Context, id string) error
	States(ctx context.Context) []domain.TaskState
}

type TaskController struct {
	App   *app.Context
	Tasks Tasks
}

// Download schedules the app for transfer inside the requested daily window.
func (ctrl *TaskController) Download(c *echo.Context) error {
	id, err := appIDParam(c)
	if err != nil {
		return badRequest(c, "%v", err)
	}

	var req DownloadRequest
	if err := decodeJSON(c, &req); err != nil {
		return badRequest(c, "%v", err)
	}

	w, err := window.New(req.StartHour, req.StartMin, req.EndHour, req.EndMin)
	if err != nil {
		return badRequest(c, "%v", err)
	}

	sched, err := ctrl.Tasks.Schedule(c.Request().Context(), id, w, req.Depots)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, TaskResponse{Success: true, Task: sched})
}

// QueryDownloads reports whether each task is currently transferring.
func (ctrl *TaskController) QueryDownloads(c *echo.Context) error {
	states := ctrl.Tasks.States(c.Request().Context())
	if states == nil {
		states = []domain.TaskState{}
	}
	return c.JSON(http.StatusOK, DataResponse[[]domain.TaskState]{Data: states})
}

func (ctrl *TaskController) Stop(c *echo.Context) error {
	if err := ctrl.Tasks.Pause(c.Request().Context(), c.Param("id")); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, TaskResponse{Success: true})
}

func (ctrl *TaskController) Start(c *echo.Context) error {
	if err := ctrl.Tasks.Resume(c.Request().Context(), c.Param("id")); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, TaskResponse{Success: true})
}

func (ctrl *TaskController) Retarget(c *echo.Context) error {
	var req RetargetRequest
	if err := decodeJSON(c, &req); err != nil {
		return badRequest(c, "%v", err)
	}
	if req.AppID == 0 {
		return badRequest(c, "app_id is required")
	}

	if err := ctrl.Tasks.Retarget(c.Request().Context(), c.Param("id"), req.AppID); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, TaskResponse{Success: true})
}

func (ctrl *TaskController) Remove(c *echo.Context) error {
	if err := ctrl.Tasks.Remove(c.Request().Context(), c.Param("id")); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

package controllers

import (
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v5"

	"github.com/datallboy/godepot/internal/app"
	"github.com/datallboy/godepot/internal/domain"
)

type CatalogController struct {
	App *app.Context
}

// ListApps returns the browsable catalog.
func (ctrl *CatalogController) ListApps(c *echo.Context) error {
	apps, err := ctrl.App.Store.ListApps(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	if apps == nil {
		apps = []domain.App{}
	}
	return c.JSON(http.StatusOK, DataResponse[[]domain.App]{Data: apps})
}

// GetApp returns an app with the depots the current filters admit.
func (ctrl *CatalogController) GetApp(c *echo.Context) error {
	id, err := appIDParam(c)
	if err != nil {
		return badRequest(c, "%v", err)
	}
	ctx := c.Request().Context()

	a, err := ctrl.App.Store.GetApp(ctx, id)
	if err != nil {
		return fail(c, err)
	}

	depots, err := ctrl.App.Store.ListDepots(ctx, id, ctrl.App.Settings.Snapshot())
	if err != nil {
		return fail(c, err)
	}

	detail := AppDetail{App: *a, Downloadable: len(depots) > 0, Depots: []DepotView{}}
	if !detail.Downloadable {
		if depots, err = ctrl.App.Store.ListDepots(ctx, id, domain.Settings{}); err != nil {
			return fail(c, err)
		}
	}

	for _, d := range depots {
		detail.TotalSize += d.Size
		detail.Depots = append(detail.Depots, DepotView{
			DepotID:   d.DepotID,
			Name:      d.Name,
			Size:      d.Size,
			SizeHuman: humanize.IBytes(d.Size),
			IsDLC:     d.IsDLC,
		})
	}
	detail.TotalSizeHuman = humanize.IBytes(detail.TotalSize)

	return c.JSON(http.StatusOK, detail)
}

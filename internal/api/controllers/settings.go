package controllers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/datallboy/godepot/internal/app"
	"github.com/datallboy/godepot/internal/settings"
)

type SettingsController struct {
	App *app.Context
}

func (ctrl *SettingsController) Get(c *echo.Context) error {
	return c.JSON(http.StatusOK, settings.AsMap(ctrl.App.Settings.Snapshot()))
}

// Set merges the posted keys into the settings file.
func (ctrl *SettingsController) Set(c *echo.Context) error {
	var values map[string]any
	if err := decodeJSON(c, &values); err != nil {
		return badRequest(c, "%v", err)
	}

	if err := ctrl.App.Settings.Update(values); err != nil {
		if errors.Is(err, settings.ErrInvalidValue) {
			return badRequest(c, "%v", err)
		}
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"response": "Settings updated."})
}

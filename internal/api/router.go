package api

import (
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/datallboy/godepot/internal/api/controllers"
	"github.com/datallboy/godepot/internal/app"
)

func RegisterRoutes(e *echo.Echo, app *app.Context, tasks controllers.Tasks) {

	// Middleware: Request Logger
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c *echo.Context, v middleware.RequestLoggerValues) error {
			app.Logger.Info("%s %s | %d | %s", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	catalogCtrl := &controllers.CatalogController{App: app}
	taskCtrl := &controllers.TaskController{App: app, Tasks: tasks}
	settingsCtrl := &controllers.SettingsController{App: app}

	v1 := e.Group("/api/v1")

	// Catalog browsing
	v1.GET("/apps", catalogCtrl.ListApps)
	v1.GET("/apps/:id", catalogCtrl.GetApp)

	// Scheduling and control of transfer tasks
	v1.POST("/apps/:id/download", taskCtrl.Download)
	v1.GET("/query_downloads", taskCtrl.QueryDownloads)
	v1.POST("/tasks/:id/stop", taskCtrl.Stop)
	v1.POST("/tasks/:id/start", taskCtrl.Start)
	v1.POST("/tasks/:id/retarget", taskCtrl.Retarget)
	v1.DELETE("/tasks/:id", taskCtrl.Remove)

	v1.GET("/settings", settingsCtrl.Get)
	v1.POST("/settings/set", settingsCtrl.Set)
}

package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v5"

	"github.com/datallboy/godepot/internal/domain"
	"github.com/datallboy/godepot/internal/engine"
)

// errorBody is the JSON shape of every failed API call.
type errorBody struct {
	Error string `json:"error"`
}

// fail maps domain errors to HTTP status codes.
func fail(c *echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, engine.ErrUnknownTask):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrQueryTimeout):
		status = http.StatusGatewayTimeout
	}
	return c.JSON(status, errorBody{Error: err.Error()})
}

func badRequest(c *echo.Context, format string, args ...any) error {
	return c.JSON(http.StatusBadRequest, errorBody{Error: fmt.Sprintf(format, args...)})
}

func appIDParam(c *echo.Context) (uint32, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid app id %q", c.Param("id"))
	}
	return uint32(id), nil
}

func decodeJSON(c *echo.Context, v any) error {
	if c.Request().Body == nil {
		return errors.New("missing request body")
	}
	if err := json.NewDecoder(c.Request().Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

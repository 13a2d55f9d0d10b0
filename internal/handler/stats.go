package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/akabemail-hash/asutkosks/internal/apperr"
)

type StatsHandler struct {
	Stats StatsProvider
}

func NewStatsHandler(s StatsProvider) *StatsHandler { return &StatsHandler{Stats: s} }

// Admin returns fleet-wide coverage.  Any store failure fails the whole
// response.
func (h *StatsHandler) Admin(c echo.Context) error {
	s, err := h.Stats.Admin(c.Request().Context())
	if err != nil {
		return apperr.Upstream("Failed to load statistics", err)
	}
	return c.JSON(http.StatusOK, s)
}

// User returns the caller's own coverage of their assigned kiosks.
func (h *StatsHandler) User(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	s, err := h.Stats.User(c.Request().Context(), id.ID, id.Username)
	if err != nil {
		return apperr.Upstream("Failed to load statistics", err)
	}
	return c.JSON(http.StatusOK, s)
}

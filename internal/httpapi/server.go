// Package httpapi exposes the analysis engine and reference tables over
// HTTP.
package httpapi

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/gyeh/dermbill/internal/engine"
	"github.com/gyeh/dermbill/internal/refdata"
	"github.com/gyeh/dermbill/internal/scenario"
)

// Handler provides the HTTP handlers for the analysis API.
type Handler struct {
	engine    *engine.Engine
	store     *refdata.Store
	scenarios *scenario.Library
	log       zerolog.Logger
}

// NewHandler creates an API handler over a ready engine.
func NewHandler(eng *engine.Engine, store *refdata.Store, lib *scenario.Library, log zerolog.Logger) *Handler {
	return &Handler{engine: eng, store: store, scenarios: lib, log: log}
}

// RegisterRoutes registers the API routes on a group.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/analyze", h.Analyze)
	api.GET("/codes", h.SearchCodes)
	api.GET("/codes/:code", h.LookupCode)
	api.GET("/modifiers", h.ListModifiers)
	api.GET("/scenarios", h.ListScenarios)
	api.GET("/scenarios/:name", h.GetScenario)
}

// NewServer builds the echo server with standard middleware and all routes
// mounted under /api/v1.
func NewServer(h *Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	e.GET("/health", h.Health)
	h.RegisterRoutes(e.Group("/api/v1"))
	return e
}

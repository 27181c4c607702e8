package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/gyeh/dermbill/internal/engine"
	"github.com/gyeh/dermbill/internal/model"
	"github.com/gyeh/dermbill/internal/refdata"
)

// AnalyzeRequest carries either raw note text or pre-extracted entities.
// Entities win when both are present.
type AnalyzeRequest struct {
	Note     string                 `json:"note,omitempty"`
	Entities []model.ClinicalEntity `json:"entities,omitempty"`
}

// knownKinds is the set of entity kinds the engine consumes.
var knownKinds = map[model.EntityKind]struct{}{
	model.EntityDiagnosis:    {},
	model.EntityProcedure:    {},
	model.EntityMeasurement:  {},
	model.EntityAnatomicSite: {},
	model.EntityMedication:   {},
	model.EntityTime:         {},
}

// Health reports liveness.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Analyze runs the full analysis over a note or entity list.
func (h *Handler) Analyze(c echo.Context) error {
	var req AnalyzeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Note == "" && len(req.Entities) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "note or entities required")
	}
	// The engine skips kinds it does not know, so a caller typo would
	// silently drop billing. Reject it here instead.
	for _, ent := range req.Entities {
		if _, ok := knownKinds[ent.Kind]; !ok {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown entity kind %q", ent.Kind))
		}
	}

	ctx := c.Request().Context()
	var (
		result *model.AnalysisResult
		err    error
	)
	if len(req.Entities) > 0 {
		result, err = h.engine.Analyze(ctx, req.Entities)
	} else {
		result, err = h.engine.AnalyzeNote(ctx, req.Note)
	}
	if err != nil {
		var ae *engine.AnalysisError
		if errors.As(err, &ae) {
			h.log.Error().Err(ae.Err).Str("phase", ae.Phase).Msg("analysis failed")
			return echo.NewHTTPError(http.StatusUnprocessableEntity, ae.Error())
		}
		h.log.Error().Err(err).Msg("analysis failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "analysis failed")
	}
	return c.JSON(http.StatusOK, result)
}

// LookupCode returns one code record.
func (h *Handler) LookupCode(c echo.Context) error {
	code := c.Param("code")
	rec, ok := h.store.Code(code)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown code "+code)
	}
	return c.JSON(http.StatusOK, rec)
}

// SearchCodes filters the code table by category, keyword, and wRVU range.
func (h *Handler) SearchCodes(c echo.Context) error {
	params := refdata.SearchParams{
		Category: c.QueryParam("category"),
		Keyword:  c.QueryParam("keyword"),
	}
	var err error
	if params.MinWRVU, err = queryFloat(c, "min_wrvu"); err != nil {
		return err
	}
	if params.MaxWRVU, err = queryFloat(c, "max_wrvu"); err != nil {
		return err
	}
	if params.Category != "" {
		if _, ok := model.CategoryByName(params.Category); !ok {
			return echo.NewHTTPError(http.StatusBadRequest, "unknown category "+params.Category)
		}
	}
	return c.JSON(http.StatusOK, h.store.Search(params))
}

// ListModifiers returns all modifier guidance entries.
func (h *Handler) ListModifiers(c echo.Context) error {
	return c.JSON(http.StatusOK, h.store.Modifiers())
}

// scenarioListing is the index entry for one playbook.
type scenarioListing struct {
	Name    string `json:"name"`
	Summary string `json:"summary"`
}

// ListScenarios returns the playbook index, or scored matches when a
// match query is present.
func (h *Handler) ListScenarios(c echo.Context) error {
	if q := c.QueryParam("match"); q != "" {
		max := 5
		if raw := c.QueryParam("max"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				return echo.NewHTTPError(http.StatusBadRequest, "max must be a positive integer")
			}
			max = n
		}
		return c.JSON(http.StatusOK, h.scenarios.Match(q, max))
	}

	var out []scenarioListing
	for _, name := range h.scenarios.Names() {
		s, _ := h.scenarios.Scenario(name)
		out = append(out, scenarioListing{Name: s.Name, Summary: s.Summary})
	}
	return c.JSON(http.StatusOK, out)
}

// GetScenario returns one playbook by name.
func (h *Handler) GetScenario(c echo.Context) error {
	name := c.Param("name")
	s, ok := h.scenarios.Scenario(name)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown scenario "+name)
	}
	return c.JSON(http.StatusOK, s)
}

func queryFloat(c echo.Context, name string) (float64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" must be a non-negative number")
	}
	return v, nil
}

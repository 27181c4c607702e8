package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/gyeh/dermbill/internal/engine"
	"github.com/gyeh/dermbill/internal/model"
	"github.com/gyeh/dermbill/internal/refdata"
	"github.com/gyeh/dermbill/internal/scenario"
)

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	store, err := refdata.Load()
	if err != nil {
		t.Fatalf("load reference tables: %v", err)
	}
	lib, err := scenario.Load()
	if err != nil {
		t.Fatalf("load scenarios: %v", err)
	}
	eng := engine.New(store, lib, nil, engine.Options{}, zerolog.Nop())
	return NewServer(NewHandler(eng, store, lib, zerolog.Nop()))
}

func doJSON(t *testing.T, e *echo.Echo, method, target, body string) (*httptest.ResponseRecorder, []byte) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec, rec.Body.Bytes()
}

func TestHealth(t *testing.T) {
	e := newTestServer(t)
	rec, body := doJSON(t, e, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, body)
	}
}

func TestAnalyze_Note(t *testing.T) {
	e := newTestServer(t)
	req := `{"note": "Established patient with onychomycosis and plaque psoriasis. Debridement of 8 toenails performed. Billed 99214. The psoriasis evaluation was significant, separate and separately identifiable from the nail procedure."}`
	rec, body := doJSON(t, e, http.MethodPost, "/api/v1/analyze", req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, body)
	}
	var result model.AnalysisResult
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.CurrentBilling.TotalWRVU != 2.78 {
		t.Errorf("total = %v, want 2.78", result.CurrentBilling.TotalWRVU)
	}
	if result.AnalysisID == "" {
		t.Error("missing analysis id")
	}
}

func TestAnalyze_Entities(t *testing.T) {
	e := newTestServer(t)
	req := `{"entities": [
		{"kind": "procedure_performed", "attributes": {"procedure": "em_visit", "visit_level": "99214"}},
		{"kind": "diagnosis", "attributes": {"value": "plaque psoriasis"}}
	]}`
	rec, body := doJSON(t, e, http.MethodPost, "/api/v1/analyze", req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, body)
	}
	var result model.AnalysisResult
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	var g2211 bool
	for _, it := range result.CurrentBilling.Codes {
		if it.Code == "G2211" && it.Status == model.StatusSupported {
			g2211 = true
		}
	}
	if !g2211 {
		t.Error("expected G2211 on a chronic-condition visit")
	}
}

func TestAnalyze_UnknownEntityKind(t *testing.T) {
	e := newTestServer(t)
	req := `{"entities": [{"kind": "procedure", "attributes": {"procedure": "em_visit"}}]}`
	rec, body := doJSON(t, e, http.MethodPost, "/api/v1/analyze", req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body %s", rec.Code, body)
	}
}

func TestAnalyze_EmptyBody(t *testing.T) {
	e := newTestServer(t)
	rec, _ := doJSON(t, e, http.MethodPost, "/api/v1/analyze", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestLookupCode(t *testing.T) {
	e := newTestServer(t)

	rec, body := doJSON(t, e, http.MethodGet, "/api/v1/codes/99214", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, body)
	}
	var rec99214 model.CodeRecord
	if err := json.Unmarshal(body, &rec99214); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec99214.WRVU != 1.92 {
		t.Errorf("wrvu = %v, want 1.92", rec99214.WRVU)
	}

	rec2, _ := doJSON(t, e, http.MethodGet, "/api/v1/codes/00000", "")
	if rec2.Code != http.StatusNotFound {
		t.Errorf("unknown code status = %d, want 404", rec2.Code)
	}
}

func TestSearchCodes(t *testing.T) {
	e := newTestServer(t)

	rec, body := doJSON(t, e, http.MethodGet, "/api/v1/codes?keyword=nail", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, body)
	}
	var recs []model.CodeRecord
	if err := json.Unmarshal(body, &recs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	found := map[string]bool{}
	for _, r := range recs {
		found[r.Code] = true
	}
	if !found["11720"] || !found["11721"] {
		t.Errorf("nail search missing debridement codes: %v", found)
	}

	rec2, _ := doJSON(t, e, http.MethodGet, "/api/v1/codes?category=bogus", "")
	if rec2.Code != http.StatusBadRequest {
		t.Errorf("bad category status = %d, want 400", rec2.Code)
	}

	rec3, _ := doJSON(t, e, http.MethodGet, "/api/v1/codes?min_wrvu=abc", "")
	if rec3.Code != http.StatusBadRequest {
		t.Errorf("bad min_wrvu status = %d, want 400", rec3.Code)
	}
}

func TestListModifiers(t *testing.T) {
	e := newTestServer(t)
	rec, body := doJSON(t, e, http.MethodGet, "/api/v1/modifiers", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, body)
	}
	var mods []model.ModifierGuidance
	if err := json.Unmarshal(body, &mods); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(mods) == 0 {
		t.Fatal("expected modifier guidance entries")
	}
}

func TestScenarios(t *testing.T) {
	e := newTestServer(t)

	rec, body := doJSON(t, e, http.MethodGet, "/api/v1/scenarios", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, body)
	}
	var listing []scenarioListing
	if err := json.Unmarshal(body, &listing); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(listing) < 10 {
		t.Errorf("expected at least 10 playbooks, got %d", len(listing))
	}

	rec2, body2 := doJSON(t, e, http.MethodGet, "/api/v1/scenarios/ak_treatment", "")
	if rec2.Code != http.StatusOK {
		t.Fatalf("scenario status = %d, body %s", rec2.Code, body2)
	}

	rec3, _ := doJSON(t, e, http.MethodGet, "/api/v1/scenarios/no_such_playbook", "")
	if rec3.Code != http.StatusNotFound {
		t.Errorf("unknown scenario status = %d, want 404", rec3.Code)
	}

	rec4, body4 := doJSON(t, e, http.MethodGet, "/api/v1/scenarios?match=plaque+psoriasis", "")
	if rec4.Code != http.StatusOK {
		t.Fatalf("match status = %d, body %s", rec4.Code, body4)
	}
	var matches []scenario.Match
	if err := json.Unmarshal(body4, &matches); err != nil {
		t.Fatalf("decode matches: %v", err)
	}
	if len(matches) == 0 || matches[0].Name != "Psoriasis" {
		t.Errorf("top match = %+v, want Psoriasis", matches)
	}
}

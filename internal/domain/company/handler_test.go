package company

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/occhealth/occhealth/internal/domain/catalog"
)

func TestHandler_CreateCompany(t *testing.T) {
	f := newFixture()
	h, e := NewHandler(f.svc), echo.New()

	body := `{"tax_id":"20555555555","legal_name":"Minera Andina S.A.C."}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/companies", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	if err := h.CreateCompany(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
}

func TestHandler_CreateProtocol(t *testing.T) {
	f := newFixture()
	h, e := NewHandler(f.svc), echo.New()
	c := f.company(t)
	ex := f.exams.add("TRI", "Triaje", catalog.TypeTriage, 15, true)

	body := `{"name":"Periodico","exams":[{"exam_id":"` + ex.ID.String() + `"}]}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues(c.ID.String())

	if err := h.CreateProtocol(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var p Protocol
	json.Unmarshal(rec.Body.Bytes(), &p)
	if !p.Active || len(p.Exams) != 1 || p.Exams[0].AgreedPrice != 15 {
		t.Errorf("unexpected protocol: %+v", p)
	}
}

func TestHandler_CreateProtocol_NoExams(t *testing.T) {
	f := newFixture()
	h, e := NewHandler(f.svc), echo.New()
	c := f.company(t)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Empty","exams":[]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	ctx := e.NewContext(req, httptest.NewRecorder())
	ctx.SetParamNames("id")
	ctx.SetParamValues(c.ID.String())

	err := h.CreateProtocol(ctx)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_SetProtocolActive_Missing(t *testing.T) {
	f := newFixture()
	h, e := NewHandler(f.svc), echo.New()

	req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	ctx := e.NewContext(req, httptest.NewRecorder())
	ctx.SetParamNames("id")
	ctx.SetParamValues("8c1d7f3e-2f4b-4a61-9a53-0c7d1b2e3f40")

	if err := h.SetProtocolActive(ctx); err == nil {
		t.Error("expected error when active is missing")
	}
}

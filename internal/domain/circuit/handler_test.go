package circuit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/occhealth/occhealth/internal/domain/catalog"
	"github.com/occhealth/occhealth/internal/platform/auth"
)

// request builds a context for user with roles and optional path params.
func request(method, body string, user uuid.UUID, roles []string, params ...string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if user != uuid.Nil {
		req = req.WithContext(auth.WithUser(req.Context(), user.String(), roles))
	}
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	var names, values []string
	for i := 0; i+1 < len(params); i += 2 {
		names = append(names, params[i])
		values = append(values, params[i+1])
	}
	c.SetParamNames(names...)
	c.SetParamValues(values...)
	return c, rec
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected *echo.HTTPError, got %v", err)
	return he.Code
}

func TestHandler_CreateAdmission(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.svc)
	p := f.protocol(catalog.TypeTriage, catalog.TypeSpirometry)

	body := `{"patient_id":"` + f.patientID.String() + `","company_id":"` + f.companyID.String() +
		`","protocol_id":"` + p.ID.String() + `","position_applied":"Operador de grua"}`
	c, rec := request(http.MethodPost, body, uuid.New(), []string{auth.RoleAdmissions})

	require.NoError(t, h.CreateAdmission(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	var d AdmissionDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.Equal(t, "En Circuito", d.StateLabel)
	assert.Len(t, d.Entries, 2)
	require.NotNil(t, d.Admission)
	assert.Equal(t, "Operador de grua", *d.PositionApplied)
}

func TestHandler_CreateAdmission_NoUser(t *testing.T) {
	f := newFixture()
	c, _ := request(http.MethodPost, `{}`, uuid.Nil, nil)
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, NewHandler(f.svc).CreateAdmission(c)))
}

func TestHandler_CreateAdmission_Duplicate(t *testing.T) {
	f := newFixture()
	p := f.protocol(catalog.TypeTriage)
	_, err := f.admit(p)
	require.NoError(t, err)

	body := `{"patient_id":"` + f.patientID.String() + `","company_id":"` + f.companyID.String() +
		`","protocol_id":"` + p.ID.String() + `"}`
	c, _ := request(http.MethodPost, body, uuid.New(), []string{auth.RoleAdmissions})
	assert.Equal(t, http.StatusBadRequest, statusOf(t, NewHandler(f.svc).CreateAdmission(c)))
}

func TestHandler_GetAdmission_NotFound(t *testing.T) {
	f := newFixture()
	c, _ := request(http.MethodGet, "", uuid.New(), nil, "id", uuid.New().String())
	assert.Equal(t, http.StatusNotFound, statusOf(t, NewHandler(f.svc).GetAdmission(c)))

	c, _ = request(http.MethodGet, "", uuid.New(), nil, "id", "not-a-uuid")
	assert.Equal(t, http.StatusBadRequest, statusOf(t, NewHandler(f.svc).GetAdmission(c)))
}

func TestHandler_RecordResult(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.svc)
	_, err := f.admit(f.protocol(catalog.TypeTriage, catalog.TypeAudiometry))
	require.NoError(t, err)

	body := `{"exam_type":"triage","payload":{"weight_kg":70,"height_cm":170}}`
	c, rec := request(http.MethodPost, body, uuid.New(), []string{auth.RoleNursing}, "id", f.patientID.String())
	require.NoError(t, h.RecordResult(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var res Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 24.22, res.Payload["bmi"])
	assert.Equal(t, "Normal", res.Payload["bmi_class"])
}

func TestHandler_RecordResult_NursingLimitedToTriage(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.svc)
	_, err := f.admit(f.protocol(catalog.TypeTriage, catalog.TypeAudiometry))
	require.NoError(t, err)

	body := `{"exam_type":"audiometry","payload":{}}`
	c, _ := request(http.MethodPost, body, uuid.New(), []string{auth.RoleNursing}, "id", f.patientID.String())
	assert.Equal(t, http.StatusForbidden, statusOf(t, h.RecordResult(c)))

	c, rec := request(http.MethodPost, body, uuid.New(), []string{auth.RolePhysician}, "id", f.patientID.String())
	require.NoError(t, h.RecordResult(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandler_RecordResult_UnknownKey(t *testing.T) {
	f := newFixture()
	_, err := f.admit(f.protocol(catalog.TypeTriage))
	require.NoError(t, err)

	body := `{"exam_type":"triage","payload":{"pulso":70}}`
	c, _ := request(http.MethodPost, body, uuid.New(), []string{auth.RolePhysician}, "id", f.patientID.String())
	assert.Equal(t, http.StatusBadRequest, statusOf(t, NewHandler(f.svc).RecordResult(c)))
}

func TestHandler_CompleteEntry_NursingGuard(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.svc)
	d, err := f.admit(f.protocol(catalog.TypeTriage, catalog.TypePsychology))
	require.NoError(t, err)

	c, _ := request(http.MethodPost, `{"payload":{"notes":"x"}}`, uuid.New(), []string{auth.RoleNursing},
		"entry_id", d.Entries[1].ID.String())
	assert.Equal(t, http.StatusForbidden, statusOf(t, h.CompleteEntry(c)))

	c, rec := request(http.MethodPost, `{"payload":{"spo2":97}}`, uuid.New(), []string{auth.RoleNursing},
		"entry_id", d.Entries[0].ID.String())
	require.NoError(t, h.CompleteEntry(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandler_CompleteEntry_UnknownEntry(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.svc)

	c, _ := request(http.MethodPost, `{"payload":{"spo2":97}}`, uuid.New(), []string{auth.RoleNursing},
		"entry_id", uuid.New().String())
	assert.Equal(t, http.StatusNotFound, statusOf(t, h.CompleteEntry(c)))
}

func TestService_GetEntry(t *testing.T) {
	f := newFixture()
	d, err := f.admit(f.protocol(catalog.TypeTriage))
	require.NoError(t, err)

	e, err := f.svc.GetEntry(context.Background(), d.Entries[0].ID)
	require.NoError(t, err)
	assert.Equal(t, catalog.TypeTriage, e.ExamType)
	assert.Equal(t, EntryPending, e.State)
}

func TestHandler_IssueCertificate(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.svc)
	d, err := f.admit(f.protocol(catalog.TypeGeneral))
	require.NoError(t, err)

	c, _ := request(http.MethodPost, `{}`, f.physician, []string{auth.RolePhysician}, "id", d.ID.String())
	assert.Equal(t, http.StatusBadRequest, statusOf(t, h.IssueCertificate(c)), "entry still pending")

	completeAll(t, f, d, "Observado")

	c, _ = request(http.MethodPost, `{"verdict":"apto"}`, f.physician, []string{auth.RolePhysician}, "id", d.ID.String())
	assert.Equal(t, http.StatusBadRequest, statusOf(t, h.IssueCertificate(c)), "override milder than derived")

	c, _ = request(http.MethodPost, `{"verdict":"quizas"}`, f.physician, []string{auth.RolePhysician}, "id", d.ID.String())
	assert.Equal(t, http.StatusBadRequest, statusOf(t, h.IssueCertificate(c)))

	body := `{"verdict":"Apto con restricciones","restrictions":"Uso obligatorio de protector auditivo"}`
	c, rec := request(http.MethodPost, body, f.physician, []string{auth.RolePhysician}, "id", d.ID.String())
	require.NoError(t, h.IssueCertificate(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	var cert Certificate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cert))
	assert.Equal(t, VerdictFitRestrictions, cert.Verdict)
	assert.Equal(t, VerdictObserved, cert.DerivedVerdict)

	// Public verification exposes the verdict but no findings.
	c, rec = request(http.MethodGet, "", uuid.Nil, nil, "document_id", cert.DocumentID.String())
	require.NoError(t, h.VerifyCertificate(c))
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "APTO CON RESTRICCIONES", out["verdict"])
	assert.Equal(t, "active", out["status"])
	assert.NotContains(t, out, "derived_verdict")
	assert.NotContains(t, out, "recommendations")
}

func TestHandler_Void(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.svc)
	d, err := f.admit(f.protocol(catalog.TypeTriage))
	require.NoError(t, err)

	c, _ := request(http.MethodPost, `{"reason":""}`, uuid.New(), []string{auth.RoleAdmissions}, "id", d.ID.String())
	assert.Equal(t, http.StatusBadRequest, statusOf(t, h.Void(c)))

	c, rec := request(http.MethodPost, `{"reason":"error de registro"}`, uuid.New(), []string{auth.RoleAdmissions}, "id", d.ID.String())
	require.NoError(t, h.Void(c))
	var a Admission
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	assert.Equal(t, StateVoided, a.State)
}

func TestHandler_ListAdmissions(t *testing.T) {
	f := newFixture()
	_, err := f.admit(f.protocol(catalog.TypeTriage))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/?state=in_circuit&patient_id="+f.patientID.String(), nil)
	rec := httptest.NewRecorder()
	require.NoError(t, NewHandler(f.svc).ListAdmissions(echo.New().NewContext(req, rec)))

	var body struct {
		Data  []AdmissionSummary `json:"data"`
		Total int                `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Total)

	req = httptest.NewRequest(http.MethodGet, "/?company_id=nope", nil)
	err = NewHandler(f.svc).ListAdmissions(echo.New().NewContext(req, httptest.NewRecorder()))
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
}

func TestHandler_Worklist(t *testing.T) {
	f := newFixture()
	_, err := f.admit(f.protocol(catalog.TypeTriage, catalog.TypeAudiometry))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/?exam_type=audiometry", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, NewHandler(f.svc).Worklist(echo.New().NewContext(req, rec)))
	var items []WorklistItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, catalog.TypeAudiometry, items[0].ExamType)

	req = httptest.NewRequest(http.MethodGet, "/?limit=-1", nil)
	err = NewHandler(f.svc).Worklist(echo.New().NewContext(req, httptest.NewRecorder()))
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
}

package circuit

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/occhealth/occhealth/internal/domain/catalog"
	"github.com/occhealth/occhealth/internal/platform/apperr"
	"github.com/occhealth/occhealth/internal/platform/auth"
	"github.com/occhealth/occhealth/pkg/pagination"
)

const defaultWorklistLimit = 100

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Reads
	api.GET("/admissions", h.ListAdmissions)
	api.GET("/admissions/:id", h.GetAdmission)
	api.GET("/patients/:id/active-admission", h.ActiveAdmission)
	api.GET("/worklist", h.Worklist)

	reception := api.Group("", auth.RequireRole(auth.RoleAdmissions))
	reception.POST("/admissions", h.CreateAdmission)
	reception.POST("/admissions/:id/void", h.Void)

	// Stations; nursing is further limited to triage in recordGuard.
	clinical := api.Group("", auth.RequireRole(auth.RolePhysician, auth.RoleNursing))
	clinical.POST("/patients/:id/results", h.RecordResult)
	clinical.POST("/admissions/:id/results", h.RecordAdmissionResult)
	clinical.POST("/worklist/:entry_id/complete", h.CompleteEntry)

	physician := api.Group("", auth.RequireRole(auth.RolePhysician))
	physician.POST("/worklist/:entry_id/validate", h.ValidateEntry)
	physician.POST("/admissions/:id/diagnoses", h.AddDiagnosis)
	physician.POST("/admissions/:id/certificate", h.IssueCertificate)
	physician.POST("/admissions/:id/certificate/supersede", h.SupersedeCertificate)

	api.POST("/admissions/:id/audit", h.SendToAudit, auth.RequireRole(auth.RolePhysician, auth.RoleAuditor))
}

// RegisterPublicRoutes mounts routes served without authentication.
func (h *Handler) RegisterPublicRoutes(g *echo.Group) {
	g.GET("/certificates/verify/:document_id", h.VerifyCertificate)
}

func pathID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// actor is the authenticated user stamped on every write.
func actor(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "no authenticated user")
	}
	return id, nil
}

// -- Admissions --

func (h *Handler) CreateAdmission(c echo.Context) error {
	user, err := actor(c)
	if err != nil {
		return err
	}
	var in CreateAdmissionInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d, err := h.svc.CreateAdmission(c.Request().Context(), in, user)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) GetAdmission(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	d, err := h.svc.GetAdmission(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ActiveAdmission(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	d, err := h.svc.ActiveAdmission(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}

// ListAdmissions handles GET /admissions?state=&patient_id=&company_id=
func (h *Handler) ListAdmissions(c echo.Context) error {
	f := AdmissionFilter{State: AdmissionState(c.QueryParam("state"))}
	for param, dst := range map[string]**uuid.UUID{"patient_id": &f.PatientID, "company_id": &f.CompanyID} {
		if v := c.QueryParam(param); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid "+param)
			}
			*dst = &id
		}
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListAdmissions(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Worklist(c echo.Context) error {
	limit := defaultWorklistLimit
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}
	items, err := h.svc.Worklist(c.Request().Context(), c.QueryParam("exam_type"), limit)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, items)
}

type voidRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) Void(c echo.Context) error {
	user, err := actor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req voidRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.Void(c.Request().Context(), id, req.Reason, user)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) SendToAudit(c echo.Context) error {
	user, err := actor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	a, err := h.svc.SendToAudit(c.Request().Context(), id, user)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

// -- Results --

type resultRequest struct {
	ExamType string `json:"exam_type"`
	ResultInput
}

// recordGuard keeps nursing on the triage station.
func recordGuard(c echo.Context, examType catalog.ExamType) error {
	roles := auth.RolesFromContext(c.Request().Context())
	if auth.HasRole(roles, auth.RolePhysician) {
		return nil
	}
	if examType != catalog.TypeTriage {
		return echo.NewHTTPError(http.StatusForbidden, "nursing may only record triage")
	}
	return nil
}

func (h *Handler) bindResult(c echo.Context) (uuid.UUID, uuid.UUID, resultRequest, error) {
	var req resultRequest
	user, err := actor(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, req, err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return uuid.Nil, uuid.Nil, req, err
	}
	if err := c.Bind(&req); err != nil {
		return uuid.Nil, uuid.Nil, req, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := recordGuard(c, catalog.ParseExamType(req.ExamType)); err != nil {
		return uuid.Nil, uuid.Nil, req, err
	}
	return id, user, req, nil
}

// RecordResult handles POST /patients/:id/results against the active
// admission.
func (h *Handler) RecordResult(c echo.Context) error {
	patientID, user, req, err := h.bindResult(c)
	if err != nil {
		return err
	}
	res, err := h.svc.RecordResult(c.Request().Context(), patientID, req.ExamType, req.ResultInput, user)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) RecordAdmissionResult(c echo.Context) error {
	admissionID, user, req, err := h.bindResult(c)
	if err != nil {
		return err
	}
	res, err := h.svc.RecordAdmissionResult(c.Request().Context(), admissionID, req.ExamType, req.ResultInput, user)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) CompleteEntry(c echo.Context) error {
	user, err := actor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "entry_id")
	if err != nil {
		return err
	}
	var in ResultInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	if !auth.HasRole(auth.RolesFromContext(ctx), auth.RolePhysician) {
		e, err := h.svc.GetEntry(ctx, id)
		if err != nil {
			return apperr.HTTP(err)
		}
		if err := recordGuard(c, e.ExamType); err != nil {
			return err
		}
	}
	res, err := h.svc.CompleteEntry(ctx, id, in, user)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) ValidateEntry(c echo.Context) error {
	user, err := actor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "entry_id")
	if err != nil {
		return err
	}
	e, err := h.svc.ValidateEntry(c.Request().Context(), id, user)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, e)
}

// -- Diagnoses and certificates --

func (h *Handler) AddDiagnosis(c echo.Context) error {
	user, err := actor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var in DiagnosisInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d, err := h.svc.AddDiagnosis(c.Request().Context(), id, in, user)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, d)
}

type certificateRequest struct {
	Verdict         string `json:"verdict"`
	Restrictions    string `json:"restrictions"`
	Recommendations string `json:"recommendations"`
}

func (r certificateRequest) input() (CertificateInput, error) {
	in := CertificateInput{Restrictions: r.Restrictions, Recommendations: r.Recommendations}
	if r.Verdict != "" {
		v, ok := ParseVerdict(r.Verdict)
		if !ok {
			return in, echo.NewHTTPError(http.StatusBadRequest, "unknown verdict "+strconv.Quote(r.Verdict))
		}
		in.Verdict = &v
	}
	return in, nil
}

func (h *Handler) bindCertificate(c echo.Context) (uuid.UUID, uuid.UUID, CertificateInput, error) {
	var in CertificateInput
	user, err := actor(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, in, err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return uuid.Nil, uuid.Nil, in, err
	}
	var req certificateRequest
	if err := c.Bind(&req); err != nil {
		return uuid.Nil, uuid.Nil, in, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	in, err = req.input()
	return id, user, in, err
}

func (h *Handler) IssueCertificate(c echo.Context) error {
	id, user, in, err := h.bindCertificate(c)
	if err != nil {
		return err
	}
	cert, err := h.svc.IssueCertificate(c.Request().Context(), id, in, user)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, cert)
}

func (h *Handler) SupersedeCertificate(c echo.Context) error {
	id, user, in, err := h.bindCertificate(c)
	if err != nil {
		return err
	}
	cert, err := h.svc.SupersedeCertificate(c.Request().Context(), id, in, user)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, cert)
}

// VerifyCertificate is public: it confirms a printed certificate exists and
// whether it is still the active one. Clinical findings are not exposed.
func (h *Handler) VerifyCertificate(c echo.Context) error {
	id, err := pathID(c, "document_id")
	if err != nil {
		return err
	}
	rec, err := h.svc.VerifyCertificate(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, RegistryRecord(rec))
}

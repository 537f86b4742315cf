package patient

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/occhealth/occhealth/internal/platform/apperr"
	"github.com/occhealth/occhealth/internal/platform/auth"
	"github.com/occhealth/occhealth/pkg/pagination"
)

const dateLayout = "2006-01-02"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("")
	read.GET("/patients", h.SearchPatients)
	read.GET("/patients/recent", h.RecentPatients)
	read.GET("/patients/by-document/:document", h.GetPatientByDocument)
	read.GET("/patients/:id", h.GetPatient)
	read.GET("/patients/:id/history", h.ListHistory)

	write := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleAdmissions))
	write.POST("/patients", h.RegisterPatient)
	write.PUT("/patients/:id", h.UpdatePatient)

	api.POST("/patients/:id/history", h.AddHistory, auth.RequireRole(auth.RoleAdmissions, auth.RolePhysician))
}

// patientRequest takes dates as YYYY-MM-DD.
type patientRequest struct {
	DocumentType   string  `json:"document_type"`
	DocumentNumber string  `json:"document_number"`
	Names          string  `json:"names"`
	Surnames       string  `json:"surnames"`
	BirthDate      string  `json:"birth_date"`
	Gender         *string `json:"gender"`
	BloodGroup     *string `json:"blood_group"`
	Phone          *string `json:"phone"`
	Email          *string `json:"email"`
	Address        *string `json:"address"`
	MaritalStatus  *string `json:"marital_status"`
	Education      *string `json:"education"`
}

func (r patientRequest) apply(p *Patient) error {
	p.DocumentType = r.DocumentType
	p.DocumentNumber = r.DocumentNumber
	p.Names = r.Names
	p.Surnames = r.Surnames
	p.Gender = r.Gender
	p.BloodGroup = r.BloodGroup
	p.Phone = r.Phone
	p.Email = r.Email
	p.Address = r.Address
	p.MaritalStatus = r.MaritalStatus
	p.Education = r.Education
	p.BirthDate = time.Time{}
	if r.BirthDate != "" {
		d, err := time.Parse(dateLayout, r.BirthDate)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "birth_date must be YYYY-MM-DD")
		}
		p.BirthDate = d
	}
	return nil
}

// patientView adds the computed age.
type patientView struct {
	*Patient
	Age int `json:"age"`
}

func (h *Handler) view(p *Patient) patientView {
	return patientView{Patient: p, Age: p.AgeAt(h.svc.now())}
}

func (h *Handler) RegisterPatient(c echo.Context) error {
	var req patientRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	var p Patient
	if err := req.apply(&p); err != nil {
		return err
	}
	if err := h.svc.RegisterPatient(c.Request().Context(), &p); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, h.view(&p))
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.GetPatient(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, h.view(p))
}

func (h *Handler) GetPatientByDocument(c echo.Context) error {
	p, err := h.svc.GetPatientByDocument(c.Request().Context(), c.Param("document"))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, h.view(p))
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.GetPatient(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	var req patientRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := req.apply(p); err != nil {
		return err
	}
	if err := h.svc.UpdatePatient(c.Request().Context(), p); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, h.view(p))
}

// SearchPatients handles GET /patients?by=names&q=...
func (h *Handler) SearchPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.SearchPatients(c.Request().Context(), c.QueryParam("by"), c.QueryParam("q"), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	views := make([]patientView, 0, len(items))
	for _, p := range items {
		views = append(views, h.view(p))
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(views, total, pg.Limit, pg.Offset))
}

func (h *Handler) RecentPatients(c echo.Context) error {
	items, err := h.svc.RecentPatients(c.Request().Context())
	if err != nil {
		return apperr.HTTP(err)
	}
	views := make([]patientView, 0, len(items))
	for _, p := range items {
		views = append(views, h.view(p))
	}
	return c.JSON(http.StatusOK, views)
}

type historyRequest struct {
	Employer  string  `json:"employer"`
	Position  string  `json:"position"`
	StartDate string  `json:"start_date"`
	EndDate   string  `json:"end_date"`
	Risks     *string `json:"risks"`
	PPE       *string `json:"ppe"`
}

func parseOptionalDate(field, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	d, err := time.Parse(dateLayout, v)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, field+" must be YYYY-MM-DD")
	}
	return &d, nil
}

func (h *Handler) AddHistory(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req historyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	entry := &OccupationalHistory{
		PatientID: patientID,
		Employer:  req.Employer,
		Position:  req.Position,
		Risks:     req.Risks,
		PPE:       req.PPE,
	}
	if entry.StartDate, err = parseOptionalDate("start_date", req.StartDate); err != nil {
		return err
	}
	if entry.EndDate, err = parseOptionalDate("end_date", req.EndDate); err != nil {
		return err
	}
	if err := h.svc.AddHistory(c.Request().Context(), entry); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, entry)
}

func (h *Handler) ListHistory(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	items, err := h.svc.ListHistory(c.Request().Context(), patientID)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, items)
}

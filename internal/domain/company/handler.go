package company

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/occhealth/occhealth/internal/platform/apperr"
	"github.com/occhealth/occhealth/internal/platform/auth"
	"github.com/occhealth/occhealth/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("")
	read.GET("/companies", h.ListCompanies)
	read.GET("/companies/:id", h.GetCompany)
	read.GET("/companies/:id/protocols", h.ListProtocols)
	read.GET("/protocols/:id", h.GetProtocol)

	write := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleAdmissions))
	write.POST("/companies", h.CreateCompany)
	write.PUT("/companies/:id", h.UpdateCompany)
	write.POST("/companies/:id/protocols", h.CreateProtocol)
	write.PUT("/protocols/:id/exams", h.ReplaceProtocolExams)
	write.PATCH("/protocols/:id/active", h.SetProtocolActive)
	write.DELETE("/protocols/:id", h.DeleteProtocol)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// -- Company Handlers --

func (h *Handler) CreateCompany(c echo.Context) error {
	var co Company
	if err := c.Bind(&co); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateCompany(c.Request().Context(), &co); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, co)
}

func (h *Handler) GetCompany(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	co, err := h.svc.GetCompany(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, co)
}

func (h *Handler) UpdateCompany(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	existing, err := h.svc.GetCompany(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	if err := c.Bind(existing); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	existing.ID = id
	if err := h.svc.UpdateCompany(c.Request().Context(), existing); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, existing)
}

func (h *Handler) ListCompanies(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListCompanies(c.Request().Context(), c.QueryParam("q"), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// -- Protocol Handlers --

type protocolRequest struct {
	Name        string     `json:"name"`
	RiskProfile *string    `json:"risk_profile"`
	ExamKind    *string    `json:"exam_kind"`
	Active      *bool      `json:"active"`
	Exams       []ExamItem `json:"exams"`
}

func (h *Handler) CreateProtocol(c echo.Context) error {
	companyID, err := parseID(c)
	if err != nil {
		return err
	}
	var req protocolRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p := &Protocol{
		CompanyID:   companyID,
		Name:        req.Name,
		RiskProfile: req.RiskProfile,
		ExamKind:    req.ExamKind,
		Active:      req.Active == nil || *req.Active,
	}
	if err := h.svc.CreateProtocol(c.Request().Context(), p, req.Exams); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetProtocol(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetProtocol(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListProtocols(c echo.Context) error {
	companyID, err := parseID(c)
	if err != nil {
		return err
	}
	activeOnly := c.QueryParam("active") == "true"
	items, err := h.svc.ListProtocols(c.Request().Context(), companyID, activeOnly)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ReplaceProtocolExams(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req struct {
		Exams []ExamItem `json:"exams"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.ReplaceProtocolExams(c.Request().Context(), id, req.Exams)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) SetProtocolActive(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req struct {
		Active *bool `json:"active"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Active == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "active is required")
	}
	if err := h.svc.SetProtocolActive(c.Request().Context(), id, *req.Active); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DeleteProtocol(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteProtocol(c.Request().Context(), id); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

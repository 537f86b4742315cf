package reporting

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/occhealth/occhealth/internal/platform/apperr"
	"github.com/occhealth/occhealth/internal/platform/auth"
)

const (
	topCompanies  = 5
	latestDefault = 10
	maxRangeDays  = 366
)

// Handler provides HTTP handlers for the reporting API.
type Handler struct {
	store  Store
	loc    *time.Location
	now    func() time.Time
	logger zerolog.Logger
}

// NewHandler reports "today" and "this month" in loc, which must be a named
// IANA zone (or UTC) since the name is passed to PostgreSQL.
func NewHandler(store Store, loc *time.Location, logger zerolog.Logger) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{store: store, loc: loc, now: time.Now, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/reports", auth.RequireRole(auth.RoleAuditor, auth.RolePhysician))
	g.GET("/dashboard", h.Dashboard)
	g.GET("/summary", h.Summary)
	g.GET("/admissions/by-company", h.ByCompany)
	g.GET("/admissions/by-state", h.ByState)
	g.GET("/admissions/by-hour", h.ByHour)
	g.GET("/admissions/by-day", h.ByDay)
	g.GET("/admissions/latest", h.Latest)
	g.GET("/measures", h.ListMeasures)
	g.GET("/measures/:id/evaluate", h.EvaluateMeasure)
}

func (h *Handler) today() (time.Time, time.Time) {
	return DayBounds(h.now().In(h.loc))
}

// Dashboard gathers every panel in one response.
func (h *Handler) Dashboard(c echo.Context) error {
	ctx := c.Request().Context()
	now := h.now().In(h.loc)
	dayStart, dayEnd := DayBounds(now)
	monthStart, monthEnd := MonthBounds(now)

	d := Dashboard{GeneratedAt: now}
	var err error
	if d.Summary, err = h.store.Summary(ctx, dayStart, dayEnd); err != nil {
		return apperr.HTTP(err)
	}
	if d.ByCompany, err = h.store.AdmissionsByCompany(ctx, monthStart, monthEnd, topCompanies); err != nil {
		return apperr.HTTP(err)
	}
	if d.ByState, err = h.store.AdmissionsByState(ctx); err != nil {
		return apperr.HTTP(err)
	}
	if d.ByHour, err = h.store.AdmissionsByHour(ctx, dayStart, dayEnd); err != nil {
		return apperr.HTTP(err)
	}
	if d.Latest, err = h.store.LatestAdmissions(ctx, latestDefault); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Summary(c echo.Context) error {
	start, end := h.today()
	sum, err := h.store.Summary(c.Request().Context(), start, end)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, sum)
}

// ByCompany defaults to the current month; ?from=&to= override it.
func (h *Handler) ByCompany(c echo.Context) error {
	from, to := MonthBounds(h.now().In(h.loc))
	from, to, err := h.parseRange(c, from, to)
	if err != nil {
		return err
	}
	limit := topCompanies
	if v, convErr := strconv.Atoi(c.QueryParam("limit")); convErr == nil && v > 0 && v <= 100 {
		limit = v
	}
	out, err := h.store.AdmissionsByCompany(c.Request().Context(), from, to, limit)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) ByState(c echo.Context) error {
	out, err := h.store.AdmissionsByState(c.Request().Context())
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) ByHour(c echo.Context) error {
	start, end := h.today()
	out, err := h.store.AdmissionsByHour(c.Request().Context(), start, end)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, out)
}

// ByDay defaults to the last 30 days including today.
func (h *Handler) ByDay(c echo.Context) error {
	_, end := h.today()
	from, to, err := h.parseRange(c, end.AddDate(0, 0, -30), end)
	if err != nil {
		return err
	}
	out, err := h.store.AdmissionsByDay(c.Request().Context(), from, to)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Latest(c echo.Context) error {
	limit := latestDefault
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	out, err := h.store.LatestAdmissions(c.Request().Context(), limit)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) ListMeasures(c echo.Context) error {
	return c.JSON(http.StatusOK, PredefinedMeasures)
}

// EvaluateMeasure runs a predefined measure. Ranged measures default to the
// current month.
func (h *Handler) EvaluateMeasure(c echo.Context) error {
	measure := FindMeasure(c.Param("id"))
	if measure == nil {
		return echo.NewHTTPError(http.StatusNotFound, "measure not found")
	}

	report := MeasureReport{
		MeasureID:   measure.ID,
		MeasureName: measure.Name,
		GeneratedAt: h.now().In(h.loc),
	}

	var args []interface{}
	if measure.Range {
		from, to := MonthBounds(h.now().In(h.loc))
		from, to, err := h.parseRange(c, from, to)
		if err != nil {
			return err
		}
		args = append(args, from, to)
		report.From, report.To = &from, &to
	}

	results, err := h.store.Evaluate(c.Request().Context(), measure.SQL, args...)
	if err != nil {
		h.logger.Error().Err(err).Str("measure", measure.ID).Msg("measure evaluation failed")
		return apperr.HTTP(err)
	}
	report.Results = results
	return c.JSON(http.StatusOK, report)
}

// parseRange reads ?from= and ?to= as YYYY-MM-DD in the handler's location;
// to is inclusive on input and returned as the exclusive next midnight.
func (h *Handler) parseRange(c echo.Context, defFrom, defTo time.Time) (time.Time, time.Time, error) {
	from, to := defFrom, defTo
	if v := c.QueryParam("from"); v != "" {
		t, err := time.ParseInLocation("2006-01-02", v, h.loc)
		if err != nil {
			return from, to, echo.NewHTTPError(http.StatusBadRequest, "from must be YYYY-MM-DD")
		}
		from = t
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := time.ParseInLocation("2006-01-02", v, h.loc)
		if err != nil {
			return from, to, echo.NewHTTPError(http.StatusBadRequest, "to must be YYYY-MM-DD")
		}
		to = t.AddDate(0, 0, 1)
	}
	if !from.Before(to) {
		return from, to, echo.NewHTTPError(http.StatusBadRequest, "from must be before to")
	}
	if to.Sub(from) > maxRangeDays*24*time.Hour {
		return from, to, echo.NewHTTPError(http.StatusBadRequest, "range may not exceed one year")
	}
	return from, to, nil
}

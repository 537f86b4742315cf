// Package reporting serves read-only aggregates over admissions, companies
// and worklist entries for the managerial dashboard.
package reporting

import (
	"context"
	"time"
)

// Summary holds the dashboard KPIs.
type Summary struct {
	AdmissionsToday int `json:"admissions_today"`
	InCircuit       int `json:"in_circuit"`
	Companies       int `json:"companies"`
	ExamsDoneToday  int `json:"exams_done_today"`
}

// Bucket is a labelled count.
type Bucket struct {
	Label string `json:"label"`
	Total int    `json:"total"`
}

type HourBucket struct {
	Hour  int `json:"hour"`
	Total int `json:"total"`
}

type DayBucket struct {
	Day   time.Time `json:"day"`
	Total int       `json:"total"`
}

// LatestAdmission is one row of the recent admissions table.
type LatestAdmission struct {
	AdmissionID     string    `json:"admission_id"`
	PatientName     string    `json:"patient_name"`
	PatientDocument string    `json:"patient_document"`
	CompanyName     string    `json:"company_name"`
	State           string    `json:"state"`
	AdmittedAt      time.Time `json:"admitted_at"`
}

// Dashboard is the combined payload of GET /reports/dashboard.
type Dashboard struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Summary     *Summary          `json:"summary"`
	ByCompany   []Bucket          `json:"by_company"`
	ByState     []Bucket          `json:"by_state"`
	ByHour      []HourBucket      `json:"by_hour"`
	Latest      []LatestAdmission `json:"latest"`
}

// Store runs the aggregate queries. All time bounds are half-open [from, to).
type Store interface {
	Summary(ctx context.Context, dayStart, dayEnd time.Time) (*Summary, error)
	AdmissionsByCompany(ctx context.Context, from, to time.Time, limit int) ([]Bucket, error)
	AdmissionsByState(ctx context.Context) ([]Bucket, error)
	AdmissionsByHour(ctx context.Context, dayStart, dayEnd time.Time) ([]HourBucket, error)
	AdmissionsByDay(ctx context.Context, from, to time.Time) ([]DayBucket, error)
	LatestAdmissions(ctx context.Context, limit int) ([]LatestAdmission, error)
	Evaluate(ctx context.Context, sql string, args ...interface{}) ([]map[string]interface{}, error)
}

// MeasureDefinition is a named SQL aggregate exposed through the measures
// endpoint. Queries with Range take the period as $1 and $2.
type MeasureDefinition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	SQL         string `json:"-"`
	Range       bool   `json:"range"`
}

// MeasureReport holds the results of evaluating a measure.
type MeasureReport struct {
	MeasureID   string                   `json:"measure_id"`
	MeasureName string                   `json:"measure_name"`
	GeneratedAt time.Time                `json:"generated_at"`
	From        *time.Time               `json:"from,omitempty"`
	To          *time.Time               `json:"to,omitempty"`
	Results     []map[string]interface{} `json:"results"`
}

var PredefinedMeasures = []MeasureDefinition{
	{
		ID:          "verdict-distribution",
		Name:        "Verdict Distribution",
		Description: "Active certificates issued in the period grouped by aptitude verdict",
		SQL: `SELECT verdict, COUNT(*) AS total FROM certificate
		      WHERE status = 'active' AND issued_at >= $1 AND issued_at < $2
		      GROUP BY verdict ORDER BY total DESC`,
		Range: true,
	},
	{
		ID:          "exam-volume",
		Name:        "Exam Volume",
		Description: "Worklist entries completed in the period grouped by exam",
		SQL: `SELECT exam_name, exam_type, COUNT(*) AS total FROM worklist_entry
		      WHERE state IN ('done','validated') AND completed_at >= $1 AND completed_at < $2
		      GROUP BY exam_name, exam_type ORDER BY total DESC`,
		Range: true,
	},
	{
		ID:          "billing-by-company",
		Name:        "Billing by Company",
		Description: "Sum of agreed prices of completed exams per company in the period",
		SQL: `SELECT c.legal_name AS company, COUNT(w.id) AS exams, COALESCE(SUM(w.agreed_price), 0)::float8 AS amount
		      FROM worklist_entry w
		      JOIN admission a ON a.id = w.admission_id
		      JOIN company c ON c.id = a.company_id
		      WHERE w.state IN ('done','validated') AND w.completed_at >= $1 AND w.completed_at < $2
		      GROUP BY c.legal_name ORDER BY amount DESC`,
		Range: true,
	},
	{
		ID:          "pending-worklist",
		Name:        "Pending Worklist",
		Description: "Pending entries of open admissions grouped by exam type",
		SQL: `SELECT w.exam_type, COUNT(*) AS total FROM worklist_entry w
		      JOIN admission a ON a.id = w.admission_id
		      WHERE a.state = 'in_circuit' AND w.state = 'pending'
		      GROUP BY w.exam_type ORDER BY total DESC`,
	},
	{
		ID:          "expiring-certificates",
		Name:        "Expiring Certificates",
		Description: "Active certificates whose expiry falls in the period",
		SQL: `SELECT ce.document_id::text AS document_id, p.document_number, p.surnames || ', ' || p.names AS patient,
		             ce.verdict, ce.expires_at
		      FROM certificate ce
		      JOIN admission a ON a.id = ce.admission_id
		      JOIN patient p ON p.id = a.patient_id
		      WHERE ce.status = 'active' AND ce.expires_at >= $1 AND ce.expires_at < $2
		      ORDER BY ce.expires_at`,
		Range: true,
	},
}

// FindMeasure looks up a measure by ID.
func FindMeasure(id string) *MeasureDefinition {
	for i := range PredefinedMeasures {
		if PredefinedMeasures[i].ID == id {
			return &PredefinedMeasures[i]
		}
	}
	return nil
}

// DayBounds returns [start of t's day, start of next day) in t's location.
func DayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}

// MonthBounds returns [first day of t's month, first day of next month).
func MonthBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 1, 0)
}

// FillHours expands sparse hour counts into 24 buckets.
func FillHours(sparse []HourBucket) []HourBucket {
	out := make([]HourBucket, 24)
	for h := range out {
		out[h].Hour = h
	}
	for _, b := range sparse {
		if b.Hour >= 0 && b.Hour < 24 {
			out[b.Hour].Total += b.Total
		}
	}
	return out
}

package patient

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Patient struct {
	ID             uuid.UUID `db:"id" json:"id"`
	DocumentType   string    `db:"document_type" json:"document_type"`
	DocumentNumber string    `db:"document_number" json:"document_number"`
	Names          string    `db:"names" json:"names"`
	Surnames       string    `db:"surnames" json:"surnames"`
	BirthDate      time.Time `db:"birth_date" json:"birth_date"`
	Gender         *string   `db:"gender" json:"gender,omitempty"`
	BloodGroup     *string   `db:"blood_group" json:"blood_group,omitempty"`
	Phone          *string   `db:"phone" json:"phone,omitempty"`
	Email          *string   `db:"email" json:"email,omitempty"`
	Address        *string   `db:"address" json:"address,omitempty"`
	MaritalStatus  *string   `db:"marital_status" json:"marital_status,omitempty"`
	Education      *string   `db:"education" json:"education,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// FullName is "surnames, names" as printed on certificates.
func (p *Patient) FullName() string {
	return strings.TrimSpace(p.Surnames) + ", " + strings.TrimSpace(p.Names)
}

// AgeAt returns completed years at t.
func (p *Patient) AgeAt(t time.Time) int {
	return Age(p.BirthDate, t)
}

// Age returns the completed years between birth and t.
func Age(birth, t time.Time) int {
	if birth.IsZero() || t.Before(birth) {
		return 0
	}
	years := t.Year() - birth.Year()
	if t.Month() < birth.Month() || (t.Month() == birth.Month() && t.Day() < birth.Day()) {
		years--
	}
	return years
}

// OccupationalHistory is one previous job and the risks it exposed the
// patient to.
type OccupationalHistory struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	PatientID uuid.UUID  `db:"patient_id" json:"patient_id"`
	Employer  string     `db:"employer" json:"employer"`
	Position  string     `db:"position" json:"position"`
	StartDate *time.Time `db:"start_date" json:"start_date,omitempty"`
	EndDate   *time.Time `db:"end_date" json:"end_date,omitempty"`
	Risks     *string    `db:"risks" json:"risks,omitempty"`
	PPE       *string    `db:"ppe" json:"ppe,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// Criterion selects the columns Search matches against.
type Criterion string

const (
	ByDocument Criterion = "document"
	ByNames    Criterion = "names"
	BySurnames Criterion = "surnames"
	ByAny      Criterion = "any"
)

func ParseCriterion(s string) (Criterion, bool) {
	switch c := Criterion(strings.ToLower(strings.TrimSpace(s))); c {
	case ByDocument, ByNames, BySurnames, ByAny:
		return c, true
	case "":
		return ByAny, true
	}
	return "", false
}

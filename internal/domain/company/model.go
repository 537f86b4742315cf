package company

import (
	"time"

	"github.com/google/uuid"

	"github.com/occhealth/occhealth/internal/domain/catalog"
)

// Company is an employer that sends workers through the circuit.
type Company struct {
	ID           uuid.UUID `db:"id" json:"id"`
	TaxID        string    `db:"tax_id" json:"tax_id"`
	LegalName    string    `db:"legal_name" json:"legal_name"`
	Address      *string   `db:"address" json:"address,omitempty"`
	Industry     *string   `db:"industry" json:"industry,omitempty"`
	ContactName  *string   `db:"contact_name" json:"contact_name,omitempty"`
	ContactEmail *string   `db:"contact_email" json:"contact_email,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Protocol is a company-specific priced list of required exams. Version is
// bumped every time the exam list is replaced.
type Protocol struct {
	ID          uuid.UUID      `db:"id" json:"id"`
	CompanyID   uuid.UUID      `db:"company_id" json:"company_id"`
	Name        string         `db:"name" json:"name"`
	RiskProfile *string        `db:"risk_profile" json:"risk_profile,omitempty"`
	ExamKind    *string        `db:"exam_kind" json:"exam_kind,omitempty"`
	Active      bool           `db:"active" json:"active"`
	Version     int            `db:"version" json:"version"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
	Exams       []ProtocolExam `json:"exams"`
}

// ProtocolExam is one (exam, agreed price) detail. Exam fields are joined
// from the catalog on read.
type ProtocolExam struct {
	ExamID      uuid.UUID        `db:"exam_id" json:"exam_id"`
	ExamCode    string           `db:"code" json:"exam_code,omitempty"`
	ExamName    string           `db:"name" json:"exam_name,omitempty"`
	ExamType    catalog.ExamType `db:"exam_type" json:"exam_type,omitempty"`
	AgreedPrice float64          `db:"agreed_price" json:"agreed_price"`
	Position    int              `db:"position" json:"position"`
}

// ExamItem requests an exam in a protocol. A nil price takes the exam's
// catalog base price.
type ExamItem struct {
	ExamID      uuid.UUID `json:"exam_id"`
	AgreedPrice *float64  `json:"agreed_price,omitempty"`
}

package circuit

import (
	"time"

	"github.com/google/uuid"

	"github.com/occhealth/occhealth/internal/domain/catalog"
)

// AdmissionState is the global state of a patient's pass through the circuit.
type AdmissionState string

const (
	StateInCircuit AdmissionState = "in_circuit"
	StateAudit     AdmissionState = "audit"
	StateClosed    AdmissionState = "closed"
	StateVoided    AdmissionState = "voided"
)

// Label is the name shown at reception.
func (s AdmissionState) Label() string {
	switch s {
	case StateInCircuit:
		return "En Circuito"
	case StateAudit:
		return "Auditoria"
	case StateClosed:
		return "Cerrado"
	case StateVoided:
		return "Anulado"
	default:
		return string(s)
	}
}

// CanTransitionTo reports whether the admission may move from s to next.
// closed and voided are terminal.
func (s AdmissionState) CanTransitionTo(next AdmissionState) bool {
	switch s {
	case StateInCircuit:
		return next == StateAudit || next == StateVoided || next == StateClosed
	case StateAudit:
		return next == StateVoided || next == StateClosed
	case StateClosed, StateVoided:
		return false
	default:
		return false
	}
}

// AcceptsClinicalWrites reports whether results and diagnoses may still be
// recorded.
func (s AdmissionState) AcceptsClinicalWrites() bool {
	switch s {
	case StateInCircuit, StateAudit:
		return true
	default:
		return false
	}
}

func (s AdmissionState) Valid() bool {
	switch s {
	case StateInCircuit, StateAudit, StateClosed, StateVoided:
		return true
	}
	return false
}

// EntryState tracks one required exam. It only moves forward.
type EntryState string

const (
	EntryPending   EntryState = "pending"
	EntryDone      EntryState = "done"
	EntryValidated EntryState = "validated"
)

func (s EntryState) Label() string {
	switch s {
	case EntryPending:
		return "Pendiente"
	case EntryDone:
		return "Realizado"
	case EntryValidated:
		return "Validado"
	default:
		return string(s)
	}
}

// CanTransitionTo allows done -> done so a result can be amended before
// validation.
func (s EntryState) CanTransitionTo(next EntryState) bool {
	switch s {
	case EntryPending:
		return next == EntryDone
	case EntryDone:
		return next == EntryDone || next == EntryValidated
	case EntryValidated:
		return false
	default:
		return false
	}
}

type Admission struct {
	ID              uuid.UUID      `db:"id" json:"id"`
	PatientID       uuid.UUID      `db:"patient_id" json:"patient_id"`
	CompanyID       uuid.UUID      `db:"company_id" json:"company_id"`
	ProtocolID      uuid.UUID      `db:"protocol_id" json:"protocol_id"`
	ProtocolVersion int            `db:"protocol_version" json:"protocol_version"`
	PositionApplied *string        `db:"position_applied" json:"position_applied,omitempty"`
	State           AdmissionState `db:"state" json:"state"`
	CreatedBy       uuid.UUID      `db:"created_by" json:"created_by"`
	AdmittedAt      time.Time      `db:"admitted_at" json:"admitted_at"`
	ClosedAt        *time.Time     `db:"closed_at" json:"closed_at,omitempty"`
	VoidReason      *string        `db:"void_reason" json:"void_reason,omitempty"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// WorklistEntry is a snapshot of one protocol exam taken when the admission
// was created.
type WorklistEntry struct {
	ID          uuid.UUID        `db:"id" json:"id"`
	AdmissionID uuid.UUID        `db:"admission_id" json:"admission_id"`
	ExamID      uuid.UUID        `db:"exam_id" json:"exam_id"`
	ExamName    string           `db:"exam_name" json:"exam_name"`
	ExamType    catalog.ExamType `db:"exam_type" json:"exam_type"`
	AgreedPrice float64          `db:"agreed_price" json:"agreed_price"`
	Position    int              `db:"position" json:"position"`
	State       EntryState       `db:"state" json:"state"`
	EvaluatorID *uuid.UUID       `db:"evaluator_id" json:"evaluator_id,omitempty"`
	CompletedAt *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
	ValidatedBy *uuid.UUID       `db:"validated_by" json:"validated_by,omitempty"`
	ValidatedAt *time.Time       `db:"validated_at" json:"validated_at,omitempty"`
}

// Result is the clinical record of one (admission, exam) pair.
type Result struct {
	ID          uuid.UUID              `db:"id" json:"id"`
	AdmissionID uuid.UUID              `db:"admission_id" json:"admission_id"`
	ExamID      uuid.UUID              `db:"exam_id" json:"exam_id"`
	EntryID     uuid.UUID              `db:"entry_id" json:"entry_id"`
	Payload     map[string]interface{} `db:"payload" json:"payload"`
	Conclusion  string                 `db:"conclusion" json:"conclusion"`
	RecordedBy  uuid.UUID              `db:"recorded_by" json:"recorded_by"`
	CreatedAt   time.Time              `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time              `db:"updated_at" json:"updated_at"`
}

type DiagnosisType string

const (
	DiagnosisPresumptive DiagnosisType = "presumptive"
	DiagnosisDefinitive  DiagnosisType = "definitive"
	DiagnosisRepeat      DiagnosisType = "repeat"
)

type Diagnosis struct {
	ID          uuid.UUID     `db:"id" json:"id"`
	AdmissionID uuid.UUID     `db:"admission_id" json:"admission_id"`
	Code        string        `db:"code" json:"code"`
	Description string        `db:"description" json:"description"`
	Type        DiagnosisType `db:"diagnosis_type" json:"diagnosis_type"`
	CreatedBy   uuid.UUID     `db:"created_by" json:"created_by"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
}

type CertificateStatus string

const (
	CertificateActive     CertificateStatus = "active"
	CertificateSuperseded CertificateStatus = "superseded"
)

// Certificate is immutable once issued. SupersededBy holds the document id of
// the certificate that replaced it.
type Certificate struct {
	ID              uuid.UUID         `db:"id" json:"id"`
	AdmissionID     uuid.UUID         `db:"admission_id" json:"admission_id"`
	DocumentID      uuid.UUID         `db:"document_id" json:"document_id"`
	Verdict         Verdict           `db:"verdict" json:"verdict"`
	DerivedVerdict  Verdict           `db:"derived_verdict" json:"derived_verdict"`
	Restrictions    string            `db:"restrictions" json:"restrictions"`
	Recommendations string            `db:"recommendations" json:"recommendations"`
	SignedBy        uuid.UUID         `db:"signed_by" json:"signed_by"`
	IssuedAt        time.Time         `db:"issued_at" json:"issued_at"`
	ExpiresAt       time.Time         `db:"expires_at" json:"expires_at"`
	Status          CertificateStatus `db:"status" json:"status"`
	SupersededBy    *uuid.UUID        `db:"superseded_by" json:"superseded_by,omitempty"`
}

// AdmissionDetail is an admission with everything it owns.
type AdmissionDetail struct {
	*Admission
	StateLabel   string           `json:"state_label"`
	Entries      []*WorklistEntry `json:"entries"`
	Results      []*Result        `json:"results"`
	Diagnoses    []*Diagnosis     `json:"diagnoses"`
	Certificates []*Certificate   `json:"certificates"`
}

// AdmissionSummary is a row of the reception board.
type AdmissionSummary struct {
	ID             uuid.UUID      `db:"id" json:"id"`
	PatientID      uuid.UUID      `db:"patient_id" json:"patient_id"`
	PatientName    string         `db:"patient_name" json:"patient_name"`
	DocumentNumber string         `db:"document_number" json:"document_number"`
	CompanyID      uuid.UUID      `db:"company_id" json:"company_id"`
	CompanyName    string         `db:"company_name" json:"company_name"`
	State          AdmissionState `db:"state" json:"state"`
	AdmittedAt     time.Time      `db:"admitted_at" json:"admitted_at"`
	TotalEntries   int            `db:"total_entries" json:"total_entries"`
	PendingEntries int            `db:"pending_entries" json:"pending_entries"`
}

type AdmissionFilter struct {
	State     AdmissionState
	PatientID *uuid.UUID
	CompanyID *uuid.UUID
}

// WorklistItem is a pending exam waiting at a clinical station.
type WorklistItem struct {
	EntryID        uuid.UUID        `db:"entry_id" json:"entry_id"`
	AdmissionID    uuid.UUID        `db:"admission_id" json:"admission_id"`
	PatientID      uuid.UUID        `db:"patient_id" json:"patient_id"`
	PatientName    string           `db:"patient_name" json:"patient_name"`
	DocumentNumber string           `db:"document_number" json:"document_number"`
	ExamName       string           `db:"exam_name" json:"exam_name"`
	ExamType       catalog.ExamType `db:"exam_type" json:"exam_type"`
	State          EntryState       `db:"state" json:"state"`
	AdmittedAt     time.Time        `db:"admitted_at" json:"admitted_at"`
}

// CertificateRecord is a certificate joined with the names printed on it.
type CertificateRecord struct {
	Certificate
	PatientName     string `db:"patient_name" json:"patient_name"`
	PatientDocument string `db:"patient_document" json:"patient_document"`
	CompanyName     string `db:"company_name" json:"company_name"`
}

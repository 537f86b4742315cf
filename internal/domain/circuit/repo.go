package circuit

import (
	"context"

	"github.com/google/uuid"

	"github.com/occhealth/occhealth/internal/domain/catalog"
)

// Repository is the circuit's storage. Lock* methods take row locks and
// must run inside a transaction; callers lock admission, then entry, then
// result.
type Repository interface {
	LockPatient(ctx context.Context, patientID uuid.UUID) error
	ShareLockProtocol(ctx context.Context, protocolID uuid.UUID) error

	CreateAdmission(ctx context.Context, a *Admission) error
	CreateEntries(ctx context.Context, entries []*WorklistEntry) error
	GetAdmission(ctx context.Context, id uuid.UUID) (*Admission, error)
	LockAdmission(ctx context.Context, id uuid.UUID) (*Admission, error)
	// FindActive returns the newest in_circuit admission or a not-found error.
	FindActive(ctx context.Context, patientID uuid.UUID) (*Admission, error)
	UpdateAdmissionState(ctx context.Context, a *Admission) error
	ListAdmissions(ctx context.Context, f AdmissionFilter, limit, offset int) ([]*AdmissionSummary, int, error)

	GetEntry(ctx context.Context, id uuid.UUID) (*WorklistEntry, error)
	LockEntry(ctx context.Context, id uuid.UUID) (*WorklistEntry, error)
	ListEntries(ctx context.Context, admissionID uuid.UUID) ([]*WorklistEntry, error)
	UpdateEntry(ctx context.Context, e *WorklistEntry) error
	PendingWorklist(ctx context.Context, examType catalog.ExamType, limit int) ([]*WorklistItem, error)

	// LockResult returns nil, nil when the pair has no result yet.
	LockResult(ctx context.Context, admissionID, examID uuid.UUID) (*Result, error)
	UpsertResult(ctx context.Context, r *Result) error
	ListResults(ctx context.Context, admissionID uuid.UUID) ([]*Result, error)

	CreateDiagnosis(ctx context.Context, d *Diagnosis) error
	ListDiagnoses(ctx context.Context, admissionID uuid.UUID) ([]*Diagnosis, error)

	CreateCertificate(ctx context.Context, c *Certificate) error
	LockActiveCertificate(ctx context.Context, admissionID uuid.UUID) (*Certificate, error)
	MarkSuperseded(ctx context.Context, id, supersededBy uuid.UUID) error
	ListCertificates(ctx context.Context, admissionID uuid.UUID) ([]*Certificate, error)
	GetCertificateRecord(ctx context.Context, documentID uuid.UUID) (*CertificateRecord, error)
}

package patient

import (
	"context"

	"github.com/google/uuid"
)

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByDocument(ctx context.Context, documentNumber string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	// Search matches term, already folded, as a substring.
	Search(ctx context.Context, by Criterion, term string, limit, offset int) ([]*Patient, int, error)
	Recent(ctx context.Context, limit int) ([]*Patient, error)
}

type HistoryRepository interface {
	Add(ctx context.Context, h *OccupationalHistory) error
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*OccupationalHistory, error)
}

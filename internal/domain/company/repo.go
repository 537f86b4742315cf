package company

import (
	"context"

	"github.com/google/uuid"
)

type CompanyRepository interface {
	Create(ctx context.Context, c *Company) error
	GetByID(ctx context.Context, id uuid.UUID) (*Company, error)
	Update(ctx context.Context, c *Company) error
	List(ctx context.Context, search string, limit, offset int) ([]*Company, int, error)
}

type ProtocolRepository interface {
	Create(ctx context.Context, p *Protocol) error
	GetByID(ctx context.Context, id uuid.UUID) (*Protocol, error)
	ListByCompany(ctx context.Context, companyID uuid.UUID, activeOnly bool) ([]*Protocol, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	// ReplaceExams swaps the exam list and returns the bumped version.
	ReplaceExams(ctx context.Context, id uuid.UUID, exams []ProtocolExam) (int, error)
	Delete(ctx context.Context, id uuid.UUID) error
	CountAdmissions(ctx context.Context, id uuid.UUID) (int, error)
}

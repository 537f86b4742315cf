package catalog

import (
	"context"

	"github.com/google/uuid"
)

type ExamRepository interface {
	Create(ctx context.Context, e *Exam) error
	GetByID(ctx context.Context, id uuid.UUID) (*Exam, error)
	GetByCode(ctx context.Context, code string) (*Exam, error)
	Update(ctx context.Context, e *Exam) error
	List(ctx context.Context, f ExamFilter, limit, offset int) ([]*Exam, int, error)
}

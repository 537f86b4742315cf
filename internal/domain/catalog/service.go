package catalog

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/occhealth/occhealth/internal/platform/apperr"
)

type Service struct {
	exams ExamRepository
}

func NewService(exams ExamRepository) *Service {
	return &Service{exams: exams}
}

func normalizeExam(e *Exam) error {
	e.Code = strings.TrimSpace(e.Code)
	e.Name = strings.TrimSpace(e.Name)
	e.Category = strings.TrimSpace(e.Category)
	if e.Code == "" {
		return apperr.Validation("code is required")
	}
	if e.Name == "" {
		return apperr.Validation("name is required")
	}
	if e.Category == "" {
		return apperr.Validation("category is required")
	}
	if e.BasePrice < 0 {
		return apperr.Validation("base_price must not be negative")
	}
	e.ExamType = ParseExamType(string(e.ExamType))
	return nil
}

func (s *Service) CreateExam(ctx context.Context, e *Exam) error {
	if err := normalizeExam(e); err != nil {
		return err
	}
	return s.exams.Create(ctx, e)
}

func (s *Service) GetExam(ctx context.Context, id uuid.UUID) (*Exam, error) {
	return s.exams.GetByID(ctx, id)
}

func (s *Service) GetExamByCode(ctx context.Context, code string) (*Exam, error) {
	return s.exams.GetByCode(ctx, strings.TrimSpace(code))
}

// ExamUpdate carries the mutable fields; nil fields keep their value.
type ExamUpdate struct {
	Name      *string  `json:"name"`
	Category  *string  `json:"category"`
	ExamType  *string  `json:"exam_type"`
	BasePrice *float64 `json:"base_price"`
	Active    *bool    `json:"active"`
}

func (s *Service) UpdateExam(ctx context.Context, id uuid.UUID, u ExamUpdate) (*Exam, error) {
	e, err := s.exams.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Name != nil {
		e.Name = *u.Name
	}
	if u.Category != nil {
		e.Category = *u.Category
	}
	if u.ExamType != nil {
		e.ExamType = ExamType(*u.ExamType)
	}
	if u.BasePrice != nil {
		e.BasePrice = *u.BasePrice
	}
	if u.Active != nil {
		e.Active = *u.Active
	}
	if err := normalizeExam(e); err != nil {
		return nil, err
	}
	if err := s.exams.Update(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Service) ListExams(ctx context.Context, f ExamFilter, limit, offset int) ([]*Exam, int, error) {
	f.Name = strings.TrimSpace(f.Name)
	return s.exams.List(ctx, f, limit, offset)
}

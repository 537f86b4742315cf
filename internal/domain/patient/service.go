package patient

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/occhealth/occhealth/internal/platform/apperr"
	"github.com/occhealth/occhealth/pkg/textnorm"
)

const (
	DefaultDocumentType = "DNI"
	RecentLimit         = 20
	minSearchLen        = 2
)

var validate = validator.New()

type Service struct {
	patients PatientRepository
	history  HistoryRepository
	now      func() time.Time
}

func NewService(patients PatientRepository, history HistoryRepository) *Service {
	return &Service{patients: patients, history: history, now: time.Now}
}

func (s *Service) normalize(p *Patient) error {
	p.DocumentType = strings.ToUpper(strings.TrimSpace(p.DocumentType))
	if p.DocumentType == "" {
		p.DocumentType = DefaultDocumentType
	}
	p.DocumentNumber = strings.TrimSpace(p.DocumentNumber)
	p.Names = strings.TrimSpace(p.Names)
	p.Surnames = strings.TrimSpace(p.Surnames)
	if p.DocumentNumber == "" {
		return apperr.Validation("document_number is required")
	}
	if p.Names == "" {
		return apperr.Validation("names is required")
	}
	if p.Surnames == "" {
		return apperr.Validation("surnames is required")
	}
	if p.BirthDate.IsZero() {
		return apperr.Validation("birth_date is required")
	}
	if p.BirthDate.After(s.now()) {
		return apperr.Validation("birth_date cannot be in the future")
	}
	if p.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*p.Email))
		if err := validate.Var(email, "omitempty,email"); err != nil {
			return apperr.Validation("email %q is not a valid email", email)
		}
		p.Email = &email
		if email == "" {
			p.Email = nil
		}
	}
	return nil
}

func (s *Service) RegisterPatient(ctx context.Context, p *Patient) error {
	if err := s.normalize(p); err != nil {
		return err
	}
	return s.patients.Create(ctx, p)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) GetPatientByDocument(ctx context.Context, documentNumber string) (*Patient, error) {
	documentNumber = strings.TrimSpace(documentNumber)
	if documentNumber == "" {
		return nil, apperr.Validation("document number is required")
	}
	return s.patients.GetByDocument(ctx, documentNumber)
}

func (s *Service) UpdatePatient(ctx context.Context, p *Patient) error {
	if err := s.normalize(p); err != nil {
		return err
	}
	return s.patients.Update(ctx, p)
}

// SearchPatients does a case- and accent-insensitive substring search.
func (s *Service) SearchPatients(ctx context.Context, criterion, term string, limit, offset int) ([]*Patient, int, error) {
	by, ok := ParseCriterion(criterion)
	if !ok {
		return nil, 0, apperr.Validation("unknown search criterion %q", criterion)
	}
	folded := strings.TrimSpace(textnorm.Fold(term))
	if len([]rune(folded)) < minSearchLen {
		return nil, 0, apperr.Validation("search term must have at least %d characters", minSearchLen)
	}
	return s.patients.Search(ctx, by, folded, limit, offset)
}

func (s *Service) RecentPatients(ctx context.Context) ([]*Patient, error) {
	return s.patients.Recent(ctx, RecentLimit)
}

// -- Occupational History --

func (s *Service) AddHistory(ctx context.Context, h *OccupationalHistory) error {
	h.Employer = strings.TrimSpace(h.Employer)
	h.Position = strings.TrimSpace(h.Position)
	if h.Employer == "" {
		return apperr.Validation("employer is required")
	}
	if h.Position == "" {
		return apperr.Validation("position is required")
	}
	if h.StartDate != nil && h.EndDate != nil && h.EndDate.Before(*h.StartDate) {
		return apperr.Validation("end_date must not be before start_date")
	}
	if _, err := s.patients.GetByID(ctx, h.PatientID); err != nil {
		return err
	}
	return s.history.Add(ctx, h)
}

func (s *Service) ListHistory(ctx context.Context, patientID uuid.UUID) ([]*OccupationalHistory, error) {
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	return s.history.ListByPatient(ctx, patientID)
}

package company

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/occhealth/occhealth/internal/domain/catalog"
	"github.com/occhealth/occhealth/internal/platform/apperr"
)

// ExamLookup resolves catalog exams when a protocol is assembled.
type ExamLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*catalog.Exam, error)
}

// TxRunner runs fn in one database transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

var validate = validator.New()

type Service struct {
	companies CompanyRepository
	protocols ProtocolRepository
	exams     ExamLookup
	tx        TxRunner
}

func NewService(companies CompanyRepository, protocols ProtocolRepository, exams ExamLookup, tx TxRunner) *Service {
	return &Service{companies: companies, protocols: protocols, exams: exams, tx: tx}
}

// -- Company --

func normalizeCompany(c *Company) error {
	c.TaxID = strings.TrimSpace(c.TaxID)
	c.LegalName = strings.TrimSpace(c.LegalName)
	if c.TaxID == "" {
		return apperr.Validation("tax_id is required")
	}
	if c.LegalName == "" {
		return apperr.Validation("legal_name is required")
	}
	c.ContactEmail = trimOptional(c.ContactEmail)
	if c.ContactEmail != nil {
		if err := validate.Var(*c.ContactEmail, "email"); err != nil {
			return apperr.Validation("contact_email %q is not a valid email", *c.ContactEmail)
		}
	}
	return nil
}

// trimOptional trims s and maps blank values to nil.
func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func (s *Service) CreateCompany(ctx context.Context, c *Company) error {
	if err := normalizeCompany(c); err != nil {
		return err
	}
	return s.companies.Create(ctx, c)
}

func (s *Service) GetCompany(ctx context.Context, id uuid.UUID) (*Company, error) {
	return s.companies.GetByID(ctx, id)
}

func (s *Service) UpdateCompany(ctx context.Context, c *Company) error {
	if err := normalizeCompany(c); err != nil {
		return err
	}
	return s.companies.Update(ctx, c)
}

func (s *Service) ListCompanies(ctx context.Context, search string, limit, offset int) ([]*Company, int, error) {
	return s.companies.List(ctx, strings.TrimSpace(search), limit, offset)
}

// -- Protocol --

// resolveExams checks every requested exam against the catalog and assigns
// positions in request order.
func (s *Service) resolveExams(ctx context.Context, items []ExamItem) ([]ProtocolExam, error) {
	if len(items) == 0 {
		return nil, apperr.Validation("protocol must include at least one exam")
	}
	seen := make(map[uuid.UUID]bool, len(items))
	out := make([]ProtocolExam, 0, len(items))
	for i, item := range items {
		if item.ExamID == uuid.Nil {
			return nil, apperr.Validation("exams[%d]: exam_id is required", i)
		}
		if seen[item.ExamID] {
			return nil, apperr.Validation("exam %s is listed more than once", item.ExamID)
		}
		seen[item.ExamID] = true

		exam, err := s.exams.GetByID(ctx, item.ExamID)
		if err != nil {
			if apperr.KindOf(err) == apperr.KindNotFound {
				return nil, apperr.Validation("exam %s does not exist", item.ExamID)
			}
			return nil, err
		}
		if !exam.Active {
			return nil, apperr.Validation("exam %s (%s) is inactive", exam.Code, exam.Name)
		}
		price := exam.BasePrice
		if item.AgreedPrice != nil {
			price = *item.AgreedPrice
		}
		if price < 0 {
			return nil, apperr.Validation("agreed price for %s must not be negative", exam.Code)
		}
		out = append(out, ProtocolExam{
			ExamID:      exam.ID,
			ExamCode:    exam.Code,
			ExamName:    exam.Name,
			ExamType:    exam.ExamType,
			AgreedPrice: price,
			Position:    i + 1,
		})
	}
	return out, nil
}

// CreateProtocol stores the protocol and its exam details atomically.
func (s *Service) CreateProtocol(ctx context.Context, p *Protocol, items []ExamItem) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.CompanyID == uuid.Nil {
		return apperr.Validation("company_id is required")
	}
	if p.Name == "" {
		return apperr.Validation("name is required")
	}
	exams, err := s.resolveExams(ctx, items)
	if err != nil {
		return err
	}
	if _, err := s.companies.GetByID(ctx, p.CompanyID); err != nil {
		return err
	}
	p.Exams = exams
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		return s.protocols.Create(ctx, p)
	})
}

func (s *Service) GetProtocol(ctx context.Context, id uuid.UUID) (*Protocol, error) {
	return s.protocols.GetByID(ctx, id)
}

func (s *Service) ListProtocols(ctx context.Context, companyID uuid.UUID, activeOnly bool) ([]*Protocol, error) {
	if _, err := s.companies.GetByID(ctx, companyID); err != nil {
		return nil, err
	}
	return s.protocols.ListByCompany(ctx, companyID, activeOnly)
}

// ReplaceProtocolExams swaps the exam list and bumps the protocol version.
// Worklists of existing admissions are snapshots and stay as they were.
func (s *Service) ReplaceProtocolExams(ctx context.Context, id uuid.UUID, items []ExamItem) (*Protocol, error) {
	exams, err := s.resolveExams(ctx, items)
	if err != nil {
		return nil, err
	}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		_, err := s.protocols.ReplaceExams(ctx, id, exams)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.protocols.GetByID(ctx, id)
}

func (s *Service) SetProtocolActive(ctx context.Context, id uuid.UUID, active bool) error {
	return s.protocols.SetActive(ctx, id, active)
}

// DeleteProtocol refuses protocols that admissions still reference.
func (s *Service) DeleteProtocol(ctx context.Context, id uuid.UUID) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		n, err := s.protocols.CountAdmissions(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.Validation("protocol is referenced by %d admission(s); deactivate it instead", n)
		}
		return s.protocols.Delete(ctx, id)
	})
}

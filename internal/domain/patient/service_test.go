package patient

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/occhealth/occhealth/internal/platform/apperr"
	"github.com/occhealth/occhealth/pkg/textnorm"
)

// -- Mock Repositories --

type mockPatientRepo struct {
	patients map[uuid.UUID]*Patient
	seq      int
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{patients: make(map[uuid.UUID]*Patient)}
}

func (m *mockPatientRepo) Create(_ context.Context, p *Patient) error {
	for _, existing := range m.patients {
		if existing.DocumentNumber == p.DocumentNumber {
			return apperr.Validation("duplicate value violates patient_document_number_key")
		}
	}
	m.seq++
	p.ID = uuid.New()
	p.CreatedAt = time.Date(2026, 1, 1, 0, 0, m.seq, 0, time.UTC)
	m.patients[p.ID] = p
	return nil
}

func (m *mockPatientRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, apperr.NotFound("patient %s not found", id)
	}
	return p, nil
}

func (m *mockPatientRepo) GetByDocument(_ context.Context, doc string) (*Patient, error) {
	for _, p := range m.patients {
		if p.DocumentNumber == doc {
			return p, nil
		}
	}
	return nil, apperr.NotFound("patient %s not found", doc)
}

func (m *mockPatientRepo) Update(_ context.Context, p *Patient) error {
	m.patients[p.ID] = p
	return nil
}

func (m *mockPatientRepo) Search(_ context.Context, by Criterion, term string, limit, offset int) ([]*Patient, int, error) {
	var result []*Patient
	for _, p := range m.patients {
		var fields []string
		switch by {
		case ByDocument:
			fields = []string{p.DocumentNumber}
		case ByNames:
			fields = []string{p.Names}
		case BySurnames:
			fields = []string{p.Surnames}
		default:
			fields = []string{p.DocumentNumber, p.Names, p.Surnames}
		}
		for _, f := range fields {
			if strings.Contains(textnorm.Fold(f), term) {
				result = append(result, p)
				break
			}
		}
	}
	return result, len(result), nil
}

func (m *mockPatientRepo) Recent(_ context.Context, limit int) ([]*Patient, error) {
	var result []*Patient
	for _, p := range m.patients {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

type mockHistoryRepo struct {
	items []*OccupationalHistory
}

func (m *mockHistoryRepo) Add(_ context.Context, h *OccupationalHistory) error {
	h.ID = uuid.New()
	m.items = append(m.items, h)
	return nil
}

func (m *mockHistoryRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*OccupationalHistory, error) {
	var result []*OccupationalHistory
	for _, h := range m.items {
		if h.PatientID == patientID {
			result = append(result, h)
		}
	}
	return result, nil
}

func newTestService() *Service {
	svc := NewService(newMockPatientRepo(), &mockHistoryRepo{})
	svc.now = func() time.Time { return time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC) }
	return svc
}

func samplePatient(doc string) *Patient {
	return &Patient{
		DocumentNumber: doc,
		Names:          "José Luis",
		Surnames:       "Peña Ramírez",
		BirthDate:      time.Date(1990, 10, 20, 0, 0, 0, 0, time.UTC),
	}
}

func TestAge(t *testing.T) {
	birth := time.Date(1990, 10, 20, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		at   time.Time
		want int
	}{
		{time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), 35},
		{time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC), 36},
		{time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC), 0},
	}
	for _, tt := range tests {
		if got := Age(birth, tt.at); got != tt.want {
			t.Errorf("Age at %s = %d, want %d", tt.at.Format("2006-01-02"), got, tt.want)
		}
	}
}

func TestService_RegisterPatient(t *testing.T) {
	svc := newTestService()
	p := samplePatient(" 12345678 ")
	if err := svc.RegisterPatient(context.Background(), p); err != nil {
		t.Fatalf("RegisterPatient: %v", err)
	}
	if p.DocumentType != DefaultDocumentType {
		t.Errorf("expected default document type, got %q", p.DocumentType)
	}
	if p.DocumentNumber != "12345678" {
		t.Errorf("expected trimmed document, got %q", p.DocumentNumber)
	}
}

func TestService_RegisterPatient_Validation(t *testing.T) {
	svc := newTestService()
	cases := map[string]func(*Patient){
		"document":     func(p *Patient) { p.DocumentNumber = "  " },
		"names":        func(p *Patient) { p.Names = "" },
		"surnames":     func(p *Patient) { p.Surnames = "" },
		"birth date":   func(p *Patient) { p.BirthDate = time.Time{} },
		"future birth": func(p *Patient) { p.BirthDate = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC) },
		"email":        func(p *Patient) { bad := "jose.pena@"; p.Email = &bad },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := samplePatient("1")
			mutate(p)
			if err := svc.RegisterPatient(context.Background(), p); !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestService_RegisterPatient_Email(t *testing.T) {
	svc := newTestService()

	p := samplePatient("12345678")
	email := " Jose.Pena@Correo.pe "
	p.Email = &email
	if err := svc.RegisterPatient(context.Background(), p); err != nil {
		t.Fatalf("RegisterPatient: %v", err)
	}
	if p.Email == nil || *p.Email != "jose.pena@correo.pe" {
		t.Errorf("expected normalised email, got %v", p.Email)
	}

	blank := samplePatient("87654321")
	empty := "   "
	blank.Email = &empty
	if err := svc.RegisterPatient(context.Background(), blank); err != nil {
		t.Fatalf("RegisterPatient with blank email: %v", err)
	}
	if blank.Email != nil {
		t.Errorf("expected blank email to be cleared, got %q", *blank.Email)
	}
}

func TestService_RegisterPatient_DuplicateDocument(t *testing.T) {
	svc := newTestService()
	svc.RegisterPatient(context.Background(), samplePatient("12345678"))
	err := svc.RegisterPatient(context.Background(), samplePatient("12345678"))
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestService_SearchPatients_AccentInsensitive(t *testing.T) {
	svc := newTestService()
	svc.RegisterPatient(context.Background(), samplePatient("12345678"))

	for _, q := range []string{"PENA", "peña", "ramirez", "jose"} {
		items, total, err := svc.SearchPatients(context.Background(), "any", q, 20, 0)
		if err != nil {
			t.Fatalf("search %q: %v", q, err)
		}
		if total != 1 || len(items) != 1 {
			t.Errorf("search %q: expected 1 match, got %d", q, total)
		}
	}
}

func TestService_SearchPatients_Rejections(t *testing.T) {
	svc := newTestService()
	if _, _, err := svc.SearchPatients(context.Background(), "any", " a ", 20, 0); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for short term, got %v", err)
	}
	if _, _, err := svc.SearchPatients(context.Background(), "email", "abc", 20, 0); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for unknown criterion, got %v", err)
	}
}

func TestService_SearchPatients_ByCriterion(t *testing.T) {
	svc := newTestService()
	svc.RegisterPatient(context.Background(), samplePatient("12345678"))

	_, total, _ := svc.SearchPatients(context.Background(), "names", "ramirez", 20, 0)
	if total != 0 {
		t.Errorf("surname should not match a names search, got %d", total)
	}
	_, total, _ = svc.SearchPatients(context.Background(), "document", "3456", 20, 0)
	if total != 1 {
		t.Errorf("expected document substring match, got %d", total)
	}
}

func TestService_RecentPatients(t *testing.T) {
	svc := newTestService()
	for i := 0; i < RecentLimit+5; i++ {
		svc.RegisterPatient(context.Background(), samplePatient(uuid.NewString()))
	}
	items, err := svc.RecentPatients(context.Background())
	if err != nil {
		t.Fatalf("RecentPatients: %v", err)
	}
	if len(items) != RecentLimit {
		t.Errorf("expected %d patients, got %d", RecentLimit, len(items))
	}
}

func TestService_AddHistory(t *testing.T) {
	svc := newTestService()
	p := samplePatient("12345678")
	svc.RegisterPatient(context.Background(), p)

	start := time.Date(2018, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	err := svc.AddHistory(context.Background(), &OccupationalHistory{
		PatientID: p.ID, Employer: "Minera", Position: "Operador", StartDate: &start, EndDate: &end,
	})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for reversed dates, got %v", err)
	}

	err = svc.AddHistory(context.Background(), &OccupationalHistory{PatientID: p.ID, Employer: "Minera", Position: "Operador", StartDate: &start})
	if err != nil {
		t.Fatalf("AddHistory: %v", err)
	}
	items, _ := svc.ListHistory(context.Background(), p.ID)
	if len(items) != 1 {
		t.Errorf("expected 1 history entry, got %d", len(items))
	}

	err = svc.AddHistory(context.Background(), &OccupationalHistory{PatientID: uuid.New(), Employer: "X", Position: "Y"})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found for unknown patient, got %v", err)
	}
}

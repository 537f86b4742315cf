package circuit

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/occhealth/occhealth/internal/domain/catalog"
	"github.com/occhealth/occhealth/internal/domain/company"
	"github.com/occhealth/occhealth/internal/platform/apperr"
	"github.com/occhealth/occhealth/internal/platform/events"
	"github.com/occhealth/occhealth/internal/platform/registry"
)

// -- Mocks --

type resultKey struct {
	admission uuid.UUID
	exam      uuid.UUID
}

type mockRepo struct {
	patients     map[uuid.UUID]string
	companies    map[uuid.UUID]string
	admissions   map[uuid.UUID]*Admission
	entries      map[uuid.UUID]*WorklistEntry
	results      map[resultKey]*Result
	diagnoses    []*Diagnosis
	certificates []*Certificate
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		patients:   make(map[uuid.UUID]string),
		companies:  make(map[uuid.UUID]string),
		admissions: make(map[uuid.UUID]*Admission),
		entries:    make(map[uuid.UUID]*WorklistEntry),
		results:    make(map[resultKey]*Result),
	}
}

func (m *mockRepo) LockPatient(_ context.Context, id uuid.UUID) error {
	if _, ok := m.patients[id]; !ok {
		return apperr.NotFound("patient %s not found", id)
	}
	return nil
}

func (m *mockRepo) ShareLockProtocol(context.Context, uuid.UUID) error { return nil }

func (m *mockRepo) CreateAdmission(_ context.Context, a *Admission) error {
	a.ID = uuid.New()
	a.UpdatedAt = a.AdmittedAt
	m.admissions[a.ID] = a
	return nil
}

func (m *mockRepo) CreateEntries(_ context.Context, entries []*WorklistEntry) error {
	for _, e := range entries {
		e.ID = uuid.New()
		m.entries[e.ID] = e
	}
	return nil
}

func (m *mockRepo) GetAdmission(_ context.Context, id uuid.UUID) (*Admission, error) {
	a, ok := m.admissions[id]
	if !ok {
		return nil, apperr.NotFound("admission %s not found", id)
	}
	return a, nil
}

func (m *mockRepo) LockAdmission(ctx context.Context, id uuid.UUID) (*Admission, error) {
	return m.GetAdmission(ctx, id)
}

func (m *mockRepo) FindActive(_ context.Context, patientID uuid.UUID) (*Admission, error) {
	var best *Admission
	for _, a := range m.admissions {
		if a.PatientID != patientID || a.State != StateInCircuit {
			continue
		}
		if best == nil || a.AdmittedAt.After(best.AdmittedAt) ||
			(a.AdmittedAt.Equal(best.AdmittedAt) && a.ID.String() > best.ID.String()) {
			best = a
		}
	}
	if best == nil {
		return nil, apperr.NotFound("patient %s has no active admission", patientID)
	}
	return best, nil
}

func (m *mockRepo) UpdateAdmissionState(_ context.Context, a *Admission) error {
	m.admissions[a.ID] = a
	return nil
}

func (m *mockRepo) ListAdmissions(_ context.Context, f AdmissionFilter, limit, offset int) ([]*AdmissionSummary, int, error) {
	var out []*AdmissionSummary
	for _, a := range m.admissions {
		if f.State != "" && a.State != f.State {
			continue
		}
		if f.PatientID != nil && a.PatientID != *f.PatientID {
			continue
		}
		if f.CompanyID != nil && a.CompanyID != *f.CompanyID {
			continue
		}
		s := &AdmissionSummary{ID: a.ID, PatientID: a.PatientID, CompanyID: a.CompanyID, State: a.State, AdmittedAt: a.AdmittedAt}
		for _, e := range m.entries {
			if e.AdmissionID == a.ID {
				s.TotalEntries++
				if e.State == EntryPending {
					s.PendingEntries++
				}
			}
		}
		out = append(out, s)
	}
	return out, len(out), nil
}

func (m *mockRepo) GetEntry(_ context.Context, id uuid.UUID) (*WorklistEntry, error) {
	e, ok := m.entries[id]
	if !ok {
		return nil, apperr.NotFound("worklist entry %s not found", id)
	}
	return e, nil
}

func (m *mockRepo) LockEntry(ctx context.Context, id uuid.UUID) (*WorklistEntry, error) {
	return m.GetEntry(ctx, id)
}

func (m *mockRepo) ListEntries(_ context.Context, admissionID uuid.UUID) ([]*WorklistEntry, error) {
	var out []*WorklistEntry
	for _, e := range m.entries {
		if e.AdmissionID == admissionID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (m *mockRepo) UpdateEntry(_ context.Context, e *WorklistEntry) error {
	m.entries[e.ID] = e
	return nil
}

func (m *mockRepo) PendingWorklist(_ context.Context, t catalog.ExamType, limit int) ([]*WorklistItem, error) {
	var out []*WorklistItem
	for _, e := range m.entries {
		a := m.admissions[e.AdmissionID]
		if a.State != StateInCircuit || e.State != EntryPending || (t != "" && e.ExamType != t) {
			continue
		}
		out = append(out, &WorklistItem{
			EntryID: e.ID, AdmissionID: a.ID, PatientID: a.PatientID,
			ExamName: e.ExamName, ExamType: e.ExamType, State: e.State, AdmittedAt: a.AdmittedAt,
		})
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockRepo) LockResult(_ context.Context, admissionID, examID uuid.UUID) (*Result, error) {
	r, ok := m.results[resultKey{admissionID, examID}]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *mockRepo) UpsertResult(_ context.Context, r *Result) error {
	key := resultKey{r.AdmissionID, r.ExamID}
	if existing, ok := m.results[key]; ok {
		r.ID = existing.ID
		r.CreatedAt = existing.CreatedAt
	} else {
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		r.CreatedAt = time.Now()
	}
	r.UpdatedAt = time.Now()
	cp := *r
	m.results[key] = &cp
	return nil
}

func (m *mockRepo) ListResults(_ context.Context, admissionID uuid.UUID) ([]*Result, error) {
	var out []*Result
	for k, r := range m.results {
		if k.admission == admissionID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRepo) CreateDiagnosis(_ context.Context, d *Diagnosis) error {
	d.ID = uuid.New()
	d.CreatedAt = time.Now()
	m.diagnoses = append(m.diagnoses, d)
	return nil
}

func (m *mockRepo) ListDiagnoses(_ context.Context, admissionID uuid.UUID) ([]*Diagnosis, error) {
	var out []*Diagnosis
	for _, d := range m.diagnoses {
		if d.AdmissionID == admissionID {
			out = append(out, d)
		}
	}
	return out, nil
}

// CreateCertificate enforces the one-active-certificate index.
func (m *mockRepo) CreateCertificate(_ context.Context, c *Certificate) error {
	for _, existing := range m.certificates {
		if existing.AdmissionID == c.AdmissionID && existing.Status == CertificateActive {
			return apperr.Validation("duplicate value violates uq_certificate_active")
		}
	}
	cp := *c
	m.certificates = append(m.certificates, &cp)
	return nil
}

func (m *mockRepo) LockActiveCertificate(_ context.Context, admissionID uuid.UUID) (*Certificate, error) {
	for _, c := range m.certificates {
		if c.AdmissionID == admissionID && c.Status == CertificateActive {
			cp := *c
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("admission %s has no active certificate", admissionID)
}

func (m *mockRepo) MarkSuperseded(_ context.Context, id, supersededBy uuid.UUID) error {
	for _, c := range m.certificates {
		if c.ID == id {
			c.Status = CertificateSuperseded
			c.SupersededBy = &supersededBy
			return nil
		}
	}
	return apperr.NotFound("certificate %s not found", id)
}

func (m *mockRepo) ListCertificates(_ context.Context, admissionID uuid.UUID) ([]*Certificate, error) {
	var out []*Certificate
	for _, c := range m.certificates {
		if c.AdmissionID == admissionID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockRepo) GetCertificateRecord(_ context.Context, documentID uuid.UUID) (*CertificateRecord, error) {
	for _, c := range m.certificates {
		if c.DocumentID == documentID {
			a := m.admissions[c.AdmissionID]
			return &CertificateRecord{
				Certificate:     *c,
				PatientName:     m.patients[a.PatientID],
				PatientDocument: "12345678",
				CompanyName:     m.companies[a.CompanyID],
			}, nil
		}
	}
	return nil, apperr.NotFound("certificate %s not found", documentID)
}

type mockProtocols struct {
	protocols map[uuid.UUID]*company.Protocol
}

func (m *mockProtocols) GetProtocol(_ context.Context, id uuid.UUID) (*company.Protocol, error) {
	p, ok := m.protocols[id]
	if !ok {
		return nil, apperr.NotFound("protocol %s not found", id)
	}
	return p, nil
}

type passthroughTx struct{}

func (passthroughTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type mockRegistrar struct {
	records map[string]registry.Record
	puts    int
}

func (m *mockRegistrar) Put(_ context.Context, rec registry.Record) error {
	if m.records == nil {
		m.records = make(map[string]registry.Record)
	}
	m.records[rec.DocumentID] = rec
	m.puts++
	return nil
}

// -- Fixture --

var fixedNow = time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

type fixture struct {
	svc       *Service
	repo      *mockRepo
	protocols *mockProtocols
	pub       *recordingPublisher
	reg       *mockRegistrar
	clock     time.Time

	patientID uuid.UUID
	companyID uuid.UUID
	physician uuid.UUID
}

func newFixture() *fixture {
	f := &fixture{
		repo:      newMockRepo(),
		protocols: &mockProtocols{protocols: make(map[uuid.UUID]*company.Protocol)},
		pub:       &recordingPublisher{},
		reg:       &mockRegistrar{},
		clock:     fixedNow,
		patientID: uuid.New(),
		companyID: uuid.New(),
		physician: uuid.New(),
	}
	f.repo.patients[f.patientID] = "Peña Ramírez, José Luis"
	f.repo.companies[f.companyID] = "Acme S.A."
	f.svc = NewService(f.repo, f.protocols, passthroughTx{}, f.pub, zerolog.Nop()).WithRegistry(f.reg)
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) tick(d time.Duration) {
	f.clock = f.clock.Add(d)
}

// protocol registers an active protocol for the fixture company with one
// exam per type.
func (f *fixture) protocol(types ...catalog.ExamType) *company.Protocol {
	p := &company.Protocol{
		ID:        uuid.New(),
		CompanyID: f.companyID,
		Name:      "Pre-ocupacional",
		Active:    true,
		Version:   1,
	}
	for i, t := range types {
		p.Exams = append(p.Exams, company.ProtocolExam{
			ExamID:      uuid.New(),
			ExamName:    string(t),
			ExamType:    t,
			AgreedPrice: 50,
			Position:    i + 1,
		})
	}
	f.protocols.protocols[p.ID] = p
	return p
}

func (f *fixture) admit(p *company.Protocol) (*AdmissionDetail, error) {
	return f.svc.CreateAdmission(context.Background(), CreateAdmissionInput{
		PatientID:  f.patientID,
		CompanyID:  f.companyID,
		ProtocolID: p.ID,
	}, uuid.New())
}

func conclusion(s string) *string { return &s }

package circuit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/occhealth/occhealth/internal/domain/catalog"
	"github.com/occhealth/occhealth/internal/domain/company"
	"github.com/occhealth/occhealth/internal/platform/apperr"
	"github.com/occhealth/occhealth/internal/platform/events"
	"github.com/occhealth/occhealth/internal/platform/registry"
)

// DefaultValidityDays is how long a certificate stays valid.
const DefaultValidityDays = 365

// ProtocolLookup loads a protocol with its exam list.
type ProtocolLookup interface {
	GetProtocol(ctx context.Context, id uuid.UUID) (*company.Protocol, error)
}

// TxRunner runs fn in one database transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Registrar receives the public projection of issued certificates.
type Registrar interface {
	Put(ctx context.Context, rec registry.Record) error
}

type Service struct {
	repo         Repository
	protocols    ProtocolLookup
	tx           TxRunner
	events       events.Publisher
	registry     Registrar
	logger       zerolog.Logger
	validityDays int
	now          func() time.Time
}

func NewService(repo Repository, protocols ProtocolLookup, tx TxRunner, pub events.Publisher, logger zerolog.Logger) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{
		repo:         repo,
		protocols:    protocols,
		tx:           tx,
		events:       pub,
		logger:       logger,
		validityDays: DefaultValidityDays,
		now:          time.Now,
	}
}

// WithRegistry publishes issued certificates to reg after commit.
func (s *Service) WithRegistry(reg Registrar) *Service {
	s.registry = reg
	return s
}

// WithValidityDays overrides DefaultValidityDays.
func (s *Service) WithValidityDays(days int) *Service {
	if days > 0 {
		s.validityDays = days
	}
	return s
}

// -- Admission --

type CreateAdmissionInput struct {
	PatientID       uuid.UUID `json:"patient_id"`
	CompanyID       uuid.UUID `json:"company_id"`
	ProtocolID      uuid.UUID `json:"protocol_id"`
	PositionApplied *string   `json:"position_applied,omitempty"`
}

func (in CreateAdmissionInput) validate() error {
	switch {
	case in.PatientID == uuid.Nil:
		return apperr.Validation("patient_id is required")
	case in.CompanyID == uuid.Nil:
		return apperr.Validation("company_id is required")
	case in.ProtocolID == uuid.Nil:
		return apperr.Validation("protocol_id is required")
	}
	return nil
}

// CreateAdmission opens an admission and snapshots the protocol's exams into
// its worklist in the same transaction. A patient may have only one
// admission in circuit at a time.
func (s *Service) CreateAdmission(ctx context.Context, in CreateAdmissionInput, actor uuid.UUID) (*AdmissionDetail, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if in.PositionApplied != nil {
		pos := strings.TrimSpace(*in.PositionApplied)
		in.PositionApplied = &pos
		if pos == "" {
			in.PositionApplied = nil
		}
	}

	var a *Admission
	var entries []*WorklistEntry
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.LockPatient(ctx, in.PatientID); err != nil {
			return err
		}
		if err := s.repo.ShareLockProtocol(ctx, in.ProtocolID); err != nil {
			return err
		}
		p, err := s.protocols.GetProtocol(ctx, in.ProtocolID)
		if err != nil {
			return err
		}
		if p.CompanyID != in.CompanyID {
			return apperr.Validation("protocol %s does not belong to company %s", p.ID, in.CompanyID)
		}
		if !p.Active {
			return apperr.Validation("protocol %q is inactive", p.Name)
		}
		if len(p.Exams) == 0 {
			return apperr.Validation("protocol %q has no exams", p.Name)
		}

		open, err := s.repo.FindActive(ctx, in.PatientID)
		switch {
		case err == nil:
			return apperr.Validation("patient already has admission %s in circuit", open.ID)
		case !errors.Is(err, apperr.ErrNotFound):
			return err
		}

		a = &Admission{
			PatientID:       in.PatientID,
			CompanyID:       in.CompanyID,
			ProtocolID:      p.ID,
			ProtocolVersion: p.Version,
			PositionApplied: in.PositionApplied,
			State:           StateInCircuit,
			CreatedBy:       actor,
			AdmittedAt:      s.now(),
		}
		if err := s.repo.CreateAdmission(ctx, a); err != nil {
			return err
		}
		entries = snapshotEntries(a.ID, p.Exams)
		return s.repo.CreateEntries(ctx, entries)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.AdmissionCreated, a, nil, map[string]interface{}{"entries": len(entries)})
	return &AdmissionDetail{
		Admission:    a,
		StateLabel:   a.State.Label(),
		Entries:      entries,
		Results:      []*Result{},
		Diagnoses:    []*Diagnosis{},
		Certificates: []*Certificate{},
	}, nil
}

// snapshotEntries copies the protocol's exams in protocol order.
func snapshotEntries(admissionID uuid.UUID, exams []company.ProtocolExam) []*WorklistEntry {
	out := make([]*WorklistEntry, 0, len(exams))
	for i, pe := range exams {
		out = append(out, &WorklistEntry{
			AdmissionID: admissionID,
			ExamID:      pe.ExamID,
			ExamName:    pe.ExamName,
			ExamType:    catalog.ParseExamType(string(pe.ExamType)),
			AgreedPrice: pe.AgreedPrice,
			Position:    i + 1,
			State:       EntryPending,
		})
	}
	return out
}

func (s *Service) GetAdmission(ctx context.Context, id uuid.UUID) (*AdmissionDetail, error) {
	a, err := s.repo.GetAdmission(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, a)
}

func (s *Service) GetEntry(ctx context.Context, id uuid.UUID) (*WorklistEntry, error) {
	return s.repo.GetEntry(ctx, id)
}

// ActiveAdmission is FindActive with the admission's worklist and results.
func (s *Service) ActiveAdmission(ctx context.Context, patientID uuid.UUID) (*AdmissionDetail, error) {
	a, err := s.repo.FindActive(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, a)
}

func (s *Service) detail(ctx context.Context, a *Admission) (*AdmissionDetail, error) {
	d := &AdmissionDetail{Admission: a, StateLabel: a.State.Label()}
	var err error
	if d.Entries, err = s.repo.ListEntries(ctx, a.ID); err != nil {
		return nil, err
	}
	if d.Results, err = s.repo.ListResults(ctx, a.ID); err != nil {
		return nil, err
	}
	if d.Diagnoses, err = s.repo.ListDiagnoses(ctx, a.ID); err != nil {
		return nil, err
	}
	if d.Certificates, err = s.repo.ListCertificates(ctx, a.ID); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) ListAdmissions(ctx context.Context, f AdmissionFilter, limit, offset int) ([]*AdmissionSummary, int, error) {
	if f.State != "" && !f.State.Valid() {
		return nil, 0, apperr.Validation("unknown admission state %q", f.State)
	}
	return s.repo.ListAdmissions(ctx, f, limit, offset)
}

// Worklist lists pending exams of admissions in circuit, oldest first. An
// empty examType lists every station.
func (s *Service) Worklist(ctx context.Context, examType string, limit int) ([]*WorklistItem, error) {
	var t catalog.ExamType
	if examType != "" {
		t = catalog.ExamType(strings.ToLower(strings.TrimSpace(examType)))
		if !t.Known() {
			return nil, apperr.Validation("unknown exam type %q", examType)
		}
	}
	return s.repo.PendingWorklist(ctx, t, limit)
}

// -- Results --

// ResultInput is what a clinical station submits. A nil Conclusion keeps the
// stored one.
type ResultInput struct {
	Payload    map[string]interface{} `json:"payload"`
	Conclusion *string                `json:"conclusion,omitempty"`
}

// RecordResult saves a result against the patient's active admission. The
// target is the single worklist entry of that exam type.
func (s *Service) RecordResult(ctx context.Context, patientID uuid.UUID, examType string, in ResultInput, actor uuid.UUID) (*Result, error) {
	t, err := parseTargetType(examType)
	if err != nil {
		return nil, err
	}
	var res *Result
	var a *Admission
	var e *WorklistEntry
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		active, err := s.repo.FindActive(ctx, patientID)
		if err != nil {
			return err
		}
		if a, err = s.repo.LockAdmission(ctx, active.ID); err != nil {
			return err
		}
		e, res, err = s.recordByType(ctx, a, t, in, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.EntryCompleted, a, &e.ID, map[string]interface{}{"exam_type": e.ExamType})
	return res, nil
}

// RecordAdmissionResult is RecordResult for a known admission.
func (s *Service) RecordAdmissionResult(ctx context.Context, admissionID uuid.UUID, examType string, in ResultInput, actor uuid.UUID) (*Result, error) {
	t, err := parseTargetType(examType)
	if err != nil {
		return nil, err
	}
	var res *Result
	var a *Admission
	var e *WorklistEntry
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if a, err = s.repo.LockAdmission(ctx, admissionID); err != nil {
			return err
		}
		e, res, err = s.recordByType(ctx, a, t, in, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.EntryCompleted, a, &e.ID, map[string]interface{}{"exam_type": e.ExamType})
	return res, nil
}

func parseTargetType(s string) (catalog.ExamType, error) {
	t := catalog.ExamType(strings.ToLower(strings.TrimSpace(s)))
	if t == "" {
		return "", apperr.Validation("exam_type is required")
	}
	if !t.Known() {
		return "", apperr.Validation("unknown exam type %q", s)
	}
	return t, nil
}

func (s *Service) recordByType(ctx context.Context, a *Admission, t catalog.ExamType, in ResultInput, actor uuid.UUID) (*WorklistEntry, *Result, error) {
	if !a.State.AcceptsClinicalWrites() {
		return nil, nil, apperr.Validation("admission %s is %s", a.ID, a.State.Label())
	}
	entries, err := s.repo.ListEntries(ctx, a.ID)
	if err != nil {
		return nil, nil, err
	}
	target, err := matchEntry(a.ID, entries, t)
	if err != nil {
		return nil, nil, err
	}
	e, err := s.repo.LockEntry(ctx, target.ID)
	if err != nil {
		return nil, nil, err
	}
	res, err := s.complete(ctx, a, e, in, actor)
	return e, res, err
}

// matchEntry never guesses: no entry of type t, or more than one, is an
// error.
func matchEntry(admissionID uuid.UUID, entries []*WorklistEntry, t catalog.ExamType) (*WorklistEntry, error) {
	if len(entries) == 0 {
		return nil, apperr.NotFound("admission %s has no worklist entries", admissionID)
	}
	var found []*WorklistEntry
	for _, e := range entries {
		if e.ExamType == t {
			found = append(found, e)
		}
	}
	switch len(found) {
	case 0:
		return nil, apperr.NotFound("admission %s has no %s exam", admissionID, t)
	case 1:
		return found[0], nil
	default:
		return nil, apperr.Validation("admission %s has %d %s exams; complete one by entry id", admissionID, len(found), t)
	}
}

// CompleteEntry saves a result against one worklist entry.
func (s *Service) CompleteEntry(ctx context.Context, entryID uuid.UUID, in ResultInput, actor uuid.UUID) (*Result, error) {
	var res *Result
	var a *Admission
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		probe, err := s.repo.GetEntry(ctx, entryID)
		if err != nil {
			return err
		}
		if a, err = s.repo.LockAdmission(ctx, probe.AdmissionID); err != nil {
			return err
		}
		if !a.State.AcceptsClinicalWrites() {
			return apperr.Validation("admission %s is %s", a.ID, a.State.Label())
		}
		e, err := s.repo.LockEntry(ctx, entryID)
		if err != nil {
			return err
		}
		res, err = s.complete(ctx, a, e, in, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.EntryCompleted, a, &entryID, nil)
	return res, nil
}

// complete merges the input into the stored result and marks the entry
// done. Callers hold the admission and entry locks.
func (s *Service) complete(ctx context.Context, a *Admission, e *WorklistEntry, in ResultInput, actor uuid.UUID) (*Result, error) {
	if !e.State.CanTransitionTo(EntryDone) {
		return nil, apperr.Validation("%s is %s and can no longer change", e.ExamName, e.State.Label())
	}
	prev, err := s.repo.LockResult(ctx, a.ID, e.ExamID)
	if err != nil {
		return nil, err
	}
	var stored map[string]interface{}
	if prev != nil {
		stored = prev.Payload
	}
	payload, err := MergePayload(e.ExamType, stored, in.Payload)
	if err != nil {
		return nil, err
	}

	res := &Result{
		AdmissionID: a.ID,
		ExamID:      e.ExamID,
		EntryID:     e.ID,
		Payload:     payload,
		RecordedBy:  actor,
	}
	switch {
	case in.Conclusion != nil:
		res.Conclusion = strings.TrimSpace(*in.Conclusion)
	case prev != nil && prev.Conclusion != defaultConclusion(e.ExamType, prev.Payload):
		res.Conclusion = prev.Conclusion
	}
	if res.Conclusion == "" {
		res.Conclusion = defaultConclusion(e.ExamType, payload)
	}
	if prev != nil {
		res.ID = prev.ID
	}
	if err := s.repo.UpsertResult(ctx, res); err != nil {
		return nil, err
	}

	now := s.now()
	e.State = EntryDone
	e.EvaluatorID = &actor
	e.CompletedAt = &now
	if err := s.repo.UpdateEntry(ctx, e); err != nil {
		return nil, err
	}
	return res, nil
}

// ValidateEntry freezes a done entry.
func (s *Service) ValidateEntry(ctx context.Context, entryID uuid.UUID, actor uuid.UUID) (*WorklistEntry, error) {
	var a *Admission
	var e *WorklistEntry
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		probe, err := s.repo.GetEntry(ctx, entryID)
		if err != nil {
			return err
		}
		if a, err = s.repo.LockAdmission(ctx, probe.AdmissionID); err != nil {
			return err
		}
		if !a.State.AcceptsClinicalWrites() {
			return apperr.Validation("admission %s is %s", a.ID, a.State.Label())
		}
		if e, err = s.repo.LockEntry(ctx, entryID); err != nil {
			return err
		}
		if e.State != EntryDone {
			return apperr.Validation("only a done exam can be validated; %s is %s", e.ExamName, e.State.Label())
		}
		now := s.now()
		e.State = EntryValidated
		e.ValidatedBy = &actor
		e.ValidatedAt = &now
		return s.repo.UpdateEntry(ctx, e)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.EntryValidated, a, &entryID, nil)
	return e, nil
}

// -- Transitions --

func (s *Service) transition(ctx context.Context, id uuid.UUID, next AdmissionState, apply func(a *Admission)) (*Admission, error) {
	var a *Admission
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if a, err = s.repo.LockAdmission(ctx, id); err != nil {
			return err
		}
		if !a.State.CanTransitionTo(next) {
			return apperr.Validation("admission %s cannot move from %s to %s", a.ID, a.State.Label(), next.Label())
		}
		a.State = next
		if apply != nil {
			apply(a)
		}
		return s.repo.UpdateAdmissionState(ctx, a)
	})
	return a, err
}

// SendToAudit hands an admission to the auditor. Results may still be
// amended while it is in audit.
func (s *Service) SendToAudit(ctx context.Context, id uuid.UUID, actor uuid.UUID) (*Admission, error) {
	a, err := s.transition(ctx, id, StateAudit, nil)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.AdmissionAudit, a, nil, map[string]interface{}{"by": actor})
	return a, nil
}

func (s *Service) Void(ctx context.Context, id uuid.UUID, reason string, actor uuid.UUID) (*Admission, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validation("a reason is required to void an admission")
	}
	a, err := s.transition(ctx, id, StateVoided, func(a *Admission) {
		now := s.now()
		a.ClosedAt = &now
		a.VoidReason = &reason
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.AdmissionVoided, a, nil, map[string]interface{}{"by": actor, "reason": reason})
	return a, nil
}

// -- Diagnoses --

type DiagnosisInput struct {
	Code        string        `json:"code" validate:"required,icd10"`
	Description string        `json:"description" validate:"required"`
	Type        DiagnosisType `json:"diagnosis_type" validate:"oneof=presumptive definitive repeat"`
}

func (s *Service) AddDiagnosis(ctx context.Context, admissionID uuid.UUID, in DiagnosisInput, actor uuid.UUID) (*Diagnosis, error) {
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	in.Description = strings.TrimSpace(in.Description)
	if in.Type == "" {
		in.Type = DiagnosisPresumptive
	}
	if err := validate.Struct(in); err != nil {
		return nil, validationError("invalid diagnosis", err)
	}

	d := &Diagnosis{
		AdmissionID: admissionID,
		Code:        in.Code,
		Description: in.Description,
		Type:        in.Type,
		CreatedBy:   actor,
	}
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.LockAdmission(ctx, admissionID)
		if err != nil {
			return err
		}
		if !a.State.AcceptsClinicalWrites() {
			return apperr.Validation("admission %s is %s", a.ID, a.State.Label())
		}
		return s.repo.CreateDiagnosis(ctx, d)
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// -- Certificates --

// CertificateInput carries the physician's decision. A nil Verdict accepts
// the derived one.
type CertificateInput struct {
	Verdict         *Verdict `json:"verdict,omitempty"`
	Restrictions    string   `json:"restrictions"`
	Recommendations string   `json:"recommendations"`
}

// derive checks the worklist is complete and resolves the verdict from the
// admission's results.
func (s *Service) derive(ctx context.Context, a *Admission, in CertificateInput) (derived, final Verdict, err error) {
	entries, err := s.repo.ListEntries(ctx, a.ID)
	if err != nil {
		return "", "", err
	}
	if len(entries) == 0 {
		return "", "", apperr.Validation("admission %s has no worklist entries", a.ID)
	}
	pending := 0
	for _, e := range entries {
		if e.State == EntryPending {
			pending++
		}
	}
	if pending > 0 {
		return "", "", apperr.Validation("%d of %d exams are still pending", pending, len(entries))
	}
	results, err := s.repo.ListResults(ctx, a.ID)
	if err != nil {
		return "", "", err
	}
	conclusions := make([]string, 0, len(results))
	for _, r := range results {
		conclusions = append(conclusions, r.Conclusion)
	}
	derived = DeriveVerdict(conclusions)
	final, err = ResolveVerdict(derived, in.Verdict, in.Restrictions)
	return derived, final, err
}

func (s *Service) newCertificate(a *Admission, derived, final Verdict, in CertificateInput, actor uuid.UUID) *Certificate {
	issued := s.now()
	return &Certificate{
		ID:              uuid.New(),
		AdmissionID:     a.ID,
		DocumentID:      uuid.New(),
		Verdict:         final,
		DerivedVerdict:  derived,
		Restrictions:    strings.TrimSpace(in.Restrictions),
		Recommendations: strings.TrimSpace(in.Recommendations),
		SignedBy:        actor,
		IssuedAt:        issued,
		ExpiresAt:       issued.AddDate(0, 0, s.validityDays),
		Status:          CertificateActive,
	}
}

// IssueCertificate closes a completed admission with its aptitude
// certificate.
func (s *Service) IssueCertificate(ctx context.Context, admissionID uuid.UUID, in CertificateInput, actor uuid.UUID) (*Certificate, error) {
	var a *Admission
	var cert *Certificate
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if a, err = s.repo.LockAdmission(ctx, admissionID); err != nil {
			return err
		}
		if !a.State.CanTransitionTo(StateClosed) {
			return apperr.Validation("admission %s is %s", a.ID, a.State.Label())
		}
		derived, final, err := s.derive(ctx, a, in)
		if err != nil {
			return err
		}
		cert = s.newCertificate(a, derived, final, in, actor)
		if err := s.repo.CreateCertificate(ctx, cert); err != nil {
			return err
		}
		a.State = StateClosed
		a.ClosedAt = &cert.IssuedAt
		return s.repo.UpdateAdmissionState(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.CertificateIssued, a, nil, map[string]interface{}{
		"document_id": cert.DocumentID,
		"verdict":     cert.Verdict,
	})
	s.register(ctx, cert.DocumentID)
	return cert, nil
}

// SupersedeCertificate replaces the active certificate of a closed
// admission. The old one is kept and points at its replacement.
func (s *Service) SupersedeCertificate(ctx context.Context, admissionID uuid.UUID, in CertificateInput, actor uuid.UUID) (*Certificate, error) {
	var a *Admission
	var prev, cert *Certificate
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if a, err = s.repo.LockAdmission(ctx, admissionID); err != nil {
			return err
		}
		if a.State != StateClosed {
			return apperr.Validation("only a closed admission can be re-certified; %s is %s", a.ID, a.State.Label())
		}
		if prev, err = s.repo.LockActiveCertificate(ctx, a.ID); err != nil {
			return err
		}
		derived, final, err := s.derive(ctx, a, in)
		if err != nil {
			return err
		}
		cert = s.newCertificate(a, derived, final, in, actor)
		// The active-certificate index allows one active row, so the old
		// one is retired first.
		if err := s.repo.MarkSuperseded(ctx, prev.ID, cert.DocumentID); err != nil {
			return err
		}
		prev.Status = CertificateSuperseded
		prev.SupersededBy = &cert.DocumentID
		return s.repo.CreateCertificate(ctx, cert)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.CertificateIssued, a, nil, map[string]interface{}{
		"document_id": cert.DocumentID,
		"verdict":     cert.Verdict,
		"supersedes":  prev.DocumentID,
	})
	s.register(ctx, prev.DocumentID, cert.DocumentID)
	return cert, nil
}

// VerifyCertificate is the public lookup by document id.
func (s *Service) VerifyCertificate(ctx context.Context, documentID uuid.UUID) (*CertificateRecord, error) {
	return s.repo.GetCertificateRecord(ctx, documentID)
}

// -- Side effects --

// publish runs after commit; failures are logged and never undo the write.
func (s *Service) publish(ctx context.Context, typ string, a *Admission, entryID *uuid.UUID, data map[string]interface{}) {
	ev := events.Event{
		Type:        typ,
		AdmissionID: a.ID,
		PatientID:   a.PatientID,
		EntryID:     entryID,
		Timestamp:   s.now(),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err == nil {
			ev.Data = raw
		}
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Warn().Err(err).Str("event", typ).Str("admission_id", a.ID.String()).Msg("event publish failed")
	}
}

func (s *Service) register(ctx context.Context, documentIDs ...uuid.UUID) {
	if s.registry == nil {
		return
	}
	for _, id := range documentIDs {
		rec, err := s.repo.GetCertificateRecord(ctx, id)
		if err == nil {
			err = s.registry.Put(ctx, RegistryRecord(rec))
		}
		if err != nil {
			s.logger.Warn().Err(err).Str("document_id", id.String()).Msg("certificate registry publish failed")
		}
	}
}

// RegistryRecord is the public projection of a certificate.
func RegistryRecord(rec *CertificateRecord) registry.Record {
	out := registry.Record{
		DocumentID:      rec.DocumentID.String(),
		AdmissionID:     rec.AdmissionID.String(),
		PatientDocument: rec.PatientDocument,
		PatientName:     rec.PatientName,
		CompanyName:     rec.CompanyName,
		Verdict:         string(rec.Verdict),
		Restrictions:    rec.Restrictions,
		Status:          string(rec.Status),
		IssuedAt:        rec.IssuedAt,
		ExpiresAt:       rec.ExpiresAt,
	}
	if rec.SupersededBy != nil {
		out.SupersededBy = rec.SupersededBy.String()
	}
	return out
}

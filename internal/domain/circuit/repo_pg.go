package circuit

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/occhealth/occhealth/internal/domain/catalog"
	"github.com/occhealth/occhealth/internal/platform/apperr"
	"github.com/occhealth/occhealth/internal/platform/db"
)

// lockTimeout bounds how long a writer waits for a row held by another
// request before failing with a conflict.
const lockTimeout = "5s"

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

// requireTx guards the Lock* methods; a row lock outside a transaction is
// released as soon as the statement ends.
func requireTx(ctx context.Context) error {
	if db.TxFromContext(ctx) == nil {
		return apperr.Persistence(fmt.Errorf("row lock requested outside a transaction"))
	}
	return nil
}

func (r *repoPG) setLockTimeout(ctx context.Context) error {
	_, err := r.conn(ctx).Exec(ctx, `SET LOCAL lock_timeout = '`+lockTimeout+`'`)
	return apperr.FromPG(err)
}

func (r *repoPG) LockPatient(ctx context.Context, patientID uuid.UUID) error {
	if err := requireTx(ctx); err != nil {
		return err
	}
	if err := r.setLockTimeout(ctx); err != nil {
		return err
	}
	var id uuid.UUID
	err := r.conn(ctx).QueryRow(ctx, `SELECT id FROM patient WHERE id = $1 FOR UPDATE`, patientID).Scan(&id)
	if err == pgx.ErrNoRows {
		return apperr.NotFound("patient %s not found", patientID)
	}
	return apperr.FromPG(err)
}

// ShareLockProtocol blocks concurrent exam-list replacement until the
// caller's transaction ends, so the snapshot reads one protocol version.
func (r *repoPG) ShareLockProtocol(ctx context.Context, protocolID uuid.UUID) error {
	if err := requireTx(ctx); err != nil {
		return err
	}
	var id uuid.UUID
	err := r.conn(ctx).QueryRow(ctx, `SELECT id FROM protocol WHERE id = $1 FOR SHARE`, protocolID).Scan(&id)
	if err == pgx.ErrNoRows {
		return apperr.NotFound("protocol %s not found", protocolID)
	}
	return apperr.FromPG(err)
}

// =========== Admissions ===========

const admissionCols = `id, patient_id, company_id, protocol_id, protocol_version, position_applied, state,
	created_by, admitted_at, closed_at, void_reason, updated_at`

func scanAdmission(row pgx.Row) (*Admission, error) {
	var a Admission
	err := row.Scan(&a.ID, &a.PatientID, &a.CompanyID, &a.ProtocolID, &a.ProtocolVersion, &a.PositionApplied,
		&a.State, &a.CreatedBy, &a.AdmittedAt, &a.ClosedAt, &a.VoidReason, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *repoPG) CreateAdmission(ctx context.Context, a *Admission) error {
	a.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO admission (id, patient_id, company_id, protocol_id, protocol_version, position_applied,
			state, created_by, admitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING updated_at`,
		a.ID, a.PatientID, a.CompanyID, a.ProtocolID, a.ProtocolVersion, a.PositionApplied,
		a.State, a.CreatedBy, a.AdmittedAt,
	).Scan(&a.UpdatedAt)
	return apperr.FromPG(err)
}

// CreateEntries inserts the whole worklist in one round trip.
func (r *repoPG) CreateEntries(ctx context.Context, entries []*WorklistEntry) error {
	batch := &pgx.Batch{}
	for _, e := range entries {
		e.ID = uuid.New()
		batch.Queue(`
			INSERT INTO worklist_entry (id, admission_id, exam_id, exam_name, exam_type, agreed_price, position, state)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			e.ID, e.AdmissionID, e.ExamID, e.ExamName, e.ExamType, e.AgreedPrice, e.Position, e.State)
	}
	br := r.conn(ctx).SendBatch(ctx, batch)
	defer br.Close()
	for range entries {
		if _, err := br.Exec(); err != nil {
			return apperr.FromPG(err)
		}
	}
	return nil
}

func (r *repoPG) GetAdmission(ctx context.Context, id uuid.UUID) (*Admission, error) {
	a, err := scanAdmission(r.conn(ctx).QueryRow(ctx, `SELECT `+admissionCols+` FROM admission WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, apperr.NotFound("admission %s not found", id)
	}
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	return a, nil
}

func (r *repoPG) LockAdmission(ctx context.Context, id uuid.UUID) (*Admission, error) {
	if err := requireTx(ctx); err != nil {
		return nil, err
	}
	if err := r.setLockTimeout(ctx); err != nil {
		return nil, err
	}
	a, err := scanAdmission(r.conn(ctx).QueryRow(ctx, `SELECT `+admissionCols+` FROM admission WHERE id = $1 FOR UPDATE`, id))
	if err == pgx.ErrNoRows {
		return nil, apperr.NotFound("admission %s not found", id)
	}
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	return a, nil
}

func (r *repoPG) FindActive(ctx context.Context, patientID uuid.UUID) (*Admission, error) {
	a, err := scanAdmission(r.conn(ctx).QueryRow(ctx, `
		SELECT `+admissionCols+` FROM admission
		WHERE patient_id = $1 AND state = $2
		ORDER BY admitted_at DESC, id DESC
		LIMIT 1`, patientID, StateInCircuit))
	if err == pgx.ErrNoRows {
		return nil, apperr.NotFound("patient %s has no active admission", patientID)
	}
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	return a, nil
}

func (r *repoPG) UpdateAdmissionState(ctx context.Context, a *Admission) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE admission SET state = $2, closed_at = $3, void_reason = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		a.ID, a.State, a.ClosedAt, a.VoidReason,
	).Scan(&a.UpdatedAt)
	return apperr.FromPG(err)
}

func (r *repoPG) ListAdmissions(ctx context.Context, f AdmissionFilter, limit, offset int) ([]*AdmissionSummary, int, error) {
	var clauses []string
	var args []interface{}
	if f.State != "" {
		args = append(args, f.State)
		clauses = append(clauses, fmt.Sprintf("a.state = $%d", len(args)))
	}
	if f.PatientID != nil {
		args = append(args, *f.PatientID)
		clauses = append(clauses, fmt.Sprintf("a.patient_id = $%d", len(args)))
	}
	if f.CompanyID != nil {
		args = append(args, *f.CompanyID)
		clauses = append(clauses, fmt.Sprintf("a.company_id = $%d", len(args)))
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM admission a`+where, args...).Scan(&total); err != nil {
		return nil, 0, apperr.FromPG(err)
	}

	query := fmt.Sprintf(`
		SELECT a.id, a.patient_id, p.surnames || ', ' || p.names AS patient_name, p.document_number,
			a.company_id, c.legal_name AS company_name, a.state, a.admitted_at,
			COUNT(w.id)::int AS total_entries,
			COUNT(w.id) FILTER (WHERE w.state = 'pending')::int AS pending_entries
		FROM admission a
		JOIN patient p ON p.id = a.patient_id
		JOIN company c ON c.id = a.company_id
		LEFT JOIN worklist_entry w ON w.admission_id = a.id
		%s
		GROUP BY a.id, p.surnames, p.names, p.document_number, c.legal_name
		ORDER BY a.admitted_at DESC, a.id DESC
		LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, apperr.FromPG(err)
	}
	items, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[AdmissionSummary])
	if err != nil {
		return nil, 0, apperr.FromPG(err)
	}
	return items, total, nil
}

// =========== Worklist entries ===========

const entryCols = `id, admission_id, exam_id, exam_name, exam_type, agreed_price, position, state,
	evaluator_id, completed_at, validated_by, validated_at`

func (r *repoPG) getEntry(ctx context.Context, id uuid.UUID, suffix string) (*WorklistEntry, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+entryCols+` FROM worklist_entry WHERE id = $1`+suffix, id)
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	e, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[WorklistEntry])
	if err == pgx.ErrNoRows {
		return nil, apperr.NotFound("worklist entry %s not found", id)
	}
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	return e, nil
}

func (r *repoPG) GetEntry(ctx context.Context, id uuid.UUID) (*WorklistEntry, error) {
	return r.getEntry(ctx, id, "")
}

func (r *repoPG) LockEntry(ctx context.Context, id uuid.UUID) (*WorklistEntry, error) {
	if err := requireTx(ctx); err != nil {
		return nil, err
	}
	return r.getEntry(ctx, id, " FOR UPDATE")
}

func (r *repoPG) ListEntries(ctx context.Context, admissionID uuid.UUID) ([]*WorklistEntry, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+entryCols+` FROM worklist_entry WHERE admission_id = $1 ORDER BY position, id`, admissionID)
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	items, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[WorklistEntry])
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	return items, nil
}

func (r *repoPG) UpdateEntry(ctx context.Context, e *WorklistEntry) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE worklist_entry SET state = $2, evaluator_id = $3, completed_at = $4,
			validated_by = $5, validated_at = $6
		WHERE id = $1`,
		e.ID, e.State, e.EvaluatorID, e.CompletedAt, e.ValidatedBy, e.ValidatedAt)
	return apperr.FromPG(err)
}

func (r *repoPG) PendingWorklist(ctx context.Context, examType catalog.ExamType, limit int) ([]*WorklistItem, error) {
	args := []interface{}{StateInCircuit, EntryPending, limit}
	typeClause := ""
	if examType != "" {
		args = append(args, examType)
		typeClause = ` AND w.exam_type = $4`
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT w.id AS entry_id, w.admission_id, a.patient_id,
			p.surnames || ', ' || p.names AS patient_name, p.document_number,
			w.exam_name, w.exam_type, w.state, a.admitted_at
		FROM worklist_entry w
		JOIN admission a ON a.id = w.admission_id
		JOIN patient p ON p.id = a.patient_id
		WHERE a.state = $1 AND w.state = $2`+typeClause+`
		ORDER BY a.admitted_at, w.position
		LIMIT $3`, args...)
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	items, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[WorklistItem])
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	return items, nil
}

// =========== Results ===========

const resultCols = `id, admission_id, exam_id, entry_id, payload, conclusion, recorded_by, created_at, updated_at`

func (r *repoPG) LockResult(ctx context.Context, admissionID, examID uuid.UUID) (*Result, error) {
	if err := requireTx(ctx); err != nil {
		return nil, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+resultCols+` FROM exam_result WHERE admission_id = $1 AND exam_id = $2 FOR UPDATE`,
		admissionID, examID)
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	res, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[Result])
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	return res, nil
}

// UpsertResult keeps one row per (admission, exam): a second save updates
// the existing row in place.
func (r *repoPG) UpsertResult(ctx context.Context, res *Result) error {
	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO exam_result (id, admission_id, exam_id, entry_id, payload, conclusion, recorded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (admission_id, exam_id) DO UPDATE SET
			payload = EXCLUDED.payload,
			conclusion = EXCLUDED.conclusion,
			recorded_by = EXCLUDED.recorded_by,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`,
		res.ID, res.AdmissionID, res.ExamID, res.EntryID, res.Payload, res.Conclusion, res.RecordedBy,
	).Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt)
	return apperr.FromPG(err)
}

func (r *repoPG) ListResults(ctx context.Context, admissionID uuid.UUID) ([]*Result, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+resultCols+` FROM exam_result WHERE admission_id = $1 ORDER BY created_at, id`, admissionID)
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	items, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[Result])
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	return items, nil
}

// =========== Diagnoses ===========

func (r *repoPG) CreateDiagnosis(ctx context.Context, d *Diagnosis) error {
	d.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO diagnosis (id, admission_id, code, description, diagnosis_type, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		d.ID, d.AdmissionID, d.Code, d.Description, d.Type, d.CreatedBy,
	).Scan(&d.CreatedAt)
	return apperr.FromPG(err)
}

func (r *repoPG) ListDiagnoses(ctx context.Context, admissionID uuid.UUID) ([]*Diagnosis, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, admission_id, code, description, diagnosis_type, created_by, created_at
		FROM diagnosis WHERE admission_id = $1 ORDER BY created_at, id`, admissionID)
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	items, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[Diagnosis])
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	return items, nil
}

// =========== Certificates ===========

const certificateCols = `id, admission_id, document_id, verdict, derived_verdict, restrictions, recommendations,
	signed_by, issued_at, expires_at, status, superseded_by`

func (r *repoPG) CreateCertificate(ctx context.Context, c *Certificate) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO certificate (id, admission_id, document_id, verdict, derived_verdict, restrictions,
			recommendations, signed_by, issued_at, expires_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		c.ID, c.AdmissionID, c.DocumentID, c.Verdict, c.DerivedVerdict, c.Restrictions,
		c.Recommendations, c.SignedBy, c.IssuedAt, c.ExpiresAt, c.Status)
	return apperr.FromPG(err)
}

func (r *repoPG) LockActiveCertificate(ctx context.Context, admissionID uuid.UUID) (*Certificate, error) {
	if err := requireTx(ctx); err != nil {
		return nil, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+certificateCols+` FROM certificate
		WHERE admission_id = $1 AND status = $2
		FOR UPDATE`, admissionID, CertificateActive)
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[Certificate])
	if err == pgx.ErrNoRows {
		return nil, apperr.NotFound("admission %s has no active certificate", admissionID)
	}
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	return c, nil
}

func (r *repoPG) MarkSuperseded(ctx context.Context, id, supersededBy uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE certificate SET status = $2, superseded_by = $3 WHERE id = $1`,
		id, CertificateSuperseded, supersededBy)
	return apperr.FromPG(err)
}

func (r *repoPG) ListCertificates(ctx context.Context, admissionID uuid.UUID) ([]*Certificate, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+certificateCols+` FROM certificate WHERE admission_id = $1 ORDER BY issued_at DESC, id`, admissionID)
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	items, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[Certificate])
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	return items, nil
}

func (r *repoPG) GetCertificateRecord(ctx context.Context, documentID uuid.UUID) (*CertificateRecord, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT ct.id, ct.admission_id, ct.document_id, ct.verdict, ct.derived_verdict, ct.restrictions,
			ct.recommendations, ct.signed_by, ct.issued_at, ct.expires_at, ct.status, ct.superseded_by,
			p.surnames || ', ' || p.names AS patient_name, p.document_number AS patient_document,
			c.legal_name AS company_name
		FROM certificate ct
		JOIN admission a ON a.id = ct.admission_id
		JOIN patient p ON p.id = a.patient_id
		JOIN company c ON c.id = a.company_id
		WHERE ct.document_id = $1`, documentID)
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	rec, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[CertificateRecord])
	if err == pgx.ErrNoRows {
		return nil, apperr.NotFound("certificate %s not found", documentID)
	}
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	return rec, nil
}

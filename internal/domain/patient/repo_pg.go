package patient

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/occhealth/occhealth/internal/platform/apperr"
	"github.com/occhealth/occhealth/internal/platform/db"
	"github.com/occhealth/occhealth/pkg/textnorm"
)

// =========== Patient Repository ===========

type patientRepoPG struct {
	pool *pgxpool.Pool
}

func NewPatientRepo(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const patientCols = `id, document_type, document_number, names, surnames, birth_date,
	gender, blood_group, phone, email, address, marital_status, education, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID, &p.DocumentType, &p.DocumentNumber, &p.Names, &p.Surnames, &p.BirthDate,
		&p.Gender, &p.BloodGroup, &p.Phone, &p.Email, &p.Address, &p.MaritalStatus, &p.Education,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient (id, document_type, document_number, names, surnames, birth_date,
			gender, blood_group, phone, email, address, marital_status, education)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at`,
		p.ID, p.DocumentType, p.DocumentNumber, p.Names, p.Surnames, p.BirthDate,
		p.Gender, p.BloodGroup, p.Phone, p.Email, p.Address, p.MaritalStatus, p.Education,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return apperr.FromPG(err)
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	return p, nil
}

func (r *patientRepoPG) GetByDocument(ctx context.Context, documentNumber string) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient WHERE document_number = $1`, documentNumber))
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	return p, nil
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE patient SET document_type = $2, document_number = $3, names = $4, surnames = $5,
			birth_date = $6, gender = $7, blood_group = $8, phone = $9, email = $10, address = $11,
			marital_status = $12, education = $13, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.DocumentType, p.DocumentNumber, p.Names, p.Surnames,
		p.BirthDate, p.Gender, p.BloodGroup, p.Phone, p.Email, p.Address,
		p.MaritalStatus, p.Education,
	).Scan(&p.UpdatedAt)
	return apperr.FromPG(err)
}

func searchClause(by Criterion) string {
	names := textnorm.SQLFold("names") + ` LIKE $1`
	surnames := textnorm.SQLFold("surnames") + ` LIKE $1`
	document := `document_number ILIKE $1`
	switch by {
	case ByDocument:
		return document
	case ByNames:
		return names
	case BySurnames:
		return surnames
	default:
		return "(" + document + " OR " + names + " OR " + surnames + " OR " +
			textnorm.SQLFold("names || ' ' || surnames") + " LIKE $1)"
	}
}

func (r *patientRepoPG) Search(ctx context.Context, by Criterion, term string, limit, offset int) ([]*Patient, int, error) {
	where := ` WHERE ` + searchClause(by)
	pattern := "%" + term + "%"

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patient`+where, pattern).Scan(&total); err != nil {
		return nil, 0, apperr.FromPG(err)
	}

	query := fmt.Sprintf(`SELECT %s FROM patient%s ORDER BY surnames, names LIMIT $2 OFFSET $3`, patientCols, where)
	rows, err := r.conn(ctx).Query(ctx, query, pattern, limit, offset)
	if err != nil {
		return nil, 0, apperr.FromPG(err)
	}
	items, err := collectPatients(rows)
	return items, total, err
}

func (r *patientRepoPG) Recent(ctx context.Context, limit int) ([]*Patient, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+patientCols+` FROM patient ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	return collectPatients(rows)
}

func collectPatients(rows pgx.Rows) ([]*Patient, error) {
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, apperr.FromPG(err)
		}
		items = append(items, p)
	}
	return items, apperr.FromPG(rows.Err())
}

// =========== Occupational History Repository ===========

type historyRepoPG struct {
	pool *pgxpool.Pool
}

func NewHistoryRepo(pool *pgxpool.Pool) HistoryRepository {
	return &historyRepoPG{pool: pool}
}

func (r *historyRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *historyRepoPG) Add(ctx context.Context, h *OccupationalHistory) error {
	h.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO occupational_history (id, patient_id, employer, position, start_date, end_date, risks, ppe)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		h.ID, h.PatientID, h.Employer, h.Position, h.StartDate, h.EndDate, h.Risks, h.PPE,
	).Scan(&h.CreatedAt)
	return apperr.FromPG(err)
}

func (r *historyRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*OccupationalHistory, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, patient_id, employer, position, start_date, end_date, risks, ppe, created_at
		FROM occupational_history
		WHERE patient_id = $1
		ORDER BY start_date DESC NULLS LAST, created_at DESC`, patientID)
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	items, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[OccupationalHistory])
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	return items, nil
}

package company

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/occhealth/occhealth/internal/platform/apperr"
	"github.com/occhealth/occhealth/internal/platform/db"
)

// =========== Company Repository ===========

type companyRepoPG struct {
	pool *pgxpool.Pool
}

func NewCompanyRepo(pool *pgxpool.Pool) CompanyRepository {
	return &companyRepoPG{pool: pool}
}

func (r *companyRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const companyCols = `id, tax_id, legal_name, address, industry, contact_name, contact_email, created_at, updated_at`

func scanCompany(row pgx.Row) (*Company, error) {
	var c Company
	err := row.Scan(&c.ID, &c.TaxID, &c.LegalName, &c.Address, &c.Industry, &c.ContactName, &c.ContactEmail,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *companyRepoPG) Create(ctx context.Context, c *Company) error {
	c.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO company (id, tax_id, legal_name, address, industry, contact_name, contact_email)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		c.ID, c.TaxID, c.LegalName, c.Address, c.Industry, c.ContactName, c.ContactEmail,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	return apperr.FromPG(err)
}

func (r *companyRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Company, error) {
	c, err := scanCompany(r.conn(ctx).QueryRow(ctx, `SELECT `+companyCols+` FROM company WHERE id = $1`, id))
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	return c, nil
}

func (r *companyRepoPG) Update(ctx context.Context, c *Company) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE company SET tax_id = $2, legal_name = $3, address = $4, industry = $5,
			contact_name = $6, contact_email = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		c.ID, c.TaxID, c.LegalName, c.Address, c.Industry, c.ContactName, c.ContactEmail,
	).Scan(&c.UpdatedAt)
	return apperr.FromPG(err)
}

func (r *companyRepoPG) List(ctx context.Context, search string, limit, offset int) ([]*Company, int, error) {
	where := ""
	args := []interface{}{}
	if search != "" {
		where = ` WHERE legal_name ILIKE $1 OR tax_id ILIKE $1`
		args = append(args, "%"+search+"%")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM company`+where, args...).Scan(&total); err != nil {
		return nil, 0, apperr.FromPG(err)
	}

	query := fmt.Sprintf(`SELECT %s FROM company%s ORDER BY legal_name LIMIT $%d OFFSET $%d`,
		companyCols, where, len(args)+1, len(args)+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, apperr.FromPG(err)
	}
	defer rows.Close()

	var items []*Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, 0, apperr.FromPG(err)
		}
		items = append(items, c)
	}
	return items, total, apperr.FromPG(rows.Err())
}

// =========== Protocol Repository ===========

type protocolRepoPG struct {
	pool *pgxpool.Pool
}

func NewProtocolRepo(pool *pgxpool.Pool) ProtocolRepository {
	return &protocolRepoPG{pool: pool}
}

func (r *protocolRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const protocolCols = `id, company_id, name, risk_profile, exam_kind, active, version, created_at, updated_at`

func scanProtocol(row pgx.Row) (*Protocol, error) {
	var p Protocol
	err := row.Scan(&p.ID, &p.CompanyID, &p.Name, &p.RiskProfile, &p.ExamKind, &p.Active, &p.Version,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *protocolRepoPG) Create(ctx context.Context, p *Protocol) error {
	p.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO protocol (id, company_id, name, risk_profile, exam_kind, active, version)
		VALUES ($1, $2, $3, $4, $5, $6, 1)
		RETURNING version, created_at, updated_at`,
		p.ID, p.CompanyID, p.Name, p.RiskProfile, p.ExamKind, p.Active,
	).Scan(&p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return apperr.FromPG(err)
	}
	return r.insertExams(ctx, p.ID, p.Exams)
}

func (r *protocolRepoPG) insertExams(ctx context.Context, protocolID uuid.UUID, exams []ProtocolExam) error {
	batch := &pgx.Batch{}
	for _, e := range exams {
		batch.Queue(`INSERT INTO protocol_exam (protocol_id, exam_id, agreed_price, position) VALUES ($1, $2, $3, $4)`,
			protocolID, e.ExamID, e.AgreedPrice, e.Position)
	}
	br := r.conn(ctx).SendBatch(ctx, batch)
	defer br.Close()
	for range exams {
		if _, err := br.Exec(); err != nil {
			return apperr.FromPG(err)
		}
	}
	return nil
}

// GetByID returns the protocol with its exam details in position order.
func (r *protocolRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Protocol, error) {
	p, err := scanProtocol(r.conn(ctx).QueryRow(ctx, `SELECT `+protocolCols+` FROM protocol WHERE id = $1`, id))
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	exams, err := r.exams(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Exams = exams
	return p, nil
}

func (r *protocolRepoPG) exams(ctx context.Context, protocolID uuid.UUID) ([]ProtocolExam, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT pe.exam_id, e.code, e.name, e.exam_type, pe.agreed_price, pe.position
		FROM protocol_exam pe
		JOIN exam e ON e.id = pe.exam_id
		WHERE pe.protocol_id = $1
		ORDER BY pe.position`, protocolID)
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	items, err := pgx.CollectRows(rows, pgx.RowToStructByName[ProtocolExam])
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	return items, nil
}

func (r *protocolRepoPG) ListByCompany(ctx context.Context, companyID uuid.UUID, activeOnly bool) ([]*Protocol, error) {
	query := `SELECT ` + protocolCols + ` FROM protocol WHERE company_id = $1`
	if activeOnly {
		query += ` AND active`
	}
	rows, err := r.conn(ctx).Query(ctx, query+` ORDER BY name`, companyID)
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	defer rows.Close()

	var items []*Protocol
	for rows.Next() {
		p, err := scanProtocol(rows)
		if err != nil {
			return nil, apperr.FromPG(err)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.FromPG(err)
	}
	for _, p := range items {
		if p.Exams, err = r.exams(ctx, p.ID); err != nil {
			return nil, err
		}
	}
	return items, nil
}

func (r *protocolRepoPG) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE protocol SET active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return apperr.FromPG(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("protocol %s not found", id)
	}
	return nil
}

// ReplaceExams must run inside a transaction. Admissions keep their own
// worklist snapshot, so nothing outside protocol_exam is touched.
func (r *protocolRepoPG) ReplaceExams(ctx context.Context, id uuid.UUID, exams []ProtocolExam) (int, error) {
	var version int
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE protocol SET version = version + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING version`, id).Scan(&version)
	if err != nil {
		return 0, apperr.FromPG(err)
	}
	if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM protocol_exam WHERE protocol_id = $1`, id); err != nil {
		return 0, apperr.FromPG(err)
	}
	if err := r.insertExams(ctx, id, exams); err != nil {
		return 0, err
	}
	return version, nil
}

func (r *protocolRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM protocol WHERE id = $1`, id)
	if err != nil {
		return apperr.FromPG(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("protocol %s not found", id)
	}
	return nil
}

func (r *protocolRepoPG) CountAdmissions(ctx context.Context, id uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM admission WHERE protocol_id = $1`, id).Scan(&n)
	return n, apperr.FromPG(err)
}

package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/occhealth/occhealth/internal/platform/apperr"
	"github.com/occhealth/occhealth/internal/platform/db"
)

type examRepoPG struct {
	pool *pgxpool.Pool
}

func NewExamRepo(pool *pgxpool.Pool) ExamRepository {
	return &examRepoPG{pool: pool}
}

func (r *examRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const examCols = `id, code, name, category, exam_type, base_price, active, created_at, updated_at`

func scanExam(row pgx.Row) (*Exam, error) {
	var e Exam
	err := row.Scan(&e.ID, &e.Code, &e.Name, &e.Category, &e.ExamType, &e.BasePrice, &e.Active,
		&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *examRepoPG) Create(ctx context.Context, e *Exam) error {
	e.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO exam (id, code, name, category, exam_type, base_price, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		e.ID, e.Code, e.Name, e.Category, e.ExamType, e.BasePrice, e.Active,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	return apperr.FromPG(err)
}

func (r *examRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Exam, error) {
	e, err := scanExam(r.conn(ctx).QueryRow(ctx, `SELECT `+examCols+` FROM exam WHERE id = $1`, id))
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	return e, nil
}

func (r *examRepoPG) GetByCode(ctx context.Context, code string) (*Exam, error) {
	e, err := scanExam(r.conn(ctx).QueryRow(ctx, `SELECT `+examCols+` FROM exam WHERE code = $1`, code))
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	return e, nil
}

func (r *examRepoPG) Update(ctx context.Context, e *Exam) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE exam SET name = $2, category = $3, exam_type = $4, base_price = $5, active = $6,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		e.ID, e.Name, e.Category, e.ExamType, e.BasePrice, e.Active,
	).Scan(&e.UpdatedAt)
	return apperr.FromPG(err)
}

func (r *examRepoPG) List(ctx context.Context, f ExamFilter, limit, offset int) ([]*Exam, int, error) {
	where, args := buildExamWhere(f)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM exam`+where, args...).Scan(&total); err != nil {
		return nil, 0, apperr.FromPG(err)
	}

	query := fmt.Sprintf(`SELECT %s FROM exam%s ORDER BY name LIMIT $%d OFFSET $%d`,
		examCols, where, len(args)+1, len(args)+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, apperr.FromPG(err)
	}
	defer rows.Close()

	var items []*Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, 0, apperr.FromPG(err)
		}
		items = append(items, e)
	}
	return items, total, apperr.FromPG(rows.Err())
}

func buildExamWhere(f ExamFilter) (string, []interface{}) {
	var clauses []string
	var args []interface{}
	idx := 1
	if f.Name != "" {
		clauses = append(clauses, fmt.Sprintf("name ILIKE $%d", idx))
		args = append(args, "%"+f.Name+"%")
		idx++
	}
	if f.Category != "" {
		clauses = append(clauses, fmt.Sprintf("category = $%d", idx))
		args = append(args, f.Category)
		idx++
	}
	if f.Active != nil {
		clauses = append(clauses, fmt.Sprintf("active = $%d", idx))
		args = append(args, *f.Active)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

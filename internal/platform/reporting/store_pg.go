package reporting

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/occhealth/occhealth/internal/platform/apperr"
)

type storePG struct {
	pool *pgxpool.Pool
}

func NewStorePG(pool *pgxpool.Pool) Store {
	return &storePG{pool: pool}
}

func (s *storePG) Summary(ctx context.Context, dayStart, dayEnd time.Time) (*Summary, error) {
	var sum Summary
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM admission WHERE admitted_at >= $1 AND admitted_at < $2),
			(SELECT COUNT(*) FROM admission WHERE state = 'in_circuit'),
			(SELECT COUNT(*) FROM company),
			(SELECT COUNT(*) FROM worklist_entry
			  WHERE state IN ('done','validated') AND completed_at >= $1 AND completed_at < $2)`,
		dayStart, dayEnd,
	).Scan(&sum.AdmissionsToday, &sum.InCircuit, &sum.Companies, &sum.ExamsDoneToday)
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	return &sum, nil
}

func (s *storePG) AdmissionsByCompany(ctx context.Context, from, to time.Time, limit int) ([]Bucket, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.legal_name, COUNT(a.id)
		FROM admission a JOIN company c ON c.id = a.company_id
		WHERE a.admitted_at >= $1 AND a.admitted_at < $2
		GROUP BY c.legal_name
		ORDER BY COUNT(a.id) DESC, c.legal_name
		LIMIT $3`, from, to, limit)
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	return collectBuckets(rows)
}

func (s *storePG) AdmissionsByState(ctx context.Context) ([]Bucket, error) {
	rows, err := s.pool.Query(ctx, `SELECT state, COUNT(*) FROM admission GROUP BY state ORDER BY state`)
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	return collectBuckets(rows)
}

func collectBuckets(rows pgx.Rows) ([]Bucket, error) {
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Bucket, error) {
		var b Bucket
		err := row.Scan(&b.Label, &b.Total)
		return b, err
	})
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	return out, nil
}

func (s *storePG) AdmissionsByHour(ctx context.Context, dayStart, dayEnd time.Time) ([]HourBucket, error) {
	// Hours are taken in the caller's zone so that buckets line up with dayStart.
	rows, err := s.pool.Query(ctx, `
		SELECT EXTRACT(HOUR FROM admitted_at AT TIME ZONE $3)::int AS hour, COUNT(*)
		FROM admission
		WHERE admitted_at >= $1 AND admitted_at < $2
		GROUP BY hour ORDER BY hour`, dayStart, dayEnd, dayStart.Location().String())
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	sparse, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (HourBucket, error) {
		var b HourBucket
		err := row.Scan(&b.Hour, &b.Total)
		return b, err
	})
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	return FillHours(sparse), nil
}

func (s *storePG) AdmissionsByDay(ctx context.Context, from, to time.Time) ([]DayBucket, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT (admitted_at AT TIME ZONE $3)::date AS day, COUNT(*)
		FROM admission
		WHERE admitted_at >= $1 AND admitted_at < $2
		GROUP BY day ORDER BY day`, from, to, from.Location().String())
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (DayBucket, error) {
		var b DayBucket
		err := row.Scan(&b.Day, &b.Total)
		return b, err
	})
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	return out, nil
}

func (s *storePG) LatestAdmissions(ctx context.Context, limit int) ([]LatestAdmission, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT a.id::text, p.surnames || ', ' || p.names, p.document_number, c.legal_name, a.state, a.admitted_at
		FROM admission a
		JOIN patient p ON p.id = a.patient_id
		JOIN company c ON c.id = a.company_id
		ORDER BY a.admitted_at DESC, a.id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (LatestAdmission, error) {
		var l LatestAdmission
		err := row.Scan(&l.AdmissionID, &l.PatientName, &l.PatientDocument, &l.CompanyName, &l.State, &l.AdmittedAt)
		return l, err
	})
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	return out, nil
}

// Evaluate runs sql and returns each row as a column-name map.
func (s *storePG) Evaluate(ctx context.Context, sql string, args ...interface{}) ([]map[string]interface{}, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, apperr.FromPG(err)
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	results := []map[string]interface{}{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, apperr.FromPG(err)
		}
		row := make(map[string]interface{}, len(fieldDescs))
		for i, fd := range fieldDescs {
			row[fd.Name] = values[i]
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.FromPG(err)
	}
	return results, nil
}

package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats represents database connection pool statistics.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
	Healthy         bool   `json:"healthy"`
}

// GetPoolStats returns connection pool statistics.
func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
		Healthy:         stat.TotalConns() > 0,
	}
}

// HealthReport is the body of GET /health/db.
type HealthReport struct {
	Status            string     `json:"status"`
	Error             string     `json:"error,omitempty"`
	Pool              *PoolStats `json:"pool"`
	SchemaVersion     int        `json:"schema_version"`
	PendingMigrations int        `json:"pending_migrations"`
}

func buildReport(pingErr error, stats *PoolStats, statuses []MigrationStatus) (int, HealthReport) {
	report := HealthReport{Status: "healthy", Pool: stats}
	for _, s := range statuses {
		if s.Applied {
			if s.Version > report.SchemaVersion {
				report.SchemaVersion = s.Version
			}
		} else {
			report.PendingMigrations++
		}
	}
	if pingErr != nil {
		if stats != nil {
			stats.Healthy = false
		}
		report.Status = "unhealthy"
		report.Error = pingErr.Error()
		return http.StatusServiceUnavailable, report
	}
	if report.PendingMigrations > 0 {
		report.Status = "degraded"
	}
	return http.StatusOK, report
}

// HealthHandler pings the database and reports pool and schema state. The
// migrator may be nil.
func HealthHandler(pool *pgxpool.Pool, migrator *Migrator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		err := pool.Ping(ctx)
		var statuses []MigrationStatus
		if err == nil && migrator != nil {
			statuses, err = migrator.Status(ctx)
		}

		code, report := buildReport(err, GetPoolStats(pool), statuses)
		return c.JSON(code, report)
	}
}

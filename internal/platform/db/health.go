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

// Check is an extra dependency probe reported by HealthHandler.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// RunChecks runs every check and returns the failures by name.
func RunChecks(ctx context.Context, checks []Check) map[string]string {
	failed := make(map[string]string)
	for _, chk := range checks {
		if chk.Fn == nil {
			continue
		}
		if err := chk.Fn(ctx); err != nil {
			failed[chk.Name] = err.Error()
		}
	}
	return failed
}

// HealthHandler pings the database and any extra checks (e.g. Redis).
func HealthHandler(pool *pgxpool.Pool, checks ...Check) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		all := append([]Check{{Name: "database", Fn: pool.Ping}}, checks...)
		failed := RunChecks(ctx, all)
		stats := GetPoolStats(pool)

		if len(failed) > 0 {
			stats.Healthy = false
			return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
				"status": "unhealthy",
				"failed": failed,
				"pool":   stats,
			})
		}

		return c.JSON(http.StatusOK, map[string]interface{}{
			"status": "healthy",
			"pool":   stats,
		})
	}
}

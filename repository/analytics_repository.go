package repository

import (
	"context"

	"pathwaymed-backend/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AnalyticsRepository handles database operations for query metrics
type AnalyticsRepository struct {
	db *pgxpool.Pool
}

// NewAnalyticsRepository creates a new analytics repository
func NewAnalyticsRepository(db *pgxpool.Pool) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// Create records a metric for one answered query
func (r *AnalyticsRepository) Create(ctx context.Context, m *models.QueryMetric) error {
	query := `
		INSERT INTO query_metrics (conversation_id, message_id, latency_ms, token_estimate, model, cost_usd)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	return r.db.QueryRow(ctx, query,
		m.ConversationID, m.MessageID, m.LatencyMs, m.TokenEstimate, m.Model, m.CostUSD).
		Scan(&m.ID, &m.CreatedAt)
}

// GetLatencyStats aggregates latency over the last N days
func (r *AnalyticsRepository) GetLatencyStats(ctx context.Context, days int) (*models.LatencyStats, error) {
	query := `
		SELECT
			COALESCE(AVG(latency_ms), 0),
			COALESCE(MIN(latency_ms), 0),
			COALESCE(MAX(latency_ms), 0),
			COUNT(*),
			COALESCE(AVG(token_estimate), 0)
		FROM query_metrics
		WHERE created_at >= NOW() - make_interval(days => $1)`

	stats := &models.LatencyStats{}
	err := r.db.QueryRow(ctx, query, days).Scan(
		&stats.AvgLatencyMs, &stats.MinLatencyMs, &stats.MaxLatencyMs,
		&stats.TotalRequests, &stats.AvgTokens)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// GetDailyTrends returns per-day latency averages over the last N days
func (r *AnalyticsRepository) GetDailyTrends(ctx context.Context, days int) ([]*models.DailyLatency, error) {
	query := `
		SELECT
			TO_CHAR(created_at::date, 'YYYY-MM-DD'),
			AVG(latency_ms),
			COUNT(*),
			AVG(token_estimate)
		FROM query_metrics
		WHERE created_at >= NOW() - make_interval(days => $1)
		GROUP BY created_at::date
		ORDER BY created_at::date`

	rows, err := r.db.Query(ctx, query, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trends []*models.DailyLatency
	for rows.Next() {
		d := &models.DailyLatency{}
		err := rows.Scan(&d.Date, &d.AvgLatencyMs, &d.RequestCount, &d.AvgTokens)
		if err != nil {
			return nil, err
		}
		trends = append(trends, d)
	}
	return trends, rows.Err()
}

// GetCostStats aggregates estimated model spend over the last N days
func (r *AnalyticsRepository) GetCostStats(ctx context.Context, days int) (*models.CostStats, error) {
	query := `
		SELECT
			COALESCE(SUM(cost_usd), 0),
			COALESCE(AVG(cost_usd), 0),
			COALESCE(SUM(token_estimate), 0),
			COUNT(*)
		FROM query_metrics
		WHERE created_at >= NOW() - make_interval(days => $1)`

	stats := &models.CostStats{}
	err := r.db.QueryRow(ctx, query, days).Scan(
		&stats.TotalCostUSD, &stats.AvgCostPerQuery, &stats.TotalTokens, &stats.TotalQueries)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// QueryMetric records latency and token usage for one answered message
type QueryMetric struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	MessageID      uuid.UUID `json:"message_id"`
	LatencyMs      float64   `json:"latency_ms"`
	TokenEstimate  int       `json:"token_estimate"`
	Model          string    `json:"model"`
	CostUSD        float64   `json:"cost_usd"`
	CreatedAt      time.Time `json:"timestamp"`
}

// LatencyStats aggregates query metrics over a period
type LatencyStats struct {
	AvgLatencyMs  float64 `json:"avg_latency_ms"`
	MinLatencyMs  float64 `json:"min_latency_ms"`
	MaxLatencyMs  float64 `json:"max_latency_ms"`
	TotalRequests int     `json:"total_requests"`
	AvgTokens     float64 `json:"avg_tokens"`
}

// DailyLatency is one day of the latency trend
type DailyLatency struct {
	Date         string  `json:"date"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	RequestCount int     `json:"request_count"`
	AvgTokens    float64 `json:"avg_tokens"`
}

// CostStats aggregates estimated spend
type CostStats struct {
	TotalCostUSD    float64 `json:"total_cost_usd"`
	AvgCostPerQuery float64 `json:"avg_cost_per_query"`
	TotalTokens     int64   `json:"total_tokens"`
	TotalQueries    int     `json:"total_queries"`
}

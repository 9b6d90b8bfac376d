package models

// DailyMetrics is one aggregated snapshot per calendar day, upserted by the
// aggregation job and read by the analytics overview.
type DailyMetrics struct {
	Date          string  `json:"date"` // YYYY-MM-DD
	TotalUsers    int     `json:"totalUsers"`
	NewUsers      int     `json:"newUsers"`
	TotalRequests int     `json:"totalRequests"`
	NewRequests   int     `json:"newRequests"`
	TotalRevenue  float64 `json:"totalRevenue"`
	NewRevenue    float64 `json:"newRevenue"`
	PendingKYC    int     `json:"pendingKyc"`
}

package models

// EnrichedIPO is an IPO with its current snapshots attached. Either snapshot
// may be nil when nothing has been observed yet.
type EnrichedIPO struct {
	IPO
	CurrentGMP          *CurrentGMP          `json:"current_gmp"`
	CurrentSubscription *CurrentSubscription `json:"current_subscription"`
}

// IPODetail adds recent history to an enriched IPO
type IPODetail struct {
	EnrichedIPO
	GMPHistory          []GMPHistory          `json:"recent_gmp_history"`
	SubscriptionHistory []SubscriptionHistory `json:"recent_subscription_history"`
}

type DashboardStats struct {
	TotalIPOs        int     `json:"total_ipos"`
	UpcomingIPOs     int     `json:"upcoming_ipos"`
	ActiveIPOs       int     `json:"active_ipos"`
	ListedIPOs       int     `json:"listed_ipos"`
	ClosedIPOs       int     `json:"closed_ipos"`
	TotalMarketValue float64 `json:"total_market_value"`
	AvgGMP           float64 `json:"avg_gmp"`
}

// StatusCounts counts IPOs per lifecycle state
type StatusCounts struct {
	All      int `json:"all"`
	Upcoming int `json:"upcoming"`
	Open     int `json:"open"`
	Closed   int `json:"closed"`
	Listed   int `json:"listed"`
}

// SeedResult is returned by the seeding and clearing routines
type SeedResult struct {
	Success         bool   `json:"success"`
	IPOsInserted    int    `json:"ipos_inserted,omitempty"`
	RecordsInserted int    `json:"records_inserted,omitempty"`
	Message         string `json:"message"`
}

// SeedAllResult aggregates the steps of a full reseed
type SeedAllResult struct {
	Success bool                  `json:"success"`
	Message string                `json:"message"`
	Results map[string]SeedResult `json:"results"`
}

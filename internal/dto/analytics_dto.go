package dto

import "time"

// AccountSummary aggregates account counts for administrators.
type AccountSummary struct {
	Total  int64            `json:"total"`
	Active int64            `json:"active"`
	Admins int64            `json:"admins"`
	ByKind map[string]int64 `json:"by_kind"`
}

// ProjectUsage reports how many documents a project has collected.
type ProjectUsage struct {
	ProjectID   string `json:"project_id"`
	Submissions int64  `json:"submissions"`
	Submitters  int64  `json:"submitters"`
}

// DailyActivityPoint counts audit records for one UTC day.
type DailyActivityPoint struct {
	Day     time.Time        `json:"day"`
	Total   int64            `json:"total"`
	Actions map[string]int64 `json:"actions"`
}

// AdminAnalyticsResponse is the administrator summary.
type AdminAnalyticsResponse struct {
	Accounts    AccountSummary       `json:"accounts"`
	Projects    []ProjectUsage       `json:"projects"`
	Activity    []DailyActivityPoint `json:"activity"`
	WindowDays  int                  `json:"window_days"`
	GeneratedAt time.Time            `json:"generated_at"`
	CacheHit    bool                 `json:"cache_hit"`
}

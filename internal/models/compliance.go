package models

import (
	"time"
)

// Source methods
const (
	MethodAPI      = "api"
	MethodScraping = "scraping"
)

// SourceCompliance tracks whether a source may be fetched and how hard it may
// be hit. One row per source key, mutated only by the compliance service.
// SourceKey is the badgerhold key.
type SourceCompliance struct {
	ID        string `json:"id"`
	SourceKey string `json:"source_key"`
	Method    string `json:"method"` // "api" or "scraping"

	IsAllowed   bool `json:"is_allowed"`
	RobotsTxtOK bool `json:"robots_txt_ok"`

	RateLimitSeconds   float64 `json:"rate_limit_seconds"`
	MaxRequestsPerHour int     `json:"max_requests_per_hour"`

	AutoDisableOnBlock bool       `json:"auto_disable_on_block"`
	ConsecutiveBlocks  int        `json:"consecutive_blocks"`
	LastBlockedAt      *time.Time `json:"last_blocked_at,omitempty"`

	TOSReviewedAt *time.Time `json:"tos_reviewed_at,omitempty"`
	TOSNotes      string     `json:"tos_notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSourceCompliance returns a compliance row with conservative defaults:
// allowed, robots OK, 2s between requests, auto-disable armed.
func NewSourceCompliance(id, sourceKey, method string) *SourceCompliance {
	now := time.Now()
	return &SourceCompliance{
		ID:                 id,
		SourceKey:          sourceKey,
		Method:             method,
		IsAllowed:          true,
		RobotsTxtOK:        true,
		RateLimitSeconds:   2.0,
		MaxRequestsPerHour: 120,
		AutoDisableOnBlock: true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

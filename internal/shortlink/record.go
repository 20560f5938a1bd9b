package shortlink

import "time"

type URLRecord struct {
	Shortcode       string
	OriginalURL     string
	CreatedAt       time.Time
	ExpiresAt       time.Time
	ValidityMinutes int
}

// ExpiredAt reports whether the record is past its expiry at the given instant.
// A record is still valid at exactly ExpiresAt.
func (r URLRecord) ExpiredAt(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

type Source string

const (
	SourceDirect   Source = "direct"
	SourceReferral Source = "referral"
)

type ClickEvent struct {
	Timestamp time.Time
	Source    Source
	Location  string
	UserAgent string
}

// Visit is what the caller knows about a resolution request.
type Visit struct {
	Referer   string
	UserAgent string
}

type Statistics struct {
	TotalClicks  int
	CreatedAt    time.Time
	ExpiresAt    time.Time
	RecentClicks []ClickEvent
}

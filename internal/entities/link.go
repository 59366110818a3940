package entities

import "time"

// ShortLink is the authoritative record of a code → URL mapping. LongURL is
// never mutated after creation; the only lifecycle transitions are expiry
// (logical, via ExpiresAt) and deletion.
type ShortLink struct {
	ID        string     `json:"id"` // UUID
	Code      string     `json:"code"`
	LongURL   string     `json:"long_url"`
	Owner     *string    `json:"owner,omitempty"`      // nil means anonymous
	ExpiresAt *time.Time `json:"expires_at,omitempty"` // nil means never expires
	CreatedAt time.Time  `json:"created_at"`
}

// Expired reports whether the link's logical expiry has passed at now.
func (l *ShortLink) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && !now.Before(*l.ExpiresAt)
}

package models

import "time"

// CreateLinkResponse is returned after creating a short link.
type CreateLinkResponse struct {
	Code      string     `json:"code"`
	LongURL   string     `json:"long_url"`
	ShortURL  string     `json:"short_url"` // base URL + code
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// LinkStatsResponse is the reporting view of a short link.
type LinkStatsResponse struct {
	Code      string     `json:"code"`
	LongURL   string     `json:"long_url"`
	Owner     *string    `json:"owner,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

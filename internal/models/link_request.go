package models

import "time"

// CreateLinkRequest is the body of POST /api/v1/shorten.
type CreateLinkRequest struct {
	LongURL    string     `json:"long_url" binding:"required"`
	CustomCode *string    `json:"custom_code,omitempty"` // optional caller-chosen code
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`  // optional expiration date
}

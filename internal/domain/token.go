package domain

import "time"

const TokenTypeAPI = "api_token"

// Token is one issued bearer credential. The opaque secret handed to the
// client is never stored; only its peppered hash is. Rows are kept after
// revocation for listing and audit.
type Token struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     uint       `gorm:"index;not null" json:"user_id"`
	TokenHash  string     `gorm:"size:128;uniqueIndex;not null" json:"-"`
	Type       string     `gorm:"size:32;not null;default:api_token" json:"type"`
	IsRevoked  bool       `gorm:"not null;default:false" json:"is_revoked"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

package models

import "time"

const (
	PROVIDER_STRAVA = "strava"
	PROVIDER_GOOGLE = "google"
)

// ProviderAccount stores one user's OAuth identity for one external provider.
// Disconnecting flips Connected to false but keeps the row; tokens may be
// revoked remotely while the historical link persists for reconnects.
type ProviderAccount struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	UserID         uint       `gorm:"index" json:"user_id"`
	Provider       string     `gorm:"index:provider_uid,unique;type:varchar(50)" json:"provider"`
	ProviderUserID string     `gorm:"index:provider_uid,unique;type:varchar(191)" json:"provider_user_id"`
	AccessToken    string     `gorm:"type:text" json:"-"`
	RefreshToken   string     `gorm:"type:text" json:"-"`
	ExpiresAt      *time.Time `gorm:"type:timestamp;default:null" json:"expires_at,omitempty"`
	Connected      bool       `gorm:"default:true" json:"connected"`
	// LastSyncedAt is the sync cursor: the inclusive lower bound of activity
	// time already mirrored to the calendar. Only meaningful on strava rows.
	LastSyncedAt *time.Time `gorm:"type:timestamp;default:null" json:"last_synced_at,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TokenExpired reports whether the access token must be refreshed before
// use. A missing expiry is treated as expired.
func (pa *ProviderAccount) TokenExpired(now time.Time) bool {
	return pa.ExpiresAt == nil || !pa.ExpiresAt.After(now)
}

package repository

import (
	"time"

	"github.com/activitysync/ActivitySync/app/models"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Update(user *models.User) error
	UpdateCalendarID(userID uint, calendarID string) error
	Delete(id uint) error
	Count() (int64, error)
}

// ProviderAccountRepository defines the interface for linked OAuth account
// operations. Token and cursor mutations are single-statement updates so a
// failed refresh never leaves a half-written credential row.
type ProviderAccountRepository interface {
	Create(account *models.ProviderAccount) error
	GetByID(id uint) (*models.ProviderAccount, error)
	GetByProviderUserID(provider, providerUserID string) (*models.ProviderAccount, error)
	GetByUserAndProvider(userID uint, provider string) (*models.ProviderAccount, error)
	ListConnected(provider string) ([]models.ProviderAccount, error)
	Update(account *models.ProviderAccount) error
	UpdateTokens(id uint, accessToken, refreshToken string, expiresAt *time.Time) error
	UpdateCursor(id uint, lastSyncedAt time.Time) error
	Disconnect(id uint) error
}

package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/activitysync/ActivitySync/app/models"
)

// providerAccountRepository implements the ProviderAccountRepository interface
type providerAccountRepository struct {
	db *gorm.DB
}

// NewProviderAccountRepository creates a new provider account repository instance
func NewProviderAccountRepository(db *gorm.DB) ProviderAccountRepository {
	return &providerAccountRepository{db: db}
}

// Create creates a new linked provider account
func (r *providerAccountRepository) Create(account *models.ProviderAccount) error {
	return r.db.Create(account).Error
}

// GetByID retrieves a provider account by its ID
func (r *providerAccountRepository) GetByID(id uint) (*models.ProviderAccount, error) {
	var account models.ProviderAccount
	err := r.db.First(&account, id).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetByProviderUserID resolves an account by the provider's stable subject id
// (for strava this is the athlete id delivered in webhook payloads)
func (r *providerAccountRepository) GetByProviderUserID(provider, providerUserID string) (*models.ProviderAccount, error) {
	var account models.ProviderAccount
	err := r.db.Where("provider = ? AND provider_user_id = ?", provider, providerUserID).First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetByUserAndProvider retrieves the account a user has linked for a provider
func (r *providerAccountRepository) GetByUserAndProvider(userID uint, provider string) (*models.ProviderAccount, error) {
	var account models.ProviderAccount
	err := r.db.Where("user_id = ? AND provider = ?", userID, provider).First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// ListConnected returns all connected accounts for a provider (scheduler input)
func (r *providerAccountRepository) ListConnected(provider string) ([]models.ProviderAccount, error) {
	var accounts []models.ProviderAccount
	err := r.db.Where("provider = ? AND connected = ?", provider, true).Find(&accounts).Error
	return accounts, err
}

// Update saves all fields of an existing provider account
func (r *providerAccountRepository) Update(account *models.ProviderAccount) error {
	return r.db.Save(account).Error
}

// UpdateTokens overwrites the credential fields in one statement. Providers
// may rotate the refresh token on every exchange, so all three fields are
// written together.
func (r *providerAccountRepository) UpdateTokens(id uint, accessToken, refreshToken string, expiresAt *time.Time) error {
	return r.db.Model(&models.ProviderAccount{}).Where("id = ?", id).Updates(map[string]interface{}{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"expires_at":    expiresAt,
	}).Error
}

// UpdateCursor persists the sync watermark
func (r *providerAccountRepository) UpdateCursor(id uint, lastSyncedAt time.Time) error {
	return r.db.Model(&models.ProviderAccount{}).Where("id = ?", id).UpdateColumn("last_synced_at", lastSyncedAt).Error
}

// Disconnect flips the connected flag without deleting the row
func (r *providerAccountRepository) Disconnect(id uint) error {
	return r.db.Model(&models.ProviderAccount{}).Where("id = ?", id).UpdateColumn("connected", false).Error
}

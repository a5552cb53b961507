package controllers

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	gothfiber "github.com/shareed2k/goth_fiber"
	"gorm.io/gorm"

	"github.com/activitysync/ActivitySync/app/models"
	"github.com/activitysync/ActivitySync/app/repository"
	"github.com/activitysync/ActivitySync/internal/pkg/jobqueue"
	"github.com/activitysync/ActivitySync/internal/pkg/session"
)

// HandleOAuthLogin starts the provider flow
func HandleOAuthLogin(c *fiber.Ctx) error {
	return gothfiber.BeginAuthHandler(c)
}

// HandleOAuthCallback completes the provider flow. Google is the primary
// identity: it creates (or finds) the user and logs them in. Strava can
// only be linked to an already logged-in user; the first successful link
// enqueues an initial sync.
func HandleOAuthCallback(c *fiber.Ctx) error {
	u, err := gothfiber.CompleteUserAuth(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString(fmt.Sprintf("OAuth failed: %v", err))
	}

	repos := repository.GetGlobalRepositories()

	switch u.Provider {
	case models.PROVIDER_GOOGLE:
		return completeGoogleCallback(c, repos, u.UserID, u.Email, u.Name, u.AvatarURL, u.AccessToken, u.RefreshToken, u.ExpiresAt)
	case models.PROVIDER_STRAVA:
		return completeStravaCallback(c, repos, u.UserID, u.AccessToken, u.RefreshToken, u.ExpiresAt)
	default:
		return c.Status(fiber.StatusBadRequest).SendString("unknown provider")
	}
}

func completeGoogleCallback(c *fiber.Ctx, repos *repository.Repositories, providerUserID, email, name, avatarURL, accessToken, refreshToken string, expiresAt time.Time) error {
	account, err := repos.ProviderAccount.GetByProviderUserID(models.PROVIDER_GOOGLE, providerUserID)

	var user *models.User
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Optional email match if provided
		if email != "" {
			user, _ = repos.User.GetByEmail(email)
		}
		if user == nil {
			user = &models.User{
				Name:      firstNonEmpty(name, email, "User"),
				Email:     email,
				AvatarURL: avatarURL,
			}
			if err := repos.User.Create(user); err != nil {
				return c.Status(fiber.StatusInternalServerError).SendString(fmt.Sprintf("create user failed: %v", err))
			}
		}

		account = &models.ProviderAccount{
			UserID:         user.ID,
			Provider:       models.PROVIDER_GOOGLE,
			ProviderUserID: providerUserID,
			AccessToken:    accessToken,
			RefreshToken:   refreshToken,
			ExpiresAt:      expiryPtr(expiresAt),
			Connected:      true,
		}
		if err := repos.ProviderAccount.Create(account); err != nil {
			return c.Status(fiber.StatusInternalServerError).SendString(fmt.Sprintf("link provider failed: %v", err))
		}
	} else if err == nil {
		account.AccessToken = accessToken
		if refreshToken != "" {
			account.RefreshToken = refreshToken
		}
		account.ExpiresAt = expiryPtr(expiresAt)
		account.Connected = true
		if err := repos.ProviderAccount.Update(account); err != nil {
			return c.Status(fiber.StatusInternalServerError).SendString(fmt.Sprintf("update tokens failed: %v", err))
		}
		if user, err = repos.User.GetByID(account.UserID); err != nil {
			return c.Status(fiber.StatusInternalServerError).SendString("linked user not found")
		}
	} else {
		return c.Status(fiber.StatusInternalServerError).SendString(fmt.Sprintf("db error: %v", err))
	}

	if err := session.SetUserID(c, user.ID); err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("session save failed")
	}

	now := time.Now()
	user.LastLoginAt = &now
	_ = repos.User.Update(user)

	return c.Redirect("/", fiber.StatusSeeOther)
}

func completeStravaCallback(c *fiber.Ctx, repos *repository.Repositories, athleteID, accessToken, refreshToken string, expiresAt time.Time) error {
	userID := session.GetUserID(c)
	if userID == 0 {
		return c.Status(fiber.StatusUnauthorized).SendString("connect Google first")
	}

	account, err := repos.ProviderAccount.GetByProviderUserID(models.PROVIDER_STRAVA, athleteID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		account = &models.ProviderAccount{
			UserID:         userID,
			Provider:       models.PROVIDER_STRAVA,
			ProviderUserID: athleteID,
			AccessToken:    accessToken,
			RefreshToken:   refreshToken,
			ExpiresAt:      expiryPtr(expiresAt),
			Connected:      true,
		}
		if err := repos.ProviderAccount.Create(account); err != nil {
			return c.Status(fiber.StatusInternalServerError).SendString(fmt.Sprintf("link strava failed: %v", err))
		}
	} else if err == nil {
		account.UserID = userID
		account.AccessToken = accessToken
		if refreshToken != "" {
			account.RefreshToken = refreshToken
		}
		account.ExpiresAt = expiryPtr(expiresAt)
		account.Connected = true
		if err := repos.ProviderAccount.Update(account); err != nil {
			return c.Status(fiber.StatusInternalServerError).SendString(fmt.Sprintf("update strava tokens failed: %v", err))
		}
	} else {
		return c.Status(fiber.StatusInternalServerError).SendString(fmt.Sprintf("db error: %v", err))
	}

	// Kick off the first sync right away instead of waiting for a webhook
	payload := jobqueue.SyncJobPayload{UserID: userID, AccountID: account.ID}
	if _, err := jobqueue.GetManager().GetQueue().EnqueueJob(jobqueue.JobTypeSyncActivities, payload.ToMap()); err != nil {
		log.Errorf("[OAuth] Initial sync enqueue failed: %v", err)
	}

	return c.Redirect("/", fiber.StatusSeeOther)
}

// HandleDisconnect flips the connected flag for one of the user's linked
// providers. The row is kept for audit and reconnects.
func HandleDisconnect(c *fiber.Ctx) error {
	userID := session.GetUserID(c)
	if userID == 0 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "not logged in"})
	}

	provider := c.Params("provider")
	if provider != models.PROVIDER_STRAVA && provider != models.PROVIDER_GOOGLE {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown provider"})
	}

	repos := repository.GetGlobalRepositories()
	account, err := repos.ProviderAccount.GetByUserAndProvider(userID, provider)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not linked"})
	}

	if err := repos.ProviderAccount.Disconnect(account.ID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "disconnect failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "disconnected", "provider": provider})
}

func expiryPtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

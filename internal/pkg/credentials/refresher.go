// Package credentials keeps per-user OAuth access tokens valid across
// long-running asynchronous operations.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/markbates/goth"
	"golang.org/x/oauth2"

	"github.com/activitysync/ActivitySync/app/models"
	"github.com/activitysync/ActivitySync/internal/pkg/syncerr"
)

// AccountStore persists refreshed credentials. The update is a single
// statement so a failed refresh never half-mutates stored state.
type AccountStore interface {
	UpdateTokens(id uint, accessToken, refreshToken string, expiresAt *time.Time) error
}

// RefreshFunc exchanges a refresh token with the provider's token endpoint.
type RefreshFunc func(provider, refreshToken string) (*oauth2.Token, error)

// Refresher ensures an account's access token is valid before use.
type Refresher struct {
	accounts AccountStore
	refresh  RefreshFunc
	now      func() time.Time
}

// NewRefresher creates a refresher that exchanges tokens through the
// registered goth providers.
func NewRefresher(accounts AccountStore) *Refresher {
	return &Refresher{
		accounts: accounts,
		refresh:  gothRefresh,
		now:      time.Now,
	}
}

// NewRefresherWithFunc creates a refresher with a custom token exchange,
// used by tests to stand in for the provider token endpoints.
func NewRefresherWithFunc(accounts AccountStore, refresh RefreshFunc, now func() time.Time) *Refresher {
	if now == nil {
		now = time.Now
	}
	return &Refresher{accounts: accounts, refresh: refresh, now: now}
}

// EnsureValid returns a usable access token for the account, refreshing and
// persisting it first when the stored one is expired. The account is
// mutated in place so callers see the fresh credential.
func (r *Refresher) EnsureValid(ctx context.Context, account *models.ProviderAccount) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if !account.TokenExpired(r.now()) {
		return account.AccessToken, nil
	}

	token, err := r.refresh(account.Provider, account.RefreshToken)
	if err != nil {
		return "", classifyRefreshError(account.Provider, err)
	}

	// Providers may rotate the refresh token on every exchange; keep the
	// old one only when no replacement was issued.
	refreshToken := token.RefreshToken
	if refreshToken == "" {
		refreshToken = account.RefreshToken
	}

	var expiresAt *time.Time
	if !token.Expiry.IsZero() {
		t := token.Expiry
		expiresAt = &t
	}

	if err := r.accounts.UpdateTokens(account.ID, token.AccessToken, refreshToken, expiresAt); err != nil {
		return "", fmt.Errorf("persisting refreshed %s credentials: %w", account.Provider, err)
	}

	account.AccessToken = token.AccessToken
	account.RefreshToken = refreshToken
	account.ExpiresAt = expiresAt

	return token.AccessToken, nil
}

func gothRefresh(provider, refreshToken string) (*oauth2.Token, error) {
	p, err := goth.GetProvider(provider)
	if err != nil {
		return nil, err
	}
	return p.RefreshToken(refreshToken)
}

func classifyRefreshError(provider string, err error) error {
	status := 0
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) && rerr.Response != nil {
		status = rerr.Response.StatusCode
	}
	return &syncerr.CredentialRefreshError{Provider: provider, StatusCode: status, Err: err}
}

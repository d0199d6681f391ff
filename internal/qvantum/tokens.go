package qvantum

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// tokenExpiryMargin is subtracted from the server-reported token lifetime.
// It absorbs clock skew and in-flight request latency so a request is never
// sent with a token that expires mid-flight.
const tokenExpiryMargin = 60 * time.Second

// tokenSet holds the bearer tokens returned by the identity server. The
// set lives only in memory; a process restart always re-authenticates.
type tokenSet struct {
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

// refreshResponse is the token server's refresh-exchange response. Field
// names differ from the sign-in response.
type refreshResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
}

// ensureValidTokens guarantees a usable bearer token exists and returns it.
// If no token set exists a full sign-in is performed. If the set is past
// its expiry-with-margin timestamp a refresh exchange is attempted first,
// falling back to a full sign-in on any refresh failure.
//
// Concurrent fast and normal pollers share one Client, so acquisition is
// serialized; a duplicate refresh around the expiry boundary would be
// harmless (each exchange yields a fresh valid set) but the lock keeps the
// stored set and its expiry consistent.
func (c *Client) ensureValidTokens(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.tokens != nil && c.now().Before(c.tokenExpiry) {
		return c.tokens.IDToken, nil
	}

	if c.tokens != nil {
		if err := c.refreshAccessToken(ctx); err != nil {
			c.logger.Debug("Token refresh failed, falling back to full sign-in",
				"component", "qvantum",
				"error", err,
			)
			if err := c.authenticate(ctx); err != nil {
				return "", err
			}
		}
	} else if err := c.authenticate(ctx); err != nil {
		return "", err
	}

	if err := c.recomputeTokenExpiry(); err != nil {
		return "", err
	}
	return c.tokens.IDToken, nil
}

// Authenticate performs a full email/password sign-in. It is called lazily
// by every request, but the daemon also calls it once at startup so invalid
// credentials surface before any poller is scheduled.
func (c *Client) Authenticate(ctx context.Context) error {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	if err := c.authenticate(ctx); err != nil {
		return err
	}
	return c.recomputeTokenExpiry()
}

// authenticate signs in against the identity endpoint. Caller holds tokenMu.
func (c *Client) authenticate(ctx context.Context) error {
	payload := map[string]any{
		"returnSecureToken": "true",
		"email":             c.creds.Email,
		"password":          c.creds.Password,
		"clientType":        "CLIENT_TYPE_WEB",
	}
	url := fmt.Sprintf("%s/v1/accounts:signInWithPassword?key=%s", c.creds.AuthServer, c.creds.APIKey)

	c.logger.Debug("Authenticating with Qvantum API", "component", "qvantum")

	var tokens tokenSet
	if err := c.doRequest(ctx, "POST", url, payload, &tokens, false); err != nil {
		return err
	}
	if tokens.IDToken == "" {
		return newAuthError("Authentication response contained no token")
	}

	c.tokens = &tokens
	c.logger.Info("Successfully authenticated with Qvantum API", "component", "qvantum")
	return nil
}

// refreshAccessToken exchanges the refresh token for a new set. Caller
// holds tokenMu.
func (c *Client) refreshAccessToken(ctx context.Context) error {
	if c.tokens == nil {
		return newAuthError("No tokens available for refresh")
	}

	c.logger.Debug("Refreshing access token", "component", "qvantum")

	payload := map[string]any{
		"grant_type":    "refresh_token",
		"refresh_token": c.tokens.RefreshToken,
	}
	url := fmt.Sprintf("%s/v1/token?key=%s", c.creds.TokenServer, c.creds.APIKey)

	var refreshed refreshResponse
	if err := c.doRequest(ctx, "POST", url, payload, &refreshed, false); err != nil {
		return err
	}
	if refreshed.IDToken == "" {
		return newAuthError("Refresh response contained no token")
	}

	c.tokens.IDToken = refreshed.IDToken
	c.tokens.RefreshToken = refreshed.RefreshToken
	c.tokens.ExpiresIn = refreshed.ExpiresIn

	c.logger.Debug("Successfully refreshed access token", "component", "qvantum")
	return nil
}

// recomputeTokenExpiry derives the expiry timestamp from the lifetime the
// server reported with the current set. Caller holds tokenMu.
func (c *Client) recomputeTokenExpiry() error {
	lifetime, err := strconv.Atoi(c.tokens.ExpiresIn)
	if err != nil {
		return newAPIError(fmt.Sprintf("invalid token lifetime %q", c.tokens.ExpiresIn), 0)
	}
	c.tokenExpiry = c.now().Add(time.Duration(lifetime)*time.Second - tokenExpiryMargin)
	return nil
}

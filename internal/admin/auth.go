package admin

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tjfontaine/portfolio-pulse/internal/apierr"
	"github.com/tjfontaine/portfolio-pulse/internal/localstate"
)

// TokenExpired reports whether token is a JWT whose exp claim is at or
// before now. The signature is not checked; the backend remains the
// authority. Tokens that are not JWTs, or carry no exp, never expire here.
func TokenExpired(token string, now time.Time) bool {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	return claims.ExpiresAt != nil && !now.Before(claims.ExpiresAt.Time)
}

// accessToken returns the bearer token, loading it from the state store on
// first use.
func (c *Client) accessToken(ctx context.Context) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		if h, err := localstate.LoadAuth(ctx, c.state); err == nil {
			c.token = h.AccessToken
		}
		c.loaded = true
	}
	return c.token
}

// authorize attaches credentials to req. An expired token ends the session
// before any request is made.
func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	token := c.accessToken(ctx)
	if token == "" {
		if c.hasCookies(req.URL) {
			return nil
		}
		return apierr.NewAPIError(apierr.KindAuth, "not logged in").
			WithRequest(req.Method, req.URL.Path).
			WithCause(apierr.ErrUnauthorized)
	}
	if TokenExpired(token, c.now()) {
		return c.expire(ctx, req.Method, req.URL.Path, 0)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// expire clears the local session and returns the session-expired error.
func (c *Client) expire(ctx context.Context, method, path string, status int) error {
	if err := c.forget(ctx); err != nil {
		c.logger.Warn("failed to clear session hints", slog.String("error", err.Error()))
	}
	c.logger.Info("admin session expired", slog.String("path", path))
	return apierr.NewAPIError(apierr.KindAuth, "session expired").
		WithRequest(method, path).
		WithStatusCode(status).
		WithCause(apierr.ErrSessionExpired)
}

func (c *Client) forget(ctx context.Context) error {
	c.mu.Lock()
	c.token = ""
	c.loaded = true
	c.mu.Unlock()
	return localstate.ClearAuth(ctx, c.state)
}

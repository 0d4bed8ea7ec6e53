// Package localstate persists the small amount of client state the portfolio
// keeps between runs: the selected theme and admin session hints.
package localstate

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// Keys used by the portfolio clients.
const (
	KeyTheme           = "portfolio-theme"
	KeyIsAuthenticated = "isAuthenticated"
	KeyAdmin           = "admin"
	KeyAccessToken     = "accessToken"
)

// Store is a string key/value store.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Open returns the store for driver: "memory" or "sqlite". path is the
// database file for sqlite.
func Open(driver, path string) (Store, error) {
	switch driver {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		return NewSQLite(path)
	default:
		return nil, fmt.Errorf("unknown state driver: %s", driver)
	}
}

// AuthHints mirror the admin session. They are hints only; the backend is
// the authority on whether a session is valid.
type AuthHints struct {
	IsAuthenticated bool
	Admin           json.RawMessage
	AccessToken     string
}

// SaveAuth stores h.
func SaveAuth(ctx context.Context, s Store, h AuthHints) error {
	if err := s.Set(ctx, KeyIsAuthenticated, strconv.FormatBool(h.IsAuthenticated)); err != nil {
		return err
	}
	if len(h.Admin) > 0 {
		if err := s.Set(ctx, KeyAdmin, string(h.Admin)); err != nil {
			return err
		}
	}
	if h.AccessToken != "" {
		if err := s.Set(ctx, KeyAccessToken, h.AccessToken); err != nil {
			return err
		}
	}
	return nil
}

// LoadAuth reads the stored hints. Missing keys yield zero values.
func LoadAuth(ctx context.Context, s Store) (AuthHints, error) {
	var h AuthHints

	v, ok, err := s.Get(ctx, KeyIsAuthenticated)
	if err != nil {
		return h, err
	}
	if ok {
		h.IsAuthenticated, _ = strconv.ParseBool(v)
	}

	if v, ok, err = s.Get(ctx, KeyAdmin); err != nil {
		return h, err
	} else if ok {
		h.Admin = json.RawMessage(v)
	}

	if v, ok, err = s.Get(ctx, KeyAccessToken); err != nil {
		return h, err
	} else if ok {
		h.AccessToken = v
	}
	return h, nil
}

// ClearAuth removes every admin session hint.
func ClearAuth(ctx context.Context, s Store) error {
	for _, key := range []string{KeyIsAuthenticated, KeyAdmin, KeyAccessToken} {
		if err := s.Delete(ctx, key); err != nil {
			return fmt.Errorf("failed to clear %s: %w", key, err)
		}
	}
	return nil
}

package session

import (
	"context"
	"time"
)

// Denylist records sessions ended by logout until their token would have expired.
type Denylist interface {
	Revoke(ctx context.Context, sessionID string, until time.Time) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}

// NopDenylist never revokes; logout then only ends the session client side.
type NopDenylist struct{}

func (NopDenylist) Revoke(context.Context, string, time.Time) error { return nil }

func (NopDenylist) IsRevoked(context.Context, string) (bool, error) { return false, nil }

// Package cache provides the key/value tiers used by the read-path caches.
// A Store is either process-local (Memory), shared between instances (Redis),
// or absent (Noop). Callers never branch on which one they hold.
package cache

import (
	"context"
	"time"
)

type Store interface {
	// Get returns ok=false on a miss. An error means the tier itself failed.
	Get(ctx context.Context, key string) (val []byte, ok bool, err error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Noop stands in for an unconfigured shared tier: every read misses and every
// write succeeds.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, bool, error)       { return nil, false, nil }
func (Noop) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (Noop) Delete(context.Context, string) error                     { return nil }

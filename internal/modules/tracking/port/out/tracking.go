package out

import "context"

// KVStore persists opaque snapshot payloads. Get returns apperrors.ErrNotFound
// for unknown keys.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

// SignalFilter decides whether a playing video should be tracked at all.
type SignalFilter interface {
	Allow(ctx context.Context, title, url string) (allowed bool, reason string, err error)
}

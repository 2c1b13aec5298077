package store

import "context"

// KVStore is the device-local durable key-value primitive.  Values are
// opaque bytes; callers own the encoding.
type KVStore interface {
	Set(ctx context.Context, key string, value []byte) error
	// Get returns ok=false (and no error) when the key has never been set.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
}

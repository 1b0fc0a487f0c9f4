package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache defines the interface for caching loaded configuration
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any, ttl time.Duration)
	Delete(key string)
	Clear()
}

// Key generates a cache key for a kind of value loaded from source
func Key(kind, source string) string {
	hash := sha256.Sum256([]byte(source))
	return "techtag:v1:" + kind + ":" + hex.EncodeToString(hash[:])
}

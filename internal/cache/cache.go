package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache defines the interface for run-scoped caching of embedding vectors
// and retrieval responses
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key generates a cache key from arbitrary text (query or statement)
func Key(namespace, text string) string {
	hash := sha256.Sum256([]byte(text))
	return "risksafe:v1:" + namespace + ":" + hex.EncodeToString(hash[:])
}

package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"

	"github.com/pendergraft/contraverify/internal/storage"
)

// KeyPrefix is the prefix of keys issued by the key store.
const KeyPrefix = "cv_key_"

// KeyValidator resolves a raw API key to its record.
type KeyValidator interface {
	ValidateAPIKey(ctx context.Context, key string) (*storage.APIKey, error)
}

// HashAPIKey hashes an API key for storage.
func HashAPIKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

// StaticKeys validates keys configured through the environment. Only
// hashes are held in memory.
type StaticKeys struct {
	hashes [][sha256.Size]byte
}

// NewStaticKeys hashes the given raw keys. Empty entries are ignored.
func NewStaticKeys(keys []string) *StaticKeys {
	s := &StaticKeys{}
	for _, k := range keys {
		if k == "" {
			continue
		}
		s.hashes = append(s.hashes, sha256.Sum256([]byte(k)))
	}
	return s
}

// Len returns the number of configured keys.
func (s *StaticKeys) Len() int {
	return len(s.hashes)
}

// ValidateAPIKey implements KeyValidator.
func (s *StaticKeys) ValidateAPIKey(_ context.Context, key string) (*storage.APIKey, error) {
	sum := sha256.Sum256([]byte(key))
	match := 0
	for _, h := range s.hashes {
		match |= subtle.ConstantTimeCompare(sum[:], h[:])
	}
	if match == 0 {
		return nil, storage.ErrNotFound
	}
	hash := hex.EncodeToString(sum[:])
	return &storage.APIKey{ID: "static:" + hash[:12], Name: "static", KeyHash: hash}, nil
}

// Chain tries each validator in order and returns the first match.
type Chain []KeyValidator

// ValidateAPIKey implements KeyValidator.
func (c Chain) ValidateAPIKey(ctx context.Context, key string) (*storage.APIKey, error) {
	for _, v := range c {
		if v == nil {
			continue
		}
		ak, err := v.ValidateAPIKey(ctx, key)
		if err == nil {
			return ak, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
	}
	return nil, storage.ErrNotFound
}

// internal/engine/otp/store.go
package otp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"firmadoc-engine/internal/common/database"

	"github.com/redis/go-redis/v9"
)

// ErrNoCredential signals that no credential is stored for the document,
// either because none was ever issued or because the TTL elapsed.
var ErrNoCredential = errors.New("no credential stored")

// Credential is the stored one-time code for a document.
type Credential struct {
	Code     string    `json:"code"`
	IssuedAt time.Time `json:"issuedAt"`
	Consumed bool      `json:"consumed"`
}

// CredentialStore persists at most one credential per document. Put replaces
// any prior unconsumed credential.
type CredentialStore interface {
	Put(ctx context.Context, documentID string, cred Credential, ttl time.Duration) error
	Get(ctx context.Context, documentID string) (Credential, error)
	MarkConsumed(ctx context.Context, documentID string) error
}

// RedisStore keeps credentials in Redis with the OTP TTL. The consumed
// marker stays until the key expires, so a replayed code is reported as
// already consumed rather than expired.
type RedisStore struct {
	client *database.RedisClient
}

func NewRedisStore(client *database.RedisClient) *RedisStore {
	return &RedisStore{client: client}
}

func credentialKey(documentID string) string {
	return fmt.Sprintf("otp:%s", documentID)
}

func (s *RedisStore) Put(ctx context.Context, documentID string, cred Credential, ttl time.Duration) error {
	payload, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}
	return s.client.Set(ctx, credentialKey(documentID), payload, ttl)
}

func (s *RedisStore) Get(ctx context.Context, documentID string) (Credential, error) {
	raw, err := s.client.Get(ctx, credentialKey(documentID))
	if errors.Is(err, redis.Nil) {
		return Credential{}, ErrNoCredential
	}
	if err != nil {
		return Credential{}, fmt.Errorf("read credential: %w", err)
	}

	var cred Credential
	if err := json.Unmarshal([]byte(raw), &cred); err != nil {
		return Credential{}, fmt.Errorf("unmarshal credential: %w", err)
	}
	return cred, nil
}

func (s *RedisStore) MarkConsumed(ctx context.Context, documentID string) error {
	cred, err := s.Get(ctx, documentID)
	if err != nil {
		return err
	}
	cred.Consumed = true

	payload, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}
	// Preserve the remaining TTL of the issued code.
	return s.client.SetKeepTTL(ctx, credentialKey(documentID), payload)
}

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// IssuedKey is a newly created API key. Key is shown once; only its HMAC is stored.
type IssuedKey struct {
	APIKeyID string
	TenantID string
	Key      string
}

// IssueAPIKey generates a key under secretID, stores its digest for tenantID
// and returns the plaintext key.
func IssueAPIKey(ctx context.Context, q Queries, secretID string, secret []byte, tenantID, name string) (*IssuedKey, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant id required")
	}

	key, err := GenerateAPIKey(secretID)
	if err != nil {
		return nil, err
	}

	id := uuid.Must(uuid.NewV7()).String()
	_, err = q.ExecContext(ctx, "insert-api-key",
		id, tenantID, name, secretID, ComputeHMAC(secret, key), time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to store api key: %w", err)
	}

	return &IssuedKey{APIKeyID: id, TenantID: tenantID, Key: key}, nil
}

// RevokeAPIKey marks a key revoked. Revoking twice is a no-op.
func RevokeAPIKey(ctx context.Context, q Queries, apiKeyID string) error {
	if _, err := q.ExecContext(ctx, "revoke-api-key", time.Now().UTC(), apiKeyID); err != nil {
		return fmt.Errorf("failed to revoke api key %s: %w", apiKeyID, err)
	}
	return nil
}

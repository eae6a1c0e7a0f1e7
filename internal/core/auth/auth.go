// Package auth provides HMAC-based API key authentication for gRPC services.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// MetadataKey is the gRPC metadata header carrying the API key.
const MetadataKey = "x-api-key"

// lastUsedThrottle bounds last_used_at writes to one per key per interval.
const lastUsedThrottle = time.Minute

type contextKey string

const tenantIDKey = contextKey("tenant_id")

// Queries defines the database operations authentication needs.
// Implemented by *db.Queries.
type Queries interface {
	GetContext(ctx context.Context, name string, dest any, args ...any) error
	ExecContext(ctx context.Context, name string, args ...any) (sql.Result, error)
}

// Authenticator validates API keys against HMAC digests stored per tenant.
type Authenticator struct {
	secrets map[string][]byte
	queries Queries
	logger  hclog.Logger
}

// NewAuthenticator creates an authenticator over the environment's HMAC secrets.
// A nil logger discards output.
func NewAuthenticator(secrets map[string][]byte, queries Queries, logger hclog.Logger) *Authenticator {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Authenticator{
		secrets: secrets,
		queries: queries,
		logger:  logger,
	}
}

type apiKeyRow struct {
	APIKeyID   string       `db:"api_key_id"`
	TenantID   string       `db:"tenant_id"`
	RevokedAt  sql.NullTime `db:"revoked_at"`
	LastUsedAt sql.NullTime `db:"last_used_at"`
}

// Authenticate validates apiKey and returns its tenant id.
func (a *Authenticator) Authenticate(ctx context.Context, apiKey string) (string, error) {
	secretID, _, err := ParseAPIKey(apiKey)
	if err != nil {
		return "", err
	}

	secret, ok := a.secrets[secretID]
	if !ok {
		return "", ErrUnknownKey
	}

	// key_hash is unique, so the digest identifies at most one row
	var row apiKeyRow
	err = a.queries.GetContext(ctx, "get-api-key-by-hash", &row, ComputeHMAC(secret, apiKey))
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidKey
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorage, err)
	}

	if row.RevokedAt.Valid {
		return "", ErrKeyRevoked
	}

	if shouldUpdateLastUsed(row.LastUsedAt) {
		if _, err := a.queries.ExecContext(ctx, "update-last-used", time.Now().UTC(), row.APIKeyID); err != nil {
			a.logger.Warn("failed to update api key last_used_at", "api_key_id", row.APIKeyID, "error", err)
		}
	}

	return row.TenantID, nil
}

func shouldUpdateLastUsed(lastUsed sql.NullTime) bool {
	if !lastUsed.Valid {
		return true
	}
	return time.Since(lastUsed.Time) > lastUsedThrottle
}

// UnaryInterceptor returns a gRPC interceptor that authenticates every call
// and stores the tenant id in the handler's context.
func (a *Authenticator) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		apiKeys := md.Get(MetadataKey)
		if len(apiKeys) == 0 {
			return nil, status.Error(codes.Unauthenticated, ErrMissingKey.Error())
		}

		tenantID, err := a.Authenticate(ctx, apiKeys[0])
		if err != nil {
			switch {
			case errors.Is(err, ErrKeyRevoked):
				return nil, status.Error(codes.PermissionDenied, err.Error())
			case errors.Is(err, ErrStorage):
				a.logger.Error("authentication storage failure", "method", info.FullMethod, "error", err)
				return nil, status.Error(codes.Unavailable, ErrStorage.Error())
			default:
				return nil, status.Error(codes.Unauthenticated, err.Error())
			}
		}

		return handler(WithTenantID(ctx, tenantID), req)
	}
}

// WithTenantID returns ctx carrying an authenticated tenant id.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantIDKey, tenantID)
}

// TenantIDFromContext extracts tenant ID from context.
// Returns empty string if not found.
func TenantIDFromContext(ctx context.Context) string {
	if tenantID, ok := ctx.Value(tenantIDKey).(string); ok {
		return tenantID
	}
	return ""
}

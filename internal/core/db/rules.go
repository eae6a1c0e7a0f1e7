package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/solatis/rulekeeper/internal/types"
)

// RuleRecord is a stored alert rule. Expression holds the rule tree as JSON
// exactly as the builder serialized it.
type RuleRecord struct {
	RuleID     types.RuleID     `db:"rule_id"`
	TenantID   string           `db:"tenant_id"`
	Name       string           `db:"name"`
	EntityType types.EntityType `db:"entity_type"`
	Expression string           `db:"expression"`
	CreatedAt  time.Time        `db:"created_at"`
	UpdatedAt  time.Time        `db:"updated_at"`
}

// RuleStore persists alert rules per tenant.
// Every lookup is tenant-scoped; a rule owned by another tenant reads as absent.
type RuleStore struct {
	queries *Queries
	now     func() time.Time
}

// NewRuleStore creates a store over loaded named queries.
func NewRuleStore(queries *Queries) *RuleStore {
	return &RuleStore{queries: queries, now: time.Now}
}

// Save inserts or updates rec. A new rule's CreatedAt comes from its UUIDv7
// timestamp; updates keep the stored CreatedAt. Saving over another tenant's
// rule id reports ErrRuleNotFound.
func (s *RuleStore) Save(ctx context.Context, rec *RuleRecord) error {
	now := s.now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = types.RuleIDTime(rec.RuleID).UTC()
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
	}
	rec.UpdatedAt = now

	res, err := s.queries.ExecContext(ctx, "upsert-rule",
		rec.RuleID, rec.TenantID, rec.Name, rec.EntityType, rec.Expression, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save rule %s: %w", rec.RuleID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to save rule %s: %w", rec.RuleID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", types.ErrRuleNotFound, rec.RuleID)
	}
	return nil
}

// Get loads one rule.
func (s *RuleStore) Get(ctx context.Context, tenantID string, id types.RuleID) (*RuleRecord, error) {
	var rec RuleRecord
	err := s.queries.GetContext(ctx, "get-rule", &rec, id, tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", types.ErrRuleNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load rule %s: %w", id, err)
	}
	return &rec, nil
}

// List returns the tenant's rules ordered by id (creation order for UUIDv7).
// An empty entity type lists every type.
func (s *RuleStore) List(ctx context.Context, tenantID string, et types.EntityType) ([]RuleRecord, error) {
	recs := []RuleRecord{}
	if err := s.queries.SelectContext(ctx, "list-rules", &recs, tenantID, et, et); err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	return recs, nil
}

// Delete removes one rule. Deleting an absent rule reports ErrRuleNotFound.
func (s *RuleStore) Delete(ctx context.Context, tenantID string, id types.RuleID) error {
	res, err := s.queries.ExecContext(ctx, "delete-rule", id, tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete rule %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete rule %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", types.ErrRuleNotFound, id)
	}
	return nil
}

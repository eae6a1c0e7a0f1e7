package api

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/rulekeeper/internal/core/db"
	"github.com/solatis/rulekeeper/internal/rules"
	"github.com/solatis/rulekeeper/internal/types"
)

// SaveRule validates and persists a rule for the caller's tenant.
// Validation errors block the save; warnings are returned alongside the id.
// The rule is stored re-serialized, so ids and defaults are normalized.
func (s *RuleService) SaveRule(ctx context.Context, req *SaveRuleRequest) (*SaveRuleResponse, error) {
	tenantID, err := tenant(ctx)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "name is required")
	}
	if !req.EntityType.Valid() {
		return nil, invalidArgument(fmt.Errorf("%w: %q", types.ErrUnknownEntityType, req.EntityType))
	}

	id := req.RuleID
	if id == "" {
		id = types.NewRuleID()
	} else if id, err = types.ParseRuleID(string(id)); err != nil {
		return nil, invalidArgument(fmt.Errorf("invalid rule_id: %w", err))
	}

	root, err := s.parseRule(req.Rule)
	if err != nil {
		return nil, invalidArgument(err)
	}

	issues := s.engine.Validate(root, req.EntityType)
	if rules.HasErrors(issues) {
		return nil, status.Error(codes.InvalidArgument, "rule failed validation: "+issueSummary(issues))
	}

	expression, err := json.Marshal(root)
	if err != nil {
		return nil, invalidArgument(err)
	}

	rec := &db.RuleRecord{
		RuleID:     id,
		TenantID:   tenantID,
		Name:       name,
		EntityType: req.EntityType,
		Expression: string(expression),
	}
	if err := s.store.Save(ctx, rec); err != nil {
		return nil, storeError(err)
	}

	s.logger.Info("saved rule", "rule_id", id, "tenant_id", tenantID, "entity_type", req.EntityType, "warnings", len(issues))
	return &SaveRuleResponse{RuleID: id, Issues: issues}, nil
}

// issueSummary renders error-severity issues as "id: message" pairs.
func issueSummary(issues []rules.Issue) string {
	var parts []string
	for _, is := range issues {
		if is.Severity == rules.SeverityError {
			parts = append(parts, fmt.Sprintf("%s: %s", is.NodeID, is.Message))
		}
	}
	return strings.Join(parts, "; ")
}

// GetRule returns one rule of the caller's tenant.
func (s *RuleService) GetRule(ctx context.Context, req *GetRuleRequest) (*StoredRule, error) {
	tenantID, err := tenant(ctx)
	if err != nil {
		return nil, err
	}
	id, err := types.ParseRuleID(string(req.RuleID))
	if err != nil {
		return nil, invalidArgument(fmt.Errorf("invalid rule_id: %w", err))
	}

	rec, err := s.store.Get(ctx, tenantID, id)
	if err != nil {
		return nil, storeError(err)
	}
	return toStoredRule(rec)
}

// ListRules returns the caller's rules, optionally narrowed to one entity type.
func (s *RuleService) ListRules(ctx context.Context, req *ListRulesRequest) (*ListRulesResponse, error) {
	tenantID, err := tenant(ctx)
	if err != nil {
		return nil, err
	}
	if req.EntityType != "" && !req.EntityType.Valid() {
		return nil, invalidArgument(fmt.Errorf("%w: %q", types.ErrUnknownEntityType, req.EntityType))
	}

	recs, err := s.store.List(ctx, tenantID, req.EntityType)
	if err != nil {
		return nil, storeError(err)
	}

	out := make([]StoredRule, 0, len(recs))
	for i := range recs {
		sr, err := toStoredRule(&recs[i])
		if err != nil {
			// Skip corrupt rule; continue listing the others
			s.logger.Warn("skipping corrupt stored rule", "rule_id", recs[i].RuleID, "tenant_id", tenantID, "error", err)
			continue
		}
		out = append(out, *sr)
	}

	return &ListRulesResponse{Rules: out, ETag: computeETag(out)}, nil
}

// DeleteRule removes one rule of the caller's tenant.
func (s *RuleService) DeleteRule(ctx context.Context, req *DeleteRuleRequest) (*DeleteRuleResponse, error) {
	tenantID, err := tenant(ctx)
	if err != nil {
		return nil, err
	}
	id, err := types.ParseRuleID(string(req.RuleID))
	if err != nil {
		return nil, invalidArgument(fmt.Errorf("invalid rule_id: %w", err))
	}

	if err := s.store.Delete(ctx, tenantID, id); err != nil {
		return nil, storeError(err)
	}

	s.logger.Info("deleted rule", "rule_id", id, "tenant_id", tenantID)
	return &DeleteRuleResponse{}, nil
}

// toStoredRule converts a record, rejecting expressions that do not decode as a rule.
func toStoredRule(rec *db.RuleRecord) (*StoredRule, error) {
	if _, err := types.ParseRule([]byte(rec.Expression)); err != nil {
		return nil, status.Error(codes.DataLoss, fmt.Sprintf("stored rule %s is corrupt: %v", rec.RuleID, err))
	}
	return &StoredRule{
		RuleID:     rec.RuleID,
		Name:       rec.Name,
		EntityType: rec.EntityType,
		Rule:       json.RawMessage(rec.Expression),
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
	}, nil
}

// computeETag hashes sorted rule_id:updated_at pairs; same rules, same tag.
func computeETag(rs []StoredRule) string {
	pairs := make([]string, 0, len(rs))
	for _, r := range rs {
		pairs = append(pairs, string(r.RuleID)+":"+r.UpdatedAt.UTC().Format(time.RFC3339Nano))
	}
	sort.Strings(pairs)

	h := sha256.New()
	for _, p := range pairs {
		h.Write([]byte(p))
		h.Write([]byte{'\n'})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

package api

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/rulekeeper/internal/rules"
	"github.com/solatis/rulekeeper/internal/types"
)

// TestRule evaluates an unsaved rule against pasted entity JSON.
// Malformed entity JSON yields a non-matching result with parse details.
func (s *RuleService) TestRule(ctx context.Context, req *TestRuleRequest) (*TestRuleResponse, error) {
	root, err := s.parseRule(req.Rule)
	if err != nil {
		return nil, invalidArgument(err)
	}
	if err := s.checkEntitySize(len(req.Entity)); err != nil {
		return nil, invalidArgument(err)
	}

	resp := &TestRuleResponse{}
	if req.EntityType != "" {
		if !req.EntityType.Valid() {
			return nil, invalidArgument(fmt.Errorf("%w: %q", types.ErrUnknownEntityType, req.EntityType))
		}
		resp.Issues = s.engine.Validate(root, req.EntityType)
	}

	resp.Result = s.evaluate(ctx, "TestRule", root, []byte(req.Entity))
	return resp, nil
}

// EvaluateStored evaluates a saved rule of the caller's tenant against an entity.
func (s *RuleService) EvaluateStored(ctx context.Context, req *EvaluateStoredRequest) (*EvaluateStoredResponse, error) {
	tenantID, err := tenant(ctx)
	if err != nil {
		return nil, err
	}
	id, err := types.ParseRuleID(string(req.RuleID))
	if err != nil {
		return nil, invalidArgument(fmt.Errorf("invalid rule_id: %w", err))
	}
	if err := s.checkEntitySize(len(req.Entity)); err != nil {
		return nil, invalidArgument(err)
	}

	rec, err := s.store.Get(ctx, tenantID, id)
	if err != nil {
		return nil, storeError(err)
	}

	root, err := types.ParseRule([]byte(rec.Expression))
	if err != nil {
		s.logger.Error("stored rule expression does not decode", "rule_id", id, "tenant_id", tenantID, "error", err)
		return nil, status.Error(codes.DataLoss, fmt.Sprintf("stored rule %s is corrupt: %v", id, err))
	}

	return &EvaluateStoredResponse{Result: s.evaluate(ctx, "EvaluateStored", root, req.Entity)}, nil
}

// evaluate parses entity and runs the rule, recording metrics either way.
func (s *RuleService) evaluate(ctx context.Context, method string, root *types.Group, entityJSON []byte) types.EvaluationResult {
	entity, err := rules.ParseEntity(entityJSON)
	if err != nil {
		s.metrics.parseError(ctx, method)
		s.logger.Debug("entity is not valid JSON", "method", method, "error", err)
		return rules.ParseErrorResult(err)
	}

	start := time.Now()
	result := s.engine.Evaluate(root, entity)
	elapsed := time.Since(start)

	s.metrics.record(ctx, method, result, elapsed)
	s.logger.Trace("evaluated rule", "method", method, "root", root.ID, "matches", result.Matches, "elapsed", elapsed)
	return result
}

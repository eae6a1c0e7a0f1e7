package api

import (
	"context"
	"fmt"

	"github.com/solatis/rulekeeper/internal/rules"
)

// ListFields returns the builder fields for an entity type.
// An unknown entity type yields an empty list, not an error.
func (s *RuleService) ListFields(ctx context.Context, req *ListFieldsRequest) (*ListFieldsResponse, error) {
	return &ListFieldsResponse{Fields: s.engine.FieldsFor(req.EntityType)}, nil
}

// ListOperators returns the legal operators for a value type in display order.
func (s *RuleService) ListOperators(ctx context.Context, req *ListOperatorsRequest) (*ListOperatorsResponse, error) {
	if !req.ValueType.Valid() {
		return nil, invalidArgument(fmt.Errorf("unknown value type %q", req.ValueType))
	}
	return &ListOperatorsResponse{Operators: rules.OperatorsFor(req.ValueType)}, nil
}

package rules

import (
	"encoding/json"
	"fmt"

	"github.com/solatis/rulekeeper/internal/types"
)

// Engine binds the evaluator to an injected field registry.
// The registry feeds the builder and validation; evaluation never reads it.
type Engine struct {
	registry *Registry
}

// NewEngine creates an engine over registry.
func NewEngine(registry *Registry) *Engine {
	return &Engine{registry: registry}
}

// Registry returns the engine's field registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Evaluate checks a parsed entity against the rule.
func (e *Engine) Evaluate(root *types.Group, entity types.Entity) types.EvaluationResult {
	return Evaluate(root, entity)
}

// Test parses entity JSON as pasted by a user and evaluates the rule against it.
// Malformed JSON is reported in the result, never returned as an error.
func (e *Engine) Test(root *types.Group, entityJSON []byte) types.EvaluationResult {
	entity, err := ParseEntity(entityJSON)
	if err != nil {
		return ParseErrorResult(err)
	}
	return Evaluate(root, entity)
}

// Validate lists problems in root against the engine's registry.
func (e *Engine) Validate(root *types.Group, et types.EntityType) []Issue {
	return Validate(root, et, e.registry)
}

// FieldsFor returns the builder fields for et.
func (e *Engine) FieldsFor(et types.EntityType) []types.FieldDescriptor {
	return e.registry.FieldsFor(et)
}

// ParseEntity decodes entity JSON into generic maps, slices and scalars.
func ParseEntity(data []byte) (types.Entity, error) {
	var entity any
	if err := json.Unmarshal(data, &entity); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidJSON, err)
	}
	return entity, nil
}

// ParseErrorResult is the non-matching result reported for malformed entity JSON.
func ParseErrorResult(err error) types.EvaluationResult {
	return types.EvaluationResult{
		Matches: false,
		Error:   err.Error(),
		Details: map[string]string{"parseError": "Invalid JSON"},
	}
}

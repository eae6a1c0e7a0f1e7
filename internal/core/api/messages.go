package api

import (
	"encoding/json"
	"time"

	"github.com/solatis/rulekeeper/internal/rules"
	"github.com/solatis/rulekeeper/internal/types"
)

// TestRuleRequest evaluates an unsaved rule against pasted entity text.
// Entity is raw text so malformed JSON reaches the evaluator and is reported
// in the result instead of failing the call.
type TestRuleRequest struct {
	Rule       json.RawMessage  `json:"rule"`
	Entity     string           `json:"entity"`
	EntityType types.EntityType `json:"entity_type,omitempty"`
}

// TestRuleResponse carries the explanation tree and, when an entity type was
// given, validation issues for the rule.
type TestRuleResponse struct {
	Result types.EvaluationResult `json:"result"`
	Issues []rules.Issue          `json:"issues,omitempty"`
}

// SaveRuleRequest creates a rule (empty RuleID) or replaces one.
type SaveRuleRequest struct {
	RuleID     types.RuleID     `json:"rule_id,omitempty"`
	Name       string           `json:"name"`
	EntityType types.EntityType `json:"entity_type"`
	Rule       json.RawMessage  `json:"rule"`
}

// SaveRuleResponse returns the stored id and any non-blocking warnings.
type SaveRuleResponse struct {
	RuleID types.RuleID  `json:"rule_id"`
	Issues []rules.Issue `json:"issues,omitempty"`
}

type GetRuleRequest struct {
	RuleID types.RuleID `json:"rule_id"`
}

// StoredRule is a persisted rule as returned to clients.
type StoredRule struct {
	RuleID     types.RuleID     `json:"rule_id"`
	Name       string           `json:"name"`
	EntityType types.EntityType `json:"entity_type"`
	Rule       json.RawMessage  `json:"rule"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

type ListRulesRequest struct {
	EntityType types.EntityType `json:"entity_type,omitempty"`
}

// ListRulesResponse carries the rules and an ETag over their ids and update
// times; an unchanged ETag means a client's cached list is current.
type ListRulesResponse struct {
	Rules []StoredRule `json:"rules"`
	ETag  string       `json:"etag"`
}

type DeleteRuleRequest struct {
	RuleID types.RuleID `json:"rule_id"`
}

type DeleteRuleResponse struct{}

// EvaluateStoredRequest evaluates a saved rule against an entity.
type EvaluateStoredRequest struct {
	RuleID types.RuleID    `json:"rule_id"`
	Entity json.RawMessage `json:"entity"`
}

type EvaluateStoredResponse struct {
	Result types.EvaluationResult `json:"result"`
}

type ListFieldsRequest struct {
	EntityType types.EntityType `json:"entity_type"`
}

type ListFieldsResponse struct {
	Fields []types.FieldDescriptor `json:"fields"`
}

type ListOperatorsRequest struct {
	ValueType types.ValueType `json:"value_type"`
}

type ListOperatorsResponse struct {
	Operators []types.Operator `json:"operators"`
}

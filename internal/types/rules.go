// internal/types/rules.go
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

/*
 * Rule tree model for alert condition evaluation.
 *
 * A rule is a tree whose root is always a Group. Groups combine their children
 * with AND, OR or NOT (none-of); leaves are field Conditions. Node is a sealed
 * sum type: only *Condition and *Group implement it, and every dispatch point
 * uses a type switch.
 *
 * Wire format (exchanged verbatim with the builder and the rule store):
 *   Group     := {id, type: "group", operator: "AND"|"OR"|"NOT", conditions: Node[]}
 *   Condition := {id, type: "field", field, operator, value, values}
 *
 * Operator strings outside the known set survive decode and re-encode
 * unchanged; the evaluator fails closed on them.
 *
 * Key types:
 *   - Node: sealed interface over *Condition and *Group
 *   - Operator, GroupOperator: string enums
 *   - EvaluationResult: explanation tree mirroring the rule's shape
 */

// Operator is a field comparison operator.
type Operator string

const (
	OpEq         Operator = "eq"
	OpNeq        Operator = "neq"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "starts_with"
	OpEndsWith   Operator = "ends_with"
	OpIsNull     Operator = "is_null"
	OpIsNotNull  Operator = "is_not_null"
	OpGt         Operator = "gt"
	OpGte        Operator = "gte"
	OpLt         Operator = "lt"
	OpLte        Operator = "lte"
	OpIn         Operator = "in"
	OpNotIn      Operator = "not_in"
)

// Known reports whether op is one of the defined operators.
func (op Operator) Known() bool {
	switch op {
	case OpEq, OpNeq, OpContains, OpStartsWith, OpEndsWith, OpIsNull, OpIsNotNull,
		OpGt, OpGte, OpLt, OpLte, OpIn, OpNotIn:
		return true
	default:
		return false
	}
}

// MultiValued reports whether op reads Condition.Values instead of Value.
func (op Operator) MultiValued() bool {
	return op == OpIn || op == OpNotIn
}

// GroupOperator combines a group's child results.
type GroupOperator string

const (
	GroupAnd GroupOperator = "AND"
	GroupOr  GroupOperator = "OR"
	// GroupNot matches when none of the children match.
	GroupNot GroupOperator = "NOT"
)

// Valid reports whether op is AND, OR or NOT.
func (op GroupOperator) Valid() bool {
	return op == GroupAnd || op == GroupOr || op == GroupNot
}

// Node type tags used on the wire.
const (
	KindField = "field"
	KindGroup = "group"
)

// Node is either a *Condition or a *Group.
type Node interface {
	NodeID() string
	Kind() string
	sealed()
}

// Condition is a leaf comparing one entity field to an expected value.
// Value serves single-valued operators; Values serves in/not_in.
type Condition struct {
	ID       string
	Field    string
	Operator Operator
	Value    any
	Values   []any
}

// Group combines child nodes. A group exclusively owns its children.
type Group struct {
	ID         string
	Operator   GroupOperator
	Conditions []Node
}

func (c *Condition) NodeID() string { return c.ID }
func (c *Condition) Kind() string   { return KindField }
func (c *Condition) sealed()        {}

func (g *Group) NodeID() string { return g.ID }
func (g *Group) Kind() string   { return KindGroup }
func (g *Group) sealed()        {}

type conditionJSON struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
	Values   []any    `json:"values"`
}

type groupJSON struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Operator   GroupOperator     `json:"operator"`
	Conditions []json.RawMessage `json:"conditions"`
}

// MarshalJSON implements json.Marshaler.
func (c *Condition) MarshalJSON() ([]byte, error) {
	values := c.Values
	if values == nil {
		values = []any{}
	}
	value := c.Value
	if value == nil {
		value = ""
	}
	return json.Marshal(conditionJSON{
		ID:       c.ID,
		Type:     KindField,
		Field:    c.Field,
		Operator: c.Operator,
		Value:    value,
		Values:   values,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Condition) UnmarshalJSON(data []byte) error {
	var raw conditionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Type != "" && raw.Type != KindField {
		return fmt.Errorf("%w: %q", ErrUnknownNodeType, raw.Type)
	}
	*c = Condition{
		ID:       raw.ID,
		Field:    raw.Field,
		Operator: raw.Operator,
		Value:    raw.Value,
		Values:   raw.Values,
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (g *Group) MarshalJSON() ([]byte, error) {
	children := make([]json.RawMessage, 0, len(g.Conditions))
	for i, child := range g.Conditions {
		if child == nil {
			return nil, fmt.Errorf("group %s child %d: %w", g.ID, i, ErrNilNode)
		}
		b, err := json.Marshal(child)
		if err != nil {
			return nil, err
		}
		children = append(children, b)
	}
	return json.Marshal(groupJSON{
		ID:         g.ID,
		Type:       KindGroup,
		Operator:   g.Operator,
		Conditions: children,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
// Unknown group operators are rejected; unlike field operators they have no
// fail-closed evaluation.
func (g *Group) UnmarshalJSON(data []byte) error {
	var raw groupJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Type != "" && raw.Type != KindGroup {
		return fmt.Errorf("%w: %q", ErrUnknownNodeType, raw.Type)
	}
	if !raw.Operator.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidGroupOperator, raw.Operator)
	}
	children := make([]Node, 0, len(raw.Conditions))
	for i, rc := range raw.Conditions {
		child, err := UnmarshalNode(rc)
		if err != nil {
			return fmt.Errorf("group %s child %d: %w", raw.ID, i, err)
		}
		children = append(children, child)
	}
	*g = Group{
		ID:         raw.ID,
		Operator:   raw.Operator,
		Conditions: children,
	}
	return nil
}

// UnmarshalNode decodes a single node, dispatching on its "type" tag.
// A node without a tag is a group when it carries a conditions list.
func UnmarshalNode(data []byte) (Node, error) {
	var probe struct {
		Type       string          `json:"type"`
		Conditions json.RawMessage `json:"conditions"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}
	kind := probe.Type
	if kind == "" {
		kind = KindField
		if len(probe.Conditions) > 0 && !bytes.Equal(probe.Conditions, []byte("null")) {
			kind = KindGroup
		}
	}
	switch kind {
	case KindGroup:
		g := &Group{}
		if err := g.UnmarshalJSON(data); err != nil {
			return nil, err
		}
		return g, nil
	case KindField:
		c := &Condition{}
		if err := c.UnmarshalJSON(data); err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownNodeType, probe.Type)
	}
}

// ParseRule decodes rule JSON whose root must be a group.
func ParseRule(data []byte) (*Group, error) {
	if !json.Valid(data) {
		return nil, ErrInvalidJSON
	}
	node, err := UnmarshalNode(data)
	if err != nil {
		return nil, err
	}
	g, ok := node.(*Group)
	if !ok {
		return nil, ErrRootNotGroup
	}
	return g, nil
}

// EvaluationResult explains one node's outcome. Group results carry the
// group operator and child results in rule order; condition results carry
// the field, operator, expected value and resolved actual value.
// Missing distinguishes an absent field from an explicit JSON null.
type EvaluationResult struct {
	Matches  bool               `json:"matches"`
	NodeID   string             `json:"id,omitempty"`
	Operator string             `json:"operator,omitempty"`
	Results  []EvaluationResult `json:"results,omitempty"`
	Field    string             `json:"field,omitempty"`
	Expected any                `json:"expected,omitempty"`
	Actual   any                `json:"actual,omitempty"`
	Missing  bool               `json:"missing,omitempty"`
	Error    string             `json:"error,omitempty"`
	Details  map[string]string  `json:"details,omitempty"`
}

// MarshalJSON always emits results for group nodes, as [] when the group is
// empty. Condition results leave Results nil and omit the key.
func (r EvaluationResult) MarshalJSON() ([]byte, error) {
	type plain EvaluationResult
	if r.Results == nil {
		return json.Marshal(plain(r))
	}
	return json.Marshal(struct {
		plain
		Results []EvaluationResult `json:"results"`
	}{plain(r), r.Results})
}

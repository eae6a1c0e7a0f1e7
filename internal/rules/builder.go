package rules

import (
	"fmt"

	"github.com/solatis/rulekeeper/internal/types"
)

// Builder-facing rule mutations. All edits happen in place on the tree the
// caller owns; ids survive every edit except the structural add that creates
// a node. Callers must not run these while an evaluation over the same tree is
// in flight.

// NewCondition returns a fresh condition with operator eq and no field or value.
func NewCondition() *types.Condition {
	return &types.Condition{
		ID:       types.NewNodeID(),
		Operator: types.OpEq,
		Value:    "",
		Values:   []any{},
	}
}

// NewGroup returns a fresh group holding one fresh condition.
func NewGroup(op types.GroupOperator) (*types.Group, error) {
	if !op.Valid() {
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidGroupOperator, op)
	}
	return &types.Group{
		ID:         types.NewNodeID(),
		Operator:   op,
		Conditions: []types.Node{NewCondition()},
	}, nil
}

// NewRule returns an AND root group with one fresh condition.
func NewRule() *types.Group {
	g, _ := NewGroup(types.GroupAnd)
	return g
}

// AddCondition appends a fresh condition to g and returns it.
func AddCondition(g *types.Group) (*types.Condition, error) {
	if g == nil {
		return nil, types.ErrNilNode
	}
	c := NewCondition()
	g.Conditions = append(g.Conditions, c)
	return c, nil
}

// AddGroup appends a fresh nested group to g. depth is g's own nesting level
// with the root at 1; nesting past MaxBuilderDepth is refused.
func AddGroup(g *types.Group, op types.GroupOperator, depth int) (*types.Group, error) {
	if g == nil {
		return nil, types.ErrNilNode
	}
	if depth >= types.MaxBuilderDepth {
		return nil, fmt.Errorf("%w: %d", types.ErrMaxDepth, types.MaxBuilderDepth)
	}
	child, err := NewGroup(op)
	if err != nil {
		return nil, err
	}
	g.Conditions = append(g.Conditions, child)
	return child, nil
}

// UpdateChild replaces the child at index, leaving every other child untouched.
func UpdateChild(g *types.Group, index int, child types.Node) error {
	if g == nil || child == nil {
		return types.ErrNilNode
	}
	if index < 0 || index >= len(g.Conditions) {
		return fmt.Errorf("%w: %d of %d", types.ErrChildIndex, index, len(g.Conditions))
	}
	g.Conditions[index] = child
	return nil
}

// RemoveChild drops the child at index. The group may end up empty.
func RemoveChild(g *types.Group, index int) error {
	if g == nil {
		return types.ErrNilNode
	}
	if index < 0 || index >= len(g.Conditions) {
		return fmt.Errorf("%w: %d of %d", types.ErrChildIndex, index, len(g.Conditions))
	}
	g.Conditions = append(g.Conditions[:index:index], g.Conditions[index+1:]...)
	return nil
}

// SetField points c at field and resets operator to eq and clears
// value/values, so a numeric gt cannot survive a switch to a text field.
func SetField(c *types.Condition, field string) error {
	if c == nil {
		return types.ErrNilNode
	}
	c.Field = field
	c.Operator = types.OpEq
	c.Value = ""
	c.Values = []any{}
	return nil
}

// SetOperator changes c's operator only.
func SetOperator(c *types.Condition, op types.Operator) error {
	if c == nil {
		return types.ErrNilNode
	}
	c.Operator = op
	return nil
}

// SetValue sets the single expected value.
func SetValue(c *types.Condition, v any) error {
	if c == nil {
		return types.ErrNilNode
	}
	c.Value = v
	return nil
}

// SetValues sets the in/not_in list.
func SetValues(c *types.Condition, vs []any) error {
	if c == nil {
		return types.ErrNilNode
	}
	c.Values = append([]any{}, vs...)
	return nil
}

// SetGroupOperator switches g between AND, OR and NOT.
func SetGroupOperator(g *types.Group, op types.GroupOperator) error {
	if g == nil {
		return types.ErrNilNode
	}
	if !op.Valid() {
		return fmt.Errorf("%w: %q", types.ErrInvalidGroupOperator, op)
	}
	g.Operator = op
	return nil
}

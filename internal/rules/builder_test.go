package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solatis/rulekeeper/internal/types"
)

func TestNewRule(t *testing.T) {
	root := NewRule()

	assert.Equal(t, types.GroupAnd, root.Operator)
	assert.NotEmpty(t, root.ID)
	require.Len(t, root.Conditions, 1)

	c, ok := root.Conditions[0].(*types.Condition)
	require.True(t, ok)
	assert.Equal(t, types.OpEq, c.Operator)
	assert.Equal(t, "", c.Value)
	assert.Empty(t, c.Values)
	assert.NotEqual(t, root.ID, c.ID)
}

func TestNewGroup_InvalidOperator(t *testing.T) {
	_, err := NewGroup("XOR")
	assert.ErrorIs(t, err, types.ErrInvalidGroupOperator)
}

func TestSetField_ResetsOperatorAndValues(t *testing.T) {
	c := NewCondition()
	require.NoError(t, SetField(c, "incidents_7d"))
	require.NoError(t, SetOperator(c, types.OpGt))
	require.NoError(t, SetValue(c, 5.0))
	require.NoError(t, SetValues(c, []any{"a"}))
	id := c.ID

	require.NoError(t, SetField(c, "name"))

	assert.Equal(t, "name", c.Field)
	assert.Equal(t, types.OpEq, c.Operator)
	assert.Equal(t, "", c.Value)
	assert.Empty(t, c.Values)
	assert.Equal(t, id, c.ID)
}

func TestSetOperator_KeepsValue(t *testing.T) {
	c := NewCondition()
	require.NoError(t, SetValue(c, "APT"))
	require.NoError(t, SetOperator(c, types.OpStartsWith))

	assert.Equal(t, types.OpStartsWith, c.Operator)
	assert.Equal(t, "APT", c.Value)
}

func TestSetValues_Copies(t *testing.T) {
	c := NewCondition()
	in := []any{"ESCALATING", "STABLE"}
	require.NoError(t, SetValues(c, in))

	in[0] = "DECLINING"
	assert.Equal(t, "ESCALATING", c.Values[0])
}

func TestAddCondition(t *testing.T) {
	root := NewRule()
	c, err := AddCondition(root)
	require.NoError(t, err)

	require.Len(t, root.Conditions, 2)
	assert.Same(t, c, root.Conditions[1])
}

func TestAddGroup_DepthLimit(t *testing.T) {
	root := NewRule()

	g2, err := AddGroup(root, types.GroupOr, 1)
	require.NoError(t, err)
	g3, err := AddGroup(g2, types.GroupNot, 2)
	require.NoError(t, err)
	assert.Len(t, g3.Conditions, 1)

	_, err = AddGroup(g3, types.GroupAnd, 3)
	assert.ErrorIs(t, err, types.ErrMaxDepth)
	assert.Len(t, g3.Conditions, 1)
}

func TestUpdateChild_OnlyTouchesIndex(t *testing.T) {
	root := NewRule()
	_, err := AddCondition(root)
	require.NoError(t, err)
	first := root.Conditions[0]

	replacement := &types.Condition{ID: "new", Field: "name", Operator: types.OpContains, Value: "bear"}
	require.NoError(t, UpdateChild(root, 1, replacement))

	assert.Same(t, first, root.Conditions[0])
	assert.Same(t, replacement, root.Conditions[1])

	assert.ErrorIs(t, UpdateChild(root, 2, replacement), types.ErrChildIndex)
	assert.ErrorIs(t, UpdateChild(root, -1, replacement), types.ErrChildIndex)
	assert.ErrorIs(t, UpdateChild(root, 0, nil), types.ErrNilNode)
}

func TestRemoveChild(t *testing.T) {
	root := NewRule()
	_, err := AddCondition(root)
	require.NoError(t, err)
	second := root.Conditions[1]

	require.NoError(t, RemoveChild(root, 0))
	require.Len(t, root.Conditions, 1)
	assert.Same(t, second, root.Conditions[0])

	// Removing the last child leaves a legal empty group
	require.NoError(t, RemoveChild(root, 0))
	assert.Empty(t, root.Conditions)
	assert.True(t, Evaluate(root, map[string]any{}).Matches)

	assert.ErrorIs(t, RemoveChild(root, 0), types.ErrChildIndex)
}

func TestRemoveChild_DoesNotAliasCallerSlice(t *testing.T) {
	a := &types.Condition{ID: "a"}
	b := &types.Condition{ID: "b"}
	c := &types.Condition{ID: "c"}
	original := []types.Node{a, b, c}
	root := &types.Group{ID: "root", Operator: types.GroupAnd, Conditions: original}

	require.NoError(t, RemoveChild(root, 0))

	assert.Same(t, a, original[0])
	assert.Equal(t, []types.Node{b, c}, root.Conditions)
}

func TestSetGroupOperator(t *testing.T) {
	root := NewRule()
	require.NoError(t, SetGroupOperator(root, types.GroupNot))
	assert.Equal(t, types.GroupNot, root.Operator)

	assert.ErrorIs(t, SetGroupOperator(root, "NAND"), types.ErrInvalidGroupOperator)
	assert.Equal(t, types.GroupNot, root.Operator)
}

func TestBuilder_NilNodes(t *testing.T) {
	assert.ErrorIs(t, SetField(nil, "x"), types.ErrNilNode)
	assert.ErrorIs(t, SetValue(nil, "x"), types.ErrNilNode)
	assert.ErrorIs(t, RemoveChild(nil, 0), types.ErrNilNode)
	_, err := AddCondition(nil)
	assert.ErrorIs(t, err, types.ErrNilNode)
}

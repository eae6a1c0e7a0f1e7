// internal/rules/evaluate.go
package rules

import (
	"github.com/solatis/rulekeeper/internal/types"
)

/*
 * Rule evaluation.
 *
 * Evaluates a rule tree against a parsed entity and returns an explanation
 * tree mirroring the rule's shape.
 *
 * Evaluation flow:
 *   1. Group: evaluate every child in rule order (condition or nested group)
 *   2. Fold child results by the group operator:
 *        AND: all matched (empty AND is true)
 *        OR:  any matched (empty OR is false)
 *        NOT: none matched (empty NOT is true)
 *   3. Condition: resolve field path -> Compare -> record field, operator,
 *      expected and actual for the test panel
 *
 * No short-circuit: every child is evaluated even once the group's outcome
 * is settled, so the explanation tree is complete. Evaluation only reads the
 * rule and the entity, which makes concurrent evaluations over the same rule
 * safe as long as nobody mutates it meanwhile.
 *
 * Fail-closed cases: unknown field operators, nil children and unknown group
 * operators all produce matches=false, never a panic.
 */

// Evaluate checks whether entity matches the rule rooted at root.
func Evaluate(root *types.Group, entity types.Entity) types.EvaluationResult {
	if root == nil {
		return types.EvaluationResult{Matches: false, Error: "rule has no root group"}
	}
	return EvaluateGroup(root, entity)
}

// EvaluateGroup evaluates every child of g and folds the results.
func EvaluateGroup(g *types.Group, entity types.Entity) types.EvaluationResult {
	results := make([]types.EvaluationResult, 0, len(g.Conditions))
	matched := 0
	for _, child := range g.Conditions {
		r := evaluateNode(child, entity)
		if r.Matches {
			matched++
		}
		results = append(results, r)
	}

	return types.EvaluationResult{
		Matches:  combine(g.Operator, matched, len(results)),
		NodeID:   g.ID,
		Operator: string(g.Operator),
		Results:  results,
	}
}

// evaluateNode dispatches on the node's concrete type.
func evaluateNode(n types.Node, entity types.Entity) types.EvaluationResult {
	switch v := n.(type) {
	case nil:
		return types.EvaluationResult{Error: "nil node"}
	case *types.Group:
		if v == nil {
			return types.EvaluationResult{Error: "nil group"}
		}
		return EvaluateGroup(v, entity)
	case *types.Condition:
		if v == nil {
			return types.EvaluationResult{Error: "nil condition"}
		}
		return EvaluateCondition(v, Resolve(entity, v.Field))
	default:
		return types.EvaluationResult{Error: "unknown node"}
	}
}

// combine folds matched-of-total child counts by op.
func combine(op types.GroupOperator, matched, total int) bool {
	switch op {
	case types.GroupAnd:
		return matched == total
	case types.GroupOr:
		return matched > 0
	case types.GroupNot:
		return matched == 0
	default:
		return false
	}
}

// EvaluateCondition applies c to an already-resolved field value.
func EvaluateCondition(c *types.Condition, resolved ResolveResult) types.EvaluationResult {
	actual := resolved.Value
	if !resolved.Found {
		actual = Undefined
	}

	result := types.EvaluationResult{
		Matches:  Compare(c.Operator, actual, c.Value, c.Values),
		NodeID:   c.ID,
		Operator: string(c.Operator),
		Field:    c.Field,
		Expected: expectedOf(c),
		Actual:   resolved.Value,
		Missing:  !resolved.Found,
	}
	if !c.Operator.Known() {
		result.Error = "unknown operator"
	}
	return result
}

// expectedOf reports Values for in/not_in, otherwise Value falling back to Values.
func expectedOf(c *types.Condition) any {
	if c.Operator.MultiValued() {
		return c.Values
	}
	if c.Value == nil {
		return c.Values
	}
	return c.Value
}

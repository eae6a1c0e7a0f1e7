// internal/rules/validate.go
package rules

import (
	"fmt"

	"github.com/solatis/rulekeeper/internal/types"
)

/*
 * Rule validation against a field registry.
 *
 * Walks a rule tree and reports problems the builder should surface before a
 * rule is saved. Validation never blocks evaluation: the evaluator tolerates
 * every issue listed here and fails closed where needed.
 *
 * Checks, in tree order:
 *   1. Group operator is AND, OR or NOT
 *   2. Group is not empty (legal, but usually a mistake)
 *   3. Group nesting within MaxBuilderDepth
 *   4. Node ids unique across the tree
 *   5. Condition field set and present in the entity type's catalog
 *   6. Operator known and legal for the field's value type
 *   7. Select values drawn from the field's options
 *   8. in/not_in carry a non-empty values list within MaxInValues
 *
 * Severity: errors mark rules that cannot match as intended (stale operator,
 * unknown field); warnings mark legal but suspicious shapes (empty group).
 */

// Severity grades a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue codes.
const (
	IssueInvalidGroupOperator = "invalid_group_operator"
	IssueEmptyGroup           = "empty_group"
	IssueTooDeep              = "too_deep"
	IssueDuplicateID          = "duplicate_id"
	IssueMissingID            = "missing_id"
	IssueFieldUnset           = "field_unset"
	IssueUnknownField         = "unknown_field"
	IssueUnknownOperator      = "unknown_operator"
	IssueOperatorNotAllowed   = "operator_not_allowed"
	IssueOptionNotAllowed     = "option_not_allowed"
	IssueEmptyValues          = "empty_values"
	IssueTooManyValues        = "too_many_values"
	IssueNilNode              = "nil_node"
)

// Issue describes one problem found in a rule.
type Issue struct {
	NodeID   string   `json:"id"`
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, is := range issues {
		if is.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate lists problems in root for entity type et under registry r.
// A nil root yields a single error issue.
func Validate(root *types.Group, et types.EntityType, r *Registry) []Issue {
	v := &validator{entityType: et, registry: r, seen: make(map[string]bool)}
	if root == nil {
		v.add("", IssueNilNode, SeverityError, "rule has no root group")
		return v.issues
	}
	v.group(root, 1)
	return v.issues
}

type validator struct {
	entityType types.EntityType
	registry   *Registry
	seen       map[string]bool
	issues     []Issue
}

func (v *validator) add(id, code string, sev Severity, format string, args ...any) {
	v.issues = append(v.issues, Issue{
		NodeID:   id,
		Code:     code,
		Severity: sev,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (v *validator) checkID(id string) {
	if id == "" {
		v.add(id, IssueMissingID, SeverityWarning, "node has no id")
		return
	}
	if v.seen[id] {
		v.add(id, IssueDuplicateID, SeverityError, "node id %s appears more than once", id)
		return
	}
	v.seen[id] = true
}

func (v *validator) group(g *types.Group, depth int) {
	v.checkID(g.ID)
	if !g.Operator.Valid() {
		v.add(g.ID, IssueInvalidGroupOperator, SeverityError, "group operator %q is not AND, OR or NOT", g.Operator)
	}
	if depth > types.MaxBuilderDepth {
		v.add(g.ID, IssueTooDeep, SeverityWarning, "group nested %d levels deep, builder limit is %d", depth, types.MaxBuilderDepth)
	}
	if len(g.Conditions) == 0 {
		v.add(g.ID, IssueEmptyGroup, SeverityWarning, "empty %s group always evaluates to %t", g.Operator, combine(g.Operator, 0, 0))
	}
	for _, child := range g.Conditions {
		switch c := child.(type) {
		case *types.Group:
			if c == nil {
				v.add(g.ID, IssueNilNode, SeverityError, "group contains a nil child")
				continue
			}
			v.group(c, depth+1)
		case *types.Condition:
			if c == nil {
				v.add(g.ID, IssueNilNode, SeverityError, "group contains a nil child")
				continue
			}
			v.condition(c)
		default:
			v.add(g.ID, IssueNilNode, SeverityError, "group contains a nil child")
		}
	}
}

func (v *validator) condition(c *types.Condition) {
	v.checkID(c.ID)

	if !c.Operator.Known() {
		v.add(c.ID, IssueUnknownOperator, SeverityError, "unknown operator %q", c.Operator)
	}
	if c.Operator.MultiValued() {
		if len(c.Values) == 0 {
			v.add(c.ID, IssueEmptyValues, SeverityWarning, "%s with no values never matches as intended", c.Operator)
		}
		if len(c.Values) > types.MaxInValues {
			v.add(c.ID, IssueTooManyValues, SeverityError, "%d values exceeds limit of %d", len(c.Values), types.MaxInValues)
		}
	}

	if c.Field == "" {
		v.add(c.ID, IssueFieldUnset, SeverityError, "condition has no field")
		return
	}
	fd, ok := v.registry.Field(v.entityType, c.Field)
	if !ok {
		v.add(c.ID, IssueUnknownField, SeverityError, "field %q is not defined for %s", c.Field, v.entityType)
		return
	}
	if c.Operator.Known() && !OperatorAllowed(fd.ValueType, c.Operator) {
		v.add(c.ID, IssueOperatorNotAllowed, SeverityError, "operator %s is not valid for %s field %q", c.Operator, fd.ValueType, c.Field)
	}
	if fd.ValueType == types.ValueSelect {
		v.options(c, fd)
	}
}

// options checks that select comparisons use values from the field's option list.
func (v *validator) options(c *types.Condition, fd types.FieldDescriptor) {
	allowed := make(map[string]bool, len(fd.Options))
	for _, o := range fd.Options {
		allowed[o] = true
	}
	var candidates []any
	if c.Operator.MultiValued() {
		candidates = c.Values
	} else if c.Value != nil && c.Value != "" {
		candidates = []any{c.Value}
	}
	for _, val := range candidates {
		s := ToString(val)
		if !allowed[s] {
			v.add(c.ID, IssueOptionNotAllowed, SeverityWarning, "%q is not an option of %q", s, c.Field)
		}
	}
}

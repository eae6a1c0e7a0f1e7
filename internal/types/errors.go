package types

import "errors"

// Sentinel errors for RuleKeeper operations.
var (
	// ErrInvalidJSON indicates entity or rule input is not valid JSON.
	ErrInvalidJSON = errors.New("invalid JSON")

	// ErrUnknownNodeType indicates a rule node whose type tag is neither "group" nor "field".
	ErrUnknownNodeType = errors.New("unknown rule node type")

	// ErrRootNotGroup indicates a rule whose root node is a condition.
	ErrRootNotGroup = errors.New("rule root must be a group")

	// ErrInvalidGroupOperator indicates a group operator other than AND, OR or NOT.
	ErrInvalidGroupOperator = errors.New("invalid group operator")

	// ErrChildIndex indicates a child index outside the group's conditions.
	ErrChildIndex = errors.New("child index out of range")

	// ErrNilNode indicates a nil condition or group was passed to a builder operation.
	ErrNilNode = errors.New("nil rule node")

	// ErrMaxDepth indicates a group would be nested beyond MaxBuilderDepth.
	ErrMaxDepth = errors.New("group nesting exceeds maximum depth")

	// ErrUnknownEntityType indicates an entity type outside the fixed set.
	ErrUnknownEntityType = errors.New("unknown entity type")

	// ErrDuplicateField indicates a catalog lists the same field key twice.
	ErrDuplicateField = errors.New("duplicate field key in catalog")

	// ErrInvalidField indicates a catalog field with a bad type or options.
	ErrInvalidField = errors.New("invalid field descriptor")

	// ErrRuleTooLarge indicates serialized rule JSON exceeds MaxRuleSize.
	ErrRuleTooLarge = errors.New("rule exceeds maximum size")

	// ErrEntityTooLarge indicates entity JSON exceeds MaxEntitySize.
	ErrEntityTooLarge = errors.New("entity exceeds maximum size")

	// ErrRuleNotFound indicates no stored rule has the requested id.
	ErrRuleNotFound = errors.New("rule not found")
)

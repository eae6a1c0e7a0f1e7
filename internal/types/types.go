// Package types provides domain models shared across RuleKeeper components.
//
// Zero-dependency design: types.go, rules.go and errors.go use only the
// standard library so the rule model can be imported by any alerting pipeline
// without pulling in storage or transport deps. ID utilities in ids.go import
// uuid but are isolated in their own file.
package types

// RuleID represents a UUIDv7 identifier of a stored alert rule.
type RuleID string

// EntityType selects which field catalog applies to an entity.
type EntityType string

const (
	EntityActors          EntityType = "actors"
	EntityVulnerabilities EntityType = "vulnerabilities"
	EntityIncidents       EntityType = "incidents"
	EntityIOCs            EntityType = "iocs"
)

// EntityTypes lists every known entity type in display order.
var EntityTypes = []EntityType{EntityActors, EntityVulnerabilities, EntityIncidents, EntityIOCs}

// Valid reports whether t is one of the fixed entity types.
func (t EntityType) Valid() bool {
	switch t {
	case EntityActors, EntityVulnerabilities, EntityIncidents, EntityIOCs:
		return true
	default:
		return false
	}
}

// ValueType is the declared type of a catalog field.
type ValueType string

const (
	ValueText    ValueType = "text"
	ValueNumber  ValueType = "number"
	ValueSelect  ValueType = "select"
	ValueBoolean ValueType = "boolean"
)

// Valid reports whether vt is a known value type.
func (vt ValueType) Valid() bool {
	switch vt {
	case ValueText, ValueNumber, ValueSelect, ValueBoolean:
		return true
	default:
		return false
	}
}

// FieldDescriptor describes one field of an entity type.
// Options is set only for select fields.
type FieldDescriptor struct {
	Key       string    `json:"key" yaml:"key"`
	Label     string    `json:"label" yaml:"label"`
	ValueType ValueType `json:"valueType" yaml:"type"`
	Options   []string  `json:"options,omitempty" yaml:"options,omitempty"`
}

// Entity is an already-parsed JSON document (threat actor, incident,
// vulnerability or indicator record).
type Entity = any

// Resource limits enforced at the service boundary.
const (
	// MaxBuilderDepth caps interactive group nesting (root counts as level 1).
	// The evaluator itself has no depth bound.
	MaxBuilderDepth = 3

	// MaxRuleSize bounds serialized rule JSON accepted by the service.
	MaxRuleSize = 256 * 1024

	// MaxEntitySize bounds entity JSON accepted by the service.
	MaxEntitySize = 1024 * 1024

	// MaxInValues bounds the values list of in/not_in conditions.
	MaxInValues = 256
)

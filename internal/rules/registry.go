// internal/rules/registry.go
package rules

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"

	"github.com/solatis/rulekeeper/internal/types"
	"gopkg.in/yaml.v3"
)

/*
 * Field registry and operator table.
 *
 * The registry is the per-entity-type field catalog the rule builder offers.
 * It is configuration injected at construction, never package state, so
 * several tenants or schemas can hold different registries side by side.
 * The evaluator does not consult it; only validation and the builder do.
 *
 * Operator table: a static map from ValueType to an ordered operator list.
 * Order is the order the builder displays them.
 *
 * Catalog invariants checked by NewRegistry:
 *   - entity types are from the fixed set
 *   - keys are unique per entity type
 *   - options present iff the field is a select
 */

//go:embed catalogs/default.yaml
var defaultCatalogYAML []byte

// Catalog maps each entity type to its ordered field list.
type Catalog map[types.EntityType][]types.FieldDescriptor

var operatorTable = map[types.ValueType][]types.Operator{
	types.ValueText: {
		types.OpEq, types.OpNeq, types.OpContains, types.OpStartsWith,
		types.OpEndsWith, types.OpIsNull, types.OpIsNotNull,
	},
	types.ValueNumber: {
		types.OpEq, types.OpNeq, types.OpGt, types.OpGte, types.OpLt, types.OpLte,
	},
	types.ValueSelect: {
		types.OpEq, types.OpNeq, types.OpIn, types.OpNotIn,
	},
	types.ValueBoolean: {
		types.OpEq,
	},
}

// OperatorsFor returns the legal operators for vt in display order.
// Unknown value types yield an empty list.
func OperatorsFor(vt types.ValueType) []types.Operator {
	ops := operatorTable[vt]
	out := make([]types.Operator, len(ops))
	copy(out, ops)
	return out
}

// OperatorAllowed reports whether op is legal for vt.
func OperatorAllowed(vt types.ValueType, op types.Operator) bool {
	for _, candidate := range operatorTable[vt] {
		if candidate == op {
			return true
		}
	}
	return false
}

// Registry holds validated field catalogs.
type Registry struct {
	fields map[types.EntityType][]types.FieldDescriptor
	index  map[types.EntityType]map[string]int
}

// NewRegistry validates catalog and builds a registry from a private copy of it.
func NewRegistry(catalog Catalog) (*Registry, error) {
	r := &Registry{
		fields: make(map[types.EntityType][]types.FieldDescriptor, len(catalog)),
		index:  make(map[types.EntityType]map[string]int, len(catalog)),
	}
	for et, fields := range catalog {
		if !et.Valid() {
			return nil, fmt.Errorf("%w: %q", types.ErrUnknownEntityType, et)
		}
		idx := make(map[string]int, len(fields))
		copied := make([]types.FieldDescriptor, 0, len(fields))
		for _, f := range fields {
			if err := validateDescriptor(f); err != nil {
				return nil, fmt.Errorf("%s.%s: %w", et, f.Key, err)
			}
			if _, dup := idx[f.Key]; dup {
				return nil, fmt.Errorf("%s.%s: %w", et, f.Key, types.ErrDuplicateField)
			}
			idx[f.Key] = len(copied)
			f.Options = append([]string(nil), f.Options...)
			copied = append(copied, f)
		}
		r.fields[et] = copied
		r.index[et] = idx
	}
	return r, nil
}

// validateDescriptor checks a single field's key, type and options.
func validateDescriptor(f types.FieldDescriptor) error {
	if f.Key == "" {
		return fmt.Errorf("%w: empty key", types.ErrInvalidField)
	}
	if !f.ValueType.Valid() {
		return fmt.Errorf("%w: unknown value type %q", types.ErrInvalidField, f.ValueType)
	}
	if f.ValueType == types.ValueSelect && len(f.Options) == 0 {
		return fmt.Errorf("%w: select field requires options", types.ErrInvalidField)
	}
	if f.ValueType != types.ValueSelect && len(f.Options) > 0 {
		return fmt.Errorf("%w: options only allowed on select fields", types.ErrInvalidField)
	}
	return nil
}

// FieldsFor returns the fields of et in catalog order.
// Unknown entity types yield an empty list.
func (r *Registry) FieldsFor(et types.EntityType) []types.FieldDescriptor {
	if r == nil {
		return []types.FieldDescriptor{}
	}
	fields := r.fields[et]
	out := make([]types.FieldDescriptor, len(fields))
	copy(out, fields)
	return out
}

// Field looks up one field of et by key.
func (r *Registry) Field(et types.EntityType, key string) (types.FieldDescriptor, bool) {
	if r == nil {
		return types.FieldDescriptor{}, false
	}
	i, ok := r.index[et][key]
	if !ok {
		return types.FieldDescriptor{}, false
	}
	return r.fields[et][i], true
}

// ParseCatalog decodes a YAML catalog keyed by entity type.
func ParseCatalog(r io.Reader) (Catalog, error) {
	var catalog Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&catalog); err != nil {
		if err == io.EOF {
			return Catalog{}, nil
		}
		return nil, fmt.Errorf("failed to parse field catalog: %w", err)
	}
	return catalog, nil
}

// LoadRegistry builds a registry from a YAML catalog file.
// An empty path selects the embedded default catalog.
func LoadRegistry(path string) (*Registry, error) {
	if path == "" {
		return DefaultRegistry()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open field catalog: %w", err)
	}
	defer f.Close()

	catalog, err := ParseCatalog(f)
	if err != nil {
		return nil, err
	}
	return NewRegistry(catalog)
}

// DefaultRegistry builds a registry from the embedded catalog.
func DefaultRegistry() (*Registry, error) {
	catalog, err := ParseCatalog(bytes.NewReader(defaultCatalogYAML))
	if err != nil {
		return nil, err
	}
	return NewRegistry(catalog)
}

// Package schema resolves record types to the physical version tables that
// hold their history.
//
// A record type may extend another type, and each type in the chain may own
// a data table as well as extension tables attached to it. A record's
// version history is spread across the version tables of every type in its
// chain, so all of them must be pruned together.
package schema

import (
	"errors"
	"fmt"
	"slices"

	"mercator-hq/truncator/pkg/history"
)

var (
	// ErrUnknownType is returned when a type (or one of its ancestors) is
	// not registered.
	ErrUnknownType = errors.New("unknown record type")

	// ErrInheritanceCycle is returned when a type's parent chain loops.
	ErrInheritanceCycle = errors.New("inheritance cycle")

	// ErrInvalidTable is returned when a table name cannot be used as an
	// identifier.
	ErrInvalidTable = errors.New("invalid table name")
)

// ResolveError reports a failure to resolve a record type.
type ResolveError struct {
	Type  string
	Cause error
}

// Error implements the error interface.
func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve type %q: %v", e.Type, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *ResolveError) Unwrap() error {
	return e.Cause
}

// TypeDef describes one record type.
type TypeDef struct {
	// Name is the type (class) name stored in ClassName.
	Name string `yaml:"name"`

	// Parent is the name of the type this one extends. Empty for a root.
	Parent string `yaml:"parent,omitempty"`

	// Table is the data table owned by this type. Empty when the type adds
	// no fields of its own.
	Table string `yaml:"table,omitempty"`

	// Extensions are additional data tables attached to this type.
	Extensions []string `yaml:"extensions,omitempty"`

	// PathAddressed marks types addressed by (ParentID, URLSegment).
	// Inherited by subtypes.
	PathAddressed bool `yaml:"path_addressed,omitempty"`

	// NoStages marks versioned types without draft/live stages. Such types
	// are never swept. Inherited by subtypes.
	NoStages bool `yaml:"no_stages,omitempty"`
}

// Resolution is the result of resolving a type.
type Resolution struct {
	// Type is the resolved type name.
	Type string `json:"type"`

	// Chain lists the type and its ancestors, leaf first.
	Chain []string `json:"chain"`

	// BaseTable is the version table of the root type, which carries the
	// full version columns.
	BaseTable string `json:"base_table"`

	// Tables lists every version table for the type, base table first.
	Tables []string `json:"tables"`

	// PathAddressed reports whether records are addressed by identity key.
	PathAddressed bool `json:"path_addressed"`

	// HasStages reports whether the type has draft/live stages.
	HasStages bool `json:"has_stages"`
}

// Registry resolves type names to version tables.
// A Registry is immutable after construction and safe for concurrent use.
type Registry struct {
	types  map[string]TypeDef
	suffix string
}

// NewRegistry builds a registry from type definitions. suffix is appended
// to data table names to name their version tables; empty means
// history.DefaultVersionSuffix.
func NewRegistry(defs []TypeDef, suffix string) (*Registry, error) {
	if suffix == "" {
		suffix = history.DefaultVersionSuffix
	}

	types := make(map[string]TypeDef, len(defs))
	for _, def := range defs {
		if def.Name == "" {
			return nil, errors.New("type definition missing name")
		}
		if _, exists := types[def.Name]; exists {
			return nil, fmt.Errorf("duplicate type definition %q", def.Name)
		}
		for _, table := range append([]string{def.Table}, def.Extensions...) {
			if table == "" {
				continue
			}
			if !history.ValidTableName(table + suffix) {
				return nil, &ResolveError{Type: def.Name, Cause: fmt.Errorf("%w: %q", ErrInvalidTable, table)}
			}
		}
		types[def.Name] = def
	}

	r := &Registry{types: types, suffix: suffix}

	// Resolve every type once so configuration errors surface at startup.
	for name := range types {
		if _, err := r.Resolve(name); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Resolve returns the version tables backing typeName, walking its parent
// chain up to the root.
func (r *Registry) Resolve(typeName string) (*Resolution, error) {
	def, ok := r.types[typeName]
	if !ok {
		return nil, &ResolveError{Type: typeName, Cause: ErrUnknownType}
	}

	chain := []TypeDef{def}
	visited := map[string]bool{def.Name: true}
	for def.Parent != "" {
		parent, ok := r.types[def.Parent]
		if !ok {
			return nil, &ResolveError{Type: typeName, Cause: fmt.Errorf("%w: parent %q of %q", ErrUnknownType, def.Parent, def.Name)}
		}
		if visited[parent.Name] {
			return nil, &ResolveError{Type: typeName, Cause: fmt.Errorf("%w at %q", ErrInheritanceCycle, parent.Name)}
		}
		visited[parent.Name] = true
		chain = append(chain, parent)
		def = parent
	}

	root := chain[len(chain)-1]
	if root.Table == "" {
		return nil, &ResolveError{Type: typeName, Cause: fmt.Errorf("root type %q has no table", root.Name)}
	}

	res := &Resolution{
		Type:      typeName,
		BaseTable: root.Table + r.suffix,
		HasStages: true,
	}

	// Root first so the base table leads.
	for i := len(chain) - 1; i >= 0; i-- {
		d := chain[i]
		res.Chain = append([]string{d.Name}, res.Chain...)
		if d.PathAddressed {
			res.PathAddressed = true
		}
		if d.NoStages {
			res.HasStages = false
		}
		for _, table := range append([]string{d.Table}, d.Extensions...) {
			if table == "" {
				continue
			}
			name := table + r.suffix
			if !slices.Contains(res.Tables, name) {
				res.Tables = append(res.Tables, name)
			}
		}
	}

	return res, nil
}

// Types returns the registered type names in sorted order.
func (r *Registry) Types() []string {
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

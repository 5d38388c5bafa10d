package model

import "sort"

// FieldDesc declares how the engine treats a named field: whether raw
// content is stored, indexed as an exact term, indexed as free text (with
// a language hint), sortable, or usable for collapse/grouping.
type FieldDesc struct {
	Key      string
	Kind     Kind
	Store    bool
	Exact    bool
	Sortable bool
	Collapse bool
	Language string
}

// Schema is an immutable snapshot of the registered fields. The manager
// swaps the active snapshot atomically when the schema is recompiled, so
// the indexing path and the query parser never observe a half-updated
// field set.
type Schema struct {
	fields     map[string]FieldDesc
	generation uint64
}

// NewSchema builds a snapshot from descs with the given generation.
func NewSchema(descs []FieldDesc, generation uint64) *Schema {
	fields := make(map[string]FieldDesc, len(descs))
	for _, d := range descs {
		fields[d.Key] = d
	}
	return &Schema{fields: fields, generation: generation}
}

// Has reports whether key is a registered field.
func (s *Schema) Has(key string) bool {
	_, ok := s.fields[key]
	return ok
}

// Get returns the descriptor for key.
func (s *Schema) Get(key string) (FieldDesc, bool) {
	d, ok := s.fields[key]
	return d, ok
}

// Keys returns the registered field names, sorted.
func (s *Schema) Keys() []string {
	keys := make([]string, 0, len(s.fields))
	for k := range s.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of registered fields.
func (s *Schema) Len() int { return len(s.fields) }

// Generation identifies this snapshot; it increases on every recompile.
func (s *Schema) Generation() uint64 { return s.generation }

package model

import "fmt"

// Registrar receives field registrations when a data model is applied.
// The index manager implements it.
type Registrar interface {
	RegisterField(desc FieldDesc) error
}

// DataModel holds the pluggable field schema for a repository: the known
// descriptors in registration order plus the conversion rules for raw
// caller properties.
type DataModel struct {
	descs []FieldDesc
	byKey map[string]int
}

// NewDataModel returns an empty data model.
func NewDataModel() *DataModel {
	return &DataModel{byKey: make(map[string]int)}
}

// DefaultModel returns the standard content metadata schema. Every
// repository starts from this set; callers extend it through AddField.
func DefaultModel() *DataModel {
	m := NewDataModel()
	for _, d := range []FieldDesc{
		{Key: "uid", Kind: KindString, Store: true, Exact: true},
		{Key: "vid", Kind: KindInt, Store: true, Exact: true, Sortable: true},
		{Key: "title", Kind: KindText, Store: true},
		{Key: "mime_type", Kind: KindString, Store: true, Exact: true},
		{Key: "activity", Kind: KindString, Store: true, Exact: true},
		{Key: "activity_id", Kind: KindString, Store: true, Exact: true},
		{Key: "keep", Kind: KindInt, Store: true, Exact: true},
		{Key: "tags", Kind: KindText, Store: true},
		{Key: "mtime", Kind: KindDate, Store: true, Exact: true, Sortable: true},
		{Key: "ctime", Kind: KindDate, Store: true, Exact: true, Sortable: true},
		{Key: "timestamp", Kind: KindDate, Store: true, Exact: true, Sortable: true},
		{Key: "filename", Kind: KindString, Store: true, Exact: true},
		{Key: "fulltext", Kind: KindText},
	} {
		m.Add(d)
	}
	return m
}

// Add registers or replaces a descriptor.
func (m *DataModel) Add(desc FieldDesc) {
	if i, ok := m.byKey[desc.Key]; ok {
		m.descs[i] = desc
		return
	}
	m.byKey[desc.Key] = len(m.descs)
	m.descs = append(m.descs, desc)
}

// Get returns the descriptor for key.
func (m *DataModel) Get(key string) (FieldDesc, bool) {
	i, ok := m.byKey[key]
	if !ok {
		return FieldDesc{}, false
	}
	return m.descs[i], true
}

// Descriptors returns the descriptors in registration order.
func (m *DataModel) Descriptors() []FieldDesc {
	out := make([]FieldDesc, len(m.descs))
	copy(out, m.descs)
	return out
}

// Apply replays every descriptor into the registrar. Registration is
// global and not incremental-safe, so the manager calls this whenever a
// new field appears.
func (m *DataModel) Apply(r Registrar) error {
	for _, d := range m.descs {
		if err := r.RegisterField(d); err != nil {
			return fmt.Errorf("apply field %s: %w", d.Key, err)
		}
	}
	return nil
}

// FromString maps a raw caller key/value to a typed Property. When the
// key has no descriptor and allowAddition is set, a string descriptor is
// added dynamically and added=true is returned so the caller knows the
// schema must be recompiled.
func (m *DataModel) FromString(key, raw string, allowAddition bool) (Property, bool, error) {
	desc, ok := m.Get(key)
	added := false
	if !ok {
		if !allowAddition {
			return Property{}, false, fmt.Errorf("no field configured for %q", key)
		}
		desc = FieldDesc{Key: key, Kind: KindString, Store: true, Exact: true}
		m.Add(desc)
		added = true
	}

	impl, err := ByKind(desc.Kind)
	if err != nil {
		return Property{}, added, err
	}
	v, err := impl.Parse(raw)
	if err != nil {
		return Property{}, added, fmt.Errorf("property %s: %w", key, err)
	}
	return Property{Key: key, Kind: desc.Kind, Value: v}, added, nil
}

package model

import "sort"

// Field is one named value carried by a document into the engine.
type Field struct {
	Key   string
	Kind  Kind
	Value any
}

// Document is the unit handed to the engine. ID is the engine document
// identity: equal to UID on flat stores, unique per version on versioned
// stores. Data is an opaque blob for auxiliary attributes such as tags;
// it is stored but never analyzed.
type Document struct {
	ID     string
	UID    string
	VID    int64
	Fields []Field
	Data   map[string]any
}

// NewDocument constructs an empty document with the given identities.
func NewDocument(id, uid string, vid int64) *Document {
	return &Document{ID: id, UID: uid, VID: vid, Data: make(map[string]any)}
}

// AddField appends a field value.
func (d *Document) AddField(key string, kind Kind, value any) {
	d.Fields = append(d.Fields, Field{Key: key, Kind: kind, Value: value})
}

// SetField replaces the first value for key, or appends when absent.
func (d *Document) SetField(key string, kind Kind, value any) {
	for i := range d.Fields {
		if d.Fields[i].Key == key {
			d.Fields[i] = Field{Key: key, Kind: kind, Value: value}
			return
		}
	}
	d.AddField(key, kind, value)
}

// RemoveField drops every value for key.
func (d *Document) RemoveField(key string) {
	kept := d.Fields[:0]
	for _, f := range d.Fields {
		if f.Key != key {
			kept = append(kept, f)
		}
	}
	d.Fields = kept
}

// FieldValue returns the first value for key.
func (d *Document) FieldValue(key string) (any, bool) {
	for _, f := range d.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Tags returns the document's tag set from the data blob, sorted.
func (d *Document) Tags() []string {
	raw, ok := d.Data["tags"]
	if !ok {
		return nil
	}
	var tags []string
	switch v := raw.(type) {
	case []string:
		tags = append(tags, v...)
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				tags = append(tags, s)
			}
		}
	}
	sort.Strings(tags)
	return tags
}

// SetTags replaces the document's tag set in the data blob. An empty set
// removes the entry entirely.
func (d *Document) SetTags(tags []string) {
	if d.Data == nil {
		d.Data = make(map[string]any)
	}
	if len(tags) == 0 {
		delete(d.Data, "tags")
		return
	}
	sorted := make([]string, len(tags))
	copy(sorted, tags)
	sort.Strings(sorted)
	d.Data["tags"] = sorted
}

// ClearTags removes all tags from the data blob.
func (d *Document) ClearTags() {
	delete(d.Data, "tags")
}

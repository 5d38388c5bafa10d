// Package model defines the data model for contentdex: typed properties,
// field descriptors, schema snapshots, and documents.
package model

import (
	"fmt"
	"strconv"
	"time"

	"github.com/contentdex/contentdex/internal/errors"
)

// Kind identifies the value type of a property.
type Kind string

const (
	// KindString is an exact-matched short string.
	KindString Kind = "string"
	// KindText is free-text content analyzed per language.
	KindText Kind = "text"
	// KindInt is a whole number, sortable.
	KindInt Kind = "int"
	// KindNumber is a float, sortable.
	KindNumber Kind = "number"
	// KindDate is a point in time, stored as float seconds since epoch.
	KindDate Kind = "date"
	// KindBinary is opaque stored-only content, never indexed.
	KindBinary Kind = "binary"
)

// PropertyImpl converts between the wire representation (strings from
// callers), the native Go value, and the value handed to the engine.
type PropertyImpl interface {
	// Parse converts a raw caller-supplied string into the native value.
	Parse(raw string) (any, error)

	// Format renders the native value back to its wire representation.
	Format(v any) string

	// EngineValue converts the native value into what the engine indexes.
	EngineValue(v any) any
}

// Property is a typed (kind, value) pair produced by mapping raw input
// through the data model.
type Property struct {
	Key   string
	Kind  Kind
	Value any
}

// EngineValue returns the engine-storable form of the property value.
func (p Property) EngineValue() any {
	return implFor(p.Kind).EngineValue(p.Value)
}

// String returns the wire representation of the property value.
func (p Property) String() string {
	return implFor(p.Kind).Format(p.Value)
}

var kinds = map[Kind]PropertyImpl{
	KindString: stringImpl{},
	KindText:   stringImpl{},
	KindInt:    intImpl{},
	KindNumber: numberImpl{},
	KindDate:   dateImpl{},
	KindBinary: stringImpl{},
}

// ByKind returns the implementation registered for kind.
func ByKind(kind Kind) (PropertyImpl, error) {
	impl, ok := kinds[kind]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeBadKind, "unknown property kind %q", kind)
	}
	return impl, nil
}

func implFor(kind Kind) PropertyImpl {
	if impl, ok := kinds[kind]; ok {
		return impl
	}
	return stringImpl{}
}

type stringImpl struct{}

func (stringImpl) Parse(raw string) (any, error) { return raw, nil }
func (stringImpl) Format(v any) string           { return fmt.Sprintf("%v", v) }
func (stringImpl) EngineValue(v any) any         { return fmt.Sprintf("%v", v) }

type intImpl struct{}

func (intImpl) Parse(raw string) (any, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse int %q: %w", raw, err)
	}
	return n, nil
}

func (intImpl) Format(v any) string { return fmt.Sprintf("%d", v) }

func (intImpl) EngineValue(v any) any {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case int:
		return float64(n)
	default:
		return v
	}
}

type numberImpl struct{}

func (numberImpl) Parse(raw string) (any, error) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("parse number %q: %w", raw, err)
	}
	return f, nil
}

func (numberImpl) Format(v any) string {
	if f, ok := v.(float64); ok {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return fmt.Sprintf("%v", v)
}

func (numberImpl) EngineValue(v any) any { return v }

type dateImpl struct{}

func (dateImpl) Parse(raw string) (any, error) {
	f, err := ParseTimestampOrFloat(raw)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (dateImpl) Format(v any) string {
	if f, ok := v.(float64); ok {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return fmt.Sprintf("%v", v)
}

func (dateImpl) EngineValue(v any) any { return v }

// ParseTimestampOrFloat interprets raw as either an RFC3339 timestamp or
// a float number of seconds since the epoch.
func ParseTimestampOrFloat(raw string) (float64, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return float64(t.Unix()), nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("value %q is neither a timestamp nor a number", raw)
	}
	return f, nil
}

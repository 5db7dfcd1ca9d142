// Package mapper pairs a transformation function with the key fields and
// target spec that give vendor records a stable identity in the store.
package mapper

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/laikahq/sync-engine/objectspec"
)

// ErrBadMapping marks a mapper output that violates its spec. Mapping
// errors are programmer bugs, not vendor data problems, so the store
// aborts the run when it sees one.
var ErrBadMapping = errors.New("mapper: bad mapping")

// Func transforms one raw vendor record into a complete data map keyed by
// the spec's attribute display names. The connection alias is available
// for the Connection Name attribute.
type Func func(raw map[string]any, alias string) (map[string]any, error)

// Mapper is the (map function, key fields, target spec) triple.
type Mapper struct {
	Map  Func
	Keys []string
	Spec *objectspec.Spec

	// EscapeCharacters requests replacement of code points the store
	// rejects (lone surrogates, 4-byte sequences) before persistence.
	// High-volume event adapters turn this on.
	EscapeCharacters bool
}

// New builds a mapper, validating that every key is a declared attribute.
func New(spec *objectspec.Spec, keys []string, fn Func) Mapper {
	for _, k := range keys {
		if _, ok := spec.Attribute(k); !ok {
			panic(fmt.Sprintf("mapper: key %q is not an attribute of spec %s", k, spec.TypeName))
		}
	}

	return Mapper{Map: fn, Keys: keys, Spec: spec}
}

// Apply runs the map function and validates the result against the spec.
func (m Mapper) Apply(raw map[string]any, alias string) (map[string]any, error) {
	data, err := m.Map(raw, alias)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMapping, err)
	}

	if err := m.Validate(data); err != nil {
		return nil, err
	}

	if m.EscapeCharacters {
		escapeData(data)
	}

	return data, nil
}

// Validate checks that data carries exactly the spec's attribute names
// and that required attributes are non-empty.
func (m Mapper) Validate(data map[string]any) error {
	for _, attr := range m.Spec.Attributes {
		v, ok := data[attr.Name]
		if !ok {
			return fmt.Errorf("%w: attribute %q missing from %s data", ErrBadMapping, attr.Name, m.Spec.TypeName)
		}
		if attr.Required && isEmpty(v) {
			return fmt.Errorf("%w: required attribute %q is empty", ErrBadMapping, attr.Name)
		}
	}

	if len(data) != len(m.Spec.Attributes) {
		for k := range data {
			if _, ok := m.Spec.Attribute(k); !ok {
				return fmt.Errorf("%w: %q is not an attribute of spec %s", ErrBadMapping, k, m.Spec.TypeName)
			}
		}
	}

	return nil
}

// KeyValues extracts the identity tuple from a mapped data map.
func (m Mapper) KeyValues(data map[string]any) map[string]any {
	keys := make(map[string]any, len(m.Keys))
	for _, k := range m.Keys {
		keys[k] = data[k]
	}
	return keys
}

// KeyTuple extracts the identity tuple values in key declaration order,
// used by the deduper.
func (m Mapper) KeyTuple(data map[string]any) []string {
	values := make([]string, len(m.Keys))
	for i, k := range m.Keys {
		values[i] = fmt.Sprintf("%v", data[k])
	}
	return values
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	default:
		return false
	}
}

func escapeData(data map[string]any) {
	for k, v := range data {
		if s, ok := v.(string); ok {
			data[k] = escapeString(s)
		}
	}
}

// escapeString replaces code points the backing store rejects with the
// unicode replacement character.
func escapeString(s string) string {
	needs := false
	for _, r := range s {
		if r == utf8.RuneError || r > 0xFFFF || isSurrogate(r) {
			needs = true
			break
		}
	}
	if !needs {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == utf8.RuneError || r > 0xFFFF || isSurrogate(r) {
			b.WriteRune('�')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isSurrogate(r rune) bool {
	return r >= 0xD800 && r <= 0xDFFF
}

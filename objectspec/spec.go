// Package objectspec declares the static schemas of the uniform object
// model and materializes them per organization.
package objectspec

import "github.com/laikahq/sync-engine/models"

// Attribute declares one column of a spec. Name doubles as the key used
// in stored object data.
type Attribute struct {
	Name             string
	Type             string
	Required         bool
	ManuallyEditable bool
	MinWidth         int
}

// Spec is a static object schema. Specs are immutable at runtime; shape
// changes go through the migration helpers so stored data stays in step.
type Spec struct {
	TypeName    string
	DisplayName string
	Color       string
	Icon        string
	Attributes  []Attribute
}

// AttributeNames returns the declared attribute names in order.
func (s *Spec) AttributeNames() []string {
	names := make([]string, 0, len(s.Attributes))
	for i := range s.Attributes {
		names = append(names, s.Attributes[i].Name)
	}
	return names
}

// Attribute returns the declared attribute by name.
func (s *Spec) Attribute(name string) (Attribute, bool) {
	for i := range s.Attributes {
		if s.Attributes[i].Name == name {
			return s.Attributes[i], true
		}
	}
	return Attribute{}, false
}

func (s *Spec) rows() []models.ObjectAttribute {
	attrs := make([]models.ObjectAttribute, 0, len(s.Attributes))
	for i, a := range s.Attributes {
		attrs = append(attrs, models.ObjectAttribute{
			Name:             a.Name,
			Type:             a.Type,
			Required:         a.Required,
			ManuallyEditable: a.ManuallyEditable,
			MinWidth:         a.MinWidth,
			SortIndex:        i,
		})
	}
	return attrs
}

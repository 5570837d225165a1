package graphml

import (
	"strings"

	"github.com/ohler55/ojg/oj"
)

// EntityKind tags an Entity as a node or an edge.
type EntityKind uint8

const (
	NodeEntity EntityKind = iota + 1
	EdgeEntity
)

func (k EntityKind) String() string {
	switch k {
	case NodeEntity:
		return "node"
	case EdgeEntity:
		return "edge"
	}
	return "unknown"
}

// Scope returns the key namespace used by entities of this kind.
func (k EntityKind) Scope() Scope {
	if k == EdgeEntity {
		return ScopeEdge
	}
	return ScopeNode
}

// Entity is a node or edge under construction. Node entities use ID and
// Label; edge entities use Source, Target and Label (the relationship type).
type Entity struct {
	Kind   EntityKind
	ID     string
	Source string
	Target string
	Label  string
	// Labels holds every label read for a node, in input order. Label is
	// the last of them.
	Labels     []string
	Properties map[string]any
}

func newEntity(kind EntityKind) *Entity {
	return &Entity{Kind: kind, Properties: make(map[string]any)}
}

// SetProperty stores v under name; the last write wins.
func (e *Entity) SetProperty(name string, v any) {
	e.Properties[name] = v
}

// AddLabel appends a node label and makes it the stored label.
func (e *Entity) AddLabel(label string) {
	e.Labels = append(e.Labels, label)
	e.Label = label
}

// PropertiesJSON serializes the property bag with sorted keys.
func (e *Entity) PropertiesJSON() string {
	return oj.JSON(e.Properties, &oj.Options{Sort: true})
}

// AddLabels splits a label list such as ":Person:Employee" or " : A : : B :"
// on colons, dropping empty fragments, and adds each label in order.
func AddLabels(e *Entity, text string) {
	for _, part := range SplitLabels(text) {
		e.AddLabel(part)
	}
}

// SplitLabels returns the non-empty labels of a colon-delimited label list.
func SplitLabels(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(text, ":") {
		part = strings.TrimPrefix(strings.TrimSpace(part), ":")
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

package graphml

import (
	"strings"
)

// Scope is the entity class a key applies to.
type Scope uint8

const (
	ScopeNode Scope = 1 << iota
	ScopeEdge

	ScopeAll = ScopeNode | ScopeEdge
)

func (s Scope) String() string {
	switch s {
	case ScopeNode:
		return "node"
	case ScopeEdge:
		return "edge"
	case ScopeAll:
		return "all"
	}
	return "none"
}

// ParseScope maps a key's "for" attribute. Absent means node. Scopes that
// never carry entity data here (graph, port, hyperedge, ...) map to zero.
func ParseScope(text string) Scope {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "", "node":
		return ScopeNode
	case "edge":
		return ScopeEdge
	case "all":
		return ScopeAll
	}
	return 0
}

// KeyDecl is the raw attribute set of a <key> element.
type KeyDecl struct {
	ID   string
	Name string
	Type string
	List string
	For  string
}

// Key is a declared (or synthesized) attribute key.
type Key struct {
	ID       string
	Name     string
	Type     Kind
	ListType Kind
	IsList   bool
	Scope    Scope
	// Default is nil when the key declares none.
	Default any
}

// SetDefault parses text through the key's own type and stores it as Default.
func (k *Key) SetDefault(text string) error {
	v, err := k.parse(text)
	if err != nil {
		return err
	}
	k.Default = v
	return nil
}

// ParseValue reads data text for this key. Blank text yields the default.
func (k *Key) ParseValue(text string) (any, error) {
	if strings.TrimSpace(text) == "" {
		return k.Default, nil
	}
	return k.parse(text)
}

func (k *Key) parse(text string) (any, error) {
	if k.IsList {
		if strings.TrimSpace(text) == "" {
			return nil, nil
		}
		list, err := ParseList(k.ListType, text)
		if err != nil {
			return nil, err
		}
		return list, nil
	}
	return ParseScalar(k.Type, text)
}

// namespace holds keys for one entity class, in registration order.
type namespace struct {
	byID  map[string]int
	order []*Key
}

func (ns *namespace) put(k *Key) {
	if i, ok := ns.byID[k.ID]; ok {
		ns.order[i] = k
		return
	}
	ns.byID[k.ID] = len(ns.order)
	ns.order = append(ns.order, k)
}

func (ns *namespace) get(id string) *Key {
	if i, ok := ns.byID[id]; ok {
		return ns.order[i]
	}
	return nil
}

// Registry tracks declared keys per entity class for one import.
type Registry struct {
	nodes namespace
	edges namespace
}

func NewRegistry() *Registry {
	return &Registry{
		nodes: namespace{byID: make(map[string]int)},
		edges: namespace{byID: make(map[string]int)},
	}
}

func (r *Registry) ns(s Scope) *namespace {
	if s == ScopeEdge {
		return &r.edges
	}
	return &r.nodes
}

// Register declares a key. A key whose scope is neither node, edge nor all
// is returned with Scope 0 and is not stored.
func (r *Registry) Register(decl KeyDecl) (*Key, error) {
	kind, err := ParseKind(decl.Type)
	if err != nil {
		return nil, err
	}
	k := &Key{
		ID:    decl.ID,
		Name:  decl.Name,
		Type:  kind,
		Scope: ParseScope(decl.For),
	}
	if k.Name == "" {
		k.Name = decl.ID
	}
	if decl.List != "" {
		lk, err := ParseKind(decl.List)
		if err != nil {
			return nil, err
		}
		k.IsList = true
		k.ListType = lk
	}
	if k.Scope&ScopeNode != 0 {
		r.nodes.put(k)
	}
	if k.Scope&ScopeEdge != 0 {
		r.edges.put(k)
	}
	return k, nil
}

// Resolve looks up id in the namespace for scope. An unknown id is
// synthesized as a string key without default and remembered, so later
// references resolve to the same key. synthesized reports that case.
func (r *Registry) Resolve(id string, scope Scope) (k *Key, synthesized bool) {
	ns := r.ns(scope)
	if k := ns.get(id); k != nil {
		return k, false
	}
	k = &Key{ID: id, Name: id, Type: KindString, Scope: scope}
	ns.put(k)
	return k, true
}

// Defaults returns the keys in scope that carry a default value.
func (r *Registry) Defaults(scope Scope) []*Key {
	var out []*Key
	for _, k := range r.ns(scope).order {
		if k.Default != nil {
			out = append(out, k)
		}
	}
	return out
}

// Len returns the number of keys known for scope.
func (r *Registry) Len(scope Scope) int {
	return len(r.ns(scope).order)
}

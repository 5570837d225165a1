// Package graphml reads the GraphML exchange format in a single forward pass,
// rebuilding typed nodes and edges and handing each completed entity to a Sink.
//
// The format never closes an entity explicitly for our purposes: an entity is
// complete when the next <node>, <edge> or the end of input is seen.
package graphml

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

const (
	// DefaultEdgeLabel is the relationship type of an edge with no label.
	DefaultEdgeLabel = "UNKNOWN"
	// DefaultVertexLabel is the label of a node that declares none.
	DefaultVertexLabel = "ag_vertex"
)

// Sink receives completed entities in file order.
type Sink interface {
	Stage(ctx context.Context, e *Entity) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e *Entity) error

func (f SinkFunc) Stage(ctx context.Context, e *Entity) error { return f(ctx, e) }

// Options tune how entities are built.
type Options struct {
	// ReadLabels routes node "labels" lists into the node label and keeps
	// edge "label" data out of the property bag.
	ReadLabels         bool
	DefaultEdgeLabel   string
	DefaultVertexLabel string
	// IDProperty, when set, stores each node's natural id under this name.
	IDProperty string
	Logger     *zerolog.Logger
}

// Reader is the streaming GraphML parser. It is single use per input.
type Reader struct {
	opts Options
	keys *Registry
	sink Sink
	log  zerolog.Logger
}

// NewReader builds a Reader that resolves keys through keys and emits to sink.
func NewReader(keys *Registry, sink Sink, opts Options) *Reader {
	if opts.DefaultEdgeLabel == "" {
		opts.DefaultEdgeLabel = DefaultEdgeLabel
	}
	if opts.DefaultVertexLabel == "" {
		opts.DefaultVertexLabel = DefaultVertexLabel
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	return &Reader{opts: opts, keys: keys, sink: sink, log: log}
}

// Read consumes in to the end and returns the number of entities staged.
func (r *Reader) Read(ctx context.Context, in io.Reader) (int64, error) {
	s := newStream(in)
	var (
		cur   *Entity
		open  bool // cur's element has not been closed yet
		count int64
	)
	flush := func() error {
		if cur == nil {
			return nil
		}
		e := cur
		cur = nil
		if e.Kind == NodeEntity && e.Label == "" {
			e.Label = r.opts.DefaultVertexLabel
		}
		if err := r.sink.Stage(ctx, e); err != nil {
			return err
		}
		count++
		return nil
	}

	for {
		ev, err := s.next()
		if err != nil {
			return count, err
		}
		if ev.kind == evEOF {
			break
		}
		if ev.kind == evEnd && (ev.name == "node" || ev.name == "edge") {
			open = false
		}
		if ev.kind != evStart {
			continue
		}
		switch ev.name {
		case "key":
			err = r.readKey(s, ev)
		case "data":
			// Graph and document level data belongs to no entity.
			if cur != nil && open {
				err = r.readData(s, cur, ev)
			}
		case "node":
			if err = flush(); err == nil {
				cur, err = r.startNode(ev)
				open = err == nil
			}
		case "edge":
			if err = flush(); err == nil {
				cur, err = r.startEdge(s, ev)
				open = err == nil
			}
		}
		if err != nil {
			return count, err
		}
	}
	if err := flush(); err != nil {
		return count, err
	}
	return count, nil
}

func (r *Reader) readKey(s *stream, ev event) error {
	decl := KeyDecl{}
	decl.ID, _ = ev.attr("id")
	decl.Name, _ = ev.attr("attr.name")
	decl.Type, _ = ev.attr("attr.type")
	decl.List, _ = ev.attr("attr.list")
	decl.For, _ = ev.attr("for")

	k, err := r.keys.Register(decl)
	if err != nil {
		return fmt.Errorf("key %q: %w", decl.ID, err)
	}
	if k.Scope == 0 {
		r.log.Debug().Str("key", decl.ID).Str("for", decl.For).Msg("key scope carries no entity data, ignored")
	}

	// Walk the key's own content; <default> may follow a <desc>.
	depth := 0
	for {
		ev, err := s.next()
		if err != nil {
			return err
		}
		switch ev.kind {
		case evEOF:
			return nil
		case evStart:
			if depth == 0 && ev.name == "default" {
				text := ""
				if nxt, err := s.peek(); err != nil {
					return err
				} else if nxt.kind == evText {
					text = nxt.text
					_, _ = s.next()
				}
				if err := k.SetDefault(text); err != nil {
					return fmt.Errorf("default of key %q: %w", decl.ID, err)
				}
			}
			depth++
		case evEnd:
			if depth == 0 {
				return nil
			}
			depth--
		}
	}
}

func (r *Reader) readData(s *stream, cur *Entity, ev event) error {
	id, _ := ev.attr("key")
	k, synthesized := r.keys.Resolve(id, cur.Kind.Scope())
	if synthesized {
		r.log.Warn().Str("key", id).Str("scope", cur.Kind.String()).Msg("undeclared key, reading as string")
	}

	value := k.Default
	nxt, err := s.peekSignificant()
	if err != nil {
		return err
	}
	if nxt.kind == evText {
		_, _ = s.next()
		if value, err = k.ParseValue(nxt.text); err != nil {
			return fmt.Errorf("data %q on %s %q: %w", id, cur.Kind, entityRef(cur), err)
		}
	}

	switch {
	case value == nil:
		if nxt.kind == evEnd {
			cur.SetProperty(k.Name, "")
		}
	case r.opts.ReadLabels && isLabelKey(cur.Kind, id):
		if cur.Kind == NodeEntity {
			AddLabels(cur, fmt.Sprint(value))
		}
		// edge labels were consumed as the relationship type
	default:
		cur.SetProperty(k.Name, value)
	}
	return nil
}

func (r *Reader) startNode(ev event) (*Entity, error) {
	id, ok := ev.attr("id")
	if !ok {
		return nil, &MissingAttributeError{Element: "node", Attr: "id", Offset: ev.offset}
	}
	n := newEntity(NodeEntity)
	n.ID = id
	if r.opts.ReadLabels {
		if labels, ok := ev.attr("labels"); ok {
			AddLabels(n, labels)
		}
	}
	if r.opts.IDProperty != "" {
		n.SetProperty(r.opts.IDProperty, id)
	}
	r.applyDefaults(n)
	return n, nil
}

func (r *Reader) startEdge(s *stream, ev event) (*Entity, error) {
	source, ok := ev.attr("source")
	if !ok {
		return nil, &MissingAttributeError{Element: "edge", Attr: "source", Offset: ev.offset}
	}
	target, ok := ev.attr("target")
	if !ok {
		return nil, &MissingAttributeError{Element: "edge", Attr: "target", Offset: ev.offset}
	}
	e := newEntity(EdgeEntity)
	e.ID, _ = ev.attr("id")
	e.Source = source
	e.Target = target
	if label, ok := ev.attr("label"); ok && label != "" {
		e.Label = label
	} else {
		label, err := r.sniffRelType(s)
		if err != nil {
			return nil, err
		}
		e.Label = label
	}
	r.applyDefaults(e)
	return e, nil
}

// sniffRelType looks ahead through the edge's content for the text of a
// data block keyed "label". Only blank text, ends of label blocks and the
// label blocks themselves are stepped over; anything else ends the search.
// Nothing is consumed, so the edge's data elements are still read normally.
func (r *Reader) sniffRelType(s *stream) (string, error) {
	depth := 0
	for i := 0; ; i++ {
		ev, err := s.peekAt(i)
		if err != nil {
			return "", err
		}
		switch ev.kind {
		case evText:
			if ev.blank() {
				continue
			}
			if t := strings.TrimSpace(strings.ReplaceAll(ev.text, ":", "")); t != "" {
				return t, nil
			}
			return r.opts.DefaultEdgeLabel, nil
		case evStart:
			if key, _ := ev.attr("key"); ev.name == "data" && key == "label" {
				depth++
				continue
			}
			return r.opts.DefaultEdgeLabel, nil
		case evEnd:
			if depth == 0 {
				return r.opts.DefaultEdgeLabel, nil
			}
			depth--
		default:
			return r.opts.DefaultEdgeLabel, nil
		}
	}
}

func (r *Reader) applyDefaults(e *Entity) {
	for _, k := range r.keys.Defaults(e.Kind.Scope()) {
		if r.opts.ReadLabels && isLabelKey(e.Kind, k.ID) {
			continue
		}
		e.SetProperty(k.Name, k.Default)
	}
}

// isLabelKey reports whether data under id carries labels rather than
// properties when labels are read.
func isLabelKey(kind EntityKind, id string) bool {
	return (kind == NodeEntity && id == "labels") || (kind == EdgeEntity && id == "label")
}

func entityRef(e *Entity) string {
	if e.Kind == EdgeEntity {
		return e.Source + "->" + e.Target
	}
	return e.ID
}

package ingest

import (
	"context"
	"fmt"

	"github.com/agentic-research/agload/internal/catalog"
	"github.com/agentic-research/agload/internal/graphml"
	"github.com/agentic-research/agload/internal/store"
	"github.com/rs/zerolog"
)

// LabelMeta is one label seen during staging.
type LabelMeta struct {
	Label string
	Kind  store.LabelKind
	// Table is the staging table holding the label's rows.
	Table string
	Rows  int64

	insert string
}

// Labels keeps LabelMeta in first-seen order.
type Labels struct {
	order  []*LabelMeta
	byName map[string]*LabelMeta
}

func newLabels() *Labels { return &Labels{byName: make(map[string]*LabelMeta)} }

func (l *Labels) Get(label string) (*LabelMeta, bool) {
	m, ok := l.byName[label]
	return m, ok
}

// Of returns the labels of one kind in first-seen order.
func (l *Labels) Of(kind store.LabelKind) []*LabelMeta {
	var out []*LabelMeta
	for _, m := range l.order {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

func (l *Labels) All() []*LabelMeta { return l.order }

// Rows is the number of staged rows across all labels.
func (l *Labels) Rows() int64 {
	var n int64
	for _, m := range l.order {
		n += m.Rows
	}
	return n
}

func (l *Labels) add(m *LabelMeta) {
	l.order = append(l.order, m)
	l.byName[m.Label] = m
}

// Stager writes completed entities into per-label staging tables, creating
// the label and its staging table the first time the label is seen.
type Stager struct {
	s      *store.Session
	cat    *catalog.Catalog
	graph  string
	prefix string
	labels *Labels
	log    zerolog.Logger
}

func NewStager(s *store.Session, cat *catalog.Catalog, prefix string, log *zerolog.Logger) *Stager {
	st := &Stager{
		s:      s,
		cat:    cat,
		graph:  cat.Graph(),
		prefix: prefix,
		labels: newLabels(),
		log:    zerolog.Nop(),
	}
	if log != nil {
		st.log = *log
	}
	return st
}

func (st *Stager) Labels() *Labels { return st.labels }

// Stage appends e as one staging row.
func (st *Stager) Stage(ctx context.Context, e *graphml.Entity) error {
	switch e.Kind {
	case graphml.NodeEntity:
		m, err := st.ensure(ctx, e.Label, store.VertexLabel)
		if err != nil {
			return err
		}
		if _, err := st.s.ExecDML(ctx, m.insert, e.ID, e.PropertiesJSON()); err != nil {
			return fmt.Errorf("stage node %q: %w", e.ID, err)
		}
		m.Rows++
	case graphml.EdgeEntity:
		m, err := st.ensure(ctx, e.Label, store.EdgeLabel)
		if err != nil {
			return err
		}
		if _, err := st.s.ExecDML(ctx, m.insert, e.Source, e.Target, e.PropertiesJSON()); err != nil {
			return fmt.Errorf("stage edge %s->%s: %w", e.Source, e.Target, err)
		}
		m.Rows++
	default:
		return fmt.Errorf("stage: unknown entity kind %d", e.Kind)
	}
	return nil
}

func (st *Stager) ensure(ctx context.Context, label string, kind store.LabelKind) (*LabelMeta, error) {
	if m, ok := st.labels.Get(label); ok {
		if m.Kind != kind {
			return nil, fmt.Errorf("%w: %q is a %s label, seen as %s", ErrLabelKindConflict, label, m.Kind, kind)
		}
		return m, nil
	}
	if st.cat.Hidden() {
		return nil, fmt.Errorf("%w: label %q: schema change while graph %q is hidden",
			catalog.ErrCatalogSwap, label, st.graph)
	}

	d := st.s.Dialect()
	m := &LabelMeta{Label: label, Kind: kind, Table: st.prefix + label}
	if other := st.collision(m); other != nil {
		return nil, fmt.Errorf("%w: %q and %q (staging prefix %q)", ErrTableConflict, label, other.Label, st.prefix)
	}
	if err := st.s.Exec(ctx, d.CreateLabel(st.graph, label, kind)...); err != nil {
		return nil, fmt.Errorf("create %s label %q: %w", kind, label, err)
	}

	// A staging table kept by an earlier run is replaced.
	stmts := append([]store.Stmt{{SQL: store.DropTable(d, st.graph, m.Table)}},
		d.CreateStaging(st.graph, m.Table, kind)...)
	create := func(int64) error { return st.s.Exec(ctx, stmts...) }
	var err error
	if d.HidesStagingDDL() {
		_, err = st.cat.Swap(ctx, create)
	} else {
		err = create(0)
	}
	if err != nil {
		return nil, fmt.Errorf("create staging table for %q: %w", label, err)
	}

	if kind == store.VertexLabel {
		m.insert = store.InsertStagedNode(d, st.graph, m.Table)
	} else {
		m.insert = store.InsertStagedEdge(d, st.graph, m.Table)
	}
	st.labels.add(m)
	st.log.Debug().Str("label", label).Stringer("kind", kind).Str("table", m.Table).Msg("label staged")
	return m, nil
}

// collision returns the staged label sharing a native or staging table
// with m, compared by the dialect's table names.
func (st *Stager) collision(m *LabelMeta) *LabelMeta {
	d := st.s.Dialect()
	tables := func(l *LabelMeta) [2]string {
		return [2]string{d.Table(st.graph, l.Label), d.Table(st.graph, l.Table)}
	}
	mine := tables(m)
	for _, other := range st.labels.All() {
		for _, t := range tables(other) {
			if t == mine[0] || t == mine[1] {
				return other
			}
		}
	}
	return nil
}

var _ graphml.Sink = (*Stager)(nil)

package ingest

import (
	"context"
	"fmt"

	"github.com/RoaringBitmap/roaring/roaring64"
	"github.com/agentic-research/agload/internal/catalog"
	"github.com/agentic-research/agload/internal/store"
	"github.com/rs/zerolog"
)

const unresolvedSample = 5

// Summary describes a finalized import.
type Summary struct {
	Vertices int64
	Edges    int64
	GraphOID int64
}

// Finalizer converts staged labels into native tables. It hides the graph,
// assigns native ids to every vertex label, resolves and copies every edge
// label, then publishes the graph under a new oid.
//
// Endpoint resolution joins each edge label against every vertex label's
// staging table, so cost grows with (edge labels x vertex labels).
type Finalizer struct {
	s           *store.Session
	cat         *catalog.Catalog
	labels      *Labels
	keepStaging bool
	log         zerolog.Logger
}

func NewFinalizer(s *store.Session, cat *catalog.Catalog, labels *Labels, keepStaging bool, log *zerolog.Logger) *Finalizer {
	f := &Finalizer{s: s, cat: cat, labels: labels, keepStaging: keepStaging, log: zerolog.Nop()}
	if log != nil {
		f.log = *log
	}
	return f
}

// Finalize runs once per import. On failure the graph is left hidden and
// nothing is published; the caller must roll back.
func (f *Finalizer) Finalize(ctx context.Context) (*Summary, error) {
	sum := &Summary{}
	oid, err := f.cat.Swap(ctx, func(oid int64) error {
		for _, m := range f.labels.Of(store.VertexLabel) {
			n, err := f.vertices(ctx, oid, m)
			if err != nil {
				return err
			}
			sum.Vertices += n
		}
		for _, m := range f.labels.Of(store.EdgeLabel) {
			n, err := f.edges(ctx, oid, m)
			if err != nil {
				return err
			}
			sum.Edges += n
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sum.GraphOID = oid

	if !f.keepStaging {
		for _, m := range f.labels.All() {
			if err := f.s.ExecDDL(ctx, store.DropTable(f.s.Dialect(), f.cat.Graph(), m.Table)); err != nil {
				return nil, fmt.Errorf("drop staging table of %q: %w", m.Label, err)
			}
		}
	}
	f.log.Info().Int64("vertices", sum.Vertices).Int64("edges", sum.Edges).Int64("oid", oid).Msg("graph finalized")
	return sum, nil
}

func (f *Finalizer) assign(ctx context.Context, oid int64, m *LabelMeta) error {
	d, graph := f.s.Dialect(), f.cat.Graph()
	sp, err := d.LabelSpace(ctx, f.s, graph, oid, m.Label)
	if err != nil {
		return err
	}
	if err := f.s.Exec(ctx, d.AssignIDs(graph, m.Table, m.Label, oid, m.Kind, sp)...); err != nil {
		return fmt.Errorf("assign ids to %q: %w", m.Label, err)
	}
	return nil
}

func (f *Finalizer) vertices(ctx context.Context, oid int64, m *LabelMeta) (int64, error) {
	if err := f.assign(ctx, oid, m); err != nil {
		return 0, err
	}
	n, err := f.s.ExecDML(ctx, store.CopyNodes(f.s.Dialect(), f.cat.Graph(), m.Table, m.Label))
	if err != nil {
		return 0, fmt.Errorf("copy vertices of %q: %w", m.Label, err)
	}
	f.log.Debug().Str("label", m.Label).Int64("rows", n).Msg("vertices copied")
	return n, nil
}

func (f *Finalizer) edges(ctx context.Context, oid int64, m *LabelMeta) (int64, error) {
	d, graph := f.s.Dialect(), f.cat.Graph()
	if err := f.assign(ctx, oid, m); err != nil {
		return 0, err
	}
	for _, v := range f.labels.Of(store.VertexLabel) {
		if err := f.s.Exec(ctx, store.ResolveEndpoints(d, graph, m.Table, v.Table)...); err != nil {
			return 0, fmt.Errorf("resolve %q endpoints against %q: %w", m.Label, v.Label, err)
		}
	}
	if err := f.unresolved(ctx, m); err != nil {
		return 0, err
	}
	n, err := f.s.ExecDML(ctx, store.CopyEdges(d, graph, m.Table, m.Label))
	if err != nil {
		return 0, fmt.Errorf("copy edges of %q: %w", m.Label, err)
	}
	f.log.Debug().Str("label", m.Label).Int64("rows", n).Msg("edges copied")
	return n, nil
}

func (f *Finalizer) unresolved(ctx context.Context, m *LabelMeta) error {
	rows, err := f.s.Query(ctx, store.UnresolvedEdges(f.s.Dialect(), f.cat.Graph(), m.Table))
	if err != nil {
		return err
	}
	defer rows.Close()

	bad := &UnresolvedEndpointError{Label: m.Label, Rows: roaring64.New()}
	for rows.Next() {
		var ep Endpoint
		if err := rows.Scan(&ep.Ord, &ep.Source, &ep.Target); err != nil {
			return fmt.Errorf("scan unresolved edge of %q: %w", m.Label, err)
		}
		bad.Rows.Add(uint64(ep.Ord))
		if len(bad.Sample) < unresolvedSample {
			bad.Sample = append(bad.Sample, ep)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if !bad.Rows.IsEmpty() {
		return bad
	}
	return nil
}

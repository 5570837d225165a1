package ingest

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/agentic-research/agload/internal/catalog"
	"github.com/agentic-research/agload/internal/graphml"
	"github.com/agentic-research/agload/internal/store"
	billy "github.com/go-git/go-billy/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultStagingPrefix names staging tables: <prefix><label>.
const DefaultStagingPrefix = "ml_"

// Options configure one import.
type Options struct {
	Graph              string
	ReadLabels         bool
	DefaultEdgeLabel   string
	DefaultVertexLabel string
	IDProperty         string
	StagingPrefix      string
	// KeepStaging leaves the staging tables behind after finalizing.
	KeepStaging bool
	// StageOnly stops after staging; nothing is finalized or published.
	StageOnly bool
	Logger    *zerolog.Logger
}

// Result reports an import.
type Result struct {
	RunID    string
	Graph    string
	Entities int64
	Labels   []LabelMeta
	// Summary is nil when staging only.
	Summary  *Summary
	Duration time.Duration
}

// Engine drives an import: graph bootstrap, a single parse pass that stages
// every entity, then finalization.
type Engine struct {
	s    *store.Session
	opts Options
	log  zerolog.Logger
}

func NewEngine(s *store.Session, opts Options) *Engine {
	if opts.StagingPrefix == "" {
		opts.StagingPrefix = DefaultStagingPrefix
	}
	e := &Engine{s: s, opts: opts, log: zerolog.Nop()}
	if opts.Logger != nil {
		e.log = *opts.Logger
	}
	return e
}

// ImportFile opens path on fs and imports it.
func (e *Engine) ImportFile(ctx context.Context, fs billy.Filesystem, path string) (*Result, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return e.Import(ctx, f)
}

// Import reads one GraphML document from in into the graph.
func (e *Engine) Import(ctx context.Context, in io.Reader) (*Result, error) {
	if e.opts.Graph == "" {
		return nil, fmt.Errorf("import: graph name is required")
	}
	start := time.Now()
	res := &Result{RunID: uuid.NewString(), Graph: e.opts.Graph}
	log := e.log.With().Str("run", res.RunID).Str("graph", e.opts.Graph).Logger()

	if err := e.s.Exec(ctx, e.s.Dialect().Bootstrap(e.opts.Graph)...); err != nil {
		return nil, fmt.Errorf("bootstrap graph %q: %w", e.opts.Graph, err)
	}
	cat := catalog.New(e.s, e.opts.Graph, &log)
	if _, _, err := cat.Lookup(ctx); err != nil {
		return nil, err
	}

	stager := NewStager(e.s, cat, e.opts.StagingPrefix, &log)
	reader := graphml.NewReader(graphml.NewRegistry(), stager, graphml.Options{
		ReadLabels:         e.opts.ReadLabels,
		DefaultEdgeLabel:   e.opts.DefaultEdgeLabel,
		DefaultVertexLabel: e.opts.DefaultVertexLabel,
		IDProperty:         e.opts.IDProperty,
		Logger:             &log,
	})
	n, err := reader.Read(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("read graphml: %w", err)
	}
	res.Entities = n
	if staged := stager.Labels().Rows(); staged != n {
		return nil, fmt.Errorf("%w: parsed %d, staged %d", ErrStagedCount, n, staged)
	}
	for _, m := range stager.Labels().All() {
		res.Labels = append(res.Labels, *m)
	}
	log.Info().Int64("entities", n).Int("labels", len(res.Labels)).Msg("staging complete")

	if !e.opts.StageOnly {
		fin := NewFinalizer(e.s, cat, stager.Labels(), e.opts.KeepStaging, &log)
		if res.Summary, err = fin.Finalize(ctx); err != nil {
			return nil, fmt.Errorf("finalize graph %q: %w", e.opts.Graph, err)
		}
	}
	res.Duration = time.Since(start)
	return res, nil
}

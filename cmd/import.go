package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/agentic-research/agload/api"
	"github.com/agentic-research/agload/internal/config"
	"github.com/agentic-research/agload/internal/ingest"
	"github.com/agentic-research/agload/internal/store"
	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func init() {
	f := importCmd.Flags()
	f.String("dsn", "", "Store URL (jdbc:postgresql://... accepted) or SQLite path")
	f.String("user", "", "Store user, overrides the URL")
	f.String("password", "", "Store password, overrides the URL")
	f.String("staging-prefix", "", "Prefix of staging tables")
	f.Bool("keep-staging", false, "Keep staging tables after the import")
	rootCmd.AddCommand(importCmd)
}

var importCmd = &cobra.Command{
	Use:   "import <graph> <file.graphml> [url] [user] [password]",
	Short: "Import a GraphML file into a graph",
	Long: `Import a GraphML file into a graph, creating the graph if needed.

The whole import runs in one transaction: the graph either appears with
every node and edge of the file or is left as it was.

Node labels (labels=":Person") and edge label data are read unless
--read-labels=false is given.`,
	Args: cobra.RangeArgs(2, 5),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg.Import.Graph = args[0]
		positional := []*string{&cfg.Store.DSN, &cfg.Store.User, &cfg.Store.Password}
		for i, v := range args[2:] {
			*positional[i] = v
		}
		if err := config.ValidateImport(cfg); err != nil {
			return err
		}

		res, err := runImport(cmd.Context(), cfg, args[1], &logger)
		if err != nil {
			return err
		}
		printResult(cmd.OutOrStdout(), res)
		return nil
	},
}

// runImport owns the transaction boundary: commit on success, roll back on
// any failure.
func runImport(ctx context.Context, cfg *api.Config, file string, log *zerolog.Logger) (res *ingest.Result, err error) {
	db, dialect, err := store.Open(cfg.Store.Driver, cfg.Store.DSN, cfg.Store.User, cfg.Store.Password)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error().Err(rbErr).Msg("rollback failed")
			}
		}
	}()

	fs, name, err := openInput(file)
	if err != nil {
		return nil, err
	}
	engine := ingest.NewEngine(store.NewSession(tx, dialect, log), engineOptions(cfg, log))
	res, err = engine.ImportFile(ctx, fs, name)
	if err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return res, nil
}

// openInput roots a filesystem at the file's directory.
func openInput(file string) (billy.Filesystem, string, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, "", err
	}
	return osfs.New(filepath.Dir(abs)), filepath.Base(abs), nil
}

func engineOptions(cfg *api.Config, log *zerolog.Logger) ingest.Options {
	return ingest.Options{
		Graph:              cfg.Import.Graph,
		ReadLabels:         cfg.Import.LabelsRead(),
		DefaultEdgeLabel:   cfg.Import.DefaultEdgeLabel,
		DefaultVertexLabel: cfg.Import.DefaultVertexLabel,
		IDProperty:         cfg.Import.IDProperty,
		StagingPrefix:      cfg.Import.StagingPrefix,
		KeepStaging:        cfg.Import.KeepStaging,
		Logger:             log,
	}
}

func printResult(w io.Writer, res *ingest.Result) {
	fmt.Fprintf(w, "graph %s: %d entities", res.Graph, res.Entities)
	if res.Summary != nil {
		fmt.Fprintf(w, " (%d vertices, %d edges)", res.Summary.Vertices, res.Summary.Edges)
	}
	fmt.Fprintf(w, " in %v\n", res.Duration.Round(time.Millisecond))
	for _, m := range res.Labels {
		fmt.Fprintf(w, "  %-6s %-24s %d\n", m.Kind, m.Label, m.Rows)
	}
}

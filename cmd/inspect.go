package cmd

import (
	"github.com/agentic-research/agload/internal/ingest"
	"github.com/agentic-research/agload/internal/store"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(inspectCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.graphml>",
	Short: "Parse and stage a GraphML file without touching any database",
	Long: `Inspect parses the file and stages it into a throwaway in-memory store,
then prints the labels it found with their row counts.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := store.OpenSQLite(":memory:")
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		opts := engineOptions(cfg, &logger)
		opts.Graph = "inspect"
		opts.StageOnly = true
		engine := ingest.NewEngine(store.NewSession(db, store.SQLite{}, &logger), opts)
		fs, name, err := openInput(args[0])
		if err != nil {
			return err
		}
		res, err := engine.ImportFile(cmd.Context(), fs, name)
		if err != nil {
			return err
		}
		printResult(cmd.OutOrStdout(), res)
		return nil
	},
}

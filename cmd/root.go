package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/agentic-research/agload/api"
	"github.com/agentic-research/agload/internal/config"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Resolved once flags are parsed; shared by every subcommand.
var (
	configPath string
	cfg        *api.Config
	logger     zerolog.Logger
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "Path to an HCL or YAML config file")
	pf.String("driver", "", "Store driver: agensgraph or sqlite")
	pf.String("log-level", "", "Log level (debug, info, warn, error)")
	pf.String("log-format", "", "Log format: console or json")
	pf.Bool("read-labels", true, "Read node labels and edge label data (--read-labels=false stores every node under the default vertex label)")
	pf.String("id-property", "", "Keep each node's file id under this property")
	pf.String("default-edge-label", "", "Label of edges that declare none")
	pf.String("default-vertex-label", "", "Label of nodes that declare none")
}

var rootCmd = &cobra.Command{
	Use:           "agload",
	Short:         "Load GraphML documents into AgensGraph",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return err
		}
		applyFlags(cmd, c)
		if err := config.Validate(c); err != nil {
			return err
		}
		cfg = c
		logger, err = newLogger(c.Log, cmd.ErrOrStderr())
		return err
	},
}

// applyFlags copies explicitly set flags over c; flags win over the
// config file and the environment.
func applyFlags(cmd *cobra.Command, c *api.Config) {
	str := func(name string, dst *string) {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			*dst = f.Value.String()
		}
	}
	flag := func(name string) (bool, bool) {
		f := cmd.Flags().Lookup(name)
		if f == nil || !f.Changed {
			return false, false
		}
		return f.Value.String() == "true", true
	}
	str("driver", &c.Store.Driver)
	str("dsn", &c.Store.DSN)
	str("user", &c.Store.User)
	str("password", &c.Store.Password)
	str("log-level", &c.Log.Level)
	str("log-format", &c.Log.Format)
	str("id-property", &c.Import.IDProperty)
	str("default-edge-label", &c.Import.DefaultEdgeLabel)
	str("default-vertex-label", &c.Import.DefaultVertexLabel)
	str("staging-prefix", &c.Import.StagingPrefix)
	if v, ok := flag("read-labels"); ok {
		c.Import.ReadLabels = &v
	}
	if v, ok := flag("keep-staging"); ok {
		c.Import.KeepStaging = v
	}
}

func newLogger(c *api.Log, w io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(c.Level)
	if err != nil {
		return zerolog.Nop(), err
	}
	if c.Format != "json" {
		w = zerolog.ConsoleWriter{Out: w, NoColor: true}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "agload:", err)
		os.Exit(1)
	}
}

// Package config loads the agload configuration.
//
// Values are layered: built-in defaults, then a config file (HCL for .hcl,
// YAML for .yaml and .yml), then AGLOAD_* environment variables. Command-line
// flags are applied last by the caller.
//
// Environment variables:
//
//	AGLOAD_DRIVER       store driver (agensgraph, sqlite)
//	AGLOAD_DSN          store URL or path
//	AGLOAD_USER         store user
//	AGLOAD_PASSWORD     store password
//	AGLOAD_GRAPH        target graph
//	AGLOAD_READ_LABELS  read node/edge labels (true/false, default true)
//	AGLOAD_LOG_LEVEL    zerolog level
//	AGLOAD_LOG_FORMAT   console or json
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/agentic-research/agload/api"
	"github.com/agentic-research/agload/internal/graphml"
	"github.com/agentic-research/agload/internal/ingest"
	"github.com/agentic-research/agload/internal/store"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// ErrInvalid marks a configuration that cannot be used.
var ErrInvalid = errors.New("invalid configuration")

// Default returns the built-in configuration.
func Default() *api.Config {
	readLabels := true
	return &api.Config{
		Store: &api.Store{Driver: store.DriverAgens},
		Import: &api.Import{
			ReadLabels:         &readLabels,
			DefaultEdgeLabel:   graphml.DefaultEdgeLabel,
			DefaultVertexLabel: graphml.DefaultVertexLabel,
			StagingPrefix:      ingest.DefaultStagingPrefix,
		},
		Log: &api.Log{Level: "info", Format: "console"},
	}
}

// Load reads path (if not empty) over the defaults and applies the
// environment.
func Load(path string) (*api.Config, error) {
	cfg := Default()
	if path != "" {
		file, err := decodeFile(path)
		if err != nil {
			return nil, err
		}
		merge(cfg, file)
	}
	ApplyEnv(cfg, os.Getenv)
	return cfg, nil
}

func decodeFile(path string) (*api.Config, error) {
	var cfg api.Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hcl":
		if err := hclsimple.DecodeFile(path, nil, &cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported config file %s (want .hcl, .yaml or .yml)", ErrInvalid, path)
	}
	return &cfg, nil
}

// merge copies the non-empty values of src over dst.
func merge(dst, src *api.Config) {
	if s := src.Store; s != nil {
		set(&dst.Store.Driver, s.Driver)
		set(&dst.Store.DSN, s.DSN)
		set(&dst.Store.User, s.User)
		set(&dst.Store.Password, s.Password)
	}
	if i := src.Import; i != nil {
		set(&dst.Import.Graph, i.Graph)
		set(&dst.Import.DefaultEdgeLabel, i.DefaultEdgeLabel)
		set(&dst.Import.DefaultVertexLabel, i.DefaultVertexLabel)
		set(&dst.Import.IDProperty, i.IDProperty)
		set(&dst.Import.StagingPrefix, i.StagingPrefix)
		if i.ReadLabels != nil {
			dst.Import.ReadLabels = i.ReadLabels
		}
		dst.Import.KeepStaging = dst.Import.KeepStaging || i.KeepStaging
	}
	if l := src.Log; l != nil {
		set(&dst.Log.Level, l.Level)
		set(&dst.Log.Format, l.Format)
	}
}

func set(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// ApplyEnv overlays AGLOAD_* variables read through getenv.
func ApplyEnv(cfg *api.Config, getenv func(string) string) {
	set(&cfg.Store.Driver, getenv("AGLOAD_DRIVER"))
	set(&cfg.Store.DSN, getenv("AGLOAD_DSN"))
	set(&cfg.Store.User, getenv("AGLOAD_USER"))
	set(&cfg.Store.Password, getenv("AGLOAD_PASSWORD"))
	set(&cfg.Import.Graph, getenv("AGLOAD_GRAPH"))
	set(&cfg.Log.Level, getenv("AGLOAD_LOG_LEVEL"))
	set(&cfg.Log.Format, getenv("AGLOAD_LOG_FORMAT"))
	if v := getenv("AGLOAD_READ_LABELS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Import.ReadLabels = &b
		}
	}
}

// Validate checks the settings every command depends on.
func Validate(cfg *api.Config) error {
	switch cfg.Store.Driver {
	case store.DriverAgens, store.DriverSQLite:
	default:
		return fmt.Errorf("%w: store driver %q", ErrInvalid, cfg.Store.Driver)
	}
	if cfg.Import.StagingPrefix == "" {
		return fmt.Errorf("%w: staging prefix is empty", ErrInvalid)
	}
	if cfg.Import.DefaultEdgeLabel == "" || cfg.Import.DefaultVertexLabel == "" {
		return fmt.Errorf("%w: default labels must not be empty", ErrInvalid)
	}
	if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("%w: log level %q", ErrInvalid, cfg.Log.Level)
	}
	if cfg.Log.Format != "console" && cfg.Log.Format != "json" {
		return fmt.Errorf("%w: log format %q", ErrInvalid, cfg.Log.Format)
	}
	return nil
}

// ValidateImport also requires a target graph and a store to write to.
func ValidateImport(cfg *api.Config) error {
	if err := Validate(cfg); err != nil {
		return err
	}
	if cfg.Import.Graph == "" {
		return fmt.Errorf("%w: graph name is required", ErrInvalid)
	}
	if cfg.Store.DSN == "" {
		return fmt.Errorf("%w: store dsn is required", ErrInvalid)
	}
	return nil
}

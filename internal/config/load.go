package config

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/wfengine/internal/ctxlog"
)

// Loader reads a server configuration from a source.
type Loader interface {
	// Load returns the defaults overlaid with the values found at path. An
	// empty path yields the defaults.
	Load(ctx context.Context, path string) (Server, error)
}

// HCLLoader loads configuration files written in HCL.
type HCLLoader struct{}

// NewLoader creates a new HCL configuration loader.
func NewLoader() *HCLLoader {
	return &HCLLoader{}
}

// hclServer mirrors Server with every attribute optional. Durations are Go
// duration strings.
type hclServer struct {
	Listen         *string `hcl:"listen,optional"`
	OpsPort        *int    `hcl:"ops_port,optional"`
	LogLevel       *string `hcl:"log_level,optional"`
	LogFormat      *string `hcl:"log_format,optional"`
	CatalogPath    *string `hcl:"catalog_path,optional"`
	CommandTimeout *string `hcl:"command_timeout,optional"`

	Execution *hclExecution `hcl:"execution,block"`
	History   *hclHistory   `hcl:"history,block"`
	Snapshots *hclSnapshots `hcl:"snapshots,block"`
	Telemetry *hclTelemetry `hcl:"telemetry,block"`
}

type hclExecution struct {
	Workers   *int    `hcl:"workers,optional"`
	NodeDelay *string `hcl:"node_delay,optional"`
}

type hclHistory struct {
	MaxEntries *int `hcl:"max_entries,optional"`
}

type hclSnapshots struct {
	Retain      *int    `hcl:"retain,optional"`
	BatchWindow *string `hcl:"batch_window,optional"`
}

type hclTelemetry struct {
	Metrics *bool `hcl:"metrics,optional"`
}

// Load parses the file at path, merges it over Default() and validates the
// result.
func (l *HCLLoader) Load(ctx context.Context, path string) (Server, error) {
	logger := ctxlog.FromContext(ctx)
	cfg := Default()
	if path == "" {
		logger.Debug("No config file given, using defaults.")
		return cfg, nil
	}

	file, diags := hclparse.NewParser().ParseHCLFile(path)
	if diags.HasErrors() {
		return Server{}, fmt.Errorf("failed to parse config file %s: %w", path, diags)
	}
	var raw hclServer
	if diags := gohcl.DecodeBody(file.Body, nil, &raw); diags.HasErrors() {
		return Server{}, fmt.Errorf("failed to decode config file %s: %w", path, diags)
	}
	if err := raw.apply(&cfg); err != nil {
		return Server{}, fmt.Errorf("config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, fmt.Errorf("config file %s: %w", path, err)
	}
	logger.Debug("Config file loaded.", "path", path)
	return cfg, nil
}

func (r *hclServer) apply(cfg *Server) error {
	set(&cfg.Listen, r.Listen)
	set(&cfg.OpsPort, r.OpsPort)
	set(&cfg.LogLevel, r.LogLevel)
	set(&cfg.LogFormat, r.LogFormat)
	set(&cfg.CatalogPath, r.CatalogPath)
	if err := setDuration(&cfg.CommandTimeout, "command_timeout", r.CommandTimeout); err != nil {
		return err
	}
	if e := r.Execution; e != nil {
		set(&cfg.Execution.Workers, e.Workers)
		if err := setDuration(&cfg.Execution.NodeDelay, "execution.node_delay", e.NodeDelay); err != nil {
			return err
		}
	}
	if h := r.History; h != nil {
		set(&cfg.History.MaxEntries, h.MaxEntries)
	}
	if s := r.Snapshots; s != nil {
		set(&cfg.Snapshots.Retain, s.Retain)
		if err := setDuration(&cfg.Snapshots.BatchWindow, "snapshots.batch_window", s.BatchWindow); err != nil {
			return err
		}
	}
	if t := r.Telemetry; t != nil {
		set(&cfg.Telemetry.Metrics, t.Metrics)
	}
	return nil
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, name string, v *string) error {
	if v == nil {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = d
	return nil
}

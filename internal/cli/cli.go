package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/specialistvlad/wfengine/internal/app"
	"github.com/specialistvlad/wfengine/internal/config"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
// Flags given explicitly win over the configuration file.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	return parse(context.Background(), args, output, config.NewLoader())
}

func parse(ctx context.Context, args []string, output io.Writer, loader config.Loader) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("wfengine", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
wfengine - A workflow graph editing and execution service.

Usage:
  wfengine [options]

Options:
`)
		flagSet.PrintDefaults()
	}

	defaults := config.Default()
	configFlag := flagSet.String("config", "", "Path to an HCL configuration file.")
	listenFlag := flagSet.String("listen", defaults.Listen, "Address of the HTTP API.")
	opsPortFlag := flagSet.Int("ops-port", defaults.OpsPort, "Port for health, metrics and socket.io. 0 is disabled.")
	catalogFlag := flagSet.String("catalog", "", "Directory of node catalog files. Empty uses the builtin catalog.")
	workersFlag := flagSet.Int("workers", defaults.Execution.Workers, "Number of concurrent node executions.")
	logLevelFlag := flagSet.String("log-level", defaults.LogLevel, "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	logFormatFlag := flagSet.String("log-format", defaults.LogFormat, "Log output format. Options: 'text' or 'json'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	if flagSet.NArg() > 0 {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("unexpected argument: %s", flagSet.Arg(0))}
	}
	slog.Debug("Arguments parsed successfully.")

	srv, err := loader.Load(ctx, *configFlag)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	flagSet.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "listen":
			srv.Listen = *listenFlag
		case "ops-port":
			srv.OpsPort = *opsPortFlag
		case "catalog":
			srv.CatalogPath = *catalogFlag
		case "workers":
			srv.Execution.Workers = *workersFlag
		case "log-level":
			srv.LogLevel = strings.ToLower(*logLevelFlag)
		case "log-format":
			srv.LogFormat = strings.ToLower(*logFormatFlag)
		}
	})
	slog.Debug("CLI flags merged over configuration.", "config_path", *configFlag)

	cfg, err := app.NewConfig(app.Config{ConfigPath: *configFlag, Server: srv})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.")
	return cfg, false, nil
}

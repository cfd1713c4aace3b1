package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/specialistvlad/wfengine/internal/ctxlog"
	"github.com/specialistvlad/wfengine/internal/watch"
)

// main is the entrypoint of the patch watcher.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, outW, logW io.Writer, args []string) error {
	flagSet := flag.NewFlagSet("watch", flag.ContinueOnError)
	flagSet.SetOutput(logW)
	urlFlag := flagSet.String("url", "http://localhost:7071", "Base URL of the wfengine ops server.")
	projectFlag := flagSet.String("project", "", "Id of the project to watch.")
	workflowFlag := flagSet.String("workflow", "root", "Id of the workflow to watch.")
	debugFlag := flagSet.Bool("debug", false, "Log connection details.")
	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil
		}
		return err
	}
	if *projectFlag == "" {
		return fmt.Errorf("--project is required")
	}

	level := slog.LevelInfo
	if *debugFlag {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(logW, &slog.HandlerOptions{Level: level}))
	ctx = ctxlog.WithLogger(ctx, logger)

	return watch.Run(ctx, watch.Options{
		URL:        *urlFlag,
		ProjectID:  *projectFlag,
		WorkflowID: *workflowFlag,
		Out:        outW,
	})
}

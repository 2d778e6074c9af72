package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/target/redis-bulk-actions/config"
	"github.com/target/redis-bulk-actions/internal/bootstrap"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
	Out    io.Writer
	In     io.Reader
}

var errAborted = errors.New("aborted by user")

func main() {
	cfg, cfgErr := bootstrap.LoadConfig()
	logger := bootstrap.InitLogger(cfg.IsDev)

	if len(os.Args) < 2 {
		if err := printUsage(os.Stdout); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(os.Stderr); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	if cfgErr != nil {
		logger.ErrorContext(context.Background(), "load config", "error", cfgErr)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}

	cmdCtx := &commandContext{
		Ctx:    context.Background(),
		Logger: logger,
		Config: cfg,
		Out:    os.Stdout,
		In:     os.Stdin,
	}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"nodes": {
			name:        "nodes",
			description: "List the primary nodes of a database with their key counts",
			run:         runNodes,
		},
		"delete": {
			name:        "delete",
			description: "Delete or unlink matching keys of a database in-process",
			run:         runDelete,
		},
		"list": {
			name:        "list",
			description: "List the bulk actions known to a running service",
			run:         runList,
		},
		"get": {
			name:        "get",
			description: "Show one bulk action of a running service",
			run:         runGet,
		},
		"abort": {
			name:        "abort",
			description: "Abort a bulk action running in a service",
			run:         runAbort,
		},
	}
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: bulk-actions-admin <command> [flags]\n\nAvailable commands:\n"); err != nil {
		return err
	}
	cmds := commands()
	for _, name := range slices.Sorted(maps.Keys(cmds)) {
		if err := writef(w, "  %-10s %s\n", name, cmds[name].description); err != nil {
			return err
		}
	}
	return nil
}

// confirm asks for a y/yes answer on in.
func confirm(out io.Writer, in io.Reader, prompt string) error {
	if err := writef(out, "%s\nContinue? [y/N]: ", prompt); err != nil {
		return fmt.Errorf("print confirmation prompt: %w", err)
	}
	resp, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read confirmation: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(resp)) {
	case "y", "yes":
		return nil
	default:
		return errAborted
	}
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func writeln(w io.Writer, args ...any) error {
	_, err := fmt.Fprintln(w, args...)
	return err
}

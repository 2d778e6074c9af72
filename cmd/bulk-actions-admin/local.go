package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/target/redis-bulk-actions/config"
	redisadapter "github.com/target/redis-bulk-actions/internal/adapters/redis"
	"github.com/target/redis-bulk-actions/internal/bootstrap"
	"github.com/target/redis-bulk-actions/internal/domain/bulk"
	"github.com/target/redis-bulk-actions/internal/domain/model"
)

type nodesOptions struct {
	Database string
}

type deleteOptions struct {
	Database string
	Match    string
	Type     string
	Count    int64
	Unlink   bool
	Report   bool
	DryRun   bool
	Yes      bool
}

func parseNodesFlags(args []string, stderr io.Writer) (nodesOptions, error) {
	fs := flag.NewFlagSet("nodes", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts nodesOptions
	fs.StringVar(&opts.Database, "db", "", "Database id as configured in BULK_ACTIONS_DATABASES (required)")
	if err := fs.Parse(args); err != nil {
		return nodesOptions{}, err
	}
	opts.Database = strings.TrimSpace(opts.Database)
	if opts.Database == "" {
		return nodesOptions{}, errors.New("-db is required")
	}
	return opts, nil
}

func parseDeleteFlags(args []string, stderr io.Writer) (deleteOptions, error) {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts deleteOptions
	fs.StringVar(&opts.Database, "db", "", "Database id as configured in BULK_ACTIONS_DATABASES (required)")
	fs.StringVar(&opts.Match, "match", "", "SCAN MATCH pattern (required, e.g. 'session:*')")
	fs.StringVar(&opts.Type, "type", "", "Only keys of this Redis type (string, hash, ...)")
	fs.Int64Var(&opts.Count, "count", 0, "SCAN COUNT hint (default BULK_ACTIONS_SCAN_COUNT)")
	fs.BoolVar(&opts.Unlink, "unlink", false, "Use UNLINK instead of DEL")
	fs.BoolVar(&opts.Report, "report", false, "Print every affected key")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "Show the target nodes without touching keys")
	fs.BoolVar(&opts.Yes, "yes", false, "Skip confirmation prompt")

	if err := fs.Parse(args); err != nil {
		return deleteOptions{}, err
	}

	opts.Database = strings.TrimSpace(opts.Database)
	opts.Match = strings.TrimSpace(opts.Match)
	switch {
	case opts.Database == "":
		return deleteOptions{}, errors.New("-db is required")
	case opts.Match == "":
		return deleteOptions{}, errors.New("-match is required; pass -match '*' to target every key")
	case opts.Count < 0:
		return deleteOptions{}, errors.New("-count must be positive")
	}
	if err := opts.filter().Validate(); err != nil {
		return deleteOptions{}, err
	}
	return opts, nil
}

func (o deleteOptions) actionType() model.ActionType {
	if o.Unlink {
		return model.ActionTypeUnlink
	}
	return model.ActionTypeDelete
}

func (o deleteOptions) filter() model.Filter {
	return model.Filter{Match: o.Match, Type: o.Type, Count: o.Count}
}

// newProvider opens target databases the same way the service does.
func newProvider(cmdCtx *commandContext) (*redisadapter.ClientProvider, error) {
	logger := cmdCtx.Logger
	return redisadapter.NewClientProvider(redisadapter.ClientProviderOptions{
		Databases: cmdCtx.Config.BulkActions.Targets(),
		Connect: func(cfg config.RedisConfig) (redis.UniversalClient, error) {
			return bootstrap.ConnectRedis(bootstrap.DatabaseConfig{RedisConfig: cfg, Logger: logger})
		},
		Logger: logger,
	})
}

func closeProvider(logger *slog.Logger, provider *redisadapter.ClientProvider) {
	if err := provider.Close(); err != nil {
		logger.Warn("close databases failed", "error", err)
	}
}

func runNodes(cmdCtx *commandContext, args []string) error {
	opts, err := parseNodesFlags(args, os.Stderr)
	if err != nil {
		return err
	}

	provider, err := newProvider(cmdCtx)
	if err != nil {
		return err
	}
	defer closeProvider(cmdCtx.Logger, provider)

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, 30*time.Second)
	defer cancel()

	nodes, err := provider.NodeInfo(ctx, opts.Database)
	if err != nil {
		return err
	}
	return printNodes(cmdCtx.Out, nodes)
}

func printNodes(out io.Writer, nodes []model.NodeInfo) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	if err := writeln(w, "ADDR\tKEYS"); err != nil {
		return fmt.Errorf("write nodes header: %w", err)
	}
	var total int64
	for _, n := range nodes {
		total += n.Keys
		if err := writef(w, "%s\t%d\n", n.Addr, n.Keys); err != nil {
			return fmt.Errorf("write node row: %w", err)
		}
	}
	if err := writef(w, "TOTAL\t%d\n", total); err != nil {
		return fmt.Errorf("write nodes total: %w", err)
	}
	return w.Flush()
}

func runDelete(cmdCtx *commandContext, args []string) error {
	opts, err := parseDeleteFlags(args, os.Stderr)
	if err != nil {
		return err
	}

	provider, err := newProvider(cmdCtx)
	if err != nil {
		return err
	}
	defer closeProvider(cmdCtx.Logger, provider)

	if opts.DryRun || !opts.Yes {
		if err = showTargets(cmdCtx, provider, opts); err != nil {
			return err
		}
	}
	if opts.DryRun {
		return nil
	}
	if !opts.Yes {
		prompt := fmt.Sprintf("About to %s keys matching %q on database %s.", opts.actionType(), opts.Match, opts.Database)
		if err = confirm(cmdCtx.Out, cmdCtx.In, prompt); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ov, err := executeDelete(ctx, cmdCtx, provider, opts)
	if err != nil {
		return err
	}
	if printErr := printOverview(cmdCtx.Out, ov); printErr != nil {
		return printErr
	}
	if ov.Status == model.StatusFailed {
		return fmt.Errorf("bulk action failed: %s", ov.Error)
	}
	return nil
}

func showTargets(cmdCtx *commandContext, provider *redisadapter.ClientProvider, opts deleteOptions) error {
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, 30*time.Second)
	defer cancel()
	nodes, err := provider.NodeInfo(ctx, opts.Database)
	if err != nil {
		return err
	}
	return printNodes(cmdCtx.Out, nodes)
}

// executeDelete runs one job in-process until it finishes or ctx is canceled, which aborts it.
func executeDelete(
	ctx context.Context,
	cmdCtx *commandContext,
	provider *redisadapter.ClientProvider,
	opts deleteOptions,
) (model.Overview, error) {
	client, err := provider.Get(ctx, opts.Database)
	if err != nil {
		return model.Overview{}, err
	}

	cfg := cmdCtx.Config.BulkActions
	filter := opts.filter()
	if filter.Count == 0 {
		filter.Count = cfg.ScanCount
	}
	filter = filter.Normalize()

	job, err := bulk.NewJob(bulk.JobOptions{
		ID:             uuid.NewString(),
		DatabaseID:     opts.Database,
		Type:           opts.actionType(),
		Filter:         filter,
		ReportEnabled:  opts.Report,
		Logger:         cmdCtx.Logger,
		DebounceWindow: cfg.Debounce,
	})
	if err != nil {
		return model.Overview{}, err
	}
	defer job.Close()

	if opts.Report {
		printer := &reportPrinter{out: cmdCtx.Out}
		job.SubscribeToReport(printer)
		defer job.UnsubscribeFromReport(printer)
	}

	factory := redisadapter.NewRunnerFactory(redisadapter.RunnerConfig{
		Type:    job.Type(),
		Filter:  filter,
		MaxKeys: cfg.MaxKeys,
		Logger:  cmdCtx.Logger,
	})
	if err = job.Prepare(ctx, client, factory); err != nil {
		return model.Overview{}, fmt.Errorf("prepare bulk action: %w", err)
	}
	if _, err = job.Start(); err != nil {
		return model.Overview{}, fmt.Errorf("start bulk action: %w", err)
	}
	cmdCtx.Logger.InfoContext(ctx, "bulk action started", "job_id", job.ID(), "database_id", opts.Database)

	select {
	case <-job.Done():
	case <-ctx.Done():
		cmdCtx.Logger.Warn("interrupted, aborting bulk action", "job_id", job.ID())
		job.Abort()
		<-job.Done()
	}
	return job.Overview(), nil
}

// reportPrinter prints streamed report events, one affected key per line.
type reportPrinter struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *reportPrinter) Emit(event string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch v := payload.(type) {
	case model.ReportReady:
		return writef(p.out, "# streaming affected keys of %s (%s %q on %s)\n", v.ID, v.Type, v.Filter.Match, v.DatabaseID)
	case model.ReportBatch:
		for _, key := range v.Keys {
			if err := writeln(p.out, key); err != nil {
				return err
			}
		}
		return nil
	case model.ReportComplete:
		return writef(p.out, "# %s: %d keys processed\n", v.Overview.Status, v.Overview.Summary.Processed)
	default:
		return writef(p.out, "# %s\n", event)
	}
}

func printOverview(out io.Writer, ov model.Overview) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	rows := [][2]string{
		{"ID", ov.ID},
		{"Database", ov.DatabaseID},
		{"Type", string(ov.Type)},
		{"Status", string(ov.Status)},
		{"Match", ov.Filter.Match},
		{"Scanned", fmt.Sprintf("%d/%d", ov.Progress.Scanned, ov.Progress.Total)},
		{"Processed", fmt.Sprintf("%d", ov.Summary.Processed)},
		{"Succeeded", fmt.Sprintf("%d", ov.Summary.Succeeded)},
		{"Failed", fmt.Sprintf("%d", ov.Summary.Failed)},
		{"Duration", (time.Duration(ov.Duration) * time.Millisecond).String()},
	}
	if ov.Filter.Type != "" {
		rows = append(rows, [2]string{"Key Type", ov.Filter.Type})
	}
	if ov.Error != "" {
		rows = append(rows, [2]string{"Error", ov.Error})
	}
	for _, row := range rows {
		if err := writef(w, "%s\t%s\n", row[0], row[1]); err != nil {
			return fmt.Errorf("write overview: %w", err)
		}
	}
	for _, itemErr := range ov.Summary.Errors {
		if err := writef(w, "Key Error\t%s: %s\n", itemErr.Key, itemErr.Error); err != nil {
			return fmt.Errorf("write key error: %w", err)
		}
	}
	return w.Flush()
}

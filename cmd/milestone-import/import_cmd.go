package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/LenoreWoW/ProjectPulse-2-sub003/modules/milestones/domain/entities/auditlog"
	"github.com/LenoreWoW/ProjectPulse-2-sub003/modules/milestones/infrastructure/persistence"
	"github.com/LenoreWoW/ProjectPulse-2-sub003/modules/milestones/services"
	"github.com/LenoreWoW/ProjectPulse-2-sub003/pkg/composables"
	"github.com/LenoreWoW/ProjectPulse-2-sub003/pkg/configuration"
	"github.com/LenoreWoW/ProjectPulse-2-sub003/pkg/logging"
	"github.com/LenoreWoW/ProjectPulse-2-sub003/pkg/metrics"
)

const (
	formatCSV  = "csv"
	formatXLSX = "xlsx"
)

type importOptions struct {
	input        string
	format       string
	sheet        string
	delimiter    string
	encoding     string
	lazyQuotes   bool
	dateLayouts  []string
	apply        bool
	workers      int
	actorID      int64
	departmentID int64
	ip           string
	userAgent    string
	report       string
	failOnReject bool
}

func newImportCmd() *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import milestones from a CSV or XLSX export",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.input, "input", "", "Export file to import (required)")
	cmd.Flags().StringVar(&opts.format, "format", "", "Input format: csv|xlsx (default: from file extension)")
	cmd.Flags().StringVar(&opts.sheet, "sheet", "", "XLSX sheet name (default: active sheet)")
	cmd.Flags().StringVar(&opts.delimiter, "delimiter", "", "CSV delimiter, a single character or 'auto' (default: IMPORT_DELIMITER)")
	cmd.Flags().StringVar(&opts.encoding, "encoding", "", "CSV charset label, e.g. windows-1251 (default: IMPORT_ENCODING)")
	cmd.Flags().BoolVar(&opts.lazyQuotes, "lazy-quotes", false, "Accept stray quotes instead of rejecting the line")
	cmd.Flags().StringArrayVar(&opts.dateLayouts, "date-layout", nil, "Deadline layout in Go time format, repeatable (default: IMPORT_DATE_LAYOUTS)")
	cmd.Flags().BoolVar(&opts.apply, "apply", false, "Apply changes to DB (default is dry-run)")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Partition workers, ignored in dry-run (default: IMPORT_WORKERS)")
	cmd.Flags().Int64Var(&opts.actorID, "actor-id", 0, "User id the run is attributed to (required)")
	cmd.Flags().Int64Var(&opts.departmentID, "department-id", 0, "Department id of the actor")
	cmd.Flags().StringVar(&opts.ip, "ip", "", "IP address recorded in audit entries")
	cmd.Flags().StringVar(&opts.userAgent, "user-agent", "milestone-import", "User agent recorded in audit entries")
	cmd.Flags().StringVar(&opts.report, "report", "", "Write the summary as indented JSON to this file")
	cmd.Flags().BoolVar(&opts.failOnReject, "fail-on-reject", false, "Exit with code 6 when any row is rejected")

	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("actor-id")

	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		format, err := detectFormat(opts.input, opts.format)
		if err != nil {
			return withCode(exitUsage, err)
		}
		opts.format = format
		if opts.workers < 0 {
			return withCode(exitUsage, fmt.Errorf("invalid --workers: %d", opts.workers))
		}
		if opts.departmentID < 0 {
			return withCode(exitUsage, fmt.Errorf("invalid --department-id: %d", opts.departmentID))
		}
		return nil
	}

	return cmd
}

func detectFormat(path, format string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case formatCSV, formatXLSX:
		return f, nil
	case "":
	default:
		return "", fmt.Errorf("invalid --format: %s", format)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return formatXLSX, nil
	case ".csv", ".txt", ".tsv", "":
		return formatCSV, nil
	default:
		return "", fmt.Errorf("cannot infer format of %s, pass --format", path)
	}
}

func (o importOptions) actor() auditlog.Actor {
	a := auditlog.Actor{
		ActorID:   o.actorID,
		IPAddress: strings.TrimSpace(o.ip),
		UserAgent: strings.TrimSpace(o.userAgent),
	}
	if o.departmentID > 0 {
		dept := o.departmentID
		a.DepartmentID = &dept
	}
	return a
}

// csvOptions fills unset flags from the IMPORT_* configuration.
func (o importOptions) csvOptions(conf configuration.ImportOptions) services.CSVOptions {
	out := services.CSVOptions{
		Delimiter:  o.delimiter,
		Encoding:   o.encoding,
		LazyQuotes: o.lazyQuotes,
	}
	if out.Delimiter == "" {
		out.Delimiter = conf.Delimiter
	}
	if out.Encoding == "" {
		out.Encoding = conf.Encoding
	}
	return out
}

func (o importOptions) effectiveWorkers(conf configuration.ImportOptions) int {
	// a single dry-run transaction cannot be shared between workers
	if !o.apply {
		return 1
	}
	if o.workers > 0 {
		return o.workers
	}
	return max(conf.Workers, 1)
}

func (o importOptions) layouts(conf configuration.ImportOptions) []string {
	if len(o.dateLayouts) > 0 {
		return o.dateLayouts
	}
	return conf.DateLayouts
}

func openSource(opts importOptions, csvOpts services.CSVOptions) (services.Source, error) {
	f, err := os.Open(opts.input)
	if err != nil {
		return nil, withCode(exitUsage, fmt.Errorf("open %s: %w", opts.input, err))
	}
	if opts.format == formatXLSX {
		defer f.Close()
		src, err := services.NewXLSXSource(f, opts.sheet)
		if err != nil {
			return nil, withCode(exitBadInput, fmt.Errorf("%s: %w", opts.input, err))
		}
		return src, nil
	}
	src, err := services.NewCSVSource(f, csvOpts)
	if err != nil {
		_ = f.Close()
		return nil, withCode(exitUsage, fmt.Errorf("%s: %w", opts.input, err))
	}
	return src, nil
}

// newProjectCache returns the shared project cache, or nil when only the
// per-run memo is wanted.
func newProjectCache(conf *configuration.Configuration) (services.ProjectCache, func()) {
	if conf.Import.ProjectCache != "redis" {
		return nil, func() {}
	}
	client := redis.NewClient(&redis.Options{Addr: conf.RedisURL})
	return persistence.NewRedisProjectCache(client, conf.Import.CacheTTL), func() { _ = client.Close() }
}

func runImport(ctx context.Context, opts importOptions) error {
	conf := configuration.Use()
	logger := conf.Logger()

	if conf.OpenTelemetry.Enabled {
		cleanup := logging.SetupTracing(ctx, conf.OpenTelemetry.ServiceName, conf.OpenTelemetry.TempoURL)
		defer cleanup()
	}

	src, err := openSource(opts, opts.csvOptions(conf.Import))
	if err != nil {
		return err
	}
	defer src.Close()

	pool, err := connectDB(ctx, conf.Database.Opts)
	if err != nil {
		return withCode(exitStoreUnavailable, err)
	}
	defer pool.Close()

	ctx = composables.WithPool(ctx, pool)
	ctx = composables.WithLogger(ctx, logrus.NewEntry(logger).WithFields(logrus.Fields{
		"command": "import",
		"input":   opts.input,
	}))

	svcOpts := []services.Option{
		services.WithTxFunc(composables.InTx),
		services.WithAuditTxFunc(composables.InTx),
		services.WithWorkers(opts.effectiveWorkers(conf.Import)),
		services.WithRowTimeout(conf.Import.RowTimeout),
		services.WithDateLayouts(opts.layouts(conf.Import)...),
		services.WithDryRun(!opts.apply),
	}
	cache, closeCache := newProjectCache(conf)
	defer closeCache()
	if cache != nil {
		svcOpts = append(svcOpts, services.WithProjectCache(cache))
	}

	if !opts.apply {
		tx, err := composables.BeginTx(ctx)
		if err != nil {
			return withCode(exitStoreUnavailable, fmt.Errorf("begin dry-run tx: %w", err))
		}
		defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()
		ctx = composables.WithTx(ctx, tx)
	}

	svc := services.NewImportService(
		persistence.NewMilestoneRepository(),
		persistence.NewAuditLogRepository(),
		svcOpts...,
	)
	summary, runErr := svc.Import(ctx, src, opts.actor())

	if summary != nil {
		if err := writeJSONLine(summary); err != nil {
			return withCode(exitFailure, err)
		}
		if strings.TrimSpace(opts.report) != "" {
			if err := writeJSONFile(opts.report, summary); err != nil {
				return withCode(exitFailure, fmt.Errorf("write report: %w", err))
			}
		}
	}
	if err := metrics.WriteTextfile(conf.Prometheus.Textfile, prometheus.DefaultGatherer); err != nil {
		logger.WithError(err).Warn("milestone.import.metrics.failed")
	}

	return importResult(summary, runErr, opts.failOnReject)
}

// importResult maps the outcome of a run to an exit code. A fatal error wins
// over row-level outcomes; failed row writes win over --fail-on-reject.
func importResult(summary *services.Summary, err error, failOnReject bool) error {
	if err != nil {
		switch {
		case is(err, services.ErrMissingHeader), is(err, services.ErrUnrecognizedHeaders):
			return withCode(exitBadInput, err)
		case is(err, services.ErrStoreUnavailable):
			return withCode(exitStoreUnavailable, err)
		case is(err, services.ErrInvalidActor):
			return withCode(exitUsage, err)
		default:
			return err
		}
	}
	if summary == nil {
		return nil
	}
	if n := countRejections(summary, services.RejectStoreError); n > 0 {
		return withCode(exitStoreWrite, fmt.Errorf("%d row(s) failed to write", n))
	}
	if failOnReject && summary.RowsRejected > 0 {
		return withCode(exitRejected, fmt.Errorf("%d row(s) rejected", summary.RowsRejected))
	}
	return nil
}

func countRejections(summary *services.Summary, code string) int {
	n := 0
	for _, r := range summary.Rejections {
		if r.Code == code {
			n++
		}
	}
	return n
}

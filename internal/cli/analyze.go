package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ppiankov/mongolens/internal/analyzer"
	"github.com/ppiankov/mongolens/internal/config"
	mongoinspect "github.com/ppiankov/mongolens/internal/mongo"
	"github.com/ppiankov/mongolens/internal/reporter"
	"github.com/ppiankov/mongolens/internal/telemetry"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
)

const missingURIMessage = "Missing MongoDB URI. Provide --uri or set MONGODB_URI in environment or .env"

type analyzeOptions struct {
	envFile     string
	configPath  string
	dbs         []string
	collections []string
	sampleSize  int64
	maxDocs     int64
	outputDir   string
	timeoutMS   int
	seed        uint64
	docID       string
	filter      string
	format      string
	lang        string
	parallel    int
	noIgnore    bool
	baseline    string
	exitCode    bool
	otel        bool
}

func newAnalyzeCmd(info BuildInfo) *cobra.Command {
	var opts analyzeOptions

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Sample collections and report schema risks and index candidates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, info, &opts)
		},
	}

	def := config.DefaultConfig()
	f := cmd.Flags()
	f.StringVar(&opts.envFile, "env-file", "", "dotenv file to load (default: $ENV_FILE or .env)")
	f.StringVar(&opts.configPath, "config", "", "config file (default: ./"+config.FileName+" then ~/"+config.FileName+")")
	f.StringSliceVar(&opts.dbs, "dbs", nil, "databases to analyze (default: all non-system)")
	f.StringSliceVar(&opts.collections, "collections", nil, "collection names to analyze (default: all)")
	f.Int64Var(&opts.sampleSize, "sample-size", def.Sampling.Size, "documents to sample per collection")
	f.Int64Var(&opts.maxDocs, "max-docs-per-coll", def.Sampling.MaxScan, "maximum documents read per collection")
	f.StringVar(&opts.outputDir, "output-dir", def.Output.Dir, "directory for report.json and markdown reports")
	f.IntVar(&opts.timeoutMS, "timeout-ms", 10000, "server selection, connect and per-command timeout in milliseconds")
	f.Uint64Var(&opts.seed, "seed", def.Sampling.Seed, "seed for scan subsampling")
	f.StringVar(&opts.docID, "doc-id", "", "analyze only the document with this _id (ObjectID hex or string)")
	f.StringVar(&opts.filter, "filter", "", "restrict sampling to documents matching this Extended JSON filter")
	f.StringVar(&opts.format, "format", def.Output.Format, "stdout format: text, json, markdown, or sarif")
	f.StringVar(&opts.lang, "lang", def.Output.Lang, "language of markdown on stdout: en or zh-TW")
	f.IntVar(&opts.parallel, "parallel", 1, "collections analyzed concurrently")
	f.BoolVar(&opts.noIgnore, "no-ignore", false, "do not apply "+analyzer.IgnoreFileName)
	f.StringVar(&opts.baseline, "baseline", "", "previous report.json to diff findings against")
	f.BoolVar(&opts.exitCode, "exit-code", false, "exit 1 on medium and 2 on high severity findings")
	f.BoolVar(&opts.otel, "otel", false, "export traces and metrics over OTLP gRPC")

	return cmd
}

func runAnalyze(cmd *cobra.Command, info BuildInfo, opts *analyzeOptions) error {
	ctx := cmd.Context()
	stderr := cmd.ErrOrStderr()

	if _, err := config.LoadEnv(opts.envFile); err != nil {
		return err
	}
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	applyConfig(cmd, opts, &cfg)

	formats := make([]string, 0, len(reporter.Formats))
	for _, f := range reporter.Formats {
		formats = append(formats, string(f))
	}
	if err := validateFormat(opts.format, formats...); err != nil {
		return err
	}
	if opts.parallel < 1 {
		return fmt.Errorf("--parallel must be at least 1, got %d", opts.parallel)
	}

	level, format := logLevel, logFormat
	if level == "" {
		level = cfg.Log.Level
	}
	if format == "" {
		format = cfg.Log.Format
	}
	logger, err := newLogger(stderr, level, format)
	if err != nil {
		return err
	}

	connURI := resolveURI(&cfg)
	if connURI == "" {
		_, _ = fmt.Fprintln(stderr, missingURIMessage)
		return &ExitError{Code: 2}
	}

	var baseline []analyzer.Finding
	if opts.baseline != "" {
		if baseline, err = analyzer.LoadBaseline(opts.baseline); err != nil {
			return err
		}
	}

	if opts.otel {
		provider, err := initTelemetry(ctx, "mongolens", info.Version)
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer func() {
			if err := provider.Shutdown(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("telemetry shutdown failed", slog.Any("error", err))
			}
		}()
	}
	ctx, span := otel.Tracer("github.com/ppiankov/mongolens/internal/cli").Start(ctx, "analyze")
	defer span.End()

	meta := reporter.Metadata{
		Version:    info.Version,
		Command:    "analyze",
		Databases:  opts.dbs,
		SampleSize: opts.sampleSize,
		MaxScan:    opts.maxDocs,
		Seed:       opts.seed,
		DocID:      opts.docID,
		Filter:     opts.filter,
		Lang:       reporter.MatchLang(opts.lang),
	}

	timeout := time.Duration(opts.timeoutMS) * time.Millisecond
	insp, err := newInspector(ctx, mongoinspect.Config{URI: connURI, Timeout: timeout, Logger: logger})
	if err != nil {
		report := reporter.NewReport(nil, nil)
		report.Metadata = meta
		report.Errors = append(report.Errors, fmt.Sprintf("Connection failed: %v", err))
		if werr := writeReport(cmd, opts, &report); werr != nil {
			return errors.Join(werr, &ExitError{Code: 2})
		}
		return &ExitError{Code: 2}
	}
	defer func() {
		if err := insp.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Debug("disconnect failed", slog.Any("error", err))
		}
	}()

	server := insp.ServerInfo(ctx)
	version := server.Version
	if version == "" {
		version = "unknown"
	}
	_, _ = fmt.Fprintf(stderr, "Connected to MongoDB %s\n", version)

	var runErrors []string
	filter, err := mongoinspect.ParseFilter(opts.docID, opts.filter)
	if err != nil {
		cause := errors.Unwrap(err)
		if cause == nil {
			cause = err
		}
		runErrors = append(runErrors, fmt.Sprintf("Invalid --filter JSON: %v", cause))
		filter = nil
	}

	targets, err := insp.ListTargets(ctx, opts.dbs, opts.collections)
	if err != nil {
		runErrors = append(runErrors, fmt.Sprintf("List collections failed: %v", err))
	}
	logger.Info("analyzing collections", slog.Int("count", len(targets)), slog.Int("parallel", opts.parallel))

	results, analyzeErrors := analyzeTargets(ctx, insp, targets, opts.parallel, analyzer.Options{
		SampleSize:  opts.sampleSize,
		MaxScan:     opts.maxDocs,
		Filter:      filter,
		Seed:        opts.seed,
		Thresholds:  thresholdsFromConfig(cfg.Thresholds),
		Logger:      logger,
		Instruments: telemetry.NewInstruments(),
	})
	runErrors = append(runErrors, analyzeErrors...)

	findings := analyzer.Findings(results)
	suppressed := 0
	if !opts.noIgnore {
		findings, suppressed = applyIgnore(findings, logger)
	}

	report := reporter.NewReport(results, findings)
	report.Metadata = meta
	report.Server = server
	report.URIRecommendations = append(report.URIRecommendations, analyzer.URIRecommendations(connURI, server.Opcounters)...)
	report.Errors = append(report.Errors, runErrors...)
	report.Summary.Suppressed = suppressed
	if baseline != nil {
		report.Baseline = analyzer.DiffBaseline(findings, baseline)
	}

	if err := writeReport(cmd, opts, &report); err != nil {
		return err
	}
	if err := reporter.Write(cmd.OutOrStdout(), &report, reporter.Format(opts.format)); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	if opts.exitCode {
		if code := analyzer.ExitCode(report.MaxSeverity); code != 0 {
			return &ExitError{Code: code}
		}
	}
	return nil
}

// analyzeTargets runs up to parallel analyses at once. Results keep target
// order; collections that failed are left out and reported as errors.
func analyzeTargets(ctx context.Context, src analyzer.CollectionSource, targets []mongoinspect.Target, parallel int, opts analyzer.Options) ([]analyzer.CollectionResult, []string) {
	results := make([]analyzer.CollectionResult, len(targets))
	failures := make([]error, len(targets))

	var g errgroup.Group
	g.SetLimit(parallel)
	for i, t := range targets {
		g.Go(func() error {
			results[i], failures[i] = analyzer.TryAnalyzeCollection(ctx, src, t, opts)
			return nil
		})
	}
	_ = g.Wait()

	var (
		ok   []analyzer.CollectionResult
		errs []string
	)
	for i := range targets {
		if failures[i] == nil {
			ok = append(ok, results[i])
			continue
		}
		var ae *analyzer.AnalyzeError
		if errors.As(failures[i], &ae) {
			errs = append(errs, fmt.Sprintf("Analyze failed for %s: %v", ae.Namespace, ae.Cause))
		} else {
			errs = append(errs, fmt.Sprintf("Analyze failed for %s: %v", targets[i].Namespace(), failures[i]))
		}
	}
	return ok, errs
}

func applyIgnore(findings []analyzer.Finding, logger *slog.Logger) ([]analyzer.Finding, int) {
	cwd, err := os.Getwd()
	if err != nil {
		return findings, 0
	}
	il, err := analyzer.LoadIgnoreFile(cwd)
	if err != nil {
		logger.Warn("ignore file unreadable", slog.Any("error", err))
		return findings, 0
	}
	return il.Filter(findings)
}

func writeReport(cmd *cobra.Command, opts *analyzeOptions, report *reporter.Report) error {
	if err := reporter.WriteDir(opts.outputDir, report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Report written to %s\n", opts.outputDir)
	return nil
}

func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return config.DefaultConfig(), fmt.Errorf("getwd: %w", err)
	}
	return config.Load(cwd)
}

// applyConfig fills options whose flags were not set from the config file.
func applyConfig(cmd *cobra.Command, opts *analyzeOptions, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if !changed("dbs") && len(cfg.Databases) > 0 {
		opts.dbs = cfg.Databases
	}
	if !changed("collections") && len(cfg.Collections) > 0 {
		opts.collections = cfg.Collections
	}
	if !changed("sample-size") {
		opts.sampleSize = cfg.Sampling.Size
	}
	if !changed("max-docs-per-coll") {
		opts.maxDocs = cfg.Sampling.MaxScan
	}
	if !changed("seed") {
		opts.seed = cfg.Sampling.Seed
	}
	if !changed("timeout-ms") && cfg.Sampling.Timeout != "" {
		opts.timeoutMS = int(cfg.TimeoutDuration().Milliseconds())
	}
	if !changed("output-dir") && cfg.Output.Dir != "" {
		opts.outputDir = cfg.Output.Dir
	}
	if !changed("format") && cfg.Output.Format != "" {
		opts.format = cfg.Output.Format
	}
	if !changed("lang") && cfg.Output.Lang != "" {
		opts.lang = cfg.Output.Lang
	}
}

// resolveURI applies --uri > MONGODB_URI > config file.
func resolveURI(cfg *config.Config) string {
	if uri != "" {
		return uri
	}
	if env := os.Getenv("MONGODB_URI"); env != "" {
		return env
	}
	return cfg.URI
}

func thresholdsFromConfig(c config.Thresholds) analyzer.Thresholds {
	t := analyzer.DefaultThresholds()
	setInt := func(dst *int, v int) {
		if v > 0 {
			*dst = v
		}
	}
	setRatio := func(dst *float64, v float64) {
		if v > 0 {
			*dst = v
		}
	}
	setInt(&t.LargeDocumentBytes, c.LargeDocumentBytes)
	setInt(&t.MaxNestingDepth, c.MaxNestingDepth)
	setInt(&t.UnboundedArrayMax, c.UnboundedArrayMax)
	setInt(&t.UnboundedArrayP95, c.UnboundedArrayP95)
	setInt(&t.MinPresence, c.MinPresence)
	setRatio(&t.MinPresenceRatio, c.MinPresenceRatio)
	setInt(&t.HighCardinalityMinDistinct, c.HighCardinalityMinDistinct)
	setRatio(&t.HighCardinalityRatio, c.HighCardinalityRatio)
	setInt(&t.LowCardinalityMaxDistinct, c.LowCardinalityMaxDistinct)
	setRatio(&t.LowCardinalityPresenceRatio, c.LowCardinalityPresenceRatio)
	return t
}

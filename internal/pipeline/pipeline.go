// Package pipeline runs the import, cleaning, detection, aggregation and
// export steps for a country, persisting every intermediate table
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/su1ph3r/procrisk/internal/aggregate"
	"github.com/su1ph3r/procrisk/internal/cleaning"
	"github.com/su1ph3r/procrisk/internal/detector"
	"github.com/su1ph3r/procrisk/internal/importer"
	"github.com/su1ph3r/procrisk/internal/metrics"
	"github.com/su1ph3r/procrisk/internal/reporter"
	"github.com/su1ph3r/procrisk/internal/store"
	"github.com/su1ph3r/procrisk/pkg/types"
)

// Step names a pipeline stage
type Step string

const (
	StepImport                Step = "import"
	StepClean                 Step = "clean"
	StepNonCompetitive        Step = "flag_non_competitive"
	StepSpendingConcentration Step = "flag_spending_concentration"
	StepShortBidWindow        Step = "flag_short_bid_window"
	StepContractSplitting     Step = "flag_contract_splitting"
	StepAggregate             Step = "aggregate"
	StepBuyers                Step = "buyers"
	StepExport                Step = "export"
)

// MissingInputError reports that a step's required artifact has not been
// produced for the country. Nothing is written when it is returned.
type MissingInputError struct {
	Country  string
	Artifact store.Artifact
	Step     Step
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("%s: step %s needs %q, which does not exist yet", e.Country, e.Step, e.Artifact)
}

func (e *MissingInputError) Unwrap() error {
	return store.ErrNotFound
}

// Pipeline runs steps against one store
type Pipeline struct {
	cfg     *types.Config
	store   *store.Store
	logger  *zap.Logger
	metrics *metrics.Recorder
	runID   string
	version string
	now     func() time.Time
}

// New creates a pipeline. logger and rec may be nil.
func New(cfg *types.Config, st *store.Store, logger *zap.Logger, rec *metrics.Recorder) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rec == nil {
		rec = metrics.NewRecorder()
	}
	return &Pipeline{
		cfg:     cfg,
		store:   st,
		logger:  logger,
		metrics: rec,
		now:     time.Now,
	}
}

// SetVersion sets the version printed in generated reports
func (p *Pipeline) SetVersion(v string) {
	p.version = v
}

// RunID returns the identifier of the current run, creating one if needed
func (p *Pipeline) RunID() string {
	if p.runID == "" {
		p.runID = uuid.NewString()
	}
	return p.runID
}

// step wraps fn with cancellation, logging and metrics
func (p *Pipeline) step(ctx context.Context, country string, step Step, fn func(log *zap.Logger) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	log := p.logger.With(
		zap.String("run_id", p.RunID()),
		zap.String("country", country),
		zap.String("step", string(step)),
	)
	log.Debug("step started")

	start := p.now()
	err := fn(log)
	elapsed := p.now().Sub(start)
	p.metrics.ObserveStep(country, string(step), elapsed, err)

	if err != nil {
		log.Error("step failed", zap.Error(err), zap.Duration("duration", elapsed))
		return err
	}
	log.Info("step finished", zap.Duration("duration", elapsed))
	return nil
}

// loadRequired reads an artifact a step cannot run without
func (p *Pipeline) loadRequired(country string, step Step, name store.Artifact, v any) error {
	err := p.store.Get(country, name, v)
	if errors.Is(err, store.ErrNotFound) {
		return &MissingInputError{Country: country, Artifact: name, Step: step}
	}
	return err
}

// loadOptional reads an artifact that degrades to empty when absent
func (p *Pipeline) loadOptional(log *zap.Logger, country string, name store.Artifact, v any) error {
	err := p.store.Get(country, name, v)
	if errors.Is(err, store.ErrNotFound) {
		log.Warn("artifact missing, treating as empty", zap.String("artifact", string(name)))
		return nil
	}
	return err
}

// Import reads the country's export from the input directory
func (p *Pipeline) Import(ctx context.Context, country string) (int, error) {
	var n int
	err := p.step(ctx, country, StepImport, func(log *zap.Logger) error {
		path, err := importer.FindInputFile(p.cfg.Input.Dir, country)
		if err != nil {
			return err
		}
		n, err = p.importFile(log, country, path)
		return err
	})
	return n, err
}

// ImportFile reads an explicit export file for country
func (p *Pipeline) ImportFile(ctx context.Context, country, path string) (int, error) {
	var n int
	err := p.step(ctx, country, StepImport, func(log *zap.Logger) error {
		var err error
		n, err = p.importFile(log, country, path)
		return err
	})
	return n, err
}

func (p *Pipeline) importFile(log *zap.Logger, country, path string) (int, error) {
	raw, err := importer.LoadFile(path)
	if err != nil {
		return 0, err
	}
	if err := p.store.Put(country, store.ArtifactRaw, raw); err != nil {
		return 0, err
	}
	p.metrics.RecordsImported(country, len(raw))
	log.Info("export imported", zap.String("file", path), zap.Int("rows", len(raw)))
	return len(raw), nil
}

// Clean builds the cleaned record table from the raw import
func (p *Pipeline) Clean(ctx context.Context, country string) (cleaning.Report, error) {
	var report cleaning.Report
	err := p.step(ctx, country, StepClean, func(log *zap.Logger) error {
		var raw []types.RawTender
		if err := p.loadRequired(country, StepClean, store.ArtifactRaw, &raw); err != nil {
			return err
		}

		var table types.RecordTable
		table, report = cleaning.Clean(raw, cleaning.OptionsFromConfig(p.cfg))
		if err := p.store.Put(country, store.ArtifactCleaned, table); err != nil {
			return err
		}

		p.metrics.RecordsCleaned(country, len(table))
		log.Info("records cleaned",
			zap.Int("input_rows", report.InputRows),
			zap.Int("output_rows", report.OutputRows),
			zap.Int("duplicates_removed", report.DuplicatesRemoved))
		if report.HasYears && p.cfg.Years.Min > report.MaxYearAvailable {
			log.Warn("minimum year is after the latest year in the data",
				zap.Int("min_year", p.cfg.Years.Min),
				zap.Int("min_year_available", report.MinYearAvailable),
				zap.Int("max_year_available", report.MaxYearAvailable))
		}
		return nil
	})
	return report, err
}

// cleaned loads the record table every detector depends on
func (p *Pipeline) cleaned(country string, step Step) (types.RecordTable, error) {
	var table types.RecordTable
	if err := p.loadRequired(country, step, store.ArtifactCleaned, &table); err != nil {
		return nil, err
	}
	return table, nil
}

// FlagNonCompetitive runs the non-competitive detector
func (p *Pipeline) FlagNonCompetitive(ctx context.Context, country string) (*types.NonCompetitiveResult, error) {
	var result *types.NonCompetitiveResult
	err := p.step(ctx, country, StepNonCompetitive, func(log *zap.Logger) error {
		table, err := p.cleaned(country, StepNonCompetitive)
		if err != nil {
			return err
		}
		result = detector.DetectNonCompetitive(table, detector.NonCompetitiveOptionsFromConfig(p.cfg))
		if err := p.store.PutAll(country, map[store.Artifact]any{
			store.ArtifactNonCompetitiveTenders: result.Tenders,
			store.ArtifactNonCompetitiveSummary: result.Summary,
		}); err != nil {
			return err
		}
		p.metrics.FlaggedBidders(country, string(types.ComponentNonCompetitive), len(result.Summary))
		log.Info("non-competitive bidders flagged",
			zap.Int("tenders", len(result.Tenders)),
			zap.Int("bidders", len(result.Summary)))
		return nil
	})
	return result, err
}

// FlagSpendingConcentration runs the spending concentration detector
func (p *Pipeline) FlagSpendingConcentration(ctx context.Context, country string) (*types.ConcentrationResult, error) {
	var result *types.ConcentrationResult
	err := p.step(ctx, country, StepSpendingConcentration, func(log *zap.Logger) error {
		table, err := p.cleaned(country, StepSpendingConcentration)
		if err != nil {
			return err
		}
		result = detector.DetectSpendingConcentration(table, detector.ConcentrationOptionsFromConfig(p.cfg))
		if err := p.store.PutAll(country, map[store.Artifact]any{
			store.ArtifactSpendingConcentrationAll:     result.Detail,
			store.ArtifactSpendingConcentrationSummary: result.Summary,
		}); err != nil {
			return err
		}
		p.metrics.FlaggedBidders(country, string(types.ComponentSpendingConcentration), len(result.Summary))
		log.Info("concentrated bidders flagged",
			zap.Int("relationships", len(result.Detail)),
			zap.Int("bidders", len(result.Summary)))
		return nil
	})
	return result, err
}

// FlagShortBidWindow runs the short bidding window detector
func (p *Pipeline) FlagShortBidWindow(ctx context.Context, country string) (*types.ShortWindowResult, error) {
	var result *types.ShortWindowResult
	err := p.step(ctx, country, StepShortBidWindow, func(log *zap.Logger) error {
		table, err := p.cleaned(country, StepShortBidWindow)
		if err != nil {
			return err
		}
		result = detector.DetectShortBidWindows(table, detector.ShortWindowOptionsFromConfig(p.cfg))

		detail := *result
		detail.Summary = nil
		if err := p.store.PutAll(country, map[store.Artifact]any{
			store.ArtifactShortBidWindowAll:     detail,
			store.ArtifactShortBidWindowSummary: result.Summary,
		}); err != nil {
			return err
		}

		p.metrics.FlaggedBidders(country, string(types.ComponentShortBidWindow), len(result.Summary))
		fields := []zap.Field{
			zap.Int("population", len(result.Population)),
			zap.Int("flagged_tenders", len(result.Flagged)),
			zap.Int("bidders", len(result.Summary)),
		}
		if result.HasThreshold {
			p.metrics.WindowThreshold(country, result.Threshold)
			fields = append(fields, zap.Float64("threshold_days", result.Threshold))
		}
		log.Info("short bid windows flagged", fields...)
		return nil
	})
	return result, err
}

// FlagContractSplitting runs the contract splitting clusterer
func (p *Pipeline) FlagContractSplitting(ctx context.Context, country string) (*types.SplitResult, error) {
	var result *types.SplitResult
	err := p.step(ctx, country, StepContractSplitting, func(log *zap.Logger) error {
		table, err := p.cleaned(country, StepContractSplitting)
		if err != nil {
			return err
		}
		result = detector.DetectContractSplitting(table, detector.SplitOptionsFromConfig(p.cfg))
		if err := p.store.PutAll(country, map[store.Artifact]any{
			store.ArtifactContractSplitAll:     result.Clusters,
			store.ArtifactContractSplitSummary: result.Summary,
		}); err != nil {
			return err
		}
		p.metrics.FlaggedBidders(country, string(types.ComponentContractSplitting), len(result.Summary))
		p.metrics.Clusters(country, len(result.Clusters))
		log.Info("contract splitting clusters found",
			zap.Int("clusters", len(result.Clusters)),
			zap.Int("bidders", len(result.Summary)))
		return nil
	})
	return result, err
}

// summaries holds whatever detector summaries exist for a country
type summaries struct {
	nonCompetitive []types.NonCompetitiveRow
	concentration  []types.ConcentrationRow
	shortWindow    []types.ShortWindowRow
	splitting      []types.SplitRow
}

func (p *Pipeline) loadSummaries(log *zap.Logger, country string) (*summaries, error) {
	s := &summaries{}
	loads := []struct {
		name store.Artifact
		v    any
	}{
		{store.ArtifactNonCompetitiveSummary, &s.nonCompetitive},
		{store.ArtifactSpendingConcentrationSummary, &s.concentration},
		{store.ArtifactShortBidWindowSummary, &s.shortWindow},
		{store.ArtifactContractSplitSummary, &s.splitting},
	}
	for _, l := range loads {
		if err := p.loadOptional(log, country, l.name, l.v); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *summaries) signals() aggregate.Signals {
	return aggregate.Signals{
		NonCompetitive:        (&types.NonCompetitiveResult{Summary: s.nonCompetitive}).Components(),
		SpendingConcentration: (&types.ConcentrationResult{Summary: s.concentration}).Components(),
		ShortBidWindow:        (&types.ShortWindowResult{Summary: s.shortWindow}).Components(),
		ContractSplitting:     (&types.SplitResult{Summary: s.splitting}).Components(),
	}
}

// Aggregate combines the detector summaries into the composite ranking.
// Missing detector output counts as zero for every bidder.
func (p *Pipeline) Aggregate(ctx context.Context, country string) ([]types.CompositeRiskRecord, error) {
	var records []types.CompositeRiskRecord
	err := p.step(ctx, country, StepAggregate, func(log *zap.Logger) error {
		table, err := p.cleaned(country, StepAggregate)
		if err != nil {
			return err
		}
		s, err := p.loadSummaries(log, country)
		if err != nil {
			return err
		}

		records = aggregate.Aggregate(table, s.signals())
		if err := p.store.Put(country, store.ArtifactAggregate, records); err != nil {
			return err
		}

		flagged := 0
		for _, r := range records {
			if r.NumFlags > 0 {
				flagged++
			}
		}
		log.Info("bidders ranked", zap.Int("bidders", len(records)), zap.Int("flagged", flagged))
		return nil
	})
	return records, err
}

// SummarizeBuyers builds the buyer summary
func (p *Pipeline) SummarizeBuyers(ctx context.Context, country string) ([]types.BuyerSummaryRow, error) {
	var rows []types.BuyerSummaryRow
	err := p.step(ctx, country, StepBuyers, func(log *zap.Logger) error {
		table, err := p.cleaned(country, StepBuyers)
		if err != nil {
			return err
		}
		rows = aggregate.SummarizeBuyers(table)
		if err := p.store.Put(country, store.ArtifactBuyerSummary, rows); err != nil {
			return err
		}
		log.Info("buyers summarized", zap.Int("buyers", len(rows)))
		return nil
	})
	return rows, err
}

// Report assembles the stored tables for country. Missing tables are empty.
func (p *Pipeline) Report(ctx context.Context, country string) (*types.RiskReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := p.logger.With(zap.String("country", country))

	report := &types.RiskReport{
		RunID:       p.RunID(),
		Country:     country,
		GeneratedAt: p.now().UTC(),
	}
	if err := p.loadOptional(log, country, store.ArtifactAggregate, &report.Composite); err != nil {
		return nil, err
	}
	if err := p.loadOptional(log, country, store.ArtifactBuyerSummary, &report.Buyers); err != nil {
		return nil, err
	}
	s, err := p.loadSummaries(log, country)
	if err != nil {
		return nil, err
	}
	report.NonCompetitive = s.nonCompetitive
	report.SpendingConcentration = s.concentration
	report.ShortBidWindow = s.shortWindow
	report.ContractSplitting = s.splitting

	var windows types.ShortWindowResult
	if err := p.loadOptional(log, country, store.ArtifactShortBidWindowAll, &windows); err != nil {
		return nil, err
	}
	if windows.HasThreshold {
		threshold := windows.Threshold
		report.ShortWindowThreshold = &threshold
	}
	return report, nil
}

// Export writes the report for country. An empty format uses the
// configured one; an empty path uses the default file name in the output
// directory. It returns the written path.
func (p *Pipeline) Export(ctx context.Context, country, format, path string) (string, error) {
	if format == "" {
		format = p.cfg.Output.Format
	}
	err := p.step(ctx, country, StepExport, func(log *zap.Logger) error {
		opts := reporter.DefaultOptions()
		opts.Version = p.version
		rep, err := reporter.NewReporter(format, opts)
		if err != nil {
			return err
		}
		report, err := p.Report(ctx, country)
		if err != nil {
			return err
		}
		if path == "" {
			path = reporter.DefaultFileName(p.cfg.Output.Dir, country, rep)
		}
		if err := reporter.WriteToFile(rep, report, path); err != nil {
			return err
		}
		log.Info("report written", zap.String("file", path), zap.String("format", rep.Format()))
		return nil
	})
	return path, err
}

// RunSummary describes one full run for a country
type RunSummary struct {
	RunID      string
	Country    string
	Imported   int
	Cleaned    int
	Flagged    map[types.Component]int
	Clusters   int
	Bidders    int
	ReportPath string
	Duration   time.Duration
}

// Run executes every step for country in order, stopping at the first error
func (p *Pipeline) Run(ctx context.Context, country string) (*RunSummary, error) {
	p.runID = uuid.NewString()
	start := p.now()
	summary := &RunSummary{RunID: p.runID, Country: country, Flagged: make(map[types.Component]int)}

	var err error
	if summary.Imported, err = p.Import(ctx, country); err != nil {
		return summary, err
	}
	cleanReport, err := p.Clean(ctx, country)
	if err != nil {
		return summary, err
	}
	summary.Cleaned = cleanReport.OutputRows

	nc, err := p.FlagNonCompetitive(ctx, country)
	if err != nil {
		return summary, err
	}
	summary.Flagged[types.ComponentNonCompetitive] = len(nc.Summary)

	sc, err := p.FlagSpendingConcentration(ctx, country)
	if err != nil {
		return summary, err
	}
	summary.Flagged[types.ComponentSpendingConcentration] = len(sc.Summary)

	sw, err := p.FlagShortBidWindow(ctx, country)
	if err != nil {
		return summary, err
	}
	summary.Flagged[types.ComponentShortBidWindow] = len(sw.Summary)

	cs, err := p.FlagContractSplitting(ctx, country)
	if err != nil {
		return summary, err
	}
	summary.Flagged[types.ComponentContractSplitting] = len(cs.Summary)
	summary.Clusters = len(cs.Clusters)

	records, err := p.Aggregate(ctx, country)
	if err != nil {
		return summary, err
	}
	summary.Bidders = len(records)

	if _, err := p.SummarizeBuyers(ctx, country); err != nil {
		return summary, err
	}

	summary.ReportPath, err = p.Export(ctx, country, "", "")
	if errors.Is(err, reporter.ErrNoData) {
		p.logger.Warn("nothing to export", zap.String("country", country))
		summary.ReportPath = ""
	} else if err != nil {
		return summary, err
	}

	summary.Duration = p.now().Sub(start)
	p.metrics.RunSucceeded(country, p.now())
	return summary, nil
}

// RunAll runs every country. A failure for one country does not stop the
// others; the errors are joined. Metrics are written once at the end.
func (p *Pipeline) RunAll(ctx context.Context, countries []string) ([]*RunSummary, error) {
	var (
		summaries []*RunSummary
		errs      []error
	)
	for _, country := range countries {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		summary, err := p.Run(ctx, country)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", country, err))
			continue
		}
		summaries = append(summaries, summary)
	}

	if err := p.metrics.WriteTextfile(p.cfg.Metrics.Textfile); err != nil {
		p.logger.Warn("failed to write metrics", zap.Error(err))
	}
	return summaries, errors.Join(errs...)
}

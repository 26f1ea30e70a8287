package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/su1ph3r/procrisk/internal/pipeline"
	"github.com/su1ph3r/procrisk/internal/reporter"
	"github.com/su1ph3r/procrisk/internal/scheduler"
	"github.com/su1ph3r/procrisk/pkg/types"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a country export into the store",
	Long: `Read the country's CSV export from the input directory (or --file) and
store it as the raw table.`,
	RunE: withSession(func(ctx context.Context, cmd *cobra.Command, s *session, country string) error {
		file, _ := cmd.Flags().GetString("file")
		var (
			n   int
			err error
		)
		if file != "" {
			n, err = s.pipeline.ImportFile(ctx, country, file)
		} else {
			n, err = s.pipeline.Import(ctx, country)
		}
		if err != nil {
			return err
		}
		printSuccess("Imported %s rows for %s", humanize.Comma(int64(n)), country)
		return nil
	}),
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean the imported table",
	RunE: withSession(func(ctx context.Context, cmd *cobra.Command, s *session, country string) error {
		report, err := s.pipeline.Clean(ctx, country)
		if err != nil {
			return err
		}
		if report.HasYears {
			printInfo("Years available: %d to %d", report.MinYearAvailable, report.MaxYearAvailable)
		}
		printInfo("Removed %s duplicates, filtered %s rows",
			humanize.Comma(int64(report.DuplicatesRemoved)), humanize.Comma(int64(report.FilteredRows)))
		printSuccess("Kept %s of %s rows", humanize.Comma(int64(report.OutputRows)), humanize.Comma(int64(report.InputRows)))
		return nil
	}),
}

// detectorCommands maps flag arguments to pipeline steps
var detectorCommands = map[string]func(ctx context.Context, p *pipeline.Pipeline, country string) (int, error){
	"non-competitive": func(ctx context.Context, p *pipeline.Pipeline, country string) (int, error) {
		r, err := p.FlagNonCompetitive(ctx, country)
		if err != nil {
			return 0, err
		}
		return len(r.Summary), nil
	},
	"spending-concentration": func(ctx context.Context, p *pipeline.Pipeline, country string) (int, error) {
		r, err := p.FlagSpendingConcentration(ctx, country)
		if err != nil {
			return 0, err
		}
		return len(r.Summary), nil
	},
	"short-bid-window": func(ctx context.Context, p *pipeline.Pipeline, country string) (int, error) {
		r, err := p.FlagShortBidWindow(ctx, country)
		if err != nil {
			return 0, err
		}
		if r.HasThreshold {
			printInfo("Short window cutoff: %.1f days", r.Threshold)
		}
		return len(r.Summary), nil
	},
	"contract-splitting": func(ctx context.Context, p *pipeline.Pipeline, country string) (int, error) {
		r, err := p.FlagContractSplitting(ctx, country)
		if err != nil {
			return 0, err
		}
		printInfo("Found %d contract clusters", len(r.Clusters))
		return len(r.Summary), nil
	},
}

var detectorOrder = []string{"non-competitive", "spending-concentration", "short-bid-window", "contract-splitting"}

var flagCmd = &cobra.Command{
	Use:       "flag [detector...]",
	Short:     "Run risk detectors on the cleaned table",
	Long:      `Run one or more detectors (` + strings.Join(detectorOrder, ", ") + `). With no arguments every detector runs.`,
	ValidArgs: detectorOrder,
	Args:      cobra.OnlyValidArgs,
	RunE: withSession(func(ctx context.Context, cmd *cobra.Command, s *session, country string) error {
		names := cmd.Flags().Args()
		if len(names) == 0 {
			names = detectorOrder
		}
		for _, name := range names {
			n, err := detectorCommands[name](ctx, s.pipeline, country)
			if err != nil {
				return err
			}
			printSuccess("%s: %d bidders flagged", name, n)
		}
		return nil
	}),
}

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Combine detector scores into the bidder ranking",
	RunE: withSession(func(ctx context.Context, cmd *cobra.Command, s *session, country string) error {
		records, err := s.pipeline.Aggregate(ctx, country)
		if err != nil {
			return err
		}
		top, _ := cmd.Flags().GetInt("top")
		printRanking(records, top)
		return nil
	}),
}

var buyersCmd = &cobra.Command{
	Use:   "buyers",
	Short: "Summarize awards per buyer",
	RunE: withSession(func(ctx context.Context, cmd *cobra.Command, s *session, country string) error {
		rows, err := s.pipeline.SummarizeBuyers(ctx, country)
		if err != nil {
			return err
		}
		printSuccess("Summarized %s buyers", humanize.Comma(int64(len(rows))))
		return nil
	}),
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the risk report",
	RunE: withSession(func(ctx context.Context, cmd *cobra.Command, s *session, country string) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")
		path, err := s.pipeline.Export(ctx, country, format, output)
		if errors.Is(err, reporter.ErrNoData) {
			printWarning("Nothing to export for %s; run the earlier steps first", country)
			return nil
		}
		if err != nil {
			return err
		}
		printSuccess("Report written to %s", path)
		return nil
	}),
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List stored artifacts for a country",
	RunE: withSession(func(ctx context.Context, cmd *cobra.Command, s *session, country string) error {
		entries, err := s.store.List(country)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			printWarning("No artifacts stored for %s", country)
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%-34s %10s  %s\n", e.Name, humanize.Bytes(uint64(e.Size)), humanize.Time(e.SavedAt))
		}
		return nil
	}),
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every step for one or more countries",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		ctx, cancel := signalContext()
		defer cancel()

		countries, _ := cmd.Flags().GetStringSlice("countries")
		if len(countries) == 0 {
			countries = []string{countryArg()}
		}
		for i := range countries {
			countries[i] = strings.ToUpper(countries[i])
		}

		summaries, err := s.pipeline.RunAll(ctx, countries)
		for _, sum := range summaries {
			printRunSummary(sum)
		}
		return err
	},
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the pipeline on the configured cron schedule",
	Long: `Run the full pipeline for every scheduled country each time the cron
expression fires, until interrupted. A run that is still going when the next
one is due causes that trigger to be skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		countries := config.ScheduledCountries()
		sched, err := scheduler.New(config.Schedule.Cron, func(ctx context.Context) error {
			_, err := s.pipeline.RunAll(ctx, countries)
			return err
		}, s.logger)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()
		printInfo("Scheduling %s on %q", strings.Join(countries, ", "), config.Schedule.Cron)
		return sched.Run(ctx)
	},
}

func addPipelineCommands(root *cobra.Command) {
	importCmd.Flags().StringP("file", "f", "", "Export file to import instead of searching the input directory")
	aggregateCmd.Flags().Int("top", 10, "Bidders to print")
	exportCmd.Flags().StringP("format", "F", "", "Report format (xlsx, json, markdown, text); default from config")
	exportCmd.Flags().StringP("output", "o", "", "Output file path")
	runCmd.Flags().StringSlice("countries", []string{}, "Countries to run (default --country)")

	root.AddCommand(importCmd, cleanCmd, flagCmd, aggregateCmd, buyersCmd, exportCmd, statusCmd, runCmd, scheduleCmd)
}

// withSession opens the store and logger around a single-country command
func withSession(fn func(ctx context.Context, cmd *cobra.Command, s *session, country string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		ctx, cancel := signalContext()
		defer cancel()
		return fn(ctx, cmd, s, countryArg())
	}
}

func printRanking(records []types.CompositeRiskRecord, top int) {
	if len(records) == 0 {
		printWarning("No bidders to rank")
		return
	}
	if top > 0 && len(records) > top {
		records = records[:top]
	}
	fmt.Println()
	fmt.Printf("%-5s %-40s %7s %6s %20s\n", "RANK", "BIDDER", "SCORE", "FLAGS", "AT RISK")
	for _, r := range records {
		line := fmt.Sprintf("%-5d %-40s %7.1f %6d %20s",
			r.Rank, reporter.TruncateString(r.Name, 40), r.TotalRiskScore, r.NumFlags, reporter.FormatMoney(r.TotalDollarsAtRisk))
		switch {
		case r.NumFlags >= 3:
			color.Red("%s", line)
		case r.NumFlags > 0:
			color.Yellow("%s", line)
		default:
			fmt.Println(line)
		}
	}
	fmt.Println()
}

func printRunSummary(s *pipeline.RunSummary) {
	fmt.Println()
	fmt.Println("=" + strings.Repeat("=", 50))
	fmt.Printf("RUN SUMMARY: %s\n", s.Country)
	fmt.Println("=" + strings.Repeat("=", 50))
	fmt.Printf("Run ID:     %s\n", s.RunID)
	fmt.Printf("Duration:   %s\n", s.Duration.Round(time.Millisecond))
	fmt.Printf("Imported:   %s rows\n", humanize.Comma(int64(s.Imported)))
	fmt.Printf("Cleaned:    %s rows\n", humanize.Comma(int64(s.Cleaned)))
	fmt.Printf("Bidders:    %s ranked\n", humanize.Comma(int64(s.Bidders)))
	for _, c := range types.Components {
		fmt.Printf("  %-24s %d flagged\n", c, s.Flagged[c])
	}
	fmt.Printf("Clusters:   %d\n", s.Clusters)
	if s.ReportPath != "" {
		printSuccess("Report: %s", s.ReportPath)
	}
	fmt.Println("=" + strings.Repeat("=", 50))
}

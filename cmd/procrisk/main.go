// Package main is the entry point for the procrisk CLI
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/su1ph3r/procrisk/internal/logging"
	"github.com/su1ph3r/procrisk/internal/metrics"
	"github.com/su1ph3r/procrisk/internal/pipeline"
	"github.com/su1ph3r/procrisk/internal/store"
	"github.com/su1ph3r/procrisk/pkg/types"
)

var (
	version = "1.0.0"
	cfgFile string
	config  *types.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "procrisk",
	Short: "procrisk - procurement bidder risk indicators",
	Long: `procrisk scores bidders in public procurement data on four red flags:
non-competitive awards, buyer spending concentration, short bidding windows
and contract splitting, then combines them into one ranked risk table.

Every step stores its output per country, so steps can be run one at a time
or all together with "procrisk run".`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
			color.NoColor = true
		}
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and modify procrisk configuration settings`,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		viper.Set(args[0], args[1])
		if err := viper.WriteConfig(); err != nil {
			// no config file yet
			return viper.SafeWriteConfig()
		}
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(viper.Get(args[0]))
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show all configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		keys := viper.AllKeys()
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("%s: %v\n", k, viper.Get(k))
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.procrisk.yaml)")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringP("country", "c", "", "Country code to process (default from config)")
	rootCmd.PersistentFlags().String("store", "", "Artifact database path")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")

	viper.BindPFlag("country", rootCmd.PersistentFlags().Lookup("country"))
	viper.BindPFlag("storage.path", rootCmd.PersistentFlags().Lookup("store"))
	viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))

	addPipelineCommands(rootCmd)

	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configShowCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".procrisk")
		viper.SetConfigType("yaml")
	}

	setDefaults(types.DefaultConfig())

	viper.AutomaticEnv()
	viper.SetEnvPrefix("PROCRISK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			printWarning("Could not read config file %s: %v", cfgFile, err)
		}
	}

	// Load config
	config = types.DefaultConfig()
	if err := viper.Unmarshal(config); err != nil {
		printWarning("Invalid configuration, using defaults: %v", err)
		config = types.DefaultConfig()
	}
}

// setDefaults registers every key so environment variables and config show
// see the full key set
func setDefaults(d *types.Config) {
	viper.SetDefault("country", d.Country)
	viper.SetDefault("years.min", d.Years.Min)
	viper.SetDefault("years.max", d.Years.Max)
	viper.SetDefault("cleaning.tax_havens", d.Cleaning.TaxHavens)
	viper.SetDefault("non_competitive.dollar_threshold", d.NonCompetitive.DollarThreshold)
	viper.SetDefault("non_competitive.max_tender_threshold", d.NonCompetitive.MaxTenderThreshold)
	viper.SetDefault("non_competitive.procedure_types", d.NonCompetitive.ProcedureTypes)
	viper.SetDefault("spending_concentration.share_threshold", d.SpendingConcentration.ShareThreshold)
	viper.SetDefault("spending_concentration.min_payment", d.SpendingConcentration.MinPayment)
	viper.SetDefault("short_window.quantile", d.ShortWindow.Quantile)
	viper.SetDefault("short_window.max_days", d.ShortWindow.MaxDays)
	viper.SetDefault("short_window.min_value", d.ShortWindow.MinValue)
	viper.SetDefault("contract_split.approval_threshold", d.ContractSplit.ApprovalThreshold)
	viper.SetDefault("contract_split.time_window_days", d.ContractSplit.TimeWindowDays)
	viper.SetDefault("contract_split.similarity_threshold", d.ContractSplit.SimilarityThreshold)
	viper.SetDefault("contract_split.min_cluster_value", d.ContractSplit.MinClusterValue)
	viper.SetDefault("input.dir", d.Input.Dir)
	viper.SetDefault("storage.path", d.Storage.Path)
	viper.SetDefault("output.dir", d.Output.Dir)
	viper.SetDefault("output.format", d.Output.Format)
	viper.SetDefault("logging.level", d.Logging.Level)
	viper.SetDefault("logging.format", d.Logging.Format)
	viper.SetDefault("logging.output", d.Logging.Output)
	viper.SetDefault("metrics.textfile", d.Metrics.Textfile)
	viper.SetDefault("schedule.cron", d.Schedule.Cron)
	viper.SetDefault("schedule.countries", d.Schedule.Countries)
}

// session holds what every pipeline command needs
type session struct {
	pipeline *pipeline.Pipeline
	store    *store.Store
	logger   *zap.Logger
	metrics  *metrics.Recorder
}

func openSession() (*session, error) {
	if err := types.ValidateConfig(config); err != nil {
		return nil, err
	}

	logger, err := logging.New(config.Logging.Level, config.Logging.Format, config.Logging.Output)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(config.Storage.Path)
	if err != nil {
		logger.Sync()
		return nil, err
	}
	rec := metrics.NewRecorder()
	p := pipeline.New(config, st, logger, rec)
	p.SetVersion(version)

	return &session{
		pipeline: p,
		store:    st,
		logger:   logger,
		metrics:  rec,
	}, nil
}

func (s *session) Close() {
	if err := s.metrics.WriteTextfile(config.Metrics.Textfile); err != nil {
		printWarning("Failed to write metrics: %v", err)
	}
	s.store.Close()
	s.logger.Sync()
}

// signalContext is cancelled on interrupt
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// countryArg returns the country to process
func countryArg() string {
	return strings.ToUpper(config.Country)
}

// Printing functions

func printInfo(format string, args ...interface{}) {
	color.Cyan("[*] "+format, args...)
}

func printSuccess(format string, args ...interface{}) {
	color.Green("[+] "+format, args...)
}

func printWarning(format string, args ...interface{}) {
	color.Yellow("[!] "+format, args...)
}

func printError(format string, args ...interface{}) {
	color.Red("[-] "+format, args...)
}

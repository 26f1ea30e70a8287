// Package types provides core data structures for procrisk
package types

// Config represents the application configuration
type Config struct {
	// Country analysed when none is given on the command line
	Country string `yaml:"country" mapstructure:"country"`

	// Year filter applied during cleaning
	Years YearSettings `yaml:"years" mapstructure:"years"`

	// Cleaning settings
	Cleaning CleaningSettings `yaml:"cleaning" mapstructure:"cleaning"`

	// Detector thresholds
	NonCompetitive        NonCompetitiveSettings        `yaml:"non_competitive" mapstructure:"non_competitive"`
	SpendingConcentration SpendingConcentrationSettings `yaml:"spending_concentration" mapstructure:"spending_concentration"`
	ShortWindow           ShortWindowSettings           `yaml:"short_window" mapstructure:"short_window"`
	ContractSplit         ContractSplitSettings         `yaml:"contract_split" mapstructure:"contract_split"`

	// Input/storage/output locations
	Input   InputSettings   `yaml:"input" mapstructure:"input"`
	Storage StorageSettings `yaml:"storage" mapstructure:"storage"`
	Output  OutputSettings  `yaml:"output" mapstructure:"output"`

	// Logging settings
	Logging LoggingSettings `yaml:"logging" mapstructure:"logging"`

	// Metrics settings
	Metrics MetricsSettings `yaml:"metrics" mapstructure:"metrics"`

	// Recurring runs
	Schedule ScheduleSettings `yaml:"schedule" mapstructure:"schedule"`
}

// YearSettings bounds tender years. Max of 0 means no upper bound.
type YearSettings struct {
	Min int `yaml:"min" mapstructure:"min"`
	Max int `yaml:"max" mapstructure:"max"`
}

// CleaningSettings holds record preparation configuration
type CleaningSettings struct {
	TaxHavens []string `yaml:"tax_havens" mapstructure:"tax_havens"` // ISO-2 bidder countries
}

// NonCompetitiveSettings holds non-competitive award thresholds
type NonCompetitiveSettings struct {
	DollarThreshold    float64  `yaml:"dollar_threshold" mapstructure:"dollar_threshold"`         // Total non-competitive dollars per bidder
	MaxTenderThreshold float64  `yaml:"max_tender_threshold" mapstructure:"max_tender_threshold"` // Largest single non-competitive tender
	ProcedureTypes     []string `yaml:"procedure_types" mapstructure:"procedure_types"`           // Lower-case procedure types treated as non-competitive
}

// SpendingConcentrationSettings holds buyer-share thresholds
type SpendingConcentrationSettings struct {
	ShareThreshold float64 `yaml:"share_threshold" mapstructure:"share_threshold"`
	MinPayment     float64 `yaml:"min_payment" mapstructure:"min_payment"`
}

// ShortWindowSettings holds bidding window filters
type ShortWindowSettings struct {
	Quantile float64 `yaml:"quantile" mapstructure:"quantile"`
	MaxDays  int     `yaml:"max_days" mapstructure:"max_days"`
	MinValue float64 `yaml:"min_value" mapstructure:"min_value"`
}

// ContractSplitSettings holds clustering parameters
type ContractSplitSettings struct {
	ApprovalThreshold   float64 `yaml:"approval_threshold" mapstructure:"approval_threshold"`
	TimeWindowDays      int     `yaml:"time_window_days" mapstructure:"time_window_days"`
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
	MinClusterValue     float64 `yaml:"min_cluster_value" mapstructure:"min_cluster_value"`
}

// InputSettings holds raw export location
type InputSettings struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// StorageSettings holds artifact store configuration
type StorageSettings struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// OutputSettings holds report configuration
type OutputSettings struct {
	Dir    string `yaml:"dir" mapstructure:"dir"`
	Format string `yaml:"format" mapstructure:"format"` // xlsx, json, markdown, text
}

// LoggingSettings holds logger configuration
type LoggingSettings struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // console, json
	Output string `yaml:"output" mapstructure:"output"` // stderr, stdout or a file path
}

// MetricsSettings holds metrics export configuration
type MetricsSettings struct {
	Textfile string `yaml:"textfile" mapstructure:"textfile"` // Prometheus textfile path, empty disables
}

// ScheduleSettings holds recurring run configuration
type ScheduleSettings struct {
	Cron      string   `yaml:"cron" mapstructure:"cron"`
	Countries []string `yaml:"countries" mapstructure:"countries"` // Empty = Country
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Country: "MX",
		Years: YearSettings{
			Min: 2019,
			Max: 0,
		},
		Cleaning: CleaningSettings{
			TaxHavens: []string{"LT", "IE", "NL", "PA", "PL", "SG"},
		},
		NonCompetitive: NonCompetitiveSettings{
			DollarThreshold:    1_000_000,
			MaxTenderThreshold: 1_000_000,
			ProcedureTypes:     []string{"limited", "outright_award"},
		},
		SpendingConcentration: SpendingConcentrationSettings{
			ShareThreshold: 0.10,
			MinPayment:     1_000_000,
		},
		ShortWindow: ShortWindowSettings{
			Quantile: 0.10,
			MaxDays:  365,
			MinValue: 1_000_000,
		},
		ContractSplit: ContractSplitSettings{
			ApprovalThreshold:   10_000_000,
			TimeWindowDays:      7,
			SimilarityThreshold: 0.5,
			MinClusterValue:     1_000_000,
		},
		Input: InputSettings{
			Dir: "input",
		},
		Storage: StorageSettings{
			Path: "procrisk.db",
		},
		Output: OutputSettings{
			Dir:    "output",
			Format: "xlsx",
		},
		Logging: LoggingSettings{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
		Schedule: ScheduleSettings{
			Cron: "0 3 * * *",
		},
	}
}

// ScheduledCountries returns the countries a scheduled run covers
func (c *Config) ScheduledCountries() []string {
	if len(c.Schedule.Countries) > 0 {
		return c.Schedule.Countries
	}
	return []string{c.Country}
}

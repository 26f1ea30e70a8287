package types

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation error: %s: %s (value: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")
	for _, err := range e {
		sb.WriteString(fmt.Sprintf("  - %s: %s\n", err.Field, err.Message))
	}
	return sb.String()
}

// HasErrors returns true if there are any validation errors
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// ConfigValidator validates configuration settings
type ConfigValidator struct {
	errors ValidationErrors
}

// NewConfigValidator creates a new config validator
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{}
}

// Validate performs comprehensive validation of the config
func (v *ConfigValidator) Validate(config *Config) ValidationErrors {
	v.errors = nil

	if strings.TrimSpace(config.Country) == "" {
		v.addError("country", "must not be empty", config.Country)
	}
	v.validateYears(config.Years)
	v.validateNonCompetitive(config.NonCompetitive)
	v.validateSpendingConcentration(config.SpendingConcentration)
	v.validateShortWindow(config.ShortWindow)
	v.validateContractSplit(config.ContractSplit)
	v.validateOutput(config.Output)
	v.validateLogging(config.Logging)

	return v.errors
}

func (v *ConfigValidator) addError(field, message string, value interface{}) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	})
}

func (v *ConfigValidator) validateYears(y YearSettings) {
	if y.Min < 0 {
		v.addError("years.min", "must not be negative", y.Min)
	}
	if y.Max != 0 && y.Max < y.Min {
		v.addError("years.max", "must be 0 (no bound) or >= years.min", y.Max)
	}
}

func (v *ConfigValidator) validateNonCompetitive(s NonCompetitiveSettings) {
	if s.DollarThreshold < 0 {
		v.addError("non_competitive.dollar_threshold", "must not be negative", s.DollarThreshold)
	}
	if s.MaxTenderThreshold < 0 {
		v.addError("non_competitive.max_tender_threshold", "must not be negative", s.MaxTenderThreshold)
	}
}

func (v *ConfigValidator) validateSpendingConcentration(s SpendingConcentrationSettings) {
	if s.ShareThreshold < 0 || s.ShareThreshold > 1 {
		v.addError("spending_concentration.share_threshold", "must be between 0 and 1", s.ShareThreshold)
	}
	if s.MinPayment < 0 {
		v.addError("spending_concentration.min_payment", "must not be negative", s.MinPayment)
	}
}

func (v *ConfigValidator) validateShortWindow(s ShortWindowSettings) {
	if s.Quantile <= 0 || s.Quantile >= 1 {
		v.addError("short_window.quantile", "must be between 0 and 1 (exclusive)", s.Quantile)
	}
	if s.MaxDays < 1 {
		v.addError("short_window.max_days", "must be at least 1", s.MaxDays)
	}
	if s.MinValue < 0 {
		v.addError("short_window.min_value", "must not be negative", s.MinValue)
	}
}

func (v *ConfigValidator) validateContractSplit(s ContractSplitSettings) {
	if s.ApprovalThreshold <= 0 {
		v.addError("contract_split.approval_threshold", "must be positive", s.ApprovalThreshold)
	}
	if s.TimeWindowDays < 0 {
		v.addError("contract_split.time_window_days", "must not be negative", s.TimeWindowDays)
	}
	if s.SimilarityThreshold < 0 || s.SimilarityThreshold > 1 {
		v.addError("contract_split.similarity_threshold", "must be between 0 and 1", s.SimilarityThreshold)
	}
	if s.MinClusterValue < 0 {
		v.addError("contract_split.min_cluster_value", "must not be negative", s.MinClusterValue)
	}
}

func (v *ConfigValidator) validateOutput(o OutputSettings) {
	if _, ok := NormalizeReportFormat(o.Format); !ok {
		v.addError("output.format", "must be one of: xlsx (excel), json, markdown (md), text (txt)", o.Format)
	}
}

func (v *ConfigValidator) validateLogging(l LoggingSettings) {
	if _, ok := NormalizeLogLevel(l.Level); !ok {
		v.addError("logging.level", "must be one of: "+strings.Join(LogLevels, ", "), l.Level)
	}
	if _, ok := NormalizeLogFormat(l.Format); !ok {
		v.addError("logging.format", "must be one of: "+strings.Join(LogFormats, ", "), l.Format)
	}
}

// ValidateConfig is a convenience function to validate a config
func ValidateConfig(config *Config) error {
	validator := NewConfigValidator()
	errors := validator.Validate(config)
	if errors.HasErrors() {
		return errors
	}
	return nil
}

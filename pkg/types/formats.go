package types

import "strings"

// Canonical report formats
const (
	FormatXLSX     = "xlsx"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatText     = "text"
)

// reportFormats maps every accepted output.format spelling to its
// canonical format
var reportFormats = map[string]string{
	"xlsx":     FormatXLSX,
	"excel":    FormatXLSX,
	"json":     FormatJSON,
	"markdown": FormatMarkdown,
	"md":       FormatMarkdown,
	"text":     FormatText,
	"txt":      FormatText,
}

// LogLevels lists the accepted logging.level values
var LogLevels = []string{"debug", "info", "warn", "error"}

// LogFormats lists the accepted logging.format values
var LogFormats = []string{"console", "json"}

// NormalizeReportFormat returns the canonical format for s, ignoring case
// and surrounding space
func NormalizeReportFormat(s string) (string, bool) {
	f, ok := reportFormats[normalize(s)]
	return f, ok
}

// NormalizeLogLevel returns the lower-case level name. An empty level is info.
func NormalizeLogLevel(s string) (string, bool) {
	s = normalize(s)
	if s == "" {
		return "info", true
	}
	return s, contains(LogLevels, s)
}

// NormalizeLogFormat returns the lower-case format name. An empty format is
// console.
func NormalizeLogFormat(s string) (string, bool) {
	s = normalize(s)
	if s == "" {
		return "console", true
	}
	return s, contains(LogFormats, s)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

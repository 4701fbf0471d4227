// Package constants provides shared constants for the project-feasibility application.
package constants

// DateTimeLayout is the format expected in config files for the timeline start
// date and is also the format used for period labels.
const DateTimeLayout = "2006-01"

// Financial constants
const (
	// MonthsPerYear is the number of months in a year
	MonthsPerYear = 12

	// CurrencyPlaces is the number of decimal places money rows are rounded to
	CurrencyPlaces = 2

	// RatePlaces is the number of decimal places periodic rates and growth
	// factors are carried at
	RatePlaces = 12

	// CurrencyTolerance is the tolerance for currency comparisons (1 cent)
	CurrencyTolerance = "0.01"

	// DaysPerMonth is the average month length used for daily-rate rentals
	DaysPerMonth = "30.416666666667"

	// PercentageMultiplier is used for percentage conversions in display code
	PercentageMultiplier = 100.0
)

// Root finding constants
const (
	// IRRMaxIterations bounds both the Newton-Raphson and the bisection phases
	IRRMaxIterations = 200

	// IRRTolerance is the absolute tolerance on the periodic rate
	IRRTolerance = 1e-10

	// IRRLowerBound is the lowest periodic rate the bisection bracket may reach
	IRRLowerBound = -0.9999

	// IRRUpperBound is the highest periodic rate the bisection bracket may reach
	IRRUpperBound = 10.0
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV financing schedule output format
	OutputFormatCSV = "csv"

	// OutputFormatXLSX is the Excel workbook output format
	OutputFormatXLSX = "xlsx"

	// OutputFormatJSON is the full result snapshot output format
	OutputFormatJSON = "json"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// ExampleConfigFile is the example configuration file name
	ExampleConfigFile = "config.yaml.example"

	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"

	// DefaultXLSXFile is the workbook written when xlsx output has no file set
	DefaultXLSXFile = "project-feasibility.xlsx"

	// EnvPrefix is the prefix viper uses for environment overrides
	EnvPrefix = "PF"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address for the API
	DefaultServerAddress = ":8080"

	// DefaultMaxUploadSizeBytes is the default maximum upload size for YAML configs (256 KB)
	DefaultMaxUploadSizeBytes int64 = 256 * 1024

	// DefaultCacheSize is the number of result snapshots kept in memory
	DefaultCacheSize = 64

	// DefaultCacheTTLSeconds is the expiry applied to results stored in Redis
	DefaultCacheTTLSeconds = 900
)

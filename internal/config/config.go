// Package config defines the data structures related to configuration and
// includes functions for loading, checking and converting the config into
// engine input snapshots.
package config

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/iwvelando/project-feasibility/pkg/constants"
	"github.com/iwvelando/project-feasibility/pkg/validation"
	"github.com/spf13/viper"
)

// DateTimeLayout is the format expected in config files for the timeline
// start date and is also the output date format.
const DateTimeLayout = constants.DateTimeLayout

// Configuration holds all configuration for project-feasibility.
type Configuration struct {
	Common    Project       `yaml:"common" mapstructure:"common"`
	Scenarios []Scenario    `yaml:"scenarios" mapstructure:"scenarios" validate:"dive"`
	Logging   LoggingConfig `yaml:"logging,omitempty" mapstructure:"logging"`
	Output    OutputConfig  `yaml:"output,omitempty" mapstructure:"output"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty" mapstructure:"level"`           // debug, info, warn, error
	Format     string `yaml:"format,omitempty" mapstructure:"format"`         // json, console
	OutputFile string `yaml:"outputFile,omitempty" mapstructure:"outputFile"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `yaml:"format,omitempty" mapstructure:"format"` // pretty, csv, xlsx, json
	File   string `yaml:"file,omitempty" mapstructure:"file"`     // workbook path for xlsx
}

// envKeys are bound explicitly so they can be set from the environment even
// when the file does not mention them.
var envKeys = []string{
	"logging.level",
	"logging.format",
	"logging.outputFile",
	"output.format",
	"output.file",
}

var structValidator = validator.New()

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yml")
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}
	return v
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file, %w", err)
	}

	return decode(v)
}

// LoadConfigurationFromReader loads a YAML-formatted configuration from r.
func LoadConfigurationFromReader(r io.Reader) (*Configuration, error) {
	v := newViper()

	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("error reading config, %w", err)
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Configuration, error) {
	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}

	if err := configuration.Validate(); err != nil {
		return nil, err
	}

	return &configuration, nil
}

// Validate checks the shape of the configuration: required fields, ranges and
// enumerations. The engine performs the semantic checks when a scenario runs.
func (c *Configuration) Validate() error {
	if err := structValidator.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return foldValidationErrors(verrs)
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Output.Format != "" {
		if err := validation.ValidateOutputFormat(c.Output.Format); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	}
	return nil
}

// foldValidationErrors turns every failed field into one sorted message.
func foldValidationErrors(verrs validator.ValidationErrors) error {
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Configuration.")
		if fe.Param() != "" {
			problems = append(problems, fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			problems = append(problems, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	sort.Strings(problems)
	return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
}

// ActiveScenarios returns the scenarios marked active, in file order.
func (c *Configuration) ActiveScenarios() []Scenario {
	var active []Scenario
	for _, s := range c.Scenarios {
		if s.Active {
			active = append(active, s)
		}
	}
	return active
}

// ValidateConfiguration performs general validation of the configuration and returns warnings
func (c *Configuration) ValidateConfiguration() []string {
	cv := validation.ConfigValidator{
		Horizon: c.Common.Timeline.Periods,
		Common: validation.ProjectConfig{
			Items:      timedItems(c.Common.CostItems, c.Common.UnitTypes),
			Facilities: facilityTimings(c.Common.Debt),
		},
	}
	for _, scenario := range c.Scenarios {
		cv.Scenarios = append(cv.Scenarios, validation.ScenarioConfig{
			Name:       scenario.Name,
			Active:     scenario.Active,
			Items:      timedItems(scenario.CostItems, scenario.UnitTypes),
			Facilities: facilityTimings(scenario.Debt),
		})
	}

	return cv.ValidateAll()
}

func timedItems(costs []CostItem, units []UnitType) []validation.ItemConfig {
	var items []validation.ItemConfig
	for _, item := range costs {
		items = append(items, validation.ItemConfig{
			Name:  item.ID,
			Start: item.StartPeriod,
			End:   item.StartPeriod + item.DurationPeriods,
		})
	}
	for _, unit := range units {
		items = append(items, validation.ItemConfig{
			Name:  unit.ID,
			Start: unit.StartPeriod,
			End:   unit.EndPeriod,
		})
	}
	return items
}

func facilityTimings(debt []Facility) []validation.FacilityConfig {
	var facilities []validation.FacilityConfig
	for _, f := range debt {
		facilities = append(facilities, validation.FacilityConfig{
			Name:            f.Name,
			AvailabilityEnd: f.AvailabilityEnd,
			Tenor:           f.TenorMonths,
		})
	}
	return facilities
}

// Package validation provides configuration validation utilities.
package validation

import (
	"fmt"
)

// ValidateMaturity checks if a facility matures inside the horizon. Facilities
// maturing later are repaid in the final period.
func ValidateMaturity(facilityName string, availabilityEnd, tenorMonths, horizon int) string {
	maturity := availabilityEnd + tenorMonths
	if maturity > horizon-1 {
		return fmt.Sprintf("Facility '%s' matures after the horizon (period %d > %d) - balance will be repaid in the final period",
			facilityName, maturity, horizon-1)
	}
	return ""
}

// ValidateTiming checks if a cost or revenue item is scheduled inside the
// horizon. end is exclusive.
func ValidateTiming(itemName string, start, end, horizon int) []string {
	var warnings []string

	if start >= horizon {
		warnings = append(warnings, fmt.Sprintf("Item '%s' starts at or after the horizon (period %d >= %d) - it contributes nothing",
			itemName, start, horizon))
		return warnings
	}

	if end > horizon {
		warnings = append(warnings, fmt.Sprintf("Item '%s' ends after the horizon (period %d > %d) - it will be truncated",
			itemName, end, horizon))
	}

	return warnings
}

// ConfigValidator collects the non-fatal warnings of a project configuration.
type ConfigValidator struct {
	Horizon   int
	Common    ProjectConfig
	Scenarios []ScenarioConfig
}

type ProjectConfig struct {
	Items      []ItemConfig
	Facilities []FacilityConfig
}

type ScenarioConfig struct {
	Name       string
	Active     bool
	Items      []ItemConfig
	Facilities []FacilityConfig
}

type ItemConfig struct {
	Name  string
	Start int
	End   int
}

type FacilityConfig struct {
	Name            string
	AvailabilityEnd int
	Tenor           int
}

// ValidateAll validates the entire configuration and returns warnings
func (cv *ConfigValidator) ValidateAll() []string {
	var warnings []string

	for _, item := range cv.Common.Items {
		warnings = append(warnings, ValidateTiming(item.Name, item.Start, item.End, cv.Horizon)...)
	}
	for _, facility := range cv.Common.Facilities {
		if warning := ValidateMaturity(facility.Name, facility.AvailabilityEnd, facility.Tenor, cv.Horizon); warning != "" {
			warnings = append(warnings, warning)
		}
	}

	for _, scenario := range cv.Scenarios {
		if !scenario.Active {
			continue
		}
		for _, item := range scenario.Items {
			warnings = append(warnings, ValidateTiming(fmt.Sprintf("Scenario '%s' item '%s'", scenario.Name, item.Name),
				item.Start, item.End, cv.Horizon)...)
		}
		for _, facility := range scenario.Facilities {
			warning := ValidateMaturity(fmt.Sprintf("Scenario '%s' facility '%s'", scenario.Name, facility.Name),
				facility.AvailabilityEnd, facility.Tenor, cv.Horizon)
			if warning != "" {
				warnings = append(warnings, warning)
			}
		}
	}

	return warnings
}

// Package testutil provides common utility functions for testing.
package testutil

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/iwvelando/project-feasibility/internal/config"
	"github.com/iwvelando/project-feasibility/internal/forecast"
	"github.com/iwvelando/project-feasibility/pkg/constants"
	"go.uber.org/zap"
)

// FindScenario finds a scenario by name in the results slice.
// Returns a pointer to the forecast if found, nil otherwise.
func FindScenario(results []forecast.Forecast, name string) *forecast.Forecast {
	for i := range results {
		if results[i].Name == name {
			return &results[i]
		}
	}
	return nil
}

// ExampleConfigPath returns the path of the example configuration kept at the
// repository root.
func ExampleConfigPath() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", constants.ExampleConfigFile)
}

// ExampleForecasts loads the example configuration and runs its active
// scenarios, failing the test on any error.
func ExampleForecasts(t testing.TB) []forecast.Forecast {
	t.Helper()

	conf, err := config.LoadConfiguration(ExampleConfigPath())
	if err != nil {
		t.Fatalf("failed to load example configuration: %v", err)
	}
	results, err := forecast.GetForecast(zap.NewNop(), *conf)
	if err != nil {
		t.Fatalf("failed to run example configuration: %v", err)
	}
	return results
}

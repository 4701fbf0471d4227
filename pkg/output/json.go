package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/iwvelando/project-feasibility/internal/forecast"
)

// JSONFormat outputs the full result snapshots as indented JSON.
func JSONFormat(results []forecast.Forecast) error {
	return WriteJSON(os.Stdout, results)
}

// WriteJSON writes the full result snapshots to w. Undefined metrics are
// encoded as null.
func WriteJSON(w io.Writer, results []forecast.Forecast) error {
	if results == nil {
		results = []forecast.Forecast{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	return nil
}

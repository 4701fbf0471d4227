// Package datetime provides month arithmetic over YYYY-MM strings.
package datetime

import (
	"time"

	"github.com/iwvelando/project-feasibility/pkg/constants"
)

const (
	// DateTimeLayout is the format expected in config files and is also the
	// period label format.
	DateTimeLayout = constants.DateTimeLayout
)

// OffsetDate returns the string-formatted date offset by the given number of
// months relative to the given date.
func OffsetDate(date, layout string, months int) (string, error) {
	t, err := time.Parse(layout, date)
	if err != nil {
		return date, err
	}
	return t.AddDate(0, months, 0).Format(layout), nil
}


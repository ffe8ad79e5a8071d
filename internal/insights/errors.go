package insights

import (
	"errors"
	"fmt"

	"github.com/aevon-lab/aevon-insights/internal/core/bucket"
	"github.com/aevon-lab/aevon-insights/internal/core/period"
)

var (
	// ErrEmptySelection is returned when no category is requested.
	ErrEmptySelection = errors.New("no insight category selected")
	// ErrInvalidCategory is returned for a category name outside errors, network, rage, resources.
	ErrInvalidCategory = errors.New("unknown insight category")
	// ErrInvalidWindow is returned when the time window or project is unusable.
	ErrInvalidWindow = errors.New("invalid insight window")
	// ErrDataSource wraps failures of the event store.
	ErrDataSource = errors.New("data source error")

	// ErrInvalidTimeStep is returned for unparseable or non-positive steps.
	ErrInvalidTimeStep = bucket.ErrInvalidTimeStep
	// ErrNoDataInPeriod is recorded for share ratios over an empty current period.
	ErrNoDataInPeriod = period.ErrNoDataInPeriod
)

// IsValidation reports whether err is a request validation error that never
// reached the data source.
func IsValidation(err error) bool {
	return errors.Is(err, ErrEmptySelection) ||
		errors.Is(err, ErrInvalidCategory) ||
		errors.Is(err, ErrInvalidWindow) ||
		errors.Is(err, ErrInvalidTimeStep)
}

func invalidf(sentinel error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

func dataSourceErr(err error) error {
	return fmt.Errorf("%w: %w", ErrDataSource, err)
}

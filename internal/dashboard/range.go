package dashboard

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/digkill/CapCalWeb/internal/backend"
)

const (
	dateLayout    = "2006-01-02"
	isoMillis     = "2006-01-02T15:04:05.000Z"
	includeCosts  = "true"
	monthInterval = 1
)

var ErrInvalidRange = errors.New("invalid date range")

// Range is a half-open UTC interval [Start, End).
type Range struct {
	Start time.Time
	End   time.Time
}

// CurrentMonth returns [start of month, start of next month) for now in UTC.
func CurrentMonth(now time.Time) Range {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Range{Start: start, End: start.AddDate(0, monthInterval, 0)}
}

// ParseRange reads optional YYYY-MM-DD bounds, end exclusive. With no start
// the current month is used; with a start but no end the range spans one
// month from the start.
func ParseRange(start, end string, now time.Time) (Range, error) {
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	if start == "" && end == "" {
		return CurrentMonth(now), nil
	}
	if start == "" {
		return Range{}, fmt.Errorf("%w: end given without start", ErrInvalidRange)
	}

	from, err := time.ParseInLocation(dateLayout, start, time.UTC)
	if err != nil {
		return Range{}, fmt.Errorf("%w: start %q", ErrInvalidRange, start)
	}
	to := from.AddDate(0, monthInterval, 0)
	if end != "" {
		to, err = time.ParseInLocation(dateLayout, end, time.UTC)
		if err != nil {
			return Range{}, fmt.Errorf("%w: end %q", ErrInvalidRange, end)
		}
	}
	if !to.After(from) {
		return Range{}, fmt.Errorf("%w: end must be after start", ErrInvalidRange)
	}
	return Range{Start: from, End: to}, nil
}

// LastDay is the last calendar day included in the range.
func (r Range) LastDay() time.Time {
	return r.End.AddDate(0, 0, -1)
}

func (r Range) Label() string {
	return r.Start.Format(dateLayout) + "_" + r.LastDay().Format(dateLayout)
}

// Request builds the usage-report payload. endTime is the exclusive bound and
// endDate the last included day.
func (r Range) Request() backend.UsageReportRequest {
	return backend.UsageReportRequest{
		StartTime:    r.Start.UTC().Format(isoMillis),
		EndTime:      r.End.UTC().Format(isoMillis),
		StartDate:    r.Start.UTC().Format(dateLayout),
		EndDate:      r.LastDay().UTC().Format(dateLayout),
		IncludeCosts: includeCosts,
	}
}

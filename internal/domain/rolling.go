package domain

import (
	"fmt"
	"time"
)

// DefaultWindow is the trailing window, in days, used when none is given.
const DefaultWindow = 7

// RollingOptions parameterizes GetRolling. The zero value means a 7-day sum.
type RollingOptions struct {
	Window  int
	Average bool
}

// RollingPoint is one date of a rolling-window result: the cumulative value,
// the day-over-day change, and the trailing window aggregate of changes.
type RollingPoint struct {
	DateKey  string    `json:"date_key"`
	Date     time.Time `json:"date"`
	Value    int64     `json:"value"`
	New      int64     `json:"new"`
	Windowed int64     `json:"windowed"`
}

// GetRolling computes new cases and their trailing window aggregate for
// variable in region over [start, end].
//
// The fetch range is first extended backward by up to Window dates (never
// before the first date), the indicator is computed over that range, and the
// result is trimmed back to [start, end]. The extra date only serves as the
// base of the first change, so a date's values do not depend on the
// requested range:
//
//	new(t)      = value(t) - value(previous present date), 0 for the first indexed date
//	windowed(t) = sum of new over present dates with ordinal in [t-Window+1, t]
//	average     = floor(windowed / Window)
func GetRolling(t *Table, region string, v Variable, start, end int, opts RollingOptions) ([]RollingPoint, error) {
	window := opts.Window
	if window == 0 {
		window = DefaultWindow
	}
	if window < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWindow, window)
	}
	if err := t.dates.checkRange(start, end); err != nil {
		return nil, err
	}

	fetchStart := max(start-window, 0)
	series, err := GetSeries(t, region, v, fetchStart, end)
	if err != nil {
		return nil, err
	}

	ordinals := make([]int, len(series))
	values := make([]int64, len(series))
	for i, p := range series {
		ordinals[i] = p.Ordinal
		values[i] = p.Value
	}
	news, windowed := rollingWindow(ordinals, values, window, opts.Average)

	out := make([]RollingPoint, 0, len(series))
	for i, p := range series {
		if p.Ordinal < start {
			continue
		}
		out = append(out, RollingPoint{
			DateKey:  p.DateKey,
			Date:     p.Date,
			Value:    p.Value,
			New:      news[i],
			Windowed: windowed[i],
		})
	}
	return out, nil
}

// RollingWindow computes new counts and trailing window aggregates over a
// gapless series starting at ordinal 0.
func RollingWindow(values []int64, window int, average bool) (news, windowed []int64, err error) {
	if window < 1 {
		return nil, nil, fmt.Errorf("%w: %d", ErrInvalidWindow, window)
	}
	ordinals := make([]int, len(values))
	for i := range ordinals {
		ordinals[i] = i
	}
	news, windowed = rollingWindow(ordinals, values, window, average)
	return news, windowed, nil
}

// rollingWindow is the single indicator implementation. ordinals must be
// strictly increasing; a gap in ordinals shortens the window rather than
// reaching further back.
func rollingWindow(ordinals []int, values []int64, window int, average bool) (news, windowed []int64) {
	news = make([]int64, len(values))
	windowed = make([]int64, len(values))

	var sum int64
	lo := 0
	for i := range values {
		if i > 0 {
			news[i] = values[i] - values[i-1]
		}
		sum += news[i]
		for ordinals[lo] < ordinals[i]-window+1 {
			sum -= news[lo]
			lo++
		}
		windowed[i] = sum
		if average {
			windowed[i] = floorDiv(sum, int64(window))
		}
	}
	return news, windowed
}

// floorDiv divides rounding toward negative infinity, unlike Go's / which
// truncates toward zero.
func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

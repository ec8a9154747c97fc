package domain

import (
	"fmt"
	"slices"
	"time"
)

// DateIndex is an immutable bidirectional mapping between display date keys
// and their ordinal position in the chronologically sorted set of observed
// dates.
type DateIndex struct {
	dates    []time.Time
	keys     []string
	ordinals map[string]int
}

// NewDateIndex sorts and deduplicates dates and assigns zero-based ordinals.
func NewDateIndex(dates []time.Time) *DateIndex {
	sorted := slices.Clone(dates)
	slices.SortFunc(sorted, func(a, b time.Time) int { return a.Compare(b) })
	sorted = slices.CompactFunc(sorted, func(a, b time.Time) bool { return a.Equal(b) })

	idx := &DateIndex{
		dates:    sorted,
		keys:     make([]string, len(sorted)),
		ordinals: make(map[string]int, len(sorted)),
	}
	for i, d := range sorted {
		key := DateKey(d)
		idx.keys[i] = key
		idx.ordinals[key] = i
	}
	return idx
}

// Len reports the number of distinct dates.
func (d *DateIndex) Len() int { return len(d.keys) }

// Resolve returns the ordinal of a display key, or ErrDateNotFound when the
// date was never observed.
func (d *DateIndex) Resolve(key string) (int, error) {
	i, ok := d.ordinals[key]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrDateNotFound, key)
	}
	return i, nil
}

// RangeToSlice resolves an inclusive [startKey, endKey] range to ordinals.
func (d *DateIndex) RangeToSlice(startKey, endKey string) (int, int, error) {
	start, err := d.Resolve(startKey)
	if err != nil {
		return 0, 0, err
	}
	end, err := d.Resolve(endKey)
	if err != nil {
		return 0, 0, err
	}
	if start > end {
		return 0, 0, fmt.Errorf("%w: %s is after %s", ErrInvalidRange, startKey, endKey)
	}
	return start, end, nil
}

// Key returns the display key at ordinal i.
func (d *DateIndex) Key(i int) (string, error) {
	if i < 0 || i >= len(d.keys) {
		return "", fmt.Errorf("%w: ordinal %d outside [0,%d)", ErrInvalidRange, i, len(d.keys))
	}
	return d.keys[i], nil
}

// Date returns the calendar date at ordinal i.
func (d *DateIndex) Date(i int) (time.Time, error) {
	if i < 0 || i >= len(d.dates) {
		return time.Time{}, fmt.Errorf("%w: ordinal %d outside [0,%d)", ErrInvalidRange, i, len(d.dates))
	}
	return d.dates[i], nil
}

// Keys returns a copy of all display keys in chronological order.
func (d *DateIndex) Keys() []string {
	return slices.Clone(d.keys)
}

// Last returns the ordinal of the most recent date, or -1 when empty.
func (d *DateIndex) Last() int {
	return len(d.keys) - 1
}

// checkRange validates an inclusive ordinal range against the index.
func (d *DateIndex) checkRange(start, end int) error {
	if start < 0 || end >= len(d.keys) || start > end {
		return fmt.Errorf("%w: [%d,%d] with %d dates", ErrInvalidRange, start, end, len(d.keys))
	}
	return nil
}

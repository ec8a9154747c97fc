package domain

import (
	"fmt"
	"slices"
	"time"
)

// WorldRegion is the pseudo-region that sums every row of a table.
const WorldRegion = "World"

// SeriesPoint is one dated value of a series.
type SeriesPoint struct {
	Ordinal int       `json:"-"`
	DateKey string    `json:"date_key"`
	Date    time.Time `json:"date"`
	Value   int64     `json:"value"`
}

// GetSeries returns variable for region on every date in the inclusive
// ordinal range [start, end], summing subregions. Dates on which the region
// has no rows are omitted.
func GetSeries(t *Table, region string, v Variable, start, end int) ([]SeriesPoint, error) {
	if _, err := ParseVariable(string(v)); err != nil {
		return nil, err
	}
	totals, err := regionTotals(t, region, start, end)
	if err != nil {
		return nil, err
	}
	out := make([]SeriesPoint, len(totals))
	for i, tot := range totals {
		out[i] = SeriesPoint{
			Ordinal: tot.ordinal,
			DateKey: tot.obs.DateKey,
			Date:    tot.obs.Date,
			Value:   tot.obs.Value(v),
		}
	}
	return out, nil
}

// DeathRatio is the share of deaths over confirmed and over closed cases on
// one date. A ratio whose denominator is zero is reported as 0 with its
// Defined flag unset.
type DeathRatio struct {
	DateKey          string    `json:"date_key"`
	Date             time.Time `json:"date"`
	OverConfirmed    float64   `json:"over_confirmed"`
	OverClosed       float64   `json:"over_closed"`
	ConfirmedDefined bool      `json:"over_confirmed_defined"`
	ClosedDefined    bool      `json:"over_closed_defined"`
}

// DeathRatios computes deaths/confirmed and deaths/closed for region over
// [start, end].
func DeathRatios(t *Table, region string, start, end int) ([]DeathRatio, error) {
	totals, err := regionTotals(t, region, start, end)
	if err != nil {
		return nil, err
	}
	out := make([]DeathRatio, len(totals))
	for i, tot := range totals {
		r := DeathRatio{DateKey: tot.obs.DateKey, Date: tot.obs.Date}
		if tot.obs.Confirmed != 0 {
			r.OverConfirmed = float64(tot.obs.Deaths) / float64(tot.obs.Confirmed)
			r.ConfirmedDefined = true
		}
		if tot.obs.Closed != 0 {
			r.OverClosed = float64(tot.obs.Deaths) / float64(tot.obs.Closed)
			r.ClosedDefined = true
		}
		out[i] = r
	}
	return out, nil
}

// RegionValue pairs a region with one metric value.
type RegionValue struct {
	Region string `json:"region"`
	Value  int64  `json:"value"`
}

// LatestValues returns variable for every region reporting on the most recent
// date of the table, in table order. Regions missing on that date are left
// out. The date key of the snapshot is returned alongside.
func LatestValues(t *Table, v Variable) (string, []RegionValue, error) {
	if _, err := ParseVariable(string(v)); err != nil {
		return "", nil, err
	}
	last := t.dates.Last()
	if last < 0 {
		return "", nil, nil
	}
	key := t.dates.keys[last]

	totals := make(map[string]int64)
	var order []string
	for i, row := range t.rows {
		if t.ordinals[i] != last {
			continue
		}
		if _, seen := totals[row.Region]; !seen {
			order = append(order, row.Region)
		}
		totals[row.Region] += row.Value(v)
	}

	out := make([]RegionValue, len(order))
	for i, region := range order {
		out[i] = RegionValue{Region: region, Value: totals[region]}
	}
	return key, out, nil
}

// TopN returns the n regions with the highest value of by, ordered by their
// maximum. Rows are stably sorted by value, descending, and regions are taken
// in first-seen order, so ties keep table order on every run.
func TopN(t *Table, n int, by Variable) ([]string, error) {
	if _, err := ParseVariable(string(by)); err != nil {
		return nil, err
	}
	if n <= 0 {
		return []string{}, nil
	}

	order := make([]int, len(t.rows))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		va, vb := t.rows[a].Value(by), t.rows[b].Value(by)
		switch {
		case va > vb:
			return -1
		case va < vb:
			return 1
		default:
			return 0
		}
	})

	seen := make(map[string]bool)
	out := make([]string, 0, n)
	for _, i := range order {
		region := t.rows[i].Region
		if seen[region] {
			continue
		}
		seen[region] = true
		out = append(out, region)
		if len(out) == n {
			break
		}
	}
	return out, nil
}

type dayTotal struct {
	ordinal int
	obs     Observation
}

// regionTotals sums every metric of region per date over [start, end], in
// ordinal order, skipping dates without rows.
func regionTotals(t *Table, region string, start, end int) ([]dayTotal, error) {
	if err := t.dates.checkRange(start, end); err != nil {
		return nil, err
	}

	var idx []int
	if region == WorldRegion {
		idx = make([]int, len(t.rows))
		for i := range idx {
			idx[i] = i
		}
	} else {
		var ok bool
		idx, ok = t.byRegion[region]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrRegionNotFound, region)
		}
	}

	span := end - start + 1
	sums := make([]Observation, span)
	present := make([]bool, span)
	for _, i := range idx {
		ord := t.ordinals[i]
		if ord < start || ord > end {
			continue
		}
		slot := ord - start
		if !present[slot] {
			present[slot] = true
			sums[slot] = Observation{
				Region:  region,
				Date:    t.dates.dates[ord],
				DateKey: t.dates.keys[ord],
			}
		}
		sums[slot].add(t.rows[i])
	}

	out := make([]dayTotal, 0, span)
	for slot, ok := range present {
		if ok {
			out = append(out, dayTotal{ordinal: start + slot, obs: sums[slot]})
		}
	}
	return out, nil
}

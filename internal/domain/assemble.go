package domain

import (
	"cmp"
	"slices"
	"time"

	"github.com/samber/lo"
)

// IngestionResult bundles everything one ingestion run produces. It is built
// once and never mutated, so readers holding a pointer always see a
// consistent set of tables.
type IngestionResult struct {
	Observations *Table
	Countries    *Table
	Dates        *DateIndex

	Skipped     []FileError
	RowsSkipped int
	BuiltAt     time.Time
}

// Build runs the pure part of the pipeline: canonicalize, assemble, derive,
// aggregate. Snapshots may arrive in any order. Only dates with at least one
// usable row are indexed, so the last indexed date always has data.
func Build(snapshots []Snapshot, canon *Canonicalizer) (*IngestionResult, error) {
	reported := lo.FilterMap(snapshots, func(s Snapshot, _ int) (time.Time, bool) {
		return s.Date, len(s.Rows) > 0
	})
	if len(reported) == 0 {
		return nil, ErrNoSnapshots
	}

	dates := NewDateIndex(reported)
	observations := Assemble(snapshots, canon, dates)
	rowsSkipped := lo.SumBy(snapshots, func(s Snapshot) int { return len(s.RowErrors) })

	return &IngestionResult{
		Observations: observations,
		Countries:    AggregateCountries(observations),
		Dates:        dates,
		RowsSkipped:  rowsSkipped,
		BuiltAt:      clock.Now().UTC(),
	}, nil
}

// Derive fills in closed and active from the reported counts. Negative active
// values are kept as reported.
func Derive(o Observation) Observation {
	o.Closed = o.Recovered + o.Deaths
	o.Active = o.Confirmed - o.Closed
	return o
}

type rowKey struct {
	region    string
	subregion string
	dateKey   string
}

// Assemble concatenates all snapshot rows into one province-level table.
// Region names are canonicalized first; rows that then share (region,
// subregion, date), including county rows of the same province, are summed.
// No other merging happens and no dates are invented.
func Assemble(snapshots []Snapshot, canon *Canonicalizer, dates *DateIndex) *Table {
	merged := make(map[rowKey]int)
	var rows []Observation

	for _, snap := range snapshots {
		for _, raw := range snap.Rows {
			obs := Derive(Observation{
				Region:    canon.Canonicalize(raw.CountryRegion),
				Subregion: raw.ProvinceState,
				Date:      snap.Date,
				DateKey:   snap.DateKey,
				Confirmed: raw.Confirmed,
				Recovered: raw.Recovered,
				Deaths:    raw.Deaths,
			})
			key := rowKey{region: obs.Region, subregion: obs.Subregion, dateKey: obs.DateKey}
			if i, ok := merged[key]; ok {
				rows[i].add(obs)
				continue
			}
			merged[key] = len(rows)
			rows = append(rows, obs)
		}
	}

	slices.SortStableFunc(rows, compareRows)
	return newTable(KindProvince, rows, dates)
}

// AggregateCountries sums province rows per (region, date). World-level
// charts and maps read only this table.
func AggregateCountries(provinces *Table) *Table {
	type countryKey struct {
		region  string
		dateKey string
	}
	merged := make(map[countryKey]int)
	var rows []Observation

	for _, row := range provinces.rows {
		key := countryKey{region: row.Region, dateKey: row.DateKey}
		if i, ok := merged[key]; ok {
			rows[i].add(row)
			continue
		}
		row.Subregion = ""
		merged[key] = len(rows)
		rows = append(rows, row)
	}

	slices.SortStableFunc(rows, compareRows)
	return newTable(KindCountry, rows, provinces.dates)
}

func compareRows(a, b Observation) int {
	return cmp.Or(
		cmp.Compare(a.Region, b.Region),
		cmp.Compare(a.Subregion, b.Subregion),
		a.Date.Compare(b.Date),
	)
}

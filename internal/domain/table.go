package domain

import (
	"slices"

	"github.com/samber/lo"
)

// TableKind distinguishes province-level rows from country rollups.
type TableKind int

const (
	// KindProvince rows are keyed by (region, subregion, date).
	KindProvince TableKind = iota
	// KindCountry rows are keyed by (region, date) with subregions summed.
	KindCountry
)

func (k TableKind) String() string {
	if k == KindCountry {
		return "country"
	}
	return "province"
}

// Table is an ordered, read-only set of observations sharing one DateIndex.
// Rows are sorted by (region, subregion, date).
type Table struct {
	kind     TableKind
	rows     []Observation
	ordinals []int
	dates    *DateIndex
	byRegion map[string][]int
	regions  []string
}

// newTable indexes rows that are already sorted and whose dates are all
// present in dates.
func newTable(kind TableKind, rows []Observation, dates *DateIndex) *Table {
	t := &Table{
		kind:     kind,
		rows:     rows,
		ordinals: make([]int, len(rows)),
		dates:    dates,
		byRegion: make(map[string][]int),
	}
	for i, row := range rows {
		// Every row date came from the same snapshots the index was built from.
		t.ordinals[i] = dates.ordinals[row.DateKey]
		t.byRegion[row.Region] = append(t.byRegion[row.Region], i)
	}
	t.regions = lo.Uniq(lo.Map(rows, func(o Observation, _ int) string { return o.Region }))
	return t
}

// Kind reports whether the table holds province rows or country rollups.
func (t *Table) Kind() TableKind { return t.kind }

// Len reports the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Rows returns a copy of all rows in table order.
func (t *Table) Rows() []Observation { return slices.Clone(t.rows) }

// Dates returns the index shared by every row of the table.
func (t *Table) Dates() *DateIndex { return t.dates }

// Regions returns the distinct regions in table order.
func (t *Table) Regions() []string { return slices.Clone(t.regions) }

// HasRegion reports whether any row belongs to region.
func (t *Table) HasRegion(region string) bool {
	_, ok := t.byRegion[region]
	return ok
}

// RegionRows returns a copy of the rows of one region in table order.
func (t *Table) RegionRows(region string) []Observation {
	idx := t.byRegion[region]
	out := make([]Observation, len(idx))
	for i, j := range idx {
		out[i] = t.rows[j]
	}
	return out
}

package domain

import (
	"fmt"
	"time"
)

// RawCSVRecord is one row of a daily report after header normalization.
// Every field is kept as text; [ParseRawRecord] does the numeric parsing so a
// single bad cell costs one row, not the whole file.
type RawCSVRecord struct {
	ProvinceState string `csv:"province_state"`
	CountryRegion string `csv:"country_region"`
	LastUpdate    string `csv:"last_update"`
	Latitude      string `csv:"latitude"`
	Longitude     string `csv:"longitude"`
	Confirmed     string `csv:"confirmed"`
	Recovered     string `csv:"recovered"`
	Deaths        string `csv:"deaths"`
}

// RawRow is a typed report row, before canonicalization.
type RawRow struct {
	ProvinceState string
	CountryRegion string
	LastUpdate    string
	Latitude      *float64
	Longitude     *float64
	Confirmed     int64
	Recovered     int64
	Deaths        int64
}

// Snapshot is one daily report file folded into typed rows.
type Snapshot struct {
	Path      string
	Date      time.Time
	DateKey   string
	Rows      []RawRow
	RowErrors []error
}

// Observation is the canonical unit of every table: one region (and optional
// subregion) on one date, with derived metrics filled in.
type Observation struct {
	Region    string    `json:"region"`
	Subregion string    `json:"subregion,omitempty"`
	Date      time.Time `json:"date"`
	DateKey   string    `json:"date_key"`
	Confirmed int64     `json:"confirmed"`
	Recovered int64     `json:"recovered"`
	Deaths    int64     `json:"deaths"`
	Closed    int64     `json:"closed"`
	Active    int64     `json:"active"`
}

// Variable names one of the metrics carried by an Observation.
type Variable string

const (
	Confirmed Variable = "confirmed"
	Recovered Variable = "recovered"
	Deaths    Variable = "deaths"
	Closed    Variable = "closed"
	Active    Variable = "active"
)

// Variables lists every queryable metric in display order.
var Variables = []Variable{Confirmed, Recovered, Deaths, Closed, Active}

// ParseVariable validates a metric name.
func ParseVariable(s string) (Variable, error) {
	switch v := Variable(s); v {
	case Confirmed, Recovered, Deaths, Closed, Active:
		return v, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownVariable, s)
	}
}

// Value returns the metric v of o. Unknown variables yield zero; callers
// validate with ParseVariable first.
func (o Observation) Value(v Variable) int64 {
	switch v {
	case Confirmed:
		return o.Confirmed
	case Recovered:
		return o.Recovered
	case Deaths:
		return o.Deaths
	case Closed:
		return o.Closed
	case Active:
		return o.Active
	default:
		return 0
	}
}

// add accumulates the counts of other into o. Derived metrics are summed too,
// which keeps the derivation invariant since both sides already satisfy it.
func (o *Observation) add(other Observation) {
	o.Confirmed += other.Confirmed
	o.Recovered += other.Recovered
	o.Deaths += other.Deaths
	o.Closed += other.Closed
	o.Active += other.Active
}

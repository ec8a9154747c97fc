package domain

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	// SnapshotDateLayout is the date encoded in report file names (MM-DD-YYYY).
	SnapshotDateLayout = "01-02-2006"
	// DateKeyLayout is the public display key format (dd/mm/yyyy).
	DateKeyLayout = "02/01/2006"
)

// headerAliases folds every column spelling seen across report generations
// onto the fixed vocabulary. Keys are already lowercased and trimmed.
var headerAliases = map[string]string{
	"province/state": "province_state",
	"province_state": "province_state",
	"country/region": "country_region",
	"country_region": "country_region",
	"country":        "country_region",
	"last update":    "last_update",
	"last_update":    "last_update",
	"lat":            "latitude",
	"latitude":       "latitude",
	"long_":          "longitude",
	"long":           "longitude",
	"longitude":      "longitude",
}

// ParseSnapshotDate extracts the report date from a file path such as
// "daily/03-15-2020.csv". It returns the UTC date and its dd/mm/yyyy key.
func ParseSnapshotDate(path string) (time.Time, string, error) {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	date, err := time.Parse(SnapshotDateLayout, name)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("%w: %s", ErrInvalidSnapshotName, base)
	}
	return date, DateKey(date), nil
}

// DateKey formats a date as its display key.
func DateKey(t time.Time) string {
	return t.Format(DateKeyLayout)
}

// ParseDateKey is the inverse of DateKey.
func ParseDateKey(key string) (time.Time, error) {
	t, err := time.Parse(DateKeyLayout, key)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrDateNotFound, key)
	}
	return t, nil
}

// NormalizeHeader maps a raw CSV header onto the fixed lowercase vocabulary.
// A leading UTF-8 byte order mark on the first column is dropped.
func NormalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		h = strings.ToLower(strings.TrimSpace(h))
		if canonical, ok := headerAliases[h]; ok {
			h = canonical
		}
		out[i] = h
	}
	return out
}

// ParseSnapshot types the decoded records of one report file. Malformed rows
// are collected in RowErrors and left out; only an unparseable file name fails
// the whole snapshot.
func ParseSnapshot(path string, records []RawCSVRecord) (Snapshot, error) {
	date, key, err := ParseSnapshotDate(path)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		Path:    path,
		Date:    date,
		DateKey: key,
		Rows:    make([]RawRow, 0, len(records)),
	}
	for i, rec := range records {
		row, err := ParseRawRecord(rec)
		if err != nil {
			// Data starts on line 2, after the header.
			snap.RowErrors = append(snap.RowErrors, fmt.Errorf("line %d: %w", i+2, err))
			continue
		}
		snap.Rows = append(snap.Rows, row)
	}
	return snap, nil
}

// ParseRawRecord converts one text record into a typed row.
func ParseRawRecord(rec RawCSVRecord) (RawRow, error) {
	country := strings.TrimSpace(rec.CountryRegion)
	if country == "" {
		return RawRow{}, fmt.Errorf("%w: empty country_region", ErrMalformedRow)
	}

	confirmed, err := parseCount(rec.Confirmed)
	if err != nil {
		return RawRow{}, fmt.Errorf("%w: confirmed: %v", ErrMalformedRow, err)
	}
	recovered, err := parseCount(rec.Recovered)
	if err != nil {
		return RawRow{}, fmt.Errorf("%w: recovered: %v", ErrMalformedRow, err)
	}
	deaths, err := parseCount(rec.Deaths)
	if err != nil {
		return RawRow{}, fmt.Errorf("%w: deaths: %v", ErrMalformedRow, err)
	}

	return RawRow{
		ProvinceState: strings.TrimSpace(rec.ProvinceState),
		CountryRegion: rec.CountryRegion,
		LastUpdate:    strings.TrimSpace(rec.LastUpdate),
		Latitude:      parseCoordinate(rec.Latitude),
		Longitude:     parseCoordinate(rec.Longitude),
		Confirmed:     confirmed,
		Recovered:     recovered,
		Deaths:        deaths,
	}, nil
}

// parseCount parses a cumulative count. Empty means zero; integral decimals
// such as "12.0" are accepted because some report generations wrote floats.
func parseCount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("not a count: %q", s)
	}
	return int64(f), nil
}

// parseCoordinate returns nil for empty or unparseable coordinates; they are
// optional in every report generation.
func parseCoordinate(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

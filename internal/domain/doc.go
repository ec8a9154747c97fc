// Package domain models COVID-19 daily case reports and the time series
// derived from them.
//
// # Data Source
//
// Reports follow the layout of the JHU CSSE "daily reports" collection: one
// CSV file per calendar day, named after the day it describes:
//
//	03-15-2020.csv  →  15 March 2020 (MM-DD-YYYY)
//
// Files whose base name does not parse as MM-DD-YYYY are rejected with
// [ErrInvalidSnapshotName]; they are never filed under a guessed date.
//
// # Schema Drift
//
// The column set changed several times during 2020. Early files use
// "Province/State", "Country/Region", "Last Update", "Latitude"; later files use
// "Province_State", "Country_Region", "Last_Update", "Lat", "Long_" and add
// county-level "Admin2" rows. [NormalizeHeader] folds every known variant onto
// a fixed lowercase vocabulary:
//
//	province_state, country_region, last_update, latitude, longitude,
//	confirmed, recovered, deaths
//
// Unknown columns are lowercased and otherwise ignored.
//
// # Counts
//
// confirmed, recovered and deaths are cumulative. Empty cells mean zero. Cells
// that are neither integers nor integral decimals ("12.0") make the row
// malformed; malformed rows are skipped and reported, the rest of the file is
// kept.
//
// Derived metrics hold for every row of every table:
//
//	closed = recovered + deaths
//	active = confirmed - closed
//
// active goes negative when a report revises confirmed downwards. That is an
// upstream correction and is propagated unchanged.
//
// # Region Names
//
// Country spellings drift across reports ("Mainland China" vs "China", "US" vs
// "United States of America"). [Canonicalizer] maps every known alias onto one
// canonical name before any grouping happens. Alias targets are never aliases
// themselves, so canonicalization is idempotent.
//
// # Dates
//
// Calendar dates are exposed to consumers as display keys in dd/mm/yyyy form.
// [DateIndex] assigns each observed date a zero-based ordinal in chronological
// order; every range query is expressed in ordinals.
//
// # Missing Regions
//
// A region absent from a report is absent for that date. Series queries omit
// such dates rather than reporting zero, because zero cannot be told apart
// from a real "no change" day. Rolling windows are measured in calendar
// ordinals, so a gap shortens the window instead of pulling in older days.
package domain

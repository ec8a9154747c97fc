package sqlstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/covid-report-etl/internal/domain"
	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// insertChunk bounds rows per INSERT so every driver stays under its
// placeholder limit.
const insertChunk = 500

func init() {
	// modernc registers as "sqlite"; bind it with ? like sqlite3.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS observations (
		region      VARCHAR(255) NOT NULL,
		subregion   VARCHAR(255) NOT NULL,
		report_date VARCHAR(10)  NOT NULL,
		date_key    VARCHAR(10)  NOT NULL,
		confirmed   BIGINT       NOT NULL,
		recovered   BIGINT       NOT NULL,
		deaths      BIGINT       NOT NULL,
		closed      BIGINT       NOT NULL,
		active      BIGINT       NOT NULL,
		PRIMARY KEY (region, subregion, report_date)
	)`,
	`CREATE TABLE IF NOT EXISTS countries (
		region      VARCHAR(255) NOT NULL,
		report_date VARCHAR(10)  NOT NULL,
		date_key    VARCHAR(10)  NOT NULL,
		confirmed   BIGINT       NOT NULL,
		recovered   BIGINT       NOT NULL,
		deaths      BIGINT       NOT NULL,
		closed      BIGINT       NOT NULL,
		active      BIGINT       NOT NULL,
		PRIMARY KEY (region, report_date)
	)`,
	`CREATE TABLE IF NOT EXISTS ingestion_runs (
		built_at         VARCHAR(40) NOT NULL,
		dates            INTEGER     NOT NULL,
		observation_rows INTEGER     NOT NULL,
		country_rows     INTEGER     NOT NULL,
		files_skipped    INTEGER     NOT NULL,
		rows_skipped     INTEGER     NOT NULL
	)`,
}

// ObservationRow is the stored form of a province-level observation.
// report_date is ISO formatted so it sorts chronologically as text.
type ObservationRow struct {
	Region     string `db:"region"`
	Subregion  string `db:"subregion"`
	ReportDate string `db:"report_date"`
	DateKey    string `db:"date_key"`
	Confirmed  int64  `db:"confirmed"`
	Recovered  int64  `db:"recovered"`
	Deaths     int64  `db:"deaths"`
	Closed     int64  `db:"closed"`
	Active     int64  `db:"active"`
}

// CountryRow is the stored form of a country rollup.
type CountryRow struct {
	Region     string `db:"region"`
	ReportDate string `db:"report_date"`
	DateKey    string `db:"date_key"`
	Confirmed  int64  `db:"confirmed"`
	Recovered  int64  `db:"recovered"`
	Deaths     int64  `db:"deaths"`
	Closed     int64  `db:"closed"`
	Active     int64  `db:"active"`
}

// RunRow records one published ingestion.
type RunRow struct {
	BuiltAt         string `db:"built_at"`
	Dates           int    `db:"dates"`
	ObservationRows int    `db:"observation_rows"`
	CountryRows     int    `db:"country_rows"`
	FilesSkipped    int    `db:"files_skipped"`
	RowsSkipped     int    `db:"rows_skipped"`
}

// Store mirrors each published result into SQL tables.
// It implements pipeline.ResultSink.
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// Open connects with one of the registered drivers (sqlite, postgres, mysql)
// and verifies the connection.
func Open(ctx context.Context, driver, dsn string, logger *slog.Logger) (*Store, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}
	if driver == "sqlite" {
		// A second connection to ":memory:" would see an empty database.
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s store: %w", driver, err)
	}

	logger.Info("sql store connected", "driver", driver)
	return New(db, logger), nil
}

// New wraps an open connection.
func New(db *sqlx.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

func (s *Store) Name() string { return "sql" }

// Migrate creates the tables when missing.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Publish replaces the observation and country tables with the contents of
// res and records the run, all in one transaction.
func (s *Store) Publish(ctx context.Context, res *domain.IngestionResult) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, table := range []string{"observations", "countries"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	observations := toObservationRows(res.Observations.Rows())
	if err := insertChunks(ctx, tx, `INSERT INTO observations
		(region, subregion, report_date, date_key, confirmed, recovered, deaths, closed, active)
		VALUES (:region, :subregion, :report_date, :date_key, :confirmed, :recovered, :deaths, :closed, :active)`,
		observations); err != nil {
		return fmt.Errorf("insert observations: %w", err)
	}

	countries := toCountryRows(res.Countries.Rows())
	if err := insertChunks(ctx, tx, `INSERT INTO countries
		(region, report_date, date_key, confirmed, recovered, deaths, closed, active)
		VALUES (:region, :report_date, :date_key, :confirmed, :recovered, :deaths, :closed, :active)`,
		countries); err != nil {
		return fmt.Errorf("insert countries: %w", err)
	}

	run := RunRow{
		BuiltAt:         res.BuiltAt.UTC().Format(runTimeLayout),
		Dates:           res.Dates.Len(),
		ObservationRows: len(observations),
		CountryRows:     len(countries),
		FilesSkipped:    len(res.Skipped),
		RowsSkipped:     res.RowsSkipped,
	}
	if _, err := tx.NamedExecContext(ctx, `INSERT INTO ingestion_runs
		(built_at, dates, observation_rows, country_rows, files_skipped, rows_skipped)
		VALUES (:built_at, :dates, :observation_rows, :country_rows, :files_skipped, :rows_skipped)`, run); err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Info("sql store updated", "observations", len(observations), "countries", len(countries))
	return nil
}

// Countries returns every stored country row ordered by region and date.
func (s *Store) Countries(ctx context.Context) ([]CountryRow, error) {
	var rows []CountryRow
	err := s.db.SelectContext(ctx, &rows, `SELECT region, report_date, date_key, confirmed, recovered, deaths, closed, active
		FROM countries ORDER BY region, report_date`)
	return rows, err
}

// Observations returns the stored rows of one region ordered by subregion and date.
func (s *Store) Observations(ctx context.Context, region string) ([]ObservationRow, error) {
	var rows []ObservationRow
	query := s.db.Rebind(`SELECT region, subregion, report_date, date_key, confirmed, recovered, deaths, closed, active
		FROM observations WHERE region = ? ORDER BY subregion, report_date`)
	err := s.db.SelectContext(ctx, &rows, query, region)
	return rows, err
}

// Runs returns recorded ingestions, newest first.
func (s *Store) Runs(ctx context.Context) ([]RunRow, error) {
	var rows []RunRow
	err := s.db.SelectContext(ctx, &rows, `SELECT built_at, dates, observation_rows, country_rows, files_skipped, rows_skipped
		FROM ingestion_runs ORDER BY built_at DESC`)
	return rows, err
}

func (s *Store) Close() error {
	return s.db.Close()
}

func insertChunks[T any](ctx context.Context, tx *sqlx.Tx, query string, rows []T) error {
	for start := 0; start < len(rows); start += insertChunk {
		end := min(start+insertChunk, len(rows))
		if _, err := tx.NamedExecContext(ctx, query, rows[start:end]); err != nil {
			return err
		}
	}
	return nil
}

const (
	isoDate = "2006-01-02"
	// runTimeLayout is fixed width so built_at sorts chronologically as text.
	runTimeLayout = "2006-01-02T15:04:05.000000000Z"
)

func toObservationRows(obs []domain.Observation) []ObservationRow {
	out := make([]ObservationRow, len(obs))
	for i, o := range obs {
		out[i] = ObservationRow{
			Region:     o.Region,
			Subregion:  o.Subregion,
			ReportDate: o.Date.Format(isoDate),
			DateKey:    o.DateKey,
			Confirmed:  o.Confirmed,
			Recovered:  o.Recovered,
			Deaths:     o.Deaths,
			Closed:     o.Closed,
			Active:     o.Active,
		}
	}
	return out
}

func toCountryRows(obs []domain.Observation) []CountryRow {
	out := make([]CountryRow, len(obs))
	for i, o := range obs {
		out[i] = CountryRow{
			Region:     o.Region,
			ReportDate: o.Date.Format(isoDate),
			DateKey:    o.DateKey,
			Confirmed:  o.Confirmed,
			Recovered:  o.Recovered,
			Deaths:     o.Deaths,
			Closed:     o.Closed,
			Active:     o.Active,
		}
	}
	return out
}

package sqlstore

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/covid-report-etl/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), "sqlite", ":memory:", discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func buildResult(t *testing.T, at time.Time, records ...domain.RawCSVRecord) *domain.IngestionResult {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(at))
	t.Cleanup(func() { domain.SetClock(nil) })

	first, err := domain.ParseSnapshot("03-14-2020.csv", []domain.RawCSVRecord{
		{CountryRegion: "US", ProvinceState: "Washington", Confirmed: "60", Recovered: "1", Deaths: "1"},
	})
	require.NoError(t, err)
	second, err := domain.ParseSnapshot("03-15-2020.csv", records)
	require.NoError(t, err)

	res, err := domain.Build([]domain.Snapshot{first, second}, domain.DefaultCanonicalizer())
	require.NoError(t, err)
	return res
}

func TestStore_MigrateIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Migrate(context.Background()))
}

func TestStore_Publish(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	assert.Equal(t, "sql", s.Name())

	builtAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	res := buildResult(t, builtAt,
		domain.RawCSVRecord{CountryRegion: "US", ProvinceState: "Washington", Confirmed: "70", Recovered: "5", Deaths: "1"},
		domain.RawCSVRecord{CountryRegion: "US", ProvinceState: "New York", Confirmed: "30", Recovered: "5", Deaths: "1"},
		domain.RawCSVRecord{CountryRegion: "Mainland China", Confirmed: "500", Recovered: "400", Deaths: "10"},
	)
	res.Skipped = []domain.FileError{{Path: "bad.csv", Err: domain.ErrInvalidSnapshotName}}

	require.NoError(t, s.Publish(ctx, res))

	countries, err := s.Countries(ctx)
	require.NoError(t, err)
	want := []CountryRow{
		{Region: "China", ReportDate: "2020-03-15", DateKey: "15/03/2020", Confirmed: 500, Recovered: 400, Deaths: 10, Closed: 410, Active: 90},
		{Region: "United States of America", ReportDate: "2020-03-14", DateKey: "14/03/2020", Confirmed: 60, Recovered: 1, Deaths: 1, Closed: 2, Active: 58},
		{Region: "United States of America", ReportDate: "2020-03-15", DateKey: "15/03/2020", Confirmed: 100, Recovered: 10, Deaths: 2, Closed: 12, Active: 88},
	}
	if diff := cmp.Diff(want, countries); diff != "" {
		t.Errorf("country rows mismatch (-want +got):\n%s", diff)
	}

	us, err := s.Observations(ctx, "United States of America")
	require.NoError(t, err)
	require.Len(t, us, 3)
	assert.Equal(t, "New York", us[0].Subregion)
	assert.Equal(t, "Washington", us[1].Subregion)
	assert.Equal(t, "2020-03-14", us[1].ReportDate)

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, RunRow{
		BuiltAt:         "2024-06-01T12:00:00.000000000Z",
		Dates:           2,
		ObservationRows: 4,
		CountryRows:     3,
		FilesSkipped:    1,
	}, runs[0])
}

func TestStore_PublishReplacesPreviousResult(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := buildResult(t, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		domain.RawCSVRecord{CountryRegion: "Italy", Confirmed: "10"},
	)
	require.NoError(t, s.Publish(ctx, first))

	second := buildResult(t, time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC),
		domain.RawCSVRecord{CountryRegion: "Spain", Confirmed: "20"},
	)
	require.NoError(t, s.Publish(ctx, second))

	countries, err := s.Countries(ctx)
	require.NoError(t, err)
	regions := make([]string, len(countries))
	for i, c := range countries {
		regions[i] = c.Region
	}
	assert.Equal(t, []string{"Spain", "United States of America"}, regions)

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "2024-06-01T18:00:00.000000000Z", runs[0].BuiltAt)
}

func TestStore_PublishManyRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	records := make([]domain.RawCSVRecord, 0, 1200)
	for i := range 1200 {
		records = append(records, domain.RawCSVRecord{
			CountryRegion: "US",
			ProvinceState: "County " + time.Duration(i).String(),
			Confirmed:     "1",
		})
	}
	res := buildResult(t, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), records...)
	require.NoError(t, s.Publish(ctx, res))

	rows, err := s.Observations(ctx, "United States of America")
	require.NoError(t, err)
	assert.Len(t, rows, 1201)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "dsn", discardLogger())
	require.Error(t, err)
}

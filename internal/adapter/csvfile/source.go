package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/couchcryptid/covid-report-etl/internal/domain"
	"github.com/jszwec/csvutil"
)

var (
	// ErrEmptyFile marks a report file without a header line.
	ErrEmptyFile = errors.New("report file is empty")
	// ErrMissingColumn marks a report whose header lacks a required column.
	ErrMissingColumn = errors.New("required column missing")
)

// requiredColumns must be present after header normalization.
var requiredColumns = []string{"country_region", "confirmed"}

// Source reads daily report snapshots from a directory of MM-DD-YYYY.csv files.
// It implements pipeline.SnapshotSource.
type Source struct {
	dir    string
	logger *slog.Logger
}

// NewSource creates a Source over dir.
func NewSource(dir string, logger *slog.Logger) *Source {
	return &Source{dir: dir, logger: logger}
}

// Dir returns the directory the source reads.
func (s *Source) Dir() string { return s.dir }

// LoadSnapshots parses every *.csv file in the directory. Files that cannot be
// used are returned as FileErrors rather than failing the run; only an
// unreadable directory is fatal. Snapshots come back in chronological order.
func (s *Source) LoadSnapshots(ctx context.Context) ([]domain.Snapshot, []domain.FileError, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, nil, fmt.Errorf("read snapshot dir: %w", err)
	}

	var (
		snapshots []domain.Snapshot
		skipped   []domain.FileError
	)
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			continue
		}

		path := filepath.Join(s.dir, entry.Name())
		snap, err := ReadSnapshot(path)
		if err != nil {
			s.logger.Warn("skipping report file", "file", path, "error", err)
			skipped = append(skipped, domain.FileError{Path: path, Err: err})
			continue
		}
		for _, rowErr := range snap.RowErrors {
			s.logger.Debug("skipping report row", "file", path, "error", rowErr)
		}
		s.logger.Debug("report file loaded", "file", path, "rows", len(snap.Rows), "rows_skipped", len(snap.RowErrors))
		snapshots = append(snapshots, snap)
	}

	slices.SortStableFunc(snapshots, func(a, b domain.Snapshot) int { return a.Date.Compare(b.Date) })
	return snapshots, skipped, nil
}

// ReadSnapshot opens and parses one report file.
func ReadSnapshot(path string) (domain.Snapshot, error) {
	// Validate the name first so stray files are never opened.
	if _, _, err := domain.ParseSnapshotDate(path); err != nil {
		return domain.Snapshot{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("open report: %w", err)
	}
	defer f.Close()

	records, err := DecodeRecords(f)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return domain.ParseSnapshot(path, records)
}

// DecodeRecords decodes a report of any schema generation. The header is
// normalized before csvutil maps columns onto RawCSVRecord, so columns that a
// generation lacks are left empty and extra columns are ignored.
func DecodeRecords(r io.Reader) ([]domain.RawCSVRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	raw, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	header := domain.NormalizeHeader(raw)
	for _, col := range requiredColumns {
		if !slices.Contains(header, col) {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	dec, err := csvutil.NewDecoder(cr, header...)
	if err != nil {
		return nil, fmt.Errorf("create decoder: %w", err)
	}

	var records []domain.RawCSVRecord
	for {
		var rec domain.RawCSVRecord
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("decode report: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

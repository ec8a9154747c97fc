package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/covid-report-etl/internal/domain"
)

// ReportAssembler implements Builder using the domain assembly functions with
// a fixed region canonicalizer.
type ReportAssembler struct {
	canon  *domain.Canonicalizer
	logger *slog.Logger
}

// NewAssembler creates a ReportAssembler. A nil canonicalizer uses the
// built-in alias table.
func NewAssembler(canon *domain.Canonicalizer, logger *slog.Logger) *ReportAssembler {
	if canon == nil {
		canon = domain.DefaultCanonicalizer()
	}
	return &ReportAssembler{
		canon:  canon,
		logger: logger,
	}
}

func (a *ReportAssembler) Build(ctx context.Context, snapshots []domain.Snapshot) (*domain.IngestionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res, err := domain.Build(snapshots, a.canon)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("result assembled",
		"observations", res.Observations.Len(),
		"countries", res.Countries.Len(),
		"dates", res.Dates.Len(),
	)
	return res, nil
}

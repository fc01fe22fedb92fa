package dashboard

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shelfsight/querydeck/internal/config"
	"github.com/shelfsight/querydeck/internal/metrics"
	"github.com/shelfsight/querydeck/internal/models"
	"github.com/shelfsight/querydeck/internal/storage"
	"go.uber.org/zap"
)

// scannedMetrics are the comparison deltas checked during a scan, in
// report order.
var scannedMetrics = []string{"impressions", "clicks", "cart_adds", "purchases", "ctr", "cvr"}

// AnomalyService scans period comparisons for metric movements that
// cross the configured thresholds, and persists what it finds.
type AnomalyService struct {
	comparison *ComparisonService
	repo       storage.AnomalyRepo
	cfg        config.AnomalyConfig
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// NewAnomalyService constructs an AnomalyService.
func NewAnomalyService(comparison *ComparisonService, repo storage.AnomalyRepo, cfg config.AnomalyConfig, logger *zap.Logger, m *metrics.Metrics) *AnomalyService {
	return &AnomalyService{
		comparison: comparison,
		repo:       repo,
		cfg:        cfg,
		logger:     logger,
		metrics:    m,
	}
}

// List returns anomalies detected since the given time.
func (s *AnomalyService) List(ctx context.Context, since time.Time) ([]*models.Anomaly, error) {
	return s.repo.List(ctx, since)
}

// Scan compares the filter's window against the previous period and
// records every metric whose absolute percent change crossed the warning
// threshold. Rows below the impression floor are skipped as noise.
func (s *AnomalyService) Scan(ctx context.Context, filter models.MetricFilter) ([]*models.Anomaly, error) {
	start := time.Now()

	rows, err := s.comparison.Compare(ctx, filter, 0, "")
	if err != nil {
		return nil, fmt.Errorf("anomaly scan failed: %w", err)
	}

	now := time.Now().UTC()
	var found []*models.Anomaly
	for i := range rows {
		row := &rows[i]
		if row.Current.Impressions < s.cfg.MinImpressions {
			continue
		}
		for _, metric := range scannedMetrics {
			delta := deltaFor(row, metric)
			severity := s.severity(delta.Percent)
			if severity == "" {
				continue
			}

			a := &models.Anomaly{
				ID:          uuid.NewString(),
				Identifier:  row.Identifier,
				Marketplace: row.Current.Marketplace,
				Metric:      metric,
				Current:     delta.Current,
				Previous:    delta.Previous,
				Percent:     delta.Percent,
				Severity:    severity,
				DetectedAt:  now,
			}
			if err := s.repo.Save(ctx, a); err != nil {
				return nil, fmt.Errorf("failed to save anomaly: %w", err)
			}
			if s.metrics != nil {
				s.metrics.RecordAnomaly(severity, metric)
			}
			found = append(found, a)
		}
	}

	if s.metrics != nil {
		s.metrics.RecordScan(time.Since(start))
	}
	s.logger.Info("anomaly scan complete",
		zap.Int("rows_scanned", len(rows)),
		zap.Int("anomalies", len(found)),
		zap.Duration("took", time.Since(start)),
	)
	return found, nil
}

// severity maps an absolute percent change to a severity level, or ""
// when the movement is below the warning threshold. Unbounded changes
// (no previous baseline) are always critical.
func (s *AnomalyService) severity(pct models.Change) string {
	if pct.IsUnbounded() {
		return models.SeverityCritical
	}
	abs := math.Abs(float64(pct))
	switch {
	case abs >= s.cfg.CriticalPct:
		return models.SeverityCritical
	case abs >= s.cfg.WarnPct:
		return models.SeverityWarning
	default:
		return ""
	}
}

func deltaFor(row *models.ComparisonRow, metric string) models.Delta {
	switch metric {
	case "impressions":
		return row.Impressions
	case "clicks":
		return row.Clicks
	case "cart_adds":
		return row.CartAdds
	case "purchases":
		return row.Purchases
	case "ctr":
		return row.CTR
	case "cvr":
		return row.CVR
	default:
		return models.Delta{}
	}
}

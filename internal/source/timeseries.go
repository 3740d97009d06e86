package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"wisefido-healthsync/internal/models"

	"go.uber.org/zap"
)

// TimeseriesSource 从 PostgreSQL measurement_samples 表读取最新样本
type TimeseriesSource struct {
	db       *sql.DB
	deviceID string
	logger   *zap.Logger
}

// NewTimeseriesSource 创建时序表数据源
func NewTimeseriesSource(db *sql.DB, deviceID string, logger *zap.Logger) *TimeseriesSource {
	return &TimeseriesSource{
		db:       db,
		deviceID: deviceID,
		logger:   logger,
	}
}

// Kind 数据源类型
func (s *TimeseriesSource) Kind() models.SourceKind {
	return models.SourceTimeseries
}

// Authorize 检查时序表可读
func (s *TimeseriesSource) Authorize(ctx context.Context, scopes []string) error {
	if s.db == nil {
		return fmt.Errorf("%w: database not configured", ErrNotAvailable)
	}
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM measurement_samples WHERE device_id = $1 LIMIT 1`, s.deviceID).Scan(&one)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", ErrNotAvailable, err)
	}
	return nil
}

// FetchLatest 查询某指标的最新样本
func (s *TimeseriesSource) FetchLatest(ctx context.Context, metric models.Metric) (*models.Sample, error) {
	query := `
		SELECT value, unit, recorded_at
		FROM measurement_samples
		WHERE device_id = $1 AND metric = $2
		ORDER BY recorded_at DESC
		LIMIT 1
	`

	sample := &models.Sample{Metric: metric}
	err := s.db.QueryRowContext(ctx, query, s.deviceID, string(metric)).Scan(
		&sample.Value,
		&sample.Unit,
		&sample.Timestamp,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query measurement_samples: %w", err)
	}

	return sample, nil
}

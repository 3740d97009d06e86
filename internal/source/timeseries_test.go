package source

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"wisefido-healthsync/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *TimeseriesSource) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db, mock, NewTimeseriesSource(db, "device-1", zap.NewNop())
}

func TestTimeseriesSource_FetchLatest_Success(t *testing.T) {
	_, mock, src := setupMockDB(t)
	recordedAt := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"value", "unit", "recorded_at"}).
		AddRow(36.8, "degC", recordedAt)
	mock.ExpectQuery(`SELECT value, unit, recorded_at`).
		WithArgs("device-1", "bodyTemperature").
		WillReturnRows(rows)

	sample, err := src.FetchLatest(context.Background(), models.MetricBodyTemperature)

	require.NoError(t, err)
	require.NotNil(t, sample)
	assert.Equal(t, 36.8, sample.Value)
	assert.Equal(t, "degC", sample.Unit)
	assert.Equal(t, recordedAt, sample.Timestamp)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimeseriesSource_FetchLatest_NoRows(t *testing.T) {
	_, mock, src := setupMockDB(t)

	mock.ExpectQuery(`SELECT value, unit, recorded_at`).
		WithArgs("device-1", "heartRate").
		WillReturnRows(sqlmock.NewRows([]string{"value", "unit", "recorded_at"}))

	sample, err := src.FetchLatest(context.Background(), models.MetricHeartRate)

	require.NoError(t, err)
	assert.Nil(t, sample)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimeseriesSource_FetchLatest_QueryError(t *testing.T) {
	_, mock, src := setupMockDB(t)

	mock.ExpectQuery(`SELECT value, unit, recorded_at`).
		WithArgs("device-1", "heartRate").
		WillReturnError(errors.New("connection reset"))

	sample, err := src.FetchLatest(context.Background(), models.MetricHeartRate)

	assert.Error(t, err)
	assert.Nil(t, sample)
}

func TestTimeseriesSource_Authorize(t *testing.T) {
	_, mock, src := setupMockDB(t)

	mock.ExpectQuery(`SELECT 1 FROM measurement_samples`).
		WithArgs("device-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
	assert.NoError(t, src.Authorize(context.Background(), nil))

	mock.ExpectQuery(`SELECT 1 FROM measurement_samples`).
		WithArgs("device-1").
		WillReturnError(errors.New(`relation "measurement_samples" does not exist`))
	assert.ErrorIs(t, src.Authorize(context.Background(), nil), ErrNotAvailable)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistry(t *testing.T) {
	_, _, ts := setupMockDB(t)
	broker := NewBrokerSource(&fakeSubscriber{}, "t", 0, 0, zap.NewNop())

	reg := NewRegistry(ts, broker)
	assert.Equal(t, []models.SourceKind{models.SourceDeviceBroker, models.SourceTimeseries}, reg.Kinds())

	got, ok := reg.Get(models.SourceTimeseries)
	assert.True(t, ok)
	assert.Same(t, ts, got)

	reg.Remove(models.SourceTimeseries)
	_, ok = reg.Get(models.SourceTimeseries)
	assert.False(t, ok)
}

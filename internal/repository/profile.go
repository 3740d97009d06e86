package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"wisefido-healthsync/internal/models"

	"go.uber.org/zap"
)

// ProfileRepository 静态档案仓库
type ProfileRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewProfileRepository 创建档案仓库
func NewProfileRepository(db *sql.DB, logger *zap.Logger) *ProfileRepository {
	return &ProfileRepository{
		db:     db,
		logger: logger,
	}
}

// GetProfile 获取主体的静态档案
// 没有档案时返回空档案（所有字段缺失），不是错误
func (r *ProfileRepository) GetProfile(ctx context.Context, subjectID string) (models.Profile, error) {
	query := `
		SELECT
			blood_type,
			biological_sex,
			birth_date,
			latitude,
			longitude
		FROM resident_profiles
		WHERE subject_id = $1
	`

	var bloodType, sex sql.NullString
	var birthDate sql.NullTime
	var lat, lon sql.NullFloat64

	err := r.db.QueryRowContext(ctx, query, subjectID).Scan(
		&bloodType,
		&sex,
		&birthDate,
		&lat,
		&lon,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Profile{}, nil
		}
		return models.Profile{}, fmt.Errorf("failed to query resident profile: %w", err)
	}

	profile := models.Profile{
		BloodType:     bloodType.String,
		BiologicalSex: sex.String,
	}
	if birthDate.Valid {
		profile.BirthDate = birthDate.Time
	}
	// 经纬度必须同时存在
	if lat.Valid && lon.Valid {
		profile.Coordinates = &models.Coordinates{Latitude: lat.Float64, Longitude: lon.Float64}
	}

	return profile, nil
}

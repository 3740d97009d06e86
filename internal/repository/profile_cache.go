package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"wisefido-healthsync/internal/models"
	"wisefido-healthsync/internal/store"

	"go.uber.org/zap"
)

// ProfileGetter 档案查询接口
type ProfileGetter interface {
	GetProfile(ctx context.Context, subjectID string) (models.Profile, error)
}

// cachedProfile 缓存中的档案格式
type cachedProfile struct {
	BloodType     string              `json:"blood_type,omitempty"`
	BiologicalSex string              `json:"biological_sex,omitempty"`
	BirthDate     string              `json:"birth_date,omitempty"`
	Coordinates   *models.Coordinates `json:"coordinates,omitempty"`
}

// CachedProfileRepository 带 KV 缓存的档案查询
// 档案几乎不变，缓存可以减少每个采集周期的数据库访问
type CachedProfileRepository struct {
	next      ProfileGetter
	kv        store.KV
	keyPrefix string
	ttl       time.Duration
	logger    *zap.Logger
}

// NewCachedProfileRepository 创建带缓存的档案查询
func NewCachedProfileRepository(next ProfileGetter, kv store.KV, keyPrefix string, ttl time.Duration, logger *zap.Logger) *CachedProfileRepository {
	return &CachedProfileRepository{
		next:      next,
		kv:        kv,
		keyPrefix: keyPrefix,
		ttl:       ttl,
		logger:    logger,
	}
}

// GetProfile 先查缓存，未命中再查数据库并回写
func (r *CachedProfileRepository) GetProfile(ctx context.Context, subjectID string) (models.Profile, error) {
	key := r.keyPrefix + subjectID

	val, err := r.kv.Get(ctx, key)
	if err == nil {
		var cp cachedProfile
		if jsonErr := json.Unmarshal([]byte(val), &cp); jsonErr == nil {
			return cp.toProfile(), nil
		}
		r.logger.Warn("Invalid cached profile, reloading", zap.String("key", key))
	} else if !errors.Is(err, store.ErrMiss) {
		// 缓存不可用时直接查库
		r.logger.Warn("Profile cache unavailable", zap.String("key", key), zap.Error(err))
	}

	profile, err := r.next.GetProfile(ctx, subjectID)
	if err != nil {
		return models.Profile{}, err
	}

	data, err := json.Marshal(fromProfile(profile))
	if err == nil {
		if setErr := r.kv.Set(ctx, key, string(data), r.ttl); setErr != nil {
			r.logger.Warn("Failed to cache profile", zap.String("key", key), zap.Error(setErr))
		}
	}
	return profile, nil
}

func fromProfile(p models.Profile) cachedProfile {
	cp := cachedProfile{
		BloodType:     p.BloodType,
		BiologicalSex: p.BiologicalSex,
		Coordinates:   p.Coordinates,
	}
	if !p.BirthDate.IsZero() {
		cp.BirthDate = p.BirthDate.Format("2006-01-02")
	}
	return cp
}

func (cp cachedProfile) toProfile() models.Profile {
	p := models.Profile{
		BloodType:     cp.BloodType,
		BiologicalSex: cp.BiologicalSex,
		Coordinates:   cp.Coordinates,
	}
	if cp.BirthDate != "" {
		if t, err := time.Parse("2006-01-02", cp.BirthDate); err == nil {
			p.BirthDate = t
		}
	}
	return p
}

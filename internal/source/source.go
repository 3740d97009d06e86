package source

import (
	"context"
	"errors"
	"sort"
	"sync"

	"wisefido-healthsync/internal/models"
)

var (
	// ErrNotAvailable 数据平台不可用（未安装、未连接）
	ErrNotAvailable = errors.New("measurement source not available")
	// ErrNotAuthorized 授权被拒绝
	ErrNotAuthorized = errors.New("measurement source not authorized")
)

// MeasurementSource 数据源
// FetchLatest 返回 (nil, nil) 表示该指标当前没有样本
type MeasurementSource interface {
	Kind() models.SourceKind
	Authorize(ctx context.Context, scopes []string) error
	FetchLatest(ctx context.Context, metric models.Metric) (*models.Sample, error)
}

// Registry 按类型登记的数据源
type Registry struct {
	mu      sync.RWMutex
	sources map[models.SourceKind]MeasurementSource
}

// NewRegistry 创建数据源登记表
func NewRegistry(sources ...MeasurementSource) *Registry {
	r := &Registry{sources: make(map[models.SourceKind]MeasurementSource, len(sources))}
	for _, s := range sources {
		r.Register(s)
	}
	return r
}

// Register 登记数据源，同类型后者覆盖前者
func (r *Registry) Register(s MeasurementSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[s.Kind()] = s
}

// Remove 移除数据源（授权失败时使用）
func (r *Registry) Remove(kind models.SourceKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sources, kind)
}

// Get 获取数据源
func (r *Registry) Get(kind models.SourceKind) (MeasurementSource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[kind]
	return s, ok
}

// Kinds 已登记的类型
func (r *Registry) Kinds() []models.SourceKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]models.SourceKind, 0, len(r.sources))
	for k := range r.sources {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

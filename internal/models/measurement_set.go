package models

import "sort"

// MeasurementSet 不可变的指标集合
// 缺失的指标表示本周期没有可用样本，不等于 0
type MeasurementSet struct {
	values map[Metric]float64
}

// NewMeasurementSet 创建指标集合（复制入参，未知指标被丢弃）
func NewMeasurementSet(values map[Metric]float64) MeasurementSet {
	copied := make(map[Metric]float64, len(values))
	for k, v := range values {
		if k.IsKnown() {
			copied[k] = v
		}
	}
	return MeasurementSet{values: copied}
}

// Get 获取指标值，ok=false 表示缺失
func (s MeasurementSet) Get(metric Metric) (float64, bool) {
	v, ok := s.values[metric]
	return v, ok
}

// Has 指标是否存在
func (s MeasurementSet) Has(metric Metric) bool {
	_, ok := s.values[metric]
	return ok
}

// Len 已有值的指标数量
func (s MeasurementSet) Len() int {
	return len(s.values)
}

// Metrics 已有值的指标（按名称排序）
func (s MeasurementSet) Metrics() []Metric {
	metrics := make([]Metric, 0, len(s.values))
	for m := range s.values {
		metrics = append(metrics, m)
	}
	sort.Slice(metrics, func(i, j int) bool { return metrics[i] < metrics[j] })
	return metrics
}

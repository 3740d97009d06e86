// Package normalizer 将数据源样本换算为标准单位并生成指标集合
//
// 纯函数，无副作用：
// - 每个已知指标换算到固定目标单位（见 units.go）
// - 未知指标忽略
// - 单位不支持或数值非法的指标视为缺失，并返回拒绝原因供调用方记录日志
// - 缺失的指标不会被补 0
package normalizer

import (
	"math"

	"wisefido-healthsync/internal/models"
)

// Rejection 被丢弃的样本
type Rejection struct {
	Metric models.Metric
	Unit   string
	Reason string
}

// Result 标准化结果
type Result struct {
	Measurements models.MeasurementSet
	Rejections   []Rejection
}

// Normalize 标准化一组样本
// 同一指标出现多个样本时取时间戳最新的一个
func Normalize(samples []models.Sample) Result {
	latest := make(map[models.Metric]models.Sample, len(samples))
	for _, s := range samples {
		if !s.Metric.IsKnown() {
			continue
		}
		if prev, ok := latest[s.Metric]; ok && !s.Timestamp.After(prev.Timestamp) {
			continue
		}
		latest[s.Metric] = s
	}

	values := make(map[models.Metric]float64, len(latest))
	var rejections []Rejection
	for _, metric := range models.KnownMetrics {
		s, ok := latest[metric]
		if !ok {
			continue
		}
		v, reason := convert(s)
		if reason != "" {
			rejections = append(rejections, Rejection{Metric: metric, Unit: s.Unit, Reason: reason})
			continue
		}
		values[metric] = v
	}

	return Result{
		Measurements: models.NewMeasurementSet(values),
		Rejections:   rejections,
	}
}

func convert(s models.Sample) (float64, string) {
	conv, ok := conversions[s.Metric]
	if !ok {
		return 0, "unknown metric"
	}
	fn, ok := conv.from[s.Unit]
	if !ok {
		return 0, "unsupported unit"
	}
	if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
		return 0, "non-finite value"
	}
	v := fn(s.Value)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, "non-finite value"
	}
	return v, ""
}

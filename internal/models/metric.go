package models

// Metric 指标标识（与上报记录中的字段名一致）
type Metric string

const (
	MetricStepCount              Metric = "stepCount"
	MetricHeartRate              Metric = "heartRate"
	MetricBloodPressureSystolic  Metric = "bloodPressureSystolic"
	MetricBloodPressureDiastolic Metric = "bloodPressureDiastolic"
	MetricOxygenSaturation       Metric = "oxygenSaturation"
	MetricBodyTemperature        Metric = "bodyTemperature"
	MetricRespiratoryRate        Metric = "respiratoryRate"
	MetricHeight                 Metric = "height"
	MetricBodyMass               Metric = "bodyMass"
	MetricBodyMassIndex          Metric = "bodyMassIndex"
	MetricWalkingSpeed           Metric = "walkingSpeed"
	MetricActiveEnergyBurned     Metric = "activeEnergyBurned"
)

// KnownMetrics 全部已知指标（顺序即采集与序列化顺序）
var KnownMetrics = []Metric{
	MetricStepCount,
	MetricHeartRate,
	MetricBloodPressureSystolic,
	MetricBloodPressureDiastolic,
	MetricOxygenSaturation,
	MetricBodyTemperature,
	MetricRespiratoryRate,
	MetricHeight,
	MetricBodyMass,
	MetricBodyMassIndex,
	MetricWalkingSpeed,
	MetricActiveEnergyBurned,
}

var knownMetricSet = func() map[Metric]struct{} {
	m := make(map[Metric]struct{}, len(KnownMetrics))
	for _, metric := range KnownMetrics {
		m[metric] = struct{}{}
	}
	return m
}()

// IsKnown 是否为已知指标
func (m Metric) IsKnown() bool {
	_, ok := knownMetricSet[m]
	return ok
}

// ParseMetrics 解析指标列表，未知指标被忽略
func ParseMetrics(names []string) []Metric {
	metrics := make([]Metric, 0, len(names))
	seen := make(map[Metric]bool, len(names))
	for _, name := range names {
		m := Metric(name)
		if !m.IsKnown() || seen[m] {
			continue
		}
		seen[m] = true
		metrics = append(metrics, m)
	}
	return metrics
}

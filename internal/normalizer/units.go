package normalizer

import "wisefido-healthsync/internal/models"

// 目标单位
const (
	UnitCount          = "count"
	UnitCountPerMinute = "count/min"
	UnitMillimeterHg   = "mmHg"
	UnitPercent        = "%"
	UnitCelsius        = "degC"
	UnitCentimeter     = "cm"
	UnitKilogram       = "kg"
	UnitMeterPerSecond = "m/s"
	UnitKilocalorie    = "kcal"
)

type convertFunc func(float64) float64

func scale(factor float64) convertFunc {
	return func(v float64) float64 { return v * factor }
}

func identity(v float64) float64 { return v }

// conversion 单个指标的目标单位及可接受的源单位
type conversion struct {
	target string
	from   map[string]convertFunc
}

var (
	perMinute = map[string]convertFunc{
		"count/min": identity,
		"bpm":       identity,
		"count/s":   scale(60),
		"Hz":        scale(60),
	}
	pressure = map[string]convertFunc{
		"mmHg": identity,
		"cmHg": scale(10),
		"kPa":  scale(7.500615758),
	}
)

// conversions 指标 → 单位换算表
var conversions = map[models.Metric]conversion{
	models.MetricStepCount: {
		target: UnitCount,
		from:   map[string]convertFunc{"count": identity},
	},
	models.MetricHeartRate: {target: UnitCountPerMinute, from: perMinute},
	models.MetricRespiratoryRate: {
		target: UnitCountPerMinute,
		from: map[string]convertFunc{
			"count/min":   identity,
			"breaths/min": identity,
			"count/s":     scale(60),
		},
	},
	models.MetricBloodPressureSystolic:  {target: UnitMillimeterHg, from: pressure},
	models.MetricBloodPressureDiastolic: {target: UnitMillimeterHg, from: pressure},
	models.MetricOxygenSaturation: {
		target: UnitPercent,
		from: map[string]convertFunc{
			"%":        identity,
			"percent":  identity,
			"fraction": scale(100), // 0..1
		},
	},
	models.MetricBodyTemperature: {
		target: UnitCelsius,
		from: map[string]convertFunc{
			"degC": identity,
			"°C":   identity,
			"degF": fahrenheitToCelsius,
			"°F":   fahrenheitToCelsius,
			"K":    func(v float64) float64 { return v - 273.15 },
		},
	},
	models.MetricHeight: {
		target: UnitCentimeter,
		from: map[string]convertFunc{
			"cm": identity,
			"m":  scale(100),
			"mm": scale(0.1),
			"in": scale(2.54),
			"ft": scale(30.48),
		},
	},
	models.MetricBodyMass: {
		target: UnitKilogram,
		from: map[string]convertFunc{
			"kg": identity,
			"g":  scale(0.001),
			"lb": scale(0.45359237),
			"st": scale(6.35029318),
		},
	},
	models.MetricBodyMassIndex: {
		target: UnitCount,
		from: map[string]convertFunc{
			"count": identity,
			"kg/m2": identity,
		},
	},
	models.MetricWalkingSpeed: {
		target: UnitMeterPerSecond,
		from: map[string]convertFunc{
			"m/s":  identity,
			"km/h": scale(1 / 3.6),
			"mph":  scale(0.44704),
		},
	},
	models.MetricActiveEnergyBurned: {
		target: UnitKilocalorie,
		from: map[string]convertFunc{
			"kcal": identity,
			"Cal":  identity, // 食品热量单位，大卡
			"cal":  scale(0.001),
			"kJ":   scale(1 / 4.184),
			"J":    scale(1 / 4184.0),
		},
	},
}

func fahrenheitToCelsius(v float64) float64 {
	return (v - 32) * 5 / 9
}

// TargetUnit 返回指标的目标单位，未知指标返回空串
func TargetUnit(metric models.Metric) string {
	return conversions[metric].target
}

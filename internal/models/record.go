package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// SourceKind 数据源类型
type SourceKind string

const (
	SourceVendorAPI    SourceKind = "vendor_api"    // 厂家 REST API
	SourceDeviceBroker SourceKind = "device_broker" // 设备 MQTT 主题
	SourceTimeseries   SourceKind = "timeseries"    // PostgreSQL 时序表
)

// Valid 是否为已知数据源类型
func (k SourceKind) Valid() bool {
	switch k {
	case SourceVendorAPI, SourceDeviceBroker, SourceTimeseries:
		return true
	}
	return false
}

// Coordinates 坐标
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Profile 静态档案，所有字段可选
type Profile struct {
	BloodType     string       // 如 "A+"，空表示未知
	BiologicalSex string       // "female" / "male" / "other"，空表示未知
	BirthDate     time.Time    // 零值表示未知
	Coordinates   *Coordinates // nil 表示未知
}

// CanonicalRecord 每个采集周期生成一次的标准化记录
// 构造后不可修改，交给 Transmitter 后由其持有
type CanonicalRecord struct {
	recordID     string
	identity     string
	source       SourceKind
	profile      Profile
	measurements MeasurementSet
	capturedAt   time.Time
}

// NewCanonicalRecord 创建标准化记录
func NewCanonicalRecord(recordID, identity string, source SourceKind, profile Profile, measurements MeasurementSet, capturedAt time.Time) CanonicalRecord {
	if profile.Coordinates != nil {
		c := *profile.Coordinates
		profile.Coordinates = &c
	}
	return CanonicalRecord{
		recordID:     recordID,
		identity:     identity,
		source:       source,
		profile:      profile,
		measurements: measurements,
		capturedAt:   capturedAt.UTC(),
	}
}

func (r CanonicalRecord) RecordID() string             { return r.recordID }
func (r CanonicalRecord) Identity() string             { return r.identity }
func (r CanonicalRecord) Source() SourceKind           { return r.source }
func (r CanonicalRecord) Measurements() MeasurementSet { return r.measurements }
func (r CanonicalRecord) CapturedAt() time.Time        { return r.capturedAt }

// Profile 返回档案副本
func (r CanonicalRecord) Profile() Profile {
	p := r.profile
	if p.Coordinates != nil {
		c := *p.Coordinates
		p.Coordinates = &c
	}
	return p
}

// MarshalJSON 序列化为扁平对象，缺失的字段不输出
func (r CanonicalRecord) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{
		"recordId":   r.recordID,
		"identity":   r.identity,
		"source":     string(r.source),
		"capturedAt": r.capturedAt.Format(time.RFC3339),
	}
	if r.profile.BloodType != "" {
		out["bloodType"] = r.profile.BloodType
	}
	if r.profile.BiologicalSex != "" {
		out["biologicalSex"] = r.profile.BiologicalSex
	}
	if !r.profile.BirthDate.IsZero() {
		out["birthDate"] = r.profile.BirthDate.Format("2006-01-02")
	}
	if r.profile.Coordinates != nil {
		out["latitude"] = r.profile.Coordinates.Latitude
		out["longitude"] = r.profile.Coordinates.Longitude
	}
	for _, m := range KnownMetrics {
		if v, ok := r.measurements.Get(m); ok {
			out[string(m)] = v
		}
	}
	return json.Marshal(out)
}

// String 日志用
func (r CanonicalRecord) String() string {
	return fmt.Sprintf("record(%s identity=%s source=%s metrics=%d)", r.recordID, r.identity, r.source, r.measurements.Len())
}

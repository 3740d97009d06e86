package models

import "time"

// Sample 数据源返回的单个原始样本（单位由数据源上报）
type Sample struct {
	Metric    Metric    `json:"metric"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit"`
	Timestamp time.Time `json:"timestamp"`
}

package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

type AlertType string

const (
	AlertCritical AlertType = "critical"
	AlertWarning  AlertType = "warning"
)

// Threshold is either a single numeric bound or a textual range such as "5.5-7.5".
// It serialises as a JSON number or a JSON string respectively.
type Threshold struct {
	Value float64
	Range string
}

func NumericThreshold(v float64) Threshold { return Threshold{Value: v} }

func RangeThreshold(low, high float64) Threshold {
	return Threshold{Range: fmt.Sprintf("%s-%s", formatFloat(low), formatFloat(high))}
}

func (t Threshold) IsRange() bool { return t.Range != "" }

func (t Threshold) String() string {
	if t.IsRange() {
		return t.Range
	}
	return formatFloat(t.Value)
}

func (t Threshold) MarshalJSON() ([]byte, error) {
	if t.IsRange() {
		return json.Marshal(t.Range)
	}
	return json.Marshal(t.Value)
}

func (t *Threshold) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = Threshold{Range: s}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("threshold must be a number or a string: %w", err)
	}
	*t = Threshold{Value: v}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// AlertCandidate is produced by the evaluator and never stored directly.
type AlertCandidate struct {
	Type      AlertType `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	SensorID  string    `json:"sensorId"`
	Value     float64   `json:"value"`
	Threshold Threshold `json:"threshold"`
	Location  string    `json:"location"`
}

// Alert is a persisted candidate. Only IsRead and AcknowledgedAt ever change, and they
// change together.
type Alert struct {
	ID int64 `json:"id"`
	AlertCandidate
	IsRead         bool       `json:"isRead"`
	CreatedAt      time.Time  `json:"createdAt"`
	AcknowledgedAt *time.Time `json:"acknowledgedAt"`
}

type OverallStatus string

const (
	StatusHealthy  OverallStatus = "healthy"
	StatusWarning  OverallStatus = "warning"
	StatusCritical OverallStatus = "critical"
)

// SystemStatus is a derived view over recent alert history; never persisted.
type SystemStatus struct {
	OverallStatus OverallStatus `json:"overallStatus"`
	UnreadCount   int           `json:"unreadCount"`
	RecentAlerts  []Alert       `json:"recentAlerts"`
}

// Thresholds holds the bounds used by the threshold evaluator.
type Thresholds struct {
	MoistureCritical float64 `json:"moisture_critical"`
	MoistureWarning  float64 `json:"moisture_warning"`
	PHMin            float64 `json:"ph_min"`
	PHMax            float64 `json:"ph_max"`
	TemperatureMax   float64 `json:"temperature_max"`
	BatteryMin       float64 `json:"battery_min"`
}

var DefaultThresholds = Thresholds{
	MoistureCritical: 25,
	MoistureWarning:  40,
	PHMin:            5.5,
	PHMax:            7.5,
	TemperatureMax:   35,
	BatteryMin:       20,
}

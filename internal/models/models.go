// internal/models/models.go

package models

import (
	"fmt"
	"strings"
	"time"

	"SoilMonitorAPI/internal/apperr"
)

type Location struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

// Reading is one timestamped measurement set from a soil sensor. Immutable once stored.
type Reading struct {
	ID           int64     `json:"id,omitempty"`
	SensorID     string    `json:"sensor_id"`
	Location     Location  `json:"location"`
	SoilMoisture int       `json:"soil_moisture"`
	Temperature  float64   `json:"temperature"`
	Humidity     int       `json:"humidity"`
	PHLevel      float64   `json:"ph_level"`
	Nitrogen     int       `json:"nitrogen"`
	Phosphorus   int       `json:"phosphorus"`
	Potassium    int       `json:"potassium"`
	BatteryLevel int       `json:"battery_level"`
	Timestamp    time.Time `json:"timestamp"`
}

// Validate rejects readings with out-of-range fields before they reach the evaluator.
func (r Reading) Validate() error {
	var problems []string

	if strings.TrimSpace(r.SensorID) == "" {
		problems = append(problems, "sensor_id is required")
	}
	if r.SoilMoisture < 0 || r.SoilMoisture > 100 {
		problems = append(problems, fmt.Sprintf("soil_moisture %d outside [0,100]", r.SoilMoisture))
	}
	if r.Humidity < 0 || r.Humidity > 100 {
		problems = append(problems, fmt.Sprintf("humidity %d outside [0,100]", r.Humidity))
	}
	if r.BatteryLevel < 0 || r.BatteryLevel > 100 {
		problems = append(problems, fmt.Sprintf("battery_level %d outside [0,100]", r.BatteryLevel))
	}
	if r.PHLevel < 0 || r.PHLevel > 14 {
		problems = append(problems, fmt.Sprintf("ph_level %.2f outside [0,14]", r.PHLevel))
	}
	if r.Temperature < -60 || r.Temperature > 80 {
		problems = append(problems, fmt.Sprintf("temperature %.1f outside [-60,80]", r.Temperature))
	}
	if r.Nitrogen < 0 || r.Phosphorus < 0 || r.Potassium < 0 {
		problems = append(problems, "nutrient levels must not be negative")
	}
	if r.Location.Lat < -90 || r.Location.Lat > 90 || r.Location.Lng < -180 || r.Location.Lng > 180 {
		problems = append(problems, "location coordinates out of range")
	}
	if r.Timestamp.IsZero() {
		problems = append(problems, "timestamp is required")
	}

	if len(problems) > 0 {
		return apperr.NewValidation("validate reading", strings.Join(problems, "; "))
	}
	return nil
}

// ReadingRangeQuery filters readings for export. Nil bounds are open.
type ReadingRangeQuery struct {
	Start    *time.Time
	End      *time.Time
	SensorID string
	Limit    int
}

// MaxExportRows bounds every range query.
const MaxExportRows = 1000

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Services  struct {
		Store       bool `json:"store"`
		MQTT        bool `json:"mqtt"`
		Subscribers int  `json:"subscribers"`
	} `json:"services"`
}

package service

import (
	"fmt"
	"strconv"

	"SoilMonitorAPI/internal/models"
)

// Evaluator maps one reading to the alert candidates it breaches. It holds no state
// beyond its thresholds and is safe for concurrent use.
type Evaluator struct {
	thresholds models.Thresholds
}

func NewEvaluator(thresholds models.Thresholds) *Evaluator {
	return &Evaluator{thresholds: thresholds}
}

func (e *Evaluator) Thresholds() models.Thresholds {
	return e.thresholds
}

// Evaluate returns candidates in a fixed order: moisture, pH, temperature, battery.
// At most one moisture candidate is produced.
func (e *Evaluator) Evaluate(r models.Reading) []models.AlertCandidate {
	t := e.thresholds
	var out []models.AlertCandidate

	moisture := float64(r.SoilMoisture)
	switch {
	case moisture < t.MoistureCritical:
		out = append(out, e.candidate(r, models.AlertCritical,
			"Critical Soil Moisture",
			fmt.Sprintf("Sensor %s has critically low soil moisture (%d%%). Irrigation needed.", r.SensorID, r.SoilMoisture),
			moisture, models.NumericThreshold(t.MoistureCritical)))
	case moisture < t.MoistureWarning:
		out = append(out, e.candidate(r, models.AlertWarning,
			"Low Soil Moisture",
			fmt.Sprintf("Sensor %s has low soil moisture (%d%%). Consider irrigation.", r.SensorID, r.SoilMoisture),
			moisture, models.NumericThreshold(t.MoistureWarning)))
	}

	if r.PHLevel < t.PHMin || r.PHLevel > t.PHMax {
		phRange := models.RangeThreshold(t.PHMin, t.PHMax)
		out = append(out, e.candidate(r, models.AlertWarning,
			"pH Level Alert",
			fmt.Sprintf("Sensor %s has abnormal pH level (%s). Optimal range is %s.", r.SensorID, trimFloat(r.PHLevel), phRange),
			r.PHLevel, phRange))
	}

	if r.Temperature > t.TemperatureMax {
		out = append(out, e.candidate(r, models.AlertWarning,
			"High Temperature",
			fmt.Sprintf("Sensor %s has high temperature (%s°C). Monitor for plant stress.", r.SensorID, trimFloat(r.Temperature)),
			r.Temperature, models.NumericThreshold(t.TemperatureMax)))
	}

	battery := float64(r.BatteryLevel)
	if battery < t.BatteryMin {
		out = append(out, e.candidate(r, models.AlertWarning,
			"Low Battery",
			fmt.Sprintf("Sensor %s has low battery (%d%%). Replacement needed soon.", r.SensorID, r.BatteryLevel),
			battery, models.NumericThreshold(t.BatteryMin)))
	}

	return out
}

func (e *Evaluator) candidate(r models.Reading, kind models.AlertType, title, message string, value float64, threshold models.Threshold) models.AlertCandidate {
	return models.AlertCandidate{
		Type:      kind,
		Title:     title,
		Message:   message,
		SensorID:  r.SensorID,
		Value:     value,
		Threshold: threshold,
		Location:  r.Location.Name,
	}
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

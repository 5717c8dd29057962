// Package export renders stored readings as downloadable CSV, JSON or PDF documents.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"SoilMonitorAPI/internal/models"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatPDF  Format = "pdf"
)

func ParseFormat(s string) (Format, bool) {
	switch f := Format(s); f {
	case FormatCSV, FormatJSON, FormatPDF:
		return f, true
	}
	return "", false
}

func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/json"
	}
}

// Filename is the attachment name offered to the browser, dated by now.
func (f Format) Filename(now time.Time) string {
	return fmt.Sprintf("soil-data-%s.%s", now.Format("2006-01-02"), f)
}

type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type Metadata struct {
	ExportedAt  time.Time `json:"exportedAt"`
	RecordCount int       `json:"recordCount"`
	DateRange   DateRange `json:"dateRange"`
	Sensor      string    `json:"sensor"`
}

type Document struct {
	Metadata Metadata         `json:"metadata"`
	Data     []models.Reading `json:"data"`
}

// Write renders doc in format f.
func Write(w io.Writer, f Format, doc Document) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, doc.Data)
	case FormatJSON:
		return WriteJSON(w, doc)
	case FormatPDF:
		return WritePDF(w, doc)
	default:
		return fmt.Errorf("unsupported export format %q", f)
	}
}

var csvHeader = []string{
	"id", "sensor_id", "location_name", "location_lat", "location_lng",
	"soil_moisture", "temperature", "humidity", "ph_level",
	"nitrogen", "phosphorus", "potassium", "battery_level", "timestamp",
}

func WriteCSV(w io.Writer, readings []models.Reading) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, r := range readings {
		record := []string{
			strconv.FormatInt(r.ID, 10),
			r.SensorID,
			r.Location.Name,
			strconv.FormatFloat(r.Location.Lat, 'f', 4, 64),
			strconv.FormatFloat(r.Location.Lng, 'f', 4, 64),
			strconv.Itoa(r.SoilMoisture),
			strconv.FormatFloat(r.Temperature, 'f', 2, 64),
			strconv.Itoa(r.Humidity),
			strconv.FormatFloat(r.PHLevel, 'f', 2, 64),
			strconv.Itoa(r.Nitrogen),
			strconv.Itoa(r.Phosphorus),
			strconv.Itoa(r.Potassium),
			strconv.Itoa(r.BatteryLevel),
			r.Timestamp.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func WriteJSON(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode json export: %w", err)
	}
	return nil
}

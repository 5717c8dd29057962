package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"SoilMonitorAPI/internal/apperr"
	"SoilMonitorAPI/internal/export"
	"SoilMonitorAPI/internal/logger"
	"SoilMonitorAPI/internal/models"
	"SoilMonitorAPI/internal/service"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

const (
	dateLayout   = "2006-01-02"
	allSensors   = "all"
	unboundedTxt = "All"
)

type ExportHandler struct {
	readings service.IReadingService
	log      *logger.Logger
	now      func() time.Time
}

func NewExportHandler(readings service.IReadingService, log *logger.Logger) *ExportHandler {
	return &ExportHandler{
		readings: readings,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (h *ExportHandler) RegisterRoutes(r *mux.Router) {
	r.Handle("/export/readings/{format}", handlers.CompressHandler(http.HandlerFunc(h.ExportReadings))).Methods("GET")
}

// ExportReadings streams up to models.MaxExportRows readings as a file attachment.
func (h *ExportHandler) ExportReadings(w http.ResponseWriter, r *http.Request) {
	format, ok := export.ParseFormat(mux.Vars(r)["format"])
	if !ok {
		respondError(w, http.StatusBadRequest, "Unsupported export format, use csv, json or pdf")
		return
	}

	startRaw := firstQuery(r, "start_date", "startDate")
	endRaw := firstQuery(r, "end_date", "endDate")
	sensorRaw := firstQuery(r, "sensor_id", "sensorId")

	q, err := buildRangeQuery(startRaw, endRaw, sensorRaw)
	if err != nil {
		respondAppError(w, err, "Invalid export parameters")
		return
	}

	readings, err := h.readings.QueryRange(r.Context(), q)
	if err != nil {
		h.log.Error("Export query failed: %v", err)
		respondAppError(w, err, "Failed to export data")
		return
	}
	if len(readings) == 0 {
		respondError(w, http.StatusNotFound, "No sensor data found for the selected criteria. Please try different dates or sensors.")
		return
	}

	now := h.now()
	doc := export.Document{
		Metadata: export.Metadata{
			ExportedAt:  now,
			RecordCount: len(readings),
			DateRange:   export.DateRange{Start: orAll(startRaw), End: orAll(endRaw)},
			Sensor:      orAll(sensorRaw),
		},
		Data: readings,
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, doc); err != nil {
		h.log.Error("Failed to render %s export: %v", format, err)
		respondError(w, http.StatusInternalServerError, "Failed to export data")
		return
	}

	h.log.Info("Exported %d readings as %s", len(readings), format)

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, format.Filename(now)))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

// buildRangeQuery parses the export bounds. A bare end date covers that whole day.
func buildRangeQuery(startRaw, endRaw, sensorRaw string) (models.ReadingRangeQuery, error) {
	q := models.ReadingRangeQuery{Limit: models.MaxExportRows}

	if startRaw != "" {
		start, _, err := parseDate(startRaw)
		if err != nil {
			return q, apperr.NewValidation("parse start_date", fmt.Sprintf("invalid start_date %q", startRaw))
		}
		q.Start = &start
	}

	if endRaw != "" {
		end, bare, err := parseDate(endRaw)
		if err != nil {
			return q, apperr.NewValidation("parse end_date", fmt.Sprintf("invalid end_date %q", endRaw))
		}
		if bare {
			end = end.Add(24*time.Hour - time.Millisecond)
		}
		q.End = &end
	}

	if sensorRaw != "" && sensorRaw != allSensors {
		q.SensorID = sensorRaw
	}

	return q, nil
}

func parseDate(s string) (t time.Time, bare bool, err error) {
	if t, err = time.Parse(dateLayout, s); err == nil {
		return t, true, nil
	}
	t, err = time.Parse(time.RFC3339, s)
	return t, false, err
}

func firstQuery(r *http.Request, keys ...string) string {
	for _, key := range keys {
		if v := r.URL.Query().Get(key); v != "" {
			return v
		}
	}
	return ""
}

func orAll(s string) string {
	if s == "" {
		return unboundedTxt
	}
	return s
}

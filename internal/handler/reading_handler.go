package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"SoilMonitorAPI/internal/logger"
	"SoilMonitorAPI/internal/models"
	"SoilMonitorAPI/internal/service"

	"github.com/gorilla/mux"
)

const maxReadingBody = 1 << 20

// RouteIngestReading names the device ingestion route so auth can tell it apart.
const RouteIngestReading = "ingest-reading"

// CycleRunner runs one ingestion cycle. *service.IngestionLoop implements it.
type CycleRunner interface {
	RunCycle(ctx context.Context, reading models.Reading) (*service.CycleResult, error)
}

type ReadingHandler struct {
	readings service.IReadingService
	ingest   CycleRunner
	log      *logger.Logger
}

func NewReadingHandler(readings service.IReadingService, ingest CycleRunner, log *logger.Logger) *ReadingHandler {
	return &ReadingHandler{
		readings: readings,
		ingest:   ingest,
		log:      log,
	}
}

func (h *ReadingHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/readings", h.GetRecent).Methods("GET")
	r.HandleFunc("/readings/latest", h.GetLatest).Methods("GET")
	r.HandleFunc("/readings/sensor/{sensor_id}", h.GetBySensor).Methods("GET")
}

// RegisterIngestRoutes mounts device ingestion under the RouteIngestReading name.
func (h *ReadingHandler) RegisterIngestRoutes(r *mux.Router) {
	r.HandleFunc("/readings", h.Ingest).Methods("POST").Name(RouteIngestReading)
}

func (h *ReadingHandler) GetRecent(w http.ResponseWriter, r *http.Request) {
	readings, err := h.readings.GetRecent(r.Context(), queryInt(r, "limit", 100))
	if err != nil {
		h.log.Error("Failed to get readings: %v", err)
		respondAppError(w, err, "Failed to fetch sensor data")
		return
	}

	respondJSON(w, http.StatusOK, nonNil(readings))
}

func (h *ReadingHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	readings, err := h.readings.GetLatestPerSensor(r.Context())
	if err != nil {
		h.log.Error("Failed to get latest readings: %v", err)
		respondAppError(w, err, "Failed to fetch latest data")
		return
	}

	respondJSON(w, http.StatusOK, nonNil(readings))
}

func (h *ReadingHandler) GetBySensor(w http.ResponseWriter, r *http.Request) {
	sensorID := mux.Vars(r)["sensor_id"]

	readings, err := h.readings.GetBySensor(r.Context(), sensorID, queryInt(r, "limit", 50))
	if err != nil {
		h.log.Error("Failed to get readings for sensor %s: %v", sensorID, err)
		respondAppError(w, err, "Failed to fetch sensor data")
		return
	}

	respondJSON(w, http.StatusOK, nonNil(readings))
}

// Ingest runs one evaluation cycle on a posted reading. A cycle that stored the
// reading answers 201 even if some alerts could not be persisted.
func (h *ReadingHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var reading models.Reading
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxReadingBody)).Decode(&reading); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// A client that disconnects mid-cycle must not cut off the cycle's store writes.
	result, err := h.ingest.RunCycle(context.WithoutCancel(r.Context()), reading)
	if result == nil {
		respondAppError(w, err, "Failed to store reading")
		return
	}
	if err != nil {
		h.log.Warn("Reading %d from %s stored with alert errors: %v", result.Reading.ID, result.Reading.SensorID, err)
	}
	if result.Alerts == nil {
		result.Alerts = []models.Alert{}
	}

	respondJSON(w, http.StatusCreated, result)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

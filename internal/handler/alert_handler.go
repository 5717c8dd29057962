package handler

import (
	"context"
	"net/http"
	"strconv"

	"SoilMonitorAPI/internal/live"
	"SoilMonitorAPI/internal/logger"
	"SoilMonitorAPI/internal/models"
	"SoilMonitorAPI/internal/service"

	"github.com/gorilla/mux"
)

// StatusComputer is implemented by *service.StatusAggregator.
type StatusComputer interface {
	ComputeStatus(ctx context.Context) (models.SystemStatus, error)
}

type AlertHandler struct {
	alertService service.IAlertService
	status       StatusComputer
	publisher    service.Publisher
	log          *logger.Logger
}

func NewAlertHandler(alertService service.IAlertService, status StatusComputer, publisher service.Publisher, log *logger.Logger) *AlertHandler {
	return &AlertHandler{
		alertService: alertService,
		status:       status,
		publisher:    publisher,
		log:          log,
	}
}

func (h *AlertHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/alerts", h.GetAlerts).Methods("GET")
	r.HandleFunc("/alerts/system-status", h.GetSystemStatus).Methods("GET")
	r.HandleFunc("/alerts/read-all", h.MarkAllRead).Methods("PATCH")
	r.HandleFunc("/alerts/{id}/read", h.MarkRead).Methods("PATCH")
}

func (h *AlertHandler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	includeRead := queryBool(r, false, "include_read", "includeRead")

	alerts, err := h.alertService.ListAlerts(r.Context(), limit, includeRead)
	if err != nil {
		h.log.Error("Failed to get alerts: %v", err)
		respondAppError(w, err, "Failed to fetch alerts")
		return
	}

	respondJSON(w, http.StatusOK, nonNil(alerts))
}

func (h *AlertHandler) GetSystemStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.status.ComputeStatus(r.Context())
	if err != nil {
		h.log.Error("Failed to get system status: %v", err)
		respondAppError(w, err, "Failed to get system status")
		return
	}

	respondJSON(w, http.StatusOK, status)
}

func (h *AlertHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "Invalid alert ID")
		return
	}

	alert, err := h.alertService.MarkRead(r.Context(), id)
	if err != nil {
		h.log.Error("Failed to mark alert %d as read: %v", id, err)
		respondAppError(w, err, "Failed to update alert")
		return
	}

	h.publishStatus(r.Context())
	respondJSON(w, http.StatusOK, alert)
}

func (h *AlertHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	count, err := h.alertService.MarkAllRead(r.Context())
	if err != nil {
		h.log.Error("Failed to mark all alerts as read: %v", err)
		respondAppError(w, err, "Failed to update alerts")
		return
	}

	if count > 0 {
		h.publishStatus(r.Context())
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "All alerts marked as read",
		"updated": count,
	})
}

// publishStatus tells live subscribers that acknowledgement changed the status.
func (h *AlertHandler) publishStatus(ctx context.Context) {
	if h.publisher == nil {
		return
	}
	status, err := h.status.ComputeStatus(ctx)
	if err != nil {
		h.log.Warn("Status not broadcast after acknowledgement: %v", err)
		return
	}
	h.publisher.Publish(live.StatusChanged{Status: status})
}

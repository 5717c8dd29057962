package handler

import (
	"context"
	"net/http"
	"time"

	"SoilMonitorAPI/internal/logger"
	"SoilMonitorAPI/internal/models"

	"github.com/gorilla/mux"
)

// StoreChecker is implemented by *database.Database.
type StoreChecker interface {
	Health(ctx context.Context) error
}

// BrokerChecker is implemented by *mqtt.Client.
type BrokerChecker interface {
	IsConnected() bool
}

// SubscriberCounter is implemented by *live.Hub.
type SubscriberCounter interface {
	SubscriberCount() int
}

// HealthHandler reports dependency health. A nil store means the in-memory store and a
// nil broker means MQTT ingestion is not used; neither then affects the verdict.
type HealthHandler struct {
	store  StoreChecker
	broker BrokerChecker
	hub    SubscriberCounter
	log    *logger.Logger
}

func NewHealthHandler(store StoreChecker, broker BrokerChecker, hub SubscriberCounter, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		store:  store,
		broker: broker,
		hub:    hub,
		log:    log,
	}
}

func (h *HealthHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.Health).Methods("GET")
	r.HandleFunc("/health/live", h.Liveness).Methods("GET")
	r.HandleFunc("/health/ready", h.Readiness).Methods("GET")
}

func (h *HealthHandler) check(ctx context.Context) (storeOK, brokerOK bool, storeErr error) {
	storeOK = true
	if h.store != nil {
		storeErr = h.store.Health(ctx)
		storeOK = storeErr == nil
	}
	brokerOK = h.broker == nil || h.broker.IsConnected()
	return storeOK, brokerOK, storeErr
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := models.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
	}

	storeOK, brokerOK, _ := h.check(ctx)
	response.Services.Store = storeOK
	response.Services.MQTT = h.broker != nil && brokerOK
	if h.hub != nil {
		response.Services.Subscribers = h.hub.SubscriberCount()
	}

	statusCode := http.StatusOK
	if !storeOK || !brokerOK {
		response.Status = "degraded"
		statusCode = http.StatusServiceUnavailable
		h.log.Warn("Health check degraded - store: %v, MQTT: %v", storeOK, brokerOK)
	}

	respondJSON(w, statusCode, response)
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "alive",
	})
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	storeOK, brokerOK, storeErr := h.check(ctx)
	if !storeOK || !brokerOK {
		h.log.Warn("Readiness check failed - store error: %v, MQTT connected: %v", storeErr, brokerOK)
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// Package live fans pipeline events out to every connected subscriber.
package live

import (
	"fmt"

	"SoilMonitorAPI/internal/models"
)

const (
	EventReadingCreated = "reading-created"
	EventAlertsCreated  = "alerts-created"
	EventStatusChanged  = "status-changed"
	EventSnapshot       = "snapshot"
)

// Event is one of ReadingCreated, AlertsCreated, StatusChanged or Snapshot.
type Event interface {
	Kind() string
	isEvent()
}

type ReadingCreated struct {
	Reading models.Reading
}

// AlertsCreated carries every alert persisted in a single ingestion cycle.
type AlertsCreated struct {
	Alerts []models.Alert
}

type StatusChanged struct {
	Status models.SystemStatus
}

// Snapshot is sent once to each subscriber when it connects.
type Snapshot struct {
	Readings []models.Reading   `json:"readings"`
	Status   models.SystemStatus `json:"status"`
}

func (ReadingCreated) Kind() string { return EventReadingCreated }
func (AlertsCreated) Kind() string  { return EventAlertsCreated }
func (StatusChanged) Kind() string  { return EventStatusChanged }
func (Snapshot) Kind() string       { return EventSnapshot }

func (ReadingCreated) isEvent() {}
func (AlertsCreated) isEvent()  {}
func (StatusChanged) isEvent()  {}
func (Snapshot) isEvent()       {}

// Message is the wire envelope written to transports.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

func Encode(ev Event) (Message, error) {
	switch e := ev.(type) {
	case ReadingCreated:
		return Message{Type: EventReadingCreated, Payload: e.Reading}, nil
	case AlertsCreated:
		alerts := e.Alerts
		if alerts == nil {
			alerts = []models.Alert{}
		}
		return Message{Type: EventAlertsCreated, Payload: alerts}, nil
	case StatusChanged:
		return Message{Type: EventStatusChanged, Payload: e.Status}, nil
	case Snapshot:
		if e.Readings == nil {
			e.Readings = []models.Reading{}
		}
		return Message{Type: EventSnapshot, Payload: e}, nil
	default:
		return Message{}, fmt.Errorf("unknown event type %T", ev)
	}
}

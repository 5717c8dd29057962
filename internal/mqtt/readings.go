package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	"SoilMonitorAPI/internal/apperr"
	"SoilMonitorAPI/internal/logger"
	"SoilMonitorAPI/internal/models"
	"SoilMonitorAPI/internal/service"
)

// ReadingIngester runs one ingestion cycle. *service.IngestionLoop implements it.
type ReadingIngester interface {
	RunCycle(ctx context.Context, reading models.Reading) (*service.CycleResult, error)
}

// NewReadingHandler decodes device payloads published on soil/sensors/{id}/readings
// and feeds them to the ingestion pipeline. The sensor id falls back to the topic.
func NewReadingHandler(ingest ReadingIngester, log *logger.Logger) MessageHandler {
	return func(topic string, payload []byte) error {
		reading, err := decodeReading(topic, payload)
		if err != nil {
			return err
		}

		// No deadline: a slow store stalls only this message's cycle.
		result, err := ingest.RunCycle(context.Background(), reading)
		if err != nil {
			return fmt.Errorf("ingest reading from %s: %w", reading.SensorID, err)
		}

		log.Debug("Ingested reading %d from %s (%d alerts)", result.Reading.ID, result.Reading.SensorID, len(result.Alerts))
		return nil
	}
}

func decodeReading(topic string, payload []byte) (models.Reading, error) {
	var reading models.Reading
	if err := json.Unmarshal(payload, &reading); err != nil {
		return models.Reading{}, apperr.NewValidation("decode reading", fmt.Sprintf("invalid JSON: %v", err))
	}

	topicSensor := sensorFromTopic(topic)
	switch {
	case reading.SensorID == "":
		reading.SensorID = topicSensor
	case topicSensor != "" && reading.SensorID != topicSensor:
		return models.Reading{}, apperr.NewValidation("decode reading",
			fmt.Sprintf("sensor_id %q does not match topic %q", reading.SensorID, topic))
	}

	return reading, nil
}

// sensorFromTopic returns the segment before the last one, e.g. "sensor_3" for
// soil/sensors/sensor_3/readings.
func sensorFromTopic(topic string) string {
	parts := splitTopic(topic)
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-2]
}

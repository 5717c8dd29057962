package repository

import (
	"context"
	"strings"
	"time"

	"SoilMonitorAPI/internal/apperr"
	"SoilMonitorAPI/internal/models"

	"github.com/jmoiron/sqlx"
)

// IReadingRepository is the append-only reading store.
type IReadingRepository interface {
	Insert(ctx context.Context, reading *models.Reading) error
	GetRecent(ctx context.Context, limit int) ([]models.Reading, error)
	GetBySensor(ctx context.Context, sensorID string, limit int) ([]models.Reading, error)
	GetLatestPerSensor(ctx context.Context) ([]models.Reading, error)
	QueryRange(ctx context.Context, q models.ReadingRangeQuery) ([]models.Reading, error)
}

type readingRow struct {
	ID           int64     `db:"id"`
	SensorID     string    `db:"sensor_id"`
	LocationName string    `db:"location_name"`
	LocationLat  float64   `db:"location_lat"`
	LocationLng  float64   `db:"location_lng"`
	SoilMoisture int       `db:"soil_moisture"`
	Temperature  float64   `db:"temperature"`
	Humidity     int       `db:"humidity"`
	PHLevel      float64   `db:"ph_level"`
	Nitrogen     int       `db:"nitrogen"`
	Phosphorus   int       `db:"phosphorus"`
	Potassium    int       `db:"potassium"`
	BatteryLevel int       `db:"battery_level"`
	Timestamp    time.Time `db:"timestamp"`
}

func newReadingRow(r *models.Reading) readingRow {
	return readingRow{
		SensorID:     r.SensorID,
		LocationName: r.Location.Name,
		LocationLat:  r.Location.Lat,
		LocationLng:  r.Location.Lng,
		SoilMoisture: r.SoilMoisture,
		Temperature:  r.Temperature,
		Humidity:     r.Humidity,
		PHLevel:      r.PHLevel,
		Nitrogen:     r.Nitrogen,
		Phosphorus:   r.Phosphorus,
		Potassium:    r.Potassium,
		BatteryLevel: r.BatteryLevel,
		Timestamp:    r.Timestamp,
	}
}

func (row readingRow) model() models.Reading {
	return models.Reading{
		ID:       row.ID,
		SensorID: row.SensorID,
		Location: models.Location{
			Name: row.LocationName,
			Lat:  row.LocationLat,
			Lng:  row.LocationLng,
		},
		SoilMoisture: row.SoilMoisture,
		Temperature:  row.Temperature,
		Humidity:     row.Humidity,
		PHLevel:      row.PHLevel,
		Nitrogen:     row.Nitrogen,
		Phosphorus:   row.Phosphorus,
		Potassium:    row.Potassium,
		BatteryLevel: row.BatteryLevel,
		Timestamp:    row.Timestamp.UTC(),
	}
}

func readingModels(rows []readingRow) []models.Reading {
	out := make([]models.Reading, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.model())
	}
	return out
}

const readingColumns = `
	id, sensor_id, location_name, location_lat, location_lng,
	soil_moisture, temperature, humidity, ph_level,
	nitrogen, phosphorus, potassium, battery_level, timestamp`

type ReadingRepository struct {
	db *sqlx.DB
}

func NewReadingRepository(db *sqlx.DB) *ReadingRepository {
	return &ReadingRepository{db: db}
}

func (r *ReadingRepository) Insert(ctx context.Context, reading *models.Reading) error {
	query := `
		INSERT INTO readings (
			sensor_id, location_name, location_lat, location_lng,
			soil_moisture, temperature, humidity, ph_level,
			nitrogen, phosphorus, potassium, battery_level, timestamp
		) VALUES (
			:sensor_id, :location_name, :location_lat, :location_lng,
			:soil_moisture, :temperature, :humidity, :ph_level,
			:nitrogen, :phosphorus, :potassium, :battery_level, :timestamp
		)
		RETURNING id
	`

	stmt, err := r.db.PrepareNamedContext(ctx, query)
	if err != nil {
		return apperr.NewStoreUnavailable("insert reading", err)
	}
	defer stmt.Close()

	if err := stmt.GetContext(ctx, &reading.ID, newReadingRow(reading)); err != nil {
		return apperr.NewStoreUnavailable("insert reading", err)
	}

	return nil
}

// GetRecent returns the newest readings first.
func (r *ReadingRepository) GetRecent(ctx context.Context, limit int) ([]models.Reading, error) {
	query := `SELECT ` + readingColumns + `
		FROM readings
		ORDER BY timestamp DESC, id DESC
		LIMIT $1`

	var rows []readingRow
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, apperr.NewStoreUnavailable("query recent readings", err)
	}
	return readingModels(rows), nil
}

func (r *ReadingRepository) GetBySensor(ctx context.Context, sensorID string, limit int) ([]models.Reading, error) {
	query := `SELECT ` + readingColumns + `
		FROM readings
		WHERE sensor_id = $1
		ORDER BY timestamp DESC, id DESC
		LIMIT $2`

	var rows []readingRow
	if err := r.db.SelectContext(ctx, &rows, query, sensorID, limit); err != nil {
		return nil, apperr.NewStoreUnavailable("query readings by sensor", err)
	}
	return readingModels(rows), nil
}

// GetLatestPerSensor returns one reading per sensor, the most recent it sent.
func (r *ReadingRepository) GetLatestPerSensor(ctx context.Context) ([]models.Reading, error) {
	query := `SELECT DISTINCT ON (sensor_id) ` + readingColumns + `
		FROM readings
		ORDER BY sensor_id, timestamp DESC, id DESC`

	var rows []readingRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, apperr.NewStoreUnavailable("query latest readings", err)
	}
	return readingModels(rows), nil
}

// QueryRange returns readings inside the optional bounds, newest first, capped at
// models.MaxExportRows.
func (r *ReadingRepository) QueryRange(ctx context.Context, q models.ReadingRangeQuery) ([]models.Reading, error) {
	var (
		conditions []string
		args       []interface{}
	)

	if q.Start != nil {
		args = append(args, *q.Start)
		conditions = append(conditions, "timestamp >= ?")
	}
	if q.End != nil {
		args = append(args, *q.End)
		conditions = append(conditions, "timestamp <= ?")
	}
	if q.SensorID != "" {
		args = append(args, q.SensorID)
		conditions = append(conditions, "sensor_id = ?")
	}

	query := `SELECT ` + readingColumns + ` FROM readings`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY timestamp DESC, id DESC LIMIT ?"
	args = append(args, clampExportLimit(q.Limit))

	var rows []readingRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, apperr.NewStoreUnavailable("query readings by range", err)
	}
	return readingModels(rows), nil
}

func clampExportLimit(limit int) int {
	if limit <= 0 || limit > models.MaxExportRows {
		return models.MaxExportRows
	}
	return limit
}

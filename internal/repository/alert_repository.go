package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"SoilMonitorAPI/internal/apperr"
	"SoilMonitorAPI/internal/models"

	"github.com/jmoiron/sqlx"
)

// IAlertRepository defines the operations for managing soil alerts.
type IAlertRepository interface {
	Insert(ctx context.Context, alert *models.Alert) error
	UnreadCount(ctx context.Context) (int, error)
	GetRecent(ctx context.Context, limit int, includeRead bool) ([]models.Alert, error)
	MarkRead(ctx context.Context, id int64, at time.Time) (*models.Alert, error)
	MarkAllRead(ctx context.Context, at time.Time) (int64, error)
}

type alertRow struct {
	ID             int64           `db:"id"`
	Type           string          `db:"type"`
	Title          string          `db:"title"`
	Message        string          `db:"message"`
	SensorID       string          `db:"sensor_id"`
	Value          float64         `db:"value"`
	ThresholdValue sql.NullFloat64 `db:"threshold_value"`
	ThresholdRange sql.NullString  `db:"threshold_range"`
	Location       string          `db:"location"`
	IsRead         bool            `db:"is_read"`
	CreatedAt      time.Time       `db:"created_at"`
	AcknowledgedAt sql.NullTime    `db:"acknowledged_at"`
}

func newAlertRow(a *models.Alert) alertRow {
	row := alertRow{
		Type:      string(a.Type),
		Title:     a.Title,
		Message:   a.Message,
		SensorID:  a.SensorID,
		Value:     a.Value,
		Location:  a.Location,
		IsRead:    a.IsRead,
		CreatedAt: a.CreatedAt,
	}
	if a.Threshold.IsRange() {
		row.ThresholdRange = sql.NullString{String: a.Threshold.Range, Valid: true}
	} else {
		row.ThresholdValue = sql.NullFloat64{Float64: a.Threshold.Value, Valid: true}
	}
	if a.AcknowledgedAt != nil {
		row.AcknowledgedAt = sql.NullTime{Time: *a.AcknowledgedAt, Valid: true}
	}
	return row
}

func (row alertRow) model() models.Alert {
	a := models.Alert{
		ID: row.ID,
		AlertCandidate: models.AlertCandidate{
			Type:     models.AlertType(row.Type),
			Title:    row.Title,
			Message:  row.Message,
			SensorID: row.SensorID,
			Value:    row.Value,
			Location: row.Location,
		},
		IsRead:    row.IsRead,
		CreatedAt: row.CreatedAt.UTC(),
	}
	if row.ThresholdRange.Valid {
		a.Threshold = models.Threshold{Range: row.ThresholdRange.String}
	} else {
		a.Threshold = models.NumericThreshold(row.ThresholdValue.Float64)
	}
	if row.AcknowledgedAt.Valid {
		t := row.AcknowledgedAt.Time.UTC()
		a.AcknowledgedAt = &t
	}
	return a
}

const alertColumns = `
	id, type, title, message, sensor_id, value,
	threshold_value, threshold_range, location,
	is_read, created_at, acknowledged_at`

type AlertRepository struct {
	db *sqlx.DB
}

func NewAlertRepository(db *sqlx.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Insert stores the alert as given and fills in the generated ID.
func (r *AlertRepository) Insert(ctx context.Context, alert *models.Alert) error {
	query := `
		INSERT INTO alerts (
			type, title, message, sensor_id, value,
			threshold_value, threshold_range, location,
			is_read, created_at, acknowledged_at
		) VALUES (
			:type, :title, :message, :sensor_id, :value,
			:threshold_value, :threshold_range, :location,
			:is_read, :created_at, :acknowledged_at
		)
		RETURNING id
	`

	stmt, err := r.db.PrepareNamedContext(ctx, query)
	if err != nil {
		return apperr.NewStoreUnavailable("insert alert", err)
	}
	defer stmt.Close()

	if err := stmt.GetContext(ctx, &alert.ID, newAlertRow(alert)); err != nil {
		return apperr.NewStoreUnavailable("insert alert", err)
	}

	return nil
}

func (r *AlertRepository) UnreadCount(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM alerts WHERE NOT is_read`); err != nil {
		return 0, apperr.NewStoreUnavailable("count unread alerts", err)
	}
	return count, nil
}

// GetRecent returns alerts ordered by creation time, newest first.
func (r *AlertRepository) GetRecent(ctx context.Context, limit int, includeRead bool) ([]models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts`
	if !includeRead {
		query += ` WHERE NOT is_read`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT $1`

	var rows []alertRow
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, apperr.NewStoreUnavailable("query recent alerts", err)
	}

	alerts := make([]models.Alert, 0, len(rows))
	for _, row := range rows {
		alerts = append(alerts, row.model())
	}
	return alerts, nil
}

// MarkRead sets is_read and acknowledged_at together. Marking an already read alert
// keeps its original acknowledgement time.
func (r *AlertRepository) MarkRead(ctx context.Context, id int64, at time.Time) (*models.Alert, error) {
	query := `
		UPDATE alerts
		SET is_read = TRUE,
		    acknowledged_at = COALESCE(acknowledged_at, $1)
		WHERE id = $2
		RETURNING ` + alertColumns

	var row alertRow
	err := r.db.GetContext(ctx, &row, query, at, id)
	if err == sql.ErrNoRows {
		return nil, apperr.NewNotFound("mark alert read", fmt.Sprintf("alert %d not found", id))
	}
	if err != nil {
		return nil, apperr.NewStoreUnavailable("mark alert read", err)
	}

	alert := row.model()
	return &alert, nil
}

// MarkAllRead acknowledges every unread alert and returns how many changed.
func (r *AlertRepository) MarkAllRead(ctx context.Context, at time.Time) (int64, error) {
	query := `UPDATE alerts SET is_read = TRUE, acknowledged_at = $1 WHERE NOT is_read`

	result, err := r.db.ExecContext(ctx, query, at)
	if err != nil {
		return 0, apperr.NewStoreUnavailable("mark all alerts read", err)
	}

	changed, err := result.RowsAffected()
	if err != nil {
		return 0, apperr.NewStoreUnavailable("mark all alerts read", err)
	}
	return changed, nil
}

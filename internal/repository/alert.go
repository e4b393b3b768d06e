package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shenikar/traffic_incident_system/internal/models"
	"github.com/shenikar/traffic_incident_system/internal/service"
)

const alertColumns = `
	id,
	incident_id,
	channel,
	audience,
	ST_Y(area::geometry) AS area_latitude,
	ST_X(area::geometry) AS area_longitude,
	area_name,
	area_radius_meters,
	title,
	message,
	sent_at,
	delivered_count,
	read_count
`

// AlertRepository хранит оповещения. После вставки меняются только счетчики.
type AlertRepository struct {
	db *pgxpool.Pool
}

func NewAlertRepository(db *pgxpool.Pool) service.AlertRepository {
	return &AlertRepository{db: db}
}

func scanAlert(row rowScanner) (*models.Alert, error) {
	var (
		alert    models.Alert
		lat, lon *float64
		areaName string
	)
	err := row.Scan(
		&alert.ID,
		&alert.IncidentID,
		&alert.Channel,
		&alert.Audience,
		&lat,
		&lon,
		&areaName,
		&alert.AreaRadiusMeters,
		&alert.Title,
		&alert.Message,
		&alert.SentAt,
		&alert.DeliveredCount,
		&alert.ReadCount,
	)
	if err != nil {
		return nil, err
	}
	if lat != nil && lon != nil {
		alert.Area = &models.Location{Latitude: *lat, Longitude: *lon, Name: areaName}
	}
	return &alert, nil
}

// Create сохраняет оповещение
func (r *AlertRepository) Create(ctx context.Context, alert *models.Alert) error {
	var (
		lat, lon *float64
		areaName string
	)
	if alert.Area != nil {
		lat, lon = &alert.Area.Latitude, &alert.Area.Longitude
		areaName = alert.Area.Name
	}

	query := `
		INSERT INTO alerts (
			id, incident_id, channel, audience, area, area_name, area_radius_meters,
			title, message, sent_at, delivered_count, read_count
		)
		VALUES (
			$1, $2, $3, $4, ST_SetSRID(ST_MakePoint($5, $6), 4326)::geography, $7, $8,
			$9, $10, $11, $12, $13
		);
	`
	_, err := r.db.Exec(ctx, query,
		alert.ID,
		alert.IncidentID,
		string(alert.Channel),
		string(alert.Audience),
		lon,
		lat,
		areaName,
		alert.AreaRadiusMeters,
		alert.Title,
		alert.Message,
		alert.SentAt,
		alert.DeliveredCount,
		alert.ReadCount,
	)
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

// List возвращает страницу оповещений, новые первыми. incidentID ограничивает выборку одним инцидентом.
func (r *AlertRepository) List(ctx context.Context, offset, limit int, incidentID *uuid.UUID) ([]*models.Alert, error) {
	query := `SELECT ` + alertColumns + `
		FROM alerts
		WHERE ($1::uuid IS NULL OR incident_id = $1)
		ORDER BY sent_at DESC, id DESC
		LIMIT $2 OFFSET $3;
	`
	rows, err := r.db.Query(ctx, query, incidentID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]*models.Alert, 0)
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert row: %w", err)
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error alert list iteration: %w", err)
	}
	return alerts, nil
}

func (r *AlertRepository) IncrementDelivered(ctx context.Context, id uuid.UUID) (*models.Alert, error) {
	return r.increment(ctx, id, "delivered_count")
}

func (r *AlertRepository) IncrementRead(ctx context.Context, id uuid.UUID) (*models.Alert, error) {
	return r.increment(ctx, id, "read_count")
}

// increment увеличивает счетчик одним UPDATE, без чтения перед записью.
// column задается только вызывающими методами выше.
func (r *AlertRepository) increment(ctx context.Context, id uuid.UUID, column string) (*models.Alert, error) {
	query := fmt.Sprintf(`
		UPDATE alerts SET %[1]s = %[1]s + 1
		WHERE id = $1
		RETURNING %[2]s;
	`, column, alertColumns)

	alert, err := scanAlert(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("alert with id %s: %w", id, service.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to increment alert %s: %w", column, err)
	}
	return alert, nil
}

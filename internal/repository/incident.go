package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/shenikar/traffic_incident_system/internal/models"
	"github.com/shenikar/traffic_incident_system/internal/service"
)

const incidentColumns = `
	id,
	type,
	severity,
	ST_Y(location::geometry) AS latitude,
	ST_X(location::geometry) AS longitude,
	location_name,
	description,
	confidence_score,
	vehicle_count,
	status,
	evidence_ref,
	thumbnail_ref,
	camera_id,
	reported_by,
	verified_by,
	created_at,
	updated_at,
	resolved_at,
	observed_at,
	COALESCE(idempotency_key, '') AS idempotency_key
`

// uniqueViolation - код ошибки PostgreSQL при нарушении уникального индекса
const uniqueViolation = "23505"

// setIfNewerScript записывает инцидент в кеш, только если в кеше нет версии новее.
// KEYS[1] - ключ инцидента, KEYS[2] - ключ версии (updated_at в микросекундах).
var setIfNewerScript = redis.NewScript(`
local current = redis.call('GET', KEYS[2])
if current and tonumber(current) > tonumber(ARGV[2]) then
	return 0
end
local ttl = tonumber(ARGV[3])
if ttl > 0 then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ttl)
	redis.call('SET', KEYS[2], ARGV[2], 'PX', ttl)
else
	redis.call('SET', KEYS[1], ARGV[1])
	redis.call('SET', KEYS[2], ARGV[2])
end
return 1
`)

type IncidentRepository struct {
	db          *pgxpool.Pool
	redisClient *redis.Client
	cacheTTL    time.Duration
}

func NewIncidentRepository(db *pgxpool.Pool, redisClient *redis.Client, cacheTTL time.Duration) service.IncidentRepository {
	return &IncidentRepository{
		db:          db,
		redisClient: redisClient,
		cacheTTL:    cacheTTL,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIncident(row rowScanner) (*models.Incident, error) {
	incident := &models.Incident{}
	err := row.Scan(
		&incident.ID,
		&incident.Type,
		&incident.Severity,
		&incident.Location.Latitude,
		&incident.Location.Longitude,
		&incident.Location.Name,
		&incident.Description,
		&incident.ConfidenceScore,
		&incident.VehicleCount,
		&incident.Status,
		&incident.EvidenceRef,
		&incident.ThumbnailRef,
		&incident.CameraID,
		&incident.ReportedBy,
		&incident.VerifiedBy,
		&incident.CreatedAt,
		&incident.UpdatedAt,
		&incident.ResolvedAt,
		&incident.ObservedAt,
		&incident.IdempotencyKey,
	)
	if err != nil {
		return nil, err
	}
	return incident, nil
}

func collectIncidents(rows pgx.Rows) ([]*models.Incident, error) {
	defer rows.Close()

	incidents := make([]*models.Incident, 0)
	for rows.Next() {
		incident, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan incident row: %w", err)
		}
		incidents = append(incidents, incident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error list iteration: %w", err)
	}
	return incidents, nil
}

// Create создает новую запись об инциденте в бд
func (r *IncidentRepository) Create(ctx context.Context, incident *models.Incident) error {
	query := `
		INSERT INTO incidents (
			id, type, severity, location, location_name, description, confidence_score,
			vehicle_count, status, evidence_ref, thumbnail_ref, camera_id, reported_by,
			verified_by, created_at, updated_at, resolved_at, observed_at, idempotency_key
		)
		VALUES (
			$1, $2, $3, ST_SetSRID(ST_MakePoint($4, $5), 4326)::geography, $6, $7, $8,
			$9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, NULLIF($20, '')
		);
	`
	_, err := r.db.Exec(ctx, query,
		incident.ID,
		string(incident.Type),
		string(incident.Severity),
		incident.Location.Longitude,
		incident.Location.Latitude,
		incident.Location.Name,
		incident.Description,
		incident.ConfidenceScore,
		incident.VehicleCount,
		string(incident.Status),
		incident.EvidenceRef,
		incident.ThumbnailRef,
		incident.CameraID,
		incident.ReportedBy,
		incident.VerifiedBy,
		incident.CreatedAt,
		incident.UpdatedAt,
		incident.ResolvedAt,
		incident.ObservedAt,
		incident.IdempotencyKey,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("incident with idempotency key %q already exists: %w", incident.IdempotencyKey, service.ErrConflict)
		}
		return fmt.Errorf("failed to create incident: %w", err)
	}
	return nil
}

// GetByID возвращает инцидент по его UUID
func (r *IncidentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE id = $1;`

	incident, err := scanIncident(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("incident with id %s: %w", id, service.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get incident by id: %w", err)
	}
	return incident, nil
}

// GetByIdempotencyKey возвращает инцидент, созданный с ключом идемпотентности key
func (r *IncidentRepository) GetByIdempotencyKey(ctx context.Context, key string) (*models.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE idempotency_key = $1;`

	incident, err := scanIncident(r.db.QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("incident with idempotency key %q: %w", key, service.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get incident by idempotency key: %w", err)
	}
	return incident, nil
}

// List возвращает страницу инцидентов. Порядок created_at DESC, id DESC стабилен между страницами.
func (r *IncidentRepository) List(ctx context.Context, filter models.IncidentFilter) ([]*models.Incident, error) {
	query := `SELECT ` + incidentColumns + `
		FROM incidents
		WHERE ($1::text = '' OR status = $1)
			AND ($2::text = '' OR type = $2)
			AND ($3::text = '' OR severity = $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4 OFFSET $5;
	`
	rows, err := r.db.Query(ctx, query,
		string(filter.Status),
		string(filter.Type),
		string(filter.Severity),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}
	return collectIncidents(rows)
}

// UpdateStatus сохраняет переход статуса, только если статус в бд все еще prev
func (r *IncidentRepository) UpdateStatus(ctx context.Context, incident *models.Incident, prev models.Status) error {
	query := `
		UPDATE incidents SET
			status = $1,
			verified_by = $2,
			resolved_at = $3,
			updated_at = $4
		WHERE id = $5 AND status = $6;
	`
	cmdTag, err := r.db.Exec(ctx, query,
		string(incident.Status),
		incident.VerifiedBy,
		incident.ResolvedAt,
		incident.UpdatedAt,
		incident.ID,
		string(prev),
	)
	if err != nil {
		return fmt.Errorf("failed to update incident status: %w", err)
	}

	// Ни одной строки: либо инцидента нет, либо статус уже изменил другой запрос
	if cmdTag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM incidents WHERE id = $1);`, incident.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check incident existence: %w", err)
		}
		if !exists {
			return fmt.Errorf("incident with id %s: %w", incident.ID, service.ErrNotFound)
		}
		return fmt.Errorf("incident with id %s is no longer %s: %w", incident.ID, prev, service.ErrConflict)
	}
	return nil
}

// FindActiveNearby находит незакрытые инциденты в радиусе от точки, ближайшие первыми
func (r *IncidentRepository) FindActiveNearby(ctx context.Context, lat, lon float64, radiusMeters int) ([]*models.Incident, error) {
	query := `SELECT ` + incidentColumns + `
		FROM incidents
		WHERE
			status IN ('reported', 'verified', 'in_progress')
			AND ST_DWithin(
				location,
				ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography,
				$3
			)
		ORDER BY ST_Distance(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography), id;
	`
	rows, err := r.db.Query(ctx, query, lon, lat, radiusMeters)
	if err != nil {
		return nil, fmt.Errorf("failed to find active incidents by location: %w", err)
	}
	return collectIncidents(rows)
}

// CountByStatus возвращает количество инцидентов по статусам, созданных не раньше since
func (r *IncidentRepository) CountByStatus(ctx context.Context, since time.Time) (map[models.Status]int, error) {
	query := `
		SELECT status, COUNT(*)
		FROM incidents
		WHERE created_at >= $1
		GROUP BY status;
	`
	rows, err := r.db.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count incidents by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Status]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan incident stats row: %w", err)
		}
		counts[models.Status(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error stats iteration: %w", err)
	}
	return counts, nil
}

func incidentCacheKey(id uuid.UUID) string {
	return fmt.Sprintf("incident:%s", id.String())
}

func incidentVersionKey(id uuid.UUID) string {
	return fmt.Sprintf("incident:%s:version", id.String())
}

// GetIncidentFromCache пытается получить инцидент из Redis. Промах кеша - (nil, nil).
func (r *IncidentRepository) GetIncidentFromCache(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	val, err := r.redisClient.Get(ctx, incidentCacheKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get incident from cache: %w", err)
	}

	incident := &models.Incident{}
	if err := json.Unmarshal(val, incident); err != nil {
		return nil, fmt.Errorf("failed to unmarshal incident from cache: %w", err)
	}
	return incident, nil
}

// SetIncidentCache сохраняет инцидент в Redis. Версия с более поздним updated_at не перезаписывается.
func (r *IncidentRepository) SetIncidentCache(ctx context.Context, incident *models.Incident) error {
	val, err := json.Marshal(incident)
	if err != nil {
		return fmt.Errorf("failed to marshal incident for cache: %w", err)
	}
	keys := []string{incidentCacheKey(incident.ID), incidentVersionKey(incident.ID)}
	err = setIfNewerScript.Run(ctx, r.redisClient, keys, val, incident.UpdatedAt.UnixMicro(), r.cacheTTL.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("failed to set incident in cache: %w", err)
	}
	return nil
}

// InvalidateIncidentCache удаляет инцидент и его версию из Redis кэша
func (r *IncidentRepository) InvalidateIncidentCache(ctx context.Context, id uuid.UUID) error {
	if err := r.redisClient.Del(ctx, incidentCacheKey(id), incidentVersionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate incident cache: %w", err)
	}
	return nil
}

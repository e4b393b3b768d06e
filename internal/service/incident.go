package service

//go:generate mockgen -source=incident.go -destination=mocks/mock_incident.go -package=mocks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/shenikar/traffic_incident_system/internal/config"
	"github.com/shenikar/traffic_incident_system/internal/models"
)

const (
	defaultListLimit    = 20
	maxListLimit        = 100
	defaultNearbyRadius = 1000
	maxNearbyRadius     = 50000
)

// IncidentRepository определяет контракт для работы с бд инцидентов.
// GetByID и UpdateStatus возвращают ErrNotFound, UpdateStatus - ErrConflict при несовпадении статуса.
type IncidentRepository interface {
	// Create возвращает ErrConflict, если инцидент с тем же IdempotencyKey уже сохранен
	Create(ctx context.Context, incident *models.Incident) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*models.Incident, error)
	List(ctx context.Context, filter models.IncidentFilter) ([]*models.Incident, error)
	// UpdateStatus сохраняет поля перехода, только если текущий статус в бд равен prev
	UpdateStatus(ctx context.Context, incident *models.Incident, prev models.Status) error
	FindActiveNearby(ctx context.Context, lat, lon float64, radiusMeters int) ([]*models.Incident, error)
	CountByStatus(ctx context.Context, since time.Time) (map[models.Status]int, error)

	GetIncidentFromCache(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	// SetIncidentCache не заменяет закешированную версию с более поздним UpdatedAt
	SetIncidentCache(ctx context.Context, incident *models.Incident) error
	InvalidateIncidentCache(ctx context.Context, id uuid.UUID) error
}

// AlertDispatcher рассылает оповещения по событию жизненного цикла инцидента
type AlertDispatcher interface {
	Dispatch(ctx context.Context, incident *models.Incident, trigger models.AlertTrigger) ([]*models.Alert, error)
}

// IncidentService определяет контракт для бизнес-логики управления инцидентами
type IncidentService interface {
	CreateIncident(ctx context.Context, incident *models.Incident) error
	GetIncident(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	ListIncidents(ctx context.Context, filter models.IncidentFilter) ([]*models.Incident, error)
	TransitionIncident(ctx context.Context, id uuid.UUID, target models.Status, actorID uuid.UUID) (*models.Incident, error)
	FindNearby(ctx context.Context, lat, lon float64, radiusMeters int) ([]*models.Incident, error)
	GetStats(ctx context.Context) (*models.IncidentStats, error)
}

type incidentService struct {
	repo    IncidentRepository
	alerts  AlertDispatcher
	machine *StateMachine
	logger  *logrus.Logger
	cfg     *config.Config
	now     func() time.Time
}

// NewIncidentService создает сервис. alerts может быть nil, тогда оповещения не рассылаются.
func NewIncidentService(repo IncidentRepository, logger *logrus.Logger, cfg *config.Config, alerts AlertDispatcher) IncidentService {
	return &incidentService{
		repo:    repo,
		alerts:  alerts,
		machine: NewStateMachine(cfg.AllowStatusSkip),
		logger:  logger,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateIncident проверяет и сохраняет инцидент в статусе reported.
// Повтор с уже известным IdempotencyKey возвращает сохраненный инцидент без повторной рассылки.
func (s *incidentService) CreateIncident(ctx context.Context, incident *models.Incident) error {
	log := s.logger.WithFields(logrus.Fields{
		"service":   "incident",
		"method":    "CreateIncident",
		"type":      incident.Type,
		"severity":  incident.Severity,
		"camera_id": incident.CameraID,
	})
	log.Info("Attempting to create a new incident")

	if err := validateIncident(incident); err != nil {
		log.WithError(err).Warn("Incident validation failed")
		return err
	}

	now := s.now()
	if incident.ID == uuid.Nil {
		incident.ID = uuid.New()
	}
	incident.Status = models.StatusReported
	incident.VerifiedBy = nil
	incident.ResolvedAt = nil
	incident.CreatedAt = now
	incident.UpdatedAt = now
	if incident.ObservedAt.IsZero() {
		incident.ObservedAt = now
	}

	if incident.IdempotencyKey != "" {
		replayed, err := s.replay(ctx, incident)
		if err != nil {
			log.WithError(err).Error("Failed to look up incident by idempotency key")
			return fmt.Errorf("service: could not create incident: %w", storageError(err))
		}
		if replayed {
			log.WithField("incident_id", incident.ID).Info("Incident already reported, returning existing record")
			return nil
		}
	}

	if err := s.repo.Create(ctx, incident); err != nil {
		// Параллельный повтор успел сохранить то же наблюдение
		if incident.IdempotencyKey != "" && errors.Is(err, ErrConflict) {
			if replayed, lookupErr := s.replay(ctx, incident); lookupErr == nil && replayed {
				log.WithField("incident_id", incident.ID).Info("Incident already reported, returning existing record")
				return nil
			}
		}
		log.WithError(err).Error("Failed to create incident in repository")
		return fmt.Errorf("service: could not create incident: %w", storageError(err))
	}

	log.WithField("incident_id", incident.ID).Info("Incident created successfully")
	s.dispatch(ctx, incident, models.TriggerCreated)
	return nil
}

// replay подменяет incident уже сохраненным инцидентом с тем же ключом идемпотентности
func (s *incidentService) replay(ctx context.Context, incident *models.Incident) (bool, error) {
	existing, err := s.repo.GetByIdempotencyKey(ctx, incident.IdempotencyKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	*incident = *existing
	return true, nil
}

// GetIncident получает инцидент по ID, сначала из кеша
func (s *incidentService) GetIncident(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "GetIncident",
		"incident_id": id,
	})
	log.Info("Fetching incident by ID")

	cached, err := s.repo.GetIncidentFromCache(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Failed to read incident from cache")
	}
	if cached != nil {
		log.Debug("Incident found in cache")
		return cached, nil
	}

	incident, err := s.repo.GetByID(ctx, id)
	if err != nil {
		log.WithError(err).Error("Failed to get incident in repository")
		return nil, fmt.Errorf("service: could not get incident: %w", storageError(err))
	}

	if err := s.repo.SetIncidentCache(ctx, incident); err != nil {
		log.WithError(err).Warn("Failed to cache incident")
	}

	log.Info("Incident fetched successfully")
	return incident, nil
}

// ListIncidents возвращает страницу инцидентов, новые первыми
func (s *incidentService) ListIncidents(ctx context.Context, filter models.IncidentFilter) ([]*models.Incident, error) {
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.Limit < 1 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}

	log := s.logger.WithFields(logrus.Fields{
		"service": "incident",
		"method":  "ListIncidents",
		"offset":  filter.Offset,
		"limit":   filter.Limit,
	})
	log.Info("Listing incidents")

	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("service: unknown status filter %q: %w", filter.Status, ErrValidation)
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, fmt.Errorf("service: unknown type filter %q: %w", filter.Type, ErrValidation)
	}
	if filter.Severity != "" && !filter.Severity.Valid() {
		return nil, fmt.Errorf("service: unknown severity filter %q: %w", filter.Severity, ErrValidation)
	}

	incidents, err := s.repo.List(ctx, filter)
	if err != nil {
		log.WithError(err).Error("Failed to list incidents from repository")
		return nil, fmt.Errorf("service: could not list incidents: %w", storageError(err))
	}

	log.WithField("count", len(incidents)).Info("Incidents listed successfully")
	return incidents, nil
}

// TransitionIncident переводит инцидент в статус target от имени actorID.
// Недопустимый переход возвращает ErrInvalidTransition и не меняет запись.
func (s *incidentService) TransitionIncident(ctx context.Context, id uuid.UUID, target models.Status, actorID uuid.UUID) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "TransitionIncident",
		"incident_id": id,
		"target":      target,
		"actor_id":    actorID,
	})
	log.Info("Attempting to transition incident")

	if actorID == uuid.Nil {
		return nil, fmt.Errorf("service: actor is required: %w", ErrValidation)
	}
	if !target.Valid() {
		return nil, fmt.Errorf("service: unknown status %q: %w", target, ErrValidation)
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Attempted to transition a non-existent incident")
		return nil, fmt.Errorf("service: could not get incident %s: %w", id, storageError(err))
	}

	if !s.machine.CanTransition(current.Status, target) {
		log.WithField("current", current.Status).Warn("Rejected status transition")
		return nil, fmt.Errorf("service: %s -> %s: %w", current.Status, target, ErrInvalidTransition)
	}

	now := s.now()
	updated := *current
	updated.Status = target
	updated.UpdatedAt = now
	// Переход мимо reported (кроме отклонения) означает подтверждение инцидента
	if updated.VerifiedBy == nil && target != models.StatusFalsePositive {
		actor := actorID
		updated.VerifiedBy = &actor
	}
	if target == models.StatusResolved {
		updated.ResolvedAt = &now
	}

	if err := s.repo.UpdateStatus(ctx, &updated, current.Status); err != nil {
		log.WithError(err).Warn("Failed to persist status transition")
		return nil, fmt.Errorf("service: could not transition incident %s: %w", id, storageError(err))
	}

	// Новая версия сразу попадает в кеш: параллельное чтение со старой версией из бд ее не перезапишет
	if err := s.repo.SetIncidentCache(ctx, &updated); err != nil {
		log.WithError(err).Warn("Failed to cache transitioned incident")
		if err := s.repo.InvalidateIncidentCache(ctx, id); err != nil {
			log.WithError(err).Warn("Failed to invalidate incident cache")
		}
	}

	log.WithField("previous", current.Status).Info("Incident transitioned successfully")
	s.dispatch(ctx, &updated, models.TriggerForStatus(target))
	return &updated, nil
}

// FindNearby находит активные инциденты в радиусе от точки
func (s *incidentService) FindNearby(ctx context.Context, lat, lon float64, radiusMeters int) ([]*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "incident",
		"method":  "FindNearby",
	})
	log.Info("Searching active incidents nearby")

	if !validCoordinates(lat, lon) {
		return nil, fmt.Errorf("service: coordinates out of range: %w", ErrValidation)
	}
	if radiusMeters <= 0 {
		radiusMeters = defaultNearbyRadius
	}
	if radiusMeters > maxNearbyRadius {
		radiusMeters = maxNearbyRadius
	}

	incidents, err := s.repo.FindActiveNearby(ctx, lat, lon, radiusMeters)
	if err != nil {
		log.WithError(err).Error("Failed to find active incidents by location")
		return nil, fmt.Errorf("service: failed to find active incidents: %w", storageError(err))
	}

	log.WithField("count", len(incidents)).Info("Nearby search completed")
	return incidents, nil
}

// GetStats возвращает число инцидентов по статусам за последние StatsTimeWindowMinutes минут
func (s *incidentService) GetStats(ctx context.Context) (*models.IncidentStats, error) {
	window := s.cfg.StatsTimeWindowMinutes
	log := s.logger.WithFields(logrus.Fields{
		"service":        "incident",
		"method":         "GetStats",
		"window_minutes": window,
	})

	counts, err := s.repo.CountByStatus(ctx, s.now().Add(-time.Duration(window)*time.Minute))
	if err != nil {
		log.WithError(err).Error("Failed to get incident stats from repository")
		return nil, fmt.Errorf("service: could not get stats: %w", storageError(err))
	}

	stats := &models.IncidentStats{
		WindowMinutes: window,
		ByStatus:      make(map[models.Status]int, len(models.Statuses)),
	}
	for _, status := range models.Statuses {
		stats.ByStatus[status] = counts[status]
		stats.Total += counts[status]
	}
	return stats, nil
}

// dispatch рассылает оповещения. Ошибки рассылки не отменяют операцию над инцидентом.
func (s *incidentService) dispatch(ctx context.Context, incident *models.Incident, trigger models.AlertTrigger) {
	if s.alerts == nil {
		return
	}
	alerts, err := s.alerts.Dispatch(ctx, incident, trigger)
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"incident_id": incident.ID,
		"trigger":     trigger,
		"alerts":      len(alerts),
	})
	if err != nil {
		log.WithError(err).Error("Failed to dispatch alerts")
		return
	}
	log.Debug("Alerts dispatched")
}

func validateIncident(incident *models.Incident) error {
	if !incident.Type.Valid() {
		return fmt.Errorf("service: unknown incident type %q: %w", incident.Type, ErrValidation)
	}
	if !incident.Severity.Valid() {
		return fmt.Errorf("service: unknown severity %q: %w", incident.Severity, ErrValidation)
	}
	if !validCoordinates(incident.Location.Latitude, incident.Location.Longitude) {
		return fmt.Errorf("service: coordinates out of range: %w", ErrValidation)
	}
	if incident.ConfidenceScore < 0 || incident.ConfidenceScore > 1 {
		return fmt.Errorf("service: confidence score must be within [0, 1]: %w", ErrValidation)
	}
	if incident.VehicleCount < 0 {
		return fmt.Errorf("service: vehicle count must not be negative: %w", ErrValidation)
	}
	return nil
}

func validCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// storageError оставляет доменные ошибки репозитория как есть, остальные помечает ErrUnavailable
func storageError(err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) || errors.Is(err, ErrValidation) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

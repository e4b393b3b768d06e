package service

//go:generate mockgen -source=alert.go -destination=mocks/mock_alert.go -package=mocks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/shenikar/traffic_incident_system/internal/config"
	"github.com/shenikar/traffic_incident_system/internal/models"
)

// AlertRepository - хранилище оповещений. Increment* увеличивают счетчик атомарно
// и возвращают обновленную запись или ErrNotFound.
type AlertRepository interface {
	Create(ctx context.Context, alert *models.Alert) error
	List(ctx context.Context, offset, limit int, incidentID *uuid.UUID) ([]*models.Alert, error)
	IncrementDelivered(ctx context.Context, id uuid.UUID) (*models.Alert, error)
	IncrementRead(ctx context.Context, id uuid.UUID) (*models.Alert, error)
}

// Notifier передает оповещение во внешний канал доставки
type Notifier interface {
	Notify(ctx context.Context, alert *models.Alert) error
}

// AlertService определяет контракт рассылки и учета оповещений
type AlertService interface {
	AlertDispatcher
	ListAlerts(ctx context.Context, offset, limit int, incidentID *uuid.UUID) ([]*models.Alert, error)
	RecordDelivery(ctx context.Context, id uuid.UUID) (*models.Alert, error)
	RecordRead(ctx context.Context, id uuid.UUID) (*models.Alert, error)
}

type alertService struct {
	repo      AlertRepository
	notifiers map[models.Channel]Notifier
	rules     []config.AlertRule
	radius    int
	logger    *logrus.Logger
	now       func() time.Time
}

// NewAlertService создает сервис оповещений. Для канала без Notifier оповещение только сохраняется.
func NewAlertService(repo AlertRepository, notifiers map[models.Channel]Notifier, logger *logrus.Logger, cfg *config.Config) AlertService {
	rules := cfg.AlertRules
	if len(rules) == 0 {
		rules = config.DefaultAlertRules()
	}
	return &alertService{
		repo:      repo,
		notifiers: notifiers,
		rules:     rules,
		radius:    cfg.AlertAreaRadiusMeters,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Dispatch создает по одному оповещению на каждое подходящее правило.
// Ошибка передачи в канал не отменяет сохраненное оповещение.
func (s *alertService) Dispatch(ctx context.Context, incident *models.Incident, trigger models.AlertTrigger) ([]*models.Alert, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "alert",
		"method":      "Dispatch",
		"incident_id": incident.ID,
		"trigger":     trigger,
		"severity":    incident.Severity,
	})

	var (
		created []*models.Alert
		errs    []error
	)
	for _, rule := range s.rules {
		if rule.On != trigger || !incident.Severity.AtLeast(rule.MinSeverity) {
			continue
		}

		alert := s.buildAlert(incident, trigger, rule)
		if err := s.repo.Create(ctx, alert); err != nil {
			log.WithError(err).WithField("channel", rule.Channel).Error("Failed to save alert")
			errs = append(errs, fmt.Errorf("service: could not save %s alert: %w", rule.Channel, storageError(err)))
			continue
		}
		created = append(created, alert)

		notifier, ok := s.notifiers[alert.Channel]
		if !ok {
			continue
		}
		if err := notifier.Notify(ctx, alert); err != nil {
			log.WithError(err).WithFields(logrus.Fields{
				"alert_id": alert.ID,
				"channel":  alert.Channel,
			}).Error("Failed to hand off alert to channel")
		}
	}

	log.WithField("alerts", len(created)).Info("Alerts dispatched")
	return created, errors.Join(errs...)
}

func (s *alertService) buildAlert(incident *models.Incident, trigger models.AlertTrigger, rule config.AlertRule) *models.Alert {
	incidentID := incident.ID
	alert := &models.Alert{
		ID:         uuid.New(),
		IncidentID: &incidentID,
		Channel:    rule.Channel,
		Audience:   rule.Audience,
		Title:      alertTitle(incident, trigger),
		Message:    alertMessage(incident),
		SentAt:     s.now(),
	}
	if rule.Audience == models.AudienceSpecificArea {
		area := incident.Location
		alert.Area = &area
		alert.AreaRadiusMeters = s.radius
	}
	return alert
}

func alertTitle(incident *models.Incident, trigger models.AlertTrigger) string {
	kind := strings.ReplaceAll(string(incident.Type), "_", " ")
	switch trigger {
	case models.TriggerCreated:
		return fmt.Sprintf("New %s reported (%s)", kind, incident.Severity)
	case models.TriggerVerified:
		return fmt.Sprintf("Confirmed %s (%s)", kind, incident.Severity)
	case models.TriggerInProgress:
		return fmt.Sprintf("Response under way: %s", kind)
	case models.TriggerResolved:
		return fmt.Sprintf("Cleared: %s", kind)
	case models.TriggerFalsePositive:
		return fmt.Sprintf("Dismissed: %s report", kind)
	}
	return kind
}

func alertMessage(incident *models.Incident) string {
	place := incident.Location.Name
	if place == "" {
		place = fmt.Sprintf("%.5f, %.5f", incident.Location.Latitude, incident.Location.Longitude)
	}
	if incident.Description == "" {
		return "Location: " + place
	}
	return fmt.Sprintf("%s. Location: %s", incident.Description, place)
}

// ListAlerts возвращает страницу оповещений, новые первыми
func (s *alertService) ListAlerts(ctx context.Context, offset, limit int, incidentID *uuid.UUID) ([]*models.Alert, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	alerts, err := s.repo.List(ctx, offset, limit, incidentID)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"service": "alert",
			"method":  "ListAlerts",
		}).WithError(err).Error("Failed to list alerts from repository")
		return nil, fmt.Errorf("service: could not list alerts: %w", storageError(err))
	}
	return alerts, nil
}

// RecordDelivery отмечает доставку оповещения одному получателю
func (s *alertService) RecordDelivery(ctx context.Context, id uuid.UUID) (*models.Alert, error) {
	alert, err := s.repo.IncrementDelivered(ctx, id)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"service":  "alert",
			"method":   "RecordDelivery",
			"alert_id": id,
		}).WithError(err).Warn("Failed to record alert delivery")
		return nil, fmt.Errorf("service: could not record delivery of alert %s: %w", id, storageError(err))
	}
	return alert, nil
}

// RecordRead отмечает прочтение оповещения
func (s *alertService) RecordRead(ctx context.Context, id uuid.UUID) (*models.Alert, error) {
	alert, err := s.repo.IncrementRead(ctx, id)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"service":  "alert",
			"method":   "RecordRead",
			"alert_id": id,
		}).WithError(err).Warn("Failed to record alert read")
		return nil, fmt.Errorf("service: could not record read of alert %s: %w", id, storageError(err))
	}
	return alert, nil
}

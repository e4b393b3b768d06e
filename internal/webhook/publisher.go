package webhook

//go:generate mockgen -source=publisher.go -destination=mocks/mock_publisher.go -package=mocks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/shenikar/traffic_incident_system/internal/models"
)

const (
	webhookQueueKey = "webhook_events"
)

// AlertEvent - тело вебхука для шлюза провайдеров push/sms/email
type AlertEvent struct {
	AlertID          uuid.UUID        `json:"alert_id"`
	IncidentID       *uuid.UUID       `json:"incident_id,omitempty"`
	Channel          models.Channel   `json:"channel"`
	Audience         models.Audience  `json:"audience"`
	Area             *models.Location `json:"area,omitempty"`
	AreaRadiusMeters int              `json:"area_radius_meters,omitempty"`
	Title            string           `json:"title"`
	Message          string           `json:"message"`
	SentAt           time.Time        `json:"sent_at"`
}

// NewAlertEvent строит событие вебхука из оповещения
func NewAlertEvent(alert *models.Alert) AlertEvent {
	return AlertEvent{
		AlertID:          alert.ID,
		IncidentID:       alert.IncidentID,
		Channel:          alert.Channel,
		Audience:         alert.Audience,
		Area:             alert.Area,
		AreaRadiusMeters: alert.AreaRadiusMeters,
		Title:            alert.Title,
		Message:          alert.Message,
		SentAt:           alert.SentAt,
	}
}

// WebhookPublisher - интерфейс для публикации вебхуков
type WebhookPublisher interface {
	Publish(ctx context.Context, event AlertEvent) error
}

// RedisWebhookPublisher - реализация WebhookPublisher, использующая Redis
type RedisWebhookPublisher struct {
	redisClient *redis.Client
}

// NewRedisWebhookPublisher создает новый RedisWebhookPublisher
func NewRedisWebhookPublisher(client *redis.Client) *RedisWebhookPublisher {
	return &RedisWebhookPublisher{
		redisClient: client,
	}
}

// Publish публикует событие вебхука в очередь Redis
func (p *RedisWebhookPublisher) Publish(ctx context.Context, event AlertEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook event: %w", err)
	}

	// LPUSH в голову, воркер забирает BRPOP с хвоста
	if err := p.redisClient.LPush(ctx, webhookQueueKey, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish webhook event to Redis: %w", err)
	}
	return nil
}

// Notifier передает оповещения в очередь вебхуков
type Notifier struct {
	publisher WebhookPublisher
}

func NewNotifier(publisher WebhookPublisher) *Notifier {
	return &Notifier{publisher: publisher}
}

func (n *Notifier) Notify(ctx context.Context, alert *models.Alert) error {
	return n.publisher.Publish(ctx, NewAlertEvent(alert))
}

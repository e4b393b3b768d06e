package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/shenikar/traffic_incident_system/internal/config"
	"github.com/shenikar/traffic_incident_system/pkg/signature"
)

const popTimeout = 5 * time.Second

// WebhookWorker - структура для обработки и отправки вебхуков
type WebhookWorker struct {
	redisClient *redis.Client
	logger      *logrus.Logger
	cfg         *config.Config
	httpClient  *http.Client
	done        chan struct{}
}

// NewWebhookWorker создает новый WebhookWorker
func NewWebhookWorker(redisClient *redis.Client, logger *logrus.Logger, cfg *config.Config) *WebhookWorker {
	return &WebhookWorker{
		redisClient: redisClient,
		logger:      logger,
		cfg:         cfg,
		httpClient: &http.Client{
			Timeout: cfg.WebhookTimeout,
		},
		done: make(chan struct{}),
	}
}

// Start запускает горутину для обработки очереди вебхуков
func (w *WebhookWorker) Start(ctx context.Context) {
	w.logger.Info("Starting webhook worker...")
	go w.run(ctx)
}

// Done закрывается после остановки воркера
func (w *WebhookWorker) Done() <-chan struct{} {
	return w.done
}

func (w *WebhookWorker) run(ctx context.Context) {
	defer close(w.done)
	for {
		if ctx.Err() != nil {
			w.logger.Info("Stopping webhook worker.")
			return
		}

		// Конечный таймаут, чтобы вовремя заметить отмену ctx
		result, err := w.redisClient.BRPop(ctx, popTimeout, webhookQueueKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			w.logger.WithError(err).Error("Failed to pop webhook event from Redis")
			_ = sleepContext(ctx, w.cfg.WebhookTimeout) // Ждем перед повторной попыткой
			continue
		}

		// result[0] - ключ, result[1] - значение
		payload := []byte(result[1])
		var event AlertEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			w.logger.WithError(err).Error("Failed to unmarshal webhook event from Redis")
			continue
		}

		_ = w.Deliver(ctx, event, payload)
	}
}

// Deliver отправляет событие на WebhookURL, делая до WebhookMaxRetries попыток с экспоненциальной задержкой
func (w *WebhookWorker) Deliver(ctx context.Context, event AlertEvent, payload []byte) error {
	log := w.logger.WithFields(logrus.Fields{
		"alert_id": event.AlertID,
		"channel":  event.Channel,
		"audience": event.Audience,
	})
	log.Debug("Processing webhook event...")

	if w.cfg.WebhookURL == "" {
		log.Warn("Webhook URL is not configured. Skipping webhook delivery.")
		return nil
	}

	maxRetries := w.cfg.WebhookMaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}
	delay := w.cfg.WebhookBaseDelay

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		lastErr = w.post(ctx, event, payload)
		if lastErr == nil {
			log.Info("Webhook delivered successfully.")
			return nil
		}
		if i == maxRetries-1 {
			break
		}

		log.WithError(lastErr).Warnf("Failed to send webhook. Retrying in %v. Retries left: %d", delay, maxRetries-1-i)
		if err := sleepContext(ctx, delay); err != nil {
			lastErr = err
			break
		}
		delay *= 2 // Экспоненциальная задержка
	}

	log.WithError(lastErr).Errorf("Failed to deliver webhook after %d attempts.", maxRetries)
	return fmt.Errorf("webhook delivery of alert %s failed: %w", event.AlertID, lastErr)
}

func (w *WebhookWorker) post(ctx context.Context, event AlertEvent, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Alert-Channel", string(event.Channel))

	// Добавляем HMAC подпись, если WEBHOOK_SECRET задан
	if w.cfg.WebhookSecret != "" {
		req.Header.Set("X-Webhook-Signature", signature.Sign(payload, w.cfg.WebhookSecret))
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded with status code %d", resp.StatusCode)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

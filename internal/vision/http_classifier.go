package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shenikar/traffic_incident_system/internal/config"
	"github.com/shenikar/traffic_incident_system/internal/detection"
)

// detectResponse - ответ сервиса инференса на POST /detect
type detectResponse struct {
	Objects []detection.DetectedObject `json:"objects"`
}

// HTTPClassifier отправляет кадр во внешний сервис инференса
type HTTPClassifier struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewHTTPClassifier создает клиента и проверяет доступность сервиса через GET /health.
// Недоступный сервис - ошибка: детектор без модели не запускается.
func NewHTTPClassifier(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*HTTPClassifier, error) {
	c := &HTTPClassifier{
		baseURL: strings.TrimRight(cfg.ClassifierURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.ClassifierTimeout,
		},
		logger: logger,
	}

	if err := c.healthCheck(ctx); err != nil {
		return nil, err
	}
	logger.WithField("url", c.baseURL).Info("Object classifier is reachable")
	return c, nil
}

func (c *HTTPClassifier) healthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create classifier health request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("object classifier is unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("object classifier health check returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *HTTPClassifier) Classify(ctx context.Context, frame *detection.Frame) ([]detection.DetectedObject, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/detect", bytes.NewReader(frame.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to create classify request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")
	req.Header.Set("X-Frame-Seq", fmt.Sprintf("%d", frame.Seq))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to classify frame %d: %w", frame.Seq, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("classifier responded with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode classifier response: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"seq":      frame.Seq,
		"objects":  len(out.Objects),
		"duration": time.Since(start),
	}).Debug("Frame classified")
	return out.Objects, nil
}

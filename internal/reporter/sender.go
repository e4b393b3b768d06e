package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shenikar/traffic_incident_system/internal/config"
	"github.com/shenikar/traffic_incident_system/internal/models"
	"github.com/shenikar/traffic_incident_system/pkg/signature"
)

// Sender доставляет кандидата на границу приема инцидентов
type Sender interface {
	Send(ctx context.Context, candidate models.IncidentCandidate) error
}

// DeliveryError - неуспешный ответ сервера приема.
// Permanent означает ошибку валидации: повтор не поможет.
type DeliveryError struct {
	StatusCode int
	Body       string
	Permanent  bool
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("ingestion responded with status %d: %s", e.StatusCode, e.Body)
}

// IsPermanent сообщает, что ошибку не следует повторять
func IsPermanent(err error) bool {
	var de *DeliveryError
	return errors.As(err, &de) && de.Permanent
}

// IdempotencyKeyHeader - заголовок, по которому сервер приема узнает повтор того же наблюдения
const IdempotencyKeyHeader = "Idempotency-Key"

// IdempotencyKey однозначно определяет наблюдение: камера и время кадра
func IdempotencyKey(candidate models.IncidentCandidate) string {
	if candidate.CameraID == "" || candidate.ObservedAt.IsZero() {
		return ""
	}
	return fmt.Sprintf("%s:%d", candidate.CameraID, candidate.ObservedAt.UnixNano())
}

// incidentPayload - тело запроса создания инцидента
type incidentPayload struct {
	Type            models.IncidentType `json:"type"`
	Severity        models.Severity     `json:"severity"`
	Latitude        float64             `json:"latitude"`
	Longitude       float64             `json:"longitude"`
	LocationName    string              `json:"location_name,omitempty"`
	Description     string              `json:"description,omitempty"`
	ConfidenceScore float64             `json:"confidence_score"`
	EvidenceRef     string              `json:"evidence_ref,omitempty"`
	CameraID        string              `json:"camera_id"`
	VehicleCount    int                 `json:"vehicle_count"`
	ObservedAt      time.Time           `json:"observed_at"`
}

// HTTPSender отправляет кандидатов POST запросом с API ключом и необязательной HMAC подписью
type HTTPSender struct {
	url        string
	apiKey     string
	secret     string
	httpClient *http.Client
}

// NewHTTPSender создает отправителя с таймаутом из конфигурации
func NewHTTPSender(cfg *config.Config) *HTTPSender {
	return &HTTPSender{
		url:    cfg.IngestURL,
		apiKey: cfg.IngestAPIKey,
		secret: cfg.IngestSecret,
		httpClient: &http.Client{
			Timeout: cfg.IngestTimeout,
		},
	}
}

func (s *HTTPSender) Send(ctx context.Context, candidate models.IncidentCandidate) error {
	body, err := json.Marshal(incidentPayload{
		Type:            candidate.Type,
		Severity:        candidate.Severity,
		Latitude:        candidate.Location.Latitude,
		Longitude:       candidate.Location.Longitude,
		LocationName:    candidate.Location.Name,
		Description:     candidate.Description,
		ConfidenceScore: candidate.Confidence,
		EvidenceRef:     candidate.EvidenceRef,
		CameraID:        candidate.CameraID,
		VehicleCount:    candidate.VehicleCount,
		ObservedAt:      candidate.ObservedAt,
	})
	if err != nil {
		return &DeliveryError{Body: err.Error(), Permanent: true}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return &DeliveryError{Body: err.Error(), Permanent: true}
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("X-API-Key", s.apiKey)
	}
	if s.secret != "" {
		req.Header.Set("X-Signature", signature.Sign(body, s.secret))
	}
	// Повтор после таймаута несет тот же ключ и не создает второй инцидент
	if key := IdempotencyKey(candidate); key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send incident: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return &DeliveryError{
		StatusCode: resp.StatusCode,
		Body:       string(snippet),
		Permanent:  isPermanentStatus(resp.StatusCode),
	}
}

// 4xx - ошибка запроса, кроме таймаута и превышения лимита запросов
func isPermanentStatus(code int) bool {
	if code == http.StatusRequestTimeout || code == http.StatusTooManyRequests {
		return false
	}
	return code >= 400 && code < 500
}

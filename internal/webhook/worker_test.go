package webhook_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/shenikar/traffic_incident_system/internal/config"
	"github.com/shenikar/traffic_incident_system/internal/models"
	"github.com/shenikar/traffic_incident_system/internal/webhook"
	"github.com/shenikar/traffic_incident_system/internal/webhook/mocks"
	"github.com/shenikar/traffic_incident_system/pkg/signature"
)

const testSecret = "webhook-secret"

func newTestWorker(url string, maxRetries int) *webhook.WebhookWorker {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	cfg := &config.Config{
		WebhookURL:        url,
		WebhookSecret:     testSecret,
		WebhookTimeout:    time.Second,
		WebhookMaxRetries: maxRetries,
		WebhookBaseDelay:  time.Millisecond,
	}
	return webhook.NewWebhookWorker(nil, logger, cfg)
}

func testEvent(t *testing.T) (webhook.AlertEvent, []byte) {
	t.Helper()
	incidentID := uuid.New()
	event := webhook.AlertEvent{
		AlertID:    uuid.New(),
		IncidentID: &incidentID,
		Channel:    models.ChannelSMS,
		Audience:   models.AudienceSpecificArea,
		Area: &models.Location{
			Latitude:  -1.9536,
			Longitude: 30.0919,
			Name:      "Kigali Heights",
		},
		AreaRadiusMeters: 1000,
		Title:            "Confirmed congestion (high)",
		Message:          "High traffic detected. Location: Kigali Heights",
		SentAt:           time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return event, payload
}

func TestDeliver_SignsPayload(t *testing.T) {
	// Подготовка
	var (
		gotBody      []byte
		gotSignature string
		gotChannel   string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSignature = r.Header.Get("X-Webhook-Signature")
		gotChannel = r.Header.Get("X-Alert-Channel")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	worker := newTestWorker(server.URL, 3)
	event, payload := testEvent(t)

	// Действие
	err := worker.Deliver(context.Background(), event, payload)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, payload, gotBody)
	assert.True(t, signature.Verify(gotBody, testSecret, gotSignature))
	assert.Equal(t, "sms", gotChannel)

	var received webhook.AlertEvent
	require.NoError(t, json.Unmarshal(gotBody, &received))
	assert.Equal(t, event.AlertID, received.AlertID)
	require.NotNil(t, received.Area)
	assert.Equal(t, "Kigali Heights", received.Area.Name)
}

func TestDeliver_RetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	worker := newTestWorker(server.URL, 3)
	event, payload := testEvent(t)

	err := worker.Deliver(context.Background(), event, payload)

	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDeliver_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	worker := newTestWorker(server.URL, 2)
	event, payload := testEvent(t)

	err := worker.Deliver(context.Background(), event, payload)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status code 500")
	assert.Equal(t, int32(2), calls.Load())
}

func TestDeliver_ZeroRetriesStillTriesOnce(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	worker := newTestWorker(server.URL, 0)
	event, payload := testEvent(t)

	require.NoError(t, worker.Deliver(context.Background(), event, payload))
	assert.Equal(t, int32(1), calls.Load())
}

func TestDeliver_SkipsWithoutURL(t *testing.T) {
	worker := newTestWorker("", 3)
	event, payload := testEvent(t)

	assert.NoError(t, worker.Deliver(context.Background(), event, payload))
}

func TestDeliver_StopsOnCancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	worker := newTestWorker(server.URL, 5)
	event, payload := testEvent(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := worker.Deliver(ctx, event, payload)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNotifier_PublishesAlertEvent(t *testing.T) {
	// Подготовка
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockWebhookPublisher(ctrl)
	notifier := webhook.NewNotifier(publisher)

	incidentID := uuid.New()
	alert := &models.Alert{
		ID:         uuid.New(),
		IncidentID: &incidentID,
		Channel:    models.ChannelPush,
		Audience:   models.AudiencePublic,
		Title:      "Confirmed congestion (high)",
		Message:    "High traffic detected",
		SentAt:     time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}

	// Ожидания
	publisher.EXPECT().
		Publish(gomock.Any(), webhook.NewAlertEvent(alert)).
		Return(nil).
		Times(1)

	// Действие и проверки
	require.NoError(t, notifier.Notify(context.Background(), alert))
}

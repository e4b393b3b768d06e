package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/shenikar/traffic_incident_system/internal/config"
	"github.com/shenikar/traffic_incident_system/internal/models"
	"github.com/shenikar/traffic_incident_system/internal/service"
	"github.com/shenikar/traffic_incident_system/internal/service/mocks"
	"github.com/shenikar/traffic_incident_system/pkg/signature"
)

var apiKeyHeader = map[string]string{"X-API-Key": "test-api-key"}

type testDeps struct {
	incidents *mocks.MockIncidentService
	alerts    *mocks.MockAlertService
}

// newTestHandler создает новый экземпляр Handler с мокированными сервисами
func newTestHandler(t *testing.T, cfgOpts ...func(*config.Config)) (*Handler, testDeps, *gin.Engine) {
	ctrl := gomock.NewController(t)
	deps := testDeps{
		incidents: mocks.NewMockIncidentService(ctrl),
		alerts:    mocks.NewMockAlertService(ctrl),
	}

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	cfg := &config.Config{
		APIKeys:                []string{"test-api-key"},
		StatsTimeWindowMinutes: 60,
	}
	for _, opt := range cfgOpts {
		opt(cfg)
	}

	handler := NewHandler(deps.incidents, deps.alerts, nil, logger, cfg)

	// Настройка Gin роутера для тестов
	gin.SetMode(gin.TestMode)
	router := gin.New()
	api := router.Group("/api/v1")
	handler.RegisterRoutes(api)

	return handler, deps, router
}

// makeRequest - вспомогательная функция для выполнения HTTP-запросов
func makeRequest(router *gin.Engine, method, url string, body io.Reader, headers ...map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, h := range headers {
		for key, value := range h {
			req.Header.Set(key, value)
		}
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func ptr[T any](v T) *T {
	return &v
}

func validCreateRequest() CreateIncidentRequest {
	return CreateIncidentRequest{
		Type:            "congestion",
		Severity:        "high",
		Latitude:        ptr(-1.9536),
		Longitude:       ptr(30.0919),
		LocationName:    "Kigali Heights",
		Description:     "High traffic detected: 12 vehicles at Kigali Heights",
		ConfidenceScore: 0.85,
		VehicleCount:    12,
		CameraID:        "cam-kh",
	}
}

func TestCreateIncident_Success(t *testing.T) {
	// Подготовка
	_, deps, router := newTestHandler(t)
	incidentID := uuid.New()
	reqBody := validCreateRequest()

	// Ожидания
	deps.incidents.EXPECT().
		CreateIncident(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, inc *models.Incident) error {
			assert.Equal(t, models.IncidentTypeCongestion, inc.Type)
			assert.Equal(t, models.SeverityHigh, inc.Severity)
			assert.Equal(t, "Kigali Heights", inc.Location.Name)
			assert.Equal(t, 12, inc.VehicleCount)
			inc.ID = incidentID
			inc.Status = models.StatusReported
			inc.CreatedAt = time.Now()
			inc.UpdatedAt = inc.CreatedAt
			return nil
		}).Times(1)

	// Действие
	bodyBytes, _ := json.Marshal(reqBody)
	w := makeRequest(router, "POST", "/api/v1/incidents", bytes.NewBuffer(bodyBytes), apiKeyHeader)

	// Проверки
	assert.Equal(t, http.StatusCreated, w.Code)

	var resp IncidentResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, incidentID, resp.ID)
	assert.Equal(t, "reported", resp.Status)
	assert.Equal(t, -1.9536, resp.Location.Latitude)
	assert.Nil(t, resp.ResolvedAt)
}

func TestCreateIncident_ObservedAtAndIdempotencyKey(t *testing.T) {
	// Подготовка
	_, deps, router := newTestHandler(t)
	observedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.FixedZone("CAT", 2*60*60))
	reqBody := validCreateRequest()
	reqBody.ObservedAt = &observedAt

	// Ожидания
	deps.incidents.EXPECT().
		CreateIncident(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, inc *models.Incident) error {
			assert.Equal(t, time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC), inc.ObservedAt)
			assert.Equal(t, "cam-kh:1772352000000000000", inc.IdempotencyKey)
			inc.ID = uuid.New()
			return nil
		}).Times(1)

	// Действие
	bodyBytes, _ := json.Marshal(reqBody)
	w := makeRequest(router, "POST", "/api/v1/incidents", bytes.NewBuffer(bodyBytes), apiKeyHeader,
		map[string]string{"Idempotency-Key": "cam-kh:1772352000000000000"})

	// Проверки
	assert.Equal(t, http.StatusCreated, w.Code)
	var resp IncidentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, observedAt.Equal(resp.ObservedAt))
	assert.NotContains(t, w.Body.String(), "idempotency_key")
}

func TestCreateIncident_IdempotencyKeyTooLong(t *testing.T) {
	_, deps, router := newTestHandler(t)
	deps.incidents.EXPECT().CreateIncident(gomock.Any(), gomock.Any()).Times(0)

	bodyBytes, _ := json.Marshal(validCreateRequest())
	w := makeRequest(router, "POST", "/api/v1/incidents", bytes.NewBuffer(bodyBytes), apiKeyHeader,
		map[string]string{"Idempotency-Key": strings.Repeat("k", 256)})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateIncident_ZeroCoordinatesAccepted(t *testing.T) {
	_, deps, router := newTestHandler(t)
	reqBody := validCreateRequest()
	reqBody.Latitude = ptr(0.0)
	reqBody.Longitude = ptr(0.0)

	deps.incidents.EXPECT().CreateIncident(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	bodyBytes, _ := json.Marshal(reqBody)
	w := makeRequest(router, "POST", "/api/v1/incidents", bytes.NewBuffer(bodyBytes), apiKeyHeader)

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestCreateIncident_InvalidJSON(t *testing.T) {
	_, deps, router := newTestHandler(t)

	deps.incidents.EXPECT().CreateIncident(gomock.Any(), gomock.Any()).Times(0) // Сервис не должен вызываться

	w := makeRequest(router, "POST", "/api/v1/incidents", bytes.NewBufferString(`{"type": "congestion"`), apiKeyHeader)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid request body")
}

func TestCreateIncident_ValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*CreateIncidentRequest)
		expected string
	}{
		{
			name:     "unknown type",
			mutate:   func(r *CreateIncidentRequest) { r.Type = "fire" },
			expected: "Error:Field validation for 'Type' failed on the 'oneof' tag",
		},
		{
			name:     "unknown severity",
			mutate:   func(r *CreateIncidentRequest) { r.Severity = "extreme" },
			expected: "Error:Field validation for 'Severity' failed on the 'oneof' tag",
		},
		{
			name:     "missing latitude",
			mutate:   func(r *CreateIncidentRequest) { r.Latitude = nil },
			expected: "Error:Field validation for 'Latitude' failed on the 'required' tag",
		},
		{
			name:     "longitude out of range",
			mutate:   func(r *CreateIncidentRequest) { r.Longitude = ptr(181.0) },
			expected: "Error:Field validation for 'Longitude' failed on the 'longitude' tag",
		},
		{
			name:     "confidence above one",
			mutate:   func(r *CreateIncidentRequest) { r.ConfidenceScore = 1.5 },
			expected: "Error:Field validation for 'ConfidenceScore' failed on the 'lte' tag",
		},
		{
			name:     "negative vehicle count",
			mutate:   func(r *CreateIncidentRequest) { r.VehicleCount = -1 },
			expected: "Error:Field validation for 'VehicleCount' failed on the 'gte' tag",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, deps, router := newTestHandler(t)
			reqBody := validCreateRequest()
			tt.mutate(&reqBody)

			deps.incidents.EXPECT().CreateIncident(gomock.Any(), gomock.Any()).Times(0)

			bodyBytes, _ := json.Marshal(reqBody)
			w := makeRequest(router, "POST", "/api/v1/incidents", bytes.NewBuffer(bodyBytes), apiKeyHeader)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.expected)
		})
	}
}

func TestCreateIncident_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"validation", fmt.Errorf("service: coordinates out of range: %w", service.ErrValidation), http.StatusBadRequest, "coordinates out of range"},
		{"unavailable", fmt.Errorf("service: could not create incident: %w", service.ErrUnavailable), http.StatusServiceUnavailable, "service unavailable"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, deps, router := newTestHandler(t)
			deps.incidents.EXPECT().CreateIncident(gomock.Any(), gomock.Any()).Return(tt.err).Times(1)

			bodyBytes, _ := json.Marshal(validCreateRequest())
			w := makeRequest(router, "POST", "/api/v1/incidents", bytes.NewBuffer(bodyBytes), apiKeyHeader)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

func TestCreateIncident_Signature(t *testing.T) {
	const secret = "ingest-secret"
	withSecret := func(cfg *config.Config) { cfg.IngestSecret = secret }
	bodyBytes, _ := json.Marshal(validCreateRequest())

	t.Run("valid signature", func(t *testing.T) {
		_, deps, router := newTestHandler(t, withSecret)
		deps.incidents.EXPECT().CreateIncident(gomock.Any(), gomock.Any()).Return(nil).Times(1)

		w := makeRequest(router, "POST", "/api/v1/incidents", bytes.NewBuffer(bodyBytes), apiKeyHeader,
			map[string]string{"X-Signature": signature.Sign(bodyBytes, secret)})

		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("missing signature", func(t *testing.T) {
		_, deps, router := newTestHandler(t, withSecret)
		deps.incidents.EXPECT().CreateIncident(gomock.Any(), gomock.Any()).Times(0)

		w := makeRequest(router, "POST", "/api/v1/incidents", bytes.NewBuffer(bodyBytes), apiKeyHeader)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "signature required")
	})

	t.Run("tampered body", func(t *testing.T) {
		_, deps, router := newTestHandler(t, withSecret)
		deps.incidents.EXPECT().CreateIncident(gomock.Any(), gomock.Any()).Times(0)

		tampered := bytes.Replace(bodyBytes, []byte(`"high"`), []byte(`"low"`), 1)
		w := makeRequest(router, "POST", "/api/v1/incidents", bytes.NewBuffer(tampered), apiKeyHeader,
			map[string]string{"X-Signature": signature.Sign(bodyBytes, secret)})

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "invalid signature")
	})
}

func TestGetIncident_Success(t *testing.T) {
	_, deps, router := newTestHandler(t)
	incidentID := uuid.New()
	expectedIncident := &models.Incident{
		ID:       incidentID,
		Type:     models.IncidentTypeAccident,
		Severity: models.SeverityMedium,
		Location: models.Location{Latitude: 30.0, Longitude: 40.0},
		Status:   models.StatusVerified,
	}

	deps.incidents.EXPECT().GetIncident(gomock.Any(), incidentID).Return(expectedIncident, nil).Times(1)

	w := makeRequest(router, "GET", fmt.Sprintf("/api/v1/incidents/%s", incidentID.String()), nil, apiKeyHeader)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp IncidentResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, incidentID, resp.ID)
	assert.Equal(t, "accident", resp.Type)
	assert.Equal(t, "verified", resp.Status)
}

func TestGetIncident_InvalidID(t *testing.T) {
	_, deps, router := newTestHandler(t)

	deps.incidents.EXPECT().GetIncident(gomock.Any(), gomock.Any()).Times(0) // Сервис не должен вызываться

	w := makeRequest(router, "GET", "/api/v1/incidents/invalid-uuid", nil, apiKeyHeader)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid incident ID")
}

func TestGetIncident_NotFound(t *testing.T) {
	_, deps, router := newTestHandler(t)
	incidentID := uuid.New()

	deps.incidents.EXPECT().
		GetIncident(gomock.Any(), incidentID).
		Return(nil, fmt.Errorf("service: could not get incident: %w", service.ErrNotFound)).
		Times(1)

	w := makeRequest(router, "GET", fmt.Sprintf("/api/v1/incidents/%s", incidentID.String()), nil, apiKeyHeader)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "not found")
}

func TestListIncidents_Success(t *testing.T) {
	_, deps, router := newTestHandler(t)
	expectedIncidents := []*models.Incident{
		{ID: uuid.New(), Type: models.IncidentTypeCongestion, Status: models.StatusReported},
		{ID: uuid.New(), Type: models.IncidentTypeHazard, Status: models.StatusReported},
	}
	expectedFilter := models.IncidentFilter{
		Offset:   20,
		Limit:    10,
		Status:   models.StatusReported,
		Severity: models.SeverityHigh,
	}

	deps.incidents.EXPECT().ListIncidents(gomock.Any(), expectedFilter).Return(expectedIncidents, nil).Times(1)

	w := makeRequest(router, "GET", "/api/v1/incidents?offset=20&limit=10&status=reported&severity=high", nil, apiKeyHeader)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp []IncidentResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.Len(t, resp, 2)
	assert.Equal(t, "hazard", resp[1].Type)
}

func TestListIncidents_InvalidLimit(t *testing.T) {
	_, deps, router := newTestHandler(t)

	deps.incidents.EXPECT().ListIncidents(gomock.Any(), gomock.Any()).Times(0)

	w := makeRequest(router, "GET", "/api/v1/incidents?limit=ten", nil, apiKeyHeader)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid limit")
}

func TestListIncidents_UnknownFilter(t *testing.T) {
	_, deps, router := newTestHandler(t)

	deps.incidents.EXPECT().
		ListIncidents(gomock.Any(), gomock.Any()).
		Return(nil, fmt.Errorf("service: unknown status filter %q: %w", "open", service.ErrValidation)).
		Times(1)

	w := makeRequest(router, "GET", "/api/v1/incidents?status=open", nil, apiKeyHeader)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTransitionIncident_Success(t *testing.T) {
	// Подготовка
	_, deps, router := newTestHandler(t)
	incidentID := uuid.New()
	actorID := uuid.New()
	resolvedAt := time.Now().UTC()
	updated := &models.Incident{
		ID:         incidentID,
		Status:     models.StatusResolved,
		VerifiedBy: &actorID,
		ResolvedAt: &resolvedAt,
	}

	// Ожидания
	deps.incidents.EXPECT().
		TransitionIncident(gomock.Any(), incidentID, models.StatusResolved, actorID).
		Return(updated, nil).
		Times(1)

	// Действие
	body := fmt.Sprintf(`{"status":"resolved","actor_id":"%s"}`, actorID)
	w := makeRequest(router, "POST", fmt.Sprintf("/api/v1/incidents/%s/transition", incidentID), bytes.NewBufferString(body), apiKeyHeader)

	// Проверки
	assert.Equal(t, http.StatusOK, w.Code)
	var resp IncidentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "resolved", resp.Status)
	require.NotNil(t, resp.ResolvedAt)
	require.NotNil(t, resp.VerifiedBy)
	assert.Equal(t, actorID, *resp.VerifiedBy)
}

func TestTransitionIncident_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"invalid transition", fmt.Errorf("service: reported -> resolved: %w", service.ErrInvalidTransition), http.StatusUnprocessableEntity},
		{"conflict", fmt.Errorf("service: could not transition: %w", service.ErrConflict), http.StatusConflict},
		{"not found", fmt.Errorf("service: could not get incident: %w", service.ErrNotFound), http.StatusNotFound},
		{"unavailable", fmt.Errorf("service: could not get incident: %w", service.ErrUnavailable), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, deps, router := newTestHandler(t)
			incidentID := uuid.New()

			deps.incidents.EXPECT().
				TransitionIncident(gomock.Any(), incidentID, models.StatusResolved, gomock.Any()).
				Return(nil, tt.err).
				Times(1)

			body := fmt.Sprintf(`{"status":"resolved","actor_id":"%s"}`, uuid.New())
			w := makeRequest(router, "POST", fmt.Sprintf("/api/v1/incidents/%s/transition", incidentID), bytes.NewBufferString(body), apiKeyHeader)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestTransitionIncident_ValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected string
	}{
		{"unknown status", fmt.Sprintf(`{"status":"closed","actor_id":"%s"}`, uuid.New()), "'Status' failed on the 'oneof' tag"},
		{"missing actor", `{"status":"verified"}`, "'ActorID' failed on the 'required' tag"},
		{"malformed actor", `{"status":"verified","actor_id":"officer-7"}`, "'ActorID' failed on the 'uuid' tag"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, deps, router := newTestHandler(t)
			deps.incidents.EXPECT().TransitionIncident(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

			w := makeRequest(router, "POST", fmt.Sprintf("/api/v1/incidents/%s/transition", uuid.New()), bytes.NewBufferString(tt.body), apiKeyHeader)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.expected)
		})
	}
}

func TestFindNearby_Success(t *testing.T) {
	_, deps, router := newTestHandler(t)
	expected := []*models.Incident{{ID: uuid.New(), Status: models.StatusVerified}}

	deps.incidents.EXPECT().FindNearby(gomock.Any(), -1.9536, 30.0919, 2000).Return(expected, nil).Times(1)

	w := makeRequest(router, "GET", "/api/v1/incidents/nearby?lat=-1.9536&lng=30.0919&radius=2000", nil, apiKeyHeader)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp []IncidentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp, 1)
}

func TestFindNearby_MissingCoordinates(t *testing.T) {
	_, deps, router := newTestHandler(t)

	deps.incidents.EXPECT().FindNearby(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	w := makeRequest(router, "GET", "/api/v1/incidents/nearby?lat=-1.9536", nil, apiKeyHeader)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetStats_Success(t *testing.T) {
	_, deps, router := newTestHandler(t)
	stats := &models.IncidentStats{
		WindowMinutes: 60,
		Total:         5,
		ByStatus: map[models.Status]int{
			models.StatusReported: 3,
			models.StatusResolved: 2,
		},
	}

	deps.incidents.EXPECT().GetStats(gomock.Any()).Return(stats, nil).Times(1)

	w := makeRequest(router, "GET", "/api/v1/incidents/stats", nil, apiKeyHeader)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp StatsResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, 5, resp.Total)
	assert.Equal(t, 3, resp.ByStatus["reported"])
}

func TestGetStats_ServiceError(t *testing.T) {
	_, deps, router := newTestHandler(t)

	deps.incidents.EXPECT().GetStats(gomock.Any()).Return(nil, errors.New("failed to get stats")).Times(1)

	w := makeRequest(router, "GET", "/api/v1/incidents/stats", nil, apiKeyHeader)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal server error")
}

func TestListAlerts_FilterByIncident(t *testing.T) {
	_, deps, router := newTestHandler(t)
	incidentID := uuid.New()
	area := &models.Location{Latitude: -1.9536, Longitude: 30.0919, Name: "Kigali Heights"}
	alerts := []*models.Alert{{
		ID:               uuid.New(),
		IncidentID:       &incidentID,
		Channel:          models.ChannelSMS,
		Audience:         models.AudienceSpecificArea,
		Area:             area,
		AreaRadiusMeters: 1000,
	}}

	deps.alerts.EXPECT().ListAlerts(gomock.Any(), 0, 0, &incidentID).Return(alerts, nil).Times(1)

	w := makeRequest(router, "GET", "/api/v1/alerts?incident_id="+incidentID.String(), nil, apiKeyHeader)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp []AlertResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "sms", resp[0].Channel)
	require.NotNil(t, resp[0].Area)
	assert.Equal(t, "Kigali Heights", resp[0].Area.Name)
}

func TestRecordDelivery_Success(t *testing.T) {
	_, deps, router := newTestHandler(t)
	alertID := uuid.New()

	deps.alerts.EXPECT().RecordDelivery(gomock.Any(), alertID).Return(&models.Alert{ID: alertID, DeliveredCount: 1}, nil).Times(1)

	w := makeRequest(router, "POST", fmt.Sprintf("/api/v1/alerts/%s/delivered", alertID), nil, apiKeyHeader)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"delivered_count":1`)
}

func TestRecordRead_NotFound(t *testing.T) {
	_, deps, router := newTestHandler(t)
	alertID := uuid.New()

	deps.alerts.EXPECT().RecordRead(gomock.Any(), alertID).Return(nil, service.ErrNotFound).Times(1)

	w := makeRequest(router, "POST", fmt.Sprintf("/api/v1/alerts/%s/read", alertID), nil, apiKeyHeader)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRoutes_RequireAPIKey(t *testing.T) {
	_, _, router := newTestHandler(t)

	w := makeRequest(router, "GET", "/api/v1/incidents", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHealthCheck_Success(t *testing.T) {
	_, _, router := newTestHandler(t)

	w := makeRequest(router, "GET", "/api/v1/system/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func newMiddlewareRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})

	cfg := &config.Config{
		APIKeys: []string{"valid-key"},
	}

	router.Use(APIKeyAuthMiddleware(cfg, logger))
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func TestAPIKeyAuthMiddleware_Success(t *testing.T) {
	router := newMiddlewareRouter()

	w := makeRequest(router, "GET", "/test", nil, map[string]string{"X-API-Key": "valid-key"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIKeyAuthMiddleware_BearerAndQuery(t *testing.T) {
	router := newMiddlewareRouter()

	w := makeRequest(router, "GET", "/test", nil, map[string]string{"Authorization": "Bearer valid-key"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = makeRequest(router, "GET", "/test?api_key=valid-key", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIKeyAuthMiddleware_MissingKey(t *testing.T) {
	router := newMiddlewareRouter()

	w := makeRequest(router, "GET", "/test", nil) // Нет API ключа
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "API key required")
}

func TestAPIKeyAuthMiddleware_InvalidKey(t *testing.T) {
	router := newMiddlewareRouter()

	w := makeRequest(router, "GET", "/test", nil, map[string]string{"X-API-Key": "invalid-key"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid API key")
}

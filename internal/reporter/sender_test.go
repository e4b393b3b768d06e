package reporter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shenikar/traffic_incident_system/internal/config"
	"github.com/shenikar/traffic_incident_system/pkg/signature"
)

func TestHTTPSender_Send(t *testing.T) {
	var (
		gotBody      []byte
		gotKey       string
		gotSignature string
		gotIdemKey   string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		gotIdemKey = r.Header.Get(IdempotencyKeyHeader)
		gotSignature = r.Header.Get("X-Signature")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	sender := NewHTTPSender(&config.Config{
		IngestURL:     server.URL,
		IngestAPIKey:  "detector-key",
		IngestSecret:  "s3cret",
		IngestTimeout: 2 * time.Second,
	})

	err := sender.Send(context.Background(), testCandidate(6))
	require.NoError(t, err)

	assert.Equal(t, "detector-key", gotKey)
	assert.True(t, signature.Verify(gotBody, "s3cret", gotSignature))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, "congestion", payload["type"])
	assert.Equal(t, "low", payload["severity"])
	assert.Equal(t, "Kigali Heights", payload["location_name"])
	assert.Equal(t, "cam-1", payload["camera_id"])
	assert.InDelta(t, 6, payload["vehicle_count"], 0)
	assert.InDelta(t, -1.9441, payload["latitude"], 1e-9)
	assert.Equal(t, "2026-01-01T12:00:00Z", payload["observed_at"])
	assert.Equal(t, "cam-1:1767268800000000000", gotIdemKey)
}

func TestHTTPSender_RetrySendsSameIdempotencyKey(t *testing.T) {
	var keys []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys = append(keys, r.Header.Get(IdempotencyKeyHeader))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()
	sender := NewHTTPSender(&config.Config{IngestURL: server.URL, IngestTimeout: 2 * time.Second})

	require.NoError(t, sender.Send(context.Background(), testCandidate(6)))
	require.NoError(t, sender.Send(context.Background(), testCandidate(6)))
	later := testCandidate(6)
	later.ObservedAt = later.ObservedAt.Add(time.Second)
	require.NoError(t, sender.Send(context.Background(), later))

	require.Len(t, keys, 3)
	assert.Equal(t, keys[0], keys[1])
	assert.NotEqual(t, keys[0], keys[2])
}

func TestIdempotencyKey_RequiresCameraAndTime(t *testing.T) {
	noCamera := testCandidate(6)
	noCamera.CameraID = ""
	noTime := testCandidate(6)
	noTime.ObservedAt = time.Time{}

	assert.Empty(t, IdempotencyKey(noCamera))
	assert.Empty(t, IdempotencyKey(noTime))
}

func TestHTTPSender_StatusClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantErr   bool
		permanent bool
	}{
		{name: "created", status: http.StatusCreated},
		{name: "ok", status: http.StatusOK},
		{name: "bad request", status: http.StatusBadRequest, wantErr: true, permanent: true},
		{name: "unauthorized", status: http.StatusUnauthorized, wantErr: true, permanent: true},
		{name: "request timeout", status: http.StatusRequestTimeout, wantErr: true},
		{name: "too many requests", status: http.StatusTooManyRequests, wantErr: true},
		{name: "server error", status: http.StatusInternalServerError, wantErr: true},
		{name: "unavailable", status: http.StatusServiceUnavailable, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":"x"}`))
			}))
			defer server.Close()

			sender := NewHTTPSender(&config.Config{IngestURL: server.URL, IngestTimeout: time.Second})
			err := sender.Send(context.Background(), testCandidate(6))

			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.permanent, IsPermanent(err))
		})
	}
}

func TestHTTPSender_ConnectionErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	sender := NewHTTPSender(&config.Config{IngestURL: url, IngestTimeout: time.Second})
	err := sender.Send(context.Background(), testCandidate(6))

	require.Error(t, err)
	assert.False(t, IsPermanent(err))
}

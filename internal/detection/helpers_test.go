package detection

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shenikar/traffic_incident_system/internal/config"
	"github.com/shenikar/traffic_incident_system/internal/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	return logger
}

func testConfig() *config.Config {
	return &config.Config{
		CongestionThreshold:  5,
		VehicleCategories:    []string{"car", "motorcycle", "bus", "truck"},
		SeverityTiers:        config.DefaultSeverityTiers(),
		ConfidenceFloor:      0.5,
		ConfidenceSaturation: 10,
		DedupCooldown:        5 * time.Second,
		DedupConfirmFrames:   1,
		DedupKeyPrecision:    3,
		DedupKeyByName:       true,
		DedupStaleAfter:      time.Hour,
		DedupSweepInterval:   time.Minute,
		DedupMaxKeys:         100,
	}
}

func testCamera() config.Camera {
	return config.Camera{
		ID:        "cam-kh",
		Name:      "Kigali Heights",
		Latitude:  -1.9536,
		Longitude: 30.0919,
	}
}

func vehicles(n int) []DetectedObject {
	objects := make([]DetectedObject, n)
	for i := range objects {
		objects[i] = DetectedObject{Category: "car", Confidence: 0.9}
	}
	return objects
}

// sliceSource отдает заранее заданные кадры и поддерживает перемотку
type sliceSource struct {
	mu     sync.Mutex
	frames []*Frame
	pos    int
}

func (s *sliceSource) Next(_ context.Context) (*Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.frames) {
		return nil, io.EOF
	}
	f := s.frames[s.pos]
	s.pos++
	return f, nil
}

func (s *sliceSource) Rewind() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos = 0
	return nil
}

func (s *sliceSource) Close() error { return nil }

// scriptedClassifier возвращает число машин по номеру кадра
type scriptedClassifier struct {
	counts map[uint64]int
	errs   map[uint64]error
}

func (c *scriptedClassifier) Classify(_ context.Context, frame *Frame) ([]DetectedObject, error) {
	if err, ok := c.errs[frame.Seq]; ok {
		return nil, err
	}
	return vehicles(c.counts[frame.Seq]), nil
}

type recordingSink struct {
	mu         sync.Mutex
	candidates []models.IncidentCandidate
}

func (s *recordingSink) Enqueue(candidate models.IncidentCandidate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidates = append(s.candidates, candidate)
}

func (s *recordingSink) all() []models.IncidentCandidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.IncidentCandidate(nil), s.candidates...)
}

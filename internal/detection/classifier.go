package detection

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shenikar/traffic_incident_system/internal/config"
	"github.com/shenikar/traffic_incident_system/internal/models"
)

// IncidentClassifier строит кандидата в инцидент по объектам одного кадра.
// Состояния между кадрами не хранит.
type IncidentClassifier struct {
	threshold     int
	vehicles      map[string]struct{}
	minConfidence float64
	tiers         []config.SeverityTier
	floor         float64
	saturation    int
	logger        *logrus.Logger
}

// NewIncidentClassifier создает классификатор по порогам из конфигурации.
// Таблица уровней должна быть отсортирована по MinExcess (это делает config.Validate).
func NewIncidentClassifier(cfg *config.Config, logger *logrus.Logger) *IncidentClassifier {
	vehicles := make(map[string]struct{}, len(cfg.VehicleCategories))
	for _, category := range cfg.VehicleCategories {
		vehicles[normalizeCategory(category)] = struct{}{}
	}

	tiers := make([]config.SeverityTier, len(cfg.SeverityTiers))
	copy(tiers, cfg.SeverityTiers)

	return &IncidentClassifier{
		threshold:     cfg.CongestionThreshold,
		vehicles:      vehicles,
		minConfidence: cfg.MinObjectConfidence,
		tiers:         tiers,
		floor:         cfg.ConfidenceFloor,
		saturation:    cfg.ConfidenceSaturation,
		logger:        logger,
	}
}

// Classify возвращает кандидата и true, если на кадре выполнено условие инцидента
func (c *IncidentClassifier) Classify(objects []DetectedObject, camera config.Camera, observedAt time.Time) (models.IncidentCandidate, bool) {
	count := c.countVehicles(objects, camera.ID)
	if count <= c.threshold {
		return models.IncidentCandidate{}, false
	}

	excess := count - c.threshold
	candidate := models.IncidentCandidate{
		Type:         models.IncidentTypeCongestion,
		Severity:     c.severityFor(excess),
		Location:     camera.Location(),
		Confidence:   c.confidenceFor(excess),
		EvidenceRef:  camera.EvidenceRef,
		ObservedAt:   observedAt,
		CameraID:     camera.ID,
		VehicleCount: count,
		Description:  fmt.Sprintf("High traffic detected: %d vehicles at %s", count, locationLabel(camera)),
	}
	return candidate, true
}

func (c *IncidentClassifier) countVehicles(objects []DetectedObject, cameraID string) int {
	count := 0
	for i, obj := range objects {
		category := normalizeCategory(obj.Category)
		if category == "" {
			c.logger.WithFields(logrus.Fields{
				"component": "incident_classifier",
				"camera_id": cameraID,
				"index":     i,
			}).Warn("Dropping detected object without category")
			continue
		}
		if obj.Confidence < c.minConfidence {
			continue
		}
		if _, ok := c.vehicles[category]; ok {
			count++
		}
	}
	return count
}

// severityFor выбирает самый высокий уровень, чей MinExcess не превышает excess
func (c *IncidentClassifier) severityFor(excess int) models.Severity {
	severity := c.tiers[0].Severity
	for _, tier := range c.tiers {
		if excess >= tier.MinExcess {
			severity = tier.Severity
		}
	}
	return severity
}

// confidenceFor - линейная шкала от floor (excess=0) до 1.0 (excess>=saturation)
func (c *IncidentClassifier) confidenceFor(excess int) float64 {
	if excess > c.saturation {
		excess = c.saturation
	}
	confidence := c.floor + (1-c.floor)*float64(excess)/float64(c.saturation)
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}

func normalizeCategory(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}

func locationLabel(camera config.Camera) string {
	if camera.Name != "" {
		return camera.Name
	}
	return fmt.Sprintf("%.5f,%.5f", camera.Latitude, camera.Longitude)
}

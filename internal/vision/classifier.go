package vision

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/shenikar/traffic_incident_system/internal/config"
	"github.com/shenikar/traffic_incident_system/internal/detection"
)

// NewObjectClassifier выбирает классификатор: HTTP сервис при заданном CLASSIFIER_URL,
// иначе локальная DNN модель из MODEL_PATH (сборка с тегом gocv).
func NewObjectClassifier(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (detection.ObjectClassifier, error) {
	switch {
	case cfg.ClassifierURL != "":
		return NewHTTPClassifier(ctx, cfg, logger)
	case cfg.ModelPath != "":
		return newDNNClassifier(cfg, logger)
	default:
		return nil, fmt.Errorf("no object classifier configured: set CLASSIFIER_URL or MODEL_PATH")
	}
}

//go:build !gocv

package vision

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/shenikar/traffic_incident_system/internal/config"
	"github.com/shenikar/traffic_incident_system/internal/detection"
)

func openVideoSource(source string) (detection.FrameSource, error) {
	return nil, fmt.Errorf("video source %q requires a build with the gocv tag", source)
}

func newDNNClassifier(cfg *config.Config, _ *logrus.Logger) (detection.ObjectClassifier, error) {
	return nil, fmt.Errorf("model %q requires a build with the gocv tag", cfg.ModelPath)
}

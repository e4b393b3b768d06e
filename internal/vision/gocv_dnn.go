//go:build gocv

package vision

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/shenikar/traffic_incident_system/internal/config"
	"github.com/shenikar/traffic_incident_system/internal/detection"
)

// minDetectionConfidence отсекает шум SSD до применения MIN_OBJECT_CONFIDENCE
const minDetectionConfidence = 0.3

// cocoLabels - классы COCO для MobileNet SSD, нужные правилам классификации
var cocoLabels = map[int]string{
	1: "person",
	2: "bicycle",
	3: "car",
	4: "motorcycle",
	6: "bus",
	8: "truck",
}

// DNNClassifier запускает MobileNet SSD локально. gocv.Net не потокобезопасен,
// поэтому вызовы Classify сериализуются.
type DNNClassifier struct {
	mu     sync.Mutex
	net    gocv.Net
	logger *logrus.Logger
}

func newDNNClassifier(cfg *config.Config, logger *logrus.Logger) (detection.ObjectClassifier, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}
	if cfg.ModelConfigPath != "" {
		if _, err := os.Stat(cfg.ModelConfigPath); err != nil {
			return nil, fmt.Errorf("model config file not found: %s", cfg.ModelConfigPath)
		}
	}

	net := gocv.ReadNet(cfg.ModelPath, cfg.ModelConfigPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network from %s", cfg.ModelPath)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable target: %w", err)
	}

	logger.WithField("model", cfg.ModelPath).Info("Detection network initialized successfully")
	return &DNNClassifier{net: net, logger: logger}, nil
}

func (c *DNNClassifier) Classify(ctx context.Context, frame *detection.Frame) ([]detection.DetectedObject, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := gocv.IMDecode(frame.Data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame %d: %w", frame.Seq, err)
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, fmt.Errorf("decoded frame %d is empty", frame.Seq)
	}

	blob := gocv.BlobFromImage(mat, 1.0/127.5, image.Pt(300, 300), gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	c.mu.Lock()
	c.net.SetInput(blob, "")
	output := c.net.Forward("")
	c.mu.Unlock()
	defer output.Close()

	// Выход SSD: строки по 7 значений [_, class, confidence, x1, y1, x2, y2] в долях кадра
	rows := output.Reshape(1, output.Total()/7)
	defer rows.Close()

	cols, height := float32(mat.Cols()), float32(mat.Rows())
	var objects []detection.DetectedObject
	for i := 0; i < rows.Rows(); i++ {
		confidence := rows.GetFloatAt(i, 2)
		if confidence < minDetectionConfidence {
			continue
		}
		label, ok := cocoLabels[int(rows.GetFloatAt(i, 1))]
		if !ok {
			continue
		}
		x := int(rows.GetFloatAt(i, 3) * cols)
		y := int(rows.GetFloatAt(i, 4) * height)
		objects = append(objects, detection.DetectedObject{
			Category:   label,
			Confidence: float64(confidence),
			Box: detection.Box{
				X:      x,
				Y:      y,
				Width:  int(rows.GetFloatAt(i, 5)*cols) - x,
				Height: int(rows.GetFloatAt(i, 6)*height) - y,
			},
		})
	}

	c.logger.WithFields(logrus.Fields{"seq": frame.Seq, "objects": len(objects)}).Debug("Frame classified")
	return objects, nil
}

//go:build gocv

package vision

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/shenikar/traffic_incident_system/internal/detection"
)

// VideoSource читает кадры из видеофайла или потока через OpenCV
type VideoSource struct {
	mu      sync.Mutex
	capture *gocv.VideoCapture
	mat     gocv.Mat
	source  string
	seq     uint64
}

func openVideoSource(source string) (detection.FrameSource, error) {
	capture, err := gocv.OpenVideoCapture(source)
	if err != nil {
		return nil, fmt.Errorf("failed to open video source %s: %w", source, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("video source %s could not be opened", source)
	}
	return &VideoSource{
		capture: capture,
		mat:     gocv.NewMat(),
		source:  source,
	}, nil
}

func (s *VideoSource) Next(ctx context.Context) (*detection.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ok := s.capture.Read(&s.mat); !ok || s.mat.Empty() {
		return nil, io.EOF
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, s.mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()
	data := make([]byte, len(buf.GetBytes()))
	copy(data, buf.GetBytes())

	s.seq++
	return &detection.Frame{
		Seq:        s.seq,
		CapturedAt: time.Now(),
		Data:       data,
		Width:      s.mat.Cols(),
		Height:     s.mat.Rows(),
		Ref:        s.source,
	}, nil
}

// Rewind перематывает видеофайл к первому кадру
func (s *VideoSource) Rewind() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capture.Set(gocv.VideoCapturePosFrames, 0)
	return nil
}

func (s *VideoSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mat.Close(); err != nil {
		return err
	}
	return s.capture.Close()
}

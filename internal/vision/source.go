// Package vision содержит адаптеры внешних возможностей детектора: источники кадров и классификаторы объектов.
package vision

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shenikar/traffic_incident_system/internal/config"
	"github.com/shenikar/traffic_incident_system/internal/detection"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// NewFrameSource открывает источник кадров камеры: каталог с изображениями или видео (сборка с тегом gocv)
func NewFrameSource(camera config.Camera) (detection.FrameSource, error) {
	if camera.Source == "" {
		return nil, fmt.Errorf("camera %q: source is not configured", camera.ID)
	}

	info, err := os.Stat(camera.Source)
	if err == nil && info.IsDir() {
		return NewDirSource(camera.Source)
	}
	return openVideoSource(camera.Source)
}

// DirSource отдает изображения каталога в лексикографическом порядке имен
type DirSource struct {
	mu    sync.Mutex
	files []string
	next  int
	seq   uint64
	now   func() time.Time
}

// NewDirSource читает список изображений каталога. Пустой каталог - ошибка.
func NewDirSource(dir string) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame directory %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("frame directory %s contains no images", dir)
	}
	sort.Strings(files)

	return &DirSource{files: files, now: time.Now}, nil
}

func (s *DirSource) Next(ctx context.Context) (*detection.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.next >= len(s.files) {
		return nil, io.EOF
	}
	path := s.files[s.next]
	s.next++

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame %s: %w", path, err)
	}

	s.seq++
	return &detection.Frame{
		Seq:        s.seq,
		CapturedAt: s.now(),
		Data:       data,
		Ref:        path,
	}, nil
}

// Rewind возвращает источник к первому изображению. Нумерация кадров продолжается.
func (s *DirSource) Rewind() error {
	s.mu.Lock()
	s.next = 0
	s.mu.Unlock()
	return nil
}

func (s *DirSource) Close() error {
	return nil
}

package detection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shenikar/traffic_incident_system/internal/config"
)

// PipelineStats - счетчики цикла обнаружения
type PipelineStats struct {
	Frames         uint64 `json:"frames"`
	ClassifyErrors uint64 `json:"classify_errors"`
	Candidates     uint64 `json:"candidates"`
	Suppressed     uint64 `json:"suppressed"`
	Forwarded      uint64 `json:"forwarded"`
	Rewinds        uint64 `json:"rewinds"`
}

// Pipeline - цикл обнаружения для одной камеры.
// Кадр N+1 не запрашивается, пока не обработан кадр N.
type Pipeline struct {
	camera     config.Camera
	source     FrameSource
	objects    ObjectClassifier
	classifier *IncidentClassifier
	dedup      *Deduplicator
	sink       CandidateSink
	logger     *logrus.Entry

	frameInterval time.Duration
	loop          bool
	now           func() time.Time

	frames         atomic.Uint64
	classifyErrors atomic.Uint64
	candidates     atomic.Uint64
	suppressed     atomic.Uint64
	forwarded      atomic.Uint64
	rewinds        atomic.Uint64
}

// NewPipeline собирает цикл обнаружения. Deduplicator создается заново: состояние принадлежит камере.
func NewPipeline(
	cfg *config.Config,
	camera config.Camera,
	source FrameSource,
	objects ObjectClassifier,
	sink CandidateSink,
	logger *logrus.Logger,
) *Pipeline {
	return &Pipeline{
		camera:        camera,
		source:        source,
		objects:       objects,
		classifier:    NewIncidentClassifier(cfg, logger),
		dedup:         NewDeduplicator(cfg, logger),
		sink:          sink,
		logger:        logger.WithFields(logrus.Fields{"component": "pipeline", "camera_id": camera.ID}),
		frameInterval: cfg.FrameInterval,
		loop:          cfg.LoopSource,
		now:           time.Now,
	}
}

// Run обрабатывает кадры до отмены ctx или конца потока.
// Ошибки классификации отдельного кадра логируются и не прерывают цикл.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("Starting detection loop")
	defer func() {
		p.logger.WithField("stats", p.Stats()).Info("Detection loop stopped")
	}()

	framesSinceRewind := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		frame, err := p.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				rewinder, ok := p.source.(Rewinder)
				if !p.loop || !ok {
					p.logger.Info("Frame source reached end of stream")
					return nil
				}
				if framesSinceRewind == 0 && p.rewinds.Load() > 0 {
					return fmt.Errorf("frame source produced no frames after rewind")
				}
				if err := rewinder.Rewind(); err != nil {
					return fmt.Errorf("failed to rewind frame source: %w", err)
				}
				p.rewinds.Add(1)
				framesSinceRewind = 0
				continue
			}
			return fmt.Errorf("frame source failed: %w", err)
		}

		framesSinceRewind++
		p.ProcessFrame(ctx, frame)

		if p.frameInterval > 0 {
			timer := time.NewTimer(p.frameInterval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
		}
	}
}

// ProcessFrame прогоняет один кадр через классификаторы и подавление дубликатов
func (p *Pipeline) ProcessFrame(ctx context.Context, frame *Frame) {
	p.frames.Add(1)

	now := frame.CapturedAt
	if now.IsZero() {
		now = p.now()
	}

	objects, err := p.objects.Classify(ctx, frame)
	if err != nil {
		p.classifyErrors.Add(1)
		p.logger.WithError(err).WithField("frame_seq", frame.Seq).Warn("Failed to classify frame, skipping")
		return
	}

	candidate, ok := p.classifier.Classify(objects, p.camera, now)
	if !ok {
		p.dedup.Miss(p.dedup.Key(p.camera.Location()), now)
		return
	}
	if candidate.EvidenceRef == "" {
		candidate.EvidenceRef = frame.Ref
	}
	p.candidates.Add(1)

	if !p.dedup.Admit(candidate, now) {
		p.suppressed.Add(1)
		p.logger.WithFields(logrus.Fields{
			"frame_seq":     frame.Seq,
			"vehicle_count": candidate.VehicleCount,
		}).Debug("Candidate suppressed")
		return
	}

	p.forwarded.Add(1)
	p.logger.WithFields(logrus.Fields{
		"frame_seq":     frame.Seq,
		"type":          candidate.Type,
		"severity":      candidate.Severity,
		"vehicle_count": candidate.VehicleCount,
	}).Info("Incident candidate accepted")
	p.sink.Enqueue(candidate)
}

// Stats возвращает снимок счетчиков
func (p *Pipeline) Stats() PipelineStats {
	return PipelineStats{
		Frames:         p.frames.Load(),
		ClassifyErrors: p.classifyErrors.Load(),
		Candidates:     p.candidates.Load(),
		Suppressed:     p.suppressed.Load(),
		Forwarded:      p.forwarded.Load(),
		Rewinds:        p.rewinds.Load(),
	}
}

func (p *Pipeline) CameraID() string {
	return p.camera.ID
}

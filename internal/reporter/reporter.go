// Package reporter доставляет принятых кандидатов в хранилище инцидентов,
// не задерживая цикл обнаружения: производитель и доставка связаны ограниченной очередью.
package reporter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shenikar/traffic_incident_system/internal/config"
	"github.com/shenikar/traffic_incident_system/internal/models"
)

const (
	enqueueTimeout = time.Second
	popErrorDelay  = time.Second
)

// DeadLetterStore сохраняет кандидатов, которых не удалось доставить
type DeadLetterStore interface {
	Save(ctx context.Context, candidate models.IncidentCandidate, reason string, attempts int) error
}

// Stats - снимок счетчиков доставки
type Stats struct {
	Enqueued      uint64 `json:"enqueued"`
	EnqueueErrors uint64 `json:"enqueue_errors"`
	QueueDropped  uint64 `json:"queue_dropped"`
	Attempts      uint64 `json:"attempts"`
	Delivered     uint64 `json:"delivered"`
	Rejected      uint64 `json:"rejected"`
	Dropped       uint64 `json:"dropped"`
	Discarded     uint64 `json:"discarded"`
	QueueLength   int    `json:"queue_length"`
}

// Reporter - фоновая доставка кандидатов с повторами и экспоненциальной задержкой
type Reporter struct {
	queue       Queue
	sender      Sender
	deadLetters DeadLetterStore
	logger      *logrus.Logger

	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	sleep      func(ctx context.Context, d time.Duration) error

	cancel    context.CancelFunc
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once

	enqueued      atomic.Uint64
	enqueueErrors atomic.Uint64
	queueDropped  atomic.Uint64
	attempts      atomic.Uint64
	delivered     atomic.Uint64
	rejected      atomic.Uint64
	dropped       atomic.Uint64
	discarded     atomic.Uint64
}

// NewReporter создает Reporter. deadLetters может быть nil.
func NewReporter(cfg *config.Config, queue Queue, sender Sender, deadLetters DeadLetterStore, logger *logrus.Logger) *Reporter {
	return &Reporter{
		queue:       queue,
		sender:      sender,
		deadLetters: deadLetters,
		logger:      logger,
		maxRetries:  cfg.ReporterMaxRetries,
		baseDelay:   cfg.ReporterBaseDelay,
		maxDelay:    cfg.ReporterMaxDelay,
		sleep:       sleepContext,
		done:        make(chan struct{}),
	}
}

// Start запускает горутину доставки. Отмена ctx прерывает доставку без дренажа,
// для штатной остановки используется Close.
func (r *Reporter) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		ctx, r.cancel = context.WithCancel(ctx)
		r.logger.Info("Starting incident reporter...")
		go r.run(ctx)
	})
}

// Enqueue ставит кандидата в очередь и никогда не блокирует надолго.
// При переполнении вытесняется самый старый кандидат.
func (r *Reporter) Enqueue(candidate models.IncidentCandidate) {
	ctx, cancel := context.WithTimeout(context.Background(), enqueueTimeout)
	defer cancel()

	dropped, err := r.queue.Push(ctx, candidate)
	if err != nil {
		r.enqueueErrors.Add(1)
		r.logger.WithError(err).WithField("camera_id", candidate.CameraID).Error("Failed to enqueue incident candidate")
		return
	}
	r.enqueued.Add(1)
	if dropped > 0 {
		total := r.queueDropped.Add(uint64(dropped))
		r.logger.WithFields(logrus.Fields{
			"camera_id":           candidate.CameraID,
			"dropped":             dropped,
			"queue_dropped_total": total,
		}).Warn("Reporter queue full, dropped oldest candidate")
	}
}

func (r *Reporter) run(ctx context.Context) {
	defer close(r.done)
	for {
		candidate, err := r.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, ErrQueueClosed) || ctx.Err() != nil {
				r.logger.Info("Stopping incident reporter.")
				return
			}
			r.logger.WithError(err).Error("Failed to pop incident candidate")
			if r.sleep(ctx, popErrorDelay) != nil {
				return
			}
			continue
		}
		r.deliver(ctx, candidate)
	}
}

// deliver делает не более maxRetries+1 попыток
func (r *Reporter) deliver(ctx context.Context, candidate models.IncidentCandidate) {
	log := r.logger.WithFields(logrus.Fields{
		"camera_id": candidate.CameraID,
		"type":      candidate.Type,
		"severity":  candidate.Severity,
	})

	delay := r.baseDelay
	attempts := 0
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		attempts++
		r.attempts.Add(1)

		err := r.sender.Send(ctx, candidate)
		if err == nil {
			r.delivered.Add(1)
			log.WithField("attempts", attempts).Info("Incident delivered successfully.")
			return
		}
		lastErr = err

		if IsPermanent(err) {
			r.rejected.Add(1)
			log.WithError(err).Error("Incident rejected by ingestion, not retrying")
			r.saveDeadLetter(candidate, fmt.Sprintf("rejected: %v", err), attempts)
			return
		}

		if attempt == r.maxRetries {
			break
		}

		log.WithError(err).Warnf("Failed to deliver incident. Retrying in %v. Retries left: %d", delay, r.maxRetries-attempt)
		if err := r.sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
		delay *= 2 // Экспоненциальная задержка
		if r.maxDelay > 0 && delay > r.maxDelay {
			delay = r.maxDelay
		}
	}

	// Доставку прервала остановка, а не исчерпание попыток
	if ctx.Err() != nil {
		total := r.discarded.Add(1)
		log.WithError(lastErr).WithFields(logrus.Fields{
			"attempts":        attempts,
			"discarded_total": total,
		}).Warn("Incident delivery interrupted by shutdown, candidate discarded")
		r.saveDeadLetter(candidate, "discarded on shutdown", attempts)
		return
	}

	total := r.dropped.Add(1)
	log.WithError(lastErr).WithFields(logrus.Fields{
		"attempts":      attempts,
		"dropped_total": total,
	}).Error("Failed to deliver incident, candidate dropped")
	r.saveDeadLetter(candidate, fmt.Sprintf("dropped: %v", lastErr), attempts)
}

func (r *Reporter) saveDeadLetter(candidate models.IncidentCandidate, reason string, attempts int) {
	if r.deadLetters == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.deadLetters.Save(ctx, candidate, reason, attempts); err != nil {
		r.logger.WithError(err).Error("Failed to save dead letter")
	}
}

// Close останавливает прием кандидатов. При drain=true оставшиеся кандидаты доставляются,
// пока не истечет ctx; иначе они отбрасываются с учетом в счетчике Discarded.
func (r *Reporter) Close(ctx context.Context, drain bool) error {
	var err error
	r.closeOnce.Do(func() {
		if cerr := r.queue.Close(); cerr != nil {
			r.logger.WithError(cerr).Warn("Failed to close reporter queue")
		}
		if r.cancel != nil {
			if !drain {
				r.cancel()
			}

			select {
			case <-r.done:
			case <-ctx.Done():
				r.cancel()
				<-r.done
				err = fmt.Errorf("reporter drain interrupted: %w", ctx.Err())
			}
			r.cancel()
		}

		discarded := r.discardRemaining()
		if discarded > 0 {
			r.logger.WithField("discarded", discarded).Warn("Discarded undelivered incident candidates on shutdown")
		}
	})
	return err
}

func (r *Reporter) discardRemaining() int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	n := 0
	for {
		candidate, err := r.queue.Pop(ctx)
		if err != nil {
			break
		}
		n++
		r.discarded.Add(1)
		r.saveDeadLetter(candidate, "discarded on shutdown", 0)
	}
	return n
}

// Stats возвращает снимок счетчиков
func (r *Reporter) Stats() Stats {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return Stats{
		Enqueued:      r.enqueued.Load(),
		EnqueueErrors: r.enqueueErrors.Load(),
		QueueDropped:  r.queueDropped.Load(),
		Attempts:      r.attempts.Load(),
		Delivered:     r.delivered.Load(),
		Rejected:      r.rejected.Load(),
		Dropped:       r.dropped.Load(),
		Discarded:     r.discarded.Load(),
		QueueLength:   r.queue.Len(ctx),
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package reporter

import (
	"context"
	"errors"
	"sync"

	"github.com/shenikar/traffic_incident_system/internal/models"
)

// ErrQueueClosed возвращается Pop, когда очередь закрыта и пуста, и Push после закрытия
var ErrQueueClosed = errors.New("reporter queue closed")

// Queue - ограниченная FIFO очередь кандидатов. При переполнении вытесняется самый старый элемент.
type Queue interface {
	// Push добавляет элемент и возвращает число вытесненных элементов
	Push(ctx context.Context, candidate models.IncidentCandidate) (int, error)
	// Pop блокирует до появления элемента, отмены ctx или закрытия пустой очереди
	Pop(ctx context.Context) (models.IncidentCandidate, error)
	Len(ctx context.Context) int
	// Close запрещает Push; оставшиеся элементы можно забрать через Pop
	Close() error
}

// MemoryQueue - кольцевой буфер в памяти процесса
type MemoryQueue struct {
	mu       sync.Mutex
	items    []models.IncidentCandidate
	head     int
	size     int
	closed   bool
	notEmpty chan struct{}
}

// NewMemoryQueue создает очередь емкостью capacity (минимум 1)
func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &MemoryQueue{
		items:    make([]models.IncidentCandidate, capacity),
		notEmpty: make(chan struct{}, 1),
	}
}

func (q *MemoryQueue) Push(_ context.Context, candidate models.IncidentCandidate) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return 0, ErrQueueClosed
	}

	dropped := 0
	if q.size == len(q.items) {
		q.items[q.head] = models.IncidentCandidate{}
		q.head = (q.head + 1) % len(q.items)
		q.size--
		dropped = 1
	}
	q.items[(q.head+q.size)%len(q.items)] = candidate
	q.size++

	select {
	case q.notEmpty <- struct{}{}:
	default:
	}
	return dropped, nil
}

func (q *MemoryQueue) Pop(ctx context.Context) (models.IncidentCandidate, error) {
	for {
		q.mu.Lock()
		if q.size > 0 {
			candidate := q.items[q.head]
			q.items[q.head] = models.IncidentCandidate{}
			q.head = (q.head + 1) % len(q.items)
			q.size--
			if q.size > 0 && !q.closed {
				select {
				case q.notEmpty <- struct{}{}:
				default:
				}
			}
			q.mu.Unlock()
			return candidate, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return models.IncidentCandidate{}, ErrQueueClosed
		}

		select {
		case <-ctx.Done():
			return models.IncidentCandidate{}, ctx.Err()
		case <-q.notEmpty:
		}
	}
}

func (q *MemoryQueue) Len(_ context.Context) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.notEmpty)
	}
	return nil
}

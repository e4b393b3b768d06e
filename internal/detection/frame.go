// Package detection превращает поток кадров с камеры в подтвержденных кандидатов в инциденты.
//
// Цепочка FrameSource → ObjectClassifier → IncidentClassifier → Deduplicator выполняется
// последовательно, по одному кадру. Кандидаты, прошедшие Deduplicator, передаются в CandidateSink.
package detection

import (
	"context"
	"time"

	"github.com/shenikar/traffic_incident_system/internal/models"
)

// Frame - один кадр видеопотока
type Frame struct {
	Seq        uint64
	CapturedAt time.Time
	Data       []byte // JPEG
	Width      int
	Height     int
	// Ref - ссылка на медиа-источник кадра (файл, URL потока)
	Ref string
}

// Box - ограничивающий прямоугольник объекта в пикселях
type Box struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DetectedObject - объект, найденный классификатором на кадре
type DetectedObject struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}

// FrameSource отдает кадры по одному. По окончании потока Next возвращает io.EOF.
type FrameSource interface {
	Next(ctx context.Context) (*Frame, error)
	Close() error
}

// Rewinder реализуется файловыми источниками, которые можно перемотать в начало
type Rewinder interface {
	Rewind() error
}

// ObjectClassifier находит объекты на кадре.
// Недоступность модели - фатальная ошибка при создании, а не при вызове Classify.
type ObjectClassifier interface {
	Classify(ctx context.Context, frame *Frame) ([]DetectedObject, error)
}

// CandidateSink принимает кандидатов, прошедших подавление дубликатов. Enqueue не должен блокировать.
type CandidateSink interface {
	Enqueue(candidate models.IncidentCandidate)
}

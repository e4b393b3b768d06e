package detection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func framesAt(start time.Time, offsets ...time.Duration) []*Frame {
	frames := make([]*Frame, len(offsets))
	for i, offset := range offsets {
		frames[i] = &Frame{Seq: uint64(i + 1), CapturedAt: start.Add(offset), Ref: "frame.jpg"}
	}
	return frames
}

func TestPipeline_SuppressesDuplicatesWithinCooldown(t *testing.T) {
	// Подготовка
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	source := &sliceSource{frames: framesAt(start,
		0, 400*time.Millisecond, 800*time.Millisecond,
		1200*time.Millisecond, 1600*time.Millisecond, 2*time.Second,
		10*time.Second,
	)}
	classifier := &scriptedClassifier{counts: map[uint64]int{1: 6, 2: 6, 3: 6, 4: 6, 5: 6, 6: 6, 7: 6}}
	sink := &recordingSink{}
	cfg := testConfig()
	cfg.LoopSource = false

	p := NewPipeline(cfg, testCamera(), source, classifier, sink, testLogger())

	// Действие
	err := p.Run(context.Background())

	// Проверки
	require.NoError(t, err)
	candidates := sink.all()
	require.Len(t, candidates, 2)
	assert.Equal(t, start, candidates[0].ObservedAt)
	assert.Equal(t, start.Add(10*time.Second), candidates[1].ObservedAt)
	assert.Equal(t, "frame.jpg", candidates[0].EvidenceRef)

	stats := p.Stats()
	assert.Equal(t, uint64(7), stats.Frames)
	assert.Equal(t, uint64(7), stats.Candidates)
	assert.Equal(t, uint64(5), stats.Suppressed)
	assert.Equal(t, uint64(2), stats.Forwarded)
}

func TestPipeline_ClassifyErrorSkipsFrame(t *testing.T) {
	start := time.Now()
	source := &sliceSource{frames: framesAt(start, 0, time.Second)}
	classifier := &scriptedClassifier{
		counts: map[uint64]int{2: 9},
		errs:   map[uint64]error{1: errors.New("model timeout")},
	}
	sink := &recordingSink{}
	cfg := testConfig()

	p := NewPipeline(cfg, testCamera(), source, classifier, sink, testLogger())
	require.NoError(t, p.Run(context.Background()))

	assert.Len(t, sink.all(), 1)
	stats := p.Stats()
	assert.Equal(t, uint64(1), stats.ClassifyErrors)
	assert.Equal(t, uint64(2), stats.Frames)
}

func TestPipeline_BelowThresholdForwardsNothing(t *testing.T) {
	start := time.Now()
	source := &sliceSource{frames: framesAt(start, 0, time.Second, 2*time.Second)}
	classifier := &scriptedClassifier{counts: map[uint64]int{1: 2, 2: 5, 3: 0}}
	sink := &recordingSink{}

	p := NewPipeline(testConfig(), testCamera(), source, classifier, sink, testLogger())
	require.NoError(t, p.Run(context.Background()))

	assert.Empty(t, sink.all())
	assert.Equal(t, uint64(0), p.Stats().Candidates)
}

func TestPipeline_LoopRewindsUntilCancelled(t *testing.T) {
	source := &sliceSource{frames: []*Frame{{Seq: 1}, {Seq: 2}}}
	classifier := &scriptedClassifier{}
	cfg := testConfig()
	cfg.LoopSource = true
	cfg.FrameInterval = time.Millisecond

	p := NewPipeline(cfg, testCamera(), source, classifier, &recordingSink{}, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, p.Run(ctx))

	assert.Positive(t, p.Stats().Rewinds)
}

func TestPipeline_EmptyLoopingSourceFails(t *testing.T) {
	cfg := testConfig()
	cfg.LoopSource = true

	p := NewPipeline(cfg, testCamera(), &sliceSource{}, &scriptedClassifier{}, &recordingSink{}, testLogger())

	err := p.Run(context.Background())
	assert.Error(t, err)
}

package preview

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/vusociu/datn/internal/broadcast"
	"github.com/vusociu/datn/internal/camera"
	"github.com/vusociu/datn/internal/constants"
	"github.com/vusociu/datn/internal/locker"
	"github.com/vusociu/datn/internal/metrics"
)

// Source produces preview frames; the locker engine implements it.
type Source interface {
	Preview(ctx context.Context, recognize bool) (camera.Frame, []locker.Label, error)
	RecognitionEnabled() bool
}

// Loop captures, labels and publishes preview frames at a fixed rate while
// anyone is watching.
type Loop struct {
	source   Source
	frames   *broadcast.Broadcaster[[]byte]
	interval time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewLoop creates a preview loop publishing JPEG frames to frames.
func NewLoop(source Source, fps int, frames *broadcast.Broadcaster[[]byte], logger *slog.Logger, m *metrics.Metrics) *Loop {
	if fps <= 0 {
		fps = constants.DefaultPreviewFPS
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		source:   source,
		frames:   frames,
		interval: time.Second / time.Duration(fps),
		logger:   logger.With("component", "preview"),
		metrics:  m,
	}
}

// Run ticks until ctx is canceled.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := l.Tick(ctx); err != nil {
				l.logger.Debug("preview frame skipped", "error", err)
			}
		}
	}
}

// Tick produces one frame. Nothing is captured while no one is watching or
// while the engine is busy with a command.
func (l *Loop) Tick(ctx context.Context) error {
	if l.frames.Listeners() == 0 {
		return nil
	}

	frame, labels, err := l.source.Preview(ctx, l.source.RecognitionEnabled())
	if errors.Is(err, locker.ErrBusy) {
		return nil
	}
	if frame.Image == nil {
		if err == nil {
			err = camera.ErrNoFrame
		}
		return err
	}
	if err != nil {
		// detection failed; still show the raw frame
		l.logger.Debug("preview recognition failed", "error", err)
	}

	data, err := Render(frame.Image, labels)
	if err != nil {
		return err
	}
	l.frames.Send(data)
	l.metrics.IncrementPreviewFrame()
	return nil
}

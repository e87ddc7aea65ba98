package extract

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotclone/internal/shared"
)

// Stream is the in-process strategy: it reads a whole media stream into memory.
type Stream struct {
	id       string
	streamer Streamer
	timeout  time.Duration
	logger   *log.Logger
}

// NewStream creates a [Stream] strategy. A zero timeout selects [DefaultTimeout].
func NewStream(id string, streamer Streamer, timeout time.Duration, logger *log.Logger) *Stream {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Stream{
		id:       id,
		streamer: streamer,
		timeout:  timeoutOrDefault(timeout),
		logger:   shared.WithPrefix(logger, "stream"),
	}
}

func (s *Stream) ID() string { return s.id }

// Extract opens the stream for sourceURL and reads it fully within the timeout.
func (s *Stream) Extract(ctx context.Context, sourceURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	data, err := readStream(ctx, func(ctx context.Context) (io.ReadCloser, error) {
		return s.streamer.Stream(ctx, sourceURL)
	})
	if err != nil {
		s.logger.Debug("stream attempt failed", "strategy", s.id, "url", sourceURL, "error", err)
		return nil, fmt.Errorf("%w: %s: %w", shared.ErrExtractionFailed, s.id, err)
	}

	if data, err = checkViable(data); err != nil {
		s.logger.Debug("stream payload rejected", "strategy", s.id, "url", sourceURL, "error", err)
		return nil, fmt.Errorf("%w: %s: %w", shared.ErrExtractionFailed, s.id, err)
	}

	s.logger.Debug("stream attempt succeeded", "strategy", s.id, "bytes", len(data), "elapsed", time.Since(started))
	return data, nil
}

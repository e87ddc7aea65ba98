package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/desertthunder/spotclone/internal/models"
	"github.com/desertthunder/spotclone/internal/shared"
)

// DefaultTimeout bounds a single extraction attempt.
const DefaultTimeout = 60 * time.Second

// Strategy turns a source URL into a viable audio payload.
type Strategy interface {
	ID() string
	Extract(ctx context.Context, sourceURL string) ([]byte, error)
}

// Streamer opens a media stream for a source URL through a platform client.
type Streamer interface {
	Stream(ctx context.Context, sourceURL string) (io.ReadCloser, error)
}

// StreamerFunc adapts a function to [Streamer].
type StreamerFunc func(ctx context.Context, sourceURL string) (io.ReadCloser, error)

func (f StreamerFunc) Stream(ctx context.Context, sourceURL string) (io.ReadCloser, error) {
	return f(ctx, sourceURL)
}

// checkViable rejects payloads below [models.MinViableBytes].
func checkViable(data []byte) ([]byte, error) {
	if !models.IsViable(data) {
		return nil, fmt.Errorf("%w: got %d bytes, need %d", shared.ErrPayloadTooSmall, len(data), models.MinViableBytes)
	}
	return data, nil
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultTimeout
	}
	return d
}

// contextError maps an expired context to [shared.ErrTimeout].
func contextError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: attempt exceeded its deadline", shared.ErrTimeout)
	}
	return ctx.Err()
}

type readResult struct {
	data []byte
	err  error
}

// readStream opens a stream and reads it to the end, giving up when ctx is done.
//
// On expiry the handle is closed (or closed as soon as open returns) and the call
// returns without waiting for the reader goroutine.
func readStream(ctx context.Context, open func(context.Context) (io.ReadCloser, error)) ([]byte, error) {
	var (
		mu      sync.Mutex
		handle  io.Closer
		aborted bool
	)

	done := make(chan readResult, 1)
	go func() {
		rc, err := open(ctx)
		if err != nil {
			done <- readResult{err: err}
			return
		}
		defer rc.Close()

		mu.Lock()
		if aborted {
			mu.Unlock()
			done <- readResult{err: context.Canceled}
			return
		}
		handle = rc
		mu.Unlock()

		data, err := io.ReadAll(rc)
		done <- readResult{data: data, err: err}
	}()

	select {
	case r := <-done:
		return r.data, r.err
	case <-ctx.Done():
		mu.Lock()
		aborted = true
		if handle != nil {
			handle.Close()
		}
		mu.Unlock()
		return nil, contextError(ctx)
	}
}

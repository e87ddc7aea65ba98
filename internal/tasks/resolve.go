package tasks

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotclone/internal/models"
	"github.com/desertthunder/spotclone/internal/services"
	"github.com/desertthunder/spotclone/internal/shared"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// MaxBatchTracks caps the number of tracks in one batch request.
const MaxBatchTracks = 50

// BatchRequest asks for stream URLs for several tracks on one platform.
type BatchRequest struct {
	Tracks   []models.DownloadRequest
	Platform models.ProviderID
	Quality  services.Quality
	Format   string // reported only when the stream's own format is unknown
}

// TrackStream is the per-track outcome of a batch resolution.
type TrackStream struct {
	TrackName   string `json:"trackName"`
	ArtistName  string `json:"artistName,omitempty"`
	Success     bool   `json:"success"`
	Title       string `json:"title,omitempty"`
	Platform    string `json:"platform"`
	DownloadURL string `json:"downloadUrl,omitempty"`
	OriginalURL string `json:"originalUrl,omitempty"`
	Thumbnail   string `json:"thumbnail,omitempty"`
	Duration    *int   `json:"duration,omitempty"`
	Format      string `json:"format,omitempty"`
	Error       string `json:"error,omitempty"`
}

// BatchResult summarizes a batch resolution. Tracks keep request order.
type BatchResult struct {
	TotalTracks      int           `json:"totalTracks"`
	SuccessfulTracks int           `json:"successfulTracks"`
	FailedTracks     int           `json:"failedTracks"`
	Tracks           []TrackStream `json:"tracks"`
}

// BatchOpts contains configuration for batch resolution.
type BatchOpts struct {
	Concurrency int     // Concurrent lookups (default: 4)
	RateLimit   float64 // Lookups started per second, 0 for unlimited
}

// BatchResolver performs search plus stream-URL resolution for many tracks.
// It never runs the extraction fallback chain.
type BatchResolver struct {
	resolvers map[models.ProviderID]services.StreamResolver
	opts      BatchOpts
	logger    *log.Logger
}

// NewBatchResolver creates a resolver over the given platforms.
func NewBatchResolver(opts BatchOpts, logger *log.Logger, resolvers ...services.StreamResolver) *BatchResolver {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	m := make(map[models.ProviderID]services.StreamResolver, len(resolvers))
	for _, r := range resolvers {
		m[r.ID()] = r
	}
	return &BatchResolver{resolvers: m, opts: opts, logger: shared.WithPrefix(logger, "batch")}
}

// Validate checks the request shape before any lookup.
func (b *BatchResolver) Validate(req BatchRequest) error {
	switch {
	case len(req.Tracks) == 0:
		return fmt.Errorf("%w: tracks must be a non-empty array", shared.ErrMissingArgument)
	case len(req.Tracks) > MaxBatchTracks:
		return fmt.Errorf("%w: at most %d tracks per request, got %d", shared.ErrInvalidArgument, MaxBatchTracks, len(req.Tracks))
	}
	if _, ok := b.resolvers[req.Platform]; !ok {
		return fmt.Errorf("%w: unsupported platform %q", shared.ErrInvalidArgument, req.Platform)
	}
	return nil
}

// Resolve looks up every track concurrently. Per-track failures are reported in
// the result; the error is only set when the request itself is invalid.
func (b *BatchResolver) Resolve(ctx context.Context, req BatchRequest, progress chan<- ProgressUpdate) (*BatchResult, error) {
	if err := b.Validate(req); err != nil {
		return nil, err
	}

	resolver := b.resolvers[req.Platform]
	total := len(req.Tracks)
	tracks := make([]TrackStream, total)

	var limiter *rate.Limiter
	if b.opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(b.opts.RateLimit), 1)
	}

	var completed atomic.Int32
	var g errgroup.Group
	g.SetLimit(b.opts.Concurrency)

	for i, track := range req.Tracks {
		g.Go(func() error {
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					tracks[i] = failedTrack(track, req.Platform, err)
					return nil
				}
			}

			tracks[i] = b.resolveOne(ctx, resolver, track, req)
			sendProgress(progress, resolvedUpdate(int(completed.Add(1)), total, tracks[i]))
			return nil
		})
	}
	_ = g.Wait()

	result := &BatchResult{TotalTracks: total, Tracks: tracks}
	for _, t := range tracks {
		if t.Success {
			result.SuccessfulTracks++
		} else {
			result.FailedTracks++
		}
	}

	b.logger.Info("batch resolved", "platform", req.Platform, "total", total, "ok", result.SuccessfulTracks)
	return result, nil
}

func (b *BatchResolver) resolveOne(ctx context.Context, r services.StreamResolver, track models.DownloadRequest, req BatchRequest) TrackStream {
	if err := track.Validate(); err != nil {
		return failedTrack(track, req.Platform, err)
	}

	candidate, err := r.Search(ctx, track.SearchQuery())
	if err != nil {
		b.logger.Warn("search failed", "track", track.TrackName, "error", err)
		return failedTrack(track, req.Platform, err)
	}
	if candidate == nil {
		return failedTrack(track, req.Platform, fmt.Errorf("no match found on %s", r.Name()))
	}

	info, err := r.StreamURL(ctx, candidate.SourceURL, req.Quality)
	if err != nil {
		b.logger.Warn("stream url failed", "track", track.TrackName, "url", candidate.SourceURL, "error", err)
		return failedTrack(track, req.Platform, err)
	}

	ts := TrackStream{
		TrackName:   track.TrackName,
		ArtistName:  track.ArtistName,
		Success:     true,
		Title:       candidate.Title,
		Platform:    string(req.Platform),
		DownloadURL: info.URL,
		OriginalURL: candidate.SourceURL,
		Thumbnail:   candidate.Thumbnail,
		Duration:    candidate.Duration,
		Format:      formatFromMime(info.MimeType),
	}
	if info.Thumbnail != "" {
		ts.Thumbnail = info.Thumbnail
	}
	if info.Duration != nil {
		ts.Duration = info.Duration
	}
	if ts.Format == "" {
		ts.Format = req.Format
	}
	return ts
}

func failedTrack(track models.DownloadRequest, platform models.ProviderID, err error) TrackStream {
	return TrackStream{
		TrackName:  track.TrackName,
		ArtistName: track.ArtistName,
		Platform:   string(platform),
		Error:      err.Error(),
	}
}

// formatFromMime maps "audio/webm; codecs=\"opus\"" to "webm" and "audio/mpeg" to "mp3".
func formatFromMime(mime string) string {
	mime, _, _ = strings.Cut(mime, ";")
	_, sub, ok := strings.Cut(strings.TrimSpace(mime), "/")
	if !ok {
		return ""
	}
	switch sub {
	case "mpeg":
		return "mp3"
	case "mp4":
		return "m4a"
	default:
		return sub
	}
}

// package tasks implements the download engine and batch stream-URL resolution.
//
// The core abstraction is [DownloadEngine], which walks an ordered list of
// provider steps and extraction attempts until one yields a viable payload.
package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotclone/internal/extract"
	"github.com/desertthunder/spotclone/internal/models"
	"github.com/desertthunder/spotclone/internal/services"
	"github.com/desertthunder/spotclone/internal/shared"
)

const defaultSearchTimeout = 60 * time.Second

// Attempt pairs a strategy with the provenance tag reported when it succeeds.
type Attempt struct {
	Strategy extract.Strategy
	Source   string
}

// Step searches one provider and, on a match, runs its attempts in order.
type Step struct {
	Provider     services.Provider
	SearchState  State
	ExtractState State
	Attempts     []Attempt
}

// DefaultSteps is the fixed fallback policy: YouTube through yt-dlp then in-process
// streaming, then SoundCloud through in-process streaming only.
func DefaultSteps(youtube, soundcloud services.Provider, ytdlp, youtubeStream, soundcloudStream extract.Strategy) []Step {
	return []Step{
		{
			Provider:     youtube,
			SearchState:  SearchingPrimary,
			ExtractState: ExtractingPrimary,
			Attempts: []Attempt{
				{Strategy: ytdlp, Source: models.SourceYouTubeYTDLP},
				{Strategy: youtubeStream, Source: models.SourceYouTubeStream},
			},
		},
		{
			Provider:     soundcloud,
			SearchState:  SearchingSecondary,
			ExtractState: ExtractingSecondary,
			Attempts: []Attempt{
				{Strategy: soundcloudStream, Source: models.SourceSoundCloud},
			},
		},
	}
}

// Downloader fetches audio for a single request.
type Downloader interface {
	Download(ctx context.Context, req models.DownloadRequest, progress chan<- ProgressUpdate) (models.DownloadResult, error)
}

// DownloadEngine implements [Downloader] as a sequential state machine over [Step]s.
type DownloadEngine struct {
	steps         []Step
	searchTimeout time.Duration
	logger        *log.Logger
}

// EngineOption configures a [DownloadEngine].
type EngineOption func(*DownloadEngine)

// WithSearchTimeout bounds each provider search.
func WithSearchTimeout(d time.Duration) EngineOption {
	return func(e *DownloadEngine) {
		if d > 0 {
			e.searchTimeout = d
		}
	}
}

// NewDownloadEngine creates an engine that walks steps in order.
func NewDownloadEngine(steps []Step, logger *log.Logger, opts ...EngineOption) *DownloadEngine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	e := &DownloadEngine{
		steps:         steps,
		searchTimeout: defaultSearchTimeout,
		logger:        shared.WithPrefix(logger, "engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Download runs the fallback chain for req.
//
// The returned result is always terminal and satisfies [models.DownloadResult.Valid].
// The error is nil on success, wraps [shared.ErrMissingArgument] when req is invalid
// (no provider is called) and wraps [shared.ErrTrackNotFound] when every step failed.
func (e *DownloadEngine) Download(ctx context.Context, req models.DownloadRequest, progress chan<- ProgressUpdate) (models.DownloadResult, error) {
	filename := req.Filename()

	if err := req.Validate(); err != nil {
		sendProgress(progress, failedUpdate(err.Error()))
		return models.NewFailureResult(filename, "trackName is required"), err
	}

	query := req.SearchQuery()
	logger := shared.WithLogger(e.logger, "track", req.TrackName)
	sendProgress(progress, idleUpdate(query))

	total := len(e.steps)
	for i, step := range e.steps {
		sendProgress(progress, searchUpdate(step.SearchState, i+1, total, step.Provider.Name()))

		candidate := e.search(ctx, logger, step.Provider, query)
		if candidate == nil {
			continue
		}

		sendProgress(progress, extractUpdate(step.ExtractState, i+1, total, candidate))

		for _, attempt := range step.Attempts {
			started := time.Now()
			data, err := attempt.Strategy.Extract(ctx, candidate.SourceURL)
			if err != nil {
				logger.Warn("extraction failed", "strategy", attempt.Strategy.ID(), "url", candidate.SourceURL, "error", err)
				continue
			}

			outcome := models.NewExtractionOutcome(attempt.Strategy.ID(), data)
			if !outcome.Succeeded {
				logger.Warn("payload below minimum", "strategy", outcome.StrategyID, "bytes", outcome.ByteLength)
				continue
			}

			logger.Info("download succeeded", "source", attempt.Source, "bytes", outcome.ByteLength, "elapsed", time.Since(started))
			sendProgress(progress, succeededUpdate(attempt.Source, outcome.ByteLength))
			return models.NewSuccessResult(filename, attempt.Source, outcome.Payload), nil
		}
	}

	msg := fmt.Sprintf("Could not download %q. The track may be unavailable or restricted on every source.", req.TrackName)
	logger.Error("all sources exhausted")
	sendProgress(progress, failedUpdate(msg))
	return models.NewFailureResult(filename, msg), fmt.Errorf("%w: %s", shared.ErrTrackNotFound, req.TrackName)
}

// search asks one provider for a candidate. Errors are logged and treated as no match.
func (e *DownloadEngine) search(ctx context.Context, logger *log.Logger, p services.Provider, query string) *models.CandidateSource {
	ctx, cancel := context.WithTimeout(ctx, e.searchTimeout)
	defer cancel()

	candidate, err := p.Search(ctx, query)
	switch {
	case err != nil:
		logger.Warn("search failed", "provider", p.ID(), "error", err)
		return nil
	case candidate == nil || candidate.SourceURL == "":
		logger.Info("no match", "provider", p.ID())
		return nil
	}

	logger.Debug("candidate found", "provider", p.ID(), "title", candidate.Title, "url", candidate.SourceURL)
	return candidate
}

package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/spotclone/internal/formatter"
	"github.com/desertthunder/spotclone/internal/models"
	"github.com/desertthunder/spotclone/internal/shared"
	"github.com/desertthunder/spotclone/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Download runs the fallback chain for one track and writes the audio to the output directory.
func (r *Runner) Download(ctx context.Context, cmd *cli.Command) error {
	req, err := r.downloadRequest(ctx, cmd)
	if err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: pass --track, --spotify-id or --spotify-search", shared.ErrMissingArgument)
	}

	r.writePlainHeader(fmt.Sprintf("Downloading %s", req.SearchQuery()))

	progress := make(chan tasks.ProgressUpdate, 16)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range progress {
			r.writePlain("%s\n", formatter.ProgressLine(update, r.palette))
		}
	}()

	res, err := r.engine.Download(ctx, req, progress)
	close(progress)
	wg.Wait()

	if !cmd.Bool("no-history") {
		if recorder, dbErr := r.recorder(); dbErr != nil {
			r.logger.Warn("history unavailable", "error", dbErr)
		} else {
			recorder.Record(req, res)
		}
	}

	if err != nil {
		return err
	}

	path, err := formatter.WriteAudioFile(cmd.String("output"), res)
	if err != nil {
		return err
	}

	r.writePlainln("%s Saved %s (%s via %s)", r.palette.OK("✓"), path, formatter.FormatBytes(res.Len()), res.Source)
	return nil
}

// downloadRequest builds the request from flags, consulting Spotify when asked.
func (r *Runner) downloadRequest(ctx context.Context, cmd *cli.Command) (models.DownloadRequest, error) {
	id := cmd.String("spotify-id")
	query := cmd.String("spotify-search")
	if id == "" && query == "" {
		return models.DownloadRequest{TrackName: cmd.String("track"), ArtistName: cmd.String("artist")}, nil
	}

	if r.spotify == nil {
		return models.DownloadRequest{}, fmt.Errorf("%w: Spotify credentials are not configured", shared.ErrMissingCredentials)
	}

	if id != "" {
		track, err := r.spotify.Track(ctx, id)
		if err != nil {
			return models.DownloadRequest{}, fmt.Errorf("spotify lookup failed: %w", err)
		}
		return track.DownloadRequest(), nil
	}

	track, err := r.spotify.SearchTrack(ctx, query)
	if err != nil {
		return models.DownloadRequest{}, fmt.Errorf("spotify search failed: %w", err)
	}
	return track.DownloadRequest(), nil
}

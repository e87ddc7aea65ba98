package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/desertthunder/spotclone/internal/formatter"
	"github.com/desertthunder/spotclone/internal/models"
	"github.com/desertthunder/spotclone/internal/services"
	"github.com/desertthunder/spotclone/internal/shared"
	"github.com/desertthunder/spotclone/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Resolve looks up stream URLs for the given tracks and prints them as text, CSV or JSON.
func (r *Runner) Resolve(ctx context.Context, cmd *cli.Command) error {
	format := strings.ToLower(cmd.String("format"))
	switch format {
	case "text", "csv", "json":
	default:
		return fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}

	lines := cmd.Args().Slice()
	if path := cmd.String("input"); path != "" {
		fromFile, err := readLines(path)
		if err != nil {
			return err
		}
		lines = append(lines, fromFile...)
	}

	platform, err := models.ParseProviderID(cmd.String("platform"))
	if err != nil {
		return err
	}
	quality, err := services.ParseQuality(cmd.String("quality"))
	if err != nil {
		return err
	}

	req := tasks.BatchRequest{Tracks: parseTracks(lines), Platform: platform, Quality: quality}

	var progress chan tasks.ProgressUpdate
	var wg sync.WaitGroup
	if format == "text" {
		progress = make(chan tasks.ProgressUpdate, len(req.Tracks))
		wg.Add(1)
		go func() {
			defer wg.Done()
			for update := range progress {
				r.logger.Debug(formatter.ProgressLine(update, r.palette))
			}
		}()
	}

	result, err := r.resolver.Resolve(ctx, req, progress)
	if progress != nil {
		close(progress)
		wg.Wait()
	}
	if err != nil {
		return err
	}

	switch format {
	case "csv":
		data, err := formatter.BatchToCSV(result)
		if err != nil {
			return err
		}
		return r.writePlain("%s", data)
	case "json":
		return r.writeJSON(result, cmd.Bool("pretty"))
	default:
		return r.writePlain("%s", formatter.BatchToText(result, r.palette))
	}
}

// parseTracks splits each "Track - Artist" line on its last " - ". Blank lines are skipped.
func parseTracks(lines []string) []models.DownloadRequest {
	tracks := make([]models.DownloadRequest, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if i := strings.LastIndex(line, " - "); i > 0 {
			tracks = append(tracks, models.DownloadRequest{
				TrackName:  strings.TrimSpace(line[:i]),
				ArtistName: strings.TrimSpace(line[i+3:]),
			})
			continue
		}
		tracks = append(tracks, models.DownloadRequest{TrackName: line})
	}
	return tracks
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	return lines, nil
}

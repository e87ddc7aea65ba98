package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/spotclone/internal/formatter"
	"github.com/desertthunder/spotclone/internal/repositories"
	"github.com/urfave/cli/v3"
)

type historyEntry struct {
	ID         string `json:"id"`
	Sequence   int    `json:"sequence"`
	TrackName  string `json:"trackName"`
	ArtistName string `json:"artistName,omitempty"`
	Filename   string `json:"filename"`
	Success    bool   `json:"success"`
	Source     string `json:"source,omitempty"`
	ByteLength int    `json:"byteLength"`
	Error      string `json:"error,omitempty"`
	CreatedAt  string `json:"createdAt"`
}

// History prints recently recorded downloads, newest first.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database()
	if err != nil {
		return err
	}

	criteria := map[string]any{"limit": int(cmd.Int("limit"))}
	if source := cmd.String("source"); source != "" {
		criteria["source"] = source
	}
	if cmd.Bool("failed") {
		criteria["success"] = false
	}

	records, err := repositories.NewDownloadRepository(db).List(criteria)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}

	if cmd.Bool("json") {
		entries := make([]historyEntry, 0, len(records))
		for _, rec := range records {
			entries = append(entries, historyEntry{
				ID:         rec.ID(),
				Sequence:   rec.Sequence(),
				TrackName:  rec.TrackName(),
				ArtistName: rec.ArtistName(),
				Filename:   rec.Filename(),
				Success:    rec.Success(),
				Source:     rec.Source(),
				ByteLength: rec.ByteLength(),
				Error:      rec.ErrorMessage(),
				CreatedAt:  rec.CreatedAt().UTC().Format("2006-01-02T15:04:05Z"),
			})
		}
		return r.writeJSON(entries, true)
	}

	r.writePlainHeader("Download history")
	return r.writePlain("%s", formatter.HistoryToText(records, r.palette))
}

// package formatter renders download results, batch resolutions and history for the CLI (CSV, JSON, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/desertthunder/spotclone/internal/models"
	"github.com/desertthunder/spotclone/internal/tasks"
)

// BatchToCSV converts a BatchResult to CSV with one row per track, in request order.
func BatchToCSV(result *tasks.BatchResult) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Track", "Artist", "Success", "Platform", "Title", "Format", "Duration", "DownloadURL", "OriginalURL", "Error"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range result.Tracks {
		record := []string{
			track.TrackName,
			track.ArtistName,
			strconv.FormatBool(track.Success),
			track.Platform,
			track.Title,
			track.Format,
			FormatDuration(track.Duration),
			track.DownloadURL,
			track.OriginalURL,
			track.Error,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// BatchToJSON encodes a BatchResult.
func BatchToJSON(result *tasks.BatchResult, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(result, "", "  ")
	}
	return json.Marshal(result)
}

// BatchToText renders a BatchResult as a numbered list followed by a summary line.
func BatchToText(result *tasks.BatchResult, p *Palette) []byte {
	var buf bytes.Buffer

	for i, track := range result.Tracks {
		name := displayName(track.TrackName, track.ArtistName)
		if track.Success {
			fmt.Fprintf(&buf, "%s %d. %s [%s, %s]\n", p.OK("✓"), i+1, name, track.Format, FormatDuration(track.Duration))
			fmt.Fprintf(&buf, "   %s\n", p.Help(track.DownloadURL))
		} else {
			fmt.Fprintf(&buf, "%s %d. %s: %s\n", p.Err("✗"), i+1, name, track.Error)
		}
	}

	fmt.Fprintf(&buf, "\n%s %d total, %d resolved, %d failed\n",
		p.Title("Summary:"), result.TotalTracks, result.SuccessfulTracks, result.FailedTracks)
	return buf.Bytes()
}

// HistoryToText renders download records newest first.
func HistoryToText(records []*models.DownloadRecord, p *Palette) []byte {
	var buf bytes.Buffer

	if len(records) == 0 {
		buf.WriteString(p.Warn("No downloads recorded yet") + "\n")
		return buf.Bytes()
	}

	for _, rec := range records {
		when := rec.CreatedAt().Local().Format(time.DateTime)
		name := displayName(rec.TrackName(), rec.ArtistName())
		if rec.Success() {
			fmt.Fprintf(&buf, "#%-4d %s %s %s (%s, %s)\n",
				rec.Sequence(), p.Help(when), p.OK("✓"), name, rec.Source(), FormatBytes(rec.ByteLength()))
		} else {
			fmt.Fprintf(&buf, "#%-4d %s %s %s: %s\n",
				rec.Sequence(), p.Help(when), p.Err("✗"), name, rec.ErrorMessage())
		}
	}

	return buf.Bytes()
}

// ProgressLine renders one engine or batch progress update.
func ProgressLine(u tasks.ProgressUpdate, p *Palette) string {
	switch u.State {
	case tasks.Succeeded:
		return p.OK(u.Message)
	case tasks.Failed:
		return p.Err(u.Message)
	case tasks.Resolving:
		return u.Message
	}
	if u.Total > 0 {
		return fmt.Sprintf("→ [%d/%d] %s", u.Step, u.Total, u.Message)
	}
	return "→ " + u.Message
}

// FormatDuration renders seconds as m:ss, or "-" when unknown.
func FormatDuration(seconds *int) string {
	if seconds == nil || *seconds < 0 {
		return "-"
	}
	return fmt.Sprintf("%d:%02d", *seconds/60, *seconds%60)
}

// FormatBytes renders a byte count with a binary unit.
func FormatBytes(n int) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := unit, 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGT"[exp])
}

// WriteAudioFile saves a successful result to dir using its sanitized filename.
//
// The directory is created when missing. Returns the written path.
func WriteAudioFile(dir string, res models.DownloadResult) (string, error) {
	if !res.Success || len(res.AudioBuffer) == 0 {
		return "", fmt.Errorf("no audio to write for %s", res.Filename)
	}
	if dir == "" {
		dir = "."
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	path := filepath.Join(dir, res.Filename)
	if err := os.WriteFile(path, res.AudioBuffer, 0644); err != nil {
		return "", fmt.Errorf("failed to write audio file: %w", err)
	}

	return path, nil
}

func displayName(track, artist string) string {
	if artist == "" {
		return track
	}
	return track + " - " + artist
}

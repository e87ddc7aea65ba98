package formatter

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/spotclone/internal/models"
	"github.com/desertthunder/spotclone/internal/tasks"
	th "github.com/desertthunder/spotclone/internal/testing"
)

func intPtr(v int) *int { return &v }

func sampleBatch() *tasks.BatchResult {
	return &tasks.BatchResult{
		TotalTracks:      2,
		SuccessfulTracks: 1,
		FailedTracks:     1,
		Tracks: []tasks.TrackStream{
			{
				TrackName:   "Believer",
				ArtistName:  "Imagine Dragons",
				Success:     true,
				Title:       "Imagine Dragons - Believer",
				Platform:    "youtube",
				DownloadURL: "https://cdn.example.com/a.webm",
				OriginalURL: "https://www.youtube.com/watch?v=7wtfhZwyrcc",
				Duration:    intPtr(204),
				Format:      "webm",
			},
			{
				TrackName: "Nothing, Really",
				Platform:  "youtube",
				Error:     "no match found on YouTube",
			},
		},
	}
}

func TestBatchExporters(t *testing.T) {
	t.Run("BatchToCSV", func(t *testing.T) {
		data, err := BatchToCSV(sampleBatch())
		if err != nil {
			t.Fatalf("BatchToCSV failed: %v", err)
		}

		output := string(data)
		if !strings.HasPrefix(output, "Track,Artist,Success,Platform,Title,Format,Duration,DownloadURL,OriginalURL,Error\n") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "Believer,Imagine Dragons,true,youtube,Imagine Dragons - Believer,webm,3:24,") {
			t.Errorf("CSV missing first row, got: %s", output)
		}
		if !strings.Contains(output, `"Nothing, Really",,false,youtube,,,-,,,no match found on YouTube`) {
			t.Errorf("CSV should quote commas and mark unknown duration, got: %s", output)
		}
	})

	t.Run("BatchToJSON", func(t *testing.T) {
		data, err := BatchToJSON(sampleBatch(), true)
		if err != nil {
			t.Fatalf("BatchToJSON failed: %v", err)
		}

		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("output is not JSON: %v", err)
		}
		for _, key := range []string{"totalTracks", "successfulTracks", "failedTracks", "tracks"} {
			if _, ok := decoded[key]; !ok {
				t.Errorf("missing key %q", key)
			}
		}
		if !strings.Contains(string(data), "\n  ") {
			t.Error("expected indented output")
		}
	})

	t.Run("BatchToText", func(t *testing.T) {
		output := string(BatchToText(sampleBatch(), PlainPalette()))

		for _, want := range []string{
			"✓ 1. Believer - Imagine Dragons [webm, 3:24]",
			"https://cdn.example.com/a.webm",
			"✗ 2. Nothing, Really: no match found on YouTube",
			"Summary: 2 total, 1 resolved, 1 failed",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("text output missing %q, got:\n%s", want, output)
			}
		}
	})
}

func TestHistoryToText(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		output := string(HistoryToText(nil, PlainPalette()))
		if !strings.Contains(output, "No downloads recorded yet") {
			t.Errorf("unexpected output %q", output)
		}
	})

	t.Run("Records", func(t *testing.T) {
		req := models.DownloadRequest{TrackName: "Believer", ArtistName: "Imagine Dragons"}
		ok := models.NewDownloadRecord(req, models.NewSuccessResult(req.Filename(), models.SourceSoundCloud, th.Payload(20_480)))
		ok.SetSequence(2)
		failed := models.NewDownloadRecord(req, models.NewFailureResult(req.Filename(), "restricted"))
		failed.SetSequence(1)

		output := string(HistoryToText([]*models.DownloadRecord{ok, failed}, PlainPalette()))

		if !strings.Contains(output, "#2") || !strings.Contains(output, "(soundcloud, 20.0 KiB)") {
			t.Errorf("missing success line, got:\n%s", output)
		}
		if !strings.Contains(output, "✗ Believer - Imagine Dragons: restricted") {
			t.Errorf("missing failure line, got:\n%s", output)
		}
	})
}

func TestProgressLine(t *testing.T) {
	p := PlainPalette()
	tests := []struct {
		name   string
		update tasks.ProgressUpdate
		want   string
	}{
		{"Step", tasks.ProgressUpdate{State: tasks.SearchingPrimary, Step: 1, Total: 2, Message: "Searching YouTube..."}, "→ [1/2] Searching YouTube..."},
		{"NoStep", tasks.ProgressUpdate{State: tasks.Idle, Message: "Preparing"}, "→ Preparing"},
		{"Succeeded", tasks.ProgressUpdate{State: tasks.Succeeded, Message: "✓ done"}, "✓ done"},
		{"Failed", tasks.ProgressUpdate{State: tasks.Failed, Message: "✗ nope"}, "✗ nope"},
		{"Resolving", tasks.ProgressUpdate{State: tasks.Resolving, Step: 1, Total: 3, Message: "[1/3] ✓ a"}, "[1/3] ✓ a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ProgressLine(tt.update, p); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestFormatHelpers(t *testing.T) {
	t.Run("FormatDuration", func(t *testing.T) {
		tests := map[string]*int{
			"-":     nil,
			"0:00":  intPtr(0),
			"0:59":  intPtr(59),
			"3:24":  intPtr(204),
			"61:01": intPtr(3661),
		}
		for want, in := range tests {
			if got := FormatDuration(in); got != want {
				t.Errorf("FormatDuration = %q, want %q", got, want)
			}
		}
	})

	t.Run("FormatBytes", func(t *testing.T) {
		tests := map[int]string{
			0:       "0 B",
			1023:    "1023 B",
			1024:    "1.0 KiB",
			1536:    "1.5 KiB",
			1 << 20: "1.0 MiB",
		}
		for in, want := range tests {
			if got := FormatBytes(in); got != want {
				t.Errorf("FormatBytes(%d) = %q, want %q", in, got, want)
			}
		}
	})
}

func TestWriteAudioFile(t *testing.T) {
	t.Run("Writes", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested")
		res := models.NewSuccessResult("Believer - Imagine Dragons.mp3", models.SourceYouTubeYTDLP, th.Payload(models.MinViableBytes))

		path, err := WriteAudioFile(dir, res)
		if err != nil {
			t.Fatalf("WriteAudioFile failed: %v", err)
		}

		th.AssertFileExists(t, path)
		if got := th.MustReadFile(t, path); len(got) != models.MinViableBytes {
			t.Errorf("expected %d bytes, got %d", models.MinViableBytes, len(got))
		}
		if filepath.Base(path) != "Believer - Imagine Dragons.mp3" {
			t.Errorf("unexpected path %s", path)
		}
	})

	t.Run("RejectsFailure", func(t *testing.T) {
		if _, err := WriteAudioFile(t.TempDir(), models.NewFailureResult("x.mp3", "nope")); err == nil {
			t.Fatal("expected error for failed result")
		}
	})
}

package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotclone/internal/formatter"
	"github.com/desertthunder/spotclone/internal/models"
	"github.com/desertthunder/spotclone/internal/repositories"
	"github.com/desertthunder/spotclone/internal/services"
	"github.com/desertthunder/spotclone/internal/shared"
	"github.com/desertthunder/spotclone/internal/tasks"
	tu "github.com/desertthunder/spotclone/internal/testing"
)

type fakeDownloader struct {
	res models.DownloadResult
	err error

	mu   sync.Mutex
	reqs []models.DownloadRequest
}

func (f *fakeDownloader) Download(ctx context.Context, req models.DownloadRequest, progress chan<- tasks.ProgressUpdate) (models.DownloadResult, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()

	if progress != nil {
		progress <- tasks.ProgressUpdate{State: tasks.SearchingPrimary, Step: 1, Total: 2, Message: "Searching YouTube..."}
	}
	return f.res, f.err
}

func (f *fakeDownloader) requests() []models.DownloadRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.DownloadRequest(nil), f.reqs...)
}

type fakeBatch struct {
	got tasks.BatchRequest
}

func (f *fakeBatch) Resolve(ctx context.Context, req tasks.BatchRequest, progress chan<- tasks.ProgressUpdate) (*tasks.BatchResult, error) {
	f.got = req
	if len(req.Tracks) == 0 {
		return nil, shared.ErrMissingArgument
	}

	result := &tasks.BatchResult{TotalTracks: len(req.Tracks)}
	for _, t := range req.Tracks {
		result.Tracks = append(result.Tracks, tasks.TrackStream{
			TrackName:   t.TrackName,
			ArtistName:  t.ArtistName,
			Success:     true,
			Platform:    string(req.Platform),
			DownloadURL: "https://cdn.example.com/" + t.TrackName,
			Format:      "webm",
		})
		result.SuccessfulTracks++
	}
	return result, nil
}

type fakeCatalog struct {
	track *services.SpotifyTrack
	err   error
}

func (f fakeCatalog) Track(ctx context.Context, id string) (*services.SpotifyTrack, error) {
	return f.track, f.err
}

func (f fakeCatalog) SearchTrack(ctx context.Context, query string) (*services.SpotifyTrack, error) {
	return f.track, f.err
}

func quietLogger() *log.Logger {
	return shared.NewLogger(io.Discard)
}

func memoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := shared.OpenDatabase(shared.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// testRunner builds a runner with fakes and returns it with its output buffer.
func testRunner(t *testing.T, opts RunnerOpts) (*Runner, *bytes.Buffer) {
	t.Helper()
	output := &bytes.Buffer{}
	opts.Output = output
	opts.Logger = quietLogger()
	opts.Palette = formatter.PlainPalette()
	if opts.DB == nil {
		opts.DB = memoryDB(t)
	}
	if opts.Resolver == nil {
		opts.Resolver = &fakeBatch{}
	}
	if opts.Engine == nil {
		opts.Engine = &fakeDownloader{}
	}
	return NewRunner(opts), output
}

// run invokes the CLI with a config path that does not exist, so defaults apply.
func run(t *testing.T, r *Runner, args ...string) error {
	t.Helper()
	missing := filepath.Join(t.TempDir(), "missing.toml")
	argv := append([]string{"spotclone", "--config", missing}, args...)
	return r.root().Run(context.Background(), argv)
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := quietLogger()
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			engine := &fakeDownloader{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
				Engine:     engine,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.engine != engine {
				t.Error("expected engine to be set")
			}
		})

		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
			if runner.palette != formatter.DefaultPalette {
				t.Error("expected default palette")
			}
		})
	})

	t.Run("configure", func(t *testing.T) {
		t.Run("builds pipeline from defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: quietLogger(), Output: io.Discard, DB: memoryDB(t)})
			if err := run(t, runner, "setup", "database"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if runner.engine == nil || runner.resolver == nil || runner.ytdlp == nil {
				t.Error("expected engine, resolver and yt-dlp strategy to be built")
			}
			if runner.spotify != nil {
				t.Error("placeholder credentials must not build a Spotify client")
			}
		})

		t.Run("loads config file", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			content := "[download]\nytdlp_path = \"/opt/yt-dlp\"\n[log]\nlevel = \"debug\"\n"
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}

			runner, _ := testRunner(t, RunnerOpts{})
			if err := runner.root().Run(context.Background(), []string{"spotclone", "-c", path, "setup", "database"}); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if runner.config.Download.YTDLPPath != "/opt/yt-dlp" {
				t.Errorf("expected ytdlp path from file, got %q", runner.config.Download.YTDLPPath)
			}
			if runner.logger.GetLevel() != log.DebugLevel {
				t.Errorf("expected debug level, got %v", runner.logger.GetLevel())
			}
			if runner.configPath != path {
				t.Errorf("expected configPath %q, got %q", path, runner.configPath)
			}
		})

		t.Run("rejects invalid config file", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte("[download\n"), 0644); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}

			runner, _ := testRunner(t, RunnerOpts{})
			err := runner.root().Run(context.Background(), []string{"spotclone", "-c", path, "setup", "database"})
			if !errors.Is(err, shared.ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			runner, output := testRunner(t, RunnerOpts{})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !strings.Contains(output.String(), "  \"key\": \"value\"") {
				t.Errorf("expected indented JSON, got %q", output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner, _ := testRunner(t, RunnerOpts{})

			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			runner, output := testRunner(t, RunnerOpts{})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		want := []string{"serve", "download", "resolve", "history", "setup"}
		if len(commands) != len(want) {
			t.Fatalf("expected %d commands, got %d", len(want), len(commands))
		}
		for i, name := range want {
			if commands[i].Name != name {
				t.Errorf("command %d: expected %q, got %q", i, name, commands[i].Name)
			}
			if commands[i].Usage == "" {
				t.Errorf("command %q has no usage", name)
			}
		}
	})

	t.Run("Close", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		if err := runner.Close(); err != nil {
			t.Errorf("closing without a database should be a no-op, got %v", err)
		}
	})
}

func TestDownloadCommand(t *testing.T) {
	audio := tu.Payload(models.MinViableBytes)

	t.Run("writes file and records history", func(t *testing.T) {
		engine := &fakeDownloader{res: models.NewSuccessResult("Believer - Imagine Dragons.mp3", models.SourceYouTubeYTDLP, audio)}
		runner, output := testRunner(t, RunnerOpts{Engine: engine})
		dir := t.TempDir()

		if err := run(t, runner, "download", "-t", "Believer", "-a", "Imagine Dragons", "-o", dir); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		tu.AssertFileExists(t, filepath.Join(dir, "Believer - Imagine Dragons.mp3"))
		if reqs := engine.requests(); len(reqs) != 1 || reqs[0].ArtistName != "Imagine Dragons" {
			t.Errorf("unexpected engine requests %+v", reqs)
		}
		if !strings.Contains(output.String(), "→ [1/2] Searching YouTube...") {
			t.Errorf("expected progress output, got:\n%s", output.String())
		}
		if !strings.Contains(output.String(), "via youtube-ytdlp") {
			t.Errorf("expected provenance in output, got:\n%s", output.String())
		}

		records, err := repositories.NewDownloadRepository(runner.db).List(nil)
		if err != nil {
			t.Fatalf("failed to list history: %v", err)
		}
		if len(records) != 1 || !records[0].Success() {
			t.Errorf("expected one successful record, got %d", len(records))
		}
	})

	t.Run("no-history skips recording", func(t *testing.T) {
		engine := &fakeDownloader{res: models.NewSuccessResult("x.mp3", models.SourceSoundCloud, audio)}
		runner, _ := testRunner(t, RunnerOpts{Engine: engine})

		if err := run(t, runner, "download", "-t", "x", "-o", t.TempDir(), "--no-history"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		records, _ := repositories.NewDownloadRepository(runner.db).List(nil)
		if len(records) != 0 {
			t.Errorf("expected no records, got %d", len(records))
		}
	})

	t.Run("missing track", func(t *testing.T) {
		engine := &fakeDownloader{}
		runner, _ := testRunner(t, RunnerOpts{Engine: engine})

		err := run(t, runner, "download", "-o", t.TempDir())
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Fatalf("expected ErrMissingArgument, got %v", err)
		}
		if len(engine.requests()) != 0 {
			t.Error("engine must not run for an invalid request")
		}
	})

	t.Run("engine failure is recorded and returned", func(t *testing.T) {
		engine := &fakeDownloader{
			res: models.NewFailureResult("Gone.mp3", `Could not download "Gone".`),
			err: shared.ErrTrackNotFound,
		}
		runner, _ := testRunner(t, RunnerOpts{Engine: engine})

		err := run(t, runner, "download", "-t", "Gone", "-o", t.TempDir())
		if !errors.Is(err, shared.ErrTrackNotFound) {
			t.Fatalf("expected ErrTrackNotFound, got %v", err)
		}

		records, _ := repositories.NewDownloadRepository(runner.db).List(map[string]any{"success": false})
		if len(records) != 1 {
			t.Errorf("expected failed download to be recorded, got %d", len(records))
		}
	})

	t.Run("spotify id", func(t *testing.T) {
		engine := &fakeDownloader{res: models.NewSuccessResult("Believer - Imagine Dragons.mp3", models.SourceYouTubeYTDLP, audio)}
		catalog := fakeCatalog{track: &services.SpotifyTrack{
			ID:      "0pqnGHJpmpxLKifKRmU6WP",
			Name:    "Believer",
			Artists: []services.SpotifyArtist{{Name: "Imagine Dragons"}},
		}}
		runner, _ := testRunner(t, RunnerOpts{Engine: engine, Spotify: catalog})

		if err := run(t, runner, "download", "--spotify-id", "0pqnGHJpmpxLKifKRmU6WP", "-o", t.TempDir()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		reqs := engine.requests()
		if len(reqs) != 1 || reqs[0].TrackName != "Believer" || reqs[0].ArtistName != "Imagine Dragons" {
			t.Errorf("expected catalog names, got %+v", reqs)
		}
	})

	t.Run("spotify lookup failure", func(t *testing.T) {
		catalog := fakeCatalog{err: shared.ErrAuthFailed}
		runner, _ := testRunner(t, RunnerOpts{Spotify: catalog})

		err := run(t, runner, "download", "--spotify-search", "believer", "-o", t.TempDir())
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Fatalf("expected ErrAuthFailed, got %v", err)
		}
	})

	t.Run("spotify without credentials", func(t *testing.T) {
		runner, _ := testRunner(t, RunnerOpts{})

		err := run(t, runner, "download", "--spotify-id", "abc", "-o", t.TempDir())
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Fatalf("expected ErrMissingCredentials, got %v", err)
		}
	})
}

func TestResolveCommand(t *testing.T) {
	t.Run("csv from args and file", func(t *testing.T) {
		batch := &fakeBatch{}
		runner, output := testRunner(t, RunnerOpts{Resolver: batch})

		input := filepath.Join(t.TempDir(), "tracks.txt")
		if err := os.WriteFile(input, []byte("# playlist\nImagine - John Lennon\n\n"), 0644); err != nil {
			t.Fatalf("failed to write input: %v", err)
		}

		err := run(t, runner, "resolve", "-f", "csv", "-i", input, "--platform", "soundcloud", "--quality", "low", "Believer - Imagine Dragons")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if batch.got.Platform != models.ProviderAudioSocial || batch.got.Quality != services.QualityLow {
			t.Errorf("unexpected request %+v", batch.got)
		}
		if len(batch.got.Tracks) != 2 || batch.got.Tracks[0].TrackName != "Believer" || batch.got.Tracks[1].ArtistName != "John Lennon" {
			t.Errorf("unexpected tracks %+v", batch.got.Tracks)
		}
		if !strings.HasPrefix(output.String(), "Track,Artist,Success") {
			t.Errorf("expected CSV output, got:\n%s", output.String())
		}
	})

	t.Run("json", func(t *testing.T) {
		runner, output := testRunner(t, RunnerOpts{})

		if err := run(t, runner, "resolve", "-f", "json", "Believer"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var result tasks.BatchResult
		if err := json.Unmarshal(output.Bytes(), &result); err != nil {
			t.Fatalf("expected JSON output: %v", err)
		}
		if result.TotalTracks != 1 || result.Tracks[0].Platform != "youtube" {
			t.Errorf("unexpected result %+v", result)
		}
	})

	t.Run("text", func(t *testing.T) {
		runner, output := testRunner(t, RunnerOpts{})

		if err := run(t, runner, "resolve", "Believer - Imagine Dragons"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(output.String(), "Summary: 1 total, 1 resolved, 0 failed") {
			t.Errorf("expected summary, got:\n%s", output.String())
		}
	})

	t.Run("invalid input", func(t *testing.T) {
		tests := []struct {
			name string
			args []string
			want error
		}{
			{"format", []string{"resolve", "-f", "xml", "x"}, shared.ErrInvalidArgument},
			{"platform", []string{"resolve", "--platform", "napster", "x"}, shared.ErrInvalidArgument},
			{"quality", []string{"resolve", "--quality", "lossless", "x"}, shared.ErrInvalidArgument},
			{"no tracks", []string{"resolve"}, shared.ErrMissingArgument},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				runner, _ := testRunner(t, RunnerOpts{})
				if err := run(t, runner, tt.args...); !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
			})
		}
	})

	t.Run("missing input file", func(t *testing.T) {
		runner, _ := testRunner(t, RunnerOpts{})
		if err := run(t, runner, "resolve", "-i", filepath.Join(t.TempDir(), "nope.txt")); err == nil {
			t.Fatal("expected error for missing input file")
		}
	})
}

func TestParseTracks(t *testing.T) {
	tests := []struct {
		line   string
		track  string
		artist string
	}{
		{"Believer - Imagine Dragons", "Believer", "Imagine Dragons"},
		{"Song 2", "Song 2", ""},
		{"Self - Titled - The Band", "Self - Titled", "The Band"},
		{"  padded  -  artist  ", "padded", "artist"},
		{"Hyphen-ated", "Hyphen-ated", ""},
	}

	for _, tt := range tests {
		got := parseTracks([]string{tt.line})
		if len(got) != 1 {
			t.Fatalf("%q: expected one track, got %d", tt.line, len(got))
		}
		if got[0].TrackName != tt.track || got[0].ArtistName != tt.artist {
			t.Errorf("%q: got %q / %q", tt.line, got[0].TrackName, got[0].ArtistName)
		}
	}

	if got := parseTracks([]string{"", "   ", "# comment"}); len(got) != 0 {
		t.Errorf("expected blank and comment lines to be skipped, got %d", len(got))
	}
}

func TestHistoryCommand(t *testing.T) {
	seed := func(t *testing.T, db *sql.DB) {
		t.Helper()
		repo := repositories.NewDownloadRepository(db)
		ok := models.DownloadRequest{TrackName: "Believer", ArtistName: "Imagine Dragons"}
		bad := models.DownloadRequest{TrackName: "Gone"}
		for _, rec := range []*models.DownloadRecord{
			models.NewDownloadRecord(ok, models.NewSuccessResult(ok.Filename(), models.SourceYouTubeYTDLP, tu.Payload(models.MinViableBytes))),
			models.NewDownloadRecord(bad, models.NewFailureResult(bad.Filename(), "restricted")),
		} {
			if err := repo.Create(rec); err != nil {
				t.Fatalf("failed to seed history: %v", err)
			}
		}
	}

	t.Run("text", func(t *testing.T) {
		db := memoryDB(t)
		seed(t, db)
		runner, output := testRunner(t, RunnerOpts{DB: db})

		if err := run(t, runner, "history"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out := output.String()
		if !strings.Contains(out, "Believer - Imagine Dragons (youtube-ytdlp") || !strings.Contains(out, "Gone: restricted") {
			t.Errorf("unexpected history output:\n%s", out)
		}
	})

	t.Run("json failed only", func(t *testing.T) {
		db := memoryDB(t)
		seed(t, db)
		runner, output := testRunner(t, RunnerOpts{DB: db})

		if err := run(t, runner, "history", "--json", "--failed"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var entries []historyEntry
		if err := json.Unmarshal(output.Bytes(), &entries); err != nil {
			t.Fatalf("expected JSON output: %v", err)
		}
		if len(entries) != 1 || entries[0].TrackName != "Gone" || entries[0].Error != "restricted" {
			t.Errorf("unexpected entries %+v", entries)
		}
	})

	t.Run("limit", func(t *testing.T) {
		db := memoryDB(t)
		seed(t, db)
		runner, output := testRunner(t, RunnerOpts{DB: db})

		if err := run(t, runner, "history", "--json", "-n", "1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var entries []historyEntry
		if err := json.Unmarshal(output.Bytes(), &entries); err != nil {
			t.Fatalf("expected JSON output: %v", err)
		}
		if len(entries) != 1 || entries[0].Sequence != 2 {
			t.Errorf("expected newest entry only, got %+v", entries)
		}
	})
}

func TestSetupCommand(t *testing.T) {
	t.Run("config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		runner, output := testRunner(t, RunnerOpts{})

		args := []string{"spotclone", "-c", path, "setup", "config"}
		if err := runner.root().Run(context.Background(), args); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		tu.AssertFileExists(t, path)
		if !strings.Contains(output.String(), "Wrote "+path) {
			t.Errorf("unexpected output %q", output.String())
		}

		runner, _ = testRunner(t, RunnerOpts{})
		if err := runner.root().Run(context.Background(), args); err == nil {
			t.Fatal("expected error when config already exists")
		}
	})

	t.Run("database", func(t *testing.T) {
		runner, output := testRunner(t, RunnerOpts{})

		if err := run(t, runner, "setup", "database"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(output.String(), "schema version 1") {
			t.Errorf("unexpected output %q", output.String())
		}
	})
}

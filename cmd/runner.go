package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotclone/internal/extract"
	"github.com/desertthunder/spotclone/internal/formatter"
	"github.com/desertthunder/spotclone/internal/services"
	"github.com/desertthunder/spotclone/internal/server"
	"github.com/desertthunder/spotclone/internal/shared"
	"github.com/desertthunder/spotclone/internal/tasks"
	"github.com/urfave/cli/v3"
)

// catalog looks up canonical track metadata.
type catalog interface {
	Track(ctx context.Context, trackID string) (*services.SpotifyTrack, error)
	SearchTrack(ctx context.Context, query string) (*services.SpotifyTrack, error)
}

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	palette    *formatter.Palette
	engine     tasks.Downloader
	resolver   server.Resolver
	ytdlp      *extract.YTDLP
	spotify    catalog
	db         *sql.DB
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Engine, Resolver and Spotify are built from the loaded config when nil.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Palette    *formatter.Palette
	Engine     tasks.Downloader
	Resolver   server.Resolver
	Spotify    catalog
	DB         *sql.DB
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Palette == nil {
		opts.Palette = formatter.DefaultPalette
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		palette:    opts.Palette,
		engine:     opts.Engine,
		resolver:   opts.Resolver,
		spotify:    opts.Spotify,
		db:         opts.DB,
	}
}

// root builds the top-level command.
func (r *Runner) root() *cli.Command {
	return &cli.Command{
		Name:    "spotclone",
		Usage:   "Download tracks by name from YouTube with SoundCloud fallback",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Before:   r.configure,
		Commands: r.register(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, downloadCommand, resolveCommand, historyCommand, setupCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// configure loads the config file when present and builds the download pipeline.
func (r *Runner) configure(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if path := cmd.String("config"); path != "" {
		r.configPath = path
		if _, err := os.Stat(path); err == nil {
			config, err := shared.LoadConfig(path)
			if err != nil {
				return ctx, err
			}
			r.config = config
		} else {
			r.logger.Debug("config file not found, using defaults", "path", path)
		}
	}

	level := shared.ParseLogLevel(r.config.Log.Level)
	if cmd.Bool("debug") {
		level = log.DebugLevel
	}
	shared.SetLogLevel(r.logger, level)

	r.buildPipeline()
	return ctx, nil
}

// buildPipeline wires providers, strategies and the engine for anything not injected.
func (r *Runner) buildPipeline() {
	cfg := r.config
	timeout := cfg.Download.Timeout()

	youtube := services.NewYouTubeService(r.httpClient, r.logger)
	soundcloud := services.NewSoundCloudService(cfg.Credentials.SoundCloud.ClientID, r.httpClient, r.logger)

	if r.engine == nil {
		r.ytdlp = extract.NewYTDLP(cfg.Download.YTDLPPath, timeout, r.logger)
		steps := tasks.DefaultSteps(
			youtube,
			soundcloud,
			r.ytdlp,
			extract.NewStream("stream:youtube", youtube, timeout, r.logger),
			extract.NewStream("stream:soundcloud", soundcloud, timeout, r.logger),
		)
		r.engine = tasks.NewDownloadEngine(steps, r.logger)
	}

	if r.resolver == nil {
		r.resolver = tasks.NewBatchResolver(tasks.BatchOpts{
			Concurrency: cfg.Download.BatchConcurrency,
		}, r.logger, youtube, soundcloud)
	}

	if r.spotify == nil {
		creds := cfg.Credentials.Spotify
		if !placeholder(creds.ClientID) && !placeholder(creds.ClientSecret) {
			if svc, err := services.NewSpotifyService(creds.ClientID, creds.ClientSecret); err == nil {
				r.spotify = svc
			}
		}
	}
}

func placeholder(v string) bool {
	return v == "" || strings.HasPrefix(v, "your_")
}

// database opens the configured database once and reuses it.
func (r *Runner) database() (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	r.db = db
	return db, nil
}

// Close releases the database connection, if one was opened.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", r.palette.Title(title))
	r.writePlain("═══════════════════════════════════════\n")
}

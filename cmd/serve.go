package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/spotclone/internal/repositories"
	"github.com/desertthunder/spotclone/internal/server"
	"github.com/urfave/cli/v3"
)

// Serve starts the HTTP API and blocks until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	cfg := r.config.Server
	if host := cmd.String("host"); host != "" {
		cfg.Host = host
	}
	if port := int(cmd.Int("port")); port > 0 {
		cfg.Port = port
	}

	if r.ytdlp != nil {
		if err := r.ytdlp.Available(); err != nil {
			r.logger.Warn("yt-dlp not found, downloads will use in-process streaming only", "path", r.config.Download.YTDLPPath)
		}
	}

	opts := server.Opts{
		Addr:       cfg.Addr(),
		Version:    version,
		Engine:     r.engine,
		Resolver:   r.resolver,
		Logger:     r.logger,
		RateLimit:  cfg.RateLimit,
		Burst:      cfg.Burst,
		TrustProxy: cfg.TrustProxy,
	}

	if !cmd.Bool("no-history") {
		recorder, err := r.recorder()
		if err != nil {
			return err
		}
		opts.Recorder = recorder
	}

	srv := server.New(opts)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

func (r *Runner) recorder() (*repositories.HistoryRecorder, error) {
	db, err := r.database()
	if err != nil {
		return nil, err
	}
	return repositories.NewHistoryRecorder(repositories.NewDownloadRepository(db), r.logger), nil
}

// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// serveCommand runs the HTTP API
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the download HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host (overrides config)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Listen port (overrides config)",
			},
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not record downloads in the database",
			},
		},
		Action: r.Serve,
	}
}

// downloadCommand fetches a single track to disk
func downloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "download",
		Aliases: []string{"dl"},
		Usage:   "Download one track by name or Spotify id",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "track",
				Aliases: []string{"t"},
				Usage:   "Track name",
			},
			&cli.StringFlag{
				Name:    "artist",
				Aliases: []string{"a"},
				Usage:   "Artist name",
			},
			&cli.StringFlag{
				Name:  "spotify-id",
				Usage: "Look up track and artist from a Spotify track id",
			},
			&cli.StringFlag{
				Name:  "spotify-search",
				Usage: "Look up track and artist from the top Spotify search match",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output directory",
				Value:   ".",
			},
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not record the download in the database",
			},
		},
		Action: r.Download,
	}
}

// resolveCommand runs batch stream-url resolution
func resolveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "Resolve stream URLs for several tracks without downloading",
		ArgsUsage: `"Track - Artist" ...`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "File with one \"Track - Artist\" per line",
			},
			&cli.StringFlag{
				Name:  "platform",
				Usage: "youtube or soundcloud",
				Value: "youtube",
			},
			&cli.StringFlag{
				Name:  "quality",
				Usage: "high or low",
				Value: "high",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, csv or json",
				Value:   "text",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print JSON output",
			},
		},
		Action: r.Resolve,
	}
}

// historyCommand lists recorded downloads
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recent downloads",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of records",
				Value:   20,
			},
			&cli.StringFlag{
				Name:  "source",
				Usage: "Only show downloads from this source (youtube-ytdlp, youtube-playdl, soundcloud)",
			},
			&cli.BoolFlag{
				Name:  "failed",
				Usage: "Only show failed downloads",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output JSON",
			},
		},
		Action: r.History,
	}
}

// setupCommand handles setup operations for config and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a config file from the built-in template",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
		},
	}
}

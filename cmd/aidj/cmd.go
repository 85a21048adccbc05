// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file (defaults to ./aidj.toml when present)",
			Sources: cli.EnvVars("AIDJ_CONFIG"),
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Override the configured log level (debug, info, warn, error)",
		},
	}
}

func userFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "user",
		Aliases: []string{"u"},
		Usage:   "Owner id recorded in history",
		Value:   "cli",
		Sources: cli.EnvVars("AIDJ_USER"),
	}
}

func tokenFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "token",
		Aliases: []string{"t"},
		Usage:   "Spotify user access token; without it nothing is published",
		Sources: cli.EnvVars("SPOTIFY_ACCESS_TOKEN"),
	}
}

func limitFlag() cli.Flag {
	return &cli.IntFlag{
		Name:    "limit",
		Aliases: []string{"n"},
		Usage:   "Number of tracks (1-50); 0 uses the configured default",
	}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "json",
		Usage: "Output raw JSON",
	}
}

func generateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "generate",
		Aliases:   []string{"gen"},
		Usage:     "Create a playlist from a text prompt",
		ArgsUsage: "<prompt>",
		Flags: []cli.Flag{
			userFlag(), tokenFlag(), limitFlag(), jsonFlag(),
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Resolve tracks without creating a playlist",
			},
		},
		Action: r.Generate,
	}
}

func imageCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "image",
		Usage: "Create a playlist from the mood of an image",
		Flags: []cli.Flag{
			userFlag(), tokenFlag(), limitFlag(), jsonFlag(),
			&cli.StringFlag{
				Name:  "url",
				Usage: "Image URL",
			},
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "Local image file",
			},
		},
		Action: r.Image,
	}
}

func batchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "batch",
		Usage:     "Generate one playlist per line of a prompt file",
		ArgsUsage: "[file]",
		Flags: []cli.Flag{
			userFlag(), tokenFlag(), limitFlag(), jsonFlag(),
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "Concurrent generations",
				Value:   3,
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Resolve tracks without creating playlists",
			},
		},
		Action: r.Batch,
	}
}

func chatCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "chat",
		Usage: "Build a playlist through a conversation",
		Flags: []cli.Flag{
			userFlag(), tokenFlag(), limitFlag(),
			&cli.StringFlag{
				Name:  "session",
				Usage: "Resume an existing session id",
			},
		},
		Action: r.Chat,
	}
}

func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List playlists created for a user",
		Flags: []cli.Flag{userFlag(), jsonFlag()},
		Action: r.History,
	}
}

func askCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "ask",
		Usage:     "Ask a music question",
		ArgsUsage: "<question>",
		Flags:     []cli.Flag{jsonFlag()},
		Action:    r.Ask,
	}
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address; defaults to the configured port",
			},
		},
		Action: r.Serve,
	}
}

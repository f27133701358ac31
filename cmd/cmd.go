// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file (TOML or YAML)",
			Value:   "config.toml",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level (debug, info, warn, error)",
		},
		&cli.StringFlag{
			Name:  "log-file",
			Usage: "Write logs to this file instead of stderr",
		},
	}
}

// getCommand downloads one or more URLs with live progress bars
func getCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "get",
		Aliases:   []string{"dl"},
		Usage:     "Download audio from one or more URLs",
		ArgsUsage: "URL...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Audio format (mp3, m4a, opus, flac, wav, best)",
			},
			&cli.StringFlag{
				Name:    "quality",
				Aliases: []string{"q"},
				Usage:   "Audio quality, a VBR level (0-10) or a bitrate such as 192K",
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Output directory",
			},
			&cli.BoolFlag{
				Name:  "separate-folders",
				Usage: "Put each playlist into its own folder",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Download even if the URL is already in history",
			},
			&cli.IntFlag{
				Name:    "concurrency",
				Aliases: []string{"j"},
				Usage:   "Maximum number of simultaneous downloads",
			},
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Neither check nor record download history",
			},
		},
		Action: r.Get,
	}
}

// retryCommand reruns a URL recorded in history
func retryCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "retry",
		Usage:     "Retry a download recorded in history",
		ArgsUsage: "URL",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "url"},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "missing",
				Aliases: []string{"m"},
				Usage:   "Only download playlist items that are not on disk",
			},
		},
		Action: r.Retry,
	}
}

// historyCommand handles the persisted download history
func historyCommand(r *Runner) *cli.Command {
	urlArg := []cli.Argument{&cli.StringArg{Name: "url"}}

	return &cli.Command{
		Name:  "history",
		Usage: "Inspect and manage download history",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recorded downloads, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "status",
						Usage: "Only show records with this status (completed, error, already_exists)",
					},
					&cli.StringFlag{
						Name:  "platform",
						Usage: "Only show records from this platform",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of records",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
				},
				Action: r.HistoryList,
			},
			{
				Name:      "show",
				Usage:     "Show one record",
				Arguments: urlArg,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryShow,
			},
			{
				Name:  "export",
				Usage: "Export history as CSV, JSON or Markdown",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "format",
						Usage: "Export format (csv, json, markdown)",
						Value: "csv",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path (prints to stdout when empty)",
					},
				},
				Action: r.HistoryExport,
			},
			{
				Name:      "forget",
				Usage:     "Delete a record so the URL can be downloaded again",
				Arguments: urlArg,
				Action:    r.HistoryForget,
			},
			{
				Name:      "open",
				Usage:     "Reveal a downloaded file in the file manager",
				Arguments: urlArg,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "source",
						Usage: "Open the source page in the browser instead",
					},
				},
				Action: r.HistoryOpen,
			},
		},
	}
}

// serveCommand runs the HTTP API
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the download engine behind an HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Address to listen on (defaults to server.host)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on (defaults to server.port)",
			},
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Neither check nor record download history",
			},
		},
		Action: r.Serve,
	}
}

// remoteCommand talks to a running serve instance
func remoteCommand(r *Runner) *cli.Command {
	serverFlag := &cli.StringFlag{
		Name:  "server",
		Usage: "Base URL of the server (defaults to server.host and server.port)",
	}

	return &cli.Command{
		Name:  "remote",
		Usage: "Control a running audiograb server",
		Commands: []*cli.Command{
			{
				Name:      "submit",
				Usage:     "Queue URLs on the server",
				ArgsUsage: "URL...",
				Flags: []cli.Flag{
					serverFlag,
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Audio format",
					},
					&cli.StringFlag{
						Name:    "quality",
						Aliases: []string{"q"},
						Usage:   "Audio quality",
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Download even if the URL is already in history",
					},
				},
				Action: r.RemoteSubmit,
			},
			{
				Name:  "list",
				Usage: "List tasks on the server",
				Flags: []cli.Flag{
					serverFlag,
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
				},
				Action: r.RemoteList,
			},
			{
				Name:      "cancel",
				Usage:     "Cancel a task on the server",
				Arguments: []cli.Argument{&cli.StringArg{Name: "url"}},
				Flags:     []cli.Flag{serverFlag},
				Action:    r.RemoteCancel,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for the interactive download monitor.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive download monitor",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Audio format for submitted URLs",
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Output directory for submitted URLs",
			},
		},
		Action: r.TUI,
	}
}

// setupCommand handles setup operations for configuration, the database and cookies.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write a commented config.toml",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Where to write the config file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Initialize the history database and run migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the most recent migration instead",
					},
				},
				Action: r.SetupDatabase,
			},
			{
				Name:  "cookies",
				Usage: "Convert a browser \"Copy as cURL\" command into a cookies.txt for the extractor",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "curl",
						Usage:    "Path to a file containing the cURL command",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "output",
						Usage: "Output path for the cookies file (default: ~/.audiograb/cookies.txt)",
					},
				},
				Action: r.SetupCookies,
			},
		},
	}
}

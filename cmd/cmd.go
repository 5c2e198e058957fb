// submodule cmd contains command definitions
package main

import (
	"github.com/desertthunder/malsync/internal/schema"
	"github.com/urfave/cli/v3"
)

func kindFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "kind",
		Aliases: []string{"k"},
		Usage:   "List kind: anime or manga",
		Value:   "anime",
	}
}

// statusCommand reports the cache's schema version and contents
func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show schema version, row counts and unsynced entries",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Status,
	}
}

// migrateCommand upgrades the cache file to a given version
func migrateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Upgrade the cache schema",
		Flags: []cli.Flag{
			configFlag(),
			&cli.IntFlag{
				Name:  "to",
				Usage: "Target schema version",
				Value: int(schema.CurrentVersion),
			},
		},
		Action: r.Migrate,
	}
}

// syncCommand runs sync passes against the remote list service
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Pull remote lists and push local edits",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:    "watch",
				Aliases: []string{"w"},
				Usage:   "Keep running, one pass every sync.interval_seconds",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output the pass result as JSON",
			},
		},
		Action: r.Sync,
	}
}

// listCommand prints a cached list
func listCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "Print a cached anime or manga list",
		Flags: []cli.Flag{
			configFlag(),
			kindFlag(),
			&cli.BoolFlag{
				Name:  "dirty",
				Usage: "Only show entries with unsynced edits",
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
		Action: r.List,
	}
}

// editCommand changes user fields of a cached entry
func editCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "edit",
		Usage: "Edit a cached entry; the change is pushed on the next sync",
		Flags: []cli.Flag{
			configFlag(),
			kindFlag(),
			&cli.IntFlag{
				Name:     "id",
				Usage:    "Record ID of the entry",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "status",
				Usage: "New list status (e.g. watching, completed)",
			},
			&cli.IntFlag{
				Name:  "score",
				Usage: "New score, 0-10",
				Value: -1,
			},
			&cli.IntFlag{
				Name:  "progress",
				Usage: "Episodes watched (anime) or chapters read (manga)",
				Value: -1,
			},
			&cli.IntFlag{
				Name:  "volumes",
				Usage: "Volumes read (manga only)",
				Value: -1,
			},
		},
		Action: r.Edit,
	}
}

// exportCommand writes a cached list to a file
func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export a cached list to CSV, Markdown or plain text",
		Flags: []cli.Flag{
			configFlag(),
			kindFlag(),
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: csv, markdown or text",
				Value:   "csv",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output path (file base for csv, directory for markdown)",
			},
			&cli.BoolFlag{
				Name:  "avatar",
				Usage: "Download the cached profile avatar into Markdown exports",
			},
		},
		Action: r.Export,
	}
}

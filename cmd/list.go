package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/malsync/internal/formatter"
	"github.com/desertthunder/malsync/internal/models"
	"github.com/desertthunder/malsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// List prints a cached list.
func (r *Runner) List(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}
	kind, err := parseKindFlag(cmd)
	if err != nil {
		return err
	}
	store, err := r.store(ctx)
	if err != nil {
		return err
	}

	repo := store.Lists(kind)
	var entries []*models.ListEntry
	if cmd.Bool("dirty") {
		entries, err = repo.ListDirty(ctx)
	} else {
		entries, err = repo.List(ctx)
	}
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(entries, cmd.Bool("pretty"))
	}

	if len(entries) == 0 {
		r.writePlain("No %s entries cached.\n", kind)
		return nil
	}

	r.writePlainHeader(fmt.Sprintf("%s list (%d)", kind, len(entries)))
	for _, e := range entries {
		done, total := e.Progress()
		r.writePlain("%8d  %-40s  %-14s  %2s  %4d/%-4d  %s\n",
			e.RecordID, truncate(e.Title, 40), e.MyStatus, scoreText(e.MyScore), done, total, styles.syncState(e.Dirty))
	}
	return nil
}

// Edit applies user changes to one cached entry and marks it for the next push.
func (r *Runner) Edit(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}
	kind, err := parseKindFlag(cmd)
	if err != nil {
		return err
	}
	id := int64(cmd.Int("id"))
	status := strings.TrimSpace(cmd.String("status"))
	score, progress, volumes := cmd.Int("score"), cmd.Int("progress"), cmd.Int("volumes")

	if status == "" && score < 0 && progress < 0 && volumes < 0 {
		return fmt.Errorf("%w: nothing to change; pass --status, --score, --progress or --volumes", shared.ErrMissingArgument)
	}
	if volumes >= 0 && kind != models.KindManga {
		return fmt.Errorf("%w: --volumes only applies to manga", shared.ErrInvalidArgument)
	}

	store, err := r.store(ctx)
	if err != nil {
		return err
	}

	edited, err := store.Edit(ctx, kind, id, func(e *models.ListEntry) error {
		if status != "" {
			e.MyStatus = status
		}
		if score >= 0 {
			e.MyScore = score
		}
		if progress >= 0 {
			if kind == models.KindManga {
				e.ChaptersRead = progress
			} else {
				e.EpisodesWatched = progress
			}
		}
		if volumes >= 0 {
			e.VolumesRead = volumes
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.Info("entry edited", "kind", kind, "record_id", id)
	done, total := edited.Progress()
	r.writePlain("%s %s: %s, score %s, %d/%d\n", styles.OK("✓"), edited.Title, edited.MyStatus, scoreText(edited.MyScore), done, total)
	r.writePlain("%s\n", styles.Help("Pushed on the next 'malsync sync'."))
	return nil
}

// Export writes a cached list with the formatter.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}
	kind, err := parseKindFlag(cmd)
	if err != nil {
		return err
	}
	store, err := r.store(ctx)
	if err != nil {
		return err
	}

	entries, err := store.Lists(kind).List(ctx)
	if err != nil {
		return err
	}
	export := &formatter.ListExport{
		Kind:       kind,
		Username:   r.config.Remote.Username,
		ExportedAt: r.now(),
		Entries:    entries,
	}
	output := cmd.String("output")

	switch strings.ToLower(cmd.String("format")) {
	case "csv":
		result, err := formatter.WriteCSVExport(export, output)
		if err != nil {
			return err
		}
		r.writePlain("%s Exported %d entries\n", styles.OK("✓"), len(entries))
		r.writePlain("  %s\n  %s\n", result.EntriesFile, result.MetadataFile)
	case "markdown", "md":
		avatarURL := ""
		if cmd.Bool("avatar") && export.Username != "" {
			profile, err := store.Profile.Get(ctx, export.Username)
			if err != nil {
				return err
			}
			if profile != nil {
				avatarURL = profile.AvatarURL
			}
		}
		result, err := formatter.WriteMarkdownExport(export, output, avatarURL)
		if err != nil {
			return err
		}
		r.writePlain("%s Exported %d entries to %s\n", styles.OK("✓"), len(entries), result.Directory)
	case "text", "txt":
		path, err := formatter.WriteTextExport(export, output)
		if err != nil {
			return err
		}
		r.writePlain("%s Exported %d entries to %s\n", styles.OK("✓"), len(entries), path)
	default:
		return fmt.Errorf("%w: unknown format %q (csv, markdown, text)", shared.ErrInvalidArgument, cmd.String("format"))
	}
	return nil
}

func scoreText(score int) string {
	if score == 0 {
		return "-"
	}
	return fmt.Sprint(score)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

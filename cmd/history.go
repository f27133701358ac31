package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/audiograb/internal/formatter"
	"github.com/desertthunder/audiograb/internal/models"
	"github.com/desertthunder/audiograb/internal/shared"
	"github.com/urfave/cli/v3"
)

// HistoryList prints recorded downloads, newest first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	repo, closeDB, err := r.openHistory()
	if err != nil {
		return err
	}
	defer closeDB()

	criteria := map[string]any{
		"status":   cmd.String("status"),
		"platform": cmd.String("platform"),
		"limit":    cmd.Int("limit"),
	}
	records, err := repo.List(criteria)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(records, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("History (%d)", len(records)))
	for _, rec := range records {
		r.writePlain("%-14s %-8s %s\n", rec.Status, rec.Platform, rec.Title)
		r.writePlain("%-14s %-8s %s\n", "", "", rec.URL)
	}
	return nil
}

// HistoryShow prints one record.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	url := cmd.StringArg("url")
	if url == "" {
		return fmt.Errorf("%w: url", shared.ErrMissingArgument)
	}

	repo, closeDB, err := r.openHistory()
	if err != nil {
		return err
	}
	defer closeDB()

	rec, err := repo.GetByURL(url)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(rec, true)
	}

	r.writePlainHeader(rec.Title)
	r.writePlain("URL:      %s\n", rec.URL)
	r.writePlain("Status:   %s\n", rec.Status)
	r.writePlain("Platform: %s\n", rec.Platform)
	if rec.Artist != "" {
		r.writePlain("Artist:   %s\n", rec.Artist)
	}
	if rec.Duration > 0 {
		r.writePlain("Duration: %s\n", formatter.FormatDuration(rec.Duration))
	}
	if rec.FileSize > 0 {
		r.writePlain("Size:     %s\n", formatter.FormatBytes(rec.FileSize))
	}
	if rec.FilePath != "" {
		r.writePlain("File:     %s\n", rec.FilePath)
	}
	if rec.Error != "" {
		r.writePlain("Error:    %s\n", rec.Error)
	}
	if rec.IsPlaylist {
		r.writePlainln("Items (%d):", len(rec.Items))
		for _, item := range rec.Items {
			mark := "✗"
			if item.Downloaded {
				mark = "✓"
			}
			r.writePlain("  %s %3d. %s\n", mark, item.Index+1, item.Title)
		}
	}
	return nil
}

// HistoryExport renders all records as CSV, JSON or Markdown, to a file or to stdout.
func (r *Runner) HistoryExport(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseExportFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	repo, closeDB, err := r.openHistory()
	if err != nil {
		return err
	}
	defer closeDB()

	records, err := repo.List(nil)
	if err != nil {
		return err
	}

	if output := cmd.String("output"); output != "" {
		path, err := formatter.WriteExport(records, format, output)
		if err != nil {
			return err
		}
		r.logger.Info("history exported", "path", path, "records", len(records))
		return r.writePlain("✓ Exported %d records to %s\n", len(records), path)
	}

	data, err := formatter.Export(records, format)
	if err != nil {
		return err
	}
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// HistoryForget deletes the record for a URL.
func (r *Runner) HistoryForget(ctx context.Context, cmd *cli.Command) error {
	url := cmd.StringArg("url")
	if url == "" {
		return fmt.Errorf("%w: url", shared.ErrMissingArgument)
	}

	repo, closeDB, err := r.openHistory()
	if err != nil {
		return err
	}
	defer closeDB()

	if err := repo.DeleteByURL(url); err != nil {
		return err
	}
	return r.writePlain("✓ Forgot %s\n", url)
}

// HistoryOpen reveals the downloaded file in the OS file manager. With --source it opens
// the page the file came from.
func (r *Runner) HistoryOpen(ctx context.Context, cmd *cli.Command) error {
	url := cmd.StringArg("url")
	if url == "" {
		return fmt.Errorf("%w: url", shared.ErrMissingArgument)
	}

	repo, closeDB, err := r.openHistory()
	if err != nil {
		return err
	}
	defer closeDB()

	rec, err := repo.GetByURL(url)
	if err != nil {
		return err
	}
	if cmd.Bool("source") {
		return shared.OpenBrowser(rec.URL)
	}

	path := recordPath(rec)
	if path == "" {
		return fmt.Errorf("%w: no file recorded for %s", shared.ErrNotFound, url)
	}
	return shared.RevealFile(path)
}

func recordPath(rec *models.HistoryRecord) string {
	if rec.FilePath != "" {
		return rec.FilePath
	}
	if len(rec.FilePaths) > 0 {
		return rec.FilePaths[0]
	}
	return ""
}

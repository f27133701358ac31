package tasks

import (
	"path/filepath"
	"strconv"
	"strings"
)

const defaultOutputTemplate = "%(title)s.%(ext)s"

// progressTemplate makes the extractor print one JSON object per progress tick.
var progressTemplate = "download:{" + strings.Join([]string{
	`"status":%(progress.status)j`,
	`"downloaded_bytes":%(progress.downloaded_bytes)j`,
	`"total_bytes":%(progress.total_bytes)j`,
	`"total_bytes_estimate":%(progress.total_bytes_estimate)j`,
	`"speed":%(progress.speed)j`,
	`"filename":%(progress.filename)j`,
	`"_percent_str":%(progress._percent_str)j`,
	`"playlist_index":%(info.playlist_index)j`,
	`"playlist_count":%(info.playlist_count)j`,
	`"playlist_title":%(info.playlist_title)j`,
	`"playlist":%(info.playlist)j`,
	`"title":%(info.title)j`,
	`"fulltitle":%(info.fulltitle)j`,
	`"artist":%(info.artist)j`,
	`"uploader":%(info.uploader)j`,
	`"duration":%(info.duration)j`,
	`"id":%(info.id)j`,
	`"thumbnail":%(info.thumbnail)j`,
	`"abr":%(info.abr)j`,
	`"extractor_key":%(info.extractor_key)j`,
}, ",") + "}"

// movedTemplate reports the final location of every item after post-processing.
var movedTemplate = "after_move:{" + strings.Join([]string{
	`"status":"completed"`,
	`"filepath":%(filepath)j`,
	`"title":%(title)j`,
	`"playlist_index":%(playlist_index)j`,
	`"playlist_count":%(playlist_count)j`,
	`"duration":%(duration)j`,
	`"abr":%(abr)j`,
	`"id":%(id)j`,
}, ",") + "}"

// ArgsOptions are the per-run inputs of [BuildArgs].
type ArgsOptions struct {
	Format             string
	Quality            string
	OutputDir          string
	Template           string
	Proxy              string
	CookiesFile        string
	CookiesFromBrowser string
	Playlist           bool
	// Items limits a collection run to these 1-based item numbers.
	Items []int
}

// BuildArgs returns the extractor argument vector for url. The URL always comes last,
// after "--", so it is never read as an option.
func BuildArgs(url string, opts ArgsOptions) []string {
	args := []string{
		"--newline",
		"--no-quiet",
		"--progress",
		"--progress-template", progressTemplate,
		"--print", movedTemplate,
		"--no-simulate",
		"--no-mtime",
		"-x",
	}

	if opts.Format != "" && opts.Format != "best" {
		args = append(args, "--audio-format", opts.Format)
	}
	if opts.Quality != "" {
		args = append(args, "--audio-quality", opts.Quality)
	}

	template := opts.Template
	if template == "" {
		template = defaultOutputTemplate
	}
	if opts.OutputDir != "" {
		template = filepath.Join(opts.OutputDir, template)
	}
	args = append(args, "-o", template)

	if opts.Proxy != "" {
		args = append(args, "--proxy", opts.Proxy)
	}
	switch {
	case opts.CookiesFile != "":
		args = append(args, "--cookies", opts.CookiesFile)
	case opts.CookiesFromBrowser != "":
		args = append(args, "--cookies-from-browser", opts.CookiesFromBrowser)
	}

	if opts.Playlist {
		args = append(args, "--yes-playlist", "--ignore-errors")
		if len(opts.Items) > 0 {
			args = append(args, "--playlist-items", joinInts(opts.Items))
		}
	} else {
		args = append(args, "--no-playlist")
	}

	return append(args, "--", url)
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

// package formatter renders download history and playlist results to files (CSV, JSON, Markdown, m3u8)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/desertthunder/audiograb/internal/models"
	"github.com/desertthunder/audiograb/internal/shared"
)

// ExportFormat names an output format of [Export].
type ExportFormat string

const (
	FormatCSV      ExportFormat = "csv"
	FormatJSON     ExportFormat = "json"
	FormatMarkdown ExportFormat = "markdown"
)

// ParseExportFormat accepts csv, json, markdown or md.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("%w: export format %q", shared.ErrInvalidFlag, s)
}

// Extension returns the file extension conventionally used for f.
func (f ExportFormat) Extension() string {
	if f == FormatMarkdown {
		return ".md"
	}
	return "." + string(f)
}

// ExportToCSV converts history records to CSV with columns: URL, Status, Title, Artist, Duration, Format, Items, File, Error
func ExportToCSV(records []*models.HistoryRecord) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"URL", "Status", "Title", "Artist", "Duration", "Format", "Items", "File", "Error"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, rec := range records {
		items := ""
		if rec.IsPlaylist {
			items = strconv.Itoa(len(rec.Items))
		}
		record := []string{
			rec.URL,
			rec.Status.String(),
			rec.Title,
			rec.Artist,
			strconv.Itoa(int(rec.Duration)),
			rec.Format,
			items,
			primaryPath(rec),
			rec.Error,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToJSON converts history records to indented JSON
func ExportToJSON(records []*models.HistoryRecord) ([]byte, error) {
	if records == nil {
		records = []*models.HistoryRecord{}
	}
	return shared.MarshalJSON(records, true)
}

// ExportToMarkdown converts history records to a Markdown document with one section per status
func ExportToMarkdown(records []*models.HistoryRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Download History\n\n")
	buf.WriteString(fmt.Sprintf("**Entries**: %d\n\n", len(records)))

	groups := map[models.TaskState][]*models.HistoryRecord{}
	for _, rec := range records {
		groups[rec.Status] = append(groups[rec.Status], rec)
	}

	for _, state := range []models.TaskState{models.StateCompleted, models.StateAlreadyExists, models.StateError, models.StateCancelled} {
		group := groups[state]
		if len(group) == 0 {
			continue
		}
		buf.WriteString(fmt.Sprintf("## %s\n\n", statusHeading(state)))
		for i, rec := range group {
			line := fmt.Sprintf("%d. [%s](%s)", i+1, markdownEscape(rec.Title), rec.URL)
			if rec.Artist != "" {
				line += " by " + markdownEscape(rec.Artist)
			}
			if rec.Duration > 0 {
				line += fmt.Sprintf(" [%s]", FormatDuration(rec.Duration))
			}
			if rec.IsPlaylist {
				line += fmt.Sprintf(" (%d items)", len(rec.Items))
			}
			if rec.Error != "" {
				line += ": " + rec.Error
			}
			buf.WriteString(line + "\n")
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// Export renders records in format f.
func Export(records []*models.HistoryRecord, f ExportFormat) ([]byte, error) {
	switch f {
	case FormatCSV:
		return ExportToCSV(records)
	case FormatJSON:
		return ExportToJSON(records)
	case FormatMarkdown:
		return ExportToMarkdown(records)
	}
	return nil, fmt.Errorf("%w: export format %q", shared.ErrInvalidFlag, f)
}

// WriteExport renders records and writes them to path.
//
// Defaults to history{ext} in the working directory.
func WriteExport(records []*models.HistoryRecord, f ExportFormat, path string) (string, error) {
	if path == "" {
		path = "history" + f.Extension()
	}

	data, err := Export(records, f)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s: %w", f, err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}

	return path, nil
}

func primaryPath(rec *models.HistoryRecord) string {
	if rec.FilePath != "" {
		return rec.FilePath
	}
	if len(rec.FilePaths) > 0 {
		return filepath.Dir(rec.FilePaths[0])
	}
	return ""
}

func statusHeading(s models.TaskState) string {
	switch s {
	case models.StateCompleted:
		return "Completed"
	case models.StateAlreadyExists:
		return "Already Downloaded"
	case models.StateError:
		return "Failed"
	case models.StateCancelled:
		return "Cancelled"
	}
	return s.String()
}

var markdownReplacer = strings.NewReplacer("[", `\[`, "]", `\]`, "*", `\*`, "_", `\_`)

func markdownEscape(s string) string {
	return markdownReplacer.Replace(s)
}

// package formatter exports cached anime and manga lists to various formats (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/desertthunder/malsync/internal/models"
	"github.com/desertthunder/malsync/internal/shared"
)

// ListExport is one list as read from the cache.
type ListExport struct {
	Kind       models.Kind         `json:"kind"`
	Username   string              `json:"username"`
	ExportedAt time.Time           `json:"exported_at"`
	Entries    []*models.ListEntry `json:"-"`
}

// Dirty returns the number of entries with unpushed local edits.
func (e *ListExport) Dirty() int {
	n := 0
	for _, entry := range e.Entries {
		if entry.Dirty {
			n++
		}
	}
	return n
}

// Metadata is the JSON sidecar written next to a CSV export.
type Metadata struct {
	Kind       models.Kind `json:"kind"`
	Username   string      `json:"username,omitempty"`
	ExportedAt time.Time   `json:"exported_at"`
	Entries    int         `json:"entries"`
	Dirty      int         `json:"dirty"`
}

var csvHeaders = []string{"RecordID", "Title", "Type", "Status", "MyStatus", "MyScore", "MemberScore", "Progress", "Total", "Dirty", "LastUpdate"}

// WriteCSV streams the list to w as CSV with columns: RecordID, Title, Type,
// Status, MyStatus, MyScore, MemberScore, Progress, Total, Dirty, LastUpdate
func WriteCSV(w io.Writer, export *ListExport) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(csvHeaders); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, entry := range export.Entries {
		done, total := entry.Progress()
		record := []string{
			strconv.FormatInt(entry.RecordID, 10),
			entry.Title,
			entry.Type,
			entry.Status,
			entry.MyStatus,
			strconv.Itoa(entry.MyScore),
			strconv.FormatFloat(entry.MemberScore, 'f', -1, 64),
			strconv.Itoa(done),
			strconv.Itoa(total),
			strconv.FormatBool(entry.Dirty),
			entry.LastUpdated().UTC().Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("CSV writer error: %w", err)
	}
	return nil
}

// ExportToCSV converts a ListExport to CSV bytes.
func ExportToCSV(export *ListExport) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, export); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func progressUnit(kind models.Kind) string {
	if kind == models.KindManga {
		return "ch"
	}
	return "ep"
}

func formatScore(score int) string {
	if score == 0 {
		return "-"
	}
	return strconv.Itoa(score)
}

// ExportToMarkdown converts a ListExport to Markdown with an optional avatar image
func ExportToMarkdown(export *ListExport, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer

	title := fmt.Sprintf("%s list", export.Kind)
	if export.Username != "" {
		title = fmt.Sprintf("%s's %s list", export.Username, export.Kind)
	}
	buf.WriteString(fmt.Sprintf("# %s\n\n", title))

	if imageFilename != "" {
		buf.WriteString(fmt.Sprintf("![Avatar](%s)\n\n", imageFilename))
	}

	buf.WriteString(fmt.Sprintf("**Entries**: %d\n", len(export.Entries)))
	buf.WriteString(fmt.Sprintf("**Unsynced**: %d\n\n", export.Dirty()))

	buf.WriteString("## Entries\n\n")
	buf.WriteString("| # | Title | Status | Score | Progress |\n")
	buf.WriteString("|---|---|---|---|---|\n")
	unit := progressUnit(export.Kind)
	for i, entry := range export.Entries {
		done, total := entry.Progress()
		marker := ""
		if entry.Dirty {
			marker = " *"
		}
		buf.WriteString(fmt.Sprintf("| %d | %s%s | %s | %s | %d/%d %s |\n",
			i+1, entry.Title, marker, entry.MyStatus, formatScore(entry.MyScore), done, total, unit))
	}

	return buf.Bytes(), nil
}

// ExportToText converts a ListExport to plain text format
func ExportToText(export *ListExport) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("List: %s\n", export.Kind))
	if export.Username != "" {
		buf.WriteString(fmt.Sprintf("User: %s\n", export.Username))
	}
	buf.WriteString(fmt.Sprintf("Entries: %d\n\n", len(export.Entries)))

	unit := progressUnit(export.Kind)
	for i, entry := range export.Entries {
		done, total := entry.Progress()
		buf.WriteString(fmt.Sprintf("%d. %s [%s] %d/%d %s, score %s\n",
			i+1, entry.Title, entry.MyStatus, done, total, unit, formatScore(entry.MyScore)))
	}

	return buf.Bytes(), nil
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// ToMetadataJSON generates a JSON summary of the list (without entries)
func ToMetadataJSON(export *ListExport) ([]byte, error) {
	return shared.MarshalJSON(Metadata{
		Kind:       export.Kind,
		Username:   export.Username,
		ExportedAt: export.ExportedAt,
		Entries:    len(export.Entries),
		Dirty:      export.Dirty(),
	}, true)
}

// defaultBase is "{username}_{kind}", or just the kind without a username.
func defaultBase(export *ListExport) string {
	if export.Username == "" {
		return export.Kind.String()
	}
	return export.Username + "_" + export.Kind.String()
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	EntriesFile  string
	MetadataFile string
}

// WriteCSVExport exports a list to CSV with an accompanying metadata JSON file.
//
// Creates {base}_entries.csv and {base}_metadata.json; base defaults to {username}_{kind}.
func WriteCSVExport(export *ListExport, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = defaultBase(export)
	}

	csvData, err := ExportToCSV(export)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	entriesFile := baseFilepath + "_entries.csv"
	if err := os.WriteFile(entriesFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadataJSON, err := ToMetadataJSON(export)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{
		EntriesFile:  entriesFile,
		MetadataFile: metadataFile,
	}, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory string
	Files     []string
	Avatar    string
}

// WriteMarkdownExport exports a list to Markdown in a dedicated directory.
//
// Directory name defaults to {username}_{kind}.
// The avatarURL parameter is optional; when set the image is downloaded next to the README.
func WriteMarkdownExport(export *ListExport, outputDir string, avatarURL string) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = defaultBase(export)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{
		Directory: outputDir,
		Files:     []string{},
	}

	var avatarFilename string
	if avatarURL != "" {
		imageData, err := DownloadImage(avatarURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to download avatar: %v\n", err)
		} else {
			avatarFilename = "avatar.jpg"
			avatarPath := filepath.Join(outputDir, avatarFilename)
			if err := os.WriteFile(avatarPath, imageData, 0644); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to save avatar: %v\n", err)
				avatarFilename = ""
			} else {
				result.Avatar = avatarPath
				result.Files = append(result.Files, avatarPath)
			}
		}
	}

	mdData, err := ExportToMarkdown(export, avatarFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	result.Files = append(result.Files, mdFile)

	return result, nil
}

// WriteTextExport exports a list to plain text format.
//
// Defaults to {username}_{kind}.txt as the filename.
func WriteTextExport(export *ListExport, path string) (string, error) {
	if path == "" {
		path = defaultBase(export) + ".txt"
	}

	textData, err := ExportToText(export)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(path, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return path, nil
}

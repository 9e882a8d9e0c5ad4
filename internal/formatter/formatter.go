// package formatter provides functions to export subscriptions to various formats (CSV, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/desertthunder/ytpa/internal/models"
	"github.com/desertthunder/ytpa/internal/shared"
)

// Format is an export format accepted by `subscriptions export`.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
	FormatJSON     Format = "json"
)

// ParseFormat accepts a format name or its file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "text", "txt":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidFlag, s)
	}
}

// Extension is the file extension used for default export paths.
func (f Format) Extension() string {
	switch f {
	case FormatMarkdown:
		return "md"
	case FormatText:
		return "txt"
	default:
		return string(f)
	}
}

func watermarkFields(wm models.UploadWatermark) (string, string) {
	if wm.IsZero() {
		return "", ""
	}
	return wm.VideoID, wm.PublishedAt.UTC().Format(time.RFC3339)
}

func lastPolled(s *models.Subscription) string {
	if t := s.LastPolledAt(); t != nil {
		return t.UTC().Format(time.RFC3339)
	}
	return ""
}

// ExportToCSV converts subscriptions to CSV format with columns: ID, Name, Channel ID, Target Playlist, Filter,
// Watermark Video, Watermark Published, Last Polled
func ExportToCSV(subs []*models.Subscription) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Name", "Channel ID", "Target Playlist", "Filter", "Watermark Video", "Watermark Published", "Last Polled"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, sub := range subs {
		videoID, published := watermarkFields(sub.Watermark())
		record := []string{
			sub.ID(),
			sub.Name(),
			sub.Channel().ID,
			sub.TargetPlaylist().ID,
			string(sub.Filter()),
			videoID,
			published,
			lastPolled(sub),
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

// ExportToMarkdown renders subscriptions as a Markdown document with one section per subscription.
func ExportToMarkdown(subs []*models.Subscription, title string) ([]byte, error) {
	var buf bytes.Buffer

	if title == "" {
		title = "Subscriptions"
	}
	fmt.Fprintf(&buf, "# %s\n\n", title)
	fmt.Fprintf(&buf, "**Subscriptions**: %d\n\n", len(subs))

	for i, sub := range subs {
		fmt.Fprintf(&buf, "## %d. %s\n\n", i+1, sub.Label())
		fmt.Fprintf(&buf, "- **Channel**: [%s](%s)\n", sub.Channel().ID, sub.Channel().URL())
		fmt.Fprintf(&buf, "- **Target**: [%s](%s)\n", sub.TargetPlaylist().ID, sub.TargetPlaylist().URL())
		fmt.Fprintf(&buf, "- **Filter**: %s\n", sub.Filter())
		fmt.Fprintf(&buf, "- **Watermark**: %s\n", sub.Watermark())
		if polled := lastPolled(sub); polled != "" {
			fmt.Fprintf(&buf, "- **Last polled**: %s\n", polled)
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// ExportToText converts subscriptions to plain text format
func ExportToText(subs []*models.Subscription) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Subscriptions: %d\n\n", len(subs))
	for i, sub := range subs {
		fmt.Fprintf(&buf, "%d. %s (%s) -> %s [%s] since %s\n",
			i+1, sub.Label(), sub.Channel().ID, sub.TargetPlaylist().ID, sub.Filter(), sub.Watermark())
	}

	return buf.Bytes(), nil
}

// ExportToJSON renders subscriptions as an indented JSON array.
func ExportToJSON(subs []*models.Subscription) ([]byte, error) {
	if subs == nil {
		subs = []*models.Subscription{}
	}
	return shared.MarshalJSON(subs, true)
}

// Export renders subs in the given format.
func Export(subs []*models.Subscription, format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		return ExportToCSV(subs)
	case FormatMarkdown:
		return ExportToMarkdown(subs, "")
	case FormatText:
		return ExportToText(subs)
	case FormatJSON:
		return ExportToJSON(subs)
	default:
		return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidFlag, format)
	}
}

// WriteExport exports subscriptions to a file.
//
// Defaults to subscriptions.{ext} as the filename. The file is replaced atomically.
func WriteExport(subs []*models.Subscription, format Format, filepath string) (string, error) {
	if filepath == "" {
		filepath = "subscriptions." + format.Extension()
	}

	data, err := Export(subs, format)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s: %w", format, err)
	}

	if err := shared.WriteFileAtomic(filepath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s file: %w", format, err)
	}

	return filepath, nil
}

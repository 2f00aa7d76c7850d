package out

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"watchtime/internal/modules/tracking/dto"
	"watchtime/internal/platform/markdown"
	"watchtime/internal/platform/slug"
)

const (
	reportBlockStart = "<!-- watchtime:report:start -->"
	reportBlockEnd   = "<!-- watchtime:report:end -->"
)

// ReportNoteWriter renders reports as Markdown notes. Rewriting an existing
// note refreshes the frontmatter and the generated block and keeps anything
// the user wrote around it.
type ReportNoteWriter struct{}

func NewReportNoteWriter() ReportNoteWriter {
	return ReportNoteWriter{}
}

// DefaultReportPath names a note after the tracker and the report day.
func DefaultReportPath(dir, trackerName string, at time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%s.md", slug.Make(trackerName), at.Format("2006-01-02")))
}

func (ReportNoteWriter) Write(path string, report dto.ReportOutput) error {
	note := markdown.Note{Meta: map[string]any{}}
	existing, err := os.ReadFile(path)
	switch {
	case err == nil:
		note, err = markdown.ParseNote(string(existing))
		if err != nil {
			return fmt.Errorf("parse existing note %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("read existing note %s: %w", path, err)
	}

	note.Meta["type"] = "watchtime-report"
	note.Meta["tracker"] = report.Status.Name
	note.Meta["generated_at"] = report.GeneratedAt.UTC().Format(time.RFC3339)
	note.Meta["range_hours"] = report.RangeHours
	note.Meta["range_minutes"] = minutes(report.RangeMillis)
	note.Meta["today_minutes"] = minutes(report.Status.TodayMillis)
	note.Meta["total_watched_minutes"] = roundTenth(report.Status.TotalWatchedSeconds / 60)
	note.Meta["records"] = report.Status.Records

	if strings.TrimSpace(note.Body) == "" {
		note.Body = fmt.Sprintf("# Watch time: %s\n\n", report.Status.Name)
	}
	note.SetBlock(reportBlockStart, reportBlockEnd, RenderReport(report))

	content, err := note.Render()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create note dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write note %s: %w", path, err)
	}
	return nil
}

// RenderReport is the Markdown body shared by notes and the CLI.
func RenderReport(report dto.ReportOutput) string {
	b := strings.Builder{}
	b.WriteString("## Watch time\n\n")
	fmt.Fprintf(&b, "- Today: %s\n", FormatMillis(report.Status.TodayMillis))
	fmt.Fprintf(&b, "- Last %s h: %s\n", trimFloat(report.RangeHours), FormatMillis(report.RangeMillis))
	fmt.Fprintf(&b, "- Total: %s\n", FormatMillis(int64(report.Status.TotalWatchedSeconds*1000)))

	b.WriteString("\n## Now playing\n\n")
	if len(report.Status.PlayingVideos) == 0 {
		b.WriteString("Nothing is playing.\n")
	}
	for _, video := range report.Status.PlayingVideos {
		fmt.Fprintf(&b, "- %s\n", link(video.Title, video.URL))
	}

	b.WriteString("\n## Recent activity\n\n")
	if len(report.Status.RecentActivity) == 0 {
		b.WriteString("No recent activity.\n")
	}
	for _, item := range report.Status.RecentActivity {
		fmt.Fprintf(&b, "- %s\n", link(item.Title, item.URL))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// FormatMillis renders a duration rounded to the second.
func FormatMillis(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).Round(time.Second).String()
}

func link(title, url string) string {
	if strings.TrimSpace(title) == "" {
		title = url
	}
	title = strings.NewReplacer("[", `\[`, "]", `\]`).Replace(title)
	return fmt.Sprintf("[%s](%s)", title, url)
}

func minutes(ms int64) float64 {
	return roundTenth(float64(ms) / 60000)
}

func roundTenth(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

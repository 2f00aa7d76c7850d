package out_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	trackingout "watchtime/internal/modules/tracking/adapter/out"
	"watchtime/internal/modules/tracking/dto"
	"watchtime/internal/platform/markdown"
)

func sampleReport() dto.ReportOutput {
	return dto.ReportOutput{
		GeneratedAt: time.Date(2026, 2, 25, 10, 0, 0, 0, time.UTC),
		RangeHours:  1,
		RangeMillis: 900_000,
		Status: dto.StatusOutput{
			Name:                "Default Tracker",
			TodayMillis:         1_100_000,
			TotalWatchedSeconds: 1100,
			RecentActivity:      []dto.ActivityOutput{{URL: "https://youtu.be/a", Title: "Video [A]"}},
			Records:             1,
		},
	}
}

func TestRenderReport(t *testing.T) {
	t.Parallel()
	out := trackingout.RenderReport(sampleReport())
	assert.Contains(t, out, "- Today: 18m20s")
	assert.Contains(t, out, "- Last 1 h: 15m0s")
	assert.Contains(t, out, "Nothing is playing.")
	assert.Contains(t, out, `- [Video \[A\]](https://youtu.be/a)`)
}

func TestReportNoteKeepsUserText(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	report := sampleReport()
	path := trackingout.DefaultReportPath(dir, report.Status.Name, report.GeneratedAt)
	assert.Equal(t, filepath.Join(dir, "default-tracker-2026-02-25.md"), path)

	writer := trackingout.NewReportNoteWriter()
	require.NoError(t, writer.Write(path, report))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	note, err := markdown.ParseNote(string(raw))
	require.NoError(t, err)
	assert.Equal(t, "watchtime-report", note.Meta["type"])
	assert.EqualValues(t, 15, note.Meta["range_minutes"])
	assert.Contains(t, note.Body, "# Watch time: Default Tracker")
	block, ok := note.Block("<!-- watchtime:report:start -->", "<!-- watchtime:report:end -->")
	require.True(t, ok)
	assert.Equal(t, trackingout.RenderReport(report), block)

	edited := strings.Replace(string(raw), "# Watch time: Default Tracker", "# Watch time: Default Tracker\n\nMy notes.", 1)
	require.NoError(t, os.WriteFile(path, []byte(edited), 0o644))

	report.RangeMillis = 60_000
	require.NoError(t, writer.Write(path, report))
	raw, err = os.ReadFile(path)
	require.NoError(t, err)
	content := string(raw)
	assert.Contains(t, content, "My notes.")
	assert.Contains(t, content, "- Last 1 h: 1m0s")
	assert.NotContains(t, content, "15m0s")
	assert.Equal(t, 1, strings.Count(content, "<!-- watchtime:report:start -->"))
}

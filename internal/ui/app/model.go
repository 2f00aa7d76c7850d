// Package app is the terminal dashboard. It polls a running daemon (or an
// offline snapshot view) and renders watch time, playing videos and recent
// activity.
package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"watchtime/internal/modules/tracking/dto"
	"watchtime/internal/ui/components"
	"watchtime/internal/ui/theme"
)

const (
	DefaultRefreshEvery = 5 * time.Second
	DefaultRangeHours   = 24
	queryTimeout        = 2 * time.Second
	maxRecentRows       = 10
)

// QueriesPort is the read side the dashboard needs.
type QueriesPort interface {
	Status(ctx context.Context) (dto.StatusOutput, error)
	WatchTime(ctx context.Context, rangeHours float64) (dto.WatchTimeOutput, error)
}

type tickMsg time.Time

type refreshedMsg struct {
	status dto.StatusOutput
	watch  dto.WatchTimeOutput
	at     time.Time
	err    error
}

type keyMap struct {
	Refresh key.Binding
	Range   key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Range:   key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "set range")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:    key.NewBinding(key.WithKeys("ctrl+c", "q"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Refresh, k.Range, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Refresh, k.Range},
		{k.Help, k.Quit},
	}
}

type Options struct {
	RefreshEvery time.Duration
	RangeHours   float64
	// Source labels where the numbers come from, e.g. a daemon address.
	Source string
}

// Model is the root Bubble Tea model.
type Model struct {
	queries QueriesPort
	every   time.Duration
	source  string
	now     func() time.Time

	rangeHours  float64
	status      dto.StatusOutput
	watch       dto.WatchTimeOutput
	loaded      bool
	lastErr     error
	lastRefresh time.Time

	keys       keyMap
	help       help.Model
	showHelp   bool
	rangeInput components.RangeInput
	width      int
	height     int
}

func NewModel(queries QueriesPort, opts Options) Model {
	if opts.RefreshEvery <= 0 {
		opts.RefreshEvery = DefaultRefreshEvery
	}
	if opts.RangeHours <= 0 {
		opts.RangeHours = DefaultRangeHours
	}
	return Model{
		queries:    queries,
		every:      opts.RefreshEvery,
		source:     opts.Source,
		now:        time.Now,
		rangeHours: opts.RangeHours,
		keys:       defaultKeys(),
		help:       help.New(),
		rangeInput: components.NewRangeInput(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refreshCmd(), m.tickCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.rangeInput.Visible() {
		var cmd tea.Cmd
		m.rangeInput, cmd = m.rangeInput.Update(msg)
		return m, cmd
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.rangeInput.SetWidth(min(msg.Width-4, 56))

	case tickMsg:
		return m, tea.Batch(m.refreshCmd(), m.tickCmd())

	case refreshedMsg:
		m.lastRefresh = msg.at
		m.lastErr = msg.err
		if msg.err == nil {
			m.status = msg.status
			m.watch = msg.watch
			m.loaded = true
		}

	case components.RangeSubmitMsg:
		m.rangeHours = msg.Hours
		return m, m.refreshCmd()

	case components.RangeCancelMsg:
		return m, nil

	case tea.KeyMsg:
		if m.showHelp {
			if msg.String() == "?" || msg.String() == "esc" {
				m.showHelp = false
			}
			return m, nil
		}
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.showHelp = true
		case key.Matches(msg, m.keys.Refresh):
			return m, m.refreshCmd()
		case key.Matches(msg, m.keys.Range):
			return m, m.rangeInput.Open(m.rangeHours)
		}
	}
	return m, nil
}

func (m Model) View() string {
	header := m.renderHeader()
	footer := m.renderFooter()

	var body string
	switch {
	case m.showHelp:
		body = m.help.View(m.keys)
	case m.rangeInput.Visible():
		body = m.rangeInput.View()
	case !m.loaded && m.lastErr == nil:
		body = theme.Muted.Render("loading…")
	case !m.loaded:
		body = theme.Failure.Render("unavailable: " + m.lastErr.Error())
	default:
		body = lipgloss.JoinVertical(lipgloss.Left,
			m.renderTotals(),
			m.renderPlaying(),
			m.renderRecent(),
		)
	}
	return theme.App.Render(lipgloss.JoinVertical(lipgloss.Left, header, "", body, "", footer))
}

func (m Model) renderHeader() string {
	name := m.status.Name
	if name == "" {
		name = "watchtime"
	}
	line := theme.Title.Render(name)
	if m.source != "" {
		line += "  " + theme.Muted.Render(m.source)
	}
	return line
}

func (m Model) renderTotals() string {
	lines := []string{
		theme.Title.Render("Watch time"),
		fmt.Sprintf("Today          %s", theme.Hot.Render(FormatMillis(m.status.TodayMillis))),
		fmt.Sprintf("Last %-9s %s", formatHours(m.rangeHours), FormatMillis(m.watch.Millis)),
		fmt.Sprintf("All time       %s", FormatMillis(int64(m.status.TotalWatchedSeconds*1000))),
		theme.Muted.Render(fmt.Sprintf("%d videos", m.status.Records)),
	}
	return theme.Pane.Render(strings.Join(lines, "\n"))
}

func (m Model) renderPlaying() string {
	lines := []string{theme.Title.Render("Now playing")}
	if len(m.status.PlayingVideos) == 0 {
		lines = append(lines, theme.Muted.Render("nothing playing"))
		return theme.Pane.Render(strings.Join(lines, "\n"))
	}
	for _, v := range m.status.PlayingVideos {
		line := theme.Playing.Render("● ") + titleOf(v.Title, v.URL)
		if v.TabID != nil {
			line += theme.Muted.Render(" (tab " + strconv.FormatInt(*v.TabID, 10) + ")")
		}
		lines = append(lines, line)
	}
	return theme.PaneLive.Render(strings.Join(lines, "\n"))
}

func (m Model) renderRecent() string {
	lines := []string{theme.Title.Render("Recent activity")}
	if len(m.status.RecentActivity) == 0 {
		lines = append(lines, theme.Muted.Render("no recent videos"))
	}
	for i, item := range m.status.RecentActivity {
		if i == maxRecentRows {
			lines = append(lines, theme.Muted.Render(fmt.Sprintf("… %d more", len(m.status.RecentActivity)-maxRecentRows)))
			break
		}
		lines = append(lines, "• "+titleOf(item.Title, item.URL))
	}
	return theme.Pane.Render(strings.Join(lines, "\n"))
}

func (m Model) renderFooter() string {
	var state string
	switch {
	case m.lastErr != nil && m.loaded:
		state = theme.Failure.Render("stale: " + m.lastErr.Error())
	case !m.lastRefresh.IsZero():
		state = theme.Muted.Render("updated " + m.lastRefresh.Format("15:04:05"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, state, m.help.View(m.keys))
}

func (m Model) refreshCmd() tea.Cmd {
	queries, hours, now := m.queries, m.rangeHours, m.now
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
		defer cancel()
		status, err := queries.Status(ctx)
		if err != nil {
			return refreshedMsg{at: now(), err: err}
		}
		watch, err := queries.WatchTime(ctx, hours)
		if err != nil {
			return refreshedMsg{at: now(), err: err}
		}
		return refreshedMsg{status: status, watch: watch, at: now()}
	}
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.every, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// FormatMillis renders a duration rounded to the second, e.g. 1h5m3s.
func FormatMillis(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).Round(time.Second).String()
}

func formatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64) + "h"
}

func titleOf(title, url string) string {
	if strings.TrimSpace(title) == "" {
		return url
	}
	return title
}

package components

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"watchtime/internal/ui/theme"
)

// RangeSubmitMsg is emitted when the user confirms a new range.
type RangeSubmitMsg struct{ Hours float64 }

// RangeCancelMsg is emitted when the user presses esc.
type RangeCancelMsg struct{}

var (
	inputStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.Peach).
			Foreground(theme.Text).
			Padding(0, 1)

	hintStyle = lipgloss.NewStyle().Foreground(theme.Subtext0)
)

// RangeInput is an overlay that asks for the watch-time range in hours.
type RangeInput struct {
	input   textinput.Model
	visible bool
	invalid string
	width   int
}

func NewRangeInput() RangeInput {
	ti := textinput.New()
	ti.Placeholder = "hours, e.g. 24 or 0.5"
	ti.CharLimit = 16
	return RangeInput{input: ti}
}

func (r RangeInput) Visible() bool { return r.visible }

// Open shows the overlay prefilled with the current range.
func (r *RangeInput) Open(current float64) tea.Cmd {
	r.visible = true
	r.invalid = ""
	r.input.SetValue(strconv.FormatFloat(current, 'f', -1, 64))
	r.input.CursorEnd()
	return r.input.Focus()
}

func (r *RangeInput) SetWidth(w int) { r.width = w }

func (r RangeInput) Update(msg tea.Msg) (RangeInput, tea.Cmd) {
	if !r.visible {
		return r, nil
	}
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			r.visible = false
			r.input.Blur()
			return r, func() tea.Msg { return RangeCancelMsg{} }
		case "enter":
			hours, err := ParseHours(r.input.Value())
			if err != nil {
				r.invalid = err.Error()
				return r, nil
			}
			r.visible = false
			r.input.Blur()
			return r, func() tea.Msg { return RangeSubmitMsg{Hours: hours} }
		}
	}
	var cmd tea.Cmd
	r.input, cmd = r.input.Update(msg)
	return r, cmd
}

func (r RangeInput) View() string {
	if !r.visible {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(theme.Title.Render("Watch-time range") + "\n")
	sb.WriteString("hours: " + r.input.View() + "\n")
	if r.invalid != "" {
		sb.WriteString(theme.Failure.Render(r.invalid) + "\n")
	}
	sb.WriteString(hintStyle.Render("enter to apply, esc to cancel"))

	w := r.width
	if w < 20 {
		w = 48
	}
	return inputStyle.Width(w - 2).Render(sb.String())
}

// ParseHours accepts a non-negative decimal number of hours.
func ParseHours(raw string) (float64, error) {
	hours, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", strings.TrimSpace(raw))
	}
	if hours < 0 {
		return 0, fmt.Errorf("range must not be negative")
	}
	return hours, nil
}

package logging

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type consoleStyles struct {
	success lipgloss.Style
	err     lipgloss.Style
	warning lipgloss.Style
	debug   lipgloss.Style
	plain   lipgloss.Style
	rule    lipgloss.Style
	title   lipgloss.Style
	noColor bool
}

func newConsoleStyles(w io.Writer, noColor bool) consoleStyles {
	if noColor {
		plain := lipgloss.NewStyle()
		return consoleStyles{
			success: plain,
			err:     plain,
			warning: plain,
			debug:   plain,
			plain:   plain,
			rule:    plain,
			title:   plain,
			noColor: true,
		}
	}
	r := lipgloss.NewRenderer(w)
	return consoleStyles{
		success: r.NewStyle().Foreground(lipgloss.Color("2")),
		err:     r.NewStyle().Foreground(lipgloss.Color("1")),
		warning: r.NewStyle().Foreground(lipgloss.Color("3")),
		debug:   r.NewStyle().Foreground(lipgloss.Color("4")),
		plain:   r.NewStyle(),
		rule:    r.NewStyle().Faint(true),
		title:   r.NewStyle().Bold(true),
	}
}

func (s consoleStyles) forLevel(l Level) lipgloss.Style {
	switch l {
	case LevelSuccess:
		return s.success
	case LevelError:
		return s.err
	case LevelWarning:
		return s.warning
	case LevelDebug:
		return s.debug
	default:
		return s.plain
	}
}

// renderLines styles each line on its own; lipgloss pads multi-line blocks
// to a common width otherwise.
func renderLines(style lipgloss.Style, text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = style.Render(line)
	}
	return strings.Join(lines, "\n")
}

func (s consoleStyles) render(r Record, prefix string) string {
	text := prefix + r.Text()
	if m := r.Marker(); m != "" {
		text = m + " " + text
	}
	return renderLines(s.forLevel(r.Level), text) + "\n"
}

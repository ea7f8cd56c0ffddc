package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// SummaryRow is one line of a Summary table.
type SummaryRow struct {
	Label string
	Value int
	// Color is a lipgloss color ("2", "#ff0000"). Empty means unstyled.
	Color string
}

const summaryWidth = 50

// Summary prints a boxed table of counters to the console and writes the
// counters as fields of a single entry to the log file. The row whose label
// equals totalKey is preceded by a separator.
func (l *StructuredLogger) Summary(title string, rows []SummaryRow, totalKey string) {
	rule := strings.Repeat("=", summaryWidth)
	styles := l.out.styles

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(styles.rule.Render(rule) + "\n")
	b.WriteString(styles.title.Render(l.prefix+title) + "\n")
	b.WriteString(styles.rule.Render(rule) + "\n")

	fields := make(Fields, len(rows))
	for _, row := range rows {
		if totalKey != "" && row.Label == totalKey {
			b.WriteString("  " + styles.rule.Render(strings.Repeat("-", summaryWidth-6)) + "\n")
		}
		line := fmt.Sprintf("  %-9s: %3d", row.Label, row.Value)
		b.WriteString(styles.color(row.Color).Render(line) + "\n")
		fields[row.Label] = row.Value
	}
	b.WriteString(styles.rule.Render(rule) + "\n")

	r := NewRecord(LevelInfo, title, fields)

	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	if l.out.console != nil {
		_, _ = io.WriteString(l.out.console, b.String())
	}
	l.out.writeFile(r, l.prefix+title)
}

func (s consoleStyles) color(c string) lipgloss.Style {
	if c == "" || s.noColor {
		return s.plain
	}
	return s.plain.Foreground(lipgloss.Color(c))
}

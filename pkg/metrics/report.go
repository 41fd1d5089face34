package metrics

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	reportColorPrimary = lipgloss.Color("#7D56F4")
	reportColorSubtext = lipgloss.Color("#777777")
	reportColorGood    = lipgloss.Color("#43BF6D")
	reportColorBad     = lipgloss.Color("#FF5F5F")

	reportTitle = lipgloss.NewStyle().
			Background(reportColorPrimary).
			Foreground(lipgloss.Color("#FAFAFA")).
			Bold(true).
			Padding(0, 1)

	reportPanel = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(reportColorSubtext).
			Padding(0, 2)

	reportLabel = lipgloss.NewStyle().
			Foreground(reportColorSubtext).
			Width(16)

	reportGood = lipgloss.NewStyle().Foreground(reportColorGood)
	reportBad  = lipgloss.NewStyle().Foreground(reportColorBad)
)

// Report renders a styled end-of-run summary for stats, printed to
// stdout once the run has finished draining.
func Report(target string, stats Stats) string {
	row := func(label, value string) string {
		return reportLabel.Render(label) + value
	}

	lines := []string{
		reportTitle.Render(fmt.Sprintf(" flamethrower — %s ", target)),
		"",
		row("sent", fmt.Sprintf("%d", stats.Sent)),
		row("received", reportGood.Render(fmt.Sprintf("%d", stats.Received))),
		row("timeout", reportBad.Render(fmt.Sprintf("%d", stats.Timeout))),
		row("bad receive", reportBad.Render(fmt.Sprintf("%d", stats.BadReceive))),
		row("net error", reportBad.Render(fmt.Sprintf("%d", stats.NetError))),
		row("tcp conns", fmt.Sprintf("%d", stats.TCPConnection)),
		row("in flight", fmt.Sprintf("%d", stats.InFlight)),
		"",
		row("p50 latency", stats.P50.String()),
		row("p90 latency", stats.P90.String()),
		row("p99 latency", stats.P99.String()),
	}

	return reportPanel.Render(strings.Join(lines, "\n"))
}

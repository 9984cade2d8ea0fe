package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"MarketArchive/internal/recorder"
)

// Command names understood by the bot.
const (
	CommandStatus  = "/status"
	CommandCollect = "/collect"
)

func mark(ok bool) string {
	if ok {
		return "✅"
	}
	return "❌"
}

// FormatCycleAlert formats a failed or partially exhausted cycle.
func FormatCycleAlert(subject string, evt *recorder.CycleEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⚠️ <b>MarketArchive</b> | %s\n\n", html.EscapeString(subject))
	fmt.Fprintf(&b, "Run: <code>%s</code>\n", evt.RunID)
	fmt.Fprintf(&b, "Started: %s (%s)\n\n", evt.StartedAt.Format("2006-01-02 15:04"), evt.Duration.Round(time.Second))
	fmt.Fprintf(&b, "Market: %s\n", mark(evt.Market))
	fmt.Fprintf(&b, "Financial: %s\n", mark(evt.Financial))
	fmt.Fprintf(&b, "News: %s\n", mark(evt.News))
	if evt.Error != "" {
		fmt.Fprintf(&b, "\nError: %s\n", html.EscapeString(evt.Error))
	}
	return b.String()
}

// FormatStatus formats the last cycle and the next scheduled run.
func FormatStatus(evt *recorder.CycleEvent, next time.Time) string {
	var b strings.Builder
	b.WriteString("📦 <b>Collection status</b>\n\n")
	if evt == nil {
		b.WriteString("No cycle has completed yet.\n")
	} else {
		fmt.Fprintf(&b, "Last run: %s (%s)\n", evt.StartedAt.Format("2006-01-02 15:04"), evt.Duration.Round(time.Second))
		fmt.Fprintf(&b, "Market %s | Financial %s | News %s\n", mark(evt.Market), mark(evt.Financial), mark(evt.News))
		if len(evt.Sources) > 0 {
			fmt.Fprintf(&b, "Sources: %s\n", html.EscapeString(strings.Join(evt.Sources, ", ")))
		}
		if evt.Error != "" {
			fmt.Fprintf(&b, "Error: %s\n", html.EscapeString(evt.Error))
		}
	}
	if !next.IsZero() {
		fmt.Fprintf(&b, "Next run: %s\n", next.Format("2006-01-02 15:04"))
	}
	return b.String()
}

// FormatHelp lists the supported commands.
func FormatHelp() string {
	return "Available commands:\n• " + CommandStatus + " last collection result\n• " + CommandCollect + " run a collection cycle now"
}

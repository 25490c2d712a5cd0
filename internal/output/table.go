package output

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/wishmail/wishmail/internal/core"
	"github.com/wishmail/wishmail/internal/core/ratelimit"
)

const timestampLayout = "2006-01-02 15:04:05"

// wishPreviewLen truncates wish content in table views.
const wishPreviewLen = 40

// LimiterStats renders a rate limiter snapshot.
func LimiterStats(format Format, stats ratelimit.Stats) (string, error) {
	return render(format, stats, func() table.Writer {
		t := table.NewWriter()
		t.AppendHeader(table.Row{"Window", "Sent", "Limit", "Quota Left", "Resets In"})
		t.AppendRow(table.Row{"hour", stats.HourlySent, stats.HourlyLimit,
			quotaLeft(stats.HourlySent, stats.HourlyLimit), fmt.Sprintf("%dm", stats.HourRemaining)})
		t.AppendRow(table.Row{"day", stats.DailySent, stats.DailyLimit,
			quotaLeft(stats.DailySent, stats.DailyLimit), fmt.Sprintf("%dh", stats.DayRemaining)})
		t.AppendFooter(table.Row{
			"totals",
			"",
			fmt.Sprintf("%d sent", stats.TotalSent),
			fmt.Sprintf("%d blocked", stats.TotalBlocked),
			fmt.Sprintf("%d cooling", stats.ActiveCooldowns),
		})
		return t
	})
}

func quotaLeft(sent, limit int) int {
	if sent >= limit {
		return 0
	}
	return limit - sent
}

// Users renders the recipient list.
func Users(format Format, users []core.User) (string, error) {
	if users == nil {
		users = []core.User{}
	}
	return render(format, users, func() table.Writer {
		t := table.NewWriter()
		t.AppendHeader(table.Row{"ID", "Name", "Email", "Birthday", "Last Greeted"})
		for _, u := range users {
			t.AppendRow(table.Row{u.ID, u.Name, u.Email, u.DOB.Format(core.DateLayout), yearLabel(u.LastSentYear)})
		}
		t.AppendFooter(table.Row{"", "", "", "", fmt.Sprintf("%d users", len(users))})
		return t
	})
}

// UserStats renders the recipient summary.
func UserStats(format Format, stats core.UserStats) (string, error) {
	return render(format, stats, func() table.Writer {
		t := table.NewWriter()
		t.AppendHeader(table.Row{"Metric", "Count"})
		t.AppendRow(table.Row{"users", stats.Total})
		t.AppendRow(table.Row{"birthdays today", stats.BirthdaysToday})
		t.AppendRow(table.Row{"birthdays this month", stats.BirthdaysThisMonth})
		t.AppendRow(table.Row{"greeted this year", stats.GreetedThisYear})
		return t
	})
}

// Wishes renders the wish catalog.
func Wishes(format Format, wishes []core.Wish) (string, error) {
	if wishes == nil {
		wishes = []core.Wish{}
	}
	return render(format, wishes, func() table.Writer {
		t := table.NewWriter()
		t.AppendHeader(table.Row{"ID", "Category", "Active", "Content"})
		for _, w := range wishes {
			t.AppendRow(table.Row{w.ID, w.Category, yesNo(w.Active), text.Trim(w.Content, wishPreviewLen)})
		}
		return t
	})
}

// SendLogs renders delivery history with timestamps in loc.
func SendLogs(format Format, logs []core.SendLog, loc *time.Location) (string, error) {
	if logs == nil {
		logs = []core.SendLog{}
	}
	if loc == nil {
		loc = time.Local
	}
	return render(format, logs, func() table.Writer {
		t := table.NewWriter()
		t.AppendHeader(table.Row{"Sent At", "Name", "Email", "Status", "Error"})
		for _, l := range logs {
			t.AppendRow(table.Row{
				l.SentAt.In(loc).Format(timestampLayout),
				l.UserName,
				l.UserEmail,
				statusLabel(l.Status),
				l.ErrorMsg,
			})
		}
		return t
	})
}

// JobResult renders one run of the greeting job.
func JobResult(format Format, result core.JobResult) (string, error) {
	return render(format, result, func() table.Writer {
		t := table.NewWriter()
		t.AppendHeader(table.Row{"Date", "Candidates", "Sent", "Failed", "Throttled", "Duration"})
		t.AppendRow(table.Row{
			result.Date,
			result.Candidates,
			result.Sent,
			result.Failed,
			result.Throttled,
			result.Duration.Round(time.Millisecond).String(),
		})
		return t
	})
}

func statusLabel(status core.SendStatus) string {
	switch status {
	case core.SendStatusSuccess:
		return "✓ success"
	case core.SendStatusThrottled:
		return "⏸ throttled"
	case core.SendStatusFailed:
		return "✗ failed"
	default:
		return string(status)
	}
}

func yearLabel(year int) string {
	if year == 0 {
		return "never"
	}
	return strconv.Itoa(year)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

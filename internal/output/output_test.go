package output

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wishmail/wishmail/internal/core"
	"github.com/wishmail/wishmail/internal/core/ratelimit"
)

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("table")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	format, err = ParseFormat("JSON")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, format)

	format, err = ParseFormat("md")
	require.NoError(t, err)
	require.Equal(t, FormatMarkdown, format)

	format, err = ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	_, err = ParseFormat("csv")
	require.Error(t, err)
}

func TestLimiterStatsFormats(t *testing.T) {
	stats := ratelimit.Stats{
		HourlySent:      48,
		HourlyLimit:     50,
		HourRemaining:   50,
		DailySent:       48,
		DailyLimit:      200,
		DayRemaining:    14,
		TotalSent:       120,
		TotalBlocked:    4,
		ActiveCooldowns: 2,
	}

	rendered, err := LimiterStats(FormatJSON, stats)
	require.NoError(t, err)
	var decoded ratelimit.Stats
	require.NoError(t, json.Unmarshal([]byte(rendered), &decoded))
	require.Equal(t, stats, decoded)
	require.Contains(t, rendered, `"hour_remaining": 50`)

	rendered, err = LimiterStats(FormatTable, stats)
	require.NoError(t, err)
	require.Contains(t, rendered, "WINDOW")
	require.Contains(t, rendered, "QUOTA LEFT")
	require.Contains(t, rendered, "RESETS IN")
	require.Regexp(t, `hour\s+│\s+48\s+│\s+50\s+│\s+2\s+│\s+50m`, rendered)
	require.Regexp(t, `day\s+│\s+48\s+│\s+200\s+│\s+152\s+│\s+14h`, rendered)
	require.Contains(t, rendered, "4 BLOCKED")

	rendered, err = LimiterStats(FormatMarkdown, stats)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(strings.TrimSpace(rendered), "|"))
}

func TestQuotaLeftNeverNegative(t *testing.T) {
	require.Equal(t, 2, quotaLeft(48, 50))
	require.Equal(t, 0, quotaLeft(50, 50))
	require.Equal(t, 0, quotaLeft(53, 50))
}

func TestUsersTable(t *testing.T) {
	users := []core.User{
		{ID: 1, Name: "Alice", Email: "alice@example.com", DOB: time.Date(1990, 3, 14, 0, 0, 0, 0, time.UTC)},
		{ID: 2, Name: "Bob", Email: "bob@example.com", DOB: time.Date(1985, 7, 1, 0, 0, 0, 0, time.UTC), LastSentYear: 2026},
	}

	rendered, err := Users(FormatTable, users)
	require.NoError(t, err)
	require.Contains(t, rendered, "1990-03-14")
	require.Contains(t, rendered, "never")
	require.Contains(t, rendered, "2026")
	require.Contains(t, rendered, "2 USERS")
}

func TestEmptyListsRenderAsJSONArrays(t *testing.T) {
	rendered, err := Users(FormatJSON, nil)
	require.NoError(t, err)
	require.Equal(t, "[]", rendered)

	rendered, err = Wishes(FormatJSON, nil)
	require.NoError(t, err)
	require.Equal(t, "[]", rendered)

	rendered, err = SendLogs(FormatJSON, nil, time.UTC)
	require.NoError(t, err)
	require.Equal(t, "[]", rendered)
}

func TestSendLogsUseLocation(t *testing.T) {
	shanghai := time.FixedZone("CST", 8*3600)
	logs := []core.SendLog{{
		UserName:  "Alice",
		UserEmail: "alice@example.com",
		SentAt:    time.Date(2026, 3, 14, 1, 0, 0, 0, time.UTC),
		Status:    core.SendStatusThrottled,
		ErrorMsg:  "hourly limit reached (50/50)",
	}}

	rendered, err := SendLogs(FormatTable, logs, shanghai)
	require.NoError(t, err)
	require.Contains(t, rendered, "2026-03-14 09:00:00")
	require.Contains(t, rendered, "throttled")
	require.Contains(t, rendered, "hourly limit reached")
}

func TestWishesTruncatesContent(t *testing.T) {
	long := strings.Repeat("x", 60)
	rendered, err := Wishes(FormatTable, []core.Wish{{ID: 7, Content: long, Category: "general", Active: true}})
	require.NoError(t, err)
	require.NotContains(t, rendered, long)
	require.Contains(t, rendered, strings.Repeat("x", wishPreviewLen))
}

func TestJobResultTable(t *testing.T) {
	rendered, err := JobResult(FormatTable, core.JobResult{
		Date:       "2026-03-14",
		Candidates: 3,
		Sent:       2,
		Throttled:  1,
		Duration:   1500 * time.Millisecond,
	})
	require.NoError(t, err)
	require.Contains(t, rendered, "2026-03-14")
	require.Contains(t, rendered, "1.5s")
}

package analytics

import (
	"encoding/json"
	"fmt"
	"time"

	"adventure-bot/internal/storage"
)

// DailyStats aggregates one day of adventure activity.
type DailyStats struct {
	Date           string                  `json:"date"`
	TotalTurns     int                     `json:"total_turns"`
	FailedTurns    int                     `json:"failed_turns"`
	UniqueSessions int                     `json:"unique_sessions"`
	TotalTokens    int                     `json:"total_tokens"`
	BySource       map[string]int          `json:"by_source"`
	SessionStats   map[string]SessionStats `json:"session_stats"`
}

// SessionStats aggregates the turns of a single session.
type SessionStats struct {
	SessionID   string `json:"session_id"`
	Source      string `json:"source"`
	Turns       int    `json:"turns"`
	FailedTurns int    `json:"failed_turns"`
	TotalTokens int    `json:"total_tokens"`
}

// AnalyzeDailyLogs filters events down to the target day and aggregates
// them per source and per session.
func AnalyzeDailyLogs(events []storage.Event, targetDate time.Time) *DailyStats {
	startOfDay := time.Date(targetDate.Year(), targetDate.Month(), targetDate.Day(), 0, 0, 0, 0, targetDate.Location())
	endOfDay := startOfDay.Add(24 * time.Hour)

	stats := &DailyStats{
		Date:         startOfDay.Format("2006-01-02"),
		BySource:     make(map[string]int),
		SessionStats: make(map[string]SessionStats),
	}

	uniqueSessions := make(map[string]bool)

	for _, event := range events {
		if event.Timestamp.Before(startOfDay) || !event.Timestamp.Before(endOfDay) {
			continue
		}

		// Only count real turns (entries without a user message are
		// service records).
		if event.UserMessage == "" {
			continue
		}

		stats.TotalTurns++
		if event.Failed {
			stats.FailedTurns++
		}
		stats.TotalTokens += event.TotalTokens
		stats.BySource[event.Source]++
		uniqueSessions[event.SessionID] = true

		sessionStat, exists := stats.SessionStats[event.SessionID]
		if !exists {
			sessionStat = SessionStats{SessionID: event.SessionID, Source: event.Source}
		}
		sessionStat.Turns++
		if event.Failed {
			sessionStat.FailedTurns++
		}
		sessionStat.TotalTokens += event.TotalTokens
		stats.SessionStats[event.SessionID] = sessionStat
	}

	stats.UniqueSessions = len(uniqueSessions)
	return stats
}

// GenerateReportSummary renders the daily report text.
func (ds *DailyStats) GenerateReportSummary() string {
	summary := fmt.Sprintf(`Adventure Bot activity for %s:

Overall:
- Turns: %d (failed: %d)
- Unique sessions: %d
- Tokens spent: %d

`, ds.Date, ds.TotalTurns, ds.FailedTurns, ds.UniqueSessions, ds.TotalTokens)

	if len(ds.BySource) > 0 {
		summary += "Turns by source:\n"
		for source, count := range ds.BySource {
			summary += fmt.Sprintf("- %s: %d\n", source, count)
		}
		summary += "\n"
	}

	summary += fmt.Sprintf("Session activity (%d sessions):\n", len(ds.SessionStats))
	for sessionID, sessionStat := range ds.SessionStats {
		summary += fmt.Sprintf("- Session %s: %d turns", sessionID, sessionStat.Turns)
		if sessionStat.FailedTurns > 0 {
			summary += fmt.Sprintf(", %d failed", sessionStat.FailedTurns)
		}
		summary += "\n"
	}

	return summary
}

// ToJSON serializes the stats for detailed inspection.
func (ds *DailyStats) ToJSON() (string, error) {
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

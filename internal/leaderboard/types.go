package leaderboard

import (
	"fmt"
	"path"
	"time"
)

const weekLayout = "2006-01-02"

// Index is the entry document naming the most recently computed week.
type Index struct {
	LatestWeek  string `json:"latest_week"`
	GeneratedAt string `json:"generated_at"`
}

// HasData reports whether the aggregation job has produced any week yet.
func (i Index) HasData() bool {
	return i.LatestWeek != ""
}

// WeeklyRow is one player's standing for a week.
type WeeklyRow struct {
	RankOverall   WholeNumber `json:"rank_overall"`
	DisplayName   string      `json:"display_name"`
	Division      WholeNumber `json:"division"`
	WeeklySeconds float64     `json:"weekly_seconds"`
}

// DailyRow is one player's result for a single puzzle day.
type DailyRow struct {
	PuzzleDate     string      `json:"puzzle_date"`
	RankOverallDay WholeNumber `json:"rank_overall_day"`
	DisplayName    string      `json:"display_name"`
	TotalSeconds   float64     `json:"total_seconds"`
}

// Week groups the two per-week documents.
type Week struct {
	Name   string
	Weekly []WeeklyRow
	Daily  []DailyRow
}

// Board is everything a page needs: the index plus the selected week, if any.
type Board struct {
	Index Index
	Week  *Week
}

// ParseWeek validates a week key (the ISO date the week starts on).
func ParseWeek(raw string) (string, error) {
	t, err := time.Parse(weekLayout, raw)
	if err != nil {
		return "", fmt.Errorf("invalid week %q: %w", raw, err)
	}
	return t.Format(weekLayout), nil
}

// IndexPath is the index document location relative to the data root.
func IndexPath() string {
	return "index.json"
}

// WeeklyPath is the weekly document location for week.
func WeeklyPath(week string) string {
	return path.Join("weeks", week, "weekly.json")
}

// DailyPath is the daily document location for week.
func DailyPath(week string) string {
	return path.Join("weeks", week, "daily.json")
}

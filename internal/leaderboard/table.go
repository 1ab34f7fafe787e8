package leaderboard

import (
	"fmt"
	"sort"
)

// Meta line texts.
const (
	NoDataMessage    = "No data yet — once the ingest job runs, this will populate."
	LoadErrorMessage = "Error loading data. Check the server logs."
)

// WeeklyView is a display-ready weekly standings row.
type WeeklyView struct {
	Rank     int    `json:"rank"`
	Player   string `json:"player"`
	Division string `json:"division"`
	Time     string `json:"time"`
}

// DailyView is a display-ready daily winner row.
type DailyView struct {
	Date   string `json:"date"`
	Winner string `json:"winner"`
	Time   string `json:"time"`
}

// SortWeekly returns a copy of rows ordered by overall rank. Ties keep their
// document order.
func SortWeekly(rows []WeeklyRow) []WeeklyRow {
	out := make([]WeeklyRow, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RankOverall < out[j].RankOverall
	})
	return out
}

// DailyWinners picks the overall rank 1 row of every puzzle day, ordered by
// date. When a day lists more than one rank 1 row the last one wins.
func DailyWinners(rows []DailyRow) []DailyRow {
	byDay := make(map[string]DailyRow)
	for _, r := range rows {
		if r.RankOverallDay != 1 {
			continue
		}
		byDay[r.PuzzleDate] = r
	}
	days := make([]string, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Strings(days)
	out := make([]DailyRow, 0, len(days))
	for _, d := range days {
		out = append(out, byDay[d])
	}
	return out
}

// WeeklyTable projects weekly rows into table rows.
func WeeklyTable(rows []WeeklyRow) []WeeklyView {
	sorted := SortWeekly(rows)
	out := make([]WeeklyView, 0, len(sorted))
	for _, r := range sorted {
		out = append(out, WeeklyView{
			Rank:     int(r.RankOverall),
			Player:   r.DisplayName,
			Division: DivisionBadge(int(r.Division)),
			Time:     FormatSeconds(r.WeeklySeconds),
		})
	}
	return out
}

// DailyTable projects the daily document into one winner row per day.
func DailyTable(rows []DailyRow) []DailyView {
	winners := DailyWinners(rows)
	out := make([]DailyView, 0, len(winners))
	for _, r := range winners {
		out = append(out, DailyView{
			Date:   r.PuzzleDate,
			Winner: r.DisplayName,
			Time:   FormatSeconds(r.TotalSeconds),
		})
	}
	return out
}

// DivisionBadge labels a division number, 1 being the top division.
func DivisionBadge(division int) string {
	return fmt.Sprintf("D%d", division)
}

// Meta builds the status line shown above the tables.
func Meta(b Board) string {
	if b.Week == nil {
		return NoDataMessage
	}
	if b.Week.Name == b.Index.LatestWeek {
		return fmt.Sprintf("Latest week: %s • Generated: %s", b.Week.Name, b.Index.GeneratedAt)
	}
	return fmt.Sprintf("Week: %s • Generated: %s", b.Week.Name, b.Index.GeneratedAt)
}

// NotFoundMessage is the status line for a week that has no documents.
func NotFoundMessage(week string) string {
	return fmt.Sprintf("No leaderboard for week %s.", week)
}

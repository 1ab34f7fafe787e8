// Package leaderboard holds the document types published by the league
// aggregation job and the pure projections used to display them: weekly
// standings ordered by overall rank, one winner per puzzle day, and the
// seconds formatting shared by both tables.
package leaderboard

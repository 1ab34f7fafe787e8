package leaderboard

import (
	"fmt"
	"math"
)

// MissingValue is shown in place of times that cannot be formatted.
const MissingValue = "—"

// FormatSeconds renders a duration in seconds as "m:ss", or "Ns" under a
// minute. Fractions round half up before splitting into minutes.
func FormatSeconds(s float64) string {
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return MissingValue
	}
	n := int64(math.Floor(s + 0.5))
	m := n / 60
	r := n % 60
	if m > 0 {
		return fmt.Sprintf("%d:%02d", m, r)
	}
	return fmt.Sprintf("%ds", r)
}

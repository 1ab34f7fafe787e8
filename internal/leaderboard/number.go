package leaderboard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// WholeNumber is an integer field that also accepts integer-valued floats
// such as 1.0, which some JSON writers emit for numeric columns.
type WholeNumber int

// UnmarshalJSON accepts 3, 3.0 and 3e0. Null leaves the value at zero.
func (n *WholeNumber) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("whole number: %w", err)
	}
	if math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
		return fmt.Errorf("whole number: %s has a fractional part", data)
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return fmt.Errorf("whole number: %s out of range", data)
	}
	*n = WholeNumber(f)
	return nil
}

package state

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// WriteAttemptsCSV streams the attempt history of the given units as one
// CSV table for audit tooling.
func WriteAttemptsCSV(w io.Writer, units ...*Unit) error {
	cw := csv.NewWriter(w)
	header := []string{
		"unit", "attempt", "timestamp", "stage", "status",
		"text_coverage", "structure_score", "visual_score", "issues",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, u := range units {
		for i, a := range u.Attempts {
			row := []string{
				u.Key.String(),
				strconv.Itoa(i + 1),
				a.Timestamp.UTC().Format(time.RFC3339),
				a.Stage,
				string(a.Status),
				formatScore(a.Scores.TextCoverage),
				formatScore(a.Scores.StructureScore),
				formatScore(a.Scores.VisualScore),
				strings.Join(a.Issues, "; "),
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("write csv row for %s: %w", u.Key, err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatScore(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

// Command inspect reads a galley state directory and reports per-unit
// validation standing. It works on the files directly; no server needs
// to be running.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/fatih/color"

	"galley/internal/state"
)

var statusColors = map[state.Status]*color.Color{
	state.StatusNew:     color.New(color.FgCyan),
	state.StatusPassed:  color.New(color.FgGreen),
	state.StatusFailed:  color.New(color.FgYellow),
	state.StatusBlocked: color.New(color.FgRed),
}

func main() {
	stateDir := flag.String("state", "./state", "Path to the unit state directory")
	unitFilter := flag.String("unit", "", "Only show the unit with this ID (e.g. ch04 or ch04.p057)")
	asJSON := flag.Bool("json", false, "Dump raw unit state as JSON")
	asCSV := flag.Bool("csv", false, "Write the attempt history as CSV to stdout")
	noColor := flag.Bool("no-color", false, "Disable colored output")
	flag.Parse()

	if *noColor {
		color.NoColor = true
	}

	store, err := state.NewStore(*stateDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	units, err := store.List()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if *unitFilter != "" {
		kept := units[:0]
		for _, u := range units {
			if u.Key.String() == *unitFilter {
				kept = append(kept, u)
			}
		}
		units = kept
		if len(units) == 0 {
			fmt.Fprintf(os.Stderr, "error: no state for unit %q\n", *unitFilter)
			os.Exit(1)
		}
	}

	switch {
	case *asJSON:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(units); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	case *asCSV:
		if err := state.WriteAttemptsCSV(os.Stdout, units...); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	default:
		printTable(units)
	}
}

func printTable(units []*state.Unit) {
	if len(units) == 0 {
		fmt.Println("no units recorded")
		return
	}

	fmt.Printf("%-24s %-8s %-8s %-9s %-9s %s\n", "UNIT", "STATUS", "RETRIES", "ATTEMPTS", "COVERAGE", "LAST UPDATE")
	counts := map[state.Status]int{}
	for _, u := range units {
		counts[u.Status]++
		status := string(u.Status)
		if c, ok := statusColors[u.Status]; ok {
			status = c.Sprint(status)
		}
		coverage := "-"
		if u.Scores.TextCoverage != nil {
			coverage = fmt.Sprintf("%.1f%%", *u.Scores.TextCoverage)
		}
		fmt.Printf("%-24s %-8s %d/%-6d %-9d %-9s %s\n",
			u.Key.String(),
			status,
			u.RetryCount, u.MaxRetries,
			len(u.Attempts),
			coverage,
			u.UpdatedAt.Local().Format("2006-01-02 15:04:05"),
		)
		if u.Status == state.StatusBlocked && u.BlockedReason != "" {
			fmt.Printf("%-24s   %s\n", "", statusColors[state.StatusBlocked].Sprint(u.BlockedReason))
		}
	}

	fmt.Printf("\n%d units: %d passed, %d failed, %d blocked, %d new\n",
		len(units),
		counts[state.StatusPassed],
		counts[state.StatusFailed],
		counts[state.StatusBlocked],
		counts[state.StatusNew],
	)
}

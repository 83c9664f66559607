package cli

import (
	"fmt"
	"io"
	"strings"

	"ccload/internal/stats"
	"ccload/internal/tui/styles"
)

const (
	leaderWidth = 44
	ruleWidth   = 80
)

func leader(label string) string {
	return styles.Text.Render(label + strings.Repeat(".", max(leaderWidth-len(label), 1)) + ":")
}

func triple(a, b, c float64) string {
	return styles.Value.Render(fmt.Sprintf("%.2f, %.2f, %.2f", a, b, c))
}

// Display prints the report of one target.
func Display(w io.Writer, target string, s stats.Statistics) {
	fmt.Fprintf(w, "%s\n", styles.Title.Render("Results for "+target+":"))

	fmt.Fprintf(w, " %s %s\n", leader("Total Requests (2XX)"), styles.Value.Render(fmt.Sprint(s.SuccessfulRequests)))

	failed := styles.Value
	if s.FailedRequests > 0 {
		failed = styles.Error
	}
	fmt.Fprintf(w, " %s %s\n", leader("Failed Requests (5XX)"), failed.Render(fmt.Sprint(s.FailedRequests)))
	if s.OtherRequests > 0 {
		fmt.Fprintf(w, " %s %s\n", leader("Other Requests (non 2XX/5XX)"), styles.Warn.Render(fmt.Sprint(s.OtherRequests)))
	}
	fmt.Fprintf(w, " %s %s\n\n", leader("Requests/second"), styles.Value.Render(fmt.Sprintf("%.2f", s.RequestsPerSecond)))

	fmt.Fprintf(w, "%s %s\n", leader("Total Request Time (s) (Min, Max, Mean)"),
		triple(s.RequestTimeMin, s.RequestTimeMax, s.RequestTimeMean))
	fmt.Fprintf(w, "%s %s\n", leader("Time to First Byte (s) (Min, Max, Mean)"),
		triple(s.TTFBMin, s.TTFBMax, s.TTFBMean))
	fmt.Fprintf(w, "%s %s\n", leader("Time to Last Byte (s) (Min, Max, Mean)"),
		triple(s.TTLBMin, s.TTLBMax, s.TTLBMean))
	if s.RequestTimeP50 > 0 {
		fmt.Fprintf(w, "%s %s\n", leader("Request Time Percentiles (s) (P50, P90, P99)"),
			triple(s.RequestTimeP50, s.RequestTimeP90, s.RequestTimeP99))
	}

	fmt.Fprintln(w, styles.Subtle.Render(strings.Repeat("-", ruleWidth)))
}

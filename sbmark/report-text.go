package sbmark

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

var bannerColor = color.New(color.FgCyan, color.Bold)

// PrintBanner prints a section separator like
// --- BENCHMARK ------------------------------------------
func PrintBanner(w io.Writer, title string) {
	line := "--- " + title + " "
	if pad := 80 - len(line); pad > 0 {
		line += strings.Repeat("-", pad)
	}
	bannerColor.Fprintf(w, "\n%s\n\n", line)
}

// WriteText writes one line per operation kind.
func WriteText(w io.Writer, s Summary) error {
	for _, op := range []struct {
		name string
		sum  OpSummary
	}{{"PUT", s.Put}, {"GET", s.Get}} {
		_, err := fmt.Fprintf(w, "%s stats: count=%d, total_time=%dms, avg_time=%dms, total_size=%d MB\n",
			op.name, op.sum.Count, op.sum.TotalTimeMs, op.sum.AvgTimeMs, op.sum.TotalSizeMB)
		if err != nil {
			return err
		}
	}
	return nil
}

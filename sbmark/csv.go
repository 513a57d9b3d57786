package sbmark

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

var csvHeader = []string{
	"run_id", "client_env", "endpoint", "bucket", "operation",
	"count", "total_time_ms", "avg_time_ms", "min_time_ms", "max_time_ms",
	"total_size_bytes", "total_size_mb", "throughput_mbps",
}

func ToCsv(report Report) ([]byte, error) {
	// one record per operation kind
	csvRecords := [][]string{csvHeader}
	for _, op := range []struct {
		name string
		sum  OpSummary
	}{{"PUT", report.Summary.Put}, {"GET", report.Summary.Get}} {
		csvRecords = append(csvRecords, []string{
			report.RunID,
			report.ClientEnv,
			report.Endpoint,
			report.Bucket,
			op.name,
			fmt.Sprintf("%d", op.sum.Count),
			fmt.Sprintf("%d", op.sum.TotalTimeMs),
			fmt.Sprintf("%d", op.sum.AvgTimeMs),
			fmt.Sprintf("%.1f", op.sum.MinTimeMs),
			fmt.Sprintf("%.1f", op.sum.MaxTimeMs),
			fmt.Sprintf("%d", op.sum.TotalSizeBytes),
			fmt.Sprintf("%d", op.sum.TotalSizeMB),
			fmt.Sprintf("%.3f", op.sum.ThroughputMBps()),
		})
	}

	b := &bytes.Buffer{}
	w := csv.NewWriter(b)
	if err := w.WriteAll(csvRecords); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

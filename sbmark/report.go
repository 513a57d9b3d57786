package sbmark

import (
	"time"

	"github.com/montanaflynn/stats"
	uuid "github.com/satori/go.uuid"
)

type Report struct {
	RunID       string  `json:"run_id"`
	Description string  `json:"description"`
	Endpoint    string  `json:"endpoint"`
	Bucket      string  `json:"bucket"`
	Prefix      string  `json:"prefix"`
	ClientEnv   string  `json:"client_env"` // Description of the environment from which the benchmark has been executed.
	DateTimeUTC string  `json:"datetime_utc"`
	Interrupted bool    `json:"interrupted"`
	Summary     Summary `json:"summary"`
}

// Summary is derived from a stats collection and never modified.
type Summary struct {
	Put OpSummary `json:"put"`
	Get OpSummary `json:"get"`
}

type OpSummary struct {
	Count          int64   `json:"count"`
	TotalTimeMs    int64   `json:"total_time_ms"`
	AvgTimeMs      int64   `json:"avg_time_ms"`
	MinTimeMs      float64 `json:"min_time_ms"`
	MaxTimeMs      float64 `json:"max_time_ms"`
	TotalSizeBytes int64   `json:"total_size_bytes"`
	TotalSizeMB    int64   `json:"total_size_mb"`
}

func NewReport(description string) Report {
	return Report{
		RunID:       uuid.NewV4().String(),
		Description: description,
		DateTimeUTC: time.Now().UTC().String(),
	}
}

// Summarize partitions the stats by kind and aggregates each partition.
// It only reads its input.
func Summarize(all []Stat) Summary {
	var puts, gets []Stat
	for _, s := range all {
		switch s.Kind {
		case OpPut:
			puts = append(puts, s)
		case OpGet:
			gets = append(gets, s)
		}
	}
	return Summary{
		Put: summarizeOp(puts),
		Get: summarizeOp(gets),
	}
}

func summarizeOp(part []Stat) OpSummary {
	var (
		sum     OpSummary
		elapsed = make(stats.Float64Data, 0, len(part))
	)
	for _, s := range part {
		sum.Count++
		sum.TotalTimeMs += s.Elapsed().Milliseconds()
		sum.TotalSizeBytes += s.Size
		elapsed = append(elapsed, float64(s.Elapsed())/float64(time.Millisecond))
	}
	// an all-PUT or all-GET run leaves one partition empty
	if sum.Count == 0 {
		return sum
	}
	sum.AvgTimeMs = sum.TotalTimeMs / sum.Count
	sum.TotalSizeMB = sum.TotalSizeBytes / (1024 * 1024)
	sum.MinTimeMs, _ = stats.Min(elapsed)
	sum.MaxTimeMs, _ = stats.Max(elapsed)
	return sum
}

// throughput in MB/s over the accumulated operation time of one kind
func (s *OpSummary) ThroughputMBps() float64 {
	if s.TotalTimeMs == 0 {
		return 0
	}
	return float64(s.TotalSizeBytes) / 1024 / 1024 / (float64(s.TotalTimeMs) / 1000)
}

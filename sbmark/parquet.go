package sbmark

import (
	"fmt"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/writer"
)

// statRow is the parquet schema of a raw stat.
type statRow struct {
	RunID     string `parquet:"name=run_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Op        string `parquet:"name=op, type=BYTE_ARRAY, convertedtype=UTF8"`
	Worker    int32  `parquet:"name=worker, type=INT32"`
	Key       string `parquet:"name=key, type=BYTE_ARRAY, convertedtype=UTF8"`
	StartUs   int64  `parquet:"name=start_ts, type=INT64, convertedtype=TIMESTAMP_MICROS"`
	ElapsedUs int64  `parquet:"name=elapsed_us, type=INT64"`
	Bytes     int64  `parquet:"name=bytes, type=INT64"`
}

// WriteParquet dumps every stat of a run to a parquet file.
func WriteParquet(path string, runID string, all []Stat) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("failed to create parquet file: %w", err)
	}
	pw, err := writer.NewParquetWriter(fw, new(statRow), 4)
	if err != nil {
		fw.Close()
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}
	for _, s := range all {
		row := statRow{
			RunID:     runID,
			Op:        s.Kind.String(),
			Worker:    int32(s.Worker),
			Key:       s.Key,
			StartUs:   s.Start.UnixMicro(),
			ElapsedUs: s.Elapsed().Microseconds(),
			Bytes:     s.Size,
		}
		if err := pw.Write(row); err != nil {
			fw.Close()
			return fmt.Errorf("failed to write stat: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return fmt.Errorf("failed to stop parquet writer: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("failed to close parquet file: %w", err)
	}
	return nil
}

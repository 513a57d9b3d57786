package sbmark

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/lumafield/s3-loadgen/obmark"
)

// formats bytes to KB or MB
func ByteFormat(bytes float64) string {
	if bytes >= 1024*1024 {
		return fmt.Sprintf("%.f MB", bytes/1024/1024)
	}
	return fmt.Sprintf("%.f KB", bytes/1024)
}

// worker holds what PUT and GET workers share. Everything but the stats
// sink, the metrics and the limiter is private to the worker's goroutine.
type worker struct {
	id      int
	cfg     *Config
	client  obmark.ObjectClient
	stats   StatsSink
	sink    ErrorSink
	metrics *Metrics
	ticker  Ticker
	limiter *rate.Limiter
	log     logrus.FieldLogger
	now     func() time.Time
	sleep   Sleeper
}

func (w *worker) wait(ctx context.Context) error {
	if w.limiter == nil {
		return nil
	}
	return w.limiter.Wait(ctx)
}

func (w *worker) record(s Stat) {
	w.stats.Append(s)
	w.metrics.observe(s)
	_ = w.ticker.Add(1)
	if w.cfg.Verbose {
		w.log.WithFields(logrus.Fields{
			"worker": w.id,
			"size":   ByteFormat(float64(s.Size)),
		}).Infof("%s key %s takes %dms",
			strings.ToLower(s.Kind.String()), s.Key, s.Elapsed().Milliseconds())
	}
}

// fail reports err unless it is the consequence of the run being stopped.
func (w *worker) fail(ctx context.Context, op OpKind, phase string, key string, err error) {
	if ctx.Err() != nil {
		return
	}
	w.sink.Report(ErrorEvent{
		Op:     op,
		Phase:  phase,
		Worker: w.id,
		Key:    key,
		Kind:   kindOf(err),
		Err:    err,
	})
}

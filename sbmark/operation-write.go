package sbmark

import (
	"context"
	"strconv"
)

type putWorker struct {
	worker
	payload PayloadSource
	count   int
}

// putKey derives the object key from the payload size. Equal sizes overwrite each other.
func putKey(prefix string, size int) string {
	name := "put_" + strconv.Itoa(size)
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// run executes count sequential PUTs. Failed iterations are reported and
// skipped, they are not retried.
func (w *putWorker) run(ctx context.Context) error {
	w.metrics.workerStarted(OpPut)
	defer w.metrics.workerDone(OpPut)

	for i := 0; i < w.count; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		body := w.payload.Generate()
		key := putKey(w.cfg.Prefix, len(body))

		if err := w.wait(ctx); err != nil {
			return err
		}
		start := w.now()
		if err := w.client.Put(ctx, w.cfg.Bucket, key, body); err != nil {
			w.fail(ctx, OpPut, "put", key, err)
			// the bar counts PUT attempts so it still reaches its total
			_ = w.ticker.Add(1)
			continue
		}
		w.record(Stat{
			Kind:   OpPut,
			Start:  start,
			End:    w.now(),
			Size:   int64(len(body)),
			Key:    key,
			Worker: w.id,
		})
	}
	return nil
}

package sbmark

import (
	"context"
	"fmt"
	"io"
)

type getWorker struct {
	worker
	sampler *KeySampler
	count   int
}

// run loops Sampling -> Reading -> (Recorded | Retry-Sampling) until count
// reads have been recorded. Only a recorded read advances the progress.
func (w *getWorker) run(ctx context.Context) error {
	w.metrics.workerStarted(OpGet)
	defer w.metrics.workerDone(OpGet)

	for done := 0; done < w.count; {
		if err := ctx.Err(); err != nil {
			return err
		}
		// one token covers the listing and the read that follows it
		if err := w.wait(ctx); err != nil {
			return err
		}
		key, err := w.sampler.Sample(ctx, w.cfg.Bucket, w.cfg.Prefix)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.fail(ctx, OpGet, "list", w.cfg.Prefix, err)
			w.log.WithField("worker", w.id).Warnf("giving up after %d of %d reads", done, w.count)
			return nil
		}
		if w.read(ctx, key) {
			done++
		}
	}
	return nil
}

func (w *getWorker) read(ctx context.Context, key string) bool {
	start := w.now()
	body, err := w.client.Get(ctx, w.cfg.Bucket, key)
	if err != nil {
		w.fail(ctx, OpGet, "get", key, err)
		return false
	}
	if body == nil {
		w.fail(ctx, OpGet, "get", key, ErrMissingBody)
		return false
	}
	data, err := io.ReadAll(body)
	body.Close()
	if err != nil {
		w.fail(ctx, OpGet, "get", key, fmt.Errorf("read body of %s: %w", key, err))
		return false
	}
	w.record(Stat{
		Kind:   OpGet,
		Start:  start,
		End:    w.now(),
		Size:   int64(len(data)),
		Key:    key,
		Worker: w.id,
	})
	return true
}

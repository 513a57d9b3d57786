package sbmark

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumafield/s3-loadgen/obmark"
)

func TestPutKey(t *testing.T) {
	assert.Equal(t, "put_1024", putKey("", 1024))
	assert.Equal(t, "load/put_2048", putKey("load", 2048))
}

func TestPutWorkerRecordsEveryIteration(t *testing.T) {
	cfg := testConfig()
	client := newFakeClient()
	stats := NewStatsCollection(0)
	w := &putWorker{
		worker:  newTestWorker(&cfg, client, stats, &recordingSink{}, (&fakeSleeper{}).Sleep),
		payload: fixedPayload(4096),
		count:   3,
	}

	require.NoError(t, w.run(context.Background()))
	require.Equal(t, 3, stats.Len())
	for _, s := range stats.Stats() {
		assert.Equal(t, OpPut, s.Kind)
		assert.EqualValues(t, 4096, s.Size)
		assert.Equal(t, "load/put_4096", s.Key)
		assert.Equal(t, time.Millisecond, s.Elapsed())
	}
	assert.Len(t, client.objects["load/put_4096"], 4096)
}

func TestPutWorkerSkipsFailedIteration(t *testing.T) {
	cfg := testConfig()
	client := newFakeClient()
	client.onPut = func(call int, _ string) error {
		if call == 2 {
			return &obmark.TransportError{Op: "put", Err: errors.New("connection reset by peer")}
		}
		return nil
	}
	sink := &recordingSink{}
	stats := NewStatsCollection(0)
	w := &putWorker{
		worker:  newTestWorker(&cfg, client, stats, sink, (&fakeSleeper{}).Sleep),
		payload: fixedPayload(1024),
		count:   3,
	}

	ticker := &countingTicker{}
	w.ticker = ticker

	require.NoError(t, w.run(context.Background()))
	assert.Equal(t, 2, stats.Len())
	assert.Equal(t, 3, client.putCalls, "failed iterations are not retried")
	assert.Equal(t, 3, ticker.total(), "the bar still reaches the attempted count")
	require.Len(t, sink.events, 1)
	assert.Equal(t, KindTransport, sink.events[0].Kind)
	assert.Equal(t, "put", sink.events[0].Phase)
	assert.Equal(t, "load/put_1024", sink.events[0].Key)
}

func TestPutWorkerStopsOnCancel(t *testing.T) {
	cfg := testConfig()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stats := NewStatsCollection(0)
	w := &putWorker{
		worker:  newTestWorker(&cfg, newFakeClient(), stats, &recordingSink{}, (&fakeSleeper{}).Sleep),
		payload: fixedPayload(1024),
		count:   3,
	}
	require.ErrorIs(t, w.run(ctx), context.Canceled)
	assert.Zero(t, stats.Len())
}

func newTestGetWorker(cfg *Config, client *fakeClient, stats StatsSink, sink ErrorSink, sleeper *fakeSleeper, count int) *getWorker {
	return &getWorker{
		worker:  newTestWorker(cfg, client, stats, sink, sleeper.Sleep),
		sampler: newTestSampler(client, cfg.Retry, sleeper.Sleep, sink),
		count:   count,
	}
}

func TestGetWorkerWaitsForPopulatedBucket(t *testing.T) {
	cfg := testConfig()
	client := newFakeClient("load/put_2048")
	client.onList = emptyListings(2)
	sleeper := &fakeSleeper{}
	stats := NewStatsCollection(0)
	w := newTestGetWorker(&cfg, client, stats, &recordingSink{}, sleeper, 2)

	require.NoError(t, w.run(context.Background()))
	assert.Equal(t, 2, sleeper.count())
	require.Equal(t, 2, stats.Len(), "empty listings do not advance the progress")
	for _, s := range stats.Stats() {
		assert.Equal(t, OpGet, s.Kind)
		assert.Equal(t, "load/put_2048", s.Key)
		assert.EqualValues(t, len("load/put_2048"), s.Size)
	}
}

func TestGetWorkerMissingBody(t *testing.T) {
	cfg := testConfig()
	client := newFakeClient("load/a")
	client.onGet = func(call int, _ string) (io.ReadCloser, bool, error) {
		return nil, call == 1, nil
	}
	sink := &recordingSink{}
	stats := NewStatsCollection(0)
	w := newTestGetWorker(&cfg, client, stats, sink, &fakeSleeper{}, 1)

	require.NoError(t, w.run(context.Background()))
	assert.Equal(t, 1, stats.Len())
	assert.Equal(t, 2, client.getCalls)
	assert.Equal(t, []ErrorKind{KindMissingBody}, sink.kinds())
}

func TestGetWorkerGivesUpOnEmptyListing(t *testing.T) {
	cfg := testConfig()
	cfg.Retry.MaxEmptyListings = 1
	sink := &recordingSink{}
	stats := NewStatsCollection(0)
	w := newTestGetWorker(&cfg, newFakeClient(), stats, sink, &fakeSleeper{}, 3)

	require.NoError(t, w.run(context.Background()))
	assert.Zero(t, stats.Len())
	assert.Equal(t, []ErrorKind{KindEmptyListing}, sink.kinds())
}

func TestGetWorkerBacksOffAfterListError(t *testing.T) {
	cfg := testConfig()
	client := newFakeClient("load/a")
	client.onList = func(call int, _ string) (obmark.ListPage, bool, error) {
		if call == 1 {
			return obmark.ListPage{}, true, errors.New("list load: SlowDown")
		}
		return obmark.ListPage{}, false, nil
	}
	sink := &recordingSink{}
	sleeper := &fakeSleeper{}
	stats := NewStatsCollection(0)
	w := newTestGetWorker(&cfg, client, stats, sink, sleeper, 1)

	require.NoError(t, w.run(context.Background()))
	assert.Equal(t, 1, stats.Len())
	assert.Equal(t, []time.Duration{cfg.Retry.Backoff}, sleeper.calls)
	assert.Equal(t, []ErrorKind{KindStore}, sink.kinds())
}

func TestGetWorkerGivesUpOnPersistentListError(t *testing.T) {
	cfg := testConfig()
	cfg.Retry.MaxEmptyListings = 2
	client := newFakeClient("load/a")
	client.onList = func(int, string) (obmark.ListPage, bool, error) {
		return obmark.ListPage{}, true, errors.New("list load: NoSuchBucket")
	}
	sink := &recordingSink{}
	sleeper := &fakeSleeper{}
	stats := NewStatsCollection(0)
	w := newTestGetWorker(&cfg, client, stats, sink, sleeper, 5)

	require.NoError(t, w.run(context.Background()))
	assert.Zero(t, stats.Len())
	assert.Len(t, client.listCalls, 3)
	assert.Equal(t, 2, sleeper.count())
	assert.Equal(t, []ErrorKind{KindStore, KindStore, KindStore, KindEmptyListing}, sink.kinds())
}

func TestGetWorkerReportsFailedGet(t *testing.T) {
	cfg := testConfig()
	client := newFakeClient("load/a")
	client.onGet = func(call int, _ string) (io.ReadCloser, bool, error) {
		if call == 1 {
			return nil, true, &obmark.TransportError{Op: "get", Err: errors.New("i/o timeout")}
		}
		return nil, false, nil
	}
	sink := &recordingSink{}
	stats := NewStatsCollection(0)
	w := newTestGetWorker(&cfg, client, stats, sink, &fakeSleeper{}, 2)

	require.NoError(t, w.run(context.Background()))
	assert.Equal(t, 2, stats.Len())
	assert.Equal(t, 3, client.getCalls)
	assert.Equal(t, []ErrorKind{KindTransport}, sink.kinds())
}

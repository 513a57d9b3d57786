package sbmark

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/lumafield/s3-loadgen/obmark"
)

// fakeClient keeps objects in memory. The on* hooks take over a call when
// they report it as handled.
type fakeClient struct {
	mu        sync.Mutex
	objects   map[string][]byte
	putCalls  int
	getCalls  int
	listCalls []string

	onPut  func(call int, key string) error
	onGet  func(call int, key string) (io.ReadCloser, bool, error)
	onList func(call int, token string) (obmark.ListPage, bool, error)
}

func newFakeClient(keys ...string) *fakeClient {
	c := &fakeClient{objects: map[string][]byte{}}
	for _, k := range keys {
		c.objects[k] = []byte(k)
	}
	return c
}

func (c *fakeClient) CreateBucket(context.Context, string) error { return nil }

func (c *fakeClient) Put(_ context.Context, _ string, key string, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putCalls++
	if c.onPut != nil {
		if err := c.onPut(c.putCalls, key); err != nil {
			return err
		}
	}
	c.objects[key] = body
	return nil
}

func (c *fakeClient) Get(_ context.Context, _ string, key string) (io.ReadCloser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.getCalls++
	if c.onGet != nil {
		if body, handled, err := c.onGet(c.getCalls, key); handled {
			return body, err
		}
	}
	data, ok := c.objects[key]
	if !ok {
		return nil, fmt.Errorf("get %s: NoSuchKey", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (c *fakeClient) ListObjectsPage(_ context.Context, _ string, prefix string, token string) (obmark.ListPage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listCalls = append(c.listCalls, token)
	if c.onList != nil {
		if page, handled, err := c.onList(len(c.listCalls), token); handled {
			return page, err
		}
	}
	var page obmark.ListPage
	for key, data := range c.objects {
		if strings.HasPrefix(key, prefix) {
			page.Objects = append(page.Objects, obmark.ObjectDescriptor{Key: key, Size: int64(len(data))})
		}
	}
	return page, nil
}

func listPage(next string, keys ...string) obmark.ListPage {
	page := obmark.ListPage{NextToken: next}
	for _, k := range keys {
		page.Objects = append(page.Objects, obmark.ObjectDescriptor{Key: k, Size: 1})
	}
	return page
}

type recordingSink struct {
	mu     sync.Mutex
	events []ErrorEvent
}

func (s *recordingSink) Report(ev ErrorEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) kinds() []ErrorKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	kinds := make([]ErrorKind, 0, len(s.events))
	for _, ev := range s.events {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

// fakeSleeper records the requested pauses without sleeping.
type fakeSleeper struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (s *fakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, d)
	return nil
}

func (s *fakeSleeper) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// yieldSleep lets other workers make progress while a GET worker waits for objects.
func yieldSleep(ctx context.Context, _ time.Duration) error {
	return sleepCtx(ctx, time.Millisecond)
}

// steppingClock advances by step on every reading.
func steppingClock(step time.Duration) func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(step)
		return t
	}
}

type countingTicker struct {
	mu sync.Mutex
	n  int
}

func (c *countingTicker) Add(n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n += n
	return nil
}

func (c *countingTicker) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

type fixedPayload int

func (p fixedPayload) Generate() []byte {
	return make([]byte, int(p))
}

func fixedPayloads(size int) RunnerOption {
	return WithPayloads(func(int, *rand.ChaCha8) PayloadSource { return fixedPayload(size) })
}

func nullLogger() logrus.FieldLogger {
	l, _ := test.NewNullLogger()
	return l
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Bucket = "bench"
	cfg.Prefix = "load"
	cfg.Seed = 7
	return cfg
}

func newTestWorker(cfg *Config, client obmark.ObjectClient, stats StatsSink, sink ErrorSink, sleep Sleeper) worker {
	return worker{
		cfg:    cfg,
		client: client,
		stats:  stats,
		sink:   sink,
		ticker: &NilTicker{},
		log:    nullLogger(),
		now:    steppingClock(time.Millisecond),
		sleep:  sleep,
	}
}

func newTestSampler(client obmark.ObjectClient, policy RetryPolicy, sleep Sleeper, sink ErrorSink) *KeySampler {
	return &KeySampler{
		client: client,
		rnd:    rand.New(rand.NewPCG(1, 2)),
		policy: policy,
		sleep:  sleep,
		sink:   sink,
		log:    nullLogger(),
	}
}

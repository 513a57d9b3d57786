package sbmark

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/lumafield/s3-loadgen/obmark"
)

// Runner starts the PUT and GET workers of one run and collects their stats.
type Runner struct {
	cfg      Config
	client   obmark.ObjectClient
	stats    *StatsCollection
	log      logrus.FieldLogger
	sink     ErrorSink
	metrics  *Metrics
	ticker   Ticker
	sleep    Sleeper
	now      func() time.Time
	payloads func(worker int, src *rand.ChaCha8) PayloadSource
}

// statsCapacityHint bounds the upfront allocation for the stats of huge runs.
const statsCapacityHint = 1 << 16

type RunnerOption func(*Runner)

func WithLogger(log logrus.FieldLogger) RunnerOption {
	return func(r *Runner) { r.log = log }
}

// WithErrorSink replaces the default logging sink.
func WithErrorSink(sink ErrorSink) RunnerOption {
	return func(r *Runner) { r.sink = sink }
}

func WithMetrics(m *Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

func WithTicker(t Ticker) RunnerOption {
	return func(r *Runner) { r.ticker = t }
}

func WithSleeper(s Sleeper) RunnerOption {
	return func(r *Runner) { r.sleep = s }
}

func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

// WithPayloads overrides payload generation per PUT worker.
func WithPayloads(f func(worker int, src *rand.ChaCha8) PayloadSource) RunnerOption {
	return func(r *Runner) { r.payloads = f }
}

func NewRunner(cfg Config, client obmark.ObjectClient, opts ...RunnerOption) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Runner{
		cfg:    cfg,
		client: client,
		stats:  NewStatsCollection(min(cfg.TotalOperations(), statsCapacityHint)),
		log:    logrus.StandardLogger(),
		ticker: &NilTicker{},
		sleep:  sleepCtx,
		now:    time.Now,
		payloads: func(_ int, src *rand.ChaCha8) PayloadSource {
			return NewPayloadGenerator(src)
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.sink == nil {
		r.sink = &LogSink{Logger: r.log}
	}
	return r, nil
}

// Run starts all workers concurrently and blocks until every one of them has
// reached its terminal state. The returned collection has no writers left.
// A non-nil error means the run was cancelled or timed out; the collection
// then holds whatever completed before.
func (r *Runner) Run(ctx context.Context) (*StatsCollection, error) {
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	var limiter *rate.Limiter
	if r.cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.cfg.RateLimit), 1)
	}
	sink := r.sink
	if r.metrics != nil {
		sink = MultiSink{r.sink, r.metrics}
	}

	r.log.WithFields(logrus.Fields{
		"bucket": r.cfg.Bucket,
		"prefix": r.cfg.Prefix,
		"put":    r.cfg.PutConcurrency,
		"get":    r.cfg.GetConcurrency,
	}).Info("starting workers")

	var (
		g     errgroup.Group
		id    int
		start = time.Now()
	)
	base := func(id int) worker {
		return worker{
			id:      id,
			cfg:     &r.cfg,
			client:  r.client,
			stats:   r.stats,
			sink:    sink,
			metrics: r.metrics,
			ticker:  r.ticker,
			limiter: limiter,
			log:     r.log,
			now:     r.now,
			sleep:   r.sleep,
		}
	}
	for i := 0; i < r.cfg.PutConcurrency; i++ {
		src := rand.NewChaCha8(workerSeed(r.cfg.Seed, id))
		w := &putWorker{
			worker:  base(id),
			payload: r.payloads(id, src),
			count:   r.cfg.PutCountPerWorker,
		}
		g.Go(func() error { return w.run(ctx) })
		id++
	}
	for i := 0; i < r.cfg.GetConcurrency; i++ {
		src := rand.NewChaCha8(workerSeed(r.cfg.Seed, id))
		w := &getWorker{
			worker: base(id),
			sampler: &KeySampler{
				client: r.client,
				rnd:    rand.New(src),
				policy: r.cfg.Retry,
				sleep:  r.sleep,
				sink:   sink,
				log:    r.log,
				worker: id,
			},
			count: r.cfg.GetCountPerWorker,
		}
		g.Go(func() error { return w.run(ctx) })
		id++
	}

	// join barrier
	err := g.Wait()
	r.log.WithFields(logrus.Fields{
		"stats":    r.stats.Len(),
		"duration": time.Since(start).Round(time.Millisecond),
	}).Info("all workers finished")
	return r.stats, err
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/aws/smithy-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lumafield/s3-loadgen/obmark"
	"github.com/lumafield/s3-loadgen/sbmark"
)

// use go build -ldflags "-X main.buildstamp=`date -u '+%Y-%m-%d_%I:%M:%S%p'` -X main.githash=`git rev-parse HEAD`"
var buildstamp = "No build stamp provided"
var githash = "No git hash provided"

// options holds everything the command line controls that is not part of sbmark.Config
type options struct {
	configPath   string
	endpoint     string
	region       string
	accessKey    string
	secretKey    string
	insecure     bool
	pathStyle    bool
	fsRoot       string
	createBucket bool
	jsonFileName string
	csvFileName  string
	parquetFile  string
	metricsAddr  string
	logPath      string
	progress     bool
	showVersion  bool

	// appended after the options run derives from the command line
	runnerOpts []sbmark.RunnerOption
}

// program entry point
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(extra ...sbmark.RunnerOption) *cobra.Command {
	var (
		opts = options{runnerOpts: extra}
		cfg  = sbmark.DefaultConfig()
	)
	cmd := &cobra.Command{
		Use:          "s3-loadgen",
		Short:        "Concurrent PUT and GET load generator for S3 compatible object stores",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.showVersion {
				displayVersion(cmd.OutOrStdout())
				return nil
			}
			merged, err := mergeConfig(cmd, opts.configPath, cfg)
			if err != nil {
				return err
			}
			return run(cmd, &opts, merged)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&opts.showVersion, "version", false, "Displays the version information.")
	f.StringVar(&opts.configPath, "config", "", "YAML file with the benchmark configuration. Flags set explicitly take precedence.")
	f.StringVar(&cfg.Description, "description", "", "The description of your test run will be added to the .json report.")
	f.StringVar(&opts.endpoint, "endpoint", "", "Sets the endpoint to use. Might be any URI.")
	f.StringVar(&opts.region, "region", "", "Sets the AWS region to use for the S3 bucket.")
	f.StringVar(&opts.accessKey, "access-key", "", "Static access key, the default AWS credential chain is used otherwise.")
	f.StringVar(&opts.secretKey, "secret-key", "", "Static secret key.")
	f.BoolVar(&opts.insecure, "insecure", false, "Skip TLS certificate verification.")
	f.BoolVar(&opts.pathStyle, "path-style", false, "Address buckets in the URL path instead of the host name.")
	f.StringVar(&opts.fsRoot, "fs-root", "", "Run against a local directory instead of S3.")
	f.StringVar(&cfg.Bucket, "bucket", "", "The target bucket.")
	f.StringVar(&cfg.Prefix, "root-prefix", "", "Key prefix for written and sampled objects.")
	f.IntVar(&cfg.PutConcurrency, "put-concurrency", cfg.PutConcurrency, "Number of PUT workers.")
	f.IntVar(&cfg.PutCountPerWorker, "put-count-per-thread", cfg.PutCountPerWorker, "Number of PUTs per worker.")
	f.IntVar(&cfg.GetConcurrency, "get-concurrency", cfg.GetConcurrency, "Number of GET workers.")
	f.IntVar(&cfg.GetCountPerWorker, "get-count-per-thread", cfg.GetCountPerWorker, "Number of GETs per worker.")
	f.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Log every operation and the connection phases of every request.")
	f.Float64Var(&cfg.RateLimit, "rate-limit", 0, "Maximum operations per second across all workers, 0 is unlimited.")
	f.DurationVar(&cfg.Timeout, "timeout", 0, "Stop the run after this duration, 0 runs until all workers are done.")
	f.Uint64Var(&cfg.Seed, "seed", 0, "Seed for payloads and key sampling, 0 picks a random seed.")
	f.IntVar(&cfg.Retry.MaxEmptyListings, "max-empty-listings", 0, "Give up a GET worker after this many empty listings, 0 waits forever.")
	f.DurationVar(&cfg.Retry.Backoff, "list-backoff", cfg.Retry.Backoff, "Pause between listings of an empty prefix.")
	f.BoolVar(&opts.createBucket, "create-bucket", false, "Create the bucket before the run.")
	f.StringVar(&opts.jsonFileName, "json", "", "Saves the summary as .json file.")
	f.StringVar(&opts.csvFileName, "csv", "", "Saves the summary as .csv file.")
	f.StringVar(&opts.parquetFile, "parquet", "", "Saves every single operation as .parquet file.")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address during the run, e.g. :9100.")
	f.StringVar(&opts.logPath, "log-path", "", "Write the log to this file instead of stderr.")
	f.BoolVar(&opts.progress, "progress", false, "Render a progress bar on stderr.")
	return cmd
}

// mergeConfig loads the config file, if any, and lays the explicitly set
// flags over it. Without a file the flag values are used as they are.
func mergeConfig(cmd *cobra.Command, path string, flags sbmark.Config) (sbmark.Config, error) {
	if path == "" {
		return flags, nil
	}
	cfg, err := sbmark.LoadConfigFile(path)
	if err != nil {
		return cfg, err
	}
	set := func(name string, apply func()) {
		if cmd.Flags().Changed(name) {
			apply()
		}
	}
	set("description", func() { cfg.Description = flags.Description })
	set("bucket", func() { cfg.Bucket = flags.Bucket })
	set("root-prefix", func() { cfg.Prefix = flags.Prefix })
	set("put-concurrency", func() { cfg.PutConcurrency = flags.PutConcurrency })
	set("put-count-per-thread", func() { cfg.PutCountPerWorker = flags.PutCountPerWorker })
	set("get-concurrency", func() { cfg.GetConcurrency = flags.GetConcurrency })
	set("get-count-per-thread", func() { cfg.GetCountPerWorker = flags.GetCountPerWorker })
	set("verbose", func() { cfg.Verbose = flags.Verbose })
	set("rate-limit", func() { cfg.RateLimit = flags.RateLimit })
	set("timeout", func() { cfg.Timeout = flags.Timeout })
	set("seed", func() { cfg.Seed = flags.Seed })
	set("max-empty-listings", func() { cfg.Retry.MaxEmptyListings = flags.Retry.MaxEmptyListings })
	set("list-backoff", func() { cfg.Retry.Backoff = flags.Retry.Backoff })
	return cfg, nil
}

func run(cmd *cobra.Command, opts *options, cfg sbmark.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	log, closeLog, err := setupLogger(opts.logPath, cmd.ErrOrStderr(), cfg.Verbose)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := newObjectClient(ctx, opts, cfg.Verbose, log)
	if err != nil {
		return err
	}
	if opts.createBucket {
		if err := createBenchmarkBucket(ctx, client, cfg.Bucket, log); err != nil {
			return err
		}
	}

	reg := prometheus.NewRegistry()
	metrics := sbmark.NewMetrics(reg)
	if opts.metricsAddr != "" {
		srv := serveMetrics(opts.metricsAddr, reg, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	runnerOpts := []sbmark.RunnerOption{
		sbmark.WithLogger(log),
		sbmark.WithMetrics(metrics),
	}
	var bar *sbmark.ProgressTicker
	if opts.progress {
		bar = sbmark.NewProgressTicker(cfg.TotalOperations(), cmd.ErrOrStderr())
		runnerOpts = append(runnerOpts, sbmark.WithTicker(bar))
	}
	runnerOpts = append(runnerOpts, opts.runnerOpts...)
	runner, err := sbmark.NewRunner(cfg, client, runnerOpts...)
	if err != nil {
		return err
	}

	report := sbmark.NewReport(cfg.Description)
	report.Endpoint = opts.endpoint
	if opts.fsRoot != "" {
		report.Endpoint = "file://" + opts.fsRoot
	}
	report.Bucket = cfg.Bucket
	report.Prefix = cfg.Prefix
	report.ClientEnv = fmt.Sprintf("Application: %s, Host: %s, OS: %s", filepath.Base(os.Args[0]), getHostname(), runtime.GOOS)

	sbmark.PrintBanner(cmd.ErrOrStderr(), "BENCHMARK")
	stats, runErr := runner.Run(ctx)
	if bar != nil {
		_ = bar.Finish()
	}
	if runErr != nil {
		// still summarize whatever completed before the run was stopped
		log.WithError(runErr).Warn("benchmark interrupted")
		report.Interrupted = true
	}

	all := stats.Stats()
	report.Summary = sbmark.Summarize(all)
	if err := sbmark.WriteText(cmd.OutOrStdout(), report.Summary); err != nil {
		return err
	}
	return writeReports(opts, report, all, log)
}

func setupLogger(logPath string, stderr io.Writer, verbose bool) (*logrus.Logger, func(), error) {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.SetOutput(stderr)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	if logPath == "" {
		return log, func() {}, nil
	}
	file, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	log.SetOutput(file)
	return log, func() { file.Close() }, nil
}

func newObjectClient(ctx context.Context, opts *options, verbose bool, log logrus.FieldLogger) (obmark.ObjectClient, error) {
	if opts.fsRoot != "" {
		log.WithField("root", opts.fsRoot).Info("using the filesystem backend")
		return obmark.NewFsClient(&obmark.FsObjectClientConfig{RootPath: opts.fsRoot}), nil
	}
	s3Config := &obmark.S3ObjectClientConfig{
		Region:    opts.region,
		Endpoint:  opts.endpoint,
		AccessKey: opts.accessKey,
		SecretKey: opts.secretKey,
		Insecure:  opts.insecure,
		PathStyle: opts.pathStyle,
	}
	if verbose {
		s3Config.OnLatency = func(op string, key string, lat obmark.Latency) {
			log.WithFields(logrus.Fields{
				"op":                op,
				"key":               key,
				"dns_lookup":        lat.DNSLookup,
				"tcp_connection":    lat.TCPConnection,
				"tls_handshake":     lat.TLSHandshake,
				"server_processing": lat.ServerProcessing,
			}).Debug("request phases")
		}
	}
	client, err := obmark.NewS3Client(ctx, s3Config)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func createBenchmarkBucket(ctx context.Context, client obmark.ObjectClient, bucket string, log logrus.FieldLogger) error {
	err := client.CreateBucket(ctx, bucket)

	// if the error is because the bucket already exists, ignore the error
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "BucketAlreadyOwnedByYou", "BucketAlreadyExists":
			err = nil
		}
	}
	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	log.WithField("bucket", bucket).Info("created target bucket")
	return nil
}

func serveMetrics(addr string, reg *prometheus.Registry, log logrus.FieldLogger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server stopped")
		}
	}()
	log.WithField("addr", addr).Info("serving metrics")
	return srv
}

func writeReports(opts *options, report sbmark.Report, all []sbmark.Stat, log logrus.FieldLogger) error {
	// if the csv option is set, save the report as .csv
	if opts.csvFileName != "" {
		csvReport, err := sbmark.ToCsv(report)
		if err != nil {
			return fmt.Errorf("failed to create .csv output: %w", err)
		}
		if err := os.WriteFile(opts.csvFileName, csvReport, 0644); err != nil {
			return fmt.Errorf("failed to create .csv output: %w", err)
		}
		log.Infof("CSV results were written to %s", opts.csvFileName)
	}

	// if the json option is set, save the report as .json
	if opts.jsonFileName != "" {
		jsonReport, err := sbmark.ToJson(report)
		if err != nil {
			return fmt.Errorf("failed to create .json output: %w", err)
		}
		if err := os.WriteFile(opts.jsonFileName, jsonReport, 0644); err != nil {
			return fmt.Errorf("failed to create .json output: %w", err)
		}
		log.Infof("JSON results were written to %s", opts.jsonFileName)
	}

	if opts.parquetFile != "" {
		if err := sbmark.WriteParquet(opts.parquetFile, report.RunID, all); err != nil {
			return err
		}
		log.Infof("Parquet results were written to %s", opts.parquetFile)
	}
	return nil
}

func displayVersion(w io.Writer) {
	fmt.Fprintf(w, "Git Commit Hash: %s\n", githash)
	fmt.Fprintf(w, "UTC Build Time: %s\n", buildstamp)
}

// gets the name of the host that executes the test.
func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}

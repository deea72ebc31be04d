package main

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/pior/beanstalk"
	"github.com/pior/beanstalk/internal/env"
	"github.com/pior/beanstalk/promexporter"
)

type OperationType string

const (
	PutDelete OperationType = "put-delete"
	RoundTrip OperationType = "round-trip"
	Pipeline  OperationType = "pipeline"
	All       OperationType = "all"
)

type BenchmarkResult struct {
	Operation    OperationType
	Duration     time.Duration
	TotalOps     int64
	Successes    int64
	Failures     int64
	AvgLatency   time.Duration
	OpsPerSecond float64
	Correctness  bool
	ErrorMessage string
}

var (
	operation   string
	duration    time.Duration
	concurrency int
	depth       int
	payloadSize int
)

func init() {
	flags := benchCmd.Flags()
	flags.StringVar(&operation, "operation", "all", "Operation type: put-delete, round-trip, pipeline, or all")
	flags.DurationVar(&duration, "duration", 5*time.Second, "Duration to run benchmarks")
	flags.IntVar(&concurrency, "concurrency", 1, "Number of concurrent workers, one connection each")
	flags.IntVar(&depth, "pipeline", 100, "Number of jobs per pipelined batch")
	flags.IntVar(&payloadSize, "size", 128, "Job body size in bytes")
}

var benchCmd = &cobra.Command{
	Use:   "beanstalk-bench",
	Short: "Benchmark a beanstalkd server",
	Long: `Benchmark a beanstalkd server

Every job body carries a checksum verified when the job is reserved. Each
worker uses its own connection and tube.

Metrics are served on $BEANSTALK_METRICS_ADDR when set.
`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()

		conf, err := env.LoadConfig(ctx)
		if err != nil {
			return err
		}

		log, err := env.MakeLogger(conf.LogLevel)
		if err != nil {
			return err
		}
		defer log.Sync()

		if payloadSize < checksumSize {
			return fmt.Errorf("size must be at least %d", checksumSize)
		}

		fmt.Printf("Beanstalk Benchmark Tool\n")
		fmt.Printf("========================\n")
		fmt.Printf("Operation: %s\n", operation)
		fmt.Printf("Duration: %v\n", duration)
		fmt.Printf("Concurrency: %d\n", concurrency)
		fmt.Printf("Pipeline: %d\n", depth)
		fmt.Printf("Server: %s\n", conf.Addr)
		fmt.Println()

		exporter := promexporter.NewExporter()
		if conf.MetricsAddr != "" {
			go func() {
				log.Info("serving metrics", zap.String("addr", conf.MetricsAddr))
				if err := exporter.ListenAndServe(conf.MetricsAddr); err != nil {
					log.Error("metrics server failed", zap.Error(err))
				}
			}()
		}

		clientConfig := conf.ClientConfig()
		clientConfig.Logger = log

		workers, err := openWorkers(ctx, clientConfig, exporter)
		defer func() {
			for _, w := range workers {
				err = multierr.Append(err, w.client.Close())
			}
		}()
		if err != nil {
			fmt.Printf("Make sure beanstalkd is running on %s\n", conf.Addr)
			return err
		}

		b := &bench{workers: workers, metrics: exporter.BenchMetrics()}

		if OperationType(operation) == All {
			for _, op := range []OperationType{PutDelete, RoundTrip, Pipeline} {
				fmt.Printf("\n--- Running %s benchmark ---\n", op)
				printResult(b.run(ctx, op))
			}
			return nil
		}

		printResult(b.run(ctx, OperationType(operation)))
		return nil
	},
}

type worker struct {
	id     int
	client *beanstalk.Client
}

// openWorkers connects every worker and isolates it in its own tube, so
// reserved jobs are the ones it put.
func openWorkers(ctx context.Context, config beanstalk.Config, exporter *promexporter.Exporter) ([]*worker, error) {
	workers := make([]*worker, 0, concurrency)

	for i := range concurrency {
		client, err := beanstalk.NewClient(ctx, config)
		if err != nil {
			return workers, err
		}
		workers = append(workers, &worker{id: i, client: client})

		if err := exporter.Register(client, fmt.Sprintf("%s/%d", config.Addr, i)); err != nil {
			return workers, err
		}

		tube := fmt.Sprintf("beanstalk-bench-%d", i)
		if _, err := client.Use(ctx, tube); err != nil {
			return workers, err
		}
		if _, err := client.Watch(ctx, tube); err != nil {
			return workers, err
		}
		if _, err := client.Ignore(ctx, "default"); err != nil {
			return workers, err
		}
	}

	return workers, nil
}

type bench struct {
	workers []*worker
	metrics *promexporter.BenchMetrics
}

// counters accumulate the outcome of one benchmark across workers.
type counters struct {
	totalOps, successes, failures, totalLatency int64

	mu       sync.Mutex
	mismatch string
}

func (c *counters) record(latency time.Duration, ok bool, n int) {
	atomic.AddInt64(&c.totalOps, int64(n))
	atomic.AddInt64(&c.totalLatency, int64(latency)*int64(n))
	if ok {
		atomic.AddInt64(&c.successes, int64(n))
	} else {
		atomic.AddInt64(&c.failures, int64(n))
	}
}

func (c *counters) fail(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mismatch == "" {
		c.mismatch = msg
	}
}

func (b *bench) run(ctx context.Context, op OperationType) *BenchmarkResult {
	var fn func(ctx context.Context, w *worker, c *counters)
	switch op {
	case PutDelete:
		fn = b.putDelete
	case RoundTrip:
		fn = b.roundTrip
	case Pipeline:
		fn = b.pipeline
	default:
		return &BenchmarkResult{
			Operation:    op,
			Correctness:  false,
			ErrorMessage: fmt.Sprintf("Unknown operation: %s", op),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	c := &counters{}
	startTime := time.Now()

	var wg sync.WaitGroup
	for _, w := range b.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				fn(ctx, w, c)
			}
		}()
	}
	wg.Wait()

	result := &BenchmarkResult{
		Operation:    op,
		Duration:     time.Since(startTime),
		TotalOps:     c.totalOps,
		Successes:    c.successes,
		Failures:     c.failures,
		Correctness:  c.mismatch == "",
		ErrorMessage: c.mismatch,
	}
	if result.TotalOps > 0 {
		result.AvgLatency = time.Duration(c.totalLatency / c.totalOps)
		result.OpsPerSecond = float64(result.TotalOps) / result.Duration.Seconds()
	}
	return result
}

// timed runs fn and records its outcome. A cancelled benchmark is not a failure.
func (b *bench) timed(ctx context.Context, c *counters, op string, n int, fn func() error) error {
	start := time.Now()
	err := fn()
	latency := time.Since(start)

	if err != nil && ctx.Err() != nil {
		return err
	}

	c.record(latency, err == nil, n)
	b.metrics.RecordOperation(op, err == nil, latency)
	return err
}

// Put-delete: 1 put then 1 delete
func (b *bench) putDelete(ctx context.Context, w *worker, c *counters) {
	var id uint64
	err := b.timed(ctx, c, "put", 1, func() (err error) {
		id, err = w.client.Put(context.Background(), newPayload(payloadSize))
		return err
	})
	if err != nil {
		return
	}

	// The job must go even when the benchmark ends
	b.timed(context.Background(), c, "delete", 1, func() error {
		return w.client.Delete(context.Background(), id)
	})
}

// Round-trip: 1 put, 1 reserve and verify, 1 delete
func (b *bench) roundTrip(ctx context.Context, w *worker, c *counters) {
	var id uint64
	err := b.timed(ctx, c, "put", 1, func() (err error) {
		id, err = w.client.Put(context.Background(), newPayload(payloadSize))
		return err
	})
	if err != nil {
		return
	}

	var job beanstalk.Job
	err = b.timed(context.Background(), c, "reserve", 1, func() (err error) {
		job, err = w.client.ReserveWithTimeout(context.Background(), 0)
		return err
	})
	if err != nil {
		return
	}
	b.verify(c, id, job)

	b.timed(context.Background(), c, "delete", 1, func() error {
		return w.client.Delete(context.Background(), job.ID)
	})
}

func (b *bench) verify(c *counters, putID uint64, job beanstalk.Job) {
	if job.ID != putID {
		b.metrics.RecordMismatch()
		c.fail(fmt.Sprintf("Reserved job %d, expected %d", job.ID, putID))
		return
	}
	if err := verifyPayload(job.Body); err != nil {
		b.metrics.RecordMismatch()
		c.fail(fmt.Sprintf("Job %d: %v", job.ID, err))
	}
}

func (b *bench) waitAll(reqs []*beanstalk.Request) ([]beanstalk.Job, error) {
	jobs := make([]beanstalk.Job, len(reqs))
	var errs error
	for i, req := range reqs {
		frame, err := req.Wait(context.Background())
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		id, err := strconv.ParseUint(frame.Arg(0), 10, 64)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		jobs[i] = beanstalk.Job{ID: id, Body: frame.Body}
	}
	return jobs, errs
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/Sternrassler/fssp-client/pkg/batch"
	"github.com/Sternrassler/fssp-client/pkg/cache"
	"github.com/Sternrassler/fssp-client/pkg/client"
	"github.com/Sternrassler/fssp-client/pkg/collect"
	"github.com/Sternrassler/fssp-client/pkg/config"
	"github.com/Sternrassler/fssp-client/pkg/fssp"
	"github.com/Sternrassler/fssp-client/pkg/logging"
	"github.com/Sternrassler/fssp-client/pkg/metrics"
	"github.com/Sternrassler/fssp-client/pkg/pipeline"
	"github.com/Sternrassler/fssp-client/pkg/ratelimit"
	"github.com/Sternrassler/fssp-client/pkg/region"
	"github.com/Sternrassler/fssp-client/pkg/roster"
	"github.com/Sternrassler/fssp-client/pkg/store"
	"github.com/Sternrassler/fssp-client/pkg/submit"
)

// clock drives pacing and poll delays.
var clock ratelimit.Clock = ratelimit.SystemClock{}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		log.Error().Err(err).Msg("fssp-search failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	flags := pflag.NewFlagSet("fssp-search", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", "", "YAML config file (FSSP_* variables override it)")
	inPath := flags.StringP("in", "i", "-", "roster CSV with Surname,Name,Patronymic,BirthDate columns (- for stdin)")
	outPath := flags.StringP("out", "o", "-", "result CSV (- for stdout)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logger := logging.Setup(cfg.LoggingConfig())

	persons, err := readRoster(*inPath, stdin)
	if err != nil {
		return err
	}

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	if cfg.MetricsAddr != "" {
		srv := app.serve(cfg.MetricsAddr)
		defer shutdown(srv, 5*time.Second, logger)
	}

	if cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.RunTimeout)
		defer cancel()
	}

	report, runErr := app.orchestrator.Run(ctx, persons)
	if report != nil {
		if err := writeRecords(*outPath, stdout, report.Records); err != nil {
			return errors.Join(runErr, err)
		}
		logger.Info().
			Str("run_id", report.RunID).
			Int("persons", report.Stats.Persons).
			Int("records", report.Stats.Records).
			Int("lost", report.Stats.Lost()).
			Dur("duration", report.FinishedAt.Sub(report.StartedAt)).
			Msg("Results written")
	}
	return runErr
}

// app holds the wired components of one process.
type app struct {
	api          *client.Client
	redis        *redis.Client
	orchestrator *pipeline.Orchestrator
	logger       zerolog.Logger
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	api, err := client.New(cfg.ClientConfig())
	if err != nil {
		return nil, fmt.Errorf("create search client: %w", err)
	}

	a := &app{api: api, logger: logger}

	pacer := ratelimit.NewPacer(cfg.Submit.Interval, clock, logger)
	submitter := submit.New(api, pacer, cfg.SubmitterConfig(), logger).WithClock(clock)
	opts := pipeline.Options{
		Poll:   cfg.PollerConfig(),
		Policy: cfg.CompletionPolicy(),
		Clock:  clock,
	}

	if cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")

		ns := cfg.Redis.Namespace
		pacer.WithStore(ratelimit.NewTracker(a.redis, ns, 0, logger))
		submitter.WithJournal(cache.NewJournal(a.redis, ns, cfg.Redis.JournalTTL))
		opts.NewPending = func(runID string) store.PendingSet {
			return store.NewRedis(a.redis, ns, runID, cfg.Redis.JournalTTL)
		}
	}

	batcher := batch.NewBatcher(region.Default(), batch.MaxItems, logger)
	a.orchestrator = pipeline.New(batcher, submitter, api, collect.New(api, logger), opts, logger)
	return a, nil
}

func (a *app) Close() {
	a.api.Close()
	if a.redis != nil {
		a.redis.Close()
	}
}

// serve starts the /health and /metrics endpoints in the background.
func (a *app) serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler(a.redis))
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		a.logger.Info().Str("addr", addr).Msg("Serving health and metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
	return srv
}

// shutdown stops srv, waiting up to timeout for open connections.
func shutdown(srv *http.Server, timeout time.Duration, logger zerolog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("Metrics server shutdown failed")
		return err
	}
	return nil
}

// healthHandler reports OK, or 503 when the configured Redis is unreachable.
func healthHandler(rdb *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rdb != nil {
			if err := rdb.Ping(r.Context()).Err(); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	}
}

func readRoster(path string, stdin io.Reader) ([]fssp.Person, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open roster: %w", err)
		}
		defer f.Close()
		r = f
	}

	persons, err := roster.NewCSVReader(r).Read()
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	return persons, nil
}

func writeRecords(path string, stdout io.Writer, records []fssp.Record) error {
	if path == "-" {
		return roster.NewCSVWriter(stdout).Write(records)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := roster.NewCSVWriter(f).Write(records); err != nil {
		f.Close()
		return fmt.Errorf("write results: %w", err)
	}
	return f.Close()
}

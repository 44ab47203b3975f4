package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	netHttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"trafficstats/internal/adapters/http"
	"trafficstats/internal/adapters/http/response"
	"trafficstats/internal/adapters/ws/speedws"
	"trafficstats/internal/config"
	"trafficstats/internal/core/counter"
	"trafficstats/internal/core/traffic"
	"trafficstats/internal/domain"
	"trafficstats/internal/logger"
	"trafficstats/internal/storage/snapshot"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "trafficstats:", err)
		os.Exit(1)
	}
}

// app holds the pieces every mode shares.
type app struct {
	cfg    *config.Config
	log    logger.Logger
	reg    *prometheus.Registry
	store  *snapshot.SampleStore
	stream *traffic.Stream
}

// lifecycle clears the latest sample whenever the last subscriber leaves.
type lifecycle struct {
	monitor *traffic.Monitor
	store   *snapshot.SampleStore
}

func (l lifecycle) Start() { l.monitor.Start() }

func (l lifecycle) Stop() {
	l.monitor.Stop()
	l.store.Clear()
}

func run(args []string, stdout io.Writer) error {
	cfg := config.Load()

	fs := pflag.NewFlagSet("trafficstats", pflag.ContinueOnError)
	cfg.BindFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logger.New(cfg)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.stream.Stop()

	log.Info("trafficstats: starting...",
		"mode", cfg.Mode,
		"source", cfg.CounterSource,
		"interfaces", cfg.Interfaces,
		"interval", cfg.Interval,
	)

	switch cfg.Mode {
	case config.ModeStream:
		return a.runStream(ctx, stdout)
	case config.ModeSnapshot:
		return a.runSnapshot(ctx, stdout)
	default:
		return a.runServe(ctx)
	}
}

func newApp(ctx context.Context, cfg *config.Config, log logger.Logger) (*app, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}

	metrics, err := traffic.NewMetrics("trafficstats", reg)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	reader := newReader(cfg, log)
	store := snapshot.NewSampleStore()
	stream := traffic.NewStream(ctx, log)

	sink := domain.SinkFunc(func(s domain.RateSample) {
		store.Set(s)
		stream.Deliver(s)
	})

	monitor := traffic.NewMonitor(reader, sink, log,
		traffic.WithInterval(cfg.Interval),
		traffic.WithMaxKbps(cfg.MaxKbps),
		traffic.WithMetrics(metrics),
	)
	stream.SetMonitor(lifecycle{monitor: monitor, store: store})

	go stream.Run()

	return &app{
		cfg:    cfg,
		log:    log,
		reg:    reg,
		store:  store,
		stream: stream,
	}, nil
}

func newReader(cfg *config.Config, log logger.Logger) domain.CounterReader {
	allow := counter.AllowList(cfg.Interfaces)

	if cfg.CounterSource == config.SourceProcFS {
		return counter.NewProcReader(cfg.ProcNetDev, allow, log)
	}
	return counter.NewNetIOReader(allow, log)
}

func (a *app) runServe(ctx context.Context) error {
	router := http.NewRouter(a.cfg, a.log, &http.RouterDeps{
		WsSpeed: speedws.NewHandler(ctx, a.stream, a.log, a.cfg.JWTSecret, a.cfg.AllowedOrigins),
		Speed:   http.NewSpeedHandler(a.store, response.NewJSONWriter(a.log)),
		Metrics: promhttp.HandlerFor(a.reg, promhttp.HandlerOpts{}),
	})

	srv := http.NewServer(router, a.cfg.Address)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info("http: starting server", "address", a.cfg.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, netHttp.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Error("http: server shutdown error", "error", err)
		}
		return nil
	})

	err := g.Wait()
	a.log.Info("server stopped")
	return err
}

// runStream prints one JSON line per sample until interrupted.
func (a *app) runStream(ctx context.Context, out io.Writer) error {
	enc := json.NewEncoder(out)

	h := a.stream.Subscribe(func(s domain.RateSample) {
		if err := enc.Encode(s); err != nil {
			a.log.Error("stream: failed to write sample", "error", err)
		}
	})
	defer a.stream.Unsubscribe(h)

	<-ctx.Done()
	return nil
}

// runSnapshot waits for the first measured interval after the baseline and
// prints it.
func (a *app) runSnapshot(ctx context.Context, out io.Writer) error {
	samples := make(chan domain.RateSample, 2)

	h := a.stream.Subscribe(func(s domain.RateSample) {
		select {
		case samples <- s:
		default:
		}
	})
	defer a.stream.Unsubscribe(h)

	for seen := 0; ; seen++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s := <-samples:
			if seen == 0 {
				continue
			}
			return json.NewEncoder(out).Encode(s)
		}
	}
}

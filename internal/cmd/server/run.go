package serverrun

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/relaygate/relaygate/internal/cache"
	"github.com/relaygate/relaygate/internal/config"
	"github.com/relaygate/relaygate/internal/gateway"
	"github.com/relaygate/relaygate/internal/metrics"
	"github.com/relaygate/relaygate/internal/poll"
	"github.com/relaygate/relaygate/internal/server/httpapi"
	"github.com/relaygate/relaygate/internal/server/ws"
	"github.com/relaygate/relaygate/internal/session"
	"github.com/relaygate/relaygate/internal/subscription"
	"github.com/relaygate/relaygate/internal/upstream"
	logpkg "github.com/relaygate/relaygate/pkg/log"
)

// Options bundles Run's parameters.
type Options struct {
	Config config.Config
}

// Run builds every relaygate component from opts.Config and serves until
// ctx is canceled or an interrupt/termination signal arrives, then shuts
// down gracefully.
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := opts.Config

	procLogger, err := logpkg.ApplyConfig(&logpkg.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		procLogger = logpkg.NewLogger()
	}
	procLogger.Info("starting relaygate",
		logpkg.Str("listen", cfg.Listen),
		logpkg.Int("upstreams", len(cfg.Upstreams)),
		logpkg.Str("level", cfg.LogLevel),
		logpkg.Str("format", cfg.LogFormat),
	)

	reg := metrics.New(prometheus.DefaultRegisterer)

	endpoints := make([]*upstream.Endpoint, 0, len(cfg.Upstreams))
	for _, url := range cfg.Upstreams {
		endpoints = append(endpoints, &upstream.Endpoint{
			ID:     url,
			Caller: upstream.NewHTTPCaller(url, cfg.UpstreamTimeout),
		})
	}
	pool, err := upstream.NewPool(endpoints, cfg.RecoveryWindow, procLogger, reg)
	if err != nil {
		return fmt.Errorf("serverrun: %w", err)
	}
	retrying := upstream.NewRetryingCaller(pool, cfg.RetryAttempts, cfg.RetryBaseDelay, procLogger)

	stats := cache.NewStats(reg)
	headSlot := cache.NewSlot[json.RawMessage](cfg.HeadStateTTL, stats, "head-state")
	witnessSlot := cache.NewSlot[json.RawMessage](cfg.WitnessTTL, stats, "witnesses")
	headerMap := cache.NewBlockMap[json.RawMessage](cfg.BlockCacheSize, cfg.BlockCacheTTL, stats, "block-headers")
	blockMap := cache.NewBlockMap[json.RawMessage](cfg.BlockCacheSize, cfg.BlockCacheTTL, stats, "full-blocks")
	opsMap := cache.NewBlockMap[json.RawMessage](cfg.BlockCacheSize, cfg.BlockCacheTTL, stats, "operations")

	// A different endpoint may disagree on cached state, so every cache is
	// dropped the moment the pool actually rotates (§4.1).
	pool.OnSwitch(func() {
		headSlot.Drop()
		witnessSlot.Drop()
		headerMap.DropAll()
		blockMap.DropAll()
		opsMap.DropAll()
	})

	registry := subscription.NewRegistry(procLogger, reg)

	disp := gateway.New(retrying, registry, headSlot, witnessSlot, headerMap, blockMap, opsMap, procLogger)
	queue := gateway.NewWorkQueue(cfg.WorkQueueSize, disp, procLogger, reg)

	driver := poll.New(retrying, registry, headSlot, witnessSlot, headerMap, blockMap, opsMap, cfg.PollInterval, procLogger, reg)
	probe := poll.NewHealthProbe(pool, cfg.HealthProbeInterval, procLogger, reg)

	admitter := session.NewAdmitter(cfg.MaxConnections)

	wsHandler := ws.New(ws.Config{
		Admitter:          admitter,
		Registry:          registry,
		Queue:             queue,
		AllowedOrigins:    cfg.AllowedOrigins,
		RequestsPerMinute: cfg.RequestsPerMinute,
		RateWindow:        time.Minute,
		Logger:            procLogger,
		Metrics:           reg,
	})

	startedAt := time.Now()
	httpHandler := httpapi.New(httpapi.Config{
		ServiceName:    "relaygate",
		StartedAt:      startedAt,
		Pool:           pool,
		Admitter:       admitter,
		Registry:       registry,
		QueueLen:       queue.Len,
		HeadSlot:       headSlot,
		WitnessSlot:    witnessSlot,
		Stats:          stats,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	mux := http.NewServeMux()
	mux.Handle("/ws", wsHandler)
	httpHandler.Register(mux)

	httpSrv := &http.Server{
		Addr:    cfg.Listen,
		Handler: mux,
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		queue.Run(sctx, 4)
	}()
	go func() {
		defer wg.Done()
		driver.Run(sctx)
	}()
	go func() {
		defer wg.Done()
		probe.Run(sctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			procLogger.Error("http server error", logpkg.Err(err))
		}
	}()

	<-sctx.Done()
	procLogger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)

	wg.Wait()
	return nil
}

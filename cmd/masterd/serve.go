package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Druvan/HarmonicIO/pkg/allocator"
	"github.com/Druvan/HarmonicIO/pkg/binpack"
	"github.com/Druvan/HarmonicIO/pkg/config"
	"github.com/Druvan/HarmonicIO/pkg/containerqueue"
	"github.com/Druvan/HarmonicIO/pkg/log"
	"github.com/Druvan/HarmonicIO/pkg/lookup"
	"github.com/Druvan/HarmonicIO/pkg/messagequeue"
	"github.com/Druvan/HarmonicIO/pkg/metrics"
	"github.com/Druvan/HarmonicIO/pkg/predictor"
	"github.com/Druvan/HarmonicIO/pkg/profiler"
	"github.com/Druvan/HarmonicIO/pkg/worker"
)

// heartbeatTimeout is how long a registered worker may go without a
// heartbeat before its containers are requeued.
const heartbeatTimeout = 45 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Master: packing loop, dispatchers, profiler, and autoscaler",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("worker-token", "", "Shared token used to authenticate start-RPCs to Workers")
	serveCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address for the metrics/health HTTP server")
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	workerToken, _ := cmd.Flags().GetString("worker-token")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	logger := log.WithComponent("masterd")

	table := lookup.NewTable()
	cq := containerqueue.New()
	mq := messagequeue.NewInMemoryQueue()
	dispatcher := worker.NewHTTPDispatcher(workerToken)

	alloc := allocator.New(table, cq, dispatcher, allocator.Config{
		PackingInterval:     cfg.PackingInterval,
		DefaultCPUShare:     cfg.DefaultCPUShare,
		Descriptors:         cfg.SizeDescriptors,
		DispatcherCount:     cfg.DispatcherCount,
		DisableSafetyMargin: cfg.DisableSafetyMargin,
	})

	prof := profiler.New(cq, alloc, table, cfg.ProfilingInterval)

	pred := predictor.New(mq, cq, predictor.Config{
		Autoscaling:      cfg.Autoscaling,
		StepLength:       cfg.StepLength,
		RocLower:         cfg.RocLower,
		RocUpper:         cfg.RocUpper,
		RocMinimum:       cfg.RocMinimum,
		QueueLengthLimit: cfg.QueueLengthLimit,
		WaitTime:         cfg.WaitTime,
		LargeIncrement:   cfg.LargeIncrement,
		SmallIncrement:   cfg.SmallIncrement,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	alloc.Start(ctx)
	prof.Start(ctx)
	pred.Start(ctx)
	go heartbeatMonitor(ctx, table, alloc)

	collector := metrics.NewCollector(alloc)
	collector.Start(cfg.PackingInterval)
	defer collector.Stop()

	metrics.SetVersion(Version)
	metrics.RegisterComponent("allocator", true, "running")
	metrics.RegisterComponent("lookup", true, "running")
	metrics.RegisterComponent("api", false, "initializing")

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())
	mux.HandleFunc("/workers/register", registerHandler(table))
	mux.HandleFunc("/workers/heartbeat", heartbeatHandler(table))
	mux.HandleFunc("/containers", enqueueHandler(cq))
	mux.HandleFunc("/containers/terminate", terminateHandler(alloc))
	mux.HandleFunc("/queue-depth", queueDepthHandler(mq))

	server := &http.Server{Addr: metricsAddr, Handler: mux}

	go func() {
		logger.Info().Str("addr", metricsAddr).Msg("listening")
		metrics.RegisterComponent("api", true, "listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server exited")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info().Msg("shutting down")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}

// heartbeatMonitor is the extension hook that drives REQUEUED: any worker
// that has missed heartbeatTimeout worth of heartbeats has its containers
// requeued and is dropped from the registry.
func heartbeatMonitor(ctx context.Context, table *lookup.Table, alloc *allocator.Allocator) {
	ticker := time.NewTicker(heartbeatTimeout / 3)
	defer ticker.Stop()
	logger := log.WithComponent("masterd")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, addr := range table.StaleWorkers(heartbeatTimeout) {
				logger.Warn().Str("worker", addr).Msg("worker heartbeat timed out, requeuing containers")
				alloc.RequeueWorkerContainers(addr)
			}
		}
	}
}

type registerRequest struct {
	Addr string `json:"addr"`
	Port int    `json:"port"`
}

// containerRequestPayload is the wire shape accepted on /containers: a
// pending container request submitted ahead of the next packing pass.
type containerRequestPayload struct {
	Image    string             `json:"container_os"`
	SizeData map[string]float64 `json:"size_data"`
}

func (p containerRequestPayload) toContainerRequest() *binpack.ContainerRequest {
	sizeData := p.SizeData
	if sizeData == nil {
		sizeData = make(map[string]float64)
	}
	return &binpack.ContainerRequest{Image: p.Image, SizeData: sizeData}
}

func registerHandler(table *lookup.Table) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request body", http.StatusBadRequest)
			return
		}
		registered := table.RegisterWorker(req.Addr, req.Port)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]int{"bin_index": registered.BinIndex})
	}
}

func heartbeatHandler(table *lookup.Table) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		addr := r.URL.Query().Get("addr")
		if !table.Heartbeat(addr) {
			http.Error(w, "unknown worker", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func enqueueHandler(cq *containerqueue.Queue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req containerRequestPayload
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request body", http.StatusBadRequest)
			return
		}
		cq.Put(req.toContainerRequest())
		w.WriteHeader(http.StatusAccepted)
	}
}

func terminateHandler(alloc *allocator.Allocator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shortID := r.URL.Query().Get("short_id")
		if ok := alloc.RemoveContainerByID(shortID); !ok {
			http.Error(w, "unknown container", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func queueDepthHandler(mq *messagequeue.InMemoryQueue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		image := r.URL.Query().Get("image")
		depth, err := strconv.Atoi(r.URL.Query().Get("depth"))
		if err != nil {
			http.Error(w, "depth must be an integer", http.StatusBadRequest)
			return
		}
		mq.Set(image, depth)
		metrics.MessageQueueDepth.WithLabelValues(image).Set(float64(depth))
		w.WriteHeader(http.StatusOK)
	}
}

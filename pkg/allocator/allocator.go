// Package allocator implements the packing loop and dispatch loops that
// place container requests into bins and start them on workers.
package allocator

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Druvan/HarmonicIO/pkg/binpack"
	"github.com/Druvan/HarmonicIO/pkg/containerqueue"
	"github.com/Druvan/HarmonicIO/pkg/definition"
	"github.com/Druvan/HarmonicIO/pkg/log"
	"github.com/Druvan/HarmonicIO/pkg/lookup"
	"github.com/Druvan/HarmonicIO/pkg/metrics"
	"github.com/Druvan/HarmonicIO/pkg/worker"
)

// Config tunes the allocator's packing and dispatch behavior.
type Config struct {
	PackingInterval     time.Duration
	DefaultCPUShare     float64
	Descriptors         []string
	DispatcherCount     int
	DisableSafetyMargin bool
}

func (c Config) withDefaults() Config {
	if c.PackingInterval == 0 {
		c.PackingInterval = 10 * time.Second
	}
	if len(c.Descriptors) == 0 {
		c.Descriptors = definition.DefaultDescriptors
	}
	if c.DispatcherCount == 0 {
		c.DispatcherCount = 4
	}
	return c
}

// Allocator owns the bin layout, the allocation queue, and the goroutines
// that keep both moving.
type Allocator struct {
	binLayoutLock sync.Mutex
	bins          []*binpack.Bin

	allocationLock  sync.Mutex
	allocationQueue chan *binpack.ContainerRequest

	table      *lookup.Table
	cq         *containerqueue.Queue
	dispatcher worker.Dispatcher
	config     Config

	targetWorkerNumber atomic.Int64

	log zeroLogger
}

// zeroLogger is the narrow slice of zerolog.Logger this package calls,
// kept as an interface so tests can swap in a no-op.
type zeroLogger interface {
	Error(err error, msg string)
	ErrorWithCorrelation(err error, msg, correlationID string)
}

type componentLogger struct{}

func (componentLogger) Error(err error, msg string) {
	log.WithComponent("allocator").Error().Err(err).Msg(msg)
}

func (componentLogger) ErrorWithCorrelation(err error, msg, correlationID string) {
	log.WithComponent("allocator").Error().Err(err).Str("correlation_id", correlationID).Msg(msg)
}

// New creates an Allocator. The allocation channel holds up to 4096
// requests, a generously large bound since the source system treats this
// queue as unbounded.
func New(table *lookup.Table, cq *containerqueue.Queue, dispatcher worker.Dispatcher, cfg Config) *Allocator {
	cfg = cfg.withDefaults()
	return &Allocator{
		allocationQueue: make(chan *binpack.ContainerRequest, 4096),
		table:           table,
		cq:              cq,
		dispatcher:      dispatcher,
		config:          cfg,
		log:             componentLogger{},
	}
}

// Start launches the packing loop and the configured number of dispatcher
// loops, all of which exit when ctx is done.
func (a *Allocator) Start(ctx context.Context) {
	go a.packingLoop(ctx)
	for i := 0; i < a.config.DispatcherCount; i++ {
		go a.dispatchLoop(ctx)
	}
}

func (a *Allocator) packingLoop(ctx context.Context) {
	ticker := time.NewTicker(a.config.PackingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.packOnce()
		}
	}
}

// packOnce drains the container queue, packs it against the current bin
// layout, and enqueues newly-packed items for dispatch.
func (a *Allocator) packOnce() {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.PackingLatency)

	requests := a.cq.GetCurrentQueueList()
	for _, req := range requests {
		if req.SizeData == nil {
			req.SizeData = make(map[string]float64)
		}
		if _, ok := req.SizeData[definition.DescriptorAvgCPU]; !ok {
			req.SizeData[definition.DescriptorAvgCPU] = a.config.DefaultCPUShare * 0.01
		}
	}

	a.binLayoutLock.Lock()
	opts := binpack.PackOptions{DisableSafetyMargin: a.config.DisableSafetyMargin}
	a.bins = binpack.Pack(requests, a.bins, a.config.Descriptors, opts)
	binsSnapshot := a.bins
	a.binLayoutLock.Unlock()

	target := len(binsSnapshot) + overhead(a.table.ActiveWorkerCount())
	a.targetWorkerNumber.Store(int64(target))

	var packed int
	for _, b := range binsSnapshot {
		for _, item := range b.Items {
			if item.Request.BinStatus != definition.StatusPacked {
				continue
			}
			a.allocationQueue <- item.Request
			item.Request.BinStatus = definition.StatusQueued
			packed++
		}
	}
	if packed > 0 {
		metrics.ContainersPacked.Add(float64(packed))
	}
}

// overhead computes the suggested number of spare workers to keep as
// headroom, growing logarithmically once the fleet reaches 10 workers.
func overhead(activeWorkers int) int {
	switch {
	case activeWorkers < 10:
		return 1
	case activeWorkers < 100:
		return int(math.Ceil(math.Log(float64(activeWorkers)) * 0.5))
	default:
		return int(math.Trunc(math.Log(float64(activeWorkers))))
	}
}

func (a *Allocator) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-a.allocationQueue:
			a.dispatchOne(ctx, req)
		}
	}
}

func (a *Allocator) dispatchOne(ctx context.Context, req *binpack.ContainerRequest) {
	// correlationID has no meaning to the Worker; it only ties this
	// dispatch attempt's log lines together, since short_id isn't known
	// until the RPC succeeds.
	correlationID := uuid.New().String()

	a.allocationLock.Lock()
	w := a.table.WorkerByBinIndex(req.BinIndex)
	a.allocationLock.Unlock()

	if w == nil {
		a.log.ErrorWithCorrelation(fmt.Errorf("no worker assigned to bin %d", req.BinIndex), "dispatch skipped", correlationID)
		return
	}

	timer := metrics.NewTimer()
	sid, err := a.dispatcher.StartContainer(ctx, w.Addr, w.Port, req, req.CPUShare)
	timer.ObserveDuration(metrics.DispatchLatency)

	if err != nil {
		metrics.ContainersDispatchFailed.Inc()
		a.log.ErrorWithCorrelation(err, "container dispatch failed, leaving packed for retry", correlationID)
		req.BinStatus = definition.StatusPacked
		return
	}

	req.ShortID = sid
	req.BinStatus = definition.StatusRunning
	a.table.RecordContainer(sid, req.Image, w.Addr)
	metrics.ContainersDispatched.Inc()
}

// UpdateBinnedContainers updates every bin's items of image with new size
// data.
func (a *Allocator) UpdateBinnedContainers(image string, update map[string]float64) {
	a.binLayoutLock.Lock()
	defer a.binLayoutLock.Unlock()
	for _, b := range a.bins {
		b.UpdateItems(image, update)
	}
}

// UpdateQueuedContainers updates every item of the given image still
// waiting in the allocation channel. Since Go channels can't be scanned
// in place, it delegates to UpdateBinnedContainers: an item waiting in the
// channel is the same request its bin still holds, so updating bin state
// updates it too.
func (a *Allocator) UpdateQueuedContainers(image string, update map[string]float64) {
	a.UpdateBinnedContainers(image, update)
}

// RemoveContainerByID removes a terminated container from its bin,
// returning false if no bin holds it.
func (a *Allocator) RemoveContainerByID(shortID string) bool {
	a.binLayoutLock.Lock()
	defer a.binLayoutLock.Unlock()
	for _, b := range a.bins {
		if b.RemoveItem(shortID) {
			metrics.ContainersRemoved.Inc()
			a.table.RemoveContainer(shortID)
			return true
		}
	}
	return false
}

// RequeueWorkerContainers handles a dead worker: every container bound to
// one of its bins is stripped of its placement and pushed back onto the
// container queue as REQUEUED, to be re-packed next cycle.
func (a *Allocator) RequeueWorkerContainers(workerAddr string) {
	target, ok := a.table.Workers()[workerAddr]
	if !ok {
		return
	}

	a.binLayoutLock.Lock()
	var requeued []*binpack.ContainerRequest
	for _, b := range a.bins {
		if b.Index != target.BinIndex {
			continue
		}
		for _, item := range b.Items {
			item.Request.BinStatus = definition.StatusRequeued
			requeued = append(requeued, item.Request)
		}
		b.Items = nil
	}
	a.binLayoutLock.Unlock()

	for _, req := range requeued {
		req.BinIndex = 0
		a.cq.Put(req)
		metrics.ContainersRequeued.Inc()
	}
	a.table.DeregisterWorker(workerAddr)
}

// --- metrics.Source implementation ---

// BinSnapshot returns the configured descriptors and a copy of free space
// per bin, for the metrics collector.
func (a *Allocator) BinSnapshot() (descriptors []string, freeSpace map[int]map[string]float64) {
	a.binLayoutLock.Lock()
	defer a.binLayoutLock.Unlock()
	freeSpace = make(map[int]map[string]float64, len(a.bins))
	for _, b := range a.bins {
		cp := make(map[string]float64, len(b.FreeSpace))
		for d, v := range b.FreeSpace {
			cp[d] = v
		}
		freeSpace[b.Index] = cp
	}
	return a.config.Descriptors, freeSpace
}

// ContainerQueueLength returns the number of requests waiting for a first
// packing pass.
func (a *Allocator) ContainerQueueLength() int {
	return a.cq.Len()
}

// AllocationQueueLength returns the number of packed containers waiting
// for dispatch.
func (a *Allocator) AllocationQueueLength() int {
	return len(a.allocationQueue)
}

// ContainerCountsByStatus tallies bin items by their BinStatus.
func (a *Allocator) ContainerCountsByStatus() map[string]int {
	a.binLayoutLock.Lock()
	defer a.binLayoutLock.Unlock()
	counts := make(map[string]int)
	for _, b := range a.bins {
		for _, item := range b.Items {
			counts[string(item.Request.BinStatus)]++
		}
	}
	return counts
}

// TargetWorkerNumber returns the most recently computed suggested worker
// count.
func (a *Allocator) TargetWorkerNumber() int {
	return int(a.targetWorkerNumber.Load())
}

// ActiveWorkerCount returns the number of registered workers.
func (a *Allocator) ActiveWorkerCount() int {
	return a.table.ActiveWorkerCount()
}

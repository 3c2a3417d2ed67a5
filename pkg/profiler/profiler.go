// Package profiler implements the periodic pass that refreshes containers
// not yet running with freshly aggregated per-image metadata.
package profiler

import (
	"context"
	"time"

	"github.com/Druvan/HarmonicIO/pkg/containerqueue"
	"github.com/Druvan/HarmonicIO/pkg/definition"
	"github.com/Druvan/HarmonicIO/pkg/lookup"
)

// Updater is the narrow slice of the allocator this profiler drives,
// exposed as a capability interface rather than a back-pointer.
type Updater interface {
	UpdateQueuedContainers(image string, update map[string]float64)
	UpdateBinnedContainers(image string, update map[string]float64)
}

// Profiler periodically aggregates per-image metadata from the running
// fleet and propagates it to every queue/bin holding that image.
type Profiler struct {
	cq       *containerqueue.Queue
	updater  Updater
	table    *lookup.Table
	interval time.Duration
}

// New creates a Profiler that ticks at interval.
func New(cq *containerqueue.Queue, updater Updater, table *lookup.Table, interval time.Duration) *Profiler {
	if interval == 0 {
		interval = 30 * time.Second
	}
	return &Profiler{cq: cq, updater: updater, table: table, interval: interval}
}

// Start launches the profiling loop until ctx is done.
func (p *Profiler) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.passOnce()
			}
		}
	}()
}

// passOnce aggregates avg_cpu from the running fleet, then updates the
// container queue, allocation queue, and bins for every image with fresh
// metadata, in that fixed order. avg_cpu is the only descriptor aggregated;
// avg_memory and avg_network are not refreshed by this pass.
func (p *Profiler) passOnce() {
	p.table.AggregateFromWorkers(definition.DescriptorAvgCPU)

	for image, values := range p.table.Verbose() {
		p.cq.UpdateContainers(image, values)
		p.updater.UpdateQueuedContainers(image, values)
		p.updater.UpdateBinnedContainers(image, values)
	}
}

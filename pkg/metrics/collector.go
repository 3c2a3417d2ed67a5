package metrics

import (
	"strconv"
	"time"
)

// Source is the read-only view into the allocator's state that the
// collector samples on each tick. Implemented by *allocator.Allocator,
// passed in by the caller to avoid metrics depending on allocator.
type Source interface {
	BinSnapshot() (descriptors []string, freeSpace map[int]map[string]float64)
	ContainerQueueLength() int
	AllocationQueueLength() int
	ContainerCountsByStatus() map[string]int
	TargetWorkerNumber() int
	ActiveWorkerCount() int
}

// Collector periodically samples a Source and updates the package-level
// Prometheus metrics.
type Collector struct {
	source Source
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector for the given source.
func NewCollector(source Source) *Collector {
	return &Collector{
		source: source,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics every interval until Stop is called.
func (c *Collector) Start(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectBinMetrics()
	c.collectQueueMetrics()
	c.collectContainerMetrics()

	WorkersTotal.Set(float64(c.source.ActiveWorkerCount()))
	TargetWorkerNumber.Set(float64(c.source.TargetWorkerNumber()))
}

func (c *Collector) collectBinMetrics() {
	descriptors, freeSpace := c.source.BinSnapshot()
	BinsTotal.Set(float64(len(freeSpace)))

	for binIndex, byDescriptor := range freeSpace {
		indexLabel := strconv.Itoa(binIndex)
		for _, d := range descriptors {
			BinFreeSpace.WithLabelValues(indexLabel, d).Set(byDescriptor[d])
		}
	}
}

func (c *Collector) collectQueueMetrics() {
	ContainerQueueLength.Set(float64(c.source.ContainerQueueLength()))
	AllocationQueueLength.Set(float64(c.source.AllocationQueueLength()))
}

func (c *Collector) collectContainerMetrics() {
	for status, count := range c.source.ContainerCountsByStatus() {
		ContainersByStatus.WithLabelValues(status).Set(float64(count))
	}
}


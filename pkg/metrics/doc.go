/*
Package metrics provides Prometheus metrics collection and exposition for the
Master's resource-management subsystem.

Metrics are registered at package init and exposed via Handler() for
scraping. Collector samples the allocator's bin layout and queue depths on
an interval and updates the corresponding gauges; counters and histograms
(ContainersPacked, DispatchLatency, ScaleUpsTotal, ...) are updated inline
by the allocator and predictor as events occur.

# Categories

  - Bin layout: BinsTotal, BinFreeSpace, TargetWorkerNumber
  - Queues: ContainerQueueLength, AllocationQueueLength, MessageQueueDepth
  - Registry: WorkersTotal, ContainersByStatus
  - Operations: PackingLatency, ContainersPacked, ContainersDispatched,
    ContainersDispatchFailed, ContainersRemoved, ContainersRequeued,
    DispatchLatency
  - Autoscaling: ScaleUpsTotal, MessageQueueRoC

# Usage

	collector := metrics.NewCollector(allocator)
	collector.Start(5 * time.Second)
	defer collector.Stop()

	http.Handle("/metrics", metrics.Handler())
*/
package metrics

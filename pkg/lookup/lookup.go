// Package lookup implements the Master's worker/container/image registry.
// A Table is an explicit, dependency-injected handle rather than a
// package-level singleton: callers create one with NewTable and pass it to
// the components that need it.
package lookup

import (
	"sync"
	"time"
)

// Worker is a registered worker node.
type Worker struct {
	Addr            string
	Port            int
	BinIndex        int
	LocalImageStats map[string]float64 // image -> locally observed avg value
	RegisteredAt    time.Time
	LastHeartbeat   time.Time
}

// ContainerRecord is a running container, tracked from successful dispatch
// until termination.
type ContainerRecord struct {
	ShortID    string
	Image      string
	WorkerAddr string
	StartedAt  time.Time
}

// Table is the process-wide registry of workers, running containers, and
// per-image metadata. It is safe for concurrent use.
type Table struct {
	mu sync.RWMutex

	workers    map[string]*Worker          // keyed by node address
	containers map[string]*ContainerRecord // keyed by short ID
	imageMeta  map[string]map[string]float64
	nextBin    int
}

// NewTable returns a fresh, empty registry.
func NewTable() *Table {
	return &Table{
		workers:    make(map[string]*Worker),
		containers: make(map[string]*ContainerRecord),
		imageMeta:  make(map[string]map[string]float64),
	}
}

// RegisterWorker adds a worker at addr, assigning it the next bin index in
// registration order. Re-registering an already-known address refreshes its
// heartbeat without reassigning its bin index.
func (t *Table) RegisterWorker(addr string, port int) *Worker {
	t.mu.Lock()
	defer t.mu.Unlock()

	if w, ok := t.workers[addr]; ok {
		w.LastHeartbeat = time.Now()
		return w
	}

	w := &Worker{
		Addr:            addr,
		Port:            port,
		BinIndex:        t.nextBin,
		LocalImageStats: make(map[string]float64),
		RegisteredAt:    time.Now(),
		LastHeartbeat:   time.Now(),
	}
	t.workers[addr] = w
	t.nextBin++
	return w
}

// DeregisterWorker removes a worker from the registry.
func (t *Table) DeregisterWorker(addr string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.workers, addr)
}

// ActiveWorkerCount returns the number of currently registered workers.
func (t *Table) ActiveWorkerCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.workers)
}

// WorkerByBinIndex returns the worker assigned to binIndex, or nil.
func (t *Table) WorkerByBinIndex(binIndex int) *Worker {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, w := range t.workers {
		if w.BinIndex == binIndex {
			return w
		}
	}
	return nil
}

// Heartbeat refreshes addr's LastHeartbeat, reporting whether addr is a
// known worker.
func (t *Table) Heartbeat(addr string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	w, ok := t.workers[addr]
	if !ok {
		return false
	}
	w.LastHeartbeat = time.Now()
	return true
}

// StaleWorkers returns the addresses of every worker whose last heartbeat
// is older than timeout, the extension hook an external heartbeat monitor
// uses to find workers to requeue.
func (t *Table) StaleWorkers(timeout time.Duration) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var stale []string
	cutoff := time.Now().Add(-timeout)
	for addr, w := range t.workers {
		if w.LastHeartbeat.Before(cutoff) {
			stale = append(stale, addr)
		}
	}
	return stale
}

// Workers returns a snapshot copy of the worker registry.
func (t *Table) Workers() map[string]*Worker {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]*Worker, len(t.workers))
	for addr, w := range t.workers {
		cp := *w
		out[addr] = &cp
	}
	return out
}

// RecordContainer adds a running container to the registry.
func (t *Table) RecordContainer(shortID, image, workerAddr string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.containers[shortID] = &ContainerRecord{
		ShortID:    shortID,
		Image:      image,
		WorkerAddr: workerAddr,
		StartedAt:  time.Now(),
	}
}

// RemoveContainer removes a container record on termination.
func (t *Table) RemoveContainer(shortID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.containers, shortID)
}

// Containers returns a snapshot copy of the container registry.
func (t *Table) Containers() map[string]*ContainerRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]*ContainerRecord, len(t.containers))
	for id, c := range t.containers {
		cp := *c
		out[id] = &cp
	}
	return out
}

// PushMetadata overwrites image's stored value for every descriptor in
// values; descriptors not present in values keep their previous value. No
// averaging happens here: AggregateFromWorkers computes the weighted
// average before calling it.
func (t *Table) PushMetadata(image string, values map[string]float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	existing, ok := t.imageMeta[image]
	if !ok {
		existing = make(map[string]float64, len(values))
	}
	for descriptor, v := range values {
		existing[descriptor] = v
	}
	t.imageMeta[image] = existing
}

// Verbose returns a snapshot copy of the image metadata table.
func (t *Table) Verbose() map[string]map[string]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]map[string]float64, len(t.imageMeta))
	for image, values := range t.imageMeta {
		cp := make(map[string]float64, len(values))
		for d, v := range values {
			cp[d] = v
		}
		out[image] = cp
	}
	return out
}

// AggregateFromWorkers recomputes each image's descriptor average from the
// currently running containers, weighting each worker's locally observed
// value by how many of that image's containers it is running:
//
//	avg(image, descriptor) = Σ(worker.LocalImageStats[image] * localCount) / Σ localCount
//
// and stores the result via PushMetadata.
func (t *Table) AggregateFromWorkers(descriptor string) {
	t.mu.RLock()
	containers := make(map[string]*ContainerRecord, len(t.containers))
	for id, c := range t.containers {
		containers[id] = c
	}
	workers := make(map[string]*Worker, len(t.workers))
	for addr, w := range t.workers {
		workers[addr] = w
	}
	t.mu.RUnlock()

	localCounts := make(map[string]map[string]int) // worker -> image -> count
	for _, c := range containers {
		if localCounts[c.WorkerAddr] == nil {
			localCounts[c.WorkerAddr] = make(map[string]int)
		}
		localCounts[c.WorkerAddr][c.Image]++
	}

	totals := make(map[string]float64) // image -> Σ local_avg*count
	counts := make(map[string]int)     // image -> Σ count
	for addr, w := range workers {
		for image, count := range localCounts[addr] {
			localAvg, ok := w.LocalImageStats[image]
			if !ok {
				continue
			}
			totals[image] += localAvg * float64(count)
			counts[image] += count
		}
	}

	for image, total := range totals {
		if counts[image] == 0 {
			continue
		}
		t.PushMetadata(image, map[string]float64{descriptor: total / float64(counts[image])})
	}
}

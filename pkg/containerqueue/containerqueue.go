// Package containerqueue implements the FIFO of container requests waiting
// for their first packing pass.
package containerqueue

import (
	"sync"

	"github.com/Druvan/HarmonicIO/pkg/binpack"
)

// Queue is a thread-safe FIFO of pending container requests.
type Queue struct {
	mu    sync.Mutex
	items []*binpack.ContainerRequest
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{}
}

// Put appends a request to the queue.
func (q *Queue) Put(req *binpack.ContainerRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, req)
}

// GetCurrentQueueList atomically drains and returns every request
// currently queued.
func (q *Queue) GetCurrentQueueList() []*binpack.ContainerRequest {
	q.mu.Lock()
	defer q.mu.Unlock()
	drained := q.items
	q.items = nil
	return drained
}

// IsContainerInQueue reports whether any queued request is for image.
func (q *Queue) IsContainerInQueue(image string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, item := range q.items {
		if item.Image == image {
			return true
		}
	}
	return false
}

// UpdateContainers applies update to the size data of every queued request
// for image.
func (q *Queue) UpdateContainers(image string, update map[string]float64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, item := range q.items {
		if item.Image != image {
			continue
		}
		for descriptor, v := range update {
			item.SizeData[descriptor] = v
		}
	}
}

// ViewQueue returns a snapshot copy of the queue; callers must not rely on
// it reflecting concurrent Put/GetCurrentQueueList calls.
func (q *Queue) ViewQueue() []*binpack.ContainerRequest {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*binpack.ContainerRequest, len(q.items))
	copy(out, q.items)
	return out
}

// Len returns the number of requests currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

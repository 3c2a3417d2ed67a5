// Package definition holds the field-name vocabulary shared by every
// component of the resource-management core. These names cross the wire as
// JSON keys exchanged with Workers, so they are typed string constants
// rather than an iota-based enum.
package definition

// Field names used in the container request/record wire format.
const (
	FieldImage     = "container_os"
	FieldShortID   = "short_id"
	FieldNodeAddr  = "node_addr"
	FieldNodePort  = "node_port"
	FieldSizeData  = "size_data"
	FieldBinIndex  = "bin_index"
	FieldBinStatus = "bin_status"
	FieldCPUShare  = "cpu_share"
)

// Size descriptor names. These are the dimensions bin packing balances.
const (
	DescriptorAvgCPU     = "avg_cpu"
	DescriptorAvgMemory  = "avg_memory"
	DescriptorAvgNetwork = "avg_network"
)

// DefaultDescriptors is the descriptor set packed over when a caller does
// not supply its own.
var DefaultDescriptors = []string{DescriptorAvgCPU, DescriptorAvgMemory, DescriptorAvgNetwork}

// BinStatus is the lifecycle state of a container within the bin layout.
type BinStatus string

const (
	// StatusPacked means the container has been placed in a bin by the
	// packing algorithm but not yet pushed to the allocation queue.
	StatusPacked BinStatus = "packed"
	// StatusQueued means the container is waiting in the allocation
	// queue for a dispatcher to start it on its assigned worker.
	StatusQueued BinStatus = "queued"
	// StatusRunning means the container has been started on a worker
	// and is immutable to profiler updates.
	StatusRunning BinStatus = "running"
	// StatusRequeued means the container's worker died mid-flight and it
	// has been stripped of its bin assignment, pending re-packing.
	StatusRequeued BinStatus = "requeued"
)

// Package binpack implements first-fit bin packing with a per-descriptor
// safety margin, the core placement algorithm underlying the allocator's
// packing pass.
package binpack

import "github.com/Druvan/HarmonicIO/pkg/definition"

// ContainerRequest is the typed stand-in for the open-ended container
// dictionary passed around by callers. Known fields are typed; Extra
// carries worker-reported telemetry fields that have no fixed home.
type ContainerRequest struct {
	Image     string
	ShortID   string
	NodeAddr  string
	NodePort  int
	SizeData  map[string]float64 // descriptor (e.g. "avg_cpu") -> value in [0,1)
	BinIndex  int
	BinStatus definition.BinStatus
	CPUShare  float64
	Extra     map[string]float64
}

func (c *ContainerRequest) avg(descriptor string) float64 {
	return c.SizeData[descriptor]
}

// Item is a packed container together with the size it consumed at pack
// time, matching the teacher's snapshot-at-pack-time semantics.
type Item struct {
	Size    map[string]float64 // descriptor -> avg value consumed
	Request *ContainerRequest
}

// Bin is one placement slot: a set of per-descriptor free-space fractions
// starting at 1.0 and a margin withheld from each.
type Bin struct {
	Index       int
	FreeSpace   map[string]float64
	SpaceMargin map[string]float64
	Items       []*Item
}

// PackOptions configures a packing pass.
type PackOptions struct {
	// DisableSafetyMargin zeroes all per-descriptor margins before
	// packing, per the configuration flag documented for this core.
	DisableSafetyMargin bool
	// SpaceMargin overrides the default 0.05 per-descriptor margin.
	SpaceMargin float64
}

const defaultSpaceMargin = 0.05

// NewBin creates an empty bin with free space 1.0 on every descriptor.
func NewBin(index int, descriptors []string, opts PackOptions) *Bin {
	margin := opts.SpaceMargin
	if margin == 0 {
		margin = defaultSpaceMargin
	}
	if opts.DisableSafetyMargin {
		margin = 0
	}

	free := make(map[string]float64, len(descriptors))
	space := make(map[string]float64, len(descriptors))
	for _, d := range descriptors {
		free[d] = 1.0
		space[d] = margin
	}
	return &Bin{Index: index, FreeSpace: free, SpaceMargin: space}
}

// Pack attempts to place req in the bin. It fails (returns false) as soon
// as any descriptor's requested size does not leave the configured margin
// of free space. On success the container is recorded as packed and its
// size is deducted from every descriptor's free space.
func (b *Bin) Pack(req *ContainerRequest) bool {
	for descriptor, free := range b.FreeSpace {
		if req.avg(descriptor) >= free-b.SpaceMargin[descriptor] {
			return false
		}
	}

	req.BinIndex = b.Index
	req.BinStatus = definition.StatusPacked

	size := make(map[string]float64, len(b.FreeSpace))
	for descriptor := range b.FreeSpace {
		v := req.avg(descriptor)
		size[descriptor] = v
		b.FreeSpace[descriptor] -= v
	}

	b.Items = append(b.Items, &Item{Size: size, Request: req})
	return true
}

// packBare packs req into a fresh bin ignoring the safety margin, the one
// exception this algorithm allows: a brand-new bin must accept an item
// that merely fits within raw capacity, even if that leaves it under the
// normal margin threshold. Only size values at or beyond full capacity
// (>= 1.0 on some descriptor) are rejected; values in [0,1) always succeed.
func (b *Bin) packBare(req *ContainerRequest) bool {
	for descriptor, free := range b.FreeSpace {
		if req.avg(descriptor) >= free {
			return false
		}
	}

	req.BinIndex = b.Index
	req.BinStatus = definition.StatusPacked

	size := make(map[string]float64, len(b.FreeSpace))
	for descriptor := range b.FreeSpace {
		v := req.avg(descriptor)
		size[descriptor] = v
		b.FreeSpace[descriptor] -= v
	}

	b.Items = append(b.Items, &Item{Size: size, Request: req})
	return true
}

// RemoveItem removes the item whose short ID matches id, restoring its
// consumed space to the bin (clamped to 1.0). Returns false if not found.
func (b *Bin) RemoveItem(shortID string) bool {
	for i, item := range b.Items {
		if item.Request.ShortID != shortID {
			continue
		}
		for descriptor, v := range item.Size {
			b.FreeSpace[descriptor] += v
			if b.FreeSpace[descriptor] > 1.0 {
				b.FreeSpace[descriptor] = 1.0
			}
		}
		b.Items = append(b.Items[:i], b.Items[i+1:]...)
		return true
	}
	return false
}

// UpdateItems refreshes the size of every non-running item whose image
// matches image, adjusting the bin's free space accordingly.
func (b *Bin) UpdateItems(image string, update map[string]float64) {
	for _, item := range b.Items {
		if item.Request.Image != image || item.Request.BinStatus == definition.StatusRunning {
			continue
		}
		for descriptor, newValue := range update {
			b.FreeSpace[descriptor] += item.Size[descriptor]
			item.Size[descriptor] = newValue
			item.Request.SizeData[descriptor] = newValue
			b.FreeSpace[descriptor] -= newValue
			if b.FreeSpace[descriptor] < 0.0 {
				b.FreeSpace[descriptor] = 0.0
			} else if b.FreeSpace[descriptor] > 1.0 {
				b.FreeSpace[descriptor] = 1.0
			}
		}
	}
}

// Pack performs first-fit bin packing: each request is offered to existing
// bins left-to-right, and a new bin is appended when none fits. The new
// bin's first packing attempt ignores the safety margin (see packBare).
func Pack(requests []*ContainerRequest, bins []*Bin, descriptors []string, opts PackOptions) []*Bin {
	for _, req := range requests {
		packed := false
		for _, b := range bins {
			if b.Pack(req) {
				packed = true
				break
			}
		}
		if packed {
			continue
		}

		fresh := NewBin(len(bins), descriptors, opts)
		if fresh.packBare(req) {
			bins = append(bins, fresh)
		}
		// An item that cannot fit even a fresh bin's raw capacity (size
		// >= 1.0 on some descriptor) is dropped; this is unreachable for
		// well-formed inputs since size values are fractions in [0,1).
	}
	return bins
}

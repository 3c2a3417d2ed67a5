package binpack

import (
	"testing"

	"github.com/Druvan/HarmonicIO/pkg/definition"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sized builds a request sized on the default descriptor set. Descriptor
// names (e.g. "avg_cpu") already carry the wire prefix; SizeData is keyed
// by them directly, with no further prefixing.
func sized(image string, cpu, mem, net float64) *ContainerRequest {
	return &ContainerRequest{
		Image: image,
		SizeData: map[string]float64{
			definition.DescriptorAvgCPU:     cpu,
			definition.DescriptorAvgMemory:  mem,
			definition.DescriptorAvgNetwork: net,
		},
	}
}

func TestPack_FirstFitSingleBin(t *testing.T) {
	requests := []*ContainerRequest{
		sized("a", 0.2, 0.1, 0.1),
		sized("b", 0.2, 0.1, 0.1),
	}

	bins := Pack(requests, nil, definition.DefaultDescriptors, PackOptions{})

	require.Len(t, bins, 1)
	assert.Len(t, bins[0].Items, 2)
	assert.Equal(t, definition.StatusPacked, requests[0].BinStatus)
	assert.Equal(t, 0, requests[0].BinIndex)
}

func TestPack_OverflowCreatesNewBin(t *testing.T) {
	requests := []*ContainerRequest{
		sized("a", 0.6, 0.1, 0.1),
		sized("b", 0.6, 0.1, 0.1),
	}

	bins := Pack(requests, nil, definition.DefaultDescriptors, PackOptions{})

	require.Len(t, bins, 2)
	assert.Equal(t, 0, requests[0].BinIndex)
	assert.Equal(t, 1, requests[1].BinIndex)
}

func TestPack_MarginRejectsNearFullBin(t *testing.T) {
	// first item leaves exactly margin(0.05) of free space, second item
	// of nonzero size must not fit in the same bin.
	requests := []*ContainerRequest{
		sized("a", 0.95, 0.0, 0.0),
		sized("b", 0.01, 0.0, 0.0),
	}

	bins := Pack(requests, nil, definition.DefaultDescriptors, PackOptions{})

	require.Len(t, bins, 2)
}

func TestPack_FreshBinIgnoresMarginOnFirstAttempt(t *testing.T) {
	// an item at avg_cpu=0.96 would fail the margin check on any bin
	// (0.96 >= 1.0 - 0.05) but must still be placed in a fresh bin since
	// a brand-new bin's first packing attempt ignores the margin.
	requests := []*ContainerRequest{
		sized("a", 0.96, 0.0, 0.0),
	}

	bins := Pack(requests, nil, definition.DefaultDescriptors, PackOptions{})

	require.Len(t, bins, 1)
	assert.InDelta(t, 0.04, bins[0].FreeSpace[definition.DescriptorAvgCPU], 1e-9)
}

func TestPack_DisableSafetyMargin(t *testing.T) {
	requests := []*ContainerRequest{
		sized("a", 0.95, 0.0, 0.0),
		sized("b", 0.01, 0.0, 0.0),
	}

	bins := Pack(requests, nil, definition.DefaultDescriptors, PackOptions{DisableSafetyMargin: true})

	require.Len(t, bins, 1)
}

func TestPack_ExistingLayoutIsReused(t *testing.T) {
	existing := []*Bin{NewBin(0, definition.DefaultDescriptors, PackOptions{})}
	requests := []*ContainerRequest{sized("a", 0.2, 0.1, 0.1)}

	bins := Pack(requests, existing, definition.DefaultDescriptors, PackOptions{})

	require.Len(t, bins, 1)
	assert.Same(t, existing[0], bins[0])
}

func TestBin_RemoveItemRestoresSpace(t *testing.T) {
	b := NewBin(0, definition.DefaultDescriptors, PackOptions{})
	r := sized("a", 0.3, 0.0, 0.0)
	require.True(t, b.Pack(r))
	r.ShortID = "abc123"

	ok := b.RemoveItem("abc123")

	require.True(t, ok)
	assert.Empty(t, b.Items)
	assert.InDelta(t, 1.0, b.FreeSpace[definition.DescriptorAvgCPU], 1e-9)
}

func TestBin_RemoveItemNotFound(t *testing.T) {
	b := NewBin(0, definition.DefaultDescriptors, PackOptions{})
	assert.False(t, b.RemoveItem("nope"))
}

func TestBin_UpdateItemsSkipsRunning(t *testing.T) {
	b := NewBin(0, definition.DefaultDescriptors, PackOptions{})
	r := sized("a", 0.2, 0.0, 0.0)
	require.True(t, b.Pack(r))
	r.BinStatus = definition.StatusRunning

	b.UpdateItems("a", map[string]float64{definition.DescriptorAvgCPU: 0.5})

	assert.InDelta(t, 0.8, b.FreeSpace[definition.DescriptorAvgCPU], 1e-9)
}

func TestBin_UpdateItemsAdjustsQueued(t *testing.T) {
	b := NewBin(0, definition.DefaultDescriptors, PackOptions{})
	r := sized("a", 0.2, 0.0, 0.0)
	require.True(t, b.Pack(r))
	r.BinStatus = definition.StatusQueued

	b.UpdateItems("a", map[string]float64{definition.DescriptorAvgCPU: 0.5})

	assert.InDelta(t, 0.5, b.FreeSpace[definition.DescriptorAvgCPU], 1e-9)
}

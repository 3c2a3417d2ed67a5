package containerqueue

import (
	"testing"

	"github.com/Druvan/HarmonicIO/pkg/binpack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_PutAndDrain(t *testing.T) {
	q := New()
	q.Put(&binpack.ContainerRequest{Image: "a"})
	q.Put(&binpack.ContainerRequest{Image: "b"})

	assert.Equal(t, 2, q.Len())

	drained := q.GetCurrentQueueList()
	require.Len(t, drained, 2)
	assert.Equal(t, 0, q.Len())
}

func TestQueue_IsContainerInQueue(t *testing.T) {
	q := New()
	q.Put(&binpack.ContainerRequest{Image: "a"})

	assert.True(t, q.IsContainerInQueue("a"))
	assert.False(t, q.IsContainerInQueue("b"))
}

func TestQueue_UpdateContainersOnlyTargetsMatchingImage(t *testing.T) {
	q := New()
	a := &binpack.ContainerRequest{Image: "a", SizeData: map[string]float64{}}
	b := &binpack.ContainerRequest{Image: "b", SizeData: map[string]float64{}}
	q.Put(a)
	q.Put(b)

	q.UpdateContainers("a", map[string]float64{"avg_cpu": 0.5})

	assert.Equal(t, 0.5, a.SizeData["avg_cpu"])
	assert.Empty(t, b.SizeData)
}

func TestQueue_ViewQueueIsSnapshot(t *testing.T) {
	q := New()
	q.Put(&binpack.ContainerRequest{Image: "a"})

	view := q.ViewQueue()
	require.Len(t, view, 1)

	q.Put(&binpack.ContainerRequest{Image: "b"})
	assert.Len(t, view, 1, "snapshot must not observe later Put calls")
}

package lookup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_RegisterWorkerAssignsSequentialBinIndex(t *testing.T) {
	tbl := NewTable()

	w1 := tbl.RegisterWorker("10.0.0.1:9000", 9000)
	w2 := tbl.RegisterWorker("10.0.0.2:9000", 9000)

	assert.Equal(t, 0, w1.BinIndex)
	assert.Equal(t, 1, w2.BinIndex)
	assert.Equal(t, 2, tbl.ActiveWorkerCount())
}

func TestTable_RegisterWorkerIsIdempotentOnAddress(t *testing.T) {
	tbl := NewTable()

	w1 := tbl.RegisterWorker("10.0.0.1:9000", 9000)
	w2 := tbl.RegisterWorker("10.0.0.1:9000", 9000)

	assert.Equal(t, w1.BinIndex, w2.BinIndex)
	assert.Equal(t, 1, tbl.ActiveWorkerCount())
}

func TestTable_DeregisterWorker(t *testing.T) {
	tbl := NewTable()
	tbl.RegisterWorker("10.0.0.1:9000", 9000)

	tbl.DeregisterWorker("10.0.0.1:9000")

	assert.Equal(t, 0, tbl.ActiveWorkerCount())
}

func TestTable_WorkerByBinIndex(t *testing.T) {
	tbl := NewTable()
	tbl.RegisterWorker("10.0.0.1:9000", 9000)
	w2 := tbl.RegisterWorker("10.0.0.2:9000", 9000)

	found := tbl.WorkerByBinIndex(1)

	require.NotNil(t, found)
	assert.Equal(t, w2.Addr, found.Addr)
	assert.Nil(t, tbl.WorkerByBinIndex(99))
}

func TestTable_ContainerRegistry(t *testing.T) {
	tbl := NewTable()
	tbl.RecordContainer("abc123", "nginx", "10.0.0.1:9000")

	containers := tbl.Containers()
	require.Contains(t, containers, "abc123")
	assert.Equal(t, "nginx", containers["abc123"].Image)

	tbl.RemoveContainer("abc123")
	assert.NotContains(t, tbl.Containers(), "abc123")
}

func TestTable_AggregateFromWorkersWeightsByLocalCount(t *testing.T) {
	tbl := NewTable()
	w1 := tbl.RegisterWorker("worker-1", 9000)
	w2 := tbl.RegisterWorker("worker-2", 9000)
	w1.LocalImageStats["nginx"] = 0.2
	w2.LocalImageStats["nginx"] = 0.4

	tbl.RecordContainer("c1", "nginx", "worker-1")
	tbl.RecordContainer("c2", "nginx", "worker-2")
	tbl.RecordContainer("c3", "nginx", "worker-2")

	tbl.AggregateFromWorkers("avg_cpu")

	got := tbl.Verbose()["nginx"]["avg_cpu"]
	// (0.2*1 + 0.4*2) / 3 = 1.0/3
	assert.InDelta(t, 1.0/3.0, got, 1e-9)
}

func TestTable_HeartbeatUnknownWorker(t *testing.T) {
	tbl := NewTable()
	assert.False(t, tbl.Heartbeat("ghost:9000"))
}

func TestTable_StaleWorkers(t *testing.T) {
	tbl := NewTable()
	w := tbl.RegisterWorker("10.0.0.1:9000", 9000)
	w.LastHeartbeat = time.Now().Add(-time.Hour)
	tbl.RegisterWorker("10.0.0.2:9000", 9000)

	stale := tbl.StaleWorkers(time.Minute)

	assert.Equal(t, []string{"10.0.0.1:9000"}, stale)
	assert.True(t, tbl.Heartbeat("10.0.0.1:9000"))
	assert.Empty(t, tbl.StaleWorkers(time.Minute))
}

func TestTable_VerboseIsSnapshot(t *testing.T) {
	tbl := NewTable()
	tbl.PushMetadata("nginx", map[string]float64{"avg_cpu": 0.1})

	snap := tbl.Verbose()
	tbl.PushMetadata("nginx", map[string]float64{"avg_cpu": 0.9})

	assert.Equal(t, 0.1, snap["nginx"]["avg_cpu"])
}

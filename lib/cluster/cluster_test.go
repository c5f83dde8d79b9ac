package cluster

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/ValentinKolb/dbatch/lib/batch"
	"github.com/stretchr/testify/require"
)

func testTopology() *Topology {
	return &Topology{
		Name:              "test-cluster",
		Partitions:        64,
		ReplicationFactor: 2,
		Namespaces:        []string{"test"},
		Nodes: []NodeConfig{
			{Name: "A", Address: "127.0.0.1:3001", Rack: 1},
			{Name: "B", Address: "127.0.0.1:3002", Rack: 2},
			{Name: "C", Address: "127.0.0.1:3003", Rack: 1},
		},
	}
}

func testKeys(t *testing.T, n int) ([]*batch.Key, []int) {
	t.Helper()
	keys := make([]*batch.Key, n)
	indices := make([]int, n)
	for i := range keys {
		k, err := batch.NewKey("test", "set", fmt.Sprintf("key-%d", i))
		require.NoError(t, err)
		keys[i] = k
		indices[i] = i
	}
	return keys, indices
}

func policy(mode batch.ReplicaMode) *batch.Policy {
	p := batch.DefaultPolicy()
	p.Replica = mode
	return p
}

func TestReplicaTable(t *testing.T) {
	c, err := NewCluster(testTopology())
	require.NoError(t, err)
	other, err := NewCluster(testTopology())
	require.NoError(t, err)

	keys, _ := testKeys(t, 100)
	masters := map[string]int{}
	for _, k := range keys {
		replicas := c.Replicas(k.Digest)
		require.Len(t, replicas, 2)
		require.NotEqual(t, replicas[0].Name(), replicas[1].Name())

		same := other.Replicas(k.Digest)
		require.Equal(t, replicas[0].Name(), same[0].Name(), "replica table must be deterministic")
		masters[replicas[0].Name()]++
	}
	require.Len(t, masters, 3, "every node should master some partitions")
}

func TestAssignCompleteAndOrdered(t *testing.T) {
	c, err := NewCluster(testTopology())
	require.NoError(t, err)
	keys, indices := testKeys(t, 200)

	assignments, err := c.Assign(keys, indices, policy(batch.ReplicaSequence), 0, nil)
	require.NoError(t, err)

	var all []int
	seenNodes := map[string]bool{}
	for _, a := range assignments {
		require.False(t, seenNodes[a.Node.Name()], "one assignment per node")
		seenNodes[a.Node.Name()] = true
		require.True(t, sort.IntsAreSorted(a.KeyIndices))
		for _, idx := range a.KeyIndices {
			require.Equal(t, c.Replicas(keys[idx].Digest)[0].Name(), a.Node.Name())
		}
		all = append(all, a.KeyIndices...)
	}
	sort.Ints(all)
	require.Equal(t, indices, all)
	require.Equal(t, 0, assignments[0].KeyIndices[0], "assignments ordered by first key")

	again, err := c.Assign(keys, indices, policy(batch.ReplicaSequence), 0, nil)
	require.NoError(t, err)
	require.Equal(t, len(assignments), len(again))
	for i := range again {
		require.Equal(t, assignments[i].Node.Name(), again[i].Node.Name())
		require.Equal(t, assignments[i].KeyIndices, again[i].KeyIndices)
	}
}

func TestAssignSequenceWalksReplicas(t *testing.T) {
	c, err := NewCluster(testTopology())
	require.NoError(t, err)
	keys, _ := testKeys(t, 1)
	replicas := c.Replicas(keys[0].Digest)

	for seq, want := range []string{replicas[0].Name(), replicas[1].Name(), replicas[0].Name()} {
		a, err := c.Assign(keys, []int{0}, policy(batch.ReplicaSequence), seq, nil)
		require.NoError(t, err)
		require.Len(t, a, 1)
		require.Equal(t, want, a[0].Node.Name(), "sequence %d", seq)
	}
}

func TestAssignExcludesFailedNode(t *testing.T) {
	c, err := NewCluster(testTopology())
	require.NoError(t, err)
	keys, _ := testKeys(t, 1)
	replicas := c.Replicas(keys[0].Digest)

	// sequence 2 starts at the master again, exclusion moves to the prole
	a, err := c.Assign(keys, []int{0}, policy(batch.ReplicaSequence), 2, replicas[0])
	require.NoError(t, err)
	require.Equal(t, replicas[1].Name(), a[0].Node.Name())

	// the excluded node is kept if no other replica is active
	replicas[1].SetActive(false)
	a, err = c.Assign(keys, []int{0}, policy(batch.ReplicaSequence), 1, replicas[0])
	require.NoError(t, err)
	require.Equal(t, replicas[0].Name(), a[0].Node.Name())

	replicas[0].SetActive(false)
	_, err = c.Assign(keys, []int{0}, policy(batch.ReplicaSequence), 1, replicas[0])
	require.ErrorIs(t, err, batch.ErrNoNodes)
}

func TestAssignMasterModes(t *testing.T) {
	c, err := NewCluster(testTopology())
	require.NoError(t, err)
	keys, _ := testKeys(t, 1)
	replicas := c.Replicas(keys[0].Digest)

	for seq := 0; seq < 3; seq++ {
		a, err := c.Assign(keys, []int{0}, policy(batch.ReplicaMaster), seq, replicas[0])
		require.NoError(t, err)
		require.Equal(t, replicas[0].Name(), a[0].Node.Name())
	}

	a, err := c.Assign(keys, []int{0}, policy(batch.ReplicaMasterProles), 0, nil)
	require.NoError(t, err)
	b, err := c.Assign(keys, []int{0}, policy(batch.ReplicaMasterProles), 1, nil)
	require.NoError(t, err)
	require.NotEqual(t, a[0].Node.Name(), b[0].Node.Name())

	replicas[0].SetActive(false)
	_, err = c.Assign(keys, []int{0}, policy(batch.ReplicaMaster), 0, nil)
	require.ErrorIs(t, err, batch.ErrNoNodes)

	a, err = c.Assign(keys, []int{0}, policy(batch.ReplicaMasterProles), 0, nil)
	require.NoError(t, err)
	require.Equal(t, replicas[1].Name(), a[0].Node.Name())
}

func TestAssignPreferRack(t *testing.T) {
	c, err := NewCluster(testTopology())
	require.NoError(t, err)
	keys, indices := testKeys(t, 50)

	p := policy(batch.ReplicaPreferRack)
	p.RackID = 2
	assignments, err := c.Assign(keys, indices, p, 0, nil)
	require.NoError(t, err)

	for _, a := range assignments {
		for _, idx := range a.KeyIndices {
			onRack := false
			for _, r := range c.Replicas(keys[idx].Digest) {
				if r.Rack() == 2 {
					onRack = true
				}
			}
			if onRack {
				require.Equal(t, "B", a.Node.Name(), "key %d has a replica on rack 2", idx)
			}
		}
	}
}

func TestAssignErrors(t *testing.T) {
	c, err := NewCluster(testTopology())
	require.NoError(t, err)

	k, err := batch.NewKey("unknown", "set", "x")
	require.NoError(t, err)
	_, err = c.Assign([]*batch.Key{k}, []int{0}, nil, 0, nil)
	require.ErrorIs(t, err, batch.ErrInvalidNamespace)

	_, err = c.Assign([]*batch.Key{nil}, []int{0}, nil, 0, nil)
	var batchErr *batch.Error
	require.ErrorAs(t, err, &batchErr)
	require.Equal(t, batch.ResultClientInvalidArgument, batchErr.Code)
}

func TestUpdateKeepsNodeState(t *testing.T) {
	c, err := NewCluster(testTopology())
	require.NoError(t, err)
	require.NoError(t, c.SetActive("B", false))
	require.Error(t, c.SetActive("Z", false))

	next := testTopology()
	next.Nodes = append(next.Nodes, NodeConfig{Name: "D", Address: "127.0.0.1:3004"})
	require.NoError(t, c.Update(next))

	b, ok := c.Node("B")
	require.True(t, ok)
	require.False(t, b.IsActive())
	require.Len(t, c.Nodes(), 4)
}

func TestLoadTopology(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topology.yaml")
	data := `
name: demo
replication_factor: 5
namespaces: [test, cache]
nodes:
  - name: n1
    address: 127.0.0.1:4001
    rack: 1
  - name: n2
    address: 127.0.0.1:4002
    inactive: true
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	topo, err := LoadTopology(path)
	require.NoError(t, err)
	require.Equal(t, "demo", topo.Name)
	require.Equal(t, uint32(DefaultPartitions), topo.Partitions)
	require.Equal(t, 2, topo.ReplicationFactor, "replication factor is capped by node count")
	require.Equal(t, []string{"test", "cache"}, topo.Namespaces)

	c, err := NewCluster(topo)
	require.NoError(t, err)
	n2, _ := c.Node("n2")
	require.False(t, n2.IsActive())

	_, err = ParseTopology([]byte("name: empty\nnamespaces: [test]\n"))
	require.Error(t, err)
	_, err = ParseTopology([]byte("namespaces: [test]\nnodes:\n  - {name: a, address: x}\n  - {name: a, address: y}\n"))
	require.Error(t, err)
}

func TestNewStats(t *testing.T) {
	s := NewStats([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	require.InDelta(t, 5.0, s.Mean, 1e-9)
	require.InDelta(t, 2.0, s.StdDeviation, 1e-9)
	require.Equal(t, 2.0, s.Min)
	require.Equal(t, 9.0, s.Max)
	require.InDelta(t, 2.0/9.0, s.MinMaxRatio, 1e-9)

	require.Equal(t, Stats{}, NewStats(nil))
}

func TestDistribution(t *testing.T) {
	c, err := NewCluster(testTopology())
	require.NoError(t, err)

	d := c.Distribution()
	require.Len(t, d.Masters, 3)

	total := 0
	for _, n := range d.Masters {
		total += n
	}
	require.Equal(t, 64, total, "every partition has exactly one master")
	require.Greater(t, d.Quality, 0.0)
	require.LessOrEqual(t, d.Quality, 1.0)

	single := testTopology()
	single.Nodes = single.Nodes[:1]
	c, err = NewCluster(single)
	require.NoError(t, err)
	d = c.Distribution()
	require.Equal(t, map[string]int{"A": 64}, d.Masters)
	require.InDelta(t, 1.0, d.Quality, 1e-9)
}

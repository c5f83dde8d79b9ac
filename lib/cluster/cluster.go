package cluster

import (
	"fmt"
	"sync/atomic"

	"github.com/ValentinKolb/dbatch/lib/batch"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("cluster")

// --------------------------------------------------------------------------
// Cluster
// --------------------------------------------------------------------------

// snapshot is an immutable view of the cluster. Node active flags are the
// only state that changes without a new snapshot.
type snapshot struct {
	topology   *Topology
	nodes      []*Node
	byName     map[string]*Node
	namespaces map[string]struct{}
	// replicas[p] lists the replicas of partition p, master first
	replicas [][]*Node
}

// Cluster holds the current topology and implements batch.Partitioner. It is
// safe for concurrent use; a call always works on one snapshot.
type Cluster struct {
	state atomic.Pointer[snapshot]
}

// NewCluster creates a cluster from a topology.
func NewCluster(t *Topology) (*Cluster, error) {
	c := &Cluster{}
	if err := c.Update(t); err != nil {
		return nil, err
	}
	return c, nil
}

// Update replaces the topology. Nodes that keep name and address keep their
// active flag.
func (c *Cluster) Update(t *Topology) error {
	if err := t.Validate(); err != nil {
		return err
	}

	old := c.state.Load()
	s := &snapshot{
		topology:   t,
		nodes:      make([]*Node, len(t.Nodes)),
		byName:     make(map[string]*Node, len(t.Nodes)),
		namespaces: make(map[string]struct{}, len(t.Namespaces)),
		replicas:   make([][]*Node, t.Partitions),
	}

	names := make([]string, len(t.Nodes))
	for i, cfg := range t.Nodes {
		var n *Node
		if old != nil {
			if prev, ok := old.byName[cfg.Name]; ok && prev.address == cfg.Address && prev.rack == cfg.Rack {
				n = prev
			}
		}
		if n == nil {
			n = NewNode(cfg.Name, cfg.Address, cfg.Rack)
			n.SetActive(!cfg.Inactive)
		}
		s.nodes[i] = n
		s.byName[n.name] = n
		names[i] = n.name
	}
	for _, ns := range t.Namespaces {
		s.namespaces[ns] = struct{}{}
	}
	for p := uint32(0); p < t.Partitions; p++ {
		replicaNames := replicasFor(p, names, t.ReplicationFactor, t.Name)
		replicas := make([]*Node, len(replicaNames))
		for i, name := range replicaNames {
			replicas[i] = s.byName[name]
		}
		s.replicas[p] = replicas
	}

	c.state.Store(s)
	Logger.Infof("topology updated: %s", t)
	return nil
}

// Topology returns the current topology.
func (c *Cluster) Topology() *Topology {
	return c.state.Load().topology
}

// Nodes returns all nodes of the current topology.
func (c *Cluster) Nodes() []*Node {
	s := c.state.Load()
	out := make([]*Node, len(s.nodes))
	copy(out, s.nodes)
	return out
}

// Node returns the node with the given name.
func (c *Cluster) Node(name string) (*Node, bool) {
	n, ok := c.state.Load().byName[name]
	return n, ok
}

// SetActive marks the named node active or inactive.
func (c *Cluster) SetActive(name string, active bool) error {
	n, ok := c.Node(name)
	if !ok {
		return fmt.Errorf("unknown node %s", name)
	}
	if n.IsActive() != active {
		Logger.Infof("node %s is now active=%t", name, active)
	}
	n.SetActive(active)
	return nil
}

// Replicas returns the replica list of the partition the digest belongs to.
func (c *Cluster) Replicas(digest []byte) []*Node {
	s := c.state.Load()
	replicas := s.replicas[partitionOf(digest, s.topology.Partitions)]
	out := make([]*Node, len(replicas))
	copy(out, replicas)
	return out
}

// --------------------------------------------------------------------------
// Partitioner (docu see batch.Partitioner)
// --------------------------------------------------------------------------

// Assign groups indices by the node chosen for each key. Assignments are
// ordered by the first key of each node; indices keep their input order.
func (c *Cluster) Assign(keys []*batch.Key, indices []int, policy *batch.Policy, sequence int, exclude batch.Node) ([]*batch.Assignment, error) {
	s := c.state.Load()
	if policy == nil {
		policy = batch.DefaultPolicy()
	}
	excluded := ""
	if exclude != nil {
		excluded = exclude.Name()
	}

	var out []*batch.Assignment
	byNode := make(map[string]*batch.Assignment)

	for _, idx := range indices {
		if idx < 0 || idx >= len(keys) || keys[idx] == nil {
			return nil, batch.NewError(batch.ResultClientInvalidArgument, fmt.Sprintf("no key at index %d", idx))
		}
		key := keys[idx]
		if _, ok := s.namespaces[key.Namespace]; !ok {
			return nil, fmt.Errorf("%w: %s", batch.ErrInvalidNamespace, key.Namespace)
		}

		partition := partitionOf(key.Digest, s.topology.Partitions)
		node, err := selectNode(s.replicas[partition], policy, partition, sequence, excluded)
		if err != nil {
			return nil, fmt.Errorf("partition %d of key %d: %w", partition, idx, err)
		}

		a, ok := byNode[node.name]
		if !ok {
			a = &batch.Assignment{Node: node}
			byNode[node.name] = a
			out = append(out, a)
		}
		a.KeyIndices = append(a.KeyIndices, idx)
	}
	return out, nil
}

// selectNode picks the replica serving a read of partition for the given
// attempt sequence.
func selectNode(replicas []*Node, policy *batch.Policy, partition uint32, sequence int, excluded string) (*Node, error) {
	n := len(replicas)
	if n == 0 {
		return nil, batch.ErrNoNodes
	}
	if sequence < 0 {
		sequence = 0
	}

	switch policy.Replica {
	case batch.ReplicaMaster:
		if replicas[0].IsActive() {
			return replicas[0], nil
		}
		return nil, fmt.Errorf("%w: master %s is not active", batch.ErrNoNodes, replicas[0].name)

	case batch.ReplicaMasterProles:
		start := (int(partition%uint32(n)) + sequence) % n
		for i := 0; i < n; i++ {
			if r := replicas[(start+i)%n]; r.IsActive() {
				return r, nil
			}
		}
		return nil, batch.ErrNoNodes

	case batch.ReplicaPreferRack:
		for i := 0; i < n; i++ {
			r := replicas[(sequence+i)%n]
			if r.IsActive() && r.name != excluded && r.rack == policy.RackID {
				return r, nil
			}
		}
		return sequenceNode(replicas, sequence, excluded)

	default:
		return sequenceNode(replicas, sequence, excluded)
	}
}

// sequenceNode walks the replica list starting at sequence and returns the
// first active node that is not excluded. The excluded node is returned if
// it is the only active replica.
func sequenceNode(replicas []*Node, sequence int, excluded string) (*Node, error) {
	n := len(replicas)
	var fallback *Node
	for i := 0; i < n; i++ {
		r := replicas[(sequence+i)%n]
		if !r.IsActive() {
			continue
		}
		if r.name == excluded {
			fallback = r
			continue
		}
		return r, nil
	}
	if fallback != nil {
		return fallback, nil
	}
	return nil, batch.ErrNoNodes
}

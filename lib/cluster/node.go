package cluster

import (
	"fmt"
	"sync/atomic"
)

// Node is a member of the cluster. It implements batch.Node. Only the active
// flag changes after construction.
type Node struct {
	name    string
	address string
	rack    int
	active  atomic.Bool
}

// NewNode creates an active node.
func NewNode(name, address string, rack int) *Node {
	n := &Node{
		name:    name,
		address: address,
		rack:    rack,
	}
	n.active.Store(true)
	return n
}

// Name returns the unique node name.
func (n *Node) Name() string { return n.name }

// Address returns the transport endpoint of the node.
func (n *Node) Address() string { return n.address }

// Rack returns the rack id of the node.
func (n *Node) Rack() int { return n.rack }

// IsActive reports whether the node may be chosen for requests.
func (n *Node) IsActive() bool { return n.active.Load() }

// SetActive marks the node as active or inactive.
func (n *Node) SetActive(active bool) { n.active.Store(active) }

func (n *Node) String() string {
	state := "active"
	if !n.IsActive() {
		state = "inactive"
	}
	return fmt.Sprintf("%s(%s, rack %d, %s)", n.name, n.address, n.rack, state)
}

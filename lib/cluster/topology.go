package cluster

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
)

// DefaultPartitions is the partition count used when a topology sets none.
const DefaultPartitions = 4096

// NodeConfig describes one node of a topology file.
type NodeConfig struct {
	Name     string `yaml:"name"`
	Address  string `yaml:"address"`
	Rack     int    `yaml:"rack"`
	Inactive bool   `yaml:"inactive"`
}

// Topology is the static layout of a cluster: its nodes, namespaces and how
// many replicas each partition has.
type Topology struct {
	Name              string       `yaml:"name"`
	Partitions        uint32       `yaml:"partitions"`
	ReplicationFactor int          `yaml:"replication_factor"`
	Namespaces        []string     `yaml:"namespaces"`
	Nodes             []NodeConfig `yaml:"nodes"`
}

// LoadTopology reads a topology from a YAML file.
func LoadTopology(path string) (*Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read topology file: %w", err)
	}
	return ParseTopology(data)
}

// ParseTopology parses a YAML topology and applies defaults.
func ParseTopology(data []byte) (*Topology, error) {
	var t Topology
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse topology: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate checks the topology and fills in defaults.
func (t *Topology) Validate() error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("topology %q has no nodes", t.Name)
	}
	if len(t.Namespaces) == 0 {
		return fmt.Errorf("topology %q has no namespaces", t.Name)
	}
	if t.Partitions == 0 {
		t.Partitions = DefaultPartitions
	}
	if t.ReplicationFactor <= 0 {
		t.ReplicationFactor = 1
	}
	if t.ReplicationFactor > len(t.Nodes) {
		t.ReplicationFactor = len(t.Nodes)
	}

	seen := make(map[string]struct{}, len(t.Nodes))
	for i, n := range t.Nodes {
		if n.Name == "" {
			return fmt.Errorf("node %d has no name", i)
		}
		if n.Address == "" {
			return fmt.Errorf("node %s has no address", n.Name)
		}
		if _, ok := seen[n.Name]; ok {
			return fmt.Errorf("duplicate node name %s", n.Name)
		}
		seen[n.Name] = struct{}{}
	}
	return nil
}

// String returns a one line summary of the topology.
func (t *Topology) String() string {
	names := make([]string, len(t.Nodes))
	for i, n := range t.Nodes {
		names[i] = n.Name
	}
	return fmt.Sprintf("cluster %q: %d nodes [%s], %d partitions, rf %d, namespaces [%s]",
		t.Name, len(t.Nodes), strings.Join(names, ","), t.Partitions, t.ReplicationFactor, strings.Join(t.Namespaces, ","))
}

package batch

import (
	"fmt"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Replica Mode
// --------------------------------------------------------------------------

// ReplicaMode selects which replica of a partition serves a read.
type ReplicaMode uint8

const (
	ReplicaMaster       ReplicaMode = iota // Always the master replica
	ReplicaMasterProles                    // Spread over master and proles by partition
	ReplicaSequence                        // Follow the replica list, advancing on each retry
	ReplicaPreferRack                      // Prefer replicas on Policy.RackID, else like ReplicaSequence
)

// String returns the string representation of a ReplicaMode.
func (m ReplicaMode) String() string {
	switch m {
	case ReplicaMaster:
		return "master"
	case ReplicaMasterProles:
		return "master-proles"
	case ReplicaSequence:
		return "sequence"
	case ReplicaPreferRack:
		return "prefer-rack"
	default:
		return "unknown"
	}
}

// ParseReplicaMode converts a name as returned by String back to a ReplicaMode.
func ParseReplicaMode(s string) (ReplicaMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "master":
		return ReplicaMaster, nil
	case "master-proles", "master_proles":
		return ReplicaMasterProles, nil
	case "sequence":
		return ReplicaSequence, nil
	case "prefer-rack", "prefer_rack":
		return ReplicaPreferRack, nil
	default:
		return 0, fmt.Errorf("invalid replica mode: %s. must be one of master, master-proles, sequence, prefer-rack", s)
	}
}

// --------------------------------------------------------------------------
// Read Attributes
// --------------------------------------------------------------------------

// ReadAttr are the per key read flags sent to the node.
type ReadAttr uint8

const (
	ReadAttrRead      ReadAttr = 1 << 0 // Read the record
	ReadAttrGetAll    ReadAttr = 1 << 1 // Return all bins
	ReadAttrNoBinData ReadAttr = 1 << 5 // Return no bin data, header or existence only
)

// --------------------------------------------------------------------------
// Policy
// --------------------------------------------------------------------------

// Policy controls routing, timeouts and retries of one batch call.
type Policy struct {
	// Replica selects the replica per key and whether failed keys may move to
	// another node on retry.
	Replica ReplicaMode
	// RackID is the rack of this client, used by ReplicaPreferRack.
	RackID int

	// TotalTimeout bounds the whole call including retries. Zero means no limit.
	TotalTimeout time.Duration
	// SocketTimeout bounds a single node request. Zero means only TotalTimeout applies.
	SocketTimeout time.Duration

	// MaxRetries is the number of retries per node command after the first attempt.
	MaxRetries int
	// SleepBetweenRetries is the delay before a command is resent to the same node.
	SleepBetweenRetries time.Duration
}

// DefaultPolicy returns the policy used when a call passes nil.
func DefaultPolicy() *Policy {
	return &Policy{
		Replica:             ReplicaSequence,
		TotalTimeout:        time.Second,
		SocketTimeout:       30 * time.Second,
		MaxRetries:          2,
		SleepBetweenRetries: 0,
	}
}

// AllowsRepartition reports whether keys of a failed node may be
// re-partitioned over other replicas. For master and master-proles the key to
// node mapping does not depend on the attempt, so re-partitioning would only
// reproduce the failed assignment.
func (p *Policy) AllowsRepartition() bool {
	return p.Replica == ReplicaSequence || p.Replica == ReplicaPreferRack
}

// String returns a formatted one line summary of the policy.
func (p *Policy) String() string {
	return fmt.Sprintf("replica=%s rack=%d total=%s socket=%s retries=%d sleep=%s",
		p.Replica, p.RackID, p.TotalTimeout, p.SocketTimeout, p.MaxRetries, p.SleepBetweenRetries)
}

package cluster

import (
	"encoding/binary"
	"sort"
	"strconv"

	"golang.org/x/crypto/blake2b"
)

// replicasFor returns up to k node names for partition, ordered by descending
// rendezvous score. seed (the cluster name) keeps tables of different
// clusters independent.
func replicasFor(partition uint32, names []string, k int, seed string) []string {
	if k <= 0 || len(names) == 0 {
		return nil
	}
	if k > len(names) {
		k = len(names)
	}

	type entry struct {
		score uint64
		name  string
	}
	key := []byte("partition:" + strconv.FormatUint(uint64(partition), 10))

	scored := make([]entry, len(names))
	for i, name := range names {
		scored[i] = entry{score: hrwScore(key, name, seed), name: name}
	}
	sort.Slice(scored, func(a, b int) bool {
		if scored[a].score == scored[b].score {
			return scored[a].name < scored[b].name
		}
		return scored[a].score > scored[b].score
	})

	out := make([]string, k)
	for i := range out {
		out[i] = scored[i].name
	}
	return out
}

func hrwScore(key []byte, name string, seed string) uint64 {
	h, _ := blake2b.New(8, nil)
	if seed != "" {
		h.Write([]byte(seed))
		h.Write([]byte{0})
	}
	h.Write(key)
	h.Write([]byte{0})
	h.Write([]byte(name))
	return binary.BigEndian.Uint64(h.Sum(nil))
}

// partitionOf maps a record digest to its partition.
func partitionOf(digest []byte, partitions uint32) uint32 {
	if len(digest) < 4 || partitions == 0 {
		return 0
	}
	return binary.LittleEndian.Uint32(digest[:4]) % partitions
}

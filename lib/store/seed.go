package store

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/dbatch/lib/batch"
	"github.com/goccy/go-yaml"
)

// SeedRecord is one record of a seed file.
type SeedRecord struct {
	Set  string            `yaml:"set"`
	Key  string            `yaml:"key"`
	TTL  uint32            `yaml:"ttl"`
	Bins map[string]string `yaml:"bins"`
}

// Seed maps namespaces to the records loaded into them.
//
//	namespaces:
//	  test:
//	    - set: users
//	      key: alice
//	      bins: {name: Alice, age: "30"}
type Seed struct {
	Namespaces map[string][]SeedRecord `yaml:"namespaces"`
}

// ParseSeed parses a YAML seed document.
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed: %w", err)
	}
	return &seed, nil
}

// LoadSeed reads the seed file at path into s and returns the number of
// records written. Namespaces unknown to s are an error.
func LoadSeed(s IStore, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read seed file: %w", err)
	}
	seed, err := ParseSeed(data)
	if err != nil {
		return 0, err
	}
	return seed.Apply(s)
}

// Apply writes all records of the seed into s.
func (seed *Seed) Apply(s IStore) (int, error) {
	count := 0
	for ns, records := range seed.Namespaces {
		if !s.HasNamespace(ns) {
			return count, NewError(RetCNamespaceNotFound, fmt.Sprintf("seed namespace %s is not served", ns))
		}
		for _, r := range records {
			digest, err := batch.ComputeDigest(r.Set, r.Key)
			if err != nil {
				return count, err
			}
			bins := make(map[string][]byte, len(r.Bins))
			for name, value := range r.Bins {
				bins[name] = []byte(value)
			}
			if _, err := s.Put(ns, digest, r.Set, bins, r.TTL); err != nil {
				return count, fmt.Errorf("failed to seed %s/%s/%s: %w", ns, r.Set, r.Key, err)
			}
			count++
		}
	}
	return count, nil
}

package lstore

import (
	"bytes"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dbatch/lib/batch"
	"github.com/ValentinKolb/dbatch/lib/store"
	"github.com/zhangyunhao116/skipmap"
)

type recordMap = skipmap.FuncMap[[]byte, *store.Record]

type storeImpl struct {
	namespaces map[string]*recordMap
	// serializes writes, generations only grow
	writeMu sync.Mutex
	writes  atomic.Uint64
	now     func() time.Time
}

// NewLocalStore creates an in-memory store serving the given namespaces.
// Each namespace is an ordered skip list keyed by digest, so reads never
// take a lock.
func NewLocalStore(namespaces ...string) store.IStore {
	return newStore(time.Now, namespaces...)
}

func newStore(now func() time.Time, namespaces ...string) *storeImpl {
	s := &storeImpl{
		namespaces: make(map[string]*recordMap, len(namespaces)),
		now:        now,
	}
	for _, ns := range namespaces {
		s.namespaces[ns] = skipmap.NewFunc[[]byte, *store.Record](func(a, b []byte) bool {
			return bytes.Compare(a, b) < 0
		})
	}
	return s
}

func (s *storeImpl) namespace(ns string) (*recordMap, error) {
	m, ok := s.namespaces[ns]
	if !ok {
		return nil, store.NewError(store.RetCNamespaceNotFound, fmt.Sprintf("namespace %s not found", ns))
	}
	return m, nil
}

func checkDigest(digest []byte) error {
	if len(digest) != batch.DigestSize {
		return store.NewError(store.RetCInvalidArgument, fmt.Sprintf("digest must be %d bytes, got %d", batch.DigestSize, len(digest)))
	}
	return nil
}

// expired reports whether rec is past its expiration.
func (s *storeImpl) expired(rec *store.Record) bool {
	return rec.Expiration != 0 && int64(rec.Expiration) <= s.now().Unix()
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Put(namespace string, digest []byte, setName string, bins map[string][]byte, ttl uint32) (*store.Record, error) {
	m, err := s.namespace(namespace)
	if err != nil {
		return nil, err
	}
	if err := checkDigest(digest); err != nil {
		return nil, err
	}

	key := make([]byte, len(digest))
	copy(key, digest)

	rec := &store.Record{
		SetName: setName,
		Bins:    bins,
	}
	if ttl > 0 {
		rec.Expiration = uint32(s.now().Unix()) + ttl
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	rec.Generation = 1
	if old, ok := m.Load(key); ok && !s.expired(old) {
		rec.Generation = old.Generation + 1
	}
	m.Store(key, rec)
	s.writes.Add(1)
	return rec, nil
}

func (s *storeImpl) Get(namespace string, digest []byte) (*store.Record, bool, error) {
	m, err := s.namespace(namespace)
	if err != nil {
		return nil, false, err
	}
	if err := checkDigest(digest); err != nil {
		return nil, false, err
	}
	rec, ok := m.Load(digest)
	if !ok || s.expired(rec) {
		return nil, false, nil
	}
	return rec, true, nil
}

func (s *storeImpl) Has(namespace string, digest []byte) (bool, error) {
	_, ok, err := s.Get(namespace, digest)
	return ok, err
}

func (s *storeImpl) Delete(namespace string, digest []byte) error {
	m, err := s.namespace(namespace)
	if err != nil {
		return err
	}
	if err := checkDigest(digest); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	m.Delete(digest)
	s.writes.Add(1)
	return nil
}

func (s *storeImpl) HasNamespace(namespace string) bool {
	_, ok := s.namespaces[namespace]
	return ok
}

func (s *storeImpl) Range(namespace string, fn func(digest []byte, rec *store.Record) bool) error {
	m, err := s.namespace(namespace)
	if err != nil {
		return err
	}
	m.Range(func(digest []byte, rec *store.Record) bool {
		if s.expired(rec) {
			return true
		}
		return fn(digest, rec)
	})
	return nil
}

func (s *storeImpl) GetInfo() store.Info {
	info := store.Info{
		Namespaces: make(map[string]int, len(s.namespaces)),
		Writes:     s.writes.Load(),
	}
	for ns, m := range s.namespaces {
		info.Namespaces[ns] = m.Len()
	}
	return info
}

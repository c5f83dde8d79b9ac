package batch

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// DigestSize is the length in bytes of a record digest.
const DigestSize = 20

// --------------------------------------------------------------------------
// Key
// --------------------------------------------------------------------------

// Key identifies one record in the cluster. The digest is the identifier the
// nodes work with, namespace and set are carried along for routing and
// error reporting. Keys must not be modified after construction.
type Key struct {
	Namespace string
	SetName   string
	UserKey   string
	Digest    []byte
}

// NewKey creates a key and computes its digest from set name and user key.
func NewKey(namespace, setName, userKey string) (*Key, error) {
	if namespace == "" {
		return nil, NewError(ResultParameterError, "namespace is required")
	}
	digest, err := ComputeDigest(setName, userKey)
	if err != nil {
		return nil, err
	}
	return &Key{
		Namespace: namespace,
		SetName:   setName,
		UserKey:   userKey,
		Digest:    digest,
	}, nil
}

// NewKeyWithDigest creates a key from a digest computed elsewhere.
func NewKeyWithDigest(namespace, setName string, digest []byte) (*Key, error) {
	if namespace == "" {
		return nil, NewError(ResultParameterError, "namespace is required")
	}
	if len(digest) != DigestSize {
		return nil, NewError(ResultParameterError, fmt.Sprintf("digest must be %d bytes, got %d", DigestSize, len(digest)))
	}
	d := make([]byte, DigestSize)
	copy(d, digest)
	return &Key{
		Namespace: namespace,
		SetName:   setName,
		Digest:    d,
	}, nil
}

// ComputeDigest returns the 20 byte blake2b digest of setName and userKey.
// The set name is part of the digest, the namespace is not.
func ComputeDigest(setName, userKey string) ([]byte, error) {
	h, err := blake2b.New(DigestSize, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create digest hash: %w", err)
	}
	h.Write([]byte(setName))
	h.Write([]byte{0})
	h.Write([]byte(userKey))
	return h.Sum(nil), nil
}

// String returns namespace, set and the hex digest of the key.
func (k *Key) String() string {
	if k.UserKey != "" {
		return fmt.Sprintf("%s:%s:%s:%s", k.Namespace, k.SetName, k.UserKey, hex.EncodeToString(k.Digest))
	}
	return fmt.Sprintf("%s:%s::%s", k.Namespace, k.SetName, hex.EncodeToString(k.Digest))
}

// --------------------------------------------------------------------------
// Records
// --------------------------------------------------------------------------

// Record is the result of a read. Bins maps bin names to raw values.
type Record struct {
	Bins       map[string][]byte
	Generation uint32
	Expiration uint32
}

// BatchRead is a single read request of a read-list call. Record is set by the
// call if the record exists; it stays nil otherwise.
//
// BinNames selects bins by name. If ReadAllBins is set all bins are read, if
// neither is set only the record header (generation, expiration) is read.
type BatchRead struct {
	Key         *Key
	BinNames    []string
	ReadAllBins bool
	Record      *Record
}

// NewBatchRead creates a read request for the named bins (all bins if none are given).
func NewBatchRead(key *Key, binNames ...string) *BatchRead {
	return &BatchRead{
		Key:         key,
		BinNames:    binNames,
		ReadAllBins: len(binNames) == 0,
	}
}

// readAttr returns the read flags for this request.
func (r *BatchRead) readAttr() ReadAttr {
	switch {
	case r.ReadAllBins:
		return ReadAttrRead | ReadAttrGetAll
	case len(r.BinNames) > 0:
		return ReadAttrRead
	default:
		return ReadAttrRead | ReadAttrNoBinData
	}
}

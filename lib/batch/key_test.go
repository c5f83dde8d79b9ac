package batch

import (
	"errors"
	"fmt"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewKeyDigest(t *testing.T) {
	a, err := NewKey("test", "users", "alice")
	require.NoError(t, err)
	require.Len(t, a.Digest, DigestSize)

	same, err := NewKey("other", "users", "alice")
	require.NoError(t, err)
	require.Equal(t, a.Digest, same.Digest, "namespace is not part of the digest")

	otherSet, err := NewKey("test", "admins", "alice")
	require.NoError(t, err)
	require.NotEqual(t, a.Digest, otherSet.Digest)

	// set and user key are separated
	shifted, err := NewKey("test", "usersa", "lice")
	require.NoError(t, err)
	require.NotEqual(t, a.Digest, shifted.Digest)

	_, err = NewKey("", "users", "alice")
	require.Error(t, err)
}

func TestNewKeyWithDigest(t *testing.T) {
	digest := make([]byte, DigestSize)
	digest[0] = 7
	k, err := NewKeyWithDigest("test", "", digest)
	require.NoError(t, err)
	digest[0] = 8
	require.Equal(t, byte(7), k.Digest[0], "digest must be copied")

	_, err = NewKeyWithDigest("test", "", []byte{1, 2, 3})
	var batchErr *Error
	require.ErrorAs(t, err, &batchErr)
	require.Equal(t, ResultParameterError, batchErr.Code)
}

func TestParseReplicaMode(t *testing.T) {
	for _, mode := range []ReplicaMode{ReplicaMaster, ReplicaMasterProles, ReplicaSequence, ReplicaPreferRack} {
		parsed, err := ParseReplicaMode(mode.String())
		require.NoError(t, err)
		require.Equal(t, mode, parsed)
	}
	_, err := ParseReplicaMode("random")
	require.Error(t, err)

	require.False(t, (&Policy{Replica: ReplicaMaster}).AllowsRepartition())
	require.False(t, (&Policy{Replica: ReplicaMasterProles}).AllowsRepartition())
	require.True(t, (&Policy{Replica: ReplicaSequence}).AllowsRepartition())
	require.True(t, (&Policy{Replica: ReplicaPreferRack}).AllowsRepartition())
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{ErrConnection, true},
		{fmt.Errorf("send: %w", ErrNodeTimeout), true},
		{ErrNodeDown, true},
		{io.EOF, true},
		{&net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{ErrTotalTimeout, false},
		{fmt.Errorf("%w: %w", ErrTotalTimeout, ErrConnection), false},
		{&UnexpectedKeyError{}, false},
		{&UnrequestedDataError{}, false},
		{&ParseError{Msg: "short"}, false},
		{NewError(ResultNotAuthenticated, "auth"), false},
		{NewError(ResultTimeout, "slow"), true},
		{errBoom, false},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, IsRetryable(tt.err), "%v", tt.err)
	}
}

func TestErrorMessages(t *testing.T) {
	err := &UnexpectedKeyError{Namespace: "test", Digest: []byte{0xab, 0x01}, Index: 3}
	require.Equal(t, "unexpected batch key returned: test,ab01,3", err.Error())

	batchErr := &Error{Code: ResultBatchQueuesFull, Msg: "busy", Node: "A"}
	require.Equal(t, "BatchError (code BatchQueuesFull, node A): busy", batchErr.Error())
}

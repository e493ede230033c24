package nonce_test

import (
	"context"
	"sort"
	"sync"
	"testing"

	"code.equilab.io/gateway/logging"
	"code.equilab.io/gateway/nonce"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubNonceSource struct {
	nonces map[string]uint64
	calls  int
}

func (s *stubNonceSource) AccountNonce(_ context.Context, address string) (uint64, error) {
	s.calls++
	return s.nonces[address], nil
}

func getTestRegistry(t *testing.T) (*nonce.Registry, *stubNonceSource) {
	t.Helper()
	src := &stubNonceSource{nonces: map[string]uint64{"alice": 42, "bob": 0}}
	return nonce.NewRegistry(logging.NewTestLogger(), src), src
}

func TestRegistry(t *testing.T) {
	t.Run("Allocate before initialise fails", testAllocateUninitialised)
	t.Run("Allocate returns strictly increasing values", testAllocateSequence)
	t.Run("Ledger is asked exactly once per address", testLedgerAskedOnce)
	t.Run("Concurrent allocations never collide", testConcurrentAllocate)
	t.Run("Peek does not advance", testPeek)
}

func testAllocateUninitialised(t *testing.T) {
	reg, _ := getTestRegistry(t)
	_, err := reg.Allocate("alice")
	assert.ErrorIs(t, err, nonce.ErrNonceNotFound)
}

func testAllocateSequence(t *testing.T) {
	reg, _ := getTestRegistry(t)
	require.NoError(t, reg.Initialise(context.Background(), "alice"))

	for want := uint64(42); want < 47; want++ {
		got, err := reg.Allocate("alice")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func testLedgerAskedOnce(t *testing.T) {
	reg, src := getTestRegistry(t)
	require.NoError(t, reg.Initialise(context.Background(), "alice"))
	assert.Error(t, reg.Initialise(context.Background(), "alice"))
	assert.Equal(t, 1, src.calls)
}

func testConcurrentAllocate(t *testing.T) {
	reg, _ := getTestRegistry(t)
	require.NoError(t, reg.Initialise(context.Background(), "bob"))

	const n = 100
	got := make([]uint64, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			seq, err := reg.Allocate("bob")
			require.NoError(t, err)
			got[i] = seq
		}(i)
	}
	wg.Wait()

	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	for i := 0; i < n; i++ {
		assert.Equal(t, uint64(i), got[i])
	}

	next, ok := reg.Peek("bob")
	require.True(t, ok)
	assert.Equal(t, uint64(n), next)
}

func testPeek(t *testing.T) {
	reg, _ := getTestRegistry(t)
	_, ok := reg.Peek("alice")
	assert.False(t, ok)

	require.NoError(t, reg.Initialise(context.Background(), "alice"))
	next, ok := reg.Peek("alice")
	require.True(t, ok)
	assert.Equal(t, uint64(42), next)

	next2, _ := reg.Peek("alice")
	assert.Equal(t, next, next2)
}

package nonce

import (
	"context"
	"sync"

	"code.equilab.io/gateway/logging"

	"github.com/pkg/errors"
)

const namedLogger = "nonce"

// ErrNonceNotFound is returned when allocating for an address that was never
// initialised against the ledger.
var ErrNonceNotFound = errors.New("nonce not found for address")

// NonceSource reports the current on-chain sequence number of an account.
//
//go:generate go run github.com/golang/mock/mockgen -destination mocks/nonce_source_mock.go -package mocks code.equilab.io/gateway/nonce NonceSource
type NonceSource interface {
	AccountNonce(ctx context.Context, address string) (uint64, error)
}

// Registry owns the next unused sequence number of every local signing
// address. Each address is read from the ledger exactly once, at
// initialisation; from then on the registry is the only writer. Asking the
// ledger again would desynchronise the counter against our own in-flight
// submissions.
type Registry struct {
	log    *logging.Logger
	source NonceSource

	mu   sync.Mutex
	seqs map[string]uint64
}

// NewRegistry creates a registry reading initial sequence numbers from the
// given source.
func NewRegistry(log *logging.Logger, source NonceSource) *Registry {
	return &Registry{
		log:    log.Named(namedLogger),
		source: source,
		seqs:   map[string]uint64{},
	}
}

// Initialise reads the address's current on-chain sequence number and stores
// it. Must be called once per signing address before the first Allocate.
// Re-initialising an address is refused to protect in-flight allocations.
func (r *Registry) Initialise(ctx context.Context, address string) error {
	r.mu.Lock()
	_, ok := r.seqs[address]
	r.mu.Unlock()
	if ok {
		return errors.Errorf("nonce already initialised for address %s", address)
	}

	seq, err := r.source.AccountNonce(ctx, address)
	if err != nil {
		return errors.Wrap(err, "unable to read account nonce from ledger")
	}

	r.mu.Lock()
	r.seqs[address] = seq
	r.mu.Unlock()

	r.log.Info("address added",
		logging.String("address", address),
		logging.Uint64("nonce", seq),
	)
	return nil
}

// Allocate hands out the next unused sequence number for the address and
// advances the stored value, as a single indivisible step. No value is ever
// handed out twice.
func (r *Registry) Allocate(address string) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	seq, ok := r.seqs[address]
	if !ok {
		return 0, ErrNonceNotFound
	}
	r.seqs[address] = seq + 1
	return seq, nil
}

// Peek reports the next unallocated sequence number without advancing it.
// Diagnostics only.
func (r *Registry) Peek(address string) (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seq, ok := r.seqs[address]
	return seq, ok
}

package pending

import (
	"encoding/json"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"code.equilab.io/gateway/logging"

	"github.com/pkg/errors"
)

// ErrOperationNotFound is returned when an operation id is unknown, either
// because it never existed or because its record was purged.
var ErrOperationNotFound = errors.New("operation not found")

// Status is the lifecycle state of an operation record.
type Status int

const (
	// StatusPending marks an operation accepted for submission but not yet
	// settled by the ledger.
	StatusPending Status = iota
	// StatusSucceeded marks a settled operation carrying its decoded result.
	StatusSucceeded
	// StatusFailed marks a settled operation carrying its error descriptor.
	StatusFailed
)

// Record is the observable state of one tracked operation.
type Record struct {
	ID      string
	Status  Status
	Payload interface{}
	Err     error
}

// MarshalJSON renders the record in the wire envelope shape.
func (r Record) MarshalJSON() ([]byte, error) {
	out := struct {
		Success bool        `json:"success"`
		Pending bool        `json:"pending"`
		Payload interface{} `json:"payload"`
	}{
		Success: r.Status == StatusSucceeded,
		Pending: r.Status == StatusPending,
		Payload: r.Payload,
	}
	if r.Status == StatusFailed {
		out.Payload = map[string]string{"error": r.Err.Error()}
	}
	return json.Marshal(out)
}

// Tracker is the in-memory table mapping operation ids to their lifecycle
// state. Entries are created on submission and transition to a terminal
// state exactly once, when the asynchronous settlement signal fires. Nothing
// is persisted; a restart loses all records.
type Tracker struct {
	Config
	log *logging.Logger

	mu      sync.RWMutex
	records map[string]*Record
	counter uint64
}

// NewTracker creates an operation tracker.
func NewTracker(log *logging.Logger, cfg Config) *Tracker {
	log = log.Named(namedLogger)
	log.SetLevel(cfg.Level.Get())

	return &Tracker{
		Config:  cfg,
		log:     log,
		records: map[string]*Record{},
	}
}

// ReloadConf update the internal configuration of the tracker.
func (t *Tracker) ReloadConf(cfg Config) {
	t.log.Info("reloading configuration")
	if t.log.GetLevel() != cfg.Level.Get() {
		t.log.SetLevel(cfg.Level.Get())
	}

	t.mu.Lock()
	t.Config = cfg
	t.mu.Unlock()
}

// Create mints a fresh operation id and inserts a pending record carrying
// the initial payload. The id is generation ordered: wall clock millis plus
// a process wide counter.
func (t *Tracker) Create(payload interface{}) string {
	n := atomic.AddUint64(&t.counter, 1)
	id := strconv.FormatInt(time.Now().UnixMilli(), 10) + strconv.FormatUint(n, 10)

	t.mu.Lock()
	t.records[id] = &Record{
		ID:      id,
		Status:  StatusPending,
		Payload: payload,
	}
	t.mu.Unlock()

	return id
}

// CreateSettled mints an id for an operation that is acknowledged as a whole
// at creation time, such as a batch parent whose payload accumulates child
// events afterwards.
func (t *Tracker) CreateSettled(payload interface{}) string {
	id := t.Create(payload)
	t.ResolveSuccess(id, payload)
	return id
}

// ResolveSuccess transitions a pending record to succeeded, storing the
// decoded result. Later resolutions of the same id are ignored.
func (t *Tracker) ResolveSuccess(id string, payload interface{}) {
	t.resolve(id, StatusSucceeded, payload, nil)
}

// ResolveFailure transitions a pending record to failed, storing the error
// descriptor. Later resolutions of the same id are ignored.
func (t *Tracker) ResolveFailure(id string, err error) {
	t.resolve(id, StatusFailed, nil, err)
}

func (t *Tracker) resolve(id string, status Status, payload interface{}, err error) {
	t.mu.Lock()
	rec, ok := t.records[id]
	if !ok {
		t.mu.Unlock()
		t.log.Warn("resolution for unknown operation", logging.String("operation-id", id))
		return
	}
	if rec.Status != StatusPending {
		t.mu.Unlock()
		t.log.Warn("duplicate resolution ignored", logging.String("operation-id", id))
		return
	}
	rec.Status = status
	rec.Payload = payload
	rec.Err = err
	purge := t.PurgeDelay.Get()
	t.mu.Unlock()

	if purge > 0 {
		time.AfterFunc(purge, func() { t.delete(id) })
	}
}

// Update applies f to the record's payload under the tracker lock. Used by
// batch parents to accumulate child settlement events out of order.
func (t *Tracker) Update(id string, f func(payload interface{}) interface{}) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[id]
	if !ok {
		return ErrOperationNotFound
	}
	rec.Payload = f(rec.Payload)
	return nil
}

// Get returns a copy of the record for the given operation id.
func (t *Tracker) Get(id string) (Record, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rec, ok := t.records[id]
	if !ok {
		return Record{}, ErrOperationNotFound
	}
	return *rec, nil
}

func (t *Tracker) delete(id string) {
	t.mu.Lock()
	delete(t.records, id)
	t.mu.Unlock()
	t.log.Debug("operation record purged", logging.String("operation-id", id))
}

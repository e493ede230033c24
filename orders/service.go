package orders

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"code.equilab.io/gateway/ledger"
	"code.equilab.io/gateway/logging"
	"code.equilab.io/gateway/num"
	"code.equilab.io/gateway/pending"
	"code.equilab.io/gateway/types"
	"code.equilab.io/gateway/wallet"

	"github.com/pkg/errors"
)

var (
	// ErrOrderNotFound is returned when a replace refers to an operation
	// that is unknown, purged, or already failed.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderIDMissing is returned when a confirmed order settled without
	// an order id, meaning it was fully matched on inclusion and nothing
	// rests on the book to replace.
	ErrOrderIDMissing = errors.New("order id is missing")
	// ErrCancelDetailsRequired is returned when cancelling an order that is
	// still waiting for a block without supplying its nonce and a tip.
	ErrCancelDetailsRequired = errors.New("nonce and tip required to cancel order in block")
)

// Ledger is the submission surface of the chain connection.
//
//go:generate go run github.com/golang/mock/mockgen -destination mocks/ledger_mock.go -package mocks code.equilab.io/gateway/orders Ledger
type Ledger interface {
	SubmitTx(ctx context.Context, tx *ledger.Tx, signer ledger.Signer) (*ledger.TxResult, error)
	PendingExtrinsics(ctx context.Context) ([]types.PendingExtrinsic, error)
}

// NonceRegistry hands out locally owned sequence numbers per address.
//
//go:generate go run github.com/golang/mock/mockgen -destination mocks/nonce_registry_mock.go -package mocks code.equilab.io/gateway/orders NonceRegistry
type NonceRegistry interface {
	Allocate(address string) (uint64, error)
}

// Keyring resolves an address to its signing pair.
//
//go:generate go run github.com/golang/mock/mockgen -destination mocks/keyring_mock.go -package mocks code.equilab.io/gateway/orders Keyring
type Keyring interface {
	Pair(address string) (*wallet.Pair, error)
}

// Tracker records the lifecycle of detached operations.
//
//go:generate go run github.com/golang/mock/mockgen -destination mocks/tracker_mock.go -package mocks code.equilab.io/gateway/orders Tracker
type Tracker interface {
	Create(payload interface{}) string
	CreateSettled(payload interface{}) string
	ResolveSuccess(id string, payload interface{})
	ResolveFailure(id string, err error)
	Update(id string, f func(payload interface{}) interface{}) error
	Get(id string) (pending.Record, error)
}

// Ack acknowledges an accepted, detached operation. The caller polls the
// operation id for the settlement outcome; nonce and tip identify the
// submission slot so an unconfirmed order can still be displaced.
type Ack struct {
	Message     string `json:"message"`
	OperationID string `json:"operationId"`
	Nonce       uint64 `json:"nonce"`
	Tip         uint64 `json:"tip"`
}

// Notice is a terse, settled acknowledgement.
type Notice struct {
	Message string `json:"message"`
}

// OrderRef identifies one resting order. The price is part of the on-chain
// deletion key.
type OrderRef struct {
	Token   string      `json:"token"`
	Price   num.Decimal `json:"price"`
	OrderID uint64      `json:"orderId"`
}

// BatchAck is the evolving payload of a batch cancellation: settled
// immediately, with per-order outcomes accumulating in Events as each
// cancellation lands.
type BatchAck struct {
	Message     string       `json:"message"`
	OperationID string       `json:"operationId"`
	Orders      []OrderRef   `json:"orders"`
	Events      []BatchEvent `json:"events"`
}

// BatchEvent is the outcome of one cancellation inside a batch.
type BatchEvent struct {
	Success bool        `json:"success"`
	Pending bool        `json:"pending"`
	Payload interface{} `json:"payload,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// CreateLimitOrder is a request to place a resting limit order. A non-nil
// nonce bypasses the registry and reuses that exact submission slot.
type CreateLimitOrder struct {
	Token      string
	Address    string
	Amount     num.Decimal
	LimitPrice num.Decimal
	Direction  types.Direction
	Tip        uint64
	Nonce      *uint64
	UsingPool  bool
}

// CreateMarketOrder is a request to place an immediately matching order.
type CreateMarketOrder struct {
	Token     string
	Address   string
	Amount    num.Decimal
	Direction types.Direction
}

// UpdateLimitOrder is a request to replace a previously submitted order,
// identified by the operation id its creation returned. A zero new price or
// amount means plain cancellation.
type UpdateLimitOrder struct {
	OperationID   string
	Token         string
	Address       string
	Direction     types.Direction
	LimitPrice    num.Decimal
	LimitPriceNew num.Decimal
	AmountNew     num.Decimal
	Nonce         *uint64
	Tip           uint64
}

// CancelLimitOrder is a request to delete one resting order.
type CancelLimitOrder struct {
	Token     string
	Price     num.Decimal
	OrderID   uint64
	Address   string
	UsingPool bool
}

// CancelLimitOrders is a request to delete a set of resting orders as
// independent submissions sharing one operation record.
type CancelLimitOrders struct {
	Orders    []OrderRef
	Address   string
	UsingPool bool
}

// Transfer is a deposit to, or withdrawal from, the trading sub-account.
type Transfer struct {
	Token   string
	Address string
	Amount  num.Decimal
}

// SudoDeposit mints a balance onto an arbitrary account through the
// privileged root key.
type SudoDeposit struct {
	Token   string
	Address string
	To      string
	Amount  num.Decimal
}

// Svc coordinates order submissions: it resolves signing pairs, allocates
// nonces, builds and signs the ledger calls, and hands detached submissions
// to the tracker so callers can poll for settlement.
type Svc struct {
	Config
	log     *logging.Logger
	ledger  Ledger
	nonces  NonceRegistry
	keyring Keyring
	tracker Tracker

	cfgMu sync.Mutex
}

// NewService creates an order coordinator.
func NewService(log *logging.Logger, cfg Config, ldgr Ledger, nonces NonceRegistry, keyring Keyring, tracker Tracker) *Svc {
	log = log.Named(namedLogger)
	log.SetLevel(cfg.Level.Get())

	return &Svc{
		Config:  cfg,
		log:     log,
		ledger:  ldgr,
		nonces:  nonces,
		keyring: keyring,
		tracker: tracker,
	}
}

// ReloadConf update the internal configuration of the service.
func (s *Svc) ReloadConf(cfg Config) {
	s.log.Info("reloading configuration")
	if s.log.GetLevel() != cfg.Level.Get() {
		s.log.SetLevel(cfg.Level.Get())
	}

	s.cfgMu.Lock()
	s.Config = cfg
	s.cfgMu.Unlock()
}

// CreateLimitOrder accepts a limit order for submission and returns
// immediately with the operation id to poll. The submission itself settles
// in the background.
func (s *Svc) CreateLimitOrder(ctx context.Context, req CreateLimitOrder) (Ack, error) {
	asset, err := types.AssetID(req.Token)
	if err != nil {
		return Ack{}, err
	}
	pair, err := s.keyring.Pair(req.Address)
	if err != nil {
		return Ack{}, err
	}

	var nonce uint64
	if req.Nonce != nil {
		nonce = *req.Nonce
	} else if nonce, err = s.nonces.Allocate(req.Address); err != nil {
		return Ack{}, err
	}

	tx := &ledger.Tx{
		Call: ledger.NewCreateLimitOrder(
			asset,
			num.ScalePrice(req.LimitPrice),
			num.ScaleAmount(req.Amount),
			req.Direction.Ledger(),
			req.UsingPool,
		),
		Nonce: &nonce,
		Tip:   req.Tip,
	}

	ack := Ack{Message: "Limit order is creating", Nonce: nonce, Tip: req.Tip}
	ack.OperationID = s.trackDetached(ack, tx, pair)
	return ack, nil
}

// CreateMarketOrder accepts a market order for submission and returns
// immediately with the operation id to poll.
func (s *Svc) CreateMarketOrder(ctx context.Context, req CreateMarketOrder) (Ack, error) {
	asset, err := types.AssetID(req.Token)
	if err != nil {
		return Ack{}, err
	}
	pair, err := s.keyring.Pair(req.Address)
	if err != nil {
		return Ack{}, err
	}
	nonce, err := s.nonces.Allocate(req.Address)
	if err != nil {
		return Ack{}, err
	}

	tx := &ledger.Tx{
		Call:  ledger.NewCreateMarketOrder(asset, num.ScaleAmount(req.Amount), req.Direction.Ledger()),
		Nonce: &nonce,
	}

	ack := Ack{Message: "Order is creating", Nonce: nonce}
	ack.OperationID = s.trackDetached(ack, tx, pair)
	return ack, nil
}

// trackDetached registers a pending record for the submission and settles
// it from a background goroutine once the ledger reports inclusion.
func (s *Svc) trackDetached(ack Ack, tx *ledger.Tx, pair *wallet.Pair) string {
	id := s.tracker.Create(ack)
	s.tracker.Update(id, func(payload interface{}) interface{} {
		a := payload.(Ack)
		a.OperationID = id
		return a
	})

	go func() {
		ctx, cancel := s.submitContext()
		defer cancel()

		result, err := s.ledger.SubmitTx(ctx, tx, pair)
		if err != nil {
			s.log.Warn("submission failed",
				logging.String("operation-id", id),
				logging.String("address", pair.Address()),
				logging.Error(err),
			)
			s.tracker.ResolveFailure(id, err)
			return
		}
		s.tracker.ResolveSuccess(id, result)
	}()
	return id
}

func (s *Svc) submitContext() (context.Context, context.CancelFunc) {
	s.cfgMu.Lock()
	timeout := s.SubmitTimeout.Get()
	s.cfgMu.Unlock()

	if timeout > 0 {
		return context.WithTimeout(context.Background(), timeout)
	}
	return context.WithCancel(context.Background())
}

// UpdateLimitOrder replaces a previously submitted order. What that means
// depends on where the order is in its lifecycle:
//
// A confirmed order is cancelled on chain and, unless the new price or
// amount is zero, recreated as a fresh submission.
//
// An order still waiting for a block cannot be reached directly. A zero new
// price or amount races a marker transaction into its submission slot, so
// whichever of the two the ledger includes first wins; the caller must
// supply the original nonce and a larger tip. A non-zero replacement is
// submitted against the caller supplied slot directly.
func (s *Svc) UpdateLimitOrder(ctx context.Context, req UpdateLimitOrder) (interface{}, error) {
	rec, err := s.tracker.Get(req.OperationID)
	if err != nil {
		return nil, ErrOrderNotFound
	}

	switch rec.Status {
	case pending.StatusSucceeded:
		return s.replaceConfirmed(ctx, req, rec)
	case pending.StatusPending:
		return s.replaceUnconfirmed(ctx, req)
	default:
		return nil, ErrOrderNotFound
	}
}

func (s *Svc) replaceConfirmed(ctx context.Context, req UpdateLimitOrder, rec pending.Record) (interface{}, error) {
	result, ok := rec.Payload.(*ledger.TxResult)
	if !ok {
		return nil, ErrOrderNotFound
	}
	orderID, ok := result.OrderID()
	if !ok {
		return nil, ErrOrderIDMissing
	}

	if _, err := s.CancelLimitOrder(ctx, CancelLimitOrder{
		Token:   req.Token,
		Price:   req.LimitPrice,
		OrderID: orderID,
		Address: req.Address,
	}); err != nil {
		return nil, err
	}

	if req.LimitPriceNew.IsZero() || req.AmountNew.IsZero() {
		return Notice{Message: "Order cancelled on chain"}, nil
	}

	return s.CreateLimitOrder(ctx, CreateLimitOrder{
		Token:      req.Token,
		Address:    req.Address,
		Amount:     req.AmountNew,
		LimitPrice: req.LimitPriceNew,
		Direction:  req.Direction,
	})
}

func (s *Svc) replaceUnconfirmed(ctx context.Context, req UpdateLimitOrder) (interface{}, error) {
	if req.LimitPriceNew.IsZero() || req.AmountNew.IsZero() {
		return s.displaceUnconfirmed(req)
	}

	return s.CreateLimitOrder(ctx, CreateLimitOrder{
		Token:      req.Token,
		Address:    req.Address,
		Amount:     req.AmountNew,
		LimitPrice: req.LimitPriceNew,
		Direction:  req.Direction,
		Nonce:      req.Nonce,
		Tip:        req.Tip,
	})
}

// displaceUnconfirmed races a marker transaction into the unconfirmed
// order's submission slot. Inclusion of the marker means the order never
// made it; inclusion of the order means the marker lost and the original
// settlement stands. Either way the operation record settles exactly once.
func (s *Svc) displaceUnconfirmed(req UpdateLimitOrder) (interface{}, error) {
	pair, err := s.keyring.Pair(req.Address)
	if err != nil {
		return nil, ErrCancelDetailsRequired
	}
	if req.Nonce == nil || req.Tip == 0 {
		return nil, ErrCancelDetailsRequired
	}

	tx := &ledger.Tx{
		Call:  ledger.NewRemark(fmt.Sprintf("cancel order %s", req.OperationID)),
		Nonce: req.Nonce,
		Tip:   req.Tip,
	}

	id := req.OperationID
	go func() {
		ctx, cancel := s.submitContext()
		defer cancel()

		if _, err := s.ledger.SubmitTx(ctx, tx, pair); err != nil {
			s.tracker.ResolveFailure(id, err)
			return
		}
		s.tracker.ResolveSuccess(id, Notice{Message: "Order cancelled in block"})
	}()

	return Ack{
		Message:     "Limit order is cancelling in block",
		OperationID: id,
		Nonce:       *req.Nonce,
		Tip:         req.Tip,
	}, nil
}

// CancelLimitOrder deletes one resting order and blocks until the deletion
// settles.
func (s *Svc) CancelLimitOrder(ctx context.Context, req CancelLimitOrder) (*ledger.TxResult, error) {
	asset, err := types.AssetID(req.Token)
	if err != nil {
		return nil, err
	}
	pair, err := s.keyring.Pair(req.Address)
	if err != nil {
		return nil, err
	}
	nonce, err := s.nonces.Allocate(req.Address)
	if err != nil {
		return nil, err
	}

	tx := &ledger.Tx{
		Call:  ledger.NewCancelOrder(asset, req.OrderID, num.ScalePrice(req.Price), req.UsingPool),
		Nonce: &nonce,
	}
	return s.ledger.SubmitTx(ctx, tx, pair)
}

// CancelLimitOrders deletes a set of resting orders. Every order gets its
// own nonce, reserved up front, and its own submission; the shared
// operation record settles immediately and accumulates one event per order
// as the cancellations land.
func (s *Svc) CancelLimitOrders(ctx context.Context, req CancelLimitOrders) (BatchAck, error) {
	pair, err := s.keyring.Pair(req.Address)
	if err != nil {
		return BatchAck{}, err
	}

	txs := make([]*ledger.Tx, 0, len(req.Orders))
	for _, ref := range req.Orders {
		asset, err := types.AssetID(ref.Token)
		if err != nil {
			return BatchAck{}, err
		}
		nonce, err := s.nonces.Allocate(req.Address)
		if err != nil {
			return BatchAck{}, err
		}
		txs = append(txs, &ledger.Tx{
			Call:  ledger.NewCancelOrder(asset, ref.OrderID, num.ScalePrice(ref.Price), req.UsingPool),
			Nonce: &nonce,
		})
	}

	ack := BatchAck{
		Message: "Orders are cancelling",
		Orders:  req.Orders,
		Events:  []BatchEvent{},
	}
	id := s.tracker.CreateSettled(ack)
	ack.OperationID = id
	s.tracker.Update(id, func(payload interface{}) interface{} {
		b := payload.(BatchAck)
		b.OperationID = id
		return b
	})

	for _, tx := range txs {
		tx := tx
		go func() {
			ctx, cancel := s.submitContext()
			defer cancel()

			ev := BatchEvent{Success: true}
			result, err := s.ledger.SubmitTx(ctx, tx, pair)
			if err != nil {
				ev = BatchEvent{Error: err.Error()}
			} else {
				ev.Payload = result
			}
			s.tracker.Update(id, func(payload interface{}) interface{} {
				b := payload.(BatchAck)
				b.Events = append(b.Events, ev)
				return b
			})
		}()
	}
	return ack, nil
}

// Deposit moves funds from the master account onto its trading sub-account
// and blocks until the transfer settles.
func (s *Svc) Deposit(ctx context.Context, req Transfer) (*ledger.TxResult, error) {
	return s.transfer(ctx, req, ledger.NewToSubaccount)
}

// Withdraw moves funds from the trading sub-account back to the master
// account and blocks until the transfer settles.
func (s *Svc) Withdraw(ctx context.Context, req Transfer) (*ledger.TxResult, error) {
	return s.transfer(ctx, req, ledger.NewFromSubaccount)
}

func (s *Svc) transfer(ctx context.Context, req Transfer, build func(role string, asset uint64, amount string) ledger.Call) (*ledger.TxResult, error) {
	asset, err := types.AssetID(req.Token)
	if err != nil {
		return nil, err
	}
	pair, err := s.keyring.Pair(req.Address)
	if err != nil {
		return nil, err
	}
	nonce, err := s.nonces.Allocate(req.Address)
	if err != nil {
		return nil, err
	}

	tx := &ledger.Tx{
		Call:  build(ledger.SubaccountTrader, asset, num.ScaleTransfer(req.Amount)),
		Nonce: &nonce,
	}
	return s.ledger.SubmitTx(ctx, tx, pair)
}

// SudoDeposit mints a balance through the root key. The submission slot is
// left to the node, privileged transactions stay outside the registry's
// sequence ownership.
func (s *Svc) SudoDeposit(ctx context.Context, req SudoDeposit) (*ledger.TxResult, error) {
	asset, err := types.AssetID(req.Token)
	if err != nil {
		return nil, err
	}
	pair, err := s.keyring.Pair(req.Address)
	if err != nil {
		return nil, err
	}

	tx := &ledger.Tx{
		Call: ledger.NewSudoDeposit(asset, req.To, num.ScaleTransfer(req.Amount)),
	}
	return s.ledger.SubmitTx(ctx, tx, pair)
}

// PendingOrders lists the address's order creations sitting in the node's
// submission pool, not yet included in any block.
func (s *Svc) PendingOrders(ctx context.Context, address string) ([]types.PendingExtrinsic, error) {
	if _, err := s.keyring.Pair(address); err != nil {
		return nil, err
	}

	all, err := s.ledger.PendingExtrinsics(ctx)
	if err != nil {
		return nil, err
	}

	own := make([]types.PendingExtrinsic, 0, len(all))
	for _, ex := range all {
		if ex.Signer != address || !strings.HasSuffix(ex.Method, ".createOrder") {
			continue
		}
		own = append(own, ex)
	}
	return own, nil
}

// Operation returns the current record of a tracked operation.
func (s *Svc) Operation(id string) (pending.Record, error) {
	return s.tracker.Get(id)
}

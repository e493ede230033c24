package ledger

import (
	"context"
	"encoding/json"
	"sync"

	"code.equilab.io/gateway/ledger/rpc"
	"code.equilab.io/gateway/logging"
	"code.equilab.io/gateway/num"
	"code.equilab.io/gateway/types"

	"github.com/pkg/errors"
)

// RPC surface of the ledger node. The node is an external collaborator;
// everything below this boundary is its wire format.
const (
	methodGenesisHash       = "chain_getBlockHash"
	methodAccountNonce      = "system_accountNextIndex"
	methodAccountBalances   = "eq_accountBalances"
	methodSubaccountAddress = "subaccounts_getAddress"
	methodAssets            = "eq_assets"
	methodPricePoints       = "oracle_pricePoints"
	methodAllOrders         = "dex_allOrders"
	methodPendingExtrinsics = "author_pendingExtrinsics"

	methodSubscribeOrders      = "dex_subscribeOrders"
	methodUnsubscribeOrders    = "dex_unsubscribeOrders"
	methodSubscribeBestPrice   = "dex_subscribeBestPrice"
	methodUnsubscribeBestPrice = "dex_unsubscribeBestPrice"

	methodSubmitAndWatch = "author_submitAndWatchExtrinsic"
	methodUnwatch        = "author_unwatchExtrinsic"
)

// stablecoinToken is pinned to one USD in the rates projection, the oracle
// carries no price point for it.
const stablecoinToken = "eqd"

// ErrNoInclusionReport is returned when the submission watch ends before
// any inclusion status was seen.
var ErrNoInclusionReport = errors.New("submission watch closed before inclusion")

// Session maintains the lazily established, shared connection to the ledger
// node. All derived queries reuse the one connection; per-token order book
// and best price subscriptions are memoised so repeated requests share one
// underlying subscription instead of opening duplicates.
type Session struct {
	Config
	log *logging.Logger

	mu         sync.Mutex
	client     *rpc.Client
	orderFeeds map[string]*feed
	priceFeeds map[string]*feed
}

// NewSession creates a session. No connection is opened until first use.
func NewSession(log *logging.Logger, cfg Config) *Session {
	log = log.Named(namedLogger)
	log.SetLevel(cfg.Level.Get())

	return &Session{
		Config:     cfg,
		log:        log,
		orderFeeds: map[string]*feed{},
		priceFeeds: map[string]*feed{},
	}
}

// ReloadConf update the internal configuration of the session.
func (s *Session) ReloadConf(cfg Config) {
	s.log.Info("reloading configuration")
	if s.log.GetLevel() != cfg.Level.Get() {
		s.log.SetLevel(cfg.Level.Get())
	}

	s.mu.Lock()
	s.Config = cfg
	s.mu.Unlock()
}

// Close drops the underlying connection, if any.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		s.client.Close()
		s.client = nil
	}
}

// clt returns the shared connection, dialling on first use. A dead
// connection is dropped along with its feeds and re-dialled on the next
// call; in-between, errors surface to every caller.
func (s *Session) clt(ctx context.Context) (*rpc.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		select {
		case <-s.client.Closed():
			s.client = nil
			s.orderFeeds = map[string]*feed{}
			s.priceFeeds = map[string]*feed{}
		default:
			return s.client, nil
		}
	}

	clt, err := rpc.Dial(ctx, s.log, s.ChainNode)
	if err != nil {
		return nil, err
	}
	s.log.Info("connected to ledger node", logging.String("endpoint", s.ChainNode))
	s.client = clt
	return clt, nil
}

// GenesisHash returns the hash of the chain's genesis block.
func (s *Session) GenesisHash(ctx context.Context) (string, error) {
	clt, err := s.clt(ctx)
	if err != nil {
		return "", err
	}
	var hash string
	if err := clt.Call(ctx, methodGenesisHash, []interface{}{0}, &hash); err != nil {
		return "", err
	}
	return hash, nil
}

// AccountNonce returns the current on-chain sequence number of an account.
func (s *Session) AccountNonce(ctx context.Context, address string) (uint64, error) {
	clt, err := s.clt(ctx)
	if err != nil {
		return 0, err
	}
	var nonce uint64
	if err := clt.Call(ctx, methodAccountNonce, []interface{}{address}, &nonce); err != nil {
		return 0, err
	}
	return nonce, nil
}

type wireBalance struct {
	Asset    uint64  `json:"asset"`
	Positive *string `json:"positive,omitempty"`
	Negative *string `json:"negative,omitempty"`
}

// AccountBalances returns the signed balance of every asset held by the
// account.
func (s *Session) AccountBalances(ctx context.Context, address string) ([]types.Balance, error) {
	clt, err := s.clt(ctx)
	if err != nil {
		return nil, err
	}
	var raw []wireBalance
	if err := clt.Call(ctx, methodAccountBalances, []interface{}{address}, &raw); err != nil {
		return nil, err
	}

	out := make([]types.Balance, 0, len(raw))
	for _, b := range raw {
		var scaled string
		switch {
		case b.Positive != nil:
			scaled = *b.Positive
		case b.Negative != nil:
			scaled = "-" + *b.Negative
		default:
			continue
		}
		d, err := num.UnscalePrice(scaled)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid balance for asset %d", b.Asset)
		}
		out = append(out, types.Balance{
			Token:   types.TokenFromAssetID(b.Asset),
			Asset:   b.Asset,
			Balance: d,
		})
	}
	return out, nil
}

// SubaccountAddress resolves the trading sub-account linked to a master
// address. The second return is false when none is linked.
func (s *Session) SubaccountAddress(ctx context.Context, address string) (string, bool, error) {
	clt, err := s.clt(ctx)
	if err != nil {
		return "", false, err
	}
	var sub *string
	if err := clt.Call(ctx, methodSubaccountAddress, []interface{}{address, SubaccountTrader}, &sub); err != nil {
		return "", false, err
	}
	if sub == nil || *sub == "" {
		return "", false, nil
	}
	return *sub, true, nil
}

type wireAsset struct {
	ID        uint64 `json:"id"`
	Lot       string `json:"lot"`
	PriceStep string `json:"priceStep"`
	MakerFee  string `json:"makerFee"`
	TakerFee  string `json:"takerFee"`
}

// Assets returns the metadata of every listed asset.
func (s *Session) Assets(ctx context.Context) ([]types.Asset, error) {
	clt, err := s.clt(ctx)
	if err != nil {
		return nil, err
	}
	var raw []wireAsset
	if err := clt.Call(ctx, methodAssets, []interface{}{}, &raw); err != nil {
		return nil, err
	}

	out := make([]types.Asset, 0, len(raw))
	for _, a := range raw {
		asset := types.Asset{
			Token: types.TokenFromAssetID(a.ID),
			ID:    a.ID,
		}
		for _, f := range []struct {
			dst *num.Decimal
			src string
		}{
			{&asset.Lot, a.Lot},
			{&asset.PriceStep, a.PriceStep},
			{&asset.MakerFee, a.MakerFee},
			{&asset.TakerFee, a.TakerFee},
		} {
			d, err := num.UnscaleAmount(f.src)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid asset metadata for %s", asset.Token)
			}
			*f.dst = d
		}
		out = append(out, asset)
	}
	return out, nil
}

type wirePricePoint struct {
	Asset uint64 `json:"asset"`
	Price string `json:"price"`
}

// Rates joins the asset list with the oracle price points into per-token
// USD rates. The stablecoin has no oracle price and is pinned to one.
func (s *Session) Rates(ctx context.Context) ([]types.Rate, error) {
	assets, err := s.Assets(ctx)
	if err != nil {
		return nil, err
	}
	clt, err := s.clt(ctx)
	if err != nil {
		return nil, err
	}
	var raw []wirePricePoint
	if err := clt.Call(ctx, methodPricePoints, []interface{}{}, &raw); err != nil {
		return nil, err
	}
	prices := make(map[uint64]string, len(raw))
	for _, p := range raw {
		prices[p.Asset] = p.Price
	}

	one := num.DecimalFromInt64(1)
	out := make([]types.Rate, 0, len(assets))
	for _, a := range assets {
		rate := types.Rate{Token: a.Token, Asset: a.ID}
		if a.Token == stablecoinToken {
			rate.Price = one
		} else if scaled, ok := prices[a.ID]; ok {
			d, err := num.UnscalePrice(scaled)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid price point for %s", a.Token)
			}
			rate.Price = d
		} else {
			rate.Price = num.DecimalZero()
		}
		out = append(out, rate)
	}
	return out, nil
}

type wireOrder struct {
	OrderID uint64 `json:"orderId"`
	Account string `json:"accountId"`
	Side    string `json:"side"`
	Price   string `json:"price"`
	Amount  string `json:"amount"`
	Asset   uint64 `json:"asset"`
}

func decodeOrders(raw []wireOrder) ([]types.Order, error) {
	out := make([]types.Order, 0, len(raw))
	for _, o := range raw {
		side, err := types.ParseDirection(o.Side)
		if err != nil {
			return nil, errors.Wrapf(err, "order %d", o.OrderID)
		}
		price, err := num.UnscalePrice(o.Price)
		if err != nil {
			return nil, errors.Wrapf(err, "order %d", o.OrderID)
		}
		amount, err := num.UnscaleAmount(o.Amount)
		if err != nil {
			return nil, errors.Wrapf(err, "order %d", o.OrderID)
		}
		out = append(out, types.Order{
			ID:      o.OrderID,
			Account: o.Account,
			Side:    side,
			Price:   price,
			Amount:  amount,
			Token:   types.TokenFromAssetID(o.Asset),
		})
	}
	return out, nil
}

// Orders returns the current open order snapshot for one token, served from
// the memoised per-token subscription.
func (s *Session) Orders(ctx context.Context, token string) ([]types.Order, error) {
	f, err := s.feed(ctx, orderFeed, token, methodSubscribeOrders, methodUnsubscribeOrders)
	if err != nil {
		return nil, err
	}
	raw, err := f.current(ctx)
	if err != nil {
		return nil, err
	}
	var orders []wireOrder
	if err := json.Unmarshal(raw, &orders); err != nil {
		return nil, errors.Wrap(err, "invalid order snapshot")
	}
	return decodeOrders(orders)
}

// AllOrders returns the open orders of every asset, used by the locked
// balance projection.
func (s *Session) AllOrders(ctx context.Context) ([]types.Order, error) {
	clt, err := s.clt(ctx)
	if err != nil {
		return nil, err
	}
	var raw []wireOrder
	if err := clt.Call(ctx, methodAllOrders, []interface{}{}, &raw); err != nil {
		return nil, err
	}
	return decodeOrders(raw)
}

type wireBestPrice struct {
	Bid string `json:"bid"`
	Ask string `json:"ask"`
}

// BestPrice returns the ledger derived best bid/ask for one token, served
// from the memoised per-token subscription.
func (s *Session) BestPrice(ctx context.Context, token string) (types.BestPrice, error) {
	f, err := s.feed(ctx, priceFeed, token, methodSubscribeBestPrice, methodUnsubscribeBestPrice)
	if err != nil {
		return types.BestPrice{}, err
	}
	raw, err := f.current(ctx)
	if err != nil {
		return types.BestPrice{}, err
	}
	var wire wireBestPrice
	if err := json.Unmarshal(raw, &wire); err != nil {
		return types.BestPrice{}, errors.Wrap(err, "invalid best price")
	}
	bid, err := num.UnscalePrice(wire.Bid)
	if err != nil {
		return types.BestPrice{}, err
	}
	ask, err := num.UnscalePrice(wire.Ask)
	if err != nil {
		return types.BestPrice{}, err
	}
	return types.BestPrice{Bid: bid, Ask: ask}, nil
}

type wirePendingExtrinsic struct {
	Signer string            `json:"signer"`
	Nonce  uint64            `json:"nonce"`
	Module string            `json:"module"`
	Method string            `json:"method"`
	Args   []json.RawMessage `json:"args"`
}

// PendingExtrinsics lists the ledger's outstanding submission pool.
func (s *Session) PendingExtrinsics(ctx context.Context) ([]types.PendingExtrinsic, error) {
	clt, err := s.clt(ctx)
	if err != nil {
		return nil, err
	}
	var raw []wirePendingExtrinsic
	if err := clt.Call(ctx, methodPendingExtrinsics, []interface{}{}, &raw); err != nil {
		return nil, err
	}

	out := make([]types.PendingExtrinsic, 0, len(raw))
	for _, ex := range raw {
		args := make([]string, 0, len(ex.Args))
		for _, a := range ex.Args {
			args = append(args, string(a))
		}
		out = append(out, types.PendingExtrinsic{
			Signer: ex.Signer,
			Nonce:  ex.Nonce,
			Method: ex.Module + "." + ex.Method,
			Args:   args,
		})
	}
	return out, nil
}

type txInclusion struct {
	Block  string      `json:"block"`
	Events []wireEvent `json:"events"`
}

type txStatus struct {
	Ready     bool         `json:"ready,omitempty"`
	Broadcast []string     `json:"broadcast,omitempty"`
	InBlock   *txInclusion `json:"inBlock,omitempty"`
	Finalized *txInclusion `json:"finalized,omitempty"`
}

// SubmitTx signs and submits a transaction, then blocks until the node
// reports its first in-block or finalized status. The emitted events are
// decoded and the watch released. There is no way to retract a submission
// once sent; a transaction that never reaches inclusion blocks until the
// context expires.
func (s *Session) SubmitTx(ctx context.Context, tx *Tx, signer Signer) (*TxResult, error) {
	clt, err := s.clt(ctx)
	if err != nil {
		return nil, err
	}
	signed, err := signTx(tx, signer)
	if err != nil {
		return nil, errors.Wrap(err, "unable to sign transaction")
	}

	sub, err := clt.Subscribe(ctx, methodSubmitAndWatch, methodUnwatch, []interface{}{signed})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := sub.Unsubscribe(context.Background()); err != nil {
			s.log.Debug("unable to release submission watch", logging.Error(err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case raw, ok := <-sub.C:
			if !ok {
				return nil, ErrNoInclusionReport
			}
			var status txStatus
			if err := json.Unmarshal(raw, &status); err != nil {
				return nil, errors.Wrap(err, "invalid submission status")
			}
			inc := status.InBlock
			if inc == nil {
				inc = status.Finalized
			}
			if inc == nil {
				continue
			}
			s.log.Debug("transaction included",
				logging.String("block", inc.Block),
				logging.String("signer", signer.Address()),
			)
			return decodeEvents(inc.Events)
		}
	}
}

type feed struct {
	ready chan struct{}
	once  sync.Once

	mu     sync.RWMutex
	latest json.RawMessage
	err    error
}

func newFeed() *feed {
	return &feed{ready: make(chan struct{})}
}

func (f *feed) set(raw json.RawMessage) {
	f.mu.Lock()
	f.latest = raw
	f.mu.Unlock()
	f.once.Do(func() { close(f.ready) })
}

func (f *feed) fail(err error) {
	f.mu.Lock()
	if f.err == nil {
		f.err = err
	}
	f.mu.Unlock()
	f.once.Do(func() { close(f.ready) })
}

func (f *feed) run(sub *rpc.Subscription) {
	for raw := range sub.C {
		f.set(raw)
	}
	f.fail(errors.New("ledger subscription closed"))
}

// current returns the latest snapshot, waiting for the first one when the
// subscription is fresh.
func (f *feed) current(ctx context.Context) (json.RawMessage, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-f.ready:
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.latest == nil {
		return nil, f.err
	}
	return f.latest, nil
}

// feedKind selects one of the session's per-token subscription pools.
type feedKind int

const (
	orderFeed feedKind = iota
	priceFeed
)

// feeds returns the pool for the kind. Callers must hold s.mu: the pools
// are swapped for fresh maps when a dead connection is dropped, and a feed
// memoised into a discarded pool would duplicate its subscription.
func (s *Session) feeds(kind feedKind) map[string]*feed {
	if kind == orderFeed {
		return s.orderFeeds
	}
	return s.priceFeeds
}

// feed returns the memoised subscription feed for the key, creating and
// subscribing it on first use.
func (s *Session) feed(ctx context.Context, kind feedKind, token, subMethod, unsubMethod string) (*feed, error) {
	clt, err := s.clt(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	pool := s.feeds(kind)
	f, ok := pool[token]
	if !ok {
		f = newFeed()
		pool[token] = f
	}
	s.mu.Unlock()
	if ok {
		return f, nil
	}

	sub, err := clt.Subscribe(ctx, subMethod, unsubMethod, []interface{}{token})
	if err != nil {
		s.mu.Lock()
		if pool := s.feeds(kind); pool[token] == f {
			delete(pool, token)
		}
		s.mu.Unlock()
		f.fail(err)
		return nil, err
	}
	go f.run(sub)
	return f, nil
}

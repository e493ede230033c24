package markets

import (
	"context"
	"sort"
	"strings"
	"sync"

	"code.equilab.io/gateway/logging"
	"code.equilab.io/gateway/num"
	"code.equilab.io/gateway/types"

	"github.com/pkg/errors"
)

// ErrTokenNotListed is returned when no listed asset matches the requested
// token symbol.
var ErrTokenNotListed = errors.New("token not listed")

// LedgerReader is the read only ledger surface the projections are built
// from.
//
//go:generate go run github.com/golang/mock/mockgen -destination mocks/ledger_reader_mock.go -package mocks code.equilab.io/gateway/markets LedgerReader
type LedgerReader interface {
	Orders(ctx context.Context, token string) ([]types.Order, error)
	AllOrders(ctx context.Context) ([]types.Order, error)
	BestPrice(ctx context.Context, token string) (types.BestPrice, error)
	Assets(ctx context.Context) ([]types.Asset, error)
	Rates(ctx context.Context) ([]types.Rate, error)
	AccountBalances(ctx context.Context, address string) ([]types.Balance, error)
	SubaccountAddress(ctx context.Context, address string) (string, bool, error)
}

// Svc projects ledger state into the market data read model: order books,
// depth, balances and the collateral summaries derived from oracle rates.
// Every query reads the ledger's current snapshot, the service itself holds
// no market state.
type Svc struct {
	Config
	log    *logging.Logger
	ledger LedgerReader

	cfgMu sync.Mutex
}

// NewService creates a market data service.
func NewService(log *logging.Logger, cfg Config, ledger LedgerReader) *Svc {
	log = log.Named(namedLogger)
	log.SetLevel(cfg.Level.Get())

	return &Svc{
		Config: cfg,
		log:    log,
		ledger: ledger,
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

// Orders returns the open orders of one token's book.
func (s *Svc) Orders(ctx context.Context, token string) ([]types.Order, error) {
	return s.ledger.Orders(ctx, token)
}

// OrdersByAddress returns the open orders a master address has on one
// token's book. Orders rest under the trading sub-account, so the master
// address is resolved first; an account without one has no orders.
func (s *Svc) OrdersByAddress(ctx context.Context, token, address string) ([]types.Order, error) {
	orders, err := s.ledger.Orders(ctx, token)
	if err != nil {
		return nil, err
	}
	trader, ok, err := s.ledger.SubaccountAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []types.Order{}, nil
	}

	own := make([]types.Order, 0, len(orders))
	for _, o := range orders {
		if o.Account == trader {
			own = append(own, o)
		}
	}
	return own, nil
}

// BestPrice returns the current best bid and ask of one token's book.
func (s *Svc) BestPrice(ctx context.Context, token string) (types.BestPrice, error) {
	return s.ledger.BestPrice(ctx, token)
}

// Depth aggregates one token's open orders into per-price levels, bids
// descending and asks ascending, each side truncated to limit levels. A
// non-positive limit falls back to the configured default.
func (s *Svc) Depth(ctx context.Context, token string, limit int64) (types.MarketDepth, error) {
	orders, err := s.ledger.Orders(ctx, token)
	if err != nil {
		return types.MarketDepth{}, err
	}

	if limit <= 0 {
		limit = int64(s.DepthLimit)
	}

	var bids, asks []types.Order
	for _, o := range orders {
		if o.Side == types.DirectionBuy {
			bids = append(bids, o)
		} else {
			asks = append(asks, o)
		}
	}

	depth := types.MarketDepth{
		Bids: levels(bids, true, limit),
		Asks: levels(asks, false, limit),
	}
	return depth, nil
}

// levels folds one side of the book into aggregated price levels.
func levels(orders []types.Order, descending bool, limit int64) []types.PriceLevel {
	byPrice := map[string]*types.PriceLevel{}
	for _, o := range orders {
		key := o.Price.String()
		if lvl, ok := byPrice[key]; ok {
			lvl.Amount = lvl.Amount.Add(o.Amount)
			continue
		}
		byPrice[key] = &types.PriceLevel{Price: o.Price, Amount: o.Amount}
	}

	out := make([]types.PriceLevel, 0, len(byPrice))
	for _, lvl := range byPrice {
		out = append(out, *lvl)
	}
	sort.Slice(out, func(i, j int) bool {
		if descending {
			return out[i].Price.GreaterThan(out[j].Price)
		}
		return out[i].Price.LessThan(out[j].Price)
	})
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out
}

// Assets returns the metadata of every listed asset.
func (s *Svc) Assets(ctx context.Context) ([]types.Asset, error) {
	return s.ledger.Assets(ctx)
}

// AssetInfo returns the metadata of one token, matched case-insensitively.
func (s *Svc) AssetInfo(ctx context.Context, token string) (types.Asset, error) {
	assets, err := s.ledger.Assets(ctx)
	if err != nil {
		return types.Asset{}, err
	}
	for _, a := range assets {
		if strings.EqualFold(a.Token, token) {
			return a, nil
		}
	}
	return types.Asset{}, ErrTokenNotListed
}

// Rates returns the USD rate of every listed asset.
func (s *Svc) Rates(ctx context.Context) ([]types.Rate, error) {
	return s.ledger.Rates(ctx)
}

// Balances returns one token's balance on the master account and on its
// trading sub-account. Either side defaults to zero when the account holds
// nothing, or holds no sub-account at all.
func (s *Svc) Balances(ctx context.Context, token, address string) (types.AccountBalances, error) {
	out := types.AccountBalances{
		MasterBalance:  num.DecimalZero(),
		TradingBalance: num.DecimalZero(),
	}

	master, err := s.ledger.AccountBalances(ctx, address)
	if err != nil {
		return types.AccountBalances{}, err
	}
	if b, ok := findBalance(master, token); ok {
		out.MasterBalance = b
	}

	trader, ok, err := s.ledger.SubaccountAddress(ctx, address)
	if err != nil {
		return types.AccountBalances{}, err
	}
	if !ok {
		return out, nil
	}
	trading, err := s.ledger.AccountBalances(ctx, trader)
	if err != nil {
		return types.AccountBalances{}, err
	}
	if b, ok := findBalance(trading, token); ok {
		out.TradingBalance = b
	}
	return out, nil
}

func findBalance(balances []types.Balance, token string) (num.Decimal, bool) {
	for _, b := range balances {
		if strings.EqualFold(b.Token, token) {
			return b.Balance, true
		}
	}
	return num.Decimal{}, false
}

// Margin returns the margin ratio of an address, the USD collateral net of
// debt over their sum. An account with no balances at all has an undefined
// ratio and reports zero.
func (s *Svc) Margin(ctx context.Context, address string) (num.Decimal, error) {
	collateral, debt, err := s.collateralDebt(ctx, address)
	if err != nil {
		return num.Decimal{}, err
	}
	total := collateral.Add(debt)
	if total.IsZero() {
		return num.DecimalZero(), nil
	}
	return collateral.Sub(debt).Div(total), nil
}

// LockedBalance returns the USD collateral summary of an address, including
// the value locked in its trading sub-account's resting orders.
func (s *Svc) LockedBalance(ctx context.Context, address string) (types.CollateralSummary, error) {
	collateral, debt, err := s.collateralDebt(ctx, address)
	if err != nil {
		return types.CollateralSummary{}, err
	}

	locked := num.DecimalZero()
	trader, ok, err := s.ledger.SubaccountAddress(ctx, address)
	if err != nil {
		return types.CollateralSummary{}, err
	}
	if ok {
		orders, err := s.ledger.AllOrders(ctx)
		if err != nil {
			return types.CollateralSummary{}, err
		}
		for _, o := range orders {
			if o.Account == trader {
				locked = locked.Add(o.Price.Mul(o.Amount))
			}
		}
	}

	return types.CollateralSummary{
		CollateralUSD: collateral,
		DebtUSD:       debt,
		LockedUSD:     locked,
		AvailableUSD:  collateral.Sub(debt).Sub(locked),
	}, nil
}

// collateralDebt folds an address's balances, master plus linked trading
// sub-account, priced by the oracle rates, into USD collateral and debt
// totals. Positive balances collateralise, negative ones owe.
func (s *Svc) collateralDebt(ctx context.Context, address string) (collateral, debt num.Decimal, err error) {
	balances, err := s.ledger.AccountBalances(ctx, address)
	if err != nil {
		return num.Decimal{}, num.Decimal{}, err
	}
	trader, ok, err := s.ledger.SubaccountAddress(ctx, address)
	if err != nil {
		return num.Decimal{}, num.Decimal{}, err
	}
	if ok {
		traderBalances, err := s.ledger.AccountBalances(ctx, trader)
		if err != nil {
			return num.Decimal{}, num.Decimal{}, err
		}
		balances = append(balances, traderBalances...)
	}
	rates, err := s.ledger.Rates(ctx)
	if err != nil {
		return num.Decimal{}, num.Decimal{}, err
	}
	prices := make(map[string]num.Decimal, len(rates))
	for _, r := range rates {
		prices[r.Token] = r.Price
	}

	collateral, debt = num.DecimalZero(), num.DecimalZero()
	for _, b := range balances {
		price, ok := prices[b.Token]
		if !ok {
			continue
		}
		usd := b.Balance.Mul(price)
		switch {
		case usd.IsPositive():
			collateral = collateral.Add(usd)
		case usd.IsNegative():
			debt = debt.Add(usd.Abs())
		}
	}
	return collateral, debt, nil
}

package types

import (
	"strings"

	"code.equilab.io/gateway/num"

	"github.com/pkg/errors"
)

// ErrInvalidDirection is returned for order sides other than buy or sell.
var ErrInvalidDirection = errors.New("invalid direction")

// Direction is the side of an order.
type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// ParseDirection parses a direction from its request representation.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(s)) {
	case DirectionBuy:
		return DirectionBuy, nil
	case DirectionSell:
		return DirectionSell, nil
	default:
		return "", errors.Wrapf(ErrInvalidDirection, "%q", s)
	}
}

// Ledger returns the capitalised form the ledger modules expect.
func (d Direction) Ledger() string {
	if len(d) == 0 {
		return ""
	}
	return strings.ToUpper(string(d[0])) + string(d[1:])
}

// Order is an on-chain order descriptor as returned by ledger queries. The
// gateway never mutates these, it only submits operations whose effects
// become visible through later queries.
type Order struct {
	ID      uint64      `json:"orderId"`
	Account string      `json:"account"`
	Side    Direction   `json:"side"`
	Price   num.Decimal `json:"price"`
	Amount  num.Decimal `json:"amount"`
	Token   string      `json:"token"`
}

// PriceLevel is one aggregated depth level.
type PriceLevel struct {
	Price  num.Decimal `json:"price"`
	Amount num.Decimal `json:"amount"`
}

// MarketDepth is the aggregated order book for one token, bids sorted by
// price descending, asks ascending.
type MarketDepth struct {
	Bids []PriceLevel `json:"bids"`
	Asks []PriceLevel `json:"asks"`
}

// BestPrice is the ledger derived best bid/ask view for one token.
type BestPrice struct {
	Bid num.Decimal `json:"bid"`
	Ask num.Decimal `json:"ask"`
}

// Asset is the on-chain metadata of one tradeable asset.
type Asset struct {
	Token     string      `json:"token"`
	ID        uint64      `json:"asset"`
	Lot       num.Decimal `json:"lot"`
	PriceStep num.Decimal `json:"priceStep"`
	MakerFee  num.Decimal `json:"makerFee"`
	TakerFee  num.Decimal `json:"takerFee"`
}

// Rate is the oracle USD price of one asset.
type Rate struct {
	Token string      `json:"token"`
	Asset uint64      `json:"asset"`
	Price num.Decimal `json:"price"`
}

// Balance is the signed balance of one asset on one account.
type Balance struct {
	Token   string      `json:"token"`
	Asset   uint64      `json:"asset"`
	Balance num.Decimal `json:"balance"`
}

// AccountBalances is the master/trading split for one token.
type AccountBalances struct {
	MasterBalance  num.Decimal `json:"masterBalance"`
	TradingBalance num.Decimal `json:"tradingBalance"`
}

// CollateralSummary aggregates an account's USD exposure. Available is
// collateral minus debt minus locked.
type CollateralSummary struct {
	CollateralUSD num.Decimal `json:"collateralUsd"`
	DebtUSD       num.Decimal `json:"debtUsd"`
	LockedUSD     num.Decimal `json:"lockedUsd"`
	AvailableUSD  num.Decimal `json:"availableUsd"`
}

// Trade is one historical exchange as reported by the aggregation backend.
type Trade struct {
	ID             int64   `json:"id"`
	ChainID        int64   `json:"chainId"`
	Currency       string  `json:"currency"`
	Price          float64 `json:"price"`
	Amount         float64 `json:"amount"`
	MakerAccountID string  `json:"makerAccountId"`
	TakerAccountID string  `json:"takerAccountId"`
	MakerSide      string  `json:"makerSide"`
	BlockNumber    int64   `json:"blockNumber"`
	MakerFee       float64 `json:"makerFee"`
	TakerFee       float64 `json:"takerFee"`
}

// PendingExtrinsic is a not yet included submission sitting in the ledger's
// outstanding pool.
type PendingExtrinsic struct {
	Signer string   `json:"signer"`
	Nonce  uint64   `json:"nonce"`
	Method string   `json:"method"`
	Args   []string `json:"args,omitempty"`
}

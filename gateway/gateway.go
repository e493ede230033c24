package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"code.equilab.io/gateway/ledger"
	"code.equilab.io/gateway/logging"
	"code.equilab.io/gateway/markets"
	"code.equilab.io/gateway/nonce"
	"code.equilab.io/gateway/num"
	"code.equilab.io/gateway/orders"
	"code.equilab.io/gateway/pending"
	"code.equilab.io/gateway/trades"
	"code.equilab.io/gateway/types"
	"code.equilab.io/gateway/wallet"

	"github.com/julienschmidt/httprouter"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	uuid "github.com/satori/go.uuid"
)

// OrderService is the mutation surface behind the gateway.
//
//go:generate go run github.com/golang/mock/mockgen -destination mocks/order_service_mock.go -package mocks code.equilab.io/gateway/gateway OrderService
type OrderService interface {
	CreateLimitOrder(ctx context.Context, req orders.CreateLimitOrder) (orders.Ack, error)
	CreateMarketOrder(ctx context.Context, req orders.CreateMarketOrder) (orders.Ack, error)
	UpdateLimitOrder(ctx context.Context, req orders.UpdateLimitOrder) (interface{}, error)
	CancelLimitOrder(ctx context.Context, req orders.CancelLimitOrder) (*ledger.TxResult, error)
	CancelLimitOrders(ctx context.Context, req orders.CancelLimitOrders) (orders.BatchAck, error)
	Deposit(ctx context.Context, req orders.Transfer) (*ledger.TxResult, error)
	Withdraw(ctx context.Context, req orders.Transfer) (*ledger.TxResult, error)
	SudoDeposit(ctx context.Context, req orders.SudoDeposit) (*ledger.TxResult, error)
	PendingOrders(ctx context.Context, address string) ([]types.PendingExtrinsic, error)
	Operation(id string) (pending.Record, error)
}

// MarketService is the read surface behind the gateway.
//
//go:generate go run github.com/golang/mock/mockgen -destination mocks/market_service_mock.go -package mocks code.equilab.io/gateway/gateway MarketService
type MarketService interface {
	Orders(ctx context.Context, token string) ([]types.Order, error)
	OrdersByAddress(ctx context.Context, token, address string) ([]types.Order, error)
	BestPrice(ctx context.Context, token string) (types.BestPrice, error)
	Depth(ctx context.Context, token string, limit int64) (types.MarketDepth, error)
	Rates(ctx context.Context) ([]types.Rate, error)
	AssetInfo(ctx context.Context, token string) (types.Asset, error)
	Balances(ctx context.Context, token, address string) (types.AccountBalances, error)
	Margin(ctx context.Context, address string) (num.Decimal, error)
	LockedBalance(ctx context.Context, address string) (types.CollateralSummary, error)
}

// TradeService serves the off-chain trade history.
//
//go:generate go run github.com/golang/mock/mockgen -destination mocks/trade_service_mock.go -package mocks code.equilab.io/gateway/gateway TradeService
type TradeService interface {
	Trades(ctx context.Context, token, address string, page, pageSize uint64) ([]types.Trade, error)
}

// Gateway is the HTTP/JSON surface of the service. Read endpoints answer
// with the plain projection payload; mutations answer with the
// {success, pending, payload} envelope the operation tracker also uses.
type Gateway struct {
	*httprouter.Router

	log    *logging.Logger
	cfg    Config
	order  OrderService
	market MarketService
	trade  TradeService

	srv *http.Server
}

// New creates the gateway and binds its routes.
func New(log *logging.Logger, cfg Config, order OrderService, market MarketService, trade TradeService) *Gateway {
	log = log.Named(namedLogger)
	log.SetLevel(cfg.Level.Get())

	g := &Gateway{
		Router: httprouter.New(),
		log:    log,
		cfg:    cfg,
		order:  order,
		market: market,
		trade:  trade,
	}

	g.GET("/orders/:token", g.Orders)
	g.GET("/orders/:token/:address", g.OrdersByAddress)
	g.GET("/orderBook/:token", g.OrderBook)
	g.GET("/bestPrices/:token", g.BestPrices)
	g.GET("/trades/:token", g.Trades)
	g.GET("/tradesByAddress/:token/:address", g.TradesByAddress)
	g.GET("/balances/:token/:address", g.Balances)
	g.GET("/margin/:address", g.Margin)
	g.GET("/lockedBalance/:address", g.LockedBalance)
	g.GET("/rates", g.Rates)
	g.GET("/token/:token", g.Token)
	g.GET("/pendingExtrinsics/:address", g.PendingExtrinsics)

	g.POST("/limitOrder", g.CreateLimitOrder)
	g.PUT("/limitOrder", g.UpdateLimitOrder)
	g.DELETE("/limitOrder", g.CancelLimitOrder)
	g.DELETE("/limitOrders", g.CancelLimitOrders)
	g.GET("/limitOrder/:operationId", g.Operation)
	g.POST("/marketOrder", g.CreateMarketOrder)
	g.GET("/marketOrder/:operationId", g.Operation)
	g.POST("/deposit", g.Deposit)
	g.POST("/withdraw", g.Withdraw)
	g.POST("/sudo/deposit", g.SudoDeposit)

	return g
}

// Handler returns the fully wrapped HTTP handler, CORS and request id
// tagging included.
func (g *Gateway) Handler() http.Handler {
	return cors.AllowAll().Handler(requestID(g.Router))
}

// Start runs the HTTP server until Stop is called.
func (g *Gateway) Start() error {
	g.srv = &http.Server{
		Addr:    fmt.Sprintf("%s:%v", g.cfg.IP, g.cfg.Port),
		Handler: g.Handler(),
	}

	g.log.Info("starting gateway server", logging.String("address", g.srv.Addr))
	return g.srv.ListenAndServe()
}

// Stop shuts the HTTP server down.
func (g *Gateway) Stop() error {
	return g.srv.Shutdown(context.Background())
}

// requestID tags every response with a fresh X-Request-Id.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-Id", uuid.NewV4().String())
		next.ServeHTTP(w, r)
	})
}

func (g *Gateway) Orders(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	data, err := g.market.Orders(r.Context(), ps.ByName("token"))
	if err != nil {
		g.writeServiceError(w, err)
		return
	}
	writeSuccess(w, data, http.StatusOK)
}

func (g *Gateway) OrdersByAddress(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	data, err := g.market.OrdersByAddress(r.Context(), ps.ByName("token"), ps.ByName("address"))
	if err != nil {
		g.writeServiceError(w, err)
		return
	}
	writeSuccess(w, data, http.StatusOK)
}

func (g *Gateway) OrderBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	// a missing or malformed depth falls back to the configured default
	depth, _ := strconv.ParseInt(r.URL.Query().Get("depth"), 10, 64)
	data, err := g.market.Depth(r.Context(), ps.ByName("token"), depth)
	if err != nil {
		g.writeServiceError(w, err)
		return
	}
	writeSuccess(w, data, http.StatusOK)
}

func (g *Gateway) BestPrices(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	data, err := g.market.BestPrice(r.Context(), ps.ByName("token"))
	if err != nil {
		g.writeServiceError(w, err)
		return
	}
	writeSuccess(w, data, http.StatusOK)
}

func (g *Gateway) Trades(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	page, pageSize := pagination(r)
	data, err := g.trade.Trades(r.Context(), ps.ByName("token"), "", page, pageSize)
	if err != nil {
		g.writeServiceError(w, err)
		return
	}
	writeSuccess(w, data, http.StatusOK)
}

func (g *Gateway) TradesByAddress(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	page, pageSize := pagination(r)
	data, err := g.trade.Trades(r.Context(), ps.ByName("token"), ps.ByName("address"), page, pageSize)
	if err != nil {
		g.writeServiceError(w, err)
		return
	}
	writeSuccess(w, data, http.StatusOK)
}

func (g *Gateway) Balances(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	data, err := g.market.Balances(r.Context(), ps.ByName("token"), ps.ByName("address"))
	if err != nil {
		g.writeServiceError(w, err)
		return
	}
	writeSuccess(w, data, http.StatusOK)
}

func (g *Gateway) Margin(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	data, err := g.market.Margin(r.Context(), ps.ByName("address"))
	if err != nil {
		g.writeServiceError(w, err)
		return
	}
	writeSuccess(w, data, http.StatusOK)
}

func (g *Gateway) LockedBalance(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	data, err := g.market.LockedBalance(r.Context(), ps.ByName("address"))
	if err != nil {
		g.writeServiceError(w, err)
		return
	}
	writeSuccess(w, data, http.StatusOK)
}

func (g *Gateway) Rates(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	data, err := g.market.Rates(r.Context())
	if err != nil {
		g.writeServiceError(w, err)
		return
	}
	writeSuccess(w, data, http.StatusOK)
}

func (g *Gateway) Token(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	data, err := g.market.AssetInfo(r.Context(), ps.ByName("token"))
	if err != nil {
		g.writeServiceError(w, err)
		return
	}
	writeSuccess(w, data, http.StatusOK)
}

func (g *Gateway) PendingExtrinsics(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	data, err := g.order.PendingOrders(r.Context(), ps.ByName("address"))
	if err != nil {
		g.writeServiceError(w, err)
		return
	}
	writeSuccess(w, data, http.StatusOK)
}

type limitOrderRequest struct {
	Token      string  `json:"token"`
	Amount     string  `json:"amount"`
	LimitPrice string  `json:"limitPrice"`
	Direction  string  `json:"direction"`
	Address    string  `json:"address"`
	Tip        uint64  `json:"tip"`
	Nonce      *uint64 `json:"nonce"`
	UsingPool  bool    `json:"usingPool"`
}

func (g *Gateway) CreateLimitOrder(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req := limitOrderRequest{}
	if err := unmarshalBody(r, &req); err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	if len(req.Token) <= 0 {
		writeError(w, newError("missing token field"), http.StatusBadRequest)
		return
	}
	if len(req.Address) <= 0 {
		writeError(w, newError("missing address field"), http.StatusBadRequest)
		return
	}
	direction, err := types.ParseDirection(req.Direction)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	amount, err := parsePositiveDecimal("amount", req.Amount)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	price, err := parsePositiveDecimal("limitPrice", req.LimitPrice)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}

	ack, err := g.order.CreateLimitOrder(r.Context(), orders.CreateLimitOrder{
		Token:      req.Token,
		Address:    req.Address,
		Amount:     amount,
		LimitPrice: price,
		Direction:  direction,
		Tip:        req.Tip,
		Nonce:      req.Nonce,
		UsingPool:  req.UsingPool,
	})
	if err != nil {
		g.writeServiceError(w, err)
		return
	}
	writeSuccess(w, envelope{Success: true, Pending: true, Payload: ack}, http.StatusOK)
}

type updateLimitOrderRequest struct {
	OperationID   string  `json:"operationId"`
	Token         string  `json:"token"`
	AmountNew     string  `json:"amountNew"`
	LimitPrice    string  `json:"limitPrice"`
	LimitPriceNew string  `json:"limitPriceNew"`
	Direction     string  `json:"direction"`
	Address       string  `json:"address"`
	Nonce         *uint64 `json:"nonce"`
	Tip           uint64  `json:"tip"`
}

func (g *Gateway) UpdateLimitOrder(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req := updateLimitOrderRequest{}
	if err := unmarshalBody(r, &req); err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	if len(req.OperationID) <= 0 {
		writeError(w, newError("missing operationId field"), http.StatusBadRequest)
		return
	}
	if len(req.Token) <= 0 {
		writeError(w, newError("missing token field"), http.StatusBadRequest)
		return
	}
	if len(req.Address) <= 0 {
		writeError(w, newError("missing address field"), http.StatusBadRequest)
		return
	}
	direction, err := types.ParseDirection(req.Direction)
	if err != nil && len(req.Direction) > 0 {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	price, err := parseDecimal("limitPrice", req.LimitPrice)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	priceNew, err := parseDecimal("limitPriceNew", req.LimitPriceNew)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	amountNew, err := parseDecimal("amountNew", req.AmountNew)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}

	res, err := g.order.UpdateLimitOrder(r.Context(), orders.UpdateLimitOrder{
		OperationID:   req.OperationID,
		Token:         req.Token,
		Address:       req.Address,
		Direction:     direction,
		LimitPrice:    price,
		LimitPriceNew: priceNew,
		AmountNew:     amountNew,
		Nonce:         req.Nonce,
		Tip:           req.Tip,
	})
	if err != nil {
		g.writeServiceError(w, err)
		return
	}

	stillPending := true
	if _, settled := res.(orders.Notice); settled {
		stillPending = false
	}
	writeSuccess(w, envelope{Success: true, Pending: stillPending, Payload: res}, http.StatusOK)
}

type cancelLimitOrderRequest struct {
	Token     string `json:"token"`
	Price     string `json:"price"`
	OrderID   uint64 `json:"orderId"`
	Address   string `json:"address"`
	UsingPool bool   `json:"usingPool"`
}

func (g *Gateway) CancelLimitOrder(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req := cancelLimitOrderRequest{}
	if err := unmarshalBody(r, &req); err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	if len(req.Token) <= 0 {
		writeError(w, newError("missing token field"), http.StatusBadRequest)
		return
	}
	if len(req.Address) <= 0 {
		writeError(w, newError("missing address field"), http.StatusBadRequest)
		return
	}
	if req.OrderID == 0 {
		writeError(w, newError("missing orderId field"), http.StatusBadRequest)
		return
	}
	price, err := parsePositiveDecimal("price", req.Price)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}

	res, err := g.order.CancelLimitOrder(r.Context(), orders.CancelLimitOrder{
		Token:     req.Token,
		Price:     price,
		OrderID:   req.OrderID,
		Address:   req.Address,
		UsingPool: req.UsingPool,
	})
	if err != nil {
		g.writeServiceError(w, err)
		return
	}
	writeSuccess(w, envelope{Success: true, Payload: res}, http.StatusOK)
}

type cancelLimitOrdersRequest struct {
	Orders []struct {
		Token   string `json:"token"`
		Price   string `json:"price"`
		OrderID uint64 `json:"orderId"`
	} `json:"orders"`
	Address   string `json:"address"`
	UsingPool bool   `json:"usingPool"`
}

func (g *Gateway) CancelLimitOrders(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req := cancelLimitOrdersRequest{}
	if err := unmarshalBody(r, &req); err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	if len(req.Address) <= 0 {
		writeError(w, newError("missing address field"), http.StatusBadRequest)
		return
	}
	if len(req.Orders) == 0 {
		writeError(w, newError("missing orders field"), http.StatusBadRequest)
		return
	}

	refs := make([]orders.OrderRef, 0, len(req.Orders))
	for _, o := range req.Orders {
		price, err := parsePositiveDecimal("price", o.Price)
		if err != nil {
			writeError(w, err, http.StatusBadRequest)
			return
		}
		if o.OrderID == 0 {
			writeError(w, newError("missing orderId field"), http.StatusBadRequest)
			return
		}
		refs = append(refs, orders.OrderRef{Token: o.Token, Price: price, OrderID: o.OrderID})
	}

	ack, err := g.order.CancelLimitOrders(r.Context(), orders.CancelLimitOrders{
		Orders:    refs,
		Address:   req.Address,
		UsingPool: req.UsingPool,
	})
	if err != nil {
		g.writeServiceError(w, err)
		return
	}
	writeSuccess(w, envelope{Success: true, Payload: ack}, http.StatusOK)
}

type marketOrderRequest struct {
	Token     string `json:"token"`
	Amount    string `json:"amount"`
	Direction string `json:"direction"`
	Address   string `json:"address"`
}

func (g *Gateway) CreateMarketOrder(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req := marketOrderRequest{}
	if err := unmarshalBody(r, &req); err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	if len(req.Token) <= 0 {
		writeError(w, newError("missing token field"), http.StatusBadRequest)
		return
	}
	if len(req.Address) <= 0 {
		writeError(w, newError("missing address field"), http.StatusBadRequest)
		return
	}
	direction, err := types.ParseDirection(req.Direction)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	amount, err := parsePositiveDecimal("amount", req.Amount)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}

	ack, err := g.order.CreateMarketOrder(r.Context(), orders.CreateMarketOrder{
		Token:     req.Token,
		Address:   req.Address,
		Amount:    amount,
		Direction: direction,
	})
	if err != nil {
		g.writeServiceError(w, err)
		return
	}
	writeSuccess(w, envelope{Success: true, Pending: true, Payload: ack}, http.StatusOK)
}

func (g *Gateway) Operation(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	rec, err := g.order.Operation(ps.ByName("operationId"))
	if err != nil {
		g.writeServiceError(w, err)
		return
	}
	// the record marshals into the envelope itself
	writeSuccess(w, rec, http.StatusOK)
}

type transferRequest struct {
	Token   string `json:"token"`
	Amount  string `json:"amount"`
	Address string `json:"address"`
	To      string `json:"to"`
}

func (g *Gateway) Deposit(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	g.transfer(w, r, g.order.Deposit)
}

func (g *Gateway) Withdraw(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	g.transfer(w, r, g.order.Withdraw)
}

func (g *Gateway) transfer(w http.ResponseWriter, r *http.Request, do func(context.Context, orders.Transfer) (*ledger.TxResult, error)) {
	req := transferRequest{}
	if err := unmarshalBody(r, &req); err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	if len(req.Token) <= 0 {
		writeError(w, newError("missing token field"), http.StatusBadRequest)
		return
	}
	if len(req.Address) <= 0 {
		writeError(w, newError("missing address field"), http.StatusBadRequest)
		return
	}
	amount, err := parsePositiveDecimal("amount", req.Amount)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}

	res, err := do(r.Context(), orders.Transfer{Token: req.Token, Address: req.Address, Amount: amount})
	if err != nil {
		g.writeServiceError(w, err)
		return
	}
	writeSuccess(w, envelope{Success: true, Payload: res}, http.StatusOK)
}

func (g *Gateway) SudoDeposit(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req := transferRequest{}
	if err := unmarshalBody(r, &req); err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	if len(req.Token) <= 0 {
		writeError(w, newError("missing token field"), http.StatusBadRequest)
		return
	}
	if len(req.Address) <= 0 {
		writeError(w, newError("missing address field"), http.StatusBadRequest)
		return
	}
	if len(req.To) <= 0 {
		writeError(w, newError("missing to field"), http.StatusBadRequest)
		return
	}
	amount, err := parsePositiveDecimal("amount", req.Amount)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}

	res, err := g.order.SudoDeposit(r.Context(), orders.SudoDeposit{
		Token:   req.Token,
		Address: req.Address,
		To:      req.To,
		Amount:  amount,
	})
	if err != nil {
		g.writeServiceError(w, err)
		return
	}
	writeSuccess(w, envelope{Success: true, Payload: res}, http.StatusOK)
}

// envelope is the response shape of mutating endpoints, matching the
// operation tracker's record rendering.
type envelope struct {
	Success bool        `json:"success"`
	Pending bool        `json:"pending"`
	Payload interface{} `json:"payload"`
}

// writeServiceError maps service errors onto HTTP statuses, keeping the
// error envelope shape.
func (g *Gateway) writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case isNotFound(err):
		status = http.StatusNotFound
	case isBadRequest(err):
		status = http.StatusBadRequest
	case errors.Is(err, trades.ErrHistoryUnavailable), errors.Is(err, trades.ErrChainNotIdentified):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		g.log.Error("request failed", logging.Error(err))
	}
	writeError(w, err, status)
}

func isNotFound(err error) bool {
	return errors.Is(err, orders.ErrOrderNotFound) ||
		errors.Is(err, pending.ErrOperationNotFound) ||
		errors.Is(err, markets.ErrTokenNotListed)
}

func isBadRequest(err error) bool {
	return errors.Is(err, wallet.ErrSignerNotFound) ||
		errors.Is(err, nonce.ErrNonceNotFound) ||
		errors.Is(err, orders.ErrOrderIDMissing) ||
		errors.Is(err, orders.ErrCancelDetailsRequired) ||
		errors.Is(err, types.ErrInvalidDirection) ||
		errors.Is(err, types.ErrInvalidToken)
}

func pagination(r *http.Request) (page, pageSize uint64) {
	q := r.URL.Query()
	page, _ = strconv.ParseUint(q.Get("page"), 10, 64)
	pageSize, _ = strconv.ParseUint(q.Get("pageSize"), 10, 64)
	return page, pageSize
}

func parseDecimal(field, s string) (num.Decimal, error) {
	if s == "" {
		return num.DecimalZero(), nil
	}
	d, err := num.DecimalFromString(s)
	if err != nil {
		return num.Decimal{}, newError(fmt.Sprintf("invalid %s field", field))
	}
	return d, nil
}

func parsePositiveDecimal(field, s string) (num.Decimal, error) {
	if s == "" {
		return num.Decimal{}, newError(fmt.Sprintf("missing %s field", field))
	}
	d, err := num.DecimalFromString(s)
	if err != nil || !d.IsPositive() {
		return num.Decimal{}, newError(fmt.Sprintf("%s need to be a positive decimal", field))
	}
	return d, nil
}

func unmarshalBody(r *http.Request, into interface{}) error {
	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return ErrInvalidRequest
	}
	if err := json.Unmarshal(body, into); err != nil {
		return ErrInvalidRequest
	}
	return nil
}

func writeError(w http.ResponseWriter, e error, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	buf, _ := json.Marshal(envelope{Payload: map[string]string{"error": e.Error()}})
	w.Write(buf)
}

func writeSuccess(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	buf, _ := json.Marshal(data)
	w.Write(buf)
}

// ErrInvalidRequest is returned for bodies that do not parse as JSON.
var ErrInvalidRequest = newError("invalid request")

// HTTPError is a request validation failure.
type HTTPError struct {
	ErrorStr string `json:"error"`
}

func (e HTTPError) Error() string {
	return e.ErrorStr
}

func newError(e string) HTTPError {
	return HTTPError{
		ErrorStr: e,
	}
}

package trades

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"code.equilab.io/gateway/logging"
	"code.equilab.io/gateway/types"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
)

var (
	// ErrChainNotIdentified is returned when the chain id could not be
	// resolved from the history API yet.
	ErrChainNotIdentified = errors.New("chain id not identified")
	// ErrHistoryUnavailable is returned when the history API kept failing
	// past the retry budget.
	ErrHistoryUnavailable = errors.New("trade history unavailable")
)

// ChainReader is the subset of the ledger used to identify the chain the
// gateway is connected to.
//
//go:generate go run github.com/golang/mock/mockgen -destination mocks/chain_reader_mock.go -package mocks code.equilab.io/gateway/trades ChainReader
type ChainReader interface {
	GenesisHash(ctx context.Context) (string, error)
}

// Svc serves settled trade history. The history lives in an off-chain
// indexer keyed by chain id, so the service first maps the node's genesis
// hash to a chain id and caches it for the lifetime of the process.
type Svc struct {
	Config
	log   *logging.Logger
	chain ChainReader

	mu      sync.Mutex
	client  *http.Client
	chainID uint64
	known   bool

	// resolveMu serialises chain id resolution so a cold cache costs one
	// round-trip, not one per caller. s.mu is never held across the I/O.
	resolveMu sync.Mutex
}

// NewService creates a trade history service.
func NewService(log *logging.Logger, cfg Config, chain ChainReader) *Svc {
	log = log.Named(namedLogger)
	log.SetLevel(cfg.Level.Get())

	return &Svc{
		Config: cfg,
		log:    log,
		chain:  chain,
		client: &http.Client{Timeout: cfg.Timeout.Get()},
	}
}

// ReloadConf update the internal configuration of the service. In-flight
// requests finish on the client they started with; the new timeout applies
// to a fresh client.
func (s *Svc) ReloadConf(cfg Config) {
	s.log.Info("reloading configuration")
	if s.log.GetLevel() != cfg.Level.Get() {
		s.log.SetLevel(cfg.Level.Get())
	}

	s.mu.Lock()
	s.Config = cfg
	s.client = &http.Client{Timeout: cfg.Timeout.Get()}
	s.mu.Unlock()
}

// conf returns a snapshot of the current configuration and client.
func (s *Svc) conf() (Config, *http.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Config, s.client
}

// ChainID resolves and caches the chain id of the connected ledger.
func (s *Svc) ChainID(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	if s.known {
		id := s.chainID
		s.mu.Unlock()
		return id, nil
	}
	s.mu.Unlock()

	s.resolveMu.Lock()
	defer s.resolveMu.Unlock()

	// a concurrent caller may have resolved it while we waited
	s.mu.Lock()
	if s.known {
		id := s.chainID
		s.mu.Unlock()
		return id, nil
	}
	endpoint := s.APIEndpoint
	s.mu.Unlock()

	hash, err := s.chain.GenesisHash(ctx)
	if err != nil {
		return 0, err
	}

	var resp struct {
		ChainID uint64 `json:"chainId"`
	}
	url := fmt.Sprintf("%s/chains/byHash?hash=%s", endpoint, url.QueryEscape(hash))
	if err := s.getJSON(ctx, url, &resp); err != nil {
		return 0, errors.Wrap(ErrChainNotIdentified, err.Error())
	}

	s.mu.Lock()
	s.chainID = resp.ChainID
	s.known = true
	s.mu.Unlock()

	s.log.Info("chain id initialised",
		logging.String("genesis-hash", hash),
		logging.Uint64("chain-id", resp.ChainID),
	)
	return resp.ChainID, nil
}

// Trades returns one page of settled trades for a token, optionally
// scoped to trades one account took part in. Page sizes outside the
// configured bounds are clamped rather than rejected.
func (s *Svc) Trades(ctx context.Context, token, address string, page, pageSize uint64) ([]types.Trade, error) {
	chainID, err := s.ChainID(ctx)
	if err != nil {
		return nil, err
	}

	cfg, _ := s.conf()
	if pageSize == 0 {
		pageSize = cfg.DefaultPageSize
	}
	if pageSize > cfg.MaximumPageSize {
		pageSize = cfg.MaximumPageSize
	}

	q := url.Values{}
	q.Set("chainId", strconv.FormatUint(chainID, 10))
	q.Set("currency", token)
	q.Set("page", strconv.FormatUint(page, 10))
	q.Set("pageSize", strconv.FormatUint(pageSize, 10))
	if address != "" {
		q.Set("acc", address)
	}

	var trades []types.Trade
	if err := s.getJSON(ctx, cfg.APIEndpoint+"/dex/exchanges?"+q.Encode(), &trades); err != nil {
		return nil, err
	}
	return trades, nil
}

// getJSON fetches a JSON document, retrying transient failures with
// exponential backoff.
func (s *Svc) getJSON(ctx context.Context, url string, into interface{}) error {
	cfg, client := s.conf()
	err := backoff.Retry(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return backoff.Permanent(err)
			}
			resp, err := client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				err := errors.Errorf("unexpected status %d", resp.StatusCode)
				if resp.StatusCode >= 400 && resp.StatusCode < 500 {
					return backoff.Permanent(err)
				}
				return err
			}
			if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
				return backoff.Permanent(errors.Wrap(err, "invalid history response"))
			}
			return nil
		},
		backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), cfg.Retries), ctx),
	)
	if err != nil {
		s.log.Warn("history request failed",
			logging.String("url", url),
			logging.Error(err),
		)
		return errors.Wrap(ErrHistoryUnavailable, err.Error())
	}
	return nil
}

package orders_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"code.equilab.io/gateway/ledger"
	"code.equilab.io/gateway/logging"
	"code.equilab.io/gateway/num"
	"code.equilab.io/gateway/orders"
	"code.equilab.io/gateway/pending"
	"code.equilab.io/gateway/types"
	"code.equilab.io/gateway/wallet"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

type stubLedger struct {
	mu        sync.Mutex
	submitted []*ledger.Tx
	pendingEx []types.PendingExtrinsic
	submit    func(tx *ledger.Tx) (*ledger.TxResult, error)
}

func (l *stubLedger) SubmitTx(_ context.Context, tx *ledger.Tx, _ ledger.Signer) (*ledger.TxResult, error) {
	l.mu.Lock()
	l.submitted = append(l.submitted, tx)
	fn := l.submit
	l.mu.Unlock()
	if fn != nil {
		return fn(tx)
	}
	return orderCreated(77), nil
}

func (l *stubLedger) PendingExtrinsics(_ context.Context) ([]types.PendingExtrinsic, error) {
	return l.pendingEx, nil
}

func (l *stubLedger) txs() []*ledger.Tx {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*ledger.Tx, len(l.submitted))
	copy(out, l.submitted)
	return out
}

func orderCreated(id uint64) *ledger.TxResult {
	return &ledger.TxResult{Events: []ledger.Event{
		{Section: "eqDex", Method: "OrderCreated", OrderID: id},
	}}
}

type stubNonces struct {
	mu    sync.Mutex
	next  map[string]uint64
	calls int
}

func (n *stubNonces) Allocate(address string) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.next == nil {
		n.next = map[string]uint64{}
	}
	n.calls++
	nonce := n.next[address]
	n.next[address] = nonce + 1
	return nonce, nil
}

type fixture struct {
	svc     *orders.Svc
	ledger  *stubLedger
	nonces  *stubNonces
	tracker *pending.Tracker
	address string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logging.NewTestLogger()

	keyring, err := wallet.FromMnemonics(log, []string{testMnemonic})
	require.NoError(t, err)
	require.Len(t, keyring.Addresses(), 1)

	ldgr := &stubLedger{}
	nonces := &stubNonces{}
	tracker := pending.NewTracker(log, pending.NewDefaultConfig())

	return &fixture{
		svc:     orders.NewService(log, orders.NewDefaultConfig(), ldgr, nonces, keyring, tracker),
		ledger:  ldgr,
		nonces:  nonces,
		tracker: tracker,
		address: keyring.Addresses()[0],
	}
}

func (f *fixture) settled(t *testing.T, id string) pending.Record {
	t.Helper()
	var rec pending.Record
	require.Eventually(t, func() bool {
		var err error
		rec, err = f.tracker.Get(id)
		return err == nil && rec.Status != pending.StatusPending
	}, time.Second, 5*time.Millisecond)
	return rec
}

func dec(s string) num.Decimal {
	return num.MustDecimalFromString(s)
}

func TestCreateLimitOrder(t *testing.T) {
	t.Run("acknowledges and settles in the background", func(t *testing.T) {
		f := newFixture(t)

		ack, err := f.svc.CreateLimitOrder(context.Background(), orders.CreateLimitOrder{
			Token:      "eth",
			Address:    f.address,
			Amount:     dec("0.5"),
			LimitPrice: dec("2000"),
			Direction:  types.DirectionBuy,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, ack.OperationID)
		assert.EqualValues(t, 0, ack.Nonce)

		rec := f.settled(t, ack.OperationID)
		assert.Equal(t, pending.StatusSucceeded, rec.Status)
		result := rec.Payload.(*ledger.TxResult)
		id, ok := result.OrderID()
		require.True(t, ok)
		assert.EqualValues(t, 77, id)

		txs := f.ledger.txs()
		require.Len(t, txs, 1)
		assert.Equal(t, "eqDex", txs[0].Call.Module)
		assert.Equal(t, "createOrder", txs[0].Call.Method)
		require.NotNil(t, txs[0].Nonce)
		assert.EqualValues(t, 0, *txs[0].Nonce)
	})

	t.Run("explicit nonce and tip bypass the registry", func(t *testing.T) {
		f := newFixture(t)

		nonce := uint64(9)
		ack, err := f.svc.CreateLimitOrder(context.Background(), orders.CreateLimitOrder{
			Token:      "eth",
			Address:    f.address,
			Amount:     dec("1"),
			LimitPrice: dec("2000"),
			Direction:  types.DirectionSell,
			Nonce:      &nonce,
			Tip:        100,
		})
		require.NoError(t, err)
		assert.EqualValues(t, 9, ack.Nonce)
		assert.EqualValues(t, 100, ack.Tip)
		assert.Zero(t, f.nonces.calls)

		f.settled(t, ack.OperationID)
		txs := f.ledger.txs()
		require.Len(t, txs, 1)
		assert.EqualValues(t, 9, *txs[0].Nonce)
		assert.EqualValues(t, 100, txs[0].Tip)
	})

	t.Run("submission failure settles the record as failed", func(t *testing.T) {
		f := newFixture(t)
		f.ledger.submit = func(*ledger.Tx) (*ledger.TxResult, error) {
			return nil, &ledger.SubmissionError{Errors: []ledger.ModuleError{
				{Section: "eqDex", Method: "OrderPriceIsInvalid", Docs: "Order price is invalid"},
			}}
		}

		ack, err := f.svc.CreateLimitOrder(context.Background(), orders.CreateLimitOrder{
			Token:      "eth",
			Address:    f.address,
			Amount:     dec("1"),
			LimitPrice: dec("-1"),
			Direction:  types.DirectionBuy,
		})
		require.NoError(t, err, "acceptance does not wait for the ledger")

		rec := f.settled(t, ack.OperationID)
		assert.Equal(t, pending.StatusFailed, rec.Status)
		assert.Contains(t, rec.Err.Error(), "OrderPriceIsInvalid")
	})

	t.Run("unknown address is rejected synchronously", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.CreateLimitOrder(context.Background(), orders.CreateLimitOrder{
			Token:      "eth",
			Address:    "5stranger",
			Amount:     dec("1"),
			LimitPrice: dec("2000"),
			Direction:  types.DirectionBuy,
		})
		assert.ErrorIs(t, err, wallet.ErrSignerNotFound)
		assert.Empty(t, f.ledger.txs())
	})

	t.Run("invalid token is rejected synchronously", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.CreateLimitOrder(context.Background(), orders.CreateLimitOrder{
			Token:      "not a token",
			Address:    f.address,
			Amount:     dec("1"),
			LimitPrice: dec("2000"),
			Direction:  types.DirectionBuy,
		})
		assert.Error(t, err)
	})

	t.Run("no inclusion report keeps the operation pending", func(t *testing.T) {
		f := newFixture(t)

		// by default no confirmation timeout is imposed, the submission
		// waits for the ledger however long it takes
		cfg := orders.NewDefaultConfig()
		require.Zero(t, cfg.SubmitTimeout.Get())

		release := make(chan struct{})
		t.Cleanup(func() { close(release) })
		f.ledger.submit = func(*ledger.Tx) (*ledger.TxResult, error) {
			<-release
			return nil, ledger.ErrNoInclusionReport
		}

		ack, err := f.svc.CreateLimitOrder(context.Background(), orders.CreateLimitOrder{
			Token:      "eth",
			Address:    f.address,
			Amount:     dec("0.5"),
			LimitPrice: dec("2000"),
			Direction:  types.DirectionBuy,
		})
		require.NoError(t, err)

		time.Sleep(100 * time.Millisecond)
		rec, err := f.tracker.Get(ack.OperationID)
		require.NoError(t, err)
		assert.Equal(t, pending.StatusPending, rec.Status, "unconfirmed submission must not be failed")
	})
}

func TestUpdateLimitOrder(t *testing.T) {
	t.Run("confirmed order is cancelled and recreated", func(t *testing.T) {
		f := newFixture(t)

		ack, err := f.svc.CreateLimitOrder(context.Background(), orders.CreateLimitOrder{
			Token: "eth", Address: f.address, Amount: dec("1"), LimitPrice: dec("2000"), Direction: types.DirectionBuy,
		})
		require.NoError(t, err)
		f.settled(t, ack.OperationID)

		res, err := f.svc.UpdateLimitOrder(context.Background(), orders.UpdateLimitOrder{
			OperationID:   ack.OperationID,
			Token:         "eth",
			Address:       f.address,
			Direction:     types.DirectionBuy,
			LimitPrice:    dec("2000"),
			LimitPriceNew: dec("2100"),
			AmountNew:     dec("2"),
		})
		require.NoError(t, err)

		next, ok := res.(orders.Ack)
		require.True(t, ok)
		assert.NotEqual(t, ack.OperationID, next.OperationID)
		f.settled(t, next.OperationID)

		txs := f.ledger.txs()
		require.Len(t, txs, 3)
		assert.Equal(t, "deleteOrder", txs[1].Call.Method)
		assert.Equal(t, "createOrder", txs[2].Call.Method)
	})

	t.Run("confirmed order with zero replacement is only cancelled", func(t *testing.T) {
		f := newFixture(t)

		ack, err := f.svc.CreateLimitOrder(context.Background(), orders.CreateLimitOrder{
			Token: "eth", Address: f.address, Amount: dec("1"), LimitPrice: dec("2000"), Direction: types.DirectionBuy,
		})
		require.NoError(t, err)
		f.settled(t, ack.OperationID)

		res, err := f.svc.UpdateLimitOrder(context.Background(), orders.UpdateLimitOrder{
			OperationID: ack.OperationID,
			Token:       "eth",
			Address:     f.address,
			Direction:   types.DirectionBuy,
			LimitPrice:  dec("2000"),
		})
		require.NoError(t, err)
		assert.Equal(t, orders.Notice{Message: "Order cancelled on chain"}, res)

		txs := f.ledger.txs()
		require.Len(t, txs, 2)
		assert.Equal(t, "deleteOrder", txs[1].Call.Method)
	})

	t.Run("fully matched order has nothing to replace", func(t *testing.T) {
		f := newFixture(t)
		f.ledger.submit = func(*ledger.Tx) (*ledger.TxResult, error) {
			return &ledger.TxResult{Events: []ledger.Event{{Section: "system", Method: "ExtrinsicSuccess"}}}, nil
		}

		ack, err := f.svc.CreateLimitOrder(context.Background(), orders.CreateLimitOrder{
			Token: "eth", Address: f.address, Amount: dec("1"), LimitPrice: dec("2000"), Direction: types.DirectionBuy,
		})
		require.NoError(t, err)
		f.settled(t, ack.OperationID)

		_, err = f.svc.UpdateLimitOrder(context.Background(), orders.UpdateLimitOrder{
			OperationID:   ack.OperationID,
			Token:         "eth",
			Address:       f.address,
			LimitPriceNew: dec("2100"),
			AmountNew:     dec("1"),
		})
		assert.ErrorIs(t, err, orders.ErrOrderIDMissing)
	})

	t.Run("unconfirmed cancellation races a marker into the slot", func(t *testing.T) {
		f := newFixture(t)

		block := make(chan struct{})
		f.ledger.submit = func(tx *ledger.Tx) (*ledger.TxResult, error) {
			if tx.Call.Method == "createOrder" {
				<-block // order stuck waiting for a block
				return orderCreated(77), nil
			}
			return &ledger.TxResult{}, nil
		}

		ack, err := f.svc.CreateLimitOrder(context.Background(), orders.CreateLimitOrder{
			Token: "eth", Address: f.address, Amount: dec("1"), LimitPrice: dec("2000"), Direction: types.DirectionBuy,
		})
		require.NoError(t, err)

		nonce := ack.Nonce
		res, err := f.svc.UpdateLimitOrder(context.Background(), orders.UpdateLimitOrder{
			OperationID: ack.OperationID,
			Token:       "eth",
			Address:     f.address,
			Nonce:       &nonce,
			Tip:         10,
		})
		require.NoError(t, err)

		marker, ok := res.(orders.Ack)
		require.True(t, ok)
		assert.Equal(t, ack.OperationID, marker.OperationID, "the marker settles the original operation")
		assert.Equal(t, "Limit order is cancelling in block", marker.Message)

		rec := f.settled(t, ack.OperationID)
		assert.Equal(t, pending.StatusSucceeded, rec.Status)
		assert.Equal(t, orders.Notice{Message: "Order cancelled in block"}, rec.Payload)

		// The displaced order landing afterwards must not overwrite the
		// settled record.
		close(block)
		require.Eventually(t, func() bool {
			return len(f.ledger.txs()) == 2
		}, time.Second, 5*time.Millisecond)
		rec, err = f.tracker.Get(ack.OperationID)
		require.NoError(t, err)
		assert.Equal(t, orders.Notice{Message: "Order cancelled in block"}, rec.Payload)
	})

	t.Run("unconfirmed cancellation needs nonce and tip", func(t *testing.T) {
		f := newFixture(t)

		block := make(chan struct{})
		defer close(block)
		f.ledger.submit = func(*ledger.Tx) (*ledger.TxResult, error) {
			<-block
			return orderCreated(77), nil
		}

		ack, err := f.svc.CreateLimitOrder(context.Background(), orders.CreateLimitOrder{
			Token: "eth", Address: f.address, Amount: dec("1"), LimitPrice: dec("2000"), Direction: types.DirectionBuy,
		})
		require.NoError(t, err)

		_, err = f.svc.UpdateLimitOrder(context.Background(), orders.UpdateLimitOrder{
			OperationID: ack.OperationID,
			Token:       "eth",
			Address:     f.address,
		})
		assert.ErrorIs(t, err, orders.ErrCancelDetailsRequired)
	})

	t.Run("unconfirmed replacement reuses the caller supplied slot", func(t *testing.T) {
		f := newFixture(t)

		block := make(chan struct{})
		f.ledger.submit = func(tx *ledger.Tx) (*ledger.TxResult, error) {
			if tx.Tip == 0 {
				<-block
			}
			return orderCreated(78), nil
		}
		defer close(block)

		ack, err := f.svc.CreateLimitOrder(context.Background(), orders.CreateLimitOrder{
			Token: "eth", Address: f.address, Amount: dec("1"), LimitPrice: dec("2000"), Direction: types.DirectionBuy,
		})
		require.NoError(t, err)

		nonce := ack.Nonce
		res, err := f.svc.UpdateLimitOrder(context.Background(), orders.UpdateLimitOrder{
			OperationID:   ack.OperationID,
			Token:         "eth",
			Address:       f.address,
			Direction:     types.DirectionBuy,
			LimitPrice:    dec("2000"),
			LimitPriceNew: dec("2100"),
			AmountNew:     dec("2"),
			Nonce:         &nonce,
			Tip:           25,
		})
		require.NoError(t, err)

		next, ok := res.(orders.Ack)
		require.True(t, ok)
		assert.Equal(t, nonce, next.Nonce)
		assert.EqualValues(t, 25, next.Tip)
		f.settled(t, next.OperationID)
	})

	t.Run("unknown operation", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.UpdateLimitOrder(context.Background(), orders.UpdateLimitOrder{
			OperationID: "no-such-operation",
			Token:       "eth",
			Address:     f.address,
		})
		assert.ErrorIs(t, err, orders.ErrOrderNotFound)
	})
}

func TestCancelLimitOrder(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.CancelLimitOrder(context.Background(), orders.CancelLimitOrder{
		Token:   "eth",
		Price:   dec("2000"),
		OrderID: 77,
		Address: f.address,
	})
	require.NoError(t, err)
	require.NotNil(t, res)

	txs := f.ledger.txs()
	require.Len(t, txs, 1)
	assert.Equal(t, "deleteOrder", txs[0].Call.Method)
	assert.Equal(t, "2000000000000", txs[0].Call.Args[2], "price is wire scaled")
}

func TestCancelLimitOrders(t *testing.T) {
	f := newFixture(t)

	refs := []orders.OrderRef{
		{Token: "eth", Price: dec("2000"), OrderID: 1},
		{Token: "eth", Price: dec("2100"), OrderID: 2},
		{Token: "btc", Price: dec("40000"), OrderID: 3},
	}
	ack, err := f.svc.CancelLimitOrders(context.Background(), orders.CancelLimitOrders{
		Orders:  refs,
		Address: f.address,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, ack.OperationID)
	assert.Empty(t, ack.Events)
	assert.Equal(t, 3, f.nonces.calls, "all nonces reserved up front")

	rec, err := f.tracker.Get(ack.OperationID)
	require.NoError(t, err)
	assert.Equal(t, pending.StatusSucceeded, rec.Status, "batch record settles immediately")

	require.Eventually(t, func() bool {
		rec, err := f.tracker.Get(ack.OperationID)
		return err == nil && len(rec.Payload.(orders.BatchAck).Events) == 3
	}, time.Second, 5*time.Millisecond)

	// Each cancellation got its own sequential nonce.
	seen := map[uint64]bool{}
	for _, tx := range f.ledger.txs() {
		require.NotNil(t, tx.Nonce)
		seen[*tx.Nonce] = true
	}
	assert.Equal(t, map[uint64]bool{0: true, 1: true, 2: true}, seen)
}

func TestTransfers(t *testing.T) {
	t.Run("deposit targets the trading sub-account", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Deposit(context.Background(), orders.Transfer{
			Token: "eth", Address: f.address, Amount: dec("1.5"),
		})
		require.NoError(t, err)

		txs := f.ledger.txs()
		require.Len(t, txs, 1)
		assert.Equal(t, "subaccounts", txs[0].Call.Module)
		assert.Equal(t, "toSubaccount", txs[0].Call.Method)
		assert.Equal(t, "Trader", txs[0].Call.Args[0])
		assert.Equal(t, "1500000000", txs[0].Call.Args[2], "amount uses the transfer scale")
	})

	t.Run("withdraw comes back from the trading sub-account", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Withdraw(context.Background(), orders.Transfer{
			Token: "eth", Address: f.address, Amount: dec("0.5"),
		})
		require.NoError(t, err)

		txs := f.ledger.txs()
		require.Len(t, txs, 1)
		assert.Equal(t, "fromSubaccount", txs[0].Call.Method)
	})
}

func TestSudoDeposit(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SudoDeposit(context.Background(), orders.SudoDeposit{
		Token:   "eth",
		Address: f.address,
		To:      "5bob",
		Amount:  dec("10"),
	})
	require.NoError(t, err)

	txs := f.ledger.txs()
	require.Len(t, txs, 1)
	assert.Equal(t, "sudo", txs[0].Call.Module)
	assert.Nil(t, txs[0].Nonce, "the node assigns privileged submission slots")
	assert.Zero(t, f.nonces.calls)
}

func TestPendingOrders(t *testing.T) {
	f := newFixture(t)
	f.ledger.pendingEx = []types.PendingExtrinsic{
		{Signer: f.address, Nonce: 3, Method: "eqDex.createOrder"},
		{Signer: f.address, Nonce: 4, Method: "subaccounts.toSubaccount"},
		{Signer: "5bob", Nonce: 1, Method: "eqDex.createOrder"},
	}

	own, err := f.svc.PendingOrders(context.Background(), f.address)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.EqualValues(t, 3, own[0].Nonce)

	_, err = f.svc.PendingOrders(context.Background(), "5stranger")
	assert.ErrorIs(t, err, wallet.ErrSignerNotFound)
}

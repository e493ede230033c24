package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvents(t *testing.T) {
	t.Run("successful submission keeps creation events", testDecodeEventsSuccess)
	t.Run("failed submission collects module errors", testDecodeEventsFailure)
	t.Run("interrupted batch takes precedence", testDecodeEventsBatchInterrupted)
}

func testDecodeEventsSuccess(t *testing.T) {
	res, err := decodeEvents([]wireEvent{
		{Section: "eqDex", Method: "OrderCreated", OrderID: 42},
		{Section: "system", Method: "ExtrinsicSuccess"},
	})
	require.NoError(t, err)

	id, ok := res.OrderID()
	require.True(t, ok)
	assert.EqualValues(t, 42, id)
}

func testDecodeEventsFailure(t *testing.T) {
	_, err := decodeEvents([]wireEvent{
		{
			Section: "system",
			Method:  "ExtrinsicFailed",
			Error: &ModuleError{
				Section: "eqDex",
				Method:  "OrderNotFound",
				Docs:    "No order found by id and price",
			},
		},
	})
	require.Error(t, err)

	var serr *SubmissionError
	require.ErrorAs(t, err, &serr)
	require.Len(t, serr.Errors, 1)
	assert.Contains(t, err.Error(), "eqDex.OrderNotFound")
	assert.Contains(t, err.Error(), "No order found by id and price")
}

func testDecodeEventsBatchInterrupted(t *testing.T) {
	_, err := decodeEvents([]wireEvent{
		{Section: "eqDex", Method: "OrderCreated", OrderID: 7},
		{
			Section: "utility",
			Method:  "BatchInterrupted",
			Index:   2,
			Error: &ModuleError{
				Section: "eqDex",
				Method:  "OrderNotFound",
				Docs:    "No order found by id and price",
			},
		},
		{
			Section: "system",
			Method:  "ExtrinsicFailed",
			Error:   &ModuleError{Section: "system", Method: "Unknown"},
		},
	})
	require.Error(t, err)

	var berr *BatchError
	require.ErrorAs(t, err, &berr)
	assert.EqualValues(t, 2, berr.Index)
	assert.Contains(t, err.Error(), "batch tx failed at extrinsic #2")
}

func TestTxResultOrderID(t *testing.T) {
	res := &TxResult{Events: []Event{
		{Section: "system", Method: "ExtrinsicSuccess"},
		{Section: "eqDex", Method: "OrderCreated", OrderID: 9},
	}}
	id, ok := res.OrderID()
	require.True(t, ok)
	assert.EqualValues(t, 9, id)

	_, ok = (&TxResult{}).OrderID()
	assert.False(t, ok)
}

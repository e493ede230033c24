package ledger

import (
	"fmt"
	"strings"
)

// ModuleError is a decoded on-chain dispatch error.
type ModuleError struct {
	Section string `json:"section"`
	Method  string `json:"method"`
	Docs    string `json:"docs"`
}

func (e ModuleError) String() string {
	return fmt.Sprintf("%s.%s: %s", e.Section, e.Method, e.Docs)
}

// SubmissionError is returned when the ledger included the transaction but
// its dispatch failed.
type SubmissionError struct {
	Errors []ModuleError
}

func (e *SubmissionError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, me := range e.Errors {
		msgs = append(msgs, me.String())
	}
	return strings.Join(msgs, ", ")
}

// BatchError is the interrupted-batch variant of a submission failure,
// carrying the index of the failing step.
type BatchError struct {
	Index uint32
	Err   ModuleError
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch tx failed at extrinsic #%d. %s", e.Index, e.Err.String())
}

// Event is one decoded inclusion event of a settled transaction. Order
// creation events carry the assigned on-chain order id; a fully matched
// order emits none.
type Event struct {
	Section string `json:"section"`
	Method  string `json:"method"`
	OrderID uint64 `json:"orderId,omitempty"`
}

// TxResult is the decoded outcome of one included transaction.
type TxResult struct {
	Events []Event `json:"events"`
}

// OrderID returns the on-chain order id assigned at inclusion, if any.
func (r *TxResult) OrderID() (uint64, bool) {
	for _, ev := range r.Events {
		if ev.OrderID != 0 {
			return ev.OrderID, true
		}
	}
	return 0, false
}

type wireEvent struct {
	Section string       `json:"section"`
	Method  string       `json:"method"`
	OrderID uint64       `json:"orderId,omitempty"`
	Index   uint32       `json:"index,omitempty"`
	Error   *ModuleError `json:"error,omitempty"`
}

// decodeEvents reduces the raw inclusion events of one transaction into a
// result or a typed failure. Batch interruptions take precedence over plain
// dispatch failures.
func decodeEvents(events []wireEvent) (*TxResult, error) {
	var (
		success []Event
		failed  []ModuleError
		batch   *BatchError
	)
	for _, ev := range events {
		switch {
		case ev.Section == "utility" && ev.Method == "BatchInterrupted":
			if batch == nil && ev.Error != nil {
				batch = &BatchError{Index: ev.Index, Err: *ev.Error}
			}
		case ev.Section == "system" && ev.Method == "ExtrinsicFailed":
			if ev.Error != nil {
				failed = append(failed, *ev.Error)
			}
		case ev.Section == "system" && ev.Method == "ExtrinsicSuccess":
			success = append(success, Event{Section: ev.Section, Method: ev.Method})
		case ev.Method == "OrderCreated":
			success = append(success, Event{Section: ev.Section, Method: ev.Method, OrderID: ev.OrderID})
		}
	}

	if batch != nil {
		return nil, batch
	}
	if len(failed) > 0 {
		return nil, &SubmissionError{Errors: failed}
	}
	return &TxResult{Events: success}, nil
}

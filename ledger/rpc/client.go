package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"code.equilab.io/gateway/logging"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

const namedLogger = "ledger.rpc"

// ErrClientClosed is returned for calls made after the underlying
// connection died.
var ErrClientClosed = errors.New("rpc client closed")

// Error is a JSON-RPC error object returned by the node.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type request struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      uint64      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

// message is the union of everything the node can send us: responses to our
// requests (id set) and subscription notifications (method + params).
type message struct {
	ID     *uint64         `json:"id,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
	Method string          `json:"method,omitempty"`
	Params *notifyParams   `json:"params,omitempty"`
}

type notifyParams struct {
	Subscription string          `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

type response struct {
	result json.RawMessage
	err    *Error
}

// Subscription is one server side subscription. Notifications are delivered
// on C; a slow consumer drops notifications rather than stalling the read
// loop, keeping only the freshest values flowing.
type Subscription struct {
	ID string
	C  <-chan json.RawMessage

	c         chan json.RawMessage
	unsubName string
	client    *Client
	once      sync.Once
}

// Unsubscribe releases the subscription on the node and closes C.
func (s *Subscription) Unsubscribe(ctx context.Context) error {
	var err error
	s.once.Do(func() {
		s.client.removeSub(s.ID)
		var ok bool
		err = s.client.Call(ctx, s.unsubName, []interface{}{s.ID}, &ok)
	})
	return err
}

// Client is a JSON-RPC 2.0 client over a single websocket connection.
// Responses are correlated to requests by id, subscription notifications
// are dispatched by subscription id.
type Client struct {
	log  *logging.Logger
	conn *websocket.Conn

	writeMu sync.Mutex
	reqID   uint64

	mu      sync.Mutex
	pending map[uint64]chan response
	subs    map[string]*Subscription
	err     error

	closed chan struct{}
}

// Dial opens the websocket connection and starts the read loop.
func Dial(ctx context.Context, log *logging.Logger, endpoint string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to dial ledger node %s", endpoint)
	}

	c := &Client{
		log:     log.Named(namedLogger),
		conn:    conn,
		pending: map[uint64]chan response{},
		subs:    map[string]*Subscription{},
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Closed is closed once the connection died.
func (c *Client) Closed() <-chan struct{} {
	return c.closed
}

// Close tears the connection down, failing every in-flight call.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Call performs one request/response round-trip, decoding the result into
// result when non-nil.
func (c *Client) Call(ctx context.Context, method string, params, result interface{}) error {
	id := atomic.AddUint64(&c.reqID, 1)
	ch := make(chan response, 1)

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return err
	}
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.write(request{JSONRPC: "2.0", ID: id, Method: method, Params: params}); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return err
	}

	select {
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return ctx.Err()
	case <-c.closed:
		return c.closeErr()
	case resp := <-ch:
		if resp.err != nil {
			return resp.err
		}
		if result == nil {
			return nil
		}
		return json.Unmarshal(resp.result, result)
	}
}

// Subscribe issues the subscription request and returns a handle delivering
// notifications for the returned subscription id. unsubMethod is used to
// release it.
func (c *Client) Subscribe(ctx context.Context, method, unsubMethod string, params interface{}) (*Subscription, error) {
	var subID string
	if err := c.Call(ctx, method, params, &subID); err != nil {
		return nil, err
	}

	ch := make(chan json.RawMessage, 16)
	sub := &Subscription{
		ID:        subID,
		C:         ch,
		c:         ch,
		unsubName: unsubMethod,
		client:    c,
	}

	c.mu.Lock()
	c.subs[subID] = sub
	c.mu.Unlock()

	return sub, nil
}

func (c *Client) write(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *Client) readLoop() {
	for {
		var msg message
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.fail(err)
			return
		}

		switch {
		case msg.ID != nil:
			c.mu.Lock()
			ch, ok := c.pending[*msg.ID]
			delete(c.pending, *msg.ID)
			c.mu.Unlock()
			if ok {
				ch <- response{result: msg.Result, err: msg.Error}
			}
		case msg.Params != nil:
			c.mu.Lock()
			sub, ok := c.subs[msg.Params.Subscription]
			c.mu.Unlock()
			if !ok {
				continue
			}
			select {
			case sub.c <- msg.Params.Result:
			default:
				c.log.Debug("subscription notification dropped",
					logging.String("subscription", sub.ID))
			}
		default:
			c.log.Warn("unexpected message from ledger node")
		}
	}
}

func (c *Client) fail(err error) {
	c.mu.Lock()
	c.err = errors.Wrap(err, "ledger connection lost")
	// in-flight calls wake up on the closed channel
	c.pending = map[uint64]chan response{}
	for id, sub := range c.subs {
		delete(c.subs, id)
		close(sub.c)
	}
	c.mu.Unlock()
	close(c.closed)
	c.conn.Close()
}

func (c *Client) closeErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	return ErrClientClosed
}

func (c *Client) removeSub(id string) {
	c.mu.Lock()
	delete(c.subs, id)
	c.mu.Unlock()
}

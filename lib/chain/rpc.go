package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"tessnet-demo/lib/logger"

	"github.com/gorilla/websocket"
)

// ===== json-rpc frames =====

type rpcRequest struct {
	JsonRPC string      `json:"jsonrpc"`
	Id      uint64      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// rpcEnvelope covers both call responses (Id set) and server pushed
// notifications (Method set, no Id).
type rpcEnvelope struct {
	JsonRPC string          `json:"jsonrpc"`
	Id      *uint64         `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

var ErrConnClosed = errors.New("rpc connection closed")

// notification methods pushed by the node
const NotifyTxStatus = "broadcast.status"

// ===== client =====

type RPCClient struct {
	conn *websocket.Conn
	log  logger.Logger

	// writes to the socket are serialized separately from bookkeeping
	writeMtx sync.Mutex

	mtx      sync.Mutex
	nextId   uint64
	pending  map[uint64]chan rpcEnvelope
	watchers map[string]chan TxReceipt
	closed   bool
	readErr  error
}

func DialRPC(ctx context.Context, endpoint string, log logger.Logger) (*RPCClient, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", endpoint, err)
	}

	c := &RPCClient{
		conn:     conn,
		log:      log,
		pending:  make(map[uint64]chan rpcEnvelope),
		watchers: make(map[string]chan TxReceipt),
	}

	go c.readLoop()

	return c, nil
}

// Call performs a request and decodes the result into out (out may be
// nil when the caller only cares about success).
func (c *RPCClient) Call(ctx context.Context, method string, params interface{}, out interface{}) error {
	ch, id, err := c.send(method, params)
	if err != nil {
		return err
	}

	select {
	case env, ok := <-ch:
		if !ok {
			return c.closeReason()
		}
		if env.Error != nil {
			return env.Error
		}
		if out != nil && env.Result != nil {
			return json.Unmarshal(env.Result, out)
		}
		return nil
	case <-ctx.Done():
		c.mtx.Lock()
		delete(c.pending, id)
		c.mtx.Unlock()
		return ctx.Err()
	}
}

func (c *RPCClient) send(method string, params interface{}) (chan rpcEnvelope, uint64, error) {
	c.mtx.Lock()
	if c.closed {
		c.mtx.Unlock()
		return nil, 0, c.readErr
	}
	c.nextId++
	id := c.nextId
	ch := make(chan rpcEnvelope, 1)
	c.pending[id] = ch
	c.mtx.Unlock()

	req := rpcRequest{JsonRPC: "2.0", Id: id, Method: method, Params: params}

	c.writeMtx.Lock()
	err := c.conn.WriteJSON(req)
	c.writeMtx.Unlock()

	if err != nil {
		c.mtx.Lock()
		delete(c.pending, id)
		c.mtx.Unlock()
		return nil, 0, err
	}

	return ch, id, nil
}

// WatchTx registers interest in the terminal status of a transaction.
// Register before broadcasting so the notification cannot race the
// registration. The channel sees exactly one receipt.
func (c *RPCClient) WatchTx(txId string) chan TxReceipt {
	ch := make(chan TxReceipt, 1)
	c.mtx.Lock()
	c.watchers[txId] = ch
	c.mtx.Unlock()
	return ch
}

func (c *RPCClient) UnwatchTx(txId string) {
	c.mtx.Lock()
	delete(c.watchers, txId)
	c.mtx.Unlock()
}

func (c *RPCClient) readLoop() {
	for {
		env := rpcEnvelope{}
		err := c.conn.ReadJSON(&env)
		if err != nil {
			c.fail(err)
			return
		}

		if env.Id != nil {
			c.mtx.Lock()
			ch, ok := c.pending[*env.Id]
			if ok {
				delete(c.pending, *env.Id)
			}
			c.mtx.Unlock()
			if ok {
				ch <- env
			}
			continue
		}

		if env.Method == NotifyTxStatus {
			receipt := TxReceipt{}
			if err := json.Unmarshal(env.Params, &receipt); err != nil {
				c.log.Error("bad status notification: ", err)
				continue
			}
			c.dispatch(receipt)
			continue
		}

		c.log.Debug("unhandled notification: ", env.Method)
	}
}

func (c *RPCClient) dispatch(receipt TxReceipt) {
	c.mtx.Lock()
	ch, ok := c.watchers[receipt.Id]
	if ok {
		delete(c.watchers, receipt.Id)
	}
	c.mtx.Unlock()

	if ok {
		ch <- receipt
	}
}

func (c *RPCClient) fail(err error) {
	c.mtx.Lock()
	if c.closed {
		c.mtx.Unlock()
		return
	}
	c.closed = true
	c.readErr = fmt.Errorf("%w: %w", ErrConnClosed, err)
	pending := c.pending
	watchers := c.watchers
	c.pending = map[uint64]chan rpcEnvelope{}
	c.watchers = map[string]chan TxReceipt{}
	c.mtx.Unlock()

	// closed channels surface through the zero value / ok pattern
	for _, ch := range pending {
		close(ch)
	}
	for _, ch := range watchers {
		close(ch)
	}
}

func (c *RPCClient) closeReason() error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.readErr != nil {
		return c.readErr
	}
	return ErrConnClosed
}

func (c *RPCClient) Close() error {
	c.writeMtx.Lock()
	// polite close frame, the read loop tears down the rest
	c.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	c.writeMtx.Unlock()
	return c.conn.Close()
}

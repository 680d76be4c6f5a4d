package devnet

import (
	"encoding/json"
	"net/http"
	"sync"

	"tessnet-demo/lib/chain"
	"tessnet-demo/lib/logger"
	"tessnet-demo/lib/utils"

	"github.com/gorilla/websocket"
)

// json-rpc error codes
const (
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeApplication    = -32000
)

// mirror of the client's frame shapes
type serverRequest struct {
	JsonRPC string          `json:"jsonrpc"`
	Id      *uint64         `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type serverResponse struct {
	JsonRPC string          `json:"jsonrpc"`
	Id      *uint64         `json:"id,omitempty"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *chain.RPCError `json:"error,omitempty"`
}

type serverNotification struct {
	JsonRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type wsConn struct {
	conn     *websocket.Conn
	writeMtx sync.Mutex
}

func (c *wsConn) writeJSON(v interface{}) error {
	c.writeMtx.Lock()
	defer c.writeMtx.Unlock()
	return c.conn.WriteJSON(v)
}

// rpcServer serves the chain client's method set over websocket and
// pushes broadcast.status notifications to watch subscribers.
type rpcServer struct {
	state *State
	log   logger.Logger

	upgrader websocket.Upgrader

	mtx      sync.Mutex
	watchers map[string][]*wsConn
}

func newRPCServer(state *State, log logger.Logger) *rpcServer {
	return &rpcServer{
		state:    state,
		log:      log,
		watchers: map[string][]*wsConn{},
	}
}

func (s *rpcServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed: ", err)
		return
	}

	c := &wsConn{conn: conn}
	go s.readLoop(c)
}

func (s *rpcServer) readLoop(c *wsConn) {
	defer func() {
		s.dropConn(c)
		c.conn.Close()
	}()

	for {
		req := serverRequest{}
		if err := c.conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("rpc connection dropped: ", err)
			}
			return
		}

		result, rpcErr := s.dispatch(c, req)

		// notifications get no reply
		if req.Id == nil {
			continue
		}

		resp := serverResponse{JsonRPC: "2.0", Id: req.Id, Result: result, Error: rpcErr}
		if err := c.writeJSON(resp); err != nil {
			s.log.Debug("rpc write failed: ", err)
			return
		}
	}
}

func (s *rpcServer) dispatch(c *wsConn, req serverRequest) (interface{}, *chain.RPCError) {
	switch req.Method {
	case chain.MethodGetProperties:
		return s.state.Props(), nil

	case chain.MethodGetBlock:
		params := struct {
			Height uint64 `json:"height"`
		}{}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, &chain.RPCError{Code: codeInvalidParams, Message: err.Error()}
		}
		return s.state.BlockAt(params.Height), nil

	case chain.MethodNextJobId:
		return struct {
			NextJobId uint64 `json:"next_job_id"`
		}{s.state.NextJobId()}, nil

	case chain.MethodGetProfile:
		params := struct {
			Account string `json:"account"`
		}{}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, &chain.RPCError{Code: codeInvalidParams, Message: err.Error()}
		}
		return s.state.ProfileOf(params.Account), nil

	case chain.MethodBroadcast:
		return s.broadcast(nil, req.Params)

	case chain.MethodBroadcastWatch:
		return s.broadcast(c, req.Params)

	default:
		return nil, &chain.RPCError{Code: codeMethodNotFound, Message: "unknown method " + req.Method}
	}
}

// broadcast queues the transaction; with a connection attached, the
// terminal status gets pushed back over it once the block is produced.
// The watcher has to be in place before the transaction enters the
// queue: block production runs on its own goroutine, and a block cut
// between enqueue and registration would drop the receipt.
func (s *rpcServer) broadcast(watcher *wsConn, params json.RawMessage) (interface{}, *chain.RPCError) {
	sTx := chain.SerializedTransaction{}
	if err := json.Unmarshal(params, &sTx); err != nil {
		return nil, &chain.RPCError{Code: codeInvalidParams, Message: err.Error()}
	}

	var watchId string
	if watcher != nil {
		id, err := chain.TxId(sTx.Tx)
		if err != nil {
			return nil, &chain.RPCError{Code: codeInvalidParams, Message: err.Error()}
		}
		watchId = id.String()
		s.addWatcher(watchId, watcher)
	}

	id, err := s.state.Enqueue(sTx)
	if err != nil {
		if watcher != nil {
			s.removeWatcher(watchId, watcher)
		}
		return nil, &chain.RPCError{Code: codeApplication, Message: err.Error()}
	}

	return struct {
		Id     string `json:"id"`
		Status string `json:"status"`
	}{id, chain.StatusBroadcast}, nil
}

func (s *rpcServer) addWatcher(id string, c *wsConn) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.watchers[id] = append(s.watchers[id], c)
}

func (s *rpcServer) removeWatcher(id string, c *wsConn) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	kept := utils.Remove(s.watchers[id], c)
	if len(kept) == 0 {
		delete(s.watchers, id)
	} else {
		s.watchers[id] = kept
	}
}

// notify fans a block's receipts out to their watchers.
func (s *rpcServer) notify(receipts []chain.TxReceipt) {
	for _, receipt := range receipts {
		s.mtx.Lock()
		conns := s.watchers[receipt.Id]
		delete(s.watchers, receipt.Id)
		s.mtx.Unlock()

		for _, c := range conns {
			frame := serverNotification{
				JsonRPC: "2.0",
				Method:  chain.NotifyTxStatus,
				Params:  receipt,
			}
			if err := c.writeJSON(frame); err != nil {
				s.log.Debug("status push failed: ", err)
			}
		}
	}
}

func (s *rpcServer) dropConn(c *wsConn) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	for id, conns := range s.watchers {
		kept := utils.Remove(conns, c)
		if len(kept) == 0 {
			delete(s.watchers, id)
		} else {
			s.watchers[id] = kept
		}
	}
}

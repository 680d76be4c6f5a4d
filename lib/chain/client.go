package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tessnet-demo/lib/logger"
	"tessnet-demo/lib/utils"
	"tessnet-demo/modules/aggregate"

	"github.com/chebyrash/promise"
)

// rpc methods implemented by the node
const (
	MethodGetProperties  = "chain.get_properties"
	MethodGetBlock       = "chain.get_block"
	MethodNextJobId      = "jobs.next_job_id"
	MethodGetProfile     = "profiles.get_profile"
	MethodBroadcast      = "broadcast.transaction"
	MethodBroadcastWatch = "broadcast.transaction_watch"
)

// how long Start keeps retrying before declaring the node unreachable
const (
	readyAttempts = 40
	readyBackoff  = 250 * time.Millisecond
)

// Client connects to a node over websocket rpc. Readiness is the first
// successful chain.get_properties call, exposed as a promise so flows
// can suspend on it before their first submission.
type Client struct {
	conf RPCConfig
	log  logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	rpc     *RPCClient
	readyCh chan error
	ready   *promise.Promise[any]
}

var _ aggregate.Plugin = &Client{}

func NewClient(conf RPCConfig, log logger.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		conf:    conf,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		readyCh: make(chan error, 1),
	}
	c.ready = promise.New(func(resolve func(any), reject func(error)) {
		err := <-c.readyCh
		if err != nil {
			reject(err)
			return
		}
		resolve(nil)
	})
	return c
}

// Init implements aggregate.Plugin.
func (c *Client) Init() error {
	return nil
}

// Start implements aggregate.Plugin.
func (c *Client) Start() *promise.Promise[any] {
	return promise.New(func(resolve func(any), reject func(error)) {
		err := c.connect()
		c.readyCh <- err
		if err != nil {
			reject(err)
			return
		}
		resolve(nil)
	})
}

// Stop implements aggregate.Plugin.
func (c *Client) Stop() error {
	c.cancel()
	if c.rpc != nil {
		return c.rpc.Close()
	}
	return nil
}

// connect retries because an embedded node may still be binding its
// listener while the aggregate starts every plugin at once.
func (c *Client) connect() error {
	endpoint := c.conf.Endpoint()

	var lastErr error
	for attempt := 0; attempt < readyAttempts; attempt++ {
		if c.ctx.Err() != nil {
			return c.ctx.Err()
		}

		rpc, err := DialRPC(c.ctx, endpoint, c.log)
		if err == nil {
			props := ChainProps{}
			err = rpc.Call(c.ctx, MethodGetProperties, nil, &props)
			if err == nil {
				c.rpc = rpc
				c.log.Debug("connected to ", endpoint, ", head height ", props.HeadBlockNumber)
				return nil
			}
			rpc.Close()
		}

		lastErr = err
		utils.Sleep(readyBackoff).Await(c.ctx)
	}

	return fmt.Errorf("node at %s never became ready: %w", endpoint, lastErr)
}

// Ready resolves once the connection is up and the node answered its
// first properties call.
func (c *Client) Ready() *promise.Promise[any] {
	if c.ready == nil {
		return utils.PromiseReject[any](fmt.Errorf("client used before Init"))
	}
	return c.ready
}

func (c *Client) GetProperties(ctx context.Context) (ChainProps, error) {
	props := ChainProps{}
	err := c.rpc.Call(ctx, MethodGetProperties, nil, &props)
	return props, err
}

// GetBlock returns nil without error when the height has not been
// produced yet.
func (c *Client) GetBlock(ctx context.Context, height uint64) (*Block, error) {
	params := struct {
		Height uint64 `json:"height"`
	}{height}

	var blk *Block
	err := c.rpc.Call(ctx, MethodGetBlock, params, &blk)
	if err != nil {
		return nil, err
	}
	return blk, nil
}

// NextJobId reads the id the next included job will be assigned.
func (c *Client) NextJobId(ctx context.Context) (uint64, error) {
	res := struct {
		NextJobId uint64 `json:"next_job_id"`
	}{}
	err := c.rpc.Call(ctx, MethodNextJobId, nil, &res)
	return res.NextJobId, err
}

// GetProfileRaw leaves decoding the profile shape to the caller so the
// client stays ignorant of module level types.
func (c *Client) GetProfileRaw(ctx context.Context, account string) (json.RawMessage, error) {
	params := struct {
		Account string `json:"account"`
	}{account}

	var res json.RawMessage
	err := c.rpc.Call(ctx, MethodGetProfile, params, &res)
	return res, err
}

type broadcastResult struct {
	Id     string `json:"id"`
	Status string `json:"status"`
}

// BroadcastTransaction is fire and forget: the node validates and
// queues, inclusion is not reported back.
func (c *Client) BroadcastTransaction(ctx context.Context, sTx SerializedTransaction) (string, error) {
	res := broadcastResult{}
	err := c.rpc.Call(ctx, MethodBroadcast, sTx, &res)
	if err != nil {
		return "", err
	}
	return res.Id, nil
}

// BroadcastTransactionWatch submits the transaction and returns a
// promise that settles on the inclusion (or expiry) notification.
func (c *Client) BroadcastTransactionWatch(ctx context.Context, sTx SerializedTransaction) (string, *promise.Promise[TxReceipt], error) {
	id, err := TxId(sTx.Tx)
	if err != nil {
		return "", nil, err
	}

	// register before the call so the push cannot race us
	ch := c.rpc.WatchTx(id.String())

	res := broadcastResult{}
	err = c.rpc.Call(ctx, MethodBroadcastWatch, sTx, &res)
	if err != nil {
		c.rpc.UnwatchTx(id.String())
		return "", nil, err
	}

	p := promise.New(func(resolve func(TxReceipt), reject func(error)) {
		receipt, ok := <-ch
		if !ok {
			reject(c.rpc.closeReason())
			return
		}
		if receipt.Status != StatusInBlock {
			reject(fmt.Errorf("transaction %s dropped: %s", receipt.Id, receipt.Status))
			return
		}
		resolve(receipt)
	})

	return res.Id, p, nil
}

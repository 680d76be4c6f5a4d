// Package devnet hosts an in-process tessnet node: in-memory chain
// state, fixed-interval block production and the websocket rpc surface
// the chain client speaks. It exists so the demo and the tests run
// without any external infrastructure.
package devnet

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"tessnet-demo/lib/chain"
	"tessnet-demo/lib/logger"
	"tessnet-demo/modules/aggregate"

	"github.com/chebyrash/promise"
	"github.com/robfig/cron/v3"
)

const shutdownTimeout = 5 * time.Second

type Devnet struct {
	conf Config
	log  logger.Logger

	state  *State
	rpc    *rpcServer
	server *http.Server
	lis    net.Listener
	sched  *cron.Cron
}

var _ aggregate.Plugin = &Devnet{}

func New(conf Config, log logger.Logger) *Devnet {
	return &Devnet{
		conf: conf,
		log:  log,
	}
}

// Init implements aggregate.Plugin.
func (d *Devnet) Init() error {
	chain.RegisterTypes()

	d.state = NewState(nil)
	d.rpc = newRPCServer(d.state, d.log)

	mux := http.NewServeMux()
	mux.Handle("/rpc", d.rpc)
	d.server = &http.Server{Handler: mux}

	return nil
}

// Start implements aggregate.Plugin.
func (d *Devnet) Start() *promise.Promise[any] {
	return promise.New(func(resolve func(any), reject func(error)) {
		lis, err := net.Listen("tcp", d.conf.ListenAddr())
		if err != nil {
			reject(fmt.Errorf("failed to bind %s: %w", d.conf.ListenAddr(), err))
			return
		}
		d.lis = lis

		go func() {
			err := d.server.Serve(lis)
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				d.log.Error("rpc server stopped: ", err)
			}
		}()

		d.sched = cron.New()
		_, err = d.sched.AddFunc(
			fmt.Sprintf("@every %ds", d.conf.BlockIntervalSeconds()),
			d.produceBlock,
		)
		if err != nil {
			reject(err)
			return
		}
		d.sched.Start()

		d.log.Debug("devnet listening on ", d.Addr())
		resolve(nil)
	})
}

// Stop implements aggregate.Plugin.
func (d *Devnet) Stop() error {
	if d.sched != nil {
		<-d.sched.Stop().Done()
	}
	if d.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return d.server.Shutdown(ctx)
	}
	return nil
}

func (d *Devnet) produceBlock() {
	blk := d.state.ProduceBlock()
	if len(blk.TxIds) > 0 {
		d.log.Debug("produced block ", blk.Height, " with ", len(blk.TxIds), " txs")
	}
	d.rpc.notify(blk.Receipts)
}

// Addr is the bound listen address, useful when configured with port 0.
func (d *Devnet) Addr() string {
	if d.lis == nil {
		return d.conf.ListenAddr()
	}
	return d.lis.Addr().String()
}

// Endpoint is the websocket url clients should dial.
func (d *Devnet) Endpoint() string {
	return "ws://" + d.Addr() + "/rpc"
}

// State exposes the chain state for assertions in tests.
func (d *Devnet) State() *State {
	return d.state
}

package chain

import (
	"context"
	"fmt"
	"time"

	"tessnet-demo/lib/utils"
	"tessnet-demo/modules/common"

	"github.com/chebyrash/promise"
)

// TxWatcher polls blocks for a transaction id. It is the fallback for
// nodes that do not push broadcast.status notifications; the scan stops
// once the transaction's ttl window is clearly over.
type TxWatcher struct {
	client   *Client
	interval time.Duration
}

func NewTxWatcher(client *Client, interval time.Duration) *TxWatcher {
	if interval <= 0 {
		interval = time.Second
	}
	return &TxWatcher{client: client, interval: interval}
}

func (w *TxWatcher) Await(ctx context.Context, txId string, fromHeight uint64) *promise.Promise[TxReceipt] {
	// two ttl windows of slack before giving up
	maxHeight := fromHeight + 2*common.CHAIN_SPECS.TxTTLBlocks

	return promise.New(func(resolve func(TxReceipt), reject func(error)) {
		height := fromHeight
		for {
			if ctx.Err() != nil {
				reject(ctx.Err())
				return
			}

			if height > maxHeight {
				reject(fmt.Errorf("transaction %s not included by height %d", txId, maxHeight))
				return
			}

			blk, err := w.client.GetBlock(ctx, height)
			if err != nil {
				reject(err)
				return
			}

			if blk == nil {
				// not produced yet
				utils.Sleep(w.interval).Await(ctx)
				continue
			}

			for _, receipt := range blk.Receipts {
				if receipt.Id == txId {
					resolve(receipt)
					return
				}
			}

			height++
		}
	})
}

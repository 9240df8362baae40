package verifier

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/yourusername/ledgercore/internal/errs"
	"github.com/yourusername/ledgercore/internal/script"
	"github.com/yourusername/ledgercore/internal/tx"
	"github.com/yourusername/ledgercore/internal/utxo"
)

// VerifyBlockTxs verifies the non-coinbase transactions of a block against
// base. Each transaction sees the outputs of the transactions before it, so
// the view is built sequentially; the script and value checks then run on up
// to workers goroutines, each with its own Verifier and HashCache.
//
// The returned view holds the block's effect on base when err is nil.
func VerifyBlockTxs(ctx context.Context, txs []*tx.Transaction, base OutputMap, evaluator script.Evaluator, workers int) (*utxo.View, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	// Snapshot what each tx can see before applying it.
	view := utxo.NewView(base)
	resolved := make([]tx.MapOutputs, len(txs))
	for i, t := range txs {
		if !t.IsCoinbase() {
			prev := make(tx.MapOutputs, len(t.Inputs))
			for _, in := range t.Inputs {
				if out, ok := view.Get(in.InputTxID, in.InputTxIndex); ok {
					prev[tx.OutPoint{TxID: in.InputTxID, Index: in.InputTxIndex}] = out
				}
			}
			resolved[i] = prev
		}
		if err := view.Apply(t); err != nil {
			return nil, errs.Rejected(fmt.Sprintf("txs[%d]", i), err.Error())
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, t := range txs {
		if t.IsCoinbase() {
			continue
		}
		i, t := i, t
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := New(t, resolved[i], evaluator).Check(); err != nil {
				return fmt.Errorf("txs[%d]: %w", i, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return view, nil
}

package blockchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/ledgercore/internal/block"
	"github.com/yourusername/ledgercore/internal/crypto"
	"github.com/yourusername/ledgercore/internal/errs"
	"github.com/yourusername/ledgercore/internal/pow"
	"github.com/yourusername/ledgercore/internal/script"
	"github.com/yourusername/ledgercore/internal/storage"
	"github.com/yourusername/ledgercore/internal/tx"
	"github.com/yourusername/ledgercore/internal/utxo"
	"github.com/yourusername/ledgercore/internal/verifier"
)

// MaxFutureDrift bounds how far ahead of the local clock a block timestamp
// may be.
const MaxFutureDrift = 2 * time.Hour

var (
	ErrUnknownParent  = errors.New("block does not extend the tip")
	ErrNotConnected   = errors.New("chain has no genesis block")
	ErrDuplicateBlock = errors.New("block already connected")
)

// Config holds the chain parameters and pluggable capabilities.
type Config struct {
	// GenesisTarget is the target of block 0 when a new chain is created.
	GenesisTarget [32]byte
	// CoinbaseScript is the locking script that mined blocks pay to.
	CoinbaseScript []byte
	// Workers bounds parallel transaction verification; <= 0 uses GOMAXPROCS.
	Workers   int
	Searcher  pow.Searcher
	Evaluator script.Evaluator
	// Now returns the current Unix time in seconds.
	Now func() uint64
}

func (c *Config) setDefaults() {
	if c.Searcher == nil {
		c.Searcher = pow.NewProofOfWork(crypto.Blake3{})
	}
	if c.Evaluator == nil {
		c.Evaluator = script.AddressEvaluator{}
	}
	if c.Now == nil {
		c.Now = block.Now
	}
}

// Blockchain connects validated blocks to persistent storage and keeps a
// pool of verified transactions waiting to be mined.
type Blockchain struct {
	mu      sync.Mutex
	store   *storage.Storage
	headers *storage.HeaderIndex
	tip     *block.Header
	pending []*tx.Transaction
	cfg     Config
	log     *zap.Logger
}

// NewBlockchain opens the chain held by store and headers. An empty store
// gets a freshly mined genesis block.
func NewBlockchain(ctx context.Context, store *storage.Storage, headers *storage.HeaderIndex, cfg Config, log *zap.Logger) (*Blockchain, error) {
	if log == nil {
		log = zap.NewNop()
	}
	cfg.setDefaults()
	bc := &Blockchain{
		store:   store,
		headers: headers,
		cfg:     cfg,
		log:     log.Named("chain"),
	}

	tipID, err := store.GetChainTip()
	switch {
	case errors.Is(err, storage.ErrNotFound):
		if err := bc.createGenesis(ctx); err != nil {
			return nil, err
		}
		return bc, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read chain tip: %w", err)
	}

	tip, err := store.GetBlock(tipID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tip %x: %w", tipID, err)
	}
	bc.tip = &tip.Header
	if err := bc.reindexHeaders(); err != nil {
		return nil, err
	}
	bc.log.Info("chain loaded", zap.Uint64("height", bc.tip.NBlock), zap.Binary("tip", tipID[:]))
	return bc, nil
}

func (bc *Blockchain) createGenesis(ctx context.Context) error {
	b := block.NewGenesisBuilder(bc.cfg.GenesisTarget, bc.cfg.CoinbaseScript, block.CoinbaseAmount(0), bc.cfg.Now())
	blk, err := b.Build()
	if err != nil {
		return err
	}
	if err := bc.mine(ctx, blk); err != nil {
		return fmt.Errorf("failed to mine genesis block: %w", err)
	}
	if err := bc.connect(ctx, blk); err != nil {
		return fmt.Errorf("failed to connect genesis block: %w", err)
	}
	bc.log.Info("genesis block created", zap.Stringer("header", &blk.Header))
	return nil
}

// reindexHeaders fills the header index from the block store when it lags
// behind, e.g. after the index file was removed.
func (bc *Blockchain) reindexHeaders() error {
	count, err := bc.headers.Count()
	if err != nil {
		return err
	}
	want := bc.tip.NBlock + 1
	if uint64(count) >= want {
		return nil
	}
	bc.log.Warn("rebuilding header index", zap.Int("have", count), zap.Uint64("want", want))
	for n := uint64(0); n < want; n++ {
		id, err := bc.store.GetBlockIDByNumber(n)
		if err != nil {
			return fmt.Errorf("reindex block %d: %w", n, err)
		}
		blk, err := bc.store.GetBlock(id)
		if err != nil {
			return fmt.Errorf("reindex block %d: %w", n, err)
		}
		if err := bc.headers.Put(&blk.Header); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying stores.
func (bc *Blockchain) Close() error {
	return errors.Join(bc.headers.Close(), bc.store.Close())
}

// Tip returns a copy of the best header.
func (bc *Blockchain) Tip() *block.Header {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	h := *bc.tip
	return &h
}

// Height returns the block number of the tip.
func (bc *Blockchain) Height() uint64 {
	return bc.Tip().NBlock
}

// GetBlock returns a block by id.
func (bc *Blockchain) GetBlock(id [32]byte) (*block.Block, error) {
	return bc.store.GetBlock(id)
}

// GetBlockByNumber returns the connected block at height n.
func (bc *Blockchain) GetBlockByNumber(n uint64) (*block.Block, error) {
	id, err := bc.store.GetBlockIDByNumber(n)
	if err != nil {
		return nil, err
	}
	return bc.store.GetBlock(id)
}

// prevAdjFor returns the header opening the adjustment period that a block
// at nBlock closes, or nil when nBlock is not a retarget boundary.
func (bc *Blockchain) prevAdjFor(nBlock uint64) (*block.Header, error) {
	if nBlock%block.BlocksPerTargetAdjPeriod != 0 || nBlock < block.BlocksPerTargetAdjPeriod {
		return nil, nil
	}
	h, ok, err := bc.headers.GetByNumber(nBlock - block.BlocksPerTargetAdjPeriod)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("missing header %d", nBlock-block.BlocksPerTargetAdjPeriod)
	}
	return h, nil
}

// checkBlock validates blk as the successor of the current tip (or as the
// genesis block when there is no tip). It does not touch scripts or outputs.
func (bc *Blockchain) checkBlock(blk *block.Block) error {
	h := &blk.Header
	if !h.IsValid() {
		return errs.Invalid("header.version", fmt.Sprintf("unsupported version %d", h.Version))
	}

	if bc.tip == nil {
		if !h.IsGenesis() || h.NBlock != 0 {
			return ErrNotConnected
		}
	} else {
		if h.PrevBlockID != bc.tip.ID() {
			return ErrUnknownParent
		}
		prevAdj, err := bc.prevAdjFor(bc.tip.NBlock + 1)
		if err != nil {
			return err
		}
		expected, err := block.FromPrevBlockHeader(bc.tip, prevAdj, h.Timestamp)
		if err != nil {
			return err
		}
		if h.NBlock != expected.NBlock {
			return errs.Invalid("header.nBlock", fmt.Sprintf("expected %d, got %d", expected.NBlock, h.NBlock))
		}
		if h.Target != expected.Target {
			return errs.Invalid("header.target", fmt.Sprintf("expected %x", expected.Target))
		}
	}

	limit := bc.cfg.Now() + uint64(MaxFutureDrift/time.Second)
	if h.Timestamp > limit {
		return errs.Invalid("header.timestamp", "too far in the future")
	}
	if !h.IsValidPoW() {
		return errs.Rejected("header.nonce", "insufficient proof of work")
	}

	root, err := blk.MerkleRoot()
	if err != nil {
		return err
	}
	if root != h.MerkleRoot {
		return errs.Invalid("header.merkleRoot", "does not commit to the transactions")
	}

	return checkCoinbase(blk)
}

// checkCoinbase requires exactly one coinbase, first in the block, bound to
// the block number and paying no more than the subsidy.
func checkCoinbase(blk *block.Block) error {
	if len(blk.Txs) == 0 {
		return errs.Invalid("txs", "block has no transactions")
	}
	coinbase := blk.Txs[0]
	if !coinbase.IsCoinbase() {
		return errs.Invalid("txs[0]", "first transaction is not coinbase")
	}
	for i := 1; i < len(blk.Txs); i++ {
		if blk.Txs[i].IsCoinbase() {
			return errs.Invalid(fmt.Sprintf("txs[%d]", i), "multiple coinbase transactions")
		}
	}

	want := block.CoinbaseInputScript(blk.Header.NBlock)
	if string(coinbase.Inputs[0].Script) != string(want) {
		return errs.Invalid("txs[0].inputs[0].script", "coinbase does not commit to the block number")
	}

	var total uint64
	for i, out := range coinbase.Outputs {
		if total+out.Value < total {
			return errs.Invalid(fmt.Sprintf("txs[0].outputs[%d].value", i), "overflow")
		}
		total += out.Value
	}
	if subsidy := block.CoinbaseAmount(blk.Header.NBlock); total > subsidy {
		return errs.Rejected("txs[0].outputs", fmt.Sprintf("pays %d, subsidy is %d", total, subsidy))
	}
	return nil
}

// AddBlock validates blk against the tip and connects it.
func (bc *Blockchain) AddBlock(ctx context.Context, blk *block.Block) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return bc.connect(ctx, blk)
}

// connect runs with bc.mu held.
func (bc *Blockchain) connect(ctx context.Context, blk *block.Block) error {
	id := blk.ID()
	if bc.store.BlockExists(id) {
		return fmt.Errorf("block %x: %w", id, ErrDuplicateBlock)
	}
	if err := bc.checkBlock(blk); err != nil {
		bc.log.Debug("block rejected", zap.Binary("id", id[:]), zap.Error(err))
		return fmt.Errorf("block %x: %w", id, err)
	}

	view, err := verifier.VerifyBlockTxs(ctx, blk.Txs, bc.store, bc.cfg.Evaluator, bc.cfg.Workers)
	if err != nil {
		bc.log.Debug("block rejected", zap.Binary("id", id[:]), zap.Error(err))
		return fmt.Errorf("block %x: %w", id, err)
	}

	if err := bc.store.CommitBlock(blk, view); err != nil {
		return err
	}
	if err := bc.headers.Put(&blk.Header); err != nil {
		return err
	}

	h := blk.Header
	bc.tip = &h
	bc.prunePending(blk)

	bc.log.Info("block connected",
		zap.Uint64("nBlock", h.NBlock),
		zap.Binary("id", id[:]),
		zap.Int("txs", len(blk.Txs)))
	return nil
}

// prunePending drops pool transactions included in blk or no longer valid
// on top of it.
func (bc *Blockchain) prunePending(blk *block.Block) {
	included := make(map[[32]byte]struct{}, len(blk.Txs))
	for _, t := range blk.Txs {
		included[t.ID()] = struct{}{}
	}

	view := utxo.NewView(bc.store)
	kept := make([]*tx.Transaction, 0, len(bc.pending))
	evicted := 0
	for _, t := range bc.pending {
		if _, ok := included[t.ID()]; ok {
			continue
		}
		if err := verifier.New(t, view, bc.cfg.Evaluator).Check(); err != nil {
			evicted++
			continue
		}
		if err := view.Apply(t); err != nil {
			evicted++
			continue
		}
		kept = append(kept, t)
	}
	if evicted > 0 {
		bc.log.Info("evicted pending transactions", zap.Int("count", evicted))
	}
	bc.pending = kept
}

// pendingView returns the confirmed outputs with the pool applied.
func (bc *Blockchain) pendingView() *utxo.View {
	view := utxo.NewView(bc.store)
	for _, t := range bc.pending {
		// Pool entries were checked against this same sequence on entry.
		_ = view.Apply(t)
	}
	return view
}

// VerifyTransaction reports whether t is valid against the confirmed
// outputs.
func (bc *Blockchain) VerifyTransaction(t *tx.Transaction) bool {
	if t.IsCoinbase() {
		return false
	}
	return verifier.New(t, bc.store, bc.cfg.Evaluator).Verify()
}

// SubmitTransaction verifies t on top of the confirmed outputs and the pool
// and adds it to the pool.
func (bc *Blockchain) SubmitTransaction(t *tx.Transaction) error {
	if t.IsCoinbase() {
		return errs.Invalid("inputs[0]", "coinbase transactions cannot be submitted")
	}

	bc.mu.Lock()
	defer bc.mu.Unlock()

	view := bc.pendingView()
	if err := verifier.New(t, view, bc.cfg.Evaluator).Check(); err != nil {
		return err
	}
	if err := view.Apply(t); err != nil {
		return errs.Rejected("inputs", err.Error())
	}
	bc.pending = append(bc.pending, t)

	id := t.ID()
	bc.log.Debug("transaction accepted", zap.Binary("id", id[:]), zap.Int("pending", len(bc.pending)))
	return nil
}

// Pending returns the transactions waiting to be mined.
func (bc *Blockchain) Pending() []*tx.Transaction {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return append([]*tx.Transaction(nil), bc.pending...)
}

// Template returns an unmined block extending the tip with the pool.
func (bc *Blockchain) Template() (*block.Block, error) {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	nBlock := bc.tip.NBlock + 1
	prevAdj, err := bc.prevAdjFor(nBlock)
	if err != nil {
		return nil, err
	}
	now := bc.cfg.Now()
	if now < bc.tip.Timestamp {
		now = bc.tip.Timestamp
	}
	b, err := block.NewBuilderFromPrev(bc.tip, prevAdj, bc.cfg.CoinbaseScript, block.CoinbaseAmount(nBlock), now)
	if err != nil {
		return nil, err
	}
	for _, t := range bc.pending {
		b.AddTx(t)
	}
	return b.Build()
}

// MineBlock builds a template, searches for a nonce and connects the result.
// Cancelling ctx abandons the search.
func (bc *Blockchain) MineBlock(ctx context.Context) (*block.Block, error) {
	blk, err := bc.Template()
	if err != nil {
		return nil, err
	}
	if err := bc.mine(ctx, blk); err != nil {
		return nil, err
	}
	if err := bc.AddBlock(ctx, blk); err != nil {
		return nil, err
	}
	return blk, nil
}

func (bc *Blockchain) mine(ctx context.Context, blk *block.Block) error {
	start := time.Now()
	nonce, err := bc.cfg.Searcher.Search(ctx, &blk.Header, blk.Header.Target)
	if err != nil {
		return err
	}
	blk.Header.Nonce = nonce
	bc.log.Debug("nonce found", zap.Uint64("nBlock", blk.Header.NBlock), zap.Duration("took", time.Since(start)))
	return nil
}

// ValidateChain re-checks linkage, merkle roots and proof of work of every
// connected block, compares each header with the header index and replays
// the transactions to confirm the stored outputs.
func (bc *Blockchain) ValidateChain() error {
	tip := bc.Tip()
	replay := utxo.NewUTXOSet()
	var prev *block.Header
	for n := uint64(0); n <= tip.NBlock; n++ {
		blk, err := bc.GetBlockByNumber(n)
		if err != nil {
			return fmt.Errorf("block %d: %w", n, err)
		}
		h := &blk.Header
		id := h.ID()
		if h.NBlock != n {
			return fmt.Errorf("block %d: stored under the wrong number %d", n, h.NBlock)
		}
		if prev != nil && h.PrevBlockID != prev.ID() {
			return fmt.Errorf("broken chain at block %d", n)
		}
		if !pow.Validate(h) {
			return fmt.Errorf("invalid PoW at block %d", n)
		}
		root, err := blk.MerkleRoot()
		if err != nil || root != h.MerkleRoot {
			return fmt.Errorf("invalid merkle root at block %d", n)
		}
		indexed, ok, err := bc.headers.Get(id)
		if err != nil {
			return err
		}
		if !ok || *indexed != *h {
			return fmt.Errorf("header index disagrees at block %d", n)
		}
		for i, t := range blk.Txs {
			if err := replay.Update(t); err != nil {
				return fmt.Errorf("block %d tx %d: %w", n, i, err)
			}
		}
		prev = h
	}

	stored, err := bc.store.LoadUTXOSet()
	if err != nil {
		return err
	}
	if !bytes.Equal(stored.Serialize(), replay.Serialize()) {
		return fmt.Errorf("stored outputs differ from replay: have %d, want %d", stored.CountUTXOs(), replay.CountUTXOs())
	}
	bc.log.Info("chain validated", zap.Uint64("height", tip.NBlock), zap.Int("utxos", replay.CountUTXOs()))
	return nil
}

// Balance sums the confirmed address outputs locked to pkh.
func (bc *Blockchain) Balance(pkh crypto.Pkh) (uint64, error) {
	set, err := bc.store.LoadUTXOSet()
	if err != nil {
		return 0, err
	}
	return set.GetBalance(pkh), nil
}

// Spendable returns the address outputs locked to pkh with the pool
// applied, so outputs already spent by pending transactions are left out
// and pending change is included.
func (bc *Blockchain) Spendable(pkh crypto.Pkh) (*utxo.UTXOSet, error) {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	set, err := bc.store.LoadUTXOSet()
	if err != nil {
		return nil, err
	}
	for _, t := range bc.pending {
		if err := set.Update(t); err != nil {
			return nil, fmt.Errorf("pending transaction %x: %w", t.ID(), err)
		}
	}
	return set.Owned(pkh), nil
}

// NewTransfer builds and signs a transfer of amount from the key's address
// to the recipient, spending outputs from set and returning any excess to
// the sender as change. Pass the result of Spendable so outputs already
// spent by the pool are not selected.
func NewTransfer(set *utxo.UTXOSet, from *crypto.KeyPair, to crypto.Pkh, amount uint64) (*tx.Transaction, error) {
	sender := crypto.PublicKeyHash(from.PubKey)
	accumulated, selected, err := set.FindSpendableOutputs(sender, amount)
	if err != nil {
		return nil, err
	}

	inputs := make([]tx.TxInput, 0, len(selected))
	for _, op := range selected {
		inputs = append(inputs, tx.TxInput{
			InputTxID:    op.TxID,
			InputTxIndex: op.Index,
			Script:       script.AddressInputPlaceholder(),
		})
	}
	outputs := []tx.TxOutput{{Value: amount, Script: script.AddressOutput(to)}}
	if accumulated > amount {
		outputs = append(outputs, tx.TxOutput{Value: accumulated - amount, Script: script.AddressOutput(sender)})
	}

	t := tx.NewTransaction(inputs, outputs, 0)
	if err := script.NewSigner(t, set, from).SignAll(); err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return t, nil
}

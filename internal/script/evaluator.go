package script

import (
	"github.com/yourusername/ledgercore/internal/crypto"
	"github.com/yourusername/ledgercore/internal/tx"
)

// Evaluator runs a locking script against the stack produced by an input's
// unlocking script. cache belongs to the calling verification pass and may
// be shared across the inputs of t.
type Evaluator interface {
	Evaluate(lockingScript []byte, t *tx.Transaction, inputIndex int, stack [][]byte, amount uint64, cache *tx.HashCache) bool
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(lockingScript []byte, t *tx.Transaction, inputIndex int, stack [][]byte, amount uint64, cache *tx.HashCache) bool

func (f EvaluatorFunc) Evaluate(lockingScript []byte, t *tx.Transaction, inputIndex int, stack [][]byte, amount uint64, cache *tx.HashCache) bool {
	return f(lockingScript, t, inputIndex, stack, amount, cache)
}

// AddressEvaluator accepts address outputs unlocked by a matching public key
// and a valid signature over the sighash. Any other locking script fails.
type AddressEvaluator struct{}

func (AddressEvaluator) Evaluate(lockingScript []byte, t *tx.Transaction, inputIndex int, stack [][]byte, amount uint64, cache *tx.HashCache) bool {
	pkh, ok := AddressOutputPkh(lockingScript)
	if !ok || len(stack) != 2 {
		return false
	}

	pub, err := crypto.PubKeyFromBytes(stack[1])
	if err != nil {
		return false
	}
	if crypto.PublicKeyHash(pub) != pkh {
		return false
	}

	sig, err := tx.DecodeSignature(stack[0])
	if err != nil {
		return false
	}
	return t.VerifyWithCache(inputIndex, pub, sig, lockingScript, amount, cache)
}

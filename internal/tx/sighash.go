package tx

import (
	"fmt"

	"github.com/yourusername/ledgercore/internal/codec"
	"github.com/yourusername/ledgercore/internal/crypto"
	"github.com/yourusername/ledgercore/internal/errs"
)

// HashCache memoizes the transaction-wide digests of the sighash preimage.
// A cache belongs to one transaction and one signing or verification pass.
// It is not safe for concurrent use; call Precompute before sharing it
// between goroutines.
type HashCache struct {
	prevouts *[32]byte
	lockRel  *[32]byte
	outputs  *[32]byte

	fills int
}

// NewHashCache returns an empty cache.
func NewHashCache() *HashCache {
	return &HashCache{}
}

// Precompute fills every cacheable digest for tx.
func (c *HashCache) Precompute(tx *Transaction) {
	c.prevoutsDigest(tx)
	c.lockRelDigest(tx)
	c.outputsDigest(tx)
}

func (c *HashCache) prevoutsDigest(tx *Transaction) [32]byte {
	if c.prevouts == nil {
		h := tx.HashPrevouts()
		c.prevouts = &h
		c.fills++
	}
	return *c.prevouts
}

func (c *HashCache) lockRelDigest(tx *Transaction) [32]byte {
	if c.lockRel == nil {
		h := tx.HashLockRel()
		c.lockRel = &h
		c.fills++
	}
	return *c.lockRel
}

func (c *HashCache) outputsDigest(tx *Transaction) [32]byte {
	if c.outputs == nil {
		h := tx.HashOutputs()
		c.outputs = &h
		c.fills++
	}
	return *c.outputs
}

// HashPrevouts is the double hash of every input's (txid, index).
func (tx *Transaction) HashPrevouts() [32]byte {
	w := codec.NewWriter()
	for _, in := range tx.Inputs {
		w.Write(in.InputTxID[:]).WriteU32BE(in.InputTxIndex)
	}
	return crypto.DoubleHashBytes(w.Bytes())
}

// HashLockRel is the double hash of every input's relative lock.
func (tx *Transaction) HashLockRel() [32]byte {
	w := codec.NewWriter()
	for _, in := range tx.Inputs {
		w.WriteU32BE(in.LockRel)
	}
	return crypto.DoubleHashBytes(w.Bytes())
}

// HashOutputs is the double hash of every output's encoding.
func (tx *Transaction) HashOutputs() [32]byte {
	w := codec.NewWriter()
	for i := range tx.Outputs {
		tx.Outputs[i].encodeTo(w)
	}
	return crypto.DoubleHashBytes(w.Bytes())
}

// SighashPreimage builds the message committed to by the signature of
// input inputIndex.
func (tx *Transaction) SighashPreimage(inputIndex int, scriptCode []byte, amount uint64, hashType uint8, cache *HashCache) ([]byte, error) {
	if inputIndex < 0 || inputIndex >= len(tx.Inputs) {
		return nil, errs.Invalid("inputIndex", fmt.Sprintf("index %d out of range for %d inputs", inputIndex, len(tx.Inputs)))
	}
	if cache == nil {
		cache = NewHashCache()
	}

	anyoneCanPay := hashType&SighashAnyoneCanPay != 0
	subType := hashType & sighashTypeMask
	allOutputs := subType != SighashSingle && subType != SighashNone

	var prevouts, lockRel, outputs [32]byte
	if !anyoneCanPay {
		prevouts = cache.prevoutsDigest(tx)
	}
	if !anyoneCanPay && allOutputs {
		lockRel = cache.lockRelDigest(tx)
	}
	switch {
	case allOutputs:
		outputs = cache.outputsDigest(tx)
	case subType == SighashSingle && inputIndex < len(tx.Outputs):
		outputs = crypto.DoubleHashBytes(tx.Outputs[inputIndex].Encode())
	}

	in := &tx.Inputs[inputIndex]
	w := codec.NewWriter()
	w.WriteU8(tx.Version).
		Write(prevouts[:]).
		Write(lockRel[:]).
		Write(in.InputTxID[:]).
		WriteU32BE(in.InputTxIndex).
		WriteVarBytes(scriptCode).
		WriteU64BE(amount).
		WriteU32BE(in.LockRel).
		Write(outputs[:]).
		WriteU64BE(tx.LockAbs).
		WriteU8(hashType)
	return w.Bytes(), nil
}

// SighashWithCache returns the digest signed for input inputIndex, reusing
// and filling cache.
func (tx *Transaction) SighashWithCache(inputIndex int, scriptCode []byte, amount uint64, hashType uint8, cache *HashCache) ([32]byte, error) {
	preimage, err := tx.SighashPreimage(inputIndex, scriptCode, amount, hashType, cache)
	if err != nil {
		return [32]byte{}, err
	}
	return crypto.DoubleHashBytes(preimage), nil
}

// SighashNoCache is SighashWithCache with a private, discarded cache.
func (tx *Transaction) SighashNoCache(inputIndex int, scriptCode []byte, amount uint64, hashType uint8) ([32]byte, error) {
	return tx.SighashWithCache(inputIndex, scriptCode, amount, hashType, NewHashCache())
}

// SignWithCache signs input inputIndex with priv.
func (tx *Transaction) SignWithCache(inputIndex int, priv *crypto.PrivKey, scriptCode []byte, amount uint64, hashType uint8, cache *HashCache) (*TxSignature, error) {
	digest, err := tx.SighashWithCache(inputIndex, scriptCode, amount, hashType, cache)
	if err != nil {
		return nil, fmt.Errorf("failed to sign input %d: %w", inputIndex, err)
	}
	return &TxSignature{HashType: hashType, Signature: crypto.Sign(priv, digest)}, nil
}

func (tx *Transaction) SignNoCache(inputIndex int, priv *crypto.PrivKey, scriptCode []byte, amount uint64, hashType uint8) (*TxSignature, error) {
	return tx.SignWithCache(inputIndex, priv, scriptCode, amount, hashType, NewHashCache())
}

// VerifyWithCache recomputes the sighash using sig.HashType and checks sig
// against pub.
func (tx *Transaction) VerifyWithCache(inputIndex int, pub *crypto.PubKey, sig *TxSignature, scriptCode []byte, amount uint64, cache *HashCache) bool {
	if sig == nil {
		return false
	}
	digest, err := tx.SighashWithCache(inputIndex, scriptCode, amount, sig.HashType, cache)
	if err != nil {
		return false
	}
	return crypto.VerifySignature(pub, digest, sig.Signature)
}

func (tx *Transaction) VerifyNoCache(inputIndex int, pub *crypto.PubKey, sig *TxSignature, scriptCode []byte, amount uint64) bool {
	return tx.VerifyWithCache(inputIndex, pub, sig, scriptCode, amount, NewHashCache())
}

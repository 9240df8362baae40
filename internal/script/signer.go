package script

import (
	"fmt"

	"github.com/yourusername/ledgercore/internal/crypto"
	"github.com/yourusername/ledgercore/internal/tx"
)

// Signer fills the address inputs of a transaction using keys looked up by
// the pkh of the output each input spends.
type Signer struct {
	tx      *tx.Transaction
	outputs tx.OutputMap
	keys    map[crypto.Pkh]*crypto.KeyPair
	cache   *tx.HashCache
}

// NewSigner creates a signer for t.
func NewSigner(t *tx.Transaction, outputs tx.OutputMap, keys ...*crypto.KeyPair) *Signer {
	s := &Signer{
		tx:      t,
		outputs: outputs,
		keys:    make(map[crypto.Pkh]*crypto.KeyPair, len(keys)),
		cache:   tx.NewHashCache(),
	}
	for _, kp := range keys {
		s.keys[crypto.PublicKeyHash(kp.PubKey)] = kp
	}
	return s
}

// Sign signs input i with SIGHASH_ALL.
func (s *Signer) Sign(i int) error {
	if i < 0 || i >= len(s.tx.Inputs) {
		return fmt.Errorf("input %d out of range", i)
	}
	in := &s.tx.Inputs[i]
	prev, ok := s.outputs.Get(in.InputTxID, in.InputTxIndex)
	if !ok {
		return fmt.Errorf("input %d: previous output %x:%d not found", i, in.InputTxID, in.InputTxIndex)
	}
	pkh, ok := AddressOutputPkh(prev.Script)
	if !ok {
		return fmt.Errorf("input %d: previous output is not an address output", i)
	}
	kp, ok := s.keys[pkh]
	if !ok {
		return fmt.Errorf("input %d: no key for %s", i, crypto.EncodeAddress(pkh))
	}

	sig, err := s.tx.SignWithCache(i, kp.PrivKey, prev.Script, prev.Value, tx.SighashAll, s.cache)
	if err != nil {
		return err
	}
	in.Script = AddressInput(sig, kp.PubKey)
	return nil
}

// SignAll signs every input in order.
func (s *Signer) SignAll() error {
	for i := range s.tx.Inputs {
		if err := s.Sign(i); err != nil {
			return err
		}
	}
	return nil
}

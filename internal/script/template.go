package script

import (
	"github.com/yourusername/ledgercore/internal/crypto"
	"github.com/yourusername/ledgercore/internal/tx"
)

const addressOutputSize = 3 + 32 + 2

// AddressOutput locks an output to a public key hash:
// DUP DOUBLEBLAKE3 <pkh> EQUALVERIFY CHECKSIG.
func AddressOutput(pkh crypto.Pkh) []byte {
	return NewBuilder().
		AddOp(OpDup).
		AddOp(OpDoubleBlake3).
		AddData(pkh[:]).
		AddOp(OpEqualVerify).
		AddOp(OpCheckSig).
		Script()
}

// AddressOutputPkh extracts the pkh from an address output script.
func AddressOutputPkh(script []byte) (crypto.Pkh, bool) {
	var pkh crypto.Pkh
	if len(script) != addressOutputSize ||
		script[0] != OpDup || script[1] != OpDoubleBlake3 || script[2] != 32 ||
		script[35] != OpEqualVerify || script[36] != OpCheckSig {
		return pkh, false
	}
	copy(pkh[:], script[3:35])
	return pkh, true
}

// IsAddressOutput reports whether script is an address output.
func IsAddressOutput(script []byte) bool {
	_, ok := AddressOutputPkh(script)
	return ok
}

// AddressInput unlocks an address output: <signature> <public key>.
func AddressInput(sig *tx.TxSignature, pub *crypto.PubKey) []byte {
	return NewBuilder().AddData(sig.Encode()).AddData(pub.Bytes()).Script()
}

// AddressInputPlaceholder is an unsigned address input of the final size,
// so fee-free value checks and ids can be computed before signing.
func AddressInputPlaceholder() []byte {
	return NewBuilder().
		AddData(make([]byte, tx.SignatureSize)).
		AddData(make([]byte, crypto.PubKeySize)).
		Script()
}

// IsAddressInput reports whether script has the shape of an address input.
func IsAddressInput(script []byte) bool {
	stack, err := InitialStack(script)
	if err != nil || len(stack) != 2 {
		return false
	}
	return len(stack[0]) == tx.SignatureSize && len(stack[1]) == crypto.PubKeySize
}

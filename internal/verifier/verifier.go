// Package verifier decides whether a transaction may spend the outputs it
// references: every input script must authorize the spend and the input
// and output values must balance exactly.
package verifier

import (
	"fmt"
	"math/bits"

	"github.com/yourusername/ledgercore/internal/errs"
	"github.com/yourusername/ledgercore/internal/script"
	"github.com/yourusername/ledgercore/internal/tx"
)

// OutputMap resolves previous outputs.
type OutputMap = tx.OutputMap

// Verifier checks one transaction. Its HashCache is shared by every input
// of a verification pass, so a Verifier must not be used concurrently.
type Verifier struct {
	tx        *tx.Transaction
	outputs   OutputMap
	evaluator script.Evaluator
	cache     *tx.HashCache
}

// New creates a Verifier with a fresh HashCache.
func New(t *tx.Transaction, outputs OutputMap, evaluator script.Evaluator) *Verifier {
	return &Verifier{
		tx:        t,
		outputs:   outputs,
		evaluator: evaluator,
		cache:     tx.NewHashCache(),
	}
}

func (v *Verifier) checkInputScript(i int) error {
	field := fmt.Sprintf("inputs[%d]", i)
	in := &v.tx.Inputs[i]

	prev, ok := v.outputs.Get(in.InputTxID, in.InputTxIndex)
	if !ok {
		return errs.Rejected(field, fmt.Sprintf("previous output %x:%d not found", in.InputTxID, in.InputTxIndex))
	}
	if !script.IsPushOnly(in.Script) {
		return errs.Rejected(field+".script", "input script is not push-only")
	}
	stack, err := script.InitialStack(in.Script)
	if err != nil {
		return errs.Rejected(field+".script", err.Error())
	}
	if !v.evaluator.Evaluate(prev.Script, v.tx, i, stack, prev.Value, v.cache) {
		return errs.Rejected(field+".script", "script evaluation failed")
	}
	return nil
}

// VerifyInputScript reports whether input i is authorized.
func (v *Verifier) VerifyInputScript(i int) bool {
	if i < 0 || i >= len(v.tx.Inputs) {
		return false
	}
	return v.checkInputScript(i) == nil
}

func (v *Verifier) checkScripts() error {
	for i := range v.tx.Inputs {
		if err := v.checkInputScript(i); err != nil {
			return err
		}
	}
	return nil
}

// VerifyScripts reports whether every input is authorized, stopping at the
// first failure.
func (v *Verifier) VerifyScripts() bool {
	return v.checkScripts() == nil
}

func (v *Verifier) checkOutputValues() error {
	var outTotal, inTotal uint64
	var carry uint64

	for _, out := range v.tx.Outputs {
		outTotal, carry = bits.Add64(outTotal, out.Value, 0)
		if carry != 0 {
			return errs.Rejected("outputs", "output value overflow")
		}
	}
	for i, in := range v.tx.Inputs {
		prev, ok := v.outputs.Get(in.InputTxID, in.InputTxIndex)
		if !ok {
			return errs.Rejected(fmt.Sprintf("inputs[%d]", i), "previous output not found")
		}
		inTotal, carry = bits.Add64(inTotal, prev.Value, 0)
		if carry != 0 {
			return errs.Rejected("inputs", "input value overflow")
		}
	}
	if inTotal != outTotal {
		return errs.Rejected("values", fmt.Sprintf("inputs total %d, outputs total %d", inTotal, outTotal))
	}
	return nil
}

// VerifyOutputValues reports whether the referenced input amounts sum to
// exactly the output amounts.
func (v *Verifier) VerifyOutputValues() bool {
	return v.checkOutputValues() == nil
}

// Check returns the first reason the transaction is invalid, or nil.
func (v *Verifier) Check() error {
	if err := v.checkScripts(); err != nil {
		return err
	}
	return v.checkOutputValues()
}

// Verify reports whether the transaction is valid.
func (v *Verifier) Verify() bool {
	return v.Check() == nil
}

package utxo

import (
	"fmt"

	"github.com/yourusername/ledgercore/internal/tx"
)

// MissingOutputError reports an input whose previous output cannot be spent.
type MissingOutputError struct {
	OutPoint tx.OutPoint
	Reason   string
}

func (e *MissingOutputError) Error() string {
	return fmt.Sprintf("previous output %x:%d %s", e.OutPoint.TxID, e.OutPoint.Index, e.Reason)
}

func errMissing(op tx.OutPoint, reason string) error {
	return &MissingOutputError{OutPoint: op, Reason: reason}
}

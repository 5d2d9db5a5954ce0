package ir

import "fmt"

// Verify checks the structural invariants every later stage relies on:
// every block ends in exactly one terminator, and every phi has exactly
// one incoming value per predecessor, no more and no fewer.
func (f *Function) Verify() error {
	for _, b := range f.Blocks {
		if len(b.Instructions) == 0 {
			return fmt.Errorf("ir: block %s is empty", blockLabel(b))
		}
		for i, inst := range b.Instructions {
			isLast := i == len(b.Instructions)-1
			if inst.Op.IsTerminator() != isLast {
				return fmt.Errorf("ir: block %s: terminator must be exactly the last instruction", blockLabel(b))
			}
		}
		for _, phi := range b.Phis() {
			if len(phi.PhiIncoming) != len(b.Preds) {
				return fmt.Errorf("ir: block %s: phi %s has %d incoming values for %d predecessors",
					blockLabel(b), valueRef(phi), len(phi.PhiIncoming), len(b.Preds))
			}
			for _, pred := range b.Preds {
				if _, ok := phi.IncomingFor(pred); !ok {
					return fmt.Errorf("ir: block %s: phi %s missing incoming value for predecessor %s",
						blockLabel(b), valueRef(phi), blockLabel(pred))
				}
			}
		}
	}
	return nil
}

package ir

import "fmt"

// Program is an ordered sequence of instructions. The instruction at index v
// defines value v. The program result is the last value that is not a Store;
// Store ids occupy the numbering but are not referenceable.
type Program struct {
	Insts []Inst
}

// Push appends an instruction and returns the value id it defines.
func (p *Program) Push(inst Inst) VId {
	p.Insts = append(p.Insts, inst)
	return VId(len(p.Insts) - 1)
}

// Len returns the number of instructions.
func (p *Program) Len() int { return len(p.Insts) }

// Result returns the id of the last non-Store instruction, or None for an
// empty or store-only program.
func (p *Program) Result() VId {
	for v := len(p.Insts) - 1; v >= 0; v-- {
		if p.Insts[v].Op != OpStore {
			return VId(v)
		}
	}
	return None
}

// Clone returns a deep copy.
func (p *Program) Clone() Program {
	out := Program{Insts: make([]Inst, len(p.Insts))}
	copy(out.Insts, p.Insts)
	return out
}

// UseCounts counts, for every value, how many operand references it has. The
// program result is not counted; callers that need liveness treat it as one
// extra use.
func (p *Program) UseCounts() []int32 {
	counts := make([]int32, len(p.Insts))
	for _, inst := range p.Insts {
		if inst.A != None {
			counts[inst.A]++
		}
		if inst.B != None {
			counts[inst.B]++
		}
	}
	return counts
}

// MaxSlot returns the largest slot index referenced by instructions with the
// given opcode, or -1 when none occur.
func (p *Program) MaxSlot(op Op) int {
	max := -1
	for _, inst := range p.Insts {
		if inst.Op == op && int(inst.Bits) > max {
			max = int(inst.Bits)
		}
	}
	return max
}

// Has reports whether any instruction carries the given opcode.
func (p *Program) Has(op Op) bool {
	for _, inst := range p.Insts {
		if inst.Op == op {
			return true
		}
	}
	return false
}

// Validate checks the structural invariants every pass must preserve:
// operands are defined before use, arities match, and nothing reads the
// result of a Store.
func (p *Program) Validate() error {
	for v, inst := range p.Insts {
		arity := inst.Op.Arity()
		ops := [2]VId{inst.A, inst.B}
		for k, u := range ops {
			if k < arity {
				if u == None {
					return fmt.Errorf("value %d: %s missing operand %d", v, inst.Op, k)
				}
				if u < 0 || int(u) >= v {
					return fmt.Errorf("value %d: operand %d does not precede its use", v, u)
				}
				if p.Insts[u].Op == OpStore {
					return fmt.Errorf("value %d: operand %d references a store", v, u)
				}
			} else if u != None {
				return fmt.Errorf("value %d: %s has unexpected operand %d", v, inst.Op, k)
			}
		}
	}
	return nil
}

// Bundle is the output of the memoize pass: an x-only stage, a y-only stage,
// and the combining stage. Stage buffers hold the stage input at index 0 and
// stored slot s at index s+1; the xy stage writes its result to index 0 of
// the output buffer. The layout is shared by the interpreter, the register
// allocator, and the emitter.
type Bundle struct {
	X, Y, XY Program
}

// XSize is the number of buffer cells the x stage touches, input included.
func (b *Bundle) XSize() int { return b.X.MaxSlot(OpStore) + 2 }

// YSize is the number of buffer cells the y stage touches, input included.
func (b *Bundle) YSize() int { return b.Y.MaxSlot(OpStore) + 2 }

// XYSize is the number of output cells the xy stage writes.
func (b *Bundle) XYSize() int { return 1 }

// Validate checks the per-stage invariants: the xy stage never reads the
// coordinate variables directly, every load has a matching store, and every
// slot is stored exactly once.
func (b *Bundle) Validate() error {
	for _, stage := range []struct {
		name string
		p    *Program
	}{{"x", &b.X}, {"y", &b.Y}, {"xy", &b.XY}} {
		if err := stage.p.Validate(); err != nil {
			return fmt.Errorf("stage %s: %w", stage.name, err)
		}
	}
	if b.XY.Has(OpVarX) || b.XY.Has(OpVarY) {
		return fmt.Errorf("stage xy reads a coordinate variable")
	}
	if err := checkSlots(&b.X, &b.XY, OpLoadX, "x"); err != nil {
		return err
	}
	return checkSlots(&b.Y, &b.XY, OpLoadY, "y")
}

func checkSlots(writer, reader *Program, load Op, name string) error {
	stored := make(map[uint32]int)
	for _, inst := range writer.Insts {
		if inst.Op == OpStore {
			stored[inst.Bits]++
		}
	}
	for slot, n := range stored {
		if n != 1 {
			return fmt.Errorf("stage %s: slot %d stored %d times", name, slot, n)
		}
	}
	for _, inst := range reader.Insts {
		if inst.Op == load {
			if stored[inst.Bits] == 0 {
				return fmt.Errorf("stage xy: load of %s slot %d with no store", name, inst.Bits)
			}
		}
	}
	return nil
}

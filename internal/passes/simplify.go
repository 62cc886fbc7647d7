package passes

import (
	"prospero/internal/bitset"
	"prospero/internal/ir"
)

// Simplify normalizes a program: negations are pushed outward, commutative
// operands are put in canonical order (smaller id first), and structurally
// identical values are coalesced through a hash-cons table. Values left
// without uses are dropped and the program is renumbered densely.
type Simplify struct{}

func (Simplify) Name() string { return "simplify" }

func (Simplify) Apply(p ir.Program) (ir.Program, error) {
	if err := p.Validate(); err != nil {
		return ir.Program{}, err
	}

	s := &simplifier{
		gvn:  make(map[consKey]ir.VId),
		subs: make(map[[2]ir.VId]ir.VId),
	}
	remap := make([]ir.VId, p.Len())
	for i := range remap {
		remap[i] = ir.None
	}

	for v, inst := range p.Insts {
		switch inst.Op {
		case ir.OpStore:
			// Side-effecting; passed through, never hashed.
			s.out.Push(ir.Store(inst.Slot(), remap[inst.A]))
		case ir.OpLoadX, ir.OpLoadY:
			// Slot identity is the value; never hashed.
			remap[v] = s.out.Push(inst)
		default:
			a, b := ir.None, ir.None
			if inst.A != ir.None {
				a = remap[inst.A]
			}
			if inst.B != ir.None {
				b = remap[inst.B]
			}
			remap[v] = s.value(ir.Inst{Op: inst.Op, A: a, B: b, Bits: inst.Bits})
		}
	}

	result := ir.None
	if r := p.Result(); r != ir.None {
		result = remap[r]
	}
	return s.sweep(result), nil
}

// consKey identifies a value structurally: opcode, canonicalized operands,
// and the payload bits for constants.
type consKey struct {
	op   ir.Op
	a, b ir.VId
	bits uint32
}

type simplifier struct {
	out  ir.Program
	gvn  map[consKey]ir.VId
	subs map[[2]ir.VId]ir.VId
}

// value applies the local rewrite rules until none fire, then hash-conses.
// Every rule strictly reduces negation depth, so the recursion terminates.
func (s *simplifier) value(inst ir.Inst) ir.VId {
	op, a, b := inst.Op, inst.A, inst.B
	switch op {
	case ir.OpNeg:
		if x, ok := s.negOf(a); ok {
			return x
		}

	case ir.OpSquare:
		// square(-x) == square(x)
		if x, ok := s.negOf(a); ok {
			a = x
		}

	case ir.OpAdd:
		if x, ok := s.negOf(a); ok {
			if y, ok := s.negOf(b); ok {
				return s.neg(s.value(ir.Binary(ir.OpAdd, x, y)))
			}
		}

	case ir.OpSub:
		if x, ok := s.negOf(a); ok {
			return s.neg(s.value(ir.Binary(ir.OpAdd, x, b)))
		}
		if y, ok := s.negOf(b); ok {
			return s.value(ir.Binary(ir.OpAdd, a, y))
		}
		// If b-a already exists, a-b is just its negation; keeping one value
		// live beats keeping both operands live.
		if v, ok := s.subs[[2]ir.VId{b, a}]; ok {
			return s.neg(v)
		}
		v := s.cons(ir.Binary(ir.OpSub, a, b))
		s.subs[[2]ir.VId{a, b}] = v
		return v

	case ir.OpMul:
		x, negA := s.negOf(a)
		y, negB := s.negOf(b)
		switch {
		case negA && negB:
			return s.value(ir.Binary(ir.OpMul, x, y))
		case negA:
			return s.neg(s.value(ir.Binary(ir.OpMul, x, b)))
		case negB:
			return s.neg(s.value(ir.Binary(ir.OpMul, a, y)))
		}

	case ir.OpMin:
		if x, ok := s.negOf(a); ok {
			if y, ok := s.negOf(b); ok {
				return s.neg(s.value(ir.Binary(ir.OpMax, x, y)))
			}
		}

	case ir.OpMax:
		if x, ok := s.negOf(a); ok {
			if y, ok := s.negOf(b); ok {
				return s.neg(s.value(ir.Binary(ir.OpMin, x, y)))
			}
		}
	}

	if op.Commutative() && a > b {
		a, b = b, a
	}
	return s.cons(ir.Inst{Op: op, A: a, B: b, Bits: inst.Bits})
}

func (s *simplifier) neg(v ir.VId) ir.VId {
	return s.value(ir.Unary(ir.OpNeg, v))
}

func (s *simplifier) negOf(v ir.VId) (ir.VId, bool) {
	if v != ir.None && s.out.Insts[v].Op == ir.OpNeg {
		return s.out.Insts[v].A, true
	}
	return ir.None, false
}

func (s *simplifier) cons(inst ir.Inst) ir.VId {
	key := consKey{op: inst.Op, a: inst.A, b: inst.B, bits: inst.Bits}
	if v, ok := s.gvn[key]; ok {
		return v
	}
	v := s.out.Push(inst)
	s.gvn[key] = v
	return v
}

// sweep drops values no longer reachable from the result or a store and
// renumbers the survivors densely.
func (s *simplifier) sweep(result ir.VId) ir.Program {
	n := s.out.Len()
	live := bitset.New(n)

	var stack []ir.VId
	mark := func(v ir.VId) {
		if v != ir.None && !live.Has(int(v)) {
			live.Add(int(v))
			stack = append(stack, v)
		}
	}
	mark(result)
	for _, inst := range s.out.Insts {
		if inst.Op == ir.OpStore {
			mark(inst.A)
		}
	}
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		inst := s.out.Insts[v]
		mark(inst.A)
		mark(inst.B)
	}

	var final ir.Program
	newIds := make([]ir.VId, n)
	for v, inst := range s.out.Insts {
		if inst.Op == ir.OpStore {
			final.Push(ir.Store(inst.Slot(), newIds[inst.A]))
			continue
		}
		if !live.Has(v) {
			continue
		}
		mapped := inst
		if mapped.A != ir.None {
			mapped.A = newIds[mapped.A]
		}
		if mapped.B != ir.None {
			mapped.B = newIds[mapped.B]
		}
		newIds[v] = final.Push(mapped)
	}
	return final
}

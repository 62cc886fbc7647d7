package passes

import (
	"fmt"

	"prospero/internal/ir"
)

// Split partitions a program into the x-only, y-only, and combining stages
// of a memoized bundle. Single-variable work lands in the x or y stage;
// every x- or y-tagged value demanded by the combining stage is written to a
// boundary slot by its own stage and re-read through a load. Constant
// subexpressions are not memoized: they are re-emitted in whichever stages
// need them, with const instructions deduplicated by bit pattern. Slots are
// numbered densely in the order boundaries are discovered on one forward
// sweep, so the layout is deterministic.
func Split(p ir.Program) (ir.Bundle, error) {
	if err := p.Validate(); err != nil {
		return ir.Bundle{}, err
	}
	if p.Has(ir.OpLoadX) || p.Has(ir.OpLoadY) || p.Has(ir.OpStore) {
		return ir.Bundle{}, fmt.Errorf("program is already memoized")
	}

	m := &splitter{p: &p, tags: Analyze(&p)}
	for si := range m.maps {
		m.maps[si] = make([]ir.VId, p.Len())
		for i := range m.maps[si] {
			m.maps[si][i] = ir.None
		}
		m.consts[si] = make(map[uint32]ir.VId)
	}

	for v, inst := range p.Insts {
		switch m.tags[v] {
		case TagC:
			// Materialized on demand in whichever stages need it.
		case TagX:
			m.emit(ir.VId(v), stageXIdx)
		case TagY:
			m.emit(ir.VId(v), stageYIdx)
		case TagXY:
			mapped := inst
			mapped.A = m.demandXY(inst.A)
			if mapped.B != ir.None {
				mapped.B = m.demandXY(inst.B)
			}
			m.maps[stageXYIdx][v] = m.bundle.XY.Push(canonicalized(mapped))
		}
	}

	// The combining stage must end with the overall result, whatever stage
	// computed it.
	if r := p.Result(); r != ir.None {
		m.demandXY(r)
	}
	return m.bundle, nil
}

const (
	stageXIdx = iota
	stageYIdx
	stageXYIdx
)

type splitter struct {
	p      *ir.Program
	bundle ir.Bundle
	tags   []Tag
	maps   [3][]ir.VId
	consts [3]map[uint32]ir.VId
	slotsX uint32
	slotsY uint32
}

func (m *splitter) stage(si int) *ir.Program {
	switch si {
	case stageXIdx:
		return &m.bundle.X
	case stageYIdx:
		return &m.bundle.Y
	default:
		return &m.bundle.XY
	}
}

// emit materializes value u (and, recursively, any constant operands) in the
// given stage. u's tag must be C or the stage's own variable.
func (m *splitter) emit(u ir.VId, si int) ir.VId {
	if m.maps[si][u] != ir.None {
		return m.maps[si][u]
	}
	inst := m.p.Insts[u]
	if inst.Op == ir.OpConst {
		if v, ok := m.consts[si][inst.Bits]; ok {
			m.maps[si][u] = v
			return v
		}
	}
	mapped := inst
	if mapped.A != ir.None {
		mapped.A = m.emit(inst.A, si)
	}
	if mapped.B != ir.None {
		mapped.B = m.emit(inst.B, si)
	}
	v := m.stage(si).Push(canonicalized(mapped))
	m.maps[si][u] = v
	if inst.Op == ir.OpConst {
		m.consts[si][inst.Bits] = v
	}
	return v
}

// canonicalized restores smaller-id-first operand order for commutative
// opcodes. Remapping can invert it: a cached operand keeps an early stage
// id while the other materializes late, regardless of the original order.
func canonicalized(inst ir.Inst) ir.Inst {
	if inst.Op.Commutative() && inst.A > inst.B {
		inst.A, inst.B = inst.B, inst.A
	}
	return inst
}

// demandXY makes value u available in the combining stage: directly for
// xy-tagged values, re-emitted for constants, or through a boundary slot for
// x- and y-tagged values.
func (m *splitter) demandXY(u ir.VId) ir.VId {
	if m.maps[stageXYIdx][u] != ir.None {
		return m.maps[stageXYIdx][u]
	}
	switch m.tags[u] {
	case TagC:
		return m.emit(u, stageXYIdx)
	case TagX:
		slot := m.slotsX
		m.slotsX++
		m.bundle.X.Push(ir.Store(slot, m.emit(u, stageXIdx)))
		m.maps[stageXYIdx][u] = m.bundle.XY.Push(ir.Load(ir.OpLoadX, slot))
	case TagY:
		slot := m.slotsY
		m.slotsY++
		m.bundle.Y.Push(ir.Store(slot, m.emit(u, stageYIdx)))
		m.maps[stageXYIdx][u] = m.bundle.XY.Push(ir.Load(ir.OpLoadY, slot))
	}
	return m.maps[stageXYIdx][u]
}

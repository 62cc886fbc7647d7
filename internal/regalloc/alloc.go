package regalloc

import (
	"prospero/internal/errors"
	"prospero/internal/ir"
)

// DefaultRegisters is the XMM register file size on x86-64.
const DefaultRegisters = 16

// signMaskBits is the pool constant Neg is lowered with (xor of the sign
// bit).
const signMaskBits = 0x80000000

// Config parameterizes one allocation.
type Config struct {
	Registers int
	Sink      SinkPolicy
}

// Run allocates one stage program. The walk is strictly reverse: at each
// definition the demands of every later use are already known, so registers
// are assigned greedily in a single pass, with loads and spills emitted on
// the fly. Once a value is given a memory home the home never moves; register
// copies stay consistent with it because values are immutable.
func Run(p *ir.Program, stage ir.Stage, cfg Config) (Allocation, error) {
	if err := p.Validate(); err != nil {
		return Allocation{}, errors.Internal("regalloc: %s", err)
	}
	if cfg.Registers <= 1 {
		cfg.Registers = DefaultRegisters
	}

	a := &allocator{
		prog:        p,
		stage:       stage,
		cfg:         cfg,
		vals:        make([]valState, p.Len()),
		regVal:      make([]ir.VId, cfg.Registers),
		lastUse:     make([]uint32, cfg.Registers),
		dirtyBefore: make([]uint32, cfg.Registers),
		pre:         make(map[int][]Step),
		usesAfter:   make([]int32, p.Len()),
	}
	for i := range a.vals {
		a.vals[i] = valState{reg: NoReg, queueIdx: -1}
	}
	for r := range a.regVal {
		a.regVal[r] = ir.None
	}
	if err := a.seedHomes(); err != nil {
		return Allocation{}, err
	}

	// The combining stage writes its result to the output buffer; in the
	// reverse walk that store comes first.
	if stage == ir.StageXY || stage == ir.StageFull {
		if r := p.Result(); r != ir.None {
			reg := a.demandReg(r)
			a.append(Step{Kind: StepStore, Mem: MemLoc{Bank: BankOut}, Dst: reg})
		}
	}

	for v := p.Len() - 1; v >= 0; v-- {
		a.instruction(ir.VId(v))
	}
	return Allocation{Steps: a.finalize(), FrameSlots: a.frameSlots}, nil
}

const (
	stateUnassigned = iota
	stateReg
	stateMem
	stateMemReg
)

// valState is the allocator's per-value record: where later uses expect the
// value, plus the sunk-load queue handle used for O(1) staleness checks.
type valState struct {
	kind     uint8
	reg      Reg
	mem      MemLoc
	queueIdx int16
	queueGen uint32
}

func (s *valState) hasReg() bool { return s.kind == stateReg || s.kind == stateMemReg }
func (s *valState) hasMem() bool { return s.kind == stateMem || s.kind == stateMemReg }

type allocator struct {
	prog  *ir.Program
	stage ir.Stage
	cfg   Config

	vals        []valState
	regVal      []ir.VId
	lastUse     []uint32
	dirtyBefore []uint32
	counter     uint32

	// rsteps accumulates in reverse forward order; pre holds loads that a
	// sink promotion inserts immediately before an already-emitted step.
	rsteps []Step
	pre    map[int][]Step

	queue      sinkQueue
	frameSlots int
	usesAfter  []int32
}

// seedHomes gives every value with a natural memory location (coordinate
// inputs, boundary loads, pool constants) its home up front, and rejects
// opcodes that do not belong to the stage.
func (a *allocator) seedHomes() error {
	for v, inst := range a.prog.Insts {
		var home MemLoc
		switch inst.Op {
		case ir.OpVarX:
			if a.stage == ir.StageXY || a.stage == ir.StageY {
				return errors.Internal("var-x in %s stage", a.stage)
			}
			home = MemLoc{Bank: BankXBuf, Index: 0}
		case ir.OpVarY:
			if a.stage == ir.StageXY || a.stage == ir.StageX {
				return errors.Internal("var-y in %s stage", a.stage)
			}
			home = MemLoc{Bank: BankYBuf, Index: 0}
		case ir.OpLoadX:
			if a.stage != ir.StageXY {
				return errors.Internal("load-x in %s stage", a.stage)
			}
			home = MemLoc{Bank: BankXBuf, Index: inst.Slot() + 1}
		case ir.OpLoadY:
			if a.stage != ir.StageXY {
				return errors.Internal("load-y in %s stage", a.stage)
			}
			home = MemLoc{Bank: BankYBuf, Index: inst.Slot() + 1}
		case ir.OpConst:
			home = MemLoc{Bank: BankConst, Index: inst.Bits}
		case ir.OpStore:
			if a.stage != ir.StageX && a.stage != ir.StageY {
				return errors.Internal("store in %s stage", a.stage)
			}
			continue
		default:
			continue
		}
		a.vals[v].kind = stateMem
		a.vals[v].mem = home
	}
	return nil
}

// instruction processes one definition in the reverse walk.
func (a *allocator) instruction(v ir.VId) {
	inst := a.prog.Insts[v]
	if inst.Op == ir.OpStore {
		reg := a.demandReg(inst.A)
		a.append(Step{Kind: StepStore, Mem: a.storeLoc(inst.Slot()), Dst: reg})
		return
	}

	st := &a.vals[v]
	switch {
	case st.kind == stateUnassigned:
		return // never demanded; emit nothing
	case st.kind == stateMem && st.mem.Bank != BankFrame:
		// Demanded only through its natural home; nothing to compute.
		st.kind = stateUnassigned
		return
	}

	var r Reg
	if st.hasReg() {
		r = st.reg
	} else {
		r = a.allocReg(NoReg)
	}
	// A spilled value is written to its frame home once, right after the
	// defining instruction.
	if st.hasMem() && st.mem.Bank == BankFrame {
		a.append(Step{Kind: StepStore, Mem: st.mem, Dst: r})
	}
	home := st.mem
	a.release(v, r)

	switch inst.Op {
	case ir.OpVarX, ir.OpVarY, ir.OpLoadX, ir.OpLoadY, ir.OpConst:
		a.append(Step{Kind: StepLoad, Dst: r, Src: MemOperand(home)})

	case ir.OpNeg:
		fix := a.placeIn(inst.A, r)
		a.append(Step{Kind: StepOp, Op: ir.OpNeg, Dst: r,
			Src: MemOperand(MemLoc{Bank: BankConst, Index: signMaskBits})})
		a.appendAll(fix)

	case ir.OpSquare:
		fix := a.placeIn(inst.A, r)
		a.append(Step{Kind: StepOp, Op: ir.OpSquare, Dst: r, Src: RegOperand(r)})
		a.appendAll(fix)

	case ir.OpSqrt:
		// Not destructive on x86, so the operand can stay wherever it is;
		// an unplaced operand takes whichever free register allocReg picks
		// (the just-released output register is one candidate), or a memory
		// operand when the sink policy allows it.
		src := a.operand(inst.A, NoReg, true)
		a.append(Step{Kind: StepOp, Op: ir.OpSqrt, Dst: r, Src: src})

	default:
		opA, opB := inst.A, inst.B
		// Operand roles may swap only where IEEE leaves the result order
		// independent. minss/maxss pick the second source on an unordered
		// compare, so min/max operands stay put even though the opcodes are
		// commutative for value numbering.
		orderFree := inst.Op == ir.OpAdd || inst.Op == ir.OpMul
		if orderFree && a.moveNeeded(opA, r) && !a.moveNeeded(opB, r) {
			opA, opB = opB, opA
		}
		// The second operand resolves first: resolving it may evict a
		// register, and the first operand's placement must see that.
		var src Operand
		sameOperand := opB == opA
		if !sameOperand {
			src = a.operand(opB, r, true)
		}
		fix := a.placeIn(opA, r)
		if sameOperand {
			src = RegOperand(r)
			a.usesAfter[opB]++
		}
		a.append(Step{Kind: StepOp, Op: inst.Op, Dst: r, Src: src})
		a.appendAll(fix)
	}
}

// moveNeeded reports whether placing u in r would need a register move.
func (a *allocator) moveNeeded(u ir.VId, r Reg) bool {
	return a.vals[u].hasReg() && a.vals[u].reg != r
}

// placeIn arranges for operand u to occupy exactly register r at this
// instruction (the two-operand destructive form). The returned fixup steps
// precede the instruction in forward order.
func (a *allocator) placeIn(u ir.VId, r Reg) []Step {
	st := &a.vals[u]
	defer func() { a.usesAfter[u]++ }()

	if st.hasReg() {
		a.touch(st.reg)
		if st.reg == r {
			return nil
		}
		// u stays in its register for this and earlier uses; copy it into
		// the destination just before the instruction.
		a.touch(r)
		return []Step{{Kind: StepLoad, Dst: r, Src: RegOperand(st.reg)}}
	}

	// Targeted promotion: if a sunk load of u is still patchable with r, the
	// patched instruction reads r and u is reloaded right before it.
	if st.kind == stateMem {
		if e, ok := a.queue.lookup(int(st.queueIdx), st.queueGen); ok {
			if a.dirtyBefore[r] <= e.counter && a.regVal[r] == ir.None {
				a.patch(e, r, st.mem)
			}
			e.live = false
		}
	}
	a.claim(u, r)
	return nil
}

// operand resolves the second (memory-capable) operand position: a register,
// or a memory location when the sink policy allows it.
func (a *allocator) operand(u ir.VId, exclude Reg, sinkable bool) Operand {
	st := &a.vals[u]
	defer func() { a.usesAfter[u]++ }()

	if st.hasReg() {
		a.touch(st.reg)
		return RegOperand(st.reg)
	}

	if sinkable && a.cfg.Sink != SinkNone {
		dead := a.usesAfter[u] == 0
		memResident := st.kind == stateMem
		sink, enqueue := false, false
		switch a.cfg.Sink {
		case SinkAll:
			sink = true
		case SinkPreferDead:
			sink, enqueue = true, true
		case SinkRequireDead:
			sink = dead
		case SinkSpillAny:
			sink, enqueue = memResident, memResident
		}
		if sink {
			home := a.ensureHome(u)
			if enqueue {
				idx, gen := a.queue.push(sinkEntry{
					src:     u,
					stepIdx: len(a.rsteps),
					counter: a.counter,
				})
				st.queueIdx = int16(idx)
				st.queueGen = gen
			}
			return MemOperand(home)
		}
	}

	// Untargeted promotion: any clean free register may take over a queued
	// sunk load.
	if st.kind == stateMem {
		if e, ok := a.queue.lookup(int(st.queueIdx), st.queueGen); ok {
			if r := a.chooseEligible(e.counter, exclude); r != NoReg {
				a.patch(e, r, st.mem)
				a.claim(u, r)
				return RegOperand(r)
			}
			e.live = false
		}
	}

	r := a.allocReg(exclude)
	a.claim(u, r)
	return RegOperand(r)
}

// demandReg places u in some register (store sources and the program
// result need one).
func (a *allocator) demandReg(u ir.VId) Reg {
	st := &a.vals[u]
	defer func() { a.usesAfter[u]++ }()
	if st.hasReg() {
		a.touch(st.reg)
		return st.reg
	}
	if st.kind == stateMem {
		if e, ok := a.queue.lookup(int(st.queueIdx), st.queueGen); ok {
			if r := a.chooseEligible(e.counter, NoReg); r != NoReg {
				a.patch(e, r, st.mem)
				a.claim(u, r)
				return r
			}
			e.live = false
		}
	}
	r := a.allocReg(NoReg)
	a.claim(u, r)
	return r
}

// claim assigns register r to value u.
func (a *allocator) claim(u ir.VId, r Reg) {
	st := &a.vals[u]
	st.reg = r
	if st.hasMem() {
		st.kind = stateMemReg
	} else {
		st.kind = stateReg
	}
	a.regVal[r] = u
	a.touch(r)
}

// release frees a value's register at its definition: the value does not
// exist before this point in forward order.
func (a *allocator) release(v ir.VId, r Reg) {
	a.regVal[r] = ir.None
	a.vals[v] = valState{kind: stateUnassigned, reg: NoReg, queueIdx: -1}
}

// ensureHome returns u's memory home, assigning a fresh spill-frame cell the
// first time a computed value needs one. Homes are permanent.
func (a *allocator) ensureHome(u ir.VId) MemLoc {
	st := &a.vals[u]
	if st.hasMem() {
		return st.mem
	}
	st.mem = MemLoc{Bank: BankFrame, Index: uint32(a.frameSlots)}
	a.frameSlots++
	if st.hasReg() {
		st.kind = stateMemReg
	} else {
		st.kind = stateMem
	}
	return st.mem
}

// allocReg picks a free register, spilling the best victim when none is
// free. Free choice is the lowest recent-use counter, ties broken by the
// lowest register index.
func (a *allocator) allocReg(exclude Reg) Reg {
	best := NoReg
	for r := 0; r < a.cfg.Registers; r++ {
		if Reg(r) == exclude || a.regVal[r] != ir.None {
			continue
		}
		if best == NoReg || a.lastUse[r] < a.lastUse[best] {
			best = Reg(r)
		}
	}
	if best != NoReg {
		return best
	}
	return a.evict(exclude)
}

// evict frees a register by pushing its value to memory: the value is
// reloaded right after the current instruction (in forward order), and its
// definition will store to the home. Values that already own a memory home
// are preferred victims since dropping their register costs nothing extra.
func (a *allocator) evict(exclude Reg) Reg {
	victim := NoReg
	victimHasMem := false
	for r := 0; r < a.cfg.Registers; r++ {
		if Reg(r) == exclude || a.regVal[r] == ir.None {
			continue
		}
		hasMem := a.vals[a.regVal[r]].hasMem()
		better := victim == NoReg ||
			(hasMem && !victimHasMem) ||
			(hasMem == victimHasMem && a.lastUse[r] < a.lastUse[victim])
		if better {
			victim = Reg(r)
			victimHasMem = hasMem
		}
	}
	if victim == NoReg {
		panic(errors.Internal("no spillable register with %d registers", a.cfg.Registers))
	}
	w := a.regVal[victim]
	home := a.ensureHome(w)
	a.append(Step{Kind: StepLoad, Dst: victim, Src: MemOperand(home)})
	a.vals[w].reg = NoReg
	a.vals[w].kind = stateMem
	a.regVal[victim] = ir.None
	return victim
}

// chooseEligible picks a register that no instruction emitted since the sink
// has touched, or NoReg.
func (a *allocator) chooseEligible(counter uint32, exclude Reg) Reg {
	best := NoReg
	for r := 0; r < a.cfg.Registers; r++ {
		if Reg(r) == exclude || a.regVal[r] != ir.None || a.dirtyBefore[r] > counter {
			continue
		}
		if best == NoReg || a.lastUse[r] < a.lastUse[best] {
			best = Reg(r)
		}
	}
	return best
}

// patch rewrites an already-emitted memory operand to read register r and
// schedules a load of the value's home into r immediately before the patched
// instruction.
func (a *allocator) patch(e *sinkEntry, r Reg, home MemLoc) {
	a.rsteps[e.stepIdx].Src = RegOperand(r)
	a.pre[e.stepIdx] = append(a.pre[e.stepIdx],
		Step{Kind: StepLoad, Dst: r, Src: MemOperand(home)})
	e.live = false
}

// append emits one step in reverse order and updates the dirty counters for
// every register the step reads or writes.
func (a *allocator) append(step Step) {
	a.counter++
	a.dirty(step.Dst)
	if step.Src.Reg != NoReg && step.Kind != StepStore {
		a.dirty(step.Src.Reg)
	}
	a.rsteps = append(a.rsteps, step)
}

func (a *allocator) appendAll(steps []Step) {
	for _, s := range steps {
		a.append(s)
	}
}

func (a *allocator) dirty(r Reg) {
	a.dirtyBefore[r] = a.counter
	a.lastUse[r] = a.counter
}

func (a *allocator) touch(r Reg) {
	a.lastUse[r] = a.counter
}

// finalize reverses the step list into forward order, splicing in the loads
// that sink promotions attached.
func (a *allocator) finalize() []Step {
	steps := make([]Step, 0, len(a.rsteps))
	for i := len(a.rsteps) - 1; i >= 0; i-- {
		steps = append(steps, a.pre[i]...)
		steps = append(steps, a.rsteps[i])
	}
	return steps
}

// storeLoc maps a store's slot to its stage buffer cell.
func (a *allocator) storeLoc(slot uint32) MemLoc {
	switch a.stage {
	case ir.StageX:
		return MemLoc{Bank: BankXBuf, Index: slot + 1}
	case ir.StageY:
		return MemLoc{Bank: BankYBuf, Index: slot + 1}
	default:
		return MemLoc{Bank: BankOut, Index: slot}
	}
}

package passes

import (
	"sort"

	"prospero/internal/bitset"
	"prospero/internal/ir"
)

// Reassociate rebalances maximal chains of one commutative-associative
// operator so that operands depending only on x are combined together,
// likewise for y and for constants, and the cross-variable work happens
// last. After memoization this moves as much of a chain as possible out of
// the per-pixel stage.
type Reassociate struct{}

func (Reassociate) Name() string { return "reassociate" }

func (Reassociate) Apply(p ir.Program) (ir.Program, error) {
	if err := p.Validate(); err != nil {
		return ir.Program{}, err
	}

	tags := Analyze(&p)
	uses := p.UseCounts()

	// A chain member is a value produced by the same operator as its single
	// user; it is absorbed into that user's chain and never emitted itself.
	parent := singleUsers(&p)
	absorbed := bitset.New(p.Len())
	isMember := func(v ir.VId, op ir.Op) bool {
		if p.Insts[v].Op != op || uses[v] != 1 {
			return false
		}
		u := parent[v]
		return u != ir.None && p.Insts[u].Op == op
	}
	for v, inst := range p.Insts {
		if inst.Op.Commutative() && isMember(ir.VId(v), inst.Op) {
			absorbed.Add(v)
		}
	}

	var out ir.Program
	remap := make([]ir.VId, p.Len())
	for i := range remap {
		remap[i] = ir.None
	}

	for v, inst := range p.Insts {
		if absorbed.Has(v) {
			continue
		}
		switch {
		case inst.Op == ir.OpStore:
			out.Push(ir.Store(inst.Slot(), remap[inst.A]))
		case inst.Op.Commutative():
			leaves := collectLeaves(&p, uses, ir.VId(v))
			remap[v] = emitGrouped(&out, inst.Op, leaves, tags, remap)
		default:
			mapped := inst
			if mapped.A != ir.None {
				mapped.A = remap[mapped.A]
			}
			if mapped.B != ir.None {
				mapped.B = remap[mapped.B]
			}
			remap[v] = out.Push(mapped)
		}
	}
	return out, nil
}

// singleUsers maps each single-use value to the value that uses it.
func singleUsers(p *ir.Program) []ir.VId {
	counts := make([]int32, p.Len())
	parent := make([]ir.VId, p.Len())
	for i := range parent {
		parent[i] = ir.None
	}
	for v, inst := range p.Insts {
		for _, u := range []ir.VId{inst.A, inst.B} {
			if u == ir.None {
				continue
			}
			counts[u]++
			if counts[u] == 1 {
				parent[u] = ir.VId(v)
			} else {
				parent[u] = ir.None
			}
		}
	}
	return parent
}

// collectLeaves walks the chain rooted at v and returns its operand
// multiset: every operand that is not itself an absorbed member of the same
// chain. Leaves come back in ascending id order.
func collectLeaves(p *ir.Program, uses []int32, v ir.VId) []ir.VId {
	op := p.Insts[v].Op
	var leaves []ir.VId
	var walk func(u ir.VId)
	walk = func(u ir.VId) {
		if p.Insts[u].Op == op && uses[u] == 1 && u != v {
			walk(p.Insts[u].A)
			walk(p.Insts[u].B)
			return
		}
		leaves = append(leaves, u)
	}
	walk(p.Insts[v].A)
	walk(p.Insts[v].B)
	sort.Slice(leaves, func(i, j int) bool { return leaves[i] < leaves[j] })
	return leaves
}

// emitGrouped rebuilds a chain as op(op(X), op(Y), op(C), op(XY)) with
// left-leaning trees inside each group, ascending original ids for stable
// value numbering downstream.
func emitGrouped(out *ir.Program, op ir.Op, leaves []ir.VId, tags []Tag, remap []ir.VId) ir.VId {
	groups := [4][]ir.VId{}
	order := [4]Tag{TagX, TagY, TagC, TagXY}
	for _, leaf := range leaves {
		for gi, tag := range order {
			if tags[leaf] == tag {
				groups[gi] = append(groups[gi], leaf)
				break
			}
		}
	}

	fold := func(acc, next ir.VId) ir.VId {
		a, b := acc, next
		if a > b {
			a, b = b, a
		}
		return out.Push(ir.Binary(op, a, b))
	}

	total := ir.None
	for _, group := range groups {
		if len(group) == 0 {
			continue
		}
		acc := remap[group[0]]
		for _, leaf := range group[1:] {
			acc = fold(acc, remap[leaf])
		}
		if total == ir.None {
			total = acc
		} else {
			total = fold(total, acc)
		}
	}
	return total
}

package passes

import (
	"container/heap"
	"fmt"

	"prospero/internal/ir"
)

// Reorder restores the definition-before-use invariant with a stable
// topological sort: among the instructions whose operands are all placed,
// the one with the smallest original id is emitted next. A program that is
// already well ordered comes back unchanged, which makes the pass an
// idempotent safety net after transformations done in place.
type Reorder struct{}

func (Reorder) Name() string { return "reorder" }

func (Reorder) Apply(p ir.Program) (ir.Program, error) {
	n := p.Len()
	dependents := make([][]ir.VId, n)
	pending := make([]int, n)

	for v, inst := range p.Insts {
		for _, u := range []ir.VId{inst.A, inst.B} {
			if u == ir.None {
				continue
			}
			if int(u) >= n || u < 0 {
				return ir.Program{}, fmt.Errorf("value %d: operand %d out of range", v, u)
			}
			dependents[u] = append(dependents[u], ir.VId(v))
			pending[v]++
		}
	}

	ready := &idHeap{}
	for v := 0; v < n; v++ {
		if pending[v] == 0 {
			heap.Push(ready, ir.VId(v))
		}
	}

	var out ir.Program
	remap := make([]ir.VId, n)
	for ready.Len() > 0 {
		v := heap.Pop(ready).(ir.VId)
		mapped := p.Insts[v]
		if mapped.A != ir.None {
			mapped.A = remap[mapped.A]
		}
		if mapped.B != ir.None {
			mapped.B = remap[mapped.B]
		}
		remap[v] = out.Push(mapped)
		for _, d := range dependents[v] {
			pending[d]--
			if pending[d] == 0 {
				heap.Push(ready, d)
			}
		}
	}

	if out.Len() != n {
		return ir.Program{}, fmt.Errorf("dependency cycle: only %d of %d values orderable", out.Len(), n)
	}
	return out, nil
}

type idHeap []ir.VId

func (h idHeap) Len() int            { return len(h) }
func (h idHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h idHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *idHeap) Push(x interface{}) { *h = append(*h, x.(ir.VId)) }
func (h *idHeap) Pop() interface{} {
	old := *h
	x := old[len(old)-1]
	*h = old[:len(old)-1]
	return x
}

package passes

import "prospero/internal/ir"

// Pass is a single program-to-program transformation. Passes are pure: they
// never mutate their input, and their output is densely renumbered.
type Pass interface {
	Name() string
	Apply(p ir.Program) (ir.Program, error)
}

// Pipeline runs a sequence of passes in order.
type Pipeline struct {
	passes []Pass
}

// NewPipeline creates a pipeline over the given passes.
func NewPipeline(passes ...Pass) *Pipeline {
	return &Pipeline{passes: passes}
}

// Run applies every pass in sequence, stopping at the first error.
func (pl *Pipeline) Run(p ir.Program) (ir.Program, error) {
	var err error
	for _, pass := range pl.passes {
		p, err = pass.Apply(p)
		if err != nil {
			return ir.Program{}, err
		}
	}
	return p, nil
}

// Optimize is the standard pre-codegen pipeline.
func Optimize(p ir.Program) (ir.Program, error) {
	return NewPipeline(Simplify{}, Reassociate{}).Run(p)
}

package regalloc

// SinkPolicy controls when the allocator answers an operand query with a
// memory location instead of a register, letting the emitter fold the load
// into the arithmetic instruction.
type SinkPolicy uint8

const (
	// SinkNone never uses memory operands.
	SinkNone SinkPolicy = iota
	// SinkAll sinks whenever the instruction supports it and never patches
	// the instruction back to a register.
	SinkAll
	// SinkPreferDead always sinks, but patches back to a register when the
	// value turns out to have another use.
	SinkPreferDead
	// SinkRequireDead sinks only when the value has no further uses.
	SinkRequireDead
	// SinkSpillAny sinks whenever the source is already memory resident.
	SinkSpillAny
)

var sinkNames = map[string]SinkPolicy{
	"none":         SinkNone,
	"all":          SinkAll,
	"prefer-dead":  SinkPreferDead,
	"require-dead": SinkRequireDead,
	"spill-any":    SinkSpillAny,
}

// ParseSinkPolicy maps a flag value to its policy.
func ParseSinkPolicy(s string) (SinkPolicy, bool) {
	p, ok := sinkNames[s]
	return p, ok
}

func (p SinkPolicy) String() string {
	for name, v := range sinkNames {
		if v == p {
			return name
		}
	}
	return "none"
}

// SinkPolicyNames lists the accepted flag values.
func SinkPolicyNames() []string {
	return []string{"none", "all", "prefer-dead", "require-dead", "spill-any"}
}

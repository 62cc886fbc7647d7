package passes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prospero/grammar"
	"prospero/internal/ir"
)

func TestAnalyzeTags(t *testing.T) {
	p := parseProgram(t, `0 var-x
1 var-y
2 const 2
3 neg 0
4 add 0 2
5 mul 0 1
6 sqrt 5
`)
	tags := Analyze(&p)
	assert.Equal(t, []Tag{TagX, TagY, TagC, TagX, TagX, TagXY, TagXY}, tags)
}

func TestAnalyzeTagsLoads(t *testing.T) {
	p := parseProgram(t, `0 load-x 0
1 load-y 1
2 add 0 1
`)
	tags := Analyze(&p)
	assert.Equal(t, []Tag{TagX, TagY, TagXY}, tags)
}

func TestJoin(t *testing.T) {
	assert.Equal(t, TagX, Join(TagC, TagX))
	assert.Equal(t, TagY, Join(TagY, TagC))
	assert.Equal(t, TagXY, Join(TagX, TagY))
	assert.Equal(t, TagXY, Join(TagXY, TagC))
	assert.Equal(t, TagC, Join(TagC, TagC))
}

func applyReassociate(t *testing.T, source string) ir.Program {
	t.Helper()
	out, err := Reassociate{}.Apply(parseProgram(t, source))
	require.NoError(t, err)
	require.NoError(t, out.Validate())
	return out
}

func TestReassociateGroupsByTag(t *testing.T) {
	// add(add(add(x, y), x²), y²) regroups so the x work and y work each
	// combine before any cross-variable addition.
	out := applyReassociate(t, `0 var-x
1 var-y
2 square 0
3 square 1
4 add 0 1
5 add 4 2
6 add 5 3
`)
	assert.Equal(t, `0 var-x
1 var-y
2 square 0
3 square 1
4 add 0 2
5 add 1 3
6 add 4 5
`, grammar.Print(&out))
}

func TestReassociateMixedChain(t *testing.T) {
	// (x + y) + x·y: single-variable leaves first, the mixed product last.
	out := applyReassociate(t, `0 var-x
1 var-y
2 add 0 1
3 mul 0 1
4 add 2 3
`)
	assert.Equal(t, `0 var-x
1 var-y
2 mul 0 1
3 add 0 1
4 add 2 3
`, grammar.Print(&out))
}

func TestReassociateLeavesShortChainsAlone(t *testing.T) {
	source := `0 var-x
1 var-y
2 add 0 1
`
	out := applyReassociate(t, source)
	assert.Equal(t, source, grammar.Print(&out))
}

func TestReassociateRespectsMultipleUses(t *testing.T) {
	// The inner add has two uses, so it is a chain leaf, not a member.
	out := applyReassociate(t, `0 var-x
1 var-y
2 add 0 1
3 add 2 1
4 mul 2 3
`)
	assert.Equal(t, `0 var-x
1 var-y
2 add 0 1
3 add 1 2
4 mul 2 3
`, grammar.Print(&out))
}

func TestReassociateMinChains(t *testing.T) {
	// min chains group like additive ones.
	out := applyReassociate(t, `0 var-x
1 var-y
2 square 0
3 min 0 1
4 min 3 2
`)
	assert.Equal(t, `0 var-x
1 var-y
2 square 0
3 min 0 2
4 min 1 3
`, grammar.Print(&out))
}

func TestReassociateIdempotent(t *testing.T) {
	sources := []string{
		"0 var-x\n1 var-y\n2 square 0\n3 square 1\n4 add 0 1\n5 add 4 2\n6 add 5 3\n",
		"0 var-x\n1 var-y\n2 add 0 1\n3 mul 0 1\n4 add 2 3\n",
	}
	for _, source := range sources {
		once := applyReassociate(t, source)
		twice, err := Reassociate{}.Apply(once)
		require.NoError(t, err)
		assert.Equal(t, grammar.Print(&once), grammar.Print(&twice), "input %q", source)
	}
}

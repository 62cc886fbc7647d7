package grammar

import "github.com/alecthomas/participle/v2/lexer"

// File is the root of the IR text format: either a single plain program, or
// a memoized bundle of three sections marked "== x", "== y", "== xy".
type File struct {
	Head     []*Line    `EOL* @@*`
	Sections []*Section `@@*`
}

// Section is one stage of a memoized bundle.
type Section struct {
	Pos   lexer.Position
	Name  string  `Marker @Ident EOL+`
	Lines []*Line `@@*`
}

// Line is one instruction: an id, a mnemonic, and space-separated arguments.
// Arity and reference checks happen during conversion, not in the grammar,
// so diagnostics can carry positions and error codes.
type Line struct {
	Pos  lexer.Position
	ID   int    `@Int`
	Op   string `@Ident`
	Args []*Arg `@@* EOL+`
}

// Arg is one raw argument token; conversion decides whether it is a value
// id, a slot index, or a float constant.
type Arg struct {
	Pos   lexer.Position
	Value string `@(Float | Int | Ident)`
}

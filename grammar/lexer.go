package grammar

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// IRLexer tokenizes the line-oriented IR text format. Newlines terminate
// instructions, so EOL is a real token while other whitespace and comments
// are elided by the parser.
var IRLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		// Comments run to end of line
		{"Comment", `#[^\n]*`, nil},

		// Bundle section marker ("== x")
		{"Marker", `==`, nil},

		// Float literals, including the IEEE specials the printer emits
		{"Float", `[-+]?(inf|nan)|[-+]?[0-9]+\.[0-9]*([eE][-+]?[0-9]+)?|[-+]?\.[0-9]+([eE][-+]?[0-9]+)?|[-+]?[0-9]+[eE][-+]?[0-9]+`, nil},

		// Integer literals (value ids, slot indexes, whole-number constants)
		{"Int", `[-+]?[0-9]+`, nil},

		// Opcode mnemonics and section names
		{"Ident", `[a-zA-Z_][a-zA-Z0-9_-]*`, nil},

		// Line structure
		{"EOL", `\n`, nil},
		{"Whitespace", `[ \t\r]+`, nil},
	},
})

package errors

// Error codes for the prospero compiler.
// These codes appear in error messages and documentation to provide
// consistent identification across the toolchain.
//
// Error code ranges:
// E0100-E0199: IR parse errors
// E0200-E0299: Configuration errors
// E0900-E0999: Internal invariant violations

const (
	// E0100: opcode mnemonic not in the instruction set
	ErrorUnknownOpcode = "E0100"

	// E0101: wrong number of operands for the opcode
	ErrorWrongArity = "E0101"

	// E0102: operand references a value at or after its own definition
	ErrorForwardReference = "E0102"

	// E0103: malformed literal (value id, slot index, or float constant)
	ErrorBadLiteral = "E0103"

	// E0104: value ids are not dense and ascending from zero
	ErrorNonDenseId = "E0104"

	// E0105: malformed or misordered bundle section
	ErrorBadSection = "E0105"

	// E0106: operand references the id of a store
	ErrorStoreReference = "E0106"

	// E0107: text does not match the line grammar
	ErrorSyntax = "E0107"

	// E0200: invalid flag value or flag combination
	ErrorConfig = "E0200"

	// E0900: internal invariant violation; always a compiler bug
	ErrorInternal = "E0900"
)

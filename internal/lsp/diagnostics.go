package lsp

import (
	protocol "github.com/tliron/glsp/protocol_3_16"

	"prospero/internal/errors"
)

// ConvertErrors transforms compiler diagnostics into LSP diagnostics for
// IDE display. Positions move from the compiler's 1-based lines and columns
// to the protocol's 0-based indexing.
func ConvertErrors(errs []errors.CompilerError) []protocol.Diagnostic {
	diagnostics := make([]protocol.Diagnostic, 0, len(errs))

	for _, err := range errs {
		line := uint32(0)
		char := uint32(0)
		if err.Position.Line > 0 {
			line = uint32(err.Position.Line - 1)
		}
		if err.Position.Column > 0 {
			char = uint32(err.Position.Column - 1)
		}
		span := uint32(err.Length)
		if span == 0 {
			span = 4 // small default span for visibility
		}

		message := err.Message
		if err.HelpText != "" {
			message += " (" + err.HelpText + ")"
		}

		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range: protocol.Range{
				Start: protocol.Position{Line: line, Character: char},
				End:   protocol.Position{Line: line, Character: char + span},
			},
			Severity: ptrSeverity(severity(err.Level)),
			Source:   ptrString("prospero"),
			Code:     &protocol.IntegerOrString{Value: err.Code},
			Message:  message,
		})
	}
	return diagnostics
}

func severity(level errors.ErrorLevel) protocol.DiagnosticSeverity {
	switch level {
	case errors.Warning:
		return protocol.DiagnosticSeverityWarning
	case errors.Note:
		return protocol.DiagnosticSeverityInformation
	default:
		return protocol.DiagnosticSeverityError
	}
}

func ptrSeverity(s protocol.DiagnosticSeverity) *protocol.DiagnosticSeverity { return &s }

func ptrString(s string) *string { return &s }

package lsp

import (
	"log"
	"sync"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"prospero/grammar"
)

// Handler implements the LSP server for IR (.vm) files: full-document sync
// plus parse diagnostics on every open and change.
type Handler struct {
	mu      sync.RWMutex
	content map[protocol.DocumentUri]string
}

// NewHandler creates a handler with an empty document map.
func NewHandler() *Handler {
	return &Handler{content: make(map[protocol.DocumentUri]string)}
}

// Initialize advertises the server's capabilities.
func (h *Handler) Initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Println("LSP Initialize called")

	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: &protocol.TextDocumentSyncOptions{
				OpenClose: ptrBool(true),
				Change:    ptrSyncKind(protocol.TextDocumentSyncKindFull),
			},
		},
	}, nil
}

// Initialized completes the handshake.
func (h *Handler) Initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	log.Println("LSP Initialized")
	return nil
}

// Shutdown handles the LSP shutdown request.
func (h *Handler) Shutdown(ctx *glsp.Context) error {
	log.Println("LSP Shutdown")
	return nil
}

// SetTrace is accepted and ignored.
func (h *Handler) SetTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// TextDocumentDidOpen validates a freshly opened document.
func (h *Handler) TextDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	log.Printf("Opened file: %s\n", params.TextDocument.URI)

	h.mu.Lock()
	h.content[params.TextDocument.URI] = params.TextDocument.Text
	h.mu.Unlock()

	h.publish(ctx, params.TextDocument.URI, params.TextDocument.Text)
	return nil
}

// TextDocumentDidChange revalidates on every full-document change.
func (h *Handler) TextDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	log.Printf("Changed file: %s\n", params.TextDocument.URI)

	text := ""
	for _, change := range params.ContentChanges {
		if whole, ok := change.(protocol.TextDocumentContentChangeEventWhole); ok {
			text = whole.Text
		}
	}

	h.mu.Lock()
	h.content[params.TextDocument.URI] = text
	h.mu.Unlock()

	h.publish(ctx, params.TextDocument.URI, text)
	return nil
}

// TextDocumentDidClose drops the document from the map.
func (h *Handler) TextDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	log.Printf("Closed file: %s\n", params.TextDocument.URI)

	h.mu.Lock()
	delete(h.content, params.TextDocument.URI)
	h.mu.Unlock()
	return nil
}

// publish parses the document and sends its diagnostics, an empty list when
// it is clean so stale squiggles clear.
func (h *Handler) publish(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	_, errs := grammar.ParseSource(string(uri), text)
	diagnostics := ConvertErrors(errs)

	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

func ptrBool(b bool) *bool { return &b }

func ptrSyncKind(k protocol.TextDocumentSyncKind) *protocol.TextDocumentSyncKind { return &k }

package server

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/jiki/lang"
	"github.com/chazu/jiki/manifest"
	"github.com/chazu/jiki/vm"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "jiki-lsp"

var lspLog = commonlog.GetLogger("jiki.lsp")

// LspServer publishes syntax diagnostics and offers completion and hover
// for the three dialects.
type LspServer struct {
	// module is fixed by --dialect; nil picks by file extension.
	module    lang.Module
	opts      *vm.Options
	externals []manifest.External

	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates an LSP server. mod and m may be nil; the manifest supplies
// the policy diagnostics are checked against and the externals offered for
// completion.
func NewLSP(mod lang.Module, m *manifest.Manifest) *LspServer {
	s := &LspServer{
		module:  mod,
		docs:    make(map[string]string),
		version: "0.1.0",
	}
	if m != nil {
		opts, err := m.Options(nil)
		if err != nil {
			lspLog.Warningf("ignoring manifest externals: %v", err)
			policy := m.Policy
			opts = &vm.Options{Policy: &policy}
		}
		s.opts = opts
		s.externals = m.Externals
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	lspLog.Info("jiki LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{"."},
	}

	capabilities.HoverProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.mu.Lock()
			s.docs[string(uri)] = whole.Text
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	text, mod, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	prefix := extractPrefix(text, params.Position)
	if prefix == "" {
		return nil, nil
	}
	return s.complete(mod, prefix), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	text, mod, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}
	return s.hover(mod, word), nil
}

// document returns an open document and the dialect it is written in.
func (s *LspServer) document(uri protocol.DocumentUri) (string, lang.Module, bool) {
	s.mu.Lock()
	text, ok := s.docs[string(uri)]
	s.mu.Unlock()
	if !ok {
		return "", nil, false
	}
	mod, err := s.moduleFor(uri)
	if err != nil {
		return "", nil, false
	}
	return text, mod, true
}

func (s *LspServer) moduleFor(uri protocol.DocumentUri) (lang.Module, error) {
	if s.module != nil {
		return s.module, nil
	}
	return lang.ForFile(string(uri))
}

func (s *LspServer) complete(mod lang.Module, prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	add := func(label string, kind protocol.CompletionItemKind, detail string) {
		if !strings.HasPrefix(label, prefix) {
			return
		}
		items = append(items, protocol.CompletionItem{
			Label:      label,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &label,
		})
	}

	for _, ext := range s.externals {
		add(ext.Name, protocol.CompletionItemKindFunction, fmt.Sprintf("external (%d args)", ext.Arity))
	}
	for _, kw := range mod.Keywords() {
		add(kw, protocol.CompletionItemKindKeyword, "keyword")
	}
	members := mod.StdlibMembers()
	types := make([]string, 0, len(members))
	for typ := range members {
		types = append(types, typ)
	}
	sort.Strings(types)
	for _, typ := range types {
		for _, name := range members[typ] {
			add(name, protocol.CompletionItemKindMethod, typ)
		}
	}

	// Limit results
	const maxItems = 100
	if len(items) > maxItems {
		items = items[:maxItems]
	}

	return items
}

func (s *LspServer) hover(mod lang.Module, word string) *protocol.Hover {
	var b strings.Builder

	for _, ext := range s.externals {
		if ext.Name != word {
			continue
		}
		fmt.Fprintf(&b, "**%s**(%d args)\n\nexternal function", ext.Name, ext.Arity)
		if ext.Description != "" {
			fmt.Fprintf(&b, "\n\n---\n\n%s", ext.Description)
		}
		return markdown(b.String())
	}

	for _, kw := range mod.Keywords() {
		if kw == word {
			fmt.Fprintf(&b, "**%s**\n\n%s keyword", word, mod.Dialect())
			return markdown(b.String())
		}
	}

	var owners []string
	for typ, names := range mod.StdlibMembers() {
		for _, name := range names {
			if name == word {
				owners = append(owners, typ)
			}
		}
	}
	if len(owners) == 0 {
		return nil
	}
	sort.Strings(owners)
	fmt.Fprintf(&b, "**%s**\n\nstandard library: %s", word, strings.Join(owners, ", "))
	return markdown(b.String())
}

func markdown(s string) *protocol.Hover {
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: s,
		},
	}
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	mod, err := s.moduleFor(uri)
	if err != nil {
		lspLog.Debugf("no dialect for %s: %v", uri, err)
		return
	}

	diagnostics := s.diagnose(mod, text)
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// diagnose compiles text and reports its syntax error, if any.
func (s *LspServer) diagnose(mod lang.Module, text string) []protocol.Diagnostic {
	res := mod.Compile(text, s.opts)
	if res.Success || res.Error == nil {
		return []protocol.Diagnostic{}
	}

	severity := protocol.DiagnosticSeverityError
	source := lspName
	return []protocol.Diagnostic{{
		Range:    spanRange(res.Error.Location),
		Severity: &severity,
		Code:     &protocol.IntegerOrString{Value: string(res.Error.Type)},
		Source:   &source,
		Message:  res.Error.Message,
	}}
}

// spanRange converts 1-based positions to LSP's 0-based ones.
func spanRange(span vm.Span) protocol.Range {
	start := lspPosition(span.Start)
	end := start
	if span.End.Line > 0 {
		end = lspPosition(span.End)
	}
	return protocol.Range{Start: start, End: end}
}

func lspPosition(p vm.Position) protocol.Position {
	line, col := p.Line-1, p.Column-1
	if line < 0 {
		line = 0
	}
	if col < 0 {
		col = 0
	}
	return protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(col)}
}

// --- Text extraction helpers ---

// extractPrefix returns the word fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	// Walk backwards from cursor to find the start of the identifier
	start := col
	for start > 0 && isIdentByte(line[start-1]) {
		start--
	}

	if start == col {
		return ""
	}

	return line[start:col]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	start := col
	for start > 0 && isIdentByte(line[start-1]) {
		start--
	}
	end := col
	for end < len(line) && isIdentByte(line[end]) {
		end++
	}

	if start == end {
		return ""
	}

	return line[start:end]
}

func isIdentByte(c byte) bool {
	ch := rune(c)
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' || ch == '$'
}

func boolPtr(b bool) *bool {
	return &b
}

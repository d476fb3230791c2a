package server

import (
	"strings"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/chazu/jiki/lang"
	"github.com/chazu/jiki/manifest"
	"github.com/chazu/jiki/vm"
)

// ---------------------------------------------------------------------------
// LSP text extraction helpers
// ---------------------------------------------------------------------------

func TestExtractPrefix(t *testing.T) {
	tests := []struct {
		name string
		text string
		pos  protocol.Position
		want string
	}{
		{"simple word", "console.log", protocol.Position{Line: 0, Character: 11}, "log"},
		{"at start", "rep", protocol.Position{Line: 0, Character: 3}, "rep"},
		{"empty line", "", protocol.Position{Line: 0, Character: 0}, ""},
		{"multi line", "let a = 1;\nlet b = 2;\nMat", protocol.Position{Line: 2, Character: 3}, "Mat"},
		{"after space", "set x to", protocol.Position{Line: 0, Character: 8}, "to"},
		{"mid word", "repeat", protocol.Position{Line: 0, Character: 3}, "rep"},
		{"dollar", "let $el", protocol.Position{Line: 0, Character: 7}, "$el"},
		{"cursor at beginning", "repeat", protocol.Position{Line: 0, Character: 0}, ""},
		{"cursor past end", "log", protocol.Position{Line: 0, Character: 40}, "log"},
		{"line beyond document", "log", protocol.Position{Line: 5, Character: 0}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractPrefix(tt.text, tt.pos); got != tt.want {
				t.Errorf("extractPrefix(%q, %v) = %q, want %q", tt.text, tt.pos, got, tt.want)
			}
		})
	}
}

func TestExtractWord(t *testing.T) {
	tests := []struct {
		name string
		text string
		pos  protocol.Position
		want string
	}{
		{"inside word", "repeat 3 times", protocol.Position{Line: 0, Character: 2}, "repeat"},
		{"at end", "repeat", protocol.Position{Line: 0, Character: 6}, "repeat"},
		{"between spaces", "a  b", protocol.Position{Line: 0, Character: 2}, ""},
		{"second word", "set counter to 1", protocol.Position{Line: 0, Character: 6}, "counter"},
		{"empty line", "", protocol.Position{Line: 0, Character: 0}, ""},
		{"multi line", "x = 1\nprint(x)", protocol.Position{Line: 1, Character: 2}, "print"},
		{"underscore", "move_left()", protocol.Position{Line: 0, Character: 5}, "move_left"},
		{"member", "arr.push(1)", protocol.Position{Line: 0, Character: 5}, "push"},
		{"line beyond document", "x", protocol.Position{Line: 3, Character: 0}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractWord(tt.text, tt.pos); got != tt.want {
				t.Errorf("extractWord(%q, %v) = %q, want %q", tt.text, tt.pos, got, tt.want)
			}
		})
	}
}

func TestBoolPtr(t *testing.T) {
	if p := boolPtr(true); p == nil || !*p {
		t.Error("boolPtr(true) should point at true")
	}
	if p := boolPtr(false); p == nil || *p {
		t.Error("boolPtr(false) should point at false")
	}
}

// ---------------------------------------------------------------------------
// Position conversion
// ---------------------------------------------------------------------------

func TestSpanRange(t *testing.T) {
	tests := []struct {
		name string
		span vm.Span
		want protocol.Range
	}{
		{
			name: "full span",
			span: vm.Span{Start: vm.Position{Line: 2, Column: 5}, End: vm.Position{Line: 2, Column: 9}},
			want: protocol.Range{
				Start: protocol.Position{Line: 1, Character: 4},
				End:   protocol.Position{Line: 1, Character: 8},
			},
		},
		{
			name: "missing end",
			span: vm.Span{Start: vm.Position{Line: 1, Column: 1}},
			want: protocol.Range{},
		},
		{
			name: "zero span clamps",
			span: vm.Span{},
			want: protocol.Range{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := spanRange(tt.span); got != tt.want {
				t.Errorf("spanRange(%+v) = %+v, want %+v", tt.span, got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Language features
// ---------------------------------------------------------------------------

func mustModule(t *testing.T, name string) lang.Module {
	t.Helper()
	mod, err := lang.Lookup(name)
	if err != nil {
		t.Fatalf("Lookup(%q): %v", name, err)
	}
	return mod
}

func testManifest() *manifest.Manifest {
	return &manifest.Manifest{
		Exercise: manifest.Exercise{Name: "maze", Dialect: "jikiscript"},
		Policy:   vm.DefaultPolicy(),
		Externals: []manifest.External{
			{Name: "move", Arity: 0, Description: "Moves one square forward."},
			{Name: "turn_left", Arity: 0},
		},
	}
}

func findItem(items []protocol.CompletionItem, label string) *protocol.CompletionItem {
	for i := range items {
		if items[i].Label == label {
			return &items[i]
		}
	}
	return nil
}

func TestLSP_CompleteKeywords(t *testing.T) {
	lsp := NewLSP(nil, nil)
	items := lsp.complete(mustModule(t, "jiki"), "rep")

	item := findItem(items, "repeat")
	if item == nil {
		t.Fatalf("complete(rep) = %v, want repeat", items)
	}
	if item.Kind == nil || *item.Kind != protocol.CompletionItemKindKeyword {
		t.Error("repeat completion should have Kind=Keyword")
	}
	if findItem(items, "repeat_until_game_over") == nil {
		t.Error("complete(rep) should include repeat_until_game_over")
	}
	for _, it := range items {
		if !strings.HasPrefix(it.Label, "rep") {
			t.Errorf("completion %q does not match prefix", it.Label)
		}
	}
}

func TestLSP_CompleteStdlib(t *testing.T) {
	lsp := NewLSP(nil, nil)
	items := lsp.complete(mustModule(t, "js"), "pu")

	item := findItem(items, "push")
	if item == nil {
		t.Fatalf("complete(pu) = %v, want push", items)
	}
	if item.Kind == nil || *item.Kind != protocol.CompletionItemKindMethod {
		t.Error("push completion should have Kind=Method")
	}
	if item.Detail == nil || *item.Detail != "array" {
		t.Errorf("push detail = %v, want array", item.Detail)
	}
}

func TestLSP_CompleteExternals(t *testing.T) {
	lsp := NewLSP(nil, testManifest())
	items := lsp.complete(mustModule(t, "jiki"), "mo")

	item := findItem(items, "move")
	if item == nil {
		t.Fatalf("complete(mo) = %v, want move", items)
	}
	if item.Detail == nil || *item.Detail != "external (0 args)" {
		t.Errorf("move detail = %v", item.Detail)
	}
	if items := lsp.complete(mustModule(t, "jiki"), "zzz"); len(items) != 0 {
		t.Errorf("complete(zzz) = %v, want none", items)
	}
}

func hoverText(t *testing.T, h *protocol.Hover) string {
	t.Helper()
	if h == nil {
		t.Fatal("hover returned nil")
	}
	mc, ok := h.Contents.(protocol.MarkupContent)
	if !ok {
		t.Fatal("hover contents should be MarkupContent")
	}
	if mc.Kind != protocol.MarkupKindMarkdown {
		t.Errorf("hover markup kind = %q, want %q", mc.Kind, protocol.MarkupKindMarkdown)
	}
	return mc.Value
}

func TestLSP_Hover(t *testing.T) {
	lsp := NewLSP(nil, testManifest())
	jiki := mustModule(t, "jiki")
	js := mustModule(t, "js")

	tests := []struct {
		name string
		mod  lang.Module
		word string
		want []string
	}{
		{"external", jiki, "move", []string{"**move**(0 args)", "external function", "Moves one square forward."}},
		{"external without description", jiki, "turn_left", []string{"**turn_left**"}},
		{"keyword", jiki, "repeat", []string{"**repeat**", "jikiscript keyword"}},
		{"stdlib member", js, "floor", []string{"**floor**", "standard library: Math"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := hoverText(t, lsp.hover(tt.mod, tt.word))
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("hover(%q) = %q, missing %q", tt.word, got, w)
				}
			}
		})
	}
}

func TestLSP_HoverUnknownWord(t *testing.T) {
	lsp := NewLSP(nil, nil)
	if h := lsp.hover(mustModule(t, "py"), "XYZNOSUCHNAME99"); h != nil {
		t.Errorf("hover for unknown word = %+v, want nil", h)
	}
}

// ---------------------------------------------------------------------------
// Diagnostics
// ---------------------------------------------------------------------------

func TestLSP_DiagnoseClean(t *testing.T) {
	lsp := NewLSP(nil, nil)
	diags := lsp.diagnose(mustModule(t, "js"), "let x = 1;\nx = x + 1;")
	if diags == nil || len(diags) != 0 {
		t.Errorf("diagnose clean source = %v, want empty slice", diags)
	}
}

func TestLSP_DiagnoseSyntaxError(t *testing.T) {
	lsp := NewLSP(nil, nil)
	diags := lsp.diagnose(mustModule(t, "js"), "let x = 1;\nlet = ;")
	if len(diags) != 1 {
		t.Fatalf("diagnose = %v, want one diagnostic", diags)
	}
	d := diags[0]
	if d.Range.Start.Line != 1 {
		t.Errorf("diagnostic line = %d, want 1 (0-based)", d.Range.Start.Line)
	}
	if d.Severity == nil || *d.Severity != protocol.DiagnosticSeverityError {
		t.Error("diagnostic should be an error")
	}
	if d.Source == nil || *d.Source != lspName {
		t.Errorf("diagnostic source = %v, want %s", d.Source, lspName)
	}
	if d.Code == nil || d.Code.Value == "" {
		t.Error("diagnostic should carry the error type as its code")
	}
	if d.Message == "" {
		t.Error("diagnostic message should not be empty")
	}
}

// ---------------------------------------------------------------------------
// Document store and dialect selection
// ---------------------------------------------------------------------------

func TestLSP_Document(t *testing.T) {
	lsp := NewLSP(nil, nil)

	lsp.mu.Lock()
	lsp.docs["file:///maze.py"] = "print(1)"
	lsp.docs["file:///notes.txt"] = "hello"
	lsp.mu.Unlock()

	text, mod, ok := lsp.document("file:///maze.py")
	if !ok || text != "print(1)" || mod.Dialect() != lang.Python {
		t.Errorf("document(maze.py) = %q, %v, %v", text, mod, ok)
	}
	if _, _, ok := lsp.document("file:///notes.txt"); ok {
		t.Error("document with unknown extension should not resolve")
	}
	if _, _, ok := lsp.document("file:///missing.js"); ok {
		t.Error("unopened document should not resolve")
	}

	fixed := NewLSP(mustModule(t, "jiki"), nil)
	fixed.docs["file:///notes.txt"] = "log 1"
	if _, mod, ok := fixed.document("file:///notes.txt"); !ok || mod.Dialect() != lang.JikiScript {
		t.Error("fixed dialect should apply regardless of extension")
	}
}

func TestNewLSPManifestPolicy(t *testing.T) {
	m := testManifest()
	lsp := NewLSP(nil, m)
	if lsp.opts == nil || lsp.opts.Policy == nil {
		t.Fatal("manifest policy should be carried into compile options")
	}
	if _, ok := lsp.opts.Externals.Lookup("move"); !ok {
		t.Error("manifest externals should be bridged into compile options")
	}
	if len(lsp.externals) != 2 {
		t.Errorf("externals = %d, want 2", len(lsp.externals))
	}
}

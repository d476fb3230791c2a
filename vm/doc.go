// Package vm holds the runtime shared by every jiki dialect.
//
// This package contains:
//   - the tagged runtime value model (numbers, strings, lists, dicts, functions)
//   - the Dialect Policy and the closed set of AST node kinds it can gate
//   - the SyntaxError/RuntimeError taxonomy and source spans
//   - lexical scopes
//   - the Frame Recorder that produces execution traces
//   - the External Function Bridge for host-provided callables
//   - marshalling between native Go values and runtime values
//
// The dialect front-ends under lang/ build on these types; nothing in this
// package knows about any particular grammar.
package vm

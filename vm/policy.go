package vm

import (
	"encoding/json"

	"github.com/fxamacker/cbor/v2"
)

const (
	DefaultMaxTotalLoopIterations = 10000
	DefaultMaxCallDepth           = 500
)

// Policy selects which constructs and semantics are active for a run. A
// Policy must not be modified once a run has started.
type Policy struct {
	AllowTruthiness              bool `toml:"allow-truthiness" json:"allowTruthiness" cbor:"allowTruthiness"`
	EnforceStrictEquality        bool `toml:"enforce-strict-equality" json:"enforceStrictEquality" cbor:"enforceStrictEquality"`
	AllowTypeCoercion            bool `toml:"allow-type-coercion" json:"allowTypeCoercion" cbor:"allowTypeCoercion"`
	EnforceFormatting            bool `toml:"enforce-formatting" json:"enforceFormatting" cbor:"enforceFormatting"`
	OneStatementPerLine          bool `toml:"one-statement-per-line" json:"oneStatementPerLine" cbor:"oneStatementPerLine"`
	RequireSemicolons            bool `toml:"require-semicolons" json:"requireSemicolons" cbor:"requireSemicolons"`
	AllowShadowing               bool `toml:"allow-shadowing" json:"allowShadowing" cbor:"allowShadowing"`
	RequireVariableInstantiation bool `toml:"require-variable-instantiation" json:"requireVariableInstantiation" cbor:"requireVariableInstantiation"`

	MaxTotalLoopIterations int `toml:"max-total-loop-iterations" json:"maxTotalLoopIterations" cbor:"maxTotalLoopIterations"`
	MaxCallDepth           int `toml:"max-call-depth" json:"maxCallDepth" cbor:"maxCallDepth"`

	// AllowedNodes whitelists node kinds. Nil allows everything; an empty
	// non-nil slice allows nothing.
	AllowedNodes []NodeKind `toml:"allowed-nodes" json:"allowedNodes,omitempty" cbor:"allowedNodes,omitempty"`

	// AllowedStdlib whitelists stdlib members per receiver type, e.g.
	// {"string": ["toUpperCase"], "functions": ["concatenate"]}. A nil map or
	// a missing type allows every member of that type.
	AllowedStdlib map[string][]string `toml:"allowed-stdlib" json:"allowedStdlib,omitempty" cbor:"allowedStdlib,omitempty"`
}

// DefaultPolicy returns the strict teaching dialect.
func DefaultPolicy() Policy {
	return Policy{
		EnforceStrictEquality:        true,
		RequireVariableInstantiation: true,
		MaxTotalLoopIterations:       DefaultMaxTotalLoopIterations,
		MaxCallDepth:                 DefaultMaxCallDepth,
	}
}

// NodeAllowed reports whether kind may appear in student source.
func (p *Policy) NodeAllowed(kind NodeKind) bool {
	if p.AllowedNodes == nil {
		return true
	}
	for _, k := range p.AllowedNodes {
		if k == kind {
			return true
		}
	}
	return false
}

// StdlibAllowed reports whether member may be used on a receiver of the
// named type.
func (p *Policy) StdlibAllowed(typ, member string) bool {
	if p.AllowedStdlib == nil {
		return true
	}
	names, ok := p.AllowedStdlib[typ]
	if !ok {
		return true
	}
	for _, n := range names {
		if n == member {
			return true
		}
	}
	return false
}

// LoopLimit returns the effective shared loop-iteration cap.
func (p *Policy) LoopLimit() int {
	if p.MaxTotalLoopIterations <= 0 {
		return DefaultMaxTotalLoopIterations
	}
	return p.MaxTotalLoopIterations
}

// CallDepthLimit returns the effective call-depth cap.
func (p *Policy) CallDepthLimit() int {
	if p.MaxCallDepth <= 0 {
		return DefaultMaxCallDepth
	}
	return p.MaxCallDepth
}

// Validate checks that every whitelisted node kind exists.
func (p *Policy) Validate() error {
	for _, k := range p.AllowedNodes {
		if _, err := ParseNodeKind(string(k)); err != nil {
			return err
		}
	}
	return nil
}

type policyAlias Policy

// UnmarshalJSON decodes on top of DefaultPolicy so omitted fields keep their
// defaults rather than falling to the zero value.
func (p *Policy) UnmarshalJSON(data []byte) error {
	aux := policyAlias(DefaultPolicy())
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*p = Policy(aux)
	return nil
}

// UnmarshalCBOR mirrors UnmarshalJSON for CBOR payloads.
func (p *Policy) UnmarshalCBOR(data []byte) error {
	aux := policyAlias(DefaultPolicy())
	if err := cbor.Unmarshal(data, &aux); err != nil {
		return err
	}
	*p = Policy(aux)
	return nil
}

package manifest

import (
	_ "embed"
	"errors"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaSource string

// validate checks decoded TOML against #Manifest. Each call builds its own
// cue.Context; contexts are not safe for concurrent use.
func validate(raw map[string]any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return err
	}
	def := schema.LookupPath(cue.ParsePath("#Manifest"))

	v := ctx.Encode(raw)
	if err := v.Err(); err != nil {
		return err
	}
	if err := def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return errors.New("invalid manifest: " + strings.TrimSpace(cueerrors.Details(err, nil)))
	}
	return nil
}

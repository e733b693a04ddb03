package config

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaSource string

var (
	schemaOnce sync.Once
	schemaCtx  *cue.Context
	schemaVal  cue.Value
	schemaErr  error
)

// ValidationError reports a document that does not satisfy its schema.
type ValidationError struct {
	Source string
	Issues []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: invalid document: %s", e.Source, strings.Join(e.Issues, "; "))
}

func schema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		schemaVal = schemaCtx.CompileString(schemaSource, cue.Filename("schema.cue"))
		schemaErr = schemaVal.Err()
	})
	return schemaCtx, schemaVal, schemaErr
}

// validate checks a generic YAML document against the named definition.
func validate(source, definition string, doc any) error {
	ctx, s, err := schema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	def := s.LookupPath(cue.ParsePath(definition))
	if !def.Exists() {
		return fmt.Errorf("schema has no %s", definition)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	data := ctx.Encode(doc)
	if err := data.Err(); err != nil {
		return &ValidationError{Source: source, Issues: []string{err.Error()}}
	}
	v := def.Unify(data)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return &ValidationError{Source: source, Issues: issues(err)}
	}
	return nil
}

func issues(err error) []string {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		msg := e.Error()
		if path := e.Path(); len(path) > 0 {
			prefix := strings.Join(path, ".") + ": "
			if !strings.HasPrefix(msg, prefix) {
				msg = prefix + msg
			}
		}
		out = append(out, msg)
	}
	return out
}

package policy

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed schema.cue
var schemaCUE string

// Load reads and validates a policy document. A missing file yields the
// built-in defaults (with no administrator); an invalid file is an error,
// because silently ignoring a present policy would change who may do what.
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read policy %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse validates policy document bytes against the embedded schema and
// decodes the result.
func Parse(data []byte, filename string) (*Policy, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("internal: policy schema invalid: %w", err)
	}

	doc := ctx.CompileBytes(data, cue.Filename(filename))
	if err := doc.Err(); err != nil {
		return nil, fmt.Errorf("parse policy %s: %w", filename, err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Policy")).Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validate policy %s: %w", filename, err)
	}

	pol := &Policy{}
	if err := unified.Decode(pol); err != nil {
		return nil, fmt.Errorf("decode policy %s: %w", filename, err)
	}
	return pol, nil
}

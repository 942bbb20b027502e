// Package schema validates snapshots against CUE constraints.
//
// A schema source is ordinary CUE. When it declares a #State definition,
// snapshots are unified with #State (closed: unknown fields are rejected);
// otherwise with the whole file:
//
//	#State: {
//		counter: value: int & >=0
//		users: [string]: {name: string, age: int & >=0 & <=150}
//	}
//
// Unification runs with cue.Concrete(true), so a schema never fills in
// missing data; a snapshot lacking a required field is a violation.
package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/substate/internal/value"
)

// DefaultDefinition is the definition used when the source declares it.
const DefaultDefinition = "#State"

// Schema is a compiled CUE constraint over snapshots.
//
// A Schema is not safe for concurrent use: CUE contexts are not.
type Schema struct {
	ctx  *cue.Context
	root cue.Value
	def  cue.Value
	name string
}

// Option configures Compile and Load.
type Option func(*config)

type config struct {
	definition string
}

// WithDefinition validates against the named definition instead of
// #State. The definition must exist.
func WithDefinition(name string) Option {
	return func(c *config) {
		c.definition = name
	}
}

// Compile builds a schema from CUE source. filename is only used in
// error positions.
func Compile(filename, src string, opts ...Option) (*Schema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return newSchema(ctx, v, opts)
}

// Load builds a schema from a .cue file, or from the CUE package in a
// directory.
func Load(target string, opts ...Option) (*Schema, error) {
	info, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", target, err)
	}
	if !info.IsDir() {
		src, err := os.ReadFile(target)
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", target, err)
		}
		return Compile(target, string(src), opts...)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: target})
	if len(instances) == 0 {
		return nil, fmt.Errorf("schema %s: no CUE instances loaded", target)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("schema %s: loading CUE files: %w", target, inst.Err)
	}
	v := ctx.BuildInstance(inst)
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return newSchema(ctx, v, opts)
}

func newSchema(ctx *cue.Context, root cue.Value, opts []Option) (*Schema, error) {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Schema{ctx: ctx, root: root, def: root}
	name := cfg.definition
	if name == "" {
		name = DefaultDefinition
	}

	def := root.LookupPath(cue.ParsePath(name))
	switch {
	case def.Exists():
		s.def = def
		s.name = name
	case cfg.definition != "":
		return nil, fmt.Errorf("schema: definition %s not found", cfg.definition)
	}
	return s, nil
}

// Definition returns the definition snapshots are checked against, or ""
// when the whole source is used.
func (s *Schema) Definition() string {
	return s.name
}

// Validate implements store.Validator. It returns a *ViolationError
// listing every failed constraint.
func (s *Schema) Validate(v value.Value) error {
	data := s.ctx.Encode(value.ToGo(v))
	if err := data.Err(); err != nil {
		return fmt.Errorf("schema: encoding snapshot: %w", err)
	}

	unified := s.def.Unify(data)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return newViolationError(err, s.name)
	}
	return nil
}

// Violation is one failed constraint.
type Violation struct {
	Path    string // dotted CUE path, "" at the top level
	Message string
	Pos     token.Pos // position of the constraint in the schema source
}

func (v Violation) String() string {
	var b strings.Builder
	if v.Path != "" {
		b.WriteString(v.Path)
		b.WriteString(": ")
	}
	b.WriteString(v.Message)
	if v.Pos.IsValid() {
		fmt.Fprintf(&b, " (%s:%d:%d)", v.Pos.Filename(), v.Pos.Line(), v.Pos.Column())
	}
	return b.String()
}

// ViolationError reports a snapshot that does not satisfy the schema.
type ViolationError struct {
	Violations []Violation
}

func (e *ViolationError) Error() string {
	switch len(e.Violations) {
	case 0:
		return "schema violation"
	case 1:
		return "schema violation: " + e.Violations[0].String()
	}
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return fmt.Sprintf("%d schema violations: %s", len(e.Violations), strings.Join(parts, "; "))
}

// newViolationError flattens CUE errors. Paths are reported relative to
// the snapshot root, without the definition label.
func newViolationError(err error, def string) *ViolationError {
	errs := cueerrors.Errors(err)
	out := &ViolationError{Violations: make([]Violation, 0, len(errs))}
	for _, e := range errs {
		p := e.Path()
		if def != "" && len(p) > 0 && p[0] == def {
			p = p[1:]
		}
		format, args := e.Msg()
		out.Violations = append(out.Violations, Violation{
			Path:    strings.Join(p, "."),
			Message: fmt.Sprintf(format, args...),
			Pos:     firstPos(e),
		})
	}
	return out
}

func firstPos(err error) token.Pos {
	if positions := cueerrors.Positions(err); len(positions) > 0 {
		return positions[0]
	}
	return token.NoPos
}

// CompileError reports CUE source that does not compile.
type CompileError struct {
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return e.Message
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	return &CompileError{Message: first.Error(), Pos: firstPos(first)}
}

// LoadFile reads a concrete CUE file as a snapshot. Every field must be
// concrete; floats are rejected because the snapshot model has none.
func LoadFile(filename string) (value.Value, error) {
	src, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("state %s: %w", filename, err)
	}
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filepath.Base(filename)))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return Decode(v)
}

// Decode converts a concrete CUE value into a snapshot value.
func Decode(v cue.Value) (value.Value, error) {
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}
	var x any
	if err := v.Decode(&x); err != nil {
		return nil, fmt.Errorf("decoding CUE value: %w", err)
	}
	return value.FromGo(x)
}

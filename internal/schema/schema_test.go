package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/substate/internal/draft"
	"github.com/roach88/substate/internal/path"
	"github.com/roach88/substate/internal/store"
	"github.com/roach88/substate/internal/value"
)

const appSchema = `
#User: {
	name: string & !=""
	age:  int & >=0 & <=150
}

#State: {
	counter: value: int & >=0
	users: [string]: #User
}
`

func appState() value.Value {
	return value.Obj(
		value.O("counter", value.Obj(value.O("value", value.Int(1)))),
		value.O("users", value.Obj(
			value.O("a", value.Obj(
				value.O("name", value.String("Sawyer")),
				value.O("age", value.Int(26)),
			)),
		)),
	)
}

func TestCompile_UsesStateDefinition(t *testing.T) {
	s, err := Compile("app.cue", appSchema)
	require.NoError(t, err)
	assert.Equal(t, "#State", s.Definition())

	assert.NoError(t, s.Validate(appState()))
}

func TestCompile_WholeFileWithoutDefinition(t *testing.T) {
	s, err := Compile("loose.cue", `counter: value: int`)
	require.NoError(t, err)
	assert.Equal(t, "", s.Definition())

	assert.NoError(t, s.Validate(appState()), "open struct accepts extra fields")
}

func TestCompile_NamedDefinition(t *testing.T) {
	s, err := Compile("app.cue", appSchema, WithDefinition("#User"))
	require.NoError(t, err)
	assert.Equal(t, "#User", s.Definition())
	assert.NoError(t, s.Validate(value.Obj(
		value.O("name", value.String("Kit")),
		value.O("age", value.Int(3)),
	)))

	_, err = Compile("app.cue", appSchema, WithDefinition("#Missing"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "#Missing")
}

func TestCompile_SyntaxError(t *testing.T) {
	_, err := Compile("bad.cue", `#State: {`)
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "bad.cue", ce.Pos.Filename())
}

func TestValidate_Violations(t *testing.T) {
	s, err := Compile("app.cue", appSchema)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(d *draft.Draft) error
		path   string
	}{
		{
			name: "bound",
			mutate: func(d *draft.Draft) error {
				return d.Set(path.Names("users", "a", "age"), value.Int(200))
			},
			path: "users.a.age",
		},
		{
			name: "kind",
			mutate: func(d *draft.Draft) error {
				return d.Set(path.Names("counter", "value"), value.String("one"))
			},
			path: "counter.value",
		},
		{
			name: "closed",
			mutate: func(d *draft.Draft) error {
				return d.Set(path.Names("extra"), value.Bool(true))
			},
			path: "extra",
		},
		{
			name: "missing required",
			mutate: func(d *draft.Draft) error {
				return d.Delete(path.Names("users", "a", "name"))
			},
			path: "users.a.name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, _, err := draft.Produce(appState(), func(d *draft.Draft) (value.Value, error) {
				return nil, tt.mutate(d)
			})
			require.NoError(t, err)

			err = s.Validate(next)
			require.Error(t, err)

			var ve *ViolationError
			require.ErrorAs(t, err, &ve)
			require.NotEmpty(t, ve.Violations)
			assert.Equal(t, tt.path, ve.Violations[0].Path)
		})
	}
}

func TestValidate_AsStoreValidator(t *testing.T) {
	sch, err := Compile("app.cue", appSchema)
	require.NoError(t, err)

	s := store.New(appState(), store.WithValidator(sch))
	fired := 0
	s.Subscribe(path.Root(), func() { fired++ })

	require.NoError(t, s.Update(func(d *draft.Draft) (value.Value, error) {
		return nil, d.Set(path.Names("users", "b"), value.Obj(
			value.O("name", value.String("Kit")),
			value.O("age", value.Int(31)),
		))
	}))

	err = s.Update(func(d *draft.Draft) (value.Value, error) {
		return nil, d.Set(path.Names("counter", "value"), value.Int(-1))
	})
	require.Error(t, err)
	assert.True(t, store.IsSchemaError(err))

	var ve *ViolationError
	assert.ErrorAs(t, err, &ve)
	assert.Equal(t, 1, fired)
	assert.Equal(t, value.Int(1), value.Lookup(s.GetState(), path.Names("counter", "value")))
}

func TestLoad_FileAndDirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "app.cue")
	require.NoError(t, os.WriteFile(file, []byte("package app\n"+appSchema), 0o644))

	fromFile, err := Load(file)
	require.NoError(t, err)
	assert.NoError(t, fromFile.Validate(appState()))

	fromDir, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "#State", fromDir.Definition())
	assert.NoError(t, fromDir.Validate(appState()))

	_, err = Load(filepath.Join(dir, "missing.cue"))
	assert.Error(t, err)
}

func TestLoadFile_ConcreteState(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "state.cue")
	require.NoError(t, os.WriteFile(file, []byte(`
counter: value: 1
users: a: {name: "Sawyer", age: 20 + 6}
tags: ["x", "y"]
nothing: null
`), 0o644))

	v, err := LoadFile(file)
	require.NoError(t, err)
	assert.Equal(t, value.Int(26), value.Lookup(v, path.Names("users", "a", "age")))
	assert.Equal(t, value.String("y"), value.Lookup(v, path.Of("tags", 1)))
	assert.Equal(t, value.Null{}, value.Lookup(v, path.Names("nothing")))
}

func TestLoadFile_RejectsIncompleteAndFloat(t *testing.T) {
	dir := t.TempDir()

	incomplete := filepath.Join(dir, "incomplete.cue")
	require.NoError(t, os.WriteFile(incomplete, []byte(`counter: value: int`), 0o644))
	_, err := LoadFile(incomplete)
	assert.Error(t, err)

	float := filepath.Join(dir, "float.cue")
	require.NoError(t, os.WriteFile(float, []byte(`ratio: 0.5`), 0o644))
	_, err = LoadFile(float)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floats are not supported")
}

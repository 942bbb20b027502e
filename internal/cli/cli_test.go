package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	scenariosDir = "../harness/testdata/scenarios"
	goldenDir    = "../harness/testdata/golden"
)

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	file := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(file, []byte(content), 0o644))
	return file
}

func decodeResponse(t *testing.T, out string) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "substate", cmd.Use)

	for _, name := range []string{"test", "validate", "trace", "get"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "--format", "xml", "get", "x.json", "a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestExitCodes(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad")))

	wrapped := WrapExitError(ExitFailure, "outer", assert.AnError)
	assert.ErrorIs(t, wrapped, assert.AnError)
	assert.Equal(t, "outer: "+assert.AnError.Error(), wrapped.Error())
}

func TestTestCommand_Scenarios(t *testing.T) {
	out, err := execute(t, "test", scenariosDir, "--golden", goldenDir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ counter_and_users")
	assert.Contains(t, out, "✓ deferred_and_failures")
	assert.Contains(t, out, "Test Summary: 3 passed, 0 failed, 3 total")
}

func TestTestCommand_FilterJSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "test", scenariosDir, "--golden", goldenDir, "--filter", "map_*")
	require.NoError(t, err, out)

	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	data := resp.Data.(map[string]any)
	assert.EqualValues(t, 1, data["total"])
	scenarios := data["scenarios"].([]any)
	first := scenarios[0].(map[string]any)
	assert.Equal(t, "map_keys_and_unsubscribe", first["name"])
	assert.Equal(t, "match", first["golden"])
}

func TestTestCommand_UpdateWritesGolden(t *testing.T) {
	golden := t.TempDir()
	out, err := execute(t, "test", scenariosDir, "--golden", golden, "--update")
	require.NoError(t, err, out)
	assert.Contains(t, out, "(golden updated)")

	written, err := os.ReadFile(filepath.Join(golden, "counter_and_users.golden"))
	require.NoError(t, err)
	want, err := os.ReadFile(filepath.Join(goldenDir, "counter_and_users.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(bytes.TrimSpace(want)), string(written))
}

func TestTestCommand_GoldenMismatch(t *testing.T) {
	golden := t.TempDir()
	writeFile(t, golden, "counter_and_users.golden", `{"trace":[]}`)

	out, err := execute(t, "test", scenariosDir, "--golden", golden, "--filter", "counter_*")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "trace does not match")
}

func TestTestCommand_FailingScenario(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.yaml", `
name: bad
description: "wrong expectation"
initial: {a: 1}
subscribers:
  - {name: a, path: a}
steps:
  - update: [{op: set, path: a, value: 2}]
    expect:
      fired: []
`)

	out, err := execute(t, "--format", "json", "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)
}

func TestTestCommand_Errors(t *testing.T) {
	_, err := execute(t, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")

	_, err = execute(t, "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")

	out, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestFindScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "")
	writeFile(t, dir, "b.yml", "")
	writeFile(t, dir, "c.json", "")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	writeFile(t, filepath.Join(dir, "nested"), "d.yaml", "")

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Len(t, files, 3)

	files, err = findScenarioFiles(dir, "a*")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yaml")}, files)

	_, err = findScenarioFiles(dir, "[")
	require.Error(t, err)
}

const appSchema = `
#State: {
	todos: [...{title: string, done: bool}]
	stats: count: int & >=0
}
`

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	schemaFile := writeFile(t, dir, "app.cue", appSchema)
	good := writeFile(t, dir, "good.json", `{"todos": [{"title": "a", "done": false}], "stats": {"count": 1}}`)
	bad := writeFile(t, dir, "bad.yaml", "todos: []\nstats:\n  count: -1\n")

	out, err := execute(t, "validate", good, "--schema", schemaFile)
	require.NoError(t, err, out)
	assert.Contains(t, out, "satisfies")
	assert.Contains(t, out, "#State")

	out, err = execute(t, "validate", bad, "--schema", schemaFile)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "stats.count")

	out, err = execute(t, "--format", "json", "validate", bad, "--schema", schemaFile)
	require.Error(t, err)
	resp := decodeResponse(t, out)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeViolation, resp.Error.Code)
	assert.NotEmpty(t, resp.Error.Details)
}

func TestValidateCommand_Errors(t *testing.T) {
	dir := t.TempDir()
	schemaFile := writeFile(t, dir, "app.cue", appSchema)
	broken := writeFile(t, dir, "broken.cue", "#State: {")
	state := writeFile(t, dir, "s.json", `{}`)

	_, err := execute(t, "validate", state)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"schema" not set`)

	_, err = execute(t, "validate", filepath.Join(dir, "missing.json"), "--schema", schemaFile)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "state file not found")

	_, err = execute(t, "validate", state, "--schema", broken)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load schema")
}

func TestGetCommand(t *testing.T) {
	dir := t.TempDir()
	jsonState := writeFile(t, dir, "s.json", `{"users": {"a": {"name": "Sawyer"}}, "todos": [1, 2]}`)
	cueState := writeFile(t, dir, "s.cue", `users: a: name: "Sawyer"`+"\n")

	out, err := execute(t, "get", jsonState, "users.a.name")
	require.NoError(t, err)
	assert.Equal(t, "\"Sawyer\"\n", out)

	out, err = execute(t, "get", cueState, "users.a")
	require.NoError(t, err)
	assert.Equal(t, "{\"name\":\"Sawyer\"}\n", out)

	out, err = execute(t, "--format", "json", "get", jsonState, "todos[1]")
	require.NoError(t, err)
	resp := decodeResponse(t, out)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "todos[1]", data["path"])
	assert.Equal(t, "int", data["kind"])
	assert.EqualValues(t, 2, data["value"])
}

func TestGetCommand_Errors(t *testing.T) {
	dir := t.TempDir()
	state := writeFile(t, dir, "s.json", `{"a": 1}`)
	floats := writeFile(t, dir, "f.json", `{"a": 1.5}`)
	other := writeFile(t, dir, "s.toml", `a = 1`)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bad path", []string{"get", state, "a[x"}, "invalid path"},
		{"absent", []string{"get", state, "b"}, "nothing at b"},
		{"floats", []string{"get", floats, "a"}, "failed to load state"},
		{"unsupported format", []string{"get", other, "a"}, "unsupported state format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestTraceCommand(t *testing.T) {
	db := filepath.Join(t.TempDir(), "trace.db")
	scenario := filepath.Join(scenariosDir, "counter_and_users.yaml")

	out, err := execute(t, "trace", scenario, "--db", db)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Run counter_and_users")
	assert.Contains(t, out, "counter_and_users-1")
	assert.Contains(t, out, "2 updates, 6 notifications")

	// Recording again replaces the run instead of duplicating it.
	out, err = execute(t, "--format", "json", "trace", scenario, "--db", db, "--path", "users.a.name")
	require.NoError(t, err, out)

	resp := decodeResponse(t, out)
	data := resp.Data.(map[string]any)
	assert.Len(t, data["updates"], 2)
	notes := data["notifications"].([]any)
	require.Len(t, notes, 1)
	assert.Equal(t, "users", notes[0].(map[string]any)["change"])
}

func TestTraceCommand_SeparateRuns(t *testing.T) {
	db := filepath.Join(t.TempDir(), "trace.db")
	scenario := filepath.Join(scenariosDir, "map_keys_and_unsubscribe.yaml")

	_, err := execute(t, "trace", scenario, "--db", db, "--run", "first")
	require.NoError(t, err)
	out, err := execute(t, "--format", "json", "trace", scenario, "--db", db, "--run", "second")
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "second", data["run"])
	assert.NotEmpty(t, data["updates"])
}

func TestTraceCommand_Errors(t *testing.T) {
	_, err := execute(t, "trace", "x.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"db" not set`)

	_, err = execute(t, "trace", "/nonexistent.yaml", "--db", filepath.Join(t.TempDir(), "t.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSubcommandWithoutRoot(t *testing.T) {
	buf := &bytes.Buffer{}
	opts := &RootOptions{Format: "text"}
	cmd := NewGetCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})

	dir := t.TempDir()
	cmd.SetArgs([]string{writeFile(t, dir, "s.yaml", "a: [true]\n"), "a[0]"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "true\n", buf.String())
}

package path

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey_NameAndIndex(t *testing.T) {
	n := Name("user")
	assert.False(t, n.IsIndex())
	assert.Equal(t, "user", n.Name())
	assert.Equal(t, -1, n.Index())

	i := Index(3)
	assert.True(t, i.IsIndex())
	assert.Equal(t, 3, i.Index())
	assert.Equal(t, "", i.Name())

	assert.NotEqual(t, Name("0"), Index(0), "name \"0\" and index 0 are distinct keys")
}

func TestPath_String(t *testing.T) {
	tests := []struct {
		name string
		path Path
		want string
	}{
		{"root", Root(), "$"},
		{"single", Names("counter"), "counter"},
		{"nested", Names("users", "a", "name"), "users.a.name"},
		{"index", Of("todos", 2, "title"), "todos[2].title"},
		{"leading index", Of(0, "x"), "[0].x"},
		{"quoted dot", Of("m", "a.b"), `m["a.b"]`},
		{"quoted empty", Of("m", ""), `m[""]`},
		{"quoted dollar", Of("$"), `["$"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.path.String())
		})
	}
}

func TestParse_RoundTrip(t *testing.T) {
	paths := []Path{
		Root(),
		Names("a"),
		Names("users", "a", "name"),
		Of("todos", 0, "done"),
		Of(1, 2, 3),
		Of("m", "a.b", "c[d]", `q"x`),
		Of("$"),
	}

	for _, p := range paths {
		t.Run(p.String(), func(t *testing.T) {
			got, err := Parse(p.String())
			require.NoError(t, err)
			assert.True(t, p.Equal(got), "round trip of %s gave %s", p, got)
		})
	}
}

func TestParse_Accepted(t *testing.T) {
	tests := []struct {
		in   string
		want Path
	}{
		{"", Root()},
		{"$", Root()},
		{"$.a.b", Names("a", "b")},
		{"$[0]", Of(0)},
		{"a[0][1]", Of("a", 0, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestParse_Rejected(t *testing.T) {
	inputs := []string{
		"a.",
		"a..b",
		".a",
		"a]",
		"a[",
		"a[-1]",
		"a[x]",
		`a["unterminated]`,
		`a["x"`,
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			_, err := Parse(in)
			require.Error(t, err)
			var se *SyntaxError
			assert.ErrorAs(t, err, &se)
		})
	}
}

func TestMustParse_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParse("a..b") })
	assert.NotPanics(t, func() { MustParse("a.b") })
}

func TestPath_PrefixRelations(t *testing.T) {
	user := Names("user")
	age := Names("user", "age")
	name := Names("user", "name")

	assert.True(t, user.IsAncestorOf(age))
	assert.False(t, age.IsAncestorOf(user))
	assert.False(t, user.IsAncestorOf(user), "ancestor relation is strict")
	assert.False(t, age.IsAncestorOf(name))
	assert.True(t, Root().IsAncestorOf(user))

	assert.True(t, age.HasPrefix(user))
	assert.True(t, age.HasPrefix(age))
	assert.True(t, age.HasPrefix(Root()))
	assert.False(t, user.HasPrefix(age))
}

func TestPath_AppendDoesNotAlias(t *testing.T) {
	base := make(Path, 1, 4)
	base[0] = Name("a")

	x := base.Append(Name("x"))
	y := base.Append(Name("y"))

	assert.Equal(t, "a.x", x.String())
	assert.Equal(t, "a.y", y.String())
	assert.Equal(t, "a", base.String())
}

func TestPath_ParentAndLast(t *testing.T) {
	p := Of("a", 1, "b")

	last, ok := p.Last()
	require.True(t, ok)
	assert.Equal(t, Name("b"), last)
	assert.Equal(t, "a[1]", p.Parent().String())

	_, ok = Root().Last()
	assert.False(t, ok)
	assert.True(t, Root().Parent().IsRoot())

	// Appending to a parent must not clobber the original.
	sib := p.Parent().Append(Name("c"))
	assert.Equal(t, "a[1].c", sib.String())
	assert.Equal(t, "a[1].b", p.String())
}

func TestOf_PanicsOnUnsupportedType(t *testing.T) {
	assert.Panics(t, func() { Of(1.5) })
}

func TestPath_TextMarshaling(t *testing.T) {
	p := Of("users", 0, "name")
	text, err := p.MarshalText()
	require.NoError(t, err)

	var got Path
	require.NoError(t, got.UnmarshalText(text))
	assert.True(t, p.Equal(got))

	assert.Error(t, got.UnmarshalText([]byte("a..b")))
}

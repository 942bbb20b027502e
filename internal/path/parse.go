package path

import (
	"fmt"
	"strconv"
	"strings"
)

// SyntaxError reports a malformed textual path.
type SyntaxError struct {
	Input  string
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid path %q at offset %d: %s", e.Input, e.Offset, e.Msg)
}

// Parse converts the textual form produced by Path.String back into a Path.
// "" and "$" both parse to the root. A leading "$." or "$[" is accepted.
func Parse(s string) (Path, error) {
	if s == "" || s == "$" {
		return Path{}, nil
	}

	rest := s
	if strings.HasPrefix(rest, "$.") {
		rest = rest[2:]
	} else if strings.HasPrefix(rest, "$[") {
		rest = rest[1:]
	}
	offset := len(s) - len(rest)
	fail := func(msg string) (Path, error) {
		return nil, &SyntaxError{Input: s, Offset: offset, Msg: msg}
	}

	var p Path
	for {
		if rest == "" {
			return fail("empty segment")
		}

		if rest[0] == '[' {
			key, n, err := parseBracket(rest)
			if err != nil {
				return fail(err.Error())
			}
			p = append(p, key)
			rest = rest[n:]
			offset += n
		} else {
			end := strings.IndexAny(rest, ".[]\"")
			if end < 0 {
				end = len(rest)
			}
			if end == 0 {
				return fail(fmt.Sprintf("unexpected %q", rest[0]))
			}
			p = append(p, Name(rest[:end]))
			rest = rest[end:]
			offset += end
		}

		switch {
		case rest == "":
			return p, nil
		case rest[0] == '.':
			rest = rest[1:]
			offset++
		case rest[0] == '[':
			// bracket segments need no separator
		default:
			return fail(fmt.Sprintf("unexpected %q", rest[0]))
		}
	}
}

// parseBracket parses a leading [n] or ["name"] and returns the key and the
// number of bytes consumed.
func parseBracket(s string) (Key, int, error) {
	inner := s[1:]
	if strings.HasPrefix(inner, `"`) {
		quoted, err := strconv.QuotedPrefix(inner)
		if err != nil {
			return Key{}, 0, fmt.Errorf("bad quoted key")
		}
		name, err := strconv.Unquote(quoted)
		if err != nil {
			return Key{}, 0, fmt.Errorf("bad quoted key")
		}
		n := 1 + len(quoted)
		if n >= len(s) || s[n] != ']' {
			return Key{}, 0, fmt.Errorf("missing ']'")
		}
		return Name(name), n + 1, nil
	}

	end := strings.IndexByte(inner, ']')
	if end < 0 {
		return Key{}, 0, fmt.Errorf("missing ']'")
	}
	i, err := strconv.Atoi(inner[:end])
	if err != nil || i < 0 {
		return Key{}, 0, fmt.Errorf("index must be a non-negative integer, got %q", inner[:end])
	}
	return Index(i), end + 2, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) Path {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/substate/internal/schema"
	"github.com/roach88/substate/internal/value"
)

// LoadState reads a state snapshot from a .json, .yaml/.yml, or .cue file.
// CUE files must evaluate to concrete data.
func LoadState(file string) (value.Value, error) {
	ext := strings.ToLower(filepath.Ext(file))
	if ext == ".cue" {
		return schema.LoadFile(file)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	switch ext {
	case ".json":
		v, err := value.Unmarshal(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		return v, nil
	case ".yaml", ".yml":
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		v, err := value.FromGo(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("%s: unsupported state format %q (want .json, .yaml, .yml, or .cue)", file, ext)
	}
}

// loadStateOrFail wraps LoadState errors with the exit code and output the
// commands share.
func loadStateOrFail(f *OutputFormatter, file string) (value.Value, error) {
	v, err := LoadState(file)
	if err == nil {
		return v, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil, f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("state file not found: %s", file), nil)
	}
	return nil, f.Fail(ExitCommandError, ErrCodeInvalidInput, fmt.Sprintf("failed to load state: %v", err), nil)
}

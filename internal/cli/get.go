package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/substate/internal/path"
	"github.com/roach88/substate/internal/value"
)

// GetResult is the value found at a path.
type GetResult struct {
	Path  string      `json:"path"`
	Kind  string      `json:"kind"`
	Value value.Value `json:"value"`
}

// Text implements Texter.
func (r GetResult) Text(w io.Writer) {
	data, err := value.Marshal(r.Value)
	if err != nil {
		fmt.Fprintf(w, "<%s>\n", r.Kind)
		return
	}
	fmt.Fprintln(w, string(data))
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <state-file> <path>",
		Short: "Print the value at a path",
		Long: `Print the value at a path of a state snapshot.

Paths use the same syntax as subscriptions: "$" for the root,
users.a.name for fields, todos[0] for indexes, and m["dotted.key"]
for keys containing separators.

Exit codes:
  0 - Value found
  2 - Command error (missing file, bad path, nothing at path)

Examples:
  substate get state.json users.a.name
  substate get state.yaml 'todos[0]' --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(rootOpts, args[0], args[1], cmd)
		},
	}
	return cmd
}

func runGet(opts *RootOptions, stateFile, rawPath string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	p, err := path.Parse(rawPath)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInvalidInput, fmt.Sprintf("invalid path: %v", err), nil)
	}

	state, err := loadStateOrFail(f, stateFile)
	if err != nil {
		return err
	}

	v := value.Lookup(state, p)
	if v == nil {
		return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("nothing at %s", p), nil)
	}

	return f.Success(GetResult{Path: p.String(), Kind: value.Kind(v), Value: v})
}

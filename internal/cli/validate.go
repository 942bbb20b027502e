package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/substate/internal/schema"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Schema     string
	Definition string
}

// ValidateResult is reported when a state file satisfies its schema.
type ValidateResult struct {
	State      string `json:"state"`
	Schema     string `json:"schema"`
	Definition string `json:"definition,omitempty"`
}

// Text implements Texter.
func (r ValidateResult) Text(w io.Writer) {
	def := r.Definition
	if def == "" {
		def = "whole file"
	}
	fmt.Fprintf(w, "✓ %s satisfies %s (%s)\n", r.State, r.Schema, def)
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <state-file>",
		Short: "Check a state snapshot against a CUE schema",
		Long: `Check a state snapshot against a CUE schema.

The state may be JSON, YAML, or concrete CUE. The schema's #State
definition is used when present, otherwise the whole schema file.

Exit codes:
  0 - State satisfies the schema
  1 - Schema violation
  2 - Command error (missing file, schema does not compile, etc.)

Examples:
  substate validate state.json --schema app.cue
  substate validate state.yaml --schema ./schemas --definition "#Todos"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Schema, "schema", "", "CUE schema file or directory")
	cmd.Flags().StringVar(&opts.Definition, "definition", "", `definition to validate against (default "#State" when present)`)
	_ = cmd.MarkFlagRequired("schema")

	return cmd
}

func runValidate(opts *ValidateOptions, stateFile string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	logger := opts.logger(cmd)

	state, err := loadStateOrFail(f, stateFile)
	if err != nil {
		return err
	}

	var schemaOpts []schema.Option
	if opts.Definition != "" {
		schemaOpts = append(schemaOpts, schema.WithDefinition(opts.Definition))
	}
	sch, err := schema.Load(opts.Schema, schemaOpts...)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeSchema, fmt.Sprintf("failed to load schema: %v", err), nil)
	}
	logger.Debug("schema loaded", "schema", opts.Schema, "definition", sch.Definition())

	if err := sch.Validate(state); err != nil {
		var ve *schema.ViolationError
		if errors.As(err, &ve) {
			details := make([]string, len(ve.Violations))
			for i, v := range ve.Violations {
				details[i] = v.String()
			}
			if f.Format != "json" {
				for _, d := range details {
					fmt.Fprintf(f.Writer, "✗ %s\n", d)
				}
			}
			return f.Fail(ExitFailure, ErrCodeViolation,
				fmt.Sprintf("%s does not satisfy %s", stateFile, opts.Schema), details)
		}
		return f.Fail(ExitCommandError, ErrCodeSchema, err.Error(), nil)
	}

	return f.Success(ValidateResult{
		State:      stateFile,
		Schema:     opts.Schema,
		Definition: sch.Definition(),
	})
}

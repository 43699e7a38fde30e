// File: cmd/run.go
package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newRunCommand builds the one-shot executor: a single named command with
// --param key=value pairs, result printed to stdout or written to --output
// for binary content.
func (a *app) newRunCommand() *cobra.Command {
	var (
		rawParams  []string
		outputPath string
	)

	run := &cobra.Command{
		Use:   "run <command>",
		Short: "Execute one automation command and print its result.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(rawParams)
			if err != nil {
				return err
			}

			dispatcher, _, cleanup, err := a.buildDispatcher(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := dispatcher.Dispatch(cmd.Context(), args[0], params)
			if err != nil {
				return err
			}

			if result.IsBinary() {
				if outputPath == "" {
					return fmt.Errorf("command returned binary content (%s); supply --output", result.ContentType)
				}
				if err := os.WriteFile(outputPath, result.Data, 0o644); err != nil {
					return fmt.Errorf("failed to write output file: %w", err)
				}
				a.logger.Info("Binary result written.",
					zap.String("path", outputPath),
					zap.Int("bytes", len(result.Data)))
				return nil
			}

			fmt.Fprintln(cmd.OutOrStdout(), result.Text)
			return nil
		},
	}

	run.Flags().StringArrayVarP(&rawParams, "param", "p", nil, "command parameter as key=value (repeatable)")
	run.Flags().StringVarP(&outputPath, "output", "o", "", "file path for binary results")
	return run
}

// parseParams converts key=value flags into the raw parameter map. Values
// parse as bool or number when they look like one, otherwise stay strings;
// a value can be forced to string by quoting: key="123".
func parseParams(raw []string) (map[string]interface{}, error) {
	params := make(map[string]interface{}, len(raw))
	for _, pair := range raw {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("parameter %q is not in key=value form", pair)
		}
		params[key] = parseValue(value)
	}
	return params, nil
}

func parseValue(value string) interface{} {
	if len(value) >= 2 && strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) {
		return value[1 : len(value)-1]
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	// Numbers arrive as float64 from JSON transports; the CLI matches that
	// so schema coercion sees one shape.
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return value
}

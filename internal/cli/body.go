package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hongminglow/carepoint/internal/output"
)

// bodyFlags collects a request body from --data, --file and --set.
type bodyFlags struct {
	data string
	file string
	sets []string
}

func (b *bodyFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&b.data, "data", "d", "", "JSON request body")
	f.StringVarP(&b.file, "file", "f", "", "read the JSON body from a file ('-' for stdin)")
	f.StringArrayVar(&b.sets, "set", nil, "set a field, key=value (repeatable; JSON values are parsed)")
	cmd.MarkFlagsMutuallyExclusive("data", "file")
}

// build returns the body to send. --set fields are merged over a --data or
// --file object.
func (b *bodyFlags) build(in io.Reader) (json.RawMessage, error) {
	var raw []byte
	switch {
	case b.data != "":
		raw = []byte(b.data)
	case b.file == "-":
		var err error
		if raw, err = io.ReadAll(in); err != nil {
			return nil, fmt.Errorf("read body from stdin: %w", err)
		}
	case b.file != "":
		var err error
		if raw, err = os.ReadFile(b.file); err != nil {
			return nil, fmt.Errorf("read body file: %w", err)
		}
	}

	if len(raw) > 0 && !json.Valid(raw) {
		return nil, usageErr("request body is not valid JSON")
	}
	if len(b.sets) == 0 {
		if len(raw) == 0 {
			return nil, &output.CLIError{
				Summary:    "no request body",
				Suggestion: "pass --data, --file or --set key=value",
				ExitCode:   output.ExitUsageError,
			}
		}
		return json.RawMessage(raw), nil
	}

	obj := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, usageErr("--set needs the body to be a JSON object")
		}
	}
	for _, kv := range b.sets {
		key, value, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, usageErr(fmt.Sprintf("--set %q: expected key=value", kv))
		}
		obj[key] = parseValue(value)
	}
	out, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// parseValue keeps numbers, booleans, null, arrays and objects typed; anything
// else is a string.
func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return s
}

func usageErr(summary string) *output.CLIError {
	return &output.CLIError{Summary: summary, ExitCode: output.ExitUsageError}
}

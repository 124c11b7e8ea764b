package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/carepoint/internal/gateway"
)

func TestParseColorMode(t *testing.T) {
	for in, want := range map[string]ColorMode{"auto": ColorAuto, "always": ColorAlways, "never": ColorNever} {
		got, err := ParseColorMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseColorMode("rainbow")
	assert.Error(t, err)
}

func TestResolveColors(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.True(t, ResolveColors(ColorAlways))
	assert.False(t, ResolveColors(ColorNever))
	assert.False(t, ResolveColors(ColorAuto))
}

func TestColumns(t *testing.T) {
	objects := []map[string]any{
		{"status": "pending", "id": 1.0, "doctor": 3.0, "notes": map[string]any{"x": 1.0}},
		{"id": 2.0, "date": "2026-11-02", "tags": []any{"a"}},
	}
	assert.Equal(t, []string{"id", "status", "date", "doctor"}, Columns(objects))
}

func TestColumns_Capped(t *testing.T) {
	obj := map[string]any{}
	for _, k := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		obj[k] = k
	}
	assert.Len(t, Columns([]map[string]any{obj}), maxColumns)
}

func TestCell(t *testing.T) {
	assert.Equal(t, "", Cell(nil))
	assert.Equal(t, "7", Cell(7.0))
	assert.Equal(t, "true", Cell(true))
	assert.Equal(t, "a b", Cell("a\nb"))
	assert.Equal(t, `{"k":1}`, Cell(map[string]any{"k": 1}))
	long := Cell(strings.Repeat("x", 100))
	assert.Equal(t, maxCellWidth, len([]rune(long)))
}

func TestItems_Table(t *testing.T) {
	var out bytes.Buffer
	p := NewPrinter(&out, &bytes.Buffer{}, false, false)
	require.NoError(t, p.Items([]json.RawMessage{
		json.RawMessage(`{"id":1,"name":"General"}`),
		json.RawMessage(`{"id":2,"name":"Riverside"}`),
	}))
	assert.Contains(t, out.String(), "Riverside")
	assert.Contains(t, out.String(), "NAME")
}

func TestItems_JSON(t *testing.T) {
	var out bytes.Buffer
	p := NewPrinter(&out, &bytes.Buffer{}, false, true)
	require.NoError(t, p.Items(nil))
	assert.JSONEq(t, `[]`, out.String())

	out.Reset()
	require.NoError(t, p.Item(json.RawMessage(`{"id":1}`)))
	assert.JSONEq(t, `{"id":1}`, out.String())
}

func TestItems_Empty(t *testing.T) {
	var out bytes.Buffer
	p := NewPrinter(&out, &bytes.Buffer{}, false, false)
	require.NoError(t, p.Items(nil))
	assert.Equal(t, "No items.\n", out.String())
}

func TestFromError(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		summary string
		code    int
	}{
		{"plain", errors.New("boom"), "boom", ExitGeneral},
		{"invalid credentials", &gateway.Error{Kind: gateway.InvalidCredentials, Detail: "Invalid credentials"}, "Invalid credentials", ExitAuth},
		{"unauthenticated", &gateway.Error{Kind: gateway.Unauthenticated, Detail: "expired"}, "session expired or was rejected", ExitAuth},
		{"forbidden", &gateway.Error{Kind: gateway.Forbidden}, "forbidden", ExitBackend},
		{"network", &gateway.Error{Kind: gateway.NetworkError, Err: errors.New("dial")}, "could not reach the backend", ExitBackend},
		{"cli", &CLIError{Summary: "usage", ExitCode: ExitUsageError}, "usage", ExitUsageError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := FromError(tc.err)
			assert.Equal(t, tc.summary, got.Summary)
			assert.Equal(t, tc.code, got.ExitCode)
		})
	}
}

func TestFromError_ValidationFields(t *testing.T) {
	got := FromError(&gateway.Error{Kind: gateway.Validation, Fields: map[string][]string{
		"email":     {"Enter a valid email address."},
		"user.role": {"Invalid role."},
	}})
	assert.Equal(t, "email: Enter a valid email address.", got.Summary)
	assert.Equal(t, "email: Enter a valid email address.; user.role: Invalid role.", got.Detail)
}

func TestFormatError(t *testing.T) {
	var errOut bytes.Buffer
	p := NewPrinter(&bytes.Buffer{}, &errOut, false, false)
	p.FormatError(&CLIError{Summary: "nope", Detail: "why", Suggestion: "try"})
	assert.Equal(t, "[ERROR] nope\n  Cause: why\n  Suggestion: try\n", errOut.String())
}

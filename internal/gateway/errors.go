package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Kind classifies every failure the gateway surfaces.
type Kind int

const (
	KindUnknown Kind = iota
	InvalidCredentials
	Unauthenticated
	Forbidden
	NotFound
	Validation
	ServerError
	NetworkError
	MalformedResponse
)

var kindNames = map[Kind]string{
	KindUnknown:        "unknown",
	InvalidCredentials: "invalid credentials",
	Unauthenticated:    "unauthenticated",
	Forbidden:          "forbidden",
	NotFound:           "not found",
	Validation:         "validation",
	ServerError:        "server error",
	NetworkError:       "network error",
	MalformedResponse:  "malformed response",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Sentinels for errors.Is matching on kind.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation failed")
	ErrServer             = errors.New("server error")
	ErrNetwork            = errors.New("network error")
	ErrMalformedResponse  = errors.New("malformed response")
)

var kindSentinels = map[Kind]error{
	InvalidCredentials: ErrInvalidCredentials,
	Unauthenticated:    ErrUnauthenticated,
	Forbidden:          ErrForbidden,
	NotFound:           ErrNotFound,
	Validation:         ErrValidation,
	ServerError:        ErrServer,
	NetworkError:       ErrNetwork,
	MalformedResponse:  ErrMalformedResponse,
}

// Error is returned for every failed backend call.
type Error struct {
	Kind   Kind
	Status int
	// Detail is the backend-provided message, if any.
	Detail string
	// Fields holds per-field validation messages; nested objects use dotted keys.
	Fields map[string][]string
	Method string
	Path   string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("gateway: ")
	b.WriteString(e.Kind.String())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (%d)", e.Status)
	}
	if e.Method != "" {
		fmt.Fprintf(&b, " %s %s", e.Method, e.Path)
	}
	if msg := e.Message(); msg != "" {
		b.WriteString(": ")
		b.WriteString(msg)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels, e.g. errors.Is(err, gateway.ErrForbidden).
func (e *Error) Is(target error) bool {
	s, ok := kindSentinels[e.Kind]
	return ok && s == target
}

// Message is the text to show a user: the backend detail, else the first field
// message, else empty.
func (e *Error) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	for _, key := range e.FieldNames() {
		if msgs := e.Fields[key]; len(msgs) > 0 {
			return fmt.Sprintf("%s: %s", key, msgs[0])
		}
	}
	return ""
}

// FieldNames returns the field keys in a stable order.
func (e *Error) FieldNames() []string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// KindOf extracts the Kind of err, or KindUnknown when err is not a gateway error.
func KindOf(err error) Kind {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Kind
	}
	return KindUnknown
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return Unauthenticated
	case status == http.StatusForbidden:
		return Forbidden
	case status == http.StatusNotFound:
		return NotFound
	case status >= 500:
		return ServerError
	case status >= 400:
		return Validation
	default:
		return MalformedResponse
	}
}

var detailKeys = []string{"detail", "error", "message"}

// decodeError normalizes the backend's error payload shapes: {"detail": ...},
// {"error": ...}, {"message": ...}, {"field": ["msg"]}, {"non_field_errors": [...]}
// and nested objects like {"user": {"role": ["..."]}}.
func decodeError(status int, body []byte) *Error {
	e := &Error{Kind: kindForStatus(status), Status: status}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		if text := strings.TrimSpace(string(body)); text != "" && len(text) <= 512 && !strings.HasPrefix(text, "<") {
			e.Detail = text
		}
		return e
	}

	for _, key := range detailKeys {
		if s, ok := payload[key].(string); ok && strings.TrimSpace(s) != "" {
			e.Detail = s
			delete(payload, key)
			break
		}
	}

	fields := map[string][]string{}
	flattenFields("", payload, fields)
	for _, key := range append([]string{"non_field_errors"}, detailKeys...) {
		if msgs := fields[key]; e.Detail == "" && len(msgs) > 0 {
			e.Detail = msgs[0]
		}
		delete(fields, key)
	}
	if len(fields) > 0 {
		e.Fields = fields
	}
	return e
}

func flattenFields(prefix string, v any, out map[string][]string) {
	switch val := v.(type) {
	case map[string]any:
		for k, child := range val {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			flattenFields(key, child, out)
		}
	case []any:
		for _, item := range val {
			if s, ok := item.(string); ok {
				out[prefix] = append(out[prefix], s)
			} else {
				flattenFields(prefix, item, out)
			}
		}
	case string:
		if prefix != "" {
			out[prefix] = append(out[prefix], val)
		}
	}
}

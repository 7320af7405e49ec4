package jsonrpc

import (
	"bytes"
	"encoding/json"
)

// Version is the only accepted value of the "jsonrpc" member.
const Version = "2.0"

// Params holds the raw "params" member of a call. It is nil when the call
// carried no params.
type Params json.RawMessage

// Decode unmarshals the params into v.
// It returns InvalidParams when the params do not fit v.
func (p Params) Decode(v any) error {
	data := []byte(p)
	if len(data) == 0 {
		data = []byte("null")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return InvalidParams()
	}
	return nil
}

// IsZero reports whether the call carried no params (or null params).
func (p Params) IsZero() bool {
	return len(p) == 0 || bytes.Equal(p, []byte("null"))
}

// Call is one parsed JSON-RPC call.
type Call struct {
	// ID is the raw id value. It is meaningful only when HasID is true,
	// in which case it is a JSON string, number or null.
	ID json.RawMessage

	// HasID is false for notifications.
	HasID bool

	Method string
	Params Params
}

// IsNotification reports whether the call expects no response.
func (c Call) IsNotification() bool {
	return !c.HasID
}

// RequestKind classifies a parsed request body.
type RequestKind int

const (
	// Malformed bodies are answered with a single InvalidRequest error.
	Malformed RequestKind = iota
	// Single bodies are one JSON object.
	Single
	// Batch bodies are a non-empty JSON array of call objects.
	Batch
)

// String returns the string representation of the RequestKind.
func (k RequestKind) String() string {
	switch k {
	case Single:
		return "single"
	case Batch:
		return "batch"
	default:
		return "malformed"
	}
}

// Request is a parsed request body.
type Request struct {
	Kind RequestKind

	// Calls holds one call for Single, the batch in order for Batch,
	// and nothing for Malformed.
	Calls []Call
}

// OutcomeKind classifies the result of one call.
type OutcomeKind int

const (
	// OutcomeSuppressed produces no output entry (notifications).
	OutcomeSuppressed OutcomeKind = iota
	// OutcomeSuccess carries a result value.
	OutcomeSuccess
	// OutcomeError carries an error object.
	OutcomeError
)

// String returns the label used for logs and metrics.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeError:
		return "error"
	default:
		return "suppressed"
	}
}

// Outcome is the resolved result of one call.
type Outcome struct {
	Kind   OutcomeKind
	Result json.RawMessage
	Err    *Error
}

// Success returns an outcome carrying an already-encoded result.
func Success(result json.RawMessage) Outcome {
	return Outcome{Kind: OutcomeSuccess, Result: result}
}

// Failure returns an outcome carrying err.
func Failure(err *Error) Outcome {
	return Outcome{Kind: OutcomeError, Err: err}
}

// Suppressed returns the outcome of a notification.
func Suppressed() Outcome {
	return Outcome{Kind: OutcomeSuppressed}
}

// successResponse and errorResponse fix the member order on the wire.
type successResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	ID      json.RawMessage `json:"id"`
}

type errorResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Error   *Error          `json:"error"`
	ID      json.RawMessage `json:"id"`
}

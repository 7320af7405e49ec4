package jsonrpc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Error is a JSON-RPC error object.
// Data is emitted as null when empty, so the wire object always carries
// code, message and data.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// NewError creates an error with the given code and message and no data.
func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithData returns a copy of e carrying v, marshaled as JSON, as its data member.
// If v cannot be marshaled the copy keeps no data.
func (e *Error) WithData(v any) *Error {
	cp := *e
	data, err := marshalJSON(v)
	if err != nil {
		cp.Data = nil
		return &cp
	}
	cp.Data = data
	return &cp
}

// ParseError reports a body that is not valid JSON.
// The transport reports every malformed envelope as InvalidRequest; this
// constructor exists for methods that parse JSON of their own.
func ParseError() *Error { return NewError(CodeParseError, "Parse error") }

// InvalidRequest reports an envelope that violates the JSON-RPC grammar.
func InvalidRequest() *Error { return NewError(CodeInvalidRequest, "Invalid request") }

// MethodNotFound reports a call to a method the Handler does not know.
func MethodNotFound() *Error { return NewError(CodeMethodNotFound, "Method not found") }

// InvalidParams reports params a method could not accept.
func InvalidParams() *Error { return NewError(CodeInvalidParams, "Invalid params") }

// InternalError reports a Handler fault.
func InternalError() *Error { return NewError(CodeInternalError, "Internal error") }

// errRequestTimeout is reported for calls still unresolved when the
// dispatcher's request timeout fires.
var errRequestTimeout = InternalError().WithData("request timed out")

// toError maps a Handler error to the error object sent to the client.
// A *Error anywhere in the chain is used as is; everything else becomes
// an internal error so Go error text never leaks to clients.
func toError(err error) *Error {
	var rpcErr *Error
	if errors.As(err, &rpcErr) && rpcErr != nil {
		return rpcErr
	}
	return InternalError()
}

package jsonrpc

import (
	"bytes"
	"encoding/json"
)

// Parse classifies a request body as a single call, a batch, or a
// malformed envelope. It never fails: every violation of the JSON-RPC 2.0
// request grammar yields a Malformed request.
func Parse(body []byte) Request {
	trimmed := trimSpace(body)
	if len(trimmed) == 0 {
		return Request{Kind: Malformed}
	}

	switch trimmed[0] {
	case '{':
		call, ok := parseCall(trimmed)
		if !ok {
			return Request{Kind: Malformed}
		}
		return Request{Kind: Single, Calls: []Call{call}}
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(trimmed, &elems); err != nil || len(elems) == 0 {
			return Request{Kind: Malformed}
		}
		calls := make([]Call, 0, len(elems))
		for _, elem := range elems {
			call, ok := parseCall(elem)
			if !ok {
				// One bad element invalidates the whole batch.
				return Request{Kind: Malformed}
			}
			calls = append(calls, call)
		}
		return Request{Kind: Batch, Calls: calls}
	default:
		return Request{Kind: Malformed}
	}
}

// parseCall validates one call object.
func parseCall(raw json.RawMessage) (Call, bool) {
	raw = trimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return Call{}, false
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Call{}, false
	}

	version, ok := fields["jsonrpc"]
	if !ok || !isString(version) {
		return Call{}, false
	}
	var v string
	if err := json.Unmarshal(version, &v); err != nil || v != Version {
		return Call{}, false
	}

	methodRaw, ok := fields["method"]
	if !ok || !isString(methodRaw) {
		return Call{}, false
	}
	var call Call
	if err := json.Unmarshal(methodRaw, &call.Method); err != nil {
		return Call{}, false
	}

	if params, ok := fields["params"]; ok {
		switch kindOf(params) {
		case '[', '{':
			call.Params = Params(params)
		case 'n':
			// null params are the same as absent params
		default:
			return Call{}, false
		}
	}

	if id, ok := fields["id"]; ok {
		switch kindOf(id) {
		case '"', '0', 'n':
		default:
			return Call{}, false
		}
		call.HasID = true
		call.ID = id
	}

	return call, true
}

// Encode serializes the outcomes of req. outcomes must be index-aligned
// with req.Calls. The payload is empty when nothing is to be sent back.
func Encode(req Request, outcomes []Outcome) []byte {
	switch req.Kind {
	case Single:
		if len(req.Calls) == 0 || len(outcomes) == 0 {
			return nil
		}
		entry, ok := encodeOutcome(req.Calls[0], outcomes[0])
		if !ok {
			return nil
		}
		return append(entry, '\n')
	case Batch:
		entries := make([]json.RawMessage, 0, len(req.Calls))
		for i, call := range req.Calls {
			if i >= len(outcomes) {
				break
			}
			if entry, ok := encodeOutcome(call, outcomes[i]); ok {
				entries = append(entries, entry)
			}
		}
		if len(entries) == 0 {
			return nil
		}
		data, err := marshalJSON(entries)
		if err != nil {
			return invalidRequestPayload()
		}
		return append(data, '\n')
	default:
		return invalidRequestPayload()
	}
}

// encodeOutcome renders one response object. It reports false for
// suppressed outcomes and for notifications.
func encodeOutcome(call Call, outcome Outcome) (json.RawMessage, bool) {
	if !call.HasID || outcome.Kind == OutcomeSuppressed {
		return nil, false
	}
	id := call.ID
	if len(id) == 0 {
		id = json.RawMessage("null")
	}

	if outcome.Kind == OutcomeSuccess {
		result := outcome.Result
		if len(result) == 0 {
			result = json.RawMessage("null")
		}
		data, err := marshalJSON(successResponse{JSONRPC: Version, Result: result, ID: id})
		if err == nil {
			return data, true
		}
		outcome = Failure(InternalError())
	}

	rpcErr := outcome.Err
	if rpcErr == nil {
		rpcErr = InternalError()
	}
	data, err := marshalJSON(errorResponse{JSONRPC: Version, Error: rpcErr, ID: id})
	if err != nil {
		data, _ = marshalJSON(errorResponse{JSONRPC: Version, Error: InternalError(), ID: id})
	}
	return data, true
}

// invalidRequestPayload is the answer to every malformed envelope.
func invalidRequestPayload() []byte {
	data, _ := marshalJSON(errorResponse{JSONRPC: Version, Error: InvalidRequest(), ID: json.RawMessage("null")})
	return append(data, '\n')
}

// marshalJSON encodes v without HTML escaping and without the trailing
// newline json.Encoder appends.
func marshalJSON(v any) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// kindOf returns a tag for the JSON value type of raw: '{', '[', '"',
// 't' or 'f' (booleans), 'n' (null or empty), or '0' (numbers).
func kindOf(raw json.RawMessage) byte {
	raw = trimSpace(raw)
	if len(raw) == 0 {
		return 'n'
	}
	switch c := raw[0]; {
	case c == '-' || (c >= '0' && c <= '9'):
		return '0'
	default:
		return c
	}
}

func isString(raw json.RawMessage) bool {
	return kindOf(raw) == '"'
}

// trimSpace strips the four JSON whitespace characters.
func trimSpace(b []byte) []byte {
	return bytes.Trim(b, " \t\r\n")
}

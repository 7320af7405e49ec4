package rpchttp

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

const (
	jsonResponseType  = "application/json"
	plainResponseType = "text/plain; charset=utf-8"
)

// headerField is one response header line. A slice keeps the order fixed.
type headerField struct {
	name  string
	value string
}

// response is what a connection sends once its request is handled.
type response struct {
	status  int
	headers []headerField
	payload []byte
}

// admissionResponse renders an admission failure.
func admissionResponse(e *admissionError) response {
	return response{
		status:  e.status,
		headers: []headerField{{"Content-Type", plainResponseType}},
		payload: []byte(e.body),
	}
}

// rpcResponse renders the outcome of an admitted request. cors holds the
// CORS header fields, if any.
func rpcResponse(payload []byte, cors []headerField) response {
	headers := make([]headerField, 0, 1+len(cors))
	headers = append(headers, headerField{"Content-Type", jsonResponseType})
	headers = append(headers, cors...)
	return response{status: http.StatusOK, headers: headers, payload: payload}
}

// writeResponse writes a complete HTTP/1.1 response with a chunked body:
// one chunk holding payload (omitted when payload is empty), then the
// terminating zero-length chunk. The connection is always announced as
// closing.
func writeResponse(w io.Writer, status int, headers []headerField, payload []byte) error {
	bw := bufio.NewWriterSize(w, len(payload)+512)

	text := http.StatusText(status)
	if text == "" {
		text = "status code " + strconv.Itoa(status)
	}
	fmt.Fprintf(bw, "HTTP/1.1 %d %s\r\n", status, text)
	for _, h := range headers {
		// Header values are fixed or come from a matched whitelist entry;
		// line breaks would still split the response.
		if strings.ContainsAny(h.name, "\r\n") || strings.ContainsAny(h.value, "\r\n") {
			continue
		}
		fmt.Fprintf(bw, "%s: %s\r\n", h.name, h.value)
	}
	bw.WriteString("Transfer-Encoding: chunked\r\n")
	bw.WriteString("Connection: close\r\n")
	bw.WriteString("\r\n")

	if len(payload) > 0 {
		bw.WriteString(strings.ToUpper(strconv.FormatInt(int64(len(payload)), 16)))
		bw.WriteString("\r\n")
		bw.Write(payload)
		bw.WriteString("\r\n")
	}
	bw.WriteString("0\r\n\r\n")

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}

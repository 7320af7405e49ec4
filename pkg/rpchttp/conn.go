package rpchttp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http/httputil"
	"net/textproto"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
)

// connState is a step of the per-connection state machine.
type connState int

const (
	stateReadRequestLine connState = iota
	stateReadHeaders
	stateAdmission
	stateReadBody
	stateDispatch
	stateWriteResponse
	stateClosed
)

func (s connState) String() string {
	switch s {
	case stateReadRequestLine:
		return "read_request_line"
	case stateReadHeaders:
		return "read_headers"
	case stateAdmission:
		return "admission"
	case stateReadBody:
		return "read_body"
	case stateDispatch:
		return "dispatch"
	case stateWriteResponse:
		return "write_response"
	default:
		return "closed"
	}
}

const (
	// drainLimit bounds the unread input discarded before closing.
	drainLimit = 256 << 10
	// drainTimeout bounds the time spent discarding it.
	drainTimeout = 500 * time.Millisecond
	// maxHeaderBytes bounds the request line plus headers.
	maxHeaderBytes = 1 << 20
)

// aLongTimeAgo is a deadline in the past, used to abort a blocked read.
var aLongTimeAgo = time.Unix(1, 0)

var errHeadTooLarge = errors.New("rpchttp: request head too large")

// limitReader caps the bytes read from the socket until the request
// head is parsed, then is lifted.
type limitReader struct {
	r      io.Reader
	remain int64
}

func (l *limitReader) Read(p []byte) (int, error) {
	if l.remain <= 0 {
		return 0, errHeadTooLarge
	}
	if int64(len(p)) > l.remain {
		p = p[:l.remain]
	}
	n, err := l.r.Read(p)
	l.remain -= int64(n)
	return n, err
}

// request is the parsed request head plus its body.
type request struct {
	method        string
	target        string
	proto         string
	header        textproto.MIMEHeader
	contentLength int64
	chunked       bool
	body          []byte
}

// conn serves exactly one request on rwc and then closes it.
type conn struct {
	srv    *Server
	rwc    net.Conn
	lr     *limitReader
	br     *bufio.Reader
	tp     *textproto.Reader
	id     string
	logger *slog.Logger

	state connState
	req   request
	resp  response
	cors  []headerField
	start time.Time

	// peerGone is set when the client disconnected during dispatch.
	peerGone atomic.Bool
}

func newConn(srv *Server, rwc net.Conn, id string) *conn {
	lr := &limitReader{r: rwc, remain: maxHeaderBytes}
	br := bufio.NewReader(lr)
	return &conn{
		srv:    srv,
		rwc:    rwc,
		lr:     lr,
		br:     br,
		tp:     textproto.NewReader(br),
		id:     id,
		logger: srv.logger.With("conn_id", id, "remote", rwc.RemoteAddr().String()),
	}
}

// serve runs the state machine until it reaches stateClosed.
func (c *conn) serve(ctx context.Context) {
	ctx = withConnLogger(ctx, c.id, c.logger)
	c.start = time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			c.logger.Error("connection panicked", "state", c.state.String(), "panic", rec)
		}
		c.closeWriteAndWait()
	}()

	for c.state != stateClosed {
		c.state = c.step(ctx)
	}
}

// step performs the work of the current state and returns the next one.
func (c *conn) step(ctx context.Context) connState {
	switch c.state {
	case stateReadRequestLine:
		return c.readRequestLine()
	case stateReadHeaders:
		return c.readHeaders()
	case stateAdmission:
		return c.admit()
	case stateReadBody:
		return c.readBody()
	case stateDispatch:
		return c.dispatch(ctx)
	case stateWriteResponse:
		return c.writeResponse()
	default:
		return stateClosed
	}
}

func (c *conn) readRequestLine() connState {
	if d := c.srv.readTimeout; d > 0 {
		_ = c.rwc.SetReadDeadline(time.Now().Add(d))
	}

	line, err := c.tp.ReadLine()
	if err != nil {
		if isNetError(err) {
			// Connected and left (or stalled) without sending a request.
			c.logger.Debug("no request line", "error", err)
			return stateClosed
		}
		c.logger.Debug("failed to read request line", "error", err)
		return c.reject(errMalformedRequest)
	}

	method, rest, ok1 := strings.Cut(line, " ")
	target, proto, ok2 := strings.Cut(rest, " ")
	if !ok1 || !ok2 || method == "" || target == "" || !strings.HasPrefix(proto, "HTTP/1.") {
		c.logger.Debug("malformed request line", "line", line)
		return c.reject(errMalformedRequest)
	}
	c.req.method, c.req.target, c.req.proto = method, target, proto
	return stateReadHeaders
}

func (c *conn) readHeaders() connState {
	header, err := c.tp.ReadMIMEHeader()
	if err != nil {
		c.logger.Debug("failed to read headers", "error", err)
		if isNetError(err) {
			return stateClosed
		}
		return c.reject(errMalformedRequest)
	}
	c.req.header = header
	c.lr.remain = math.MaxInt64

	hosts := header.Values("Host")
	if len(hosts) > 1 {
		return c.reject(errMalformedRequest)
	}
	host := ""
	if len(hosts) == 1 {
		host = hosts[0]
	}
	if !c.srv.hosts.match(host, len(hosts) == 1) {
		c.logger.Debug("host not whitelisted", "host", host)
		return c.reject(errHostNotAllowed)
	}

	origins := header.Values("Origin")
	origin := ""
	if len(origins) > 0 {
		origin = origins[0]
	}
	if allowed, ok := c.srv.cors.AllowedOrigin(origin, len(origins) > 0); ok {
		c.cors = corsHeaders(allowed)
	}
	return stateAdmission
}

func (c *conn) admit() connState {
	contentTypes := c.req.header.Values("Content-Type")
	contentType := ""
	if len(contentTypes) > 0 {
		contentType = contentTypes[0]
	}
	if e := checkRequest(c.req.method, contentType, len(contentTypes) > 0, c.srv.strictContentType); e != nil {
		return c.reject(e)
	}

	if e := c.parseFraming(); e != nil {
		return c.reject(e)
	}

	if strings.EqualFold(c.req.header.Get("Expect"), "100-continue") {
		if _, err := io.WriteString(c.rwc, "HTTP/1.1 100 Continue\r\n\r\n"); err != nil {
			c.logger.Debug("failed to send 100 Continue", "error", err)
			return stateClosed
		}
	}
	return stateReadBody
}

// parseFraming determines how the body is delimited.
func (c *conn) parseFraming() *admissionError {
	te := c.req.header.Values("Transfer-Encoding")
	cl := c.req.header.Values("Content-Length")

	if len(te) > 0 {
		if len(cl) > 0 || len(te) != 1 || !strings.EqualFold(strings.TrimSpace(te[0]), "chunked") {
			return errMalformedRequest
		}
		c.req.chunked = true
		return nil
	}

	switch len(cl) {
	case 0:
		c.req.contentLength = 0
	default:
		for _, v := range cl[1:] {
			if v != cl[0] {
				return errMalformedRequest
			}
		}
		n, err := strconv.ParseInt(strings.TrimSpace(cl[0]), 10, 64)
		if err != nil || n < 0 {
			return errMalformedRequest
		}
		c.req.contentLength = n
	}
	if c.req.contentLength > c.srv.maxBodyBytes {
		return errBodyTooLarge
	}
	return nil
}

func (c *conn) readBody() connState {
	var (
		body []byte
		err  error
	)
	if c.req.chunked {
		body, err = io.ReadAll(io.LimitReader(httputil.NewChunkedReader(c.br), c.srv.maxBodyBytes+1))
		if err == nil && int64(len(body)) > c.srv.maxBodyBytes {
			return c.reject(errBodyTooLarge)
		}
	} else {
		body = make([]byte, c.req.contentLength)
		_, err = io.ReadFull(c.br, body)
	}
	if err != nil {
		if c.req.chunked && !isNetError(err) {
			return c.reject(errMalformedRequest)
		}
		c.logger.Debug("failed to read body", "error", err)
		return stateClosed
	}

	_ = c.rwc.SetReadDeadline(time.Time{})
	c.req.body = body
	return stateDispatch
}

// dispatch runs the JSON-RPC layer while watching the peer. A peer that
// disconnects cancels the dispatch and the response is not written.
func (c *conn) dispatch(ctx context.Context) connState {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	watchDone := make(chan struct{})
	go c.watchPeer(cancel, watchDone)

	payload := c.srv.dispatcher.Process(ctx, c.req.body)

	_ = c.rwc.SetReadDeadline(aLongTimeAgo)
	<-watchDone
	_ = c.rwc.SetReadDeadline(time.Time{})

	if c.peerGone.Load() {
		c.logger.Debug("peer disconnected before response", "body_digest", bodyDigest(c.req.body))
		return stateClosed
	}

	c.resp = rpcResponse(payload, c.cors)
	return stateWriteResponse
}

// watchPeer reads and discards input until the read fails. Failures other
// than the abort deadline mean the peer is gone, except a clean EOF on a
// connection that can be half-closed: the peer has only closed its write
// side and still waits for the response, so the dispatch goes on and the
// write reports whether anyone is left to read it.
func (c *conn) watchPeer(cancel context.CancelFunc, done chan<- struct{}) {
	defer close(done)
	buf := make([]byte, 512)
	for {
		_, err := c.br.Read(buf)
		if err == nil {
			continue
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return
		}
		if errors.Is(err, io.EOF) && c.halfClosable() {
			c.logger.Debug("peer closed its write side during dispatch")
			return
		}
		c.peerGone.Store(true)
		cancel()
		return
	}
}

// halfClosable reports whether the underlying connection supports
// CloseWrite, as TCP and Unix sockets do.
func (c *conn) halfClosable() bool {
	_, ok := c.rwc.(interface{ CloseWrite() error })
	return ok
}

func (c *conn) writeResponse() connState {
	err := writeResponse(c.rwc, c.resp.status, c.resp.headers, c.resp.payload)
	elapsed := time.Since(c.start)
	c.srv.metrics.observeRequest(c.resp.status, elapsed)

	if err != nil {
		c.logger.Debug("failed to write response", "error", err)
		return stateClosed
	}
	c.logger.Debug("request handled",
		"method", c.req.method,
		"status", c.resp.status,
		"duration", elapsed,
		"body_bytes", len(c.req.body),
		"body_digest", bodyDigest(c.req.body),
	)
	return stateClosed
}

// reject prepares an admission failure and skips straight to writing it.
func (c *conn) reject(e *admissionError) connState {
	c.srv.metrics.observeRejection(e.reason)
	c.resp = admissionResponse(e)
	return stateWriteResponse
}

// closeWriteAndWait half-closes TCP connections and discards unread input
// for a bounded time so the response is not destroyed by a reset, then
// closes the socket.
func (c *conn) closeWriteAndWait() {
	if cw, ok := c.rwc.(interface{ CloseWrite() error }); ok {
		if err := cw.CloseWrite(); err == nil {
			_ = c.rwc.SetReadDeadline(time.Now().Add(drainTimeout))
			_, _ = io.CopyN(io.Discard, c.rwc, drainLimit)
		}
	}
	if err := c.rwc.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		c.logger.Debug("failed to close connection", "error", err)
	}
}

func isNetError(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed)
}

// bodyDigest identifies a body in logs without logging its content.
func bodyDigest(body []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(body))
}

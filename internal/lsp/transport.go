package lsp

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// Transport frames JSON-RPC 2.0 messages over a byte stream using the LSP
// base protocol: a Content-Length header, a blank line, then the UTF-8 JSON
// body. It owns encoding and decoding only; correlation and dispatch live in
// the Mux, process lifetime in the Process.
type Transport struct {
	reader *bufio.Reader

	writeMu sync.Mutex
	writer  io.Writer

	closer io.Closer
	closed atomic.Bool
}

// Request represents an outgoing JSON-RPC request or notification.
// A zero ID with omitempty makes it a notification on the wire.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Response represents an outgoing JSON-RPC response (for server-initiated
// requests that require a reply). The id is kept as raw JSON so a string id
// from the server is echoed back byte for byte.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result"`
	Error   *RPCError       `json:"error,omitempty"`
}

// NewTransport creates a transport over the given streams. The closer, if
// non-nil, is closed along with the transport (typically the child's stdin).
func NewTransport(r io.Reader, w io.Writer, c io.Closer) *Transport {
	return &Transport{
		reader: bufio.NewReaderSize(r, 64*1024),
		writer: w,
		closer: c,
	}
}

// WriteMessage writes one framed message. Concurrent writers are serialized
// so frames never interleave.
func (t *Transport) WriteMessage(msg any) error {
	if t.closed.Load() {
		return ErrBackendDisconnected
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(data))

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if _, err := io.WriteString(t.writer, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := t.writer.Write(data); err != nil {
		return fmt.Errorf("write body: %w", err)
	}

	return nil
}

// ReadMessage reads a single framed message body. It returns io.EOF when the
// stream closes and ErrFraming when the header block is malformed; framing
// errors are fatal to the whole channel, not recoverable per-message.
func (t *Transport) ReadMessage() (json.RawMessage, error) {
	contentLength := -1
	for {
		line, err := t.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF && line == "" {
				return nil, io.EOF
			}
			if err == io.EOF || err == io.ErrClosedPipe {
				return nil, io.EOF
			}
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break // end of headers
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("%w: header %q", ErrFraming, line)
		}
		if strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil || n < 0 {
				return nil, fmt.Errorf("%w: bad Content-Length %q", ErrFraming, value)
			}
			contentLength = n
		}
		// Content-Type and other headers are ignored.
	}

	if contentLength < 0 {
		return nil, fmt.Errorf("%w: missing Content-Length header", ErrFraming)
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(t.reader, body); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read body: %w", err)
	}

	return body, nil
}

// Close closes the transport. Idempotent.
func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	if t.closer != nil {
		return t.closer.Close()
	}
	return nil
}

// IsClosed reports whether Close has been called.
func (t *Transport) IsClosed() bool {
	return t.closed.Load()
}

package wire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/xtxerr/scopedb/internal/errors"
)

// DefaultMaxMessageSize limits envelope size to prevent OOM on malformed
// or hostile input.
const DefaultMaxMessageSize = 16 * 1024 * 1024

// Reader reads length-delimited envelopes from an io.Reader.
// It is safe for concurrent use.
type Reader struct {
	r       *bufio.Reader
	mu      sync.Mutex
	maxSize int
}

// NewReader creates a Reader wrapping the given io.Reader.
func NewReader(r io.Reader) *Reader {
	return NewReaderSize(r, DefaultMaxMessageSize)
}

// NewReaderSize creates a Reader with a custom message size limit.
func NewReaderSize(r io.Reader, maxSize int) *Reader {
	if maxSize <= 0 {
		maxSize = DefaultMaxMessageSize
	}
	return &Reader{r: bufio.NewReader(r), maxSize: maxSize}
}

// Read reads and unmarshals the next envelope.
// Returns ErrMessageTooLarge if the frame exceeds the size limit.
func (r *Reader) Read() (*Envelope, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	size, err := binary.ReadUvarint(r.r)
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read frame length: %w", err)
	}
	if size > uint64(r.maxSize) {
		return nil, fmt.Errorf("%w: frame of %d bytes (limit %d)",
			errors.ErrMessageTooLarge, size, r.maxSize)
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return nil, fmt.Errorf("read frame body: %w", err)
	}

	env, err := Unmarshal(buf)
	if err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

// Writer writes length-delimited envelopes to an io.Writer.
// It is safe for concurrent use.
type Writer struct {
	w  io.Writer
	mu sync.Mutex
}

// NewWriter creates a Writer wrapping the given io.Writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write marshals and writes an envelope with length prefix.
func (w *Writer) Write(env *Envelope) error {
	body := env.Marshal()

	w.mu.Lock()
	defer w.mu.Unlock()

	frame := protowire.AppendVarint(nil, uint64(len(body)))
	frame = append(frame, body...)
	if _, err := w.w.Write(frame); err != nil {
		return fmt.Errorf("write envelope: %w", err)
	}
	return nil
}

// Conn combines Reader and Writer for bidirectional communication.
type Conn struct {
	*Reader
	*Writer
}

// NewConn creates a Conn from an io.ReadWriter (e.g., net.Conn).
func NewConn(rw io.ReadWriter) *Conn {
	return &Conn{
		Reader: NewReader(rw),
		Writer: NewWriter(rw),
	}
}

package transport

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/harborhq/harbor-helper/pkg/harbor"
)

// MaxMessageBytes bounds one native-messaging frame's JSON payload to
// roughly 1 MiB, matching the browser's own native-messaging limit.
const MaxMessageBytes = 1 << 20

// FrameReader reads length-prefixed JSON frames: a 4-byte little-endian
// byte count followed by exactly that many bytes of UTF-8 JSON.
type FrameReader struct {
	r   io.Reader
	max int
}

// NewFrameReader creates a frame reader over r with the default max
// message size. Pass maxBytes <= 0 to use MaxMessageBytes.
func NewFrameReader(r io.Reader, maxBytes int) *FrameReader {
	if maxBytes <= 0 {
		maxBytes = MaxMessageBytes
	}
	return &FrameReader{r: r, max: maxBytes}
}

// ReadFrame reads one frame and returns its raw JSON bytes. io.EOF signals
// a clean shutdown (the helper loop breaks). A length prefix exceeding the
// configured maximum returns ErrMessageTooLarge without consuming the
// frame's body, since the body cannot be trusted at that point — the
// caller should treat this as fatal for the connection.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(fr.r, lenBuf[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, harbor.NewError(harbor.ErrInvalidMessage, "truncated length prefix")
		}
		return nil, err
	}

	n := binary.LittleEndian.Uint32(lenBuf[:])
	if int(n) > fr.max {
		return nil, harbor.NewError(harbor.ErrMessageTooLarge, fmt.Sprintf("frame of %d bytes exceeds limit of %d", n, fr.max))
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(fr.r, body); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, harbor.NewError(harbor.ErrInvalidMessage, "truncated frame body")
		}
		return nil, err
	}
	return body, nil
}

// ReadRequest reads one frame and decodes it as a Request. Malformed JSON
// surfaces as ErrInvalidMessage rather than the raw json error, so the
// helper loop can reply with the correct wire-level error code.
func (fr *FrameReader) ReadRequest() (*Request, error) {
	body, err := fr.ReadFrame()
	if err != nil {
		return nil, err
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, harbor.Wrap(harbor.ErrInvalidMessage, "decode request", err)
	}
	return &req, nil
}

// FrameWriter writes length-prefixed JSON frames to the paired stream.
type FrameWriter struct {
	w io.Writer
}

// NewFrameWriter creates a frame writer over w.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

// WriteFrame writes one frame's length prefix and body.
func (fw *FrameWriter) WriteFrame(body []byte) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := fw.w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("write frame length: %w", err)
	}
	if _, err := fw.w.Write(body); err != nil {
		return fmt.Errorf("write frame body: %w", err)
	}
	return nil
}

// WriteResponse marshals and writes a terminal response frame.
func (fw *FrameWriter) WriteResponse(resp Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	return fw.WriteFrame(data)
}

// WriteStreamEvent marshals and writes one stream event frame.
func (fw *FrameWriter) WriteStreamEvent(event StreamEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal stream event: %w", err)
	}
	return fw.WriteFrame(data)
}

package transport

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/harborhq/harbor-helper/pkg/harbor"
)

func TestFrameWriterReader_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewFrameWriter(&buf)

	resp := Response{Type: TypeSessionPrompt, RequestID: "req-1", OK: true, Result: []byte(`{"text":"hi"}`)}
	if err := w.WriteResponse(resp); err != nil {
		t.Fatalf("WriteResponse: %v", err)
	}

	r := NewFrameReader(&buf, 0)
	body, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if len(body) == 0 {
		t.Fatal("expected non-empty frame body")
	}
}

func TestFrameReader_ReadRequest(t *testing.T) {
	var buf bytes.Buffer
	w := NewFrameWriter(&buf)
	payload := []byte(`{"prompt":"hello"}`)
	data := mustMarshalRequest(t, Request{Type: TypeSessionPrompt, RequestID: "req-2", Payload: payload})
	if err := w.WriteFrame(data); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	r := NewFrameReader(&buf, 0)
	req, err := r.ReadRequest()
	if err != nil {
		t.Fatalf("ReadRequest: %v", err)
	}
	if req.Type != TypeSessionPrompt || req.RequestID != "req-2" {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestFrameReader_MessageTooLarge(t *testing.T) {
	var buf bytes.Buffer
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], 100)
	buf.Write(lenBuf[:])
	buf.Write(make([]byte, 100))

	r := NewFrameReader(&buf, 10)
	_, err := r.ReadFrame()
	if err == nil {
		t.Fatal("expected error for oversized frame")
	}
	if harbor.CodeOf(err) != harbor.ErrMessageTooLarge {
		t.Fatalf("expected ErrMessageTooLarge, got %v", harbor.CodeOf(err))
	}
}

func TestFrameReader_InvalidJSON(t *testing.T) {
	var buf bytes.Buffer
	w := NewFrameWriter(&buf)
	if err := w.WriteFrame([]byte("not json")); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	r := NewFrameReader(&buf, 0)
	_, err := r.ReadRequest()
	if harbor.CodeOf(err) != harbor.ErrInvalidMessage {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
}

func TestFrameReader_EOFOnEmptyStream(t *testing.T) {
	r := NewFrameReader(bytes.NewReader(nil), 0)
	_, err := r.ReadFrame()
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestFrameReader_TruncatedLengthPrefix(t *testing.T) {
	r := NewFrameReader(bytes.NewReader([]byte{1, 2}), 0)
	_, err := r.ReadFrame()
	if harbor.CodeOf(err) != harbor.ErrInvalidMessage {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
}

func mustMarshalRequest(t *testing.T, req Request) []byte {
	t.Helper()
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return data
}

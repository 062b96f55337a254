package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/harborhq/harbor-helper/internal/transport"
	"github.com/harborhq/harbor-helper/pkg/harbor"
)

// Serve runs the native helper's main loop: read one framed Request at a
// time from r, dispatch it concurrently (so a slow agent.run never blocks
// a cheap catalog_search arriving after it), and write whatever frames
// that dispatch produces back to w. Writes are serialized through a
// single mutex since responses and stream events can arrive out of
// request order.
//
// Serve returns nil on a graceful EOF (the extension closed its end of
// the pipe) once every in-flight request has finished. A message_too_large
// framing fault is unrecoverable — the length prefix was already consumed
// on a frame whose body cannot be trusted — so Serve writes one fatal
// error response and returns. Any other non-EOF read error propagates to
// the caller as-is.
func Serve(ctx context.Context, rt *Router, r io.Reader, w io.Writer) error {
	reader := transport.NewFrameReader(r, 0)
	writer := transport.NewFrameWriter(w)
	var writeMu sync.Mutex

	writeFrame := func(write func() error) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return write()
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		req, err := reader.ReadRequest()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}

			var herr *harbor.Error
			if errors.As(err, &herr) {
				if herr.Code == harbor.ErrMessageTooLarge {
					_ = writeFrame(func() error {
						return writer.WriteResponse(transport.NewErrorResponse("", herr))
					})
					return herr
				}
				// invalid_message: the frame body was read in full, the
				// stream stays in sync, so reply and keep serving.
				_ = writeFrame(func() error {
					return writer.WriteResponse(transport.NewErrorResponse("", herr))
				})
				continue
			}

			return err
		}

		wg.Add(1)
		go func(req *transport.Request) {
			defer wg.Done()
			serveOne(ctx, rt, req, writer, &writeMu)
		}(req)
	}
}

// serveOne dispatches a single request and writes its stream events (if
// any) followed by its terminal response.
func serveOne(ctx context.Context, rt *Router, req *transport.Request, writer *transport.FrameWriter, writeMu *sync.Mutex) {
	emit := func(event any) error {
		data, err := json.Marshal(event)
		if err != nil {
			return err
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		return writer.WriteStreamEvent(transport.StreamEvent{
			Type:      req.Type,
			RequestID: req.RequestID,
			Event:     data,
		})
	}

	resp := rt.Dispatch(ctx, req, emit)

	writeMu.Lock()
	defer writeMu.Unlock()
	if err := writer.WriteResponse(resp); err != nil {
		rt.deps.logger().Error("write response failed", "request_id", req.RequestID, "error", err)
	}
}

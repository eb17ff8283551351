package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// NoDataNotice is delivered in place of an empty stream.
const NoDataNotice = "\n\n⚠️ No response received. Please try again."

const readBufferSize = 4096

// StreamDelta represents a single chunk from a streaming response.
type StreamDelta struct {
	// Token is the text fragment.
	Token string
	// Done is true when the stream completed normally.
	Done bool
	// Err is non-nil if the call failed.
	Err error
}

// Stream POSTs params to endpoint and reads the response as
// newline-separated `data: {"chunk": "..."}` records. It calls onChunk with
// every decoded chunk, in order, on the calling goroutine, and returns after
// the body has been drained. onChunk blocks decoding while it runs.
//
// Errors are *ConnectionError, *QuotaExhaustedError or *ProtocolError; use
// OutcomeOf to classify them.
func (c *Client) Stream(ctx context.Context, endpoint string, params Params, onChunk func(string)) error {
	resp, err := c.do(ctx, http.MethodPost, endpoint, params, false)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	dec := newDecoder(onChunk)
	buf := make([]byte, readBufferSize)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			dec.feed(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return &ConnectionError{BaseURL: c.baseURL, Err: fmt.Errorf("stream interrupted: %w", err)}
		}
	}
	dec.flush()

	if dec.emitted == 0 {
		c.logger.Debug().Str("path", endpoint).Msg("stream closed without data")
		onChunk(NoDataNotice)
	}
	return nil
}

// StreamChan runs Stream in the background and delivers chunks over a
// channel. The channel ends with one Done or Err delta and is then closed.
func (c *Client) StreamChan(ctx context.Context, endpoint string, params Params) <-chan StreamDelta {
	ch := make(chan StreamDelta)
	go func() {
		defer close(ch)
		send := func(d StreamDelta) {
			select {
			case ch <- d:
			case <-ctx.Done():
			}
		}
		err := c.Stream(ctx, endpoint, params, func(chunk string) {
			send(StreamDelta{Token: chunk})
		})
		if err != nil {
			send(StreamDelta{Err: err})
			return
		}
		send(StreamDelta{Done: true})
	}()
	return ch
}

// CollectStream reads all tokens from a stream channel and returns the
// concatenated result.
func CollectStream(ch <-chan StreamDelta) (string, error) {
	var result string
	for delta := range ch {
		if delta.Err != nil {
			return result, delta.Err
		}
		result += delta.Token
	}
	return result, nil
}

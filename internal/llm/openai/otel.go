package openai

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bakkerme/social-agent/internal/config"
)

// traceMiddleware annotates the active span with response metadata and,
// when enabled, the captured request and response bodies.
func traceMiddleware(cfg config.OpenAIOTelConfig) option.Middleware {
	return func(req *http.Request, next option.MiddlewareNext) (*http.Response, error) {
		span := trace.SpanFromContext(req.Context())
		if cfg.CaptureBodies && span.IsRecording() && req.Body != nil {
			req.Body = newCaptureReadCloser(req.Body, cfg.MaxBodyBytes, func(body []byte, truncated bool) {
				recordBody(span, "input", body, truncated)
			})
		}

		res, err := next(req)
		if err != nil || res == nil {
			return res, err
		}
		if !span.IsRecording() {
			return res, nil
		}
		span.SetAttributes(attribute.Int("http.status_code", res.StatusCode))
		if cfg.CaptureBodies && res.Body != nil {
			res.Body = newCaptureReadCloser(res.Body, cfg.MaxBodyBytes, func(body []byte, truncated bool) {
				recordBody(span, "output", body, truncated)
			})
		}
		return res, nil
	}
}

func recordBody(span trace.Span, direction string, body []byte, truncated bool) {
	value := bytesToString(body)
	span.SetAttributes(
		attribute.String(direction+".mime_type", "application/json"),
		attribute.String(direction+".value", value),
		attribute.Bool(direction+".truncated", truncated),
	)
}

// captureReadCloser copies up to maxBytes of the stream and reports it on Close.
// A negative maxBytes captures everything; zero captures nothing.
type captureReadCloser struct {
	rc        io.ReadCloser
	maxBytes  int
	buf       bytes.Buffer
	truncated bool
	once      sync.Once
	onClose   func([]byte, bool)
}

func newCaptureReadCloser(rc io.ReadCloser, maxBytes int, onClose func([]byte, bool)) io.ReadCloser {
	if rc == nil {
		return rc
	}
	return &captureReadCloser{rc: rc, maxBytes: maxBytes, onClose: onClose}
}

func (c *captureReadCloser) Read(p []byte) (int, error) {
	n, err := c.rc.Read(p)
	if n > 0 && c.maxBytes != 0 {
		chunk := p[:n]
		if c.maxBytes > 0 {
			remaining := c.maxBytes - c.buf.Len()
			if remaining < len(chunk) {
				c.truncated = true
				if remaining < 0 {
					remaining = 0
				}
				chunk = chunk[:remaining]
			}
		}
		_, _ = c.buf.Write(chunk)
	}
	return n, err
}

func (c *captureReadCloser) Close() error {
	c.once.Do(func() {
		if c.onClose != nil {
			c.onClose(c.buf.Bytes(), c.truncated)
		}
	})
	return c.rc.Close()
}

func bytesToString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return strings.ToValidUTF8(string(b), "�")
}

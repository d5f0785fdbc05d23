package probe

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/ttfr/internal/tracing"
)

// Response is the outcome of a probe that received a 2xx reply.
type Response struct {
	StatusCode int
	Received   time.Time
}

// StatusError reports a reply outside the 2xx range.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("invalid status: %d", e.StatusCode)
}

// Options configure a Prober.
type Options struct {
	Target    string
	Timeout   time.Duration // per-probe client timeout (0 means none)
	Tracer    trace.Tracer  // optional; spans are skipped when nil
	Propagate bool          // inject W3C trace headers
	OnFailure func(error)   // receives swallowed transport failures
}

// Prober issues GET probes against a single target with its own client.
type Prober struct {
	client    *http.Client
	target    string
	tracer    trace.Tracer
	propagate bool
	onFailure func(error)
}

func New(opts Options) (*Prober, error) {
	target := strings.TrimSpace(opts.Target)
	if target == "" {
		return nil, errors.New("target URL is required")
	}
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid target URL %q: %w", target, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid target URL %q: scheme must be http or https", target)
	}

	return &Prober{
		client:    NewClient(opts.Timeout),
		target:    u.String(),
		tracer:    opts.Tracer,
		propagate: opts.Propagate,
		onFailure: opts.OnFailure,
	}, nil
}

// Send issues one asynchronous GET. onSuccess runs on the probe goroutine
// once a 2xx reply has been fully read. The returned channel yields exactly
// one value when the probe completes: nil on success or on a swallowed
// transport failure, *StatusError for a non-2xx reply.
func (p *Prober) Send(ctx context.Context, onSuccess func(Response)) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- p.probe(ctx, onSuccess)
	}()
	return done
}

// Close releases idle connections held by the prober's client.
func (p *Prober) Close() {
	if p == nil || p.client == nil {
		return
	}
	p.client.CloseIdleConnections()
}

func (p *Prober) probe(ctx context.Context, onSuccess func(Response)) (resultErr error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if p.tracer != nil {
		var span trace.Span
		ctx, span = tracing.StartProbeSpan(ctx, p.tracer, p.target)
		defer func() {
			var attrs []attribute.KeyValue
			var statusErr *StatusError
			if errors.As(resultErr, &statusErr) {
				attrs = append(attrs, attribute.Int("http.response.status_code", statusErr.StatusCode))
			}
			tracing.EndSpan(span, resultErr, attrs...)
		}()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.target, nil)
	if err != nil {
		return err
	}
	if p.propagate {
		tracing.InjectHTTPHeaders(ctx, req.Header)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.fail(err)
		return nil
	}
	defer resp.Body.Close()

	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		p.fail(err)
		return nil
	}
	received := time.Now()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if onSuccess != nil {
		onSuccess(Response{StatusCode: resp.StatusCode, Received: received})
	}
	return nil
}

func (p *Prober) fail(err error) {
	if p.onFailure != nil {
		p.onFailure(err)
	}
}

// NewClient returns a client pinned to HTTP/1.1 with no h2 upgrade and no
// proxy, so a measured reply never includes protocol negotiation.
func NewClient(timeout time.Duration) *http.Client {
	if timeout < 0 {
		timeout = 0
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 nil,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     false,
		TLSNextProto:          map[string]func(string, *tls.Conn) http.RoundTripper{},
		MaxIdleConns:          4,
		MaxIdleConnsPerHost:   1,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

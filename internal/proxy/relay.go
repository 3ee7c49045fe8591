package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/Tanner253/ExtraHop-TakeHomeAssesment/internal/guard"
	"github.com/rs/zerolog"
)

// RelayOptions configures the upstream transport.
type RelayOptions struct {
	Upstream        string
	DialTimeout     time.Duration
	ResponseTimeout time.Duration
	IdleTimeout     time.Duration
}

// Relay forwards validated requests to the backend and streams the response
// back. Upstream failures answer 502 and are never retried.
type Relay struct {
	target *url.URL
	proxy  *httputil.ReverseProxy
	logger zerolog.Logger

	forwarded atomic.Int64
	failed    atomic.Int64
	canceled  atomic.Int64
}

// NewRelay builds a relay for the given upstream base URL.
func NewRelay(opts RelayOptions, logger zerolog.Logger) (*Relay, error) {
	target, err := url.Parse(opts.Upstream)
	if err != nil {
		return nil, fmt.Errorf("parsing upstream %q: %w", opts.Upstream, err)
	}
	if (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		return nil, fmt.Errorf("upstream %q must be an absolute http(s) URL", opts.Upstream)
	}

	r := &Relay{
		target: target,
		logger: logger.With().Str("component", "relay").Logger(),
	}

	rp := httputil.NewSingleHostReverseProxy(target)
	direct := rp.Director
	rp.Director = func(out *http.Request) {
		direct(out)
		reencodeBody(out)
	}
	rp.Transport = &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   orDefault(opts.DialTimeout, 5*time.Second),
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: orDefault(opts.ResponseTimeout, 30*time.Second),
		IdleConnTimeout:       orDefault(opts.IdleTimeout, 90*time.Second),
		MaxIdleConnsPerHost:   32,
		ExpectContinueTimeout: time.Second,
	}
	rp.FlushInterval = -1
	rp.ErrorHandler = r.handleError
	rp.ModifyResponse = func(*http.Response) error {
		r.forwarded.Add(1)
		return nil
	}
	r.proxy = rp
	return r, nil
}

// ServeHTTP relays the request upstream.
func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.proxy.ServeHTTP(w, req)
}

// reencodeBody replaces the body of POST, PUT and PATCH requests with the
// JSON encoding of the parsed body. Raw and multipart payloads are therefore
// not relayed byte for byte.
func reencodeBody(out *http.Request) {
	switch out.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return
	}
	d, ok := guard.DescriptorFrom(out.Context())
	if !ok || d.Body == nil {
		return
	}
	data, err := guard.SerializeBody(d.Body)
	if err != nil {
		return
	}
	out.Body = io.NopCloser(bytes.NewReader(data))
	out.ContentLength = int64(len(data))
	out.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
}

func (r *Relay) handleError(w http.ResponseWriter, req *http.Request, err error) {
	if errors.Is(req.Context().Err(), context.Canceled) {
		r.canceled.Add(1)
		r.logger.Debug().Str("path", req.URL.Path).Msg("client went away, upstream request canceled")
		return
	}
	r.failed.Add(1)
	r.logger.Warn().Err(err).
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Str("upstream", r.target.Host).
		Msg("upstream request failed")
	http.Error(w, "Bad Gateway", http.StatusBadGateway)
}

// Stats returns relay counters.
func (r *Relay) Stats() map[string]interface{} {
	return map[string]interface{}{
		"upstream":  r.target.String(),
		"forwarded": r.forwarded.Load(),
		"failed":    r.failed.Load(),
		"canceled":  r.canceled.Load(),
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

package guard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultMaxBodyBytes caps how much of a JSON or form body is read.
const DefaultMaxBodyBytes int64 = 10 << 20

// ErrBodyTooLarge is recorded on a descriptor whose body exceeds the cap.
var ErrBodyTooLarge = errors.New("request body too large")

// RequestDescriptor is the normalized view of a request that the validator
// inspects. It is built once per request and not modified afterwards.
type RequestDescriptor struct {
	ClientKey string
	Method    string
	Path      string
	RawTarget string // path and query as received
	Target    string // RawTarget, percent-decoded
	Body      any    // parsed JSON or form body; nil when absent
	Timestamp time.Time

	// Err is set when the target or body could not be decoded.
	Err error
}

// Inspectable renders the text the signature matcher runs over: the decoded
// target, a space, and the body serialized as JSON ("{}" when absent).
func (d *RequestDescriptor) Inspectable() (string, error) {
	body, err := SerializeBody(d.Body)
	if err != nil {
		return "", err
	}
	return d.Target + " " + string(body), nil
}

// SerializeBody encodes a parsed body as JSON without HTML escaping so that
// markup survives verbatim. A nil body encodes as {}.
func SerializeBody(body any) ([]byte, error) {
	if body == nil {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(body); err != nil {
		return nil, fmt.Errorf("serializing body: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// DescriptorBuilder turns HTTP requests into descriptors.
type DescriptorBuilder struct {
	MaxBodyBytes int64
	Clock        Clock
}

// Build reads and parses the request. JSON and form bodies are consumed and
// r.Body is replaced with the bytes read so later handlers can still see
// them; other content types are left unread. Decoding problems are recorded
// in the descriptor's Err rather than returned.
func (b DescriptorBuilder) Build(r *http.Request) *RequestDescriptor {
	now := time.Now
	if b.Clock != nil {
		now = b.Clock
	}
	raw := r.RequestURI
	if raw == "" {
		raw = r.URL.RequestURI()
	}
	d := &RequestDescriptor{
		ClientKey: ClientKey(r),
		Method:    r.Method,
		Path:      r.URL.Path,
		RawTarget: raw,
		Timestamp: now(),
	}

	target, err := url.PathUnescape(raw)
	if err != nil {
		d.Target = raw
		d.Err = fmt.Errorf("decoding target: %w", err)
		return d
	}
	d.Target = target

	body, err := b.parseBody(r)
	if err != nil {
		d.Err = err
		return d
	}
	d.Body = body
	return d
}

func (b DescriptorBuilder) parseBody(r *http.Request) (any, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" && mediaType != "application/x-www-form-urlencoded" {
		return nil, nil
	}

	limit := b.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, ErrBodyTooLarge
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	if mediaType == "application/json" {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		var body any
		if err := dec.Decode(&body); err != nil {
			return nil, fmt.Errorf("parsing JSON body: %w", err)
		}
		if dec.More() {
			return nil, errors.New("parsing JSON body: trailing data")
		}
		return body, nil
	}

	values, err := url.ParseQuery(string(data))
	if err != nil {
		return nil, fmt.Errorf("parsing form body: %w", err)
	}
	form := make(map[string]any, len(values))
	for k, v := range values {
		if len(v) == 1 {
			form[k] = v[0]
		} else {
			form[k] = v
		}
	}
	return form, nil
}

// ClientKey identifies the client by the host part of RemoteAddr.
func ClientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

type descriptorKey struct{}

// WithDescriptor attaches d to ctx.
func WithDescriptor(ctx context.Context, d *RequestDescriptor) context.Context {
	return context.WithValue(ctx, descriptorKey{}, d)
}

// DescriptorFrom returns the descriptor attached by WithDescriptor, if any.
func DescriptorFrom(ctx context.Context) (*RequestDescriptor, bool) {
	d, ok := ctx.Value(descriptorKey{}).(*RequestDescriptor)
	return d, ok
}

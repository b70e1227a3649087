package hostapi

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxHTTPTimeout = 120 * time.Second

// Request describes one outbound HTTP call.
type Request struct {
	Method  string // defaults to GET
	URL     string
	Headers map[string]string
	Body    string
	Timeout time.Duration // per-call timeout, the Host default if zero
}

// Response is the verbatim result of a request. Non-2xx statuses are
// returned normally; interpreting them is the caller's job.
type Response struct {
	Status  int
	Headers http.Header
	Body    string
}

// HTTPClient exposes the network capability. Redirects are never
// followed: a 3xx response is returned verbatim to the caller.
type HTTPClient struct {
	client         *http.Client
	defaultTimeout time.Duration
}

func newHTTPClient(defaultTimeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		defaultTimeout: defaultTimeout,
	}
}

// Do issues the request. Connection, DNS, and timeout failures surface
// as a NetworkError; response statuses never do.
func (c *HTTPClient) Do(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}
	if timeout > maxHTTPTimeout {
		timeout = maxHTTPTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if req.Body != "" {
		body = strings.NewReader(req.Body)
	}

	hr, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, networkErr("http.request", err)
	}
	for k, v := range req.Headers {
		hr.Header.Set(k, v)
	}

	resp, err := c.client.Do(hr)
	if err != nil {
		return nil, networkErr("http.request", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, networkErr("http.request", err)
	}

	return &Response{
		Status:  resp.StatusCode,
		Headers: resp.Header,
		Body:    string(data),
	}, nil
}

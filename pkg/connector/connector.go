package connector

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-table/pkg/config"
	"github.com/ajitpratap0/nebula-table/pkg/errors"
	"github.com/ajitpratap0/nebula-table/pkg/json"
	"github.com/ajitpratap0/nebula-table/pkg/logger"
	"github.com/ajitpratap0/nebula-table/pkg/metrics"
)

var tracer = otel.Tracer("github.com/ajitpratap0/nebula-table/pkg/connector")

// Status codes accepted by write requests when the caller passes none
var defaultWriteCodes = []int{http.StatusOK, http.StatusCreated, http.StatusAccepted, http.StatusNoContent}

// APIConnector issues single HTTP requests against a base URL and decodes
// the responses. It holds no per-request state and may be shared between
// goroutines once built.
type APIConnector struct {
	BaseURL       string
	Headers       map[string]string
	DataKey       string
	PaginationKey string

	username string
	password string
	basic    bool

	client *http.Client
	logger *zap.Logger
}

// Option configures an APIConnector
type Option func(*APIConnector)

// WithHeaders sets headers sent on every request
func WithHeaders(headers map[string]string) Option {
	return func(c *APIConnector) {
		for k, v := range headers {
			c.Headers[k] = v
		}
	}
}

// WithBasicAuth sends HTTP basic credentials on every request
func WithBasicAuth(username, password string) Option {
	return func(c *APIConnector) {
		c.username, c.password, c.basic = username, password, true
	}
}

// WithDataKey names the response key DataParse extracts. Dotted keys such
// as "result.items" walk nested objects.
func WithDataKey(key string) Option {
	return func(c *APIConnector) { c.DataKey = key }
}

// WithPaginationKey names the response key NextURL reads
func WithPaginationKey(key string) Option {
	return func(c *APIConnector) { c.PaginationKey = key }
}

// WithHTTPClient replaces the default client, whose timeout comes from the
// http.timeout setting
func WithHTTPClient(client *http.Client) Option {
	return func(c *APIConnector) { c.client = client }
}

// WithLogger sets the logger used for request logging. By default the
// global logger is used.
func WithLogger(l *zap.Logger) Option {
	return func(c *APIConnector) { c.logger = l }
}

// New creates an APIConnector for baseURL
func New(baseURL string, opts ...Option) *APIConnector {
	c := &APIConnector{
		BaseURL: baseURL,
		Headers: map[string]string{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: config.Current().HTTP.Timeout}
	}
	if c.logger != nil {
		c.logger = c.logger.With(zap.String("component", "api_connector"))
	}
	return c
}

// log returns the configured logger, or the global one tagged with the
// base URL when none was set
func (c *APIConnector) log(ctx context.Context) *zap.Logger {
	if c.logger != nil {
		return c.logger
	}
	return logger.WithContext(context.WithValue(ctx, logger.ConnectorKey, c.BaseURL)).
		With(zap.String("component", "api_connector"))
}

// Response is a raw HTTP response with the body read
type Response struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// JSON decodes the body. An empty body or a 204 yields nil; a body that is
// not JSON is returned as []byte.
func (r *Response) JSON() any {
	if r.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	v, err := json.DecodeValue(json.GetDecoder(bytes.NewReader(r.Body)))
	if err != nil {
		return r.Body
	}
	return v
}

// HTTPError is a response whose status was not accepted. Detail holds the
// decoded JSON body when there is one.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
	Detail     any
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// URL resolves path against BaseURL and adds params. Absolute http(s)
// URLs are used as they are.
func (c *APIConnector) URL(path string, params url.Values) (string, error) {
	raw := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		raw = strings.TrimRight(c.BaseURL, "/")
		if p := strings.TrimLeft(path, "/"); p != "" {
			raw += "/" + p
		}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeValue, "invalid request url").WithDetail("url", raw)
	}
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// encodeBody turns a request body into a reader and content type. Strings,
// byte slices and readers are sent as is, url.Values as a form, anything
// else as JSON.
func encodeBody(body any) (io.Reader, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case io.Reader:
		return b, "", nil
	case []byte:
		return bytes.NewReader(b), "", nil
	case string:
		return strings.NewReader(b), "", nil
	case url.Values:
		return strings.NewReader(b.Encode()), "application/x-www-form-urlencoded", nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, "", errors.Wrap(err, errors.ErrorTypeValue, "failed to encode request body")
	}
	return bytes.NewReader(data), "application/json", nil
}

// Request issues one request and reads the whole response. It does not
// check the status code.
func (c *APIConnector) Request(ctx context.Context, method, path string, params url.Values, body any) (*Response, error) {
	target, err := c.URL(path, params)
	if err != nil {
		return nil, err
	}
	reader, contentType, err := encodeBody(body)
	if err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "connector."+strings.ToLower(method),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.url", target),
		))
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValue, "failed to build request").WithDetail("url", target)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", config.Current().HTTP.UserAgent)
	for k, v := range c.Headers {
		req.Header.Set(k, v)
	}
	if c.basic {
		req.SetBasicAuth(c.username, c.password)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	timer := metrics.NewTimer()
	resp, err := c.client.Do(req)
	if err != nil {
		metrics.ObserveRequest(method, 0, timer.Stop())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, errors.Wrap(err, errors.ErrorTypeRequest, "request failed").
			WithDetail("method", method).
			WithDetail("url", target)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	elapsed := timer.Stop()
	metrics.ObserveRequest(method, resp.StatusCode, elapsed)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode >= http.StatusBadRequest {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, errors.Wrap(err, errors.ErrorTypeRequest, "failed to read response").
			WithDetail("url", target)
	}

	c.log(ctx).Debug("api request",
		zap.String("method", method),
		zap.String("url", target),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", elapsed))

	return &Response{URL: target, StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// ValidateResponse fails with a request error wrapping *HTTPError when the
// status is not accepted. No codes means any 2xx.
func ValidateResponse(method string, resp *Response, accepted ...int) error {
	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if len(accepted) > 0 {
		ok = false
		for _, code := range accepted {
			if resp.StatusCode == code {
				ok = true
				break
			}
		}
	}
	if ok {
		return nil
	}
	httpErr := &HTTPError{
		Method:     method,
		URL:        resp.URL,
		StatusCode: resp.StatusCode,
		Body:       resp.Body,
	}
	if v := resp.JSON(); v != nil {
		if _, raw := v.([]byte); !raw {
			httpErr.Detail = v
		}
	}
	return errors.Wrap(httpErr, errors.ErrorTypeRequest, "unexpected response status").
		WithDetail("status", resp.StatusCode)
}

func (c *APIConnector) do(ctx context.Context, method, path string, params url.Values, body any, accepted []int) (any, error) {
	resp, err := c.Request(ctx, method, path, params, body)
	if err != nil {
		return nil, err
	}
	if err := ValidateResponse(method, resp, accepted...); err != nil {
		return nil, err
	}
	return resp.JSON(), nil
}

// GetRequest issues a GET and returns the decoded body. Any 2xx is
// accepted.
func (c *APIConnector) GetRequest(ctx context.Context, path string, params url.Values) (any, error) {
	return c.do(ctx, http.MethodGet, path, params, nil, nil)
}

// PostRequest issues a POST. Without success codes, 200, 201, 202 and 204
// are accepted.
func (c *APIConnector) PostRequest(ctx context.Context, path string, params url.Values, body any, successCodes ...int) (any, error) {
	return c.do(ctx, http.MethodPost, path, params, body, writeCodes(successCodes))
}

// PutRequest issues a PUT, accepting codes like PostRequest
func (c *APIConnector) PutRequest(ctx context.Context, path string, params url.Values, body any, successCodes ...int) (any, error) {
	return c.do(ctx, http.MethodPut, path, params, body, writeCodes(successCodes))
}

// PatchRequest issues a PATCH, accepting codes like PostRequest
func (c *APIConnector) PatchRequest(ctx context.Context, path string, params url.Values, body any, successCodes ...int) (any, error) {
	return c.do(ctx, http.MethodPatch, path, params, body, writeCodes(successCodes))
}

// DeleteRequest issues a DELETE, accepting codes like PostRequest
func (c *APIConnector) DeleteRequest(ctx context.Context, path string, params url.Values, successCodes ...int) (any, error) {
	return c.do(ctx, http.MethodDelete, path, params, nil, writeCodes(successCodes))
}

func writeCodes(accepted []int) []int {
	if len(accepted) == 0 {
		return defaultWriteCodes
	}
	return accepted
}

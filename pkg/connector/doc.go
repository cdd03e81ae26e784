// Package connector provides APIConnector, a thin HTTP helper that vendor
// integrations compose with the table package.
//
// An APIConnector issues exactly one request per call. It resolves paths
// against a base URL, sends configured headers and credentials, checks the
// status code and decodes JSON bodies. There is no retry, rate limiting or
// circuit breaking at this layer; PollUntil covers job-style endpoints that
// must be checked until a result is ready.
//
// # Core Concepts
//
// Responses: GetRequest and the write methods return the decoded body. JSON
// numbers decode to int64 when integral and float64 otherwise. A 204 or an
// empty body decodes to nil, and a body that is not JSON is returned as
// []byte.
//
// Errors: a rejected status produces a request error wrapping *HTTPError,
// which carries the status code, raw body and decoded JSON detail.
//
//	var httpErr *connector.HTTPError
//	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
//		...
//	}
//
// Pagination: DataKey and PaginationKey name the response fields holding the
// page data and the next-page URL. GetTable follows pages until NextURL is
// empty.
//
// Credentials: config.CheckEnv resolves a credential from an argument or an
// environment variable, failing with a config error when a required one is
// missing.
//
// # Example Usage
//
//	token, err := config.CheckEnv("EXAMPLE_API_TOKEN", "", false)
//	if err != nil {
//		return err
//	}
//	api := connector.New("https://api.example.com/v1",
//		connector.WithHeaders(map[string]string{"Authorization": "Bearer " + token}),
//		connector.WithDataKey("data"),
//		connector.WithPaginationKey("links.next"))
//
//	tbl, err := api.GetTable(ctx, "people", url.Values{"per_page": {"100"}})
//
// Every request is recorded in the nebula_table_http_requests_total counter
// and wrapped in an OpenTelemetry client span.
package connector

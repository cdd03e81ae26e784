package connector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/nebula-table/pkg/errors"
	"github.com/ajitpratap0/nebula-table/pkg/json"
	"github.com/ajitpratap0/nebula-table/pkg/metrics"
	"github.com/ajitpratap0/nebula-table/pkg/testutil"
)

func newTestConnector(t *testing.T, baseURL string, opts ...Option) *APIConnector {
	t.Helper()
	return New(baseURL, append([]Option{WithLogger(testutil.TestLogger(t))}, opts...)...)
}

func jsonHandler(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}
}

func TestURL(t *testing.T) {
	tests := []struct {
		name   string
		base   string
		path   string
		params url.Values
		want   string
	}{
		{"relative", "https://api.example.com/v1", "people", nil, "https://api.example.com/v1/people"},
		{"slashes", "https://api.example.com/v1/", "/people", nil, "https://api.example.com/v1/people"},
		{"empty path", "https://api.example.com/v1", "", nil, "https://api.example.com/v1"},
		{"params", "https://api.example.com", "search", url.Values{"q": {"x y"}}, "https://api.example.com/search?q=x+y"},
		{"absolute", "https://api.example.com", "http://other.test/x?a=1", url.Values{"b": {"2"}}, "http://other.test/x?a=1&b=2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestConnector(t, tt.base)
			got, err := c.URL(tt.path, tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetRequest(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		jsonHandler(http.StatusOK, `{"items":[{"id":1,"score":2.5}]}`)(w, r)
	}))
	defer srv.Close()

	c := newTestConnector(t, srv.URL,
		WithHeaders(map[string]string{"X-Api-Key": "secret"}),
		WithBasicAuth("user", "pass"))
	resp, err := c.GetRequest(context.Background(), "items", url.Values{"page": {"1"}})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"items": []any{map[string]any{"id": int64(1), "score": 2.5}},
	}, resp)
	require.NotNil(t, got)
	assert.Equal(t, "/items", got.URL.Path)
	assert.Equal(t, "1", got.URL.Query().Get("page"))
	assert.Equal(t, "secret", got.Header.Get("X-Api-Key"))
	assert.Equal(t, "application/json", got.Header.Get("Accept"))
	user, pass, ok := got.BasicAuth()
	assert.True(t, ok)
	assert.Equal(t, "user", user)
	assert.Equal(t, "pass", pass)
}

func TestPostRequestBodies(t *testing.T) {
	tests := []struct {
		name        string
		body        any
		contentType string
		want        string
	}{
		{"json", map[string]any{"name": "Bob"}, "application/json", `{"name":"Bob"}`},
		{"form", url.Values{"a": {"1"}}, "application/x-www-form-urlencoded", "a=1"},
		{"raw string", "plain", "", "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var contentType, body string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				contentType = r.Header.Get("Content-Type")
				data, _ := io.ReadAll(r.Body)
				body = string(data)
				jsonHandler(http.StatusCreated, `{"ok":true}`)(w, r)
			}))
			defer srv.Close()

			resp, err := newTestConnector(t, srv.URL).PostRequest(context.Background(), "people", nil, tt.body)
			require.NoError(t, err)
			assert.Equal(t, map[string]any{"ok": true}, resp)
			assert.Equal(t, tt.contentType, contentType)
			assert.Equal(t, tt.want, body)
		})
	}
}

func TestWriteSuccessCodes(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(http.StatusCreated, `{}`))
	defer srv.Close()
	c := newTestConnector(t, srv.URL)
	ctx := context.Background()

	_, err := c.PutRequest(ctx, "x", nil, map[string]any{})
	assert.NoError(t, err)

	_, err = c.PatchRequest(ctx, "x", nil, map[string]any{}, http.StatusOK)
	assert.True(t, errors.IsType(err, errors.ErrorTypeRequest))

	_, err = c.DeleteRequest(ctx, "x", nil, http.StatusCreated)
	assert.NoError(t, err)
}

func TestNoContentAndRawBodies(t *testing.T) {
	t.Run("no content", func(t *testing.T) {
		srv := httptest.NewServer(jsonHandler(http.StatusNoContent, ""))
		defer srv.Close()
		resp, err := newTestConnector(t, srv.URL).DeleteRequest(context.Background(), "x", nil)
		require.NoError(t, err)
		assert.Nil(t, resp)
	})
	t.Run("not json", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			fmt.Fprint(w, "hello")
		}))
		defer srv.Close()
		resp, err := newTestConnector(t, srv.URL).GetRequest(context.Background(), "x", nil)
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), resp)
	})
}

func TestHTTPError(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(http.StatusNotFound, `{"error":"missing"}`))
	defer srv.Close()

	_, err := newTestConnector(t, srv.URL).GetRequest(context.Background(), "people/9", nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeRequest))

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Equal(t, http.MethodGet, httpErr.Method)
	assert.Equal(t, srv.URL+"/people/9", httpErr.URL)
	assert.Equal(t, map[string]any{"error": "missing"}, httpErr.Detail)
	assert.JSONEq(t, `{"error":"missing"}`, string(httpErr.Body))
	assert.Contains(t, httpErr.Error(), "404 Not Found")
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(http.StatusOK, `{}`))
	target := srv.URL
	srv.Close()

	before := promtest.ToFloat64(metrics.HTTPRequests.WithLabelValues(http.MethodGet, "error"))
	_, err := newTestConnector(t, target).GetRequest(context.Background(), "x", nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeRequest))
	after := promtest.ToFloat64(metrics.HTTPRequests.WithLabelValues(http.MethodGet, "error"))
	assert.Equal(t, before+1, after)
}

func TestRequestMetrics(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(http.StatusAccepted, `{}`))
	defer srv.Close()

	counter := metrics.HTTPRequests.WithLabelValues(http.MethodPost, "202")
	before := promtest.ToFloat64(counter)
	_, err := newTestConnector(t, srv.URL).PostRequest(context.Background(), "jobs", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, before+1, promtest.ToFloat64(counter))
}

func TestValidateResponse(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		accepted []int
		ok       bool
	}{
		{"any 2xx", http.StatusAccepted, nil, true},
		{"3xx rejected", http.StatusFound, nil, false},
		{"listed", http.StatusCreated, []int{http.StatusCreated}, true},
		{"not listed", http.StatusOK, []int{http.StatusCreated}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateResponse(http.MethodGet, &Response{URL: "u", StatusCode: tt.status}, tt.accepted...)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.IsType(err, errors.ErrorTypeRequest))
			}
		})
	}
}

func TestDataParseAndNextURL(t *testing.T) {
	c := newTestConnector(t, "", WithDataKey("result.items"), WithPaginationKey("links.next"))
	tests := []struct {
		name     string
		resp     any
		wantData any
		wantNext string
	}{
		{
			name: "nested",
			resp: map[string]any{
				"result": map[string]any{"items": []any{int64(1)}},
				"links":  map[string]any{"next": "page2"},
			},
			wantData: []any{int64(1)},
			wantNext: "page2",
		},
		{
			name:     "absent keys",
			resp:     map[string]any{"other": true},
			wantData: map[string]any{"other": true},
		},
		{
			name:     "next is null",
			resp:     map[string]any{"links": map[string]any{"next": nil}},
			wantData: map[string]any{"links": map[string]any{"next": nil}},
		},
		{
			name:     "next is false",
			resp:     map[string]any{"links": map[string]any{"next": false}},
			wantData: map[string]any{"links": map[string]any{"next": false}},
		},
		{
			name:     "list response",
			resp:     []any{"a"},
			wantData: []any{"a"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantData, c.DataParse(tt.resp))
			assert.Equal(t, tt.wantNext, c.NextURL(tt.resp))
		})
	}

	plain := newTestConnector(t, "")
	resp := map[string]any{"next": "x"}
	assert.Equal(t, resp, plain.DataParse(resp))
	assert.Empty(t, plain.NextURL(resp))
}

func TestConvertToTable(t *testing.T) {
	tests := []struct {
		name    string
		data    any
		rows    int
		wantErr bool
	}{
		{"nil", nil, 0, false},
		{"object", map[string]any{"id": int64(1)}, 1, false},
		{"list", []any{map[string]any{"id": int64(1)}, map[string]any{"id": int64(2)}}, 2, false},
		{"scalar", "text", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := ConvertToTable(tt.data)
			if tt.wantErr {
				assert.True(t, errors.IsType(err, errors.ErrorTypeValue))
				return
			}
			require.NoError(t, err)
			n, err := tbl.NumRows()
			require.NoError(t, err)
			assert.Equal(t, tt.rows, n)
		})
	}
}

func TestGetTablePaginates(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("page") {
		case "":
			assert.Equal(t, "10", r.URL.Query().Get("limit"))
			fmt.Fprintf(w, `{"data":[{"id":1},{"id":2}],"meta":{"next":"http://%s/people?page=2"}}`, r.Host)
		case "2":
			assert.Empty(t, r.URL.Query().Get("limit"))
			fmt.Fprint(w, `{"data":[{"id":3,"name":"Cy"}],"meta":{"next":null}}`)
		}
	}))
	defer srv.Close()

	c := newTestConnector(t, srv.URL, WithDataKey("data"), WithPaginationKey("meta.next"))
	ctx, cancel := testutil.TestContext(t)
	defer cancel()
	tbl, err := c.GetTable(ctx, "people", url.Values{"limit": {"10"}})
	require.NoError(t, err)

	ids, err := tbl.Column("id")
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, ids)
	cols, err := tbl.Columns()
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, cols)
	assert.Equal(t, int64(2), hits.Load())
}

func TestGetTableSinglePage(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(http.StatusOK, `[{"a":1}]`))
	defer srv.Close()

	tbl, err := newTestConnector(t, srv.URL).GetTable(context.Background(), "", nil)
	require.NoError(t, err)
	n, err := tbl.NumRows()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestGetTableRepeatedPage(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"data":[],"next":"http://%s/loop"}`, r.Host)
	}))
	defer srv.Close()

	c := newTestConnector(t, srv.URL, WithDataKey("data"), WithPaginationKey("next"))
	_, err := c.GetTable(context.Background(), "loop", nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeRequest))
	assert.Contains(t, err.Error(), "pagination repeats a page")
	assert.Equal(t, int64(1), hits.Load())
}

func TestGetTableRepeatedFirstPageWithQuery(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("page") {
		case "2":
			fmt.Fprintf(w, `{"data":[{"id":2}],"next":"http://%s/people?page=1&limit=10"}`, r.Host)
		default:
			fmt.Fprintf(w, `{"data":[{"id":1}],"next":"http://%s/people?limit=10&page=2"}`, r.Host)
		}
	}))
	defer srv.Close()

	c := newTestConnector(t, srv.URL, WithDataKey("data"), WithPaginationKey("next"))
	_, err := c.GetTable(context.Background(), "people", url.Values{"page": {"1"}, "limit": {"10"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pagination repeats a page")
	assert.Equal(t, int64(2), hits.Load())
}

func TestNewOAuth2(t *testing.T) {
	var tokenHits atomic.Int64
	tokens := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenHits.Add(1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"tok-1","token_type":"bearer","expires_in":3600}`)
	}))
	defer tokens.Close()

	var auth []string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = append(auth, r.Header.Get("Authorization"))
		jsonHandler(http.StatusOK, `{}`)(w, r)
	}))
	defer api.Close()

	c, err := NewOAuth2(context.Background(), api.URL, ClientCredentials{
		ClientID:     "id",
		ClientSecret: "secret",
		TokenURL:     tokens.URL,
	}, WithLogger(testutil.TestLogger(t)))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := c.GetRequest(context.Background(), "me", nil)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"Bearer tok-1", "Bearer tok-1"}, auth)
	assert.Equal(t, int64(1), tokenHits.Load())
}

func TestNewOAuth2MissingCredentials(t *testing.T) {
	_, err := NewOAuth2(context.Background(), "https://api.example.com", ClientCredentials{ClientID: "id"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.Contains(t, err.Error(), "client_secret")
	assert.Contains(t, err.Error(), "token_url")
}

func TestPollUntil(t *testing.T) {
	t.Run("done after attempts", func(t *testing.T) {
		calls := 0
		err := PollUntil(context.Background(), time.Millisecond, func(context.Context) (bool, error) {
			calls++
			return calls == 3, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("error stops polling", func(t *testing.T) {
		boom := errors.New(errors.ErrorTypeConflict, "job failed")
		calls := 0
		err := PollUntil(context.Background(), time.Millisecond, func(context.Context) (bool, error) {
			calls++
			return false, boom
		})
		assert.True(t, errors.Is(err, boom))
		assert.Equal(t, 1, calls)
	})

	t.Run("context ends", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()
		err := PollUntil(ctx, 5*time.Millisecond, func(context.Context) (bool, error) {
			return false, nil
		})
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeRequest))
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	})

	t.Run("bad interval", func(t *testing.T) {
		err := PollUntil(context.Background(), 0, func(context.Context) (bool, error) { return true, nil })
		assert.True(t, errors.IsType(err, errors.ErrorTypeValue))
	})
}

func TestResponseJSON(t *testing.T) {
	body, err := json.Marshal(map[string]any{"n": 3})
	require.NoError(t, err)
	r := &Response{StatusCode: http.StatusOK, Body: body}
	assert.Equal(t, map[string]any{"n": int64(3)}, r.JSON())

	r = &Response{StatusCode: http.StatusOK, Body: []byte("  \n")}
	assert.Nil(t, r.JSON())
}

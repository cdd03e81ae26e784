package connector

import (
	"context"
	"net/url"
	"strings"

	"github.com/ajitpratap0/nebula-table/pkg/errors"
	"github.com/ajitpratap0/nebula-table/pkg/table"
)

// lookup walks a dotted key through nested objects
func lookup(resp any, key string) (any, bool) {
	cur := resp
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// DataParse returns the value under DataKey, or resp itself when the key
// is unset or absent
func (c *APIConnector) DataParse(resp any) any {
	if c.DataKey == "" {
		return resp
	}
	if v, ok := lookup(resp, c.DataKey); ok {
		return v
	}
	return resp
}

// NextURL returns the value under PaginationKey, or "" when there is no
// further page
func (c *APIConnector) NextURL(resp any) string {
	if c.PaginationKey == "" {
		return ""
	}
	v, ok := lookup(resp, c.PaginationKey)
	if !ok || v == nil {
		return ""
	}
	if b, ok := v.(bool); ok && !b {
		return ""
	}
	return table.ToString(v)
}

// ConvertToTable builds a table from a decoded response. A list becomes
// one row per element, a single object one row, and nil an empty table.
func ConvertToTable(data any) (*table.Table, error) {
	switch v := data.(type) {
	case nil:
		return table.Empty(), nil
	case map[string]any:
		return table.New([]map[string]any{v})
	}
	return table.New(data)
}

// GetTable fetches path and every following page, concatenating the
// DataKey portion of each response into one table. Pages are followed
// through NextURL; without a PaginationKey a single request is made. A
// next-page URL seen before fails with a request error.
func (c *APIConnector) GetTable(ctx context.Context, path string, params url.Values) (*table.Table, error) {
	var pages []*table.Table
	seen := map[string]bool{}
	next := path
	for {
		key, err := c.pageKey(next, params)
		if err != nil {
			return nil, err
		}
		if seen[key] {
			return nil, errors.New(errors.ErrorTypeRequest, "pagination repeats a page").
				WithDetail("url", key)
		}
		seen[key] = true
		resp, err := c.GetRequest(ctx, next, params)
		if err != nil {
			return nil, err
		}
		page, err := ConvertToTable(c.DataParse(resp))
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
		if next = c.NextURL(resp); next == "" {
			break
		}
		// the next-page URL carries its own query
		params = nil
	}
	out := pages[0]
	if len(pages) > 1 {
		if err := out.Concat(pages[1:]...); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// pageKey resolves a page request to its full URL with the query in
// canonical order
func (c *APIConnector) pageKey(path string, params url.Values) (string, error) {
	raw, err := c.URL(path, params)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeValue, "invalid request url").WithDetail("url", raw)
	}
	u.RawQuery = u.Query().Encode()
	return u.String(), nil
}

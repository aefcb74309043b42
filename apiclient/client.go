// Package apiclient is a Go client of the darasa REST API.
//
// Reads are cached by request path and query, and identical in-flight reads share one request.
// Successful mutations refresh the cached record and invalidate the lists of its resource;
// failed ones leave the cache untouched. Nothing is retried.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/trezcool/darasa/core"
)

const (
	tenantHeader   = "X-Tenant"
	defaultTimeout = 30 * time.Second
)

type Client struct {
	baseURL string
	tenant  string
	http    *http.Client
	logger  core.Logger

	cache  *cache
	flight singleflight.Group
}

type Option func(*Client)

// WithHTTPClient replaces the default HTTP client. A cookie jar is added if hc has none.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTenant selects the tenant by subdomain instead of relying on the host of baseURL.
func WithTenant(subdomain string) Option {
	return func(c *Client) { c.tenant = subdomain }
}

func WithLogger(logger core.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New returns a Client of the API served at baseURL (scheme and host, e.g. https://acme.darasa.app).
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing base url")
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("base url %q must be absolute", baseURL)
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		cache:   newCache(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.http == nil {
		c.http = &http.Client{Timeout: defaultTimeout}
	}
	if c.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, errors.Wrap(err, "creating cookie jar")
		}
		c.http.Jar = jar
	}
	return c, nil
}

// Invalidate drops every cached entry under the given resource paths.
func (c *Client) Invalidate(paths ...string) {
	c.cache.invalidatePrefix(paths...)
}

// Reset empties the cache.
func (c *Client) Reset() {
	c.cache.reset()
}

func cacheKey(path string, query url.Values) string {
	if len(query) == 0 {
		return path
	}
	return path + "?" + query.Encode() // Encode sorts by key
}

// get returns the body of GET key, from the cache when possible.
func (c *Client) get(ctx context.Context, key string) ([]byte, error) {
	if body, ok := c.cache.get(key); ok {
		return body, nil
	}

	v, err, _ := c.flight.Do(key, func() (interface{}, error) {
		gen := c.cache.generation()
		body, err := c.do(ctx, http.MethodGet, key, nil)
		if err != nil {
			return nil, err
		}
		c.cache.storeIfCurrent(key, body, gen)
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// getInto fetches key and decodes it into dst.
func (c *Client) getInto(ctx context.Context, key string, dst interface{}) error {
	body, err := c.get(ctx, key)
	if err != nil {
		return err
	}
	return decode(body, dst)
}

// send runs a mutation and decodes its answer into dst when both are present.
func (c *Client) send(ctx context.Context, method, path string, data, dst interface{}) ([]byte, error) {
	var reqBody io.Reader
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, errors.Wrap(err, "encoding request body")
		}
		reqBody = bytes.NewReader(b)
	}

	body, err := c.do(ctx, method, path, reqBody)
	if err != nil {
		return nil, err
	}
	if dst != nil && len(body) > 0 {
		if err = decode(body, dst); err != nil {
			return nil, err
		}
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, errors.Wrap(err, "creating request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tenant != "" {
		req.Header.Set(tenantHeader, c.tenant)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("%s %s", method, path))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newError(resp.StatusCode, respBody)
		if c.logger != nil && resp.StatusCode >= http.StatusInternalServerError {
			c.logger.Error(fmt.Sprintf("%s %s", method, path), apiErr)
		}
		return nil, apiErr
	}
	return respBody, nil
}

func decode(body []byte, dst interface{}) error {
	if err := json.Unmarshal(body, dst); err != nil {
		return errors.Wrapf(err, "decoding into %T", dst)
	}
	return nil
}

package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

const DefaultAPIVersion = "2024-07"

// ErrNotFound is returned (wrapped in *APIError) when the Admin API answers 404.
var ErrNotFound = errors.New("shopify: not found")

// Session carries the credentials for one shop.
type Session struct {
	Shop        string
	AccessToken string
}

// APIError is a non-2xx answer from the Admin API. The body is kept for logging only.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("shopify %s %s: http %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// Client talks to the Shopify Admin REST API of any shop.
type Client struct {
	HTTP       *http.Client
	APIVersion string

	// BaseURL maps a shop domain to its origin. Defaults to https://<shop>.
	BaseURL func(shop string) string

	guards *shopGuards
}

func NewClient(apiVersion string, timeout time.Duration) *Client {
	if strings.TrimSpace(apiVersion) == "" {
		apiVersion = DefaultAPIVersion
	}
	return &Client{
		HTTP:       &http.Client{Timeout: timeout},
		APIVersion: apiVersion,
		guards:     newShopGuards(restRate, restBurst),
	}
}

func (c *Client) origin(shop string) string {
	if c.BaseURL != nil {
		return strings.TrimRight(c.BaseURL(shop), "/")
	}
	return "https://" + shop
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *Client) adminPath(format string, args ...any) string {
	return fmt.Sprintf("/admin/api/%s/", c.APIVersion) + fmt.Sprintf(format, args...)
}

// do sends a JSON request and decodes a 2xx JSON answer into out (if non-nil).
func (c *Client) do(ctx context.Context, shop, token, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.origin(shop)+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("X-Shopify-Access-Token", token)
	}

	var raw []byte
	if guard := c.guards.get(shop); guard == nil {
		raw, err = c.roundTrip(req, method, path)
	} else {
		if err := guard.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("shopify %s %s: rate limit wait: %w", method, stripQuery(path), err)
		}
		var v any
		v, err = guard.breaker.Execute(func() (any, error) {
			return c.roundTrip(req, method, path)
		})
		raw, _ = v.([]byte)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("shopify %s %s: %w", method, stripQuery(path), err)
		}
	}
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, stripQuery(path), err)
	}
	return nil
}

// roundTrip returns the body of a 2xx answer, or an *APIError.
func (c *Client) roundTrip(req *http.Request, method, path string) ([]byte, error) {
	res, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("shopify %s %s: %w", method, stripQuery(path), err)
	}
	defer res.Body.Close()

	raw, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &APIError{
			Method:     method,
			Path:       stripQuery(path),
			StatusCode: res.StatusCode,
			Body:       string(raw),
		}
	}
	return raw, nil
}

func stripQuery(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}

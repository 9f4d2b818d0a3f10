// Package graph talks to Microsoft To Do and Outlook calendar through Microsoft Graph.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/harrisonrobin/taskslot/pkg/errs"
)

const (
	DefaultBaseURL = "https://graph.microsoft.com/v1.0"

	service = "graph"
)

// Client is a minimal Microsoft Graph REST client. The *http.Client must attach
// credentials, e.g. one built by auth.Client or auth.EnvClient.
type Client struct {
	baseURL string
	hc      *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

type Option func(*Client)

// WithRate paces requests to perSec with a burst of the same size. Zero disables pacing.
func WithRate(perSec int) Option {
	return func(c *Client) {
		if perSec > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSec), perSec)
		}
	}
}

func WithLogger(l zerolog.Logger) Option { return func(c *Client) { c.log = l } }

func New(hc *http.Client, baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      hc,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// page is the OData collection envelope.
type page[T any] struct {
	Value    []T    `json:"value"`
	NextLink string `json:"@odata.nextLink"`
}

type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// do sends one request and decodes the response into out when out is non-nil.
// Any status other than want becomes an *errs.AuthError (401) or *errs.RemoteCallError.
func (c *Client) do(ctx context.Context, op, method, rawURL string, body any, want int, out any, headers map[string]string) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, r)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		// Token errors surface here wrapped in *url.Error.
		if errs.IsAuth(err) {
			return err
		}
		return fmt.Errorf("%s: %s: %w", service, op, err)
	}
	defer resp.Body.Close()

	c.log.Debug().Str("op", op).Str("method", method).Int("status", resp.StatusCode).Msg("graph request")

	if resp.StatusCode != want {
		return statusError(op, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: %s: decode response: %w", service, op, err)
	}
	return nil
}

func statusError(op string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	detail := strings.TrimSpace(string(b))
	var ae apiError
	if json.Unmarshal(b, &ae) == nil && ae.Error.Message != "" {
		detail = ae.Error.Message
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return &errs.AuthError{Provider: service, Message: op + " was rejected: " + detail}
	}
	return &errs.RemoteCallError{Service: service, Op: op, Status: resp.StatusCode, Detail: detail}
}

// getAll follows @odata.nextLink until the collection is exhausted.
func getAll[T any](ctx context.Context, c *Client, op, rawURL string, headers map[string]string) ([]T, error) {
	var out []T
	for next := rawURL; next != ""; {
		var p page[T]
		if err := c.do(ctx, op, http.MethodGet, next, nil, http.StatusOK, &p, headers); err != nil {
			return nil, err
		}
		out = append(out, p.Value...)
		next = p.NextLink
	}
	return out, nil
}

func (c *Client) url(path string, q url.Values) string {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}
